package history

// Persistent read history in a bbolt file, values CBOR-encoded

import (
	"encoding/binary"
	"fmt"
	"time"

	"github.com/fxamacker/cbor/v2"
	bolt "go.etcd.io/bbolt"

	"github.com/tturner/udsinfo/internal/vehicleinfo"
)

const (
	readsBucket = "reads"
	setupBucket = "uds_setup"

	// keyLayout is RFC 3339 with fixed-width nanoseconds so keys sort by time.
	keyLayout = "2006-01-02T15:04:05.000000000Z"
)

var encMode = mustEncMode()

func mustEncMode() cbor.EncMode {
	em, err := cbor.EncOptions{Time: cbor.TimeRFC3339Nano}.EncMode()
	if err != nil {
		panic(err)
	}
	return em
}

// Field is one identifier outcome of a stored read.
type Field struct {
	Name  string `cbor:"name"`
	Value string `cbor:"value"`
	OK    bool   `cbor:"ok"`
}

// Entry is one stored read.
type Entry struct {
	Time           time.Time `cbor:"time"`
	Address        string    `cbor:"ip"`
	LogicalAddress uint16    `cbor:"logical_address"`
	Fields         []Field   `cbor:"fields"`
}

// NewEntry captures a finished read.
func NewEntry(at time.Time, target vehicleinfo.Target, record *vehicleinfo.Record) Entry {
	e := Entry{Time: at.UTC(), Address: target.Address, LogicalAddress: target.LogicalAddress}
	for _, name := range record.Fields() {
		o, _ := record.Get(name)
		e.Fields = append(e.Fields, Field{Name: name, Value: o.String(), OK: o.OK()})
	}
	return e
}

// Target returns the ECU the entry was read from.
func (e Entry) Target() vehicleinfo.Target {
	return vehicleinfo.Target{Address: e.Address, LogicalAddress: e.LogicalAddress}
}

// Record rebuilds the read record in its original field order.
func (e Entry) Record() *vehicleinfo.Record {
	record := vehicleinfo.NewRecord(len(e.Fields))
	for _, f := range e.Fields {
		if f.OK {
			record.Set(f.Name, vehicleinfo.Decoded(f.Value))
		} else {
			record.Set(f.Name, vehicleinfo.Failed(f.Value))
		}
	}
	return record
}

// Store is the history database.
type Store struct {
	db *bolt.DB
}

// Open opens (or creates) the database and makes sure both buckets exist.
func Open(path string) (*Store, error) {
	db, err := bolt.Open(path, 0o600, &bolt.Options{Timeout: 1 * time.Second})
	if err != nil {
		return nil, fmt.Errorf("open history db: %w", err)
	}
	err = db.Update(func(tx *bolt.Tx) error {
		for _, name := range []string{readsBucket, setupBucket} {
			if _, err := tx.CreateBucketIfNotExists([]byte(name)); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("create history buckets: %w", err)
	}
	return &Store{db: db}, nil
}

// Close closes the database.
func (s *Store) Close() error {
	return s.db.Close()
}

// Save stores the entry and remembers its logical address for the IP.
func (s *Store) Save(e Entry) error {
	value, err := encMode.Marshal(e)
	if err != nil {
		return fmt.Errorf("encode history entry: %w", err)
	}
	return s.db.Update(func(tx *bolt.Tx) error {
		reads := tx.Bucket([]byte(readsBucket))
		at := e.Time.UTC()
		key := []byte(at.Format(keyLayout))
		// two reads within the same nanosecond
		for reads.Get(key) != nil {
			at = at.Add(time.Nanosecond)
			key = []byte(at.Format(keyLayout))
		}
		if err := reads.Put(key, value); err != nil {
			return err
		}

		la := binary.BigEndian.AppendUint16(nil, e.LogicalAddress)
		return tx.Bucket([]byte(setupBucket)).Put([]byte(e.Address), la)
	})
}

// List returns up to limit entries, newest first. A limit <= 0 returns all.
func (s *Store) List(limit int) ([]Entry, error) {
	var entries []Entry
	err := s.db.View(func(tx *bolt.Tx) error {
		c := tx.Bucket([]byte(readsBucket)).Cursor()
		for k, v := c.Last(); k != nil; k, v = c.Prev() {
			if limit > 0 && len(entries) >= limit {
				break
			}
			var e Entry
			if err := cbor.Unmarshal(v, &e); err != nil {
				return fmt.Errorf("decode history entry %s: %w", k, err)
			}
			entries = append(entries, e)
		}
		return nil
	})
	return entries, err
}

// LastLogicalAddress returns the logical address last used for ip.
func (s *Store) LastLogicalAddress(ip string) (uint16, bool, error) {
	var (
		la    uint16
		found bool
	)
	err := s.db.View(func(tx *bolt.Tx) error {
		v := tx.Bucket([]byte(setupBucket)).Get([]byte(ip))
		if v == nil {
			return nil
		}
		if len(v) != 2 {
			return fmt.Errorf("corrupt logical address for %s", ip)
		}
		la, found = binary.BigEndian.Uint16(v), true
		return nil
	})
	return la, found, err
}
