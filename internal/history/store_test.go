package history

import (
	"path/filepath"
	"slices"
	"testing"
	"time"

	"github.com/tturner/udsinfo/internal/vehicleinfo"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	store, err := Open(filepath.Join(t.TempDir(), "history.db"))
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	return store
}

func testRecord(serial string) *vehicleinfo.Record {
	record := vehicleinfo.NewRecord(2)
	record.Set("ecuSerialNumber", vehicleinfo.Decoded(serial))
	record.Set("ecuTypeVariant", vehicleinfo.Failed("UDS Error: rejected"))
	return record
}

func TestSaveAndListNewestFirst(t *testing.T) {
	store := openTestStore(t)
	target := vehicleinfo.Target{Address: "192.0.2.10", LogicalAddress: 0x0545}
	base := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	// out of order, including a time that RFC3339Nano would shorten
	times := []time.Time{base.Add(100 * time.Millisecond), base, base.Add(time.Second)}
	for i, at := range times {
		if err := store.Save(NewEntry(at, target, testRecord(string(rune('A'+i))))); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	entries, err := store.List(0)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	var serials []string
	for _, e := range entries {
		o, _ := e.Record().Get("ecuSerialNumber")
		serials = append(serials, o.String())
	}
	if !slices.Equal(serials, []string{"C", "A", "B"}) {
		t.Errorf("order = %v, want [C A B]", serials)
	}

	limited, err := store.List(1)
	if err != nil || len(limited) != 1 {
		t.Fatalf("List(1) = %d entries, %v", len(limited), err)
	}
}

func TestEntryRecordRoundTrip(t *testing.T) {
	store := openTestStore(t)
	target := vehicleinfo.Target{Address: "192.0.2.10", LogicalAddress: 0x0545}
	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

	if err := store.Save(NewEntry(at, target, testRecord("SN1"))); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Save(NewEntry(at, target, testRecord("SN2"))); err != nil {
		t.Fatalf("Save with same timestamp: %v", err)
	}

	entries, err := store.List(0)
	if err != nil || len(entries) != 2 {
		t.Fatalf("List = %d entries, %v", len(entries), err)
	}
	e := entries[1]
	if !e.Time.Equal(at) || e.Target() != target {
		t.Errorf("entry header = %v %v", e.Time, e.Target())
	}
	record := e.Record()
	if !slices.Equal(record.Fields(), []string{"ecuSerialNumber", "ecuTypeVariant"}) {
		t.Errorf("fields = %v", record.Fields())
	}
	if o, _ := record.Get("ecuTypeVariant"); o.OK() || o.String() != "UDS Error: rejected" {
		t.Errorf("failed field = %+v", o)
	}
}

func TestLastLogicalAddress(t *testing.T) {
	store := openTestStore(t)

	if _, found, err := store.LastLogicalAddress("192.0.2.10"); err != nil || found {
		t.Fatalf("empty store: found=%v err=%v", found, err)
	}

	at := time.Now()
	for _, la := range []uint16{0x0545, 0x0701} {
		target := vehicleinfo.Target{Address: "192.0.2.10", LogicalAddress: la}
		if err := store.Save(NewEntry(at, target, testRecord("x"))); err != nil {
			t.Fatalf("Save: %v", err)
		}
	}

	la, found, err := store.LastLogicalAddress("192.0.2.10")
	if err != nil || !found || la != 0x0701 {
		t.Errorf("LastLogicalAddress = 0x%04X, %v, %v", la, found, err)
	}
}
