package vehicleinfo

import (
	"bytes"
	"encoding/json"
)

// RecordType tags the serialized record.
const RecordType = "uds-vehicle-info"

// Prefixes of failed outcome descriptions.
const (
	NegativeResponsePrefix = "UDS Error: "
	ExceptionPrefix        = "Exception: "
)

// Outcome is the result of reading one identifier.
type Outcome struct {
	value  string
	reason string
	failed bool
}

// Decoded is a successful read.
func Decoded(value string) Outcome {
	return Outcome{value: value}
}

// Failed is a read that produced an error description instead of a value.
func Failed(reason string) Outcome {
	return Outcome{reason: reason, failed: true}
}

// OK reports whether the read produced a value.
func (o Outcome) OK() bool { return !o.failed }

// String returns the value, or the error description for a failed read.
func (o Outcome) String() string {
	if o.failed {
		return o.reason
	}
	return o.value
}

// Record maps field names to outcomes in table order.
type Record struct {
	fields   []string
	outcomes map[string]Outcome
}

// NewRecord creates an empty record.
func NewRecord(capacity int) *Record {
	return &Record{
		fields:   make([]string, 0, capacity),
		outcomes: make(map[string]Outcome, capacity),
	}
}

// Set stores the outcome of a field. A new field is appended to the order.
func (r *Record) Set(field string, outcome Outcome) {
	if _, ok := r.outcomes[field]; !ok {
		r.fields = append(r.fields, field)
	}
	r.outcomes[field] = outcome
}

// Fields returns the field names in table order.
func (r *Record) Fields() []string {
	return append([]string(nil), r.fields...)
}

// Get returns the outcome of a field.
func (r *Record) Get(field string) (Outcome, bool) {
	o, ok := r.outcomes[field]
	return o, ok
}

// Failures counts fields that carry an error description.
func (r *Record) Failures() int {
	n := 0
	for _, o := range r.outcomes {
		if !o.OK() {
			n++
		}
	}
	return n
}

// MarshalJSON encodes the record as an object with fields in table order.
func (r *Record) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	for i, field := range r.fields {
		if i > 0 {
			buf.WriteByte(',')
		}
		if err := writeString(&buf, field); err != nil {
			return nil, err
		}
		buf.WriteByte(':')
		if err := writeString(&buf, r.outcomes[field].String()); err != nil {
			return nil, err
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

// writeString appends s as a JSON string with <, > and & left as is.
func writeString(buf *bytes.Buffer, s string) error {
	enc := json.NewEncoder(buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(s); err != nil {
		return err
	}
	buf.Truncate(buf.Len() - 1) // Encode appends a newline
	return nil
}

// Envelope is the serialized form handed to consumers.
type Envelope struct {
	Type string  `json:"type"`
	Data *Record `json:"data"`
}

// Envelope wraps the record for output.
func (r *Record) Envelope() Envelope {
	return Envelope{Type: RecordType, Data: r}
}
