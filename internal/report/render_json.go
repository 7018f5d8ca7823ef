package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/tturner/udsinfo/internal/vehicleinfo"
)

// WriteJSON writes the record envelope as JSON to an io.Writer.
func WriteJSON(w io.Writer, record *vehicleinfo.Record) error {
	enc := json.NewEncoder(w)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(record.Envelope()); err != nil {
		return fmt.Errorf("encode report: %w", err)
	}
	return nil
}

// MarshalEnvelope returns the compact JSON envelope, as published and copied.
func MarshalEnvelope(record *vehicleinfo.Record) ([]byte, error) {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(record.Envelope()); err != nil {
		return nil, fmt.Errorf("marshal report: %w", err)
	}
	return bytes.TrimSuffix(buf.Bytes(), []byte("\n")), nil
}

// Write renders the record in the named format ("json" or "table").
func Write(w io.Writer, format string, target vehicleinfo.Target, record *vehicleinfo.Record) error {
	switch format {
	case "", "json":
		return WriteJSON(w, record)
	case "table":
		_, err := fmt.Fprintln(w, RenderTable(target, record))
		return err
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}
