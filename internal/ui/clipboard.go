package ui

import (
	"fmt"

	"github.com/atotto/clipboard"

	"github.com/tturner/udsinfo/internal/report"
	"github.com/tturner/udsinfo/internal/vehicleinfo"
)

var writeClipboard = clipboard.WriteAll

// CopyRecord copies the compact JSON envelope to the system clipboard.
func CopyRecord(record *vehicleinfo.Record) error {
	data, err := report.MarshalEnvelope(record)
	if err != nil {
		return err
	}
	if err := writeClipboard(string(data)); err != nil {
		return fmt.Errorf("copy to clipboard: %w", err)
	}
	return nil
}
