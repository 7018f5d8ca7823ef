package report

import (
	"fmt"
	"strings"

	"github.com/charmbracelet/lipgloss"

	"github.com/tturner/udsinfo/internal/vehicleinfo"
)

// RenderTable renders the record as a bordered two-column table in table
// order. Failed fields are highlighted.
func RenderTable(target vehicleinfo.Target, record *vehicleinfo.Record) string {
	s := DefaultStyles
	fields := record.Fields()

	keyWidth := 0
	for _, field := range fields {
		keyWidth = max(keyWidth, lipgloss.Width(field))
	}

	var rows []string
	rows = append(rows, s.Title.Render(fmt.Sprintf("ECU %s", target)))
	for _, field := range fields {
		outcome, _ := record.Get(field)
		key := s.Key.Width(keyWidth).Render(field)
		value := s.Value.Render(outcome.String())
		if !outcome.OK() {
			value = s.Error.Render(outcome.String())
		}
		rows = append(rows, key+"  "+value)
	}

	failures := record.Failures()
	status := s.Success.Render(fmt.Sprintf("%d/%d identifiers read", len(fields)-failures, len(fields)))
	if failures > 0 {
		status = s.Warning.Render(fmt.Sprintf("%d/%d identifiers read, %d failed", len(fields)-failures, len(fields), failures))
	}
	rows = append(rows, status)

	return s.Box.Render(strings.Join(rows, "\n"))
}
