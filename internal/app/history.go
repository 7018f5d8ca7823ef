package app

import (
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/tturner/udsinfo/internal/config"
	"github.com/tturner/udsinfo/internal/history"
	"github.com/tturner/udsinfo/internal/report"
	"github.com/tturner/udsinfo/internal/vehicleinfo"
)

type HistoryOptions struct {
	ConfigPath     string
	ConfigExplicit bool
	HistoryDB      string
	Limit          int
	Format         string
	Stdout         io.Writer
}

// historyLine is one stored read in JSON lines output.
type historyLine struct {
	Time           string               `json:"time"`
	IP             string               `json:"ip"`
	LogicalAddress string               `json:"logical_address"`
	Record         vehicleinfo.Envelope `json:"record"`
}

// RunHistory lists stored reads, newest first.
func RunHistory(opts HistoryOptions) error {
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	cfg, err := config.LoadConfig(opts.ConfigPath, opts.ConfigExplicit)
	if err != nil {
		return err
	}
	path := firstNonEmpty(opts.HistoryDB, cfg.Output.HistoryDB)
	if path == "" {
		return fmt.Errorf("no history database configured; use --history-db or output.history_db")
	}
	format := firstNonEmpty(opts.Format, cfg.Output.Format)

	store, err := history.Open(path)
	if err != nil {
		return err
	}
	defer store.Close()

	entries, err := store.List(opts.Limit)
	if err != nil {
		return err
	}
	return writeHistory(stdout, format, entries)
}

func writeHistory(w io.Writer, format string, entries []history.Entry) error {
	switch format {
	case "", "json":
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		for _, e := range entries {
			line := historyLine{
				Time:           e.Time.Format("2006-01-02T15:04:05.000000Z"),
				IP:             e.Address,
				LogicalAddress: fmt.Sprintf("0x%04X", e.LogicalAddress),
				Record:         e.Record().Envelope(),
			}
			if err := enc.Encode(line); err != nil {
				return fmt.Errorf("encode history: %w", err)
			}
		}
		return nil
	case "table":
		if len(entries) == 0 {
			_, err := fmt.Fprintln(w, "No reads stored")
			return err
		}
		for _, e := range entries {
			fmt.Fprintln(w, report.DefaultStyles.Dim.Render(e.Time.Local().Format("2006-01-02 15:04:05")))
			if _, err := fmt.Fprintln(w, report.RenderTable(e.Target(), e.Record())); err != nil {
				return err
			}
		}
		return nil
	default:
		return fmt.Errorf("unknown output format %q", format)
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
