package app

import (
	"context"
	"io"
	"os"
	"time"

	"github.com/tturner/udsinfo/internal/config"
	"github.com/tturner/udsinfo/internal/history"
	"github.com/tturner/udsinfo/internal/logging"
	"github.com/tturner/udsinfo/internal/report"
	"github.com/tturner/udsinfo/internal/ui"
	"github.com/tturner/udsinfo/internal/vehicleinfo"
)

// InteractiveOptions holds the interactive command inputs. IP and
// LogicalAddress only pre-fill the form.
type InteractiveOptions struct {
	ConfigPath     string
	ConfigExplicit bool
	IP             string
	LogicalAddress string
	HistoryDB      string
	Copy           bool
	Log            LogOptions
	Stdout         io.Writer
}

// RunInteractive prompts for the ECU, shows the read as it progresses and
// prints the JSON record once the view is closed.
func RunInteractive(ctx context.Context, opts InteractiveOptions) error {
	stdout := opts.Stdout
	if stdout == nil {
		stdout = os.Stdout
	}

	cfg, err := config.LoadConfig(opts.ConfigPath, opts.ConfigExplicit)
	if err != nil {
		return err
	}
	if opts.HistoryDB != "" {
		cfg.Output.HistoryDB = opts.HistoryDB
	}

	// the terminal belongs to the view; log to the file only
	logger, err := newLogger(opts.Log, nil)
	if err != nil {
		return err
	}
	defer logger.Close()

	var store *history.Store
	if cfg.Output.HistoryDB != "" {
		store, err = history.Open(cfg.Output.HistoryDB)
		if err != nil {
			logger.Warn("history disabled: %v", err)
		} else {
			defer store.Close()
		}
	}

	defaults := ui.TargetPrompt{IP: opts.IP, LogicalAddress: opts.LogicalAddress}
	target, err := ui.PromptTarget(defaults, logicalAddressLookup(store, logger))
	if err != nil {
		return err
	}

	table := vehicleinfo.IdentificationTable()
	record, err := ui.RunProgress(ctx, target, table, func(ctx context.Context, observer vehicleinfo.Observer) (*vehicleinfo.Record, error) {
		return readRecord(ctx, cfg, target, table, logger, observer)
	})
	if err != nil {
		return err
	}

	if err := report.WriteJSON(stdout, record); err != nil {
		return err
	}
	if store != nil {
		if err := store.Save(history.NewEntry(time.Now(), target, record)); err != nil {
			logger.Warn("save history: %v", err)
		}
	}
	publishRecord(cfg, record, logger)
	if opts.Copy {
		if err := ui.CopyRecord(record); err != nil {
			logger.Warn("%v", err)
		}
	}
	return nil
}

func logicalAddressLookup(store *history.Store, logger *logging.Logger) ui.LogicalAddressLookup {
	if store == nil {
		return nil
	}
	return func(ip string) (uint16, bool) {
		la, ok, err := store.LastLogicalAddress(ip)
		if err != nil {
			logger.Warn("history lookup: %v", err)
			return 0, false
		}
		return la, ok
	}
}
