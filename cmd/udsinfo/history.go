package main

import (
	"github.com/spf13/cobra"

	"github.com/tturner/udsinfo/internal/app"
)

type historyFlags struct {
	historyDB string
	limit     int
	format    string
}

func newHistoryCmd(g *globalFlags) *cobra.Command {
	flags := &historyFlags{}

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List stored reads, newest first",
		Example: `  udsinfo history --history-db reads.db --limit 5
  udsinfo history --history-db reads.db --format table`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			return app.RunHistory(app.HistoryOptions{
				ConfigPath:     g.configPath,
				ConfigExplicit: configExplicit(cmd),
				HistoryDB:      flags.historyDB,
				Limit:          flags.limit,
				Format:         flags.format,
				Stdout:         cmd.OutOrStdout(),
			})
		},
	}

	cmd.Flags().StringVar(&flags.historyDB, "history-db", "", "History database (default from config)")
	cmd.Flags().IntVar(&flags.limit, "limit", 10, "Maximum entries to list (0 = all)")
	cmd.Flags().StringVar(&flags.format, "format", "", "Output format: json|table (json prints one entry per line)")

	return cmd
}
