package main

import (
	"github.com/spf13/cobra"

	"github.com/tturner/udsinfo/internal/app"
)

type interactiveFlags struct {
	ip        string
	la        string
	historyDB string
	copy      bool
}

func newInteractiveCmd(g *globalFlags) *cobra.Command {
	flags := &interactiveFlags{}

	cmd := &cobra.Command{
		Use:   "interactive",
		Short: "Prompt for the ECU and watch the read",
		Long: `Ask for the ECU address in a form, then show each identifier as it is
read. When a history database is configured, the logical address last used
for the entered IP is offered as the default. Press c to copy the JSON record
once the read completes; the record is printed when the view closes.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			return app.RunInteractive(cmd.Context(), app.InteractiveOptions{
				ConfigPath:     g.configPath,
				ConfigExplicit: configExplicit(cmd),
				IP:             flags.ip,
				LogicalAddress: flags.la,
				HistoryDB:      flags.historyDB,
				Copy:           flags.copy,
				Log:            g.logOptions(),
				Stdout:         cmd.OutOrStdout(),
			})
		},
	}

	cmd.Flags().StringVar(&flags.ip, "ip", "", "Pre-fill the ECU IP address")
	cmd.Flags().StringVar(&flags.la, "la", "", "Pre-fill the ECU logical address")
	cmd.Flags().StringVar(&flags.historyDB, "history-db", "", "History database for stored reads and remembered addresses")
	cmd.Flags().BoolVar(&flags.copy, "copy", false, "Copy the JSON record to the clipboard on exit")

	return cmd
}
