package main

import (
	"github.com/spf13/cobra"

	"github.com/tturner/udsinfo/internal/app"
)

type serveFlags struct {
	listen          string
	la              string
	responsePending int
}

func newServeCmd(g *globalFlags) *cobra.Command {
	flags := &serveFlags{}

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Run a DoIP ECU simulator",
		Long: `Run a DoIP entity that fronts one simulated ECU. It accepts routing
activation, answers alive checks and serves ReadDataByIdentifier from the
simulator section of the configuration. Unknown identifiers get NRC 0x31.

Press Ctrl+C to stop the simulator gracefully.`,
		Example: `  # Serve the built-in identification values on 127.0.0.1:13400
  udsinfo serve

  # Then read them back
  udsinfo read --ip 127.0.0.1 --la 0x545

  # Exercise P2* handling with two response-pending frames per request
  udsinfo serve --listen 0.0.0.0:13400 --response-pending 2`,
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			opts := app.ServeOptions{
				ConfigPath:     g.configPath,
				ConfigExplicit: configExplicit(cmd),
				Listen:         flags.listen,
				LogicalAddress: flags.la,
				Log:            g.logOptions(),
				Stdout:         cmd.OutOrStdout(),
				Stderr:         cmd.ErrOrStderr(),
			}
			if cmd.Flags().Changed("response-pending") {
				opts.ResponsePending = &flags.responsePending
			}
			return app.RunServe(cmd.Context(), opts)
		},
	}

	cmd.Flags().StringVar(&flags.listen, "listen", "", "Listen address (default from config, 127.0.0.1:13400)")
	cmd.Flags().StringVar(&flags.la, "la", "", "Simulated ECU logical address in hex (default from config, 0x545)")
	cmd.Flags().IntVar(&flags.responsePending, "response-pending", 0, "Response-pending frames sent before each answer")

	return cmd
}
