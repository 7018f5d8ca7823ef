package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tturner/udsinfo/internal/app"
	"github.com/tturner/udsinfo/internal/config"
)

var (
	version = "dev"
	commit  = "unknown"
	date    = "unknown"
)

// globalFlags are shared by every subcommand.
type globalFlags struct {
	configPath string
	verbose    bool
	debug      bool
	quiet      bool
	logFile    string
}

func (g *globalFlags) logOptions() app.LogOptions {
	return app.LogOptions{Verbose: g.verbose, Debug: g.debug, Quiet: g.quiet, LogFile: g.logFile}
}

// configExplicit reports whether --config was given, which turns a missing
// file into an error.
func configExplicit(cmd *cobra.Command) bool {
	return cmd.Flags().Changed("config")
}

func newRootCmd() *cobra.Command {
	g := &globalFlags{}

	rootCmd := &cobra.Command{
		Use:   "udsinfo",
		Short: "Read ECU identification over UDS on DoIP",
		Long: `udsinfo connects to a vehicle ECU through a DoIP entity, reads its
identification data identifiers with UDS ReadDataByIdentifier and prints
them as a JSON record.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.PersistentFlags().StringVar(&g.configPath, "config", config.DefaultPath, "Configuration file (missing default file = built-in defaults)")
	rootCmd.PersistentFlags().BoolVarP(&g.verbose, "verbose", "v", false, "Verbose logging")
	rootCmd.PersistentFlags().BoolVar(&g.debug, "debug", false, "Debug logging with frame dumps")
	rootCmd.PersistentFlags().BoolVarP(&g.quiet, "quiet", "q", false, "Only log errors")
	rootCmd.PersistentFlags().StringVar(&g.logFile, "log-file", "", "Append timestamped log lines to this file")

	// Add subcommands
	rootCmd.AddCommand(newReadCmd(g))
	rootCmd.AddCommand(newInteractiveCmd(g))
	rootCmd.AddCommand(newHistoryCmd(g))
	rootCmd.AddCommand(newServeCmd(g))
	rootCmd.AddCommand(newConfigCmd())
	rootCmd.AddCommand(newVersionCmd())

	// Custom help command
	rootCmd.SetHelpFunc(func(cmd *cobra.Command, args []string) {
		if cmd != cmd.Root() {
			if cmd.Long != "" {
				fmt.Fprintf(cmd.OutOrStdout(), "%s\n\n", cmd.Long)
			}
			fmt.Fprint(cmd.OutOrStdout(), cmd.UsageString())
			return
		}
		out := cmd.OutOrStdout()
		fmt.Fprintf(out, "Usage:\n  %s <command> [options]\n\n", cmd.Name())
		fmt.Fprintf(out, "Available Commands:\n")
		for _, subCmd := range cmd.Commands() {
			if !subCmd.Hidden {
				fmt.Fprintf(out, "  %-15s %s\n", subCmd.Name(), subCmd.Short)
			}
		}
		fmt.Fprintf(out, "\nUse \"%s help <command>\" for more information about a command.\n", cmd.Name())
	})

	return rootCmd
}

func main() {
	if err := newRootCmd().Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}
