package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/tturner/udsinfo/internal/config"
)

type configInitFlags struct {
	output string
	force  bool
}

func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Configuration file commands",
	}
	cmd.AddCommand(newConfigInitCmd())
	return cmd
}

func newConfigInitCmd() *cobra.Command {
	flags := &configInitFlags{}

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write the default configuration file",
		RunE: func(cmd *cobra.Command, args []string) error {
			if handleHelpArg(cmd, args) {
				return nil
			}
			if _, err := os.Stat(flags.output); err == nil && !flags.force {
				return fmt.Errorf("%s already exists; use --force to overwrite", flags.output)
			}
			if err := config.WriteDefaultConfig(flags.output); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote default configuration to %s\n", flags.output)
			return nil
		},
	}

	cmd.Flags().StringVar(&flags.output, "output", config.DefaultPath, "Path of the file to write")
	cmd.Flags().BoolVar(&flags.force, "force", false, "Overwrite an existing file")

	return cmd
}
