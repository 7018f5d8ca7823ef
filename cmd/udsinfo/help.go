package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"
)

// handleHelpArg prints help for "udsinfo <command> help" and reports
// whether it did.
func handleHelpArg(cmd *cobra.Command, args []string) bool {
	if len(args) == 0 || !strings.EqualFold(args[0], "help") {
		return false
	}
	_ = cmd.Help()
	return true
}

type requiredFlag struct {
	name  string
	value string
}

// requireFlags checks flags in order and fails on the first unset one,
// after printing the command help.
func requireFlags(cmd *cobra.Command, flags ...requiredFlag) error {
	for _, f := range flags {
		if f.value != "" {
			continue
		}
		_ = cmd.Help()
		return fmt.Errorf("required flag --%s not set", f.name)
	}
	return nil
}
