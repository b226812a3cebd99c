package cli

import "github.com/spf13/cobra"

// NewRootCmd exposes the root command to the cli_test package.
func NewRootCmd() *cobra.Command {
	return newRootCmd()
}
