package main

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/propapanda/dinky/internal/cli"
)

// validateCmd parses a script and reports its shape and defects.
var validateCmd = &cobra.Command{
	Use:   "validate <script.ink>",
	Short: "Parse a script and report scopes, declarations, TODOs and dangling diverts",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		return cli.Validate(args[0], os.Stdout)
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
}
