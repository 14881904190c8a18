package main

import (
	"github.com/spf13/cobra"
)

// rootCmd is the base command for the dinky CLI.
var rootCmd = &cobra.Command{
	Use:   "dinky",
	Short: "Runtime for interactive branching narratives",
	Long: `Dinky compiles Ink-family scripts and plays them as interactive
sessions: run a story in the terminal, validate a script, or serve the
session API over HTTP.`,
	SilenceUsage: true,
}

func init() {
	rootCmd.PersistentFlags().Bool("debug", false, "Enable debug logging to stderr")
}
