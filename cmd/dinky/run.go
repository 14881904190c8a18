package main

import (
	"github.com/spf13/cobra"

	"github.com/propapanda/dinky/internal/cli"
)

// runCmd plays a story interactively.
var runCmd = &cobra.Command{
	Use:   "run <script.ink>",
	Short: "Play a story interactively in the terminal",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		sessionID, _ := cmd.Flags().GetString("session")
		headless, _ := cmd.Flags().GetBool("headless")
		seed, _ := cmd.Flags().GetInt64("seed")
		debug, _ := cmd.Flags().GetBool("debug")

		return cli.Play(args[0], cli.PlayOptions{
			SessionID: sessionID,
			Headless:  headless,
			Debug:     debug,
			Seed:      seed,
		})
	},
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("session", "", "Session ID for resumable play (saved under .dinky/sessions)")
	runCmd.Flags().Bool("headless", false, "Plain output, no prompts or rendering")
	runCmd.Flags().Int64("seed", 0, "Fix the random seed (0 = default)")
}
