package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

// version is overridable at build time via -ldflags.
var version = "dev"

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the dinky version",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("dinky", version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
