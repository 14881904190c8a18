package main

import (
	"github.com/spf13/cobra"

	"github.com/propapanda/dinky/internal/cli"
)

// serveCmd exposes a story's session API over HTTP.
var serveCmd = &cobra.Command{
	Use:   "serve <script.ink>",
	Short: "Serve the story's session API over HTTP",
	Args:  cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		configPath, _ := cmd.Flags().GetString("config")
		cfg, err := cli.LoadServeConfig(configPath)
		if err != nil {
			return err
		}
		if cmd.Flags().Changed("addr") {
			cfg.Addr, _ = cmd.Flags().GetString("addr")
		}
		if cmd.Flags().Changed("store") {
			cfg.Store, _ = cmd.Flags().GetString("store")
		}
		if cmd.Flags().Changed("redis-addr") {
			cfg.Redis.Addr, _ = cmd.Flags().GetString("redis-addr")
		}
		return cli.Serve(args[0], cfg)
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)

	serveCmd.Flags().String("config", "", "YAML config file")
	serveCmd.Flags().String("addr", ":8080", "Listen address")
	serveCmd.Flags().String("store", "memory", "Session store: memory or redis")
	serveCmd.Flags().String("redis-addr", "localhost:6379", "Redis address when --store=redis")
}
