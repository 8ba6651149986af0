package main

import (
	"os"

	"github.com/cockroachdb/errors"
	"github.com/spf13/cobra"

	"github.com/contentforge/api/internal/config"
	"github.com/contentforge/api/internal/logger"
)

var cfg *config.Config

var rootCmd = &cobra.Command{
	Use:   "contentforge",
	Short: "ContentForge - multi-phase content generation service",
	Long: `ContentForge runs content requests through research, plan, write and
edit phases and streams progress to WebSocket observers.

Available commands:
  serve     - Start the HTTP API with an in-process worker
  worker    - Run only the background queue worker
  generate  - Run one job locally and print its progress`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		var err error
		cfg, err = config.Load()
		if err != nil {
			return errors.Wrap(err, "failed to load config")
		}
		if err := logger.Initialize(cfg.Server.LogLevel, cfg.Server.JSONLogs); err != nil {
			return errors.Wrap(err, "failed to initialize logger")
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		logger.Sync()
	},
}

func init() {
	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(workerCmd)
	rootCmd.AddCommand(generateCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
