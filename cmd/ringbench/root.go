package main

import (
	"github.com/spf13/cobra"

	"github.com/ringbench/ringbench/internal/logging"
)

var (
	logLevel  string
	logFormat string
)

var rootCmd = &cobra.Command{
	Use:   "ringbench",
	Short: "Drive a block device through io_uring and measure throughput, IOPS, and latency.",
}

func init() {
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "info", "log level: debug, info, warn, error")
	rootCmd.PersistentFlags().StringVar(&logFormat, "log-format", "text", "log format: text or json")

	rootCmd.AddCommand(runCmd)
	rootCmd.AddCommand(devicesCmd)
	rootCmd.AddCommand(monitorCmd)
}

func newLogger() *logging.Logger {
	cfg := logging.DefaultConfig()
	cfg.Format = logFormat
	switch logLevel {
	case "debug":
		cfg.Level = logging.LevelDebug
	case "warn":
		cfg.Level = logging.LevelWarn
	case "error":
		cfg.Level = logging.LevelError
	default:
		cfg.Level = logging.LevelInfo
	}
	return logging.NewLogger(cfg)
}
