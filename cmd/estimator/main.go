package main

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/tuannvm/jira-estimate/internal/config"
	log "github.com/tuannvm/jira-estimate/internal/logging"
)

var (
	configFile string
	logLevel   string
	logFile    string
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "estimator",
		Short:        "Edit story point estimates of the tickets on a Jira board",
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVar(&configFile, "config", "", "Config file (YAML, TOML or JSON); environment variables take precedence")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Write logs to this file instead of stderr")

	rootCmd.AddCommand(
		newScanCmd(),
		newSetCmd(),
		newFillCmd(),
		newServeCmd(),
		newUICmd(),
		newCallCmd(),
	)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	err := rootCmd.ExecuteContext(ctx)
	log.Sync()
	if err != nil {
		os.Exit(1)
	}
}

// loadConfig reads the configuration and sets up logging. quiet discards
// logs unless a log file was given.
func loadConfig(quiet bool) (*config.Config, func(), error) {
	if err := config.LoadFile(configFile); err != nil {
		return nil, nil, err
	}
	cfg := config.NewConfig()
	if logLevel != "" {
		cfg.LogLevel = logLevel
	}

	var (
		w       io.Writer = os.Stderr
		cleanup           = func() {}
	)
	switch {
	case logFile != "":
		f, err := os.OpenFile(logFile, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o600)
		if err != nil {
			return nil, nil, fmt.Errorf("failed to open log file: %w", err)
		}
		w, cleanup = f, func() { _ = f.Close() }
	case quiet:
		w = io.Discard
	}
	log.Init(cfg.LogLevel, w)

	if err := cfg.Validate(); err != nil {
		cleanup()
		return nil, nil, err
	}
	return cfg, cleanup, nil
}
