package main

import (
	"context"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/loreguard-ai/loreguard/internal/config"
)

var (
	configFile string
	verbose    bool

	// cfg is populated by loadConfig before any subcommand runs.
	cfg *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "loreguard",
	Short: "Loreguard - content security and policy enforcement for AI agents",
	Long: `Loreguard scans, redacts, and polices content flowing through AI
agent fleets. It combines a secrets/PII scanner library, a layered
redaction pipeline for cross-tenant sharing, and a guardrail engine
that evaluates operational and content rules against agent events.`,
	PersistentPreRunE: loadConfig,
	SilenceUsage:      true,
	SilenceErrors:     true,
}

// Execute runs the root command with signal handling.
func Execute(ctx context.Context) error {
	ctx, cancel := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	return rootCmd.ExecuteContext(ctx)
}

// loadConfig loads configuration and wires the default logger before any
// command runs. A missing config file falls back to defaults so ad-hoc
// commands like scan work without setup.
func loadConfig(cmd *cobra.Command, args []string) error {
	if cmd.Name() == "version" || cmd.Name() == "help" {
		return nil
	}

	loader := config.NewLoader(config.NewValidator())
	loaded, err := loader.LoadWithDefaults(configFile)
	if err != nil {
		return err
	}
	cfg = loaded

	slog.SetDefault(newLogger(cfg.Logging))
	return nil
}

func newLogger(lc config.LoggingConfig) *slog.Logger {
	level := slog.LevelInfo
	switch strings.ToLower(lc.Level) {
	case "debug":
		level = slog.LevelDebug
	case "warn":
		level = slog.LevelWarn
	case "error":
		level = slog.LevelError
	}
	if verbose {
		level = slog.LevelDebug
	}

	opts := &slog.HandlerOptions{Level: level}
	var handler slog.Handler
	if lc.Format == "json" {
		handler = slog.NewJSONHandler(os.Stderr, opts)
	} else {
		handler = slog.NewTextHandler(os.Stderr, opts)
	}
	return slog.New(handler)
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configFile, "config", "loreguard.yaml", "Path to config file")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable debug logging")

	rootCmd.AddCommand(serveCmd)
	rootCmd.AddCommand(scanCmd)
	rootCmd.AddCommand(redactCmd)
	rootCmd.AddCommand(rulesCmd)
	rootCmd.AddCommand(reviewCmd)
	rootCmd.AddCommand(versionCmd)
}
