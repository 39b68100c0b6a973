package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/matt-meaningfulgigs/data-killer/internal/config"
	applog "github.com/matt-meaningfulgigs/data-killer/internal/log"
)

// NewRootCmd creates the root command for datakiller.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "datakiller",
		Short: "Automated personal data removal from data brokers",
		Long: `datakiller walks a catalog of data-broker opt-out pages and submits a
removal request for your personal information on each one, driven by a
page-understanding oracle. Failed attempts are analyzed and the lesson is
stored against the broker, so the next run can do better.`,
		Version:       getVersion(),
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringP("config", "c", "", "Path to YAML config file")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose logging")

	cmd.AddCommand(NewRunCmd())
	cmd.AddCommand(NewProfileCmd())
	cmd.AddCommand(NewBrokersCmd())
	cmd.AddCommand(NewReportCmd())
	cmd.AddCommand(NewVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	if err := NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

// loadSetup resolves config and builds the PII-redacting logger shared by
// every subcommand.
func loadSetup(cmd *cobra.Command) (config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return config.Config{}, nil, fmt.Errorf("loading config: %w", err)
	}

	level := slog.LevelInfo
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = slog.LevelDebug
	} else {
		switch cfg.Log.Level {
		case "debug":
			level = slog.LevelDebug
		case "warn":
			level = slog.LevelWarn
		case "error":
			level = slog.LevelError
		}
	}

	var out io.Writer = cmd.ErrOrStderr()
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
		if err == nil {
			out = f
		}
	}

	logger := applog.NewRedactedLogger(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
	return cfg, logger, nil
}
