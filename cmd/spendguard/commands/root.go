package commands

import (
	"errors"
	"io/fs"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/spendguard/spendguard/internal/config"
)

var cfgFile string

func NewRoot() *cobra.Command {
	root := &cobra.Command{
		Use:   "spendguard",
		Short: "Expense compliance decision and audit engine",
		Long:  "Spendguard — Deterministic policy verdicts and a tamper-evident audit trail for extracted expense documents. Single binary.",
	}

	root.PersistentFlags().StringVar(&cfgFile, "config", "spendguard.yaml", "config file path")

	root.AddCommand(
		newInitCmd(),
		newEvaluateCmd(),
		newTestCmd(),
		newInsightsCmd(),
		newLogsCmd(),
		newStatusCmd(),
		newServeCmd(),
		newVersionCmd(),
	)

	return root
}

// loadConfig reads the configured file. Only a missing file falls back to
// defaults, so the binary works before `spendguard init`; a corrupt or
// mistyped config is fatal — evaluating documents under silently
// substituted defaults would audit them against the wrong policy.
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return config.Defaults(), nil
		}
		return nil, err
	}
	return cfg, nil
}

// newLogger builds the command-boundary logger at the given level name.
func newLogger(level string) *slog.Logger {
	lvl := slog.LevelInfo
	switch level {
	case "debug":
		lvl = slog.LevelDebug
	case "warn":
		lvl = slog.LevelWarn
	case "error":
		lvl = slog.LevelError
	}
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: lvl}))
}

// quietLogger is for commands whose stdout is the product; only errors
// reach stderr.
func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelError}))
}
