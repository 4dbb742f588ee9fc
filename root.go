package main

import (
	"log/slog"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/lmittmann/tint"
	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/tonimelisma/drivegit/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath string
	flagVerbose    bool
)

// Effective configuration and logger, loaded by PersistentPreRunE and
// available to all subcommands.
var (
	rootCfg    *config.Config
	rootLogger *slog.Logger
)

// newRootCmd builds the fully-assembled root command. Called once from
// main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "drivegit",
		Short:   "Mirror a Google Drive folder into a git repository",
		Long: "drivegit listens for Drive change notifications, classifies each change,\n" +
			"downloads and converts content, and commits it to a git repository with\n" +
			"per-author attribution.",
		Version:       version,
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(_ *cobra.Command, _ []string) error {
			// .env is a development convenience; absence is not an error.
			_ = godotenv.Load()

			rootLogger = newLogger(flagVerbose)
			slog.SetDefault(rootLogger)

			cfg, err := config.Resolve(flagConfigPath)
			if err != nil {
				return err
			}

			rootCfg = cfg
			return nil
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "enable debug logging")

	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newSyncCmd())
	cmd.AddCommand(newSetupCmd())
	cmd.AddCommand(newRenewCmd())

	return cmd
}

// newLogger builds the process logger: colorized tint output on a TTY,
// plain text otherwise.
func newLogger(verbose bool) *slog.Logger {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	w := os.Stderr

	if isatty.IsTerminal(w.Fd()) {
		return slog.New(tint.NewHandler(w, &tint.Options{
			Level:      level,
			TimeFormat: time.Kitchen,
		}))
	}

	return slog.New(slog.NewTextHandler(w, &slog.HandlerOptions{Level: level}))
}
