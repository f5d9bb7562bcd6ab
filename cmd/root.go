// Package cmd defines the eventwatch CLI commands.
package cmd

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/eventwatch/internal/app"
	"github.com/JakeFAU/eventwatch/internal/config"
	"github.com/JakeFAU/eventwatch/internal/logging"
	"github.com/JakeFAU/eventwatch/internal/pipeline"
)

type sessionKeyType string

const sessionKey sessionKeyType = "session"

// session is what every subcommand receives from the root hooks.
type session struct {
	cfg    config.Config
	logger *zap.Logger
}

// App is the part of the application the commands drive. Tests replace
// newApp with a fake.
type App interface {
	Run(ctx context.Context) (pipeline.Report, error)
	Close()
}

var newApp = func(ctx context.Context, cfg config.Config, logger *zap.Logger, out io.Writer) (App, error) {
	a, err := app.New(ctx, cfg, logger, out)
	if err != nil {
		return nil, err
	}
	return a, nil
}

func newRootCmd() *cobra.Command {
	var (
		cfgFile string
		dev     bool
	)
	cmd := &cobra.Command{
		Use:   "eventwatch",
		Short: "Watches London venue listings for events involving a tracked person.",
		Long: `eventwatch harvests the event listings of a fixed set of London venues,
keeps the events in which the tracked person is actually involved, and
notifies recipients once per newly seen event.`,
		SilenceUsage: true,

		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
				return fmt.Errorf("load .env: %w", err)
			}
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			if cmd.Flags().Changed("dev") {
				cfg.Logging.Development = dev
			}
			logger, err := logging.New(logging.Config{
				Development: cfg.Logging.Development,
				File:        cfg.Logging.File,
				MaxSizeMB:   cfg.Logging.MaxSizeMB,
				MaxBackups:  cfg.Logging.MaxBackups,
				MaxAgeDays:  cfg.Logging.MaxAgeDays,
			})
			if err != nil {
				return fmt.Errorf("init logger: %w", err)
			}
			zap.ReplaceGlobals(logger)
			cmd.SetContext(context.WithValue(cmd.Context(), sessionKey, &session{cfg: cfg, logger: logger}))
			return nil
		},

		PersistentPostRun: func(cmd *cobra.Command, _ []string) {
			if s, ok := cmd.Context().Value(sessionKey).(*session); ok {
				_ = s.logger.Sync()
			}
		},
	}

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (yaml, json or toml)")
	cmd.PersistentFlags().BoolVar(&dev, "dev", false, "development logging")

	cmd.AddCommand(newRunCmd(), newWatchCmd(), newSourcesCmd(), newClassifyCmd())
	return cmd
}

func resolveSession(ctx context.Context) (*session, error) {
	s, ok := ctx.Value(sessionKey).(*session)
	if !ok || s == nil {
		return nil, errors.New("configuration not loaded")
	}
	return s, nil
}

// Execute runs the root command until it finishes or the process is
// interrupted.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := newRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}
