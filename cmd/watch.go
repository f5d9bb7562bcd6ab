package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/eventwatch/internal/api"
	"github.com/JakeFAU/eventwatch/internal/app"
)

const shutdownTimeout = 10 * time.Second

func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Runs passes on a schedule and serves health and metrics endpoints",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := resolveSession(cmd.Context())
			if err != nil {
				return err
			}
			a, err := newApp(cmd.Context(), s.cfg, s.logger, cmd.OutOrStdout())
			if err != nil {
				return fmt.Errorf("initialize application services: %w", err)
			}
			defer a.Close()
			return watch(cmd.Context(), s, a)
		},
	}
}

func watch(ctx context.Context, s *session, runner app.Runner) error {
	sched, err := app.NewScheduler(runner, s.cfg.Watch.Schedule, s.logger)
	if err != nil {
		return err
	}
	srv := &http.Server{
		Addr:              s.cfg.Watch.ListenAddr,
		Handler:           api.NewServer(sched, s.logger).Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}

	sched.Start(ctx)
	defer sched.Stop()
	if s.cfg.Watch.RunOnStart {
		sched.Trigger()
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("ops server listening", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
		close(errCh)
	}()

	select {
	case <-ctx.Done():
		s.logger.Info("shutdown requested")
	case err := <-errCh:
		if err != nil {
			return fmt.Errorf("ops server: %w", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		s.logger.Warn("ops server shutdown failed", zap.Error(err))
	}
	return nil
}
