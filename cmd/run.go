package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

func newRunCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "run",
		Short: "Runs a single harvest pass and notifies about new events",
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

			rep, err := a.Run(cmd.Context())
			if err != nil {
				return fmt.Errorf("run: %w", err)
			}
			s.logger.Info("run finished",
				zap.String("run_id", rep.RunID),
				zap.Int("relevant", len(rep.Relevant)),
				zap.Int("new", len(rep.New)),
				zap.Int("failed_sources", rep.Failed),
			)
			return nil
		},
	}
}
