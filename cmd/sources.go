package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/JakeFAU/eventwatch/internal/registry"
	"github.com/JakeFAU/eventwatch/internal/report"
)

func newSourcesCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "sources",
		Short: "Lists the configured venue sources",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := resolveSession(cmd.Context())
			if err != nil {
				return err
			}
			sources, err := registry.Load(s.cfg.Sources)
			if err != nil {
				return fmt.Errorf("load sources: %w", err)
			}
			report.NewPrinter(cmd.OutOrStdout()).Sources(sources)
			return nil
		},
	}
}
