package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/JakeFAU/eventwatch/internal/app"
	"github.com/JakeFAU/eventwatch/internal/classifier"
	"github.com/JakeFAU/eventwatch/internal/config"
)

type explainer interface {
	Explain(title, description string) classifier.Decision
}

var newClassifier = func(cfg config.Config, logger *zap.Logger) (explainer, error) {
	return app.NewClassifier(cfg, logger)
}

func newClassifyCmd() *cobra.Command {
	var title, description string
	cmd := &cobra.Command{
		Use:   "classify",
		Short: "Shows whether a title and description count as involvement",
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := resolveSession(cmd.Context())
			if err != nil {
				return err
			}
			cls, err := newClassifier(s.cfg, s.logger)
			if err != nil {
				return err
			}
			d := cls.Explain(title, description)
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "involved: %t\nstage: %s\n", d.Involved, d.Stage)
			if d.Detail != "" {
				fmt.Fprintf(out, "trigger: %s\n", d.Detail)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&title, "title", "", "event title")
	cmd.Flags().StringVar(&description, "description", "", "event description")
	_ = cmd.MarkFlagRequired("title")
	return cmd
}
