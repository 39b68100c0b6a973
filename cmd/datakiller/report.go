package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/matt-meaningfulgigs/data-killer/internal/report"
	"github.com/matt-meaningfulgigs/data-killer/internal/store"
)

// NewReportCmd creates the report command, rendering the persisted session
// snapshot as Markdown.
func NewReportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "report",
		Short: "Render the last session as a Markdown report",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadSetup(cmd)
			if err != nil {
				return err
			}

			session, err := store.NewSessionStore(cfg.Storage.SessionPath()).Load()
			if err != nil {
				if errors.Is(err, store.ErrNotFound) {
					return fmt.Errorf("no session on record; run %q first", "datakiller run")
				}
				return fmt.Errorf("loading session: %w", err)
			}

			out := cmd.OutOrStdout()
			if path, _ := cmd.Flags().GetString("output"); path != "" {
				f, err := os.Create(path)
				if err != nil {
					return fmt.Errorf("creating report file: %w", err)
				}
				defer f.Close()
				out = f
			}
			return report.NewMarkdownWriter(out).Write(session)
		},
	}
	cmd.Flags().StringP("output", "o", "", "Write the report to a file instead of stdout")
	return cmd
}
