package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/matt-meaningfulgigs/data-killer/internal/analyzer"
	"github.com/matt-meaningfulgigs/data-killer/internal/model"
	"github.com/matt-meaningfulgigs/data-killer/internal/oracle"
	"github.com/matt-meaningfulgigs/data-killer/internal/store"
)

// NewBrokersCmd creates the brokers command group for inspecting and
// maintaining the broker catalog.
func NewBrokersCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "brokers",
		Short: "Inspect and maintain the broker catalog",
	}
	cmd.AddCommand(newBrokersListCmd())
	cmd.AddCommand(newBrokersInspectCmd())
	cmd.AddCommand(newBrokersResetCmd())
	cmd.AddCommand(newBrokersAnalyzeCmd())
	return cmd
}

func newBrokersListCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "list",
		Short: "List the brokers in the catalog",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cfg, _, err := loadSetup(cmd)
			if err != nil {
				return err
			}
			brokers, err := store.NewCatalog(cfg.Storage.CatalogPath()).Load()
			if err != nil {
				return fmt.Errorf("loading catalog: %w", err)
			}

			t := table.NewWriter()
			t.SetOutputMirror(cmd.OutOrStdout())
			t.AppendHeader(table.Row{"Broker", "Opt-Out URL", "ID Upload", "Learned"})
			for _, b := range brokers {
				learned := "-"
				if b.Learned != nil {
					learned = fmt.Sprintf("yes (%d/10, %s)",
						b.Learned.Confidence, b.Learned.UpdatedAt.Format("2006-01-02"))
				}
				idUpload := "no"
				if b.RequiresIDUpload {
					idUpload = "yes"
				}
				t.AppendRow(table.Row{b.Name, b.OptOutURL, idUpload, learned})
			}
			t.SetStyle(table.StyleRounded)
			t.Render()
			return nil
		},
	}
}

func newBrokersInspectCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "inspect <name>",
		Short: "Show everything stored about one broker",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadSetup(cmd)
			if err != nil {
				return err
			}
			brokers, err := store.NewCatalog(cfg.Storage.CatalogPath()).Load()
			if err != nil {
				return fmt.Errorf("loading catalog: %w", err)
			}

			name := strings.ToLower(args[0])
			for _, b := range brokers {
				if strings.ToLower(b.Name) != name {
					continue
				}
				out := cmd.OutOrStdout()
				fmt.Fprintf(out, "Name:               %s\n", b.Name)
				fmt.Fprintf(out, "URL:                %s\n", b.URL)
				fmt.Fprintf(out, "Opt-out URL:        %s\n", b.OptOutURL)
				fmt.Fprintf(out, "Requires ID upload: %t\n", b.RequiresIDUpload)
				if b.Notes != "" {
					fmt.Fprintf(out, "Notes:              %s\n", b.Notes)
				}
				if b.ManualInstructions != "" {
					fmt.Fprintf(out, "Manual steps:       %s\n", b.ManualInstructions)
				}
				if b.Learned != nil {
					fmt.Fprintf(out, "Learned (%d/10, %s):\n  %s\n",
						b.Learned.Confidence,
						b.Learned.UpdatedAt.Format("2006-01-02 15:04"),
						b.Learned.Instructions)
				}
				return nil
			}
			return fmt.Errorf("broker %q not in catalog", args[0])
		},
	}
}

func newBrokersResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset <name>",
		Short: "Discard a broker's learned instructions",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, _, err := loadSetup(cmd)
			if err != nil {
				return err
			}
			catalog := store.NewCatalog(cfg.Storage.CatalogPath())
			updated, err := catalog.UpdateBroker(args[0], func(b *model.BrokerDefinition) {
				b.Learned = nil
			})
			if err != nil {
				return fmt.Errorf("resetting broker: %w", err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Learned instructions cleared for %s.\n", updated.Name)
			return nil
		},
	}
}

// newBrokersAnalyzeCmd runs the advisory structural page analysis against
// page context piped on stdin. It is a diagnostic aid and never feeds back
// into the workflow.
func newBrokersAnalyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze <name>",
		Short: "Structurally analyze page context read from stdin",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := loadSetup(cmd)
			if err != nil {
				return err
			}

			pageContext, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("reading page context: %w", err)
			}
			if len(strings.TrimSpace(string(pageContext))) == 0 {
				return fmt.Errorf("no page context on stdin")
			}

			browser := oracle.NewBrowser(cfg, logger)
			catalog := store.NewCatalog(cfg.Storage.CatalogPath())
			a := analyzer.New(browser, catalog, logger)

			result := a.AnalyzePage(cmd.Context(), args[0], string(pageContext))

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "Page type:  %s\n", result.PageType)
			fmt.Fprintf(out, "Confidence: %d/10\n", result.Confidence)
			if len(result.Steps) > 0 {
				fmt.Fprintln(out, "Steps:")
				for i, s := range result.Steps {
					fmt.Fprintf(out, "  %d. %s\n", i+1, s)
				}
			}
			if len(result.RequiredFields) > 0 {
				fmt.Fprintf(out, "Required fields:  %s\n", strings.Join(result.RequiredFields, ", "))
			}
			if len(result.RequiredActions) > 0 {
				fmt.Fprintf(out, "Required actions: %s\n", strings.Join(result.RequiredActions, ", "))
			}
			return nil
		},
	}
}
