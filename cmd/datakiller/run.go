package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/spf13/cobra"

	"github.com/matt-meaningfulgigs/data-killer/internal/analyzer"
	"github.com/matt-meaningfulgigs/data-killer/internal/facts"
	"github.com/matt-meaningfulgigs/data-killer/internal/model"
	"github.com/matt-meaningfulgigs/data-killer/internal/oracle"
	"github.com/matt-meaningfulgigs/data-killer/internal/session"
	"github.com/matt-meaningfulgigs/data-killer/internal/store"
	"github.com/matt-meaningfulgigs/data-killer/internal/workflow"
)

// NewRunCmd creates the run command, the main entry point for a removal
// session.
func NewRunCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "run [broker...]",
		Short: "Run a removal session against the broker catalog",
		Long: `Run walks the broker catalog and submits an opt-out request on each
broker's site using the saved profile. The session snapshot is persisted
after every broker, so an interrupted run can be audited and resumed.`,
		RunE: runRemovalSession,
	}

	cmd.Flags().StringSlice("broker", nil, "Run only the named broker(s); default is the whole catalog")
	cmd.Flags().BoolP("yes", "y", false, "Skip the confirmation prompt")
	cmd.Flags().Bool("explain", false, "After the run, list brokers needing attention and retry candidates")

	return cmd
}

func runRemovalSession(cmd *cobra.Command, args []string) error {
	cfg, logger, err := loadSetup(cmd)
	if err != nil {
		return err
	}

	catalog := store.NewCatalog(cfg.Storage.CatalogPath())
	brokers, err := catalog.Load()
	if err != nil {
		return &session.SetupError{Stage: "catalog load", Err: err}
	}

	user, found, err := store.NewProfile(cfg.Storage.ProfilePath()).Load()
	if err != nil {
		return &session.SetupError{Stage: "profile load", Err: err}
	}
	if !found {
		return fmt.Errorf("no saved profile; run %q first", "datakiller profile")
	}

	selected, _ := cmd.Flags().GetStringSlice("broker")
	selected = append(selected, args...)
	brokers, err = selectBrokers(brokers, selected)
	if err != nil {
		return err
	}

	if yes, _ := cmd.Flags().GetBool("yes"); !yes {
		fmt.Fprintf(cmd.OutOrStdout(),
			"About to submit removal requests for %s to %d broker(s). Continue? [y/N] ",
			user.FullName(), len(brokers))
		if !confirm(cmd) {
			fmt.Fprintln(cmd.OutOrStdout(), "Aborted.")
			return nil
		}
	}

	ledger, err := facts.NewLedger()
	if err != nil {
		return &session.SetupError{Stage: "fact ledger", Err: err}
	}

	browser := oracle.NewBrowser(cfg, logger)
	if err := browser.Start(cmd.Context()); err != nil {
		return &session.SetupError{Stage: "oracle session", Err: err}
	}
	defer browser.Close()

	engine := workflow.New(
		browser,
		store.NewEvidence(cfg.Storage.EvidencePath()),
		logger,
		workflow.WithAnalyzer(analyzer.New(browser, catalog, logger)),
		workflow.WithLedger(ledger),
		workflow.WithSettleDelay(cfg.Workflow.SettleDelayDuration()),
		workflow.WithExtraSearchFirst(cfg.Workflow.SearchFirst),
	)

	orchestrator := session.NewOrchestrator(
		engine,
		store.NewSessionStore(cfg.Storage.SessionPath()),
		logger,
	).WithLedger(ledger)

	result, err := orchestrator.Run(cmd.Context(), user, brokers)
	if err != nil {
		return err
	}

	printTally(cmd, result)

	if explain, _ := cmd.Flags().GetBool("explain"); explain {
		printExplanation(cmd, orchestrator)
	}
	return nil
}

func selectBrokers(all []model.BrokerDefinition, names []string) ([]model.BrokerDefinition, error) {
	if len(names) == 0 {
		return all, nil
	}
	byName := make(map[string]model.BrokerDefinition, len(all))
	for _, b := range all {
		byName[strings.ToLower(b.Name)] = b
	}
	out := make([]model.BrokerDefinition, 0, len(names))
	for _, n := range names {
		b, ok := byName[strings.ToLower(strings.TrimSpace(n))]
		if !ok {
			return nil, fmt.Errorf("broker %q not in catalog", n)
		}
		out = append(out, b)
	}
	return out, nil
}

func confirm(cmd *cobra.Command) bool {
	scanner := bufio.NewScanner(cmd.InOrStdin())
	if !scanner.Scan() {
		return false
	}
	answer := strings.ToLower(strings.TrimSpace(scanner.Text()))
	return answer == "y" || answer == "yes"
}

func printTally(cmd *cobra.Command, result model.RemovalSession) {
	t := table.NewWriter()
	t.SetOutputMirror(cmd.OutOrStdout())
	t.AppendHeader(table.Row{"Broker", "Outcome", "Reason"})

	for _, r := range result.Results {
		outcome := "failed"
		if r.Success {
			outcome = "succeeded"
		}
		reason := r.Details
		if reason == "" {
			reason = r.Error
		}
		t.AppendRow(table.Row{r.BrokerName, outcome, reason})
	}

	tally := result.Tally()
	t.AppendFooter(table.Row{"Total", fmt.Sprintf("%d ok / %d failed", tally.Succeeded, tally.Failed), ""})
	t.SetStyle(table.StyleRounded)
	t.Render()
}

func printExplanation(cmd *cobra.Command, o *session.Orchestrator) {
	out := cmd.OutOrStdout()

	attention, err := o.NeedsAttention()
	if err == nil && len(attention) > 0 {
		fmt.Fprintln(out, "\nBrokers needing manual attention:")
		for _, name := range attention {
			fmt.Fprintf(out, "  - %s\n", name)
		}
	}

	retries, err := o.RetryCandidates()
	if err == nil && len(retries) > 0 {
		fmt.Fprintln(out, "\nRetry candidates (picked up learned instructions this run):")
		for _, name := range retries {
			fmt.Fprintf(out, "  - %s\n", name)
		}
	}
}
