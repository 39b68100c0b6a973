package main

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/matt-meaningfulgigs/data-killer/internal/model"
	"github.com/matt-meaningfulgigs/data-killer/internal/store"
)

// writeTestConfig writes a minimal config rooted in a temp dir so commands
// never touch real user data.
func writeTestConfig(t *testing.T) (cfgPath, dataDir string) {
	t.Helper()
	dataDir = t.TempDir()
	cfgPath = filepath.Join(dataDir, "config.yaml")
	content := fmt.Sprintf("log:\n  level: error\n  file: %q\nstorage:\n  data_dir: %q\n",
		filepath.Join(dataDir, "datakiller.log"), dataDir)
	if err := os.WriteFile(cfgPath, []byte(content), 0o644); err != nil {
		t.Fatalf("write config: %v", err)
	}
	return cfgPath, dataDir
}

func runCommand(t *testing.T, stdin string, args ...string) (string, error) {
	t.Helper()
	cmd := NewRootCmd()
	var buf bytes.Buffer
	cmd.SetOut(&buf)
	cmd.SetErr(&buf)
	cmd.SetIn(strings.NewReader(stdin))
	cmd.SetArgs(args)
	err := cmd.Execute()
	return buf.String(), err
}

func TestRootHasSubcommands(t *testing.T) {
	root := NewRootCmd()
	want := map[string]bool{"run": false, "profile": false, "brokers": false, "report": false, "version": false}
	for _, c := range root.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("subcommand %q missing", name)
		}
	}
}

func TestVersionCmd(t *testing.T) {
	out, err := runCommand(t, "", "version")
	if err != nil {
		t.Fatalf("version error: %v", err)
	}
	if !strings.Contains(out, "datakiller version") {
		t.Errorf("output = %q, want version banner", out)
	}
}

func TestProfileShowWithoutProfile(t *testing.T) {
	cfgPath, _ := writeTestConfig(t)
	out, err := runCommand(t, "", "profile", "--show", "--config", cfgPath)
	if err != nil {
		t.Fatalf("profile --show error: %v", err)
	}
	if !strings.Contains(out, "No profile saved.") {
		t.Errorf("output = %q, want no-profile notice", out)
	}
}

func TestProfileShowWithProfile(t *testing.T) {
	cfgPath, dataDir := writeTestConfig(t)
	user := model.UserProfile{
		FirstName:   "Ada",
		LastName:    "Lovelace",
		Email:       "ada@example.com",
		Street:      "12 Analytical Way",
		City:        "Austin",
		State:       "TX",
		Zip:         "78701",
		Phone:       "512-555-0100",
		DateOfBirth: "1985-12-10",
	}
	if err := store.NewProfile(filepath.Join(dataDir, "profile.json")).Save(user); err != nil {
		t.Fatalf("seed profile: %v", err)
	}

	out, err := runCommand(t, "", "profile", "--show", "--config", cfgPath)
	if err != nil {
		t.Fatalf("profile --show error: %v", err)
	}
	if !strings.Contains(out, "Ada Lovelace") {
		t.Errorf("output = %q, want profile details", out)
	}
}

func TestReportWithoutSession(t *testing.T) {
	cfgPath, _ := writeTestConfig(t)
	_, err := runCommand(t, "", "report", "--config", cfgPath)
	if err == nil || !strings.Contains(err.Error(), "no session on record") {
		t.Errorf("error = %v, want no-session message", err)
	}
}

func TestReportRendersPersistedSession(t *testing.T) {
	cfgPath, dataDir := writeTestConfig(t)
	end := time.Now()
	session := model.RemovalSession{
		ID:        "sess-1",
		User:      model.UserProfile{FirstName: "Ada", LastName: "Lovelace"},
		StartTime: end.Add(-time.Hour),
		EndTime:   &end,
		Results: []model.RemovalAttemptResult{
			{BrokerName: "spokeo", Success: true, Details: "Success confirmed: Thank you"},
		},
	}
	if err := store.NewSessionStore(filepath.Join(dataDir, "session.json")).Save(session); err != nil {
		t.Fatalf("seed session: %v", err)
	}

	out, err := runCommand(t, "", "report", "--config", cfgPath)
	if err != nil {
		t.Fatalf("report error: %v", err)
	}
	for _, want := range []string{"# Removal Session Report", "spokeo", "Success confirmed: Thank you"} {
		if !strings.Contains(out, want) {
			t.Errorf("report missing %q", want)
		}
	}
}

func TestBrokersListAndInspect(t *testing.T) {
	cfgPath, dataDir := writeTestConfig(t)
	brokers := []model.BrokerDefinition{
		{
			Name:      "spokeo",
			URL:       "https://www.spokeo.com",
			OptOutURL: "https://www.spokeo.com/optout",
			Learned: &model.LearnedInstructions{
				Instructions: "click the footer privacy link first",
				Confidence:   8,
				UpdatedAt:    time.Now(),
			},
		},
		{Name: "whitepages", URL: "https://www.whitepages.com", OptOutURL: "https://www.whitepages.com/suppression"},
	}
	if err := store.NewCatalog(filepath.Join(dataDir, "brokers.json")).Save(brokers); err != nil {
		t.Fatalf("seed catalog: %v", err)
	}

	out, err := runCommand(t, "", "brokers", "list", "--config", cfgPath)
	if err != nil {
		t.Fatalf("brokers list error: %v", err)
	}
	if !strings.Contains(out, "spokeo") || !strings.Contains(out, "whitepages") {
		t.Errorf("list output = %q, want both brokers", out)
	}

	out, err = runCommand(t, "", "brokers", "inspect", "spokeo", "--config", cfgPath)
	if err != nil {
		t.Fatalf("brokers inspect error: %v", err)
	}
	if !strings.Contains(out, "click the footer privacy link first") {
		t.Errorf("inspect output = %q, want learned instructions", out)
	}

	if _, err := runCommand(t, "", "brokers", "inspect", "nobody", "--config", cfgPath); err == nil {
		t.Error("inspect of unknown broker must fail")
	}
}

func TestBrokersReset(t *testing.T) {
	cfgPath, dataDir := writeTestConfig(t)
	catalogPath := filepath.Join(dataDir, "brokers.json")
	brokers := []model.BrokerDefinition{{
		Name:      "spokeo",
		URL:       "https://www.spokeo.com",
		OptOutURL: "https://www.spokeo.com/optout",
		Learned: &model.LearnedInstructions{
			Instructions: "something learned",
			Confidence:   7,
			UpdatedAt:    time.Now(),
		},
	}}
	if err := store.NewCatalog(catalogPath).Save(brokers); err != nil {
		t.Fatalf("seed catalog: %v", err)
	}

	if _, err := runCommand(t, "", "brokers", "reset", "spokeo", "--config", cfgPath); err != nil {
		t.Fatalf("brokers reset error: %v", err)
	}

	reloaded, err := store.NewCatalog(catalogPath).Load()
	if err != nil {
		t.Fatalf("reload catalog: %v", err)
	}
	if reloaded[0].Learned != nil {
		t.Error("learned instructions not cleared")
	}
}

func TestRunRefusesWithoutProfile(t *testing.T) {
	cfgPath, dataDir := writeTestConfig(t)
	brokers := []model.BrokerDefinition{{
		Name:      "spokeo",
		URL:       "https://www.spokeo.com",
		OptOutURL: "https://www.spokeo.com/optout",
	}}
	if err := store.NewCatalog(filepath.Join(dataDir, "brokers.json")).Save(brokers); err != nil {
		t.Fatalf("seed catalog: %v", err)
	}

	_, err := runCommand(t, "", "run", "--yes", "--config", cfgPath)
	if err == nil || !strings.Contains(err.Error(), "no saved profile") {
		t.Errorf("error = %v, want missing-profile message", err)
	}
}

func TestRunFailsOnMissingCatalog(t *testing.T) {
	cfgPath, _ := writeTestConfig(t)
	_, err := runCommand(t, "", "run", "--yes", "--config", cfgPath)
	if err == nil || !strings.Contains(err.Error(), "catalog load") {
		t.Errorf("error = %v, want catalog setup error", err)
	}
}

func TestSelectBrokers(t *testing.T) {
	all := []model.BrokerDefinition{
		{Name: "Alpha"}, {Name: "Beta"}, {Name: "Gamma"},
	}

	got, err := selectBrokers(all, nil)
	if err != nil || len(got) != 3 {
		t.Errorf("selectBrokers(nil) = %v, %v; want all three", got, err)
	}

	got, err = selectBrokers(all, []string{"beta", " Alpha "})
	if err != nil {
		t.Fatalf("selectBrokers error: %v", err)
	}
	if len(got) != 2 || got[0].Name != "Beta" || got[1].Name != "Alpha" {
		t.Errorf("selectBrokers = %v, want Beta then Alpha", got)
	}

	if _, err := selectBrokers(all, []string{"delta"}); err == nil {
		t.Error("unknown broker name must error")
	}
}
