package main

import (
	"bufio"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/matt-meaningfulgigs/data-killer/internal/model"
	"github.com/matt-meaningfulgigs/data-killer/internal/store"
)

// NewProfileCmd creates the profile command for collecting and saving the
// user profile used in removal requests.
func NewProfileCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "profile",
		Short: "Create or update the saved user profile",
		Long: `Profile interactively collects the personal details brokers require for
an opt-out request and validates them before saving. An existing profile
can be reused or replaced.`,
		RunE: runProfile,
	}
	cmd.Flags().Bool("show", false, "Print the saved profile and exit")
	return cmd
}

func runProfile(cmd *cobra.Command, _ []string) error {
	cfg, _, err := loadSetup(cmd)
	if err != nil {
		return err
	}
	profiles := store.NewProfile(cfg.Storage.ProfilePath())

	existing, found, err := profiles.Load()
	if err != nil {
		return fmt.Errorf("loading profile: %w", err)
	}

	if show, _ := cmd.Flags().GetBool("show"); show {
		if !found {
			fmt.Fprintln(cmd.OutOrStdout(), "No profile saved.")
			return nil
		}
		printProfile(cmd, existing)
		return nil
	}

	out := cmd.OutOrStdout()
	reader := bufio.NewScanner(cmd.InOrStdin())

	if found {
		printProfile(cmd, existing)
		fmt.Fprint(out, "Reuse this profile? [Y/n] ")
		if answer := readLine(reader); answer == "" || answer == "y" || answer == "yes" {
			fmt.Fprintln(out, "Profile unchanged.")
			return nil
		}
	}

	user := model.UserProfile{}
	fields := []struct {
		label  string
		target *string
	}{
		{"First name", &user.FirstName},
		{"Last name", &user.LastName},
		{"Email", &user.Email},
		{"Street address", &user.Street},
		{"City", &user.City},
		{"State (two letters)", &user.State},
		{"Zip code", &user.Zip},
		{"Phone", &user.Phone},
		{"Date of birth (YYYY-MM-DD)", &user.DateOfBirth},
	}
	for _, f := range fields {
		fmt.Fprintf(out, "%s: ", f.label)
		*f.target = readLine(reader)
	}

	if err := user.Validate(); err != nil {
		return fmt.Errorf("profile rejected: %w", err)
	}
	if err := profiles.Save(user); err != nil {
		return fmt.Errorf("saving profile: %w", err)
	}
	fmt.Fprintln(out, "Profile saved.")
	return nil
}

func readLine(scanner *bufio.Scanner) string {
	if !scanner.Scan() {
		return ""
	}
	return strings.TrimSpace(scanner.Text())
}

func printProfile(cmd *cobra.Command, user model.UserProfile) {
	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "Name:    %s\n", user.FullName())
	fmt.Fprintf(out, "Email:   %s\n", user.Email)
	fmt.Fprintf(out, "Address: %s\n", user.FullAddress())
	fmt.Fprintf(out, "Phone:   %s\n", user.Phone)
	fmt.Fprintf(out, "DOB:     %s\n", user.DateOfBirth)
}
