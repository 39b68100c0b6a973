package model

import (
	"errors"
	"fmt"
	"regexp"
	"strings"
	"time"
)

// DateOfBirthLayout is the wire format for the date_of_birth field.
const DateOfBirthLayout = "2006-01-02"

// earliestDateOfBirth is the sanity floor for date_of_birth validation.
var earliestDateOfBirth = time.Date(1900, time.January, 1, 0, 0, 0, 0, time.UTC)

var (
	emailPattern = regexp.MustCompile(`^[a-zA-Z0-9._%+\-]+@[a-zA-Z0-9.\-]+\.[a-zA-Z]{2,}$`)
	zipPattern   = regexp.MustCompile(`^\d{5}(-\d{4})?$`)
	statePattern = regexp.MustCompile(`^[A-Za-z]{2}$`)
	digitPattern = regexp.MustCompile(`\d`)
)

// UserProfile holds the identifying information submitted to broker opt-out
// forms. It is collected once per run and treated as read-only by the
// workflow.
type UserProfile struct {
	FirstName   string `json:"first_name"`
	LastName    string `json:"last_name"`
	Email       string `json:"email"`
	Street      string `json:"street"`
	City        string `json:"city"`
	State       string `json:"state"`
	Zip         string `json:"zip"`
	Phone       string `json:"phone"`
	DateOfBirth string `json:"date_of_birth"`
	Notes       string `json:"notes,omitempty"`
}

// FullName returns the display name used in search instructions.
func (u UserProfile) FullName() string {
	return strings.TrimSpace(u.FirstName + " " + u.LastName)
}

// FullAddress returns the single-line postal address used in search and fill
// instructions.
func (u UserProfile) FullAddress() string {
	return fmt.Sprintf("%s, %s, %s %s", u.Street, u.City, strings.ToUpper(u.State), u.Zip)
}

// Validate checks every required field against its grammar. It returns the
// first violation found so interactive collection can re-prompt field by
// field.
func (u UserProfile) Validate() error {
	required := []struct {
		name  string
		value string
	}{
		{"first_name", u.FirstName},
		{"last_name", u.LastName},
		{"email", u.Email},
		{"street", u.Street},
		{"city", u.City},
		{"state", u.State},
		{"zip", u.Zip},
		{"phone", u.Phone},
		{"date_of_birth", u.DateOfBirth},
	}
	for _, f := range required {
		if strings.TrimSpace(f.value) == "" {
			return fmt.Errorf("%s is required", f.name)
		}
	}

	if !emailPattern.MatchString(u.Email) {
		return fmt.Errorf("email %q is not a valid address", u.Email)
	}
	if !statePattern.MatchString(u.State) {
		return fmt.Errorf("state %q must be a two-letter code", u.State)
	}
	if !zipPattern.MatchString(u.Zip) {
		return fmt.Errorf("zip %q must be 5 digits or ZIP+4", u.Zip)
	}
	if len(digitPattern.FindAllString(u.Phone, -1)) < 10 {
		return fmt.Errorf("phone %q must contain at least 10 digits", u.Phone)
	}

	dob, err := time.Parse(DateOfBirthLayout, u.DateOfBirth)
	if err != nil {
		return fmt.Errorf("date_of_birth %q must be YYYY-MM-DD: %w", u.DateOfBirth, err)
	}
	if dob.After(time.Now()) {
		return errors.New("date_of_birth cannot be in the future")
	}
	if dob.Before(earliestDateOfBirth) {
		return errors.New("date_of_birth cannot be before 1900-01-01")
	}

	return nil
}
