package store

import (
	"errors"
	"fmt"

	"github.com/matt-meaningfulgigs/data-killer/internal/model"
)

// Profile persists the user profile between runs. Absence is not an error;
// it just means the CLI collects a fresh one.
type Profile struct {
	path string
}

// NewProfile points at a profile file.
func NewProfile(path string) *Profile {
	return &Profile{path: path}
}

// Load returns the saved profile and whether one existed. A present but
// invalid profile is an error so a corrupted file never silently feeds the
// workflow.
func (p *Profile) Load() (model.UserProfile, bool, error) {
	var user model.UserProfile
	err := readJSON(p.path, &user)
	if errors.Is(err, ErrNotFound) {
		return model.UserProfile{}, false, nil
	}
	if err != nil {
		return model.UserProfile{}, false, fmt.Errorf("user profile %s: %w", p.path, err)
	}
	if err := user.Validate(); err != nil {
		return model.UserProfile{}, false, fmt.Errorf("user profile %s: %w", p.path, err)
	}
	return user, true, nil
}

// Save validates and writes the profile.
func (p *Profile) Save(user model.UserProfile) error {
	if err := user.Validate(); err != nil {
		return err
	}
	return writeJSON(p.path, user, 0o600)
}
