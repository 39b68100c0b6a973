package store

import (
	"fmt"

	"github.com/matt-meaningfulgigs/data-killer/internal/model"
)

// SessionStore persists the running session. The file is overwritten after
// every broker so it is always a valid, current snapshot; a killed run keeps
// everything up to the in-flight broker.
type SessionStore struct {
	path string
}

// NewSessionStore points at a session log file.
func NewSessionStore(path string) *SessionStore {
	return &SessionStore{path: path}
}

// Save overwrites the session snapshot.
func (s *SessionStore) Save(session model.RemovalSession) error {
	return writeJSON(s.path, session, 0o600)
}

// Load reads a persisted session, e.g. for post-hoc reporting.
func (s *SessionStore) Load() (model.RemovalSession, error) {
	var session model.RemovalSession
	if err := readJSON(s.path, &session); err != nil {
		return model.RemovalSession{}, fmt.Errorf("session log %s: %w", s.path, err)
	}
	return session, nil
}
