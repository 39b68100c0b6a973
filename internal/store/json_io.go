// Package store implements the flat-file persistence behind the opt-out
// workflow: the broker catalog, the user profile, the per-run session log,
// and the evidence image directory. Everything is schema-validated JSON or
// raw bytes; there is no database.
package store

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
)

// ErrNotFound reports a store file that does not exist yet.
var ErrNotFound = errors.New("store: file not found")

func readJSON(path string, out any) error {
	b, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal(b, out)
}

// writeJSON writes JSON via a temp file then rename so a crash mid-write
// never leaves a truncated store behind.
func writeJSON(path string, v any, mode os.FileMode) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, b, mode); err != nil {
		return err
	}
	return os.Rename(tmp, path)
}
