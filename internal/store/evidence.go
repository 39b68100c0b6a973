package store

import (
	"os"
	"path/filepath"
	"strings"
)

// Evidence writes one snapshot image per attempt. File names derive from the
// broker name with non-alphanumerics stripped, prefixed by the outcome, so a
// broker retried in the same run overwrites its previous image.
type Evidence struct {
	dir string
}

// NewEvidence points at an evidence directory.
func NewEvidence(dir string) *Evidence {
	return &Evidence{dir: dir}
}

// Write stores the snapshot and returns its path.
func (e *Evidence) Write(brokerName string, success bool, image []byte) (string, error) {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", err
	}
	prefix := "failure-"
	if success {
		prefix = "success-"
	}
	path := filepath.Join(e.dir, prefix+sanitizeName(brokerName)+".png")
	if err := os.WriteFile(path, image, 0o644); err != nil {
		return "", err
	}
	return path, nil
}

func sanitizeName(name string) string {
	var b strings.Builder
	for _, r := range name {
		if (r >= 'a' && r <= 'z') || (r >= 'A' && r <= 'Z') || (r >= '0' && r <= '9') {
			b.WriteRune(r)
		}
	}
	if b.Len() == 0 {
		return "broker"
	}
	return b.String()
}
