package report

import (
	"bytes"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/matt-meaningfulgigs/data-killer/internal/model"
)

func testSession() model.RemovalSession {
	end := time.Date(2026, 3, 14, 16, 0, 0, 0, time.UTC)
	return model.RemovalSession{
		ID: "sess-1",
		User: model.UserProfile{
			FirstName: "Ada",
			LastName:  "Lovelace",
		},
		StartTime: time.Date(2026, 3, 14, 15, 0, 0, 0, time.UTC),
		EndTime:   &end,
		Results: []model.RemovalAttemptResult{
			{
				BrokerName:   "spokeo",
				Success:      true,
				Details:      "Success confirmed: Thank you",
				EvidencePath: "/evidence/success-spokeo.png",
			},
			{
				BrokerName: "whitepages",
				Success:    false,
				Error:      "Could not find user listing",
				Diagnosis: &model.Diagnosis{
					Problem:    "listing not surfaced by search",
					Fix:        "search with middle initial",
					NextSteps:  []string{"open advanced search", "add middle initial"},
					Confidence: 7,
				},
			},
		},
	}
}

func TestWriteSessionReport(t *testing.T) {
	var buf bytes.Buffer
	require.NoError(t, NewMarkdownWriter(&buf).Write(testSession()))
	out := buf.String()

	for _, want := range []string{
		"# Removal Session Report",
		"Ada Lovelace",
		"spokeo",
		"whitepages",
		"Success confirmed: Thank you",
		"Could not find user listing",
		"Diagnosis: whitepages",
		"search with middle initial",
		"7/10",
	} {
		assert.Contains(t, out, want)
	}
}

func TestWriteEmptySession(t *testing.T) {
	var buf bytes.Buffer
	session := model.RemovalSession{ID: "sess-2", StartTime: time.Now()}
	require.NoError(t, NewMarkdownWriter(&buf).Write(session))

	out := buf.String()
	assert.Contains(t, out, "No results recorded.")
	assert.Contains(t, out, "in progress")
}

func TestTruncate(t *testing.T) {
	assert.Equal(t, "short", truncate("short", 70))

	long := strings.Repeat("x", 100)
	got := truncate(long, 70)
	assert.Len(t, got, 70)
	assert.True(t, strings.HasSuffix(got, "..."))
}
