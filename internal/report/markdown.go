// Package report renders a finished removal session as a Markdown document
// suitable for sharing or post-hoc audit.
package report

import (
	"io"
	"strconv"
	"strings"

	"github.com/nao1215/markdown"

	"github.com/matt-meaningfulgigs/data-killer/internal/model"
)

// MarkdownWriter renders session reports in Markdown.
type MarkdownWriter struct {
	output io.Writer
}

func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{output: output}
}

// Write renders the full session report.
func (w *MarkdownWriter) Write(session model.RemovalSession) error {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, session)
	w.writeSummary(md, session)
	w.writeResults(md, session)
	w.writeFooter(md)

	return md.Build()
}

func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, session model.RemovalSession) {
	md.H1("Removal Session Report")
	md.PlainText("")

	ended := "in progress"
	if session.EndTime != nil {
		ended = session.EndTime.Format("2006-01-02 15:04:05 MST")
	}
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Session", "`" + session.ID + "`"},
			{"Subject", session.User.FullName()},
			{"Started", session.StartTime.Format("2006-01-02 15:04:05 MST")},
			{"Ended", ended},
			{"Brokers Processed", strconv.Itoa(len(session.Results))},
		},
	})
	md.PlainText("")
}

func (w *MarkdownWriter) writeSummary(md *markdown.Markdown, session model.RemovalSession) {
	md.H2("Outcome Summary")
	md.PlainText("")

	tally := session.Tally()
	md.Table(markdown.TableSet{
		Header: []string{"Outcome", "Count"},
		Rows: [][]string{
			{"✅ Succeeded", strconv.Itoa(tally.Succeeded)},
			{"❌ Failed", strconv.Itoa(tally.Failed)},
			{"**Total**", "**" + strconv.Itoa(len(session.Results)) + "**"},
		},
	})
	md.PlainText("")

	switch {
	case len(session.Results) == 0:
		md.Note("No brokers were processed in this session.")
	case tally.Failed == 0:
		md.Tip("Every opt-out request in this session succeeded.")
	case tally.Succeeded == 0:
		md.Cautionf("All %d attempts failed. Review the diagnoses below before rerunning.", tally.Failed)
	default:
		md.Warningf("%d attempt(s) failed and may need manual follow-up.", tally.Failed)
	}
	md.PlainText("")
}

func (w *MarkdownWriter) writeResults(md *markdown.Markdown, session model.RemovalSession) {
	md.H2("Per-Broker Results")
	md.PlainText("")

	if len(session.Results) == 0 {
		md.PlainText("No results recorded.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(session.Results))
	for i, r := range session.Results {
		outcome := "❌ Failed"
		if r.Success {
			outcome = "✅ Succeeded"
		}
		detail := r.Details
		if detail == "" {
			detail = r.Error
		}
		evidence := "-"
		if r.EvidencePath != "" {
			evidence = "`" + r.EvidencePath + "`"
		}
		rows[i] = []string{
			r.BrokerName,
			outcome,
			truncate(detail, 70),
			evidence,
		}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Broker", "Outcome", "Detail", "Evidence"},
		Rows:   rows,
	})
	md.PlainText("")

	for _, r := range session.Results {
		if r.Diagnosis == nil {
			continue
		}
		md.Details("Diagnosis: "+r.BrokerName, diagnosisBody(r.Diagnosis))
	}
	md.PlainText("")
}

func diagnosisBody(d *model.Diagnosis) string {
	var sb strings.Builder
	sb.WriteString("\n**Problem:** ")
	sb.WriteString(d.Problem)
	sb.WriteString("\n\n**Fix:** ")
	sb.WriteString(d.Fix)
	if len(d.NextSteps) > 0 {
		sb.WriteString("\n\n**Next steps:**\n")
		for i, s := range d.NextSteps {
			sb.WriteString(strconv.Itoa(i + 1))
			sb.WriteString(". ")
			sb.WriteString(s)
			sb.WriteString("\n")
		}
	}
	sb.WriteString("\n**Confidence:** ")
	sb.WriteString(strconv.Itoa(d.Confidence))
	sb.WriteString("/10\n")
	return sb.String()
}

func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainText("*Generated by datakiller.*")
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
