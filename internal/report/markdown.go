package report

import (
	"fmt"
	"io"
	"strconv"

	"github.com/nao1215/annoscan/internal/model"
	"github.com/nao1215/markdown"
	"github.com/nao1215/markdown/mermaid/piechart"
)

// MarkdownWriter outputs reports as Markdown documents built with
// nao1215/markdown.
type MarkdownWriter struct {
	baseWriter
}

// NewMarkdownWriter creates a MarkdownWriter that outputs to the given writer.
func NewMarkdownWriter(output io.Writer) *MarkdownWriter {
	return &MarkdownWriter{
		baseWriter: newBaseWriter(output),
	}
}

// Write outputs the report in Markdown format.
func (w *MarkdownWriter) Write(report *model.ScanReport) (int, error) {
	md := markdown.NewMarkdown(w.output)

	w.writeHeader(md, report)
	w.writeOutcome(md, report)
	w.writeMatches(md, report)
	w.writeFailures(md, report)
	w.writeFooter(md)

	return len(md.String()), md.Build()
}

// writeHeader writes the title and scan information table.
func (w *MarkdownWriter) writeHeader(md *markdown.Markdown, report *model.ScanReport) {
	md.H1("Annotation Scan Report")
	md.PlainText("")

	roots := "-"
	if len(report.Roots) > 0 {
		roots = ""
		for i, r := range report.Roots {
			if i > 0 {
				roots += "<br>"
			}
			roots += "`" + r + "`"
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Namespace", "`" + displayNamespace(report.Namespace) + "`"},
			{"Annotation", "`" + report.Annotation + "`"},
			{"Class Path", roots},
			{"Scan Date", report.DateScanned.Format("2006-01-02 15:04:05 MST")},
			{"Status", markdownStatus(report)},
		},
	})
	md.PlainText("")
}

// markdownStatus returns the status cell text.
func markdownStatus(report *model.ScanReport) string {
	if report.Cancelled {
		return "⚠️ Cancelled (partial results)"
	}
	if report.ErrorMessage != "" {
		return "❌ Error - " + report.ErrorMessage
	}
	return "✅ Complete"
}

// writeOutcome writes the counts table, pie chart and alert.
func (w *MarkdownWriter) writeOutcome(md *markdown.Markdown, report *model.ScanReport) {
	s := NewSummary(report)

	md.H2("Summary")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Count"},
		Rows: [][]string{
			{"Candidate class files", strconv.Itoa(s.Candidates)},
			{"Parsed", strconv.Itoa(s.Parsed)},
			{"Failed", strconv.Itoa(s.Failures)},
			{"Matching classes", strconv.Itoa(s.MatchedClasses)},
			{"**Matches**", "**" + strconv.Itoa(s.Matches) + "**"},
		},
	})
	md.PlainText("")

	if s.Candidates > 0 {
		w.writePieChart(md, s)
	}

	switch {
	case report.Cancelled:
		md.Warningf("The scan was cancelled after reading %d of %d class files.", s.Parsed+s.Failures, s.Candidates)
	case s.Failures > 0:
		md.Importantf("%d class file(s) could not be read and were skipped.", s.Failures)
	case s.Candidates == 0:
		md.Note("No class files were found under this namespace.")
	case s.Matches == 0:
		md.Note("No class carries the annotation.")
	default:
		md.Tip(fmt.Sprintf("%d class(es) carry the annotation.", s.MatchedClasses))
	}
	md.PlainText("")
}

// writePieChart writes a mermaid pie chart of per-file outcomes.
func (w *MarkdownWriter) writePieChart(md *markdown.Markdown, s Summary) {
	chart := piechart.NewPieChart(
		io.Discard,
		piechart.WithTitle("Class File Outcomes"),
		piechart.WithShowData(true),
	)

	unmatched := s.Parsed - s.MatchedClasses
	if s.MatchedClasses > 0 {
		chart.LabelAndIntValue("Annotated", uint64(s.MatchedClasses)) //nolint:gosec // counts are non-negative
	}
	if unmatched > 0 {
		chart.LabelAndIntValue("Not annotated", uint64(unmatched)) //nolint:gosec // counts are non-negative
	}
	if s.Failures > 0 {
		chart.LabelAndIntValue("Failed", uint64(s.Failures)) //nolint:gosec // counts are non-negative
	}

	md.PlainText("")
	md.CodeBlocks(markdown.SyntaxHighlightMermaid, chart.String())
	md.PlainText("")
}

// writeMatches writes the matches table.
func (w *MarkdownWriter) writeMatches(md *markdown.Markdown, report *model.ScanReport) {
	md.H2("Matches")
	md.PlainText("")

	if len(report.Matches) == 0 {
		md.PlainText("No matching classes.")
		md.PlainText("")
		return
	}

	rows := make([][]string, len(report.Matches))
	for i, m := range report.Matches {
		detail := m.Detail
		if detail == "" {
			detail = "-"
		}
		rows[i] = []string{
			"`" + m.ClassName + "`",
			"`" + truncateString(detail, 60) + "`",
			truncateString(m.Location, 60),
		}
	}

	md.Table(markdown.TableSet{
		Header: []string{"Class", "Annotation", "Location"},
		Rows:   rows,
	})
	md.PlainText("")
}

// writeFailures writes the skipped files list.
func (w *MarkdownWriter) writeFailures(md *markdown.Markdown, report *model.ScanReport) {
	if len(report.Failures) == 0 {
		return
	}

	md.H2("Skipped Files")
	md.PlainText("")

	items := make([]string, len(report.Failures))
	for i, f := range report.Failures {
		items[i] = "**" + f.Kind.String() + "** `" + f.Location + "`"
	}
	md.BulletList(items...)
	md.PlainText("")

	for _, f := range report.Failures {
		md.Details(f.Location, f.Message)
	}
	md.PlainText("")
}

// WriteDiff outputs a history comparison in Markdown format.
func (w *MarkdownWriter) WriteDiff(diff *model.HistoryDiff) (int, error) {
	md := markdown.NewMarkdown(w.output)

	md.H1("Scan Comparison: " + diff.Target)
	md.PlainText("")

	prev := NewSummary(diff.Previous)
	curr := NewSummary(diff.Current)
	md.Table(markdown.TableSet{
		Header: []string{"Metric", "Previous", "Current", "Change"},
		Rows: [][]string{
			{"Date", diff.Previous.DateScanned.Format("2006-01-02 15:04"), diff.Current.DateScanned.Format("2006-01-02 15:04"), "-"},
			{"Candidates", strconv.Itoa(prev.Candidates), strconv.Itoa(curr.Candidates), formatDelta(curr.Candidates - prev.Candidates)},
			{"Matching classes", strconv.Itoa(prev.MatchedClasses), strconv.Itoa(curr.MatchedClasses), formatDelta(curr.MatchedClasses - prev.MatchedClasses)},
			{"Failures", strconv.Itoa(prev.Failures), strconv.Itoa(curr.Failures), formatDelta(curr.Failures - prev.Failures)},
		},
	})
	md.PlainText("")

	if !diff.HasChanges() {
		md.Note("No classes were added, removed or changed.")
		md.PlainText("")
		return len(md.String()), md.Build()
	}

	if len(diff.Added) > 0 {
		md.H2("Added (" + strconv.Itoa(len(diff.Added)) + ")")
		md.PlainText("")
		md.BulletList(codeSpans(diff.Added)...)
		md.PlainText("")
	}
	if len(diff.Removed) > 0 {
		md.H2("Removed (" + strconv.Itoa(len(diff.Removed)) + ")")
		md.PlainText("")
		md.BulletList(codeSpans(diff.Removed)...)
		md.PlainText("")
	}
	if len(diff.Changed) > 0 {
		md.H2("Changed (" + strconv.Itoa(len(diff.Changed)) + ")")
		md.PlainText("")
		rows := make([][]string, len(diff.Changed))
		for i, c := range diff.Changed {
			rows[i] = []string{"`" + c.ClassName + "`", shortDigest(c.OldDigest), shortDigest(c.NewDigest)}
		}
		md.Table(markdown.TableSet{
			Header: []string{"Class", "Previous digest", "Current digest"},
			Rows:   rows,
		})
		md.PlainText("")
	}

	return len(md.String()), md.Build()
}

// writeFooter writes the report footer.
func (w *MarkdownWriter) writeFooter(md *markdown.Markdown) {
	md.HorizontalRule()
	md.PlainText("")
	md.PlainTextf("*Report generated by [annoscan](https://github.com/nao1215/annoscan)*")
}

// codeSpans wraps each item in backticks.
func codeSpans(items []string) []string {
	out := make([]string, len(items))
	for i, s := range items {
		out[i] = "`" + s + "`"
	}
	return out
}

// formatDelta formats a numeric delta with sign for display.
func formatDelta(delta int) string {
	if delta > 0 {
		return "+" + strconv.Itoa(delta)
	}
	return strconv.Itoa(delta)
}

// truncateString truncates a string to maxLen bytes with an ellipsis.
func truncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}
