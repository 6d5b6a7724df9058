package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/nao1215/annoscan/internal/model"
)

// Labels of the two-line match listing. They are padded to the same width
// so the values line up.
const (
	ClassNameLabel      = "ClassName      : "
	AnnotationNameLabel = "AnnotationName : "
)

// SimpleWriter prints one line pair per match:
//
//	ClassName      : com.example.Foo
//	AnnotationName : com.example.Anno
//
// Nothing else is written unless a summary or details are requested, so the
// output can be piped to other tools.
type SimpleWriter struct {
	baseWriter

	// summary appends candidate, parse and failure counts.
	summary bool

	// details prints element values and locations under each match.
	details bool
}

// SimpleWriterOption configures a SimpleWriter.
type SimpleWriterOption func(*SimpleWriter)

// WithSummary appends a summary footer after the matches.
func WithSummary(summary bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.summary = summary
	}
}

// WithDetails prints the rendered annotation and file location of each match.
func WithDetails(details bool) SimpleWriterOption {
	return func(w *SimpleWriter) {
		w.details = details
	}
}

// NewSimpleWriter creates a SimpleWriter that outputs to the given writer.
func NewSimpleWriter(output io.Writer, opts ...SimpleWriterOption) *SimpleWriter {
	w := &SimpleWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write prints the matches in discovery order.
func (w *SimpleWriter) Write(report *model.ScanReport) (int, error) {
	var sb strings.Builder

	for _, m := range report.Matches {
		sb.WriteString(ClassNameLabel + m.ClassName + "\n")
		sb.WriteString(AnnotationNameLabel + m.AnnotationName + "\n")
		if w.details {
			if m.Detail != "" {
				sb.WriteString("  " + m.Detail + "\n")
			}
			sb.WriteString("  at " + m.Location + "\n")
		}
	}

	if w.summary {
		w.writeSummary(&sb, report)
	}

	return io.WriteString(w.output, sb.String())
}

// writeSummary writes the counts footer.
func (w *SimpleWriter) writeSummary(sb *strings.Builder, report *model.ScanReport) {
	sb.WriteString(strings.Repeat("-", 60))
	sb.WriteString("\n")
	fmt.Fprintf(sb, "Namespace:   %s\n", displayNamespace(report.Namespace))
	fmt.Fprintf(sb, "Annotation:  %s\n", report.Annotation)
	fmt.Fprintf(sb, "Candidates:  %d\n", report.Candidates)
	fmt.Fprintf(sb, "Parsed:      %d\n", report.Parsed)
	fmt.Fprintf(sb, "Matches:     %d (%d classes)\n", len(report.Matches), len(report.MatchedClasses()))
	fmt.Fprintf(sb, "Failures:    %d\n", len(report.Failures))
	for _, f := range report.Failures {
		fmt.Fprintf(sb, "  [%s] %s\n", f.Kind, f.Location)
	}
	fmt.Fprintf(sb, "Status:      %s\n", statusText(report))
}

// WriteDiff prints added, removed and changed classes, one per line with a
// +, - or ~ marker.
func (w *SimpleWriter) WriteDiff(diff *model.HistoryDiff) (int, error) {
	var sb strings.Builder

	fmt.Fprintf(&sb, "Scan Comparison: %s\n", diff.Target)
	sb.WriteString(strings.Repeat("=", 60))
	sb.WriteString("\n")
	fmt.Fprintf(&sb, "Previous scan: %s (%d classes)\n",
		diff.Previous.DateScanned.Format("2006-01-02 15:04:05"), len(diff.Previous.MatchedClasses()))
	fmt.Fprintf(&sb, "Current scan:  %s (%d classes)\n",
		diff.Current.DateScanned.Format("2006-01-02 15:04:05"), len(diff.Current.MatchedClasses()))

	if !diff.HasChanges() {
		sb.WriteString("\nNo changes.\n")
		return io.WriteString(w.output, sb.String())
	}

	sb.WriteString("\n")
	for _, name := range diff.Added {
		sb.WriteString("  [+] " + name + "\n")
	}
	for _, name := range diff.Removed {
		sb.WriteString("  [-] " + name + "\n")
	}
	for _, c := range diff.Changed {
		fmt.Fprintf(&sb, "  [~] %s (%s -> %s)\n", c.ClassName, shortDigest(c.OldDigest), shortDigest(c.NewDigest))
	}

	return io.WriteString(w.output, sb.String())
}

// statusText returns the status text based on report state.
func statusText(report *model.ScanReport) string {
	if report.Cancelled {
		return "Cancelled (partial results)"
	}
	if report.ErrorMessage != "" {
		return "Error - " + report.ErrorMessage
	}
	return "Complete"
}

// displayNamespace shows the empty namespace as "(root)".
func displayNamespace(ns model.Namespace) string {
	if ns == "" {
		return "(root)"
	}
	return ns.String()
}

// shortDigest returns the first 12 hex characters of a digest.
func shortDigest(digest string) string {
	if len(digest) <= 12 {
		return digest
	}
	return digest[:12]
}
