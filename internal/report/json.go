package report

import (
	"encoding/json"
	"io"

	"github.com/nao1215/annoscan/internal/model"
)

// JSONWriter outputs reports in JSON format for tool integration.
type JSONWriter struct {
	baseWriter

	// indent enables pretty-printed JSON output.
	// When false, output is compact (no extra whitespace).
	indent bool

	// indentPrefix is the prefix for each line in indented output.
	indentPrefix string

	// indentString is the indentation string (typically "  " or "\t").
	indentString string
}

// JSONWriterOption configures a JSONWriter.
type JSONWriterOption func(*JSONWriter)

// WithIndent enables pretty-printed JSON output.
// The prefix is prepended to each line, and indent is used for each level.
func WithIndent(prefix, indent string) JSONWriterOption {
	return func(w *JSONWriter) {
		w.indent = true
		w.indentPrefix = prefix
		w.indentString = indent
	}
}

// WithPrettyPrint enables pretty-printed JSON with two-space indentation.
func WithPrettyPrint() JSONWriterOption {
	return WithIndent("", "  ")
}

// NewJSONWriter creates a JSONWriter that outputs to the given writer.
func NewJSONWriter(output io.Writer, opts ...JSONWriterOption) *JSONWriter {
	w := &JSONWriter{
		baseWriter: newBaseWriter(output),
	}

	for _, opt := range opts {
		opt(w)
	}

	return w
}

// Write outputs the report as JSON.
func (w *JSONWriter) Write(report *model.ScanReport) (int, error) {
	return w.writeJSON(report)
}

// WriteDiff outputs the history diff as JSON.
func (w *JSONWriter) WriteDiff(diff *model.HistoryDiff) (int, error) {
	return w.writeJSON(diff)
}

// writeJSON marshals the given value to JSON and writes it to the output.
func (w *JSONWriter) writeJSON(v any) (int, error) {
	var data []byte
	var err error

	if w.indent {
		data, err = json.MarshalIndent(v, w.indentPrefix, w.indentString)
	} else {
		data, err = json.Marshal(v)
	}

	if err != nil {
		return 0, err
	}

	// Trailing newline for terminal output
	data = append(data, '\n')

	return w.output.Write(data)
}

// Summary holds the headline counts of a report.
type Summary struct {
	Candidates     int `json:"candidates"`
	Parsed         int `json:"parsed"`
	Matches        int `json:"matches"`
	MatchedClasses int `json:"matched_classes"`
	Failures       int `json:"failures"`
}

// NewSummary computes the summary of report.
func NewSummary(report *model.ScanReport) Summary {
	return Summary{
		Candidates:     report.Candidates,
		Parsed:         report.Parsed,
		Matches:        len(report.Matches),
		MatchedClasses: len(report.MatchedClasses()),
		Failures:       len(report.Failures),
	}
}

// JSONReport wraps a report with the tool version and a summary, without
// adding output-only fields to model.ScanReport.
type JSONReport struct {
	// Version is the annoscan version that generated this report.
	Version string `json:"version"`

	// Summary is the headline counts.
	Summary Summary `json:"summary"`

	// Report is the full scan report.
	Report *model.ScanReport `json:"report"`
}

// NewJSONReport creates a JSONReport wrapper with version information.
func NewJSONReport(report *model.ScanReport, version string) *JSONReport {
	return &JSONReport{
		Version: version,
		Summary: NewSummary(report),
		Report:  report,
	}
}

// FullJSONWriter outputs reports inside a JSONReport wrapper.
type FullJSONWriter struct {
	*JSONWriter

	// version is the annoscan version string.
	version string
}

// NewFullJSONWriter creates a writer for complete reports with metadata.
func NewFullJSONWriter(output io.Writer, version string, opts ...JSONWriterOption) *FullJSONWriter {
	return &FullJSONWriter{
		JSONWriter: NewJSONWriter(output, opts...),
		version:    version,
	}
}

// Write outputs the report wrapped with metadata.
func (w *FullJSONWriter) Write(report *model.ScanReport) (int, error) {
	return w.writeJSON(NewJSONReport(report, w.version))
}
