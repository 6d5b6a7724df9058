package report

import (
	"io"

	"github.com/nao1215/annoscan/internal/model"
)

// Writer renders scan results to a destination.
type Writer interface {
	// Write outputs one scan report.
	// Returns the number of bytes written and any error encountered.
	Write(report *model.ScanReport) (int, error)

	// WriteDiff outputs the comparison of two reports of the same target.
	WriteDiff(diff *model.HistoryDiff) (int, error)
}

// Format selects a Writer implementation.
type Format string

const (
	// FormatSimple is the two-line text listing.
	FormatSimple Format = "simple"
	// FormatJSON is indented JSON.
	FormatJSON Format = "json"
	// FormatMarkdown is a Markdown document.
	FormatMarkdown Format = "markdown"
)

// New returns the Writer for format. Unknown formats fall back to simple.
func New(format Format, output io.Writer, opts ...SimpleWriterOption) Writer {
	switch format {
	case FormatJSON:
		return NewJSONWriter(output, WithPrettyPrint())
	case FormatMarkdown:
		return NewMarkdownWriter(output)
	default:
		return NewSimpleWriter(output, opts...)
	}
}

// baseWriter provides common functionality for report writers.
type baseWriter struct {
	output io.Writer
}

// newBaseWriter creates a baseWriter with the given output destination.
func newBaseWriter(output io.Writer) baseWriter {
	return baseWriter{output: output}
}
