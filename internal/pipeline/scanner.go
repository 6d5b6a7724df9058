package pipeline

import (
	"context"
	"log/slog"

	"github.com/nao1215/annoscan/internal/model"
)

// Scanner scans namespaces of a class path for one annotation at a time.
// It is safe for concurrent use when its Source is.
type Scanner struct {
	source          Source
	logger          *slog.Logger
	jobs            int
	renderValues    bool
	continueOnError bool
}

// ScannerOption configures a Scanner.
type ScannerOption func(*Scanner)

// WithScannerLogger sets the logger shared by the scanner's steps.
func WithScannerLogger(logger *slog.Logger) ScannerOption {
	return func(s *Scanner) {
		s.logger = logger
	}
}

// WithReadJobs sets how many files are read concurrently. Default 1.
func WithReadJobs(n int) ScannerOption {
	return func(s *Scanner) {
		if n > 0 {
			s.jobs = n
		}
	}
}

// WithElementValues records each match with its annotation element values.
func WithElementValues(render bool) ScannerOption {
	return func(s *Scanner) {
		s.renderValues = render
	}
}

// WithScanContinueOnError runs the match step even if reading was
// interrupted, so partial results are reported.
func WithScanContinueOnError(continueOnError bool) ScannerOption {
	return func(s *Scanner) {
		s.continueOnError = continueOnError
	}
}

// NewScanner creates a Scanner reading from source.
func NewScanner(source Source, opts ...ScannerOption) *Scanner {
	s := &Scanner{
		source: source,
		jobs:   1,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.logger == nil {
		s.logger = slog.Default()
	}
	return s
}

// Pipeline builds the discover, read and match steps for annotation.
func (s *Scanner) Pipeline(annotation string) *Pipeline {
	p := New(
		WithLogger(s.logger),
		WithContinueOnError(s.continueOnError),
	)
	p.AddSteps(
		NewDiscoverStep(s.source, s.logger),
		NewReadStep(s.source,
			WithJobs(s.jobs),
			WithRenderValues(s.renderValues),
			WithReadLogger(s.logger),
		),
		NewMatchStep(annotation, s.logger),
	)
	return p
}

// Scan finds the classes under namespace that carry annotation.
//
// The returned report is never nil. Per-file failures are recorded in it and
// do not produce an error; an error is returned only for an invalid
// namespace or cancellation.
func (s *Scanner) Scan(ctx context.Context, namespace, annotation string) (*model.ScanReport, error) {
	ns, err := model.ParseNamespace(namespace)
	if err != nil {
		report := model.NewScanReport(model.Namespace(namespace), annotation, s.source.Roots())
		report.Error = err
		report.ErrorMessage = err.Error()
		return report, err
	}

	report := model.NewScanReport(ns, annotation, s.source.Roots())
	if err := s.Pipeline(annotation).Execute(ctx, report); err != nil {
		return report, err
	}

	s.logger.Info("scan complete",
		"target", report.Target(),
		"candidates", report.Candidates,
		"parsed", report.Parsed,
		"matches", len(report.Matches),
		"failures", len(report.Failures),
	)
	return report, nil
}
