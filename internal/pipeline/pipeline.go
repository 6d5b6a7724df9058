package pipeline

import (
	"context"
	"log/slog"
	"time"

	"github.com/nao1215/annoscan/internal/model"
)

// Step is one stage of a scan. Steps run in sequence and share the report:
// each one reads what earlier steps stored and adds its own results.
type Step interface {
	// Do executes the step. Per-file problems are recorded in the report;
	// an error return means the step could not run at all.
	Do(ctx context.Context, report *model.ScanReport) error

	// Name returns the step's name for logging and PerformedSteps.
	Name() string
}

// Pipeline runs a list of steps in order against one report.
type Pipeline struct {
	// steps contains the ordered list of steps to execute.
	steps []Step

	// logger is used for structured logging during execution.
	logger *slog.Logger

	// continueOnError keeps executing later steps after one fails.
	// If false, the pipeline stops on the first error.
	continueOnError bool
}

// Option is a function that configures a Pipeline.
type Option func(*Pipeline)

// WithLogger sets a custom logger for the pipeline.
// If not set, slog.Default is used.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		p.logger = logger
	}
}

// WithContinueOnError configures the pipeline to run the remaining steps
// even when one fails. The failure is still recorded in the report.
func WithContinueOnError(continueOnError bool) Option {
	return func(p *Pipeline) {
		p.continueOnError = continueOnError
	}
}

// New creates an empty Pipeline. Add steps with AddStep or AddSteps.
func New(opts ...Option) *Pipeline {
	p := &Pipeline{}

	for _, opt := range opts {
		opt(p)
	}

	if p.logger == nil {
		p.logger = slog.Default()
	}

	return p
}

// AddStep appends a step. Steps run in the order they are added.
func (p *Pipeline) AddStep(step Step) {
	p.steps = append(p.steps, step)
}

// AddSteps appends several steps in order.
func (p *Pipeline) AddSteps(steps ...Step) {
	p.steps = append(p.steps, steps...)
}

// Execute runs the steps in order against report. Cancellation is checked
// before each step; steps that iterate over files check it again between
// files.
//
// It returns the first step error unless continueOnError is set, in which
// case errors are only recorded in the report.
func (p *Pipeline) Execute(ctx context.Context, report *model.ScanReport) error {
	logger := p.logger.With(
		"namespace", report.Namespace.String(),
		"annotation", report.Annotation,
	)

	for _, step := range p.steps {
		if err := ctx.Err(); err != nil {
			logger.Warn("scan cancelled", "step", step.Name(), "reason", err)
			report.Cancelled = true
			return err
		}

		if err := p.runStep(ctx, logger, step, report); err != nil && !p.continueOnError {
			return err
		}
		report.PerformedSteps = append(report.PerformedSteps, step.Name())
	}

	return nil
}

// runStep executes one step and records its failure in the report.
func (p *Pipeline) runStep(ctx context.Context, logger *slog.Logger, step Step, report *model.ScanReport) error {
	logger.Debug("executing step", "step", step.Name())
	start := time.Now()

	err := step.Do(ctx, report)
	elapsed := time.Since(start)
	if err != nil {
		logger.Error("step failed",
			"step", step.Name(),
			"elapsed", elapsed,
			"error", err,
		)
		report.Error = err
		report.ErrorMessage = err.Error()
		if ctx.Err() != nil {
			report.Cancelled = true
		}
		return err
	}

	logger.Debug("step completed",
		"step", step.Name(),
		"elapsed", elapsed,
		"candidates", report.Candidates,
		"parsed", report.Parsed,
		"matches", len(report.Matches),
	)
	return nil
}

// StepCount returns the number of steps in the pipeline.
func (p *Pipeline) StepCount() int {
	return len(p.steps)
}

// StepNames returns the names of all steps in execution order.
func (p *Pipeline) StepNames() []string {
	names := make([]string, len(p.steps))
	for i, step := range p.steps {
		names[i] = step.Name()
	}
	return names
}
