package pipeline

import (
	"context"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/nao1215/annoscan/internal/classfile"
	"github.com/nao1215/annoscan/internal/model"
	"golang.org/x/crypto/sha3"
	"golang.org/x/sync/errgroup"
	"golang.org/x/text/cases"
)

// DefaultMaxClassSize is the largest class file the read step will load.
const DefaultMaxClassSize int64 = 64 << 20

// ErrClassTooLarge is recorded for candidates larger than the read limit.
var ErrClassTooLarge = errors.New("class file exceeds size limit")

// Source supplies candidate class files and opens them for reading.
// *classpath.Enumerator implements it.
type Source interface {
	// Enumerate lists candidates under namespace in discovery order.
	Enumerate(ctx context.Context, namespace string) ([]model.CandidateFile, error)

	// Open opens one candidate. The caller closes the result.
	Open(c model.CandidateFile) (io.ReadCloser, error)

	// Roots returns the class path roots, in lookup order.
	Roots() []string
}

// DiscoverStep enumerates the candidate class files for the report's
// namespace.
type DiscoverStep struct {
	source Source
	logger *slog.Logger
}

// NewDiscoverStep creates a discover step over source.
func NewDiscoverStep(source Source, logger *slog.Logger) *DiscoverStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &DiscoverStep{source: source, logger: logger}
}

// Name returns the step name.
func (s *DiscoverStep) Name() string {
	return "discover"
}

// Do enumerates candidates. A namespace absent from every root is not an
// error; the report simply has no candidates.
func (s *DiscoverStep) Do(ctx context.Context, report *model.ScanReport) error {
	files, err := s.source.Enumerate(ctx, report.Namespace.String())
	if err != nil {
		return fmt.Errorf("failed to enumerate %q: %w", report.Namespace, err)
	}

	report.SetCandidates(files)
	if len(files) == 0 {
		s.logger.Debug("no class files found",
			"namespace", report.Namespace,
			"roots", report.Roots,
		)
	}
	return nil
}

// ReadStep opens and parses every candidate. Each file is opened, read and
// closed within its own call, so a failure leaks no handle.
type ReadStep struct {
	// source opens candidates.
	source Source

	// jobs is the number of files read concurrently. 1 means sequential.
	jobs int

	// maxClassSize limits how much of one file is loaded.
	maxClassSize int64

	// renderValues asks the parser for element values.
	renderValues bool

	logger *slog.Logger
}

// ReadStepOption configures a ReadStep.
type ReadStepOption func(*ReadStep)

// WithJobs sets the number of concurrent readers. Values below 1 are ignored.
func WithJobs(n int) ReadStepOption {
	return func(s *ReadStep) {
		if n > 0 {
			s.jobs = n
		}
	}
}

// WithMaxClassSize sets the per-file size limit.
func WithMaxClassSize(size int64) ReadStepOption {
	return func(s *ReadStep) {
		if size > 0 {
			s.maxClassSize = size
		}
	}
}

// WithRenderValues records each annotation together with its element values.
func WithRenderValues(render bool) ReadStepOption {
	return func(s *ReadStep) {
		s.renderValues = render
	}
}

// WithReadLogger sets the logger for the read step.
func WithReadLogger(logger *slog.Logger) ReadStepOption {
	return func(s *ReadStep) {
		s.logger = logger
	}
}

// NewReadStep creates a read step over source.
func NewReadStep(source Source, opts ...ReadStepOption) *ReadStep {
	s := &ReadStep{
		source:       source,
		jobs:         1,
		maxClassSize: DefaultMaxClassSize,
		logger:       slog.Default(),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Name returns the step name.
func (s *ReadStep) Name() string {
	return "read"
}

// Do reads every candidate. Results are stored by candidate index and
// failures are recorded afterwards in discovery order, so neither depends
// on scheduling. Only cancellation makes Do return an error.
func (s *ReadStep) Do(ctx context.Context, report *model.ScanReport) error {
	files := report.CandidateFiles()
	classes := make([]*model.ParsedClass, len(files))
	errs := make([]error, len(files))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(s.jobs)

	for i, file := range files {
		if gctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			classes[i], errs[i] = s.read(file)
			return nil
		})
	}
	waitErr := g.Wait()
	if waitErr == nil {
		waitErr = ctx.Err()
	}

	for i, err := range errs {
		if err == nil {
			continue
		}
		failure := model.ScanFailure{
			Location: files[i].Location(),
			Kind:     classify(err),
			Message:  err.Error(),
		}
		s.logger.Warn("skipping class file",
			"path", failure.Location,
			"kind", failure.Kind,
			"error", err,
		)
		report.AddFailure(failure)
	}
	report.SetClasses(classes)

	if waitErr != nil {
		return fmt.Errorf("read interrupted after %d of %d files: %w", report.Parsed+len(report.Failures), len(files), waitErr)
	}
	return nil
}

// read loads and parses one candidate.
func (s *ReadStep) read(file model.CandidateFile) (*model.ParsedClass, error) {
	rc, err := s.source.Open(file)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	data, err := io.ReadAll(io.LimitReader(rc, s.maxClassSize+1))
	if err != nil {
		return nil, fmt.Errorf("failed to read: %w", err)
	}
	if int64(len(data)) > s.maxClassSize {
		return nil, fmt.Errorf("%w: more than %d bytes", ErrClassTooLarge, s.maxClassSize)
	}

	var opts []classfile.Option
	if s.renderValues {
		opts = append(opts, classfile.WithElementValues())
	}
	class, err := classfile.ParseBytes(data, opts...)
	if err != nil {
		return nil, err
	}

	sum := sha3.Sum256(data)
	parsed := &model.ParsedClass{
		Name:         class.Name,
		Annotations:  class.AnnotationTypes(),
		Source:       file,
		Digest:       hex.EncodeToString(sum[:]),
		MajorVersion: class.MajorVersion,
	}
	if s.renderValues {
		parsed.Rendered = make([]string, len(class.Annotations))
		for i, a := range class.Annotations {
			parsed.Rendered[i] = a.String()
		}
	}
	return parsed, nil
}

// classify maps a read error to a failure kind.
func classify(err error) model.FailureKind {
	if errors.Is(err, classfile.ErrMalformedClassFile) {
		return model.FailureMalformed
	}
	return model.FailureIO
}

// MatchStep keeps the classes that carry the target annotation. The
// comparison is exact and case-sensitive; one match is recorded per
// occurrence.
type MatchStep struct {
	annotation string
	logger     *slog.Logger
}

// NewMatchStep creates a match step for the fully-qualified annotation name.
func NewMatchStep(annotation string, logger *slog.Logger) *MatchStep {
	if logger == nil {
		logger = slog.Default()
	}
	return &MatchStep{annotation: annotation, logger: logger}
}

// Name returns the step name.
func (s *MatchStep) Name() string {
	return "match"
}

// Do appends matches in discovery order. Annotation names that differ from
// the target only in case are logged as hints.
func (s *MatchStep) Do(_ context.Context, report *model.ScanReport) error {
	fold := cases.Fold()
	target := fold.String(s.annotation)

	for _, class := range report.Classes() {
		if class == nil {
			continue
		}
		for i, name := range class.Annotations {
			if name != s.annotation {
				if fold.String(name) == target {
					s.logger.Debug("annotation differs only in case",
						"class", class.Name,
						"found", name,
						"wanted", s.annotation,
					)
				}
				continue
			}
			report.AddMatch(model.Match{
				ClassName:      class.Name,
				AnnotationName: name,
				Location:       class.Source.Location(),
				Digest:         class.Digest,
				Detail:         class.RenderedAt(i),
			})
		}
	}
	return nil
}
