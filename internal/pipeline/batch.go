package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/nao1215/annoscan/internal/model"
	"golang.org/x/sync/errgroup"
)

// ScanFunc scans one namespace. (*Scanner).Scan satisfies it.
type ScanFunc func(ctx context.Context, namespace, annotation string) (*model.ScanReport, error)

// BatchProcessor scans several namespaces for the same annotation with
// bounded concurrency. Each namespace gets its own report.
type BatchProcessor struct {
	// scan runs a single namespace scan.
	scan ScanFunc

	// concurrency is the maximum number of namespaces scanned at once.
	concurrency int

	// logger is used for batch-level logging.
	logger *slog.Logger
}

// BatchOption configures a BatchProcessor.
type BatchOption func(*BatchProcessor)

// WithBatchLogger sets a custom logger for batch processing.
func WithBatchLogger(logger *slog.Logger) BatchOption {
	return func(b *BatchProcessor) {
		b.logger = logger
	}
}

// WithConcurrency sets the maximum number of concurrent namespace scans.
// Default is 1.
func WithConcurrency(n int) BatchOption {
	return func(b *BatchProcessor) {
		if n > 0 {
			b.concurrency = n
		}
	}
}

// NewBatchProcessor creates a BatchProcessor that runs scan for every
// namespace.
func NewBatchProcessor(scan ScanFunc, opts ...BatchOption) *BatchProcessor {
	bp := &BatchProcessor{
		scan:        scan,
		concurrency: 1,
	}

	for _, opt := range opts {
		opt(bp)
	}

	if bp.logger == nil {
		bp.logger = slog.Default()
	}

	return bp
}

// ProcessBatch scans every namespace and returns the reports in the order
// the namespaces were given. A failed scan still yields its report; the
// error return is set only if the batch was cancelled.
func (bp *BatchProcessor) ProcessBatch(ctx context.Context, namespaces []string, annotation string) ([]*model.ScanReport, error) {
	results := make([]*model.ScanReport, len(namespaces))
	var mu sync.Mutex

	err := bp.ProcessBatchWithCallback(ctx, namespaces, annotation, func(report *model.ScanReport, index int) {
		mu.Lock()
		results[index] = report
		mu.Unlock()
	})
	return results, err
}

// ProcessBatchWithCallback scans every namespace and calls callback as each
// scan completes, in completion order. The callback receives the index of
// the namespace in the input slice and may be called from several
// goroutines at once.
func (bp *BatchProcessor) ProcessBatchWithCallback(
	ctx context.Context,
	namespaces []string,
	annotation string,
	callback func(report *model.ScanReport, index int),
) error {
	bp.logger.Info("starting batch scan",
		"namespaces", len(namespaces),
		"annotation", annotation,
		"concurrency", bp.concurrency,
	)
	startTime := time.Now()

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(bp.concurrency)

	for i, namespace := range namespaces {
		g.Go(func() error {
			select {
			case <-gctx.Done():
				return gctx.Err()
			default:
			}

			report, err := bp.scan(gctx, namespace, annotation)
			if err != nil {
				// The error is recorded in the report; keep scanning the
				// other namespaces.
				bp.logger.Warn("namespace scan failed",
					"namespace", namespace,
					"error", err,
				)
			}
			if report != nil {
				callback(report, i)
			}
			return nil
		})
	}

	err := g.Wait()
	if err == nil {
		err = ctx.Err()
	}

	bp.logger.Info("batch scan complete",
		"namespaces", len(namespaces),
		"elapsed", time.Since(startTime),
	)
	return err
}
