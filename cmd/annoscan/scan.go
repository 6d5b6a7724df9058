package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"sync"
	"syscall"

	"github.com/google/uuid"
	"github.com/nao1215/annoscan/internal/classpath"
	"github.com/nao1215/annoscan/internal/config"
	"github.com/nao1215/annoscan/internal/database"
	"github.com/nao1215/annoscan/internal/log"
	"github.com/nao1215/annoscan/internal/model"
	"github.com/nao1215/annoscan/internal/pipeline"
	"github.com/nao1215/annoscan/internal/report"
	"github.com/spf13/cobra"
)

// NewScanCmd creates the scan command.
func NewScanCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "scan <namespace>...",
		Short: "List classes in a namespace that carry an annotation",
		Long: `Scan reads every class file under each package namespace and prints the
classes whose class-level RuntimeVisibleAnnotations include the given
annotation type, one line pair per occurrence:

  ClassName      : com.example.Foo
  AnnotationName : com.example.Anno

Class files that cannot be read or parsed are skipped with a warning on
stderr; the scan still succeeds. Matching is exact and case-sensitive.

Examples:
  # Scan a Gradle output directory
  annoscan scan -a com.example.Anno -p build/classes/java/main com.example

  # Several roots, including a jar, and two namespaces
  annoscan scan -a com.example.Anno -p build/classes -p libs/api.jar com.example.api com.example.web

  # Read four class files at a time and show annotation values
  annoscan scan -a com.example.Anno -p build/classes --jobs 4 --values com.example

  # Output a Markdown report to a file
  annoscan scan -a com.example.Anno -p build/classes --markdown -o report.md com.example

Class path roots may also come from ANNOSCAN_CLASSPATH (path-list separated)
or from the .annoscan configuration file (see 'annoscan init').`,
		Args: cobra.ArbitraryArgs,
		RunE: runScanCmd,
	}

	// Target flags
	cmd.Flags().StringP("annotation", "a", "",
		"Fully-qualified annotation type to look for (e.g. com.example.Anno)")
	cmd.Flags().StringArrayP("classpath", "p", nil,
		"Class path root: a directory or .jar/.zip archive (repeatable)")
	cmd.Flags().StringArrayP("exclude", "x", nil,
		"Glob pattern for class file names to skip (repeatable)")
	cmd.Flags().Bool("no-recursive", false,
		"Do not descend into sub-namespaces")

	// Concurrency flags
	cmd.Flags().Int("jobs", config.DefaultJobs,
		"Number of class files read concurrently per namespace")
	cmd.Flags().IntP("batch", "b", config.DefaultBatchSize,
		"Number of namespaces scanned concurrently")

	// Configuration file
	cmd.Flags().StringP("config", "c", "",
		"Configuration file path (default: .annoscan in current or home directory)")

	// Report flags
	cmd.Flags().BoolP("json", "j", false,
		"Output JSON report (mutually exclusive with --markdown)")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output Markdown report (mutually exclusive with --json)")
	cmd.Flags().StringP("output", "o", "",
		"Write report to specified file path (creates directories if needed)")
	cmd.Flags().BoolP("summary", "s", false,
		"Append counts of candidates, parsed files, matches and failures")
	cmd.Flags().Bool("values", false,
		"Show annotation element values and file locations")

	// History flags
	cmd.Flags().Bool("no-history", false,
		"Do not save the results to the history database")
	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the history database")

	// Logging flags
	cmd.Flags().Bool("log-json", false,
		"Write logs to stderr as JSON")

	return cmd
}

// runScanCmd executes the scan command.
func runScanCmd(cmd *cobra.Command, args []string) error {
	cfg, err := buildConfig(cmd, args, os.Getenv)
	if err != nil {
		return err
	}

	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("configuration error: %w", err)
	}

	logger := setupLogger(cmd.ErrOrStderr(), cfg)
	slog.SetDefault(logger)

	// Set up context with signal handling for graceful shutdown
	ctx, cancel := context.WithCancel(cmd.Context())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	defer signal.Stop(sigCh)
	go func() {
		select {
		case <-sigCh:
			logger.Info("received shutdown signal, cancelling...")
			cancel()
		case <-ctx.Done():
		}
	}()

	return runScan(ctx, cfg, cmd.OutOrStdout(), logger)
}

// getVerboseFlag retrieves the verbose flag from the command or its parent.
func getVerboseFlag(cmd *cobra.Command) bool {
	verbose, err := cmd.Flags().GetBool("verbose")
	if err != nil {
		verbose, err = cmd.Root().PersistentFlags().GetBool("verbose")
		if err != nil {
			return false
		}
	}
	return verbose
}

// buildConfig creates a Config from cobra command flags, then fills gaps
// from the environment and the configuration file.
func buildConfig(cmd *cobra.Command, args []string, getenv func(string) string) (*config.Config, error) {
	cfg := config.NewConfig()
	flags := cmd.Flags()

	var err error

	if cfg.Annotation, err = flags.GetString("annotation"); err != nil {
		return nil, err
	}
	if cfg.ClassPath, err = flags.GetStringArray("classpath"); err != nil {
		return nil, err
	}
	if cfg.Exclude, err = flags.GetStringArray("exclude"); err != nil {
		return nil, err
	}
	noRecursive, err := flags.GetBool("no-recursive")
	if err != nil {
		return nil, err
	}
	cfg.Recursive = !noRecursive

	if cfg.Jobs, err = flags.GetInt("jobs"); err != nil {
		return nil, err
	}
	if cfg.BatchSize, err = flags.GetInt("batch"); err != nil {
		return nil, err
	}
	if cfg.JSONReport, err = flags.GetBool("json"); err != nil {
		return nil, err
	}
	if cfg.MarkdownReport, err = flags.GetBool("markdown"); err != nil {
		return nil, err
	}
	if cfg.ReportFile, err = flags.GetString("output"); err != nil {
		return nil, err
	}
	if cfg.Summary, err = flags.GetBool("summary"); err != nil {
		return nil, err
	}
	if cfg.ShowValues, err = flags.GetBool("values"); err != nil {
		return nil, err
	}
	noHistory, err := flags.GetBool("no-history")
	if err != nil {
		return nil, err
	}
	cfg.SaveToDB = !noHistory
	if cfg.DBDir, err = flags.GetString("db-dir"); err != nil {
		return nil, err
	}
	if cfg.LogJSON, err = flags.GetBool("log-json"); err != nil {
		return nil, err
	}
	cfg.Verbose = getVerboseFlag(cmd)

	cfg.ApplyEnv(getenv)

	if cfg.ConfigFilePath, err = flags.GetString("config"); err != nil {
		return nil, err
	}

	// An explicitly given config file must exist; the default locations are
	// optional.
	explicitConfigPath := cfg.ConfigFilePath != ""
	configPath := config.FindConfigFile(cfg.ConfigFilePath)

	if configPath != "" {
		cf, err := config.LoadConfigFile(configPath)
		if err != nil {
			return nil, fmt.Errorf("failed to load config file %s: %w", configPath, err)
		}
		cfg.ApplyFile(cf, flags.Changed)
	} else if explicitConfigPath {
		return nil, fmt.Errorf("%w: %s", config.ErrConfigNotFound, cfg.ConfigFilePath)
	}

	cfg.Namespaces = args

	return cfg, nil
}

// setupLogger creates the stderr logger for the configured verbosity and
// format.
func setupLogger(w io.Writer, cfg *config.Config) *slog.Logger {
	if cfg.LogJSON {
		return log.NewJSONLogger(w, cfg.Verbose)
	}
	return log.NewLogger(w, cfg.Verbose)
}

// runScan scans every namespace and writes the reports in the order the
// namespaces were given.
func runScan(ctx context.Context, cfg *config.Config, stdout io.Writer, logger *slog.Logger) error {
	runID := uuid.NewString()
	logger = logger.With("run", runID)

	logger.Info("starting scan",
		"namespaces", cfg.Namespaces,
		"annotation", cfg.Annotation,
		"classpath", cfg.ClassPath,
		"jobs", cfg.Jobs,
		"batchSize", cfg.BatchSize,
		"saveToDB", cfg.SaveToDB,
	)

	var db *database.HistoryDB
	if cfg.SaveToDB {
		var err error
		db, err = database.Open(cfg.DBDir, database.DefaultOptions())
		if err != nil {
			return fmt.Errorf("failed to open database: %w", err)
		}
		defer db.Close()
		logger.Info("database opened", "path", db.Path())
	}

	output, closeOutput, err := openOutput(cfg, stdout)
	if err != nil {
		return err
	}
	defer closeOutput()

	writer := newReportWriter(cfg, output)

	bp := pipeline.NewBatchProcessor(
		newScanFunc(cfg, runID, logger),
		pipeline.WithConcurrency(cfg.BatchSize),
		pipeline.WithBatchLogger(logger),
	)

	var mu sync.Mutex
	var writeErr error
	emitter := newOrderedEmitter(len(cfg.Namespaces), func(r *model.ScanReport) {
		if writeErr != nil {
			return
		}
		if _, err := writer.Write(r); err != nil {
			writeErr = fmt.Errorf("failed to write report: %w", err)
			return
		}
		if err := saveScanReport(ctx, db, r, logger); err != nil {
			logger.Error("failed to save scan report", "target", r.Target(), "error", err)
		}
	})

	scanErr := bp.ProcessBatchWithCallback(ctx, cfg.Namespaces, cfg.Annotation, func(r *model.ScanReport, index int) {
		mu.Lock()
		defer mu.Unlock()
		emitter.add(index, r)
	})

	mu.Lock()
	emitter.flush()
	mu.Unlock()

	if writeErr != nil {
		return writeErr
	}
	if scanErr != nil {
		return fmt.Errorf("scan interrupted: %w", scanErr)
	}
	return nil
}

// newScanFunc returns a ScanFunc that builds an enumerator and scanner for
// each namespace, so per-namespace settings from the config file apply.
// Every report is stamped with runID.
func newScanFunc(cfg *config.Config, runID string, logger *slog.Logger) pipeline.ScanFunc {
	return func(ctx context.Context, namespace, annotation string) (*model.ScanReport, error) {
		settings := cfg.ForNamespace(namespace)

		enumerator := classpath.NewEnumerator(cfg.ClassPath,
			classpath.WithExclude(settings.Exclude...),
			classpath.WithRecursive(settings.Recursive),
			classpath.WithLogger(logger),
		)
		defer func() {
			if err := enumerator.Close(); err != nil {
				logger.Warn("failed to close class path archives", "error", err)
			}
		}()

		scanner := pipeline.NewScanner(enumerator,
			pipeline.WithScannerLogger(logger),
			pipeline.WithReadJobs(settings.Jobs),
			pipeline.WithElementValues(cfg.ShowValues),
		)
		report, err := scanner.Scan(ctx, namespace, annotation)
		if report != nil {
			report.RunID = runID
		}
		return report, err
	}
}

// openOutput returns the report destination. The returned close function is
// always safe to call.
func openOutput(cfg *config.Config, stdout io.Writer) (io.Writer, func(), error) {
	if cfg.ReportFile == "" {
		return stdout, func() {}, nil
	}

	dir := filepath.Dir(cfg.ReportFile)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0750); err != nil {
			return nil, nil, fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	f, err := os.OpenFile(cfg.ReportFile, os.O_CREATE|os.O_WRONLY|os.O_TRUNC, 0600)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to create output file: %w", err)
	}
	return f, func() { _ = f.Close() }, nil
}

// newReportWriter selects the report format.
func newReportWriter(cfg *config.Config, output io.Writer) report.Writer {
	switch {
	case cfg.JSONReport:
		return report.NewFullJSONWriter(output, getVersion(), report.WithPrettyPrint())
	case cfg.MarkdownReport:
		return report.NewMarkdownWriter(output)
	default:
		return report.NewSimpleWriter(output,
			report.WithSummary(cfg.Summary),
			report.WithDetails(cfg.ShowValues),
		)
	}
}

// orderedEmitter releases reports in index order even though scans finish
// in completion order. It is not safe for concurrent use.
type orderedEmitter struct {
	pending []*model.ScanReport
	next    int
	emit    func(*model.ScanReport)
}

func newOrderedEmitter(n int, emit func(*model.ScanReport)) *orderedEmitter {
	return &orderedEmitter{
		pending: make([]*model.ScanReport, n),
		emit:    emit,
	}
}

// add stores the report for index and emits every report that is now next
// in line.
func (e *orderedEmitter) add(index int, r *model.ScanReport) {
	e.pending[index] = r
	for e.next < len(e.pending) && e.pending[e.next] != nil {
		e.emit(e.pending[e.next])
		e.pending[e.next] = nil
		e.next++
	}
}

// flush emits the reports still held back by a missing predecessor.
func (e *orderedEmitter) flush() {
	for ; e.next < len(e.pending); e.next++ {
		if r := e.pending[e.next]; r != nil {
			e.emit(r)
			e.pending[e.next] = nil
		}
	}
}

// saveScanReport saves the scan report to the database.
// If db is nil, this function is a no-op. Interrupted or failed scans are
// not stored so they never become the baseline of a comparison.
func saveScanReport(ctx context.Context, db *database.HistoryDB, r *model.ScanReport, logger *slog.Logger) error {
	if db == nil {
		return nil
	}
	if r.Cancelled || r.Error != nil {
		logger.Info("incomplete scan not saved", "target", r.Target())
		return nil
	}

	// A later namespace may have been interrupted after this one completed.
	id, err := db.SaveScanReport(context.WithoutCancel(ctx), r)
	if err != nil {
		return fmt.Errorf("failed to save scan report: %w", err)
	}

	logger.Info("scan report saved to database", "target", r.Target(), "id", id)
	return nil
}
