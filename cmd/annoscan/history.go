package main

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/nao1215/annoscan/internal/config"
	"github.com/nao1215/annoscan/internal/database"
	"github.com/nao1215/annoscan/internal/model"
	"github.com/nao1215/annoscan/internal/report"
	"github.com/spf13/cobra"
)

// NewHistoryCmd creates the history command.
// It reads scan results stored by 'annoscan scan'.
func NewHistoryCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history [namespace]",
		Short: "Show and compare stored scan results",
		Long: `History shows scan results stored in the local database.

A target is a namespace together with an annotation type. By default the
latest two scans of the target are compared and the differences are printed:
- classes that carry the annotation now but did not before
- classes that no longer carry it
- matched classes whose class file content changed

Examples:
  # Compare the latest two scans
  annoscan history -a com.example.Anno com.example

  # List all scans of a target
  annoscan history --list -a com.example.Anno com.example

  # Compare the latest scan with a specific one
  annoscan history --with-scan-id 5 -a com.example.Anno com.example

  # Compare with the first scan since a date
  annoscan history --since 2026-01-01 -a com.example.Anno com.example

  # Show every stored scan that matched a class
  annoscan history --class com.example.Foo

  # List all scanned targets
  annoscan history --list-targets

  # List the reports stored by one scan run
  annoscan history --run 0b5c2f4e-8f7a-4c1e-9a51-6f3d2e7b9c10`,
		Args: cobra.MaximumNArgs(1),
		RunE: runHistoryCmd,
	}

	cmd.Flags().StringP("annotation", "a", "",
		"Annotation type of the target")

	// Listing flags
	cmd.Flags().BoolP("list", "l", false,
		"List scan history for the target")
	cmd.Flags().BoolP("list-targets", "L", false,
		"List all scanned targets in the database")
	cmd.Flags().String("class", "",
		"List the stored scans that matched this class")
	cmd.Flags().String("run", "",
		"List the reports stored by one scan run (ID from --list or the scan log)")

	// Comparison flags
	cmd.Flags().Int64P("with-scan-id", "i", 0,
		"Compare with a specific scan by ID (use --list to see available IDs)")
	cmd.Flags().StringP("since", "s", "",
		"Compare with the first scan after this date (format: YYYY-MM-DD)")

	// Output format flags
	cmd.Flags().BoolP("json", "j", false,
		"Output comparison result in JSON format")
	cmd.Flags().BoolP("markdown", "m", false,
		"Output comparison result in Markdown format")

	cmd.Flags().String("db-dir", config.XDGDataDir(),
		"Directory of the history database")

	return cmd
}

// historyOptions are the parsed history flags.
type historyOptions struct {
	target      string
	list        bool
	listTargets bool
	className   string
	runID       string
	withScanID  int64
	since       string
	format      report.Format
	dbDir       string
}

// runHistoryCmd executes the history command.
func runHistoryCmd(cmd *cobra.Command, args []string) error {
	opts, err := parseHistoryOptions(cmd, args)
	if err != nil {
		return err
	}

	// History never creates a database; there is nothing to show without
	// a previous scan.
	db, err := database.Open(opts.dbDir, database.Options{CreateIfNotExists: false, EnableWAL: true})
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer db.Close()

	return runHistory(cmd.Context(), cmd.OutOrStdout(), db, opts)
}

// parseHistoryOptions reads and validates the flags before the database is
// opened.
func parseHistoryOptions(cmd *cobra.Command, args []string) (historyOptions, error) {
	var opts historyOptions
	flags := cmd.Flags()
	var err error

	if opts.listTargets, err = flags.GetBool("list-targets"); err != nil {
		return opts, err
	}
	if opts.className, err = flags.GetString("class"); err != nil {
		return opts, err
	}
	runID, err := flags.GetString("run")
	if err != nil {
		return opts, err
	}
	if runID != "" {
		id, err := uuid.Parse(runID)
		if err != nil {
			return opts, fmt.Errorf("invalid run ID %q: %w", runID, err)
		}
		opts.runID = id.String()
	}
	if opts.list, err = flags.GetBool("list"); err != nil {
		return opts, err
	}
	if opts.withScanID, err = flags.GetInt64("with-scan-id"); err != nil {
		return opts, err
	}
	if opts.since, err = flags.GetString("since"); err != nil {
		return opts, err
	}
	if opts.dbDir, err = flags.GetString("db-dir"); err != nil {
		return opts, err
	}

	jsonOutput, err := flags.GetBool("json")
	if err != nil {
		return opts, err
	}
	markdownOutput, err := flags.GetBool("markdown")
	if err != nil {
		return opts, err
	}
	switch {
	case jsonOutput && markdownOutput:
		return opts, config.ErrConflictingReportFormats
	case jsonOutput:
		opts.format = report.FormatJSON
	case markdownOutput:
		opts.format = report.FormatMarkdown
	default:
		opts.format = report.FormatSimple
	}

	if opts.listTargets || opts.className != "" || opts.runID != "" {
		return opts, nil
	}

	annotation, err := flags.GetString("annotation")
	if err != nil {
		return opts, err
	}
	if annotation == "" {
		return opts, errors.New("annotation is required (use --list-targets to see available targets)")
	}
	namespace := ""
	if len(args) > 0 {
		namespace = args[0]
	}
	ns, err := model.ParseNamespace(namespace)
	if err != nil {
		return opts, err
	}
	opts.target = model.TargetKey(ns, annotation)

	return opts, nil
}

// runHistory dispatches to the selected history operation.
func runHistory(ctx context.Context, w io.Writer, db *database.HistoryDB, opts historyOptions) error {
	switch {
	case opts.listTargets:
		return listScannedTargets(ctx, w, db)
	case opts.className != "":
		return listClassSightings(ctx, w, db, opts.className)
	case opts.runID != "":
		return listRunReports(ctx, w, db, opts.runID)
	case opts.list:
		return listScanHistory(ctx, w, db, opts.target)
	default:
		return runComparison(ctx, w, db, opts)
	}
}

// listScannedTargets lists all targets that have scan records in the database.
func listScannedTargets(ctx context.Context, w io.Writer, db *database.HistoryDB) error {
	targets, err := db.ListScannedTargets(ctx)
	if err != nil {
		return fmt.Errorf("failed to list targets: %w", err)
	}

	if len(targets) == 0 {
		fmt.Fprintln(w, "No scanned targets found in the database.")
		fmt.Fprintln(w, "\nUse 'annoscan scan' to scan a namespace.")
		return nil
	}

	fmt.Fprintf(w, "Scanned targets (%d):\n\n", len(targets))
	for _, target := range targets {
		fmt.Fprintf(w, "  • %s\n", displayTarget(target))
	}
	fmt.Fprintln(w, "\nUse 'annoscan history --list -a <annotation> <namespace>' to see the scans of a target.")

	return nil
}

// listScanHistory lists all scan records for a target.
func listScanHistory(ctx context.Context, w io.Writer, db *database.HistoryDB, target string) error {
	metas, err := db.GetScanHistoryWithMetadata(ctx, target)
	if err != nil {
		return fmt.Errorf("failed to get scan history: %w", err)
	}

	if len(metas) == 0 {
		fmt.Fprintf(w, "No scan history found for %s\n", displayTarget(target))
		return nil
	}

	fmt.Fprintf(w, "Scan history for %s (%d scans):\n\n", displayTarget(target), len(metas))
	fmt.Fprintf(w, "  %-6s  %-20s  %-36s  %10s  %8s  %8s\n", "ID", "Date", "Run", "Candidates", "Matches", "Failures")
	fmt.Fprintln(w, "  "+strings.Repeat("-", 98))

	for _, meta := range metas {
		fmt.Fprintf(w, "  %-6d  %-20s  %-36s  %10d  %8d  %8d\n",
			meta.ID,
			meta.Timestamp.Local().Format("2006-01-02 15:04:05"),
			runLabel(meta.RunID),
			meta.Candidates,
			meta.Matches,
			meta.Failures,
		)
	}

	fmt.Fprintln(w, "\nUse 'annoscan history --with-scan-id <id>' to compare the latest scan with a specific one.")

	return nil
}

// listClassSightings lists the stored scans in which a class matched.
func listClassSightings(ctx context.Context, w io.Writer, db *database.HistoryDB, className string) error {
	sightings, err := db.FindClass(ctx, className)
	if err != nil {
		return fmt.Errorf("failed to find class: %w", err)
	}

	if len(sightings) == 0 {
		fmt.Fprintf(w, "%s was not matched by any stored scan.\n", className)
		return nil
	}

	fmt.Fprintf(w, "Scans matching %s (%d):\n\n", className, len(sightings))
	for _, s := range sightings {
		fmt.Fprintf(w, "  [%d] %s  %s\n", s.ReportID, s.Timestamp.Local().Format("2006-01-02 15:04:05"), displayTarget(s.Target))
		fmt.Fprintf(w, "      %s", s.Location)
		if s.Digest != "" {
			fmt.Fprintf(w, " (%s)", shortDigest(s.Digest))
		}
		fmt.Fprintln(w)
	}

	return nil
}

// listRunReports lists the reports stored by one scan run.
func listRunReports(ctx context.Context, w io.Writer, db *database.HistoryDB, runID string) error {
	metas, err := db.GetRunReports(ctx, runID)
	if err != nil {
		return fmt.Errorf("failed to get run reports: %w", err)
	}

	if len(metas) == 0 {
		fmt.Fprintf(w, "No reports stored for run %s\n", runID)
		return nil
	}

	fmt.Fprintf(w, "Run %s (%d reports):\n\n", runID, len(metas))
	for _, meta := range metas {
		fmt.Fprintf(w, "  [%d] %s  %s  %d matches, %d failures\n",
			meta.ID,
			meta.Timestamp.Local().Format("2006-01-02 15:04:05"),
			displayTarget(meta.Target),
			meta.Matches,
			meta.Failures,
		)
	}

	return nil
}

// runComparison compares the latest scan of a target with an earlier one.
func runComparison(ctx context.Context, w io.Writer, db *database.HistoryDB, opts historyOptions) error {
	reports, err := db.GetScanHistory(ctx, opts.target)
	if err != nil {
		return fmt.Errorf("failed to get scan history: %w", err)
	}

	if len(reports) == 0 {
		return fmt.Errorf("no scan history found for %s", displayTarget(opts.target))
	}

	if len(reports) < 2 && opts.withScanID == 0 && opts.since == "" {
		return fmt.Errorf("at least 2 scans are required for comparison (found %d)", len(reports))
	}

	// Latest report is always the current one
	current := reports[0]
	var previous *model.ScanReport

	switch {
	case opts.withScanID > 0:
		previous, err = db.GetScanReportByID(ctx, opts.withScanID)
		if err != nil {
			return fmt.Errorf("failed to get scan with ID %d: %w", opts.withScanID, err)
		}
		if previous == nil {
			return fmt.Errorf("scan with ID %d not found", opts.withScanID)
		}
		if previous.Target() != opts.target {
			return fmt.Errorf("scan ID %d belongs to %s, not %s",
				opts.withScanID, displayTarget(previous.Target()), displayTarget(opts.target))
		}
	case opts.since != "":
		sinceDate, err := time.ParseInLocation("2006-01-02", opts.since, time.Local)
		if err != nil {
			return fmt.Errorf("invalid date format (use YYYY-MM-DD): %w", err)
		}

		// Reports are newest first; walk backwards to find the oldest one at
		// or after the date.
		for i := len(reports) - 1; i >= 0; i-- {
			if !reports[i].DateScanned.Before(sinceDate) {
				previous = reports[i]
				break
			}
		}
		if previous == nil {
			return fmt.Errorf("no scans found since %s", opts.since)
		}
		if previous == current {
			return fmt.Errorf("only one scan found since %s; at least 2 scans are required for comparison", opts.since)
		}
	default:
		previous = reports[1]
	}

	diff := model.DiffReports(previous, current)
	if _, err := report.New(opts.format, w).WriteDiff(diff); err != nil {
		return fmt.Errorf("failed to write comparison: %w", err)
	}
	return nil
}

// displayTarget shows the root namespace readably.
func displayTarget(target string) string {
	if strings.HasPrefix(target, "@") {
		return "(root)" + target
	}
	return target
}

// runLabel shows "-" for reports without a run ID.
func runLabel(runID string) string {
	if runID == "" {
		return "-"
	}
	return runID
}

// shortDigest abbreviates a hex digest for display.
func shortDigest(digest string) string {
	if len(digest) > 12 {
		return digest[:12]
	}
	return digest
}
