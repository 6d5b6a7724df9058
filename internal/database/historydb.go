package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/nao1215/annoscan/internal/model"
	_ "modernc.org/sqlite" // SQLite driver
)

// FileName is the name of the database file inside the data directory.
const FileName = "annoscan.db"

// timestampLayout is fixed-width so stored timestamps sort lexically.
const timestampLayout = "2006-01-02T15:04:05.000000000Z07:00"

// HistoryDB provides SQLite-based storage for scan reports.
type HistoryDB struct {
	// db is the underlying SQL database connection.
	db *sql.DB

	// dbPath is the path to the SQLite database file.
	dbPath string
}

// Options configures HistoryDB behavior.
type Options struct {
	// CreateIfNotExists creates the database file if it doesn't exist.
	CreateIfNotExists bool

	// EnableWAL enables Write-Ahead Logging.
	EnableWAL bool
}

// DefaultOptions returns the default database options.
func DefaultOptions() Options {
	return Options{
		CreateIfNotExists: true,
		EnableWAL:         true,
	}
}

// Open opens or creates the history database in dbDir.
// If CreateIfNotExists is false and the database doesn't exist, an error is
// returned.
func Open(dbDir string, opts Options) (*HistoryDB, error) {
	dbPath := filepath.Join(dbDir, FileName)

	if !opts.CreateIfNotExists {
		if _, err := os.Stat(dbPath); os.IsNotExist(err) {
			return nil, fmt.Errorf("database not found at %s (run a scan first)", dbPath)
		} else if err != nil {
			return nil, fmt.Errorf("failed to check database path: %w", err)
		}
	} else {
		if err := os.MkdirAll(dbDir, 0750); err != nil {
			return nil, fmt.Errorf("failed to create database directory: %w", err)
		}
	}

	// mode=rw refuses to create a missing file; mode=rwc allows it.
	dsn := dbPath + "?mode=rw"
	if opts.CreateIfNotExists {
		dsn = dbPath + "?mode=rwc"
	}

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	// SQLite only supports one writer.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(time.Hour)

	hdb := &HistoryDB{
		db:     db,
		dbPath: dbPath,
	}

	if opts.EnableWAL {
		if _, err := db.ExecContext(context.Background(), "PRAGMA journal_mode=WAL"); err != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to enable WAL mode: %w", err)
		}
	}

	if err := hdb.createTables(); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("failed to create tables: %w", err)
	}

	return hdb, nil
}

// Path returns the database file path.
func (hdb *HistoryDB) Path() string {
	return hdb.dbPath
}

// Close closes the database connection.
func (hdb *HistoryDB) Close() error {
	return hdb.db.Close()
}

// createTables creates the database schema if it doesn't exist.
func (hdb *HistoryDB) createTables() error {
	schema := `
	CREATE TABLE IF NOT EXISTS scan_reports (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		target TEXT NOT NULL,
		namespace TEXT NOT NULL,
		annotation TEXT NOT NULL,
		run_id TEXT NOT NULL DEFAULT '',
		timestamp TEXT NOT NULL,
		report_json TEXT NOT NULL,
		candidate_count INTEGER NOT NULL DEFAULT 0,
		match_count INTEGER NOT NULL DEFAULT 0,
		failure_count INTEGER NOT NULL DEFAULT 0
	);

	CREATE INDEX IF NOT EXISTS idx_reports_target ON scan_reports(target);
	CREATE INDEX IF NOT EXISTS idx_reports_timestamp ON scan_reports(timestamp);
	CREATE INDEX IF NOT EXISTS idx_reports_run ON scan_reports(run_id);

	CREATE TABLE IF NOT EXISTS matched_classes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		report_id INTEGER NOT NULL REFERENCES scan_reports(id) ON DELETE CASCADE,
		class_name TEXT NOT NULL,
		location TEXT NOT NULL,
		digest TEXT
	);

	CREATE INDEX IF NOT EXISTS idx_classes_name ON matched_classes(class_name);
	CREATE INDEX IF NOT EXISTS idx_classes_report ON matched_classes(report_id);
	`

	_, err := hdb.db.ExecContext(context.Background(), schema)
	return err
}

// SaveScanReport stores a report and its matched classes in one
// transaction. It returns the new report ID.
func (hdb *HistoryDB) SaveScanReport(ctx context.Context, report *model.ScanReport) (int64, error) {
	reportJSON, err := json.Marshal(report)
	if err != nil {
		return 0, fmt.Errorf("failed to serialize report: %w", err)
	}

	tx, err := hdb.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }() //nolint:errcheck // no-op after commit

	result, err := tx.ExecContext(ctx, `
	INSERT INTO scan_reports (target, namespace, annotation, run_id, timestamp, report_json, candidate_count, match_count, failure_count)
	VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`,
		report.Target(),
		report.Namespace.String(),
		report.Annotation,
		report.RunID,
		report.DateScanned.UTC().Format(timestampLayout),
		string(reportJSON),
		report.Candidates,
		len(report.Matches),
		len(report.Failures),
	)
	if err != nil {
		return 0, fmt.Errorf("failed to save scan report: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("failed to get report id: %w", err)
	}

	seen := make(map[string]bool, len(report.Matches))
	for _, m := range report.Matches {
		// Repeated annotations produce several matches for one class.
		key := m.ClassName + "\x00" + m.Location
		if seen[key] {
			continue
		}
		seen[key] = true

		if _, err := tx.ExecContext(ctx, `
		INSERT INTO matched_classes (report_id, class_name, location, digest)
		VALUES (?, ?, ?, ?)
		`, id, m.ClassName, m.Location, m.Digest); err != nil {
			return 0, fmt.Errorf("failed to save matched class: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, fmt.Errorf("failed to commit scan report: %w", err)
	}
	return id, nil
}

// GetLatestScanReport retrieves the most recent report for a target.
// It returns nil without error if the target was never scanned.
func (hdb *HistoryDB) GetLatestScanReport(ctx context.Context, target string) (*model.ScanReport, error) {
	query := `
	SELECT report_json FROM scan_reports
	WHERE target = ?
	ORDER BY timestamp DESC, id DESC
	LIMIT 1
	`

	var reportJSON string
	err := hdb.db.QueryRowContext(ctx, query, target).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scan report: %w", err)
	}

	return decodeReport(reportJSON)
}

// GetScanReportByID retrieves a report by its database ID.
// It returns nil without error if no such report exists.
func (hdb *HistoryDB) GetScanReportByID(ctx context.Context, id int64) (*model.ScanReport, error) {
	query := `
	SELECT report_json FROM scan_reports
	WHERE id = ?
	`

	var reportJSON string
	err := hdb.db.QueryRowContext(ctx, query, id).Scan(&reportJSON)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get scan report: %w", err)
	}

	return decodeReport(reportJSON)
}

// GetScanHistory retrieves all reports for a target, newest first.
// Rows that no longer decode are skipped.
func (hdb *HistoryDB) GetScanHistory(ctx context.Context, target string) ([]*model.ScanReport, error) {
	query := `
	SELECT report_json FROM scan_reports
	WHERE target = ?
	ORDER BY timestamp DESC, id DESC
	`

	rows, err := hdb.db.QueryContext(ctx, query, target)
	if err != nil {
		return nil, fmt.Errorf("failed to get scan history: %w", err)
	}
	defer rows.Close()

	var reports []*model.ScanReport
	for rows.Next() {
		var reportJSON string
		if err := rows.Scan(&reportJSON); err != nil {
			return nil, fmt.Errorf("failed to scan report: %w", err)
		}

		report, err := decodeReport(reportJSON)
		if err != nil {
			continue
		}
		reports = append(reports, report)
	}

	return reports, rows.Err()
}

// ScanReportMetadata contains summary information about a stored report.
// It is used to list history without loading full reports.
type ScanReportMetadata struct {
	// ID is the unique identifier of the report in the database.
	ID int64

	// Target is "namespace@annotation".
	Target string

	// RunID is the invocation that stored the report. Empty if unknown.
	RunID string

	// Timestamp is when the scan was performed.
	Timestamp time.Time

	// Candidates, Matches and Failures are the stored counts.
	Candidates int
	Matches    int
	Failures   int
}

// GetScanHistoryWithMetadata retrieves report metadata for a target, newest
// first.
func (hdb *HistoryDB) GetScanHistoryWithMetadata(ctx context.Context, target string) ([]ScanReportMetadata, error) {
	query := `
	SELECT id, target, run_id, timestamp, candidate_count, match_count, failure_count
	FROM scan_reports
	WHERE target = ?
	ORDER BY timestamp DESC, id DESC
	`

	rows, err := hdb.db.QueryContext(ctx, query, target)
	if err != nil {
		return nil, fmt.Errorf("failed to get scan history: %w", err)
	}
	defer rows.Close()

	return scanMetadata(rows)
}

// GetRunReports retrieves the metadata of every report stored by one
// invocation, in the order they were saved.
func (hdb *HistoryDB) GetRunReports(ctx context.Context, runID string) ([]ScanReportMetadata, error) {
	query := `
	SELECT id, target, run_id, timestamp, candidate_count, match_count, failure_count
	FROM scan_reports
	WHERE run_id = ?
	ORDER BY id
	`

	rows, err := hdb.db.QueryContext(ctx, query, runID)
	if err != nil {
		return nil, fmt.Errorf("failed to get run reports: %w", err)
	}
	defer rows.Close()

	return scanMetadata(rows)
}

func scanMetadata(rows *sql.Rows) ([]ScanReportMetadata, error) {
	var results []ScanReportMetadata
	for rows.Next() {
		var meta ScanReportMetadata
		var timestamp string

		if err := rows.Scan(&meta.ID, &meta.Target, &meta.RunID, &timestamp, &meta.Candidates, &meta.Matches, &meta.Failures); err != nil {
			return nil, fmt.Errorf("failed to scan metadata: %w", err)
		}
		meta.Timestamp = parseTimestamp(timestamp)

		results = append(results, meta)
	}

	return results, rows.Err()
}

// ListScannedTargets returns every target with at least one stored report.
func (hdb *HistoryDB) ListScannedTargets(ctx context.Context) ([]string, error) {
	query := `
	SELECT DISTINCT target FROM scan_reports
	ORDER BY target
	`

	rows, err := hdb.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to list targets: %w", err)
	}
	defer rows.Close()

	var targets []string
	for rows.Next() {
		var target string
		if err := rows.Scan(&target); err != nil {
			return nil, fmt.Errorf("failed to scan target: %w", err)
		}
		targets = append(targets, target)
	}

	return targets, rows.Err()
}

// ClassSighting is one stored match of a class.
type ClassSighting struct {
	ReportID  int64
	Target    string
	Timestamp time.Time
	Location  string
	Digest    string
}

// FindClass returns every stored match of className, newest first.
func (hdb *HistoryDB) FindClass(ctx context.Context, className string) ([]ClassSighting, error) {
	query := `
	SELECT r.id, r.target, r.timestamp, c.location, COALESCE(c.digest, '')
	FROM matched_classes c
	JOIN scan_reports r ON r.id = c.report_id
	WHERE c.class_name = ?
	ORDER BY r.timestamp DESC, r.id DESC, c.id
	`

	rows, err := hdb.db.QueryContext(ctx, query, className)
	if err != nil {
		return nil, fmt.Errorf("failed to find class: %w", err)
	}
	defer rows.Close()

	var sightings []ClassSighting
	for rows.Next() {
		var s ClassSighting
		var timestamp string
		if err := rows.Scan(&s.ReportID, &s.Target, &timestamp, &s.Location, &s.Digest); err != nil {
			return nil, fmt.Errorf("failed to scan class sighting: %w", err)
		}
		s.Timestamp = parseTimestamp(timestamp)
		sightings = append(sightings, s)
	}

	return sightings, rows.Err()
}

// decodeReport unmarshals a stored report.
func decodeReport(reportJSON string) (*model.ScanReport, error) {
	var report model.ScanReport
	if err := json.Unmarshal([]byte(reportJSON), &report); err != nil {
		return nil, fmt.Errorf("failed to parse report: %w", err)
	}
	return &report, nil
}

// timestampFormats contains the timestamp formats that may be stored.
// The order matters: more specific formats should come first.
var timestampFormats = []string{
	timestampLayout,
	time.RFC3339Nano,
	"2006-01-02 15:04:05", // SQLite default datetime format
	"2006-01-02T15:04:05",
}

// parseTimestamp attempts to parse a timestamp string using multiple formats.
// If parsing fails with all formats, it returns the zero time.
func parseTimestamp(s string) time.Time {
	for _, format := range timestampFormats {
		if t, err := time.Parse(format, s); err == nil {
			return t
		}
	}
	return time.Time{}
}
