// Package database stores scan reports in SQLite so that later scans of the
// same namespace and annotation can be compared.
//
// Each report is stored whole as JSON in scan_reports, keyed by its target
// ("namespace@annotation"), with the matched classes broken out into
// matched_classes so a class can be traced across scans without decoding
// every report. Reports also carry the run ID of the invocation that
// produced them, so the namespaces scanned together can be listed as a group.
//
// The database is a single file (annoscan.db) opened through
// modernc.org/sqlite, which is CGO-free.
package database
