// Package model defines the core data structures used throughout annoscan.
//
// This package contains the following main types:
//   - Namespace: A validated dot-delimited package name
//   - CandidateFile: A discovered class file (plain file or archive entry)
//   - ParsedClass: The identity and annotation types of one class file
//   - ScanReport: The result of scanning one namespace for one annotation
//   - HistoryDiff: The difference between two stored scan reports
//
// The models are serializable to JSON for report output and database storage.
package model
