// Package pipeline drives an annotation scan.
//
// A scan of one namespace runs three steps against a shared
// model.ScanReport:
//
//	discover  enumerate candidate class files under the namespace
//	read      open and parse each candidate, recording per-file failures
//	match     keep the classes carrying the target annotation
//
// Failures are contained at file granularity: a malformed or unreadable
// class is recorded in the report and the scan moves on. Reading may run on
// a bounded number of goroutines, but results are kept by candidate index
// so matches always come out in discovery order.
//
// Scanner wires the steps for the common case. BatchProcessor scans several
// namespaces concurrently using errgroup.
package pipeline
