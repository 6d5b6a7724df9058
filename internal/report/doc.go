// Package report renders scan reports and history diffs.
//
// Three formats are provided:
//   - SimpleWriter: the two-line "ClassName / AnnotationName" listing
//   - JSONWriter: structured JSON for tool integration
//   - MarkdownWriter: a document with tables and an outcome chart
//
// Report data structures live in the model package; this package only
// formats them. All writers implement Writer so the CLI can pick one by
// flag and treat them uniformly.
package report
