package model

import "time"

// Match is one occurrence of the target annotation on a class.
type Match struct {
	// ClassName is the fully-qualified class name.
	ClassName string `json:"class_name"`

	// AnnotationName is the fully-qualified annotation type name.
	AnnotationName string `json:"annotation_name"`

	// Location is where the class file was found.
	Location string `json:"location"`

	// Digest is the hex SHA3-256 digest of the class file.
	Digest string `json:"digest,omitempty"`

	// Detail is the annotation with its element values, e.g.
	// "@com.example.Anno(value=1)". Empty unless values were rendered.
	Detail string `json:"detail,omitempty"`
}

// ScanReport is the result of scanning one namespace for one annotation type.
type ScanReport struct {
	// Namespace is the scanned package namespace.
	Namespace Namespace `json:"namespace"`

	// Annotation is the fully-qualified annotation type searched for.
	Annotation string `json:"annotation"`

	// Roots are the class path roots consulted, in order.
	Roots []string `json:"roots"`

	// DateScanned is when the scan started.
	DateScanned time.Time `json:"date_scanned"`

	// RunID identifies the annoscan invocation that produced the report.
	// Reports of several namespaces scanned together share it.
	RunID string `json:"run_id,omitempty"`

	// Candidates is the number of class files discovered.
	Candidates int `json:"candidates"`

	// Parsed is the number of class files read successfully.
	Parsed int `json:"parsed"`

	// Matches lists every matching occurrence in discovery order.
	Matches []Match `json:"matches"`

	// Failures lists skipped files in discovery order.
	Failures []ScanFailure `json:"failures,omitempty"`

	// PerformedSteps lists the pipeline steps that ran.
	PerformedSteps []string `json:"performed_steps,omitempty"`

	// Cancelled is true if the scan stopped before all candidates were read.
	Cancelled bool `json:"cancelled"`

	// Error is set when a step failed outright.
	Error error `json:"-"`

	// ErrorMessage is the string form of Error.
	ErrorMessage string `json:"error,omitempty"` //nolint:tagliatelle // error is conventional

	// candidateFiles and classes carry data between pipeline steps.
	candidateFiles []CandidateFile
	classes        []*ParsedClass
}

// NewScanReport creates an empty report for the given target.
func NewScanReport(namespace Namespace, annotation string, roots []string) *ScanReport {
	return &ScanReport{
		Namespace:   namespace,
		Annotation:  annotation,
		Roots:       roots,
		DateScanned: time.Now(),
		Matches:     make([]Match, 0),
	}
}

// SetCandidates stores the enumerated candidates.
func (r *ScanReport) SetCandidates(files []CandidateFile) {
	r.candidateFiles = files
	r.Candidates = len(files)
}

// CandidateFiles returns the enumerated candidates in discovery order.
func (r *ScanReport) CandidateFiles() []CandidateFile {
	return r.candidateFiles
}

// SetClasses stores the parse results, indexed like CandidateFiles.
// A nil entry marks a candidate that failed to parse.
func (r *ScanReport) SetClasses(classes []*ParsedClass) {
	r.classes = classes
	r.Parsed = 0
	for _, c := range classes {
		if c != nil {
			r.Parsed++
		}
	}
}

// Classes returns the parse results indexed like CandidateFiles.
func (r *ScanReport) Classes() []*ParsedClass {
	return r.classes
}

// AddMatch appends a match.
func (r *ScanReport) AddMatch(m Match) {
	r.Matches = append(r.Matches, m)
}

// AddFailure appends a failure.
func (r *ScanReport) AddFailure(f ScanFailure) {
	r.Failures = append(r.Failures, f)
}

// MatchedClasses returns the distinct class names with at least one match,
// in discovery order.
func (r *ScanReport) MatchedClasses() []string {
	seen := make(map[string]bool, len(r.Matches))
	names := make([]string, 0, len(r.Matches))
	for _, m := range r.Matches {
		if seen[m.ClassName] {
			continue
		}
		seen[m.ClassName] = true
		names = append(names, m.ClassName)
	}
	return names
}

// Target returns "namespace@annotation", the key used for history lookups.
func (r *ScanReport) Target() string {
	return TargetKey(r.Namespace, r.Annotation)
}

// TargetKey builds the history key for a namespace and annotation.
func TargetKey(namespace Namespace, annotation string) string {
	return namespace.String() + "@" + annotation
}
