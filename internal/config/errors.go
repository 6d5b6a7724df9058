package config

import "errors"

// Configuration validation errors.
// These errors are returned by Config.Validate() so callers can use
// errors.Is() for programmatic handling.
var (
	// ErrNoNamespace is returned when no namespace argument is given.
	ErrNoNamespace = errors.New("no namespace specified: provide at least one package namespace")

	// ErrNoAnnotation is returned when the target annotation is missing.
	ErrNoAnnotation = errors.New("no annotation specified: use --annotation")

	// ErrNoClassPath is returned when no class path root is known from flags,
	// ANNOSCAN_CLASSPATH or the config file.
	ErrNoClassPath = errors.New("no class path specified: use --classpath or set ANNOSCAN_CLASSPATH")

	// ErrInvalidJobs is returned when the read worker count is not positive.
	ErrInvalidJobs = errors.New("invalid jobs: must be positive")

	// ErrInvalidBatchSize is returned when the batch size is not positive.
	ErrInvalidBatchSize = errors.New("invalid batch size: must be positive")

	// ErrConflictingReportFormats is returned when both --json and --markdown
	// are specified. Only one output format can be used at a time.
	ErrConflictingReportFormats = errors.New("conflicting report formats: --json and --markdown cannot be used together")

	// ErrInvalidNamespace is returned when a namespace or the annotation name
	// is not a dotted name.
	ErrInvalidNamespace = errors.New("invalid namespace")

	// ErrInvalidExclude is returned when an exclude pattern is not a valid glob.
	ErrInvalidExclude = errors.New("invalid exclude pattern")
)

// IsConfigError reports whether err stems from invalid configuration rather
// than from running the scan.
func IsConfigError(err error) bool {
	for _, target := range []error{
		ErrNoNamespace,
		ErrNoAnnotation,
		ErrNoClassPath,
		ErrInvalidJobs,
		ErrInvalidBatchSize,
		ErrConflictingReportFormats,
		ErrInvalidNamespace,
		ErrInvalidExclude,
		ErrConfigNotFound,
	} {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}
