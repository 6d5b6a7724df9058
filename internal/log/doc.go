// Package log builds the slog loggers used by annoscan.
//
// Log output goes to stderr so that the report on stdout stays machine
// readable. The PathHandler wrapper shortens paths under the user's home
// directory to "~" in every attribute, which keeps logs shareable and short:
//
//	logger := log.NewLogger(os.Stderr, verbose)
//	logger.Warn("skipping class file", "path", "/home/alice/app/build/A.class")
//	// level=WARN msg="skipping class file" path=~/app/build/A.class
//
// Without --verbose only warnings and errors are written.
package log
