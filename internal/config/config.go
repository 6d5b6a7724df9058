package config

import (
	"fmt"
	"path"
	"path/filepath"
	"strings"

	"github.com/adrg/xdg"
	"github.com/nao1215/annoscan/internal/model"
)

// Default configuration values.
const (
	// DefaultJobs reads class files one at a time.
	DefaultJobs = 1

	// DefaultBatchSize is the number of namespaces scanned concurrently.
	// Each namespace already has its own reader pool, so keep this small.
	DefaultBatchSize = 1

	// AppName is the application name used for XDG directory paths.
	AppName = "annoscan"

	// ClassPathEnv is the environment variable holding a path-list separated
	// set of class path roots.
	ClassPathEnv = "ANNOSCAN_CLASSPATH"
)

// Config holds all configuration options for annoscan.
// It is populated from CLI flags, then the environment, then the config file,
// and passed through the application rather than kept as global state.
type Config struct {
	// Namespaces are the package namespaces to scan, e.g. "com.example".
	Namespaces []string

	// Annotation is the fully-qualified annotation type to look for.
	Annotation string

	// ClassPath lists the roots searched for each namespace: directories or
	// .jar/.zip archives, consulted in order.
	ClassPath []string

	// Exclude holds glob patterns matched against class file base names.
	Exclude []string

	// Recursive descends into sub-namespaces. On by default.
	Recursive bool

	// Jobs is the number of class files read concurrently per namespace.
	Jobs int

	// BatchSize is the number of namespaces scanned concurrently.
	BatchSize int

	// Verbose enables debug logging.
	Verbose bool

	// LogJSON switches log output on stderr to JSON.
	LogJSON bool

	// ConfigFilePath is the path to the configuration file.
	// If empty, .annoscan is searched in the current directory and then in
	// the user's home directory.
	ConfigFilePath string

	// File is the loaded configuration file, if any.
	File *File

	// JSONReport selects JSON output. Mutually exclusive with MarkdownReport.
	JSONReport bool

	// MarkdownReport selects Markdown output. Mutually exclusive with JSONReport.
	MarkdownReport bool

	// ReportFile redirects the report to a file instead of stdout.
	ReportFile string

	// Summary appends candidate, parse, match and failure counts to the
	// plain report.
	Summary bool

	// ShowValues renders annotation element values alongside each match.
	ShowValues bool

	// DBDir is the directory holding the history database.
	// Defaults to the XDG data directory (~/.local/share/annoscan on Linux).
	DBDir string

	// SaveToDB stores each report in the history database.
	SaveToDB bool
}

// NewConfig creates a new Config with default values.
func NewConfig() *Config {
	return &Config{
		Recursive: true,
		Jobs:      DefaultJobs,
		BatchSize: DefaultBatchSize,
		DBDir:     XDGDataDir(),
		SaveToDB:  true,
	}
}

// XDGDataDir returns the XDG data directory for annoscan.
// On Linux: ~/.local/share/annoscan
// On macOS: ~/Library/Application Support/annoscan
// On Windows: %LOCALAPPDATA%\annoscan
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// XDGConfigDir returns the XDG config directory for annoscan.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGCacheDir returns the XDG cache directory for annoscan.
func XDGCacheDir() string {
	return filepath.Join(xdg.CacheHome, AppName)
}

// FlagSet reports whether a CLI flag was given explicitly.
// cobra's (*pflag.FlagSet).Changed satisfies it.
type FlagSet func(name string) bool

// ApplyFile merges the config file into c. Values given on the command line
// win; exclude patterns from both sources are combined.
func (c *Config) ApplyFile(f *File, changed FlagSet) {
	if f == nil {
		return
	}
	if changed == nil {
		changed = func(string) bool { return false }
	}
	c.File = f

	if len(c.ClassPath) == 0 {
		c.ClassPath = append(c.ClassPath, f.ClassPath...)
	}
	c.Exclude = append(c.Exclude, f.Exclude...)
	if !changed("annotation") && c.Annotation == "" {
		c.Annotation = f.Annotation
	}
	if !changed("jobs") && f.Jobs > 0 {
		c.Jobs = f.Jobs
	}
	if !changed("no-recursive") && f.Recursive != nil {
		c.Recursive = *f.Recursive
	}
}

// ApplyEnv fills ClassPath from ANNOSCAN_CLASSPATH when no roots were given.
func (c *Config) ApplyEnv(getenv func(string) string) {
	if len(c.ClassPath) > 0 {
		return
	}
	for _, root := range filepath.SplitList(getenv(ClassPathEnv)) {
		if root = strings.TrimSpace(root); root != "" {
			c.ClassPath = append(c.ClassPath, root)
		}
	}
}

// Settings are the enumeration and read settings in effect for a namespace.
type Settings struct {
	Exclude   []string
	Recursive bool
	Jobs      int
}

// ForNamespace returns the settings for ns, applying the config file's
// per-namespace override when one exists.
func (c *Config) ForNamespace(ns string) Settings {
	s := Settings{
		Exclude:   c.Exclude,
		Recursive: c.Recursive,
		Jobs:      c.Jobs,
	}
	if c.File == nil {
		return s
	}
	o, ok := c.File.Namespaces[ns]
	if !ok {
		return s
	}
	if len(o.Exclude) > 0 {
		s.Exclude = append(append([]string(nil), s.Exclude...), o.Exclude...)
	}
	if o.Recursive != nil {
		s.Recursive = *o.Recursive
	}
	if o.Jobs > 0 {
		s.Jobs = o.Jobs
	}
	return s
}

// Validate checks if the configuration is valid and returns the first
// problem found.
func (c *Config) Validate() error {
	if len(c.Namespaces) == 0 {
		return ErrNoNamespace
	}
	for _, ns := range c.Namespaces {
		if _, err := model.ParseNamespace(ns); err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidNamespace, ns)
		}
	}

	if strings.TrimSpace(c.Annotation) == "" {
		return ErrNoAnnotation
	}
	if _, err := model.ParseNamespace(c.Annotation); err != nil || strings.TrimSpace(c.Annotation) != c.Annotation {
		return fmt.Errorf("%w: annotation %q", ErrInvalidNamespace, c.Annotation)
	}

	if len(c.ClassPath) == 0 {
		return ErrNoClassPath
	}

	if c.Jobs <= 0 {
		return ErrInvalidJobs
	}

	if c.BatchSize <= 0 {
		return ErrInvalidBatchSize
	}

	if c.JSONReport && c.MarkdownReport {
		return ErrConflictingReportFormats
	}

	for _, p := range c.Exclude {
		if _, err := path.Match(p, ""); err != nil {
			return fmt.Errorf("%w: %q", ErrInvalidExclude, p)
		}
	}

	return nil
}
