package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// DefaultConfigFile is the default configuration file name.
const DefaultConfigFile = ".annoscan"

// ErrConfigNotFound is returned when the configuration file does not exist.
var ErrConfigNotFound = errors.New("configuration file not found")

// NamespaceConfig overrides scan settings for one namespace.
type NamespaceConfig struct {
	// Exclude patterns are added to the global ones.
	Exclude []string `yaml:"exclude,omitempty"`

	// Recursive overrides the global setting when present.
	Recursive *bool `yaml:"recursive,omitempty"`

	// Jobs overrides the global worker count when positive.
	Jobs int `yaml:"jobs,omitempty"`
}

// File represents the structure of the .annoscan configuration file.
//
//	classpath:
//	  - build/classes/java/main
//	  - libs/vendor.jar
//	exclude:
//	  - "*Test.class"
//	namespaces:
//	  com.example.legacy:
//	    recursive: false
type File struct {
	// ClassPath is used when no roots are given on the command line or in
	// ANNOSCAN_CLASSPATH. Relative entries are resolved against the
	// directory holding the file.
	ClassPath []string `yaml:"classpath,omitempty"`

	// Annotation is the default annotation type.
	Annotation string `yaml:"annotation,omitempty"`

	// Exclude holds glob patterns for class file base names.
	Exclude []string `yaml:"exclude,omitempty"`

	// Recursive sets the default traversal mode.
	Recursive *bool `yaml:"recursive,omitempty"`

	// Jobs is the default worker count.
	Jobs int `yaml:"jobs,omitempty"`

	// Namespaces maps a namespace to its overrides.
	Namespaces map[string]NamespaceConfig `yaml:"namespaces,omitempty"`
}

// LoadConfigFile loads a YAML configuration file.
// If the file does not exist, it returns ErrConfigNotFound.
// Callers decide whether that matters based on whether the path was given
// explicitly.
func LoadConfigFile(path string) (*File, error) {
	data, err := os.ReadFile(path) //nolint:gosec // User-provided config path is intentional
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrConfigNotFound
		}
		return nil, err
	}

	var cf File
	if err := yaml.Unmarshal(data, &cf); err != nil {
		return nil, fmt.Errorf("failed to parse %s: %w", path, err)
	}

	if cf.Namespaces == nil {
		cf.Namespaces = make(map[string]NamespaceConfig)
	}
	if cf.Jobs < 0 {
		return nil, fmt.Errorf("%s: %w", path, ErrInvalidJobs)
	}
	for ns, o := range cf.Namespaces {
		if o.Jobs < 0 {
			return nil, fmt.Errorf("%s: namespace %s: %w", path, ns, ErrInvalidJobs)
		}
	}

	base := filepath.Dir(path)
	for i, root := range cf.ClassPath {
		if !filepath.IsAbs(root) {
			cf.ClassPath[i] = filepath.Join(base, root)
		}
	}

	return &cf, nil
}

// FindConfigFile searches for the configuration file in the following order:
// 1. If configPath is specified, use it directly
// 2. Look for .annoscan in the current directory
// 3. Look for .annoscan in the user's home directory
//
// Returns the path to the configuration file if found, or empty string if not found.
func FindConfigFile(configPath string) string {
	if configPath != "" {
		if _, err := os.Stat(configPath); err == nil {
			return configPath
		}
		return ""
	}

	cwd, err := os.Getwd()
	if err == nil {
		cwdConfig := filepath.Join(cwd, DefaultConfigFile)
		if _, err := os.Stat(cwdConfig); err == nil {
			return cwdConfig
		}
	}

	home, err := os.UserHomeDir()
	if err == nil {
		homeConfig := filepath.Join(home, DefaultConfigFile)
		if _, err := os.Stat(homeConfig); err == nil {
			return homeConfig
		}
	}

	return ""
}
