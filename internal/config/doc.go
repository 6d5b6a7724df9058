// Package config provides configuration structures and utilities for annoscan.
// It defines the scan options derived from CLI flags, the optional .annoscan
// YAML file, and the XDG directories used for the history database.
package config
