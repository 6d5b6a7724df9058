package model

import (
	"errors"
	"fmt"
	"strings"
)

// ErrInvalidNamespace is returned when a namespace string cannot be mapped to
// a directory path.
var ErrInvalidNamespace = errors.New("invalid namespace")

// Namespace is a dot-delimited package name such as "com.example.service".
// The empty namespace denotes the top of a class path root.
type Namespace string

// ParseNamespace validates s and returns it as a Namespace.
// Every segment must be non-empty and must not contain a path separator.
func ParseNamespace(s string) (Namespace, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return "", nil
	}
	for i, seg := range strings.Split(s, ".") {
		if seg == "" {
			return "", fmt.Errorf("%w: %q has an empty segment at position %d", ErrInvalidNamespace, s, i)
		}
		if strings.ContainsAny(seg, `/\`) {
			return "", fmt.Errorf("%w: segment %q contains a path separator", ErrInvalidNamespace, seg)
		}
	}
	return Namespace(s), nil
}

// Path returns the slash-delimited form: "com.example" becomes "com/example".
func (n Namespace) Path() string {
	return strings.ReplaceAll(string(n), ".", "/")
}

// Child appends a segment: Namespace("com").Child("example") is "com.example".
func (n Namespace) Child(segment string) Namespace {
	if n == "" {
		return Namespace(segment)
	}
	return n + "." + Namespace(segment)
}

// String returns the dotted form.
func (n Namespace) String() string {
	return string(n)
}

// FromPath converts a slash-delimited directory path to a Namespace without
// validating it.
func FromPath(p string) Namespace {
	p = strings.Trim(p, "/")
	return Namespace(strings.ReplaceAll(p, "/", "."))
}
