package model

// CandidateFile is a discovered file believed to be a compiled class.
// It is created during enumeration and read once.
type CandidateFile struct {
	// Path is the absolute path of the class file, or of the archive that
	// contains it when Entry is set.
	Path string `json:"path"`

	// Entry is the archive member name (slash-delimited). Empty for plain files.
	Entry string `json:"entry,omitempty"`

	// Root is the class path root the file was found under.
	Root string `json:"root"`

	// Namespace is inferred from the file's position under Root.
	Namespace Namespace `json:"namespace"`
}

// InArchive reports whether the candidate is a member of an archive.
func (c CandidateFile) InArchive() bool {
	return c.Entry != ""
}

// Location returns a printable location: the file path, or
// "archive.jar!/com/example/Foo.class" for archive members.
func (c CandidateFile) Location() string {
	if c.Entry == "" {
		return c.Path
	}
	return c.Path + "!/" + c.Entry
}

// ParsedClass is the result of reading one CandidateFile.
type ParsedClass struct {
	// Name is the fully-qualified class name, e.g. "com.example.Foo".
	Name string `json:"name"`

	// Annotations lists annotation type names in the order stored in the
	// class file. Duplicates are preserved.
	Annotations []string `json:"annotations"`

	// Source is the file the class was read from.
	Source CandidateFile `json:"source"`

	// Digest is the hex SHA3-256 digest of the class file bytes.
	Digest string `json:"digest,omitempty"`

	// MajorVersion is the class-file major version (52 = Java 8).
	MajorVersion uint16 `json:"major_version,omitempty"`

	// Rendered holds the source-like form of each annotation, including
	// element values, indexed like Annotations. Empty unless requested.
	Rendered []string `json:"rendered,omitempty"`
}

// RenderedAt returns the rendered form of the i-th annotation, or "" when
// rendering was not requested.
func (p *ParsedClass) RenderedAt(i int) string {
	if i < 0 || i >= len(p.Rendered) {
		return ""
	}
	return p.Rendered[i]
}

// Occurrences returns how many times annotationType appears on the class.
// The comparison is exact and case-sensitive.
func (p *ParsedClass) Occurrences(annotationType string) int {
	n := 0
	for _, a := range p.Annotations {
		if a == annotationType {
			n++
		}
	}
	return n
}
