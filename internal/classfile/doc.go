// Package classfile reads the subset of the compiled class-file format that
// is needed to discover class-level annotations.
//
// The parser walks the fixed layout of a class file: magic number, version,
// constant pool, access flags, this/super class, interfaces, fields, methods
// and finally the class attributes. Fields and methods are skipped by their
// declared lengths. Among the class attributes only the first
// RuntimeVisibleAnnotations attribute is decoded, and from each annotation
// only the type name is surfaced by default.
//
// Any structural inconsistency (bad magic, truncated input, unknown constant
// tag, index out of range, attribute length overrun) is reported as an error
// wrapping ErrMalformedClassFile, so callers can skip the file with
// errors.Is and continue.
//
// # Usage
//
//	f, err := os.Open("Foo.class")
//	if err != nil {
//	    return err
//	}
//	defer f.Close()
//
//	class, err := classfile.Parse(f)
//	if errors.Is(err, classfile.ErrMalformedClassFile) {
//	    // skip this file
//	}
//	fmt.Println(class.Name, class.AnnotationTypes())
package classfile
