package classfile

import (
	"errors"
	"fmt"
)

// ErrMalformedClassFile is the sentinel wrapped by every parse failure.
// Use errors.Is to detect it.
var ErrMalformedClassFile = errors.New("malformed class file")

// FormatError describes where and why a class file failed to parse.
type FormatError struct {
	// Offset is the byte offset at which the problem was detected.
	Offset int64

	// Section names the part of the layout being read (e.g. "constant pool").
	Section string

	// Err is the underlying cause.
	Err error
}

// Error implements the error interface.
func (e *FormatError) Error() string {
	return fmt.Sprintf("%s: %s at offset %d: %v", ErrMalformedClassFile, e.Section, e.Offset, e.Err)
}

// Unwrap returns both the sentinel and the underlying cause so that
// errors.Is works for ErrMalformedClassFile as well as io.ErrUnexpectedEOF.
func (e *FormatError) Unwrap() []error {
	return []error{ErrMalformedClassFile, e.Err}
}

// Parse failure causes.
var (
	errBadMagic        = errors.New("bad magic number")
	errBadConstantTag  = errors.New("unsupported constant pool tag")
	errBadIndex        = errors.New("constant pool index out of range")
	errWrongKind       = errors.New("constant pool entry has unexpected kind")
	errBadElementTag   = errors.New("unsupported element value tag")
	errLengthMismatch  = errors.New("attribute length does not match its contents")
	errBadDescriptor   = errors.New("invalid type descriptor")
	errBadModifiedUTF8 = errors.New("invalid modified UTF-8 sequence")
	errNestingTooDeep  = errors.New("element values nested too deeply")
)
