// Package classfiletest builds class files byte by byte for tests.
//
// The Builder writes a valid class-file layout with whatever constant pool
// entries, members and attributes a test asks for, so that parser edge cases
// (double-slot constants, nested element values, truncation) can be exercised
// without a compiler.
package classfiletest

import (
	"encoding/binary"
	"math"
	"os"
	"path/filepath"
	"testing"
)

// Builder assembles a class file. The zero value is not usable; call New.
type Builder struct {
	pool      []byte
	next      uint16
	utf8Index map[string]uint16

	minor, major uint16
	access       uint16
	thisClass    uint16
	superClass   uint16
	interfaces   []uint16
	fields       [][]byte
	methods      [][]byte
	attributes   [][]byte
}

// New returns a Builder for a class with the given internal name
// (e.g. "com/example/Foo"). An empty name adds no this_class entry; set it
// later with SetThis.
func New(internalName string) *Builder {
	b := &Builder{
		next:      1,
		utf8Index: make(map[string]uint16),
		major:     52,
		access:    0x0021,
	}
	if internalName != "" {
		b.thisClass = b.Class(internalName)
	}
	return b
}

// SetThis sets the this_class index directly.
func (b *Builder) SetThis(index uint16) *Builder {
	b.thisClass = index
	return b
}

// SetVersion sets the major and minor version.
func (b *Builder) SetVersion(major, minor uint16) *Builder {
	b.major, b.minor = major, minor
	return b
}

// SetAccess sets the class access flags.
func (b *Builder) SetAccess(flags uint16) *Builder {
	b.access = flags
	return b
}

// Super sets the super class.
func (b *Builder) Super(internalName string) *Builder {
	b.superClass = b.Class(internalName)
	return b
}

// Interface adds an implemented interface.
func (b *Builder) Interface(internalName string) *Builder {
	b.interfaces = append(b.interfaces, b.Class(internalName))
	return b
}

// Utf8 adds (or reuses) a Utf8 entry and returns its index.
// Only plain ASCII and BMP text is encoded; use RawUtf8 for other bytes.
func (b *Builder) Utf8(s string) uint16 {
	if i, ok := b.utf8Index[s]; ok {
		return i
	}
	i := b.RawUtf8([]byte(s))
	b.utf8Index[s] = i
	return i
}

// RawUtf8 adds a Utf8 entry holding exactly the given bytes.
func (b *Builder) RawUtf8(raw []byte) uint16 {
	b.pool = append(b.pool, 1)
	b.pool = binary.BigEndian.AppendUint16(b.pool, uint16(len(raw)))
	b.pool = append(b.pool, raw...)
	return b.take(1)
}

// Integer adds an Integer entry.
func (b *Builder) Integer(v int32) uint16 {
	b.pool = append(b.pool, 3)
	b.pool = binary.BigEndian.AppendUint32(b.pool, uint32(v))
	return b.take(1)
}

// Float adds a Float entry.
func (b *Builder) Float(v float32) uint16 {
	b.pool = append(b.pool, 4)
	b.pool = binary.BigEndian.AppendUint32(b.pool, math.Float32bits(v))
	return b.take(1)
}

// Long adds a Long entry, which occupies two slots.
func (b *Builder) Long(v int64) uint16 {
	b.pool = append(b.pool, 5)
	b.pool = binary.BigEndian.AppendUint64(b.pool, uint64(v))
	return b.take(2)
}

// Double adds a Double entry, which occupies two slots.
func (b *Builder) Double(v float64) uint16 {
	b.pool = append(b.pool, 6)
	b.pool = binary.BigEndian.AppendUint64(b.pool, math.Float64bits(v))
	return b.take(2)
}

// Class adds a Class entry pointing at a Utf8 name.
func (b *Builder) Class(internalName string) uint16 {
	name := b.Utf8(internalName)
	b.pool = append(b.pool, 7)
	b.pool = binary.BigEndian.AppendUint16(b.pool, name)
	return b.take(1)
}

// String adds a String entry.
func (b *Builder) String(s string) uint16 {
	text := b.Utf8(s)
	b.pool = append(b.pool, 8)
	b.pool = binary.BigEndian.AppendUint16(b.pool, text)
	return b.take(1)
}

// Methodref adds a Methodref entry together with its NameAndType.
func (b *Builder) Methodref(owner, name, desc string) uint16 {
	class := b.Class(owner)
	nat := b.NameAndType(name, desc)
	b.pool = append(b.pool, 10)
	b.pool = binary.BigEndian.AppendUint16(b.pool, class)
	b.pool = binary.BigEndian.AppendUint16(b.pool, nat)
	return b.take(1)
}

// NameAndType adds a NameAndType entry.
func (b *Builder) NameAndType(name, desc string) uint16 {
	n := b.Utf8(name)
	d := b.Utf8(desc)
	b.pool = append(b.pool, 12)
	b.pool = binary.BigEndian.AppendUint16(b.pool, n)
	b.pool = binary.BigEndian.AppendUint16(b.pool, d)
	return b.take(1)
}

// MethodHandle adds a MethodHandle entry referencing a Methodref.
func (b *Builder) MethodHandle(kind uint8, ref uint16) uint16 {
	b.pool = append(b.pool, 15, kind)
	b.pool = binary.BigEndian.AppendUint16(b.pool, ref)
	return b.take(1)
}

// RawConstant appends an arbitrary tagged entry; used to inject bad tags.
func (b *Builder) RawConstant(tag uint8, body []byte) uint16 {
	b.pool = append(b.pool, tag)
	b.pool = append(b.pool, body...)
	return b.take(1)
}

func (b *Builder) take(slots uint16) uint16 {
	i := b.next
	b.next += slots
	return i
}

// Field adds a field with the given attributes.
func (b *Builder) Field(name, desc string, attrs ...Attribute) *Builder {
	b.fields = append(b.fields, b.member(name, desc, attrs))
	return b
}

// Method adds a method with the given attributes.
func (b *Builder) Method(name, desc string, attrs ...Attribute) *Builder {
	b.methods = append(b.methods, b.member(name, desc, attrs))
	return b
}

func (b *Builder) member(name, desc string, attrs []Attribute) []byte {
	out := binary.BigEndian.AppendUint16(nil, 0x0001)
	out = binary.BigEndian.AppendUint16(out, b.Utf8(name))
	out = binary.BigEndian.AppendUint16(out, b.Utf8(desc))
	out = binary.BigEndian.AppendUint16(out, uint16(len(attrs)))
	for _, a := range attrs {
		out = append(out, b.encodeAttribute(a)...)
	}
	return out
}

// Attribute is a raw attribute. When Length is nil the body length is used.
type Attribute struct {
	Name   string
	Body   []byte
	Length *uint32
}

// Attr is a convenience constructor for a well-formed raw attribute.
func Attr(name string, body []byte) Attribute {
	return Attribute{Name: name, Body: body}
}

// ClassAttribute adds a raw class-level attribute.
func (b *Builder) ClassAttribute(a Attribute) *Builder {
	b.attributes = append(b.attributes, b.encodeAttribute(a))
	return b
}

func (b *Builder) encodeAttribute(a Attribute) []byte {
	length := uint32(len(a.Body))
	if a.Length != nil {
		length = *a.Length
	}
	out := binary.BigEndian.AppendUint16(nil, b.Utf8(a.Name))
	out = binary.BigEndian.AppendUint32(out, length)
	return append(out, a.Body...)
}

// Annotations adds a class-level RuntimeVisibleAnnotations attribute.
func (b *Builder) Annotations(annotations ...Annotation) *Builder {
	return b.ClassAttribute(Attr("RuntimeVisibleAnnotations", b.AnnotationsBody(annotations...)))
}

// AnnotationsBody encodes the body of an annotations attribute, adding the
// constants it needs to the pool.
func (b *Builder) AnnotationsBody(annotations ...Annotation) []byte {
	out := binary.BigEndian.AppendUint16(nil, uint16(len(annotations)))
	for _, a := range annotations {
		out = append(out, a.encode(b)...)
	}
	return out
}

// Bytes returns the encoded class file.
func (b *Builder) Bytes() []byte {
	out := binary.BigEndian.AppendUint32(nil, 0xCAFEBABE)
	out = binary.BigEndian.AppendUint16(out, b.minor)
	out = binary.BigEndian.AppendUint16(out, b.major)
	out = binary.BigEndian.AppendUint16(out, b.next)
	out = append(out, b.pool...)
	out = binary.BigEndian.AppendUint16(out, b.access)
	out = binary.BigEndian.AppendUint16(out, b.thisClass)
	out = binary.BigEndian.AppendUint16(out, b.superClass)
	out = binary.BigEndian.AppendUint16(out, uint16(len(b.interfaces)))
	for _, i := range b.interfaces {
		out = binary.BigEndian.AppendUint16(out, i)
	}
	out = appendTable(out, b.fields)
	out = appendTable(out, b.methods)
	out = appendTable(out, b.attributes)
	return out
}

func appendTable(out []byte, entries [][]byte) []byte {
	out = binary.BigEndian.AppendUint16(out, uint16(len(entries)))
	for _, e := range entries {
		out = append(out, e...)
	}
	return out
}

// WriteFile writes data to dir/rel, creating parent directories.
func WriteFile(t testing.TB, dir, rel string, data []byte) string {
	t.Helper()

	path := filepath.Join(dir, filepath.FromSlash(rel))
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		t.Fatalf("failed to create directory: %v", err)
	}
	if err := os.WriteFile(path, data, 0o600); err != nil {
		t.Fatalf("failed to write %s: %v", path, err)
	}
	return path
}
