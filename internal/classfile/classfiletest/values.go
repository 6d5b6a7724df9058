package classfiletest

import "encoding/binary"

// Annotation describes an annotation structure to encode.
type Annotation struct {
	// Descriptor is the type descriptor, e.g. "Lcom/example/Anno;".
	Descriptor string
	Pairs      []Pair
}

// Anno is shorthand for an annotation without element values.
func Anno(descriptor string, pairs ...Pair) Annotation {
	return Annotation{Descriptor: descriptor, Pairs: pairs}
}

// Pair is an element-value pair.
type Pair struct {
	Name  string
	Value Value
}

// P builds a Pair.
func P(name string, v Value) Pair {
	return Pair{Name: name, Value: v}
}

func (a Annotation) encode(b *Builder) []byte {
	out := binary.BigEndian.AppendUint16(nil, b.Utf8(a.Descriptor))
	out = binary.BigEndian.AppendUint16(out, uint16(len(a.Pairs)))
	for _, p := range a.Pairs {
		out = binary.BigEndian.AppendUint16(out, b.Utf8(p.Name))
		out = append(out, p.Value.encode(b)...)
	}
	return out
}

// Value is an encodable element_value.
type Value interface {
	encode(b *Builder) []byte
}

type constValue struct {
	tag   byte
	index func(b *Builder) uint16
}

func (v constValue) encode(b *Builder) []byte {
	return binary.BigEndian.AppendUint16([]byte{v.tag}, v.index(b))
}

// Int is an int element value.
func Int(v int32) Value {
	return constValue{tag: 'I', index: func(b *Builder) uint16 { return b.Integer(v) }}
}

// Bool is a boolean element value.
func Bool(v bool) Value {
	n := int32(0)
	if v {
		n = 1
	}
	return constValue{tag: 'Z', index: func(b *Builder) uint16 { return b.Integer(n) }}
}

// Long is a long element value.
func Long(v int64) Value {
	return constValue{tag: 'J', index: func(b *Builder) uint16 { return b.Long(v) }}
}

// Double is a double element value.
func Double(v float64) Value {
	return constValue{tag: 'D', index: func(b *Builder) uint16 { return b.Double(v) }}
}

// Str is a String element value.
func Str(s string) Value {
	return constValue{tag: 's', index: func(b *Builder) uint16 { return b.Utf8(s) }}
}

type enumValue struct {
	descriptor, name string
}

// Enum is an enum constant element value.
func Enum(descriptor, name string) Value {
	return enumValue{descriptor: descriptor, name: name}
}

func (v enumValue) encode(b *Builder) []byte {
	out := binary.BigEndian.AppendUint16([]byte{'e'}, b.Utf8(v.descriptor))
	return binary.BigEndian.AppendUint16(out, b.Utf8(v.name))
}

type classValue string

// ClassRef is a class literal element value, e.g. "Ljava/lang/String;".
func ClassRef(descriptor string) Value {
	return classValue(descriptor)
}

func (v classValue) encode(b *Builder) []byte {
	return binary.BigEndian.AppendUint16([]byte{'c'}, b.Utf8(string(v)))
}

type nestedValue Annotation

// Nested is a nested annotation element value.
func Nested(a Annotation) Value {
	return nestedValue(a)
}

func (v nestedValue) encode(b *Builder) []byte {
	return append([]byte{'@'}, Annotation(v).encode(b)...)
}

type arrayValue []Value

// Array is an array element value.
func Array(values ...Value) Value {
	return arrayValue(values)
}

func (v arrayValue) encode(b *Builder) []byte {
	out := binary.BigEndian.AppendUint16([]byte{'['}, uint16(len(v)))
	for _, e := range v {
		out = append(out, e.encode(b)...)
	}
	return out
}

// RawValue encodes exactly the given bytes; used to inject bad tags.
type RawValue []byte

func (v RawValue) encode(*Builder) []byte {
	return []byte(v)
}
