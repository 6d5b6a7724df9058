package classfile

import (
	"bytes"
	"io"
)

// Magic is the fixed 4-byte header of every class file.
const Magic uint32 = 0xCAFEBABE

// RuntimeVisibleAnnotations is the attribute name holding annotations that
// are retained for runtime introspection.
const RuntimeVisibleAnnotations = "RuntimeVisibleAnnotations"

// Class access flags.
const (
	AccPublic     uint16 = 0x0001
	AccFinal      uint16 = 0x0010
	AccSuper      uint16 = 0x0020
	AccInterface  uint16 = 0x0200
	AccAbstract   uint16 = 0x0400
	AccSynthetic  uint16 = 0x1000
	AccAnnotation uint16 = 0x2000
	AccEnum       uint16 = 0x4000
	AccModule     uint16 = 0x8000
)

// Class is the parsed view of a class file: its identity and the
// annotations found in its class-level RuntimeVisibleAnnotations attribute.
type Class struct {
	// Name is the fully-qualified dot-delimited class name.
	Name string

	// SuperName is the dot-delimited super class name; empty for
	// java.lang.Object and module-info.
	SuperName string

	// Interfaces lists the directly implemented interfaces.
	Interfaces []string

	MinorVersion uint16
	MajorVersion uint16
	AccessFlags  uint16

	// Annotations holds the annotations in the order they are stored in the
	// file. Duplicates are preserved.
	Annotations []Annotation
}

// AnnotationTypes returns the annotation type names in encounter order.
func (c *Class) AnnotationTypes() []string {
	types := make([]string, len(c.Annotations))
	for i, a := range c.Annotations {
		types[i] = a.Type
	}
	return types
}

// IsAnnotation reports whether the class is itself an annotation type.
func (c *Class) IsAnnotation() bool {
	return c.AccessFlags&AccAnnotation != 0
}

// IsInterface reports whether the class is an interface.
func (c *Class) IsInterface() bool {
	return c.AccessFlags&AccInterface != 0
}

// Option configures Parse.
type Option func(*parser)

// WithElementValues renders the element-value pairs of each top-level
// annotation into Annotation.Elements.
func WithElementValues() Option {
	return func(p *parser) {
		p.renderElements = true
	}
}

// parser holds per-call parse state.
type parser struct {
	br             *byteReader
	pool           constantPool
	section        string
	renderElements bool
}

// Parse reads one class file from r. It consumes the stream through the end
// of the class attributes. The returned error wraps ErrMalformedClassFile
// when the input does not follow the class-file layout.
func Parse(r io.Reader, opts ...Option) (*Class, error) {
	p := &parser{br: newByteReader(r)}
	for _, opt := range opts {
		opt(p)
	}

	class, err := p.parse()
	if err != nil {
		return nil, &FormatError{Offset: p.br.offset(), Section: p.section, Err: err}
	}
	return class, nil
}

// ParseBytes parses a class file held in memory.
func ParseBytes(data []byte, opts ...Option) (*Class, error) {
	return Parse(bytes.NewReader(data), opts...)
}

func (p *parser) parse() (*Class, error) {
	class := &Class{}
	br := p.br

	p.section = "header"
	magic, err := br.u4()
	if err != nil {
		return nil, err
	}
	if magic != Magic {
		return nil, errBadMagic
	}
	if class.MinorVersion, err = br.u2(); err != nil {
		return nil, err
	}
	if class.MajorVersion, err = br.u2(); err != nil {
		return nil, err
	}

	p.section = "constant pool"
	if p.pool, err = readConstantPool(br); err != nil {
		return nil, err
	}

	p.section = "class info"
	if err := p.readClassInfo(class); err != nil {
		return nil, err
	}

	p.section = "fields"
	if err := p.skipMembers(); err != nil {
		return nil, err
	}

	p.section = "methods"
	if err := p.skipMembers(); err != nil {
		return nil, err
	}

	p.section = "attributes"
	if err := p.readClassAttributes(class); err != nil {
		return nil, err
	}

	return class, nil
}

// readClassInfo reads access flags, this/super class and interfaces.
func (p *parser) readClassInfo(class *Class) error {
	br := p.br

	var err error
	if class.AccessFlags, err = br.u2(); err != nil {
		return err
	}

	thisIndex, err := br.u2()
	if err != nil {
		return err
	}
	name, err := p.pool.className(thisIndex)
	if err != nil {
		return err
	}
	class.Name = BinaryToName(name)

	superIndex, err := br.u2()
	if err != nil {
		return err
	}
	if superIndex != 0 {
		super, err := p.pool.className(superIndex)
		if err != nil {
			return err
		}
		class.SuperName = BinaryToName(super)
	}

	count, err := br.u2()
	if err != nil {
		return err
	}
	for range count {
		idx, err := br.u2()
		if err != nil {
			return err
		}
		iface, err := p.pool.className(idx)
		if err != nil {
			return err
		}
		class.Interfaces = append(class.Interfaces, BinaryToName(iface))
	}
	return nil
}

// skipMembers skips a fields or methods table. Each member has a fixed
// 6-byte header (access, name, descriptor) followed by an attribute list.
func (p *parser) skipMembers() error {
	count, err := p.br.u2()
	if err != nil {
		return err
	}
	for range count {
		if err := p.br.skip(6); err != nil {
			return err
		}
		if err := p.skipAttributes(); err != nil {
			return err
		}
	}
	return nil
}

// skipAttributes skips an attribute list without interpreting it.
func (p *parser) skipAttributes() error {
	count, err := p.br.u2()
	if err != nil {
		return err
	}
	for range count {
		if err := p.skipAttribute(); err != nil {
			return err
		}
	}
	return nil
}

// skipAttribute skips one attribute: u2 name index, u4 length, body.
func (p *parser) skipAttribute() error {
	if _, err := p.br.u2(); err != nil {
		return err
	}
	length, err := p.br.u4()
	if err != nil {
		return err
	}
	return p.br.skip(int64(length))
}

// readClassAttributes walks the class attribute list and decodes the first
// RuntimeVisibleAnnotations attribute.
func (p *parser) readClassAttributes(class *Class) error {
	count, err := p.br.u2()
	if err != nil {
		return err
	}

	found := false
	for range count {
		nameIndex, err := p.br.u2()
		if err != nil {
			return err
		}
		length, err := p.br.u4()
		if err != nil {
			return err
		}
		name, err := p.pool.utf8(nameIndex)
		if err != nil {
			return err
		}

		if name != RuntimeVisibleAnnotations || found {
			if err := p.br.skip(int64(length)); err != nil {
				return err
			}
			continue
		}

		found = true
		p.section = RuntimeVisibleAnnotations
		window := p.br.sub(int64(length))
		ar := &annotationReader{br: &window.byteReader, pool: p.pool, render: p.renderElements}
		annotations, err := ar.readAnnotations()
		if err != nil {
			p.br.off = window.off
			return err
		}
		if err := window.close(); err != nil {
			return err
		}
		class.Annotations = annotations
		p.section = "attributes"
	}
	return nil
}
