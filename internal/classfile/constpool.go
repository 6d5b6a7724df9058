package classfile

import (
	"fmt"
	"math"
	"strconv"
	"unicode/utf16"
	"unicode/utf8"
)

// Constant pool tags.
const (
	TagUtf8               uint8 = 1
	TagInteger            uint8 = 3
	TagFloat              uint8 = 4
	TagLong               uint8 = 5
	TagDouble             uint8 = 6
	TagClass              uint8 = 7
	TagString             uint8 = 8
	TagFieldref           uint8 = 9
	TagMethodref          uint8 = 10
	TagInterfaceMethodref uint8 = 11
	TagNameAndType        uint8 = 12
	TagMethodHandle       uint8 = 15
	TagMethodType         uint8 = 16
	TagDynamic            uint8 = 17
	TagInvokeDynamic      uint8 = 18
	TagModule             uint8 = 19
	TagPackage            uint8 = 20
)

// constant is one constant pool slot. Only the fields relevant to the tag
// are populated. A zero tag marks the unusable slot following a Long or
// Double, and slot 0.
type constant struct {
	tag uint8

	// text holds decoded Utf8 contents.
	text string

	// ref holds the first u2 index for reference kinds
	// (Class, String, MethodType, Module, Package name index; first index of
	// the two-index kinds).
	ref uint16

	// bits holds Integer/Float (low 32 bits) and Long/Double values.
	bits uint64
}

// constantPool is indexed from 1, as in the class-file format.
type constantPool []constant

// readConstantPool reads count-1 entries. Long and Double entries take two
// slots, so the index after one of them is left empty.
func readConstantPool(br *byteReader) (constantPool, error) {
	count, err := br.u2()
	if err != nil {
		return nil, err
	}

	pool := make(constantPool, count)
	for i := 1; i < int(count); i++ {
		tag, err := br.u1()
		if err != nil {
			return nil, err
		}

		c := constant{tag: tag}
		switch tag {
		case TagUtf8:
			n, err := br.u2()
			if err != nil {
				return nil, err
			}
			raw, err := br.bytes(int(n))
			if err != nil {
				return nil, err
			}
			c.text, err = decodeModifiedUTF8(raw)
			if err != nil {
				return nil, err
			}

		case TagInteger, TagFloat:
			v, err := br.u4()
			if err != nil {
				return nil, err
			}
			c.bits = uint64(v)

		case TagLong, TagDouble:
			if i+1 >= int(count) {
				return nil, fmt.Errorf("%w: wide constant at last slot %d", errBadIndex, i)
			}
			v, err := br.u8()
			if err != nil {
				return nil, err
			}
			c.bits = v
			pool[i] = c
			i++ // the next slot is unusable
			continue

		case TagClass, TagString, TagMethodType, TagModule, TagPackage:
			c.ref, err = br.u2()
			if err != nil {
				return nil, err
			}

		case TagFieldref, TagMethodref, TagInterfaceMethodref, TagNameAndType,
			TagDynamic, TagInvokeDynamic:
			c.ref, err = br.u2()
			if err != nil {
				return nil, err
			}
			if _, err := br.u2(); err != nil {
				return nil, err
			}

		case TagMethodHandle:
			// reference_kind u1, reference_index u2
			if _, err := br.u1(); err != nil {
				return nil, err
			}
			c.ref, err = br.u2()
			if err != nil {
				return nil, err
			}

		default:
			return nil, fmt.Errorf("%w: tag %d at index %d", errBadConstantTag, tag, i)
		}

		pool[i] = c
	}

	return pool, nil
}

// entry returns the constant at index i, checking range and kind.
func (p constantPool) entry(i uint16, tag uint8) (constant, error) {
	if i == 0 || int(i) >= len(p) {
		return constant{}, fmt.Errorf("%w: %d (pool size %d)", errBadIndex, i, len(p))
	}
	c := p[i]
	if c.tag != tag {
		return constant{}, fmt.Errorf("%w: index %d has tag %d, want %d", errWrongKind, i, c.tag, tag)
	}
	return c, nil
}

// utf8 resolves a Utf8 entry.
func (p constantPool) utf8(i uint16) (string, error) {
	c, err := p.entry(i, TagUtf8)
	if err != nil {
		return "", err
	}
	return c.text, nil
}

// className resolves a Class entry to its internal (slash-delimited) name.
func (p constantPool) className(i uint16) (string, error) {
	c, err := p.entry(i, TagClass)
	if err != nil {
		return "", err
	}
	return p.utf8(c.ref)
}

// literal renders a constant value for the element value tag given.
// Tags follow the element_value grammar: B C D F I J S Z s.
func (p constantPool) literal(elemTag byte, i uint16) (string, error) {
	switch elemTag {
	case 's':
		s, err := p.utf8(i)
		if err != nil {
			return "", err
		}
		return strconv.Quote(s), nil
	case 'J':
		c, err := p.entry(i, TagLong)
		if err != nil {
			return "", err
		}
		return strconv.FormatInt(int64(c.bits), 10) + "L", nil
	case 'D':
		c, err := p.entry(i, TagDouble)
		if err != nil {
			return "", err
		}
		return strconv.FormatFloat(math.Float64frombits(c.bits), 'g', -1, 64), nil
	case 'F':
		c, err := p.entry(i, TagFloat)
		if err != nil {
			return "", err
		}
		return strconv.FormatFloat(float64(math.Float32frombits(uint32(c.bits))), 'g', -1, 32) + "F", nil
	}

	c, err := p.entry(i, TagInteger)
	if err != nil {
		return "", err
	}
	v := int32(uint32(c.bits))
	switch elemTag {
	case 'Z':
		return strconv.FormatBool(v != 0), nil
	case 'C':
		return strconv.QuoteRune(rune(v)), nil
	default: // B, I, S
		return strconv.FormatInt(int64(v), 10), nil
	}
}

// decodeModifiedUTF8 decodes the class-file flavour of UTF-8: NUL is encoded
// in two bytes, and supplementary characters appear as two three-byte
// encoded UTF-16 surrogates.
func decodeModifiedUTF8(b []byte) (string, error) {
	ascii := true
	for _, c := range b {
		if c == 0 || c >= utf8.RuneSelf {
			ascii = false
			break
		}
	}
	if ascii {
		return string(b), nil
	}

	units := make([]uint16, 0, len(b))
	for i := 0; i < len(b); {
		c := b[i]
		switch {
		case c != 0 && c < 0x80:
			units = append(units, uint16(c))
			i++
		case c&0xE0 == 0xC0:
			if i+1 >= len(b) || b[i+1]&0xC0 != 0x80 {
				return "", errBadModifiedUTF8
			}
			units = append(units, uint16(c&0x1F)<<6|uint16(b[i+1]&0x3F))
			i += 2
		case c&0xF0 == 0xE0:
			if i+2 >= len(b) || b[i+1]&0xC0 != 0x80 || b[i+2]&0xC0 != 0x80 {
				return "", errBadModifiedUTF8
			}
			units = append(units, uint16(c&0x0F)<<12|uint16(b[i+1]&0x3F)<<6|uint16(b[i+2]&0x3F))
			i += 3
		default:
			return "", errBadModifiedUTF8
		}
	}

	return string(utf16.Decode(units)), nil
}
