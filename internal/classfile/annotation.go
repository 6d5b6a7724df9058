package classfile

import (
	"fmt"
	"strings"
)

// maxElementDepth bounds recursion through nested annotations and arrays.
const maxElementDepth = 64

// Annotation is one entry of a RuntimeVisibleAnnotations attribute.
type Annotation struct {
	// Type is the fully-qualified annotation type name, e.g. "com.example.Anno".
	Type string

	// Elements holds the element-value pairs rendered as source-like text.
	// It is populated only when parsing with WithElementValues.
	Elements []Element
}

// Element is a rendered element-value pair of an annotation.
type Element struct {
	Name  string
	Value string
}

// String renders the annotation in a source-like form.
func (a Annotation) String() string {
	if len(a.Elements) == 0 {
		return "@" + a.Type
	}
	parts := make([]string, len(a.Elements))
	for i, e := range a.Elements {
		parts[i] = e.Name + "=" + e.Value
	}
	return "@" + a.Type + "(" + strings.Join(parts, ", ") + ")"
}

// annotationReader decodes annotation structures against a constant pool.
// When render is false, element values are consumed but not rendered.
type annotationReader struct {
	br     *byteReader
	pool   constantPool
	render bool
}

// readAnnotations reads the body of a RuntimeVisibleAnnotations attribute.
func (ar *annotationReader) readAnnotations() ([]Annotation, error) {
	n, err := ar.br.u2()
	if err != nil {
		return nil, err
	}

	annotations := make([]Annotation, 0, n)
	for range n {
		a, err := ar.readAnnotation(0)
		if err != nil {
			return nil, err
		}
		annotations = append(annotations, a)
	}
	return annotations, nil
}

// readAnnotation reads one annotation structure: type_index,
// num_element_value_pairs, then the pairs.
func (ar *annotationReader) readAnnotation(depth int) (Annotation, error) {
	typeIndex, err := ar.br.u2()
	if err != nil {
		return Annotation{}, err
	}
	desc, err := ar.pool.utf8(typeIndex)
	if err != nil {
		return Annotation{}, err
	}
	typeName, err := annotationTypeName(desc)
	if err != nil {
		return Annotation{}, err
	}

	pairs, err := ar.br.u2()
	if err != nil {
		return Annotation{}, err
	}

	a := Annotation{Type: typeName}
	for range pairs {
		nameIndex, err := ar.br.u2()
		if err != nil {
			return Annotation{}, err
		}
		value, err := ar.readElementValue(depth + 1)
		if err != nil {
			return Annotation{}, err
		}
		if ar.render {
			name, err := ar.pool.utf8(nameIndex)
			if err != nil {
				return Annotation{}, err
			}
			a.Elements = append(a.Elements, Element{Name: name, Value: value})
		}
	}
	return a, nil
}

// readElementValue consumes one tagged element_value and returns its rendered
// form (empty when not rendering).
func (ar *annotationReader) readElementValue(depth int) (string, error) {
	if depth > maxElementDepth {
		return "", errNestingTooDeep
	}

	tag, err := ar.br.u1()
	if err != nil {
		return "", err
	}

	switch tag {
	case 'B', 'C', 'D', 'F', 'I', 'J', 'S', 'Z', 's':
		index, err := ar.br.u2()
		if err != nil {
			return "", err
		}
		if !ar.render {
			return "", nil
		}
		return ar.pool.literal(tag, index)

	case 'e':
		typeIndex, err := ar.br.u2()
		if err != nil {
			return "", err
		}
		constIndex, err := ar.br.u2()
		if err != nil {
			return "", err
		}
		if !ar.render {
			return "", nil
		}
		desc, err := ar.pool.utf8(typeIndex)
		if err != nil {
			return "", err
		}
		enumType, err := DescriptorToName(desc)
		if err != nil {
			return "", err
		}
		constName, err := ar.pool.utf8(constIndex)
		if err != nil {
			return "", err
		}
		return enumType + "." + constName, nil

	case 'c':
		classIndex, err := ar.br.u2()
		if err != nil {
			return "", err
		}
		if !ar.render {
			return "", nil
		}
		desc, err := ar.pool.utf8(classIndex)
		if err != nil {
			return "", err
		}
		name, err := DescriptorToName(desc)
		if err != nil {
			return "", err
		}
		return name + ".class", nil

	case '@':
		nested, err := ar.readAnnotation(depth)
		if err != nil {
			return "", err
		}
		if !ar.render {
			return "", nil
		}
		return nested.String(), nil

	case '[':
		n, err := ar.br.u2()
		if err != nil {
			return "", err
		}
		values := make([]string, 0, n)
		for range n {
			v, err := ar.readElementValue(depth + 1)
			if err != nil {
				return "", err
			}
			values = append(values, v)
		}
		if !ar.render {
			return "", nil
		}
		return "{" + strings.Join(values, ", ") + "}", nil

	default:
		return "", fmt.Errorf("%w: %q", errBadElementTag, tag)
	}
}

// annotationTypeName strips the "L" and ";" decoration from an annotation
// type descriptor and converts it to a dotted name.
func annotationTypeName(desc string) (string, error) {
	if len(desc) < 3 || desc[0] != 'L' || desc[len(desc)-1] != ';' {
		return "", fmt.Errorf("%w: annotation type %q", errBadDescriptor, desc)
	}
	return BinaryToName(desc[1 : len(desc)-1]), nil
}
