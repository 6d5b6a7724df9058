package classfile

import (
	"fmt"
	"strings"
)

// primitiveNames maps base type descriptor characters to source names.
var primitiveNames = map[byte]string{
	'B': "byte",
	'C': "char",
	'D': "double",
	'F': "float",
	'I': "int",
	'J': "long",
	'S': "short",
	'Z': "boolean",
	'V': "void",
}

// BinaryToName converts an internal class name ("com/example/Foo") to the
// dot-delimited form used for reporting ("com.example.Foo").
func BinaryToName(internal string) string {
	return strings.ReplaceAll(internal, "/", ".")
}

// DescriptorToName converts a field type descriptor to a fully-qualified
// type name: "Lcom/example/Anno;" becomes "com.example.Anno", "[I" becomes
// "int[]".
func DescriptorToName(desc string) (string, error) {
	dims := 0
	for dims < len(desc) && desc[dims] == '[' {
		dims++
	}
	rest := desc[dims:]
	if rest == "" {
		return "", fmt.Errorf("%w: %q", errBadDescriptor, desc)
	}

	var base string
	switch rest[0] {
	case 'L':
		if len(rest) < 3 || rest[len(rest)-1] != ';' {
			return "", fmt.Errorf("%w: %q", errBadDescriptor, desc)
		}
		base = BinaryToName(rest[1 : len(rest)-1])
	default:
		name, ok := primitiveNames[rest[0]]
		if !ok || len(rest) != 1 {
			return "", fmt.Errorf("%w: %q", errBadDescriptor, desc)
		}
		base = name
	}

	return base + strings.Repeat("[]", dims), nil
}
