package verifier

import (
	"fmt"
	"strings"
)

// ArrayDimensions counts the leading '[' of an object descriptor.
func ArrayDimensions(desc string) int {
	n := 0
	for n < len(desc) && desc[n] == '[' {
		n++
	}
	return n
}

// ElementDescriptor strips array dimensions and the L...; wrapper, leaving
// an internal class name or a one-letter primitive descriptor.
func ElementDescriptor(desc string) string {
	elem := desc[ArrayDimensions(desc):]
	if len(elem) > 2 && elem[0] == 'L' && elem[len(elem)-1] == ';' {
		return elem[1 : len(elem)-1]
	}
	return elem
}

// IsPrimitiveDescriptor reports whether desc names a primitive or void.
func IsPrimitiveDescriptor(desc string) bool {
	return len(desc) == 1 && strings.ContainsAny(desc, "ZBCSIJFDV")
}

// ElementFromFieldDescriptor maps a field descriptor to the verification
// type a value of that field occupies.
func ElementFromFieldDescriptor(desc string) (StackElement, error) {
	if desc == "" {
		return StackElement{}, fmt.Errorf("empty field descriptor")
	}
	switch desc[0] {
	case 'Z', 'B', 'C', 'S', 'I':
		if len(desc) == 1 {
			return Integer(), nil
		}
	case 'J':
		if len(desc) == 1 {
			return Long(), nil
		}
	case 'F':
		if len(desc) == 1 {
			return Float(), nil
		}
	case 'D':
		if len(desc) == 1 {
			return Double(), nil
		}
	case 'L':
		if len(desc) > 2 && desc[len(desc)-1] == ';' {
			return Object(desc[1 : len(desc)-1]), nil
		}
	case '[':
		if _, err := ElementFromFieldDescriptor(desc[ArrayDimensions(desc):]); err != nil {
			return StackElement{}, fmt.Errorf("bad array descriptor %q: %w", desc, err)
		}
		return Object(desc), nil
	}
	return StackElement{}, fmt.Errorf("bad field descriptor %q", desc)
}

// FieldDescriptorOf returns the field descriptor of an object type:
// internal names gain the L...; wrapper, array descriptors are returned as is.
func FieldDescriptorOf(internal string) string {
	if strings.HasPrefix(internal, "[") {
		return internal
	}
	return "L" + internal + ";"
}

// ParseMethodDescriptor splits (params)ret into its field descriptors.
func ParseMethodDescriptor(desc string) (params []string, ret string, err error) {
	if !strings.HasPrefix(desc, "(") {
		return nil, "", fmt.Errorf("method descriptor %q must start with '('", desc)
	}
	i := 1
	for i < len(desc) && desc[i] != ')' {
		n, err := fieldDescriptorLen(desc[i:])
		if err != nil {
			return nil, "", fmt.Errorf("method descriptor %q: %w", desc, err)
		}
		params = append(params, desc[i:i+n])
		i += n
	}
	if i >= len(desc) {
		return nil, "", fmt.Errorf("method descriptor %q has no ')'", desc)
	}
	ret = desc[i+1:]
	if ret != "V" {
		n, err := fieldDescriptorLen(ret)
		if err != nil || n != len(ret) {
			return nil, "", fmt.Errorf("method descriptor %q has bad return type", desc)
		}
	}
	return params, ret, nil
}

func fieldDescriptorLen(s string) (int, error) {
	dims := ArrayDimensions(s)
	if dims == len(s) {
		return 0, fmt.Errorf("truncated descriptor %q", s)
	}
	switch s[dims] {
	case 'Z', 'B', 'C', 'S', 'I', 'J', 'F', 'D':
		return dims + 1, nil
	case 'L':
		end := strings.IndexByte(s[dims:], ';')
		if end < 2 {
			return 0, fmt.Errorf("unterminated class descriptor %q", s)
		}
		return dims + end + 1, nil
	}
	return 0, fmt.Errorf("unknown descriptor character %q", s[dims])
}

// ParametersFromDescriptor derives the formal parameters of a method, not
// counting the receiver. Slots start after the receiver of instance methods.
func ParametersFromDescriptor(desc string, static bool) ([]Parameter, error) {
	params, _, err := ParseMethodDescriptor(desc)
	if err != nil {
		return nil, err
	}
	slot := 1
	if static {
		slot = 0
	}
	out := make([]Parameter, 0, len(params))
	for i, p := range params {
		elem, err := ElementFromFieldDescriptor(p)
		if err != nil {
			return nil, err
		}
		out = append(out, Parameter{Name: fmt.Sprintf("arg%d", i), Type: elem, Slot: slot})
		slot += elem.Size()
	}
	return out, nil
}
