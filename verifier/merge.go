package verifier

import "strings"

// Merge joins two verification types meeting at a confluence point.
//
// Tags must match, except that null joins any object type to that object
// type. Objects join to their nearest common superclass, uninitialized
// values resolve to the incoming side, and every other tag must be
// identical and yields the existing value.
func Merge(h ClassHierarchy, existing, incoming StackElement) (StackElement, error) {
	switch {
	case existing.kind == KindNull && incoming.kind == KindObject:
		return incoming, nil
	case existing.kind == KindObject && incoming.kind == KindNull:
		return existing, nil
	case existing.kind != incoming.kind:
		return StackElement{}, mismatch(ErrTypeMismatch, existing, incoming)
	}

	switch existing.kind {
	case KindObject:
		return mergeObjects(h, existing, incoming)
	case KindUninitialized, KindUninitializedThis:
		return incoming, nil
	default:
		return existing, nil
	}
}

func mergeObjects(h ClassHierarchy, existing, incoming StackElement) (StackElement, error) {
	a, b := existing.descriptor, incoming.descriptor
	if a == b {
		return incoming, nil
	}
	if a == UniversalObject || b == UniversalObject {
		return Object(UniversalObject).WithProducer(incoming.producer), nil
	}
	if IsPrimitiveDescriptor(a) || IsPrimitiveDescriptor(b) {
		return StackElement{}, mismatch(ErrTypeMismatch, existing, incoming)
	}

	dims := ArrayDimensions(a)
	if dims != ArrayDimensions(b) {
		return StackElement{}, mismatch(ErrArrayDimensionMismatch, existing, incoming)
	}
	if dims == 0 {
		return Object(CommonSuperType(h, a, b)).WithProducer(incoming.producer), nil
	}

	ea, eb := ElementDescriptor(a), ElementDescriptor(b)
	if IsPrimitiveDescriptor(ea) || IsPrimitiveDescriptor(eb) {
		// Distinct primitive arrays only share Object, one dimension up.
		if dims == 1 {
			return Object(UniversalObject).WithProducer(incoming.producer), nil
		}
		return Object(strings.Repeat("[", dims-1) + FieldDescriptorOf(UniversalObject)).WithProducer(incoming.producer), nil
	}
	common := CommonSuperType(h, ea, eb)
	return Object(strings.Repeat("[", dims) + FieldDescriptorOf(common)).WithProducer(incoming.producer), nil
}

// MergeStack joins two operand stacks element by element. Stacks of
// different depth cannot meet.
func MergeStack(h ClassHierarchy, existing, incoming []StackElement) ([]StackElement, error) {
	if len(existing) != len(incoming) {
		return nil, &VerifyError{
			Kind:     ErrStackSizeMismatch,
			Existing: cloneStack(existing),
			Incoming: cloneStack(incoming),
		}
	}
	out := make([]StackElement, len(existing))
	for i := range existing {
		m, err := Merge(h, existing[i], incoming[i])
		if err != nil {
			return nil, err
		}
		out[i] = m
	}
	return out, nil
}

// MergeLocals joins two local variable arrays over the shorter length.
// Slots whose types cannot be joined become Top: the value is unusable past
// the confluence point but the paths themselves are legal.
func MergeLocals(h ClassHierarchy, existing, incoming []LocalStackElement) []LocalStackElement {
	n := min(len(existing), len(incoming))
	out := make([]LocalStackElement, n)
	for i := 0; i < n; i++ {
		e, in := existing[i], incoming[i]
		merged, err := Merge(h, e.Element, in.Element)
		if err != nil {
			merged = Top()
		}
		out[i] = LocalStackElement{Slot: i, Element: merged, Parameter: e.Parameter || in.Parameter}
	}
	// A category-2 value cut in half by a conflict is unusable too.
	for i := 0; i < n; i++ {
		if out[i].Element.IsCategory2() && (i+1 >= n || out[i+1].Element.kind != KindTop) {
			out[i].Element = Top()
		}
	}
	return CleanUpLocals(out)
}

// CleanUpLocals trims trailing Top slots. A Top continuing a category-2
// value is kept, and so are parameter slots.
func CleanUpLocals(locals []LocalStackElement) []LocalStackElement {
	n := len(locals)
	for n > 0 {
		last := locals[n-1]
		if last.Element.kind != KindTop || last.Parameter {
			break
		}
		if n >= 2 && locals[n-2].Element.IsCategory2() {
			break
		}
		n--
	}
	return locals[:n]
}
