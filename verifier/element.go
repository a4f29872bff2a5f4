package verifier

import "fmt"

// UniversalObject is the internal name every reference type is assignable to.
const UniversalObject = "java/lang/Object"

// Kind tags a verification type.
type Kind uint8

const (
	KindTop Kind = iota
	KindInteger
	KindFloat
	KindLong
	KindDouble
	KindNull
	KindReturnAddress
	KindObject
	KindUninitialized
	KindUninitializedThis

	// Expectation-only kinds, never held by a stack or local slot.
	kindAnyValue
	kindAnyReference
)

func (k Kind) String() string {
	switch k {
	case KindTop:
		return "top"
	case KindInteger:
		return "int"
	case KindFloat:
		return "float"
	case KindLong:
		return "long"
	case KindDouble:
		return "double"
	case KindNull:
		return "null"
	case KindReturnAddress:
		return "returnAddress"
	case KindObject:
		return "object"
	case KindUninitialized:
		return "uninitialized"
	case KindUninitializedThis:
		return "uninitializedThis"
	case kindAnyValue:
		return "any"
	case kindAnyReference:
		return "reference"
	default:
		return fmt.Sprintf("kind(%d)", uint8(k))
	}
}

// StackElement is a verification type occupying a stack or local slot.
// Values are immutable; the producer is carried for diagnostics only and
// never takes part in equality.
type StackElement struct {
	kind       Kind
	descriptor string // KindObject, KindUninitialized
	site       string // KindUninitialized: label of the new instruction
	producer   *Instruction
}

func Top() StackElement           { return StackElement{kind: KindTop} }
func Integer() StackElement       { return StackElement{kind: KindInteger} }
func Float() StackElement         { return StackElement{kind: KindFloat} }
func Long() StackElement          { return StackElement{kind: KindLong} }
func Double() StackElement        { return StackElement{kind: KindDouble} }
func Null() StackElement          { return StackElement{kind: KindNull} }
func ReturnAddress() StackElement { return StackElement{kind: KindReturnAddress} }

// Object returns a reference to the class or array named by desc. Class
// types use internal names (java/lang/String), arrays use field descriptors
// ([Ljava/lang/String;, [I).
func Object(desc string) StackElement {
	return StackElement{kind: KindObject, descriptor: desc}
}

// Uninitialized returns the result of a new instruction at site that has not
// been through its constructor yet.
func Uninitialized(site, desc string) StackElement {
	return StackElement{kind: KindUninitialized, site: site, descriptor: desc}
}

// UninitializedThis is the receiver of a constructor before the superclass
// constructor returns.
func UninitializedThis() StackElement { return StackElement{kind: KindUninitializedThis} }

// AnyValue is a pop expectation accepted by every element.
func AnyValue() StackElement { return StackElement{kind: kindAnyValue} }

// AnyReference is a pop expectation accepted by every reference-like element.
func AnyReference() StackElement { return StackElement{kind: kindAnyReference} }

func (e StackElement) Kind() Kind             { return e.kind }
func (e StackElement) Descriptor() string     { return e.descriptor }
func (e StackElement) NewSite() string        { return e.site }
func (e StackElement) Producer() *Instruction { return e.producer }

// WithProducer returns a copy of e attributed to insn.
func (e StackElement) WithProducer(insn *Instruction) StackElement {
	e.producer = insn
	return e
}

// Size is the number of slots e occupies.
func (e StackElement) Size() int {
	if e.IsCategory2() {
		return 2
	}
	return 1
}

func (e StackElement) IsCategory2() bool {
	return e.kind == KindLong || e.kind == KindDouble
}

// IsReference reports whether e may be held where a reference is expected.
func (e StackElement) IsReference() bool {
	switch e.kind {
	case KindNull, KindObject, KindUninitialized, KindUninitializedThis, KindReturnAddress:
		return true
	}
	return false
}

func (e StackElement) isExpectation() bool {
	return e.kind == kindAnyValue || e.kind == kindAnyReference
}

// Equal compares tag and payload, ignoring the producer.
func (e StackElement) Equal(o StackElement) bool {
	return e.kind == o.kind && e.descriptor == o.descriptor && e.site == o.site
}

func (e StackElement) String() string {
	switch e.kind {
	case KindObject:
		return "Object(" + e.descriptor + ")"
	case KindUninitialized:
		return "Uninitialized(" + e.site + ", " + e.descriptor + ")"
	case KindUninitializedThis:
		return "UninitializedThis"
	}
	return e.kind.String()
}

// LocalStackElement binds a verification type to a local slot.
type LocalStackElement struct {
	Slot    int
	Element StackElement
	// Parameter marks slots seeded from the method's formal parameters.
	Parameter bool
}

func (l LocalStackElement) Equal(o LocalStackElement) bool {
	return l.Slot == o.Slot && l.Parameter == o.Parameter && l.Element.Equal(o.Element)
}

func (l LocalStackElement) String() string {
	return fmt.Sprintf("%d:%s", l.Slot, l.Element)
}

func stackSize(stack []StackElement) int {
	n := 0
	for _, e := range stack {
		n += e.Size()
	}
	return n
}

func cloneStack(stack []StackElement) []StackElement {
	if stack == nil {
		return nil
	}
	out := make([]StackElement, len(stack))
	copy(out, stack)
	return out
}

func cloneLocals(locals []LocalStackElement) []LocalStackElement {
	if locals == nil {
		return nil
	}
	out := make([]LocalStackElement, len(locals))
	copy(out, locals)
	return out
}

func equalStacks(a, b []StackElement) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}

func equalLocals(a, b []LocalStackElement) bool {
	if len(a) != len(b) {
		return false
	}
	for i := range a {
		if !a[i].Equal(b[i]) {
			return false
		}
	}
	return true
}
