package verifier

import (
	"fmt"
	"strings"
)

// OperationKind is the action of one StackOperation.
type OperationKind uint8

const (
	OpPush OperationKind = iota
	OpPop
	// OpInitialize marks the uninitialized value held by a capsule as
	// constructed, everywhere it occurs in the frame.
	OpInitialize
	// OpPushComponent pushes the component type of the array held by a
	// capsule.
	OpPushComponent
)

func (k OperationKind) String() string {
	switch k {
	case OpPush, OpPushComponent:
		return "push"
	case OpPop:
		return "pop"
	case OpInitialize:
		return "init"
	default:
		return fmt.Sprintf("op(%d)", uint8(k))
	}
}

// Target selects the operand stack or a local slot.
type Target uint8

const (
	TargetStack Target = iota
	TargetLocal
)

// StackOperation is one step of an instruction's declared effect.
type StackOperation struct {
	Kind   OperationKind
	Target Target
	Slot   int // TargetLocal only

	// Element is the pushed value or, for pops, the expectation the popped
	// value is validated against.
	Element StackElement

	// Capsules, when set, replace Element as the pushed value or receive the
	// popped values. Width is the number of stack slots a capsule pop consumes.
	Capsules []Capsule
	Width    int
}

func (op StackOperation) String() string {
	var b strings.Builder
	b.WriteString(op.Kind.String())
	if op.Target == TargetLocal {
		fmt.Fprintf(&b, " local[%d]", op.Slot)
	}
	switch {
	case len(op.Capsules) > 0:
		names := make([]string, len(op.Capsules))
		for i, c := range op.Capsules {
			names[i] = fmt.Sprintf("$%d", c)
		}
		b.WriteByte(' ')
		b.WriteString(strings.Join(names, ","))
		if op.Width > 1 {
			fmt.Fprintf(&b, "/%d", op.Width)
		}
		if op.Kind == OpPushComponent {
			b.WriteString("[]")
		}
		if op.Kind == OpPop && op.Element.Kind() != kindAnyValue {
			b.WriteString(" as ")
			b.WriteString(op.Element.String())
		}
	case op.Kind != OpInitialize:
		b.WriteByte(' ')
		b.WriteString(op.Element.String())
	}
	return b.String()
}

// FrameDifferenceInfo is the ordered effect an instruction has on the
// simulated frame. Building one never touches simulator state.
type FrameDifferenceInfo struct {
	ops      []StackOperation
	capsules int
}

// NewEffect starts an empty effect descriptor.
func NewEffect() *FrameDifferenceInfo {
	return &FrameDifferenceInfo{}
}

// NewCapsule allocates a capsule scoped to this descriptor.
func (f *FrameDifferenceInfo) NewCapsule() Capsule {
	c := Capsule(f.capsules)
	f.capsules++
	return c
}

// Push declares a value pushed onto the operand stack.
func (f *FrameDifferenceInfo) Push(e StackElement) *FrameDifferenceInfo {
	f.ops = append(f.ops, StackOperation{Kind: OpPush, Target: TargetStack, Element: e})
	return f
}

// PushCapsule pushes whatever the capsule captured. Empty capsules push nothing.
func (f *FrameDifferenceInfo) PushCapsule(c Capsule) *FrameDifferenceInfo {
	f.ops = append(f.ops, StackOperation{Kind: OpPush, Target: TargetStack, Capsules: []Capsule{c}})
	return f
}

// PushComponent pushes the component type of the array captured in c,
// validated against expect. A null array yields null.
func (f *FrameDifferenceInfo) PushComponent(c Capsule, expect StackElement) *FrameDifferenceInfo {
	f.ops = append(f.ops, StackOperation{Kind: OpPushComponent, Target: TargetStack, Element: expect, Capsules: []Capsule{c}})
	return f
}

// Pop declares a value popped from the operand stack and validated
// against expect.
func (f *FrameDifferenceInfo) Pop(expect StackElement) *FrameDifferenceInfo {
	f.ops = append(f.ops, StackOperation{Kind: OpPop, Target: TargetStack, Element: expect})
	return f
}

// PopCapsule pops one category-1 value into c.
func (f *FrameDifferenceInfo) PopCapsule(c Capsule) *FrameDifferenceInfo {
	return f.PopCapsules(1, c)
}

// PopCapsuleAs pops one category-1 value into c, validated against expect.
func (f *FrameDifferenceInfo) PopCapsuleAs(c Capsule, expect StackElement) *FrameDifferenceInfo {
	f.ops = append(f.ops, StackOperation{Kind: OpPop, Target: TargetStack, Element: expect, Capsules: []Capsule{c}, Width: 1})
	return f
}

// PopCapsules pops values until width slots are consumed, capturing one
// value per capsule in order (top of stack first). A category-2 value
// consumes two slots and a single capsule, leaving the next capsule empty.
func (f *FrameDifferenceInfo) PopCapsules(width int, cs ...Capsule) *FrameDifferenceInfo {
	f.ops = append(f.ops, StackOperation{Kind: OpPop, Target: TargetStack, Element: AnyValue(), Capsules: cs, Width: width})
	return f
}

// PushLocal declares a store of e into a local slot.
func (f *FrameDifferenceInfo) PushLocal(slot int, e StackElement) *FrameDifferenceInfo {
	f.ops = append(f.ops, StackOperation{Kind: OpPush, Target: TargetLocal, Slot: slot, Element: e})
	return f
}

// PushLocalCapsule stores the capsule content into a local slot.
func (f *FrameDifferenceInfo) PushLocalCapsule(slot int, c Capsule) *FrameDifferenceInfo {
	f.ops = append(f.ops, StackOperation{Kind: OpPush, Target: TargetLocal, Slot: slot, Capsules: []Capsule{c}})
	return f
}

// PopLocal reads and validates a local slot. Locals are never consumed.
func (f *FrameDifferenceInfo) PopLocal(slot int, expect StackElement) *FrameDifferenceInfo {
	f.ops = append(f.ops, StackOperation{Kind: OpPop, Target: TargetLocal, Slot: slot, Element: expect})
	return f
}

// PopLocalCapsule reads a local slot into c after validating it.
func (f *FrameDifferenceInfo) PopLocalCapsule(slot int, expect StackElement, c Capsule) *FrameDifferenceInfo {
	f.ops = append(f.ops, StackOperation{Kind: OpPop, Target: TargetLocal, Slot: slot, Element: expect, Capsules: []Capsule{c}, Width: 1})
	return f
}

// Initialize declares that the uninitialized value captured in c has been
// constructed. Every copy of it in the frame becomes a plain object
// reference.
func (f *FrameDifferenceInfo) Initialize(c Capsule) *FrameDifferenceInfo {
	f.ops = append(f.ops, StackOperation{Kind: OpInitialize, Capsules: []Capsule{c}})
	return f
}

// Operations returns a copy of the declared operations.
func (f *FrameDifferenceInfo) Operations() []StackOperation {
	if f == nil {
		return nil
	}
	out := make([]StackOperation, len(f.ops))
	copy(out, f.ops)
	return out
}

// Capsules is the number of capsules the descriptor allocated.
func (f *FrameDifferenceInfo) Capsules() int {
	if f == nil {
		return 0
	}
	return f.capsules
}

// Len is the number of declared operations.
func (f *FrameDifferenceInfo) Len() int {
	if f == nil {
		return 0
	}
	return len(f.ops)
}

func (f *FrameDifferenceInfo) String() string {
	if f == nil || len(f.ops) == 0 {
		return "{}"
	}
	parts := make([]string, len(f.ops))
	for i, op := range f.ops {
		parts[i] = op.String()
	}
	return "{" + strings.Join(parts, "; ") + "}"
}
