package verifier

import "fmt"

// FrameKind is the compact encoding chosen for one frame-map entry.
type FrameKind uint8

const (
	FrameSame FrameKind = iota
	FrameSameLocals1StackItem
	FrameChop
	FrameAppend
	FrameFull
)

func (k FrameKind) String() string {
	switch k {
	case FrameSame:
		return "SAME"
	case FrameSameLocals1StackItem:
		return "SAME_LOCALS_1_STACK_ITEM"
	case FrameChop:
		return "CHOP"
	case FrameAppend:
		return "APPEND"
	case FrameFull:
		return "FULL"
	default:
		return fmt.Sprintf("FrameKind(%d)", uint8(k))
	}
}

// maxDeltaLocals is the most locals a CHOP or APPEND entry may carry.
const maxDeltaLocals = 3

// FrameMapEntry describes how the frame at Target differs from the previous
// frame. Payloads are lowered verification types: a category-2 value is a
// single token.
type FrameMapEntry struct {
	Kind   FrameKind
	Target *Label
	// Stack is set for SAME_LOCALS_1_STACK_ITEM and FULL.
	Stack []StackElement
	// Locals holds the added locals of APPEND, the removed locals of CHOP and
	// every local of FULL.
	Locals []StackElement
	// Chopped is the number of locals removed by CHOP.
	Chopped int
}

func (e FrameMapEntry) String() string {
	switch e.Kind {
	case FrameSame:
		return fmt.Sprintf("%s %s", e.Target, e.Kind)
	case FrameSameLocals1StackItem:
		return fmt.Sprintf("%s %s %s", e.Target, e.Kind, formatStack(e.Stack))
	case FrameChop:
		return fmt.Sprintf("%s %s %d", e.Target, e.Kind, e.Chopped)
	case FrameAppend:
		return fmt.Sprintf("%s %s %s", e.Target, e.Kind, formatStack(e.Locals))
	default:
		return fmt.Sprintf("%s %s locals=%s stack=%s", e.Target, e.Kind, formatStack(e.Locals), formatStack(e.Stack))
	}
}

// LowerLocals converts locals to their classfile representation, dropping
// the synthetic Top that continues a category-2 value.
func LowerLocals(locals []LocalStackElement) []StackElement {
	out := make([]StackElement, 0, len(locals))
	for i := 0; i < len(locals); i++ {
		e := locals[i].Element
		out = append(out, e)
		if e.IsCategory2() && i+1 < len(locals) && locals[i+1].Element.kind == KindTop {
			i++
		}
	}
	return out
}

// EncodeFrames turns the confirmed frames, ordered by offset and starting
// with the implicit entry frame, into the smallest legal delta sequence.
func EncodeFrames(frames []*Frame) []FrameMapEntry {
	if len(frames) < 2 {
		return nil
	}
	entries := make([]FrameMapEntry, 0, len(frames)-1)
	for i := 1; i < len(frames); i++ {
		entries = append(entries, encodeFrame(frames[i-1], frames[i]))
	}
	return entries
}

func encodeFrame(prev, next *Frame) FrameMapEntry {
	pl, nl := LowerLocals(prev.Locals), LowerLocals(next.Locals)
	stack := cloneStack(next.Stack)
	sameLocals := equalStacks(pl, nl)

	switch {
	case sameLocals && len(stack) == 0:
		return FrameMapEntry{Kind: FrameSame, Target: next.Label}
	case sameLocals && len(stack) == 1:
		return FrameMapEntry{Kind: FrameSameLocals1StackItem, Target: next.Label, Stack: stack}
	case len(stack) > 0:
		// full frame below
	case len(nl) < len(pl) && len(pl)-len(nl) <= maxDeltaLocals && equalStacks(nl, pl[:len(nl)]):
		return FrameMapEntry{
			Kind:    FrameChop,
			Target:  next.Label,
			Locals:  cloneStack(pl[len(nl):]),
			Chopped: len(pl) - len(nl),
		}
	case len(nl) > len(pl) && len(nl)-len(pl) <= maxDeltaLocals && equalStacks(pl, nl[:len(pl)]):
		return FrameMapEntry{Kind: FrameAppend, Target: next.Label, Locals: cloneStack(nl[len(pl):])}
	}
	return FrameMapEntry{Kind: FrameFull, Target: next.Label, Stack: stack, Locals: nl}
}
