package verifier

import "fmt"

// FramePropagation is a control-flow edge carrying the simulated frame from
// the end (or a branch point) of the sender block into the receiver block.
type FramePropagation struct {
	Sender    *Label // nil for the synthetic method-entry edge
	Receiver  *Label
	Stack     []StackElement
	Locals    []LocalStackElement
	MaxStack  int
	MaxLocals int
}

type propagationKey struct {
	sender, receiver string
}

func (p *FramePropagation) key() propagationKey {
	k := propagationKey{receiver: p.Receiver.Name}
	if p.Sender != nil {
		k.sender = p.Sender.Name
	}
	return k
}

// SameContent reports whether two propagations carry identical frames.
func (p *FramePropagation) SameContent(o *FramePropagation) bool {
	return p.MaxStack == o.MaxStack &&
		p.MaxLocals == o.MaxLocals &&
		equalStacks(p.Stack, o.Stack) &&
		equalLocals(p.Locals, o.Locals)
}

func (p *FramePropagation) String() string {
	sender := "<start>"
	if p.Sender != nil {
		sender = p.Sender.Name
	}
	return fmt.Sprintf("%s -> %s stack=%s locals=%s", sender, p.Receiver.Name, formatStack(p.Stack), formatLocals(p.Locals))
}

// Frame is the confirmed, merged state at a label once propagation into it
// has settled.
type Frame struct {
	Label  *Label
	Stack  []StackElement
	Locals []LocalStackElement
}

func (f *Frame) String() string {
	return fmt.Sprintf("%s stack=%s locals=%s", f.Label.Name, formatStack(f.Stack), formatLocals(f.Locals))
}

// Snapshot is the simulated frame right after an instruction executed.
type Snapshot struct {
	Instruction *Instruction
	Stack       []StackElement
	Locals      []LocalStackElement
}
