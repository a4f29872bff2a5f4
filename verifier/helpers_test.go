package verifier

import "testing"

// methodBuilder assembles a Method from hand-written effects.
type methodBuilder struct {
	t *testing.T
	m *Method
}

func newMethod(t *testing.T, owner, name, desc string, static bool) *methodBuilder {
	t.Helper()
	m, err := NewMethod(owner, name, desc, static)
	if err != nil {
		t.Fatalf("NewMethod(%s%s) failed: %v", name, desc, err)
	}
	return &methodBuilder{t: t, m: m}
}

func (b *methodBuilder) label(name string) *methodBuilder {
	b.t.Helper()
	if _, err := b.m.Mark(name); err != nil {
		b.t.Fatalf("Mark(%s) failed: %v", name, err)
	}
	return b
}

func (b *methodBuilder) insn(mnemonic string, effect *FrameDifferenceInfo) *Instruction {
	return b.m.Add(&Instruction{Mnemonic: mnemonic, Effect: effect})
}

func (b *methodBuilder) jump(mnemonic string, flow FlowKind, effect *FrameDifferenceInfo, targets ...string) *Instruction {
	return b.m.Add(&Instruction{Mnemonic: mnemonic, Effect: effect, Flow: flow, Targets: targets})
}

func (b *methodBuilder) ret(mnemonic string, effect *FrameDifferenceInfo) *Instruction {
	return b.m.Add(&Instruction{Mnemonic: mnemonic, Effect: effect, Flow: FlowTerminal})
}

func iconst() *FrameDifferenceInfo { return NewEffect().Push(Integer()) }

func iload(slot int) *FrameDifferenceInfo {
	return NewEffect().PopLocal(slot, Integer()).Push(Integer())
}

func istore(slot int) *FrameDifferenceInfo {
	return NewEffect().Pop(Integer()).PushLocal(slot, Integer())
}

func aload(slot int) *FrameDifferenceInfo {
	e := NewEffect()
	c := e.NewCapsule()
	return e.PopLocalCapsule(slot, AnyReference(), c).PushCapsule(c)
}

func astore(slot int) *FrameDifferenceInfo {
	e := NewEffect()
	c := e.NewCapsule()
	return e.PopCapsuleAs(c, AnyReference()).PushLocalCapsule(slot, c)
}

func dup() *FrameDifferenceInfo {
	e := NewEffect()
	c := e.NewCapsule()
	return e.PopCapsule(c).PushCapsule(c).PushCapsule(c)
}

func dup2() *FrameDifferenceInfo {
	e := NewEffect()
	c1, c2 := e.NewCapsule(), e.NewCapsule()
	return e.PopCapsules(2, c1, c2).PushCapsule(c2).PushCapsule(c1).PushCapsule(c2).PushCapsule(c1)
}

func pop2() *FrameDifferenceInfo {
	e := NewEffect()
	c1, c2 := e.NewCapsule(), e.NewCapsule()
	return e.PopCapsules(2, c1, c2)
}

func initialize() *FrameDifferenceInfo {
	e := NewEffect()
	c := e.NewCapsule()
	return e.PopCapsuleAs(c, AnyReference()).Initialize(c)
}

// quietOptions disables logging so test output stays readable.
func quietOptions() Options {
	opts := DefaultOptions()
	opts.Logger = NopLogger()
	return opts
}

func frameAt(t *testing.T, r *Result, label string) *Frame {
	t.Helper()
	for _, f := range r.Frames {
		if f.Label != nil && f.Label.Name == label {
			return f
		}
	}
	t.Fatalf("no frame at label %s in %v", label, r.Frames)
	return nil
}

func entryAt(t *testing.T, r *Result, label string) FrameMapEntry {
	t.Helper()
	for _, e := range r.FrameMap {
		if e.Target != nil && e.Target.Name == label {
			return e
		}
	}
	t.Fatalf("no frame map entry at label %s in %v", label, r.FrameMap)
	return FrameMapEntry{}
}
