package verifier

import (
	"context"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func simulate(t *testing.T, m *Method) (*Result, error) {
	t.Helper()
	return Analyze(context.Background(), m, quietOptions())
}

func lastSnapshot(t *testing.T, r *Result, insn *Instruction) Snapshot {
	t.Helper()
	for i := len(r.Snapshots) - 1; i >= 0; i-- {
		if r.Snapshots[i].Instruction == insn {
			return r.Snapshots[i]
		}
	}
	t.Fatalf("no snapshot for %s", insn)
	return Snapshot{}
}

func TestDup2OnLong(t *testing.T) {
	b := newMethod(t, "demo/Main", "wide", "(J)V", true)
	b.insn("lload_0", NewEffect().PopLocal(0, Long()).Push(Long()))
	d := b.insn("dup2", dup2())
	b.insn("pop2", pop2())
	b.insn("pop2", pop2())
	b.ret("return", nil)

	r, err := simulate(t, b.m)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if r.MaxStack != 4 || r.MaxLocals != 2 {
		t.Errorf("max stack/locals = %d/%d, want 4/2", r.MaxStack, r.MaxLocals)
	}
	snap := lastSnapshot(t, r, d)
	if diff := cmp.Diff([]StackElement{Long(), Long()}, snap.Stack); diff != "" {
		t.Errorf("stack after dup2 (-want +got):\n%s", diff)
	}
}

func TestDup2OnTwoInts(t *testing.T) {
	b := newMethod(t, "demo/Main", "pair", "()V", true)
	b.insn("iconst_1", iconst())
	b.insn("fconst_1", NewEffect().Push(Float()))
	d := b.insn("dup2", dup2())
	b.insn("pop2", pop2())
	b.insn("pop2", pop2())
	b.ret("return", nil)

	r, err := simulate(t, b.m)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	want := []StackElement{Integer(), Float(), Integer(), Float()}
	if diff := cmp.Diff(want, lastSnapshot(t, r, d).Stack); diff != "" {
		t.Errorf("stack after dup2 (-want +got):\n%s", diff)
	}
}

func TestCategory1PopRejectsLong(t *testing.T) {
	b := newMethod(t, "demo/Main", "split", "()V", true)
	b.insn("lconst_0", NewEffect().Push(Long()))
	bad := b.insn("dup", dup())
	b.ret("return", nil)

	_, err := simulate(t, b.m)
	if !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("error = %v, want ErrTypeMismatch", err)
	}
	var ve *VerifyError
	if errors.As(err, &ve) && ve.Instruction != bad {
		t.Errorf("error names %v, want %v", ve.Instruction, bad)
	}
}

func TestPopRejectsWrongType(t *testing.T) {
	b := newMethod(t, "demo/Main", "wrong", "()V", true)
	b.insn("fconst_0", NewEffect().Push(Float()))
	b.insn("istore_0", istore(0))
	b.ret("return", nil)

	_, err := simulate(t, b.m)
	if !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("error = %v, want ErrTypeMismatch", err)
	}
	var ve *VerifyError
	if !errors.As(err, &ve) || ve.Expected == nil || ve.Actual == nil {
		t.Fatalf("expected operands in %v", err)
	}
	if ve.Expected.Kind() != KindInteger || ve.Actual.Kind() != KindFloat {
		t.Errorf("expected/actual = %s/%s", ve.Expected, ve.Actual)
	}
}

func TestLoadFromUnsetLocal(t *testing.T) {
	b := newMethod(t, "demo/Main", "unset", "()V", true)
	b.insn("iload_3", iload(3))
	b.ret("return", nil)

	if _, err := simulate(t, b.m); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("error = %v, want ErrTypeMismatch", err)
	}
}

func TestStoreOverwritesHalfOfLong(t *testing.T) {
	b := newMethod(t, "demo/Main", "clobber", "(J)V", true)
	b.insn("istore_1", NewEffect().Push(Integer()).Pop(Integer()).PushLocal(1, Integer()))
	b.insn("lload_0", NewEffect().PopLocal(0, Long()).Push(Long()))
	b.ret("return", nil)

	_, err := simulate(t, b.m)
	if !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("error = %v, want ErrTypeMismatch", err)
	}

	// The store alone leaves slot 0 unusable.
	b2 := newMethod(t, "demo/Main", "clobber", "(J)V", true)
	st := b2.insn("istore_1", NewEffect().Push(Integer()).Pop(Integer()).PushLocal(1, Integer()))
	b2.ret("return", nil)
	r, err := simulate(t, b2.m)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	want := []LocalStackElement{
		{Slot: 0, Element: Top(), Parameter: true},
		{Slot: 1, Element: Integer(), Parameter: true},
	}
	if diff := cmp.Diff(want, lastSnapshot(t, r, st).Locals); diff != "" {
		t.Errorf("locals after store (-want +got):\n%s", diff)
	}
}

func TestStoreLongGrowsLocals(t *testing.T) {
	b := newMethod(t, "demo/Main", "grow", "()V", true)
	b.insn("lconst_1", NewEffect().Push(Long()))
	st := b.insn("lstore_2", NewEffect().Pop(Long()).PushLocal(2, Long()))
	b.ret("return", nil)

	r, err := simulate(t, b.m)
	if err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
	if r.MaxLocals != 4 {
		t.Errorf("max locals = %d, want 4", r.MaxLocals)
	}
	want := locals(Top(), Top(), Long(), Top())
	if diff := cmp.Diff(want, lastSnapshot(t, r, st).Locals); diff != "" {
		t.Errorf("locals after lstore (-want +got):\n%s", diff)
	}
}

func TestPushTopIsRejected(t *testing.T) {
	b := newMethod(t, "demo/Main", "top", "()V", true)
	b.insn("bogus", NewEffect().Push(Top()))
	b.ret("return", nil)

	if _, err := simulate(t, b.m); !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("error = %v, want ErrTypeMismatch", err)
	}
}

func TestInitializeOnInitializedValue(t *testing.T) {
	b := newMethod(t, "demo/Main", "twice", "()V", false)
	b.insn("aload_0", aload(0))
	b.insn("invokespecial", initialize())
	b.ret("return", nil)

	_, err := simulate(t, b.m)
	if !errors.Is(err, ErrTypeMismatch) {
		t.Fatalf("error = %v, want ErrTypeMismatch", err)
	}
}

func TestInstructionsAfterTerminatorAreSkipped(t *testing.T) {
	b := newMethod(t, "demo/Main", "tail", "()V", true)
	b.ret("return", nil)
	b.insn("pop", NewEffect().Pop(AnyValue()))

	if _, err := simulate(t, b.m); err != nil {
		t.Fatalf("Analyze failed: %v", err)
	}
}

func TestCapsuleScratch(t *testing.T) {
	s := newCapsuleScratch(2)
	if _, ok := s.read(0); ok {
		t.Fatal("fresh capsule should be empty")
	}
	if err := s.fill(0, Integer()); err != nil {
		t.Fatalf("fill failed: %v", err)
	}
	if err := s.fill(0, Float()); err == nil {
		t.Error("second fill of the same capsule should fail")
	}
	if err := s.fill(5, Float()); err == nil {
		t.Error("fill out of range should fail")
	}
	got, ok := s.read(0)
	if !ok || !got.Equal(Integer()) {
		t.Errorf("read = %s, %v; want int, true", got, ok)
	}
}

func TestEffectString(t *testing.T) {
	e := NewEffect()
	c := e.NewCapsule()
	e.Pop(Integer()).PopCapsuleAs(c, AnyReference()).PushLocalCapsule(2, c).Push(Long()).Initialize(c).PushComponent(c, AnyReference())
	want := "{pop int; pop $0 as reference; push local[2] $0; push long; init $0; push $0[]}"
	if got := e.String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
	if e.Len() != 6 || e.Capsules() != 1 {
		t.Errorf("Len/Capsules = %d/%d, want 6/1", e.Len(), e.Capsules())
	}
	var empty *FrameDifferenceInfo
	if empty.String() != "{}" || empty.Len() != 0 || empty.Operations() != nil {
		t.Error("nil descriptor should behave as empty")
	}
}

func aaload() *FrameDifferenceInfo {
	e := NewEffect()
	c := e.NewCapsule()
	return e.Pop(Integer()).PopCapsuleAs(c, AnyReference()).PushComponent(c, AnyReference())
}

func TestPushComponent(t *testing.T) {
	tests := []struct {
		name  string
		array StackElement
		want  StackElement
		err   error
	}{
		{"class array", Object("[Ljava/lang/String;"), Object("java/lang/String"), nil},
		{"nested array", Object("[[I"), Object("[I"), nil},
		{"null", Null(), Null(), nil},
		{"primitive array", Object("[I"), StackElement{}, ErrTypeMismatch},
		{"not an array", Object("java/lang/String"), StackElement{}, ErrTypeMismatch},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newMethod(t, "demo/Main", "get", "()V", true)
			b.insn("push", NewEffect().Push(tt.array))
			b.insn("iconst_0", iconst())
			load := b.insn("aaload", aaload())
			b.ret("return", nil)

			r, err := simulate(t, b.m)
			if tt.err != nil {
				if !errors.Is(err, tt.err) {
					t.Fatalf("error = %v, want %v", err, tt.err)
				}
				return
			}
			if err != nil {
				t.Fatalf("Analyze failed: %v", err)
			}
			if diff := cmp.Diff([]StackElement{tt.want}, lastSnapshot(t, r, load).Stack); diff != "" {
				t.Errorf("stack after aaload (-want +got):\n%s", diff)
			}
		})
	}
}

func TestObjectExpectationUsesHierarchy(t *testing.T) {
	tests := []struct {
		name   string
		actual StackElement
		expect StackElement
		ok     bool
	}{
		{"subclass", Object("java/lang/Integer"), Object("java/lang/Number"), true},
		{"unrelated", Object("java/lang/Integer"), Object("java/lang/String"), false},
		{"interface", Object("java/lang/Integer"), Object("java/lang/Comparable"), true},
		{"null", Null(), Object("java/lang/String"), true},
		{"unknown source", Object("demo/Foo"), Object("java/lang/String"), true},
		{"unknown target", Object("java/lang/String"), Object("demo/Foo"), true},
		{"array to class", Object("[Ljava/lang/String;"), Object("java/lang/String"), false},
		{"array to cloneable", Object("[I"), Object("java/lang/Cloneable"), true},
		{"object to array", Object("java/lang/Object"), Object("[I"), false},
		{"covariant array", Object("[Ljava/lang/Integer;"), Object("[Ljava/lang/Number;"), true},
		{"primitive arrays", Object("[I"), Object("[J"), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newMethod(t, "demo/Main", "use", "()V", true)
			b.insn("push", NewEffect().Push(tt.actual))
			b.insn("use", NewEffect().Pop(tt.expect))
			b.ret("return", nil)

			_, err := simulate(t, b.m)
			if tt.ok && err != nil {
				t.Errorf("Analyze failed: %v", err)
			}
			if !tt.ok && !errors.Is(err, ErrTypeMismatch) {
				t.Errorf("error = %v, want ErrTypeMismatch", err)
			}
		})
	}
}

// Each step lists its slot delta as the instruction set defines it; the
// stack must grow by exactly the sum of the deltas.
func TestStackBalance(t *testing.T) {
	dupX1 := func() *FrameDifferenceInfo {
		e := NewEffect()
		c1, c2 := e.NewCapsule(), e.NewCapsule()
		return e.PopCapsule(c1).PopCapsule(c2).PushCapsule(c1).PushCapsule(c2).PushCapsule(c1)
	}
	dupX2 := func() *FrameDifferenceInfo {
		e := NewEffect()
		c1, c2, c3 := e.NewCapsule(), e.NewCapsule(), e.NewCapsule()
		return e.PopCapsule(c1).PopCapsules(2, c2, c3).
			PushCapsule(c1).PushCapsule(c3).PushCapsule(c2).PushCapsule(c1)
	}
	dup2X2 := func() *FrameDifferenceInfo {
		e := NewEffect()
		c1, c2, c3, c4 := e.NewCapsule(), e.NewCapsule(), e.NewCapsule(), e.NewCapsule()
		return e.PopCapsules(2, c1, c2).PopCapsules(2, c3, c4).
			PushCapsule(c2).PushCapsule(c1).PushCapsule(c4).PushCapsule(c3).PushCapsule(c2).PushCapsule(c1)
	}
	swap := func() *FrameDifferenceInfo {
		e := NewEffect()
		c1, c2 := e.NewCapsule(), e.NewCapsule()
		return e.PopCapsule(c1).PopCapsule(c2).PushCapsule(c1).PushCapsule(c2)
	}
	pop := func() *FrameDifferenceInfo {
		e := NewEffect()
		return e.PopCapsule(e.NewCapsule())
	}
	lconst := func() *FrameDifferenceInfo { return NewEffect().Push(Long()) }
	dconst := func() *FrameDifferenceInfo { return NewEffect().Push(Double()) }

	type step struct {
		mnemonic string
		effect   *FrameDifferenceInfo
		delta    int
	}
	tests := []struct {
		name  string
		steps []step
	}{
		{"int arithmetic", []step{
			{"iconst_1", iconst(), 1},
			{"iconst_2", iconst(), 1},
			{"iadd", NewEffect().Pop(Integer()).Pop(Integer()).Push(Integer()), -1},
		}},
		{"long arithmetic", []step{
			{"lconst_0", lconst(), 2},
			{"lconst_1", lconst(), 2},
			{"ladd", NewEffect().Pop(Long()).Pop(Long()).Push(Long()), -2},
			{"l2i", NewEffect().Pop(Long()).Push(Integer()), -1},
		}},
		{"category-1 shuffles", []step{
			{"iconst_1", iconst(), 1},
			{"fconst_1", NewEffect().Push(Float()), 1},
			{"dup", dup(), 1},
			{"dup_x1", dupX1(), 1},
			{"swap", swap(), 0},
			{"dup2", dup2(), 2},
			{"pop2", pop2(), -2},
			{"pop", pop(), -1},
		}},
		{"category-2 shuffles", []step{
			{"iconst_1", iconst(), 1},
			{"lconst_1", lconst(), 2},
			{"dup2", dup2(), 2},
			{"pop2", pop2(), -2},
			{"dconst_1", dconst(), 2},
			{"dup2_x2", dup2X2(), 2},
			{"pop2", pop2(), -2},
			{"pop2", pop2(), -2},
			{"iconst_0", iconst(), 1},
			{"dup_x2", dupX2(), 1},
		}},
		{"array component", []step{
			{"aconst", NewEffect().Push(Object("[Ljava/lang/String;")), 1},
			{"iconst_0", iconst(), 1},
			{"aaload", aaload(), -1},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			b := newMethod(t, "demo/Main", "balance", "()V", true)
			insns := make([]*Instruction, len(tt.steps))
			for i, s := range tt.steps {
				insns[i] = b.insn(s.mnemonic, s.effect)
			}
			b.ret("return", nil)

			r, err := simulate(t, b.m)
			if err != nil {
				t.Fatalf("Analyze failed: %v", err)
			}
			height, net := 0, 0
			for i, s := range tt.steps {
				after := stackSize(lastSnapshot(t, r, insns[i]).Stack)
				if got := after - height; got != s.delta {
					t.Errorf("%s changed the stack by %d slot(s), want %d", s.mnemonic, got, s.delta)
				}
				height = after
				net += s.delta
			}
			if height != net {
				t.Errorf("final height %d, want net effect %d", height, net)
			}
		})
	}
}
