package verifier

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestLabelTableDeclare(t *testing.T) {
	tbl := NewLabelTable()
	a, err := tbl.Declare("a", 0)
	if err != nil {
		t.Fatalf("Declare(a) failed: %v", err)
	}
	b, err := tbl.Declare("b", 3)
	if err != nil {
		t.Fatalf("Declare(b) failed: %v", err)
	}

	for _, tt := range []struct {
		name  string
		index int
	}{
		{"a", 4},
		{"", 4},
		{ExitLabelName, 4},
		{EntryLabelName, 4},
		{"c", 1},
	} {
		if _, err := tbl.Declare(tt.name, tt.index); !errors.Is(err, ErrInvalidMethod) {
			t.Errorf("Declare(%q, %d) error = %v, want ErrInvalidMethod", tt.name, tt.index, err)
		}
	}

	if got, ok := tbl.Lookup("b"); !ok || got != b {
		t.Errorf("Lookup(b) = %v, %v", got, ok)
	}
	if tbl.Entry() != a {
		t.Errorf("Entry() = %v, want a", tbl.Entry())
	}
	if tbl.Next(a) != b || tbl.Next(b) != tbl.Exit() {
		t.Errorf("Next chain broken: %v -> %v", tbl.Next(a), tbl.Next(b))
	}
	names := []string{}
	for _, l := range tbl.Labels() {
		names = append(names, l.Name)
	}
	if diff := cmp.Diff([]string{"a", "b"}, names); diff != "" {
		t.Errorf("Labels() mismatch (-want +got):\n%s", diff)
	}
}

func TestMethodAddAssignsLabels(t *testing.T) {
	b := newMethod(t, "demo/Main", "m", "()V", true)
	first := b.insn("nop", nil)
	b.label("l1")
	second := b.insn("nop", nil)
	third := b.insn("nop", nil)

	if first.Index != 0 || second.Index != 1 || third.Index != 2 {
		t.Errorf("indices = %d %d %d", first.Index, second.Index, third.Index)
	}
	if first.Label != nil || second.Label == nil || second.Label.Name != "l1" || third.Label != nil {
		t.Errorf("labels = %v %v %v", first.Label, second.Label, third.Label)
	}

	b.m.ensureEntry()
	if e := b.m.Labels.Entry(); e.Name != EntryLabelName || first.Label != e {
		t.Errorf("entry = %v, first label = %v", e, first.Label)
	}
	if b.m.Labels.Next(b.m.Labels.Entry()).Name != "l1" {
		t.Error("synthetic entry should precede l1")
	}
	for _, name := range []string{EntryLabelName, ExitLabelName} {
		if l, ok := b.m.Labels.Lookup(name); ok {
			t.Errorf("Lookup(%s) = %v, reserved labels must not resolve", name, l)
		}
	}
	if diff := cmp.Diff([]string{EntryLabelName, "l1"}, []string{b.m.Labels.Labels()[0].Name, b.m.Labels.Labels()[1].Name}); diff != "" {
		t.Errorf("Labels() after entry mismatch (-want +got):\n%s", diff)
	}
}

func TestJumpToSyntheticEntryIsRejected(t *testing.T) {
	b := newMethod(t, "demo/Main", "spin", "()V", true)
	b.insn("nop", nil)
	b.jump("goto", FlowJump, nil, EntryLabelName)

	if _, err := simulate(t, b.m); !errors.Is(err, ErrUnknownJump) {
		t.Fatalf("error = %v, want ErrUnknownJump", err)
	}
}

func TestEntryLocals(t *testing.T) {
	b := newMethod(t, "demo/Main", "m", "(IJLjava/lang/String;[D)V", false)
	want := []LocalStackElement{
		{Slot: 0, Element: Object("demo/Main"), Parameter: true},
		{Slot: 1, Element: Integer(), Parameter: true},
		{Slot: 2, Element: Long(), Parameter: true},
		{Slot: 3, Element: Top(), Parameter: true},
		{Slot: 4, Element: Object("java/lang/String"), Parameter: true},
		{Slot: 5, Element: Object("[D"), Parameter: true},
	}
	if diff := cmp.Diff(want, EntryLocals(b.m)); diff != "" {
		t.Errorf("EntryLocals mismatch (-want +got):\n%s", diff)
	}

	ctor := newMethod(t, "demo/Main", "<init>", "()V", false)
	if got := EntryLocals(ctor.m); len(got) != 1 || got[0].Element.Kind() != KindUninitializedThis {
		t.Errorf("constructor entry locals = %v", got)
	}
	static := newMethod(t, "demo/Main", "s", "()V", true)
	if got := EntryLocals(static.m); len(got) != 0 {
		t.Errorf("static entry locals = %v", got)
	}
}

func TestParseMethodDescriptor(t *testing.T) {
	params, ret, err := ParseMethodDescriptor("(I[[Ljava/lang/String;JZ)Ljava/lang/Object;")
	if err != nil {
		t.Fatalf("ParseMethodDescriptor failed: %v", err)
	}
	if diff := cmp.Diff([]string{"I", "[[Ljava/lang/String;", "J", "Z"}, params); diff != "" {
		t.Errorf("params mismatch (-want +got):\n%s", diff)
	}
	if ret != "Ljava/lang/Object;" {
		t.Errorf("ret = %q", ret)
	}

	for _, bad := range []string{"", "I", "(I", "(Q)V", "(Ljava/lang/String)V", "()", "()II"} {
		if _, _, err := ParseMethodDescriptor(bad); err == nil {
			t.Errorf("ParseMethodDescriptor(%q) should fail", bad)
		}
	}
}

func TestElementFromFieldDescriptor(t *testing.T) {
	tests := map[string]StackElement{
		"Z":                  Integer(),
		"C":                  Integer(),
		"J":                  Long(),
		"F":                  Float(),
		"D":                  Double(),
		"Ljava/lang/String;": Object("java/lang/String"),
		"[I":                 Object("[I"),
		"[[Ljava/lang/Byte;": Object("[[Ljava/lang/Byte;"),
	}
	for desc, want := range tests {
		got, err := ElementFromFieldDescriptor(desc)
		if err != nil {
			t.Errorf("ElementFromFieldDescriptor(%q) failed: %v", desc, err)
			continue
		}
		if !got.Equal(want) {
			t.Errorf("ElementFromFieldDescriptor(%q) = %s, want %s", desc, got, want)
		}
	}
	for _, bad := range []string{"", "V", "L;", "[", "II"} {
		if _, err := ElementFromFieldDescriptor(bad); err == nil {
			t.Errorf("ElementFromFieldDescriptor(%q) should fail", bad)
		}
	}
}

func TestStackElementBasics(t *testing.T) {
	insn := &Instruction{Index: 1, Mnemonic: "ldc"}
	a := Object("java/lang/String").WithProducer(insn)
	if !a.Equal(Object("java/lang/String")) {
		t.Error("Equal should ignore the producer")
	}
	if Uninitialized("a", "demo/P").Equal(Uninitialized("b", "demo/P")) {
		t.Error("different allocation sites must differ")
	}
	if Long().Size() != 2 || Double().Size() != 2 || Integer().Size() != 1 {
		t.Error("wrong slot sizes")
	}
	if !Null().IsReference() || Integer().IsReference() {
		t.Error("wrong reference classification")
	}
	for e, want := range map[StackElement]string{
		Integer():                         "int",
		Object("java/lang/String"):        "Object(java/lang/String)",
		Uninitialized("L1", "demo/Point"): "Uninitialized(L1, demo/Point)",
		UninitializedThis():               "UninitializedThis",
		Top():                             "top",
	} {
		if got := e.String(); got != want {
			t.Errorf("String() = %q, want %q", got, want)
		}
	}
}
