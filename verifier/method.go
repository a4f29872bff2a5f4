package verifier

import (
	"fmt"
	"strings"

	"github.com/speakeasy-api/openapi/sequencedmap"
)

// Synthetic label names. Neither can be declared by a listing.
const (
	EntryLabelName = "$entry"
	ExitLabelName  = "$exit"
)

// FlowKind describes how control leaves an instruction.
type FlowKind uint8

const (
	// FlowNext continues with the following instruction.
	FlowNext FlowKind = iota
	// FlowBranch jumps to its targets or continues (if*, ifnull, ...).
	FlowBranch
	// FlowJump unconditionally jumps to its single target (goto).
	FlowJump
	// FlowSwitch jumps to one of its targets (tableswitch, lookupswitch).
	FlowSwitch
	// FlowTerminal leaves the method (return family, athrow).
	FlowTerminal
)

// Critical reports whether the instruction never falls through.
func (k FlowKind) Critical() bool {
	return k == FlowJump || k == FlowSwitch || k == FlowTerminal
}

func (k FlowKind) String() string {
	switch k {
	case FlowNext:
		return "next"
	case FlowBranch:
		return "branch"
	case FlowJump:
		return "jump"
	case FlowSwitch:
		return "switch"
	case FlowTerminal:
		return "terminal"
	default:
		return fmt.Sprintf("flow(%d)", uint8(k))
	}
}

// Instruction is one evaluated instruction together with its declared effect.
type Instruction struct {
	Index    int
	Mnemonic string
	Operands []string
	Effect   *FrameDifferenceInfo
	Flow     FlowKind
	// Targets are jump-target tokens resolved through the label table.
	Targets []string
	// Label is the label immediately preceding the instruction, if any.
	Label *Label
	// Line is the source line the instruction came from (0 when unknown).
	Line int
}

func (i *Instruction) String() string {
	if i == nil {
		return "<entry>"
	}
	var b strings.Builder
	fmt.Fprintf(&b, "#%d %s", i.Index, i.Mnemonic)
	if len(i.Operands) > 0 {
		b.WriteByte(' ')
		b.WriteString(strings.Join(i.Operands, " "))
	}
	if i.Line > 0 {
		fmt.Fprintf(&b, " (line %d)", i.Line)
	}
	return b.String()
}

// Label marks the instruction index a basic block starts at.
type Label struct {
	Name  string
	Index int
	order int
}

func (l *Label) String() string {
	if l == nil {
		return "<none>"
	}
	return l.Name
}

// LabelTable holds the labels of one method in declaration order.
type LabelTable struct {
	labels *sequencedmap.Map[string, *Label]
	exit   *Label
}

// NewLabelTable creates an empty table.
func NewLabelTable() *LabelTable {
	return &LabelTable{
		labels: sequencedmap.New[string, *Label](),
		exit:   &Label{Name: ExitLabelName, Index: -1, order: -1},
	}
}

func isReservedLabel(name string) bool {
	return name == "" || name == ExitLabelName || name == EntryLabelName
}

// Declare adds a label at an instruction index. Indices must not decrease.
func (t *LabelTable) Declare(name string, index int) (*Label, error) {
	if isReservedLabel(name) {
		return nil, fmt.Errorf("%w: reserved label name %q", ErrInvalidMethod, name)
	}
	if t.labels.Has(name) {
		return nil, fmt.Errorf("%w: duplicate label %q", ErrInvalidMethod, name)
	}
	if last := t.last(); last != nil && last.Index > index {
		return nil, fmt.Errorf("%w: label %q at %d declared after %q at %d",
			ErrInvalidMethod, name, index, last.Name, last.Index)
	}
	l := &Label{Name: name, Index: index, order: t.labels.Len()}
	t.labels.Set(name, l)
	return l, nil
}

// Lookup resolves a jump-target token. The synthetic entry and exit labels
// are not addressable.
func (t *LabelTable) Lookup(token string) (*Label, bool) {
	if isReservedLabel(token) {
		return nil, false
	}
	return t.labels.Get(token)
}

// Labels returns the declared labels in declaration order.
func (t *LabelTable) Labels() []*Label {
	out := make([]*Label, 0, t.labels.Len())
	for _, l := range t.labels.All() {
		out = append(out, l)
	}
	return out
}

func (t *LabelTable) Len() int { return t.labels.Len() }

// Entry is the label of the method's first block.
func (t *LabelTable) Entry() *Label {
	if e := t.labels.First(); e != nil {
		return e.Value
	}
	return nil
}

func (t *LabelTable) last() *Label {
	if e := t.labels.Last(); e != nil {
		return e.Value
	}
	return nil
}

// Exit is the synthetic end-of-method label.
func (t *LabelTable) Exit() *Label { return t.exit }

// Next returns the block lexically following l, or the exit label.
func (t *LabelTable) Next(l *Label) *Label {
	if l == nil || l.order < 0 {
		return t.exit
	}
	if e := t.labels.At(l.order + 1); e != nil {
		return e.Value
	}
	return t.exit
}

// ExceptionHandler routes exceptions raised in [Start, End) to Handler.
type ExceptionHandler struct {
	Start   string
	End     string
	Handler string
	// Type is the internal name of the caught class; empty catches anything.
	Type string
}

// Parameter is a formal parameter of the analysed method.
type Parameter struct {
	Name string
	Type StackElement
	Slot int
}

// Method is everything the analyser needs about one method body.
type Method struct {
	Owner      string
	Name       string
	Descriptor string
	Static     bool
	Parameters []Parameter

	Instructions []*Instruction
	Labels       *LabelTable
	Handlers     []ExceptionHandler
}

// NewMethod creates an empty method body whose parameters are derived from
// the descriptor.
func NewMethod(owner, name, desc string, static bool) (*Method, error) {
	params, err := ParametersFromDescriptor(desc, static)
	if err != nil {
		return nil, err
	}
	return &Method{
		Owner:      owner,
		Name:       name,
		Descriptor: desc,
		Static:     static,
		Parameters: params,
		Labels:     NewLabelTable(),
	}, nil
}

// IsInit reports whether the method is an instance initializer.
func (m *Method) IsInit() bool { return m.Name == "<init>" && !m.Static }

// Mark declares a label before the next added instruction.
func (m *Method) Mark(name string) (*Label, error) {
	return m.Labels.Declare(name, len(m.Instructions))
}

// Add appends an instruction, assigning its index and preceding label.
func (m *Method) Add(insn *Instruction) *Instruction {
	insn.Index = len(m.Instructions)
	if last := m.Labels.last(); last != nil && last.Index == insn.Index {
		insn.Label = last
	}
	m.Instructions = append(m.Instructions, insn)
	return insn
}

func (m *Method) String() string {
	return m.Owner + "." + m.Name + m.Descriptor
}

// ensureEntry declares the synthetic entry label when no label sits at the
// first instruction.
func (m *Method) ensureEntry() {
	if e := m.Labels.Entry(); e != nil && e.Index == 0 {
		return
	}
	t := m.Labels
	entry := &Label{Name: EntryLabelName, Index: 0}
	rebuilt := sequencedmap.New[string, *Label]()
	rebuilt.Set(entry.Name, entry)
	for _, l := range t.labels.All() {
		l.order = rebuilt.Len()
		rebuilt.Set(l.Name, l)
	}
	t.labels = rebuilt
	if len(m.Instructions) > 0 && m.Instructions[0].Label == nil {
		m.Instructions[0].Label = entry
	}
}

// EntryLocals builds the locals of the method's entry frame: the receiver
// (UninitializedThis inside a constructor) followed by the formal parameters.
func EntryLocals(m *Method) []LocalStackElement {
	var locals []LocalStackElement
	if !m.Static {
		this := Object(m.Owner)
		if m.IsInit() {
			this = UninitializedThis()
		}
		locals = append(locals, LocalStackElement{Slot: 0, Element: this, Parameter: true})
	}
	for _, p := range m.Parameters {
		for len(locals) < p.Slot {
			locals = append(locals, LocalStackElement{Slot: len(locals), Element: Top()})
		}
		elem := LocalStackElement{Slot: p.Slot, Element: p.Type, Parameter: true}
		if p.Slot < len(locals) {
			locals[p.Slot] = elem
		} else {
			locals = append(locals, elem)
		}
		if p.Type.IsCategory2() {
			next := LocalStackElement{Slot: p.Slot + 1, Element: Top(), Parameter: true}
			if p.Slot+1 < len(locals) {
				locals[p.Slot+1] = next
			} else {
				locals = append(locals, next)
			}
		}
	}
	return locals
}
