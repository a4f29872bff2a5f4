package verifier

import (
	"errors"
	"fmt"
)

// handlerRoute is an exception handler covering a block.
type handlerRoute struct {
	handler   *Label
	catchType string
}

// blockResult is what one replay of a block reports to the analyser.
type blockResult struct {
	propagations []*FramePropagation
	maxStack     int
	maxLocals    int
}

// blockSimulator replays the effects of one basic block. It remembers the
// merged state propagated into its label, so a block reached again from
// another predecessor replays from the join of everything seen so far.
type blockSimulator struct {
	label    *Label
	insns    []*Instruction
	handlers []handlerRoute

	owner     string
	labels    *LabelTable
	hierarchy ClassHierarchy
	logger    Logger
	snapshots bool

	entered        bool
	visits         int
	entryStack     []StackElement
	entryLocals    []LocalStackElement
	entryMaxStack  int
	entryMaxLocals int

	stack     []StackElement
	locals    []LocalStackElement
	maxStack  int
	maxLocals int
	history   []Snapshot
}

// frame returns the merged entry state of the block.
func (s *blockSimulator) frame() *Frame {
	return &Frame{
		Label:  s.label,
		Stack:  cloneStack(s.entryStack),
		Locals: CleanUpLocals(cloneLocals(s.entryLocals)),
	}
}

func (s *blockSimulator) run(p *FramePropagation) (*blockResult, error) {
	if p.Receiver != s.label {
		return nil, &VerifyError{
			Kind:   ErrPropagationMismatch,
			Label:  s.label,
			Detail: fmt.Sprintf("received %s", p),
		}
	}
	if err := s.seed(p); err != nil {
		return nil, err
	}

	var (
		out           []*FramePropagation
		terminated    bool
		handlerLocals []LocalStackElement
	)
	for i, insn := range s.insns {
		if terminated {
			s.logger.Debugf("skipping %d unreachable instruction(s) after %s", len(s.insns)-i, s.insns[i-1])
			break
		}
		if len(s.handlers) > 0 {
			if i == 0 {
				handlerLocals = cloneLocals(s.locals)
			} else {
				handlerLocals = MergeLocals(s.hierarchy, handlerLocals, s.locals)
			}
		}

		if err := s.apply(insn); err != nil {
			return nil, err
		}
		if s.snapshots {
			s.history = append(s.history, Snapshot{
				Instruction: insn,
				Stack:       cloneStack(s.stack),
				Locals:      cloneLocals(s.locals),
			})
		}

		switch insn.Flow {
		case FlowBranch, FlowJump, FlowSwitch:
			for _, token := range insn.Targets {
				target, ok := s.labels.Lookup(token)
				if !ok {
					return nil, &VerifyError{
						Kind:        ErrUnknownJump,
						Instruction: insn,
						Label:       s.label,
						Detail:      fmt.Sprintf("label %q is not declared", token),
					}
				}
				var err error
				if out, err = s.collect(out, s.propagate(target)); err != nil {
					return nil, withInstruction(err, insn)
				}
			}
			terminated = insn.Flow.Critical()
		case FlowTerminal:
			terminated = true
		}
	}

	if !terminated {
		var err error
		if out, err = s.collect(out, s.propagate(s.labels.Next(s.label))); err != nil {
			return nil, err
		}
	}
	if len(s.insns) > 0 {
		for _, h := range s.handlers {
			catchType := h.catchType
			if catchType == "" {
				catchType = "java/lang/Throwable"
			}
			p := &FramePropagation{
				Sender:    s.label,
				Receiver:  h.handler,
				Stack:     []StackElement{Object(catchType)},
				Locals:    CleanUpLocals(cloneLocals(handlerLocals)),
				MaxStack:  max(s.maxStack, 1),
				MaxLocals: s.maxLocals,
			}
			var err error
			if out, err = s.collect(out, p); err != nil {
				return nil, err
			}
		}
	}

	return &blockResult{
		propagations: out,
		maxStack:     s.maxStack,
		maxLocals:    s.maxLocals,
	}, nil
}

// seed loads the incoming state, joining it with earlier arrivals.
func (s *blockSimulator) seed(p *FramePropagation) error {
	if !s.entered {
		s.entryStack = cloneStack(p.Stack)
		s.entryLocals = cloneLocals(p.Locals)
		s.entered = true
	} else {
		stack, err := MergeStack(s.hierarchy, s.entryStack, p.Stack)
		if err != nil {
			var ve *VerifyError
			if errors.As(err, &ve) && ve.Label == nil {
				ve.Label = s.label
			}
			return err
		}
		s.entryStack = stack
		s.entryLocals = MergeLocals(s.hierarchy, s.entryLocals, p.Locals)
	}
	s.entryMaxStack = max(s.entryMaxStack, p.MaxStack)
	s.entryMaxLocals = max(s.entryMaxLocals, p.MaxLocals)
	s.visits++

	s.stack = cloneStack(s.entryStack)
	s.locals = cloneLocals(s.entryLocals)
	s.maxStack = max(s.entryMaxStack, stackSize(s.stack))
	s.maxLocals = max(s.entryMaxLocals, len(s.locals))
	s.history = s.history[:0]
	return nil
}

func (s *blockSimulator) propagate(target *Label) *FramePropagation {
	return &FramePropagation{
		Sender:    s.label,
		Receiver:  target,
		Stack:     cloneStack(s.stack),
		Locals:    CleanUpLocals(cloneLocals(s.locals)),
		MaxStack:  s.maxStack,
		MaxLocals: s.maxLocals,
	}
}

// collect appends p, joining it with an earlier edge to the same receiver
// so that every (sender, receiver) pair is reported once.
func (s *blockSimulator) collect(out []*FramePropagation, p *FramePropagation) ([]*FramePropagation, error) {
	for _, prev := range out {
		if prev.Receiver != p.Receiver {
			continue
		}
		stack, err := MergeStack(s.hierarchy, prev.Stack, p.Stack)
		if err != nil {
			var ve *VerifyError
			if errors.As(err, &ve) && ve.Label == nil {
				ve.Label = p.Receiver
			}
			return nil, err
		}
		prev.Stack = stack
		prev.Locals = MergeLocals(s.hierarchy, prev.Locals, p.Locals)
		prev.MaxStack = max(prev.MaxStack, p.MaxStack)
		prev.MaxLocals = max(prev.MaxLocals, p.MaxLocals)
		return out, nil
	}
	return append(out, p), nil
}

func withInstruction(err error, insn *Instruction) error {
	var ve *VerifyError
	if errors.As(err, &ve) && ve.Instruction == nil {
		ve.Instruction = insn
	}
	return err
}

// apply replays one instruction's effect descriptor.
func (s *blockSimulator) apply(insn *Instruction) error {
	effect := insn.Effect
	if effect == nil {
		return nil
	}
	scratch := newCapsuleScratch(effect.capsules)
	for _, op := range effect.ops {
		var err error
		switch op.Kind {
		case OpPush:
			err = s.applyPush(insn, op, scratch)
		case OpPop:
			err = s.applyPop(insn, op, scratch)
		case OpInitialize:
			err = s.applyInitialize(insn, op, scratch)
		case OpPushComponent:
			err = s.applyPushComponent(insn, op, scratch)
		default:
			err = fmt.Errorf("unknown stack operation %v", op.Kind)
		}
		if err != nil {
			return err
		}
	}
	return nil
}

func (s *blockSimulator) applyPush(insn *Instruction, op StackOperation, scratch *capsuleScratch) error {
	value := op.Element.WithProducer(insn)
	if len(op.Capsules) > 0 {
		v, ok := scratch.read(op.Capsules[0])
		if !ok {
			return nil
		}
		value = v
	}
	if value.kind == KindTop || value.isExpectation() {
		return &VerifyError{
			Kind:        ErrTypeMismatch,
			Instruction: insn,
			Label:       s.label,
			Detail:      fmt.Sprintf("cannot push %s", value),
		}
	}

	if op.Target == TargetLocal {
		s.store(op.Slot, value)
		s.maxLocals = max(s.maxLocals, len(s.locals))
		return nil
	}
	s.stack = append(s.stack, value)
	s.maxStack = max(s.maxStack, stackSize(s.stack))
	return nil
}

func (s *blockSimulator) applyPop(insn *Instruction, op StackOperation, scratch *capsuleScratch) error {
	if op.Target == TargetLocal {
		return s.load(insn, op, scratch)
	}

	if len(op.Capsules) == 0 {
		top, err := s.pop(insn)
		if err != nil {
			return err
		}
		return s.check(insn, op.Element, top)
	}

	remaining := op.Width
	for _, c := range op.Capsules {
		if remaining <= 0 {
			break
		}
		if len(s.stack) == 0 {
			return s.underflow(insn)
		}
		top := s.stack[len(s.stack)-1]
		if top.Size() > remaining {
			expected := AnyValue()
			return &VerifyError{
				Kind:        ErrTypeMismatch,
				Instruction: insn,
				Label:       s.label,
				Expected:    &expected,
				Actual:      &top,
				Detail:      fmt.Sprintf("category-2 value where %d slot(s) expected", remaining),
			}
		}
		if err := s.check(insn, op.Element, top); err != nil {
			return err
		}
		s.stack = s.stack[:len(s.stack)-1]
		if err := scratch.fill(c, top); err != nil {
			return &VerifyError{Kind: ErrPropagationMismatch, Instruction: insn, Label: s.label, Detail: err.Error()}
		}
		remaining -= top.Size()
	}
	if remaining > 0 {
		return &VerifyError{
			Kind:        ErrPropagationMismatch,
			Instruction: insn,
			Label:       s.label,
			Detail:      fmt.Sprintf("capsule pop left %d slot(s) unconsumed", remaining),
		}
	}
	return nil
}

func (s *blockSimulator) pop(insn *Instruction) (StackElement, error) {
	if len(s.stack) == 0 {
		return StackElement{}, s.underflow(insn)
	}
	top := s.stack[len(s.stack)-1]
	s.stack = s.stack[:len(s.stack)-1]
	return top, nil
}

func (s *blockSimulator) underflow(insn *Instruction) error {
	return &VerifyError{Kind: ErrStackUnderflow, Instruction: insn, Label: s.label}
}

// check validates a popped or read value against the declared expectation.
func (s *blockSimulator) check(insn *Instruction, expect, actual StackElement) error {
	if s.accepts(expect, actual) {
		return nil
	}
	expected := expect.WithProducer(insn)
	return &VerifyError{
		Kind:        ErrTypeMismatch,
		Instruction: insn,
		Label:       s.label,
		Expected:    &expected,
		Actual:      &actual,
	}
}

func (s *blockSimulator) accepts(expect, actual StackElement) bool {
	switch expect.kind {
	case kindAnyValue:
		return actual.kind != KindTop
	case kindAnyReference:
		return actual.IsReference()
	case KindObject:
		switch actual.kind {
		case KindNull:
			return true
		case KindObject:
			return assignableWhenKnown(s.hierarchy, expect.descriptor, actual.descriptor)
		}
		return false
	case KindUninitialized:
		return actual.kind == KindUninitialized &&
			(expect.site == "" || expect.site == actual.site)
	}
	return expect.kind == actual.kind
}

// applyPushComponent pushes the element type of the array captured by a
// capsule pop.
func (s *blockSimulator) applyPushComponent(insn *Instruction, op StackOperation, scratch *capsuleScratch) error {
	if len(op.Capsules) == 0 {
		return &VerifyError{Kind: ErrPropagationMismatch, Instruction: insn, Label: s.label, Detail: "component push without capsule"}
	}
	array, ok := scratch.read(op.Capsules[0])
	if !ok {
		return &VerifyError{Kind: ErrPropagationMismatch, Instruction: insn, Label: s.label, Detail: "component of empty capsule"}
	}

	var value StackElement
	switch {
	case array.kind == KindNull:
		value = Null()
	case array.kind == KindObject && ArrayDimensions(array.descriptor) > 0:
		v, err := ElementFromFieldDescriptor(array.descriptor[1:])
		if err != nil {
			return &VerifyError{Kind: ErrTypeMismatch, Instruction: insn, Label: s.label, Actual: &array, Detail: err.Error()}
		}
		value = v
	default:
		expected := Object("[" + FieldDescriptorOf(UniversalObject))
		return &VerifyError{
			Kind:        ErrTypeMismatch,
			Instruction: insn,
			Label:       s.label,
			Expected:    &expected,
			Actual:      &array,
			Detail:      "not an array",
		}
	}
	if !s.accepts(op.Element, value) {
		expected := op.Element.WithProducer(insn)
		return &VerifyError{
			Kind:        ErrTypeMismatch,
			Instruction: insn,
			Label:       s.label,
			Expected:    &expected,
			Actual:      &array,
			Detail:      fmt.Sprintf("array component %s", value),
		}
	}

	s.stack = append(s.stack, value.WithProducer(insn))
	s.maxStack = max(s.maxStack, stackSize(s.stack))
	return nil
}

// load reads a local slot without consuming it.
func (s *blockSimulator) load(insn *Instruction, op StackOperation, scratch *capsuleScratch) error {
	actual := Top()
	if op.Slot >= 0 && op.Slot < len(s.locals) {
		actual = s.locals[op.Slot].Element
	}
	if err := s.check(insn, op.Element, actual); err != nil {
		return err
	}
	if actual.IsCategory2() {
		if op.Slot+1 >= len(s.locals) || s.locals[op.Slot+1].Element.kind != KindTop {
			expected := op.Element.WithProducer(insn)
			return &VerifyError{
				Kind:        ErrTypeMismatch,
				Instruction: insn,
				Label:       s.label,
				Expected:    &expected,
				Actual:      &actual,
				Detail:      fmt.Sprintf("local %d lost its second half", op.Slot),
			}
		}
	}
	if len(op.Capsules) > 0 {
		if err := scratch.fill(op.Capsules[0], actual); err != nil {
			return &VerifyError{Kind: ErrPropagationMismatch, Instruction: insn, Label: s.label, Detail: err.Error()}
		}
	}
	return nil
}

// store writes value into a local slot, growing the locals with Top and
// invalidating any category-2 value it overlaps.
func (s *blockSimulator) store(slot int, value StackElement) {
	need := slot + value.Size()
	for len(s.locals) < need {
		s.locals = append(s.locals, LocalStackElement{Slot: len(s.locals), Element: Top()})
	}
	if slot > 0 && s.locals[slot-1].Element.IsCategory2() {
		s.locals[slot-1].Element = Top()
	}
	if old := s.locals[slot].Element; old.IsCategory2() && !value.IsCategory2() && slot+1 < len(s.locals) {
		s.locals[slot+1].Element = Top()
	}
	s.locals[slot].Element = value
	if value.IsCategory2() {
		s.locals[slot+1].Element = Top()
	}
}

// applyInitialize turns every copy of the captured uninitialized value into
// the constructed object type.
func (s *blockSimulator) applyInitialize(insn *Instruction, op StackOperation, scratch *capsuleScratch) error {
	if len(op.Capsules) == 0 {
		return &VerifyError{Kind: ErrPropagationMismatch, Instruction: insn, Label: s.label, Detail: "initialize without capsule"}
	}
	target, ok := scratch.read(op.Capsules[0])
	if !ok {
		return &VerifyError{Kind: ErrPropagationMismatch, Instruction: insn, Label: s.label, Detail: "initialize of empty capsule"}
	}

	var done StackElement
	switch target.kind {
	case KindUninitializedThis:
		done = Object(s.owner)
	case KindUninitialized:
		done = Object(target.descriptor)
	default:
		expected := UninitializedThis()
		return &VerifyError{
			Kind:        ErrTypeMismatch,
			Instruction: insn,
			Label:       s.label,
			Expected:    &expected,
			Actual:      &target,
			Detail:      "constructor invoked on an initialized value",
		}
	}
	done = done.WithProducer(insn)

	for i, e := range s.stack {
		if e.Equal(target) {
			s.stack[i] = done
		}
	}
	for i, l := range s.locals {
		if l.Element.Equal(target) {
			s.locals[i].Element = done
		}
	}
	return nil
}
