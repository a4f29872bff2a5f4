package jal

import (
	"fmt"
	"strings"

	"github.com/PeyaPeyaPeyang/LangJAL-sub000/verifier"
)

// Context is the position of the instruction being evaluated. It is passed
// explicitly so that evaluators never read shared layout state.
type Context struct {
	Method *verifier.Method
	Index  int
	// Label is the label declared immediately before the instruction, if any.
	Label string
}

// site names the allocation site of a new instruction.
func (c *Context) site() string {
	if c == nil {
		return "@?"
	}
	if c.Label != "" {
		return c.Label
	}
	return fmt.Sprintf("@%d", c.Index)
}

// Flow reports how control leaves an instruction with opcode op.
func Flow(op Opcode) verifier.FlowKind {
	switch {
	case op >= OpIfeq && op <= OpIfAcmpne, op == OpIfnull, op == OpIfnonnull:
		return verifier.FlowBranch
	case op == OpGoto, op == OpGotoW:
		return verifier.FlowJump
	case op == OpTableswitch, op == OpLookupswitch:
		return verifier.FlowSwitch
	case op >= OpIreturn && op <= OpReturn, op == OpAthrow:
		return verifier.FlowTerminal
	}
	return verifier.FlowNext
}

// valueTypes is the i, l, f, d order shared by the typed opcode groups.
var valueTypes = [...]verifier.StackElement{
	verifier.Integer(), verifier.Long(), verifier.Float(), verifier.Double(),
}

// typed returns the value type of group g of an i, l, f, d, a family.
func typed(g int) verifier.StackElement {
	if g < len(valueTypes) {
		return valueTypes[g]
	}
	return verifier.AnyReference()
}

// arrayElements is the i, l, f, d, a, b, c, s order of the array opcodes.
// aaload resolves its element from the array instead.
var arrayElements = [...]verifier.StackElement{
	verifier.Integer(), verifier.Long(), verifier.Float(), verifier.Double(),
	verifier.Object(verifier.UniversalObject),
	verifier.Integer(), verifier.Integer(), verifier.Integer(),
}

// conversions lists the from and to types of i2l through i2s.
var conversions = [...][2]verifier.StackElement{
	{verifier.Integer(), verifier.Long()},
	{verifier.Integer(), verifier.Float()},
	{verifier.Integer(), verifier.Double()},
	{verifier.Long(), verifier.Integer()},
	{verifier.Long(), verifier.Float()},
	{verifier.Long(), verifier.Double()},
	{verifier.Float(), verifier.Integer()},
	{verifier.Float(), verifier.Long()},
	{verifier.Float(), verifier.Double()},
	{verifier.Double(), verifier.Integer()},
	{verifier.Double(), verifier.Long()},
	{verifier.Double(), verifier.Float()},
	{verifier.Integer(), verifier.Integer()},
	{verifier.Integer(), verifier.Integer()},
	{verifier.Integer(), verifier.Integer()},
}

// Build declares the frame effect of one instruction. It validates the
// operands but never touches simulator state.
func Build(op Opcode, operands []string, ctx *Context) (*verifier.FrameDifferenceInfo, error) {
	e := verifier.NewEffect()
	switch {
	case op == OpNop:
		return e, nil
	case op == OpAconstNull:
		return e.Push(verifier.Null()), nil
	case op >= OpIconstM1 && op <= OpIconst5:
		return e.Push(verifier.Integer()), nil
	case op == OpLconst0 || op == OpLconst1:
		return e.Push(verifier.Long()), nil
	case op >= OpFconst0 && op <= OpFconst2:
		return e.Push(verifier.Float()), nil
	case op == OpDconst0 || op == OpDconst1:
		return e.Push(verifier.Double()), nil
	case op == OpBipush || op == OpSipush:
		if err := operandCount(op, operands, 1); err != nil {
			return nil, err
		}
		lo, hi := int64(-128), int64(127)
		if op == OpSipush {
			lo, hi = -32768, 32767
		}
		if _, err := intOperand(op, operands[0], lo, hi); err != nil {
			return nil, err
		}
		return e.Push(verifier.Integer()), nil
	case op == OpLdc || op == OpLdcW || op == OpLdc2W:
		if err := operandCount(op, operands, 1); err != nil {
			return nil, err
		}
		elem, err := constantType(op, strings.Join(operands, " "), op == OpLdc2W)
		if err != nil {
			return nil, err
		}
		return e.Push(elem), nil

	case op >= OpIload && op <= OpAload:
		slot, err := slotOperand(op, operands)
		if err != nil {
			return nil, err
		}
		return load(e, int(op-OpIload), slot), nil
	case op >= OpIload0 && op <= OpAload3:
		n := int(op - OpIload0)
		return load(e, n/4, n%4), nil
	case op >= OpIstore && op <= OpAstore:
		slot, err := slotOperand(op, operands)
		if err != nil {
			return nil, err
		}
		return store(e, int(op-OpIstore), slot), nil
	case op >= OpIstore0 && op <= OpAstore3:
		n := int(op - OpIstore0)
		return store(e, n/4, n%4), nil
	case op == OpAaload:
		c := e.NewCapsule()
		return e.Pop(verifier.Integer()).PopCapsuleAs(c, verifier.AnyReference()).PushComponent(c, verifier.AnyReference()), nil
	case op >= OpIaload && op <= OpSaload:
		return e.Pop(verifier.Integer()).Pop(verifier.AnyReference()).Push(arrayElements[op-OpIaload]), nil
	case op >= OpIastore && op <= OpSastore:
		value := arrayElements[op-OpIastore]
		if op == OpAastore {
			value = verifier.AnyReference()
		}
		return e.Pop(value).Pop(verifier.Integer()).Pop(verifier.AnyReference()), nil

	case op >= OpPop && op <= OpSwap:
		return stackEffect(e, op), nil

	case op >= OpIadd && op <= OpDrem:
		t := typed(int(op-OpIadd) % 4)
		return e.Pop(t).Pop(t).Push(t), nil
	case op >= OpIneg && op <= OpDneg:
		t := typed(int(op - OpIneg))
		return e.Pop(t).Push(t), nil
	case op >= OpIshl && op <= OpLushr:
		t := typed(int(op-OpIshl) % 2)
		return e.Pop(verifier.Integer()).Pop(t).Push(t), nil
	case op >= OpIand && op <= OpLxor:
		t := typed(int(op-OpIand) % 2)
		return e.Pop(t).Pop(t).Push(t), nil
	case op == OpIinc:
		if err := operandCount(op, operands, 2); err != nil {
			return nil, err
		}
		slot, err := intOperand(op, operands[0], 0, 0xffff)
		if err != nil {
			return nil, err
		}
		if _, err := intOperand(op, operands[1], -32768, 32767); err != nil {
			return nil, err
		}
		return e.PopLocal(slot, verifier.Integer()).PushLocal(slot, verifier.Integer()), nil
	case op >= OpI2l && op <= OpI2s:
		c := conversions[op-OpI2l]
		return e.Pop(c[0]).Push(c[1]), nil
	case op == OpLcmp:
		return e.Pop(verifier.Long()).Pop(verifier.Long()).Push(verifier.Integer()), nil
	case op == OpFcmpl || op == OpFcmpg:
		return e.Pop(verifier.Float()).Pop(verifier.Float()).Push(verifier.Integer()), nil
	case op == OpDcmpl || op == OpDcmpg:
		return e.Pop(verifier.Double()).Pop(verifier.Double()).Push(verifier.Integer()), nil

	case op >= OpIfeq && op <= OpIfle:
		return e.Pop(verifier.Integer()), nil
	case op >= OpIfIcmpeq && op <= OpIfIcmple:
		return e.Pop(verifier.Integer()).Pop(verifier.Integer()), nil
	case op == OpIfAcmpeq || op == OpIfAcmpne:
		return e.Pop(verifier.AnyReference()).Pop(verifier.AnyReference()), nil
	case op == OpIfnull || op == OpIfnonnull:
		return e.Pop(verifier.AnyReference()), nil
	case op == OpGoto || op == OpGotoW:
		return e, nil
	case op == OpTableswitch || op == OpLookupswitch:
		return e.Pop(verifier.Integer()), nil
	case op == OpJsr || op == OpJsrW || op == OpRet:
		return nil, fmt.Errorf("%w: %s subroutines cannot carry stack-map frames", ErrUnsupported, op)
	case op == OpWide:
		return nil, fmt.Errorf("%w: wide is implied by the operand size", ErrUnsupported)

	case op >= OpIreturn && op <= OpReturn:
		return returnEffect(e, op, ctx)
	case op == OpAthrow:
		return e.Pop(verifier.AnyReference()), nil

	case op >= OpGetstatic && op <= OpPutfield:
		return fieldEffect(e, op, operands)
	case op >= OpInvokevirtual && op <= OpInvokedynamic:
		return invokeEffect(e, op, operands)

	case op == OpNew:
		class, err := classOperand(op, operands)
		if err != nil {
			return nil, err
		}
		if strings.HasPrefix(class, "[") {
			return nil, fmt.Errorf("%w: new cannot create array %s", ErrOperand, class)
		}
		return e.Push(verifier.Uninitialized(ctx.site(), class)), nil
	case op == OpNewarray:
		if err := operandCount(op, operands, 1); err != nil {
			return nil, err
		}
		desc, ok := primitiveArrays[strings.ToLower(operands[0])]
		if !ok {
			return nil, fmt.Errorf("%w: newarray element type %q", ErrOperand, operands[0])
		}
		return e.Pop(verifier.Integer()).Push(verifier.Object(desc)), nil
	case op == OpAnewarray:
		class, err := classOperand(op, operands)
		if err != nil {
			return nil, err
		}
		return e.Pop(verifier.Integer()).Push(verifier.Object("[" + verifier.FieldDescriptorOf(class))), nil
	case op == OpMultianewarray:
		if err := operandCount(op, operands, 2); err != nil {
			return nil, err
		}
		desc, err := classOperand(op, operands[:1])
		if err != nil {
			return nil, err
		}
		dims, err := intOperand(op, operands[1], 1, int64(verifier.ArrayDimensions(desc)))
		if err != nil {
			return nil, err
		}
		for range dims {
			e.Pop(verifier.Integer())
		}
		return e.Push(verifier.Object(desc)), nil
	case op == OpArraylength:
		return e.Pop(verifier.AnyReference()).Push(verifier.Integer()), nil
	case op == OpCheckcast:
		class, err := classOperand(op, operands)
		if err != nil {
			return nil, err
		}
		return e.Pop(verifier.AnyReference()).Push(verifier.Object(class)), nil
	case op == OpInstanceof:
		if _, err := classOperand(op, operands); err != nil {
			return nil, err
		}
		return e.Pop(verifier.AnyReference()).Push(verifier.Integer()), nil
	case op == OpMonitorenter || op == OpMonitorexit:
		return e.Pop(verifier.AnyReference()), nil
	}
	return nil, fmt.Errorf("%w: opcode %d", ErrUnknownMnemonic, int(op))
}

func load(e *verifier.FrameDifferenceInfo, g, slot int) *verifier.FrameDifferenceInfo {
	if g < len(valueTypes) {
		t := valueTypes[g]
		return e.PopLocal(slot, t).Push(t)
	}
	c := e.NewCapsule()
	return e.PopLocalCapsule(slot, verifier.AnyReference(), c).PushCapsule(c)
}

func store(e *verifier.FrameDifferenceInfo, g, slot int) *verifier.FrameDifferenceInfo {
	if g < len(valueTypes) {
		t := valueTypes[g]
		return e.Pop(t).PushLocal(slot, t)
	}
	c := e.NewCapsule()
	return e.PopCapsuleAs(c, verifier.AnyReference()).PushLocalCapsule(slot, c)
}

// stackEffect declares the untyped stack manipulations. Values are moved
// through capsules; a category-2 value fills one capsule and leaves its
// partner empty, so each form also covers its category-2 variants.
func stackEffect(e *verifier.FrameDifferenceInfo, op Opcode) *verifier.FrameDifferenceInfo {
	c1, c2, c3, c4 := e.NewCapsule(), e.NewCapsule(), e.NewCapsule(), e.NewCapsule()
	switch op {
	case OpPop:
		e.PopCapsule(c1)
	case OpPop2:
		e.PopCapsules(2, c1, c2)
	case OpDup:
		e.PopCapsule(c1).PushCapsule(c1).PushCapsule(c1)
	case OpDupX1:
		e.PopCapsule(c1).PopCapsule(c2).
			PushCapsule(c1).PushCapsule(c2).PushCapsule(c1)
	case OpDupX2:
		e.PopCapsule(c1).PopCapsules(2, c2, c3).
			PushCapsule(c1).PushCapsule(c3).PushCapsule(c2).PushCapsule(c1)
	case OpDup2:
		e.PopCapsules(2, c1, c2).
			PushCapsule(c2).PushCapsule(c1).PushCapsule(c2).PushCapsule(c1)
	case OpDup2X1:
		e.PopCapsules(2, c1, c2).PopCapsule(c3).
			PushCapsule(c2).PushCapsule(c1).PushCapsule(c3).PushCapsule(c2).PushCapsule(c1)
	case OpDup2X2:
		e.PopCapsules(2, c1, c2).PopCapsules(2, c3, c4).
			PushCapsule(c2).PushCapsule(c1).PushCapsule(c4).PushCapsule(c3).PushCapsule(c2).PushCapsule(c1)
	case OpSwap:
		e.PopCapsule(c1).PopCapsule(c2).PushCapsule(c1).PushCapsule(c2)
	}
	return e
}

func returnEffect(e *verifier.FrameDifferenceInfo, op Opcode, ctx *Context) (*verifier.FrameDifferenceInfo, error) {
	var value verifier.StackElement
	if op != OpReturn {
		value = typed(int(op - OpIreturn))
	}
	if ctx != nil && ctx.Method != nil {
		_, ret, err := verifier.ParseMethodDescriptor(ctx.Method.Descriptor)
		if err != nil {
			return nil, err
		}
		if want := returnOpcode(ret); want != op {
			return nil, fmt.Errorf("%w: %s in method returning %s (use %s)", ErrOperand, op, ret, want)
		}
	}
	if op == OpReturn {
		return e, nil
	}
	return e.Pop(value), nil
}

func returnOpcode(ret string) Opcode {
	switch ret[0] {
	case 'V':
		return OpReturn
	case 'J':
		return OpLreturn
	case 'F':
		return OpFreturn
	case 'D':
		return OpDreturn
	case 'L', '[':
		return OpAreturn
	}
	return OpIreturn
}

func fieldEffect(e *verifier.FrameDifferenceInfo, op Opcode, operands []string) (*verifier.FrameDifferenceInfo, error) {
	ref, err := parseMemberRef(op, operands)
	if err != nil {
		return nil, err
	}
	value, err := verifier.ElementFromFieldDescriptor(ref.Descriptor)
	if err != nil {
		return nil, fmt.Errorf("%w: %s %s.%s: %v", ErrOperand, op, ref.Owner, ref.Name, err)
	}
	switch op {
	case OpGetstatic:
		e.Push(value)
	case OpPutstatic:
		e.Pop(value)
	case OpGetfield:
		e.Pop(verifier.Object(ref.Owner)).Push(value)
	case OpPutfield:
		// Constructors may assign fields of this before calling super().
		e.Pop(value).Pop(verifier.AnyReference())
	}
	return e, nil
}

func invokeEffect(e *verifier.FrameDifferenceInfo, op Opcode, operands []string) (*verifier.FrameDifferenceInfo, error) {
	var ref memberRef
	if op == OpInvokedynamic {
		if len(operands) < 2 {
			return nil, fmt.Errorf("%w: invokedynamic expects a name and a descriptor", ErrOperand)
		}
		ref = memberRef{Name: operands[0], Descriptor: operands[1]}
	} else {
		var err error
		if ref, err = parseMemberRef(op, operands); err != nil {
			return nil, err
		}
	}
	params, ret, err := verifier.ParseMethodDescriptor(ref.Descriptor)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrOperand, op, err)
	}

	for i := len(params) - 1; i >= 0; i-- {
		arg, err := verifier.ElementFromFieldDescriptor(params[i])
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrOperand, op, err)
		}
		e.Pop(arg)
	}

	switch {
	case op == OpInvokespecial && ref.Name == "<init>":
		if ret != "V" {
			return nil, fmt.Errorf("%w: constructor %s.<init> must return void", ErrOperand, ref.Owner)
		}
		c := e.NewCapsule()
		e.PopCapsuleAs(c, verifier.AnyReference()).Initialize(c)
	case op == OpInvokestatic || op == OpInvokedynamic:
	case strings.HasPrefix(ref.Owner, "["):
		// clone() and friends on arrays.
		e.Pop(verifier.AnyReference())
	default:
		e.Pop(verifier.Object(ref.Owner))
	}

	if ret != "V" {
		value, err := verifier.ElementFromFieldDescriptor(ret)
		if err != nil {
			return nil, fmt.Errorf("%w: %s: %v", ErrOperand, op, err)
		}
		e.Push(value)
	}
	return e, nil
}
