package jal

import (
	"fmt"

	"github.com/PeyaPeyaPeyang/LangJAL-sub000/verifier"
)

// Emit evaluates one instruction and appends it to m.
func Emit(m *verifier.Method, mnemonic string, operands []string, line int) (*verifier.Instruction, error) {
	op, ok := LookupOpcode(mnemonic)
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownMnemonic, mnemonic)
	}
	ctx := &Context{Method: m, Index: len(m.Instructions)}
	if labels := m.Labels.Labels(); len(labels) > 0 {
		if last := labels[len(labels)-1]; last.Index == ctx.Index {
			ctx.Label = last.Name
		}
	}

	effect, err := Build(op, operands, ctx)
	if err != nil {
		return nil, err
	}
	targets, err := branchTargets(op, operands)
	if err != nil {
		return nil, err
	}
	return m.Add(&verifier.Instruction{
		Mnemonic: op.String(),
		Operands: operands,
		Effect:   effect,
		Flow:     Flow(op),
		Targets:  targets,
		Line:     line,
	}), nil
}

// EmitLine tokenizes and emits a single listing line. A leading token
// ending in ':' declares a label; blank and comment lines are ignored.
func EmitLine(m *verifier.Method, line string, lineNo int) error {
	tokens, err := Tokenize(line)
	if err != nil {
		return err
	}
	if len(tokens) == 0 {
		return nil
	}
	if first := tokens[0]; len(first) > 1 && first[len(first)-1] == ':' {
		if _, err := m.Mark(first[:len(first)-1]); err != nil {
			return err
		}
		if tokens = tokens[1:]; len(tokens) == 0 {
			return nil
		}
	}
	_, err = Emit(m, tokens[0], tokens[1:], lineNo)
	return err
}
