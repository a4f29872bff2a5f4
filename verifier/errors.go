package verifier

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every failure aborts analysis of the enclosing method.
var (
	ErrStackUnderflow         = errors.New("stack underflow")
	ErrTypeMismatch           = errors.New("type mismatch")
	ErrArrayDimensionMismatch = errors.New("array dimension mismatch")
	ErrStackSizeMismatch      = errors.New("stack size mismatch")
	ErrUnknownJump            = errors.New("unknown jump target")
	ErrPropagationMismatch    = errors.New("propagation routed to wrong block")
	ErrIterationLimit         = errors.New("iteration limit exceeded")
	ErrInvalidMethod          = errors.New("invalid method")
)

// VerifyError describes an inconsistency found while inferring frames.
// It unwraps to one of the Err* kinds above.
type VerifyError struct {
	Kind        error
	Instruction *Instruction
	Label       *Label

	// Conflicting operands, when the failure compares two elements.
	Expected *StackElement
	Actual   *StackElement

	// Conflicting stacks, for ErrStackSizeMismatch.
	Existing []StackElement
	Incoming []StackElement

	Detail string
}

func (e *VerifyError) Error() string {
	var b strings.Builder
	b.WriteString(e.Kind.Error())
	if e.Instruction != nil {
		fmt.Fprintf(&b, " at %s", e.Instruction)
	}
	if e.Label != nil {
		fmt.Fprintf(&b, " (block %s)", e.Label.Name)
	}
	if e.Expected != nil && e.Actual != nil {
		fmt.Fprintf(&b, ": expected %s, got %s", e.Expected, e.Actual)
	}
	if e.Existing != nil || e.Incoming != nil {
		fmt.Fprintf(&b, ": %s vs %s", formatStack(e.Existing), formatStack(e.Incoming))
	}
	if e.Detail != "" {
		b.WriteString(": ")
		b.WriteString(e.Detail)
	}
	return b.String()
}

func (e *VerifyError) Unwrap() error { return e.Kind }

func mismatch(kind error, expected, actual StackElement) *VerifyError {
	insn := actual.Producer()
	if insn == nil {
		insn = expected.Producer()
	}
	return &VerifyError{Kind: kind, Instruction: insn, Expected: &expected, Actual: &actual}
}

func formatStack(stack []StackElement) string {
	parts := make([]string, len(stack))
	for i, e := range stack {
		parts[i] = e.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}

func formatLocals(locals []LocalStackElement) string {
	parts := make([]string, len(locals))
	for i, l := range locals {
		parts[i] = l.String()
	}
	return "[" + strings.Join(parts, ", ") + "]"
}
