package report

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"strings"

	jal "github.com/PeyaPeyaPeyang/LangJAL-sub000"
	"github.com/PeyaPeyaPeyang/LangJAL-sub000/pkg/listing"
	"github.com/PeyaPeyaPeyang/LangJAL-sub000/verifier"
)

var methodPrefixRe = regexp.MustCompile(`^method (\S+): `)

// FormatErrors turns listing and analysis errors into a user-facing message.
func FormatErrors(errs []error) string {
	if len(errs) == 0 {
		return "Frame inference failed, but no additional details were provided."
	}

	var b strings.Builder
	b.WriteString("Frame inference failed.\n")

	for _, err := range errs {
		loc := deriveLocation(err)
		msg, hint := classifyAndHint(err)
		details := extractDetails(err)

		fmt.Fprintf(&b, "- %s\n", msg)
		if loc != "" {
			fmt.Fprintf(&b, "  Location: %s\n", loc)
		}
		if hint != "" {
			fmt.Fprintf(&b, "  How to fix: %s\n", hint)
		}
		if details != "" {
			fmt.Fprintf(&b, "  Details: %s\n", details)
		}
	}

	return b.String()
}

func deriveLocation(err error) string {
	var parts []string

	var le *listing.Error
	if errors.As(err, &le) {
		switch {
		case le.Source != "" && le.Line > 0:
			parts = append(parts, fmt.Sprintf("%s:%d", le.Source, le.Line))
		case le.Source != "":
			parts = append(parts, le.Source)
		}
		if le.Method != "" {
			parts = append(parts, le.Method)
		}
	} else if m := methodPrefixRe.FindStringSubmatch(err.Error()); len(m) == 2 {
		parts = append(parts, m[1])
	}

	var ve *verifier.VerifyError
	if errors.As(err, &ve) {
		if ve.Instruction != nil {
			if ve.Instruction.Line > 0 && le == nil {
				parts = append(parts, fmt.Sprintf("line %d", ve.Instruction.Line))
			}
			parts = append(parts, fmt.Sprintf("#%d %s", ve.Instruction.Index, ve.Instruction.Mnemonic))
		}
		if ve.Label != nil {
			parts = append(parts, "block "+ve.Label.Name)
		}
	}
	return strings.Join(parts, ", ")
}

func classifyAndHint(err error) (msg, hint string) {
	switch {
	case errors.Is(err, verifier.ErrStackUnderflow):
		msg = "An instruction pops more values than the operand stack holds."
		hint = "Check that every path into the block pushes the operands the instruction consumes."
	case errors.Is(err, verifier.ErrTypeMismatch):
		msg = "An instruction found a value of the wrong verification type."
		hint = `Convert the value first (e.g. "i2l") or load it from a local of the expected type.`
	case errors.Is(err, verifier.ErrArrayDimensionMismatch):
		msg = "Two paths join arrays whose dimensions cannot be reconciled."
		hint = "Make both branches produce arrays of the same shape, or cast to java/lang/Object."
	case errors.Is(err, verifier.ErrStackSizeMismatch):
		msg = "Two paths reach the same label with different operand stack depths."
		hint = "Balance the stack on every branch before it jumps to or falls into the label."
	case errors.Is(err, verifier.ErrUnknownJump):
		msg = "A jump or exception handler names a label that is not declared."
		hint = `Declare the label in the method's code with "name:".`
	case errors.Is(err, verifier.ErrIterationLimit):
		msg = "Frame inference did not settle within the iteration limit."
		hint = "Raise max_iterations in the [analysis] section of the configuration."
	case errors.Is(err, verifier.ErrPropagationMismatch):
		msg = "Internal error: a frame was routed to the wrong block."
	case errors.Is(err, verifier.ErrInvalidMethod):
		msg = "The method declaration is malformed."
		hint = "Check the method's name, descriptor, labels and handlers."
	case errors.Is(err, jal.ErrUnknownMnemonic):
		msg = "Unknown instruction mnemonic."
		hint = "Use a JVM opcode name such as iload_0 or invokevirtual."
	case errors.Is(err, jal.ErrUnsupported):
		msg = "The instruction cannot appear in a class file that carries stack map frames."
		hint = "Replace jsr/ret subroutines with inlined code."
	case errors.Is(err, jal.ErrOperand):
		msg = "An instruction has missing or malformed operands."
	case errors.Is(err, listing.ErrEmpty):
		msg = "The listing does not declare a class."
		hint = `Add a top-level "class:" key with the class's internal name.`
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		msg = "Frame inference was interrupted."
	default:
		msg = "Frame inference error."
	}
	return
}

func extractDetails(err error) string {
	var le *listing.Error
	if errors.As(err, &le) && le.Err != nil {
		return strings.TrimSpace(le.Err.Error())
	}
	s := err.Error()
	if m := methodPrefixRe.FindStringIndex(s); m != nil {
		s = s[m[1]:]
	}
	return strings.TrimSpace(s)
}
