package jal

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/PeyaPeyaPeyang/LangJAL-sub000/verifier"
)

var (
	// ErrUnknownMnemonic is returned for a mnemonic outside the opcode table.
	ErrUnknownMnemonic = errors.New("unknown mnemonic")
	// ErrOperand is returned for missing or malformed operands.
	ErrOperand = errors.New("bad operand")
	// ErrUnsupported is returned for opcodes that cannot appear in a
	// method carrying stack-map frames (jsr, ret) or that the listing
	// format expresses implicitly (wide).
	ErrUnsupported = errors.New("unsupported instruction")
)

// Tokenize splits an instruction line into mnemonic and operand tokens.
// Double-quoted strings are kept whole, quotes included. A '#' outside a
// string starts a comment.
func Tokenize(line string) ([]string, error) {
	var (
		tokens  []string
		cur     strings.Builder
		quoted  bool
		escaped bool
		started bool
	)
	flush := func() {
		if started {
			tokens = append(tokens, cur.String())
			cur.Reset()
			started = false
		}
	}
	for _, r := range line {
		switch {
		case quoted:
			cur.WriteRune(r)
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				quoted = false
			}
		case r == '"':
			cur.WriteRune(r)
			quoted, started = true, true
		case r == '#':
			flush()
			return tokens, nil
		case r == ' ' || r == '\t' || r == ',':
			flush()
		default:
			cur.WriteRune(r)
			started = true
		}
	}
	if quoted {
		return nil, fmt.Errorf("%w: unterminated string in %q", ErrOperand, line)
	}
	flush()
	return tokens, nil
}

func operandCount(op Opcode, operands []string, want int) error {
	if len(operands) < want {
		return fmt.Errorf("%w: %s needs %d operand(s), got %d", ErrOperand, op, want, len(operands))
	}
	return nil
}

func intOperand(op Opcode, s string, lo, hi int64) (int, error) {
	v, err := strconv.ParseInt(s, 0, 64)
	if err != nil {
		return 0, fmt.Errorf("%w: %s expects an integer, got %q", ErrOperand, op, s)
	}
	if v < lo || v > hi {
		return 0, fmt.Errorf("%w: %s operand %d out of range [%d, %d]", ErrOperand, op, v, lo, hi)
	}
	return int(v), nil
}

func slotOperand(op Opcode, operands []string) (int, error) {
	if err := operandCount(op, operands, 1); err != nil {
		return 0, err
	}
	return intOperand(op, operands[0], 0, 0xffff)
}

// classOperand accepts an internal name or an array descriptor.
func classOperand(op Opcode, operands []string) (string, error) {
	if err := operandCount(op, operands, 1); err != nil {
		return "", err
	}
	name := operands[0]
	if strings.HasPrefix(name, "[") {
		if _, err := verifier.ElementFromFieldDescriptor(name); err != nil {
			return "", fmt.Errorf("%w: %s: %v", ErrOperand, op, err)
		}
		return name, nil
	}
	if name == "" || strings.ContainsAny(name, ";[.") {
		return "", fmt.Errorf("%w: %s expects an internal class name, got %q", ErrOperand, op, name)
	}
	return name, nil
}

// memberRef is a field or method reference.
type memberRef struct {
	Owner      string
	Name       string
	Descriptor string
}

// parseMemberRef accepts "owner name desc", "owner.name desc",
// "owner/name desc" and, for methods, "owner.name(desc)ret".
func parseMemberRef(op Opcode, operands []string) (memberRef, error) {
	switch {
	case len(operands) >= 3:
		return memberRef{Owner: operands[0], Name: operands[1], Descriptor: operands[2]}, nil
	case len(operands) == 2:
		owner, name, ok := splitOwner(operands[0])
		if !ok {
			break
		}
		return memberRef{Owner: owner, Name: name, Descriptor: operands[1]}, nil
	case len(operands) == 1:
		if i := strings.IndexByte(operands[0], '('); i > 0 {
			owner, name, ok := splitOwner(operands[0][:i])
			if !ok {
				break
			}
			return memberRef{Owner: owner, Name: name, Descriptor: operands[0][i:]}, nil
		}
	}
	return memberRef{}, fmt.Errorf("%w: %s expects owner, name and descriptor, got %q", ErrOperand, op, strings.Join(operands, " "))
}

func splitOwner(s string) (owner, name string, ok bool) {
	i := strings.LastIndexByte(s, '.')
	if i < 0 {
		i = strings.LastIndexByte(s, '/')
	}
	if i <= 0 || i == len(s)-1 {
		return "", "", false
	}
	return s[:i], s[i+1:], true
}

// branchTargets extracts the label tokens of a jump or switch. Switch
// operands may be written as plain labels, "key:label" or "default:label";
// bare integers (table bounds) are skipped.
func branchTargets(op Opcode, operands []string) ([]string, error) {
	switch Flow(op) {
	case verifier.FlowBranch, verifier.FlowJump:
		if len(operands) != 1 {
			return nil, fmt.Errorf("%w: %s needs exactly one label, got %d", ErrOperand, op, len(operands))
		}
		return []string{operands[0]}, nil
	case verifier.FlowSwitch:
		var targets []string
		for _, tok := range operands {
			if i := strings.LastIndexByte(tok, ':'); i >= 0 {
				tok = tok[i+1:]
			} else if _, err := strconv.ParseInt(tok, 0, 64); err == nil {
				continue
			}
			if tok == "" {
				return nil, fmt.Errorf("%w: %s has an empty label", ErrOperand, op)
			}
			targets = append(targets, tok)
		}
		if len(targets) == 0 {
			return nil, fmt.Errorf("%w: %s needs at least a default label", ErrOperand, op)
		}
		return targets, nil
	}
	return nil, nil
}

// constantType classifies an ldc operand. wide selects ldc2_w, where
// numeric literals without a suffix are long or double.
func constantType(op Opcode, lit string, wide bool) (verifier.StackElement, error) {
	bad := func(kind string) error {
		return fmt.Errorf("%w: %s cannot load %s constant %s", ErrOperand, op, kind, lit)
	}
	switch {
	case strings.HasPrefix(lit, "\""):
		if wide {
			return verifier.StackElement{}, bad("string")
		}
		return verifier.Object("java/lang/String"), nil
	case strings.HasSuffix(lit, ".class"):
		if wide {
			return verifier.StackElement{}, bad("class")
		}
		return verifier.Object("java/lang/Class"), nil
	case strings.HasPrefix(lit, "("):
		if wide {
			return verifier.StackElement{}, bad("method type")
		}
		if _, _, err := verifier.ParseMethodDescriptor(lit); err != nil {
			return verifier.StackElement{}, fmt.Errorf("%w: %s: %v", ErrOperand, op, err)
		}
		return verifier.Object("java/lang/invoke/MethodType"), nil
	}

	num, suffix := lit, byte(0)
	if n := len(lit); n > 1 && !strings.HasPrefix(lit, "0x") && !strings.HasPrefix(lit, "0X") {
		switch lit[n-1] {
		case 'L', 'l', 'F', 'f', 'D', 'd':
			num, suffix = lit[:n-1], lit[n-1]|0x20
		}
	}
	var elem verifier.StackElement
	if _, err := strconv.ParseInt(num, 0, 64); err == nil && suffix != 'f' && suffix != 'd' {
		switch {
		case suffix == 'l' || wide:
			elem = verifier.Long()
		default:
			elem = verifier.Integer()
		}
	} else if _, err := strconv.ParseFloat(num, 64); err == nil {
		switch {
		case suffix == 'f':
			elem = verifier.Float()
		case suffix == 'd' || wide:
			elem = verifier.Double()
		case suffix == 'l':
			return verifier.StackElement{}, fmt.Errorf("%w: %s: %q is not a long literal", ErrOperand, op, lit)
		default:
			elem = verifier.Float()
		}
	} else {
		return verifier.StackElement{}, fmt.Errorf("%w: %s: unrecognised constant %q", ErrOperand, op, lit)
	}

	if elem.IsCategory2() != wide {
		return verifier.StackElement{}, bad(elem.String())
	}
	return elem, nil
}

// primitiveArrays maps newarray operands to array descriptors.
var primitiveArrays = map[string]string{
	"boolean": "[Z", "char": "[C", "float": "[F", "double": "[D",
	"byte": "[B", "short": "[S", "int": "[I", "long": "[J",
	"4": "[Z", "5": "[C", "6": "[F", "7": "[D",
	"8": "[B", "9": "[S", "10": "[I", "11": "[J",
}
