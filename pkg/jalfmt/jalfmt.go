// Package jalfmt rewrites the code of a listing method in canonical layout:
// labels flush left on their own line, one indented instruction per line,
// canonical mnemonics and optionally aligned trailing comments.
package jalfmt

import (
	"fmt"
	"strings"

	"github.com/mattn/go-runewidth"

	jal "github.com/PeyaPeyaPeyang/LangJAL-sub000"
)

type Cfg struct {
	// Indent is the number of spaces before an instruction (default 2).
	Indent int
	// AlignComments lines up trailing comments of consecutive instructions.
	AlignComments bool
	// KeepBlank preserves blank lines between instructions.
	KeepBlank bool
}

func ValidateConfig(cfg Cfg) (Cfg, error) {
	if cfg.Indent < 0 || cfg.Indent > 16 {
		return cfg, fmt.Errorf("invalid indent %d; must be between 0 and 16", cfg.Indent)
	}
	if cfg.Indent == 0 {
		cfg.Indent = 2
	}
	return cfg, nil
}

type line struct {
	label   string
	code    string
	comment string
	blank   bool
}

// Format returns code in canonical layout. Every instruction must use a
// known mnemonic.
func Format(code string, cfg Cfg) (string, error) {
	cfg, err := ValidateConfig(cfg)
	if err != nil {
		return "", err
	}

	var lines []line
	for i, raw := range strings.Split(strings.TrimRight(code, "\n"), "\n") {
		body, comment := splitComment(raw)
		tokens, err := jal.Tokenize(body)
		if err != nil {
			return "", fmt.Errorf("line %d: %w", i+1, err)
		}
		if len(tokens) == 0 {
			if comment != "" {
				lines = append(lines, line{comment: comment})
			} else if cfg.KeepBlank {
				lines = append(lines, line{blank: true})
			}
			continue
		}
		if first := tokens[0]; len(first) > 1 && strings.HasSuffix(first, ":") {
			lines = append(lines, line{label: first})
			tokens = tokens[1:]
			if len(tokens) == 0 {
				if comment != "" {
					lines[len(lines)-1].comment = comment
				}
				continue
			}
		}
		op, ok := jal.LookupOpcode(tokens[0])
		if !ok {
			return "", fmt.Errorf("line %d: %w: %q", i+1, jal.ErrUnknownMnemonic, tokens[0])
		}
		text := op.String()
		if len(tokens) > 1 {
			text += " " + strings.Join(tokens[1:], " ")
		}
		lines = append(lines, line{code: text, comment: comment})
	}

	indent := strings.Repeat(" ", cfg.Indent)
	var b strings.Builder
	for i := 0; i < len(lines); i++ {
		l := lines[i]
		switch {
		case l.blank:
			b.WriteByte('\n')
		case l.label != "":
			b.WriteString(l.label)
			if l.comment != "" {
				b.WriteString(" " + l.comment)
			}
			b.WriteByte('\n')
		case l.code == "":
			b.WriteString(indent + l.comment + "\n")
		default:
			// A run of consecutive instructions shares one comment column.
			j := i
			width := 0
			for ; j < len(lines) && lines[j].code != ""; j++ {
				width = max(width, runewidth.StringWidth(lines[j].code))
			}
			for ; i < j; i++ {
				l := lines[i]
				b.WriteString(indent)
				switch {
				case l.comment == "":
					b.WriteString(l.code)
				case cfg.AlignComments:
					b.WriteString(runewidth.FillRight(l.code, width) + " " + l.comment)
				default:
					b.WriteString(l.code + " " + l.comment)
				}
				b.WriteByte('\n')
			}
			i--
		}
	}
	return b.String(), nil
}

// splitComment separates a trailing "# ..." comment, ignoring '#' inside
// string constants.
func splitComment(s string) (body, comment string) {
	quoted, escaped := false, false
	for i, r := range s {
		switch {
		case quoted:
			switch {
			case escaped:
				escaped = false
			case r == '\\':
				escaped = true
			case r == '"':
				quoted = false
			}
		case r == '"':
			quoted = true
		case r == '#':
			return s[:i], strings.TrimSpace(s[i:])
		}
	}
	return s, ""
}
