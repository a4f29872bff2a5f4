package report

import (
	"fmt"
	"io"
	"strings"

	"github.com/PeyaPeyaPeyang/LangJAL-sub000/verifier"
)

// WriteEffects lists every instruction of m with its declared effect.
func WriteEffects(w io.Writer, m *verifier.Method) error {
	if _, err := fmt.Fprintf(w, "=== %s ===\n", m); err != nil {
		return err
	}
	labels := make(map[int][]string)
	for _, l := range m.Labels.Labels() {
		labels[l.Index] = append(labels[l.Index], l.Name)
	}
	for _, insn := range m.Instructions {
		for _, name := range labels[insn.Index] {
			if _, err := fmt.Fprintf(w, "%s:\n", name); err != nil {
				return err
			}
		}
		text := insn.Mnemonic
		if len(insn.Operands) > 0 {
			text += " " + strings.Join(insn.Operands, " ")
		}
		flow := ""
		if insn.Flow != verifier.FlowNext {
			flow = " " + insn.Flow.String()
			if len(insn.Targets) > 0 {
				flow += " -> " + strings.Join(insn.Targets, ", ")
			}
		}
		if _, err := fmt.Fprintf(w, "%3d: %-30s %s%s\n", insn.Index, text, insn.Effect, flow); err != nil {
			return err
		}
	}
	return nil
}
