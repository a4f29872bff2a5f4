package report

import (
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/mattn/go-runewidth"

	"github.com/PeyaPeyaPeyang/LangJAL-sub000/verifier"
)

const (
	colorReset  = "\x1b[0m"
	colorHeader = "\x1b[1m"
	colorMethod = "\x1b[1;34m"
	colorEntry  = "\x1b[90m"
	colorFull   = "\x1b[33m"
	colorKind   = "\x1b[32m"
)

// TableOptions control WriteTable.
type TableOptions struct {
	// Color wraps headers and frame kinds in ANSI escapes.
	Color bool
}

// WriteTable writes one block per method: a summary line followed by the
// frames, each with the frame-map entry that encodes it.
func WriteTable(w io.Writer, results []*verifier.Result, opts TableOptions) error {
	for i, r := range results {
		if i > 0 {
			if _, err := io.WriteString(w, "\n"); err != nil {
				return err
			}
		}
		if err := writeMethod(w, FromResult(r), opts); err != nil {
			return err
		}
	}
	return nil
}

func writeMethod(w io.Writer, m Method, opts TableOptions) error {
	title := fmt.Sprintf("%s  max_stack=%d max_locals=%d iterations=%d",
		m.Method, m.MaxStack, m.MaxLocals, m.Iterations)
	if opts.Color {
		title = colorMethod + title + colorReset
	}
	if _, err := fmt.Fprintln(w, title); err != nil {
		return err
	}

	t := table{color: opts.Color}
	t.header("LABEL", "INDEX", "KIND", "STACK", "LOCALS")
	for i, f := range m.Frames {
		kind := "entry"
		if i > 0 && i-1 < len(m.FrameMap) {
			kind = m.FrameMap[i-1].Kind
			if e := m.FrameMap[i-1]; e.Kind == verifier.FrameChop.String() {
				kind += " " + strconv.Itoa(e.Chopped)
			}
		}
		t.row(f.Label, strconv.Itoa(f.Index), kind, list(f.Stack), list(f.Locals))
	}
	return t.write(w)
}

func list(items []string) string {
	return "[" + strings.Join(items, ", ") + "]"
}

// table pads cells by display width so labels and class names outside
// ASCII stay aligned.
type table struct {
	rows   [][]string
	color  bool
	widths []int
}

func (t *table) header(cells ...string) { t.row(cells...) }

func (t *table) row(cells ...string) {
	for i, c := range cells {
		if i >= len(t.widths) {
			t.widths = append(t.widths, 0)
		}
		if w := runewidth.StringWidth(c); w > t.widths[i] {
			t.widths[i] = w
		}
	}
	t.rows = append(t.rows, cells)
}

func (t *table) write(w io.Writer) error {
	var b strings.Builder
	for r, cells := range t.rows {
		b.WriteString("  ")
		for i, c := range cells {
			last := i == len(cells)-1
			cell := c
			if !last {
				cell = runewidth.FillRight(c, t.widths[i])
			}
			if t.color {
				cell = t.paint(r, i, c, cell)
			}
			b.WriteString(cell)
			if !last {
				b.WriteString("  ")
			}
		}
		b.WriteByte('\n')
	}
	_, err := io.WriteString(w, b.String())
	return err
}

// paint colours a padded cell. Escapes are added after padding so they do
// not count towards the column width.
func (t *table) paint(row, col int, raw, cell string) string {
	switch {
	case row == 0:
		return colorHeader + cell + colorReset
	case col != 2:
		return cell
	case raw == "entry":
		return colorEntry + cell + colorReset
	case raw == verifier.FrameFull.String():
		return colorFull + cell + colorReset
	default:
		return colorKind + cell + colorReset
	}
}
