// Package report renders frame inference results as aligned tables, YAML
// documents and user-facing error messages.
package report

import (
	"io"

	yaml "github.com/itchyny/go-yaml"

	"github.com/PeyaPeyaPeyang/LangJAL-sub000/verifier"
)

// Method is the serializable view of one analysed method.
type Method struct {
	Method     string  `yaml:"method"`
	MaxStack   int     `yaml:"max_stack"`
	MaxLocals  int     `yaml:"max_locals"`
	Iterations int     `yaml:"iterations"`
	Frames     []Frame `yaml:"frames"`
	FrameMap   []Entry `yaml:"frame_map,omitempty"`
}

// Frame is a confirmed frame. Locals are listed the way the class file
// sees them, so a long or double occupies one entry.
type Frame struct {
	Label  string   `yaml:"label"`
	Index  int      `yaml:"index"`
	Stack  []string `yaml:"stack,flow"`
	Locals []string `yaml:"locals,flow"`
}

// Entry is one encoded frame-map entry.
type Entry struct {
	Label   string   `yaml:"label"`
	Index   int      `yaml:"index"`
	Kind    string   `yaml:"kind"`
	Stack   []string `yaml:"stack,flow,omitempty"`
	Locals  []string `yaml:"locals,flow,omitempty"`
	Chopped int      `yaml:"chopped,omitempty"`
}

// FromResult converts an analysis result.
func FromResult(r *verifier.Result) Method {
	m := Method{
		MaxStack:   r.MaxStack,
		MaxLocals:  r.MaxLocals,
		Iterations: r.Iterations,
		Frames:     make([]Frame, 0, len(r.Frames)),
	}
	if r.Method != nil {
		m.Method = r.Method.String()
	}
	for _, f := range r.Frames {
		m.Frames = append(m.Frames, Frame{
			Label:  labelName(f.Label),
			Index:  labelIndex(f.Label),
			Stack:  names(f.Stack),
			Locals: names(verifier.LowerLocals(f.Locals)),
		})
	}
	for _, e := range r.FrameMap {
		m.FrameMap = append(m.FrameMap, Entry{
			Label:   labelName(e.Target),
			Index:   labelIndex(e.Target),
			Kind:    e.Kind.String(),
			Stack:   names(e.Stack),
			Locals:  names(e.Locals),
			Chopped: e.Chopped,
		})
	}
	return m
}

// FromResults converts results, keeping their order.
func FromResults(results []*verifier.Result) []Method {
	out := make([]Method, 0, len(results))
	for _, r := range results {
		out = append(out, FromResult(r))
	}
	return out
}

// WriteYAML writes results as a YAML sequence of methods.
func WriteYAML(w io.Writer, results []*verifier.Result) error {
	b, err := yaml.Marshal(FromResults(results))
	if err != nil {
		return err
	}
	_, err = w.Write(b)
	return err
}

func names(elems []verifier.StackElement) []string {
	out := make([]string, len(elems))
	for i, e := range elems {
		out[i] = e.String()
	}
	return out
}

func labelName(l *verifier.Label) string {
	if l == nil {
		return verifier.EntryLabelName
	}
	return l.Name
}

func labelIndex(l *verifier.Label) int {
	if l == nil {
		return 0
	}
	return l.Index
}
