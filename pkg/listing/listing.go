// Package listing loads textual class listings into method bodies ready for
// frame inference.
package listing

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	jal "github.com/PeyaPeyaPeyang/LangJAL-sub000"
	"github.com/PeyaPeyaPeyang/LangJAL-sub000/verifier"
)

// Document is the YAML shape of one class listing.
type Document struct {
	Class      string           `yaml:"class"`
	Super      string           `yaml:"super"`
	Interface  bool             `yaml:"interface"`
	Interfaces []string         `yaml:"interfaces"`
	Methods    []MethodDocument `yaml:"methods"`
}

// MethodDocument is one method of a listing. Code holds one instruction,
// label ("name:") or comment ("# ...") per line.
type MethodDocument struct {
	Name       string            `yaml:"name"`
	Descriptor string            `yaml:"descriptor"`
	Static     bool              `yaml:"static"`
	Handlers   []HandlerDocument `yaml:"handlers"`
	Code       yaml.Node         `yaml:"code"`
}

type HandlerDocument struct {
	Start   string `yaml:"start"`
	End     string `yaml:"end"`
	Handler string `yaml:"handler"`
	Type    string `yaml:"type"`
}

// Class is a loaded listing.
type Class struct {
	Info    verifier.ClassInfo
	Methods []*verifier.Method
	// Source is the name the listing was read from, for diagnostics.
	Source string
}

// Error locates a listing problem.
type Error struct {
	Source string
	Method string
	Line   int
	Err    error
}

func (e *Error) Error() string {
	var b strings.Builder
	if e.Source != "" {
		b.WriteString(e.Source)
		b.WriteByte(':')
	}
	if e.Line > 0 {
		fmt.Fprintf(&b, "%d:", e.Line)
	}
	if b.Len() > 0 {
		b.WriteByte(' ')
	}
	if e.Method != "" {
		fmt.Fprintf(&b, "%s: ", e.Method)
	}
	b.WriteString(e.Err.Error())
	return b.String()
}

func (e *Error) Unwrap() error { return e.Err }

// ErrEmpty is returned for a listing without a class name.
var ErrEmpty = errors.New("listing has no class")

// LoadFile reads a listing from disk.
func LoadFile(path string) (*Class, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Load(f, path)
}

// Load decodes a listing and evaluates every instruction.
func Load(r io.Reader, source string) (*Class, error) {
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	var doc Document
	if err := dec.Decode(&doc); err != nil {
		if errors.Is(err, io.EOF) {
			return nil, &Error{Source: source, Err: ErrEmpty}
		}
		return nil, &Error{Source: source, Err: err}
	}
	return doc.Build(source)
}

// Build evaluates the instructions of every method of the document.
func (d *Document) Build(source string) (*Class, error) {
	if d.Class == "" {
		return nil, &Error{Source: source, Err: ErrEmpty}
	}
	c := &Class{
		Info: verifier.ClassInfo{
			Name:       d.Class,
			Super:      d.Super,
			Interface:  d.Interface,
			Interfaces: d.Interfaces,
		},
		Source: source,
	}
	if c.Info.Super == "" && d.Class != verifier.UniversalObject {
		c.Info.Super = verifier.UniversalObject
	}

	seen := make(map[string]bool, len(d.Methods))
	for _, md := range d.Methods {
		m, err := md.build(d.Class, source)
		if err != nil {
			return nil, err
		}
		key := md.Name + md.Descriptor
		if seen[key] {
			return nil, &Error{Source: source, Method: m.String(), Line: md.Code.Line, Err: fmt.Errorf("%w: duplicate method", verifier.ErrInvalidMethod)}
		}
		seen[key] = true
		c.Methods = append(c.Methods, m)
	}
	return c, nil
}

func (md *MethodDocument) build(owner, source string) (*verifier.Method, error) {
	if md.Name == "" {
		return nil, &Error{Source: source, Line: md.Code.Line, Err: fmt.Errorf("%w: method without a name", verifier.ErrInvalidMethod)}
	}
	m, err := verifier.NewMethod(owner, md.Name, md.Descriptor, md.Static)
	if err != nil {
		return nil, &Error{Source: source, Method: md.Name, Line: md.Code.Line, Err: err}
	}
	if md.Code.Kind != 0 && md.Code.Kind != yaml.ScalarNode {
		return nil, &Error{Source: source, Method: m.String(), Line: md.Code.Line, Err: errors.New("code must be a string")}
	}

	// Literal blocks start on the line after the indicator.
	first := md.Code.Line
	if md.Code.Style&yaml.LiteralStyle != 0 {
		first++
	}
	for i, line := range strings.Split(md.Code.Value, "\n") {
		lineNo := first + i
		if err := jal.EmitLine(m, line, lineNo); err != nil {
			return nil, &Error{Source: source, Method: m.String(), Line: lineNo, Err: err}
		}
	}

	for _, h := range md.Handlers {
		if h.Start == "" || h.End == "" || h.Handler == "" {
			return nil, &Error{Source: source, Method: m.String(), Err: fmt.Errorf("%w: handler needs start, end and handler labels", verifier.ErrInvalidMethod)}
		}
		m.Handlers = append(m.Handlers, verifier.ExceptionHandler{
			Start:   h.Start,
			End:     h.End,
			Handler: h.Handler,
			Type:    h.Type,
		})
	}
	return m, nil
}

// Hierarchy returns a class hierarchy that knows the listed classes on top
// of base.
func Hierarchy(base verifier.ClassHierarchy, classes ...*Class) verifier.ClassHierarchy {
	own := verifier.MapHierarchy{}
	for _, c := range classes {
		own.Add(c.Info)
	}
	if base == nil {
		base = verifier.DefaultHierarchy()
	}
	return verifier.ChainHierarchy{own, base}
}
