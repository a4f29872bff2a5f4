// Package framewire serializes frame maps for a class-file writer. Tables
// are CBOR encoded in canonical mode, so equal frame maps always produce
// equal bytes.
package framewire

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/fxamacker/cbor/v2"

	"github.com/PeyaPeyaPeyang/LangJAL-sub000/verifier"
)

// Tag is a verification_type_info tag as stored in a StackMapTable.
type Tag uint8

const (
	TagTop               Tag = 0
	TagInteger           Tag = 1
	TagFloat             Tag = 2
	TagDouble            Tag = 3
	TagLong              Tag = 4
	TagNull              Tag = 5
	TagUninitializedThis Tag = 6
	TagObject            Tag = 7
	TagUninitialized     Tag = 8
)

// Frame type bytes that are not ranges.
const (
	sameLocals1Extended = 247
	sameExtended        = 251
	fullFrame           = 255
	shortDeltaLimit     = 63
)

// VerificationType is one lowered stack or local entry.
type VerificationType struct {
	Tag Tag `cbor:"1,keyasint"`
	// Class is the internal name or array descriptor of TagObject.
	Class string `cbor:"2,keyasint,omitempty"`
	// NewIndex is the instruction index of the new that created a
	// TagUninitialized value.
	NewIndex int `cbor:"3,keyasint,omitempty"`
}

// Entry is one StackMapTable entry. Offsets count instructions; the writer
// rebases them on byte offsets once code is laid out.
type Entry struct {
	FrameType uint8              `cbor:"1,keyasint"`
	Delta     int                `cbor:"2,keyasint"`
	Label     string             `cbor:"3,keyasint"`
	Locals    []VerificationType `cbor:"4,keyasint,omitempty"`
	Stack     []VerificationType `cbor:"5,keyasint,omitempty"`
}

// Table is the frame map of one method.
type Table struct {
	Method    string  `cbor:"1,keyasint"`
	MaxStack  int     `cbor:"2,keyasint"`
	MaxLocals int     `cbor:"3,keyasint"`
	Entries   []Entry `cbor:"4,keyasint,omitempty"`
}

// ErrUnencodable is returned for verification types a stack map cannot hold.
var ErrUnencodable = errors.New("framewire: unencodable verification type")

var cborEncMode cbor.EncMode

func init() {
	em, err := cbor.CanonicalEncOptions().EncMode()
	if err != nil {
		panic(fmt.Sprintf("framewire: failed to create CBOR enc mode: %v", err))
	}
	cborEncMode = em
}

// FromResult lowers an analysis result into a table.
func FromResult(r *verifier.Result) (*Table, error) {
	t := &Table{MaxStack: r.MaxStack, MaxLocals: r.MaxLocals}
	if r.Method != nil {
		t.Method = r.Method.String()
	}
	prev := -1
	for _, e := range r.FrameMap {
		idx := e.Target.Index
		delta := idx - prev - 1
		prev = idx

		entry := Entry{Delta: delta, Label: e.Target.Name}
		var err error
		switch e.Kind {
		case verifier.FrameSame:
			entry.FrameType = sameExtended
			if delta <= shortDeltaLimit {
				entry.FrameType = uint8(delta)
			}
		case verifier.FrameSameLocals1StackItem:
			entry.FrameType = sameLocals1Extended
			if delta <= shortDeltaLimit {
				entry.FrameType = uint8(64 + delta)
			}
			entry.Stack, err = lower(r.Method, e.Stack)
		case verifier.FrameChop:
			entry.FrameType = uint8(sameExtended - e.Chopped)
		case verifier.FrameAppend:
			entry.FrameType = uint8(sameExtended + len(e.Locals))
			entry.Locals, err = lower(r.Method, e.Locals)
		default:
			entry.FrameType = fullFrame
			if entry.Locals, err = lower(r.Method, e.Locals); err == nil {
				entry.Stack, err = lower(r.Method, e.Stack)
			}
		}
		if err != nil {
			return nil, fmt.Errorf("framewire: entry at %s: %w", e.Target, err)
		}
		t.Entries = append(t.Entries, entry)
	}
	return t, nil
}

func lower(m *verifier.Method, elems []verifier.StackElement) ([]VerificationType, error) {
	if len(elems) == 0 {
		return nil, nil
	}
	out := make([]VerificationType, 0, len(elems))
	for _, e := range elems {
		v, err := lowerOne(m, e)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

func lowerOne(m *verifier.Method, e verifier.StackElement) (VerificationType, error) {
	switch e.Kind() {
	case verifier.KindTop:
		return VerificationType{Tag: TagTop}, nil
	case verifier.KindInteger:
		return VerificationType{Tag: TagInteger}, nil
	case verifier.KindFloat:
		return VerificationType{Tag: TagFloat}, nil
	case verifier.KindDouble:
		return VerificationType{Tag: TagDouble}, nil
	case verifier.KindLong:
		return VerificationType{Tag: TagLong}, nil
	case verifier.KindNull:
		return VerificationType{Tag: TagNull}, nil
	case verifier.KindUninitializedThis:
		return VerificationType{Tag: TagUninitializedThis}, nil
	case verifier.KindObject:
		return VerificationType{Tag: TagObject, Class: e.Descriptor()}, nil
	case verifier.KindUninitialized:
		idx, err := siteIndex(m, e.NewSite())
		if err != nil {
			return VerificationType{}, err
		}
		return VerificationType{Tag: TagUninitialized, NewIndex: idx}, nil
	}
	return VerificationType{}, fmt.Errorf("%w: %s", ErrUnencodable, e)
}

// siteIndex resolves the site of a new instruction: either the label
// preceding it or "@index".
func siteIndex(m *verifier.Method, site string) (int, error) {
	if rest, ok := strings.CutPrefix(site, "@"); ok {
		if idx, err := strconv.Atoi(rest); err == nil {
			return idx, nil
		}
	} else if m != nil {
		if l, ok := m.Labels.Lookup(site); ok {
			return l.Index, nil
		}
	}
	return 0, fmt.Errorf("%w: unresolvable new site %q", ErrUnencodable, site)
}

// MarshalTable serializes a Table to CBOR bytes.
func MarshalTable(t *Table) ([]byte, error) {
	return cborEncMode.Marshal(t)
}

// UnmarshalTable deserializes a Table from CBOR bytes.
func UnmarshalTable(data []byte) (*Table, error) {
	var t Table
	if err := cbor.Unmarshal(data, &t); err != nil {
		return nil, fmt.Errorf("framewire: unmarshal table: %w", err)
	}
	return &t, nil
}

// MarshalClass serializes the tables of every method of a class.
func MarshalClass(tables []*Table) ([]byte, error) {
	return cborEncMode.Marshal(tables)
}

// UnmarshalClass deserializes the output of MarshalClass.
func UnmarshalClass(data []byte) ([]*Table, error) {
	var tables []*Table
	if err := cbor.Unmarshal(data, &tables); err != nil {
		return nil, fmt.Errorf("framewire: unmarshal class: %w", err)
	}
	return tables, nil
}
