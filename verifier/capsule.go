package verifier

import "fmt"

// Capsule names a write-once cell of one effect descriptor. A capsule pop
// fills the cell with whatever element sits on the stack; later pushes of
// the same capsule write that element back. Cells live for exactly one
// replay of the descriptor, so a descriptor can be replayed any number of
// times while the fixpoint converges.
type Capsule int

type capsuleScratch struct {
	cells  []StackElement
	filled []bool
}

func newCapsuleScratch(n int) *capsuleScratch {
	return &capsuleScratch{
		cells:  make([]StackElement, n),
		filled: make([]bool, n),
	}
}

func (s *capsuleScratch) fill(c Capsule, e StackElement) error {
	if int(c) < 0 || int(c) >= len(s.cells) {
		return fmt.Errorf("capsule %d out of range (%d allocated)", c, len(s.cells))
	}
	if s.filled[c] {
		return fmt.Errorf("capsule %d written twice", c)
	}
	s.cells[c] = e
	s.filled[c] = true
	return nil
}

// read returns the capsule content. An unfilled capsule is legal: a
// category-2 element consumes two slots but fills a single capsule.
func (s *capsuleScratch) read(c Capsule) (StackElement, bool) {
	if int(c) < 0 || int(c) >= len(s.cells) || !s.filled[c] {
		return StackElement{}, false
	}
	return s.cells[c], true
}
