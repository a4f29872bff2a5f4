package verifier

import (
	"context"
	"fmt"
	"sort"
	"sync/atomic"
)

var sessionCounter atomic.Uint64

// session is one method analysis. It owns all working state and is never
// shared between methods or goroutines.
type session struct {
	ctx       context.Context
	opts      Options
	method    *Method
	hierarchy ClassHierarchy
	logger    Logger
	id        string

	blocks map[*Label]*blockSimulator
	order  []*blockSimulator

	// confirmed holds the latest processed content per (sender, receiver);
	// pending holds edges waiting in queue.
	confirmed map[propagationKey]*FramePropagation
	pending   map[propagationKey]*FramePropagation
	queue     []propagationKey

	maxStack   int
	maxLocals  int
	iterations int
}

func newSession(ctx context.Context, m *Method, opts Options) (*session, error) {
	if m.Labels == nil {
		m.Labels = NewLabelTable()
	}
	m.ensureEntry()

	id := fmt.Sprintf("m%d", sessionCounter.Add(1))
	s := &session{
		ctx:       ctx,
		opts:      opts,
		method:    m,
		hierarchy: opts.hierarchy(),
		id:        id,
		blocks:    make(map[*Label]*blockSimulator),
		confirmed: make(map[propagationKey]*FramePropagation),
		pending:   make(map[propagationKey]*FramePropagation),
	}
	s.logger = opts.logger().With(map[string]any{
		fieldSession: id,
		fieldMethod:  m.String(),
	})
	if err := s.buildBlocks(); err != nil {
		return nil, err
	}
	return s, nil
}

// buildBlocks splits the instruction list at every label.
func (s *session) buildBlocks() error {
	m := s.method
	labels := m.Labels.Labels()
	for i, l := range labels {
		end := len(m.Instructions)
		if i+1 < len(labels) {
			end = labels[i+1].Index
		}
		if l.Index < 0 || l.Index > end {
			return fmt.Errorf("%w: label %s at %d outside instructions [0, %d]", ErrInvalidMethod, l.Name, l.Index, len(m.Instructions))
		}
		b := &blockSimulator{
			label:     l,
			insns:     m.Instructions[l.Index:end],
			owner:     m.Owner,
			labels:    m.Labels,
			hierarchy: s.hierarchy,
			logger:    s.logger.With(map[string]any{fieldBlock: l.Name}),
			snapshots: s.opts.KeepSnapshots,
		}
		s.blocks[l] = b
		s.order = append(s.order, b)
	}

	for _, h := range m.Handlers {
		start, ok1 := m.Labels.Lookup(h.Start)
		end, ok2 := m.Labels.Lookup(h.End)
		handler, ok3 := m.Labels.Lookup(h.Handler)
		if !ok1 || !ok2 || !ok3 {
			return &VerifyError{
				Kind:   ErrUnknownJump,
				Detail: fmt.Sprintf("exception handler %s..%s -> %s references an undeclared label", h.Start, h.End, h.Handler),
			}
		}
		for _, b := range s.order {
			if b.label.Index >= start.Index && b.label.Index < end.Index && len(b.insns) > 0 {
				b.handlers = append(b.handlers, handlerRoute{handler: handler, catchType: h.Type})
			}
		}
	}
	return nil
}

// enqueue schedules p unless an identical edge is already confirmed. A
// pending edge with the same key is replaced by the newer content.
func (s *session) enqueue(p *FramePropagation) {
	k := p.key()
	if old, ok := s.confirmed[k]; ok && old.SameContent(p) {
		return
	}
	if _, ok := s.pending[k]; ok {
		s.pending[k] = p
		return
	}
	if _, ok := s.confirmed[k]; ok {
		s.logger.Debugf("re-queue %s: frame changed", p)
	}
	s.pending[k] = p
	s.queue = append(s.queue, k)
}

func (s *session) run() (*Result, error) {
	m := s.method
	entryLocals := EntryLocals(m)
	s.maxLocals = len(entryLocals)

	s.logger.With(map[string]any{
		"instructions": len(m.Instructions),
		"labels":       m.Labels.Len(),
	}).Infof("Starting frame inference")

	s.enqueue(&FramePropagation{
		Receiver:  m.Labels.Entry(),
		Locals:    entryLocals,
		MaxLocals: len(entryLocals),
	})

	exit := m.Labels.Exit()
	for len(s.queue) > 0 {
		s.iterations++
		if s.iterations > s.opts.MaxIterations {
			return nil, fmt.Errorf("%w: %d iterations", ErrIterationLimit, s.opts.MaxIterations)
		}
		select {
		case <-s.ctx.Done():
			return nil, s.ctx.Err()
		default:
		}

		k := s.queue[0]
		s.queue = s.queue[1:]
		p := s.pending[k]
		delete(s.pending, k)

		if p.Receiver == exit {
			continue
		}
		block, ok := s.blocks[p.Receiver]
		if !ok {
			return nil, &VerifyError{
				Kind:   ErrPropagationMismatch,
				Label:  p.Receiver,
				Detail: fmt.Sprintf("no block owns label %s", p.Receiver.Name),
			}
		}

		s.logger.Debugf("propagate %s", p)
		res, err := block.run(p)
		if err != nil {
			s.logger.Errorf("frame inference failed: %v", err)
			return nil, err
		}
		s.confirmed[k] = p
		s.maxStack = max(s.maxStack, res.maxStack)
		s.maxLocals = max(s.maxLocals, res.maxLocals)

		for _, out := range res.propagations {
			s.enqueue(out)
		}
	}

	result := &Result{
		Method:       m,
		MaxStack:     s.maxStack,
		MaxLocals:    s.maxLocals,
		Frames:       s.frames(entryLocals),
		Propagations: s.sortedPropagations(),
		Iterations:   s.iterations,
	}
	if s.opts.KeepSnapshots {
		for _, b := range s.order {
			result.Snapshots = append(result.Snapshots, b.history...)
		}
	}
	result.FrameMap = EncodeFrames(result.Frames)

	s.logger.With(map[string]any{
		"iterations": s.iterations,
		"max_stack":  result.MaxStack,
		"max_locals": result.MaxLocals,
		"frames":     len(result.Frames),
		"entries":    len(result.FrameMap),
	}).Infof("Frame inference completed")
	return result, nil
}

// frames lists the implicit entry frame followed by one confirmed frame per
// reached instruction offset. When several labels share an offset the last
// one wins; labels past the last instruction get no frame. The first block
// only needs one when something jumps back to it.
func (s *session) frames(entryLocals []LocalStackElement) []*Frame {
	m := s.method
	frames := []*Frame{{
		Label:  m.Labels.Entry(),
		Locals: CleanUpLocals(cloneLocals(entryLocals)),
	}}

	byIndex := make(map[int]*blockSimulator)
	for _, b := range s.order {
		if !b.entered || b.label.Index >= len(m.Instructions) || (b.label.Index == 0 && b.visits <= 1) {
			continue
		}
		byIndex[b.label.Index] = b
	}
	indices := make([]int, 0, len(byIndex))
	for idx := range byIndex {
		indices = append(indices, idx)
	}
	sort.Ints(indices)
	for _, idx := range indices {
		frames = append(frames, byIndex[idx].frame())
	}
	return frames
}

func (s *session) sortedPropagations() []*FramePropagation {
	out := make([]*FramePropagation, 0, len(s.confirmed))
	for _, p := range s.confirmed {
		out = append(out, p)
	}
	rank := func(l *Label) int {
		if l == nil {
			return -1
		}
		return l.order
	}
	sort.Slice(out, func(i, j int) bool {
		si, sj := rank(out[i].Sender), rank(out[j].Sender)
		if si != sj {
			return si < sj
		}
		return rank(out[i].Receiver) < rank(out[j].Receiver)
	})
	return out
}
