package verifier

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// Analyze infers the stack-map frames of one method. It simulates every
// reachable block to a fixpoint and returns the maximum stack depth, the
// maximum local count, the confirmed frames and their encoded frame map.
//
// Example:
//
//	m, _ := verifier.NewMethod("demo/Main", "abs", "(I)I", true)
//	... add instructions ...
//	result, err := verifier.Analyze(context.Background(), m)
//	if err != nil {
//	    log.Fatal(err)
//	}
//	fmt.Println(result.MaxStack, result.FrameMap)
func Analyze(ctx context.Context, m *Method, opts ...Options) (*Result, error) {
	opt := DefaultOptions()
	if len(opts) > 0 {
		opt = opts[0]
	}
	if err := validateMethod(m); err != nil {
		return nil, err
	}
	if opt.MaxIterations <= 0 {
		opt.MaxIterations = DefaultOptions().MaxIterations
	}

	s, err := newSession(ctx, m, opt)
	if err != nil {
		return nil, err
	}
	return s.run()
}

// AnalyzeClass analyses the methods of one class concurrently, one
// independent session per method. The first failure cancels the remaining
// sessions. Results are in input order.
func AnalyzeClass(ctx context.Context, methods []*Method, opts ...Options) ([]*Result, error) {
	opt := DefaultOptions()
	if len(opts) > 0 {
		opt = opts[0]
	}
	if opt.Hierarchy != nil {
		if _, ok := opt.Hierarchy.(*CachedHierarchy); !ok {
			opt.Hierarchy = NewCachedHierarchy(opt.Hierarchy)
		}
	}

	results := make([]*Result, len(methods))
	g, ctx := errgroup.WithContext(ctx)
	if opt.Parallelism > 0 {
		g.SetLimit(opt.Parallelism)
	}
	for i, m := range methods {
		g.Go(func() error {
			r, err := Analyze(ctx, m, opt)
			if err != nil {
				return fmt.Errorf("method %s: %w", m, err)
			}
			results[i] = r
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

// validateMethod performs basic validation on an input method.
func validateMethod(m *Method) error {
	if m == nil {
		return fmt.Errorf("%w: method cannot be nil", ErrInvalidMethod)
	}
	if m.Owner == "" {
		return fmt.Errorf("%w: %s has no owner class", ErrInvalidMethod, m.Name)
	}
	for i, insn := range m.Instructions {
		if insn == nil {
			return fmt.Errorf("%w: nil instruction at %d", ErrInvalidMethod, i)
		}
		if insn.Index != i {
			return fmt.Errorf("%w: instruction %s recorded at index %d", ErrInvalidMethod, insn, i)
		}
	}
	return nil
}
