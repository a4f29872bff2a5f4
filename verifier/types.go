package verifier

import (
	"fmt"
	"io"
)

// Options configures frame inference.
type Options struct {
	// Hierarchy resolves superclasses for object merges. Nil uses
	// DefaultHierarchy; unresolvable classes join to java/lang/Object.
	Hierarchy ClassHierarchy

	// MaxIterations bounds the worklist loop as a safeguard (default: 100000).
	MaxIterations int

	// KeepSnapshots records the frame after every instruction (default: true).
	KeepSnapshots bool

	// Parallelism bounds concurrent sessions in AnalyzeClass (default: 4).
	Parallelism int

	// Logging configuration
	LogLevel      string    // "error", "warn", "info", "debug" (default: "warn")
	LogTimeFormat string    // strftime layout of timestamps (default: DefaultLogTimeFormat)
	LogOutput     io.Writer // destination (default: os.Stderr)
	Logger        Logger    // overrides the three fields above when set
}

// DefaultOptions returns the default configuration for frame inference.
func DefaultOptions() Options {
	return Options{
		Hierarchy:     nil,
		MaxIterations: 100000,
		KeepSnapshots: true,
		Parallelism:   4,
		LogLevel:      "warn",
		LogTimeFormat: DefaultLogTimeFormat,
	}
}

func (o Options) logger() Logger {
	if o.Logger != nil {
		return o.Logger
	}
	if o.LogLevel == "" {
		return NopLogger()
	}
	return NewLogger(ParseLogLevel(o.LogLevel), o.LogOutput, o.LogTimeFormat)
}

func (o Options) hierarchy() ClassHierarchy {
	if o.Hierarchy == nil {
		return DefaultHierarchy()
	}
	return o.Hierarchy
}

// Result is the outcome of analysing one method.
type Result struct {
	Method    *Method
	MaxStack  int
	MaxLocals int

	// Frames are the confirmed frames in instruction order. The first is the
	// implicit entry frame derived from the method signature.
	Frames []*Frame

	// FrameMap is the encoded delta sequence for the classfile emitter.
	FrameMap []FrameMapEntry

	// Propagations are the confirmed control-flow edges, ordered by sender
	// then receiver position.
	Propagations []*FramePropagation

	// Snapshots hold the frame after each reachable instruction.
	Snapshots []Snapshot

	Iterations int
}

// String returns a string representation of the result for debugging.
func (r *Result) String() string {
	if r == nil {
		return "<nil>"
	}
	name := "<anonymous>"
	if r.Method != nil {
		name = r.Method.String()
	}
	return fmt.Sprintf("Result{%s maxStack=%d maxLocals=%d frames=%d entries=%d}",
		name, r.MaxStack, r.MaxLocals, len(r.Frames), len(r.FrameMap))
}
