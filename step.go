package continuator

import (
	"context"
	"fmt"
	"strconv"
	"sync"

	"github.com/ccoveille/go-safecast"
)

// StepID identifies a step in a registry. It is either an implicit
// positional index or an explicit name.
type StepID struct {
	name  string
	index int
	named bool
}

// Index returns the implicit identifier of the step at position n.
func Index(n int) StepID {
	return StepID{index: n}
}

// Named returns an explicit step identifier.
func Named(name string) StepID {
	return StepID{name: name, named: true}
}

// ParseStepID turns a string into a StepID. Numeric strings are reserved for
// implicit indices; anything else is a name.
func ParseStepID(s string) StepID {
	if n, ok := parseIndex(s); ok {
		return Index(n)
	}
	return Named(s)
}

func parseIndex(s string) (int, bool) {
	u, err := strconv.ParseUint(s, 10, 64)
	if err != nil {
		return 0, false
	}
	n, err := safecast.ToInt(u)
	if err != nil {
		return 0, false
	}
	return n, true
}

// IsNamed reports whether id is an explicit name.
func (id StepID) IsNamed() bool { return id.named }

// Name returns the explicit name, or "" for an implicit index.
func (id StepID) Name() string { return id.name }

// Position returns the implicit index, or -1 for a name.
func (id StepID) Position() int {
	if id.named {
		return -1
	}
	return id.index
}

func (id StepID) String() string {
	if id.named {
		return strconv.Quote(id.name)
	}
	return "#" + strconv.Itoa(id.index)
}

// Step is the basic unit of work in a pipeline. Run receives the current
// value and a Control on which it must resolve exactly one signal. A returned
// error faults the run.
type Step[T any] interface {
	Run(ctx context.Context, value T, ctl Control[T]) error
}

// StepFunc is an adapter to allow the use of ordinary functions as steps.
type StepFunc[T any] func(ctx context.Context, value T, ctl Control[T]) error

// Run executes the function.
func (f StepFunc[T]) Run(ctx context.Context, value T, ctl Control[T]) error {
	return f(ctx, value, ctl)
}

func (f StepFunc[T]) String() string {
	var z T
	return fmt.Sprintf("StepFunc[%T]", z)
}

// Returning adapts a function that returns its decision as a Signal.
func Returning[T any](fn func(context.Context, T) (Signal[T], error)) Step[T] {
	return StepFunc[T](func(ctx context.Context, v T, ctl Control[T]) error {
		sig, err := fn(ctx, v)
		if err != nil {
			return err
		}
		ctl.Resolve(sig)
		return nil
	})
}

// SignalKind discriminates the three control signals.
type SignalKind int

const (
	// SignalNone is the zero value; resolving it has no effect.
	SignalNone SignalKind = iota
	// SignalAdvance continues with the next step and a new value.
	SignalAdvance
	// SignalHalt terminates the run with a value.
	SignalHalt
	// SignalJump continues at the step with the given identifier.
	SignalJump
)

func (k SignalKind) String() string {
	switch k {
	case SignalAdvance:
		return "advance"
	case SignalHalt:
		return "halt"
	case SignalJump:
		return "jump"
	default:
		return "none"
	}
}

// Signal is the decision a step makes about where the run goes next.
type Signal[T any] struct {
	Kind   SignalKind
	Value  T
	Target StepID
}

// AdvanceWith returns an advance signal carrying v.
func AdvanceWith[T any](v T) Signal[T] {
	return Signal[T]{Kind: SignalAdvance, Value: v}
}

// HaltWith returns a halt signal carrying v.
func HaltWith[T any](v T) Signal[T] {
	return Signal[T]{Kind: SignalHalt, Value: v}
}

// JumpTo returns a jump signal targeting id.
func JumpTo[T any](id StepID) Signal[T] {
	return Signal[T]{Kind: SignalJump, Target: id}
}

// Control is handed to every step invocation. Only the first call that
// resolves a signal counts; later calls are ignored.
type Control[T any] interface {
	Advance(next T)
	Halt(v T)
	Jump(target StepID)
	Resolve(sig Signal[T])
}

// resolver is the Control of a single step invocation.
type resolver[T any] struct {
	mu   sync.Mutex
	done bool
	ch   chan Signal[T]
}

func newResolver[T any]() *resolver[T] {
	return &resolver[T]{ch: make(chan Signal[T], 1)}
}

func (r *resolver[T]) Advance(next T)     { r.Resolve(AdvanceWith(next)) }
func (r *resolver[T]) Halt(v T)           { r.Resolve(HaltWith(v)) }
func (r *resolver[T]) Jump(target StepID) { r.Resolve(JumpTo[T](target)) }

func (r *resolver[T]) Resolve(sig Signal[T]) {
	if sig.Kind == SignalNone {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.done {
		return
	}
	r.done = true
	r.ch <- sig
}

// poll returns the signal if one was already resolved.
func (r *resolver[T]) poll() (Signal[T], bool) {
	select {
	case sig := <-r.ch:
		return sig, true
	default:
		return Signal[T]{}, false
	}
}
