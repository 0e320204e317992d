package continuator

import (
	"context"
	"fmt"
	"runtime/debug"
	"time"

	"golang.org/x/sync/errgroup"
)

// Run feeds seed through the steps and returns the final value.
//
// Each step resolves its Control before returning. A step that returns
// without resolving ends the run with the current value. The run never
// recurses, so pipelines of any length and jump loops of any duration run in
// constant stack space.
func (r *Registry[T]) Run(ctx context.Context, seed T, opts ...Option[T]) (T, error) {
	return r.exec(ctx, seed, false, false, opts)
}

// Debug is Run with tracing: every step invocation is recorded, and a
// failure returns a *Fault carrying the path taken.
func (r *Registry[T]) Debug(ctx context.Context, seed T, opts ...Option[T]) (T, error) {
	return r.exec(ctx, seed, false, true, opts)
}

// RunAll runs the pipeline once per seed, at most limit runs at a time (no
// limit if limit <= 0). The steps of each run stay strictly sequential. The
// first failure cancels the remaining runs. Observers given in opts are
// shared between runs and must be safe for concurrent use.
func (r *Registry[T]) RunAll(ctx context.Context, seeds []T, limit int, opts ...Option[T]) ([]T, error) {
	g, gctx := errgroup.WithContext(ctx)
	if limit > 0 {
		g.SetLimit(limit)
	}
	out := make([]T, len(seeds))
	for i, seed := range seeds {
		g.Go(func() error {
			v, err := r.Run(gctx, seed, opts...)
			if err != nil {
				return err
			}
			out[i] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// outcome is what a single step invocation produced.
type outcome[T any] struct {
	sig      Signal[T]
	resolved bool
	kind     error
	err      error
}

// awaitFunc invokes one step and waits for its resolution in the manner of
// the run's mode.
type awaitFunc[T any] func(ctx context.Context, s Step[T], v T) outcome[T]

// turn is one bounce of the trampoline. It returns the next turn, or nil once
// the run reached a terminal state.
type turn[T any] func(ctx context.Context) turn[T]

// execution is the state of a single run. It is never shared.
type execution[T any] struct {
	reg   *Registry[T]
	rc    *runConfig[T]
	info  RunInfo
	steps []Step[T]
	await awaitFunc[T]

	pos         int
	value       T
	state       State
	err         error
	trace       []TraceEntry
	transitions int
}

func (r *Registry[T]) exec(ctx context.Context, seed T, async, dbg bool, opts []Option[T]) (T, error) {
	var zero T
	if err := r.Validate(); err != nil {
		return zero, err
	}
	rc, err := newRunConfig(opts)
	if err != nil {
		return zero, err
	}
	rc.debug = dbg

	x := &execution[T]{
		reg: r,
		rc:  rc,
		info: RunInfo{
			ID:       rc.ids.ID(),
			Pipeline: rc.Name,
			Debug:    dbg,
			Async:    async,
		},
		steps: make([]Step[T], len(r.steps)),
		value: seed,
		state: Running,
	}
	for i, e := range r.steps {
		x.steps[i] = r.Mid.wrap(e.step)
	}
	if dbg {
		x.trace = make([]TraceEntry, 0, rc.TraceCapacity)
	}
	x.await = awaitSync[T]
	if async {
		x.await = awaitAsync[T]
	}

	ctx = context.WithValue(ctx, RunIDKey, x.info.ID)
	if dbg {
		rc.logger.DebugContext(ctx, "debug_enabled",
			"pipeline", x.info.Pipeline, "run_id", x.info.ID, "steps", len(x.steps))
	}
	rc.observer.OnRunStart(ctx, x.info)

	var next turn[T] = x.bounce
	for next != nil {
		next = next(ctx)
	}

	rc.observer.OnRunEnd(ctx, x.info, x.state, x.err)
	if x.err != nil {
		return zero, x.err
	}
	return x.value, nil
}

// bounce runs the step at the current position and applies its signal.
func (x *execution[T]) bounce(ctx context.Context) turn[T] {
	if x.pos >= len(x.steps) {
		x.state = Completed
		return nil
	}
	if err := ctx.Err(); err != nil {
		return x.fault(ErrCanceled, err)
	}
	if limit := x.rc.MaxTransitions; limit > 0 && x.transitions >= limit {
		return x.fault(ErrTransitionLimit, fmt.Errorf("%d step invocations", x.transitions))
	}
	x.transitions++

	e := TraceEntry{Position: x.pos, Value: x.value}
	e.ID, e.HasID = x.reg.IdentifierOf(x.pos)
	if x.rc.debug {
		x.trace = append(x.trace, e)
	}
	x.rc.observer.OnStepStart(ctx, x.info, e)
	start := time.Now()
	out := x.await(ctx, x.steps[x.pos], x.value)
	x.rc.observer.OnStepDone(ctx, x.info, e, out.sig.Kind, out.err, time.Since(start))

	if out.err != nil {
		return x.fault(out.kind, out.err)
	}
	if !out.resolved {
		x.state = Completed
		return nil
	}

	switch out.sig.Kind {
	case SignalAdvance:
		x.value = out.sig.Value
		x.pos++
	case SignalHalt:
		x.value = out.sig.Value
		if x.rc.onHalt != nil {
			x.value = x.rc.onHalt(x.value)
		}
		x.state = Halted
		return nil
	case SignalJump:
		pos, ok := x.reg.Lookup(out.sig.Target)
		if !ok {
			return x.fault(ErrUnknownJumpTarget, fmt.Errorf("target %s", out.sig.Target))
		}
		x.pos = pos
	}
	return x.bounce
}

func (x *execution[T]) fault(kind, err error) turn[T] {
	f := Wrap(kind, err, nil)
	if x.rc.debug {
		f.Trace = x.trace
	}
	f.RunID = x.info.ID
	x.err = f
	x.state = Faulted
	return nil
}

// call runs the step body, turning a panic into an error.
func call[T any](ctx context.Context, s Step[T], v T, ctl Control[T]) (err error) {
	defer func() {
		if p := recover(); p != nil {
			err = &panicError{value: p, stack: debug.Stack()}
		}
	}()
	return s.Run(ctx, v, ctl)
}

// awaitSync only honors a signal resolved before the step body returned.
// A failing body faults the run even if it resolved a signal first.
func awaitSync[T any](ctx context.Context, s Step[T], v T) outcome[T] {
	ctl := newResolver[T]()
	err := call(ctx, s, v, Control[T](ctl))
	if err != nil {
		return outcome[T]{kind: ErrStepBody, err: err}
	}
	if sig, ok := ctl.poll(); ok {
		return outcome[T]{sig: sig, resolved: true}
	}
	return outcome[T]{}
}
