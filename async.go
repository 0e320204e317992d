package continuator

import "context"

// Future is the pending result of an asynchronous run.
type Future[T any] struct {
	done  chan struct{}
	value T
	err   error
}

// Done is closed once the run reached a terminal state.
func (f *Future[T]) Done() <-chan struct{} { return f.done }

// Wait blocks until the run ends and returns its result.
func (f *Future[T]) Wait() (T, error) {
	<-f.done
	return f.value, f.err
}

// RunAsync starts a run on its own goroutine.
//
// A step may resolve its Control after returning, from any goroutine, for
// instance once some I/O completed. The engine waits for that resolution
// before starting the next step, so steps never overlap. A step that never
// resolves stalls the run until ctx is canceled.
func (r *Registry[T]) RunAsync(ctx context.Context, seed T, opts ...Option[T]) *Future[T] {
	return r.start(ctx, seed, false, opts)
}

// DebugAsync is RunAsync with tracing, see Debug.
func (r *Registry[T]) DebugAsync(ctx context.Context, seed T, opts ...Option[T]) *Future[T] {
	return r.start(ctx, seed, true, opts)
}

func (r *Registry[T]) start(ctx context.Context, seed T, dbg bool, opts []Option[T]) *Future[T] {
	f := &Future[T]{done: make(chan struct{})}
	go func() {
		defer close(f.done)
		f.value, f.err = r.exec(ctx, seed, true, dbg, opts)
	}()
	return f
}

// awaitAsync suspends until the step resolves, fails or ctx is canceled.
// A failing body faults the run even if it resolved a signal first.
func awaitAsync[T any](ctx context.Context, s Step[T], v T) outcome[T] {
	ctl := newResolver[T]()
	err := call(ctx, s, v, Control[T](ctl))
	if err != nil {
		return outcome[T]{kind: ErrStepBody, err: err}
	}
	if sig, ok := ctl.poll(); ok {
		return outcome[T]{sig: sig, resolved: true}
	}
	select {
	case sig := <-ctl.ch:
		return outcome[T]{sig: sig, resolved: true}
	case <-ctx.Done():
		return outcome[T]{kind: ErrCanceled, err: ctx.Err()}
	}
}
