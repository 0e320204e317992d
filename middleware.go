package continuator

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
	"slices"
	"strings"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
)

// Middleware is a function that wraps a step to add functionality, such as
// logging.
type Middleware[T any] func(s Step[T]) Step[T]

// Mid is a slice of middleware.
type Mid[T any] []Middleware[T]

// wrap applies the middleware to s, the first middleware being the outermost.
func (m Mid[T]) wrap(s Step[T]) Step[T] {
	for _, mw := range slices.Backward(m) {
		s = mw(s)
	}
	return s
}

// MidFunc is a step produced by a middleware. Next is the step it wraps.
type MidFunc[T any] struct {
	Name string
	Next Step[T]
	Fn   StepFunc[T]
}

// Run executes the function.
func (f *MidFunc[T]) Run(ctx context.Context, v T, ctl Control[T]) error {
	return f.Fn(ctx, v, ctl)
}

// String returns the middleware name followed by the wrapped step.
func (f *MidFunc[T]) String() string {
	return fmt.Sprintf("%s(%s)", f.Name, StepName(f.Next))
}

// StepName returns a readable name for a step: its String() when it has one,
// its type name otherwise.
func StepName[T any](s Step[T]) string {
	if s == nil {
		return "nil"
	}
	if str, ok := s.(fmt.Stringer); ok {
		return str.String()
	}
	t := reflect.TypeOf(s)
	if t.Kind() == reflect.Pointer {
		t = t.Elem()
	}
	return strings.TrimPrefix(t.Name(), t.PkgPath()+".")
}

// UUIDMiddleware returns a middleware that assigns a unique UUID to each step
// invocation. The UUID is stored in the context under StepUUIDKey.
func UUIDMiddleware[T any]() Middleware[T] {
	return func(next Step[T]) Step[T] {
		return &MidFunc[T]{
			Name: "UUID",
			Next: next,
			Fn: func(ctx context.Context, v T, ctl Control[T]) error {
				ctx = context.WithValue(ctx, StepUUIDKey, uuid.New().String())
				return next.Run(ctx, v, ctl)
			},
		}
	}
}

// LoggerMiddleware returns a middleware that logs each step invocation and
// the signal it resolved.
func LoggerMiddleware[T any](l *slog.Logger) Middleware[T] {
	return func(next Step[T]) Step[T] {
		name := StepName(next)
		return &MidFunc[T]{
			Name: "Logger",
			Next: next,
			Fn: func(ctx context.Context, v T, ctl Control[T]) error {
				start := time.Now()
				l.InfoContext(ctx, "start", "step", name, "value", fmt.Sprintf("%v", v))
				rec := &recordingControl[T]{Control: ctl}
				err := next.Run(ctx, v, rec)
				l.InfoContext(ctx, "done", "step", name, "duration", time.Since(start),
					"signal", rec.kind().String(), "error", err)
				return err
			},
		}
	}
}

// recordingControl remembers the first signal resolved through it. A step
// resolving later from another goroutine is logged as "none".
type recordingControl[T any] struct {
	Control[T]
	first atomic.Int32
}

func (c *recordingControl[T]) kind() SignalKind { return SignalKind(c.first.Load()) }

func (c *recordingControl[T]) Advance(next T)     { c.Resolve(AdvanceWith(next)) }
func (c *recordingControl[T]) Halt(v T)           { c.Resolve(HaltWith(v)) }
func (c *recordingControl[T]) Jump(target StepID) { c.Resolve(JumpTo[T](target)) }

func (c *recordingControl[T]) Resolve(sig Signal[T]) {
	c.first.CompareAndSwap(int32(SignalNone), int32(sig.Kind))
	c.Control.Resolve(sig)
}

// RecoverMiddleware returns a middleware turning a panic in the wrapped step
// into an error naming that step. Panics that escape every middleware are
// still caught by the engine.
func RecoverMiddleware[T any]() Middleware[T] {
	return func(next Step[T]) Step[T] {
		name := StepName(next)
		return &MidFunc[T]{
			Name: "Recover",
			Next: next,
			Fn: func(ctx context.Context, v T, ctl Control[T]) (err error) {
				defer func() {
					if p := recover(); p != nil {
						if perr, ok := p.(error); ok {
							err = fmt.Errorf("step %s panicked: %w", name, perr)
							return
						}
						err = fmt.Errorf("step %s panicked: %v", name, p)
					}
				}()
				return next.Run(ctx, v, ctl)
			},
		}
	}
}
