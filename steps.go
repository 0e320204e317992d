package continuator

import (
	"context"
	"fmt"
	"log/slog"
)

// Log returns a step that logs the value it receives and advances with it.
func Log[T any](l *slog.Logger) Step[T] {
	if l == nil {
		l = slog.Default()
	}
	return StepFunc[T](func(ctx context.Context, v T, ctl Control[T]) error {
		l.InfoContext(ctx, "value", "value", fmt.Sprintf("%v", v))
		ctl.Advance(v)
		return nil
	})
}

// LogHalt returns an OnHalt handler that logs the halted value and keeps it.
func LogHalt[T any](l *slog.Logger) func(T) T {
	if l == nil {
		l = slog.Default()
	}
	return func(v T) T {
		l.Info("halted", "value", fmt.Sprintf("%v", v))
		return v
	}
}

// Selector decides between the two branches of Select.
type Selector[T any] func(context.Context, T) bool

// Select returns a step jumping to ifTarget when s reports true and to
// elseTarget otherwise. The value is carried over unchanged.
func Select[T any](s Selector[T], ifTarget, elseTarget StepID) Step[T] {
	return StepFunc[T](func(ctx context.Context, v T, ctl Control[T]) error {
		if s(ctx, v) {
			ctl.Jump(ifTarget)
		} else {
			ctl.Jump(elseTarget)
		}
		return nil
	})
}

// Nest returns a step running child as a sub-pipeline and advancing with its
// result, whether child completed or halted. A child failure fails the step.
func Nest[T any](child *Registry[T], opts ...Option[T]) Step[T] {
	return StepFunc[T](func(ctx context.Context, v T, ctl Control[T]) error {
		out, err := child.Run(ctx, v, opts...)
		if err != nil {
			return fmt.Errorf("nested pipeline: %w", err)
		}
		ctl.Advance(out)
		return nil
	})
}
