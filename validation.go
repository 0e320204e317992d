package continuator

import (
	"context"
	"fmt"
)

// Validate checks the registry invariants: every step is non-nil, every
// name maps to a valid position, and that position carries the name.
func (r *Registry[T]) Validate() error {
	if r == nil {
		return fmt.Errorf("registry cannot be nil")
	}
	for i, e := range r.steps {
		if e.step == nil {
			return fmt.Errorf("%w: step %d is nil", ErrInvalidStepSignature, i)
		}
		if e.name != "" {
			if pos, ok := r.names[e.name]; !ok || pos != i {
				return fmt.Errorf("step %d validation failed: name %q is not mapped to it", i, e.name)
			}
		}
	}
	for name, pos := range r.names {
		if pos < 0 || pos >= len(r.steps) {
			return fmt.Errorf("name %q maps to position %d out of %d steps", name, pos, len(r.steps))
		}
	}
	return nil
}

// SafeRun runs r after checking its arguments, defaulting a nil context to
// context.Background.
func SafeRun[T any](ctx context.Context, r *Registry[T], seed T, opts ...Option[T]) (T, error) {
	if r == nil {
		var zero T
		return zero, fmt.Errorf("cannot run nil registry")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	return r.Run(ctx, seed, opts...)
}
