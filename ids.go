package continuator

import (
	"context"
	"strconv"
	"sync/atomic"

	"github.com/google/uuid"
)

// IDGenerator hands out run identifiers.
type IDGenerator interface {
	ID() string
}

// UUIDGenerator generates random UUIDs.
type UUIDGenerator struct{}

// ID returns a new random UUID.
func (UUIDGenerator) ID() string { return uuid.NewString() }

// StaticID returns a predictable sequence of identifiers, for tests.
type StaticID struct {
	n atomic.Int64
}

// ID returns "run-1", "run-2", ...
func (s *StaticID) ID() string {
	return "run-" + strconv.FormatInt(s.n.Add(1), 10)
}

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

const (
	// RunIDKey is the context key holding the identifier of the current run.
	RunIDKey contextKey = "run_id"
	// StepUUIDKey is the context key holding the UUID of a step invocation.
	StepUUIDKey contextKey = "step_uuid"
)

// RunID returns the identifier of the run executing ctx.
func RunID(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(RunIDKey).(string)
	return id, ok
}
