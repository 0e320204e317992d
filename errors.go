package continuator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"reflect"
)

var (
	// ErrInvalidStepSignature is returned for a malformed registration.
	ErrInvalidStepSignature = errors.New("continuator: invalid step signature")
	// ErrDuplicateStepID is returned when a name is registered twice.
	ErrDuplicateStepID = errors.New("continuator: duplicate step id")
	// ErrUnknownStepID is returned when removing an unmapped identifier.
	ErrUnknownStepID = errors.New("continuator: unknown step id")
	// ErrUnknownJumpTarget faults a run that jumps to an unmapped identifier.
	ErrUnknownJumpTarget = errors.New("continuator: no step found for jump target")
	// ErrStepBody faults a run whose step returned an error or panicked.
	ErrStepBody = errors.New("continuator: step failed")
	// ErrTransitionLimit faults a run that exceeded Config.MaxTransitions.
	ErrTransitionLimit = errors.New("continuator: transition limit exceeded")
	// ErrCanceled faults a run whose context was canceled.
	ErrCanceled = errors.New("continuator: run canceled")
	// ErrInvalidConfig is returned by a run given an out-of-range Config.
	ErrInvalidConfig = errors.New("continuator: invalid config")
)

// TraceEntry records one step invocation in debug mode.
type TraceEntry struct {
	Position int
	ID       StepID
	HasID    bool
	Value    any
}

func (e TraceEntry) String() string {
	if e.HasID {
		return fmt.Sprintf("%d(%s): %v", e.Position, e.ID, e.Value)
	}
	return fmt.Sprintf("%d: %v", e.Position, e.Value)
}

// Fault is the failure outcome of a run. It carries the original error, the
// fault kind and, in debug mode, the steps taken up to the failure.
type Fault struct {
	Kind    error
	Err     error
	Message string
	// Name classifies the original error, e.g. "*fs.PathError".
	Name  string
	Stack []byte
	RunID string
	Trace []TraceEntry
}

// Wrap builds the Fault for a failed run. err may be nil when the kind says
// it all; trace is only set in debug mode.
func Wrap(kind, err error, trace []TraceEntry) *Fault {
	f := &Fault{Kind: kind, Err: err, Trace: trace}
	var pe *panicError
	switch {
	case errors.As(err, &pe):
		f.Message = fmt.Sprint(pe.value)
		f.Name = "panic"
		f.Stack = pe.stack
	case err != nil:
		f.Message = err.Error()
		f.Name = reflect.TypeOf(err).String()
	case kind != nil:
		f.Message = kind.Error()
		f.Name = "Fault"
	}
	return f
}

func (f *Fault) Error() string {
	var msg string
	switch {
	case f.Kind == nil:
		msg = f.Message
	case f.Err == nil:
		msg = f.Kind.Error()
	default:
		msg = fmt.Sprintf("%v: %s", f.Kind, f.Message)
	}
	if last, ok := f.LastStep(); ok {
		msg += fmt.Sprintf(" (at step %s)", last)
	}
	return msg
}

func (f *Fault) Unwrap() []error {
	errs := make([]error, 0, 2)
	if f.Kind != nil {
		errs = append(errs, f.Kind)
	}
	if f.Err != nil {
		errs = append(errs, f.Err)
	}
	return errs
}

// LastStep returns the last recorded trace entry.
func (f *Fault) LastStep() (TraceEntry, bool) {
	if len(f.Trace) == 0 {
		return TraceEntry{}, false
	}
	return f.Trace[len(f.Trace)-1], true
}

// LastPosition returns the position of the last recorded step, or -1.
func (f *Fault) LastPosition() int {
	if e, ok := f.LastStep(); ok {
		return e.Position
	}
	return -1
}

// LastID returns the identifier of the last recorded step.
func (f *Fault) LastID() (StepID, bool) {
	e, ok := f.LastStep()
	if !ok || !e.HasID {
		return StepID{}, false
	}
	return e.ID, true
}

// LastValue returns the value the last recorded step received.
func (f *Fault) LastValue() any {
	if e, ok := f.LastStep(); ok {
		return e.Value
	}
	return nil
}

// Report logs err with its trace when it is a Fault.
func Report(ctx context.Context, l *slog.Logger, err error) {
	if l == nil {
		l = slog.Default()
	}
	var f *Fault
	if !errors.As(err, &f) {
		l.ErrorContext(ctx, "run failed", slog.Any("error", err))
		return
	}
	attrs := []any{
		slog.String("run_id", f.RunID),
		slog.String("name", f.Name),
		slog.Any("error", f),
	}
	if last, ok := f.LastStep(); ok {
		steps := make([]string, len(f.Trace))
		for i, e := range f.Trace {
			steps[i] = e.String()
		}
		attrs = append(attrs,
			slog.String("last_step", last.String()),
			slog.Any("steps", steps),
		)
	}
	if len(f.Stack) > 0 {
		attrs = append(attrs, slog.String("stack", string(f.Stack)))
	}
	l.ErrorContext(ctx, "run failed", attrs...)
}

type panicError struct {
	value any
	stack []byte
}

func (p *panicError) Error() string {
	return fmt.Sprintf("panic: %v", p.value)
}

func (p *panicError) Unwrap() error {
	err, _ := p.value.(error)
	return err
}
