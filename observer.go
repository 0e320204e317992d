package continuator

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"
)

// State is the state of a run.
type State int

const (
	// Running is the state of a run between steps.
	Running State = iota
	// Halted means a step called Halt.
	Halted
	// Completed means the run advanced past the last step.
	Completed
	// Faulted means the run failed.
	Faulted
)

func (s State) String() string {
	switch s {
	case Running:
		return "running"
	case Halted:
		return "halted"
	case Completed:
		return "completed"
	case Faulted:
		return "faulted"
	default:
		return "unknown"
	}
}

// RunInfo identifies a run in observer callbacks.
type RunInfo struct {
	ID       string
	Pipeline string
	Debug    bool
	Async    bool
}

// Observer receives callbacks from the engine. Implementations must be fast;
// they run on the engine's goroutine between steps.
type Observer interface {
	// OnRunStart is called before the first step.
	OnRunStart(ctx context.Context, run RunInfo)
	// OnStepStart is called before a step is invoked. entry.Value is the
	// value the step receives.
	OnStepStart(ctx context.Context, run RunInfo, entry TraceEntry)
	// OnStepDone is called once the step resolved a signal or failed.
	OnStepDone(ctx context.Context, run RunInfo, entry TraceEntry, kind SignalKind, err error, d time.Duration)
	// OnRunEnd is called once with the terminal state.
	OnRunEnd(ctx context.Context, run RunInfo, state State, err error)
}

// NoopObserver is an Observer that does nothing.
type NoopObserver struct{}

func (NoopObserver) OnRunStart(context.Context, RunInfo)              {}
func (NoopObserver) OnStepStart(context.Context, RunInfo, TraceEntry) {}
func (NoopObserver) OnStepDone(context.Context, RunInfo, TraceEntry, SignalKind, error, time.Duration) {
}
func (NoopObserver) OnRunEnd(context.Context, RunInfo, State, error) {}

// CompositeObserver fans out events to multiple observers.
type CompositeObserver struct {
	observers []Observer
}

// NewCompositeObserver returns an Observer forwarding to each non-nil
// observer in obs.
func NewCompositeObserver(obs ...Observer) Observer {
	filtered := make([]Observer, 0, len(obs))
	for _, o := range obs {
		if o != nil {
			filtered = append(filtered, o)
		}
	}
	switch len(filtered) {
	case 0:
		return NoopObserver{}
	case 1:
		return filtered[0]
	}
	return &CompositeObserver{observers: filtered}
}

func (c *CompositeObserver) OnRunStart(ctx context.Context, run RunInfo) {
	for _, o := range c.observers {
		o.OnRunStart(ctx, run)
	}
}

func (c *CompositeObserver) OnStepStart(ctx context.Context, run RunInfo, e TraceEntry) {
	for _, o := range c.observers {
		o.OnStepStart(ctx, run, e)
	}
}

func (c *CompositeObserver) OnStepDone(ctx context.Context, run RunInfo, e TraceEntry, k SignalKind, err error, d time.Duration) {
	for _, o := range c.observers {
		o.OnStepDone(ctx, run, e, k, err, d)
	}
}

func (c *CompositeObserver) OnRunEnd(ctx context.Context, run RunInfo, s State, err error) {
	for _, o := range c.observers {
		o.OnRunEnd(ctx, run, s, err)
	}
}

// LoggingObserver writes structured logs using log/slog.
type LoggingObserver struct {
	Logger *slog.Logger
}

// NewLoggingObserver returns an Observer logging to l, or slog.Default() if
// l is nil.
func NewLoggingObserver(l *slog.Logger) Observer {
	if l == nil {
		l = slog.Default()
	}
	return &LoggingObserver{Logger: l}
}

func (o *LoggingObserver) OnRunStart(ctx context.Context, run RunInfo) {
	o.Logger.InfoContext(ctx, "run_start",
		slog.String("pipeline", run.Pipeline),
		slog.String("run_id", run.ID),
		slog.Bool("debug", run.Debug),
		slog.Bool("async", run.Async),
	)
}

func (o *LoggingObserver) OnStepStart(ctx context.Context, run RunInfo, e TraceEntry) {
	o.Logger.DebugContext(ctx, "step_start",
		slog.String("run_id", run.ID),
		slog.Int("step_index", e.Position),
		slog.String("step", stepLabel(e)),
		slog.Any("value", e.Value),
	)
}

func (o *LoggingObserver) OnStepDone(ctx context.Context, run RunInfo, e TraceEntry, k SignalKind, err error, d time.Duration) {
	level := slog.LevelDebug
	if err != nil {
		level = slog.LevelError
	}
	o.Logger.Log(ctx, level, "step_done",
		slog.String("run_id", run.ID),
		slog.Int("step_index", e.Position),
		slog.String("step", stepLabel(e)),
		slog.String("signal", k.String()),
		slog.Duration("duration", d),
		slog.Any("error", err),
	)
}

func (o *LoggingObserver) OnRunEnd(ctx context.Context, run RunInfo, s State, err error) {
	if err != nil {
		o.Logger.ErrorContext(ctx, "run_end",
			slog.String("pipeline", run.Pipeline),
			slog.String("run_id", run.ID),
			slog.String("state", s.String()),
			slog.Any("error", err),
		)
		return
	}
	o.Logger.InfoContext(ctx, "run_end",
		slog.String("pipeline", run.Pipeline),
		slog.String("run_id", run.ID),
		slog.String("state", s.String()),
	)
}

func stepLabel(e TraceEntry) string {
	if e.HasID {
		return e.ID.String()
	}
	return Index(e.Position).String()
}

// Metrics counts runs and steps. It implements Observer and can be combined
// with a LoggingObserver via NewCompositeObserver.
type Metrics struct {
	NoopObserver

	runsStarted   atomic.Int64
	runsCompleted atomic.Int64
	runsHalted    atomic.Int64
	runsFaulted   atomic.Int64
	steps         atomic.Int64
	jumps         atomic.Int64
	stepDuration  atomic.Int64 // nanoseconds
}

// MetricsSnapshot is a point-in-time copy of Metrics.
type MetricsSnapshot struct {
	RunsStarted   int64
	RunsCompleted int64
	RunsHalted    int64
	RunsFaulted   int64
	RunsActive    int64

	Steps           int64
	Jumps           int64
	AvgStepDuration time.Duration
}

func (m *Metrics) OnRunStart(context.Context, RunInfo) {
	m.runsStarted.Add(1)
}

func (m *Metrics) OnStepDone(_ context.Context, _ RunInfo, _ TraceEntry, k SignalKind, _ error, d time.Duration) {
	m.steps.Add(1)
	m.stepDuration.Add(d.Nanoseconds())
	if k == SignalJump {
		m.jumps.Add(1)
	}
}

func (m *Metrics) OnRunEnd(_ context.Context, _ RunInfo, s State, _ error) {
	switch s {
	case Completed:
		m.runsCompleted.Add(1)
	case Halted:
		m.runsHalted.Add(1)
	case Faulted:
		m.runsFaulted.Add(1)
	}
}

// Snapshot returns the current counters.
func (m *Metrics) Snapshot() MetricsSnapshot {
	started := m.runsStarted.Load()
	completed := m.runsCompleted.Load()
	halted := m.runsHalted.Load()
	faulted := m.runsFaulted.Load()
	steps := m.steps.Load()

	var avg time.Duration
	if steps > 0 {
		avg = time.Duration(m.stepDuration.Load() / steps)
	}
	return MetricsSnapshot{
		RunsStarted:     started,
		RunsCompleted:   completed,
		RunsHalted:      halted,
		RunsFaulted:     faulted,
		RunsActive:      started - completed - halted - faulted,
		Steps:           steps,
		Jumps:           m.jumps.Load(),
		AvgStepDuration: avg,
	}
}
