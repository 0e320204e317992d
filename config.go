package continuator

import (
	"fmt"
	"log/slog"

	"dario.cat/mergo"
)

// Config tunes a run. Zero fields take the value from DefaultConfig.
type Config struct {
	// Name labels the pipeline in logs and observer events.
	Name string
	// TraceCapacity is the initial capacity of the debug trace.
	TraceCapacity int
	// MaxTransitions stops a run after that many step invocations.
	// Zero means no limit.
	MaxTransitions int
}

// DefaultConfig returns the configuration used when none is given.
func DefaultConfig() Config {
	return Config{
		Name:          "pipeline",
		TraceCapacity: 16,
	}
}

func (c Config) validate() error {
	if c.TraceCapacity < 0 {
		return fmt.Errorf("%w: negative TraceCapacity %d", ErrInvalidConfig, c.TraceCapacity)
	}
	if c.MaxTransitions < 0 {
		return fmt.Errorf("%w: negative MaxTransitions %d", ErrInvalidConfig, c.MaxTransitions)
	}
	return nil
}

// Option configures a single run.
type Option[T any] func(*runConfig[T])

type runConfig[T any] struct {
	Config
	onHalt   func(T) T
	observer Observer
	logger   *slog.Logger
	ids      IDGenerator
	debug    bool
}

func newRunConfig[T any](opts []Option[T]) (*runConfig[T], error) {
	rc := &runConfig[T]{}
	for _, o := range opts {
		o(rc)
	}
	if err := rc.Config.validate(); err != nil {
		return nil, err
	}
	if err := mergo.Merge(&rc.Config, DefaultConfig()); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidConfig, err)
	}
	if rc.logger == nil {
		rc.logger = slog.Default()
	}
	if rc.observer == nil {
		rc.observer = NoopObserver{}
	}
	if rc.ids == nil {
		rc.ids = UUIDGenerator{}
	}
	return rc, nil
}

// OnHalt sets the function applied to a halted value before it is returned.
func OnHalt[T any](fn func(T) T) Option[T] {
	return func(rc *runConfig[T]) { rc.onHalt = fn }
}

// WithObserver sets the observer receiving run and step events.
func WithObserver[T any](o Observer) Option[T] {
	return func(rc *runConfig[T]) { rc.observer = o }
}

// WithLogger sets the logger used by the engine.
func WithLogger[T any](l *slog.Logger) Option[T] {
	return func(rc *runConfig[T]) { rc.logger = l }
}

// WithConfig sets the run configuration.
func WithConfig[T any](c Config) Option[T] {
	return func(rc *runConfig[T]) { rc.Config = c }
}

// WithIDGenerator sets the generator of run identifiers.
func WithIDGenerator[T any](g IDGenerator) Option[T] {
	return func(rc *runConfig[T]) { rc.ids = g }
}
