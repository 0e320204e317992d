package continuator

import (
	"context"
	"fmt"
	"slices"
	"strings"
)

// Registry is an ordered set of steps. Every step is addressable by its
// position (Index) and, when registered with a name, by that name (Named).
//
// Registration, removal and composition belong to the construction phase of
// a pipeline. A Registry is not safe for mutation while a run is in
// progress; concurrent runs of an unchanging Registry are fine.
type Registry[T any] struct {
	steps []entry[T]
	names map[string]int
	Mid[T]
}

type entry[T any] struct {
	step Step[T]
	name string
}

// New returns a registry holding steps under their implicit indices. A nil
// step is kept in place and reported by Validate, so running the registry
// fails with ErrInvalidStepSignature.
func New[T any](steps ...Step[T]) *Registry[T] {
	r := &Registry[T]{
		steps: make([]entry[T], 0, len(steps)),
		names: make(map[string]int),
	}
	for _, s := range steps {
		r.steps = append(r.steps, entry[T]{step: s})
	}
	return r
}

// NamedStep pairs a step with the name it is registered under.
type NamedStep[T any] struct {
	Name string
	Step Step[T]
}

// NewNamed returns a registry holding steps in the given order. A step with
// an empty Name is registered under its implicit index, any other under its
// Name, with the rules of AddNamedStep.
func NewNamed[T any](steps ...NamedStep[T]) (*Registry[T], error) {
	r := New[T]()
	for i, ns := range steps {
		var err error
		if ns.Name == "" {
			err = r.AddStep(ns.Step)
		} else {
			err = r.AddNamedStep(ns.Name, ns.Step)
		}
		if err != nil {
			return nil, fmt.Errorf("step %d: %w", i, err)
		}
	}
	return r, nil
}

// Use appends middleware applied to every step when the registry runs.
func (r *Registry[T]) Use(mid ...Middleware[T]) *Registry[T] {
	r.Mid = append(r.Mid, mid...)
	return r
}

// Len returns the number of steps.
func (r *Registry[T]) Len() int { return len(r.steps) }

// AddStep appends step under the implicit identifier Index(r.Len()).
func (r *Registry[T]) AddStep(step Step[T]) error {
	return r.add("", step)
}

// AddNamedStep appends step under name. The name must be unique within the
// registry and must not look like a number.
func (r *Registry[T]) AddNamedStep(name string, step Step[T]) error {
	if name == "" {
		return fmt.Errorf("%w: empty step name", ErrInvalidStepSignature)
	}
	if _, ok := parseIndex(name); ok {
		return fmt.Errorf("%w: numeric name %q is reserved for implicit indices", ErrInvalidStepSignature, name)
	}
	return r.add(name, step)
}

// BoundStepFunc is a step that runs against a value it was registered with.
type BoundStepFunc[T, C any] func(ctx context.Context, self C, value T, ctl Control[T]) error

// AddStepWithContext appends fn bound to self under an implicit identifier.
func AddStepWithContext[T, C any](r *Registry[T], self C, fn BoundStepFunc[T, C]) error {
	if fn == nil {
		return fmt.Errorf("%w: nil step", ErrInvalidStepSignature)
	}
	return r.AddStep(bind(self, fn))
}

// AddNamedStepWithContext appends fn bound to self under name.
func AddNamedStepWithContext[T, C any](r *Registry[T], name string, self C, fn BoundStepFunc[T, C]) error {
	if fn == nil {
		return fmt.Errorf("%w: nil step", ErrInvalidStepSignature)
	}
	return r.AddNamedStep(name, bind(self, fn))
}

func bind[T, C any](self C, fn BoundStepFunc[T, C]) Step[T] {
	return StepFunc[T](func(ctx context.Context, v T, ctl Control[T]) error {
		return fn(ctx, self, v, ctl)
	})
}

func (r *Registry[T]) add(name string, step Step[T]) error {
	if step == nil {
		return fmt.Errorf("%w: nil step", ErrInvalidStepSignature)
	}
	if r.names == nil {
		r.names = make(map[string]int)
	}
	if name != "" {
		if _, exists := r.names[name]; exists {
			return fmt.Errorf("%w: %q", ErrDuplicateStepID, name)
		}
		r.names[name] = len(r.steps)
	}
	r.steps = append(r.steps, entry[T]{step: step, name: name})
	return nil
}

// Lookup returns the position mapped by id.
func (r *Registry[T]) Lookup(id StepID) (int, bool) {
	if id.IsNamed() {
		pos, ok := r.names[id.Name()]
		return pos, ok
	}
	if id.index < 0 || id.index >= len(r.steps) {
		return 0, false
	}
	return id.index, true
}

// IdentifierOf returns the identifier of the step at position: its name if
// it has one, its index otherwise.
func (r *Registry[T]) IdentifierOf(position int) (StepID, bool) {
	if position < 0 || position >= len(r.steps) {
		return StepID{}, false
	}
	if name := r.steps[position].name; name != "" {
		return Named(name), true
	}
	return Index(position), true
}

// IDs returns the identifier of every step in order.
func (r *Registry[T]) IDs() []StepID {
	ids := make([]StepID, len(r.steps))
	for i := range r.steps {
		ids[i], _ = r.IdentifierOf(i)
	}
	return ids
}

// Remove deletes the step mapped by id. The steps after it move up one
// position: their implicit indices and name mappings follow them.
func (r *Registry[T]) Remove(id StepID) error {
	pos, ok := r.Lookup(id)
	if !ok {
		return fmt.Errorf("%w: %s", ErrUnknownStepID, id)
	}
	if name := r.steps[pos].name; name != "" {
		delete(r.names, name)
	}
	r.steps = slices.Delete(r.steps, pos, pos+1)
	for name, p := range r.names {
		if p > pos {
			r.names[name] = p - 1
		}
	}
	return nil
}

// Compose merges the steps of src into r in src's order and returns r.
//
// A named step of src replaces the step r maps under the same name when
// overwrite is true. Otherwise it is appended, and the name is mapped only
// if r does not already map it. Unnamed steps are always appended under the
// new position. Existing steps of r are never reordered.
func (r *Registry[T]) Compose(src *Registry[T], overwrite bool) *Registry[T] {
	if src == nil {
		return r
	}
	if r.names == nil {
		r.names = make(map[string]int)
	}
	// Snapshot so that composing a registry with itself terminates.
	incoming := slices.Clone(src.steps)
	for _, e := range incoming {
		if e.name == "" {
			r.steps = append(r.steps, entry[T]{step: e.step})
			continue
		}
		pos, exists := r.names[e.name]
		if exists && overwrite {
			r.steps[pos].step = e.step
			continue
		}
		if exists {
			r.steps = append(r.steps, entry[T]{step: e.step})
			continue
		}
		r.names[e.name] = len(r.steps)
		r.steps = append(r.steps, entry[T]{step: e.step, name: e.name})
	}
	return r
}

func (r *Registry[T]) String() string {
	var buf strings.Builder
	buf.WriteString("Registry")
	if len(r.steps) > 0 {
		buf.WriteString(`(`)
		for i, e := range r.steps {
			if i > 0 {
				buf.WriteString(", ")
			}
			id, _ := r.IdentifierOf(i)
			buf.WriteString(id.String())
			if s, ok := e.step.(fmt.Stringer); ok {
				buf.WriteString(":")
				buf.WriteString(s.String())
			}
		}
		buf.WriteString(`)`)
	}
	return buf.String()
}
