package continuator_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	ct "github.com/veggiemonk/continuator"
)

// recordingObserver keeps the order of callbacks.
type recordingObserver struct {
	mu     sync.Mutex
	events []string
	states []ct.State
}

func (o *recordingObserver) add(e string) {
	o.mu.Lock()
	defer o.mu.Unlock()
	o.events = append(o.events, e)
}

func (o *recordingObserver) OnRunStart(_ context.Context, run ct.RunInfo) {
	o.add("start:" + run.Pipeline)
}

func (o *recordingObserver) OnStepStart(_ context.Context, _ ct.RunInfo, e ct.TraceEntry) {
	o.add("step:" + e.ID.String())
}

func (o *recordingObserver) OnStepDone(_ context.Context, _ ct.RunInfo, e ct.TraceEntry, k ct.SignalKind, _ error, _ time.Duration) {
	o.add("done:" + k.String())
}

func (o *recordingObserver) OnRunEnd(_ context.Context, _ ct.RunInfo, s ct.State, _ error) {
	o.add("end:" + s.String())
	o.mu.Lock()
	o.states = append(o.states, s)
	o.mu.Unlock()
}

func TestObserverEvents(t *testing.T) {
	r := ct.New[int]()
	must(t, r.AddNamedStep("a", add(1)))
	must(t, r.AddStep(ct.StepFunc[int](func(_ context.Context, v int, ctl ct.Control[int]) error {
		ctl.Halt(v)
		return nil
	})))

	obs := &recordingObserver{}
	_, err := r.Run(t.Context(), 0,
		ct.WithObserver[int](obs),
		ct.WithConfig[int](ct.Config{Name: "orders"}),
	)
	if err != nil {
		t.Fatal(err)
	}
	want := []string{
		"start:orders",
		`step:"a"`, "done:advance",
		"step:#1", "done:halt",
		"end:halted",
	}
	if diff := cmp.Diff(want, obs.events); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestObserverDefaultPipelineName(t *testing.T) {
	obs := &recordingObserver{}
	if _, err := ct.New[int]().Run(t.Context(), 0, ct.WithObserver[int](obs)); err != nil {
		t.Fatal(err)
	}
	want := []string{"start:pipeline", "end:completed"}
	if diff := cmp.Diff(want, obs.events); diff != "" {
		t.Fatalf("events mismatch (-want +got):\n%s", diff)
	}
}

func TestMetrics(t *testing.T) {
	r := ct.New[int]()
	must(t, r.AddNamedStep("route", ct.StepFunc[int](func(_ context.Context, v int, ctl ct.Control[int]) error {
		switch {
		case v < 0:
			return errors.New("negative")
		case v == 0:
			ctl.Halt(v)
		case v > 10:
			ctl.Jump(ct.Named("end"))
		default:
			ctl.Advance(v)
		}
		return nil
	})))
	must(t, r.AddStep(add(1)))
	must(t, r.AddNamedStep("end", identity[int]()))

	m := &ct.Metrics{}
	for _, seed := range []int{-1, 0, 5, 20} {
		_, _ = r.Run(t.Context(), seed, ct.WithObserver[int](m))
	}

	want := ct.MetricsSnapshot{
		RunsStarted:   4,
		RunsCompleted: 2,
		RunsHalted:    1,
		RunsFaulted:   1,
		RunsActive:    0,
		Steps:         1 + 1 + 3 + 2,
		Jumps:         1,
	}
	got := m.Snapshot()
	got.AvgStepDuration = 0
	if diff := cmp.Diff(want, got); diff != "" {
		t.Fatalf("snapshot mismatch (-want +got):\n%s", diff)
	}
}

func TestLoggingObserver(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, &slog.HandlerOptions{Level: slog.LevelDebug}))

	r := ct.New(add(1), ct.Step[int](ct.StepFunc[int](func(context.Context, int, ct.Control[int]) error {
		return errors.New("broken")
	})))
	_, err := r.Debug(t.Context(), 0,
		ct.WithObserver[int](ct.NewLoggingObserver(l)),
		ct.WithLogger[int](l),
		ct.WithIDGenerator[int](&ct.StaticID{}),
	)
	if err == nil {
		t.Fatal("expected an error")
	}

	out := buf.String()
	for _, want := range []string{
		"msg=debug_enabled",
		"msg=run_start",
		"msg=step_start",
		"msg=step_done",
		"level=ERROR msg=step_done",
		"msg=run_end",
		"state=faulted",
		"run_id=run-1",
	} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestCompositeObserver(t *testing.T) {
	if _, ok := ct.NewCompositeObserver().(ct.NoopObserver); !ok {
		t.Error("empty composite should be a NoopObserver")
	}
	single := &recordingObserver{}
	if got := ct.NewCompositeObserver(nil, single); got != ct.Observer(single) {
		t.Error("single observer should be returned as is")
	}

	a, b := &recordingObserver{}, &recordingObserver{}
	obs := ct.NewCompositeObserver(a, nil, b)
	if _, err := ct.New(add(1)).Run(t.Context(), 0, ct.WithObserver[int](obs)); err != nil {
		t.Fatal(err)
	}
	if diff := cmp.Diff(a.events, b.events); diff != "" || len(a.events) != 4 {
		t.Fatalf("observers diverged (-a +b):\n%s", diff)
	}
}

func TestStateString(t *testing.T) {
	for s, want := range map[ct.State]string{
		ct.Running:   "running",
		ct.Halted:    "halted",
		ct.Completed: "completed",
		ct.Faulted:   "faulted",
		ct.State(99): "unknown",
	} {
		if s.String() != want {
			t.Errorf("State(%d).String() = %q, want %q", s, s.String(), want)
		}
	}
}
