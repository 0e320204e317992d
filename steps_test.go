package continuator_test

import (
	"bytes"
	"context"
	"errors"
	"log/slog"
	"strings"
	"testing"

	ct "github.com/veggiemonk/continuator"
)

func TestLogStep(t *testing.T) {
	var buf bytes.Buffer
	l := slog.New(slog.NewTextHandler(&buf, nil))

	r := ct.New(ct.Log[int](l), add(1), ct.Step[int](ct.StepFunc[int](func(_ context.Context, v int, ctl ct.Control[int]) error {
		ctl.Halt(v * 10)
		return nil
	})))
	got, err := r.Run(t.Context(), 4, ct.OnHalt(ct.LogHalt[int](l)))
	if err != nil {
		t.Fatal(err)
	}
	if got != 50 {
		t.Fatalf("got %d, want 50", got)
	}
	out := buf.String()
	for _, want := range []string{"msg=value value=4", "msg=halted value=50"} {
		if !strings.Contains(out, want) {
			t.Errorf("log output missing %q:\n%s", want, out)
		}
	}
}

func TestSelect(t *testing.T) {
	r := ct.New[string]()
	must(t, r.AddNamedStep("route", ct.Select(
		func(_ context.Context, v string) bool { return strings.HasPrefix(v, "vip") },
		ct.Named("priority"),
		ct.Named("standard"),
	)))
	must(t, r.AddNamedStep("priority", ct.StepFunc[string](func(_ context.Context, v string, ctl ct.Control[string]) error {
		ctl.Halt(v + ":priority")
		return nil
	})))
	must(t, r.AddNamedStep("standard", appendStr(":standard")))

	tests := []struct {
		seed, want string
	}{
		{"vip-1", "vip-1:priority"},
		{"guest", "guest:standard"},
	}
	for _, tt := range tests {
		got, err := r.Run(t.Context(), tt.seed)
		if err != nil {
			t.Fatal(err)
		}
		if got != tt.want {
			t.Errorf("Run(%q) = %q, want %q", tt.seed, got, tt.want)
		}
	}
}

func TestNest(t *testing.T) {
	child := ct.New[int]()
	must(t, child.AddStep(add(10)))
	must(t, child.AddStep(ct.StepFunc[int](func(_ context.Context, v int, ctl ct.Control[int]) error {
		if v > 100 {
			return errors.New("too big")
		}
		ctl.Halt(v)
		return nil
	})))
	must(t, child.AddStep(add(1000)))

	parent := ct.New(add(1), ct.Nest(child), add(1))

	got, err := parent.Run(t.Context(), 0)
	if err != nil {
		t.Fatal(err)
	}
	if got != 12 {
		t.Fatalf("got %d, want 12", got)
	}

	_, err = parent.Run(t.Context(), 100)
	if !errors.Is(err, ct.ErrStepBody) {
		t.Fatalf("got %v, want ErrStepBody", err)
	}
}
