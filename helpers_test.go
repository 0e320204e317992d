package continuator_test

import (
	"context"
	"testing"

	ct "github.com/veggiemonk/continuator"
)

// advance returns a step advancing with fn(v).
func advance[T any](fn func(T) T) ct.Step[T] {
	return ct.StepFunc[T](func(_ context.Context, v T, ctl ct.Control[T]) error {
		ctl.Advance(fn(v))
		return nil
	})
}

func add(n int) ct.Step[int] {
	return advance(func(v int) int { return v + n })
}

func appendStr(s string) ct.Step[string] {
	return advance(func(v string) string { return v + s })
}

func identity[T any]() ct.Step[T] {
	return advance(func(v T) T { return v })
}

func must(t testing.TB, err error) {
	t.Helper()
	if err != nil {
		t.Fatal(err)
	}
}
