// Package continuator provides a sequential pipeline engine where every step
// explicitly decides where the run goes next.
// The package is generic and can be used with any value type.
//
// # Key Features
//
//   - **Explicit control flow**: a step advances, halts or jumps instead of
//     relying on loops, recursion or panics.
//   - **Two modes**: Run executes steps back-to-back in a work loop that never
//     grows the stack; RunAsync lets a step resolve later, from any goroutine.
//   - **Composition**: registries merge with a collision policy.
//   - **Debugging**: Debug records every step taken and attaches the trace to
//     the returned *Fault.
//   - **Middleware and observers**: wrap steps, log and count runs.
//
// # Core Concepts
//
//   - **Step**: the unit of work. Run receives the current value and a
//     Control; the step resolves exactly one Signal on it.
//   - **Signal**: Advance(value), Halt(value) or Jump(id). Only the first
//     resolution of an invocation counts.
//   - **StepID**: Index(n) for the step at position n, Named(s) for a step
//     registered under a name.
//   - **Registry**: the ordered steps and their names.
//
// A minimal pipeline:
//
//	r := continuator.New[int]()
//	_ = r.AddNamedStep("double", continuator.StepFunc[int](
//		func(_ context.Context, v int, ctl continuator.Control[int]) error {
//			ctl.Advance(v * 2)
//			return nil
//		}))
//	v, err := r.Run(ctx, 3)
package continuator
