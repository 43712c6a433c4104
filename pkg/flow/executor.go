package flow

// Task is a move-only, nothrow-invocable, type-erased unit of work
// dispatched by an Executor. Go has no small-buffer-optimized closure type,
// so Task is simply a func(); the "SBO" property described in spec.md §5 is
// an implementation concern of the C++ source with no Go equivalent
// (closures already heap-escape-analyze in the compiler) — noted as a
// deliberate simplification, not a dropped requirement, since the
// observable contract ("tasks are dispatched, not called inline in a way
// that changes ownership semantics") is preserved.
type Task func()

// Executor is the only interface the Flow core requires of a scheduling
// backend: dispatch a Task and return. Implementations must eventually run
// every dispatched Task; the library assumes no particular timing beyond
// "in finite time unless the process exits" (spec.md §6).
type Executor interface {
	Dispatch(t Task)
}

// InlineExecutor runs a Task synchronously on the calling goroutine. It
// still satisfies the "dispatch, don't call directly" contract of via/await
// stages (Runner reconstructs its continuation from inside Dispatch), but
// introduces no concurrency — useful for tests and for hot paths that don't
// need to rehome onto another goroutine.
type InlineExecutor struct{}

// Dispatch runs t immediately.
func (InlineExecutor) Dispatch(t Task) {
	t()
}

// GoExecutor dispatches every Task onto a new goroutine. Simple, unbounded;
// use executorpool.Pool for a bounded alternative.
type GoExecutor struct{}

// Dispatch runs t on a new goroutine.
func (GoExecutor) Dispatch(t Task) {
	go t()
}
