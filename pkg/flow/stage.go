package flow

import "context"

// stageKind tags a blueprint node, the Go stand-in for the C++ source's
// per-stage template specialization (spec.md §9, "templates as compile-time
// tagged unions").
type stageKind int

const (
	stageCalc stageKind = iota
	stageVia
	stageAsync
	stageEnd
)

// awaitableAdapter type-erases an AccessDelegate[T] for a specific T down
// to the shape the runner's dispatch loop needs, so a single, non-generic
// dispatch function can drive async stages of any result type. The boxing
// factory is built once by the generic Await composition function; each
// dispatch of the stage wraps that run's AccessDelegate in a fresh adapter.
type awaitableAdapter interface {
	ProvideCancelHandler() (cancelFn func(CancelKind), dropFn func())
	EmplaceNextStep(next func(Result[any]))
	SubmitAsync() error
	Release()
}

type adapterImpl[T any] struct {
	delegate *AccessDelegate[T]
}

func (a *adapterImpl[T]) ProvideCancelHandler() (func(CancelKind), func()) {
	return a.delegate.ProvideCancelHandler()
}

func (a *adapterImpl[T]) EmplaceNextStep(next func(Result[any])) {
	a.delegate.EmplaceNextStep(func(r Result[T]) { next(boxAny(r)) })
}

func (a *adapterImpl[T]) SubmitAsync() error {
	return a.delegate.SubmitAsync()
}

func (a *adapterImpl[T]) Release() {
	a.delegate.Release()
}

// asyncStageDef holds the boxed factory and resume executor for one async
// stage node. factory receives the stage's boxed input and either returns a
// ready-to-drive adapter or an error (awaitable creation failure, spec.md
// §7's "Awaitable creation failure" row).
type asyncStageDef struct {
	resumeExecutor Executor
	factory        func(context.Context, Result[any]) (awaitableAdapter, error)
}

// stageNode is one entry of a Blueprint's node list, in execution order
// (unlike the C++ source's reverse-indexed NodeList — an implementation
// detail with no externally observable effect, dropped for a forward list
// that reads naturally in Go).
type stageNode struct {
	kind stageKind

	calc func(Result[any]) Result[any] // stageCalc
	via  Executor                      // stageVia
	asyn *asyncStageDef                // stageAsync
	end  func(Result[any]) Result[any] // stageEnd
}

func cloneNodes(nodes []stageNode) []stageNode {
	out := make([]stageNode, len(nodes))
	copy(out, nodes)
	return out
}

// recoverCalc wraps a calc-like closure so a panic inside user code becomes
// a *RecoveredPanic error on the result, the Go stand-in for the try/catch
// blocks around every user callable in flow_awaitable.h /
// flow_async_aggregator.h.
func recoverCalc(in Result[any], f func(Result[any]) Result[any]) (out Result[any]) {
	defer func() {
		if p := recover(); p != nil {
			out = Result[any]{err: &RecoveredPanic{Value: p}}
		}
	}()
	return f(in)
}
