package flow

import "context"

// FastRunner is the one-shot, no-controller execution cursor described in
// spec.md §4.7: used for leaf sub-pipelines inside aggregators and for hot
// paths that never need cancellation. It shares its dispatch loop with
// Runner (dispatch/handleAsync both treat a nil *Controller as "never
// cancelled, skip all lock-set-handler bookkeeping"), so a FastRunner pays
// no lock/CAS cost on its async stages.
type FastRunner[I, O any] struct {
	bp *Blueprint[I, O]
}

// NewFastRunner binds bp to a FastRunner.
func NewFastRunner[I, O any](bp *Blueprint[I, O]) *FastRunner[I, O] {
	return &FastRunner[I, O]{bp: bp}
}

// Run constructs the initial Result[I] from in and dispatches stage 0,
// with no Controller in play.
func (r *FastRunner[I, O]) Run(ctx context.Context, in I, recv Receiver[O]) {
	if len(r.bp.nodes) == 0 || r.bp.nodes[len(r.bp.nodes)-1].kind != stageEnd {
		panic("flow: blueprint has no terminal End stage")
	}
	start := boxAny(Value(in))
	finish := func(boxed Result[any]) {
		recv.Emplace(unboxAny[O](boxed))
	}
	dispatch(ctx, r.bp.nodes, 0, start, nil, finish)
}
