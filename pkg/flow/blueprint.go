package flow

import (
	"context"
	"fmt"
)

// Blueprint is a compile-time-typed, immutable sequence of stages from
// input type I to output type O (spec.md §3's Blueprint<I,O,...>). Every
// composition function below returns a *new* Blueprint; the receiver is
// left untouched, matching "immutable after construction; move-only" — Go
// values are copied rather than moved, which trivially satisfies the
// nothrow-move-construct requirement the C++ source works hard for.
type Blueprint[I, O any] struct {
	nodes  []stageNode
	frozen bool
}

// New starts a blueprint with input/output type I and no stages yet.
func New[I any]() *Blueprint[I, I] {
	return &Blueprint[I, I]{}
}

func (bp *Blueprint[I, O]) checkNotFrozen() {
	if bp.frozen {
		panic("flow: blueprint already terminated by End; no further composition allowed")
	}
}

// lastKind returns the kind of the last appended node, or -1 if bp has no
// nodes yet.
func (bp *Blueprint[I, O]) lastKind() stageKind {
	if len(bp.nodes) == 0 {
		return -1
	}
	return bp.nodes[len(bp.nodes)-1].kind
}

// Transform appends a transform(f) stage: Ti -> To on the value side,
// errors pass through untouched. Spec.md §4.1's transform row. Adjacent
// Transform/Then calc stages fuse into a single closure at composition
// time, a non-semantic optimization per spec.md §9's MAX_ZIP_N note — not
// required to match any particular fusion depth.
func Transform[I, M, O any](bp *Blueprint[I, M], f func(M) O) *Blueprint[I, O] {
	bp.checkNotFrozen()
	calc := func(r Result[any]) Result[any] {
		in := unboxAny[M](r)
		if in.IsError() {
			return r
		}
		return boxAny(Value(f(in.Get())))
	}
	return &Blueprint[I, O]{nodes: appendCalcNodes(bp.nodes, calc)}
}

// Then appends a then(f) stage: the full Result[M] is visible to f,
// including the error side, so f may recover or transform errors into
// values. Spec.md §4.1's then row.
func Then[I, M, O any](bp *Blueprint[I, M], f func(Result[M]) Result[O]) *Blueprint[I, O] {
	bp.checkNotFrozen()
	calc := func(r Result[any]) Result[any] {
		return boxAny(f(unboxAny[M](r)))
	}
	return &Blueprint[I, O]{nodes: appendCalcNodes(bp.nodes, calc)}
}

// OnError appends an on_error(f) stage: values pass through unchanged,
// errors are handed to f which may recover into a value or produce a
// (possibly different) error. Spec.md §4.1's on_error row.
func OnError[I, M any](bp *Blueprint[I, M], f func(error) Result[M]) *Blueprint[I, M] {
	bp.checkNotFrozen()
	calc := func(r Result[any]) Result[any] {
		in := unboxAny[M](r)
		if in.IsValue() {
			return r
		}
		return boxAny(f(in.Error()))
	}
	return &Blueprint[I, M]{nodes: appendCalcNodes(bp.nodes, calc)}
}

// CatchException appends a catch_exception[Ex](f) stage: only recovers
// errors that are a *RecoveredPanic carrying a value assignable to Ex,
// matching by type the way the C++ source's catch_exception<Ex> matches a
// thrown exception's dynamic type. Any other error passes through.
func CatchException[I, M, Ex any](bp *Blueprint[I, M], f func(Ex) M) *Blueprint[I, M] {
	bp.checkNotFrozen()
	calc := func(r Result[any]) Result[any] {
		in := unboxAny[M](r)
		if in.IsValue() {
			return r
		}
		var rp *RecoveredPanic
		if !asRecoveredPanic(in.Error(), &rp) {
			return r
		}
		ex, ok := rp.Value.(Ex)
		if !ok {
			return r
		}
		return boxAny(Value(f(ex)))
	}
	return &Blueprint[I, M]{nodes: appendCalcNodes(bp.nodes, calc)}
}

func asRecoveredPanic(err error, target **RecoveredPanic) bool {
	rp, ok := err.(*RecoveredPanic)
	if ok {
		*target = rp
	}
	return ok
}

// appendCalcNodes fuses onto a trailing calc node when possible, else
// appends a new one. The earlier closure runs under recoverCalc, so a panic
// in it reaches the later closure as a *RecoveredPanic error, exactly as if
// the two were separate nodes; the runner's dispatch loop recovers around
// the composed closure as a whole.
func appendCalcNodes(nodes []stageNode, calc func(Result[any]) Result[any]) []stageNode {
	out := cloneNodes(nodes)
	if n := len(out); n > 0 && out[n-1].kind == stageCalc {
		prev := out[n-1].calc
		out[n-1].calc = func(r Result[any]) Result[any] {
			return calc(recoverCalc(r, prev))
		}
		return out
	}
	return append(out, stageNode{kind: stageCalc, calc: calc})
}

// Via appends a via(ex) stage: subsequent stages dispatch through ex.
// via|via replaces the executor (the later one wins); calc|via and via|calc
// are both legal. Spec.md §4.1.
func Via[I, M any](bp *Blueprint[I, M], ex Executor) *Blueprint[I, M] {
	bp.checkNotFrozen()
	if bp.lastKind() == stageAsync {
		panic("flow: via after async is rejected (async implies resume via its own executor)")
	}
	nodes := cloneNodes(bp.nodes)
	if n := len(nodes); n > 0 && nodes[n-1].kind == stageVia {
		nodes[n-1].via = ex
	} else {
		nodes = append(nodes, stageNode{kind: stageVia, via: ex})
	}
	return &Blueprint[I, M]{nodes: nodes}
}

// Await appends an await(awaitable, resume_executor) stage: suspend,
// construct the awaitable via factory from the current value, let it
// complete asynchronously, resume on resumeEx. Spec.md §4.1's await row.
//
// factory returns the concrete Awaitable[T] paired with the AwaitableBase[T]
// it was constructed with (see AccessDelegate). Returning a non-nil error
// models awaitable creation failure (allocation or an availability check);
// the pipeline passes that error unchanged to the next stage at dispatch
// time. A nil awaitable or base, or one whose Available reports false,
// surfaces as NewAwaitableCreationError instead.
func Await[I, M, T any](bp *Blueprint[I, M], resumeEx Executor, factory func(context.Context, M) (Awaitable[T], *AwaitableBase[T], error)) *Blueprint[I, T] {
	bp.checkNotFrozen()
	boxedFactory := func(ctx context.Context, r Result[any]) (awaitableAdapter, error) {
		in := unboxAny[M](r)
		aw, base, err := factory(ctx, in.Get())
		if err != nil {
			return nil, err
		}
		if aw == nil || base == nil || !aw.Available() {
			return nil, NewAwaitableCreationError()
		}
		delegate := NewAccessDelegate[T](aw, base)
		return &adapterImpl[T]{delegate: delegate}, nil
	}
	nodes := append(cloneNodes(bp.nodes), stageNode{
		kind: stageAsync,
		asyn: &asyncStageDef{resumeExecutor: resumeEx, factory: boxedFactory},
	})
	return &Blueprint[I, T]{nodes: nodes}
}

// End closes the blueprint: the end callable runs on the running value (a
// Result[O]) and its return is handed to the receiver. f is typically
// identity (End(bp, func(o O) O { return o })); End0 is a convenience for
// that common case. Spec.md §4.1's end row; "end|anything" is rejected by
// the frozen flag End sets (any further composition panics), and
// "anything|end unless identity-shaped" is enforced by the generic
// signature itself: O must already equal the blueprint's current output.
func End[I, O any](bp *Blueprint[I, O], f func(O) O) *Blueprint[I, O] {
	bp.checkNotFrozen()
	end := func(r Result[any]) Result[any] {
		in := unboxAny[O](r)
		if in.IsError() {
			return r
		}
		return boxAny(Value(f(in.Get())))
	}
	nodes := append(cloneNodes(bp.nodes), stageNode{kind: stageEnd, end: end})
	return &Blueprint[I, O]{nodes: nodes, frozen: true}
}

// End0 is End with the identity end callable — the common case of
// `end()` in spec.md's table.
func End0[I, O any](bp *Blueprint[I, O]) *Blueprint[I, O] {
	return End(bp, func(o O) O { return o })
}

func (bp *Blueprint[I, O]) String() string {
	return fmt.Sprintf("Blueprint[%d stages, frozen=%v]", len(bp.nodes), bp.frozen)
}
