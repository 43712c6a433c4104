package flow

import "context"

// Runner is the full, cancellable execution cursor described in spec.md
// §4.2: a shared blueprint handle, a shared Controller, and a user
// receiver. Its Controller is created by NewRunner (or supplied through
// WithController), not lazily on first Run, and is shared across every
// continuation of a run.
//
// A Runner instance is not safe to invoke concurrently on itself (the
// single-runner rule, spec.md §5) — each Run call owns the dispatch chain
// it starts until the receiver is emplaced.
type Runner[I, O any] struct {
	bp   *Blueprint[I, O]
	ctrl *Controller
}

// NewRunner binds bp to a fresh Controller. Pass a *Controller obtained
// earlier (e.g. to call Cancel before Run, satisfying invariant 9 in
// spec.md §8) via WithController.
func NewRunner[I, O any](bp *Blueprint[I, O]) *Runner[I, O] {
	return &Runner[I, O]{bp: bp, ctrl: NewController()}
}

// WithController rebinds r to an externally-owned Controller, so a caller
// can hold the Controller before Run to pre-cancel (spec.md §8 invariant
// 9) or to cancel a long-running pipeline from another goroutine mid-flight.
func (r *Runner[I, O]) WithController(ctrl *Controller) *Runner[I, O] {
	return &Runner[I, O]{bp: r.bp, ctrl: ctrl}
}

// Controller returns the Runner's Controller, for callers that want to
// Cancel it from another goroutine.
func (r *Runner[I, O]) Controller() *Controller {
	return r.ctrl
}

// Run constructs the initial Result[I] from in and dispatches stage 0. recv
// is emplaced exactly once, whether the run ends in a value, an error, or a
// cancellation (spec.md §7's "receiver's emplace is always called exactly
// once" guarantee). ctx carries the optional logger/trace flag consumed by
// logging.go; the Flow core never derives deadlines or values from it
// beyond that, since cancellation is the Controller's job, not context's.
func (r *Runner[I, O]) Run(ctx context.Context, in I, recv Receiver[O]) {
	if len(r.bp.nodes) == 0 || r.bp.nodes[len(r.bp.nodes)-1].kind != stageEnd {
		panic("flow: blueprint has no terminal End stage")
	}
	start := boxAny(Value(in))
	finish := func(boxed Result[any]) {
		recv.Emplace(unboxAny[O](boxed))
	}
	dispatch(ctx, r.bp.nodes, 0, start, r.ctrl, finish)
}

// dispatch drives one stage of nodes starting at index i, recursing (via
// direct calls for synchronous stages, via Executor.Dispatch for via/async)
// until the end stage hands off to finish. ctrl may be nil (FastRunner):
// every cancellation check below degenerates to "never cancelled" and the
// async path skips all lock-set-handler bookkeeping, matching spec.md
// §4.7's fast variants.
func dispatch(ctx context.Context, nodes []stageNode, i int, in Result[any], ctrl *Controller, finish func(Result[any])) {
	node := nodes[i]
	logStageDispatch(ctx, node.kind, i)
	switch node.kind {
	case stageEnd:
		finish(recoverCalc(in, node.end))

	case stageCalc:
		if ctrl != nil && ctrl.IsForceCanceled() {
			jumpToEnd(ctx, nodes, ctrl, finish, CancelHard)
			return
		}
		var out Result[any]
		if ctrl != nil && ctrl.IsSoftCanceled() {
			out = Result[any]{err: NewCancelError(CancelSoft)}
		} else {
			out = recoverCalc(in, node.calc)
		}
		dispatch(ctx, nodes, i+1, out, ctrl, finish)

	case stageVia:
		if ctrl != nil && ctrl.IsForceCanceled() {
			jumpToEnd(ctx, nodes, ctrl, finish, CancelHard)
			return
		}
		out := in
		if ctrl != nil && ctrl.IsSoftCanceled() {
			out = Result[any]{err: NewCancelError(CancelSoft)}
		}
		node.via.Dispatch(func() {
			dispatch(ctx, nodes, i+1, out, ctrl, finish)
		})

	case stageAsync:
		handleAsync(ctx, nodes, i, in, ctrl, finish)
	}
}

// jumpToEnd implements the hard-cancel short-circuit shared by the calc and
// via branches: bypass every intermediate stage and run the end stage
// directly with a hard-cancel error (spec.md §5's hard cancellation
// semantics).
func jumpToEnd(ctx context.Context, nodes []stageNode, ctrl *Controller, finish func(Result[any]), kind CancelKind) {
	endIdx := len(nodes) - 1
	dispatch(ctx, nodes, endIdx, Result[any]{err: NewCancelError(kind)}, ctrl, finish)
}

// handleAsync implements the five/six-step async dispatch algorithm from
// spec.md §4.2. When ctrl is nil, steps 3-5 (lock-set-handler bookkeeping)
// degenerate away, matching the fast variant described in §4.7: the cancel
// handler is fetched and immediately dropped, and no token/unlock dance
// happens around the eventual resume.
func handleAsync(ctx context.Context, nodes []stageNode, i int, in Result[any], ctrl *Controller, finish func(Result[any])) {
	async := nodes[i].asyn

	if in.IsError() {
		dispatch(ctx, nodes, i+1, in, ctrl, finish)
		return
	}

	if ctrl != nil && ctrl.IsCanceled() {
		dispatch(ctx, nodes, i+1, Result[any]{err: NewCancelError(currentCancelKind(ctrl))}, ctrl, finish)
		return
	}

	adapter, err := func() (a awaitableAdapter, err error) {
		defer func() {
			if p := recover(); p != nil {
				a, err = nil, &RecoveredPanic{Value: p}
			}
		}()
		return async.factory(ctx, in)
	}()
	if err != nil {
		dispatch(ctx, nodes, i+1, Result[any]{err: err}, ctrl, finish)
		return
	}

	cancelFn, dropFn := adapter.ProvideCancelHandler()

	var token uint64
	if ctrl != nil {
		var locked bool
		token, locked = ctrl.lockAndSetCancelHandler(cancelFn, dropFn)
		if !locked {
			// dropFn is the one Release matching ProvideCancelHandler's one
			// Retain; adapter.Release() here would be a second, unmatched
			// Release (invariant 3, spec.md §8).
			dropFn()
			dispatch(ctx, nodes, i+1, Result[any]{err: NewCancelError(currentCancelKind(ctrl))}, ctrl, finish)
			return
		}
		logControllerTransition(ctx, "lock", currentCancelKind(ctrl))
	} else {
		dropFn()
	}

	adapter.EmplaceNextStep(func(res Result[any]) {
		async.resumeExecutor.Dispatch(func() {
			if ctrl != nil {
				ctrl.unlock(token)
				logControllerTransition(ctx, "unlock", currentCancelKind(ctrl))
			}
			dispatch(ctx, nodes, i+1, res, ctrl, finish)
		})
	})

	if err := adapter.SubmitAsync(); err != nil {
		// The ProvideCancelHandler retain is already matched: for a real
		// Controller, resetCancelHandlerWhenLocked fires the stored dropFn;
		// for ctrl == nil, dropFn already ran above. An adapter.Release()
		// here would double-release (invariant 3, spec.md §8).
		if ctrl != nil {
			ctrl.resetCancelHandlerWhenLocked()
			ctrl.unlock(token)
		}
		dispatch(ctx, nodes, i+1, Result[any]{err: NewAsyncSubmissionFailedError()}, ctrl, finish)
		return
	}
}

func currentCancelKind(ctrl *Controller) CancelKind {
	if ctrl.IsForceCanceled() {
		return CancelHard
	}
	return CancelSoft
}
