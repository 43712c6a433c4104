package flow

import (
	"context"
	"sync/atomic"
)

// whenAnyState mirrors whenAllState (see flow_async_aggregator.h's
// flow_when_any_state), except it resolves as soon as any child produces a
// value and tracks a winnerIndex instead of a failedIndex.
type whenAnyState[C any] struct {
	ctx  context.Context
	base *AwaitableBase[C]

	children []*Blueprint[C, C]
	inputs   []C
	resumeEx Executor
	cancel   bool

	results     []Result[C]
	fired       atomic.Uint64
	winnerIndex atomic.Int64
	ctrls       []*Controller
}

func newWhenAnyState[C any](ctx context.Context, children []*Blueprint[C, C], inputs []C, resumeEx Executor, cancellable bool) *whenAnyState[C] {
	n := len(children)
	s := &whenAnyState[C]{
		ctx:      ctx,
		base:     &AwaitableBase[C]{},
		children: children,
		inputs:   inputs,
		resumeEx: resumeEx,
		cancel:   cancellable,
		results:  make([]Result[C], n),
		ctrls:    make([]*Controller, n),
	}
	s.winnerIndex.Store(int64(n))
	return s
}

func (s *whenAnyState[C]) Available() bool { return true }

// Submit launches child pipelines in order, stopping early the moment a
// winner is elected mid-launch (spec.md §4.6). If a nil child is hit
// mid-loop, the children launched so far are cancelled and
// launch_failed_bit is set so Cancel knows there is nothing left to cancel.
func (s *whenAnyState[C]) Submit() error {
	n := len(s.children)
	for i := 0; i < n; i++ {
		if s.children[i] == nil {
			s.orFired(aggLaunchFailedBit)
			s.cancelLaunched(i)
			return NewAsyncSubmissionFailedError()
		}
		s.fired.Add(aggCountUnit)
		s.launchChild(i)
		if s.winnerIndex.Load() != int64(n) {
			break
		}
	}
	pre := s.orFired(aggLaunchMarkedBit)
	if pre == 0 {
		s.resolve()
	}
	return nil
}

// cancelLaunched cancels the controllers of children [0, upTo) — the ones
// already launched when a later child's launch step failed.
func (s *whenAnyState[C]) cancelLaunched(upTo int) {
	for i := 0; i < upTo; i++ {
		if c := s.ctrls[i]; c != nil {
			c.Cancel(true)
		}
	}
}

func (s *whenAnyState[C]) launchChild(idx int) {
	recv := ReceiverFunc[C](func(r Result[C]) { s.emplace(idx, r) })
	if s.cancel {
		ctrl := NewController()
		s.ctrls[idx] = ctrl
		runner := &Runner[C, C]{bp: s.children[idx], ctrl: ctrl}
		runner.Run(s.ctx, s.inputs[idx], recv)
	} else {
		runner := NewFastRunner[C, C](s.children[idx])
		runner.Run(s.ctx, s.inputs[idx], recv)
	}
}

func (s *whenAnyState[C]) emplace(idx int, r Result[C]) {
	s.results[idx] = r
	n := int64(len(s.children))
	if r.IsValue() {
		if s.winnerIndex.CompareAndSwap(n, int64(idx)) {
			s.resolve()
			if s.cancel {
				s.cancelOthers(idx)
			}
		}
	}
	pre := s.subFired(aggCountUnit)
	if pre == (aggLaunchMarkedBit | aggCountUnit) {
		s.resolve()
	}
}

func (s *whenAnyState[C]) cancelOthers(except int) {
	for i, c := range s.ctrls {
		if i != except && c != nil {
			c.Cancel(true)
		}
	}
}

func (s *whenAnyState[C]) resolve() {
	idx := s.winnerIndex.Load()
	if int(idx) != len(s.children) {
		logAggregatorResolution(s.ctx, "when_any", "success")
		s.base.Resume(s.results[idx])
		return
	}
	logAggregatorResolution(s.ctx, "when_any", "all_failed")
	s.base.Resume(Err[C](ErrAllFailed))
}

// Cancel cancels every launched child controller, unless Submit's launch
// loop already failed mid-way and cancelled them itself.
func (s *whenAnyState[C]) Cancel() {
	if !s.cancel {
		return
	}
	if s.fired.Load()&aggLaunchFailedBit != 0 {
		return
	}
	for _, c := range s.ctrls {
		if c != nil {
			c.Cancel(true)
		}
	}
}

func (s *whenAnyState[C]) orFired(bits uint64) uint64 {
	for {
		old := s.fired.Load()
		if old&bits == bits {
			return old
		}
		if s.fired.CompareAndSwap(old, old|bits) {
			return old
		}
	}
}

func (s *whenAnyState[C]) subFired(delta uint64) uint64 {
	for {
		old := s.fired.Load()
		if s.fired.CompareAndSwap(old, old-delta) {
			return old
		}
	}
}

// WhenAny appends an await_when_any(ex, f_ok, f_err, bp1...bpN) stage
// (spec.md §4.1/§4.6): the first child to produce a value wins; if none
// does, fErr maps the all-failed error.
func WhenAny[I, M, C, O any](bp *Blueprint[I, M], resumeEx Executor, children []*Blueprint[C, C], extract func(M) []C, cancellable bool, fOk func(C) O, fErr func(error) O) *Blueprint[I, O] {
	bp.checkNotFrozen()
	factory := func(ctx context.Context, m M) (Awaitable[C], *AwaitableBase[C], error) {
		inputs := extract(m)
		if len(inputs) != len(children) {
			return nil, nil, NewAwaitableCreationError()
		}
		state := newWhenAnyState[C](ctx, children, inputs, resumeEx, cancellable)
		return state, state.base, nil
	}
	joined := Await[I, M, C](bp, resumeEx, factory)
	return Then[I, C, O](joined, func(r Result[C]) Result[O] {
		if r.IsError() {
			return Value(fErr(r.Error()))
		}
		return Value(fOk(r.Get()))
	})
}
