package flow

import (
	"context"
	"sync/atomic"
)

// Aggregator fired-word layout, per spec.md §9's "Aggregator state word"
// note: fired = count<<2 | launch_marked_bit | launch_failed_bit.
const (
	aggLaunchMarkedBit uint64 = 1
	aggLaunchFailedBit uint64 = 2
	aggCountUnit       uint64 = 4
)

// whenAllState is the when_all aggregator's shared state block, grounded on
// flow_async_aggregator.h's flow_when_all_state / flow_when_all_awaitable.
// It is itself an Awaitable[[]C]: WhenAll wires it into a Blueprint via
// Await, then maps the delivered []C (or error) into the caller's O with an
// ordinary Then stage. C is a single child type — the Go translation of the
// source's heterogeneous T1...Tn is a homogeneous slice, since Go has no
// practical way to express a heterogeneous variadic tuple without codegen.
type whenAllState[C any] struct {
	ctx  context.Context
	base *AwaitableBase[[]C]

	children []*Blueprint[C, C]
	inputs   []C
	resumeEx Executor
	cancel   bool

	results     []Result[C]
	fired       atomic.Uint64
	failedIndex atomic.Int64
	ctrls       []*Controller
}

func newWhenAllState[C any](ctx context.Context, children []*Blueprint[C, C], inputs []C, resumeEx Executor, cancellable bool) *whenAllState[C] {
	n := len(children)
	s := &whenAllState[C]{
		ctx:      ctx,
		base:     &AwaitableBase[[]C]{},
		children: children,
		inputs:   inputs,
		resumeEx: resumeEx,
		cancel:   cancellable,
		results:  make([]Result[C], n),
		ctrls:    make([]*Controller, n),
	}
	s.failedIndex.Store(int64(n))
	for i := range s.results {
		s.results[i] = Err[C](ErrAllFailed)
	}
	return s
}

func (s *whenAllState[C]) Available() bool { return true }

// Submit launches every child pipeline in order, per spec.md §4.5's submit
// algorithm. If a nil child is hit mid-loop, the children launched so far
// are cancelled and launch_failed_bit is set so a later Cancel knows there
// is nothing left to cancel.
func (s *whenAllState[C]) Submit() error {
	n := len(s.children)
	for i := 0; i < n; i++ {
		if s.children[i] == nil {
			s.orFired(aggLaunchFailedBit)
			s.cancelLaunched(i)
			return NewAsyncSubmissionFailedError()
		}
		s.fired.Add(aggCountUnit)
		s.launchChild(i)
	}
	pre := s.orFired(aggLaunchMarkedBit)
	if pre == 0 {
		s.resolve()
	}
	return nil
}

// cancelLaunched cancels the controllers of children [0, upTo) — the ones
// already launched when a later child's launch step failed.
func (s *whenAllState[C]) cancelLaunched(upTo int) {
	for i := 0; i < upTo; i++ {
		if c := s.ctrls[i]; c != nil {
			c.Cancel(true)
		}
	}
}

func (s *whenAllState[C]) launchChild(idx int) {
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

func (s *whenAllState[C]) emplace(idx int, r Result[C]) {
	s.results[idx] = r
	if r.IsError() {
		if s.cancel {
			s.cancelOthers(idx)
		}
		s.failedIndex.CompareAndSwap(int64(len(s.children)), int64(idx))
	}
	pre := s.subFired(aggCountUnit)
	if pre == (aggLaunchMarkedBit | aggCountUnit) {
		s.resolve()
	}
}

func (s *whenAllState[C]) cancelOthers(except int) {
	for i, c := range s.ctrls {
		if i != except && c != nil {
			c.Cancel(true)
		}
	}
}

func (s *whenAllState[C]) resolve() {
	idx := s.failedIndex.Load()
	if int(idx) == len(s.children) {
		out := make([]C, len(s.results))
		for i, r := range s.results {
			out[i] = r.Get()
		}
		logAggregatorResolution(s.ctx, "when_all", "success")
		s.base.Resume(Value(out))
		return
	}
	logAggregatorResolution(s.ctx, "when_all", "any_failed")
	s.base.Resume(Err[[]C](NewAnyFailedError(int(idx))))
}

// Cancel cancels every launched child controller, unless Submit's launch
// loop already failed mid-way and cancelled them itself (spec.md §4.5's
// cancel row).
func (s *whenAllState[C]) Cancel() {
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

// orFired ORs bits into fired and returns the pre-OR value, since
// atomic.Uint64 has no built-in bitwise Or.
func (s *whenAllState[C]) orFired(bits uint64) uint64 {
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

// subFired subtracts delta from fired and returns the pre-subtract value.
func (s *whenAllState[C]) subFired(delta uint64) uint64 {
	for {
		old := s.fired.Load()
		if s.fired.CompareAndSwap(old, old-delta) {
			return old
		}
	}
}

// WhenAll appends an await_when_all(ex, f_ok, f_err, bp1...bpN) stage
// (spec.md §4.1/§4.5): extract pulls the N child inputs out of the current
// value M, children runs them in parallel (cancellable full Runners when
// cancellable is true, FastRunners otherwise), and fOk/fErr join the
// aggregate into O.
func WhenAll[I, M, C, O any](bp *Blueprint[I, M], resumeEx Executor, children []*Blueprint[C, C], extract func(M) []C, cancellable bool, fOk func([]C) O, fErr func(error) O) *Blueprint[I, O] {
	bp.checkNotFrozen()
	factory := func(ctx context.Context, m M) (Awaitable[[]C], *AwaitableBase[[]C], error) {
		inputs := extract(m)
		if len(inputs) != len(children) {
			return nil, nil, NewAwaitableCreationError()
		}
		state := newWhenAllState[C](ctx, children, inputs, resumeEx, cancellable)
		return state, state.base, nil
	}
	joined := Await[I, M, []C](bp, resumeEx, factory)
	return Then[I, []C, O](joined, func(r Result[[]C]) Result[O] {
		if r.IsError() {
			return Value(fErr(r.Error()))
		}
		return Value(fOk(r.Get()))
	})
}
