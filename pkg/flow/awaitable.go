package flow

import "sync/atomic"

// waitState is the idle/waiting/done state machine of one AwaitableBase,
// per spec.md §4.3.
type waitState int32

const (
	waitIdle waitState = iota
	waitWaiting
	waitDone
)

// Awaitable is the producer-visible contract a concrete asynchronous
// operation implements, matching spec.md §6's awaitable interface. T is the
// value type it eventually delivers.
type Awaitable[T any] interface {
	// Submit starts the async work. Returning a non-nil error is equivalent
	// to the C++ contract's nonzero return: the operation never started and
	// AwaitableBase.Resume must not be (and will not be) called for it.
	Submit() error
	// Cancel attempts to short-circuit the in-flight work. No guarantee the
	// backend actually stops; Resume may still fire with a natural result.
	Cancel()
	// Available reports whether construction of the awaitable succeeded.
	Available() bool
}

// AwaitableBase provides the retain/release/resume machinery every
// Awaitable[T] implementation embeds or otherwise holds a reference to,
// grounded on the awaitable_base described in spec.md §4.3 and
// original_source/flow/flow_awaitable.h. Intrusive in spirit: Go's GC frees
// the memory, but the refcount still exists to make "refcount closure"
// (invariant 3 in spec.md §8) an observable, testable property.
type AwaitableBase[T any] struct {
	refcount atomic.Int64
	state    atomic.Int32
	next     func(Result[T])
}

// Retain increments the refcount. Backend code calls this from Submit iff
// it is keeping a reference for later (e.g. inside a callback capture).
func (b *AwaitableBase[T]) Retain() {
	b.refcount.Add(1)
}

// Release decrements the refcount.
func (b *AwaitableBase[T]) Release() {
	b.refcount.Add(-1)
}

// Refcount reports the current refcount, for tests asserting invariant 3.
func (b *AwaitableBase[T]) Refcount() int64 {
	return b.refcount.Load()
}

// setNext installs the next-step continuation. Called once by the runner
// before submit_async; not safe to call concurrently with itself, matching
// the single-runner rule in spec.md §5.
func (b *AwaitableBase[T]) setNext(next func(Result[T])) {
	b.next = next
}

// submitAsync performs the idle→waiting CAS then calls submit. On failure
// (already submitted) it returns an error without calling submit. On a
// submit error it reverts to idle, since the diagram's "idle --submit_async
// fails--> idle" transition means the next-step was never registered from
// that path — the caller who fails a submit is expected to drive the
// pipeline down the submission-failed path itself, not to await a resume
// that will never come.
func (b *AwaitableBase[T]) submitAsync(submit func() error) error {
	if !b.state.CompareAndSwap(int32(waitIdle), int32(waitWaiting)) {
		return errAwaitableAlreadySubmitted
	}
	if err := submit(); err != nil {
		b.state.CompareAndSwap(int32(waitWaiting), int32(waitIdle))
		return err
	}
	return nil
}

// Resume atomically transitions waiting→done and invokes the next-step
// continuation exactly once. Only one of a natural completion and a cancel
// racing against it wins this CAS; the loser is a silent no-op, matching
// invariant 2 (§8) and the state diagram in §4.3. Resume is the final use
// of the awaitable by the backend: it releases the backend's retain.
func (b *AwaitableBase[T]) Resume(r Result[T]) {
	if !b.state.CompareAndSwap(int32(waitWaiting), int32(waitDone)) {
		return
	}
	next := b.next
	b.Release()
	if next != nil {
		next(r)
	}
}

var errAwaitableAlreadySubmitted = errAwaitableAlreadySubmittedErr{}

type errAwaitableAlreadySubmittedErr struct{}

func (errAwaitableAlreadySubmittedErr) Error() string {
	return "flow: awaitable already submitted"
}

// AccessDelegate is the opaque handle a Runner uses to drive an awaitable,
// per spec.md §4.3's access_delegate: emplace_nextstep, submit_async,
// provide_cancel_handler, release.
type AccessDelegate[T any] struct {
	base *AwaitableBase[T]
	aw   Awaitable[T]
}

// NewAccessDelegate pairs a concrete Awaitable[T] with the AwaitableBase[T]
// it was constructed with. Awaitable factories call this from their
// constructor and return the delegate (indirectly, via an
// AwaitableFactory[I,T] passed to Await) rather than exposing base and aw
// separately.
func NewAccessDelegate[T any](aw Awaitable[T], base *AwaitableBase[T]) *AccessDelegate[T] {
	return &AccessDelegate[T]{base: base, aw: aw}
}

// EmplaceNextStep installs the continuation the runner will call with the
// eventual Result[T].
func (d *AccessDelegate[T]) EmplaceNextStep(next func(Result[T])) {
	d.base.setNext(next)
}

// SubmitAsync performs the idle→waiting transition and calls the
// awaitable's Submit.
func (d *AccessDelegate[T]) SubmitAsync() error {
	return d.base.submitAsync(d.aw.Submit)
}

// ProvideCancelHandler exports the cancel vtable pair for the controller.
// Retains the awaitable once; the matching drop is delivered by whichever
// party (runner unlock, or Controller.Cancel) observes the terminal state
// first, per DESIGN.md's case analysis on Open Question 3.
func (d *AccessDelegate[T]) ProvideCancelHandler() (cancelFn func(CancelKind), dropFn func()) {
	d.base.Retain()
	return func(CancelKind) { d.aw.Cancel() }, d.base.Release
}

// Release drops the reference the runner itself is holding.
func (d *AccessDelegate[T]) Release() {
	d.base.Release()
}
