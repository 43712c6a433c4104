package flow

import (
	"sync"
	"sync/atomic"
)

// Low two bits of Controller.state, per spec.md §4.4: 00=none, 01=hard,
// 10=soft, 11=locked. The remaining bits are a monotonically increasing
// epoch, bumped by unlock/reset, used to hand out stale-detection tokens
// to the lock holder.
const (
	stNone   uint64 = 0
	stHard   uint64 = 1
	stSoft   uint64 = 2
	stLocked uint64 = 3
	stMask   uint64 = 3
	stEpoch  uint64 = 4
)

func stubCancelFn(CancelKind) {}
func stubDropFn()             {}

// Controller is the per-run cancellation handle described in spec.md §4.4.
// NewRunner creates one when the Runner is built (not lazily on the first
// Run), and it is shared across every continuation of a run.
//
// The state word (kind + epoch) is a lock-free atomic, read by
// IsCanceled/IsSoftCanceled/IsForceCanceled without ever touching the
// handler triple. The cancel/drop handler pair is guarded by a short
// mutex-held critical section instead of the original's hand-rolled
// seqlock; spec.md §9 explicitly allows substituting the lock-set-handler
// mechanism for "an atomic pointer to an immutable handler record
// (RCU-style)" — a mutex-guarded pair is the same trade (protect a rarely-
// contended side table, keep the hot-path state reads lock-free) expressed
// with a simpler, easier-to-prove-correct primitive. See DESIGN.md Open
// Question 3 for the case analysis on why no path double-drops or leaks.
type Controller struct {
	state    atomic.Uint64
	mu       sync.Mutex
	cancelFn func(CancelKind)
	dropFn   func()
}

// NewController returns a fresh, uncancelled Controller.
func NewController() *Controller {
	return &Controller{cancelFn: stubCancelFn, dropFn: stubDropFn}
}

// lockAndSetCancelHandler installs the current async stage's cancel vtable
// and returns a token the caller must later pass to unlock, plus ok=false
// if the controller was already cancelled — in which case nothing was
// installed and the runner should take the already-cancelled path.
func (c *Controller) lockAndSetCancelHandler(cancelFn func(CancelKind), dropFn func()) (token uint64, ok bool) {
	bo := newBackoffSpin()
	for {
		exp := c.state.Load()
		if exp&stMask != stNone {
			return exp, false
		}
		if c.state.CompareAndSwap(exp, exp|stLocked) {
			c.mu.Lock()
			c.cancelFn, c.dropFn = cancelFn, dropFn
			c.mu.Unlock()
			return exp | stLocked, true
		}
		bo.wait()
	}
}

// resetCancelHandlerWhenLocked clears the handler triple and notifies the
// current holder (if any) that its handler was dropped. Idempotent: calling
// it after a concurrent Cancel already cleared the triple just invokes the
// stub drop function, a harmless no-op.
func (c *Controller) resetCancelHandlerWhenLocked() {
	c.mu.Lock()
	drop := c.dropFn
	c.cancelFn, c.dropFn = stubCancelFn, stubDropFn
	c.mu.Unlock()
	drop()
}

// unlock transitions the controller out of the locked state, bumping the
// epoch. A no-op if state has already moved on (a concurrent Cancel won the
// race and transitioned state directly from locked to cancelled). token
// always has its low two bits set to stLocked (0b11); adding 1 carries out
// of those bits, clearing them back to stNone while bumping the epoch —
// the same carry trick as original_source/flow/flow_runner.h's unlock.
func (c *Controller) unlock(token uint64) {
	c.state.CompareAndSwap(token, token+1)
}

// resetCancelHandler is the equivalent of the C++ destructor path: drain
// the handler unconditionally so no stale cancel fires after the run ends.
// Safe to call even if no handler was ever installed (the stub is a no-op).
func (c *Controller) resetCancelHandler() {
	c.resetCancelHandlerWhenLocked()
}

// Cancel requests cancellation. force=false requests a soft (cooperative)
// cancel; force=true requests a hard (forced) cancel. A no-op if the
// controller is already cancelled. Safe to call concurrently from any
// goroutine, including concurrently with the owning Runner's dispatch.
func (c *Controller) Cancel(force bool) {
	kind := CancelSoft
	bits := stSoft
	if force {
		kind = CancelHard
		bits = stHard
	}
	bo := newBackoffSpin()
	for {
		exp := c.state.Load()
		cur := exp & stMask
		if cur == stHard || cur == stSoft {
			return
		}
		target := (exp &^ stMask) | bits
		if !c.state.CompareAndSwap(exp, target) {
			bo.wait()
			continue
		}
		c.mu.Lock()
		cancelFn, dropFn := c.cancelFn, c.dropFn
		c.cancelFn, c.dropFn = stubCancelFn, stubDropFn
		c.mu.Unlock()
		cancelFn(kind)
		dropFn()
		return
	}
}

// IsForceCanceled reports whether a hard cancel has been requested.
func (c *Controller) IsForceCanceled() bool {
	return c.state.Load()&stMask == stHard
}

// IsSoftCanceled reports whether a soft cancel has been requested.
func (c *Controller) IsSoftCanceled() bool {
	return c.state.Load()&stMask == stSoft
}

// IsCanceled reports whether any cancellation has been requested.
func (c *Controller) IsCanceled() bool {
	m := c.state.Load() & stMask
	return m == stSoft || m == stHard
}
