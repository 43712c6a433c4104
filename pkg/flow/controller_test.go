package flow

import (
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func TestController_InitiallyUncancelled(t *testing.T) {
	c := NewController()
	assert.False(t, c.IsCanceled())
	assert.False(t, c.IsSoftCanceled())
	assert.False(t, c.IsForceCanceled())
}

func TestController_SoftThenHardIsNoOp(t *testing.T) {
	c := NewController()
	c.Cancel(false)
	assert.True(t, c.IsSoftCanceled())
	c.Cancel(true)
	assert.True(t, c.IsSoftCanceled(), "a second cancel call must not overwrite an existing cancellation")
	assert.False(t, c.IsForceCanceled())
}

func TestController_CancelInvokesHandlerWhenLocked(t *testing.T) {
	c := NewController()
	var gotKind CancelKind
	var dropped bool
	token, ok := c.lockAndSetCancelHandler(func(k CancelKind) { gotKind = k }, func() { dropped = true })
	assert.True(t, ok)

	c.Cancel(true)

	assert.Equal(t, CancelHard, gotKind)
	assert.True(t, dropped)
	assert.True(t, c.IsForceCanceled())

	// unlock with the stale token must be a no-op: state already moved past locked.
	c.unlock(token)
	assert.True(t, c.IsForceCanceled())
}

func TestController_LockFailsWhenAlreadyCancelled(t *testing.T) {
	c := NewController()
	c.Cancel(false)
	_, ok := c.lockAndSetCancelHandler(func(CancelKind) {}, func() {})
	assert.False(t, ok)
}

func TestController_UnlockBumpsEpochAndAllowsRelock(t *testing.T) {
	c := NewController()
	token, ok := c.lockAndSetCancelHandler(func(CancelKind) {}, func() {})
	assert.True(t, ok)
	c.unlock(token)

	_, ok2 := c.lockAndSetCancelHandler(func(CancelKind) {}, func() {})
	assert.True(t, ok2, "after unlock the controller must accept a fresh lock")
}

func TestController_ResetCancelHandlerIsIdempotent(t *testing.T) {
	c := NewController()
	assert.NotPanics(t, func() {
		c.resetCancelHandler()
		c.resetCancelHandler()
	})
}

func TestController_ConcurrentCancelRacesLockHandlerFiresAtMostOnce(t *testing.T) {
	for i := 0; i < 50; i++ {
		c := NewController()
		var fireCount int
		var mu sync.Mutex
		var wg sync.WaitGroup

		wg.Add(2)
		go func() {
			defer wg.Done()
			_, ok := c.lockAndSetCancelHandler(func(CancelKind) {
				mu.Lock()
				fireCount++
				mu.Unlock()
			}, func() {})
			if ok {
				time.Sleep(time.Microsecond)
			}
		}()
		go func() {
			defer wg.Done()
			c.Cancel(true)
		}()
		wg.Wait()

		mu.Lock()
		assert.LessOrEqual(t, fireCount, 1)
		mu.Unlock()
	}
}
