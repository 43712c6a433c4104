package flow

import (
	"math/rand/v2"
	"runtime"
	"time"
)

// backoffSpin is a small bounded exponential backoff used by Controller's
// CAS retry loops, grounded on original_source/flow/flow_runner.h's
// backoff_strategy<> spins and shaped after
// sam-fredrickson-flow/retry.go's jittered-backoff options (full jitter,
// capped max delay). It starts by yielding the scheduler (cheapest possible
// backoff for the common uncontended case) and only escalates to sleeping
// if contention persists.
type backoffSpin struct {
	attempt  int
	maxDelay time.Duration
}

func newBackoffSpin() *backoffSpin {
	return &backoffSpin{maxDelay: defaultEngineOptions.ControllerMaxBackoff}
}

func (b *backoffSpin) wait() {
	b.attempt++
	if b.attempt <= 4 {
		runtime.Gosched()
		return
	}
	shift := b.attempt - 4
	if shift > 10 {
		shift = 10
	}
	delay := time.Duration(1<<uint(shift)) * time.Microsecond
	if delay > b.maxDelay {
		delay = b.maxDelay
	}
	// full jitter, per sam-fredrickson-flow/retry.go's WithFullJitter.
	delay = time.Duration(rand.Int64N(int64(delay) + 1))
	time.Sleep(delay)
}
