// Package executorpool provides a bounded-concurrency flow.Executor backed
// by golang.org/x/sync/semaphore, the domain-stack analogue of
// pkg/rop/core/options.go's WorkerOptions.MaxCount knob.
package executorpool

import (
	"context"

	"golang.org/x/sync/semaphore"

	"github.com/dataflow-go/flow/pkg/flow"
)

// Pool dispatches flow.Task values onto goroutines, bounded to at most
// size concurrently running tasks. Tasks submitted beyond the bound queue
// on the semaphore acquire and run as soon as a slot frees up — Dispatch
// itself never blocks the caller past the point of spawning the goroutine
// that will wait.
type Pool struct {
	sem *semaphore.Weighted
	ctx context.Context
}

// New returns a Pool bounded to size concurrent tasks. ctx governs the
// semaphore acquisition: if ctx is cancelled while a task is queued
// waiting for a slot, that task is dropped (never dispatched) rather than
// blocking forever.
func New(ctx context.Context, size int) *Pool {
	if size <= 0 {
		size = 1
	}
	return &Pool{sem: semaphore.NewWeighted(int64(size)), ctx: ctx}
}

// NewDefault builds a Pool sized from EngineOptions.ApplyDefaults' built-in
// WorkerPoolSize, for callers who don't want to think about sizing. Values
// set with flow.SetDefaultEngineOptions are not consulted.
func NewDefault(ctx context.Context) *Pool {
	return New(ctx, defaultPoolSize())
}

func defaultPoolSize() int {
	opts := flow.EngineOptions{}
	opts.ApplyDefaults()
	return opts.WorkerPoolSize
}

// Dispatch satisfies flow.Executor: it acquires a semaphore slot (spawning
// a goroutine to do so, so Dispatch itself returns immediately) and runs t
// once a slot is available.
func (p *Pool) Dispatch(t flow.Task) {
	go func() {
		if err := p.sem.Acquire(p.ctx, 1); err != nil {
			return
		}
		defer p.sem.Release(1)
		t()
	}()
}
