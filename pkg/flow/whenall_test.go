package flow

import (
	"context"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
)

func intChild(f func(int) int) *Blueprint[int, int] {
	return End0(Transform(New[int](), f))
}

// S4: when_all joins every child's value, in order.
func TestWhenAll_Success(t *testing.T) {
	children := []*Blueprint[int, int]{
		intChild(func(i int) int { return i + 1 }),
		intChild(func(i int) int { return i + 2 }),
		intChild(func(i int) int { return i + 3 }),
	}
	bp := New[[]int]()
	joined := WhenAll[[]int, []int, int, []int](bp, InlineExecutor{}, children,
		func(m []int) []int { return m },
		false,
		func(vals []int) []int { return vals },
		func(err error) []int { return nil },
	)
	end := End0(joined)

	recv := &CollectingReceiver[[]int]{}
	NewFastRunner(end).Run(context.Background(), []int{10, 20, 30}, recv)
	r, ok := recv.Get()
	assert.True(t, ok)
	assert.True(t, r.IsValue())
	assert.Equal(t, []int{11, 22, 33}, r.Get())
}

// S7: a nil child blueprint in when_all surfaces as a submission failure,
// mapped through fErr.
func TestWhenAll_NilChildSurfacesSubmissionFailure(t *testing.T) {
	children := []*Blueprint[int, int]{
		intChild(func(i int) int { return i }),
		nil,
	}
	bp := New[[]int]()
	joined := WhenAll[[]int, []int, int, string](bp, InlineExecutor{}, children,
		func(m []int) []int { return m },
		false,
		func(vals []int) string { return "ok" },
		func(err error) string { return "failed: " + err.Error() },
	)
	end := End0(joined)

	recv := &CollectingReceiver[string]{}
	NewFastRunner(end).Run(context.Background(), []int{1, 2}, recv)
	r, ok := recv.Get()
	assert.True(t, ok)
	assert.True(t, r.IsValue())
	assert.Contains(t, r.Get(), "failed")
}

// S7 (cancellable): a nil child hit mid-loop cancels the children already
// launched ahead of it (spec.md §4.5 step 2), instead of leaving
// launch_failed_bit forever dead.
func TestWhenAll_NilChildMidLoopCancelsLaunched(t *testing.T) {
	var cancelled atomic.Bool
	slowChild := func() *Blueprint[int, int] {
		factory := func(_ context.Context, n int) (Awaitable[int], *AwaitableBase[int], error) {
			base := &AwaitableBase[int]{}
			return &goAwaitable{base: base, result: n, delay: time.Hour, cancelFn: func() { cancelled.Store(true) }}, base, nil
		}
		return End0(Await(New[int](), InlineExecutor{}, factory))
	}
	children := []*Blueprint[int, int]{slowChild(), nil}

	bp := New[[]int]()
	joined := WhenAll[[]int, []int, int, string](bp, InlineExecutor{}, children,
		func(m []int) []int { return m },
		true,
		func(vals []int) string { return "ok" },
		func(err error) string { return "failed: " + err.Error() },
	)
	end := End0(joined)

	recv := &CollectingReceiver[string]{}
	NewFastRunner(end).Run(context.Background(), []int{1, 2}, recv)
	r, ok := recv.Get()
	assert.True(t, ok)
	assert.True(t, r.IsValue())
	assert.Contains(t, r.Get(), "failed")
	assert.True(t, cancelled.Load(), "the already-launched child must be cancelled when a later child's launch fails")
}

// One failing child surfaces AnyFailedError identifying its index, mapped
// through fErr.
func TestWhenAll_OneChildFails(t *testing.T) {
	children := []*Blueprint[int, int]{
		intChild(func(i int) int { return i }),
		End0(Then(New[int](), func(r Result[int]) Result[int] { return Err[int](assert.AnError) })),
	}
	bp := New[[]int]()
	joined := WhenAll[[]int, []int, int, error](bp, InlineExecutor{}, children,
		func(m []int) []int { return m },
		true,
		func(vals []int) error { return nil },
		func(err error) error { return err },
	)
	end := End0(joined)

	recv := &CollectingReceiver[error]{}
	done := make(chan struct{})
	NewRunner(end).Run(context.Background(), []int{1, 2}, ReceiverFunc[error](func(r Result[error]) {
		recv.Emplace(r)
		close(done)
	}))
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for when_all failure resolution")
	}
	r, _ := recv.Get()
	assert.True(t, r.IsValue())
	assert.Error(t, r.Get())
	var afe *AnyFailedError
	assert.ErrorAs(t, r.Get(), &afe)
	assert.Equal(t, 1, afe.Index)
}
