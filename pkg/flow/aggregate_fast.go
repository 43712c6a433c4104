package flow

import (
	"context"

	"golang.org/x/sync/errgroup"
)

// RunAllFast runs every fn concurrently via an errgroup and returns all
// results in order, or the first error encountered — a convenience
// shorthand for when a caller wants when_all's "every child must succeed"
// semantics over plain funcs without building a Blueprint/WhenAll stage at
// all. It never touches a Controller: there is no per-child cancellation
// here beyond the one an errgroup-derived context already gives running
// goroutines via ctx.Err(), grounded on sam-fredrickson-flow/run.go's
// InParallel helper.
func RunAllFast[C any](ctx context.Context, fns []func(context.Context) (C, error)) ([]C, error) {
	g, gctx := errgroup.WithContext(ctx)
	out := make([]C, len(fns))
	for i, fn := range fns {
		idx, f := i, fn
		g.Go(func() error {
			v, err := f(gctx)
			if err != nil {
				return err
			}
			out[idx] = v
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return out, nil
}

// RunAnyFast runs every fn concurrently and returns the first value
// produced; if every fn fails, returns ErrAllFailed. Sibling goroutines are
// left to run to completion (or to observe ctx cancellation on their own);
// RunAnyFast itself returns as soon as a winner or an all-failed verdict is
// known.
func RunAnyFast[C any](ctx context.Context, fns []func(context.Context) (C, error)) (C, error) {
	var zero C
	type outcome struct {
		v   C
		err error
	}
	results := make(chan outcome, len(fns))
	gctx, cancel := context.WithCancel(ctx)
	defer cancel()
	for _, fn := range fns {
		f := fn
		go func() {
			v, err := f(gctx)
			results <- outcome{v: v, err: err}
		}()
	}
	remaining := len(fns)
	for remaining > 0 {
		o := <-results
		remaining--
		if o.err == nil {
			return o.v, nil
		}
	}
	return zero, ErrAllFailed
}
