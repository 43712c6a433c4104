package flow

import (
	"context"
	"errors"
	"fmt"
)

// CancelKind distinguishes cooperative (soft) from forced (hard)
// cancellation, per SPEC_FULL.md §3.5.
type CancelKind int

const (
	// CancelSoft asks the current async operation to short-circuit; the
	// pipeline still runs every remaining stage with an injected cancel
	// error, finishing at end.
	CancelSoft CancelKind = iota
	// CancelHard additionally skips straight to the end stage.
	CancelHard
)

func (k CancelKind) String() string {
	if k == CancelHard {
		return "hard"
	}
	return "soft"
}

// CancelError is the error value a cancelled Result carries. It is the Go
// equivalent of the C++ source's cancel_error<E>::make(kind) customization
// point — translated to a concrete type instead of a template
// specialization, since Result's error side is fixed to the error
// interface (see DESIGN.md Open Question 1).
type CancelError struct {
	Kind CancelKind
}

func (e *CancelError) Error() string {
	return fmt.Sprintf("flow %s-canceled", e.Kind)
}

// NewCancelError is the customization point named cancel_error<E>::make in
// spec.md §6. Overridable by assigning a different func to construct a
// richer cancellation error; defaults to *CancelError.
var NewCancelError = func(kind CancelKind) error {
	return &CancelError{Kind: kind}
}

// IsCancelError reports whether err is (or wraps) a *CancelError.
func IsCancelError(err error) bool {
	var ce *CancelError
	return errors.As(err, &ce)
}

func asCancelError(err error, target **CancelError) bool {
	return errors.As(err, target)
}

// ErrAwaitableCreationFailed is the default awaitable_creating_error<E>.
var ErrAwaitableCreationFailed = errors.New("flow: failed to create awaitable")

// NewAwaitableCreationError is the customization point named
// awaitable_creating_error<E>::make in spec.md §6.
var NewAwaitableCreationError = func() error {
	return ErrAwaitableCreationFailed
}

// ErrAsyncSubmissionFailed is the default async_submission_failed_error<E>.
var ErrAsyncSubmissionFailed = errors.New("flow: failed to submit async operation")

// NewAsyncSubmissionFailedError is the customization point named
// async_submission_failed_error<E>::make in spec.md §6.
var NewAsyncSubmissionFailedError = func() error {
	return ErrAsyncSubmissionFailed
}

// ErrAllFailed is the default async_all_failed_error<E>, raised by when_any
// when no child produced a value.
var ErrAllFailed = errors.New("flow: all async operations failed")

// NewAllFailedError is the customization point named
// async_all_failed_error<E>::make in spec.md §6.
var NewAllFailedError = func() error {
	return ErrAllFailed
}

// AnyFailedError is the default async_any_failed_error<E>, raised by
// when_all when one child (identified by Index) failed.
type AnyFailedError struct {
	Index int
}

func (e *AnyFailedError) Error() string {
	return fmt.Sprintf("flow: async operation #%d failed", e.Index)
}

// NewAnyFailedError is the customization point named
// async_any_failed_error<E>::make(i) in spec.md §6.
var NewAnyFailedError = func(i int) error {
	return &AnyFailedError{Index: i}
}

// RecoveredPanic wraps a panic value recovered from a user-supplied
// callable (calc/end/awaitable factory). This is the Go translation of the
// try/catch(...) blocks scattered through flow_awaitable.h and
// flow_async_aggregator.h around every user callback invocation.
//
// Grounded on sam-fredrickson-flow/errors.go's RecoveredPanic.
type RecoveredPanic struct {
	Value any
}

func (p *RecoveredPanic) Error() string {
	return fmt.Sprintf("flow: panic recovered: %v", p.Value)
}

// unwrapJoined flattens a possibly errors.Join-built error tree into its
// leaves, grounded on pkg/rop/utills.go's GetErrors.
func unwrapJoined(err error) []error {
	if err == nil {
		return nil
	}
	if u, ok := err.(interface{ Unwrap() []error }); ok {
		return u.Unwrap()
	}
	return []error{err}
}

// IsContextCancellation reports whether err is context.Canceled or
// context.DeadlineExceeded, grounded on pkg/rop/utills.go's
// IsCancellationError.
func IsContextCancellation(err error) bool {
	return errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded)
}
