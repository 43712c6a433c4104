package flow

import (
	"time"

	"github.com/google/uuid"
)

// Result is the universal carrier between stages: a sum of a value of T or
// an error. Cancellation is not a third state — it rides as an error value
// of a concrete *CancelError type (see errors.go), matching the data model
// in SPEC_FULL.md §0/§3.
//
// The zero value Result[T]{} is in the error state with a nil error,
// matching the requirement that a Result is "default-constructed in error
// state."
type Result[T any] struct {
	id        uuid.UUID
	createdAt time.Time
	value     T
	err       error
	hasValue  bool
}

// Value constructs a successful Result carrying v.
func Value[T any](v T) Result[T] {
	return Result[T]{
		value:     v,
		hasValue:  true,
		createdAt: time.Now().UTC(),
		id:        uuid.New(),
	}
}

// Err constructs a failed Result carrying err.
func Err[T any](err error) Result[T] {
	return Result[T]{
		err:       err,
		hasValue:  false,
		createdAt: time.Now().UTC(),
		id:        uuid.New(),
	}
}

// MapValue returns the value carried by r along with whether r holds one.
func (r Result[T]) MapValue() (T, bool) {
	return r.value, r.hasValue
}

// Get returns the carried value. Only meaningful when IsValue is true.
func (r Result[T]) Get() T {
	return r.value
}

// Error returns the carried error. Only meaningful when IsValue is false.
func (r Result[T]) Error() error {
	return r.err
}

// IsValue reports whether r holds a value.
func (r Result[T]) IsValue() bool {
	return r.hasValue
}

// IsError reports whether r holds an error (cancellation included).
func (r Result[T]) IsError() bool {
	return !r.hasValue
}

// IsCancel reports whether r's error is a cancellation of either kind.
func (r Result[T]) IsCancel() bool {
	return IsCancelError(r.err)
}

// IsSoftCancel reports whether r's error is a soft cancellation.
func (r Result[T]) IsSoftCancel() bool {
	var ce *CancelError
	return asCancelError(r.err, &ce) && ce.Kind == CancelSoft
}

// IsHardCancel reports whether r's error is a hard cancellation.
func (r Result[T]) IsHardCancel() bool {
	var ce *CancelError
	return asCancelError(r.err, &ce) && ce.Kind == CancelHard
}

// CreatedAt returns the UTC creation time of r.
func (r Result[T]) CreatedAt() time.Time {
	return r.createdAt
}

// ID returns the correlation id stamped on r at construction.
func (r Result[T]) ID() uuid.UUID {
	return r.id
}

// EmplaceError overwrites r's error side in place, discarding any value.
// The aggregator delegates store child results by plain assignment and do
// not call it.
func (r *Result[T]) EmplaceError(err error) {
	var zero T
	r.value = zero
	r.hasValue = false
	r.err = err
}

// boxAny erases r's type for internal stage plumbing.
func boxAny[T any](r Result[T]) Result[any] {
	if r.hasValue {
		return Result[any]{value: r.value, hasValue: true, createdAt: r.createdAt, id: r.id}
	}
	return Result[any]{err: r.err, hasValue: false, createdAt: r.createdAt, id: r.id}
}

// unboxAny recovers a concretely-typed Result from its boxed form. Only
// called at points where the Blueprint composition API has already
// guaranteed (via the Go type checker, at the call site that produced the
// boxed stage) that the dynamic type matches T.
func unboxAny[T any](r Result[any]) Result[T] {
	if r.hasValue {
		v, _ := r.value.(T)
		return Result[T]{value: v, hasValue: true, createdAt: r.createdAt, id: r.id}
	}
	return Result[T]{err: r.err, hasValue: false, createdAt: r.createdAt, id: r.id}
}
