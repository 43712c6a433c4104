package flow

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestResult_ZeroValueIsError(t *testing.T) {
	var r Result[int]
	assert.True(t, r.IsError())
	assert.False(t, r.IsValue())
	assert.NoError(t, r.Error())
}

func TestResult_ValueAndErr(t *testing.T) {
	v := Value(42)
	assert.True(t, v.IsValue())
	assert.Equal(t, 42, v.Get())

	e := Err[int](errors.New("boom"))
	assert.True(t, e.IsError())
	assert.EqualError(t, e.Error(), "boom")
}

func TestResult_MapValue(t *testing.T) {
	v, ok := Value("x").MapValue()
	assert.True(t, ok)
	assert.Equal(t, "x", v)

	_, ok2 := Err[string](errors.New("e")).MapValue()
	assert.False(t, ok2)
}

func TestResult_CancelInterrogation(t *testing.T) {
	soft := Err[int](NewCancelError(CancelSoft))
	assert.True(t, soft.IsCancel())
	assert.True(t, soft.IsSoftCancel())
	assert.False(t, soft.IsHardCancel())

	hard := Err[int](NewCancelError(CancelHard))
	assert.True(t, hard.IsCancel())
	assert.True(t, hard.IsHardCancel())
	assert.False(t, hard.IsSoftCancel())

	assert.False(t, Err[int](errors.New("plain")).IsCancel())
}

func TestResult_EmplaceError(t *testing.T) {
	r := Value(7)
	r.EmplaceError(errors.New("overwritten"))
	assert.True(t, r.IsError())
	assert.EqualError(t, r.Error(), "overwritten")
}

func TestResult_BoxUnboxRoundtrip(t *testing.T) {
	v := Value(99)
	boxed := boxAny(v)
	out := unboxAny[int](boxed)
	assert.True(t, out.IsValue())
	assert.Equal(t, 99, out.Get())

	e := Err[int](errors.New("x"))
	boxedErr := boxAny(e)
	outErr := unboxAny[int](boxedErr)
	assert.True(t, outErr.IsError())
	assert.EqualError(t, outErr.Error(), "x")
}

func TestResult_IDAndCreatedAtStamped(t *testing.T) {
	v := Value(1)
	assert.NotEqual(t, v.ID().String(), Value(2).ID().String())
	assert.False(t, v.CreatedAt().IsZero())
}
