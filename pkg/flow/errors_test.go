package flow

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestCancelKind_String(t *testing.T) {
	assert.Equal(t, "soft", CancelSoft.String())
	assert.Equal(t, "hard", CancelHard.String())
}

func TestIsCancelError(t *testing.T) {
	ce := NewCancelError(CancelHard)
	assert.True(t, IsCancelError(ce))
	assert.True(t, IsCancelError(fmt.Errorf("wrapped: %w", ce)))
	assert.False(t, IsCancelError(errors.New("plain")))
}

func TestAnyFailedError_MessageIncludesIndex(t *testing.T) {
	err := NewAnyFailedError(3)
	assert.Contains(t, err.Error(), "3")
}

func TestRecoveredPanic_Message(t *testing.T) {
	p := &RecoveredPanic{Value: "kaboom"}
	assert.Contains(t, p.Error(), "kaboom")
}

func TestIsContextCancellation(t *testing.T) {
	assert.True(t, IsContextCancellation(context.Canceled))
	assert.True(t, IsContextCancellation(context.DeadlineExceeded))
	assert.False(t, IsContextCancellation(errors.New("other")))
}

func TestUnwrapJoined(t *testing.T) {
	a := errors.New("a")
	b := errors.New("b")
	joined := errors.Join(a, b)
	leaves := unwrapJoined(joined)
	assert.Len(t, leaves, 2)
	assert.Nil(t, unwrapJoined(nil))
}
