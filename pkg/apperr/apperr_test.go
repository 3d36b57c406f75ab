package apperr

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKindOf(t *testing.T) {
	base := New(CutoffPassed, "cutoff for %s has passed", "2025-01-01")
	wrapped := fmt.Errorf("set participation: %w", base)

	assert.Equal(t, CutoffPassed, KindOf(base))
	assert.Equal(t, CutoffPassed, KindOf(wrapped))
	assert.True(t, Is(wrapped, CutoffPassed))
	assert.Equal(t, Internal, KindOf(errors.New("boom")))
	assert.Equal(t, Kind(""), KindOf(nil))
}

func TestWrapUnwrap(t *testing.T) {
	cause := errors.New("connection reset")
	err := Wrap(TransientStoreError, cause, "could not save participation")

	assert.ErrorIs(t, err, cause)
	assert.Equal(t, "could not save participation", err.Error())
	assert.Equal(t, "could not save participation", Message(fmt.Errorf("x: %w", err)))
}

func TestErrorWithoutMessage(t *testing.T) {
	assert.Equal(t, "DayBlocked", (&Error{Kind: DayBlocked}).Error())
	assert.Equal(t, "UserNotFound: gone", (&Error{Kind: UserNotFound, Err: errors.New("gone")}).Error())
}
