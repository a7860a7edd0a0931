package dErrors

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHasCode(t *testing.T) {
	t.Run("matches outer code", func(t *testing.T) {
		err := New(CodeNotFound, "case not found")
		assert.True(t, HasCode(err, CodeNotFound))
		assert.False(t, HasCode(err, CodeInternal))
	})

	t.Run("matches code buried in the chain", func(t *testing.T) {
		inner := New(CodeConflict, "already processing")
		err := Wrap(inner, CodeInternal, "update case status")
		assert.True(t, HasCode(err, CodeConflict))
		assert.True(t, HasCode(err, CodeInternal))
	})

	t.Run("plain errors carry no code", func(t *testing.T) {
		assert.False(t, HasCode(errors.New("boom"), CodeInternal))
		assert.False(t, HasCode(nil, CodeInternal))
	})
}

func TestWrap(t *testing.T) {
	t.Run("nil passthrough", func(t *testing.T) {
		assert.NoError(t, Wrap(nil, CodeInternal, "persist case"))
	})

	t.Run("preserves the cause chain", func(t *testing.T) {
		cause := errors.New("connection refused")
		err := Wrap(cause, CodeInternal, "persist case")
		require.Error(t, err)
		assert.ErrorIs(t, err, cause)
		assert.Contains(t, err.Error(), "persist case")
		assert.Contains(t, err.Error(), "connection refused")
	})

	t.Run("survives fmt wrapping", func(t *testing.T) {
		err := fmt.Errorf("sweep: %w", New(CodeInvariantViolation, "bad transition"))
		assert.True(t, HasCode(err, CodeInvariantViolation))
	})
}

func TestCodeOf(t *testing.T) {
	assert.Equal(t, CodeValidation, CodeOf(New(CodeValidation, "missing field")))
	assert.Equal(t, CodeInternal, CodeOf(errors.New("boom")))
}
