package errors

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestCollection_Add(t *testing.T) {
	t.Parallel()

	t.Run("adds non-nil errors", func(t *testing.T) {
		t.Parallel()

		c := &Collection{}
		err1 := errors.New("error 1") //nolint:err113
		err2 := errors.New("error 2") //nolint:err113

		c.Add(err1)
		c.Add(err2)

		assert.True(t, c.HasError())
		assert.Equal(t, 2, c.Len())
		assert.Equal(t, []error{err1, err2}, c.Errors())
	})

	t.Run("ignores nil errors", func(t *testing.T) {
		t.Parallel()

		c := &Collection{}

		c.Add(nil)

		assert.False(t, c.HasError())
		assert.Nil(t, c.Errors())
	})
}

func TestCollection_Clear(t *testing.T) {
	t.Parallel()

	c := &Collection{}
	c.Add(errors.New("error 1")) //nolint:err113
	c.Clear()

	assert.False(t, c.HasError())
	require.NoError(t, c.GetError())
}

func TestCollection_GetError(t *testing.T) {
	t.Parallel()

	t.Run("single error is returned as is", func(t *testing.T) {
		t.Parallel()

		c := &Collection{}
		err1 := errors.New("only") //nolint:err113
		c.Add(err1)

		assert.Same(t, err1, c.GetError()) //nolint:testifylint
	})

	t.Run("multiple errors are joined", func(t *testing.T) {
		t.Parallel()

		c := &Collection{}
		err1 := errors.New("first")  //nolint:err113
		err2 := errors.New("second") //nolint:err113
		c.Add(err1)
		c.Add(err2)

		err := c.GetError()
		require.ErrorIs(t, err, err1)
		require.ErrorIs(t, err, err2)
	})
}

func TestFromPanic(t *testing.T) {
	t.Parallel()

	t.Run("returns nil for nil panic value", func(t *testing.T) {
		t.Parallel()

		assert.NoError(t, FromPanic(nil, nil))
	})

	t.Run("wraps error panic value", func(t *testing.T) {
		t.Parallel()

		originalErr := errors.New("test error") //nolint:err113
		err := FromPanic(originalErr, nil)
		require.ErrorIs(t, err, ErrPanicRecovery)
		require.ErrorIs(t, err, originalErr)
	})

	t.Run("formats non-error panic value with stack", func(t *testing.T) {
		t.Parallel()

		err := FromPanic("panic message", []byte("goroutine 1"))
		require.ErrorIs(t, err, ErrPanicRecovery)
		assert.Contains(t, err.Error(), "panic message")
		assert.Contains(t, err.Error(), "stack trace:\ngoroutine 1")
	})
}
