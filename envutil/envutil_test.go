package envutil_test

import (
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/amp-labs/amp-resilience/envutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestString(t *testing.T) {
	t.Run("present value", func(t *testing.T) {
		t.Setenv("TEST_STRING", "hello")

		reader := envutil.String(t.Context(), "TEST_STRING")
		value, err := reader.Value()
		require.NoError(t, err)
		assert.Equal(t, "hello", value)
		assert.True(t, reader.HasValue())
	})

	t.Run("missing value", func(t *testing.T) {
		reader := envutil.String(t.Context(), "TEST_STRING_MISSING")
		_, err := reader.Value()
		require.ErrorIs(t, err, envutil.ErrEnvVarMissing)
		assert.False(t, reader.HasValue())
		assert.Equal(t, "TEST_STRING_MISSING=<not set>", reader.String())
	})

	t.Run("with default", func(t *testing.T) {
		reader := envutil.String(t.Context(), "TEST_STRING_MISSING", envutil.Default("default"))
		value, err := reader.Value()
		require.NoError(t, err)
		assert.Equal(t, "default", value)
	})

	t.Run("context override wins", func(t *testing.T) {
		t.Setenv("TEST_STRING", "from-env")

		ctx := envutil.WithEnvOverride(t.Context(), "TEST_STRING", "from-ctx")
		assert.Equal(t, "from-ctx", envutil.String(ctx, "TEST_STRING").ValueOrElse(""))
	})
}

func TestTypedReaders(t *testing.T) {
	t.Parallel()

	ctx := envutil.WithEnvOverrides(t.Context(), map[string]string{
		"T_BOOL":     "true",
		"T_INT":      " 42 ",
		"T_UINT":     "7",
		"T_FLOAT":    "0.25",
		"T_DURATION": "150ms",
		"T_LEVEL":    "WARN",
		"T_BAD_INT":  "forty-two",
	})

	assert.True(t, envutil.Bool(ctx, "T_BOOL").ValueOrElse(false))
	assert.Equal(t, 42, envutil.Int(ctx, "T_INT").ValueOrElse(0))
	assert.Equal(t, uint(7), envutil.Uint(ctx, "T_UINT").ValueOrElse(0))
	assert.InDelta(t, 0.25, envutil.Float64(ctx, "T_FLOAT").ValueOrElse(0), 1e-9)
	assert.Equal(t, 150*time.Millisecond, envutil.Duration(ctx, "T_DURATION").ValueOrElse(0))
	assert.Equal(t, slog.LevelWarn, envutil.SlogLevel(ctx, "T_LEVEL").ValueOrElse(slog.LevelInfo))

	bad := envutil.Int(ctx, "T_BAD_INT", envutil.Default(3))
	assert.True(t, bad.HasError())
	_, err := bad.Value()
	require.ErrorIs(t, err, envutil.ErrBadEnvVar)
	assert.Equal(t, 9, bad.ValueOrElse(9))
}

func TestOptions(t *testing.T) {
	t.Parallel()

	errRequired := errors.New("required") //nolint:err113 // Test error
	errNegative := errors.New("negative") //nolint:err113 // Test error

	_, err := envutil.Int(t.Context(), "T_ABSENT", envutil.IfMissing[int](errRequired)).Value()
	require.ErrorIs(t, err, errRequired)

	ctx := envutil.WithEnvOverride(t.Context(), "T_NEG", "-1")
	_, err = envutil.Int(ctx, "T_NEG", envutil.Validate(func(v int) error {
		if v < 0 {
			return errNegative
		}

		return nil
	})).Value()
	require.ErrorIs(t, err, errNegative)

	called := false

	envutil.Int(ctx, "T_NEG").DoWithValue(func(v int) {
		called = true

		assert.Equal(t, -1, v)
	})
	assert.True(t, called)
}
