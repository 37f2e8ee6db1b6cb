package breaker

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/amp-labs/amp-resilience/clock"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMetrics(t *testing.T) {
	t.Parallel()

	name := "metrics-test"
	cb, err := New(WithName(name), WithMaxFailures(1), WithClock(clock.NewFake(time.Unix(0, 0))))
	require.NoError(t, err)

	errTest := errors.New("test") //nolint:err113 // Test error

	require.NoError(t, cb.Do(t.Context(), func(context.Context) error { return nil }))
	require.ErrorIs(t, cb.Do(t.Context(), func(context.Context) error { return errTest }), errTest)
	require.ErrorIs(t, cb.Do(t.Context(), func(context.Context) error { return nil }), ErrExecutionRejected)

	assert.InDelta(t, 1, testutil.ToFloat64(breakerCalls.WithLabelValues(name, "success")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(breakerCalls.WithLabelValues(name, "failure")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(breakerCalls.WithLabelValues(name, "rejected")), 0)
	assert.InDelta(t, 1, testutil.ToFloat64(breakerTransitions.WithLabelValues(name, "open")), 0)
	assert.InDelta(t, float64(Open), testutil.ToFloat64(breakerState.WithLabelValues(name)), 0)
}

func TestValidateLeavesMetricsAlone(t *testing.T) {
	t.Parallel()

	name := "validate-only"

	cb, err := New(WithName(name), WithMaxFailures(1), WithClock(clock.NewFake(time.Unix(0, 0))))
	require.NoError(t, err)

	errTest := errors.New("test") //nolint:err113 // Test error
	require.ErrorIs(t, cb.Do(t.Context(), func(context.Context) error { return errTest }), errTest)
	require.Equal(t, Open, cb.State())

	require.NoError(t, Validate(WithName(name), WithMaxFailures(3)))
	require.ErrorIs(t, Validate(WithName(name), WithMaxFailures(0)), ErrInvalidConfig)

	assert.InDelta(t, float64(Open), testutil.ToFloat64(breakerState.WithLabelValues(name)), 0)
}
