package breaker

import (
	"time"

	"github.com/amp-labs/amp-resilience/clock"
)

const (
	defaultMaxFailures  = 5
	defaultResetTimeout = 30 * time.Second
)

// Option configures a CircuitBreaker.
type Option func(*options)

type options struct {
	name            string
	strategy        OpeningStrategy
	resetTimeout    time.Duration
	backoffFactor   float64
	maxResetTimeout time.Duration
	clock           clock.Clock

	onOpen     func(until time.Time)
	onHalfOpen func()
	onClosed   func()
	onRejected func()
}

func defaultOptions() options {
	return options{
		name:          "default",
		strategy:      Count(defaultMaxFailures),
		resetTimeout:  defaultResetTimeout,
		backoffFactor: 1,
		clock:         clock.Real(),
	}
}

// WithName labels the breaker in logs and metrics.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithMaxFailures is shorthand for WithOpeningStrategy(Count(n)).
func WithMaxFailures(n int) Option {
	return func(o *options) {
		o.strategy = Count(n)
	}
}

// WithOpeningStrategy sets the rule that trips a closed breaker.
func WithOpeningStrategy(strategy OpeningStrategy) Option {
	return func(o *options) {
		o.strategy = strategy
	}
}

// WithResetTimeout sets how long the breaker stays open before it admits a trial call.
func WithResetTimeout(d time.Duration) Option {
	return func(o *options) {
		o.resetTimeout = d
	}
}

// WithExponentialBackoff multiplies the reset timeout by factor every time a
// trial call fails, up to maxResetTimeout. A successful trial restores the
// configured reset timeout.
func WithExponentialBackoff(factor float64, maxResetTimeout time.Duration) Option {
	return func(o *options) {
		o.backoffFactor = factor
		o.maxResetTimeout = maxResetTimeout
	}
}

// WithClock replaces the clock used for open-until timestamps.
func WithClock(clk clock.Clock) Option {
	return func(o *options) {
		o.clock = clk
	}
}

// OnOpen registers a callback invoked after the breaker trips.
func OnOpen(f func(until time.Time)) Option {
	return func(o *options) {
		o.onOpen = f
	}
}

// OnHalfOpen registers a callback invoked when a trial call is admitted.
func OnHalfOpen(f func()) Option {
	return func(o *options) {
		o.onHalfOpen = f
	}
}

// OnClosed registers a callback invoked when a trial call succeeds.
func OnClosed(f func()) Option {
	return func(o *options) {
		o.onClosed = f
	}
}

// OnRejected registers a callback invoked for every rejected call.
func OnRejected(f func()) Option {
	return func(o *options) {
		o.onRejected = f
	}
}
