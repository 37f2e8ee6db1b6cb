package retry

import (
	"github.com/amp-labs/amp-resilience/breaker"
	"github.com/amp-labs/amp-resilience/clock"
)

// Option configures a single retry run.
type Option func(*options)

type options struct {
	name    string
	budget  *Budget
	timeout Timeout
	breaker *breaker.CircuitBreaker
	clock   clock.Clock
}

func newOptions(opts []Option) *options {
	o := &options{
		name:  "default",
		clock: clock.Real(),
	}

	for _, opt := range opts {
		opt(o)
	}

	if o.clock == nil {
		o.clock = clock.Real()
	}

	return o
}

// WithName labels the run in logs, spans and metrics.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithBudget shares a retry budget across runs to prevent retry storms.
//
//	budget := &retry.Budget{
//	    Rate:  10.0,  // Enforce budget when > 10 req/sec
//	    Ratio: 0.1,   // Allow up to 10% retries
//	}
func WithBudget(budget *Budget) Option {
	return func(o *options) {
		o.budget = budget
	}
}

// WithTimeout bounds each individual attempt.
func WithTimeout(t Timeout) Option {
	return func(o *options) {
		o.timeout = t
	}
}

// WithBreaker runs every attempt through cb. For error based operations a
// rejected attempt is a failure like any other and goes to the schedule, but
// the wait before the next attempt is stretched to at least cb.RetryAfter()
// so the loop does not spin against an open breaker. For Typed a rejection
// ends the run with breaker.ErrExecutionRejected.
func WithBreaker(cb *breaker.CircuitBreaker) Option {
	return func(o *options) {
		o.breaker = cb
	}
}

// WithClock replaces the clock used to wait between attempts.
func WithClock(clk clock.Clock) Option {
	return func(o *options) {
		o.clock = clk
	}
}
