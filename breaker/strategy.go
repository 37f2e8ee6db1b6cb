package breaker

import (
	"fmt"
	"time"
)

// OpeningStrategy decides when a closed breaker trips. Strategies are
// immutable: recording an outcome returns a new strategy value.
//
// The available strategies are Count, SlidingWindow and FailureRate.
type OpeningStrategy interface {
	onSuccess(now time.Time) OpeningStrategy
	onFailure(now time.Time) OpeningStrategy
	shouldOpen() bool
	reset() OpeningStrategy
	validate() error
}

// Count opens the breaker after maxFailures consecutive failures.
// A success resets the counter.
func Count(maxFailures int) OpeningStrategy {
	return countStrategy{maxFailures: maxFailures}
}

type countStrategy struct {
	maxFailures int
	failures    int
}

func (c countStrategy) onSuccess(time.Time) OpeningStrategy {
	c.failures = 0

	return c
}

func (c countStrategy) onFailure(time.Time) OpeningStrategy {
	c.failures++

	return c
}

func (c countStrategy) shouldOpen() bool {
	return c.failures >= c.maxFailures
}

func (c countStrategy) reset() OpeningStrategy {
	c.failures = 0

	return c
}

func (c countStrategy) validate() error {
	if c.maxFailures < 1 {
		return fmt.Errorf("%w: maxFailures must be positive, got %d", ErrInvalidConfig, c.maxFailures)
	}

	return nil
}

// SlidingWindow opens the breaker once maxFailures failures happened within
// the trailing window. Successes do not reset the count; failures older than
// the window are forgotten.
func SlidingWindow(window time.Duration, maxFailures int) OpeningStrategy {
	return windowStrategy{window: window, maxFailures: maxFailures}
}

type windowStrategy struct {
	window      time.Duration
	maxFailures int
	failures    []time.Time
}

func (w windowStrategy) onSuccess(now time.Time) OpeningStrategy {
	w.failures = evict(w.failures, now.Add(-w.window))

	return w
}

func (w windowStrategy) onFailure(now time.Time) OpeningStrategy {
	kept := evict(w.failures, now.Add(-w.window))

	// Copy so that older snapshots never observe the append.
	next := make([]time.Time, len(kept), len(kept)+1)
	copy(next, kept)
	w.failures = append(next, now)

	return w
}

func (w windowStrategy) shouldOpen() bool {
	return len(w.failures) >= w.maxFailures
}

func (w windowStrategy) reset() OpeningStrategy {
	w.failures = nil

	return w
}

func (w windowStrategy) validate() error {
	if w.window <= 0 {
		return fmt.Errorf("%w: window must be positive, got %s", ErrInvalidConfig, w.window)
	}

	if w.maxFailures < 1 {
		return fmt.Errorf("%w: maxFailures must be positive, got %d", ErrInvalidConfig, w.maxFailures)
	}

	return nil
}

// evict drops every timestamp not after cutoff. The input is sorted.
func evict(times []time.Time, cutoff time.Time) []time.Time {
	idx := 0
	for idx < len(times) && !times[idx].After(cutoff) {
		idx++
	}

	return times[idx:]
}

// FailureRate opens the breaker when, among the calls made within the
// trailing window, at least minCalls were recorded and the share of failures
// reaches threshold.
func FailureRate(window time.Duration, minCalls int, threshold float64) OpeningStrategy {
	return rateStrategy{window: window, minCalls: minCalls, threshold: threshold}
}

type outcome struct {
	at     time.Time
	failed bool
}

type rateStrategy struct {
	window    time.Duration
	minCalls  int
	threshold float64
	calls     []outcome
}

func (r rateStrategy) record(now time.Time, failed bool) OpeningStrategy {
	cutoff := now.Add(-r.window)

	idx := 0
	for idx < len(r.calls) && !r.calls[idx].at.After(cutoff) {
		idx++
	}

	next := make([]outcome, len(r.calls)-idx, len(r.calls)-idx+1)
	copy(next, r.calls[idx:])
	r.calls = append(next, outcome{at: now, failed: failed})

	return r
}

func (r rateStrategy) onSuccess(now time.Time) OpeningStrategy {
	return r.record(now, false)
}

func (r rateStrategy) onFailure(now time.Time) OpeningStrategy {
	return r.record(now, true)
}

func (r rateStrategy) shouldOpen() bool {
	if len(r.calls) < r.minCalls || len(r.calls) == 0 {
		return false
	}

	failed := 0

	for _, c := range r.calls {
		if c.failed {
			failed++
		}
	}

	return float64(failed)/float64(len(r.calls)) >= r.threshold
}

func (r rateStrategy) reset() OpeningStrategy {
	r.calls = nil

	return r
}

func (r rateStrategy) validate() error {
	if r.window <= 0 {
		return fmt.Errorf("%w: window must be positive, got %s", ErrInvalidConfig, r.window)
	}

	if r.minCalls < 1 {
		return fmt.Errorf("%w: minCalls must be positive, got %d", ErrInvalidConfig, r.minCalls)
	}

	if r.threshold <= 0 || r.threshold > 1 {
		return fmt.Errorf("%w: threshold must be in (0, 1], got %v", ErrInvalidConfig, r.threshold)
	}

	return nil
}
