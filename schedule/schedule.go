// Package schedule defines recurrence policies: after each failed attempt a
// Schedule decides whether the caller should try again and how long it should
// wait first. Schedules are immutable values; every combinator returns a new
// Schedule and decisions depend only on (failure, attempt, elapsed).
//
// Basic usage:
//
//	policy := schedule.Recurs[error](5).
//	    And(schedule.Exponential[error](100 * time.Millisecond)).
//	    Jittered()
//
//	decision := policy.Decide(err, 1, 0)
//	if decision.Continue {
//	    time.Sleep(decision.Delay)
//	}
//
// Attempt numbers start at 1: the first failure is decided with attempt 1.
package schedule

import (
	"fmt"
	"math"
	"time"
)

const defaultExponentialFactor = 2.0

// Decision is the outcome of evaluating a Schedule. The zero value is Halt.
type Decision struct {
	// Continue reports whether another attempt should be made.
	Continue bool
	// Delay is how long to wait before the next attempt. Meaningless when
	// Continue is false.
	Delay time.Duration
}

// Halt stops the recurrence.
var Halt = Decision{} //nolint:gochecknoglobals

// Continue requests another attempt after the given delay.
func Continue(delay time.Duration) Decision {
	if delay < 0 {
		delay = 0
	}

	return Decision{Continue: true, Delay: delay}
}

func (d Decision) String() string {
	if !d.Continue {
		return "halt"
	}

	return fmt.Sprintf("continue(%s)", d.Delay)
}

// DecideFunc is a pure decision function over the most recent failure, the
// 1-based attempt number and the total delay accumulated so far.
type DecideFunc[E any] func(failure E, attempt int, elapsed time.Duration) Decision

// Schedule is a composable recurrence policy over failures of type E.
type Schedule[E any] struct {
	// quiet suppresses observability side effects; it is set when a
	// combinator evaluates a schedule at attempts other than the current one.
	decide func(failure E, attempt int, elapsed time.Duration, quiet bool) Decision
}

// New wraps a decision function as a Schedule.
func New[E any](fn DecideFunc[E]) Schedule[E] {
	return Schedule[E]{
		decide: func(failure E, attempt int, elapsed time.Duration, _ bool) Decision {
			return fn(failure, attempt, elapsed)
		},
	}
}

// Decide evaluates the schedule. Attempts below 1 always halt, and the zero
// Schedule halts.
func (s Schedule[E]) Decide(failure E, attempt int, elapsed time.Duration) Decision {
	return s.eval(failure, attempt, elapsed, false)
}

func (s Schedule[E]) eval(failure E, attempt int, elapsed time.Duration, quiet bool) Decision {
	if s.decide == nil || attempt < 1 {
		return Halt
	}

	return s.decide(failure, attempt, elapsed, quiet)
}

// Forever always continues without delay.
func Forever[E any]() Schedule[E] {
	return New(func(E, int, time.Duration) Decision {
		return Continue(0)
	})
}

// Recurs continues without delay while attempt <= n, allowing exactly n
// retries. Recurs(0) halts on the first failure.
func Recurs[E any](n uint) Schedule[E] {
	return New(func(_ E, attempt int, _ time.Duration) Decision {
		if uint(attempt) > n {
			return Halt
		}

		return Continue(0)
	})
}

// Spaced always continues with a fixed delay.
func Spaced[E any](delay time.Duration) Schedule[E] {
	return New(func(E, int, time.Duration) Decision {
		return Continue(delay)
	})
}

// Linear continues with a delay of base * attempt.
func Linear[E any](base time.Duration) Schedule[E] {
	return New(func(_ E, attempt int, _ time.Duration) Decision {
		return Continue(scale(base, float64(attempt)))
	})
}

// Exponential continues with a delay of base * factor^(attempt-1). The factor
// defaults to 2 when omitted. Delays saturate instead of overflowing.
//
// Example:
//
//	schedule.Exponential[error](100 * time.Millisecond)
//	// Delays: 100ms, 200ms, 400ms, 800ms, ...
func Exponential[E any](base time.Duration, factor ...float64) Schedule[E] {
	f := defaultExponentialFactor
	if len(factor) > 0 && factor[0] > 0 {
		f = factor[0]
	}

	return New(func(_ E, attempt int, _ time.Duration) Decision {
		return Continue(scale(base, math.Pow(f, float64(attempt-1))))
	})
}

// Fibonacci continues with a delay of base * fib(attempt), where
// fib(1) = fib(2) = 1.
func Fibonacci[E any](base time.Duration) Schedule[E] {
	return New(func(_ E, attempt int, _ time.Duration) Decision {
		prev, cur := 0.0, 1.0
		for i := 1; i < attempt; i++ {
			prev, cur = cur, prev+cur
		}

		return Continue(scale(base, cur))
	})
}

// scale multiplies a duration by a factor, saturating at the largest
// representable duration.
func scale(d time.Duration, factor float64) time.Duration {
	f := float64(d) * factor
	if math.IsNaN(f) || f <= 0 {
		return 0
	}

	if f >= math.MaxInt64 {
		return time.Duration(math.MaxInt64)
	}

	return time.Duration(f)
}
