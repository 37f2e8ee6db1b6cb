// Package retry runs an operation repeatedly under the control of a
// schedule.Schedule until it succeeds, the schedule halts, or the context
// ends.
//
// The schedule is consulted after every failure with the failure value, the
// 1-based attempt number and the total delay spent so far. When it halts, the
// last failure is returned as is:
//
//	sched := schedule.Exponential[error](100 * time.Millisecond).
//	    And(schedule.Recurs[error](5)).
//	    Jittered()
//
//	user, err := retry.DoValue(ctx, sched, func(ctx context.Context) (*User, error) {
//	    return client.GetUser(ctx, id)
//	})
//
// Operations whose failures are values rather than errors use Typed, and
// callers that want to turn exhaustion into a value use OrElseEither.
package retry

import (
	"context"
	"errors"
	"time"

	"github.com/amp-labs/amp-resilience/breaker"
	"github.com/amp-labs/amp-resilience/clock"
	"github.com/amp-labs/amp-resilience/either"
	"github.com/amp-labs/amp-resilience/logger"
	"github.com/amp-labs/amp-resilience/schedule"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "github.com/amp-labs/amp-resilience/retry"

// minRejectedDelay is the shortest wait after a breaker rejection. It applies
// while a half-open trial is in flight, when the breaker has no open-until time.
const minRejectedDelay = 10 * time.Millisecond

// result is what the loop reports back to the typed entry points.
type result[E, T any] struct {
	value    either.Either[E, T]
	attempts int
	err      error
}

// attemptFunc runs one attempt. A non-nil error ends the loop without
// consulting the schedule.
type attemptFunc[E, T any] func(ctx context.Context) (either.Either[E, T], error)

// Do runs op until it returns nil or sched halts. On exhaustion the last
// error from op is returned unchanged. Cancellation while waiting returns
// ctx.Err(); an error wrapped with Abort stops the loop immediately.
func Do(ctx context.Context, sched schedule.Schedule[error], op func(ctx context.Context) error, opts ...Option) error {
	_, err := DoValue(ctx, sched, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	}, opts...)

	return err
}

// DoValue is Do for operations that produce a value.
func DoValue[T any](
	ctx context.Context,
	sched schedule.Schedule[error],
	op func(ctx context.Context) (T, error),
	opts ...Option,
) (T, error) {
	var zero T

	o := newOptions(opts)

	res := loop(ctx, sched, o, errorAttempt(o, op))
	if res.err != nil {
		return zero, res.err
	}

	if failure, failed := res.value.GetLeft(); failed {
		return zero, failure
	}

	out, _ := res.value.GetRight()

	return out, nil
}

// Typed retries an operation that reports failure as a Left value. The
// returned Either is the last outcome: Right on success, Left with the last
// failure once sched halts. The error return is reserved for the run itself
// ending early: cancellation, a refused budget or a rejecting breaker.
func Typed[E, T any](
	ctx context.Context,
	sched schedule.Schedule[E],
	op func(ctx context.Context) either.Either[E, T],
	opts ...Option,
) (either.Either[E, T], error) {
	o := newOptions(opts)

	attempt := func(ctx context.Context) (either.Either[E, T], error) {
		if o.breaker == nil {
			return op(ctx), nil
		}

		return breaker.ProtectEither(ctx, o.breaker, op)
	}

	res := loop(ctx, sched, o, attempt)
	if res.err != nil {
		return either.Either[E, T]{}, res.err
	}

	return res.value, nil
}

// OrElseEither retries op like DoValue, but converts exhaustion into a value.
// When sched halts, onExhausted receives the last error and the number of
// retries performed (attempts minus one) and its result becomes the Left
// side. Success is Right. An error from onExhausted is returned as is, as are
// aborts and cancellation.
func OrElseEither[U, T any](
	ctx context.Context,
	sched schedule.Schedule[error],
	op func(ctx context.Context) (T, error),
	onExhausted func(lastErr error, retries int) (U, error),
	opts ...Option,
) (either.Either[U, T], error) {
	o := newOptions(opts)

	res := loop(ctx, sched, o, errorAttempt(o, op))
	if res.err != nil {
		return either.Either[U, T]{}, res.err
	}

	if out, ok := res.value.GetRight(); ok {
		return either.Right[U](out), nil
	}

	lastErr, _ := res.value.GetLeft()

	fallback, err := onExhausted(lastErr, res.attempts-1)
	if err != nil {
		return either.Either[U, T]{}, err
	}

	return either.Left[U, T](fallback), nil
}

// errorAttempt adapts an error returning operation to the loop: the error
// becomes the Left failure, Abort ends the loop.
func errorAttempt[T any](o *options, op func(ctx context.Context) (T, error)) attemptFunc[error, T] {
	return func(ctx context.Context) (either.Either[error, T], error) {
		var (
			out T
			err error
		)

		if o.breaker != nil {
			out, err = breaker.Protect(ctx, o.breaker, op)
		} else {
			out, err = op(ctx)
		}

		if err == nil {
			return either.Right[error](out), nil
		}

		if cause, stop := permanentCause(err); stop {
			return either.Left[error, T](cause), &permanentError{cause}
		}

		return either.Left[error, T](err), nil
	}
}

// loop is the retry algorithm shared by every entry point.
func loop[E, T any](ctx context.Context, sched schedule.Schedule[E], o *options, op attemptFunc[E, T]) result[E, T] {
	ctx, span := otel.Tracer(tracerName).Start(ctx, "retry")
	defer span.End()

	span.SetAttributes(attribute.String("retry.name", o.name))

	var elapsed time.Duration

	res := result[E, T]{}

	finish := func(outcome string) result[E, T] {
		retryOutcomes.WithLabelValues(o.name, outcome).Inc()
		span.SetAttributes(
			attribute.Int("retry.attempts", res.attempts),
			attribute.String("retry.outcome", outcome),
		)

		if outcome == outcomeSuccess {
			span.SetStatus(codes.Ok, outcome)
		} else {
			span.SetStatus(codes.Error, outcome)
		}

		return res
	}

	for attempt := 1; ; attempt++ {
		if err := ctx.Err(); err != nil {
			res.err = err

			return finish(outcomeCanceled)
		}

		if !o.budget.sendOK(attempt > 1, o.clock.Now()) {
			res.err = ErrExhausted

			return finish(outcomeBudget)
		}

		res.attempts = attempt
		retryAttempts.WithLabelValues(o.name).Inc()

		value, err := runAttempt(ctx, o.timeout, attempt, op)
		res.value = value

		if err != nil {
			var p *permanentError
			if errors.As(err, &p) {
				res.err = p.error

				return finish(outcomeAborted)
			}

			res.err = err

			span.RecordError(err)

			if errors.Is(err, breaker.ErrExecutionRejected) {
				return finish(outcomeRejected)
			}

			return finish(outcomeCanceled)
		}

		failure, failed := value.GetLeft()
		if !failed {
			return finish(outcomeSuccess)
		}

		if err := ctx.Err(); err != nil {
			res.err = err

			return finish(outcomeCanceled)
		}

		decision := sched.Decide(failure, attempt, elapsed)
		if !decision.Continue {
			logger.Get(ctx).Debug("retry schedule halted",
				"retry", o.name, "attempts", attempt, "elapsed", elapsed)

			return finish(outcomeExhausted)
		}

		delay := decision.Delay
		if o.breaker != nil && isRejection(failure) {
			delay = max(delay, o.breaker.RetryAfter(), minRejectedDelay)
		}

		logger.Get(ctx).Debug("retrying after failure",
			"retry", o.name, "attempt", attempt, "delay", delay)

		retryDelay.WithLabelValues(o.name).Observe(delay.Seconds())

		if err := clock.Sleep(ctx, o.clock, delay); err != nil {
			res.err = err

			return finish(outcomeCanceled)
		}

		elapsed += delay
	}
}

// isRejection reports whether an attempt failed because the breaker refused it.
func isRejection[E any](failure E) bool {
	err, ok := any(failure).(error)

	return ok && errors.Is(err, breaker.ErrExecutionRejected)
}

func runAttempt[E, T any](
	ctx context.Context,
	timeout Timeout,
	attempt int,
	op attemptFunc[E, T],
) (either.Either[E, T], error) {
	ctx = withAttempt(ctx, attempt)

	if timeout > 0 {
		var cancel context.CancelFunc

		ctx, cancel = context.WithTimeout(ctx, time.Duration(timeout))
		defer cancel()
	}

	return op(ctx)
}
