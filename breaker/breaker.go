// Package breaker implements a circuit breaker: a fail-fast guard that stops
// calling a failing operation for a cooldown period.
//
// A breaker starts Closed. When its opening strategy trips it moves to Open
// and rejects every call with ErrExecutionRejected until the reset timeout
// elapses. The next call after that is admitted as the single HalfOpen trial;
// its success closes the breaker and its failure opens it again.
//
//	cb, err := breaker.New(breaker.WithMaxFailures(5), breaker.WithResetTimeout(time.Minute))
//	if err != nil {
//	    return err
//	}
//
//	user, err := breaker.Protect(ctx, cb, func(ctx context.Context) (*User, error) {
//	    return client.GetUser(ctx, id)
//	})
package breaker

import (
	"context"
	"errors"
	"fmt"
	"math"
	"time"

	"github.com/amp-labs/amp-resilience/either"
	"github.com/amp-labs/amp-resilience/logger"
	"go.uber.org/atomic"
)

var (
	// ErrExecutionRejected is returned, without any cause, for calls made
	// while the breaker is open. The operation was not attempted.
	ErrExecutionRejected = errors.New("circuit breaker rejected execution")

	// ErrInvalidConfig is returned by New for unusable options.
	ErrInvalidConfig = errors.New("invalid circuit breaker configuration")
)

// CircuitBreaker guards calls to an operation. It is safe for concurrent use.
type CircuitBreaker struct {
	opts options
	cell *atomic.Pointer[snapshot]
}

// New creates a closed CircuitBreaker.
func New(opts ...Option) (*CircuitBreaker, error) {
	o, err := buildOptions(opts)
	if err != nil {
		return nil, err
	}

	return newBreaker(o), nil
}

// Validate reports whether opts would be accepted by New, without creating a
// breaker or touching its metrics.
func Validate(opts ...Option) error {
	_, err := buildOptions(opts)

	return err
}

func buildOptions(opts []Option) (options, error) {
	o := defaultOptions()

	for _, opt := range opts {
		opt(&o)
	}

	if err := o.validate(); err != nil {
		return o, err
	}

	return o, nil
}

func newBreaker(o options) *CircuitBreaker {
	cb := &CircuitBreaker{
		opts: o,
		cell: atomic.NewPointer(&snapshot{
			state:        Closed,
			strategy:     o.strategy.reset(),
			resetTimeout: o.resetTimeout,
		}),
	}

	breakerState.WithLabelValues(o.name).Set(float64(Closed))

	return cb
}

func (o *options) validate() error {
	if o.strategy == nil {
		return fmt.Errorf("%w: opening strategy is required", ErrInvalidConfig)
	}

	if err := o.strategy.validate(); err != nil {
		return err
	}

	if o.resetTimeout <= 0 {
		return fmt.Errorf("%w: resetTimeout must be positive, got %s", ErrInvalidConfig, o.resetTimeout)
	}

	if o.backoffFactor < 1 || math.IsNaN(o.backoffFactor) || math.IsInf(o.backoffFactor, 0) {
		return fmt.Errorf("%w: backoff factor must be at least 1, got %v", ErrInvalidConfig, o.backoffFactor)
	}

	if o.backoffFactor > 1 && o.maxResetTimeout < o.resetTimeout {
		return fmt.Errorf("%w: maxResetTimeout %s is below resetTimeout %s",
			ErrInvalidConfig, o.maxResetTimeout, o.resetTimeout)
	}

	if o.clock == nil {
		return fmt.Errorf("%w: clock is required", ErrInvalidConfig)
	}

	return nil
}

// Name returns the name the breaker was configured with.
func (b *CircuitBreaker) Name() string {
	return b.opts.name
}

// State returns the stored state. An open breaker whose timeout has elapsed
// still reports Open; it moves to HalfOpen when the next call arrives.
func (b *CircuitBreaker) State() State {
	return b.cell.Load().state
}

// RetryAfter returns how much longer an open breaker keeps rejecting calls.
// It is zero for a closed breaker, for a half-open one, and for an open one
// whose timeout has already elapsed.
func (b *CircuitBreaker) RetryAfter() time.Duration {
	cur := b.cell.Load()
	if cur.state != Open {
		return 0
	}

	return max(cur.until.Sub(b.opts.clock.Now()), 0)
}

// Reset forces the breaker back to Closed with cleared counters.
func (b *CircuitBreaker) Reset() {
	prev := b.cell.Swap(b.closedSnapshot())
	if prev.state != Closed {
		b.transitioned(Closed)
	}
}

func (b *CircuitBreaker) closedSnapshot() *snapshot {
	return &snapshot{
		state:        Closed,
		strategy:     b.opts.strategy.reset(),
		resetTimeout: b.opts.resetTimeout,
	}
}

// Do runs op through the breaker. Rejected calls return ErrExecutionRejected
// and never invoke op; otherwise op's own error is returned unchanged.
func (b *CircuitBreaker) Do(ctx context.Context, op func(ctx context.Context) error) error {
	_, err := Protect(ctx, b, func(ctx context.Context) (struct{}, error) {
		return struct{}{}, op(ctx)
	})

	return err
}

// Protect runs op through the breaker and returns its result.
func Protect[T any](ctx context.Context, b *CircuitBreaker, op func(ctx context.Context) (T, error)) (T, error) {
	var zero T

	trial, err := b.acquire(ctx)
	if err != nil {
		return zero, err
	}

	failed := true

	defer func() {
		// A panic leaves failed set, so it is recorded before it propagates.
		b.record(ctx, trial, failed)
	}()

	out, err := op(ctx)
	failed = err != nil

	return out, err
}

// ProtectEither runs an operation whose failures are typed values. A Left
// result counts as a failure. The error return is only ever ErrExecutionRejected.
func ProtectEither[E, T any](
	ctx context.Context,
	b *CircuitBreaker,
	op func(ctx context.Context) either.Either[E, T],
) (either.Either[E, T], error) {
	trial, err := b.acquire(ctx)
	if err != nil {
		return either.Either[E, T]{}, err
	}

	failed := true

	defer func() {
		b.record(ctx, trial, failed)
	}()

	out := op(ctx)
	failed = out.IsLeft()

	return out, nil
}

// acquire decides whether a call may proceed. It reports whether the call is
// the half-open trial.
func (b *CircuitBreaker) acquire(ctx context.Context) (bool, error) {
	for {
		cur := b.cell.Load()

		switch cur.state {
		case Closed:
			return false, nil
		case Open:
			if b.opts.clock.Now().Before(cur.until) {
				return false, b.reject(ctx)
			}

			next := cur.with(func(n *snapshot) {
				n.state = HalfOpen
			})

			if !b.cell.CompareAndSwap(cur, next) {
				continue
			}

			b.transitioned(HalfOpen)

			if b.opts.onHalfOpen != nil {
				b.opts.onHalfOpen()
			}

			return true, nil
		default:
			// A trial call is already in flight.
			return false, b.reject(ctx)
		}
	}
}

func (b *CircuitBreaker) reject(ctx context.Context) error {
	breakerCalls.WithLabelValues(b.opts.name, "rejected").Inc()

	logger.Get(ctx).Debug("circuit breaker rejected call", "breaker", b.opts.name)

	if b.opts.onRejected != nil {
		b.opts.onRejected()
	}

	return ErrExecutionRejected
}

// record folds the outcome of an admitted call into the state cell.
func (b *CircuitBreaker) record(ctx context.Context, trial bool, failed bool) {
	result := "success"
	if failed {
		result = "failure"
	}

	breakerCalls.WithLabelValues(b.opts.name, result).Inc()

	for {
		cur := b.cell.Load()
		now := b.opts.clock.Now()

		var next *snapshot

		switch {
		case trial && cur.state == HalfOpen && failed:
			timeout := b.nextResetTimeout(cur.resetTimeout)
			next = cur.with(func(n *snapshot) {
				n.state = Open
				n.until = now.Add(timeout)
				n.resetTimeout = timeout
			})
		case trial && cur.state == HalfOpen:
			next = b.closedSnapshot()
		case !trial && cur.state == Closed && failed:
			strategy := cur.strategy.onFailure(now)
			if strategy.shouldOpen() {
				next = cur.with(func(n *snapshot) {
					n.state = Open
					n.strategy = strategy.reset()
					n.until = now.Add(cur.resetTimeout)
				})
			} else {
				next = cur.with(func(n *snapshot) {
					n.strategy = strategy
				})
			}
		case !trial && cur.state == Closed:
			next = cur.with(func(n *snapshot) {
				n.strategy = cur.strategy.onSuccess(now)
			})
		default:
			// The call finished after the breaker moved on (for example a
			// closed-era call completing while open); it no longer counts.
			return
		}

		if !b.cell.CompareAndSwap(cur, next) {
			continue
		}

		if next.state != cur.state {
			b.announce(ctx, next)
		}

		return
	}
}

func (b *CircuitBreaker) nextResetTimeout(current time.Duration) time.Duration {
	if b.opts.backoffFactor <= 1 {
		return current
	}

	next := float64(current) * b.opts.backoffFactor
	if next >= float64(b.opts.maxResetTimeout) {
		return b.opts.maxResetTimeout
	}

	return time.Duration(next)
}

func (b *CircuitBreaker) announce(ctx context.Context, next *snapshot) {
	b.transitioned(next.state)

	switch next.state {
	case Open:
		logger.Get(ctx).Warn("circuit breaker opened",
			"breaker", b.opts.name, "until", next.until, "reset_timeout", next.resetTimeout)

		if b.opts.onOpen != nil {
			b.opts.onOpen(next.until)
		}
	case Closed:
		logger.Get(ctx).Info("circuit breaker closed", "breaker", b.opts.name)

		if b.opts.onClosed != nil {
			b.opts.onClosed()
		}
	case HalfOpen:
	}
}

func (b *CircuitBreaker) transitioned(state State) {
	breakerTransitions.WithLabelValues(b.opts.name, state.String()).Inc()
	breakerState.WithLabelValues(b.opts.name).Set(float64(state))
}
