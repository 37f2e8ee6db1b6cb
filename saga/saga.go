// Package saga runs a sequence of steps, each paired with a compensating
// action, and undoes the completed steps in reverse order when a later one
// fails.
//
//	order := saga.New(func(ctx context.Context, tx *saga.Tx) (Receipt, error) {
//	    res, err := saga.Step(ctx, tx, "reserve", inventory.Reserve, inventory.Release)
//	    if err != nil {
//	        return Receipt{}, err
//	    }
//
//	    charge, err := saga.Step(ctx, tx, "charge", payments.Charge, payments.Refund)
//	    if err != nil {
//	        return Receipt{}, err
//	    }
//
//	    return Receipt{Reservation: res, Charge: charge}, nil
//	})
//
//	receipt, err := order.Transact(ctx)
//
// If "charge" fails, "reserve" is compensated and the charge error is
// returned. Compensation failures are logged and journaled but never replace
// the error that caused the rollback.
package saga

import (
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"time"

	rerrors "github.com/amp-labs/amp-resilience/errors"
	"github.com/amp-labs/amp-resilience/logger"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
)

const tracerName = "github.com/amp-labs/amp-resilience/saga"

// ErrTxClosed is returned by Step when the transaction already finished.
var ErrTxClosed = errors.New("saga transaction is closed")

// Saga is a lazily run transaction body. It is immutable and may be run any
// number of times; each run gets its own Tx.
type Saga[T any] struct {
	body func(ctx context.Context, tx *Tx) (T, error)
}

// New wraps body as a Saga. Nothing runs until Transact.
func New[T any](body func(ctx context.Context, tx *Tx) (T, error)) Saga[T] {
	return Saga[T]{body: body}
}

// Run is New(body).Transact(ctx, opts...).
func Run[T any](ctx context.Context, body func(ctx context.Context, tx *Tx) (T, error), opts ...Option) (T, error) {
	return New(body).Transact(ctx, opts...)
}

// Option configures one transaction.
type Option func(*options)

type options struct {
	name    string
	journal Journal
}

// WithName labels the transaction in logs, spans, metrics and the journal.
func WithName(name string) Option {
	return func(o *options) {
		o.name = name
	}
}

// WithJournal records every step event in j.
func WithJournal(j Journal) Option {
	return func(o *options) {
		o.journal = j
	}
}

// Transact runs the body. On success the body's value is returned and no
// compensation runs. If the body returns an error, panics or the context is
// cancelled, the compensations of all succeeded steps run newest first and
// the triggering failure is returned unchanged (a panic is re-raised after
// the rollback). Compensations receive a context that is never cancelled.
func (s Saga[T]) Transact(ctx context.Context, opts ...Option) (out T, err error) {
	o := options{name: "saga"}
	for _, opt := range opts {
		opt(&o)
	}

	tx := &Tx{
		id:      uuid.NewString(),
		name:    o.name,
		journal: o.journal,
	}

	ctx = logger.With(ctx, "saga", tx.name, "saga_id", tx.id)

	ctx, span := otel.Tracer(tracerName).Start(ctx, "saga."+tx.name)
	defer span.End()

	span.SetAttributes(
		attribute.String("saga.name", tx.name),
		attribute.String("saga.id", tx.id),
	)

	defer func() {
		if r := recover(); r != nil {
			cause := rerrors.FromPanic(r, debug.Stack())

			span.RecordError(cause)
			span.SetStatus(codes.Error, "panic")

			tx.rollback(ctx, cause)
			sagaTransactions.WithLabelValues(tx.name, "compensated").Inc()

			panic(r)
		}
	}()

	out, err = s.body(ctx, tx)
	if err == nil {
		tx.commit()
		sagaTransactions.WithLabelValues(tx.name, "committed").Inc()
		span.SetStatus(codes.Ok, "committed")

		return out, nil
	}

	span.RecordError(err)
	span.SetStatus(codes.Error, err.Error())

	tx.rollback(ctx, err)
	sagaTransactions.WithLabelValues(tx.name, "compensated").Inc()

	var zero T

	return zero, err
}

// Tx is the handle a saga body uses to register steps. It is confined to the
// goroutine running the body.
type Tx struct {
	id      string
	name    string
	journal Journal
	undo    []compensation
	next    int
	closed  bool
}

type compensation struct {
	index int
	name  string
	run   func(ctx context.Context) error
}

// ID returns the unique ID of this run of the saga.
func (tx *Tx) ID() string {
	return tx.id
}

// Step runs action and, if it succeeds, registers compensate bound to its
// result. A failed action is not compensated. If ctx is already done the
// action is skipped and ctx.Err() is returned, which the body should return
// to trigger the rollback.
func Step[A any](
	ctx context.Context,
	tx *Tx,
	name string,
	action func(ctx context.Context) (A, error),
	compensate func(ctx context.Context, result A) error,
) (A, error) {
	var zero A

	if tx.closed {
		return zero, fmt.Errorf("%w: step %q", ErrTxClosed, name)
	}

	if err := ctx.Err(); err != nil {
		return zero, err
	}

	index := tx.next
	tx.next++

	tx.record(ctx, Event{Step: name, Index: index, Type: EventStarted})

	result, err := action(ctx)
	if err != nil {
		sagaSteps.WithLabelValues(tx.name, "failed").Inc()
		tx.record(ctx, Event{Step: name, Index: index, Type: EventFailed, Err: err.Error()})

		return zero, err
	}

	sagaSteps.WithLabelValues(tx.name, "succeeded").Inc()
	tx.record(ctx, Event{Step: name, Index: index, Type: EventSucceeded})

	if compensate != nil {
		tx.undo = append(tx.undo, compensation{
			index: index,
			name:  name,
			run: func(ctx context.Context) error {
				return compensate(ctx, result)
			},
		})
	}

	return result, nil
}

func (tx *Tx) commit() {
	tx.closed = true
	tx.undo = nil
}

// rollback runs every registered compensation newest first. Failures are
// collected for logging only.
func (tx *Tx) rollback(ctx context.Context, cause error) {
	tx.closed = true

	undoCtx := context.WithoutCancel(ctx)

	var failures rerrors.Collection

	for i := len(tx.undo) - 1; i >= 0; i-- {
		c := tx.undo[i]

		tx.record(undoCtx, Event{Step: c.name, Index: c.index, Type: EventUndoStarted})

		if err := runCompensation(undoCtx, c); err != nil {
			failures.Add(err)
			sagaCompensations.WithLabelValues(tx.name, "failed").Inc()
			tx.record(undoCtx, Event{Step: c.name, Index: c.index, Type: EventUndoFailed, Err: err.Error()})

			logger.Get(undoCtx).Error("saga compensation failed",
				"error", logger.AnnotateError(err, "step", c.name, "step_index", c.index),
				"cause", cause)

			continue
		}

		sagaCompensations.WithLabelValues(tx.name, "succeeded").Inc()
		tx.record(undoCtx, Event{Step: c.name, Index: c.index, Type: EventUndoFinished})
	}

	tx.undo = nil

	if failures.HasError() {
		logger.Get(undoCtx).Warn("saga rolled back with compensation failures",
			"failed", failures.Len(), "error", failures.GetError())
	} else {
		logger.Get(undoCtx).Debug("saga rolled back", "cause", cause)
	}
}

func runCompensation(ctx context.Context, c compensation) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = rerrors.FromPanic(r, debug.Stack())
		}
	}()

	return c.run(ctx)
}

func (tx *Tx) record(ctx context.Context, event Event) {
	if tx.journal == nil {
		return
	}

	event.SagaID = tx.id
	event.Saga = tx.name
	event.At = time.Now()

	if err := tx.journal.Record(ctx, event); err != nil {
		logger.Get(ctx).Warn("saga journal rejected event", "event", event.String(), "error", err)
	}
}
