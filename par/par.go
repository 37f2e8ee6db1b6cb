// Package par runs independent fetches concurrently and joins their results.
// The first failure cancels the remaining work and is returned; a panic in a
// task is converted to an error.
package par

import (
	"context"
	"runtime/debug"

	"github.com/alitto/pond/v2"
	rerrors "github.com/amp-labs/amp-resilience/errors"
	"golang.org/x/sync/errgroup"
)

// Zip runs fa and fb concurrently and combines their results.
//
//	profile, err := par.Zip(ctx, fetchUser, fetchOrders, func(u User, o []Order) Profile {
//	    return Profile{User: u, Orders: o}
//	})
func Zip[A, B, C any](
	ctx context.Context,
	fa func(ctx context.Context) (A, error),
	fb func(ctx context.Context) (B, error),
	combine func(A, B) C,
) (C, error) {
	var (
		a    A
		b    B
		zero C
	)

	group, ctx := errgroup.WithContext(ctx)

	group.Go(func() (err error) {
		defer recoverInto(&err)

		a, err = fa(ctx)

		return err
	})

	group.Go(func() (err error) {
		defer recoverInto(&err)

		b, err = fb(ctx)

		return err
	})

	if err := group.Wait(); err != nil {
		return zero, err
	}

	return combine(a, b), nil
}

// Map applies f to every item with at most concurrency calls in flight and
// returns the results in input order. A concurrency below 1 means one worker
// per item.
func Map[T, R any](
	ctx context.Context,
	items []T,
	concurrency int,
	f func(ctx context.Context, item T) (R, error),
) ([]R, error) {
	if len(items) == 0 {
		return nil, nil //nolint:nilnil
	}

	if concurrency < 1 {
		concurrency = len(items)
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	pool := pond.NewResultPool[R](concurrency)
	defer pool.StopAndWait()

	group := pool.NewGroupContext(ctx)

	for _, item := range items {
		group.SubmitErr(func() (out R, err error) {
			defer recoverInto(&err)

			if err := ctx.Err(); err != nil {
				return out, err
			}

			out, err = f(ctx, item)
			if err != nil {
				cancel()
			}

			return out, err
		})
	}

	results, err := group.Wait()
	if err != nil {
		return nil, err
	}

	return results, nil
}

func recoverInto(err *error) {
	if r := recover(); r != nil {
		*err = rerrors.FromPanic(r, debug.Stack())
	}
}
