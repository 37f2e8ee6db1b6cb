package scope

import (
	"context"
	"runtime/debug"

	rerrors "github.com/amp-labs/amp-resilience/errors"
	"golang.org/x/sync/errgroup"
)

// Zip2 runs fa and fb concurrently, each in its own child scope. When both
// succeed the two child scopes are merged into s as a single entry, so their
// resources are released together, after anything acquired later in s and
// before anything acquired earlier. Resources of fa and fb have no order
// relative to each other.
//
// If either branch fails, the other branch's context is cancelled, both child
// scopes are released at once and the first error is returned, joined with
// any release errors.
//
// A panic in either branch is treated as a failure of that branch: both child
// scopes are released, then the panic is re-raised on the calling goroutine.
func Zip2[A, B any](
	ctx context.Context,
	s *Scope,
	fa func(ctx context.Context, s *Scope) (A, error),
	fb func(ctx context.Context, s *Scope) (B, error),
) (A, B, error) {
	var (
		a A
		b B
	)

	if s.closed {
		return a, b, ErrScopeClosed
	}

	left, right := newScope(), newScope()

	var panicA, panicB any

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() (err error) {
		defer recoverBranch(&panicA, &err)

		a, err = fa(groupCtx, left)

		return err
	})

	group.Go(func() (err error) {
		defer recoverBranch(&panicB, &err)

		b, err = fb(groupCtx, right)

		return err
	})

	if err := group.Wait(); err != nil {
		releaseErr := closeBoth(ctx, right, left, exitCaseFor(ctx, err))

		if panicA != nil {
			panic(panicA)
		}

		if panicB != nil {
			panic(panicB)
		}

		errs := rerrors.Collection{}
		errs.Add(err)
		errs.Add(releaseErr)

		var (
			zeroA A
			zeroB B
		)

		return zeroA, zeroB, errs.GetError()
	}

	s.releases = append(s.releases, func(ctx context.Context, exit ExitCase) error {
		return closeBoth(ctx, right, left, exit)
	})

	return a, b, nil
}

// recoverBranch stores a recovered panic and turns it into the branch error
// so the group cancels the sibling.
func recoverBranch(recovered *any, err *error) {
	if r := recover(); r != nil {
		*recovered = r
		*err = rerrors.FromPanic(r, debug.Stack())
	}
}

// closeBoth releases two child scopes concurrently and joins their errors.
func closeBoth(ctx context.Context, first, second *Scope, exit ExitCase) error {
	var group errgroup.Group

	errs := make([]error, 2) //nolint:mnd

	group.Go(func() error {
		errs[0] = first.close(ctx, exit)

		return nil
	})

	group.Go(func() error {
		errs[1] = second.close(ctx, exit)

		return nil
	})

	_ = group.Wait()

	collected := rerrors.Collection{}
	for _, err := range errs {
		collected.Add(err)
	}

	return collected.GetError()
}
