// Package scope ties resources to a bounded region of code. Every resource
// acquired in a scope is released exactly once when the scope ends, newest
// first, whether the body returned normally, failed, panicked or was
// cancelled.
//
//	n, err := scope.Run(ctx, func(ctx context.Context, s *scope.Scope) (int, error) {
//	    src, err := scope.AutoClose(ctx, s, func(context.Context) (*os.File, error) {
//	        return os.Open(in)
//	    })
//	    if err != nil {
//	        return 0, err
//	    }
//
//	    dst, err := scope.AutoClose(ctx, s, func(context.Context) (*os.File, error) {
//	        return os.Create(out)
//	    })
//	    if err != nil {
//	        return 0, err
//	    }
//
//	    written, err := io.Copy(dst, src)
//
//	    return int(written), err
//	})
//
// dst is closed before src.
package scope

import (
	"context"
	"errors"
	"fmt"
	"io"
	"runtime/debug"

	rerrors "github.com/amp-labs/amp-resilience/errors"
	"github.com/amp-labs/amp-resilience/logger"
	"github.com/google/uuid"
)

var (
	// ErrScopeClosed is returned when acquiring in a scope that already ended.
	ErrScopeClosed = errors.New("scope is closed")

	// ErrReleaseNil is returned by Acquire when no release function is given.
	ErrReleaseNil = errors.New("release is nil")
)

// ReleaseFunc undoes one acquisition.
type ReleaseFunc func(ctx context.Context, exit ExitCase) error

// Scope is an ordered list of pending releases. A Scope belongs to the
// goroutine running its body; use Zip2 for concurrent acquisition.
type Scope struct {
	id       string
	releases []ReleaseFunc
	closed   bool
}

func newScope() *Scope {
	return &Scope{id: uuid.NewString()}
}

// ID identifies the scope in logs.
func (s *Scope) ID() string {
	return s.id
}

// Defer registers a release that runs when the scope ends.
func (s *Scope) Defer(release ReleaseFunc) error {
	if s.closed {
		return ErrScopeClosed
	}

	if release == nil {
		return ErrReleaseNil
	}

	s.releases = append(s.releases, release)

	return nil
}

// Len returns the number of pending releases.
func (s *Scope) Len() int {
	return len(s.releases)
}

// close runs every pending release newest first and reports their errors.
// The releases get a context that is never cancelled.
func (s *Scope) close(ctx context.Context, exit ExitCase) error {
	if s.closed {
		return nil
	}

	s.closed = true

	releaseCtx := context.WithoutCancel(ctx)
	errs := rerrors.Collection{}

	for i := len(s.releases) - 1; i >= 0; i-- {
		if err := runRelease(releaseCtx, s.releases[i], exit); err != nil {
			scopeReleaseErrors.Inc()
			errs.Add(err)
		}

		scopeReleased.WithLabelValues(exit.Kind.String()).Inc()
	}

	s.releases = nil

	if errs.HasError() {
		logger.Get(releaseCtx).Warn("scope released with errors",
			"scope", s.id, "exit", exit.String(), "error", errs.GetError())
	}

	return errs.GetError()
}

func runRelease(ctx context.Context, release ReleaseFunc, exit ExitCase) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = rerrors.FromPanic(r, debug.Stack())
		}
	}()

	return release(ctx, exit)
}

// Run opens a scope, runs body in it and closes it. Release errors are
// joined with the body's error. A panic in body releases every resource
// and is then re-raised.
func Run[T any](ctx context.Context, body func(ctx context.Context, s *Scope) (T, error)) (out T, err error) {
	s := newScope()

	defer func() {
		if r := recover(); r != nil {
			_ = s.close(ctx, ExitCase{Kind: Failed, Err: rerrors.FromPanic(r, debug.Stack())})

			panic(r)
		}
	}()

	out, err = body(ctx, s)

	errs := rerrors.Collection{}
	errs.Add(err)
	errs.Add(s.close(ctx, exitCaseFor(ctx, err)))

	if errs.HasError() {
		var zero T

		return zero, errs.GetError()
	}

	return out, nil
}

// Acquire runs setup and, if it succeeds, registers release for the value it
// produced. A failed setup registers nothing.
func Acquire[R any](
	ctx context.Context,
	s *Scope,
	setup func(ctx context.Context) (R, error),
	release func(ctx context.Context, resource R, exit ExitCase) error,
) (R, error) {
	var zero R

	if s.closed {
		return zero, ErrScopeClosed
	}

	if release == nil {
		return zero, ErrReleaseNil
	}

	if err := ctx.Err(); err != nil {
		return zero, err
	}

	resource, err := setup(ctx)
	if err != nil {
		return zero, err
	}

	s.releases = append(s.releases, func(ctx context.Context, exit ExitCase) error {
		return release(ctx, resource, exit)
	})

	scopeAcquired.Inc()

	return resource, nil
}

// AutoClose acquires an io.Closer and closes it when the scope ends.
func AutoClose[R io.Closer](ctx context.Context, s *Scope, setup func(ctx context.Context) (R, error)) (R, error) {
	return Acquire(ctx, s, setup, func(_ context.Context, resource R, _ ExitCase) error {
		if err := resource.Close(); err != nil {
			return fmt.Errorf("closing resource: %w", err)
		}

		return nil
	})
}
