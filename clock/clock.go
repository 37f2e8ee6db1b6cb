// Package clock abstracts the passage of time so that retry delays and
// circuit breaker timeouts can be driven deterministically in tests.
package clock

import (
	"context"
	"sync"
	"time"
)

// Clock tells the time and produces timers.
type Clock interface {
	Now() time.Time
	After(d time.Duration) <-chan time.Time
}

// Real is the wall clock.
func Real() Clock {
	return realClock{}
}

type realClock struct{}

func (realClock) Now() time.Time {
	return time.Now()
}

func (realClock) After(d time.Duration) <-chan time.Time {
	return time.After(d)
}

// Sleep blocks for d on the given clock, returning early with ctx.Err() if the
// context is done first. A non-positive duration returns immediately unless
// the context is already done.
func Sleep(ctx context.Context, clk Clock, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}

	if d <= 0 {
		return nil
	}

	if clk == nil {
		clk = Real()
	}

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-clk.After(d):
		return nil
	}
}

// Fake is a manually advanced clock. Timers created with After fire once
// Advance moves the clock to or past their deadline.
type Fake struct {
	mu      sync.Mutex
	now     time.Time
	waiters []fakeWaiter
}

type fakeWaiter struct {
	deadline time.Time
	ch       chan time.Time
}

// NewFake returns a Fake clock starting at the given instant.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()

	return f.now
}

func (f *Fake) After(d time.Duration) <-chan time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()

	ch := make(chan time.Time, 1)

	if d <= 0 {
		ch <- f.now

		return ch
	}

	f.waiters = append(f.waiters, fakeWaiter{deadline: f.now.Add(d), ch: ch})

	return ch
}

// Advance moves the clock forward and fires every timer that is now due.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.now = f.now.Add(d)

	pending := f.waiters[:0]

	for _, w := range f.waiters {
		if w.deadline.After(f.now) {
			pending = append(pending, w)

			continue
		}

		w.ch <- f.now
	}

	f.waiters = pending
}

// Waiters reports how many timers are still pending.
func (f *Fake) Waiters() int {
	f.mu.Lock()
	defer f.mu.Unlock()

	return len(f.waiters)
}
