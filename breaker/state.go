package breaker

import (
	"fmt"
	"time"
)

// State is the externally visible state of a CircuitBreaker.
type State int32

const (
	// Closed lets every call through and counts failures.
	Closed State = iota
	// Open rejects every call until the reset timeout has elapsed.
	Open
	// HalfOpen lets a single trial call through.
	HalfOpen
)

func (s State) String() string {
	switch s {
	case Closed:
		return "closed"
	case Open:
		return "open"
	case HalfOpen:
		return "half_open"
	default:
		return fmt.Sprintf("State(%d)", int32(s))
	}
}

// snapshot is one immutable value of the breaker's state cell. Every
// transition swaps in a fresh snapshot, so the state and the counters
// held by the strategy always change together.
type snapshot struct {
	state        State
	strategy     OpeningStrategy
	until        time.Time
	resetTimeout time.Duration
}

func (s *snapshot) with(f func(next *snapshot)) *snapshot {
	next := *s
	f(&next)

	return &next
}
