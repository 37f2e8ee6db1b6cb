package schedule

import (
	"math/rand/v2"
	"time"
)

// Jitter represents a jitter strategy for retry delays. Jitter adds randomness
// to backoff delays to prevent the "thundering herd" problem where many clients
// retry at the same time, overwhelming the server.
//
// The value represents the amount of randomness:
//   - 0.0 or negative: No jitter (deterministic delays)
//   - 0.5: Equal jitter (50% random, 50% deterministic)
//   - 1.0 and above: Full jitter (completely random between 0 and delay)
//
// A jittered delay is never larger than the original delay and never negative.
type Jitter float64

// EqualJitter provides a balanced jitter strategy where the delay is 50% random
// and 50% deterministic.
//
// Formula: delay/2 + random(0, delay/2).
const EqualJitter Jitter = 0.5

// FullJitter provides maximum randomness where the delay is completely random
// between 0 and the calculated delay.
//
// Formula: random(0, delay).
const FullJitter Jitter = 1.0

// WithoutJitter disables jitter entirely, using the exact calculated delay.
const WithoutJitter Jitter = -1.0

// apply randomizes d using the given uniform sample in [0, 1).
func (j Jitter) apply(d time.Duration, sample float64) time.Duration {
	if j <= 0.0 || d <= 0 {
		return d
	}

	r := sample * float64(d)

	// Blend random value with original delay: jitter * random + (1 - jitter) * delay
	if j < 1.0 {
		r = float64(j)*r + float64(1.0-j)*float64(d)
	}

	out := time.Duration(r)
	if out > d {
		return d
	}

	if out < 0 {
		return 0
	}

	return out
}

// Jittered multiplies every delay by a uniform random factor in [0, 1].
func (s Schedule[E]) Jittered() Schedule[E] {
	return s.WithJitter(FullJitter)
}

// WithJitter randomizes every delay according to the given strategy.
func (s Schedule[E]) WithJitter(j Jitter) Schedule[E] {
	return s.mapDelay(func(delay time.Duration) time.Duration {
		return j.apply(delay, rand.Float64()) //nolint:gosec // G404: math/rand is sufficient for jitter
	})
}
