package schedule

import "time"

// And continues only while both schedules continue, waiting for the longer
// of the two delays.
func (s Schedule[E]) And(other Schedule[E]) Schedule[E] {
	return s.both(other, func(left, right time.Duration) time.Duration {
		return max(left, right)
	})
}

// ZipLeft continues only while both schedules continue, keeping the
// receiver's delay.
func (s Schedule[E]) ZipLeft(other Schedule[E]) Schedule[E] {
	return s.both(other, func(left, _ time.Duration) time.Duration {
		return left
	})
}

// ZipRight continues only while both schedules continue, keeping the other
// schedule's delay.
func (s Schedule[E]) ZipRight(other Schedule[E]) Schedule[E] {
	return s.both(other, func(_, right time.Duration) time.Duration {
		return right
	})
}

func (s Schedule[E]) both(other Schedule[E], pick func(left, right time.Duration) time.Duration) Schedule[E] {
	return Schedule[E]{
		decide: func(failure E, attempt int, elapsed time.Duration, quiet bool) Decision {
			left := s.eval(failure, attempt, elapsed, quiet)
			right := other.eval(failure, attempt, elapsed, quiet)

			if !left.Continue || !right.Continue {
				return Halt
			}

			return Continue(pick(left.Delay, right.Delay))
		},
	}
}

// Or continues while either schedule continues, using the shorter delay of
// the schedules that want to continue.
func (s Schedule[E]) Or(other Schedule[E]) Schedule[E] {
	return Schedule[E]{
		decide: func(failure E, attempt int, elapsed time.Duration, quiet bool) Decision {
			left := s.eval(failure, attempt, elapsed, quiet)
			right := other.eval(failure, attempt, elapsed, quiet)

			switch {
			case left.Continue && right.Continue:
				return Continue(min(left.Delay, right.Delay))
			case left.Continue:
				return left
			case right.Continue:
				return right
			default:
				return Halt
			}
		},
	}
}

// AndThen runs the receiver until it halts and then hands over to next, whose
// attempt numbering restarts at 1 from the attempt where the receiver halted.
//
// Example:
//
//	// Three quick retries, then up to five slow ones.
//	schedule.Recurs[error](3).AndThen(
//	    schedule.Recurs[error](5).And(schedule.Spaced[error](time.Second)))
func (s Schedule[E]) AndThen(next Schedule[E]) Schedule[E] {
	return Schedule[E]{
		decide: func(failure E, attempt int, elapsed time.Duration, quiet bool) Decision {
			// Find where the receiver first halts without firing its side effects.
			for earlier := 1; earlier < attempt; earlier++ {
				if !s.eval(failure, earlier, elapsed, true).Continue {
					return next.eval(failure, attempt-earlier+1, elapsed, quiet)
				}
			}

			current := s.eval(failure, attempt, elapsed, quiet)
			if current.Continue {
				return current
			}

			return next.eval(failure, 1, elapsed, quiet)
		},
	}
}

// DoWhile continues only while the receiver continues and the predicate
// holds for the failure.
//
// Example:
//
//	schedule.Forever[error]().DoWhile(func(err error, _ int) bool {
//	    return errors.Is(err, ErrUnavailable)
//	})
func (s Schedule[E]) DoWhile(predicate func(failure E, attempt int) bool) Schedule[E] {
	return Schedule[E]{
		decide: func(failure E, attempt int, elapsed time.Duration, quiet bool) Decision {
			decision := s.eval(failure, attempt, elapsed, quiet)
			if !decision.Continue || !predicate(failure, attempt) {
				return Halt
			}

			return decision
		},
	}
}

// DoUntil continues only while the receiver continues and the predicate does
// not yet hold for the failure.
func (s Schedule[E]) DoUntil(predicate func(failure E, attempt int) bool) Schedule[E] {
	return s.DoWhile(func(failure E, attempt int) bool {
		return !predicate(failure, attempt)
	})
}

// Log invokes sideEffect with every failure and attempt the schedule is asked
// about, passing the receiver's decision through unchanged.
func (s Schedule[E]) Log(sideEffect func(failure E, attempt int)) Schedule[E] {
	return Schedule[E]{
		decide: func(failure E, attempt int, elapsed time.Duration, quiet bool) Decision {
			if !quiet && sideEffect != nil {
				sideEffect(failure, attempt)
			}

			return s.eval(failure, attempt, elapsed, quiet)
		},
	}
}

// WithMaxDelay caps every delay at maxDelay.
func (s Schedule[E]) WithMaxDelay(maxDelay time.Duration) Schedule[E] {
	return s.mapDelay(func(delay time.Duration) time.Duration {
		return min(delay, maxDelay)
	})
}

// UpTo halts once waiting for the next delay would push the accumulated delay
// past maxElapsed.
func (s Schedule[E]) UpTo(maxElapsed time.Duration) Schedule[E] {
	return Schedule[E]{
		decide: func(failure E, attempt int, elapsed time.Duration, quiet bool) Decision {
			decision := s.eval(failure, attempt, elapsed, quiet)
			if !decision.Continue || elapsed > maxElapsed || decision.Delay > maxElapsed-elapsed {
				return Halt
			}

			return decision
		},
	}
}

func (s Schedule[E]) mapDelay(f func(time.Duration) time.Duration) Schedule[E] {
	return Schedule[E]{
		decide: func(failure E, attempt int, elapsed time.Duration, quiet bool) Decision {
			decision := s.eval(failure, attempt, elapsed, quiet)
			if !decision.Continue {
				return Halt
			}

			return Continue(f(decision.Delay))
		},
	}
}
