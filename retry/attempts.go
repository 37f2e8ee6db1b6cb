package retry

import "context"

type ctxKey string

const attemptKey ctxKey = "attempt"

func withAttempt(ctx context.Context, attempt int) context.Context {
	return context.WithValue(ctx, attemptKey, attempt)
}

// Attempt returns the 1-based number of the attempt currently running.
// Returns 0 outside of a retried operation.
//
//	err := retry.Do(ctx, sched, func(ctx context.Context) error {
//	    slog.Info("calling upstream", "attempt", retry.Attempt(ctx))
//	    return callUpstream(ctx)
//	})
func Attempt(ctx context.Context) int {
	attemptNum, ok := ctx.Value(attemptKey).(int)
	if !ok {
		return 0
	}

	return attemptNum
}
