package policy

import (
	"context"
	"errors"
	"fmt"

	"github.com/amp-labs/amp-resilience/envutil"
)

// Environment variables read by FromEnv. The breaker is only configured when
// at least one RESILIENCE_BREAKER_* variable is present.
const (
	EnvName               = "RESILIENCE_NAME"
	EnvRetryKind          = "RESILIENCE_RETRY_KIND"
	EnvRetryBase          = "RESILIENCE_RETRY_BASE"
	EnvRetryFactor        = "RESILIENCE_RETRY_FACTOR"
	EnvRetryMaxRetries    = "RESILIENCE_RETRY_MAX_RETRIES"
	EnvRetryMaxDelay      = "RESILIENCE_RETRY_MAX_DELAY"
	EnvRetryMaxElapsed    = "RESILIENCE_RETRY_MAX_ELAPSED"
	EnvRetryJitter        = "RESILIENCE_RETRY_JITTER"
	EnvBreakerMaxFailures = "RESILIENCE_BREAKER_MAX_FAILURES"
	EnvBreakerReset       = "RESILIENCE_BREAKER_RESET_TIMEOUT"
	EnvBreakerBackoff     = "RESILIENCE_BREAKER_BACKOFF_FACTOR"
	EnvBreakerMaxReset    = "RESILIENCE_BREAKER_MAX_RESET_TIMEOUT"
	EnvBreakerWindow      = "RESILIENCE_BREAKER_WINDOW"
	EnvBreakerMinCalls    = "RESILIENCE_BREAKER_MIN_CALLS"
	EnvBreakerFailureRate = "RESILIENCE_BREAKER_FAILURE_RATE"
)

// FromEnv builds a policy from RESILIENCE_* environment variables (or the
// overrides carried by ctx, see envutil.WithEnvOverride). Unset variables
// keep their zero value; malformed ones are reported as ErrInvalidPolicy.
func FromEnv(ctx context.Context) (*Policy, error) {
	var (
		p    Policy
		errs []error
	)

	read := func(err error) {
		if err != nil && !errors.Is(err, envutil.ErrEnvVarMissing) {
			errs = append(errs, err)
		}
	}

	var err error

	p.Name = envutil.String(ctx, EnvName).ValueOrElse("default")

	p.Retry.Kind, err = envutil.String(ctx, EnvRetryKind).Value()
	read(err)

	p.Retry.Base, err = envutil.Duration(ctx, EnvRetryBase).Value()
	read(err)

	p.Retry.Factor, err = envutil.Float64(ctx, EnvRetryFactor).Value()
	read(err)

	maxRetries := envutil.Uint(ctx, EnvRetryMaxRetries)
	maxRetries.DoWithValue(func(n uint) { p.Retry.MaxRetries = &n })
	_, err = maxRetries.Value()
	read(err)

	p.Retry.MaxDelay, err = envutil.Duration(ctx, EnvRetryMaxDelay).Value()
	read(err)

	p.Retry.MaxElapsed, err = envutil.Duration(ctx, EnvRetryMaxElapsed).Value()
	read(err)

	p.Retry.Jitter, err = envutil.String(ctx, EnvRetryJitter).Value()
	read(err)

	var (
		b       BreakerPolicy
		present bool
	)

	breakerVar := func(set bool, err error) {
		present = present || set
		read(err)
	}

	maxFailures := envutil.Int(ctx, EnvBreakerMaxFailures)
	maxFailures.DoWithValue(func(n int) { b.MaxFailures = &n })
	_, err = maxFailures.Value()
	breakerVar(maxFailures.HasValue(), err)

	reset := envutil.Duration(ctx, EnvBreakerReset)
	b.ResetTimeout, err = reset.Value()
	breakerVar(reset.HasValue(), err)

	backoff := envutil.Float64(ctx, EnvBreakerBackoff)
	b.BackoffFactor, err = backoff.Value()
	breakerVar(backoff.HasValue(), err)

	maxReset := envutil.Duration(ctx, EnvBreakerMaxReset)
	b.MaxResetTimeout, err = maxReset.Value()
	breakerVar(maxReset.HasValue(), err)

	window := envutil.Duration(ctx, EnvBreakerWindow)
	b.Window, err = window.Value()
	breakerVar(window.HasValue(), err)

	minCalls := envutil.Int(ctx, EnvBreakerMinCalls)
	b.MinCalls, err = minCalls.Value()
	breakerVar(minCalls.HasValue(), err)

	rate := envutil.Float64(ctx, EnvBreakerFailureRate)
	b.FailureRate, err = rate.Value()
	breakerVar(rate.HasValue(), err)

	if len(errs) > 0 {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPolicy, errors.Join(errs...))
	}

	if present {
		p.Breaker = &b
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}

	return &p, nil
}
