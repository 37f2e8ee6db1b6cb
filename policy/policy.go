// Package policy builds retry schedules and circuit breakers from
// configuration, either a YAML document or RESILIENCE_* environment
// variables.
//
//	name: payments
//	retry:
//	  kind: exponential
//	  base: 100ms
//	  factor: 2
//	  max_retries: 5
//	  max_delay: 5s
//	  jitter: full
//	breaker:
//	  max_failures: 5
//	  reset_timeout: 30s
package policy

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/amp-labs/amp-resilience/breaker"
	"github.com/amp-labs/amp-resilience/schedule"
	"gopkg.in/yaml.v3"
)

// ErrInvalidPolicy is returned for a policy that cannot be turned into a
// schedule or breaker.
var ErrInvalidPolicy = errors.New("invalid resilience policy")

// Schedule kinds.
const (
	KindForever     = "forever"
	KindSpaced      = "spaced"
	KindLinear      = "linear"
	KindExponential = "exponential"
	KindFibonacci   = "fibonacci"
)

// Policy is the configuration of one protected dependency.
type Policy struct {
	Name    string         `json:"name"              yaml:"name"`
	Retry   RetryPolicy    `json:"retry"             yaml:"retry"`
	Breaker *BreakerPolicy `json:"breaker,omitempty" yaml:"breaker,omitempty"`
}

// RetryPolicy describes a schedule. Zero durations and a nil MaxRetries mean
// "no limit".
type RetryPolicy struct {
	Kind       string        `json:"kind"        yaml:"kind"`
	Base       time.Duration `json:"base"        yaml:"base"`
	Factor     float64       `json:"factor"      yaml:"factor"`
	MaxRetries *uint         `json:"max_retries" yaml:"max_retries"`
	MaxDelay   time.Duration `json:"max_delay"   yaml:"max_delay"`
	MaxElapsed time.Duration `json:"max_elapsed" yaml:"max_elapsed"`
	Jitter     string        `json:"jitter"      yaml:"jitter"`
}

// BreakerPolicy describes a circuit breaker. Window selects a SlidingWindow
// strategy; Window together with FailureRate selects FailureRate; otherwise
// the breaker counts consecutive failures. A nil MaxFailures keeps the
// breaker's default; an explicit value must be positive.
type BreakerPolicy struct {
	MaxFailures     *int          `json:"max_failures"      yaml:"max_failures"`
	ResetTimeout    time.Duration `json:"reset_timeout"     yaml:"reset_timeout"`
	BackoffFactor   float64       `json:"backoff_factor"    yaml:"backoff_factor"`
	MaxResetTimeout time.Duration `json:"max_reset_timeout" yaml:"max_reset_timeout"`
	Window          time.Duration `json:"window"            yaml:"window"`
	MinCalls        int           `json:"min_calls"         yaml:"min_calls"`
	FailureRate     float64       `json:"failure_rate"      yaml:"failure_rate"`
}

// Load reads a policy from a YAML file.
func Load(path string) (*Policy, error) {
	data, err := os.ReadFile(path) //nolint:gosec // Intentional path-based loading
	if err != nil {
		return nil, fmt.Errorf("failed to read policy file %q: %w", path, err)
	}

	return Parse(data)
}

// LoadFS reads a policy from a YAML file in fsys.
func LoadFS(fsys fs.FS, path string) (*Policy, error) {
	data, err := fs.ReadFile(fsys, path)
	if err != nil {
		return nil, fmt.Errorf("failed to read policy from FS: %w", err)
	}

	return Parse(data)
}

// Parse decodes and validates a YAML policy.
func Parse(data []byte) (*Policy, error) {
	var p Policy

	if err := yaml.Unmarshal(data, &p); err != nil {
		return nil, fmt.Errorf("%w: failed to parse YAML: %w", ErrInvalidPolicy, err)
	}

	if err := p.Validate(); err != nil {
		return nil, err
	}

	return &p, nil
}

// Validate checks the policy without building anything.
func (p *Policy) Validate() error {
	if _, err := p.Retry.schedule(); err != nil {
		return err
	}

	if p.Breaker != nil {
		if err := breaker.Validate(p.Breaker.options()...); err != nil {
			return fmt.Errorf("%w: %w", ErrInvalidPolicy, err)
		}
	}

	return nil
}

// Schedule builds the retry schedule.
func (p *Policy) Schedule() (schedule.Schedule[error], error) {
	return p.Retry.schedule()
}

// NewBreaker builds the circuit breaker, or returns nil when the policy has
// none. Extra options are applied after the policy's own.
func (p *Policy) NewBreaker(opts ...breaker.Option) (*breaker.CircuitBreaker, error) {
	if p.Breaker == nil {
		return nil, nil //nolint:nilnil
	}

	all := append([]breaker.Option{breaker.WithName(p.Name)}, p.Breaker.options()...)

	cb, err := breaker.New(append(all, opts...)...)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidPolicy, err)
	}

	return cb, nil
}

func (r RetryPolicy) schedule() (schedule.Schedule[error], error) {
	var sched schedule.Schedule[error]

	if r.Base < 0 || r.MaxDelay < 0 || r.MaxElapsed < 0 {
		return sched, fmt.Errorf("%w: durations must not be negative", ErrInvalidPolicy)
	}

	switch strings.ToLower(r.Kind) {
	case KindForever, "":
		sched = schedule.Forever[error]()
	case KindSpaced:
		sched = schedule.Spaced[error](r.Base)
	case KindLinear:
		sched = schedule.Linear[error](r.Base)
	case KindExponential:
		if r.Factor != 0 && r.Factor < 1 {
			return sched, fmt.Errorf("%w: exponential factor must be at least 1, got %v", ErrInvalidPolicy, r.Factor)
		}

		sched = schedule.Exponential[error](r.Base, r.Factor)
	case KindFibonacci:
		sched = schedule.Fibonacci[error](r.Base)
	default:
		return sched, fmt.Errorf("%w: unknown schedule kind %q", ErrInvalidPolicy, r.Kind)
	}

	if r.MaxRetries != nil {
		sched = sched.And(schedule.Recurs[error](*r.MaxRetries))
	}

	if r.MaxDelay > 0 {
		sched = sched.WithMaxDelay(r.MaxDelay)
	}

	jitter, err := parseJitter(r.Jitter)
	if err != nil {
		return sched, err
	}

	if jitter > 0 {
		sched = sched.WithJitter(jitter)
	}

	// Applied last so the elapsed budget sees the delay actually slept.
	if r.MaxElapsed > 0 {
		sched = sched.UpTo(r.MaxElapsed)
	}

	return sched, nil
}

func parseJitter(s string) (schedule.Jitter, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "none":
		return schedule.WithoutJitter, nil
	case "full":
		return schedule.FullJitter, nil
	case "equal":
		return schedule.EqualJitter, nil
	default:
		f, err := strconv.ParseFloat(s, 64)
		if err != nil || f < 0 || f > 1 {
			return 0, fmt.Errorf("%w: jitter must be none, full, equal or a number in [0, 1], got %q",
				ErrInvalidPolicy, s)
		}

		return schedule.Jitter(f), nil
	}
}

func (b *BreakerPolicy) options() []breaker.Option {
	var opts []breaker.Option

	switch {
	case b.Window > 0 && b.FailureRate > 0:
		opts = append(opts, breaker.WithOpeningStrategy(breaker.FailureRate(b.Window, b.MinCalls, b.FailureRate)))
	case b.Window > 0:
		var maxFailures int
		if b.MaxFailures != nil {
			maxFailures = *b.MaxFailures
		}

		opts = append(opts, breaker.WithOpeningStrategy(breaker.SlidingWindow(b.Window, maxFailures)))
	case b.MaxFailures != nil:
		opts = append(opts, breaker.WithMaxFailures(*b.MaxFailures))
	}

	if b.ResetTimeout != 0 {
		opts = append(opts, breaker.WithResetTimeout(b.ResetTimeout))
	}

	if b.BackoffFactor != 0 {
		opts = append(opts, breaker.WithExponentialBackoff(b.BackoffFactor, b.MaxResetTimeout))
	}

	return opts
}
