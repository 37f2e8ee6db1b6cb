package breaker

import (
	"github.com/puzpuzpuz/xsync/v3"
)

// Registry hands out one CircuitBreaker per name, all built from the same
// options. It is safe for concurrent use.
type Registry struct {
	opts     options
	breakers *xsync.MapOf[string, *CircuitBreaker]
}

// NewRegistry validates opts once and returns an empty registry.
func NewRegistry(opts ...Option) (*Registry, error) {
	o := defaultOptions()

	for _, opt := range opts {
		opt(&o)
	}

	if err := o.validate(); err != nil {
		return nil, err
	}

	return &Registry{
		opts:     o,
		breakers: xsync.NewMapOf[string, *CircuitBreaker](),
	}, nil
}

// Get returns the breaker registered under name, creating it on first use.
func (r *Registry) Get(name string) *CircuitBreaker {
	cb, _ := r.breakers.LoadOrCompute(name, func() *CircuitBreaker {
		o := r.opts
		o.name = name

		return newBreaker(o)
	})

	return cb
}

// States returns a point-in-time view of every registered breaker's state.
func (r *Registry) States() map[string]State {
	out := make(map[string]State, r.breakers.Size())

	r.breakers.Range(func(name string, cb *CircuitBreaker) bool {
		out[name] = cb.State()

		return true
	})

	return out
}

// ResetAll closes every registered breaker.
func (r *Registry) ResetAll() {
	r.breakers.Range(func(_ string, cb *CircuitBreaker) bool {
		cb.Reset()

		return true
	})
}
