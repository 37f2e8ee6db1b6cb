package breaker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// breakerCalls counts protected calls by outcome (success, failure, rejected).
	breakerCalls = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "breaker_calls_total",
		Help: "The total number of calls made through a circuit breaker",
	}, []string{"breaker", "result"})

	// breakerTransitions counts state changes by target state.
	breakerTransitions = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "breaker_transitions_total",
		Help: "The total number of circuit breaker state transitions",
	}, []string{"breaker", "state"})

	// breakerState exposes the current state (0 closed, 1 open, 2 half open).
	breakerState = promauto.NewGaugeVec(prometheus.GaugeOpts{ //nolint:gochecknoglobals
		Name: "breaker_state",
		Help: "The current state of a circuit breaker",
	}, []string{"breaker"})
)
