package saga

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// sagaTransactions counts finished transactions by outcome (committed, compensated).
	sagaTransactions = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "saga_transactions_total",
		Help: "The total number of saga transactions by outcome",
	}, []string{"saga", "outcome"})

	// sagaSteps counts step actions by result.
	sagaSteps = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "saga_steps_total",
		Help: "The total number of saga step actions by result",
	}, []string{"saga", "result"})

	// sagaCompensations counts compensations by result.
	sagaCompensations = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "saga_compensations_total",
		Help: "The total number of saga compensations by result",
	}, []string{"saga", "result"})
)
