package retry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// retryAttempts counts every invocation of a retried operation.
	retryAttempts = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "retry_attempts_total",
		Help: "The total number of attempts made by retried operations",
	}, []string{"name"})

	// retryOutcomes counts finished runs by how they ended.
	retryOutcomes = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "retry_outcomes_total",
		Help: "The total number of retry runs by outcome",
	}, []string{"name", "outcome"})

	// retryDelay observes the delays chosen by schedules.
	retryDelay = promauto.NewHistogramVec(prometheus.HistogramOpts{ //nolint:gochecknoglobals
		Name:    "retry_delay_seconds",
		Help:    "Delay between retry attempts",
		Buckets: prometheus.ExponentialBuckets(0.001, 4, 10), //nolint:mnd
	}, []string{"name"})
)

const (
	outcomeSuccess   = "success"
	outcomeExhausted = "exhausted"
	outcomeAborted   = "aborted"
	outcomeCanceled  = "canceled"
	outcomeBudget    = "budget"
	outcomeRejected  = "rejected"
)
