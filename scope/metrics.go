package scope

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// scopeAcquired counts successful acquisitions.
	scopeAcquired = promauto.NewCounter(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "scope_acquired_total",
		Help: "The total number of resources acquired in a scope",
	})

	// scopeReleased counts releases by the way the scope exited.
	scopeReleased = promauto.NewCounterVec(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "scope_released_total",
		Help: "The total number of resources released by a scope",
	}, []string{"exit"})

	// scopeReleaseErrors counts release functions that failed.
	scopeReleaseErrors = promauto.NewCounter(prometheus.CounterOpts{ //nolint:gochecknoglobals
		Name: "scope_release_errors_total",
		Help: "The total number of failed resource releases",
	})
)
