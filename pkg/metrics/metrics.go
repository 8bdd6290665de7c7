// Package metrics registers the service's Prometheus collectors.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// UpstreamRequests counts Backboard gateway calls by operation and
	// outcome ("ok", "error").
	UpstreamRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "civicsim",
			Subsystem: "upstream",
			Name:      "requests_total",
			Help:      "Backboard gateway requests by operation and outcome.",
		},
		[]string{"operation", "outcome"},
	)

	// UpstreamDuration observes Backboard gateway call latency.
	UpstreamDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "civicsim",
			Subsystem: "upstream",
			Name:      "request_duration_seconds",
			Help:      "Backboard gateway request latency by operation.",
			Buckets:   []float64{0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30, 60},
		},
		[]string{"operation"},
	)

	// SimulationRuns counts completed simulation pipelines by outcome
	// ("complete", "clarification", "error").
	SimulationRuns = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "civicsim",
			Subsystem: "simulation",
			Name:      "runs_total",
			Help:      "Simulation pipeline runs by outcome.",
		},
		[]string{"outcome"},
	)

	// SimulationDuration observes end-to-end simulation latency.
	SimulationDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "civicsim",
			Subsystem: "simulation",
			Name:      "duration_seconds",
			Help:      "End-to-end simulation pipeline latency.",
			Buckets:   []float64{1, 5, 10, 20, 30, 60, 120, 300},
		},
	)

	// CacheLookups counts fingerprint cache lookups by result
	// ("hit", "miss").
	CacheLookups = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "civicsim",
			Subsystem: "cache",
			Name:      "lookups_total",
			Help:      "Fingerprint cache lookups by result.",
		},
		[]string{"result"},
	)
)
