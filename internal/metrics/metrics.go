// Package metrics provides Prometheus metrics for the analytics service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// IngestRowsTotal counts ingested rows by outcome (accepted, invalid_date, duplicate).
	IngestRowsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "analytics",
			Subsystem: "ingest",
			Name:      "rows_total",
			Help:      "Total number of ingested rows by outcome",
		},
		[]string{"outcome"},
	)

	// IngestRunsTotal counts ingestion runs by final status.
	IngestRunsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "analytics",
			Subsystem: "ingest",
			Name:      "runs_total",
			Help:      "Total number of ingestion runs by status",
		},
		[]string{"status"},
	)

	// IngestRunDuration tracks wall time of a whole ingestion run.
	IngestRunDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Namespace: "analytics",
			Subsystem: "ingest",
			Name:      "run_duration_seconds",
			Help:      "Duration of ingestion runs in seconds",
			Buckets:   []float64{0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60, 120},
		},
	)

	// IngestJobsInFlight is 1 while the ingestion worker is running a job.
	IngestJobsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Namespace: "analytics",
			Subsystem: "queue",
			Name:      "jobs_in_flight",
			Help:      "Number of ingestion jobs currently being processed",
		},
	)

	// HTTPRequestsTotal tracks served HTTP requests.
	HTTPRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "analytics",
			Subsystem: "http",
			Name:      "requests_total",
			Help:      "Total number of HTTP requests served",
		},
		[]string{"method", "path", "status_code"},
	)

	// HTTPRequestDuration tracks HTTP handler latency.
	HTTPRequestDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "analytics",
			Subsystem: "http",
			Name:      "request_duration_seconds",
			Help:      "Duration of HTTP requests in seconds",
			Buckets:   []float64{0.005, 0.01, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"method", "path"},
	)
)

// Outcome labels for IngestRowsTotal.
const (
	OutcomeAccepted    = "accepted"
	OutcomeInvalidDate = "invalid_date"
	OutcomeDuplicate   = "duplicate"
)
