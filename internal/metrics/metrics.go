// internal/metrics/metrics.go
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// HttpRequestsTotal counts requests served by the status API.
	HttpRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gcmc_http_requests_total",
			Help: "Total number of http requests handled by the status API.",
		},
		[]string{"path", "method", "code"},
	)

	// JobExecutionTotal counts settled simulation jobs by terminal state.
	JobExecutionTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gcmc_job_executions_total",
			Help: "Total number of simulation jobs that reached a terminal state.",
		},
		[]string{"mode", "status"},
	)

	// JobsInFlight is the number of jobs currently holding a limiter slot.
	JobsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "gcmc_jobs_in_flight",
			Help: "Number of simulation jobs currently running.",
		},
	)

	// JobDuration observes wall time from preparation to terminal state.
	JobDuration = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gcmc_job_duration_seconds",
			Help:    "Wall time of a simulation job.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		},
		[]string{"mode"},
	)

	// CompletionWait observes how long jobs waited for the completion marker.
	CompletionWait = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "gcmc_completion_wait_seconds",
			Help:    "Time spent polling for the completion marker.",
			Buckets: prometheus.ExponentialBuckets(1, 4, 10),
		},
		[]string{"mode", "result"},
	)

	// RowsWritten counts rows appended to each result file.
	RowsWritten = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "gcmc_rows_written_total",
			Help: "Total number of rows appended to result files.",
		},
		[]string{"file"},
	)
)
