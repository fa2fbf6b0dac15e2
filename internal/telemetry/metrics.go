package telemetry

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics — набор Prometheus-серий воркера, регистрируемых один раз при
// старте процесса.
var (
	JobsProcessedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "imageworker_jobs_processed_total",
		Help: "Total jobs that reached a terminal outcome, by style and outcome.",
	}, []string{"style", "outcome"})

	JobsRetriedTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "imageworker_jobs_retried_total",
		Help: "Total jobs handed to the backoff scheduler for a delayed republish, by error code.",
	}, []string{"error_code"})

	JobsDeadLetteredTotal = promauto.NewCounterVec(prometheus.CounterOpts{
		Name: "imageworker_jobs_dead_lettered_total",
		Help: "Total jobs nacked to the dead-letter queue, by error code.",
	}, []string{"error_code"})

	PhaseDurationSeconds = promauto.NewHistogramVec(prometheus.HistogramOpts{
		Name:    "imageworker_phase_duration_seconds",
		Help:    "Duration of a single pipeline phase (fetch/transform/store).",
		Buckets: prometheus.DefBuckets,
	}, []string{"phase"})

	PipelineDurationSeconds = promauto.NewHistogram(prometheus.HistogramOpts{
		Name:    "imageworker_pipeline_duration_seconds",
		Help:    "Sum of the recorded phase durations of a pipeline run; failed runs count only the phases they recorded.",
		Buckets: prometheus.DefBuckets,
	})

	InflightMessages = promauto.NewGaugeVec(prometheus.GaugeOpts{
		Name: "imageworker_inflight_messages",
		Help: "Messages currently being processed, by partition.",
	}, []string{"partition"})
)
