// Package worker — metrics.go registers the Prometheus metrics owned by the
// indexing worker loop.
package worker

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// workerMetrics holds all Prometheus metrics owned by the worker.
// A single instance is created in New and stored on Worker so that tests can
// inject a fresh prometheus.Registry without polluting the default one.
type workerMetrics struct {
	// jobsTotal counts dequeued jobs, partitioned by outcome: "ok" (indexed
	// or skipped as policy) or "error" (processing failed, job discarded).
	jobsTotal *prometheus.CounterVec

	// jobDurationSeconds records the wall-clock duration of each processed
	// job from dequeue to upsert completion.
	jobDurationSeconds prometheus.Histogram

	// queueErrorsTotal counts connection-level queue failures that triggered
	// the worker's backoff.
	queueErrorsTotal prometheus.Counter
}

// newWorkerMetrics registers all worker metrics against reg and returns the
// populated workerMetrics. promauto.With(reg) registers into the provided
// registry rather than the global default — this keeps unit tests hermetic.
func newWorkerMetrics(reg prometheus.Registerer) *workerMetrics {
	factory := promauto.With(reg)

	return &workerMetrics{
		jobsTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: "chatmem",
			Subsystem: "worker",
			Name:      "jobs_total",
			Help:      "Total number of indexing jobs dequeued, partitioned by outcome.",
		}, []string{"outcome"}),

		jobDurationSeconds: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: "chatmem",
			Subsystem: "worker",
			Name:      "job_duration_seconds",
			Help:      "Wall-clock duration of indexing jobs from dequeue to completion.",
			Buckets:   []float64{0.05, 0.1, 0.25, 0.5, 1, 2.5, 5, 10, 30},
		}),

		queueErrorsTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: "chatmem",
			Subsystem: "worker",
			Name:      "queue_errors_total",
			Help:      "Total number of connection-level queue errors that triggered a backoff.",
		}),
	}
}
