// Package worker implements the long-running queue consumer of the indexing
// pipeline. One worker processes one job at a time; horizontal scaling is
// achieved by running multiple worker processes against the same queue
// (competing consumers), which is safe because the store upsert is idempotent.
package worker

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/chatmem-go/internal/indexer"
	"github.com/54b3r/chatmem-go/internal/queue"
)

// Loop timing defaults.
const (
	// DefaultPopWait bounds each blocking pop. It also bounds how long a
	// graceful shutdown takes to observe the stop signal between iterations.
	DefaultPopWait = 5 * time.Second

	// DefaultBackoff is the fixed pause after a connection-level queue error,
	// avoiding a tight failure loop against an unavailable backend.
	DefaultBackoff = 1 * time.Second
)

// Config tunes the worker loop.
type Config struct {
	// PopWait is the bounded blocking-pop wait (default DefaultPopWait).
	PopWait time.Duration
	// Backoff is the pause after a queue connection error (default DefaultBackoff).
	Backoff time.Duration
	// Logger is the structured logger. Defaults to slog.Default.
	Logger *slog.Logger
	// Registry receives the worker's Prometheus metrics.
	// Defaults to prometheus.DefaultRegisterer.
	Registry prometheus.Registerer
}

// Worker is the single-threaded consumer loop: pop one job, process it
// through the same routine as synchronous mode, log the outcome, repeat.
type Worker struct {
	// queue is the durable job source.
	queue queue.Queue
	// proc is the shared processing routine.
	proc *indexer.Processor
	// cfg holds the resolved loop configuration.
	cfg Config
	// log is the structured logger for this worker.
	log *slog.Logger
	// metrics holds the worker's Prometheus instruments.
	metrics *workerMetrics
}

// New constructs a Worker from the given queue and processor.
func New(q queue.Queue, proc *indexer.Processor, cfg Config) (*Worker, error) {
	if q == nil {
		return nil, fmt.Errorf("worker: queue must not be nil")
	}
	if proc == nil {
		return nil, fmt.Errorf("worker: processor must not be nil")
	}
	if cfg.PopWait <= 0 {
		cfg.PopWait = DefaultPopWait
	}
	if cfg.Backoff <= 0 {
		cfg.Backoff = DefaultBackoff
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Registry == nil {
		cfg.Registry = prometheus.DefaultRegisterer
	}
	return &Worker{
		queue:   q,
		proc:    proc,
		cfg:     cfg,
		log:     cfg.Logger,
		metrics: newWorkerMetrics(cfg.Registry),
	}, nil
}

// Run executes the consumer loop until ctx is cancelled. It returns nil on
// orderly shutdown; the loop itself never terminates on job failures — one
// bad job is logged, counted, and discarded.
func (w *Worker) Run(ctx context.Context) error {
	w.log.Info("worker: started",
		slog.Duration("pop_wait", w.cfg.PopWait),
		slog.Duration("backoff", w.cfg.Backoff),
	)

	for {
		select {
		case <-ctx.Done():
			w.log.Info("worker: stopping")
			return nil
		default:
		}

		job, err := w.queue.Pop(ctx, w.cfg.PopWait)
		if err != nil {
			if ctx.Err() != nil {
				w.log.Info("worker: stopping")
				return nil
			}
			if errors.Is(err, queue.ErrBadPayload) {
				// The entry is already consumed; discard and move on.
				w.log.Error("worker: discarding malformed queue entry", slog.Any("error", err))
				w.metrics.jobsTotal.WithLabelValues("error").Inc()
				continue
			}
			w.log.Error("worker: queue error, backing off", slog.Any("error", err))
			w.metrics.queueErrorsTotal.Inc()
			select {
			case <-ctx.Done():
				return nil
			case <-time.After(w.cfg.Backoff):
			}
			continue
		}
		if job == nil {
			// Bounded wait elapsed with no work; loop to re-check the stop signal.
			continue
		}

		start := time.Now()
		if err := w.proc.Process(ctx, job); err != nil {
			// No per-job retry and no dead-letter queue: log and continue.
			w.log.Error("worker: job failed",
				slog.String("message_id", job.MessageID),
				slog.String("chat_id", job.ChatID),
				slog.Any("error", err),
			)
			w.metrics.jobsTotal.WithLabelValues("error").Inc()
			continue
		}

		elapsed := time.Since(start)
		w.metrics.jobsTotal.WithLabelValues("ok").Inc()
		w.metrics.jobDurationSeconds.Observe(elapsed.Seconds())
		w.log.Info("worker: job processed",
			slog.String("message_id", job.MessageID),
			slog.Duration("duration", elapsed),
		)
	}
}
