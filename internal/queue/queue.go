// Package queue provides the durable FIFO job queue connecting the indexing
// dispatcher (producer) to worker processes (consumers). Delivery is
// at-least-once: a crash between pop and successful processing can redeliver
// a job. The pipeline tolerates this because the vector store upsert is
// idempotent — a redelivered job produces the same final store state.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/54b3r/chatmem-go/internal/memory"
)

// ErrBadPayload marks a dequeued entry whose payload could not be decoded
// into an IndexJob. Consumers should discard the entry and continue; it is a
// job-level failure, not a connection-level one.
var ErrBadPayload = errors.New("queue: malformed job payload")

// Queue is the contract for a durable FIFO channel of indexing jobs.
// Any number of competing consumers may pop from the same queue; each entry
// is delivered to exactly one of them (at least once overall).
// Implementations must be safe to call from multiple goroutines.
type Queue interface {
	// Push appends a job to the queue and returns once the queue backend
	// has acknowledged the entry as durable.
	Push(ctx context.Context, job memory.IndexJob) error

	// Pop removes and returns the oldest job, blocking up to wait when the
	// queue is empty. Returns (nil, nil) when the wait elapses with no job —
	// the bounded wait is what keeps consumer shutdown latency bounded.
	Pop(ctx context.Context, wait time.Duration) (*memory.IndexJob, error)

	// Close releases the connection to the queue backend.
	Close() error
}
