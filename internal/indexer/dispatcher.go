package indexer

import (
	"context"
	"fmt"

	"github.com/54b3r/chatmem-go/internal/memory"
	"github.com/54b3r/chatmem-go/internal/queue"
)

// Mode selects how Index processes jobs. It is read once at process start;
// the chosen strategy is held behind the Dispatcher interface so no call
// site branches on a flag.
type Mode string

const (
	// ModeSync processes jobs inline: Index returns only after the
	// processing routine completes, and its failure is visible to the caller.
	ModeSync Mode = "sync"

	// ModeQueue enqueues jobs for a worker process: Index returns once the
	// queue acknowledges the push; the processing outcome is not observable
	// by the caller. Used where embedding latency must stay off the
	// request/response critical path.
	ModeQueue Mode = "queue"
)

// ParseMode maps the INDEXING_MODE setting to a Mode. Only the exact
// sentinel "queue" selects asynchronous dispatch; absence or any other
// value means synchronous.
func ParseMode(s string) Mode {
	if s == string(ModeQueue) {
		return ModeQueue
	}
	return ModeSync
}

// Dispatcher is the single entry point by which the chat pipeline hands a
// persisted message to the indexing pipeline.
type Dispatcher interface {
	// Index routes one job according to the mode fixed at construction.
	Index(ctx context.Context, job *memory.IndexJob) error
}

// NewDispatcher returns the dispatcher for the given mode. Sync mode
// requires a Processor; queue mode requires a Queue.
func NewDispatcher(mode Mode, proc *Processor, q queue.Queue) (Dispatcher, error) {
	switch mode {
	case ModeSync:
		if proc == nil {
			return nil, fmt.Errorf("indexer: sync dispatch requires a processor")
		}
		return &syncDispatcher{proc: proc}, nil
	case ModeQueue:
		if q == nil {
			return nil, fmt.Errorf("indexer: queue dispatch requires a queue")
		}
		return &queueDispatcher{queue: q}, nil
	default:
		return nil, fmt.Errorf("indexer: unknown mode %q", mode)
	}
}

// syncDispatcher runs the processing routine inline.
type syncDispatcher struct {
	proc *Processor
}

func (d *syncDispatcher) Index(ctx context.Context, job *memory.IndexJob) error {
	return d.proc.Process(ctx, job)
}

// queueDispatcher hands the job to the durable queue.
type queueDispatcher struct {
	queue queue.Queue
}

func (d *queueDispatcher) Index(ctx context.Context, job *memory.IndexJob) error {
	if job == nil {
		return fmt.Errorf("indexer: job must not be nil")
	}
	if err := d.queue.Push(ctx, *job); err != nil {
		return fmt.Errorf("indexer: enqueue message %s: %w", job.MessageID, err)
	}
	return nil
}
