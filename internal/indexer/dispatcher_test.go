package indexer

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/54b3r/chatmem-go/internal/memory"
)

// fakeQueue is an in-memory FIFO Queue for dispatcher and equivalence tests.
type fakeQueue struct {
	// jobs holds pushed jobs in order.
	jobs []memory.IndexJob
	// pushErr, when set, fails every Push.
	pushErr error
}

func (f *fakeQueue) Push(ctx context.Context, job memory.IndexJob) error {
	if f.pushErr != nil {
		return f.pushErr
	}
	f.jobs = append(f.jobs, job)
	return nil
}

func (f *fakeQueue) Pop(ctx context.Context, wait time.Duration) (*memory.IndexJob, error) {
	if len(f.jobs) == 0 {
		return nil, nil
	}
	job := f.jobs[0]
	f.jobs = f.jobs[1:]
	return &job, nil
}

func (f *fakeQueue) Close() error { return nil }

// TestParseMode verifies that only the exact sentinel "queue" selects
// asynchronous dispatch.
func TestParseMode(t *testing.T) {
	t.Parallel()

	cases := []struct {
		in   string
		want Mode
	}{
		{"queue", ModeQueue},
		{"", ModeSync},
		{"sync", ModeSync},
		{"Queue", ModeSync},
		{"async", ModeSync},
	}

	for _, tc := range cases {
		if got := ParseMode(tc.in); got != tc.want {
			t.Errorf("ParseMode(%q): expected %v, got %v", tc.in, tc.want, got)
		}
	}
}

// TestNewDispatcher_Validation verifies each mode requires its dependency.
func TestNewDispatcher_Validation(t *testing.T) {
	t.Parallel()

	if _, err := NewDispatcher(ModeSync, nil, nil); err == nil {
		t.Error("expected error for sync mode without processor")
	}
	if _, err := NewDispatcher(ModeQueue, nil, nil); err == nil {
		t.Error("expected error for queue mode without queue")
	}
	if _, err := NewDispatcher(Mode("bogus"), nil, nil); err == nil {
		t.Error("expected error for unknown mode")
	}
}

// TestSyncDispatcher_ProcessesInline verifies that sync dispatch runs the
// processing routine before returning and surfaces its result.
func TestSyncDispatcher_ProcessesInline(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	proc, _ := NewProcessor(&fakeEmbedder{vector: []float32{0.1}}, store, ProcessorConfig{})

	d, err := NewDispatcher(ModeSync, proc, nil)
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}

	if err := d.Index(context.Background(), testJob("msg-sync")); err != nil {
		t.Fatalf("Index: %v", err)
	}

	if _, ok := store.points["msg-sync"]; !ok {
		t.Error("expected sync dispatch to upsert before returning")
	}
}

// TestQueueDispatcher_EnqueuesWithoutProcessing verifies that queue dispatch
// only pushes the job: nothing is embedded or stored.
func TestQueueDispatcher_EnqueuesWithoutProcessing(t *testing.T) {
	t.Parallel()

	q := &fakeQueue{}

	d, err := NewDispatcher(ModeQueue, nil, q)
	if err != nil {
		t.Fatalf("NewDispatcher: %v", err)
	}

	job := testJob("msg-q")
	if err := d.Index(context.Background(), job); err != nil {
		t.Fatalf("Index: %v", err)
	}

	if len(q.jobs) != 1 {
		t.Fatalf("expected 1 queued job, got %d", len(q.jobs))
	}
	if q.jobs[0].MessageID != "msg-q" {
		t.Errorf("expected job msg-q, got %q", q.jobs[0].MessageID)
	}
}

// TestQueueDispatcher_PushErrorPropagates verifies enqueue failures surface.
func TestQueueDispatcher_PushErrorPropagates(t *testing.T) {
	t.Parallel()

	q := &fakeQueue{pushErr: errors.New("redis down")}
	d, _ := NewDispatcher(ModeQueue, nil, q)

	if err := d.Index(context.Background(), testJob("msg-q")); err == nil {
		t.Error("expected push error to propagate")
	}
}

// TestModeEquivalence verifies both modes produce the same stored point for
// the same job: sync processes inline, queue mode after a push/pop cycle.
func TestModeEquivalence(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	job := testJob("msg-eq")

	// Sync path.
	syncStore := newFakeStore()
	syncProc, _ := NewProcessor(&fakeEmbedder{vector: []float32{0.9}}, syncStore, ProcessorConfig{})
	syncDisp, _ := NewDispatcher(ModeSync, syncProc, nil)
	if err := syncDisp.Index(ctx, job); err != nil {
		t.Fatalf("sync Index: %v", err)
	}

	// Queue path: push, pop, process — what the worker does.
	q := &fakeQueue{}
	queueDisp, _ := NewDispatcher(ModeQueue, nil, q)
	if err := queueDisp.Index(ctx, job); err != nil {
		t.Fatalf("queue Index: %v", err)
	}

	popped, err := q.Pop(ctx, 0)
	if err != nil || popped == nil {
		t.Fatalf("Pop: job=%v err=%v", popped, err)
	}

	queueStore := newFakeStore()
	queueProc, _ := NewProcessor(&fakeEmbedder{vector: []float32{0.9}}, queueStore, ProcessorConfig{})
	if err := queueProc.Process(ctx, popped); err != nil {
		t.Fatalf("Process: %v", err)
	}

	sp := syncStore.points["msg-eq"]
	qp := queueStore.points["msg-eq"]
	if sp.Preview != qp.Preview || sp.ChatID != qp.ChatID || sp.UserID != qp.UserID || sp.Role != qp.Role {
		t.Errorf("modes diverged: sync=%+v queue=%+v", sp, qp)
	}
}
