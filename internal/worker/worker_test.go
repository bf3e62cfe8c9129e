package worker

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/chatmem-go/internal/indexer"
	"github.com/54b3r/chatmem-go/internal/memory"
	"github.com/54b3r/chatmem-go/internal/queue"
)

// scriptedQueue returns pre-programmed pop results in order, then empty.
type scriptedQueue struct {
	mu sync.Mutex
	// script is the ordered list of pop outcomes.
	script []popResult
	// pops counts Pop calls.
	pops int
}

type popResult struct {
	job *memory.IndexJob
	err error
}

func (s *scriptedQueue) Push(ctx context.Context, job memory.IndexJob) error { return nil }

func (s *scriptedQueue) Pop(ctx context.Context, wait time.Duration) (*memory.IndexJob, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pops++
	if len(s.script) == 0 {
		return nil, nil
	}
	r := s.script[0]
	s.script = s.script[1:]
	return r.job, r.err
}

func (s *scriptedQueue) Close() error { return nil }

// recordingEmbedder satisfies memory.Embedder and records processed texts.
type recordingEmbedder struct {
	mu    sync.Mutex
	texts []string
}

func (r *recordingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.texts = append(r.texts, text)
	return []float32{0.1, 0.2}, nil
}

func (r *recordingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, tx := range texts {
		v, _ := r.Embed(ctx, tx)
		out[i] = v
	}
	return out, nil
}

func (r *recordingEmbedder) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.texts)
}

// memStore is a minimal VectorStore recording upserts.
type memStore struct {
	mu      sync.Mutex
	points  map[string]memory.Point
	failFor map[string]bool
}

func newMemStore() *memStore {
	return &memStore{points: make(map[string]memory.Point), failFor: make(map[string]bool)}
}

func (m *memStore) EnsureCollection(ctx context.Context) error { return nil }

func (m *memStore) Upsert(ctx context.Context, p memory.Point) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.failFor[p.MessageID] {
		return fmt.Errorf("store rejected %s", p.MessageID)
	}
	m.points[p.MessageID] = p
	return nil
}

func (m *memStore) DeleteByMessageID(ctx context.Context, id string) error { return nil }
func (m *memStore) DeleteByChatID(ctx context.Context, id string) error    { return nil }
func (m *memStore) DeleteByUserID(ctx context.Context, id string) error    { return nil }
func (m *memStore) Search(ctx context.Context, v []float32, u string, o memory.SearchOptions) ([]memory.SearchHit, error) {
	return nil, nil
}
func (m *memStore) Close() error { return nil }

func (m *memStore) has(id string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.points[id]
	return ok
}

func workerJob(id string) *memory.IndexJob {
	return &memory.IndexJob{
		MessageID: id,
		ChatID:    "chat-1",
		UserID:    "user-1",
		Role:      memory.RoleUser,
		Parts:     []memory.Part{{Type: "text", Text: "long enough message content"}},
	}
}

// newTestProcessor wires a processor over the given store.
func newTestProcessor(t *testing.T, store memory.VectorStore) *indexer.Processor {
	t.Helper()
	proc, err := indexer.NewProcessor(&recordingEmbedder{}, store, indexer.ProcessorConfig{})
	if err != nil {
		t.Fatalf("NewProcessor: %v", err)
	}
	return proc
}

// runUntil runs the worker until cond is true or the deadline passes, then
// cancels the loop and waits for Run to return.
func runUntil(t *testing.T, w *Worker, cond func() bool) {
	t.Helper()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	deadline := time.After(5 * time.Second)
	for !cond() {
		select {
		case <-deadline:
			cancel()
			t.Fatal("condition not reached before deadline")
		case <-time.After(10 * time.Millisecond):
		}
	}

	cancel()
	if err := <-done; err != nil {
		t.Fatalf("Run returned error: %v", err)
	}
}

// TestWorker_ProcessesJobs verifies dequeued jobs are processed in order.
func TestWorker_ProcessesJobs(t *testing.T) {
	t.Parallel()

	q := &scriptedQueue{script: []popResult{
		{job: workerJob("w1")},
		{job: workerJob("w2")},
	}}
	store := newMemStore()

	w, err := New(q, newTestProcessor(t, store), Config{
		PopWait:  10 * time.Millisecond,
		Registry: prometheus.NewRegistry(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	runUntil(t, w, func() bool { return store.has("w1") && store.has("w2") })
}

// TestWorker_JobFailureDoesNotStopLoop verifies a failing job is discarded
// and the loop continues to the next one.
func TestWorker_JobFailureDoesNotStopLoop(t *testing.T) {
	t.Parallel()

	q := &scriptedQueue{script: []popResult{
		{job: workerJob("bad")},
		{job: workerJob("good")},
	}}
	store := newMemStore()
	store.failFor["bad"] = true

	w, err := New(q, newTestProcessor(t, store), Config{
		PopWait:  10 * time.Millisecond,
		Registry: prometheus.NewRegistry(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	runUntil(t, w, func() bool { return store.has("good") })

	if store.has("bad") {
		t.Error("expected the failing job not to be stored")
	}
}

// TestWorker_BadPayloadDiscarded verifies a malformed queue entry is skipped
// without backoff and the loop keeps draining.
func TestWorker_BadPayloadDiscarded(t *testing.T) {
	t.Parallel()

	q := &scriptedQueue{script: []popResult{
		{err: fmt.Errorf("%w: unexpected token", queue.ErrBadPayload)},
		{job: workerJob("after-bad")},
	}}
	store := newMemStore()

	w, err := New(q, newTestProcessor(t, store), Config{
		PopWait:  10 * time.Millisecond,
		Backoff:  time.Minute, // would time the test out if bad payload triggered backoff
		Registry: prometheus.NewRegistry(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	runUntil(t, w, func() bool { return store.has("after-bad") })
}

// TestWorker_BacksOffOnQueueError verifies a connection-level queue error
// pauses the loop instead of hot-looping.
func TestWorker_BacksOffOnQueueError(t *testing.T) {
	t.Parallel()

	q := &scriptedQueue{script: []popResult{
		{err: errors.New("connection refused")},
		{job: workerJob("recovered")},
	}}
	store := newMemStore()

	w, err := New(q, newTestProcessor(t, store), Config{
		PopWait:  10 * time.Millisecond,
		Backoff:  50 * time.Millisecond,
		Registry: prometheus.NewRegistry(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	start := time.Now()
	runUntil(t, w, func() bool { return store.has("recovered") })

	if elapsed := time.Since(start); elapsed < 50*time.Millisecond {
		t.Errorf("expected at least one backoff pause, finished in %v", elapsed)
	}
}

// TestWorker_StopsOnCancel verifies Run returns promptly when the context is
// cancelled while the queue is empty.
func TestWorker_StopsOnCancel(t *testing.T) {
	t.Parallel()

	q := &scriptedQueue{}
	w, err := New(q, newTestProcessor(t, newMemStore()), Config{
		PopWait:  10 * time.Millisecond,
		Registry: prometheus.NewRegistry(),
	})
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	time.Sleep(50 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if err != nil {
			t.Fatalf("Run returned error: %v", err)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}

// TestNew_Validation verifies constructor checks.
func TestNew_Validation(t *testing.T) {
	t.Parallel()

	if _, err := New(nil, newTestProcessor(t, newMemStore()), Config{Registry: prometheus.NewRegistry()}); err == nil {
		t.Error("expected error for nil queue")
	}
	if _, err := New(&scriptedQueue{}, nil, Config{Registry: prometheus.NewRegistry()}); err == nil {
		t.Error("expected error for nil processor")
	}
}
