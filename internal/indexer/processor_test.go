package indexer

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/54b3r/chatmem-go/internal/memory"
)

// fakeEmbedder returns a fixed vector for any text and records its calls.
type fakeEmbedder struct {
	// vector is returned by every Embed call.
	vector []float32
	// err, when set, is returned instead.
	err error
	// calls records every text embedded.
	calls []string
}

func (f *fakeEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	f.calls = append(f.calls, text)
	if f.err != nil {
		return nil, f.err
	}
	return f.vector, nil
}

func (f *fakeEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, 0, len(texts))
	for _, tx := range texts {
		v, err := f.Embed(ctx, tx)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, nil
}

// fakeStore is a map-backed VectorStore keyed by message id.
type fakeStore struct {
	// points holds upserted points by message id.
	points map[string]memory.Point
	// ensureCalls counts EnsureCollection invocations.
	ensureCalls int
	// upsertErr, when set, fails every Upsert.
	upsertErr error
	// ensureErr, when set, fails every EnsureCollection.
	ensureErr error
}

func newFakeStore() *fakeStore {
	return &fakeStore{points: make(map[string]memory.Point)}
}

func (f *fakeStore) EnsureCollection(ctx context.Context) error {
	f.ensureCalls++
	return f.ensureErr
}

func (f *fakeStore) Upsert(ctx context.Context, p memory.Point) error {
	if f.upsertErr != nil {
		return f.upsertErr
	}
	f.points[p.MessageID] = p
	return nil
}

func (f *fakeStore) DeleteByMessageID(ctx context.Context, id string) error {
	delete(f.points, id)
	return nil
}

func (f *fakeStore) DeleteByChatID(ctx context.Context, chatID string) error {
	for id, p := range f.points {
		if p.ChatID == chatID {
			delete(f.points, id)
		}
	}
	return nil
}

func (f *fakeStore) DeleteByUserID(ctx context.Context, userID string) error {
	for id, p := range f.points {
		if p.UserID == userID {
			delete(f.points, id)
		}
	}
	return nil
}

func (f *fakeStore) Search(ctx context.Context, vector []float32, userID string, opts memory.SearchOptions) ([]memory.SearchHit, error) {
	return nil, nil
}

func (f *fakeStore) Close() error { return nil }

// testJob returns a valid job with enough text to clear the length filter.
func testJob(messageID string) *memory.IndexJob {
	return &memory.IndexJob{
		MessageID: messageID,
		ChatID:    "chat-1",
		UserID:    "user-1",
		Role:      memory.RoleUser,
		Parts: []memory.Part{
			{Type: "text", Text: "how do I rotate the access keys?"},
		},
	}
}

// TestProcess_IndexesMessage verifies the happy path: text is extracted,
// embedded, and upserted with the full payload.
func TestProcess_IndexesMessage(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{vector: []float32{0.1, 0.2, 0.3}}
	store := newFakeStore()

	proc, err := NewProcessor(emb, store, ProcessorConfig{})
	if err != nil {
		t.Fatalf("NewProcessor: %v", err)
	}
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	proc.now = func() time.Time { return fixed }

	if err := proc.Process(context.Background(), testJob("msg-1")); err != nil {
		t.Fatalf("Process: %v", err)
	}

	p, ok := store.points["msg-1"]
	if !ok {
		t.Fatal("expected point msg-1 to be upserted")
	}
	if p.ChatID != "chat-1" || p.UserID != "user-1" || p.Role != memory.RoleUser {
		t.Errorf("unexpected payload: %+v", p)
	}
	if p.Preview != "how do I rotate the access keys?" {
		t.Errorf("unexpected preview: %q", p.Preview)
	}
	if !p.Timestamp.Equal(fixed) {
		t.Errorf("expected timestamp %v, got %v", fixed, p.Timestamp)
	}
	if len(p.Vector) != 3 {
		t.Errorf("expected the embedder's vector, got %v", p.Vector)
	}
	if store.ensureCalls != 1 {
		t.Errorf("expected 1 EnsureCollection call, got %d", store.ensureCalls)
	}
}

// TestProcess_SkipsShortText verifies that a job whose extracted text is
// below the minimum length is a silent no-op: no error, no embedding, and
// no collection creation.
func TestProcess_SkipsShortText(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{vector: []float32{0.1}}
	store := newFakeStore()

	proc, err := NewProcessor(emb, store, ProcessorConfig{})
	if err != nil {
		t.Fatalf("NewProcessor: %v", err)
	}

	job := testJob("msg-short")
	job.Parts = []memory.Part{{Type: "text", Text: "ok thx"}}

	if err := proc.Process(context.Background(), job); err != nil {
		t.Fatalf("expected nil error for skipped job, got %v", err)
	}
	if len(emb.calls) != 0 {
		t.Errorf("expected no embed calls, got %d", len(emb.calls))
	}
	if store.ensureCalls != 0 {
		t.Errorf("expected no EnsureCollection call for skipped job, got %d", store.ensureCalls)
	}
	if len(store.points) != 0 {
		t.Errorf("expected no points, got %d", len(store.points))
	}
}

// TestProcess_SkipsNonTextOnly verifies that a message with only non-text
// parts is skipped.
func TestProcess_SkipsNonTextOnly(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{vector: []float32{0.1}}
	store := newFakeStore()

	proc, _ := NewProcessor(emb, store, ProcessorConfig{})

	job := testJob("msg-file")
	job.Parts = []memory.Part{{Type: "file"}}

	if err := proc.Process(context.Background(), job); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(store.points) != 0 {
		t.Error("expected no points for a file-only message")
	}
}

// TestProcess_MinLengthCountsRunes verifies the length filter counts
// characters, not bytes: a 5-rune multi-byte text is still skipped.
func TestProcess_MinLengthCountsRunes(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{vector: []float32{0.1}}
	store := newFakeStore()

	proc, _ := NewProcessor(emb, store, ProcessorConfig{})

	job := testJob("msg-runes")
	job.Parts = []memory.Part{{Type: "text", Text: "日本語です"}} // 5 runes, 15 bytes

	if err := proc.Process(context.Background(), job); err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if len(store.points) != 0 {
		t.Error("expected 5-rune text to be skipped under a 10-char minimum")
	}
}

// TestProcess_ReindexOverwrites verifies that processing the same message id
// twice leaves exactly one point with the latest content.
func TestProcess_ReindexOverwrites(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{vector: []float32{0.5}}
	store := newFakeStore()

	proc, _ := NewProcessor(emb, store, ProcessorConfig{})

	job := testJob("msg-dup")
	if err := proc.Process(context.Background(), job); err != nil {
		t.Fatalf("first Process: %v", err)
	}

	job.Parts = []memory.Part{{Type: "text", Text: "completely different content here"}}
	if err := proc.Process(context.Background(), job); err != nil {
		t.Fatalf("second Process: %v", err)
	}

	if len(store.points) != 1 {
		t.Fatalf("expected 1 point after re-index, got %d", len(store.points))
	}
	if got := store.points["msg-dup"].Preview; got != "completely different content here" {
		t.Errorf("expected latest content, got %q", got)
	}
}

// TestProcess_TruncatesPreview verifies the preview honours the configured
// character budget while the full text is embedded.
func TestProcess_TruncatesPreview(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{vector: []float32{0.5}}
	store := newFakeStore()

	proc, _ := NewProcessor(emb, store, ProcessorConfig{PreviewLen: 20})

	long := strings.Repeat("abcde ", 10) // 60 chars
	job := testJob("msg-long")
	job.Parts = []memory.Part{{Type: "text", Text: long}}

	if err := proc.Process(context.Background(), job); err != nil {
		t.Fatalf("Process: %v", err)
	}

	if got := store.points["msg-long"].Preview; len([]rune(got)) != 20 {
		t.Errorf("expected 20-char preview, got %d chars", len([]rune(got)))
	}
	if len(emb.calls) != 1 || emb.calls[0] != long {
		t.Error("expected the untruncated text to be embedded")
	}
}

// TestProcess_MissingIdentity verifies jobs without all three ids fail.
func TestProcess_MissingIdentity(t *testing.T) {
	t.Parallel()

	proc, _ := NewProcessor(&fakeEmbedder{vector: []float32{0.1}}, newFakeStore(), ProcessorConfig{})

	job := testJob("msg-x")
	job.UserID = ""

	if err := proc.Process(context.Background(), job); err == nil {
		t.Error("expected error for job with missing user id")
	}
	if err := proc.Process(context.Background(), nil); err == nil {
		t.Error("expected error for nil job")
	}
}

// TestProcess_EmbedErrorPropagates verifies embedding failures reach the
// caller and nothing is written.
func TestProcess_EmbedErrorPropagates(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{err: errors.New("provider unavailable")}
	store := newFakeStore()

	proc, _ := NewProcessor(emb, store, ProcessorConfig{})

	err := proc.Process(context.Background(), testJob("msg-err"))
	if err == nil {
		t.Fatal("expected embed error to propagate")
	}
	if len(store.points) != 0 {
		t.Error("expected no point written on embed failure")
	}
}

// TestProcess_UpsertErrorPropagates verifies store failures reach the caller.
func TestProcess_UpsertErrorPropagates(t *testing.T) {
	t.Parallel()

	store := newFakeStore()
	store.upsertErr = errors.New("qdrant down")

	proc, _ := NewProcessor(&fakeEmbedder{vector: []float32{0.1}}, store, ProcessorConfig{})

	if err := proc.Process(context.Background(), testJob("msg-err")); err == nil {
		t.Fatal("expected upsert error to propagate")
	}
}

// TestNewProcessor_NilDependencies verifies constructor validation.
func TestNewProcessor_NilDependencies(t *testing.T) {
	t.Parallel()

	if _, err := NewProcessor(nil, newFakeStore(), ProcessorConfig{}); err == nil {
		t.Error("expected error for nil embedder")
	}
	if _, err := NewProcessor(&fakeEmbedder{}, nil, ProcessorConfig{}); err == nil {
		t.Error("expected error for nil store")
	}
}
