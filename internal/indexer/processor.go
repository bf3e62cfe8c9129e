package indexer

import (
	"context"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/54b3r/chatmem-go/internal/memory"
)

// Processing policy defaults.
const (
	// DefaultMinTextLen is the minimum extracted-text length (in characters)
	// below which a job is skipped. Very short fragments add retrieval noise
	// without value, so skipping them is a deliberate no-op, not an error.
	DefaultMinTextLen = 10

	// DefaultPreviewLen is the character budget of the content_preview
	// payload field.
	DefaultPreviewLen = 500
)

// ProcessorConfig tunes the processing policy.
type ProcessorConfig struct {
	// MinTextLen is the skip threshold (default DefaultMinTextLen).
	MinTextLen int
	// PreviewLen is the preview character budget (default DefaultPreviewLen).
	PreviewLen int
}

// Processor is the shared core of both execution modes: it turns one
// IndexJob into one vector point. The sync dispatcher calls it inline; the
// worker calls it for every dequeued job. Failures propagate to the caller —
// the Processor itself never retries.
type Processor struct {
	// embedder converts extracted text to a dense vector.
	embedder memory.Embedder

	// store persists the resulting point.
	store memory.VectorStore

	// cfg holds the resolved processing policy.
	cfg ProcessorConfig

	// now supplies the payload timestamp; replaced in tests.
	now func() time.Time
}

// NewProcessor constructs a Processor from the given dependencies and config.
func NewProcessor(embedder memory.Embedder, store memory.VectorStore, cfg ProcessorConfig) (*Processor, error) {
	if embedder == nil {
		return nil, fmt.Errorf("indexer: embedder must not be nil")
	}
	if store == nil {
		return nil, fmt.Errorf("indexer: store must not be nil")
	}
	if cfg.MinTextLen <= 0 {
		cfg.MinTextLen = DefaultMinTextLen
	}
	if cfg.PreviewLen <= 0 {
		cfg.PreviewLen = DefaultPreviewLen
	}
	return &Processor{
		embedder: embedder,
		store:    store,
		cfg:      cfg,
		now:      time.Now,
	}, nil
}

// Process runs the indexing routine for one job:
//
//  1. Extract plain text from the job's parts.
//  2. Skip silently when the text is shorter than the minimum length.
//     The length check runs before EnsureCollection, so a skipped job has
//     no side effect at all — not even collection creation.
//  3. Ensure the collection exists.
//  4. Embed the text.
//  5. Upsert the point. Re-processing the same message overwrites in place,
//     which is what makes at-least-once queue delivery safe.
func (p *Processor) Process(ctx context.Context, job *memory.IndexJob) error {
	if job == nil {
		return fmt.Errorf("indexer: job must not be nil")
	}
	if job.MessageID == "" || job.ChatID == "" || job.UserID == "" {
		return fmt.Errorf("indexer: job %q is missing identity fields", job.MessageID)
	}

	text := ExtractText(job.Parts)
	if utf8.RuneCountInString(text) < p.cfg.MinTextLen {
		return nil
	}

	if err := p.store.EnsureCollection(ctx); err != nil {
		return fmt.Errorf("indexer: ensure collection for message %s: %w", job.MessageID, err)
	}

	vector, err := p.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("indexer: embed message %s: %w", job.MessageID, err)
	}

	point := memory.Point{
		MessageID: job.MessageID,
		ChatID:    job.ChatID,
		UserID:    job.UserID,
		Role:      job.Role,
		Vector:    vector,
		Preview:   truncate(text, p.cfg.PreviewLen),
		Timestamp: p.now().UTC(),
	}
	if err := p.store.Upsert(ctx, point); err != nil {
		return fmt.Errorf("indexer: upsert message %s: %w", job.MessageID, err)
	}

	return nil
}
