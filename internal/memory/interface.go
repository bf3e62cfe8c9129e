// Package memory defines the types and interfaces of the semantic message
// memory pipeline: indexing jobs produced by the chat pipeline, the vector
// store contract, the embedding contract, and retrieval. Concrete
// implementations (Qdrant, OpenAI, etc.) satisfy these interfaces so the
// dispatcher, worker, and server never depend on a specific backend.
package memory

import (
	"context"
	"time"
)

// Role identifies the author of an indexed message.
type Role string

const (
	// RoleUser is a message written by the human.
	RoleUser Role = "user"
	// RoleAssistant is a message produced by the assistant.
	RoleAssistant Role = "assistant"
)

// PartTypeText is the only part type that carries indexable content.
// All other part types (files, tool calls, ...) are ignored by the pipeline.
const PartTypeText = "text"

// Part is one content segment of a chat message. Messages are heterogeneous:
// only text parts contribute to the indexed vector.
type Part struct {
	// Type discriminates the part kind ("text", "file", "tool-call", ...).
	Type string `json:"type"`
	// Text is the plain text content. Only meaningful when Type is "text".
	Text string `json:"text,omitempty"`
}

// IndexJob is the unit of indexing work: the identity of a persisted chat
// message plus its raw content parts. Jobs are created by the chat pipeline
// once per saved message, are never mutated, and are fully self-contained so
// the queue needs no coordination with any other store.
type IndexJob struct {
	// MessageID is the unique id of the source message and the primary key
	// of the resulting vector point.
	MessageID string `json:"messageId"`
	// ChatID is the conversation the message belongs to.
	ChatID string `json:"chatId"`
	// UserID is the owning user, used for access-scoped search and bulk deletion.
	UserID string `json:"userId"`
	// Role is the author of the message (user or assistant).
	Role Role `json:"role"`
	// Parts is the ordered sequence of content segments.
	Parts []Part `json:"parts"`
}

// Point is one durable entry in the vector store: a message embedding plus
// the payload fields used for filtered search.
type Point struct {
	// MessageID is the point id. At most one point exists per message;
	// re-indexing the same message overwrites in place.
	MessageID string
	// ChatID is the owning conversation. Immutable for the point's lifetime.
	ChatID string
	// UserID is the owning user. Immutable for the point's lifetime.
	UserID string
	// Role is the message author.
	Role Role
	// Vector is the dense embedding. Its length must match the collection's
	// configured dimension — a mismatch is a configuration error.
	Vector []float32
	// Preview is the first part of the extracted text, stored for display.
	Preview string
	// Timestamp is the wall-clock write time (not message creation time).
	Timestamp time.Time
}

// SearchHit is one retrieval result: the stored payload plus its similarity score.
type SearchHit struct {
	// MessageID is the id of the matched message.
	MessageID string `json:"messageId"`
	// ChatID is the conversation the matched message belongs to.
	ChatID string `json:"chatId"`
	// UserID is the owning user.
	UserID string `json:"userId"`
	// Role is the message author.
	Role Role `json:"role"`
	// Preview is the stored content preview.
	Preview string `json:"preview"`
	// Timestamp is when the point was written.
	Timestamp time.Time `json:"timestamp"`
	// Score is the cosine similarity of the hit (higher is more similar).
	Score float32 `json:"score"`
}

// Default search parameters. The threshold operates as a relevance floor,
// not just a ranking cutoff: hits below it are never returned.
const (
	DefaultSearchLimit    = 5
	DefaultScoreThreshold = float32(0.70)
)

// SearchOptions narrows a similarity search. All filters are conjunctive
// (AND) and are applied on top of the mandatory user scope.
type SearchOptions struct {
	// Limit is the maximum number of hits (default DefaultSearchLimit).
	Limit int
	// ScoreThreshold is the minimum similarity score for a hit
	// (default DefaultScoreThreshold when zero).
	ScoreThreshold float32
	// ChatID restricts hits to one conversation when non-empty.
	ChatID string
	// Role restricts hits to one author role when non-empty.
	Role Role
	// After restricts hits to points written at or after this time.
	After time.Time
	// Before restricts hits to points written at or before this time.
	Before time.Time
}

// VectorStore is the contract for persisting and searching message embeddings.
// Implementations must be safe to call from multiple goroutines.
type VectorStore interface {
	// EnsureCollection creates the backing collection and its payload indexes
	// if they do not already exist. It is idempotent and cheap when the
	// collection exists (a single existence check), so callers may invoke it
	// before every write.
	EnsureCollection(ctx context.Context) error

	// Upsert durably writes a point, replacing any existing point with the
	// same message id. The write is visible to subsequent reads on return.
	Upsert(ctx context.Context, p Point) error

	// DeleteByMessageID removes the single point for the given message.
	DeleteByMessageID(ctx context.Context, messageID string) error

	// DeleteByChatID removes all points of one conversation.
	DeleteByChatID(ctx context.Context, chatID string) error

	// DeleteByUserID removes all points owned by one user.
	DeleteByUserID(ctx context.Context, userID string) error

	// Search returns the highest-scoring points for the query vector,
	// restricted to the given user and the options' filters, ordered by
	// descending similarity. Every hit satisfies the score threshold.
	Search(ctx context.Context, vector []float32, userID string, opts SearchOptions) ([]SearchHit, error)

	// Close releases any resources held by the store.
	Close() error
}

// Embedder converts text into dense vector embeddings. Every vector produced
// by one model configuration has the same dimensionality.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a single non-empty text into its embedding.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch converts a batch of texts in one provider call.
	// The returned slice is parallel to the input slice.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}
