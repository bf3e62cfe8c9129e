package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/54b3r/chatmem-go/internal/memory"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, slog.Default is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on all protected /api/* routes.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// Registry receives the server's Prometheus metrics and backs the
	// GET /metrics endpoint. A private registry is created if nil.
	Registry *prometheus.Registry
	// Async reports whether the dispatcher enqueues jobs rather than
	// processing them inline. It only affects the status code of
	// POST /api/index (202 Accepted vs 200 OK).
	Async bool
}

// dispatcher is the interface handleIndex calls to route a job.
// indexer.Dispatcher implementations satisfy it; tests inject a fake.
type dispatcher interface {
	Index(ctx context.Context, job *memory.IndexJob) error
}

// searcher is the interface handleSearch calls for retrieval.
// *memory.Retriever satisfies it; tests inject a fake.
type searcher interface {
	Search(ctx context.Context, query, userID string, opts memory.SearchOptions) ([]memory.SearchHit, error)
}

// deleter is the subset of memory.VectorStore used by the delete handlers.
type deleter interface {
	DeleteByMessageID(ctx context.Context, messageID string) error
	DeleteByChatID(ctx context.Context, chatID string) error
	DeleteByUserID(ctx context.Context, userID string) error
}

// Server is the HTTP server exposing the indexing and retrieval pipeline to
// the chat pipeline over the network.
type Server struct {
	// dispatcher routes indexing jobs (inline or queued, fixed at startup).
	dispatcher dispatcher
	// retriever serves similarity searches.
	retriever searcher
	// store serves point and bulk deletions.
	store deleter
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the server's Prometheus instruments.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// indexRequest is the JSON body for POST /api/index.
type indexRequest struct {
	// MessageID is the unique id of the persisted message.
	MessageID string `json:"messageId"`
	// ChatID is the conversation the message belongs to.
	ChatID string `json:"chatId"`
	// UserID is the owning user.
	UserID string `json:"userId"`
	// Role is the message author: "user" or "assistant".
	Role string `json:"role"`
	// Parts is the ordered list of message content segments.
	Parts []memory.Part `json:"parts"`
}

// indexResponse is the JSON response for POST /api/index.
type indexResponse struct {
	// Status is "indexed" (sync mode) or "queued" (queue mode).
	Status string `json:"status"`
	// MessageID echoes the dispatched message id.
	MessageID string `json:"messageId"`
}

// searchRequest is the JSON body for POST /api/search.
type searchRequest struct {
	// Query is the natural-language search text.
	Query string `json:"query"`
	// UserID scopes the search to one user's messages. Required.
	UserID string `json:"userId"`
	// Limit caps the number of hits (default 5).
	Limit int `json:"limit,omitempty"`
	// ScoreThreshold overrides the default relevance floor.
	ScoreThreshold float32 `json:"scoreThreshold,omitempty"`
	// ChatID restricts hits to one conversation.
	ChatID string `json:"chatId,omitempty"`
	// Role restricts hits to one author role.
	Role string `json:"role,omitempty"`
	// After restricts hits to points written at or after this RFC3339 time.
	After string `json:"after,omitempty"`
	// Before restricts hits to points written at or before this RFC3339 time.
	Before string `json:"before,omitempty"`
}

// searchResponse is the JSON response for POST /api/search.
type searchResponse struct {
	// Hits is the ranked result list, best match first.
	Hits []memory.SearchHit `json:"hits"`
}
