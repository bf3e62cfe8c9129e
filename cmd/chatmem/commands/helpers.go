package commands

import (
	"fmt"
	"log/slog"
	"os"
	"strconv"

	"github.com/54b3r/chatmem-go/internal/embedder"
	"github.com/54b3r/chatmem-go/internal/memory"
	"github.com/54b3r/chatmem-go/internal/queue"
)

// getEnvOrDefault returns the env var value or a fallback when unset.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the env var parsed as int, or a fallback when unset or
// unparsable.
func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

// newStore constructs the Qdrant vector store from QDRANT_* env vars. The
// vector size follows the configured embedding backend so the collection
// dimension always matches what the embedder produces.
func newStore() (*memory.QdrantStore, error) {
	host := getEnvOrDefault("QDRANT_HOST", "localhost")
	port := getEnvInt("QDRANT_PORT", 6334)
	collection := getEnvOrDefault("QDRANT_COLLECTION", "chatmem-messages")
	vectorSize := uint64(embedder.DefaultDimensions(embedder.Backend())) //nolint:gosec // dimensions are bounded

	store, err := memory.NewQdrantStore(&memory.QdrantConfig{
		Host:       host,
		Port:       port,
		Collection: collection,
		VectorSize: vectorSize,
		APIKey:     os.Getenv("QDRANT_API_KEY"),
		UseTLS:     os.Getenv("QDRANT_TLS") == "true",
	})
	if err != nil {
		return nil, fmt.Errorf("failed to connect to Qdrant at %s:%d: %w", host, port, err)
	}
	return store, nil
}

// newQueue constructs the job queue selected by QUEUE_BACKEND: "redis"
// (default, requires REDIS_URL) or "sqlite" (local file, zero infrastructure).
func newQueue(log *slog.Logger) (queue.Queue, error) {
	backend := getEnvOrDefault("QUEUE_BACKEND", "redis")

	switch backend {
	case "redis":
		url := os.Getenv("REDIS_URL")
		if url == "" {
			return nil, fmt.Errorf("REDIS_URL is required for the redis queue backend (or set QUEUE_BACKEND=sqlite)")
		}
		key := getEnvOrDefault("QUEUE_KEY", queue.DefaultKey)
		q, err := queue.NewRedisQueue(url, key)
		if err != nil {
			return nil, fmt.Errorf("failed to connect to Redis: %w", err)
		}
		log.Info("queue: redis backend ready", slog.String("key", key))
		return q, nil

	case "sqlite":
		path := os.Getenv("QUEUE_SQLITE_PATH")
		if path == "" {
			var err error
			path, err = queue.DefaultSQLitePath()
			if err != nil {
				return nil, err
			}
		}
		q, err := queue.OpenSQLiteQueue(path)
		if err != nil {
			return nil, err
		}
		log.Info("queue: sqlite backend ready", slog.String("path", path))
		return q, nil

	default:
		return nil, fmt.Errorf("unknown QUEUE_BACKEND %q (want redis or sqlite)", backend)
	}
}
