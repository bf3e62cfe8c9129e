package queue

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/54b3r/chatmem-go/internal/memory"
)

// DefaultKey is the Redis list key holding pending indexing jobs.
const DefaultKey = "chatmem:index:jobs"

// RedisQueue implements Queue on a single Redis list: LPUSH from producers,
// BRPOP from consumers. Insertion order of the list gives FIFO delivery;
// BRPOP's server-side blocking gives consumers a cheap bounded wait without
// busy-polling.
type RedisQueue struct {
	// client is the shared Redis connection, created once per process.
	client *redis.Client

	// key is the list key jobs are pushed to and popped from.
	key string
}

// NewRedisQueue connects to the Redis instance described by url
// (redis://[:password@]host:port[/db]) and returns a ready queue.
// key selects the list; DefaultKey is used when empty.
func NewRedisQueue(url, key string) (*RedisQueue, error) {
	if url == "" {
		return nil, fmt.Errorf("queue: redis URL must not be empty")
	}
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("queue: invalid redis URL: %w", err)
	}
	if key == "" {
		key = DefaultKey
	}
	return &RedisQueue{client: redis.NewClient(opts), key: key}, nil
}

// Push serializes the job and appends it to the list. The push is durable
// (to the extent the Redis deployment is) once LPUSH is acknowledged.
func (q *RedisQueue) Push(ctx context.Context, job memory.IndexJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("queue: marshal job %s: %w", job.MessageID, err)
	}
	if err := q.client.LPush(ctx, q.key, payload).Err(); err != nil {
		return fmt.Errorf("queue: push job %s: %w", job.MessageID, err)
	}
	return nil
}

// Pop blocks up to wait for the oldest job. Returns (nil, nil) on an empty
// queue after the wait elapses. A decode failure returns ErrBadPayload; the
// entry has already been removed from the list, so the consumer can simply
// move on.
func (q *RedisQueue) Pop(ctx context.Context, wait time.Duration) (*memory.IndexJob, error) {
	res, err := q.client.BRPop(ctx, wait, q.key).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("queue: brpop: %w", err)
	}
	// BRPop returns [key, value].
	if len(res) != 2 {
		return nil, fmt.Errorf("%w: unexpected brpop reply of length %d", ErrBadPayload, len(res))
	}

	var job memory.IndexJob
	if err := json.Unmarshal([]byte(res[1]), &job); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	return &job, nil
}

// Ping checks Redis reachability. Used by readiness probes.
func (q *RedisQueue) Ping(ctx context.Context) error {
	if err := q.client.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("queue: redis ping failed: %w", err)
	}
	return nil
}

// Close closes the Redis connection.
func (q *RedisQueue) Close() error {
	return q.client.Close()
}
