package queue

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite" // register "sqlite" driver

	"github.com/54b3r/chatmem-go/internal/memory"
)

// pollInterval is how often SQLiteQueue re-checks for work during a bounded
// Pop wait. SQLite has no server-side blocking read, so the bounded wait is
// emulated by polling.
const pollInterval = 200 * time.Millisecond

// SQLiteQueue implements Queue on a local SQLite database. It is the
// zero-infrastructure backend for single-host development: durable across
// restarts, FIFO by rowid, and safe for multiple consumer processes on the
// same host because each pop claims its row inside a transaction.
type SQLiteQueue struct {
	// db is the underlying database connection pool.
	db *sql.DB
}

// DefaultSQLitePath returns the default path for the local queue database.
// It resolves to ~/.chatmem/queue.db, creating the directory if needed.
func DefaultSQLitePath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("queue: could not determine home directory: %w", err)
	}
	dir := filepath.Join(home, ".chatmem")
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return "", fmt.Errorf("queue: could not create %s: %w", dir, err)
	}
	return filepath.Join(dir, "queue.db"), nil
}

// OpenSQLiteQueue opens (or creates) the queue database at the given path
// and runs the schema migration. Use ":memory:" for an in-memory queue in tests.
func OpenSQLiteQueue(path string) (*SQLiteQueue, error) {
	// WAL mode improves concurrent read performance and is safe for single-host use.
	dsn := path + "?_journal_mode=WAL&_busy_timeout=5000"
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("queue: open %s: %w", path, err)
	}
	// Limit to a single writer connection to avoid SQLITE_BUSY under concurrent pops.
	db.SetMaxOpenConns(1)

	q := &SQLiteQueue{db: db}
	if err := q.migrate(); err != nil {
		_ = db.Close()
		return nil, err
	}
	return q, nil
}

// migrate creates the schema if it does not already exist.
func (q *SQLiteQueue) migrate() error {
	const ddl = `
CREATE TABLE IF NOT EXISTS jobs (
    id          INTEGER PRIMARY KEY AUTOINCREMENT,
    payload     TEXT    NOT NULL,
    enqueued_at INTEGER NOT NULL  -- Unix timestamp (seconds)
);
`
	if _, err := q.db.Exec(ddl); err != nil {
		return fmt.Errorf("queue: migrate: %w", err)
	}
	return nil
}

// Push appends a job. The insert is committed before Push returns.
func (q *SQLiteQueue) Push(ctx context.Context, job memory.IndexJob) error {
	payload, err := json.Marshal(job)
	if err != nil {
		return fmt.Errorf("queue: marshal job %s: %w", job.MessageID, err)
	}
	const ins = `INSERT INTO jobs (payload, enqueued_at) VALUES (?, ?)`
	if _, err := q.db.ExecContext(ctx, ins, string(payload), time.Now().Unix()); err != nil {
		return fmt.Errorf("queue: push job %s: %w", job.MessageID, err)
	}
	return nil
}

// Pop claims and returns the oldest job, polling up to wait when the queue
// is empty. Returns (nil, nil) when the wait elapses with no job.
func (q *SQLiteQueue) Pop(ctx context.Context, wait time.Duration) (*memory.IndexJob, error) {
	deadline := time.Now().Add(wait)
	for {
		job, claimed, err := q.tryPop(ctx)
		if err != nil {
			return nil, err
		}
		if claimed {
			return job, nil
		}
		if time.Now().After(deadline) {
			return nil, nil
		}
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}

// tryPop removes the oldest row inside a transaction. The second return
// value reports whether a row was claimed.
func (q *SQLiteQueue) tryPop(ctx context.Context) (*memory.IndexJob, bool, error) {
	tx, err := q.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, false, fmt.Errorf("queue: begin pop: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	var id int64
	var payload string
	const sel = `SELECT id, payload FROM jobs ORDER BY id LIMIT 1`
	err = tx.QueryRowContext(ctx, sel).Scan(&id, &payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("queue: select oldest job: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `DELETE FROM jobs WHERE id = ?`, id); err != nil {
		return nil, false, fmt.Errorf("queue: claim job: %w", err)
	}
	if err := tx.Commit(); err != nil {
		return nil, false, fmt.Errorf("queue: commit pop: %w", err)
	}

	// The row is consumed at this point; a decode failure discards the entry.
	var job memory.IndexJob
	if err := json.Unmarshal([]byte(payload), &job); err != nil {
		return nil, false, fmt.Errorf("%w: %v", ErrBadPayload, err)
	}
	return &job, true, nil
}

// Ping checks the database connection. Used by readiness probes.
func (q *SQLiteQueue) Ping(ctx context.Context) error {
	if err := q.db.PingContext(ctx); err != nil {
		return fmt.Errorf("queue: sqlite ping failed: %w", err)
	}
	return nil
}

// Close closes the database.
func (q *SQLiteQueue) Close() error {
	return q.db.Close()
}
