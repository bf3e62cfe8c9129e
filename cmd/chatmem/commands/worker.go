package commands

import (
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/54b3r/chatmem-go/internal/embedder"
	"github.com/54b3r/chatmem-go/internal/indexer"
	"github.com/54b3r/chatmem-go/internal/logging"
	"github.com/54b3r/chatmem-go/internal/worker"
)

// NewWorkerCmd constructs the `chatmem worker` command, which drains the
// durable indexing queue.
func NewWorkerCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "worker",
		Short: "Run the queue worker that drains pending indexing jobs",
		Long: `Run the indexing worker process.

The worker pops jobs from the durable queue one at a time and runs the
same processing routine used by synchronous indexing: extract text, embed,
upsert into Qdrant. Jobs are processed strictly in FIFO order.

Run one worker per queue. The worker validates the embedding configuration
at startup so misconfiguration fails fast instead of poisoning the queue.

Examples:
  QUEUE_BACKEND=sqlite chatmem worker
  REDIS_URL=redis://localhost:6379 chatmem worker`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			// Fail fast on missing keys or chat-model-looking embedding models.
			if err := embedder.Validate(log); err != nil {
				return fmt.Errorf("worker: %w", err)
			}

			emb, err := embedder.NewFromEnv()
			if err != nil {
				return fmt.Errorf("worker: failed to initialise embedder: %w", err)
			}
			log.Info("embedder initialised", slog.String("provider", embedder.Backend()))

			store, err := newStore()
			if err != nil {
				return fmt.Errorf("worker: %w", err)
			}
			defer store.Close()

			q, err := newQueue(log)
			if err != nil {
				return fmt.Errorf("worker: %w", err)
			}
			defer q.Close()

			proc, err := indexer.NewProcessor(emb, store, indexer.ProcessorConfig{})
			if err != nil {
				return fmt.Errorf("worker: %w", err)
			}

			w, err := worker.New(q, proc, worker.Config{Logger: log})
			if err != nil {
				return fmt.Errorf("worker: %w", err)
			}

			log.Info("worker starting")
			return w.Run(ctx)
		},
	}

	return cmd
}
