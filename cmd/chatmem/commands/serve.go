package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/54b3r/chatmem-go/internal/embedder"
	"github.com/54b3r/chatmem-go/internal/indexer"
	"github.com/54b3r/chatmem-go/internal/logging"
	"github.com/54b3r/chatmem-go/internal/memory"
	"github.com/54b3r/chatmem-go/internal/queue"
	"github.com/54b3r/chatmem-go/internal/server"
)

// NewServeCmd constructs the `chatmem serve` command, which starts the HTTP
// API server for indexing, search, and deletion.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the chatmem HTTP API server",
		Long: `Start the chatmem HTTP API server on localhost.

The server exposes indexing (POST /api/index), semantic search
(POST /api/search), and deletion endpoints, plus health, readiness, and
Prometheus metrics.

Indexing mode is selected via INDEXING_MODE: "queue" enqueues jobs to the
durable queue (drained by 'chatmem worker'); any other value indexes
inline before the response is sent.

Examples:
  chatmem serve
  chatmem serve --port 9090
  INDEXING_MODE=queue REDIS_URL=redis://localhost:6379 chatmem serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			mode := indexer.ParseMode(os.Getenv("INDEXING_MODE"))
			log.Info("serve starting",
				slog.String("indexing_mode", string(mode)),
				slog.String("embedding_provider", embedder.Backend()),
			)

			emb, err := embedder.NewFromEnv()
			if err != nil {
				return fmt.Errorf("serve: failed to initialise embedder: %w", err)
			}

			store, err := newStore()
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer store.Close()

			proc, err := indexer.NewProcessor(emb, store, indexer.ProcessorConfig{})
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			var q queue.Queue
			if mode == indexer.ModeQueue {
				q, err = newQueue(log)
				if err != nil {
					return fmt.Errorf("serve: %w", err)
				}
				defer q.Close()
			}

			disp, err := indexer.NewDispatcher(mode, proc, q)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			retriever, err := memory.NewRetriever(emb, store)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}

			pingers := []server.Pinger{server.NewDependencyPinger(store, "qdrant")}
			if p, ok := q.(interface{ Ping(context.Context) error }); ok && q != nil {
				pingers = append(pingers, server.NewDependencyPinger(p, "queue"))
			}

			srv, err := server.New(disp, retriever, store, &server.Config{
				Host:    host,
				Port:    port,
				Logger:  log,
				Pingers: pingers,
				APIKey:  os.Getenv("CHATMEM_API_KEY"),
				Async:   mode == indexer.ModeQueue,
			})
			if err != nil {
				return fmt.Errorf("serve: failed to create server: %w", err)
			}

			return srv.Start(ctx)
		},
	}

	cmd.Flags().StringVar(&host, "host", "127.0.0.1", "Host address to bind to")
	cmd.Flags().IntVarP(&port, "port", "p", 8080, "TCP port to listen on")

	return cmd
}
