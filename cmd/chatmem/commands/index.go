package commands

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/54b3r/chatmem-go/internal/embedder"
	"github.com/54b3r/chatmem-go/internal/indexer"
	"github.com/54b3r/chatmem-go/internal/logging"
	"github.com/54b3r/chatmem-go/internal/memory"
	"github.com/54b3r/chatmem-go/internal/queue"
)

// NewIndexCmd constructs the `chatmem index` command, which indexes a single
// message from the command line. Useful for backfills and smoke tests.
func NewIndexCmd() *cobra.Command {
	var messageID string
	var chatID string
	var userID string
	var role string
	var texts []string

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Index a single chat message",
		Long: `Index one chat message into the vector store.

The message is dispatched the same way the HTTP API dispatches it: inline
when INDEXING_MODE is unset, or enqueued when INDEXING_MODE=queue.
Each --text flag becomes one text part; parts are joined with newlines
before embedding.

Examples:
  chatmem index --message m1 --chat c1 --user u1 --role user --text "how do I rotate my keys?"
  INDEXING_MODE=queue chatmem index --message m2 --chat c1 --user u1 --role assistant --text "..."`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if messageID == "" || chatID == "" || userID == "" {
				return fmt.Errorf("index: --message, --chat and --user are required")
			}
			if len(texts) == 0 {
				return fmt.Errorf("index: at least one --text is required")
			}

			emb, err := embedder.NewFromEnv()
			if err != nil {
				return fmt.Errorf("index: failed to initialise embedder: %w", err)
			}

			store, err := newStore()
			if err != nil {
				return fmt.Errorf("index: %w", err)
			}
			defer store.Close()

			proc, err := indexer.NewProcessor(emb, store, indexer.ProcessorConfig{})
			if err != nil {
				return fmt.Errorf("index: %w", err)
			}

			mode := indexer.ParseMode(os.Getenv("INDEXING_MODE"))
			var q queue.Queue
			if mode == indexer.ModeQueue {
				q, err = newQueue(log)
				if err != nil {
					return fmt.Errorf("index: %w", err)
				}
				defer q.Close()
			}

			disp, err := indexer.NewDispatcher(mode, proc, q)
			if err != nil {
				return fmt.Errorf("index: %w", err)
			}

			parts := make([]memory.Part, 0, len(texts))
			for _, t := range texts {
				parts = append(parts, memory.Part{Type: memory.PartTypeText, Text: t})
			}

			job := &memory.IndexJob{
				MessageID: messageID,
				ChatID:    chatID,
				UserID:    userID,
				Role:      memory.Role(role),
				Parts:     parts,
			}

			if err := disp.Index(ctx, job); err != nil {
				return fmt.Errorf("index: %w", err)
			}

			if mode == indexer.ModeQueue {
				fmt.Printf("queued %s\n", messageID)
			} else {
				fmt.Printf("indexed %s\n", messageID)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&messageID, "message", "m", "", "Message id (required)")
	cmd.Flags().StringVarP(&chatID, "chat", "c", "", "Chat id (required)")
	cmd.Flags().StringVarP(&userID, "user", "u", "", "User id (required)")
	cmd.Flags().StringVarP(&role, "role", "r", "user", "Message role (user or assistant)")
	cmd.Flags().StringArrayVarP(&texts, "text", "t", nil, "Text part to index (repeatable)")

	return cmd
}
