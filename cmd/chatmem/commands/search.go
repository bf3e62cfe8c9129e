package commands

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/54b3r/chatmem-go/internal/embedder"
	"github.com/54b3r/chatmem-go/internal/logging"
	"github.com/54b3r/chatmem-go/internal/memory"
)

// NewSearchCmd constructs the `chatmem search` command, which runs a semantic
// search over a user's indexed messages and prints the ranked hits.
func NewSearchCmd() *cobra.Command {
	var userID string
	var chatID string
	var role string
	var limit int
	var threshold float32
	var after string
	var before string

	cmd := &cobra.Command{
		Use:   "search \"query text\"",
		Short: "Search a user's indexed messages by semantic similarity",
		Long: `Search the vector store for messages semantically similar to the query.

Results are always scoped to one user (--user). Optional filters narrow by
conversation, author role, and write-time range. Only hits at or above the
score threshold are returned, best match first.

Examples:
  chatmem search --user u1 "key rotation"
  chatmem search --user u1 --chat c1 --role assistant "deployment steps"
  chatmem search --user u1 --after 2026-01-01T00:00:00Z "incident"`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			query := strings.TrimSpace(args[0])
			if query == "" {
				return fmt.Errorf("search: query must not be empty")
			}
			if userID == "" {
				return fmt.Errorf("search: --user is required")
			}

			opts := memory.SearchOptions{
				Limit:          limit,
				ScoreThreshold: threshold,
				ChatID:         chatID,
				Role:           memory.Role(role),
			}

			var err error
			if after != "" {
				if opts.After, err = time.Parse(time.RFC3339, after); err != nil {
					return fmt.Errorf("search: --after must be RFC3339: %w", err)
				}
			}
			if before != "" {
				if opts.Before, err = time.Parse(time.RFC3339, before); err != nil {
					return fmt.Errorf("search: --before must be RFC3339: %w", err)
				}
			}

			emb, err := embedder.NewFromEnv()
			if err != nil {
				return fmt.Errorf("search: failed to initialise embedder: %w", err)
			}

			store, err := newStore()
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}
			defer store.Close()

			retriever, err := memory.NewRetriever(emb, store)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			hits, err := retriever.Search(ctx, query, userID, opts)
			if err != nil {
				return fmt.Errorf("search: %w", err)
			}

			if len(hits) == 0 {
				fmt.Println("no matches")
				return nil
			}

			for i, h := range hits {
				fmt.Printf("%d. [%.3f] %s (chat=%s role=%s %s)\n   %s\n",
					i+1, h.Score, h.MessageID, h.ChatID, h.Role,
					h.Timestamp.Format(time.RFC3339), h.Preview)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&userID, "user", "u", "", "User id to scope the search to (required)")
	cmd.Flags().StringVarP(&chatID, "chat", "c", "", "Restrict hits to one chat")
	cmd.Flags().StringVarP(&role, "role", "r", "", "Restrict hits to one role (user or assistant)")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "Maximum number of hits (default 5)")
	cmd.Flags().Float32Var(&threshold, "threshold", 0, "Minimum similarity score (default 0.70)")
	cmd.Flags().StringVar(&after, "after", "", "Only hits written at or after this RFC3339 time")
	cmd.Flags().StringVar(&before, "before", "", "Only hits written at or before this RFC3339 time")

	return cmd
}
