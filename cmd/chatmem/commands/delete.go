package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/54b3r/chatmem-go/internal/logging"
)

// NewDeleteCmd constructs the `chatmem delete` command, which removes indexed
// points by message, chat, or user id.
func NewDeleteCmd() *cobra.Command {
	var messageID string
	var chatID string
	var userID string

	cmd := &cobra.Command{
		Use:   "delete",
		Short: "Delete indexed points by message, chat, or user id",
		Long: `Delete points from the vector store.

Exactly one of --message, --chat, or --user must be given:
  --message removes the single point for that message,
  --chat removes every point of the conversation,
  --user removes every point the user owns.

Deleting an id with no points is not an error.

Examples:
  chatmem delete --message m1
  chatmem delete --chat c1
  chatmem delete --user u1`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			given := 0
			for _, v := range []string{messageID, chatID, userID} {
				if v != "" {
					given++
				}
			}
			if given != 1 {
				return fmt.Errorf("delete: exactly one of --message, --chat, or --user is required")
			}

			store, err := newStore()
			if err != nil {
				return fmt.Errorf("delete: %w", err)
			}
			defer store.Close()

			switch {
			case messageID != "":
				if err := store.DeleteByMessageID(ctx, messageID); err != nil {
					return fmt.Errorf("delete: %w", err)
				}
				fmt.Printf("deleted message %s\n", messageID)
			case chatID != "":
				if err := store.DeleteByChatID(ctx, chatID); err != nil {
					return fmt.Errorf("delete: %w", err)
				}
				fmt.Printf("deleted chat %s\n", chatID)
			case userID != "":
				if err := store.DeleteByUserID(ctx, userID); err != nil {
					return fmt.Errorf("delete: %w", err)
				}
				fmt.Printf("deleted user %s\n", userID)
			}
			return nil
		},
	}

	cmd.Flags().StringVarP(&messageID, "message", "m", "", "Delete the point for this message id")
	cmd.Flags().StringVarP(&chatID, "chat", "c", "", "Delete all points of this chat id")
	cmd.Flags().StringVarP(&userID, "user", "u", "", "Delete all points owned by this user id")

	return cmd
}
