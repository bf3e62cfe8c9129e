// Package commands defines all Cobra CLI commands for the chatmem binary.
package commands

import (
	"github.com/spf13/cobra"

	"github.com/54b3r/chatmem-go/internal/audit"
	"github.com/54b3r/chatmem-go/internal/config"
	"github.com/54b3r/chatmem-go/internal/logging"
)

// configPath holds the --config flag value for YAML config file override.
var configPath string

// loadedConfigPath stores the resolved config file path for audit logging.
var loadedConfigPath string

// NewRootCmd constructs the root Cobra command that all subcommands attach to.
func NewRootCmd() *cobra.Command {
	root := &cobra.Command{
		Use:   "chatmem",
		Short: "chatmem — semantic memory for chat applications",
		Long: `chatmem indexes chat messages into a Qdrant vector store and retrieves
them by semantic similarity, scoped to the owning user.

Messages are embedded with OpenAI, Azure OpenAI, or Ollama and stored as
vector points with filterable payloads (user, chat, role, timestamp).
Indexing runs inline or through a durable queue (INDEXING_MODE=queue),
drained by a separate worker process.

Configuration comes from env vars or a YAML config file
(~/.chatmem/config.yaml). See 'chatmem --help' for available commands.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			log := logging.New()

			// Load YAML config (env vars always override YAML values).
			path, err := config.Load(configPath, log)
			if err != nil {
				return err
			}
			loadedConfigPath = path

			// Emit structured audit log for every command invocation.
			audit.LogCommandStart(log, cmd.Name(), loadedConfigPath)

			return nil
		},
	}

	root.PersistentFlags().StringVar(&configPath, "config", "", "Path to YAML config file (default: ~/.chatmem/config.yaml)")

	root.AddCommand(
		NewServeCmd(),
		NewWorkerCmd(),
		NewIndexCmd(),
		NewSearchCmd(),
		NewDeleteCmd(),
		NewVersionCmd(),
	)

	return root
}
