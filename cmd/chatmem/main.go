// Command chatmem is the entry point for the chat message memory service.
// It provides a CLI interface (via Cobra) with an HTTP API server, a queue
// worker, and one-off indexing, search, and deletion commands.
package main

import (
	"fmt"
	"os"

	"github.com/54b3r/chatmem-go/cmd/chatmem/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
