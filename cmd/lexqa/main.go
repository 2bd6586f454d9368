// Command lexqa is the entry point for the legal contract Q&A agent.
// It provides a CLI interface (via Cobra), an interactive chat TUI, an HTTP
// API server, and an MCP server for external agent integration.
package main

import (
	"fmt"
	"os"

	"github.com/davral/lexqa-go/cmd/lexqa/commands"
)

func main() {
	if err := commands.NewRootCmd().Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
