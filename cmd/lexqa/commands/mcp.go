package commands

import (
	"fmt"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/davral/lexqa-go/internal/logging"
	"github.com/davral/lexqa-go/internal/mcp"
)

// NewMCPCmd constructs the `lexqa mcp` command, which serves the contract
// analysis tools over the Model Context Protocol.
func NewMCPCmd() *cobra.Command {
	var httpAddr string

	cmd := &cobra.Command{
		Use:   "mcp",
		Short: "Serve contract analysis over the Model Context Protocol",
		Long: `Start an MCP server exposing LexQA to external agents.

Tools: open_contract, analyze_contract, extract_amounts, compute_deadline.
By default the server speaks MCP over stdio, for use as a subprocess of an
MCP client. With --http it serves the streamable HTTP transport instead.

Examples:
  lexqa mcp
  lexqa mcp --http 127.0.0.1:8765`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			manager, cleanup, err := buildManager(ctx, log, watchEnabled())
			if err != nil {
				return fmt.Errorf("mcp: %w", err)
			}
			defer cleanup()

			srv, err := mcp.NewServer(manager)
			if err != nil {
				return fmt.Errorf("mcp: %w", err)
			}

			if httpAddr != "" {
				log.Info("mcp serving over http", "addr", httpAddr)
				return srv.RunHTTP(ctx, httpAddr)
			}
			return srv.Run(ctx)
		},
	}

	cmd.Flags().StringVar(&httpAddr, "http", "", "Serve MCP over HTTP on this address instead of stdio")

	return cmd
}
