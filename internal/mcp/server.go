// Package mcp exposes contract analysis over the Model Context Protocol so
// external agents can open contracts, ask questions, and run the extraction
// tools directly. Started by `lexqa mcp`.
package mcp

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/davral/lexqa-go/internal/agent"
	"github.com/davral/lexqa-go/internal/session"
	"github.com/davral/lexqa-go/internal/version"
)

// ContractService is the session surface the MCP tools drive.
// *session.Manager satisfies it.
type ContractService interface {
	// Open loads the contract at path and builds its index.
	Open(ctx context.Context, path string) (*session.Session, error)
	// Get returns the session with the given ID.
	Get(id string) (*session.Session, bool)
	// Ask answers a question against the session's contract.
	Ask(ctx context.Context, sess *session.Session, question string) (*agent.Answer, error)
}

// Server is the MCP server for contract analysis.
type Server struct {
	contracts ContractService
	server    *mcp.Server
}

// NewServer creates an MCP server around the given contract service.
func NewServer(contracts ContractService) (*Server, error) {
	if contracts == nil {
		return nil, fmt.Errorf("mcp: contract service must not be nil")
	}

	impl := &mcp.Implementation{
		Name:    "lexqa",
		Version: version.Version,
	}

	s := &Server{
		contracts: contracts,
		server:    mcp.NewServer(impl, nil),
	}
	s.registerTools()
	return s, nil
}

// Run starts the MCP server over stdio.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) Run(ctx context.Context) error {
	return s.server.Run(ctx, &mcp.StdioTransport{})
}

// RunHTTP starts the MCP server over HTTP on the specified address.
// It blocks until the context is cancelled or an error occurs.
func (s *Server) RunHTTP(ctx context.Context, addr string) error {
	handler := mcp.NewStreamableHTTPHandler(func(_ *http.Request) *mcp.Server {
		return s.server
	}, nil)

	httpServer := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = httpServer.Shutdown(shutdownCtx)
	}()

	err := httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}
