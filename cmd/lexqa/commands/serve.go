package commands

import (
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/cloudwego/eino/callbacks"
	"github.com/qdrant/go-client/qdrant"
	"github.com/spf13/cobra"

	"github.com/davral/lexqa-go/internal/logging"
	"github.com/davral/lexqa-go/internal/server"
	"github.com/davral/lexqa-go/internal/tracing"
)

// NewServeCmd constructs the `lexqa serve` command, which starts the HTTP API
// for contract ingestion and question answering.
func NewServeCmd() *cobra.Command {
	var host string
	var port int

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Start the LexQA HTTP API server",
		Long: `Start the LexQA HTTP server on localhost.

The server exposes POST /api/ingest (multipart contract upload) and
POST /api/ask (question against an ingested session), plus health,
readiness, and Prometheus metrics endpoints. Set LEXQA_API_KEY to require
Bearer authentication on the ingest and ask endpoints.

Examples:
  lexqa serve
  lexqa serve --port 9090
  MODEL_PROVIDER=azure lexqa serve`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			log.Info("serve starting", slog.String("provider", getEnvOrDefault("MODEL_PROVIDER", "openai")))

			// Langfuse tracing is opt-in, a no-op if keys are absent.
			handler, flush, ok := tracing.Setup()
			if ok {
				callbacks.AppendGlobalHandlers(handler)
				defer flush()
				log.Info("langfuse tracing enabled")
			} else {
				log.Info("langfuse tracing disabled", slog.String("reason", "LANGFUSE_PUBLIC_KEY not set"))
			}

			// Uploaded contracts have no backing file, so watching is off.
			manager, cleanup, err := buildManager(ctx, log, false)
			if err != nil {
				return fmt.Errorf("serve: %w", err)
			}
			defer cleanup()

			srv, err := server.New(manager, &server.Config{
				Host:    host,
				Port:    port,
				Logger:  log,
				Pingers: buildPingers(log),
				APIKey:  os.Getenv("LEXQA_API_KEY"),
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

// buildPingers assembles the readiness probes for the configured backends.
// The in-memory store needs none; an Ollama embedding backend is probed over
// HTTP and a Qdrant store via its HealthCheck RPC.
func buildPingers(log *slog.Logger) []server.Pinger {
	var pingers []server.Pinger

	if getEnvOrDefault("EMBEDDING_PROVIDER", getEnvOrDefault("MODEL_PROVIDER", "openai")) == "ollama" {
		host := getEnvOrDefault("OLLAMA_HOST", "http://localhost:11434")
		pingers = append(pingers, server.NewHTTPPinger("ollama", host+"/api/tags"))
		log.Info("readiness probe registered", slog.String("dependency", "ollama"))
	}

	if os.Getenv("VECTOR_STORE") == "qdrant" {
		client, err := qdrant.NewClient(&qdrant.Config{
			Host:   getEnvOrDefault("QDRANT_HOST", "localhost"),
			Port:   getEnvInt("QDRANT_PORT", 6334),
			APIKey: os.Getenv("QDRANT_API_KEY"),
			UseTLS: os.Getenv("QDRANT_TLS") == "true",
		})
		if err != nil {
			log.Warn("qdrant readiness probe unavailable", slog.Any("error", err))
		} else {
			pingers = append(pingers, server.NewQdrantPinger(client))
			log.Info("readiness probe registered", slog.String("dependency", "qdrant"))
		}
	}

	return pingers
}
