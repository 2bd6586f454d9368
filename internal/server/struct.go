package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/davral/lexqa-go/internal/agent"
	"github.com/davral/lexqa-go/internal/session"
)

// Config holds the HTTP server configuration.
type Config struct {
	// Host is the address to bind to (default: 127.0.0.1).
	Host string
	// Port is the TCP port to listen on (default: 8080).
	Port int
	// ReadTimeout is the maximum duration for reading the request.
	ReadTimeout time.Duration
	// WriteTimeout is the maximum duration for writing the response.
	WriteTimeout time.Duration
	// ShutdownTimeout is the maximum duration for a graceful shutdown.
	ShutdownTimeout time.Duration
	// Logger is the structured logger used by the server and its handlers.
	// If nil, [logging.New] is used.
	Logger *slog.Logger
	// Pingers is the ordered list of dependency probes run by GET /api/ready.
	// If empty, /api/ready returns 200 with no checks (liveness-only mode).
	Pingers []Pinger
	// RateLimit is the sustained request rate allowed per IP on rate-limited
	// endpoints (requests/second). Defaults to 10 if zero.
	RateLimit float64
	// RateBurst is the maximum instantaneous burst per IP. Defaults to 20 if zero.
	RateBurst int
	// APIKey is the Bearer token required on POST /api/ingest and /api/ask.
	// If empty, authentication is disabled (development mode).
	APIKey string
	// Registry receives the server's Prometheus metrics. If nil, a fresh
	// registry is created. Tests inject their own to stay hermetic.
	Registry *prometheus.Registry
	// MaxUploadBytes caps the size of an uploaded contract. Defaults to 32 MiB.
	MaxUploadBytes int64
}

// sessionService is the surface the handlers drive. *session.Manager
// satisfies it; tests inject a fake.
type sessionService interface {
	// Load builds a session from uploaded contract bytes.
	Load(ctx context.Context, name string, data []byte) (*session.Session, error)
	// Get returns the session with the given ID.
	Get(id string) (*session.Session, bool)
	// Ask answers a question against the session's contract.
	Ask(ctx context.Context, sess *session.Session, question string) (*agent.Answer, error)
}

// Server is the HTTP server that exposes contract ingestion and question
// answering.
type Server struct {
	// sessions is the session manager handling ingestion and questions.
	sessions sessionService
	// cfg holds the resolved server configuration.
	cfg *Config
	// httpServer is the underlying net/http server.
	httpServer *http.Server
	// log is the structured logger for this server instance.
	log *slog.Logger
	// pingers is the ordered list of dependency probes for GET /api/ready.
	pingers []Pinger
	// metrics holds the Prometheus instruments owned by this server.
	metrics *serverMetrics
	// stopRL stops the rate limiter's background eviction goroutine on shutdown.
	stopRL func()
}

// ingestResponse is the JSON response for POST /api/ingest.
type ingestResponse struct {
	// SessionID identifies the new session for subsequent /api/ask calls.
	SessionID string `json:"session_id"`
	// Source is the uploaded contract filename.
	Source string `json:"source"`
	// Chunks is the number of clauses indexed.
	Chunks int `json:"chunks"`
}

// askRequest is the JSON body for POST /api/ask.
type askRequest struct {
	// SessionID selects the contract session to question.
	SessionID string `json:"session_id"`
	// Question is the user's question about the contract.
	Question string `json:"question"`
}

// askResponse is the JSON response for POST /api/ask.
type askResponse struct {
	// SessionID echoes the session the question ran against.
	SessionID string `json:"session_id"`
	// Answer is the schema-validated structured answer.
	Answer *agent.LegalResponse `json:"answer"`
	// Rendered is the display form of the answer.
	Rendered string `json:"rendered"`
	// Clauses lists the retrieved clauses the answer was grounded on.
	Clauses []clauseResult `json:"clauses"`
}

// clauseResult is one retrieved clause in an askResponse.
type clauseResult struct {
	// ID is the clause's chunk identifier.
	ID string `json:"id"`
	// Heading is the inferred section heading, if any.
	Heading string `json:"heading,omitempty"`
	// Source is the contract filename the clause came from.
	Source string `json:"source"`
	// Score is the retrieval similarity score.
	Score float32 `json:"score"`
	// Text is the clause text.
	Text string `json:"text"`
}

// errorResponse is the JSON body for all non-2xx API responses.
type errorResponse struct {
	// Error is the human-readable failure reason.
	Error string `json:"error"`
}
