// Package server implements the HTTP API for contract question answering:
// upload a contract, ask questions against it, and observe the service via
// health, readiness, and Prometheus endpoints. The server is started by the
// `lexqa serve` CLI command.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"path/filepath"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/davral/lexqa-go/internal/agent"
	"github.com/davral/lexqa-go/internal/docload"
	"github.com/davral/lexqa-go/internal/embedder"
	"github.com/davral/lexqa-go/internal/logging"
)

// defaultMaxUploadBytes caps contract uploads when Config.MaxUploadBytes is
// zero.
const defaultMaxUploadBytes = 32 << 20

// New constructs a Server around the provided session manager and config.
func New(sessions sessionService, cfg *Config) (*Server, error) {
	if sessions == nil {
		return nil, fmt.Errorf("server: session manager must not be nil")
	}
	if cfg == nil {
		cfg = &Config{}
	}
	if cfg.Host == "" {
		cfg.Host = "127.0.0.1"
	}
	if cfg.Port == 0 {
		cfg.Port = 8080
	}
	if cfg.ReadTimeout == 0 {
		cfg.ReadTimeout = 30 * time.Second
	}
	if cfg.WriteTimeout == 0 {
		// Answering a question can take a full ReAct loop with retries.
		cfg.WriteTimeout = 5 * time.Minute
	}
	if cfg.ShutdownTimeout == 0 {
		cfg.ShutdownTimeout = 10 * time.Second
	}
	if cfg.RateLimit == 0 {
		cfg.RateLimit = defaultRateLimit
	}
	if cfg.RateBurst == 0 {
		cfg.RateBurst = defaultRateBurst
	}
	if cfg.MaxUploadBytes == 0 {
		cfg.MaxUploadBytes = defaultMaxUploadBytes
	}
	log := cfg.Logger
	if log == nil {
		log = logging.New()
	}
	reg := cfg.Registry
	if reg == nil {
		reg = prometheus.NewRegistry()
	}

	s := &Server{
		sessions: sessions,
		cfg:      cfg,
		log:      log,
		pingers:  cfg.Pingers,
		metrics:  newServerMetrics(reg),
	}

	rl, stopRL := newRateLimiter(cfg.RateLimit, cfg.RateBurst, log)
	s.stopRL = stopRL
	if cfg.APIKey == "" {
		log.Warn("auth: LEXQA_API_KEY not set, API authentication disabled")
	}
	protected := func(h http.Handler) http.Handler {
		return authMiddleware(cfg.APIKey, rl.middleware(h))
	}

	mux := http.NewServeMux()
	mux.Handle("POST /api/ingest", protected(http.HandlerFunc(s.handleIngest)))
	mux.Handle("POST /api/ask", protected(http.HandlerFunc(s.handleAsk)))
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("GET /api/ready", s.handleReady)
	mux.Handle("GET /metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))

	s.httpServer = &http.Server{
		Addr:         fmt.Sprintf("%s:%d", cfg.Host, cfg.Port),
		Handler:      requestLogger(log, s.instrument(mux)),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}

	return s, nil
}

// Start begins listening and serving HTTP requests. It blocks until the
// context is cancelled, then performs a graceful shutdown.
func (s *Server) Start(ctx context.Context) error {
	errCh := make(chan error, 1)

	go func() {
		s.log.Info("server listening", slog.String("addr", s.httpServer.Addr))
		if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		s.stopRL()
		return fmt.Errorf("server: listen error: %w", err)
	case <-ctx.Done():
		s.stopRL()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		if err := s.httpServer.Shutdown(shutdownCtx); err != nil {
			return fmt.Errorf("server: graceful shutdown failed: %w", err)
		}
		return nil
	}
}

// handleIngest handles POST /api/ingest: a multipart upload of one contract
// file under the "file" field. On success the contract is indexed and a new
// session is returned.
func (s *Server) handleIngest(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	outcome := "error"
	defer func() {
		s.metrics.ingestRequestsTotal.WithLabelValues(outcome).Inc()
		s.metrics.ingestDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	}()

	r.Body = http.MaxBytesReader(w, r.Body, s.cfg.MaxUploadBytes)
	file, header, err := r.FormFile("file")
	if err != nil {
		writeError(w, http.StatusBadRequest, `multipart upload with a "file" field is required`)
		outcome = "bad_request"
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		writeError(w, http.StatusBadRequest, "could not read uploaded file")
		outcome = "bad_request"
		return
	}

	sess, err := s.sessions.Load(r.Context(), filepath.Base(header.Filename), data)
	if err != nil {
		s.writeIngestError(w, r, err)
		outcome = ingestOutcome(err)
		return
	}

	outcome = "ok"
	writeJSON(w, http.StatusCreated, ingestResponse{
		SessionID: sess.ID,
		Source:    sess.Source,
		Chunks:    sess.ChunkCount(),
	})
}

// writeIngestError maps document and backend failures to HTTP statuses.
func (s *Server) writeIngestError(w http.ResponseWriter, r *http.Request, err error) {
	log := logging.FromContext(r.Context())
	log.Error("ingest failed", slog.Any("error", err))

	var be *embedder.BackendError
	switch {
	case errors.Is(err, docload.ErrUnreadable):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, docload.ErrNoText):
		writeError(w, http.StatusUnprocessableEntity, err.Error())
	case errors.As(err, &be):
		writeError(w, http.StatusServiceUnavailable, "embedding backend unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "ingestion failed")
	}
}

// ingestOutcome labels an ingest failure for metrics.
func ingestOutcome(err error) string {
	var be *embedder.BackendError
	switch {
	case errors.Is(err, docload.ErrUnreadable), errors.Is(err, docload.ErrNoText):
		return "bad_document"
	case errors.As(err, &be):
		return "backend_unavailable"
	default:
		return "error"
	}
}

// handleAsk handles POST /api/ask: answer one question against an existing
// session's contract.
func (s *Server) handleAsk(w http.ResponseWriter, r *http.Request) {
	start := time.Now()
	outcome := "error"
	defer func() {
		s.metrics.askRequestsTotal.WithLabelValues(outcome).Inc()
		s.metrics.askDurationSeconds.WithLabelValues(outcome).Observe(time.Since(start).Seconds())
	}()

	var req askRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		outcome = "bad_request"
		return
	}
	if req.SessionID == "" {
		writeError(w, http.StatusBadRequest, "session_id is required")
		outcome = "bad_request"
		return
	}
	if strings.TrimSpace(req.Question) == "" {
		writeError(w, http.StatusBadRequest, "question is required")
		outcome = "bad_request"
		return
	}

	sess, ok := s.sessions.Get(req.SessionID)
	if !ok {
		writeError(w, http.StatusNotFound, "unknown session")
		outcome = "not_found"
		return
	}

	ans, err := s.sessions.Ask(r.Context(), sess, req.Question)
	if err != nil {
		s.writeAskError(w, r, err)
		outcome = askOutcome(err)
		return
	}

	clauses := make([]clauseResult, len(ans.Chunks))
	for i, c := range ans.Chunks {
		clauses[i] = clauseResult{
			ID:      c.ID,
			Heading: c.Heading,
			Source:  c.Source,
			Score:   c.Score,
			Text:    c.Text,
		}
	}

	outcome = "ok"
	writeJSON(w, http.StatusOK, askResponse{
		SessionID: req.SessionID,
		Answer:    ans.Response,
		Rendered:  ans.Rendered,
		Clauses:   clauses,
	})
}

// writeAskError maps answer failures to HTTP statuses. A schema violation
// after every retry is the model misbehaving, reported as a bad gateway.
func (s *Server) writeAskError(w http.ResponseWriter, r *http.Request, err error) {
	log := logging.FromContext(r.Context())
	log.Error("ask failed", slog.Any("error", err))

	var sve *agent.SchemaViolationError
	var be *embedder.BackendError
	switch {
	case errors.As(err, &sve):
		writeError(w, http.StatusBadGateway, "model output failed schema validation after retries")
	case errors.As(err, &be):
		writeError(w, http.StatusServiceUnavailable, "embedding backend unavailable")
	default:
		writeError(w, http.StatusInternalServerError, "question failed")
	}
}

// askOutcome labels an ask failure for metrics.
func askOutcome(err error) string {
	var sve *agent.SchemaViolationError
	var be *embedder.BackendError
	switch {
	case errors.As(err, &sve):
		return "schema_violation"
	case errors.As(err, &be):
		return "backend_unavailable"
	default:
		return "error"
	}
}

// handleHealth handles GET /api/health for liveness checks.
func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeJSON writes v as a JSON response with the given status.
func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

// writeError writes a JSON error body with the given status.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, errorResponse{Error: msg})
}
