package commands

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/cloudwego/eino/components/tool"
	"golang.org/x/term"

	"github.com/davral/lexqa-go/internal/agent"
	"github.com/davral/lexqa-go/internal/chunk"
	"github.com/davral/lexqa-go/internal/embedder"
	"github.com/davral/lexqa-go/internal/index"
	"github.com/davral/lexqa-go/internal/provider"
	"github.com/davral/lexqa-go/internal/rag"
	"github.com/davral/lexqa-go/internal/session"
	"github.com/davral/lexqa-go/internal/store"
	"github.com/davral/lexqa-go/internal/tools"
)

// buildTools constructs the analysis tools registered with the agent. Both are
// pure functions, so the full set is always available.
func buildTools() []tool.BaseTool {
	return []tool.BaseTool{
		tools.NewDeadlineTool(),
		tools.NewMoneyTool(),
	}
}

// buildSplitter applies CHUNK_SIZE and CHUNK_OVERLAP overrides when set.
func buildSplitter() *chunk.Splitter {
	var opts []chunk.Option
	if size := getEnvInt("CHUNK_SIZE", 0); size > 0 {
		opts = append(opts, chunk.WithSize(size))
	}
	if overlap := getEnvInt("CHUNK_OVERLAP", 0); overlap > 0 {
		opts = append(opts, chunk.WithOverlap(overlap))
	}
	return chunk.New(opts...)
}

// buildStores selects the vector store backend from VECTOR_STORE: memory
// (default), qdrant, or pgvector. Remote backends get one collection handle
// per index build; the build resets it before upserting.
func buildStores(log *slog.Logger) (index.StoreFactory, error) {
	backend := getEnvOrDefault("VECTOR_STORE", "memory")

	vectorSize := getEnvInt("EMBEDDING_DIMENSIONS", 0)
	if vectorSize <= 0 {
		vectorSize = embedder.DefaultDimensions(embedder.ResolveBackend())
	}

	switch backend {
	case "memory":
		return func(context.Context) (rag.VectorStore, error) {
			return rag.NewMemoryStore(), nil
		}, nil

	case "qdrant":
		host := getEnvOrDefault("QDRANT_HOST", "localhost")
		port := getEnvInt("QDRANT_PORT", 6334)
		collection := getEnvOrDefault("QDRANT_COLLECTION", "lexqa-clauses")
		log.Info("vector store: qdrant",
			slog.String("host", host),
			slog.Int("port", port),
			slog.String("collection", collection),
		)
		return func(ctx context.Context) (rag.VectorStore, error) {
			return rag.NewQdrantStore(ctx, &rag.QdrantConfig{
				Host:       host,
				Port:       port,
				Collection: collection,
				VectorSize: uint64(vectorSize), //nolint:gosec // dimensions are bounded
				APIKey:     os.Getenv("QDRANT_API_KEY"),
				UseTLS:     os.Getenv("QDRANT_TLS") == "true",
			})
		}, nil

	case "pgvector":
		dsn := os.Getenv("PGVECTOR_DSN")
		if dsn == "" {
			return nil, fmt.Errorf("VECTOR_STORE=pgvector requires PGVECTOR_DSN")
		}
		table := getEnvOrDefault("PGVECTOR_TABLE", "clause_chunks")
		log.Info("vector store: pgvector", slog.String("table", table))
		return func(ctx context.Context) (rag.VectorStore, error) {
			return rag.NewPgvectorStore(ctx, &rag.PgvectorConfig{
				DSN:        dsn,
				Table:      table,
				VectorSize: vectorSize,
			})
		}, nil

	default:
		return nil, fmt.Errorf("unknown VECTOR_STORE %q (want memory, qdrant, or pgvector)", backend)
	}
}

// buildHistory opens the conversation history store. LEXQA_HISTORY_DB selects
// a SQLite path, "disabled" turns history off, and empty keeps it in memory
// for the lifetime of the process.
func buildHistory(log *slog.Logger) (store.ConversationStore, func(), error) {
	dbPath := os.Getenv("LEXQA_HISTORY_DB")
	switch dbPath {
	case "disabled":
		log.Info("history: disabled via LEXQA_HISTORY_DB=disabled")
		return nil, func() {}, nil
	case "":
		return store.NewMemoryStore(), func() {}, nil
	default:
		hs, err := store.Open(dbPath)
		if err != nil {
			return nil, nil, fmt.Errorf("history: failed to open %s: %w", dbPath, err)
		}
		log.Info("history: store opened", slog.String("path", dbPath))
		return hs, func() { _ = hs.Close() }, nil
	}
}

// buildManager wires the full pipeline: provider, embedder, index cache,
// composer, and session manager. The returned cleanup closes everything.
func buildManager(ctx context.Context, log *slog.Logger, watch bool) (*session.Manager, func(), error) {
	ensureAPIKey()

	chatModel, err := provider.NewFromEnv(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialise model provider: %w", err)
	}

	if err := embedder.Validate(log); err != nil {
		return nil, nil, err
	}
	emb, err := embedder.NewFromEnv()
	if err != nil {
		return nil, nil, fmt.Errorf("failed to initialise embedder: %w", err)
	}

	stores, err := buildStores(log)
	if err != nil {
		return nil, nil, err
	}

	topK := getEnvInt("RAG_TOP_K", 0)
	indexes, err := index.NewManager(&index.Config{
		Embedder: emb,
		Stores:   stores,
		Splitter: buildSplitter(),
		TopK:     topK,
	})
	if err != nil {
		return nil, nil, err
	}

	history, closeHistory, err := buildHistory(log)
	if err != nil {
		return nil, nil, err
	}

	composer, err := agent.New(ctx, &agent.Config{
		ChatModel:     chatModel,
		Tools:         buildTools(),
		MaxSteps:      getEnvInt("AGENT_MAX_STEPS", 0),
		SchemaRetries: getEnvInt("AGENT_SCHEMA_RETRIES", 0),
		History:       history,
	})
	if err != nil {
		closeHistory()
		return nil, nil, fmt.Errorf("failed to initialise agent: %w", err)
	}

	manager, err := session.NewManager(&session.Config{
		Indexes:  indexes,
		Composer: composer,
		TopK:     topK,
		Watch:    watch,
	})
	if err != nil {
		closeHistory()
		_ = indexes.Close()
		return nil, nil, err
	}

	cleanup := func() {
		_ = manager.Close()
		closeHistory()
	}
	return manager, cleanup, nil
}

// ensureAPIKey prompts for the OpenAI key on a TTY when the default provider
// is selected without one. Non-interactive runs fall through to the
// provider's own validation error.
func ensureAPIKey() {
	if getEnvOrDefault("MODEL_PROVIDER", "openai") != "openai" {
		return
	}
	if os.Getenv("OPENAI_API_KEY") != "" {
		return
	}
	if !term.IsTerminal(int(os.Stdin.Fd())) {
		return
	}

	fmt.Fprint(os.Stderr, "OPENAI_API_KEY is not set. Enter API key (input hidden): ")
	key, err := term.ReadPassword(int(os.Stdin.Fd()))
	fmt.Fprintln(os.Stderr)
	if err != nil {
		return
	}
	if k := strings.TrimSpace(string(key)); k != "" {
		os.Setenv("OPENAI_API_KEY", k)
	}
}

// watchEnabled reports whether contract files opened from disk should be
// re-indexed on change.
func watchEnabled() bool {
	return os.Getenv("LEXQA_WATCH") == "true"
}

// getEnvOrDefault returns the env var value, or fallback when unset or empty.
func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

// getEnvInt returns the env var parsed as int, or fallback when unset or
// malformed.
func getEnvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}
