// Package index builds and caches the retrieval index for a contract.
// A build splits the document text into chunks, embeds every chunk, and
// upserts the (chunk, embedding) pairs into a vector store. Builds are
// content-addressed: the cache key is the document's byte hash combined with
// the chunk parameters, so re-processing identical bytes skips the embedding
// backend entirely while a modified document can never collide with a stale
// entry. Concurrent builds of the same key are deduplicated — callers await
// the in-flight build instead of embedding twice.
package index

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
	"golang.org/x/sync/singleflight"

	"github.com/davral/lexqa-go/internal/chunk"
	"github.com/davral/lexqa-go/internal/docload"
	"github.com/davral/lexqa-go/internal/rag"
)

// embedBatchSize is the number of chunks sent to the embedding backend per
// request. Batching keeps request bodies bounded for long contracts.
const embedBatchSize = 64

// embedWorkers bounds concurrent embedding requests during a build. Results
// are written into pre-assigned slots, so completion order never affects
// chunk order.
const embedWorkers = 4

// chunkNamespace is the UUID namespace for deterministic chunk IDs.
// uuid.NewSHA1(chunkNamespace, docKey#ordinal) yields the same ID for the
// same document bytes and position on every build.
var chunkNamespace = uuid.NewSHA1(uuid.NameSpaceURL, []byte("lexqa/chunk"))

// Index is one built retrieval index: the chunks of a single contract,
// embedded and searchable. It is read-only after Build returns.
type Index struct {
	// key is the content-addressed cache key this index was built under.
	key string
	// source is the document filename, for display.
	source string
	// count is the number of chunks in the index.
	count int
	// retriever answers top-K queries against the store.
	retriever rag.Retriever
	// store is closed when the index is evicted.
	store rag.VectorStore
}

// Key returns the content-addressed cache key.
func (ix *Index) Key() string { return ix.key }

// Source returns the document filename the index was built from.
func (ix *Index) Source() string { return ix.source }

// Len returns the number of chunks in the index.
func (ix *Index) Len() int { return ix.count }

// Retrieve returns the top-k most relevant chunks for the query.
// It never mutates the index.
func (ix *Index) Retrieve(ctx context.Context, query string, topK int) ([]rag.Chunk, error) {
	return ix.retriever.Retrieve(ctx, query, topK)
}

// StoreFactory creates a fresh vector store for one build. The in-memory
// backend returns a new store per document; remote backends (Qdrant,
// pgvector) return a handle to their collection, which the build resets
// before upserting.
type StoreFactory func(ctx context.Context) (rag.VectorStore, error)

// Config holds the dependencies for a Manager.
type Config struct {
	// Embedder converts chunk and query text into vectors.
	Embedder rag.Embedder
	// Stores creates the vector store backing each build.
	Stores StoreFactory
	// Splitter cuts document text into chunks. Defaults to chunk.New().
	Splitter *chunk.Splitter
	// TopK is the default retrieval depth. Defaults to rag.DefaultTopK.
	TopK int
}

// Manager owns the build cache. One build per document identity; many
// concurrent reads once built. Safe for concurrent use.
type Manager struct {
	embedder rag.Embedder
	stores   StoreFactory
	splitter *chunk.Splitter
	topK     int

	mu    sync.RWMutex
	cache map[string]*Index
	group singleflight.Group
}

// NewManager constructs a Manager from the given config.
func NewManager(cfg *Config) (*Manager, error) {
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("index: embedder must not be nil")
	}
	if cfg.Stores == nil {
		return nil, fmt.Errorf("index: store factory must not be nil")
	}
	splitter := cfg.Splitter
	if splitter == nil {
		splitter = chunk.New()
	}
	topK := cfg.TopK
	if topK <= 0 {
		topK = rag.DefaultTopK
	}
	return &Manager{
		embedder: cfg.Embedder,
		stores:   cfg.Stores,
		splitter: splitter,
		topK:     topK,
		cache:    make(map[string]*Index),
	}, nil
}

// cacheKey combines document identity with the chunk parameters, so changing
// either forces a fresh build.
func (m *Manager) cacheKey(docKey string) string {
	return fmt.Sprintf("%s:%d:%d", docKey, m.splitter.Size(), m.splitter.Overlap())
}

// Build returns the index for doc, building it if no cached index exists for
// its content key. The second return value reports whether a cached index was
// reused. Concurrent Build calls for the same document share a single build;
// a failed build caches nothing, so the next call retries cleanly.
func (m *Manager) Build(ctx context.Context, doc *docload.Document) (*Index, bool, error) {
	key := m.cacheKey(doc.Key)

	m.mu.RLock()
	ix, ok := m.cache[key]
	m.mu.RUnlock()
	if ok {
		return ix, true, nil
	}

	v, err, shared := m.group.Do(key, func() (interface{}, error) {
		// Re-check under the group: a concurrent build may have finished
		// between the cache miss and this closure running.
		m.mu.RLock()
		ix, ok := m.cache[key]
		m.mu.RUnlock()
		if ok {
			return ix, nil
		}

		built, err := m.build(ctx, key, doc)
		if err != nil {
			return nil, err
		}

		m.mu.Lock()
		m.cache[key] = built
		m.mu.Unlock()
		return built, nil
	})
	if err != nil {
		return nil, false, err
	}
	return v.(*Index), shared, nil
}

// Get returns the cached index for a document key, if one exists.
func (m *Manager) Get(docKey string) (*Index, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	ix, ok := m.cache[m.cacheKey(docKey)]
	return ix, ok
}

// Invalidate evicts the cached index for a document key and closes its store.
// Used when the source file changes on disk.
func (m *Manager) Invalidate(docKey string) {
	key := m.cacheKey(docKey)
	m.mu.Lock()
	ix, ok := m.cache[key]
	delete(m.cache, key)
	m.mu.Unlock()
	if ok {
		_ = ix.store.Close()
	}
}

// Close evicts every cached index and closes the backing stores.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	var firstErr error
	for key, ix := range m.cache {
		if err := ix.store.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
		delete(m.cache, key)
	}
	return firstErr
}

// build runs the full split → embed → upsert pipeline for one document.
func (m *Manager) build(ctx context.Context, key string, doc *docload.Document) (*Index, error) {
	spans, err := m.splitter.Split(doc.Text())
	if err != nil {
		return nil, fmt.Errorf("index: split %s: %w", doc.Source, err)
	}

	chunks := make([]rag.Chunk, len(spans))
	for i, text := range spans {
		chunks[i] = rag.Chunk{
			ID:      chunkID(doc.Key, i),
			Ordinal: i,
			Text:    text,
			Heading: inferHeading(text),
			Source:  doc.Source,
		}
	}

	embeddings, err := m.embedAll(ctx, spans)
	if err != nil {
		return nil, err
	}

	store, err := m.stores(ctx)
	if err != nil {
		return nil, fmt.Errorf("index: create store: %w", err)
	}
	// Remote stores are long-lived collections; clear any previous contract
	// before upserting so a fresh build never mixes with stale chunks.
	if err := store.Reset(ctx); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("index: reset store: %w", err)
	}
	if err := store.Upsert(ctx, chunks, embeddings); err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("index: upsert chunks: %w", err)
	}

	retriever, err := rag.NewRetriever(m.embedder, store, m.topK)
	if err != nil {
		_ = store.Close()
		return nil, fmt.Errorf("index: %w", err)
	}

	return &Index{
		key:       key,
		source:    doc.Source,
		count:     len(chunks),
		retriever: retriever,
		store:     store,
	}, nil
}

// embedAll embeds spans in batches with bounded parallelism. Each batch
// writes into its pre-assigned slice range, so the result order matches the
// input order regardless of completion order.
func (m *Manager) embedAll(ctx context.Context, spans []string) ([][]float32, error) {
	embeddings := make([][]float32, len(spans))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(embedWorkers)

	for start := 0; start < len(spans); start += embedBatchSize {
		end := start + embedBatchSize
		if end > len(spans) {
			end = len(spans)
		}
		start, end := start, end
		g.Go(func() error {
			batch, err := m.embedder.Embed(gctx, spans[start:end])
			if err != nil {
				return fmt.Errorf("index: embed chunks [%d,%d): %w", start, end, err)
			}
			if len(batch) != end-start {
				return fmt.Errorf("index: embed chunks [%d,%d): got %d vectors", start, end, len(batch))
			}
			copy(embeddings[start:end], batch)
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return embeddings, nil
}

// chunkID returns the deterministic UUID for a chunk position within a
// document. Stable IDs make remote-store upserts idempotent across rebuilds
// of identical bytes.
func chunkID(docKey string, ordinal int) string {
	return uuid.NewSHA1(chunkNamespace, []byte(fmt.Sprintf("%s#%d", docKey, ordinal))).String()
}
