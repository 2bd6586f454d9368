package rag

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"
)

// MemoryStore implements VectorStore with a brute-force cosine scan over
// in-process slices. It is the default backend: a single contract yields a
// few hundred chunks, well inside linear-scan territory, and nothing
// persists beyond the session.
type MemoryStore struct {
	mu     sync.RWMutex
	chunks []Chunk
	vecs   [][]float32
	norms  []float32
}

// NewMemoryStore constructs an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

// Upsert appends chunks with their embeddings. The first batch fixes the
// vector dimensionality; later batches must match it.
func (s *MemoryStore) Upsert(_ context.Context, chunks []Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("memory store: %d chunks but %d embeddings", len(chunks), len(embeddings))
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	dim := 0
	if len(s.vecs) > 0 {
		dim = len(s.vecs[0])
	} else if len(embeddings) > 0 {
		dim = len(embeddings[0])
	}

	for i, vec := range embeddings {
		if len(vec) != dim {
			return fmt.Errorf("memory store: embedding %d has dimension %d, want %d", i, len(vec), dim)
		}
		s.chunks = append(s.chunks, chunks[i])
		s.vecs = append(s.vecs, vec)
		s.norms = append(s.norms, norm(vec))
	}
	return nil
}

// Search scans every stored vector and returns the min(topK, stored) most
// similar chunks, descending by cosine similarity, ties broken by ascending
// ordinal so results are deterministic.
func (s *MemoryStore) Search(_ context.Context, queryEmbedding []float32, topK int) ([]Chunk, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if topK <= 0 {
		return nil, fmt.Errorf("memory store: topK must be positive, got %d", topK)
	}
	if len(s.vecs) > 0 && len(queryEmbedding) != len(s.vecs[0]) {
		return nil, fmt.Errorf("memory store: query dimension %d does not match stored dimension %d",
			len(queryEmbedding), len(s.vecs[0]))
	}

	qNorm := norm(queryEmbedding)

	type hit struct {
		idx   int
		score float32
	}
	hits := make([]hit, len(s.vecs))
	for i, vec := range s.vecs {
		hits[i] = hit{idx: i, score: cosine(queryEmbedding, qNorm, vec, s.norms[i])}
	}

	sort.SliceStable(hits, func(a, b int) bool {
		if hits[a].score != hits[b].score {
			return hits[a].score > hits[b].score
		}
		return s.chunks[hits[a].idx].Ordinal < s.chunks[hits[b].idx].Ordinal
	})

	if topK > len(hits) {
		topK = len(hits)
	}
	out := make([]Chunk, 0, topK)
	for _, h := range hits[:topK] {
		c := s.chunks[h.idx]
		c.Score = h.score
		out = append(out, c)
	}
	return out, nil
}

// Reset drops all stored chunks and vectors.
func (s *MemoryStore) Reset(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.chunks = nil
	s.vecs = nil
	s.norms = nil
	return nil
}

// Len returns the number of stored chunks.
func (s *MemoryStore) Len() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks)
}

// Close is a no-op for the in-memory store.
func (s *MemoryStore) Close() error { return nil }

// norm returns the Euclidean norm of v.
func norm(v []float32) float32 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return float32(math.Sqrt(sum))
}

// cosine computes cosine similarity given precomputed norms. A zero vector
// scores 0 against everything.
func cosine(a []float32, aNorm float32, b []float32, bNorm float32) float32 {
	if aNorm == 0 || bNorm == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return float32(dot / (float64(aNorm) * float64(bNorm)))
}
