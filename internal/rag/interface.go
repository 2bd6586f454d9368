// Package rag defines the interfaces for retrieval-augmented generation over
// a single contract: vector storage, clause retrieval, and embedding.
// Concrete implementations (in-memory, Qdrant, pgvector) satisfy these
// interfaces so the composer layer never depends on a specific backend.
package rag

import (
	"context"
)

// Chunk is one retrievable span of the contract.
type Chunk struct {
	// ID is the unique identifier for this chunk.
	ID string

	// Ordinal is the chunk's position in the original split. Retrieval uses
	// it to break similarity ties deterministically.
	Ordinal int

	// Text is the chunk's clause text.
	Text string

	// Heading is the section heading the chunk opens with, when one could be
	// inferred (e.g. "Section 4.2", "ARTICLE IV"). Empty otherwise. Display
	// only — retrieval never keys on it.
	Heading string

	// Source is the contract file the chunk came from.
	Source string

	// Score is the similarity score assigned during retrieval (0.0–1.0).
	// Zero value means the score was not computed.
	Score float32
}

// VectorStore is the interface for persisting and searching chunk embeddings.
// Implementations must be safe to call from multiple goroutines.
type VectorStore interface {
	// Upsert stores or updates a batch of chunks with their pre-computed
	// embeddings. The embeddings slice must be parallel to chunks —
	// embeddings[i] is the vector for chunks[i].
	Upsert(ctx context.Context, chunks []Chunk, embeddings [][]float32) error

	// Search returns the min(topK, stored) most similar chunks for the given
	// query embedding, ordered by descending similarity with ties broken by
	// ascending ordinal.
	Search(ctx context.Context, queryEmbedding []float32, topK int) ([]Chunk, error)

	// Reset removes all stored chunks, preparing the store for a fresh
	// contract build.
	Reset(ctx context.Context) error

	// Close releases any resources held by the store.
	Close() error
}

// Embedder is the interface for converting text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Retriever is the high-level interface used by the composer to fetch
// relevant clauses for a question. It combines embedding and vector search.
// Implementations must be safe to call from multiple goroutines.
type Retriever interface {
	// Retrieve returns the top-k most relevant chunks for the given query.
	Retrieve(ctx context.Context, query string, topK int) ([]Chunk, error)
}
