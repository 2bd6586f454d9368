package rag

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/jackc/pgx/v5/pgxpool"
)

// PgvectorConfig holds connection parameters for a Postgres/pgvector store.
type PgvectorConfig struct {
	// DSN is the Postgres connection string.
	DSN string

	// Table is the table holding clause embeddings (default: clause_chunks).
	Table string

	// VectorSize is the dimensionality of the stored embeddings.
	VectorSize int
}

// PgvectorStore implements VectorStore backed by Postgres with the pgvector
// extension. Similarity is cosine, via the <=> distance operator.
type PgvectorStore struct {
	// pool is the underlying pgx connection pool.
	pool *pgxpool.Pool

	// cfg holds the resolved configuration for this store.
	cfg *PgvectorConfig
}

// NewPgvectorStore connects to Postgres, verifies the connection, and creates
// the chunk table and vector index if they do not already exist.
func NewPgvectorStore(ctx context.Context, cfg *PgvectorConfig) (*PgvectorStore, error) {
	if cfg.Table == "" {
		cfg.Table = "clause_chunks"
	}
	if cfg.VectorSize <= 0 {
		return nil, fmt.Errorf("pgvector: VectorSize must be positive, got %d", cfg.VectorSize)
	}

	pool, err := pgxpool.New(ctx, cfg.DSN)
	if err != nil {
		return nil, fmt.Errorf("pgvector: failed to connect: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("pgvector: failed to ping: %w", err)
	}

	s := &PgvectorStore{pool: pool, cfg: cfg}
	if err := s.initialize(ctx); err != nil {
		pool.Close()
		return nil, err
	}
	return s, nil
}

// initialize sets up the extension, table, and cosine index.
func (s *PgvectorStore) initialize(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, `CREATE EXTENSION IF NOT EXISTS vector`); err != nil {
		return fmt.Errorf("pgvector: failed to enable vector extension: %w", err)
	}

	ddl := fmt.Sprintf(`
        CREATE TABLE IF NOT EXISTS %s (
            id        TEXT PRIMARY KEY,
            ordinal   INTEGER NOT NULL,
            content   TEXT NOT NULL,
            heading   TEXT NOT NULL DEFAULT '',
            source    TEXT NOT NULL,
            embedding vector(%d) NOT NULL
        )
    `, s.cfg.Table, s.cfg.VectorSize)
	if _, err := s.pool.Exec(ctx, ddl); err != nil {
		return fmt.Errorf("pgvector: failed to create table %s: %w", s.cfg.Table, err)
	}

	idx := fmt.Sprintf(`
        CREATE INDEX IF NOT EXISTS %s_embedding_idx ON %s
        USING ivfflat (embedding vector_cosine_ops) WITH (lists = 100)
    `, s.cfg.Table, s.cfg.Table)
	if _, err := s.pool.Exec(ctx, idx); err != nil {
		return fmt.Errorf("pgvector: failed to create vector index: %w", err)
	}

	return nil
}

// Upsert stores or updates a batch of chunks with their pre-computed
// embeddings. embeddings[i] must be the vector for chunks[i].
func (s *PgvectorStore) Upsert(ctx context.Context, chunks []Chunk, embeddings [][]float32) error {
	if len(chunks) != len(embeddings) {
		return fmt.Errorf("pgvector: %d chunks but %d embeddings", len(chunks), len(embeddings))
	}

	q := fmt.Sprintf(`
        INSERT INTO %s (id, ordinal, content, heading, source, embedding)
        VALUES ($1, $2, $3, $4, $5, $6::vector)
        ON CONFLICT (id) DO UPDATE SET
            ordinal = EXCLUDED.ordinal,
            content = EXCLUDED.content,
            heading = EXCLUDED.heading,
            source = EXCLUDED.source,
            embedding = EXCLUDED.embedding
    `, s.cfg.Table)

	for i, c := range chunks {
		if _, err := s.pool.Exec(ctx, q, c.ID, c.Ordinal, c.Text, c.Heading, c.Source, vectorLiteral(embeddings[i])); err != nil {
			return fmt.Errorf("pgvector: upsert chunk %s: %w", c.ID, err)
		}
	}
	return nil
}

// Search performs a cosine similarity search and returns the top-k chunks,
// descending by similarity with ties broken by ascending ordinal.
func (s *PgvectorStore) Search(ctx context.Context, queryEmbedding []float32, topK int) ([]Chunk, error) {
	q := fmt.Sprintf(`
        SELECT id, ordinal, content, heading, source,
               1 - (embedding <=> $1::vector) AS similarity
        FROM %s
        ORDER BY similarity DESC, ordinal ASC
        LIMIT $2
    `, s.cfg.Table)

	rows, err := s.pool.Query(ctx, q, vectorLiteral(queryEmbedding), topK)
	if err != nil {
		return nil, fmt.Errorf("pgvector: search failed: %w", err)
	}
	defer rows.Close()

	var chunks []Chunk
	for rows.Next() {
		var c Chunk
		var sim float64
		if err := rows.Scan(&c.ID, &c.Ordinal, &c.Text, &c.Heading, &c.Source, &sim); err != nil {
			return nil, fmt.Errorf("pgvector: scan result: %w", err)
		}
		c.Score = float32(sim)
		chunks = append(chunks, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("pgvector: result rows: %w", err)
	}
	return chunks, nil
}

// Reset removes all stored chunks.
func (s *PgvectorStore) Reset(ctx context.Context) error {
	if _, err := s.pool.Exec(ctx, fmt.Sprintf(`TRUNCATE %s`, s.cfg.Table)); err != nil {
		return fmt.Errorf("pgvector: reset failed: %w", err)
	}
	return nil
}

// Close releases the connection pool.
func (s *PgvectorStore) Close() error {
	s.pool.Close()
	return nil
}

// vectorLiteral renders an embedding in pgvector's input syntax: "[x,y,z]".
func vectorLiteral(v []float32) string {
	var b strings.Builder
	b.WriteByte('[')
	for i, x := range v {
		if i > 0 {
			b.WriteByte(',')
		}
		b.WriteString(strconv.FormatFloat(float64(x), 'f', -1, 32))
	}
	b.WriteByte(']')
	return b.String()
}
