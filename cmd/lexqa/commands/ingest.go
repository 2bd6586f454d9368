package commands

import (
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/davral/lexqa-go/internal/docload"
	"github.com/davral/lexqa-go/internal/embedder"
	"github.com/davral/lexqa-go/internal/index"
	"github.com/davral/lexqa-go/internal/logging"
)

// NewIngestCmd constructs the `lexqa ingest` command, which chunks, embeds,
// and indexes contracts without answering anything. Useful for pre-warming a
// remote vector store before serving questions.
func NewIngestCmd() *cobra.Command {
	var files []string

	cmd := &cobra.Command{
		Use:   "ingest",
		Short: "Index contracts into the vector store",
		Long: `Chunk, embed, and index one or more contracts into the configured vector
store without asking a question.

Indexing is content-addressed: a contract whose bytes have not changed is
never re-embedded. The vector store backend is selected with VECTOR_STORE
(memory, qdrant, pgvector); pre-warming only makes sense for the remote
backends.

Required environment variables for remote stores:
  QDRANT_HOST / QDRANT_PORT / QDRANT_COLLECTION    (VECTOR_STORE=qdrant)
  PGVECTOR_DSN / PGVECTOR_TABLE                    (VECTOR_STORE=pgvector)
  EMBEDDING_*                                      embedding backend overrides

Examples:
  VECTOR_STORE=qdrant lexqa ingest --file lease.pdf
  lexqa ingest --file lease.pdf --file msa.pdf`,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if len(files) == 0 {
				return fmt.Errorf("ingest: at least one --file is required")
			}

			if err := embedder.Validate(log); err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			emb, err := embedder.NewFromEnv()
			if err != nil {
				return fmt.Errorf("ingest: failed to initialise embedder: %w", err)
			}

			stores, err := buildStores(log)
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}

			indexes, err := index.NewManager(&index.Config{
				Embedder: emb,
				Stores:   stores,
				Splitter: buildSplitter(),
			})
			if err != nil {
				return fmt.Errorf("ingest: %w", err)
			}
			defer func() { _ = indexes.Close() }()

			for _, path := range files {
				doc, err := docload.Open(path)
				if err != nil {
					return fmt.Errorf("ingest: %w", err)
				}

				ix, cached, err := indexes.Build(ctx, doc)
				if err != nil {
					return fmt.Errorf("ingest: %s: %w", path, err)
				}
				log.Info("contract indexed",
					slog.String("source", doc.Source),
					slog.Int("chunks", ix.Len()),
					slog.Bool("cached", cached),
				)
			}

			log.Info("ingestion complete", slog.Int("contracts", len(files)))
			return nil
		},
	}

	cmd.Flags().StringArrayVarP(&files, "file", "f", nil, "Contract file to index (repeatable)")

	return cmd
}
