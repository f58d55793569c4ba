package commands

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/quizmind/mcqa-go/internal/embedder"
	"github.com/quizmind/mcqa-go/internal/logging"
)

// NewIndexCmd constructs the `mcqa index` command, which chunks and embeds
// the corpus ahead of time so later commands start from the cache, and
// populates Qdrant when it is configured.
func NewIndexCmd() *cobra.Command {
	var corpusPath string
	var chunkSize int
	var chunkOverlap int
	var batchSize int
	var noCache bool

	cmd := &cobra.Command{
		Use:   "index",
		Short: "Chunk and embed the reference corpus",
		Long: `Split the reference corpus into overlapping chunks, embed them, and store
the vectors.

Vectors land in the SQLite embedding cache keyed by corpus content hash and
embedding model, so ask/serve/eval skip re-embedding an unchanged corpus.
When Qdrant is configured (QDRANT_HOST or QDRANT_COLLECTION), the chunks are
also upserted into the collection.

The corpus path may be a single file or a glob (e.g. 'docs/**/*.md');
matched files are concatenated in sorted order.

Examples:
  mcqa index --corpus textbook.txt
  mcqa index --corpus 'notes/**/*.md' --chunk-size 2000 --chunk-overlap 100
  mcqa index --corpus textbook.txt --no-cache`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			ctx := cmd.Context()
			log := logging.New()
			ctx = logging.WithLogger(ctx, log)

			if corpusPath == "" {
				corpusPath = os.Getenv("CORPUS_PATH")
			}
			if corpusPath == "" {
				return fmt.Errorf("index: no corpus given, set --corpus or CORPUS_PATH")
			}

			if err := embedder.ValidateForRAG(log); err != nil {
				return fmt.Errorf("index: %w", err)
			}

			emb, err := embedder.NewFromEnv(ctx)
			if err != nil {
				return fmt.Errorf("index: failed to initialise embedder: %w", err)
			}

			opts := corpusBuildOptions{
				corpusPath:   corpusPath,
				chunkSize:    chunkSize,
				chunkOverlap: -1,
				batchSize:    batchSize,
				noCache:      noCache,
				showProgress: true,
			}
			// Zero overlap is a real setting (it disables overlap), so only
			// an explicitly passed flag overrides the configured value.
			if cmd.Flags().Changed("chunk-overlap") {
				opts.chunkOverlap = chunkOverlap
			}

			chunks, report, err := buildCorpusChunks(ctx, log, emb, opts)
			if err != nil {
				return fmt.Errorf("index: %w", err)
			}

			log.Info("corpus embedded",
				slog.Int("chunks", report.Embedded),
				slog.Int("failed", len(report.Failures)),
				slog.Bool("from_cache", report.FromCache),
				slog.String("model", emb.Model()),
			)

			if qdrantEnabled() {
				qstore, err := openQdrant(ctx)
				if err != nil {
					return fmt.Errorf("index: %w", err)
				}
				defer qstore.Close()

				if err := qstore.Upsert(ctx, chunks); err != nil {
					return fmt.Errorf("index: %w", err)
				}
				log.Info("chunks upserted to qdrant",
					slog.Int("chunks", len(chunks)),
					slog.String("collection", getEnvOrDefault("QDRANT_COLLECTION", defaultQdrantCollection)),
				)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&corpusPath, "corpus", "", "Corpus file or glob (default: CORPUS_PATH)")
	cmd.Flags().IntVar(&chunkSize, "chunk-size", 0, "Chunk size in characters (default: CHUNK_SIZE or 3200)")
	cmd.Flags().IntVar(&chunkOverlap, "chunk-overlap", 0, "Chunk overlap in characters, 0 disables (default: CHUNK_OVERLAP or 200)")
	cmd.Flags().IntVar(&batchSize, "batch-size", 0, "Texts per embedding request (default: EMBED_BATCH_SIZE or 32)")
	cmd.Flags().BoolVar(&noCache, "no-cache", false, "Skip the embedding cache and re-embed everything")

	return cmd
}
