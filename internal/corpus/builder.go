package corpus

import (
	"context"
	"crypto/sha256"
	"errors"
	"fmt"

	"github.com/quizmind/mcqa-go/internal/logging"
	"github.com/quizmind/mcqa-go/internal/rag"
)

// defaultBatchSize is the number of chunks sent to the embedding provider
// per request.
const defaultBatchSize = 32

// Cache persists embedded chunks keyed by corpus hash and model so repeat
// builds over an unchanged corpus skip the embedding provider entirely.
// Implementations must be safe to call from multiple goroutines.
type Cache interface {
	// Load returns the cached chunks for the given corpus hash and embedding
	// model. The second return is false on a cache miss.
	Load(ctx context.Context, corpusHash, model string) ([]rag.Chunk, bool, error)

	// Save stores the chunks under the given corpus hash and embedding model.
	Save(ctx context.Context, corpusHash, model string, chunks []rag.Chunk) error
}

// ChunkFailure records a chunk that could not be embedded and was left out
// of the build output.
type ChunkFailure struct {
	Seq int
	Err error
}

// BuildReport summarizes a corpus build.
type BuildReport struct {
	// Total is the number of chunks the splitter produced.
	Total int
	// Embedded is the number of chunks that made it into the output.
	Embedded int
	// FromCache is true when the vectors were served from the cache and the
	// embedding provider was never called.
	FromCache bool
	// Failures lists chunks excluded because embedding failed for them.
	Failures []ChunkFailure
}

// BuilderConfig configures a Builder. Embedder is required; everything else
// has a usable default.
type BuilderConfig struct {
	Embedder rag.Embedder

	// Cache, when set, is consulted before embedding and updated after a
	// fully successful build.
	Cache Cache

	// Model names the embedding model, used only to key the cache.
	// Required when Cache is set.
	Model string

	// Source labels the corpus origin (typically a file path) and is carried
	// on every chunk.
	Source string

	ChunkSize    int
	ChunkOverlap int
	BatchSize    int

	// Progress, when set, is called after each embedded batch with the number
	// of chunks processed so far and the total.
	Progress func(done, total int)
}

// Builder embeds corpus text into retrievable chunks.
type Builder struct {
	embedder  rag.Embedder
	cache     Cache
	model     string
	source    string
	chunker   *Chunker
	batchSize int
	progress  func(done, total int)
}

// NewBuilder constructs a Builder from cfg.
func NewBuilder(cfg *BuilderConfig) (*Builder, error) {
	if cfg == nil {
		return nil, errors.New("corpus: config is required")
	}
	if cfg.Embedder == nil {
		return nil, errors.New("corpus: embedder is required")
	}
	if cfg.Cache != nil && cfg.Model == "" {
		return nil, errors.New("corpus: model name is required when a cache is set")
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = defaultBatchSize
	}
	progress := cfg.Progress
	if progress == nil {
		progress = func(done, total int) {}
	}
	return &Builder{
		embedder:  cfg.Embedder,
		cache:     cfg.Cache,
		model:     cfg.Model,
		source:    cfg.Source,
		chunker:   NewChunker(cfg.ChunkSize, cfg.ChunkOverlap),
		batchSize: batch,
		progress:  progress,
	}, nil
}

// Build splits text into chunks and embeds them, serving from the cache when
// the corpus content is unchanged. Chunks whose embedding fails are excluded
// and recorded in the report; a build where no chunk survives returns an
// error. The returned chunks keep corpus order.
func (b *Builder) Build(ctx context.Context, text string) ([]rag.Chunk, *BuildReport, error) {
	log := logging.FromContext(ctx)

	texts := b.chunker.Split(text)
	if len(texts) == 0 {
		return nil, nil, errors.New("corpus: corpus text is empty")
	}
	hash := fmt.Sprintf("%x", sha256.Sum256([]byte(text)))

	if b.cache != nil {
		chunks, ok, err := b.cache.Load(ctx, hash, b.model)
		if err != nil {
			log.Warn("corpus: cache read failed, re-embedding", "error", err)
		} else if ok {
			log.Info("corpus: embeddings served from cache",
				"chunks", len(chunks), "corpus_hash", hash[:12])
			return chunks, &BuildReport{
				Total:     len(texts),
				Embedded:  len(chunks),
				FromCache: true,
			}, nil
		}
	}

	vectors, failures := b.embedAll(ctx, texts)

	chunks := make([]rag.Chunk, 0, len(texts))
	for i, vec := range vectors {
		if vec == nil {
			continue
		}
		chunks = append(chunks, rag.Chunk{
			Seq:    i,
			ID:     chunkID(hash, i),
			Text:   texts[i],
			Source: b.source,
			Vector: vec,
		})
	}
	if len(chunks) == 0 {
		return nil, nil, fmt.Errorf("corpus: no chunks could be embedded (%d attempted)", len(texts))
	}

	report := &BuildReport{
		Total:    len(texts),
		Embedded: len(chunks),
		Failures: failures,
	}
	for _, f := range failures {
		log.Warn("corpus: chunk excluded from index", "seq", f.Seq, "error", f.Err)
	}

	// A partial build is not cached: a later load would silently serve an
	// index with holes in it.
	if b.cache != nil && len(failures) == 0 {
		if err := b.cache.Save(ctx, hash, b.model, chunks); err != nil {
			log.Warn("corpus: cache write failed", "error", err)
		}
	}

	return chunks, report, nil
}

// embedAll embeds texts in batches. The returned slice is parallel to texts,
// with nil entries for chunks that failed. A failed batch call is retried one
// chunk at a time so a single bad chunk cannot take down its batch.
func (b *Builder) embedAll(ctx context.Context, texts []string) ([][]float32, []ChunkFailure) {
	vectors := make([][]float32, len(texts))
	var failures []ChunkFailure

	fail := func(seq int, err error) {
		failures = append(failures, ChunkFailure{Seq: seq, Err: err})
	}

	for start := 0; start < len(texts); start += b.batchSize {
		end := start + b.batchSize
		if end > len(texts) {
			end = len(texts)
		}
		batch := texts[start:end]

		got, err := b.embedder.Embed(ctx, batch)
		switch {
		case err == nil && len(got) == len(batch):
			copy(vectors[start:end], got)
		case err == nil:
			for i := range batch {
				fail(start+i, fmt.Errorf("corpus: provider returned %d vectors for %d texts", len(got), len(batch)))
			}
		default:
			for i, t := range batch {
				single, serr := b.embedder.Embed(ctx, []string{t})
				if serr != nil {
					fail(start+i, serr)
					continue
				}
				if len(single) != 1 {
					fail(start+i, fmt.Errorf("corpus: provider returned %d vectors for 1 text", len(single)))
					continue
				}
				vectors[start+i] = single[0]
			}
		}

		b.progress(end, len(texts))
	}

	// Vectors of the wrong width would poison the index, so drop them here
	// rather than failing the whole build downstream.
	dim := 0
	for _, v := range vectors {
		if v != nil {
			dim = len(v)
			break
		}
	}
	for i, v := range vectors {
		if v != nil && len(v) != dim {
			fail(i, fmt.Errorf("corpus: vector dimension %d does not match %d", len(v), dim))
			vectors[i] = nil
		}
	}

	return vectors, failures
}

// chunkID derives a stable chunk identifier from the corpus hash and the
// chunk's position within it.
func chunkID(corpusHash string, seq int) string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s#%d", corpusHash, seq)))
	return fmt.Sprintf("%x", sum[:16])
}
