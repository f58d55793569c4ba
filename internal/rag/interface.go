// Package rag provides the retrieval layer for question answering: chunk and
// score types, the embedding contract, an immutable in-memory vector index,
// and a retriever that turns a query into a budgeted, ranked context set.
// A Qdrant-backed store implements the same search contract for corpora too
// large to hold in process.
package rag

import (
	"context"
)

// Chunk is one contiguous slice of the reference corpus with its embedding.
// Chunks are created once at indexing time and never mutated afterwards.
type Chunk struct {
	// Seq is the chunk's position in the original corpus. It is the stable
	// tie-break order for retrieval and the chunk's identity within an index.
	Seq int

	// ID is the stable content identifier (corpus hash plus sequence).
	ID string

	// Text is the chunk text.
	Text string

	// Source names the corpus file the chunk came from.
	Source string

	// Vector is the chunk's embedding. Every chunk in one index has the same
	// dimensionality.
	Vector []float32
}

// ScoredChunk pairs an indexed chunk with its similarity to a query. The
// chunk is referenced, never copied; the index owns chunk storage.
type ScoredChunk struct {
	Chunk *Chunk

	// Score is the cosine similarity to the query, in [-1, 1].
	Score float64
}

// Embedder converts text into dense vector embeddings.
// Implementations must be safe to call from multiple goroutines.
type Embedder interface {
	// Embed converts a batch of texts into their corresponding embeddings.
	// The returned slice is parallel to the input slice.
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Searcher is the read side of a vector index.
// Implementations must be safe to call from multiple goroutines.
type Searcher interface {
	// Search returns the topK chunks most similar to the query vector,
	// ordered by descending score. An empty index yields an empty result,
	// not an error.
	Search(ctx context.Context, queryVector []float32, topK int) ([]ScoredChunk, error)

	// Dimension returns the vector width the index holds, or 0 when the
	// index is empty.
	Dimension() int
}

// VectorStore is a Searcher that also accepts writes, for backends populated
// out of process (Qdrant). The in-memory index is deliberately not a
// VectorStore: it is sealed at construction.
type VectorStore interface {
	Searcher

	// Upsert stores or replaces chunks with their pre-computed embeddings,
	// keyed by Chunk.Seq.
	Upsert(ctx context.Context, chunks []Chunk) error

	// Close releases any resources held by the store.
	Close() error
}
