package rag

import (
	"context"
	"fmt"
	"sort"
)

// MemoryIndex is the in-process vector index over a fixed chunk set. It is
// sealed at construction and never mutated, so any number of goroutines may
// search it concurrently without locking.
type MemoryIndex struct {
	chunks []Chunk
	dim    int
}

// NewMemoryIndex builds an index over the given chunks, asserting that every
// chunk carries a vector of the same dimensionality. Chunks are kept in the
// order given; that order is the tie-break order for equal scores.
// An empty chunk set is a valid, empty index.
func NewMemoryIndex(chunks []Chunk) (*MemoryIndex, error) {
	ix := &MemoryIndex{chunks: chunks}
	for i := range chunks {
		d := len(chunks[i].Vector)
		if ix.dim == 0 {
			ix.dim = d
		}
		if d != ix.dim {
			return nil, fmt.Errorf("rag: chunk %d has dimension %d, want %d", chunks[i].Seq, d, ix.dim)
		}
	}
	return ix, nil
}

// Len returns the number of indexed chunks.
func (ix *MemoryIndex) Len() int { return len(ix.chunks) }

// Dimension returns the vector width of the index, or 0 when it is empty.
func (ix *MemoryIndex) Dimension() int { return ix.dim }

// Search scores every indexed chunk against the query vector and returns the
// topK best, ordered by descending score with exact ties kept in original
// chunk order. Searching an empty index returns an empty result.
func (ix *MemoryIndex) Search(_ context.Context, queryVector []float32, topK int) ([]ScoredChunk, error) {
	if len(ix.chunks) == 0 || topK <= 0 {
		return nil, nil
	}
	if len(queryVector) != ix.dim {
		return nil, fmt.Errorf("rag: query dimension %d does not match index dimension %d", len(queryVector), ix.dim)
	}

	scored := make([]ScoredChunk, len(ix.chunks))
	for i := range ix.chunks {
		scored[i] = ScoredChunk{
			Chunk: &ix.chunks[i],
			Score: Cosine(queryVector, ix.chunks[i].Vector),
		}
	}

	// Stable sort keeps equal-score chunks in corpus order, which makes
	// retrieval reproducible across calls.
	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Score > scored[j].Score
	})

	if topK < len(scored) {
		scored = scored[:topK]
	}
	return scored, nil
}
