package rag

import (
	"context"
	"fmt"
	"strings"

	"github.com/quizmind/mcqa-go/internal/budget"
)

// Retriever turns a query into a ranked, budgeted set of context chunks:
// embed the query, search the index, drop low-confidence scores, then trim
// to the character budget. Safe for concurrent use; it holds no mutable
// state beyond the read-only index.
type Retriever struct {
	embedder Embedder
	index    Searcher
	topK     int
	maxChars int
	minScore float64
}

// RetrieverConfig holds the collaborators and tuning for a Retriever.
type RetrieverConfig struct {
	// Embedder converts query text to a vector. Must be the same provider
	// and model the index was built with.
	Embedder Embedder

	// Index is the vector index to search.
	Index Searcher

	// TopK is the number of chunks to consider per query. Defaults to 5.
	TopK int

	// MaxChars is the cumulative character budget for returned chunk text.
	// Defaults to 9600 (roughly three default-size chunks).
	MaxChars int

	// MinScore drops chunks scoring below it before the budget trim.
	// Defaults to 0.30. Set negative to keep everything.
	MinScore float64
}

// NewRetriever constructs a Retriever from the given config.
func NewRetriever(cfg *RetrieverConfig) (*Retriever, error) {
	if cfg.Embedder == nil {
		return nil, fmt.Errorf("rag: embedder must not be nil")
	}
	if cfg.Index == nil {
		return nil, fmt.Errorf("rag: index must not be nil")
	}

	topK := cfg.TopK
	if topK <= 0 {
		topK = 5
	}
	maxChars := cfg.MaxChars
	if maxChars <= 0 {
		maxChars = 9600
	}
	minScore := cfg.MinScore
	if minScore == 0 {
		minScore = 0.30
	}

	return &Retriever{
		embedder: cfg.Embedder,
		index:    cfg.Index,
		topK:     topK,
		maxChars: maxChars,
		minScore: minScore,
	}, nil
}

// Retrieve runs RetrieveN with the configured top-k and character budget.
func (r *Retriever) Retrieve(ctx context.Context, query string) ([]ScoredChunk, error) {
	return r.RetrieveN(ctx, query, r.topK, r.maxChars)
}

// RetrieveN returns up to k chunks relevant to the query whose cumulative
// text length stays within maxChars, keeping at least one chunk when any
// clears the score floor. An empty query or an empty index yields an empty
// result, not an error.
func (r *Retriever) RetrieveN(ctx context.Context, query string, k, maxChars int) ([]ScoredChunk, error) {
	if k <= 0 {
		k = r.topK
	}
	if maxChars <= 0 {
		maxChars = r.maxChars
	}
	if strings.TrimSpace(query) == "" {
		return nil, nil
	}

	vectors, err := r.embedder.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("rag: embedding query failed: %w", err)
	}
	if len(vectors) == 0 {
		return nil, fmt.Errorf("rag: embedder returned no vector for query")
	}

	scored, err := r.index.Search(ctx, vectors[0], k)
	if err != nil {
		return nil, fmt.Errorf("rag: vector search failed: %w", err)
	}

	relevant := scored[:0:0]
	for _, sc := range scored {
		if sc.Score >= r.minScore {
			relevant = append(relevant, sc)
		}
	}
	if len(relevant) == 0 {
		return nil, nil
	}

	texts := make([]string, len(relevant))
	for i, sc := range relevant {
		texts[i] = sc.Chunk.Text
	}
	return relevant[:budget.KeepWithinChars(texts, maxChars)], nil
}

// ContextText formats retrieved chunks into the reference-material block the
// prompt composer embeds, numbering each excerpt.
func ContextText(chunks []ScoredChunk) string {
	if len(chunks) == 0 {
		return ""
	}
	var b strings.Builder
	for i, sc := range chunks {
		if i > 0 {
			b.WriteString("\n\n")
		}
		fmt.Fprintf(&b, "[Context %d]\n%s", i+1, sc.Chunk.Text)
	}
	return b.String()
}
