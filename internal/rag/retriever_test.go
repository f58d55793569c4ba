package rag

import (
	"context"
	"errors"
	"strings"
	"testing"
)

// fakeEmbedder returns the same vector for every input text.
type fakeEmbedder struct {
	vec   []float32
	err   error
	calls int
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	out := make([][]float32, len(texts))
	for i := range texts {
		out[i] = f.vec
	}
	return out, nil
}

func retrieverFixture(t *testing.T, cfg *RetrieverConfig) *Retriever {
	t.Helper()

	ix, err := NewMemoryIndex([]Chunk{
		{Seq: 0, ID: "c0", Text: "aaaa", Vector: []float32{1, 0}},
		{Seq: 1, ID: "c1", Text: "bbbbbb", Vector: []float32{0.9, 0.1}},
		{Seq: 2, ID: "c2", Text: "cccc", Vector: []float32{0, 1}},
	})
	if err != nil {
		t.Fatalf("NewMemoryIndex: %v", err)
	}

	cfg.Index = ix
	r, err := NewRetriever(cfg)
	if err != nil {
		t.Fatalf("NewRetriever: %v", err)
	}
	return r
}

func TestNewRetriever_Validation(t *testing.T) {
	t.Parallel()

	if _, err := NewRetriever(&RetrieverConfig{Index: &MemoryIndex{}}); err == nil {
		t.Error("expected error for nil embedder")
	}
	if _, err := NewRetriever(&RetrieverConfig{Embedder: &fakeEmbedder{}}); err == nil {
		t.Error("expected error for nil index")
	}
}

func TestRetriever_RanksAndFilters(t *testing.T) {
	t.Parallel()

	r := retrieverFixture(t, &RetrieverConfig{Embedder: &fakeEmbedder{vec: []float32{1, 0}}})

	got, err := r.Retrieve(t.Context(), "query")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}

	// c2 is orthogonal to the query and sits below the 0.30 score floor.
	wantIDs := []string{"c0", "c1"}
	if len(got) != len(wantIDs) {
		t.Fatalf("Retrieve returned %d chunks, want %d", len(got), len(wantIDs))
	}
	for i, want := range wantIDs {
		if got[i].Chunk.ID != want {
			t.Errorf("result[%d] = %q, want %q", i, got[i].Chunk.ID, want)
		}
	}
}

func TestRetriever_CharBudgetTrimsTrailingChunks(t *testing.T) {
	t.Parallel()

	r := retrieverFixture(t, &RetrieverConfig{Embedder: &fakeEmbedder{vec: []float32{1, 0}}})

	// c0 (4 chars) fits; adding c1 (6 chars) would exceed 8.
	got, err := r.RetrieveN(t.Context(), "query", 5, 8)
	if err != nil {
		t.Fatalf("RetrieveN: %v", err)
	}
	if len(got) != 1 || got[0].Chunk.ID != "c0" {
		t.Fatalf("RetrieveN = %v, want just c0", got)
	}
}

func TestRetriever_BudgetAlwaysKeepsOneChunk(t *testing.T) {
	t.Parallel()

	r := retrieverFixture(t, &RetrieverConfig{Embedder: &fakeEmbedder{vec: []float32{1, 0}}})

	got, err := r.RetrieveN(t.Context(), "query", 5, 2)
	if err != nil {
		t.Fatalf("RetrieveN: %v", err)
	}
	if len(got) != 1 {
		t.Fatalf("RetrieveN with tiny budget returned %d chunks, want 1", len(got))
	}
}

func TestRetriever_EmptyQuery(t *testing.T) {
	t.Parallel()

	emb := &fakeEmbedder{vec: []float32{1, 0}}
	r := retrieverFixture(t, &RetrieverConfig{Embedder: emb})

	got, err := r.Retrieve(t.Context(), "   ")
	if err != nil {
		t.Fatalf("Retrieve: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Retrieve of blank query returned %d chunks, want 0", len(got))
	}
	if emb.calls != 0 {
		t.Errorf("blank query must not hit the embedder, got %d calls", emb.calls)
	}
}

func TestRetriever_EmptyIndex(t *testing.T) {
	t.Parallel()

	ix, err := NewMemoryIndex(nil)
	if err != nil {
		t.Fatalf("NewMemoryIndex: %v", err)
	}
	r, err := NewRetriever(&RetrieverConfig{Embedder: &fakeEmbedder{vec: []float32{1, 0}}, Index: ix})
	if err != nil {
		t.Fatalf("NewRetriever: %v", err)
	}

	got, err := r.Retrieve(t.Context(), "query")
	if err != nil {
		t.Fatalf("Retrieve on empty index: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Retrieve on empty index returned %d chunks, want 0", len(got))
	}
}

func TestRetriever_EmbedderError(t *testing.T) {
	t.Parallel()

	r := retrieverFixture(t, &RetrieverConfig{Embedder: &fakeEmbedder{err: errors.New("boom")}})

	if _, err := r.Retrieve(t.Context(), "query"); err == nil {
		t.Fatal("expected embedder error to propagate")
	}
}

func TestContextText(t *testing.T) {
	t.Parallel()

	chunks := []ScoredChunk{
		{Chunk: &Chunk{Text: "alpha"}, Score: 0.9},
		{Chunk: &Chunk{Text: "beta"}, Score: 0.8},
	}
	got := ContextText(chunks)
	if !strings.Contains(got, "[Context 1]\nalpha") || !strings.Contains(got, "[Context 2]\nbeta") {
		t.Errorf("ContextText() = %q", got)
	}
	if ContextText(nil) != "" {
		t.Error("ContextText(nil) must be empty")
	}
}
