package rag

import (
	"reflect"
	"testing"
)

func testChunks() []Chunk {
	return []Chunk{
		{Seq: 0, ID: "c0", Text: "first", Vector: []float32{1, 0}},
		{Seq: 1, ID: "c1", Text: "second", Vector: []float32{0, 1}},
		{Seq: 2, ID: "c2", Text: "third", Vector: []float32{1, 0}},
	}
}

func TestNewMemoryIndex_DimensionMismatch(t *testing.T) {
	t.Parallel()

	_, err := NewMemoryIndex([]Chunk{
		{Seq: 0, Vector: []float32{1, 0}},
		{Seq: 1, Vector: []float32{1, 0, 0}},
	})
	if err == nil {
		t.Fatal("expected dimension mismatch error")
	}
}

func TestMemoryIndex_EmptySearch(t *testing.T) {
	t.Parallel()

	ix, err := NewMemoryIndex(nil)
	if err != nil {
		t.Fatalf("NewMemoryIndex: %v", err)
	}
	if ix.Dimension() != 0 {
		t.Errorf("Dimension() = %d, want 0", ix.Dimension())
	}

	got, err := ix.Search(t.Context(), []float32{1, 0}, 5)
	if err != nil {
		t.Fatalf("Search on empty index: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("Search on empty index returned %d results, want 0", len(got))
	}
}

func TestMemoryIndex_SearchOrderAndTieBreak(t *testing.T) {
	t.Parallel()

	ix, err := NewMemoryIndex(testChunks())
	if err != nil {
		t.Fatalf("NewMemoryIndex: %v", err)
	}

	got, err := ix.Search(t.Context(), []float32{1, 0}, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}

	// c0 and c2 both score 1.0; the tie must resolve to corpus order.
	wantIDs := []string{"c0", "c2", "c1"}
	if len(got) != len(wantIDs) {
		t.Fatalf("Search returned %d results, want %d", len(got), len(wantIDs))
	}
	for i, want := range wantIDs {
		if got[i].Chunk.ID != want {
			t.Errorf("result[%d] = %q, want %q", i, got[i].Chunk.ID, want)
		}
	}
	if got[0].Score < got[1].Score || got[1].Score < got[2].Score {
		t.Error("results not in descending score order")
	}
}

func TestMemoryIndex_SearchDeterministic(t *testing.T) {
	t.Parallel()

	ix, err := NewMemoryIndex(testChunks())
	if err != nil {
		t.Fatalf("NewMemoryIndex: %v", err)
	}

	first, err := ix.Search(t.Context(), []float32{0.7, 0.7}, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	second, err := ix.Search(t.Context(), []float32{0.7, 0.7}, 3)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if !reflect.DeepEqual(first, second) {
		t.Error("repeated Search with identical inputs returned different results")
	}
}

func TestMemoryIndex_TopKCaps(t *testing.T) {
	t.Parallel()

	ix, err := NewMemoryIndex(testChunks())
	if err != nil {
		t.Fatalf("NewMemoryIndex: %v", err)
	}

	got, err := ix.Search(t.Context(), []float32{1, 0}, 2)
	if err != nil {
		t.Fatalf("Search: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("Search with topK=2 returned %d results", len(got))
	}
}

func TestMemoryIndex_QueryDimensionMismatch(t *testing.T) {
	t.Parallel()

	ix, err := NewMemoryIndex(testChunks())
	if err != nil {
		t.Fatalf("NewMemoryIndex: %v", err)
	}

	if _, err := ix.Search(t.Context(), []float32{1, 0, 0}, 2); err == nil {
		t.Fatal("expected error for mismatched query dimension")
	}
}
