package store

import (
	"context"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/quizmind/mcqa-go/internal/rag"
)

// openTestCache opens an in-memory EmbeddingCache for use in tests.
func openTestCache(t *testing.T) *EmbeddingCache {
	t.Helper()
	c, err := Open(":memory:")
	if err != nil {
		t.Fatalf("open in-memory cache: %v", err)
	}
	t.Cleanup(func() { _ = c.Close() })
	return c
}

func testChunks() []rag.Chunk {
	return []rag.Chunk{
		{Seq: 0, ID: "c0", Text: "mitochondria are the powerhouse", Source: "bio.txt", Vector: []float32{0.1, 0.2, 0.3}},
		{Seq: 1, ID: "c1", Text: "ribosomes translate mRNA", Source: "bio.txt", Vector: []float32{0.4, 0.5, 0.6}},
		{Seq: 2, ID: "c2", Text: "DNA replication is semiconservative", Source: "bio.txt", Vector: []float32{0.7, 0.8, 0.9}},
	}
}

func Test_Cache_SaveAndLoad(t *testing.T) {
	t.Parallel()
	c := openTestCache(t)
	ctx := context.Background()

	want := testChunks()
	if err := c.Save(ctx, "hash-a", "embed-model", want); err != nil {
		t.Fatalf("save: %v", err)
	}

	got, ok, err := c.Load(ctx, "hash-a", "embed-model")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if !ok {
		t.Fatal("load: want hit, got miss")
	}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("load: chunks do not round-trip:\ngot  %+v\nwant %+v", got, want)
	}
}

func Test_Cache_MissReturnsFalse(t *testing.T) {
	t.Parallel()
	c := openTestCache(t)

	chunks, ok, err := c.Load(context.Background(), "no-such-hash", "embed-model")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if ok || chunks != nil {
		t.Errorf("load of unknown key: want miss with nil chunks, got ok=%v chunks=%v", ok, chunks)
	}
}

func Test_Cache_ModelIsolation(t *testing.T) {
	t.Parallel()
	c := openTestCache(t)
	ctx := context.Background()

	if err := c.Save(ctx, "hash-a", "model-x", testChunks()[:1]); err != nil {
		t.Fatalf("save model-x: %v", err)
	}
	if err := c.Save(ctx, "hash-a", "model-y", testChunks()[:2]); err != nil {
		t.Fatalf("save model-y: %v", err)
	}

	x, ok, err := c.Load(ctx, "hash-a", "model-x")
	if err != nil || !ok {
		t.Fatalf("load model-x: ok=%v err=%v", ok, err)
	}
	y, ok, err := c.Load(ctx, "hash-a", "model-y")
	if err != nil || !ok {
		t.Fatalf("load model-y: ok=%v err=%v", ok, err)
	}
	if len(x) != 1 || len(y) != 2 {
		t.Errorf("model isolation failed: model-x has %d chunks, model-y has %d", len(x), len(y))
	}
}

func Test_Cache_SaveReplacesPreviousEntry(t *testing.T) {
	t.Parallel()
	c := openTestCache(t)
	ctx := context.Background()

	if err := c.Save(ctx, "hash-a", "embed-model", testChunks()); err != nil {
		t.Fatalf("first save: %v", err)
	}
	if err := c.Save(ctx, "hash-a", "embed-model", testChunks()[:1]); err != nil {
		t.Fatalf("second save: %v", err)
	}

	got, ok, err := c.Load(ctx, "hash-a", "embed-model")
	if err != nil || !ok {
		t.Fatalf("load: ok=%v err=%v", ok, err)
	}
	if len(got) != 1 {
		t.Errorf("want the second save's 1 chunk, got %d", len(got))
	}
}

func Test_Cache_IncompleteEntryIsError(t *testing.T) {
	t.Parallel()
	c := openTestCache(t)
	ctx := context.Background()

	if err := c.Save(ctx, "hash-a", "embed-model", testChunks()); err != nil {
		t.Fatalf("save: %v", err)
	}
	// Simulate a torn entry by removing one row behind the cache's back.
	if _, err := c.db.ExecContext(ctx, `DELETE FROM embeddings WHERE seq = 1`); err != nil {
		t.Fatalf("corrupt entry: %v", err)
	}

	if _, _, err := c.Load(ctx, "hash-a", "embed-model"); err == nil {
		t.Error("load of incomplete entry: want error, got nil")
	}
}

func Test_Cache_PersistsAcrossReopen(t *testing.T) {
	t.Parallel()
	path := filepath.Join(t.TempDir(), "embeddings.db")
	ctx := context.Background()

	c, err := Open(path)
	if err != nil {
		t.Fatalf("open: %v", err)
	}
	if err := c.Save(ctx, "hash-a", "embed-model", testChunks()); err != nil {
		t.Fatalf("save: %v", err)
	}
	if err := c.Close(); err != nil {
		t.Fatalf("close: %v", err)
	}

	reopened, err := Open(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	t.Cleanup(func() { _ = reopened.Close() })

	got, ok, err := reopened.Load(ctx, "hash-a", "embed-model")
	if err != nil || !ok {
		t.Fatalf("load after reopen: ok=%v err=%v", ok, err)
	}
	if len(got) != 3 {
		t.Errorf("want 3 chunks after reopen, got %d", len(got))
	}
}

func Test_Cache_EmptyEntryRoundTrips(t *testing.T) {
	t.Parallel()
	c := openTestCache(t)
	ctx := context.Background()

	if err := c.Save(ctx, "hash-empty", "embed-model", nil); err != nil {
		t.Fatalf("save empty: %v", err)
	}
	got, ok, err := c.Load(ctx, "hash-empty", "embed-model")
	if err != nil {
		t.Fatalf("load empty: %v", err)
	}
	if !ok || len(got) != 0 {
		t.Errorf("empty entry: want hit with 0 chunks, got ok=%v len=%d", ok, len(got))
	}
}
