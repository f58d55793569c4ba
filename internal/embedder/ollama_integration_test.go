//go:build integration

package embedder

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/quizmind/mcqa-go/internal/rag"
)

// Test_OllamaEmbedder_Live embeds against a real Ollama instance and checks
// the property retrieval depends on: related texts must outscore unrelated
// ones under cosine similarity.
//
// Prerequisites:
//
//	ollama pull nomic-embed-text
//	ollama serve   (or it must already be running)
//
// Run with:
//
//	go test -tags=integration -run Test_OllamaEmbedder_Live ./internal/embedder/
//
// Set OLLAMA_HOST when Ollama is not on localhost:11434.
func Test_OllamaEmbedder_Live(t *testing.T) {
	host := os.Getenv("OLLAMA_HOST")
	if host == "" {
		host = "http://localhost:11434"
	}
	model := os.Getenv("EMBEDDING_MODEL")
	if model == "" {
		model = "nomic-embed-text"
	}

	emb := NewOllamaEmbedder(&OllamaConfig{Host: host, Model: model})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Two statements about the same process and one from a different field.
	texts := []string{
		"Mitochondria produce ATP through oxidative phosphorylation.",
		"Cellular respiration generates most of its energy inside the mitochondria.",
		"Income tax returns must be filed before the April deadline.",
	}

	vecs, err := emb.Embed(ctx, texts)
	if err != nil {
		t.Fatalf("Embed: %v\n\nEnsure Ollama is running and %q is pulled:\n  ollama pull %s", err, model, model)
	}
	if len(vecs) != len(texts) {
		t.Fatalf("got %d embeddings for %d texts", len(vecs), len(texts))
	}
	for i, v := range vecs {
		if len(v) == 0 {
			t.Fatalf("embedding %d is empty", i)
		}
	}

	related := rag.Cosine(vecs[0], vecs[1])
	unrelated := rag.Cosine(vecs[0], vecs[2])
	t.Logf("model=%s dim=%d related=%.3f unrelated=%.3f", model, len(vecs[0]), related, unrelated)

	if related <= unrelated {
		t.Errorf("related pair scored %.3f but the unrelated pair %.3f; ranking is inverted", related, unrelated)
	}

	// A Qdrant collection must be created with exactly this dimension.
	if model == "nomic-embed-text" {
		if want := DefaultDimensions("ollama"); len(vecs[0]) != want {
			t.Errorf("dim=%d differs from the configured default %d; set EMBEDDING_DIMENSIONS=%d",
				len(vecs[0]), want, len(vecs[0]))
		}
	}
}
