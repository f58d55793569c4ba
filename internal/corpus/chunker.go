// Package corpus turns reference text into embedded chunks ready for
// indexing: split into overlapping character windows, embed in batches with
// per-chunk failure tolerance, and cache vectors keyed by corpus content so
// unchanged corpora never re-embed.
package corpus

import "strings"

const (
	// defaultChunkSize is the chunk window in characters, sized for prose at
	// roughly 800 tokens.
	defaultChunkSize = 3200

	// defaultChunkOverlap is the number of characters shared between
	// consecutive chunks so sentences spanning a boundary stay retrievable.
	defaultChunkOverlap = 200
)

// Chunker splits corpus text into overlapping character windows.
type Chunker struct {
	size    int
	overlap int
}

// NewChunker constructs a Chunker. Non-positive size or overlap fall back to
// the defaults, and an overlap at or beyond the window size is clamped to a
// tenth of it so the split always advances.
func NewChunker(size, overlap int) *Chunker {
	if size <= 0 {
		size = defaultChunkSize
	}
	if overlap < 0 {
		overlap = defaultChunkOverlap
	}
	if overlap >= size {
		overlap = size / 10
	}
	return &Chunker{size: size, overlap: overlap}
}

// Split cuts text into chunks of at most the window size, each sharing the
// configured overlap with its predecessor. The trailing partial chunk is
// kept, never dropped. Empty or blank text yields no chunks.
func (c *Chunker) Split(text string) []string {
	text = strings.TrimSpace(text)
	if len(text) == 0 {
		return nil
	}

	var chunks []string
	for start := 0; start < len(text); start += c.size - c.overlap {
		end := start + c.size
		if end > len(text) {
			end = len(text)
		}
		chunks = append(chunks, text[start:end])
		if end == len(text) {
			break
		}
	}

	return chunks
}
