package corpus

import (
	"strings"
	"testing"
)

// sampleText returns n characters cycling through the alphabet, so overlap
// checks can compare actual content rather than just lengths.
func sampleText(n int) string {
	const alphabet = "abcdefghijklmnopqrstuvwxyz"
	var b strings.Builder
	for b.Len() < n {
		b.WriteString(alphabet)
	}
	return b.String()[:n]
}

func TestChunker_Split(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		size    int
		overlap int
		text    string
		want    []string
	}{
		{
			name: "empty text",
			size: 10, overlap: 3,
			text: "",
			want: nil,
		},
		{
			name: "blank text",
			size: 10, overlap: 3,
			text: "  \n\t ",
			want: nil,
		},
		{
			name: "shorter than window",
			size: 10, overlap: 3,
			text: "hello",
			want: []string{"hello"},
		},
		{
			name: "exactly one window",
			size: 5, overlap: 2,
			text: "abcde",
			want: []string{"abcde"},
		},
		{
			name: "trailing partial kept",
			size: 100, overlap: 0,
			text: sampleText(250),
			want: []string{sampleText(250)[0:100], sampleText(250)[100:200], sampleText(250)[200:250]},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got := NewChunker(tt.size, tt.overlap).Split(tt.text)
			if len(got) != len(tt.want) {
				t.Fatalf("Split() returned %d chunks, want %d", len(got), len(tt.want))
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Errorf("chunk %d = %q, want %q", i, got[i], tt.want[i])
				}
			}
		})
	}
}

func TestChunker_OverlapSharesWindowTail(t *testing.T) {
	t.Parallel()

	const size, overlap = 10, 3
	text := sampleText(25)

	chunks := NewChunker(size, overlap).Split(text)
	if len(chunks) < 2 {
		t.Fatalf("Split() returned %d chunks, want at least 2", len(chunks))
	}
	for i := 1; i < len(chunks); i++ {
		tail := chunks[i-1][len(chunks[i-1])-overlap:]
		if !strings.HasPrefix(chunks[i], tail) {
			t.Errorf("chunk %d does not start with the previous chunk's last %d characters: %q vs %q",
				i, overlap, chunks[i], tail)
		}
	}
}

func TestChunker_SplitCoversWholeText(t *testing.T) {
	t.Parallel()

	const size, overlap = 10, 3
	text := sampleText(47)

	chunks := NewChunker(size, overlap).Split(text)

	var rebuilt strings.Builder
	for i, c := range chunks {
		if i == 0 {
			rebuilt.WriteString(c)
			continue
		}
		rebuilt.WriteString(c[overlap:])
	}
	if rebuilt.String() != text {
		t.Errorf("chunks with overlap removed do not reconstruct the text:\ngot  %q\nwant %q", rebuilt.String(), text)
	}
}

func TestChunker_OverlapAtWindowSizeIsClamped(t *testing.T) {
	t.Parallel()

	// An overlap >= size would make the split loop forever. The clamp drops
	// it to a tenth of the window.
	chunks := NewChunker(100, 100).Split(sampleText(300))
	if len(chunks) == 0 {
		t.Fatal("Split() returned no chunks")
	}
	if got := chunks[0]; len(got) != 100 {
		t.Errorf("first chunk has %d characters, want 100", len(got))
	}
	// Stride must be size - clamped overlap = 90.
	if len(chunks) < 2 || chunks[1][0] != sampleText(300)[90] {
		t.Errorf("second chunk does not start at offset 90")
	}
}

func TestChunker_Defaults(t *testing.T) {
	t.Parallel()

	text := sampleText(7000)
	chunks := NewChunker(0, -1).Split(text)

	if len(chunks) < 2 {
		t.Fatalf("Split() returned %d chunks, want at least 2", len(chunks))
	}
	if len(chunks[0]) != 3200 {
		t.Errorf("first chunk has %d characters, want the 3200 default", len(chunks[0]))
	}
	if chunks[1][0] != text[3000] {
		t.Errorf("second chunk does not start 200 characters before the first chunk's end")
	}
}
