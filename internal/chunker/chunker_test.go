package chunker

import (
	"fmt"
	"strings"
	"testing"
)

// billText builds a deterministic n-word text.
func billText(n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		fmt.Fprintf(&b, "word%d ", i)
	}
	return b.String()
}

func TestChunkEmptyText(t *testing.T) {
	for _, text := range []string{"", "   ", "\n\t  \n"} {
		if got := Chunk(text, 10, 2); got != nil {
			t.Errorf("Chunk(%q) = %d chunks, want none", text, len(got))
		}
	}
}

func TestChunkCoversEveryWord(t *testing.T) {
	tests := []struct {
		name      string
		words     int
		chunkSize int
		overlap   int
	}{
		{"single partial window", 7, 10, 2},
		{"exact fit", 20, 10, 2},
		{"overlapping windows", 95, 10, 3},
		{"overlap equals size", 30, 10, 10},
		{"overlap exceeds size", 100, 10, 50},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			chunks := Chunk(billText(tt.words), tt.chunkSize, tt.overlap)
			if len(chunks) == 0 {
				t.Fatal("expected chunks, got none")
			}
			covered := 0 // next word index that must be covered
			prevStart := -1
			for i, c := range chunks {
				if c.ID != i {
					t.Errorf("chunk %d has ID %d", i, c.ID)
				}
				if c.StartWord < prevStart {
					t.Errorf("chunk %d start %d before previous start %d", i, c.StartWord, prevStart)
				}
				prevStart = c.StartWord
				if c.StartWord > covered {
					t.Fatalf("gap: chunk %d starts at %d, only %d covered", i, c.StartWord, covered)
				}
				if c.EndWord > covered {
					covered = c.EndWord
				}
				if want := c.EndWord - c.StartWord; len(strings.Fields(c.Text)) != want {
					t.Errorf("chunk %d text has %d words, span says %d", i, len(strings.Fields(c.Text)), want)
				}
			}
			if covered != tt.words {
				t.Errorf("covered %d of %d words", covered, tt.words)
			}
		})
	}
}

// Degenerate overlap must still terminate; the window start advances by
// at least one word per iteration.
func TestChunkTerminatesWithExcessiveOverlap(t *testing.T) {
	chunks := Chunk(billText(100), 10, 50)
	if len(chunks) != 91 {
		t.Fatalf("expected 91 single-step windows, got %d", len(chunks))
	}
	last := chunks[len(chunks)-1]
	if last.EndWord != 100 {
		t.Errorf("last chunk ends at %d, want 100", last.EndWord)
	}
}

func TestChunkSectionTagging(t *testing.T) {
	// Exactly 1500 words, with section headings spliced in at fixed
	// word offsets so the spans stay predictable.
	words := strings.Fields(billText(1500))
	copy(words[0:], []string{"SECTION", "1.", "SHORT", "TITLE."})
	copy(words[900:], []string{"SECTION", "2.", "FINDINGS."})
	chunks := Chunk(strings.Join(words, " "), 1000, 200)
	if len(chunks) != 2 {
		t.Fatalf("expected 2 chunks, got %d", len(chunks))
	}

	c0 := chunks[0]
	if c0.StartWord != 0 || c0.EndWord != 1000 {
		t.Errorf("chunk 0 spans [%d,%d), want [0,1000)", c0.StartWord, c0.EndWord)
	}
	if c0.Section != "Section 1" {
		t.Errorf("chunk 0 section = %q, want %q", c0.Section, "Section 1")
	}
	if c0.Subsection != "SHORT TITLE" {
		t.Errorf("chunk 0 subsection = %q, want %q", c0.Subsection, "SHORT TITLE")
	}

	c1 := chunks[1]
	if c1.StartWord != 800 || c1.EndWord != 1500 {
		t.Errorf("chunk 1 spans [%d,%d), want [800,1500)", c1.StartWord, c1.EndWord)
	}
	// The second window starts at word 800 and contains the SECTION 2
	// heading around word 900.
	if c1.Section != "Section 2" {
		t.Errorf("chunk 1 section = %q, want %q", c1.Section, "Section 2")
	}
}

func TestChunkSectionCaseInsensitive(t *testing.T) {
	chunks := Chunk("section 4. Definitions. "+billText(5), 50, 0)
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Section != "Section 4" {
		t.Errorf("section = %q, want %q", chunks[0].Section, "Section 4")
	}
}

func TestChunkNoSectionAnnotationWithoutHeading(t *testing.T) {
	chunks := Default(billText(50))
	if len(chunks) != 1 {
		t.Fatalf("expected 1 chunk, got %d", len(chunks))
	}
	if chunks[0].Section != "" || chunks[0].Subsection != "" {
		t.Errorf("unexpected section annotation %q/%q", chunks[0].Section, chunks[0].Subsection)
	}
}
