package chunker

import (
	"regexp"
	"strings"

	"github.com/openlegis/billchat/pkg/models"
)

const (
	// DefaultChunkSize is the window width in words.
	DefaultChunkSize = 1000
	// DefaultOverlap is how many words consecutive windows share.
	DefaultOverlap = 200
)

// Matches headings like "SECTION 12. DEFINITIONS." anywhere in a chunk.
var sectionRe = regexp.MustCompile(`(?i)SECTION\s+(\d+)\.\s*([^.]+)`)

// Chunk splits text into overlapping word windows. Words are whatever
// whitespace splitting yields, so a word never straddles two chunks
// sub-word. The window start advances by chunkSize-overlap, clamped to
// at least one word so overlap >= chunkSize cannot loop forever. Empty
// or all-whitespace text yields no chunks.
func Chunk(text string, chunkSize, overlap int) []models.BillChunk {
	words := strings.Fields(text)
	if len(words) == 0 {
		return nil
	}
	if chunkSize <= 0 {
		chunkSize = DefaultChunkSize
	}
	step := chunkSize - overlap
	if step < 1 {
		step = 1
	}

	var chunks []models.BillChunk
	for start := 0; start < len(words); start += step {
		end := start + chunkSize
		if end > len(words) {
			end = len(words)
		}
		c := models.BillChunk{
			ID:        len(chunks),
			Text:      strings.Join(words[start:end], " "),
			StartWord: start,
			EndWord:   end,
		}
		if m := sectionRe.FindStringSubmatch(c.Text); m != nil {
			c.Section = "Section " + m[1]
			c.Subsection = strings.TrimSpace(m[2])
		}
		chunks = append(chunks, c)
		if end == len(words) {
			break
		}
	}
	return chunks
}

// Default chunks text with the standard window and overlap.
func Default(text string) []models.BillChunk {
	return Chunk(text, DefaultChunkSize, DefaultOverlap)
}
