package models

import (
	"fmt"
	"time"
)

// BillIdentity is the composite key for a bill: congress number, bill
// type (hr, s, hjres, ...) and bill number within that congress.
type BillIdentity struct {
	Congress int    `json:"congress"`
	Type     string `json:"type"`
	Number   int    `json:"number"`
}

// Key returns the stable string form "{congress}-{type}-{number}".
func (b BillIdentity) Key() string {
	return fmt.Sprintf("%d-%s-%d", b.Congress, b.Type, b.Number)
}

// BillChunk is a contiguous word-range slice of a bill's full text.
// StartWord/EndWord are word offsets into the source text; EndWord is
// exclusive. Section and Subsection are best-effort annotations parsed
// from a "SECTION N. TITLE" heading found inside the chunk.
type BillChunk struct {
	ID         int    `json:"id"`
	Text       string `json:"text"`
	StartWord  int    `json:"start_word"`
	EndWord    int    `json:"end_word"`
	Section    string `json:"section,omitempty"`
	Subsection string `json:"subsection,omitempty"`
}

// BillContent is a bill's chunked, embedded representation. Embeddings
// is parallel to Chunks once embedding completes; a content value with
// a half-built pairing is never published.
type BillContent struct {
	Bill        BillIdentity `json:"bill"`
	FullText    string       `json:"full_text"`
	Chunks      []BillChunk  `json:"chunks"`
	Embeddings  [][]float32  `json:"-"`
	LastUpdated time.Time    `json:"last_updated"`
}

// SearchResult pairs a chunk with its cosine similarity to a query,
// in [-1, 1]. Produced fresh per query, never persisted.
type SearchResult struct {
	Chunk      BillChunk `json:"chunk"`
	Similarity float64   `json:"similarity"`
}

// AISettings selects the active chat and embedding providers. It is an
// immutable value: callers pass it into each operation, and a settings
// change means constructing a new value, never mutating a shared one.
type AISettings struct {
	ChatProvider   string `json:"chat_provider"`
	ChatModel      string `json:"chat_model"`
	ChatAPIKey     string `json:"-"`
	GatewayBaseURL string `json:"gateway_base_url,omitempty"`

	EmbeddingProvider string `json:"embedding_provider"`
	EmbeddingModel    string `json:"embedding_model"`
	EmbeddingAPIKey   string `json:"-"`

	OllamaBaseURL string `json:"ollama_base_url,omitempty"`
}
