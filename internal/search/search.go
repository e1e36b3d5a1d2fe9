package search

import (
	"context"
	"errors"
	"fmt"
	"math"
	"sort"

	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/openlegis/billchat/internal/ai"
	"github.com/openlegis/billchat/pkg/models"
)

// ErrEmptyIndex is returned when a search targets bill content whose
// embeddings were never built. That is a caller bug, not a transient
// condition.
var ErrEmptyIndex = errors.New("bill content has no embeddings")

// QueryCacheSize bounds the query-vector cache; repeated questions in
// a long session reuse vectors without growing memory forever.
const QueryCacheSize = 500

// CosineSimilarity returns the normalized dot product of a and b in
// [-1, 1]. A zero vector on either side yields exactly 0 — maximally
// dissimilar rather than a division error. Vectors compared here must
// come from the same model; a length mismatch is a programming error
// and panics.
func CosineSimilarity(a, b []float32) float64 {
	if len(a) != len(b) {
		panic(fmt.Sprintf("cosine similarity dimension mismatch: %d vs %d", len(a), len(b)))
	}
	var dot, na, nb float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}

// Search ranks content's chunks by cosine similarity to queryVec and
// returns the top k, best first. Ties keep source order (stable sort).
func Search(queryVec []float32, content *models.BillContent, topK int) ([]models.SearchResult, error) {
	if content == nil || len(content.Embeddings) == 0 {
		return nil, ErrEmptyIndex
	}
	results := make([]models.SearchResult, 0, len(content.Chunks))
	for i, chunk := range content.Chunks {
		results = append(results, models.SearchResult{
			Chunk:      chunk,
			Similarity: CosineSimilarity(queryVec, content.Embeddings[i]),
		})
	}
	sort.SliceStable(results, func(i, j int) bool {
		return results[i].Similarity > results[j].Similarity
	})
	if topK > 0 && topK < len(results) {
		results = results[:topK]
	}
	return results, nil
}

// Engine wraps Search with a bounded LRU of query embeddings keyed by
// "{provider}:{query}", so a repeated question reuses its vector even
// across different bills.
type Engine struct {
	queryCache *lru.Cache[string, []float32]
}

func NewEngine() *Engine {
	// Size is a constant; the constructor only errors on size <= 0.
	cache, _ := lru.New[string, []float32](QueryCacheSize)
	return &Engine{queryCache: cache}
}

// QueryVector embeds query with emb, caching per provider+query.
func (e *Engine) QueryVector(ctx context.Context, emb ai.Embedder, provider, query string) ([]float32, error) {
	key := provider + ":" + query
	if vec, ok := e.queryCache.Get(key); ok {
		return vec, nil
	}
	vec, err := emb.EmbedOne(ctx, query)
	if err != nil {
		return nil, err
	}
	e.queryCache.Add(key, vec)
	return vec, nil
}

// Search is the method form used by the chat pipeline.
func (e *Engine) Search(queryVec []float32, content *models.BillContent, topK int) ([]models.SearchResult, error) {
	return Search(queryVec, content, topK)
}
