package cache

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/openlegis/billchat/internal/ai"
	"github.com/openlegis/billchat/internal/chunker"
	"github.com/openlegis/billchat/internal/congress"
	"github.com/openlegis/billchat/pkg/models"
)

// DefaultTTL is how long a bill's chunked, embedded content stays
// fresh before the next access re-fetches it.
const DefaultTTL = time.Hour

// ContentCache maps bill + embedding provider + embedding model to the
// bill's chunked and embedded content. Concurrent misses for the same
// key share a single fetch+chunk+embed run; failed runs are never
// cached, so a retry does fresh work instead of reusing a poisoned
// entry.
type ContentCache struct {
	source congress.TextSource
	ttl    time.Duration

	mu      sync.RWMutex
	entries map[string]*models.BillContent
	flight  singleflight.Group

	// Injection points for tests.
	now         func() time.Time
	newEmbedder func(models.AISettings) (ai.Embedder, error)
}

func New(source congress.TextSource, ttl time.Duration) *ContentCache {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	return &ContentCache{
		source:  source,
		ttl:     ttl,
		entries: make(map[string]*models.BillContent),
		now:     time.Now,
		newEmbedder: func(s models.AISettings) (ai.Embedder, error) {
			return ai.NewEmbedder(s)
		},
	}
}

func cacheKey(bill models.BillIdentity, s models.AISettings) string {
	// Provider and model are part of the key: different models mean
	// different vector spaces that must never mix.
	return bill.Key() + "|" + s.EmbeddingProvider + "|" + s.EmbeddingModel
}

// Get returns the bill's content, fetching, chunking and embedding it
// on a miss or when the cached entry is older than the TTL.
func (c *ContentCache) Get(ctx context.Context, bill models.BillIdentity, settings models.AISettings) (*models.BillContent, error) {
	key := cacheKey(bill, settings)

	if content, ok := c.lookup(key); ok {
		return content, nil
	}

	v, err, _ := c.flight.Do(key, func() (any, error) {
		// A waiter may have piled up behind a refresh that already
		// finished; check again before doing the work.
		if content, ok := c.lookup(key); ok {
			return content, nil
		}
		content, err := c.build(ctx, bill, settings)
		if err != nil {
			return nil, err
		}
		c.mu.Lock()
		c.entries[key] = content
		c.mu.Unlock()
		return content, nil
	})
	if err != nil {
		return nil, err
	}
	return v.(*models.BillContent), nil
}

func (c *ContentCache) lookup(key string) (*models.BillContent, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	content, ok := c.entries[key]
	if !ok || c.now().Sub(content.LastUpdated) >= c.ttl {
		return nil, false
	}
	return content, true
}

func (c *ContentCache) build(ctx context.Context, bill models.BillIdentity, settings models.AISettings) (*models.BillContent, error) {
	text, err := c.source.FullText(ctx, bill)
	if err != nil {
		// Keep the pipeline alive with a clearly labeled placeholder
		// instead of aborting the whole chat session.
		log.Warn().Err(err).Str("bill", bill.Key()).Msg("text fetch failed, using placeholder")
		text = placeholderText(bill)
	}

	chunks := chunker.Default(text)

	embedder, err := c.newEmbedder(settings)
	if err != nil {
		return nil, err
	}
	texts := make([]string, len(chunks))
	for i, ch := range chunks {
		texts[i] = ch.Text
	}
	embeddings, err := embedder.EmbedMany(ctx, texts)
	if err != nil {
		return nil, err
	}

	return &models.BillContent{
		Bill:        bill,
		FullText:    text,
		Chunks:      chunks,
		Embeddings:  embeddings,
		LastUpdated: c.now(),
	}, nil
}

// Clear drops every cached entry, e.g. after a settings change.
func (c *ContentCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*models.BillContent)
}

// Len reports how many entries are currently cached.
func (c *ContentCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

func placeholderText(bill models.BillIdentity) string {
	return fmt.Sprintf("[Full text unavailable] The full text of bill %s could not be retrieved. "+
		"Answers about this bill are limited to its metadata.", bill.Key())
}
