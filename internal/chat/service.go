package chat

import (
	"context"

	"github.com/rs/zerolog/log"

	"github.com/openlegis/billchat/internal/ai"
	"github.com/openlegis/billchat/internal/cache"
	"github.com/openlegis/billchat/internal/search"
	"github.com/openlegis/billchat/pkg/models"
)

// DefaultTopK is how many chunks a grounded prompt carries.
const DefaultTopK = 5

// Service is the full chat pipeline: bill content from the cache, a
// query embedding, similarity search, then a grounded model call.
type Service struct {
	cache  *cache.ContentCache
	engine *search.Engine
	orch   *Orchestrator

	newEmbedder func(models.AISettings) (ai.Embedder, error)
}

func NewService(c *cache.ContentCache, e *search.Engine) *Service {
	return &Service{
		cache:  c,
		engine: e,
		orch:   NewOrchestrator(),
		newEmbedder: func(s models.AISettings) (ai.Embedder, error) {
			return ai.NewEmbedder(s)
		},
	}
}

// Ask answers a user message about a bill. Like Respond, it always
// returns text; any stage failure is converted to a readable response.
func (s *Service) Ask(ctx context.Context, bill models.BillIdentity, overview, message string, settings models.AISettings, topK int) string {
	if topK <= 0 {
		topK = DefaultTopK
	}

	content, err := s.cache.Get(ctx, bill, settings)
	if err != nil {
		log.Warn().Err(err).Str("bill", bill.Key()).Msg("bill content unavailable")
		return responseForError(err)
	}

	embedder, err := s.newEmbedder(settings)
	if err != nil {
		return responseForError(err)
	}
	queryVec, err := s.engine.QueryVector(ctx, embedder, settings.EmbeddingProvider, message)
	if err != nil {
		return responseForError(err)
	}

	results, err := s.engine.Search(queryVec, content, topK)
	if err != nil {
		return responseForError(err)
	}

	return s.orch.Respond(ctx, settings, message, overview, results)
}

// Search exposes retrieval without the model call, for the /search API.
func (s *Service) Search(ctx context.Context, bill models.BillIdentity, query string, settings models.AISettings, topK int) ([]models.SearchResult, error) {
	if topK <= 0 {
		topK = DefaultTopK
	}
	content, err := s.cache.Get(ctx, bill, settings)
	if err != nil {
		return nil, err
	}
	embedder, err := s.newEmbedder(settings)
	if err != nil {
		return nil, err
	}
	queryVec, err := s.engine.QueryVector(ctx, embedder, settings.EmbeddingProvider, query)
	if err != nil {
		return nil, err
	}
	return s.engine.Search(queryVec, content, topK)
}
