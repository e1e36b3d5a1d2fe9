package ai

import (
	"context"
	"fmt"
	"hash/fnv"
	"math"
	"strings"
	"time"

	"github.com/openlegis/billchat/pkg/models"
)

// Provider is the enumeration of supported AI backends.
type Provider string

const (
	ProviderOpenAI  Provider = "openai"
	ProviderGemini  Provider = "gemini"
	ProviderGateway Provider = "gateway"
	ProviderOllama  Provider = "ollama"
	ProviderStub    Provider = "stub"
)

// BatchPolicy describes how an embedding backend wants bulk work
// delivered: at most Size texts per call, with a Pace delay between
// consecutive batches to stay under rate limits.
type BatchPolicy struct {
	Size int
	Pace time.Duration
}

// EmbeddingBackend converts text into fixed-length vectors. EmbedBatch
// is order-preserving: one vector per input text, same order.
type EmbeddingBackend interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
	Dim() int
	Batching() BatchPolicy
}

// ChatBackend sends a single assembled prompt to a language model and
// returns the raw response text.
type ChatBackend interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// NewEmbeddingBackend selects the embedding backend for the given
// settings. Missing credentials surface as *ConfigurationError here,
// before any network I/O.
func NewEmbeddingBackend(s models.AISettings) (EmbeddingBackend, error) {
	switch Provider(s.EmbeddingProvider) {
	case ProviderOpenAI:
		return NewOpenAIBackend(OpenAIConfig{
			APIKey:     s.EmbeddingAPIKey,
			EmbedModel: s.EmbeddingModel,
		})
	case ProviderGemini:
		return NewGeminiBackend(context.Background(), GeminiConfig{
			APIKey:     s.EmbeddingAPIKey,
			EmbedModel: s.EmbeddingModel,
		})
	case ProviderOllama:
		return NewOllamaBackend(OllamaConfig{
			BaseURL:    s.OllamaBaseURL,
			EmbedModel: s.EmbeddingModel,
		})
	case ProviderStub:
		return NewStubBackend(stubDim), nil
	default:
		return nil, fmt.Errorf("unsupported embedding provider: %q", s.EmbeddingProvider)
	}
}

// NewChatBackend selects the chat backend for the given settings.
func NewChatBackend(s models.AISettings) (ChatBackend, error) {
	switch Provider(s.ChatProvider) {
	case ProviderOpenAI:
		return NewOpenAIBackend(OpenAIConfig{
			APIKey:    s.ChatAPIKey,
			ChatModel: s.ChatModel,
		})
	case ProviderGemini:
		return NewGeminiBackend(context.Background(), GeminiConfig{
			APIKey:    s.ChatAPIKey,
			ChatModel: s.ChatModel,
		})
	case ProviderGateway:
		// OpenAI-compatible gateway: same wire protocol, custom base URL.
		if strings.TrimSpace(s.GatewayBaseURL) == "" {
			return nil, &ConfigurationError{Provider: ProviderGateway, Missing: "gateway base URL"}
		}
		return NewOpenAIBackend(OpenAIConfig{
			APIKey:    s.ChatAPIKey,
			BaseURL:   s.GatewayBaseURL,
			ChatModel: s.ChatModel,
			provider:  ProviderGateway,
		})
	case ProviderOllama:
		return NewOllamaBackend(OllamaConfig{
			BaseURL:   s.OllamaBaseURL,
			ChatModel: s.ChatModel,
		})
	case ProviderStub:
		return NewStubBackend(stubDim), nil
	default:
		return nil, fmt.Errorf("unsupported chat provider: %q", s.ChatProvider)
	}
}

const stubDim = 64

// StubBackend is an offline backend for tests and dry runs. Embeddings
// are deterministic unit-length bag-of-words vectors, so identical
// texts always map to identical vectors and cosine similarity behaves
// like the real thing on a small scale.
type StubBackend struct {
	dim int
}

func NewStubBackend(dim int) *StubBackend {
	if dim <= 0 {
		dim = stubDim
	}
	return &StubBackend{dim: dim}
}

func (s *StubBackend) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	out := make([][]float32, len(texts))
	for i, t := range texts {
		out[i] = s.embed(t)
	}
	return out, nil
}

func (s *StubBackend) embed(text string) []float32 {
	v := make([]float32, s.dim)
	for _, w := range strings.Fields(strings.ToLower(text)) {
		h := fnv.New32a()
		_, _ = h.Write([]byte(w))
		v[h.Sum32()%uint32(s.dim)]++
	}
	var norm float64
	for _, x := range v {
		norm += float64(x) * float64(x)
	}
	if norm == 0 {
		return v
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}

func (s *StubBackend) Dim() int { return s.dim }

func (s *StubBackend) Batching() BatchPolicy { return BatchPolicy{Size: 10} }

func (s *StubBackend) Generate(ctx context.Context, prompt string) (string, error) {
	return "stub response", nil
}
