package ai

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"google.golang.org/genai"
)

// GeminiConfig configures the Google Gemini API backend.
type GeminiConfig struct {
	APIKey     string
	EmbedModel string
	ChatModel  string
	Dim        int
}

// GeminiBackend implements embeddings and chat on the Gemini API.
type GeminiBackend struct {
	cfg    GeminiConfig
	client *genai.Client
}

func NewGeminiBackend(ctx context.Context, cfg GeminiConfig) (*GeminiBackend, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, &ConfigurationError{Provider: ProviderGemini, Missing: "API key"}
	}
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = "text-embedding-004"
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = "gemini-2.0-flash"
	}
	if cfg.Dim == 0 {
		cfg.Dim = 768
	}

	client, err := genai.NewClient(ctx, &genai.ClientConfig{
		Backend: genai.BackendGeminiAPI,
		APIKey:  cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create Gemini client: %w", err)
	}
	return &GeminiBackend{cfg: cfg, client: client}, nil
}

// EmbedBatch embeds all texts in one EmbedContent call, preserving order.
func (c *GeminiBackend) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	contents := make([]*genai.Content, 0, len(texts))
	for _, t := range texts {
		contents = append(contents, genai.Text(t)...)
	}
	cfg := genai.EmbedContentConfig{TaskType: "RETRIEVAL_DOCUMENT"}
	res, err := c.client.Models.EmbedContent(ctx, c.cfg.EmbedModel, contents, &cfg)
	if err != nil {
		return nil, fmt.Errorf("embedding failed: %w", err)
	}
	if res == nil || len(res.Embeddings) != len(texts) {
		return nil, errors.New("embedding count mismatch in response")
	}
	vecs := make([][]float32, len(texts))
	for i, e := range res.Embeddings {
		vecs[i] = e.Values
	}
	return vecs, nil
}

func (c *GeminiBackend) Dim() int { return c.cfg.Dim }

func (c *GeminiBackend) Batching() BatchPolicy {
	return BatchPolicy{Size: 10, Pace: 100 * time.Millisecond}
}

// Generate sends the assembled prompt and returns the raw model text.
func (c *GeminiBackend) Generate(ctx context.Context, prompt string) (string, error) {
	resp, err := c.client.Models.GenerateContent(ctx, c.cfg.ChatModel, genai.Text(prompt), nil)
	if err != nil {
		return "", &ChatProviderError{Provider: ProviderGemini, Err: err}
	}
	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		return "", &ChatProviderError{Provider: ProviderGemini, Err: errors.New("no candidates in response")}
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}
