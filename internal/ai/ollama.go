package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

const ollamaDefaultBaseURL = "http://localhost:11434"

// OllamaConfig configures the local-runner backend. No credential is
// needed, but the endpoint must be reachable and a model named.
type OllamaConfig struct {
	BaseURL    string
	EmbedModel string
	ChatModel  string
	Dim        int
}

// OllamaBackend talks to a local Ollama server.
type OllamaBackend struct {
	cfg  OllamaConfig
	http *http.Client
}

func NewOllamaBackend(cfg OllamaConfig) (*OllamaBackend, error) {
	if cfg.EmbedModel == "" && cfg.ChatModel == "" {
		return nil, &ConfigurationError{Provider: ProviderOllama, Missing: "model name"}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = ollamaDefaultBaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.Dim == 0 {
		// nomic-embed-text, the common local default
		cfg.Dim = 768
	}
	return &OllamaBackend{
		cfg: cfg,
		// Local inference can be slow on first load.
		http: &http.Client{Timeout: 120 * time.Second},
	}, nil
}

// EmbedBatch embeds all texts in one /api/embed call, preserving order.
func (c *OllamaBackend) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if c.cfg.EmbedModel == "" {
		return nil, &ConfigurationError{Provider: ProviderOllama, Missing: "embedding model"}
	}
	payload := map[string]any{
		"model": c.cfg.EmbedModel,
		"input": texts,
	}
	var out struct {
		Embeddings [][]float32 `json:"embeddings"`
	}
	if err := c.post(ctx, "/api/embed", payload, &out); err != nil {
		return nil, err
	}
	if len(out.Embeddings) != len(texts) {
		return nil, fmt.Errorf("got %d embeddings for %d inputs", len(out.Embeddings), len(texts))
	}
	return out.Embeddings, nil
}

func (c *OllamaBackend) Dim() int { return c.cfg.Dim }

// Smaller batches and a longer pacing delay keep memory pressure on
// the local inference server manageable.
func (c *OllamaBackend) Batching() BatchPolicy {
	return BatchPolicy{Size: 5, Pace: 200 * time.Millisecond}
}

// Generate runs a non-streaming completion against /api/generate.
func (c *OllamaBackend) Generate(ctx context.Context, prompt string) (string, error) {
	if c.cfg.ChatModel == "" {
		return "", &ConfigurationError{Provider: ProviderOllama, Missing: "chat model"}
	}
	payload := map[string]any{
		"model":  c.cfg.ChatModel,
		"prompt": prompt,
		"stream": false,
	}
	var out struct {
		Response string `json:"response"`
	}
	if err := c.post(ctx, "/api/generate", payload, &out); err != nil {
		return "", &ChatProviderError{Provider: ProviderOllama, Err: err}
	}
	return out.Response, nil
}

func (c *OllamaBackend) post(ctx context.Context, path string, payload, out any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var e struct {
			Error string `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error != "" {
			return errors.New(e.Error)
		}
		return errors.New(resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
