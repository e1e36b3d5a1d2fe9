package ai

import (
	"bytes"
	"context"
	"crypto/tls"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"os"
	"strconv"
	"strings"
	"time"
)

const openAIBaseURL = "https://api.openai.com/v1"

// OpenAIConfig configures an OpenAI or OpenAI-compatible backend. A
// non-default BaseURL turns the client into a gateway client speaking
// the same wire protocol.
type OpenAIConfig struct {
	APIKey     string
	BaseURL    string
	EmbedModel string
	ChatModel  string
	Dim        int

	provider Provider
}

// OpenAIBackend talks to the OpenAI REST API (or a compatible gateway)
// for both embeddings and chat completions.
type OpenAIBackend struct {
	cfg  OpenAIConfig
	http *http.Client
}

func NewOpenAIBackend(cfg OpenAIConfig) (*OpenAIBackend, error) {
	if cfg.provider == "" {
		cfg.provider = ProviderOpenAI
	}
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, &ConfigurationError{Provider: cfg.provider, Missing: "API key"}
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = openAIBaseURL
	}
	cfg.BaseURL = strings.TrimSuffix(cfg.BaseURL, "/")
	if cfg.EmbedModel == "" {
		cfg.EmbedModel = "text-embedding-3-small"
	}
	if cfg.ChatModel == "" {
		cfg.ChatModel = "gpt-4o-mini"
	}
	if cfg.Dim == 0 {
		switch cfg.EmbedModel {
		case "text-embedding-3-large":
			cfg.Dim = 3072
		default:
			// text-embedding-3-small and ada-002 dimensions
			cfg.Dim = 1536
		}
	}

	transport := &http.Transport{}
	// Corporate proxies sometimes require this.
	if skipTLS, _ := strconv.ParseBool(os.Getenv("BILLCHAT_SKIP_TLS_VERIFY")); skipTLS {
		transport.TLSClientConfig = &tls.Config{InsecureSkipVerify: true}
	}

	return &OpenAIBackend{
		cfg: cfg,
		http: &http.Client{
			Timeout:   30 * time.Second,
			Transport: transport,
		},
	}, nil
}

// EmbedBatch embeds all texts in a single API call, preserving order.
func (c *OpenAIBackend) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	payload := map[string]any{
		"input": texts,
		"model": c.cfg.EmbedModel,
	}
	var out struct {
		Data []struct {
			Index     int       `json:"index"`
			Embedding []float32 `json:"embedding"`
		} `json:"data"`
	}
	if err := c.post(ctx, "/embeddings", payload, &out); err != nil {
		return nil, err
	}
	if len(out.Data) != len(texts) {
		return nil, fmt.Errorf("got %d embeddings for %d inputs", len(out.Data), len(texts))
	}
	vecs := make([][]float32, len(texts))
	for _, d := range out.Data {
		if d.Index < 0 || d.Index >= len(vecs) {
			return nil, fmt.Errorf("embedding index %d out of range", d.Index)
		}
		vecs[d.Index] = d.Embedding
	}
	return vecs, nil
}

func (c *OpenAIBackend) Dim() int { return c.cfg.Dim }

func (c *OpenAIBackend) Batching() BatchPolicy {
	return BatchPolicy{Size: 10, Pace: 100 * time.Millisecond}
}

// Generate sends the assembled prompt as a single user message.
func (c *OpenAIBackend) Generate(ctx context.Context, prompt string) (string, error) {
	payload := map[string]any{
		"model": c.cfg.ChatModel,
		"messages": []map[string]string{
			{"role": "user", "content": prompt},
		},
	}
	var out struct {
		Choices []struct {
			Message struct {
				Content string `json:"content"`
			} `json:"message"`
		} `json:"choices"`
	}
	if err := c.post(ctx, "/chat/completions", payload, &out); err != nil {
		return "", &ChatProviderError{Provider: c.cfg.provider, Err: err}
	}
	if len(out.Choices) == 0 {
		return "", &ChatProviderError{Provider: c.cfg.provider, Err: errors.New("no choices in response")}
	}
	return out.Choices[0].Message.Content, nil
}

func (c *OpenAIBackend) post(ctx context.Context, path string, payload, out any) error {
	b, err := json.Marshal(payload)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.cfg.BaseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+c.cfg.APIKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var e struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&e)
		if e.Error.Message != "" {
			return errors.New(e.Error.Message)
		}
		return errors.New(resp.Status)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}
