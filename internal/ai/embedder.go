package ai

import (
	"context"
	"fmt"
	"time"

	"github.com/openlegis/billchat/pkg/models"
)

// Embedder is the embedding contract the pipeline depends on.
type Embedder interface {
	EmbedMany(ctx context.Context, texts []string) ([][]float32, error)
	EmbedOne(ctx context.Context, text string) ([]float32, error)
}

// Service runs bulk embedding against a backend in sequential batches,
// pacing between batches per the backend's policy. Batches are strictly
// ordered: batch N+1 does not start until batch N completed. A failed
// batch aborts the run; there is no partial-result recovery.
type Service struct {
	backend EmbeddingBackend

	sleep func(ctx context.Context, d time.Duration) error
}

func NewService(backend EmbeddingBackend) *Service {
	return &Service{backend: backend, sleep: sleepCtx}
}

// NewEmbedder builds the embedding service selected by settings.
func NewEmbedder(settings models.AISettings) (*Service, error) {
	backend, err := NewEmbeddingBackend(settings)
	if err != nil {
		return nil, err
	}
	return NewService(backend), nil
}

// EmbedMany embeds all texts, order-preserving. Failures are wrapped in
// *EmbeddingError carrying the index of the batch that failed.
func (s *Service) EmbedMany(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, nil
	}
	policy := s.backend.Batching()
	size := policy.Size
	if size <= 0 {
		size = 10
	}

	out := make([][]float32, 0, len(texts))
	for i, batch := 0, 0; i < len(texts); i, batch = i+size, batch+1 {
		end := i + size
		if end > len(texts) {
			end = len(texts)
		}
		vecs, err := s.backend.EmbedBatch(ctx, texts[i:end])
		if err != nil {
			return nil, &EmbeddingError{Batch: batch, Err: err}
		}
		if len(vecs) != end-i {
			return nil, &EmbeddingError{Batch: batch, Err: fmt.Errorf("got %d vectors for %d inputs", len(vecs), end-i)}
		}
		out = append(out, vecs...)

		if end < len(texts) && policy.Pace > 0 {
			if err := s.sleep(ctx, policy.Pace); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// EmbedOne embeds a single text (e.g. a user query).
func (s *Service) EmbedOne(ctx context.Context, text string) ([]float32, error) {
	vecs, err := s.backend.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, &EmbeddingError{Batch: 0, Err: err}
	}
	if len(vecs) != 1 {
		return nil, &EmbeddingError{Batch: 0, Err: fmt.Errorf("got %d vectors for one input", len(vecs))}
	}
	return vecs[0], nil
}

// Dim reports the backend's vector dimensionality.
func (s *Service) Dim() int { return s.backend.Dim() }

func sleepCtx(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
