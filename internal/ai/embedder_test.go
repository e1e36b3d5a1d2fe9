package ai

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

// fakeBackend implements EmbeddingBackend and records each batch it is
// handed. Each vector encodes the input's ordinal so ordering can be
// checked end to end.
type fakeBackend struct {
	policy    BatchPolicy
	batches   [][]string
	failBatch int // -1 disables failure injection
}

func newFakeBackend(size int) *fakeBackend {
	return &fakeBackend{policy: BatchPolicy{Size: size}, failBatch: -1}
}

func (f *fakeBackend) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if f.failBatch >= 0 && len(f.batches) == f.failBatch {
		return nil, errors.New("backend exploded")
	}
	f.batches = append(f.batches, texts)
	out := make([][]float32, len(texts))
	for i, t := range texts {
		var n float32
		_, _ = fmt.Sscanf(t, "text-%f", &n)
		out[i] = []float32{n}
	}
	return out, nil
}

func (f *fakeBackend) Dim() int { return 1 }

func (f *fakeBackend) Batching() BatchPolicy { return f.policy }

func texts(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("text-%d", i)
	}
	return out
}

func TestEmbedManyBatchingAndOrder(t *testing.T) {
	tests := []struct {
		name        string
		inputs      int
		batchSize   int
		wantBatches []int
	}{
		{"single partial batch", 3, 10, []int{3}},
		{"exact multiple", 20, 10, []int{10, 10}},
		{"trailing remainder", 23, 10, []int{10, 10, 3}},
		{"local-runner batch size", 12, 5, []int{5, 5, 2}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			backend := newFakeBackend(tt.batchSize)
			svc := NewService(backend)

			vecs, err := svc.EmbedMany(context.Background(), texts(tt.inputs))
			if err != nil {
				t.Fatalf("EmbedMany: %v", err)
			}
			if len(vecs) != tt.inputs {
				t.Fatalf("got %d vectors, want %d", len(vecs), tt.inputs)
			}
			for i, v := range vecs {
				if v[0] != float32(i) {
					t.Errorf("vector %d encodes input %v, order not preserved", i, v[0])
				}
			}
			if len(backend.batches) != len(tt.wantBatches) {
				t.Fatalf("got %d batches, want %d", len(backend.batches), len(tt.wantBatches))
			}
			for i, want := range tt.wantBatches {
				if len(backend.batches[i]) != want {
					t.Errorf("batch %d has %d texts, want %d", i, len(backend.batches[i]), want)
				}
			}
		})
	}
}

func TestEmbedManyPacesBetweenBatchesOnly(t *testing.T) {
	backend := newFakeBackend(10)
	backend.policy.Pace = 100 * time.Millisecond
	svc := NewService(backend)

	var pauses []time.Duration
	svc.sleep = func(ctx context.Context, d time.Duration) error {
		pauses = append(pauses, d)
		return nil
	}

	if _, err := svc.EmbedMany(context.Background(), texts(25)); err != nil {
		t.Fatalf("EmbedMany: %v", err)
	}
	// Three batches, but no pause after the last one.
	if len(pauses) != 2 {
		t.Fatalf("got %d pacing pauses, want 2", len(pauses))
	}
	for _, d := range pauses {
		if d != 100*time.Millisecond {
			t.Errorf("pause of %v, want 100ms", d)
		}
	}
}

func TestEmbedManyReportsFailingBatchIndex(t *testing.T) {
	backend := newFakeBackend(10)
	backend.failBatch = 2
	svc := NewService(backend)

	_, err := svc.EmbedMany(context.Background(), texts(25))
	var embErr *EmbeddingError
	if !errors.As(err, &embErr) {
		t.Fatalf("expected *EmbeddingError, got %v", err)
	}
	if embErr.Batch != 2 {
		t.Errorf("failing batch = %d, want 2", embErr.Batch)
	}
}

func TestEmbedManyEmptyInput(t *testing.T) {
	svc := NewService(newFakeBackend(10))
	vecs, err := svc.EmbedMany(context.Background(), nil)
	if err != nil || vecs != nil {
		t.Errorf("EmbedMany(nil) = %v, %v; want nil, nil", vecs, err)
	}
}

func TestEmbedOne(t *testing.T) {
	svc := NewService(newFakeBackend(10))
	vec, err := svc.EmbedOne(context.Background(), "text-7")
	if err != nil {
		t.Fatalf("EmbedOne: %v", err)
	}
	if len(vec) != 1 || vec[0] != 7 {
		t.Errorf("EmbedOne vector = %v", vec)
	}
}

func TestStubBackendDeterministicUnitVectors(t *testing.T) {
	stub := NewStubBackend(0)
	vecs, err := stub.EmbedBatch(context.Background(), []string{"short title of the act", "short title of the act", "completely different findings"})
	if err != nil {
		t.Fatalf("EmbedBatch: %v", err)
	}
	for i := range vecs[0] {
		if vecs[0][i] != vecs[1][i] {
			t.Fatal("identical texts produced different vectors")
		}
	}
	var norm float64
	for _, x := range vecs[0] {
		norm += float64(x) * float64(x)
	}
	if norm < 0.999 || norm > 1.001 {
		t.Errorf("stub vector norm^2 = %v, want ~1", norm)
	}
}
