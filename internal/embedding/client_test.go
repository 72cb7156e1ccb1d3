package embedding

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/firebase/genkit/go/ai"
	"github.com/firebase/genkit/go/core/api"
	"google.golang.org/genai"
)

// mockEmbedder implements ai.Embedder for testing.
type mockEmbedder struct {
	dimension   int
	embedErr    error
	extraVector bool // return one vector too many
	dropVector  bool // return one vector too few
	delay       time.Duration
	callCount   int
	lastOptions any
	lastInputs  int
}

func (m *mockEmbedder) Name() string { return "mock-embedder" }

func (m *mockEmbedder) Register(_ api.Registry) {}

func (m *mockEmbedder) Embed(ctx context.Context, req *ai.EmbedRequest) (*ai.EmbedResponse, error) {
	m.callCount++
	m.lastOptions = req.Options
	m.lastInputs = len(req.Input)

	if m.delay > 0 {
		select {
		case <-time.After(m.delay):
		case <-ctx.Done():
			return nil, ctx.Err()
		}
	}
	if m.embedErr != nil {
		return nil, m.embedErr
	}

	n := len(req.Input)
	if m.extraVector {
		n++
	}
	if m.dropVector && n > 0 {
		n--
	}
	embeddings := make([]*ai.Embedding, n)
	for i := range embeddings {
		vec := make([]float32, m.dimension)
		vec[0] = float32(i)
		embeddings[i] = &ai.Embedding{Embedding: vec}
	}
	return &ai.EmbedResponse{Embeddings: embeddings}, nil
}

func TestEmbedBatch_OrderPreserved(t *testing.T) {
	mock := &mockEmbedder{dimension: 4}
	client, err := NewClient(mock, 4)
	if err != nil {
		t.Fatalf("NewClient() = %v", err)
	}

	vectors, err := client.EmbedBatch(context.Background(), []string{"a", "b", "c"})
	if err != nil {
		t.Fatalf("EmbedBatch() = %v", err)
	}
	if len(vectors) != 3 {
		t.Fatalf("got %d vectors, want 3", len(vectors))
	}
	for i, v := range vectors {
		if v[0] != float32(i) {
			t.Errorf("vectors[%d][0] = %f, want %d", i, v[0], i)
		}
	}
	if mock.callCount != 1 {
		t.Errorf("callCount = %d, want 1 call for the whole batch", mock.callCount)
	}
	if mock.lastInputs != 3 {
		t.Errorf("lastInputs = %d, want 3", mock.lastInputs)
	}
}

func TestEmbedBatch_EmptyInput(t *testing.T) {
	mock := &mockEmbedder{dimension: 4}
	client, _ := NewClient(mock, 4)

	vectors, err := client.EmbedBatch(context.Background(), nil)
	if err != nil {
		t.Fatalf("EmbedBatch() = %v", err)
	}
	if len(vectors) != 0 {
		t.Errorf("got %d vectors, want 0", len(vectors))
	}
	if mock.callCount != 0 {
		t.Errorf("callCount = %d, want 0 for empty input", mock.callCount)
	}
}

func TestEmbedBatch_CountMismatch(t *testing.T) {
	for _, tc := range []struct {
		name string
		mock *mockEmbedder
	}{
		{name: "extra vector", mock: &mockEmbedder{dimension: 4, extraVector: true}},
		{name: "missing vector", mock: &mockEmbedder{dimension: 4, dropVector: true}},
	} {
		t.Run(tc.name, func(t *testing.T) {
			client, _ := NewClient(tc.mock, 4)
			_, err := client.EmbedBatch(context.Background(), []string{"a", "b"})
			if !errors.Is(err, ErrCountMismatch) {
				t.Errorf("EmbedBatch() = %v, want ErrCountMismatch", err)
			}
		})
	}
}

func TestEmbedBatch_WrongDimension(t *testing.T) {
	mock := &mockEmbedder{dimension: 3}
	client, _ := NewClient(mock, 4)

	if _, err := client.EmbedBatch(context.Background(), []string{"a"}); err == nil {
		t.Error("EmbedBatch() = nil, want dimension error")
	}
}

func TestEmbedBatch_ProviderErrorPropagates(t *testing.T) {
	wantErr := errors.New("quota exhausted")
	mock := &mockEmbedder{dimension: 4, embedErr: wantErr}
	client, _ := NewClient(mock, 4)

	_, err := client.EmbedBatch(context.Background(), []string{"a"})
	if !errors.Is(err, wantErr) {
		t.Errorf("EmbedBatch() = %v, want wrapped provider error", err)
	}
}

func TestEmbedBatch_Timeout(t *testing.T) {
	mock := &mockEmbedder{dimension: 4, delay: 200 * time.Millisecond}
	client, _ := NewClient(mock, 4, WithTimeout(10*time.Millisecond))

	_, err := client.EmbedBatch(context.Background(), []string{"a"})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("EmbedBatch() = %v, want context.DeadlineExceeded", err)
	}
}

func TestEmbedBatch_SetsOutputDimensionality(t *testing.T) {
	mock := &mockEmbedder{dimension: 8}
	client, _ := NewClient(mock, 8)

	if _, err := client.EmbedBatch(context.Background(), []string{"a"}); err != nil {
		t.Fatalf("EmbedBatch() = %v", err)
	}

	cfg, ok := mock.lastOptions.(*genai.EmbedContentConfig)
	if !ok {
		t.Fatalf("options = %T, want *genai.EmbedContentConfig", mock.lastOptions)
	}
	if cfg.OutputDimensionality == nil || *cfg.OutputDimensionality != 8 {
		t.Errorf("OutputDimensionality = %v, want 8", cfg.OutputDimensionality)
	}
}

func TestEmbed_SingleText(t *testing.T) {
	mock := &mockEmbedder{dimension: 4}
	client, _ := NewClient(mock, 4)

	vec, err := client.Embed(context.Background(), "question")
	if err != nil {
		t.Fatalf("Embed() = %v", err)
	}
	if len(vec) != 4 {
		t.Errorf("len(vec) = %d, want 4", len(vec))
	}
}

func TestNewClient_Validation(t *testing.T) {
	if _, err := NewClient(nil, 4); err == nil {
		t.Error("NewClient(nil embedder) = nil, want error")
	}
	if _, err := NewClient(&mockEmbedder{dimension: 4}, 0); err == nil {
		t.Error("NewClient(dimension 0) = nil, want error")
	}
}
