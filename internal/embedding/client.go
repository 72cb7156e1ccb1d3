// Package embedding wraps a Genkit embedder behind a batch-oriented
// client with fixed output dimensionality, per-call timeout and an
// optional rate limit.
package embedding

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/firebase/genkit/go/ai"
	"golang.org/x/time/rate"
	"google.golang.org/genai"
)

// ErrCountMismatch indicates the provider returned a different number
// of vectors than texts submitted. The batch pipeline pairs texts and
// vectors positionally, so anything but an exact match is unusable.
var ErrCountMismatch = errors.New("embedding count mismatch")

// DefaultTimeout bounds a single embedding call.
const DefaultTimeout = 30 * time.Second

// Client embeds text batches. Safe for concurrent use.
type Client struct {
	embedder  ai.Embedder
	dimension int32
	timeout   time.Duration
	limiter   *rate.Limiter
	logger    *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

// WithTimeout overrides the per-call timeout.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		if d > 0 {
			c.timeout = d
		}
	}
}

// WithRateLimit caps embedding calls per second. Zero or negative
// leaves the client unlimited.
func WithRateLimit(rps float64) Option {
	return func(c *Client) {
		if rps > 0 {
			c.limiter = rate.NewLimiter(rate.Limit(rps), 1)
		}
	}
}

// WithLogger injects a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(c *Client) {
		if logger != nil {
			c.logger = logger
		}
	}
}

// NewClient creates a Client producing vectors of the given dimension.
func NewClient(embedder ai.Embedder, dimension int, opts ...Option) (*Client, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if dimension < 1 {
		return nil, fmt.Errorf("dimension must be positive, got %d", dimension)
	}
	c := &Client{
		embedder:  embedder,
		dimension: int32(dimension),
		timeout:   DefaultTimeout,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// EmbedBatch embeds all texts in a single provider call and returns
// vectors in request order. The response is rejected unless it carries
// exactly one vector per text, each at the configured dimension.
func (c *Client) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("waiting for rate limiter: %w", err)
		}
	}

	embedCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	docs := make([]*ai.Document, len(texts))
	for i, t := range texts {
		docs[i] = ai.DocumentFromText(t, nil)
	}

	dim := c.dimension
	resp, err := c.embedder.Embed(embedCtx, &ai.EmbedRequest{
		Input:   docs,
		Options: &genai.EmbedContentConfig{OutputDimensionality: &dim},
	})
	if err != nil {
		return nil, fmt.Errorf("embedding %d texts: %w", len(texts), err)
	}

	if len(resp.Embeddings) != len(texts) {
		return nil, fmt.Errorf("%w: sent %d texts, got %d vectors",
			ErrCountMismatch, len(texts), len(resp.Embeddings))
	}

	vectors := make([][]float32, len(texts))
	for i, emb := range resp.Embeddings {
		if emb == nil || len(emb.Embedding) == 0 {
			return nil, fmt.Errorf("%w: empty vector at position %d", ErrCountMismatch, i)
		}
		if len(emb.Embedding) != int(c.dimension) {
			return nil, fmt.Errorf("vector %d has %d dimensions, want %d",
				i, len(emb.Embedding), c.dimension)
		}
		vectors[i] = emb.Embedding
	}
	return vectors, nil
}

// Embed embeds a single text. Used on the query path.
func (c *Client) Embed(ctx context.Context, text string) ([]float32, error) {
	vectors, err := c.EmbedBatch(ctx, []string{text})
	if err != nil {
		return nil, err
	}
	return vectors[0], nil
}
