// Package retrieval turns a natural-language question into supporting
// context from the knowledge store.
package retrieval

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/pathwise/pathwise/internal/knowledge"
)

// DefaultTopK is the number of nearest records retrieved per question
// when the caller does not override it.
const DefaultTopK = 4

// DefaultQueryTimeout bounds a single store query.
const DefaultQueryTimeout = 10 * time.Second

// Embedder is the slice of the embedding client retrieval needs.
type Embedder interface {
	Embed(ctx context.Context, text string) ([]float32, error)
}

// Searcher is the slice of the knowledge store retrieval reads from.
type Searcher interface {
	Search(ctx context.Context, collection string, vector []float32, k int) ([]knowledge.SearchResult, error)
	HybridSearch(ctx context.Context, collection string, vector []float32, k int, edgeKind string) ([]knowledge.HybridResult, error)
}

// Retriever answers "what do we know about this" queries. Safe for
// concurrent use.
type Retriever struct {
	embedder     Embedder
	store        Searcher
	collection   string
	topK         int
	edgeKind     string
	queryTimeout time.Duration
	logger       *slog.Logger
}

// RetrieverOption configures a Retriever at construction.
type RetrieverOption func(*Retriever)

// WithQueryTimeout bounds every store query issued by the Retriever.
func WithQueryTimeout(d time.Duration) RetrieverOption {
	return func(r *Retriever) {
		if d > 0 {
			r.queryTimeout = d
		}
	}
}

// NewRetriever creates a Retriever querying the given collection by
// default.
func NewRetriever(embedder Embedder, store Searcher, collection string, logger *slog.Logger, opts ...RetrieverOption) (*Retriever, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	if collection == "" {
		return nil, fmt.Errorf("collection is required")
	}
	if logger == nil {
		logger = slog.Default()
	}
	r := &Retriever{
		embedder:     embedder,
		store:        store,
		collection:   collection,
		topK:         DefaultTopK,
		edgeKind:     knowledge.EdgeReceivedTreatment,
		queryTimeout: DefaultQueryTimeout,
		logger:       logger,
	}
	for _, opt := range opts {
		opt(r)
	}
	return r, nil
}

type queryOptions struct {
	collection string
	topK       int
	edgeKind   string
}

// Option adjusts a single retrieval call.
type Option func(*queryOptions)

// WithTopK overrides the number of nearest records for this call.
func WithTopK(k int) Option {
	return func(o *queryOptions) {
		if k > 0 {
			o.topK = k
		}
	}
}

// WithCollection queries a different collection for this call.
func WithCollection(name string) Option {
	return func(o *queryOptions) {
		if name != "" {
			o.collection = name
		}
	}
}

// WithEdgeKind traverses a different edge kind for this call.
func WithEdgeKind(kind string) Option {
	return func(o *queryOptions) {
		if kind != "" {
			o.edgeKind = kind
		}
	}
}

func (r *Retriever) options(opts []Option) queryOptions {
	o := queryOptions{collection: r.collection, topK: r.topK, edgeKind: r.edgeKind}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Context returns the texts of the records nearest to the question.
//
// Embedding failures propagate: without a query vector there is
// nothing to retrieve and the caller must know. Store failures do not:
// they are logged and the question proceeds with no context, which the
// synthesis layer turns into its fixed fallback answer.
func (r *Retriever) Context(ctx context.Context, question string, opts ...Option) ([]string, error) {
	if question == "" {
		return []string{}, nil
	}
	o := r.options(opts)

	vec, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embedding question: %w", err)
	}

	queryCtx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	results, err := r.store.Search(queryCtx, o.collection, vec, o.topK)
	if err != nil {
		r.logger.Error("context retrieval failed, continuing without context",
			"collection", o.collection, "top_k", o.topK, "error", err)
		return []string{}, nil
	}

	texts := make([]string, 0, len(results))
	for _, res := range results {
		texts = append(texts, res.Text)
	}
	return texts, nil
}

// Pathways returns the nearest records enriched with their outbound
// treatment edges. Ranking is by similarity alone; annotations only
// decorate. Store failures degrade to an empty result exactly like
// Context.
func (r *Retriever) Pathways(ctx context.Context, question string, opts ...Option) ([]knowledge.HybridResult, error) {
	if question == "" {
		return []knowledge.HybridResult{}, nil
	}
	o := r.options(opts)

	vec, err := r.embedder.Embed(ctx, question)
	if err != nil {
		return nil, fmt.Errorf("embedding question: %w", err)
	}

	queryCtx, cancel := context.WithTimeout(ctx, r.queryTimeout)
	defer cancel()

	results, err := r.store.HybridSearch(queryCtx, o.collection, vec, o.topK, o.edgeKind)
	if err != nil {
		r.logger.Error("pathway retrieval failed, continuing without context",
			"collection", o.collection, "top_k", o.topK, "edge_kind", o.edgeKind, "error", err)
		return []knowledge.HybridResult{}, nil
	}
	return results, nil
}
