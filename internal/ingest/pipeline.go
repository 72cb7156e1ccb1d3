// Package ingest batches raw records through embedding into the
// knowledge store, reporting per-batch outcomes instead of failing the
// whole run on the first bad batch.
package ingest

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"

	"github.com/pathwise/pathwise/internal/knowledge"
)

// DefaultBatchSize is how many records are embedded and upserted per
// provider call when the pipeline is not configured otherwise.
const DefaultBatchSize = 96

// Embedder is the slice of the embedding client the pipeline needs.
type Embedder interface {
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)
}

// Store is the slice of the knowledge store the pipeline writes to.
type Store interface {
	UpsertBatch(ctx context.Context, collection string, records []knowledge.Record) error
}

// GraphStore extends Store with the graph operations pathway seeding
// needs.
type GraphStore interface {
	Store
	CreateEntity(ctx context.Context, e knowledge.Entity) error
	Relate(ctx context.Context, from knowledge.RecordID, kind string, to knowledge.RecordID, attrs map[string]any) error
}

// Pipeline ingests source records. Safe for concurrent use.
type Pipeline struct {
	embedder    Embedder
	store       Store
	batchSize   int
	parallelism int
	root        *os.Root
	logger      *slog.Logger
}

// Option configures a Pipeline.
type Option func(*Pipeline)

// WithBatchSize overrides the records-per-batch count.
func WithBatchSize(n int) Option {
	return func(p *Pipeline) {
		if n > 0 {
			p.batchSize = n
		}
	}
}

// WithParallelism processes up to n batches concurrently. Only applied
// when every record identity in the run is distinct; overlapping
// identities always run sequentially so the last write is well defined.
func WithParallelism(n int) Option {
	return func(p *Pipeline) {
		if n > 1 {
			p.parallelism = n
		}
	}
}

// WithRoot sets the directory filename records are resolved against.
// Reads cannot escape the root.
func WithRoot(root *os.Root) Option {
	return func(p *Pipeline) { p.root = root }
}

// WithLogger injects a logger.
func WithLogger(logger *slog.Logger) Option {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPipeline creates a Pipeline. Both collaborators are required.
func NewPipeline(embedder Embedder, store Store, opts ...Option) (*Pipeline, error) {
	if embedder == nil {
		return nil, fmt.Errorf("embedder is required")
	}
	if store == nil {
		return nil, fmt.Errorf("store is required")
	}
	p := &Pipeline{
		embedder:  embedder,
		store:     store,
		batchSize: DefaultBatchSize,
		logger:    slog.Default(),
	}
	for _, opt := range opts {
		opt(p)
	}
	return p, nil
}

// Seed embeds and upserts records into collection in batches. A batch
// failure is logged and recorded in the report; later batches still
// run. Cancellation is honored between batches, so a canceled run
// returns the partial report together with the context error. Re-seeds
// are idempotent: the upsert replaces text and embedding by key.
func (p *Pipeline) Seed(ctx context.Context, collection string, records []SourceRecord) (*Report, error) {
	report := &Report{RunID: uuid.New(), Failures: []BatchFailure{}}
	if len(records) == 0 {
		return report, nil
	}

	batches := partition(records, p.batchSize)
	report.Batches = len(batches)
	logger := p.logger.With("run_id", report.RunID)

	if p.parallelism > 1 && disjointIdentities(collection, records) {
		return p.seedParallel(ctx, logger, collection, batches, report)
	}

	for i, batch := range batches {
		if err := ctx.Err(); err != nil {
			return report, err
		}
		p.runBatch(ctx, logger, collection, i, batch, report)
	}
	return report, nil
}

// seedParallel runs batches through a bounded errgroup. Each goroutine
// writes only its own slot, so no locking is needed; counters are
// folded in after Wait.
func (p *Pipeline) seedParallel(ctx context.Context, logger *slog.Logger, collection string, batches [][]SourceRecord, report *Report) (*Report, error) {
	type outcome struct {
		records int
		failure *BatchFailure
	}
	outcomes := make([]outcome, len(batches))

	var g errgroup.Group
	g.SetLimit(p.parallelism)
	for i, batch := range batches {
		g.Go(func() error {
			n, err := p.processBatch(ctx, collection, batch)
			if err != nil {
				outcomes[i].failure = p.batchFailure(logger, collection, i, batch, err)
			} else {
				outcomes[i].records = n
			}
			return nil
		})
	}
	_ = g.Wait() // goroutines never return errors, failures land in outcomes

	for _, o := range outcomes {
		if o.failure != nil {
			report.Failed++
			report.Failures = append(report.Failures, *o.failure)
			continue
		}
		report.Succeeded++
		report.Records += o.records
	}
	if err := ctx.Err(); err != nil {
		return report, err
	}
	return report, nil
}

// runBatch processes one batch and folds the outcome into the report.
func (p *Pipeline) runBatch(ctx context.Context, logger *slog.Logger, collection string, index int, batch []SourceRecord, report *Report) {
	n, err := p.processBatch(ctx, collection, batch)
	if err != nil {
		report.Failed++
		report.Failures = append(report.Failures, *p.batchFailure(logger, collection, index, batch, err))
		return
	}
	report.Succeeded++
	report.Records += n
}

func (p *Pipeline) batchFailure(logger *slog.Logger, collection string, index int, batch []SourceRecord, err error) *BatchFailure {
	first := knowledge.ParseRecordID(collection, batch[0].ID).Key
	last := knowledge.ParseRecordID(collection, batch[len(batch)-1].ID).Key
	logger.Error("ingestion batch failed",
		"collection", collection,
		"batch", index,
		"size", len(batch),
		"first_key", first,
		"last_key", last,
		"error", err)
	return &BatchFailure{Batch: index, Size: len(batch), FirstKey: first, LastKey: last, Err: err}
}

// processBatch resolves texts, embeds the whole batch in one call, and
// writes it in one upsert. Vectors pair with texts by position; the
// embedding client guarantees the counts match.
func (p *Pipeline) processBatch(ctx context.Context, collection string, batch []SourceRecord) (int, error) {
	if len(batch) == 0 {
		return 0, nil
	}

	texts := make([]string, len(batch))
	for i, rec := range batch {
		text, err := p.resolveText(rec)
		if err != nil {
			return 0, err
		}
		texts[i] = text
	}

	vectors, err := p.embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, fmt.Errorf("embedding batch: %w", err)
	}

	records := make([]knowledge.Record, len(batch))
	for i, rec := range batch {
		records[i] = knowledge.Record{
			Key:       knowledge.ParseRecordID(collection, rec.ID).Key,
			Text:      texts[i],
			Embedding: vectors[i],
		}
	}
	if err := p.store.UpsertBatch(ctx, collection, records); err != nil {
		return 0, fmt.Errorf("upserting batch: %w", err)
	}
	return len(records), nil
}

// resolveText returns the record's inline text or reads it from the
// configured root.
func (p *Pipeline) resolveText(rec SourceRecord) (string, error) {
	if rec.Text != "" {
		return rec.Text, nil
	}
	if p.root == nil {
		return "", fmt.Errorf("record %q references file %q but no root directory is configured", rec.ID, rec.Filename)
	}
	f, err := p.root.Open(rec.Filename)
	if err != nil {
		return "", fmt.Errorf("opening %q for record %q: %w", rec.Filename, rec.ID, err)
	}
	defer f.Close()

	data, err := io.ReadAll(f)
	if err != nil {
		return "", fmt.Errorf("reading %q for record %q: %w", rec.Filename, rec.ID, err)
	}
	return string(data), nil
}

// partition splits records into batches of at most size, the last one
// short.
func partition(records []SourceRecord, size int) [][]SourceRecord {
	if size < 1 {
		size = DefaultBatchSize
	}
	var batches [][]SourceRecord
	for start := 0; start < len(records); start += size {
		end := min(start+size, len(records))
		batches = append(batches, records[start:end])
	}
	return batches
}

// disjointIdentities reports whether every record resolves to a
// distinct key after prefix stripping. Duplicate identities force
// sequential processing so later records deterministically win.
func disjointIdentities(collection string, records []SourceRecord) bool {
	seen := make(map[string]struct{}, len(records))
	for _, rec := range records {
		key := knowledge.ParseRecordID(collection, rec.ID).Key
		if _, dup := seen[key]; dup {
			return false
		}
		seen[key] = struct{}{}
	}
	return true
}
