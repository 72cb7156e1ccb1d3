//go:build integration

package knowledge_test

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pathwise/pathwise/internal/knowledge"
	"github.com/pathwise/pathwise/internal/log"
	"github.com/pathwise/pathwise/internal/testutil"
)

const testDim = 3

func setupStore(t *testing.T) (*knowledge.Store, *testutil.TestDBContainer, func()) {
	t.Helper()
	db, cleanup := testutil.SetupTestDB(t)

	store, err := knowledge.NewStore(db.Pool, testDim, log.NewNop())
	require.NoError(t, err)
	require.NoError(t, store.EnsureCollection(context.Background(), "knowledge", testDim))
	return store, db, cleanup
}

func vec(x, y, z float32) []float32 { return []float32{x, y, z} }

func TestEnsureCollection_Idempotent(t *testing.T) {
	store, _, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	// Second and third runs must be no-ops.
	require.NoError(t, store.EnsureCollection(ctx, "knowledge", testDim))
	require.NoError(t, store.EnsureCollection(ctx, "knowledge", testDim))

	info, err := store.CollectionStats(ctx, "knowledge")
	require.NoError(t, err)
	assert.Equal(t, testDim, info.Dimension)
}

func TestUpsertBatch_LastWriteWins(t *testing.T) {
	store, db, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.UpsertBatch(ctx, "knowledge", []knowledge.Record{
		{Key: "p1", Text: "old text", Embedding: vec(1, 0, 0), Metadata: map[string]any{"source": "v1"}},
	}))
	require.NoError(t, store.UpsertBatch(ctx, "knowledge", []knowledge.Record{
		{Key: "p1", Text: "new text", Embedding: vec(0, 1, 0), Metadata: map[string]any{"source": "v2"}},
	}))

	results, err := store.Search(ctx, "knowledge", vec(0, 1, 0), 1)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "p1", results[0].Key)
	assert.Equal(t, "new text", results[0].Text)

	// Only text and embedding are replaced on conflict.
	var source string
	err = db.Pool.QueryRow(ctx,
		`SELECT metadata->>'source' FROM knowledge WHERE key = 'p1'`).Scan(&source)
	require.NoError(t, err)
	assert.Equal(t, "v1", source)
}

func TestSearch_OrderedBySimilarity(t *testing.T) {
	store, _, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.UpsertBatch(ctx, "knowledge", []knowledge.Record{
		{Key: "far", Text: "far", Embedding: vec(0, 0, 1)},
		{Key: "near", Text: "near", Embedding: vec(1, 0, 0)},
		{Key: "mid", Text: "mid", Embedding: vec(1, 1, 0)},
	}))

	results, err := store.Search(ctx, "knowledge", vec(1, 0, 0), 3)
	require.NoError(t, err)
	require.Len(t, results, 3)
	assert.Equal(t, "near", results[0].Key)
	assert.Equal(t, "mid", results[1].Key)
	assert.Equal(t, "far", results[2].Key)
	assert.GreaterOrEqual(t, results[0].Similarity, results[1].Similarity)
	assert.GreaterOrEqual(t, results[1].Similarity, results[2].Similarity)
}

func TestSearch_DimensionMismatch(t *testing.T) {
	store, _, cleanup := setupStore(t)
	defer cleanup()

	_, err := store.Search(context.Background(), "knowledge", []float32{1, 2}, 4)
	assert.ErrorIs(t, err, knowledge.ErrDimensionMismatch)
}

func TestHybridSearch(t *testing.T) {
	store, _, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.UpsertBatch(ctx, "knowledge", []knowledge.Record{
		{Key: "p1", Text: "patient one", Embedding: vec(1, 0, 0)},
		{Key: "p2", Text: "patient two", Embedding: vec(0, 1, 0)},
	}))

	for _, e := range []knowledge.Entity{
		{Collection: "knowledge", Key: "p1", Kind: "subject"},
		{Collection: "knowledge", Key: "p2", Kind: "subject"},
		{Collection: "knowledge", Key: "t01", Kind: "treatment", Attributes: map[string]any{"name": "PCI"}},
	} {
		require.NoError(t, store.CreateEntity(ctx, e))
	}
	p1 := knowledge.RecordID{Collection: "knowledge", Key: "p1"}
	t01 := knowledge.RecordID{Collection: "knowledge", Key: "t01"}
	require.NoError(t, store.Relate(ctx, p1, knowledge.EdgeReceivedTreatment, t01,
		map[string]any{"outcome": "positive"}))

	results, err := store.HybridSearch(ctx, "knowledge", vec(1, 0, 0), 2, knowledge.EdgeReceivedTreatment)
	require.NoError(t, err)
	require.Len(t, results, 2)

	// p1 is nearest and carries its treatment edge.
	assert.Equal(t, "p1", results[0].Key)
	require.Len(t, results[0].Annotations, 1)
	assert.Equal(t, "t01", results[0].Annotations[0].Target)
	assert.Equal(t, "positive", results[0].Annotations[0].Outcome)

	// p2 has no edges: empty, never nil.
	assert.NotNil(t, results[1].Annotations)
	assert.Empty(t, results[1].Annotations)
}

func TestHybridSearch_TiesKeepSearchOrder(t *testing.T) {
	store, _, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	// All three records share one embedding, so every similarity ties.
	require.NoError(t, store.UpsertBatch(ctx, "knowledge", []knowledge.Record{
		{Key: "p3", Text: "three", Embedding: vec(1, 0, 0)},
		{Key: "p1", Text: "one", Embedding: vec(1, 0, 0)},
		{Key: "p2", Text: "two", Embedding: vec(1, 0, 0)},
	}))

	plain, err := store.Search(ctx, "knowledge", vec(1, 0, 0), 3)
	require.NoError(t, err)
	require.Len(t, plain, 3)

	hybrid, err := store.HybridSearch(ctx, "knowledge", vec(1, 0, 0), 3, knowledge.EdgeReceivedTreatment)
	require.NoError(t, err)
	require.Len(t, hybrid, 3)

	for i := range plain {
		assert.Equal(t, plain[i].Key, hybrid[i].Key, "row %d", i)
	}
}

func TestRelate_MissingEndpoint(t *testing.T) {
	store, _, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.CreateEntity(ctx, knowledge.Entity{
		Collection: "knowledge", Key: "p1", Kind: "subject",
	}))

	err := store.Relate(ctx,
		knowledge.RecordID{Collection: "knowledge", Key: "p1"},
		knowledge.EdgeReceivedTreatment,
		knowledge.RecordID{Collection: "knowledge", Key: "ghost"},
		nil)
	assert.ErrorIs(t, err, knowledge.ErrMissingEndpoint)
}

func TestCollectionStats(t *testing.T) {
	store, _, cleanup := setupStore(t)
	defer cleanup()
	ctx := context.Background()

	require.NoError(t, store.UpsertBatch(ctx, "knowledge", []knowledge.Record{
		{Key: "p1", Text: "a", Embedding: vec(1, 0, 0)},
		{Key: "p2", Text: "b", Embedding: vec(0, 1, 0)},
	}))

	info, err := store.CollectionStats(ctx, "knowledge")
	require.NoError(t, err)
	assert.Equal(t, int64(2), info.Records)
	assert.Equal(t, testDim, info.Dimension)
}
