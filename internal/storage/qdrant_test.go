//go:build integration

package storage

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestStorage creates a test storage instance and ensures the
// collection exists. Skips the test if Qdrant is not running.
func setupTestStorage(t *testing.T) *QdrantStorage {
	storage, err := NewQdrantStorage("localhost", 6334, "pens_docs_test")
	if err != nil {
		t.Skipf("Qdrant not available: %v", err)
	}

	err = storage.EnsureCollection(context.Background())
	require.NoError(t, err, "Failed to ensure collection")

	return storage
}

func testChunk(source string, index int) *Chunk {
	vec := make([]float32, VectorDimension)
	// Distinct direction per chunk so search ordering is observable.
	vec[index%VectorDimension] = 1
	return &Chunk{
		ID:        PointID(source, index),
		Source:    source,
		Index:     index,
		Text:      "Pendaftaran jalur mandiri dibuka bulan Juni.",
		CharStart: index * 1500,
		CharEnd:   index*1500 + 1800,
		Embedding: vec,
	}
}

func TestUpsertSearchDelete(t *testing.T) {
	storage := setupTestStorage(t)
	defer storage.Close()

	ctx := context.Background()
	source := "integration-panduan.pdf"

	// Clean slate for this source
	_, err := storage.DeleteBySource(ctx, source)
	require.NoError(t, err)

	chunks := []*Chunk{testChunk(source, 0), testChunk(source, 1), testChunk(source, 2)}
	require.NoError(t, storage.UpsertChunks(ctx, chunks))

	// Search along chunk 1's direction: it must come back first
	query := make([]float32, VectorDimension)
	query[1] = 1
	hits, err := storage.Search(ctx, query, 3)
	require.NoError(t, err)
	require.NotEmpty(t, hits)

	assert.Equal(t, chunks[1].ID, hits[0].Chunk.ID)
	assert.Equal(t, source, hits[0].Chunk.Source)
	assert.Equal(t, 1, hits[0].Chunk.Index)
	assert.InDelta(t, 0.0, hits[0].Distance, 1e-3, "identical direction should have near-zero distance")

	// Distances are non-decreasing in returned order
	for i := 1; i < len(hits); i++ {
		assert.GreaterOrEqual(t, hits[i].Distance, hits[i-1].Distance)
	}

	// Purge returns exactly the ids that were stored
	deleted, err := storage.DeleteBySource(ctx, source)
	require.NoError(t, err)
	assert.Len(t, deleted, len(chunks))

	// Second purge is a no-op
	deleted, err = storage.DeleteBySource(ctx, source)
	require.NoError(t, err)
	assert.Empty(t, deleted)
}

func TestUpsertChunks_DimensionMismatch(t *testing.T) {
	storage := setupTestStorage(t)
	defer storage.Close()

	bad := testChunk("bad.pdf", 0)
	bad.Embedding = make([]float32, 42)

	err := storage.UpsertChunks(context.Background(), []*Chunk{bad})
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestSearch_DimensionMismatch(t *testing.T) {
	storage := setupTestStorage(t)
	defer storage.Close()

	_, err := storage.Search(context.Background(), make([]float32, 42), 3)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}

func TestCount(t *testing.T) {
	storage := setupTestStorage(t)
	defer storage.Close()

	ctx := context.Background()
	source := "integration-count.pdf"

	before, err := storage.Count(ctx)
	require.NoError(t, err)

	require.NoError(t, storage.UpsertChunks(ctx, []*Chunk{testChunk(source, 0), testChunk(source, 1)}))

	after, err := storage.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, before+2, after)

	_, err = storage.DeleteBySource(ctx, source)
	require.NoError(t, err)
}
