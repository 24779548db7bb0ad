//go:build integration

package vector

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestIndex connects to a local Qdrant and ensures the collection
// exists. Skips the test if Qdrant is not running.
func setupTestIndex(t *testing.T) *Index {
	idx, err := NewIndex("localhost", 6334)
	if err != nil {
		t.Skipf("Qdrant not available: %v", err)
	}
	require.NoError(t, idx.EnsureCollection(context.Background()))
	return idx
}

func testEmbedding(seed float32) []float32 {
	vec := make([]float32, VectorDimension)
	for i := range vec {
		vec[i] = seed
	}
	vec[0] = 1
	return vec
}

func TestUpsertAndSearch(t *testing.T) {
	idx := setupTestIndex(t)
	defer idx.Close()

	ctx := context.Background()
	docID := uuid.New()
	chapterID := uuid.New()

	points := []Point{
		{
			ID:           uuid.New(),
			DocumentID:   docID,
			ChapterID:    chapterID,
			ChunkIndex:   0,
			PageNumber:   3,
			SectionTitle: "Kinematics",
			Content:      "Velocity is the rate of change of position.",
			Embedding:    testEmbedding(0.1),
		},
		{
			ID:         uuid.New(),
			DocumentID: docID,
			ChapterID:  uuid.New(),
			ChunkIndex: 1,
			Content:    "Acceleration is the rate of change of velocity.",
			Embedding:  testEmbedding(0.2),
		},
	}
	require.NoError(t, idx.UpsertChunks(ctx, points))
	defer idx.DeleteDocument(ctx, docID)

	// Document scope sees both chunks.
	hits, err := idx.Search(ctx, Query{
		Embedding:  testEmbedding(0.1),
		DocumentID: docID,
		Limit:      10,
	})
	require.NoError(t, err)
	assert.Len(t, hits, 2)

	// Chapter scope narrows to one.
	hits, err = idx.Search(ctx, Query{
		Embedding:  testEmbedding(0.1),
		DocumentID: docID,
		ChapterID:  chapterID,
		Limit:      10,
	})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "Kinematics", hits[0].SectionTitle)
	assert.Equal(t, 3, hits[0].PageNumber)
	assert.Greater(t, hits[0].Score, 0.9)

	// Other documents stay invisible.
	hits, err = idx.Search(ctx, Query{
		Embedding:  testEmbedding(0.1),
		DocumentID: uuid.New(),
		Limit:      10,
	})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestDeleteDocument(t *testing.T) {
	idx := setupTestIndex(t)
	defer idx.Close()

	ctx := context.Background()
	docID := uuid.New()

	require.NoError(t, idx.UpsertChunks(ctx, []Point{{
		ID:         uuid.New(),
		DocumentID: docID,
		ChapterID:  uuid.New(),
		Content:    "ephemeral",
		Embedding:  testEmbedding(0.3),
	}}))
	require.NoError(t, idx.DeleteDocument(ctx, docID))

	hits, err := idx.Search(ctx, Query{
		Embedding:  testEmbedding(0.3),
		DocumentID: docID,
		Limit:      10,
	})
	require.NoError(t, err)
	assert.Empty(t, hits)
}

func TestUpsertDimensionMismatch(t *testing.T) {
	idx := setupTestIndex(t)
	defer idx.Close()

	err := idx.UpsertChunks(context.Background(), []Point{{
		ID:         uuid.New(),
		DocumentID: uuid.New(),
		Embedding:  []float32{1, 2, 3},
	}})
	assert.ErrorIs(t, err, ErrDimensionMismatch)
}
