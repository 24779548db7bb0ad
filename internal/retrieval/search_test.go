package retrieval

import (
	"context"
	"errors"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studypdf/docpipe/internal/vector"
)

// fakeIndex replays canned hits and records the queries it saw.
type fakeIndex struct {
	queries []vector.Query
	respond func(q vector.Query) []vector.Hit
	err     error
}

func (f *fakeIndex) Search(_ context.Context, q vector.Query) ([]vector.Hit, error) {
	f.queries = append(f.queries, q)
	if f.err != nil {
		return nil, f.err
	}
	if f.respond == nil {
		return nil, nil
	}
	return f.respond(q), nil
}

type fakeEmbedder struct {
	err error
}

func (f *fakeEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	if f.err != nil {
		return nil, f.err
	}
	vecs := make([][]float32, len(texts))
	for i := range texts {
		vecs[i] = make([]float32, vector.VectorDimension)
	}
	return vecs, nil
}

func TestSearch(t *testing.T) {
	docID := uuid.New()
	idx := &fakeIndex{respond: func(q vector.Query) []vector.Hit {
		return []vector.Hit{{DocumentID: q.DocumentID, Content: "velocity text", Score: 0.9}}
	}}
	s := NewSearcher(idx, &fakeEmbedder{})

	hits, err := s.Search(context.Background(), Request{Query: "velocity", DocumentID: docID})
	require.NoError(t, err)
	require.Len(t, hits, 1)
	assert.Equal(t, "velocity text", hits[0].Content)

	require.Len(t, idx.queries, 1)
	assert.Equal(t, docID, idx.queries[0].DocumentID)
	assert.Equal(t, DefaultLimit, idx.queries[0].Limit)
}

func TestSearch_EmptyQuery(t *testing.T) {
	s := NewSearcher(&fakeIndex{}, &fakeEmbedder{})
	_, err := s.Search(context.Background(), Request{Query: "   ", DocumentID: uuid.New()})
	assert.Error(t, err)
}

func TestSearch_NoProvider(t *testing.T) {
	s := NewSearcher(&fakeIndex{}, nil)
	_, err := s.Search(context.Background(), Request{Query: "velocity", DocumentID: uuid.New()})
	assert.Error(t, err)
}

func TestSearch_EmbedFailure(t *testing.T) {
	s := NewSearcher(&fakeIndex{}, &fakeEmbedder{err: errors.New("rate limited")})
	_, err := s.Search(context.Background(), Request{Query: "velocity", DocumentID: uuid.New()})
	assert.Error(t, err)
}

func TestExerciseContext_ChapterScope(t *testing.T) {
	docID := uuid.New()
	chapterID := uuid.New()
	idx := &fakeIndex{respond: func(q vector.Query) []vector.Hit {
		return []vector.Hit{{Content: "chapter passage", PageNumber: 4, Score: 0.85}}
	}}
	s := NewSearcher(idx, &fakeEmbedder{})

	got, err := s.ExerciseContext(context.Background(), docID, chapterID, "forces")
	require.NoError(t, err)
	assert.Equal(t, "[Source 1 (Page 4)]\nchapter passage", got)

	// Chapter scope sufficed, so only one search ran.
	require.Len(t, idx.queries, 1)
	assert.Equal(t, chapterID, idx.queries[0].ChapterID)
	assert.Equal(t, ChapterThreshold, idx.queries[0].Threshold)
}

func TestExerciseContext_FallsBackToDocument(t *testing.T) {
	docID := uuid.New()
	chapterID := uuid.New()
	idx := &fakeIndex{respond: func(q vector.Query) []vector.Hit {
		if q.ChapterID != uuid.Nil {
			return nil
		}
		return []vector.Hit{{Content: "document passage", Score: 0.6}}
	}}
	s := NewSearcher(idx, &fakeEmbedder{})

	got, err := s.ExerciseContext(context.Background(), docID, chapterID, "forces")
	require.NoError(t, err)
	assert.Equal(t, "[Source 1]\ndocument passage", got)

	require.Len(t, idx.queries, 2)
	assert.Equal(t, uuid.Nil, idx.queries[1].ChapterID)
	assert.Equal(t, DocumentThreshold, idx.queries[1].Threshold)
}

func TestExerciseContext_NothingFound(t *testing.T) {
	s := NewSearcher(&fakeIndex{}, &fakeEmbedder{})
	got, err := s.ExerciseContext(context.Background(), uuid.New(), uuid.New(), "forces")
	require.NoError(t, err)
	assert.Empty(t, got)
}

func TestFormatContext(t *testing.T) {
	hits := []vector.Hit{
		{Content: "first passage", PageNumber: 2},
		{Content: "second passage"},
	}
	got := FormatContext(hits)
	assert.Equal(t, "[Source 1 (Page 2)]\nfirst passage\n\n---\n\n[Source 2]\nsecond passage", got)
	assert.Empty(t, FormatContext(nil))
}
