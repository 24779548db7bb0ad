package mcp

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/studypdf/docpipe/internal/retrieval"
	"github.com/studypdf/docpipe/internal/store"
	"github.com/studypdf/docpipe/internal/vector"
)

type fakeSearcher struct {
	hits []vector.Hit
	last retrieval.Request
}

func (f *fakeSearcher) Search(_ context.Context, req retrieval.Request) ([]vector.Hit, error) {
	f.last = req
	return f.hits, nil
}

func TestSearchContentHandler(t *testing.T) {
	docID := uuid.New()
	searcher := &fakeSearcher{hits: []vector.Hit{
		{ID: uuid.New(), ChapterID: uuid.New(), Content: "velocity passage", PageNumber: 2, Score: 0.88},
	}}
	handler := makeSearchHandler(searcher)

	_, out, err := handler(context.Background(), nil, SearchContentInput{
		Query:      "what is velocity",
		DocumentID: docID.String(),
	})
	require.NoError(t, err)
	require.Len(t, out.Results, 1)
	assert.Equal(t, "velocity passage", out.Results[0].Content)
	assert.Equal(t, 2, out.Results[0].PageNumber)

	// Defaults applied.
	assert.Equal(t, 5, searcher.last.Limit)
	assert.Equal(t, 0.5, searcher.last.Threshold)
	assert.Equal(t, docID, searcher.last.DocumentID)
}

func TestSearchContentHandler_InvalidID(t *testing.T) {
	handler := makeSearchHandler(&fakeSearcher{})
	_, _, err := handler(context.Background(), nil, SearchContentInput{
		Query:      "q",
		DocumentID: "not-a-uuid",
	})
	assert.Error(t, err)
}

func TestSearchContentHandler_NoResults(t *testing.T) {
	handler := makeSearchHandler(&fakeSearcher{})
	_, out, err := handler(context.Background(), nil, SearchContentInput{
		Query:      "q",
		DocumentID: uuid.New().String(),
	})
	require.NoError(t, err)
	assert.Empty(t, out.Results)
	assert.NotEmpty(t, out.Message)
}

func TestDocumentStatusHandler(t *testing.T) {
	db, err := store.NewSQLite(":memory:")
	require.NoError(t, err)
	docs := store.NewDocumentRepo(db)
	chapters := store.NewChapterRepo(db)
	ctx := context.Background()

	doc := &store.Document{
		OwnerID:    uuid.New(),
		Title:      "Physics Primer",
		StorageURL: "https://storage/doc.pdf",
		FileKind:   "pdf",
	}
	require.NoError(t, docs.Create(ctx, doc))
	require.NoError(t, chapters.Replace(ctx, doc.ID, []*store.Chapter{
		{Number: 1, Title: "Kinematics"},
		{Number: 2, Title: "Forces"},
	}))

	handler := makeStatusHandler(docs, chapters)
	_, out, err := handler(ctx, nil, DocumentStatusInput{DocumentID: doc.ID.String()})
	require.NoError(t, err)
	assert.True(t, out.Found)
	assert.Equal(t, "Physics Primer", out.Title)
	assert.Equal(t, string(store.StatusPending), out.Status)
	require.Len(t, out.Chapters, 2)
	assert.Equal(t, "Forces", out.Chapters[1].Title)

	_, out, err = handler(ctx, nil, DocumentStatusInput{DocumentID: uuid.New().String()})
	require.NoError(t, err)
	assert.False(t, out.Found)
}
