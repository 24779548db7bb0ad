// Package retrieval turns natural-language queries into scored chunk hits
// and formats them as grounding context for generation.
package retrieval

import (
	"context"
	"fmt"
	"strings"

	"github.com/google/uuid"

	"github.com/studypdf/docpipe/internal/embedding"
	"github.com/studypdf/docpipe/internal/vector"
)

const (
	// DefaultLimit bounds search results when the caller does not.
	DefaultLimit = 10

	// ChapterThreshold is the similarity floor for chapter-scoped context.
	ChapterThreshold = 0.7

	// DocumentThreshold is the looser floor used when a chapter yields
	// nothing and the search widens to the whole document.
	DocumentThreshold = 0.5

	contextLimit = 5
)

// Index is the similarity search surface retrieval depends on.
type Index interface {
	Search(ctx context.Context, q vector.Query) ([]vector.Hit, error)
}

// Request scopes one search.
type Request struct {
	Query      string
	DocumentID uuid.UUID
	ChapterID  uuid.UUID // optional
	Limit      int
	Threshold  float64
}

// Searcher embeds queries and searches the chunk index.
type Searcher struct {
	index    Index
	provider embedding.Provider
}

// NewSearcher wires a searcher over the given index and embedding provider.
func NewSearcher(index Index, provider embedding.Provider) *Searcher {
	return &Searcher{index: index, provider: provider}
}

// Search embeds the query text and returns matching chunks, best first.
func (s *Searcher) Search(ctx context.Context, req Request) ([]vector.Hit, error) {
	if strings.TrimSpace(req.Query) == "" {
		return nil, fmt.Errorf("empty query")
	}
	if s.provider == nil {
		return nil, fmt.Errorf("no embedding provider configured")
	}

	vecs, err := s.provider.Embed(ctx, []string{req.Query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embed query: got %d vectors, want 1", len(vecs))
	}

	limit := req.Limit
	if limit <= 0 {
		limit = DefaultLimit
	}
	return s.index.Search(ctx, vector.Query{
		Embedding:  vecs[0],
		DocumentID: req.DocumentID,
		ChapterID:  req.ChapterID,
		Limit:      limit,
		Threshold:  req.Threshold,
	})
}

// ExerciseContext gathers grounding passages for exercise generation. It
// first searches within the chapter at a strict threshold, then widens to
// the whole document at a looser one if the chapter yields nothing. Returns
// an empty string when neither scope produces a hit.
func (s *Searcher) ExerciseContext(ctx context.Context, documentID, chapterID uuid.UUID, topic string) (string, error) {
	hits, err := s.Search(ctx, Request{
		Query:      topic,
		DocumentID: documentID,
		ChapterID:  chapterID,
		Limit:      contextLimit,
		Threshold:  ChapterThreshold,
	})
	if err != nil {
		return "", err
	}
	if len(hits) == 0 {
		hits, err = s.Search(ctx, Request{
			Query:      topic,
			DocumentID: documentID,
			Limit:      contextLimit,
			Threshold:  DocumentThreshold,
		})
		if err != nil {
			return "", err
		}
	}
	return FormatContext(hits), nil
}

// FormatContext renders hits as numbered source blocks for a prompt. Hits
// with an unknown page omit the page annotation.
func FormatContext(hits []vector.Hit) string {
	if len(hits) == 0 {
		return ""
	}
	blocks := make([]string, len(hits))
	for i, hit := range hits {
		if hit.PageNumber > 0 {
			blocks[i] = fmt.Sprintf("[Source %d (Page %d)]\n%s", i+1, hit.PageNumber, hit.Content)
		} else {
			blocks[i] = fmt.Sprintf("[Source %d]\n%s", i+1, hit.Content)
		}
	}
	return strings.Join(blocks, "\n\n---\n\n")
}
