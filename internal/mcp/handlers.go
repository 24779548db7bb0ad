package mcp

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/modelcontextprotocol/go-sdk/mcp"

	"github.com/studypdf/docpipe/internal/retrieval"
	"github.com/studypdf/docpipe/internal/store"
)

// makeSearchHandler creates the search_content tool handler.
func makeSearchHandler(searcher Searcher) func(
	context.Context, *mcp.CallToolRequest, SearchContentInput,
) (*mcp.CallToolResult, SearchContentOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input SearchContentInput) (
		*mcp.CallToolResult, SearchContentOutput, error,
	) {
		if searcher == nil {
			return nil, SearchContentOutput{
				Results: []ContentResult{},
				Message: "Search is not configured on this server.",
			}, nil
		}

		documentID, err := uuid.Parse(input.DocumentID)
		if err != nil {
			return nil, SearchContentOutput{}, fmt.Errorf("invalid document_id: %w", err)
		}
		var chapterID uuid.UUID
		if input.ChapterID != "" {
			chapterID, err = uuid.Parse(input.ChapterID)
			if err != nil {
				return nil, SearchContentOutput{}, fmt.Errorf("invalid chapter_id: %w", err)
			}
		}

		maxResults := input.MaxResults
		if maxResults <= 0 {
			maxResults = 5
		}
		minScore := input.MinScore
		if minScore <= 0 {
			minScore = 0.5
		}

		hits, err := searcher.Search(ctx, retrieval.Request{
			Query:      input.Query,
			DocumentID: documentID,
			ChapterID:  chapterID,
			Limit:      maxResults,
			Threshold:  minScore,
		})
		if err != nil {
			return nil, SearchContentOutput{}, fmt.Errorf("search failed: %w", err)
		}

		results := make([]ContentResult, 0, len(hits))
		for _, h := range hits {
			results = append(results, ContentResult{
				ChunkID:      h.ID.String(),
				ChapterID:    h.ChapterID.String(),
				PageNumber:   h.PageNumber,
				SectionTitle: h.SectionTitle,
				Content:      h.Content,
				Score:        h.Score,
			})
		}

		if len(results) == 0 {
			return nil, SearchContentOutput{
				Results: []ContentResult{},
				Message: "No matching content found. Try broader search terms or a lower min_score.",
			}, nil
		}
		return nil, SearchContentOutput{Results: results}, nil
	}
}

// makeStatusHandler creates the document_status tool handler.
func makeStatusHandler(docs store.DocumentRepo, chapters store.ChapterRepo) func(
	context.Context, *mcp.CallToolRequest, DocumentStatusInput,
) (*mcp.CallToolResult, DocumentStatusOutput, error) {
	return func(ctx context.Context, req *mcp.CallToolRequest, input DocumentStatusInput) (
		*mcp.CallToolResult, DocumentStatusOutput, error,
	) {
		documentID, err := uuid.Parse(input.DocumentID)
		if err != nil {
			return nil, DocumentStatusOutput{}, fmt.Errorf("invalid document_id: %w", err)
		}

		doc, err := docs.GetByID(ctx, documentID)
		if err != nil {
			if errors.Is(err, store.ErrNotFound) {
				return nil, DocumentStatusOutput{
					DocumentID: input.DocumentID,
					Found:      false,
				}, nil
			}
			return nil, DocumentStatusOutput{}, fmt.Errorf("load document: %w", err)
		}

		chapterRows, err := chapters.ListByDocument(ctx, documentID)
		if err != nil {
			return nil, DocumentStatusOutput{}, fmt.Errorf("load chapters: %w", err)
		}
		summaries := make([]ChapterSummary, len(chapterRows))
		for i, ch := range chapterRows {
			summaries[i] = ChapterSummary{Number: ch.Number, Title: ch.Title}
		}

		return nil, DocumentStatusOutput{
			DocumentID: doc.ID.String(),
			Title:      doc.Title,
			Status:     string(doc.ProcessingStatus),
			Error:      doc.ProcessingError,
			PageCount:  doc.PageCount,
			Chapters:   summaries,
			Found:      true,
		}, nil
	}
}
