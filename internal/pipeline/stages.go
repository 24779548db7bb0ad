package pipeline

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/studypdf/docpipe/internal/convert"
	"github.com/studypdf/docpipe/internal/markdown"
	"github.com/studypdf/docpipe/internal/store"
	"github.com/studypdf/docpipe/internal/text"
	"github.com/studypdf/docpipe/internal/vector"
)

// stageExtract calls the conversion service and persists the markdown. An
// unreachable service degrades to placeholder content; an error status is
// retried and eventually fails the document.
func (o *Orchestrator) stageExtract(ctx context.Context, doc *store.Document) error {
	result, err := o.deps.Converter.Extract(ctx, doc.StorageURL)
	if errors.Is(err, convert.ErrUnavailable) {
		o.log.Warn("conversion service unreachable, using placeholder content",
			"document", doc.ID, "error", err)
		result = convert.Placeholder(doc.Title)
	} else if err != nil {
		return fmt.Errorf("extract document: %w", err)
	}

	if err := o.deps.Documents.SetExtraction(ctx, doc.ID, result.Markdown, result.PageCount); err != nil {
		return backoff.Permanent(err)
	}
	doc.ExtractedMarkdown = result.Markdown
	doc.PageCount = result.PageCount
	return nil
}

// stageStructure derives the chapter outline from the extracted markdown.
// The chapter-heading ladder is tried first, then H1 headings, and a
// document with no usable structure gets a single default chapter.
func (o *Orchestrator) stageStructure(ctx context.Context, doc *store.Document) error {
	md := doc.ExtractedMarkdown
	if md == "" {
		fresh, err := o.deps.Documents.GetByID(ctx, doc.ID)
		if err != nil {
			return backoff.Permanent(err)
		}
		md = fresh.ExtractedMarkdown
		doc.ExtractedMarkdown = md
	}

	chapters := chaptersFrom(md)
	rows := make([]*store.Chapter, len(chapters))
	for i, ch := range chapters {
		rows[i] = &store.Chapter{
			DocumentID: doc.ID,
			Number:     ch.Number,
			Title:      ch.Title,
		}
	}
	if err := o.deps.Chapters.Replace(ctx, doc.ID, rows); err != nil {
		return backoff.Permanent(err)
	}
	return nil
}

// chaptersFrom resolves the chapter list for a document's markdown.
func chaptersFrom(md string) []text.ChapterHeading {
	if chapters := text.DetectChapters(md); len(chapters) > 0 {
		return chapters
	}

	// No explicit chapter markers; fall back to top-level headings.
	headings, err := markdown.NewOutliner().Outline([]byte(md))
	if err == nil {
		var chapters []text.ChapterHeading
		for _, h := range headings {
			if h.Depth == 1 {
				chapters = append(chapters, text.ChapterHeading{
					Number: len(chapters) + 1,
					Title:  h.Title,
				})
			}
		}
		if len(chapters) > 0 {
			return chapters
		}
	}

	return []text.ChapterHeading{{Number: 1, Title: "Main Content"}}
}

// stageEmbed chunks the markdown, embeds the chunks when a provider is
// configured, persists them, and mirrors embedded chunks into the
// similarity index.
func (o *Orchestrator) stageEmbed(ctx context.Context, doc *store.Document) error {
	chapters, err := o.deps.Chapters.ListByDocument(ctx, doc.ID)
	if err != nil {
		return backoff.Permanent(err)
	}
	if len(chapters) == 0 {
		return backoff.Permanent(fmt.Errorf("document has no chapters"))
	}

	chunks := o.deps.Chunker.Chunk(doc.ExtractedMarkdown)

	rows := make([]*store.ContentChunk, len(chunks))
	texts := make([]string, len(chunks))
	for i, c := range chunks {
		chapter := assignChapter(c, chapters)
		rows[i] = &store.ContentChunk{
			DocumentID:   doc.ID,
			ChapterID:    chapter.ID,
			ChunkIndex:   c.Index,
			Content:      c.Content,
			StartOffset:  c.Start,
			EndOffset:    c.End,
			PageNumber:   c.PageNumber,
			SectionTitle: c.SectionTitle,
		}
		texts[i] = c.Content
	}

	embedded := false
	if o.deps.Embedder != nil && len(rows) > 0 {
		results, err := o.deps.Embedder.EmbedMany(ctx, texts)
		if err != nil {
			return fmt.Errorf("embed chunks: %w", err)
		}
		for _, res := range results {
			if err := rows[res.OriginalIndex].SetEmbedding(res.Embedding); err != nil {
				return backoff.Permanent(err)
			}
		}
		embedded = true
	}

	if err := o.deps.Chunks.Replace(ctx, doc.ID, rows); err != nil {
		return backoff.Permanent(err)
	}

	if o.deps.Index != nil && embedded {
		if err := o.deps.Index.DeleteDocument(ctx, doc.ID); err != nil {
			return fmt.Errorf("clear index: %w", err)
		}
		points, err := indexPoints(rows)
		if err != nil {
			return backoff.Permanent(err)
		}
		if err := o.deps.Index.UpsertChunks(ctx, points); err != nil {
			return fmt.Errorf("index chunks: %w", err)
		}
	}
	return nil
}

// indexPoints converts stored chunks into similarity-index points.
func indexPoints(rows []*store.ContentChunk) ([]vector.Point, error) {
	points := make([]vector.Point, len(rows))
	for i, row := range rows {
		emb, err := row.DecodeEmbedding()
		if err != nil {
			return nil, err
		}
		points[i] = vector.Point{
			ID:           row.ID,
			DocumentID:   row.DocumentID,
			ChapterID:    row.ChapterID,
			ChunkIndex:   row.ChunkIndex,
			PageNumber:   row.PageNumber,
			SectionTitle: row.SectionTitle,
			Content:      row.Content,
			Embedding:    emb,
		}
	}
	return points, nil
}

// Reembed backfills embeddings for a document's stored chunks that have none,
// then mirrors them into the similarity index. Used for documents processed
// while the embedding provider was absent; chunks already embedded are left
// untouched.
func (o *Orchestrator) Reembed(ctx context.Context, documentID uuid.UUID) error {
	if o.deps.Embedder == nil {
		return fmt.Errorf("no embedding provider configured")
	}

	chunks, err := o.deps.Chunks.ListByDocument(ctx, documentID)
	if err != nil {
		return err
	}
	var missing []*store.ContentChunk
	for _, c := range chunks {
		if len(c.Embedding) == 0 {
			missing = append(missing, c)
		}
	}
	if len(missing) == 0 {
		o.log.Debug("no chunks to re-embed", "document", documentID)
		return nil
	}

	texts := make([]string, len(missing))
	for i, c := range missing {
		texts[i] = c.Content
	}
	results, err := o.deps.Embedder.EmbedMany(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed chunks: %w", err)
	}
	for _, res := range results {
		if err := missing[res.OriginalIndex].SetEmbedding(res.Embedding); err != nil {
			return err
		}
	}
	if err := o.deps.Chunks.SaveEmbeddings(ctx, missing); err != nil {
		return err
	}

	if o.deps.Index != nil {
		points, err := indexPoints(missing)
		if err != nil {
			return err
		}
		if err := o.deps.Index.UpsertChunks(ctx, points); err != nil {
			return fmt.Errorf("index chunks: %w", err)
		}
	}
	o.log.Info("re-embedded chunks", "document", documentID, "count", len(missing))
	return nil
}

// assignChapter picks the owning chapter for a chunk: explicit chapter
// number first, then a title match, then the document's first chapter.
func assignChapter(chunk text.Chunk, chapters []*store.Chapter) *store.Chapter {
	if chunk.ChapterNumber != 0 {
		for _, ch := range chapters {
			if ch.Number == chunk.ChapterNumber {
				return ch
			}
		}
	}
	if chunk.SectionTitle != "" {
		for _, ch := range chapters {
			if strings.EqualFold(ch.Title, chunk.SectionTitle) {
				return ch
			}
		}
	}
	return chapters[0]
}

// stageExercises extracts exercises chapter by chapter. Extraction never
// fails outright; chapters fall back to placeholder exercises.
func (o *Orchestrator) stageExercises(ctx context.Context, doc *store.Document) error {
	chapters, err := o.deps.Chapters.ListByDocument(ctx, doc.ID)
	if err != nil {
		return backoff.Permanent(err)
	}

	for _, chapter := range chapters {
		chunks, err := o.deps.Chunks.ListByChapter(ctx, chapter.ID)
		if err != nil {
			return backoff.Permanent(err)
		}
		contents := make([]string, len(chunks))
		for i, c := range chunks {
			contents[i] = c.Content
		}

		exs := o.deps.Extractor.ExtractChapter(ctx, doc, chapter, strings.Join(contents, "\n\n"))
		if err := o.deps.Exercises.ReplaceForChapter(ctx, chapter.ID, exs); err != nil {
			return backoff.Permanent(err)
		}
	}
	return nil
}

// stageSolutions generates one solution per exercise. Individual generation
// failures become fallback solutions inside the solver; only persistence or
// cancellation fails the stage.
func (o *Orchestrator) stageSolutions(ctx context.Context, doc *store.Document) error {
	exs, err := o.deps.Exercises.ListByDocument(ctx, doc.ID)
	if err != nil {
		return backoff.Permanent(err)
	}

	solutions, err := o.deps.Solver.SolveAll(ctx, exs)
	if err != nil {
		return err
	}
	for _, sol := range solutions {
		if err := o.deps.Solutions.Upsert(ctx, sol); err != nil {
			return backoff.Permanent(err)
		}
	}
	return nil
}
