// Package pipeline drives documents through the processing state machine:
// extraction, structuring, embedding, exercise extraction, and solution
// generation, with per-stage retry and persisted status.
package pipeline

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"

	"github.com/studypdf/docpipe/internal/convert"
	"github.com/studypdf/docpipe/internal/embedding"
	"github.com/studypdf/docpipe/internal/exercises"
	"github.com/studypdf/docpipe/internal/logger"
	"github.com/studypdf/docpipe/internal/store"
	"github.com/studypdf/docpipe/internal/text"
	"github.com/studypdf/docpipe/internal/vector"
)

// stageAttempts bounds how often a failing stage is retried before the
// document is marked failed.
const stageAttempts = 3

// Converter is the document-conversion boundary.
type Converter interface {
	Extract(ctx context.Context, documentURL string) (*convert.Result, error)
}

// Embedder is the batched embedding boundary. Nil means no embedding
// provider is configured; chunks are then stored unembedded.
type Embedder interface {
	EmbedMany(ctx context.Context, texts []string) ([]embedding.Result, error)
}

// Indexer is the similarity-index boundary. Nil skips indexing.
type Indexer interface {
	UpsertChunks(ctx context.Context, points []vector.Point) error
	DeleteDocument(ctx context.Context, documentID uuid.UUID) error
}

// Deps collects everything an orchestrator needs.
type Deps struct {
	Documents store.DocumentRepo
	Chapters  store.ChapterRepo
	Chunks    store.ChunkRepo
	Exercises store.ExerciseRepo
	Solutions store.SolutionRepo

	Converter Converter
	Chunker   *text.Chunker
	Embedder  Embedder // optional
	Index     Indexer  // optional
	Extractor *exercises.Extractor
	Solver    *exercises.Solver

	// StageTimeout bounds one stage's wall time, retries included. Zero
	// disables the bound.
	StageTimeout time.Duration
	Log          *logger.Logger
}

// Orchestrator processes one document at a time through all stages.
type Orchestrator struct {
	deps Deps
	log  *logger.Logger

	// retryWait is the initial backoff between stage attempts. Tests shrink it.
	retryWait time.Duration
}

// NewOrchestrator wires an orchestrator from its dependencies.
func NewOrchestrator(deps Deps) *Orchestrator {
	log := deps.Log
	if log == nil {
		log = logger.NewNop()
	}
	return &Orchestrator{
		deps:      deps,
		log:       log,
		retryWait: 500 * time.Millisecond,
	}
}

// Process drives the document from its current status to a terminal one.
// Completed documents are a no-op; failed documents restart from extraction.
// Every status change is persisted before the stage's work begins, so a
// crash mid-stage resumes at the recorded stage.
func (o *Orchestrator) Process(ctx context.Context, documentID uuid.UUID) error {
	doc, err := o.deps.Documents.GetByID(ctx, documentID)
	if err != nil {
		return err
	}
	log := o.log.With("document", documentID)

	if doc.ProcessingStatus == store.StatusCompleted {
		log.Debug("document already completed")
		return nil
	}

	// Only PDFs go through conversion and structuring; anything else is
	// accepted as-is.
	if doc.FileKind != "pdf" {
		log.Info("skipping processing for non-pdf document", "file_kind", doc.FileKind)
		return o.deps.Documents.UpdateStatus(ctx, documentID, store.StatusCompleted)
	}

	current := doc.ProcessingStatus
	if current == store.StatusPending || current == store.StatusFailed {
		current = store.StatusExtracting
	}

	for {
		if err := o.deps.Documents.UpdateStatus(ctx, documentID, current); err != nil {
			return err
		}
		log.Info("stage started", "stage", current)

		if err := o.runStage(ctx, doc, current); err != nil {
			reason := fmt.Sprintf("stage %s: %v", current, err)
			log.Error("stage failed", "stage", current, "error", err)
			if markErr := o.deps.Documents.MarkFailed(ctx, documentID, reason); markErr != nil {
				log.Error("failed to record failure", "error", markErr)
			}
			return fmt.Errorf("stage %s: %w", current, err)
		}
		log.Info("stage finished", "stage", current)

		next, ok := Next(current)
		if !ok {
			return fmt.Errorf("status %q has no successor", current)
		}
		if next == store.StatusCompleted {
			log.Info("document processing completed")
			return o.deps.Documents.UpdateStatus(ctx, documentID, store.StatusCompleted)
		}
		current = next
	}
}

// runStage executes one stage under the stage timeout with bounded retry.
// Errors wrapped in backoff.Permanent skip the remaining attempts.
func (o *Orchestrator) runStage(ctx context.Context, doc *store.Document, status store.ProcessingStatus) error {
	stage, err := o.stage(status)
	if err != nil {
		return err
	}

	sctx := ctx
	if o.deps.StageTimeout > 0 {
		var cancel context.CancelFunc
		sctx, cancel = context.WithTimeout(ctx, o.deps.StageTimeout)
		defer cancel()
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = o.retryWait
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 0

	return backoff.Retry(func() error {
		return stage(sctx, doc)
	}, backoff.WithContext(backoff.WithMaxRetries(b, stageAttempts-1), sctx))
}

type stageFunc func(ctx context.Context, doc *store.Document) error

func (o *Orchestrator) stage(status store.ProcessingStatus) (stageFunc, error) {
	switch status {
	case store.StatusExtracting:
		return o.stageExtract, nil
	case store.StatusStructuring:
		return o.stageStructure, nil
	case store.StatusEmbedding:
		return o.stageEmbed, nil
	case store.StatusExtractingExercises:
		return o.stageExercises, nil
	case store.StatusGeneratingSolutions:
		return o.stageSolutions, nil
	}
	return nil, fmt.Errorf("no stage for status %q", status)
}
