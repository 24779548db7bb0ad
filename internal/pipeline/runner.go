package pipeline

import (
	"context"
	"sync"

	"github.com/google/uuid"

	"github.com/studypdf/docpipe/internal/logger"
)

// Processor drives one document to a terminal status.
type Processor interface {
	Process(ctx context.Context, documentID uuid.UUID) error
}

// Event asks the runner to process one document.
type Event struct {
	DocumentID uuid.UUID
}

// Runner fans processing events out to a fixed pool of workers over a
// bounded queue.
type Runner struct {
	proc  Processor
	queue chan Event
	log   *logger.Logger
	wg    sync.WaitGroup
}

// NewRunner creates a runner with the given worker count and queue size.
func NewRunner(proc Processor, queueSize int, log *logger.Logger) *Runner {
	if queueSize <= 0 {
		queueSize = 256
	}
	if log == nil {
		log = logger.NewNop()
	}
	return &Runner{
		proc:  proc,
		queue: make(chan Event, queueSize),
		log:   log,
	}
}

// Start launches workers that drain the queue until ctx is cancelled.
func (r *Runner) Start(ctx context.Context, workers int) {
	if workers <= 0 {
		workers = 4
	}
	for i := 0; i < workers; i++ {
		r.wg.Add(1)
		go func() {
			defer r.wg.Done()
			r.work(ctx)
		}()
	}
}

func (r *Runner) work(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case ev := <-r.queue:
			if err := r.proc.Process(ctx, ev.DocumentID); err != nil {
				r.log.Error("document processing failed",
					"document", ev.DocumentID, "error", err)
			}
		}
	}
}

// Enqueue hands a document to the worker pool. When the queue is full the
// document is processed inline on the caller's goroutine instead of being
// dropped.
func (r *Runner) Enqueue(ctx context.Context, ev Event) error {
	select {
	case r.queue <- ev:
		return nil
	default:
		r.log.Warn("processing queue full, running inline", "document", ev.DocumentID)
		return r.proc.Process(ctx, ev.DocumentID)
	}
}

// Wait blocks until all workers have exited. Call after cancelling the
// Start context.
func (r *Runner) Wait() {
	r.wg.Wait()
}

// Pending reports how many events are queued but not yet picked up.
func (r *Runner) Pending() int {
	return len(r.queue)
}
