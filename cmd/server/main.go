// Package main runs the document-processing API server.
package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
	"gorm.io/gorm"

	"github.com/studypdf/docpipe/internal/config"
	"github.com/studypdf/docpipe/internal/convert"
	"github.com/studypdf/docpipe/internal/embedding"
	"github.com/studypdf/docpipe/internal/exercises"
	"github.com/studypdf/docpipe/internal/llm"
	"github.com/studypdf/docpipe/internal/logger"
	mcpserver "github.com/studypdf/docpipe/internal/mcp"
	"github.com/studypdf/docpipe/internal/pipeline"
	"github.com/studypdf/docpipe/internal/retrieval"
	"github.com/studypdf/docpipe/internal/server"
	"github.com/studypdf/docpipe/internal/store"
	"github.com/studypdf/docpipe/internal/text"
	"github.com/studypdf/docpipe/internal/vector"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		panic(err)
	}
	log, err := logger.New(cfg.Mode)
	if err != nil {
		panic(err)
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	if err := run(ctx, cfg, log); err != nil {
		log.Fatal("server exited", "error", err)
	}
}

func run(ctx context.Context, cfg *config.Config, log *logger.Logger) error {
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	docs := store.NewDocumentRepo(db)
	chapters := store.NewChapterRepo(db)
	chunks := store.NewChunkRepo(db)
	exerciseRepo := store.NewExerciseRepo(db)
	solutions := store.NewSolutionRepo(db)

	converter := convert.NewClient(cfg.ConverterURL, 0)

	// The index and generation stack are optional; without them documents
	// still process with unembedded chunks and placeholder exercises.
	var index *vector.Index
	if idx, err := vector.NewIndex(cfg.QdrantHost, cfg.QdrantPort); err != nil {
		log.Warn("qdrant unavailable, running without similarity index", "error", err)
	} else if err := idx.EnsureCollection(ctx); err != nil {
		log.Warn("could not ensure qdrant collection, running without similarity index", "error", err)
		idx.Close()
	} else {
		index = idx
		defer index.Close()
	}

	var batcher *embedding.Batcher
	var generator llm.Generator
	var searcher *retrieval.Searcher
	if cfg.OpenAIKey != "" {
		embedClient, err := embedding.NewClient(cfg.OpenAIKey)
		if err != nil {
			return err
		}
		batcher = embedding.NewBatcher(embedClient, 0, 0)
		generator = llm.NewClientFrom(embedClient.OpenAI())
		if index != nil {
			searcher = retrieval.NewSearcher(index, embedClient)
		}
	} else {
		log.Warn("OPENAI_API_KEY not set, embeddings and generation disabled")
	}

	chunker, err := text.NewChunker(text.Options{
		MaxChunkSize:           cfg.MaxChunkSize,
		MinChunkSize:           cfg.MinChunkSize,
		OverlapSize:            cfg.OverlapSize,
		PreservePageBoundaries: true,
	})
	if err != nil {
		return err
	}

	var contexts exercises.ContextProvider
	if searcher != nil {
		contexts = searcher
	}
	orch := pipeline.NewOrchestrator(pipeline.Deps{
		Documents:    docs,
		Chapters:     chapters,
		Chunks:       chunks,
		Exercises:    exerciseRepo,
		Solutions:    solutions,
		Converter:    converter,
		Chunker:      chunker,
		Embedder:     embedder(batcher),
		Index:        indexer(index),
		Extractor:    exercises.NewExtractor(generator, log),
		Solver:       exercises.NewSolver(generator, contexts, log),
		StageTimeout: cfg.StageTimeout,
		Log:          log,
	})

	runner := pipeline.NewRunner(orch, cfg.QueueSize, log)
	runner.Start(ctx, cfg.Workers)

	checks := map[string]server.HealthCheck{
		"database": func(ctx context.Context) error {
			sqlDB, err := db.DB()
			if err != nil {
				return err
			}
			return sqlDB.PingContext(ctx)
		},
		"converter": converter.Health,
	}
	if index != nil {
		checks["qdrant"] = index.Health
	}

	var srvSearcher server.Searcher
	if searcher != nil {
		srvSearcher = searcher
	}
	api := server.New(server.Deps{
		Documents: docs,
		Chapters:  chapters,
		Runner:    runner,
		Searcher:  srvSearcher,
		Checks:    checks,
		Log:       log,
	}, cfg.Mode)

	router := api.Router()

	var mcpSearcher mcpserver.Searcher
	if searcher != nil {
		mcpSearcher = searcher
	}
	mcp := mcpserver.NewServer(&mcpserver.Config{
		Searcher:  mcpSearcher,
		Documents: docs,
		Chapters:  chapters,
	})
	router.Any("/mcp", gin.WrapH(mcp.HTTPHandler()))

	httpServer := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info("server listening", "port", cfg.Port)
		if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
	}

	log.Info("shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := httpServer.Shutdown(shutdownCtx); err != nil {
		log.Error("http shutdown failed", "error", err)
	}
	runner.Wait()
	return nil
}

func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	if cfg.DatabaseDriver == "sqlite" {
		return store.NewSQLite(cfg.DatabaseDSN)
	}
	return store.NewPostgres(cfg.DatabaseDSN)
}

// embedder converts a possibly-nil batcher into the orchestrator's optional
// dependency without tripping over typed-nil interfaces.
func embedder(b *embedding.Batcher) pipeline.Embedder {
	if b == nil {
		return nil
	}
	return b
}

func indexer(idx *vector.Index) pipeline.Indexer {
	if idx == nil {
		return nil
	}
	return idx
}
