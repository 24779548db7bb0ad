// Package main provides the docpipe CLI for managing document processing.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"
	"github.com/joho/godotenv"
	"github.com/spf13/cobra"
	"gorm.io/gorm"

	"github.com/studypdf/docpipe/internal/config"
	"github.com/studypdf/docpipe/internal/convert"
	"github.com/studypdf/docpipe/internal/embedding"
	"github.com/studypdf/docpipe/internal/exercises"
	"github.com/studypdf/docpipe/internal/llm"
	"github.com/studypdf/docpipe/internal/logger"
	"github.com/studypdf/docpipe/internal/pipeline"
	"github.com/studypdf/docpipe/internal/retrieval"
	"github.com/studypdf/docpipe/internal/store"
	"github.com/studypdf/docpipe/internal/text"
	"github.com/studypdf/docpipe/internal/vector"
)

var rootCmd = &cobra.Command{
	Use:   "docpipe",
	Short: "Document processing pipeline tool",
	Long:  "CLI for migrating the schema, processing documents, and searching indexed content",
}

var migrateCmd = &cobra.Command{
	Use:   "migrate",
	Short: "Create or update the database schema",
	RunE:  runMigrate,
}

var processCmd = &cobra.Command{
	Use:   "process <document-id>",
	Short: "Run a document through the full pipeline synchronously",
	Args:  cobra.ExactArgs(1),
	RunE:  runProcess,
}

var reembedCmd = &cobra.Command{
	Use:   "reembed <document-id>",
	Short: "Backfill embeddings for a document processed without a provider",
	Args:  cobra.ExactArgs(1),
	RunE:  runReembed,
}

var statusCmd = &cobra.Command{
	Use:   "status <document-id>",
	Short: "Show a document's processing status and chapters",
	Args:  cobra.ExactArgs(1),
	RunE:  runStatus,
}

var searchCmd = &cobra.Command{
	Use:   "search <document-id> <query...>",
	Short: "Search a document's indexed content",
	Args:  cobra.MinimumNArgs(2),
	RunE:  runSearch,
}

func init() {
	rootCmd.AddCommand(migrateCmd, processCmd, reembedCmd, statusCmd, searchCmd)
}

func main() {
	_ = godotenv.Load()

	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}

func openDatabase(cfg *config.Config) (*gorm.DB, error) {
	if cfg.DatabaseDriver == "sqlite" {
		return store.NewSQLite(cfg.DatabaseDSN)
	}
	return store.NewPostgres(cfg.DatabaseDSN)
}

func runMigrate(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	// Opening runs the migration.
	if _, err := openDatabase(cfg); err != nil {
		return err
	}
	fmt.Println("Schema migrated")
	return nil
}

func runProcess(cmd *cobra.Command, args []string) error {
	documentID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid document id: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	log, err := logger.New(cfg.Mode)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}

	converter := convert.NewClient(cfg.ConverterURL, 0)

	var index pipeline.Indexer
	var provider embedding.Provider
	if idx, err := vector.NewIndex(cfg.QdrantHost, cfg.QdrantPort); err != nil {
		log.Warn("qdrant unavailable, processing without similarity index", "error", err)
	} else {
		defer idx.Close()
		if err := idx.EnsureCollection(ctx); err != nil {
			return err
		}
		index = idx
	}

	var batcher pipeline.Embedder
	var generator llm.Generator
	var contexts exercises.ContextProvider
	if cfg.OpenAIKey != "" {
		embedClient, err := embedding.NewClient(cfg.OpenAIKey)
		if err != nil {
			return err
		}
		provider = embedClient
		batcher = embedding.NewBatcher(embedClient, 0, 0)
		generator = llm.NewClientFrom(embedClient.OpenAI())
		if idx, ok := index.(*vector.Index); ok {
			contexts = retrieval.NewSearcher(idx, provider)
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

	orch := pipeline.NewOrchestrator(pipeline.Deps{
		Documents:    store.NewDocumentRepo(db),
		Chapters:     store.NewChapterRepo(db),
		Chunks:       store.NewChunkRepo(db),
		Exercises:    store.NewExerciseRepo(db),
		Solutions:    store.NewSolutionRepo(db),
		Converter:    converter,
		Chunker:      chunker,
		Embedder:     batcher,
		Index:        index,
		Extractor:    exercises.NewExtractor(generator, log),
		Solver:       exercises.NewSolver(generator, contexts, log),
		StageTimeout: cfg.StageTimeout,
		Log:          log,
	})

	if err := orch.Process(ctx, documentID); err != nil {
		return err
	}
	fmt.Println("Document processed")
	return nil
}

func runReembed(cmd *cobra.Command, args []string) error {
	documentID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid document id: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.OpenAIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY must be set to re-embed")
	}
	log, err := logger.New(cfg.Mode)
	if err != nil {
		return err
	}
	defer log.Sync()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer cancel()

	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	embedClient, err := embedding.NewClient(cfg.OpenAIKey)
	if err != nil {
		return err
	}

	var index pipeline.Indexer
	if idx, err := vector.NewIndex(cfg.QdrantHost, cfg.QdrantPort); err != nil {
		log.Warn("qdrant unavailable, re-embedding without similarity index", "error", err)
	} else {
		defer idx.Close()
		if err := idx.EnsureCollection(ctx); err != nil {
			return err
		}
		index = idx
	}

	orch := pipeline.NewOrchestrator(pipeline.Deps{
		Chunks:   store.NewChunkRepo(db),
		Embedder: embedding.NewBatcher(embedClient, 0, 0),
		Index:    index,
		Log:      log,
	})
	if err := orch.Reembed(ctx, documentID); err != nil {
		return err
	}
	fmt.Println("Document re-embedded")
	return nil
}

func runStatus(cmd *cobra.Command, args []string) error {
	documentID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid document id: %w", err)
	}
	cfg, err := config.Load()
	if err != nil {
		return err
	}
	db, err := openDatabase(cfg)
	if err != nil {
		return err
	}
	ctx := context.Background()

	doc, err := store.NewDocumentRepo(db).GetByID(ctx, documentID)
	if err != nil {
		return err
	}
	chapters, err := store.NewChapterRepo(db).ListByDocument(ctx, documentID)
	if err != nil {
		return err
	}

	fmt.Printf("Document: %s\n", doc.Title)
	fmt.Printf("Status:   %s\n", doc.ProcessingStatus)
	if doc.ProcessingError != "" {
		fmt.Printf("Error:    %s\n", doc.ProcessingError)
	}
	if doc.PageCount > 0 {
		fmt.Printf("Pages:    %d\n", doc.PageCount)
	}
	for _, ch := range chapters {
		fmt.Printf("  Chapter %d: %s\n", ch.Number, ch.Title)
	}
	return nil
}

func runSearch(cmd *cobra.Command, args []string) error {
	documentID, err := uuid.Parse(args[0])
	if err != nil {
		return fmt.Errorf("invalid document id: %w", err)
	}
	query := strings.Join(args[1:], " ")

	cfg, err := config.Load()
	if err != nil {
		return err
	}
	if cfg.OpenAIKey == "" {
		return fmt.Errorf("OPENAI_API_KEY must be set for search")
	}
	ctx := context.Background()

	idx, err := vector.NewIndex(cfg.QdrantHost, cfg.QdrantPort)
	if err != nil {
		return err
	}
	defer idx.Close()

	embedClient, err := embedding.NewClient(cfg.OpenAIKey)
	if err != nil {
		return err
	}

	hits, err := retrieval.NewSearcher(idx, embedClient).Search(ctx, retrieval.Request{
		Query:      query,
		DocumentID: documentID,
		Limit:      10,
	})
	if err != nil {
		return err
	}
	if len(hits) == 0 {
		fmt.Println("No matching content")
		return nil
	}
	for i, hit := range hits {
		fmt.Printf("%d. score=%.3f", i+1, hit.Score)
		if hit.PageNumber > 0 {
			fmt.Printf(" page=%d", hit.PageNumber)
		}
		if hit.SectionTitle != "" {
			fmt.Printf(" section=%q", hit.SectionTitle)
		}
		fmt.Printf("\n   %s\n\n", snippet(hit.Content))
	}
	return nil
}

// snippet trims search output to a single readable line.
func snippet(s string) string {
	s = strings.Join(strings.Fields(s), " ")
	if len(s) > 200 {
		return s[:200] + "..."
	}
	return s
}
