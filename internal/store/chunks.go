package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// chunkInsertBatch bounds the rows per INSERT when storing chunk sets.
const chunkInsertBatch = 100

// ChunkRepo persists content chunks.
type ChunkRepo interface {
	// Replace swaps the document's chunks for the given set atomically.
	Replace(ctx context.Context, documentID uuid.UUID, chunks []*ContentChunk) error
	GetByID(ctx context.Context, id uuid.UUID) (*ContentChunk, error)
	ListByDocument(ctx context.Context, documentID uuid.UUID) ([]*ContentChunk, error)
	ListByChapter(ctx context.Context, chapterID uuid.UUID) ([]*ContentChunk, error)
	SaveEmbeddings(ctx context.Context, chunks []*ContentChunk) error
}

type chunkRepo struct {
	db *gorm.DB
}

// NewChunkRepo creates a gorm-backed ChunkRepo.
func NewChunkRepo(db *gorm.DB) ChunkRepo {
	return &chunkRepo{db: db}
}

func (r *chunkRepo) Replace(ctx context.Context, documentID uuid.UUID, chunks []*ContentChunk) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", documentID).Delete(&ContentChunk{}).Error; err != nil {
			return err
		}
		for _, c := range chunks {
			c.DocumentID = documentID
		}
		if len(chunks) == 0 {
			return nil
		}
		return tx.CreateInBatches(chunks, chunkInsertBatch).Error
	})
	if err != nil {
		return fmt.Errorf("replace chunks for document %s: %w", documentID, err)
	}
	return nil
}

func (r *chunkRepo) GetByID(ctx context.Context, id uuid.UUID) (*ContentChunk, error) {
	var chunk ContentChunk
	if err := r.db.WithContext(ctx).First(&chunk, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("get chunk %s: %w", id, wrapNotFound(err))
	}
	return &chunk, nil
}

func (r *chunkRepo) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]*ContentChunk, error) {
	var chunks []*ContentChunk
	err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("chunk_index ASC").
		Find(&chunks).Error
	if err != nil {
		return nil, fmt.Errorf("list chunks for document %s: %w", documentID, err)
	}
	return chunks, nil
}

func (r *chunkRepo) ListByChapter(ctx context.Context, chapterID uuid.UUID) ([]*ContentChunk, error) {
	var chunks []*ContentChunk
	err := r.db.WithContext(ctx).
		Where("chapter_id = ?", chapterID).
		Order("chunk_index ASC").
		Find(&chunks).Error
	if err != nil {
		return nil, fmt.Errorf("list chunks for chapter %s: %w", chapterID, err)
	}
	return chunks, nil
}

func (r *chunkRepo) SaveEmbeddings(ctx context.Context, chunks []*ContentChunk) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, c := range chunks {
			res := tx.Model(&ContentChunk{}).
				Where("id = ?", c.ID).
				Update("embedding", c.Embedding)
			if res.Error != nil {
				return res.Error
			}
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("save embeddings: %w", err)
	}
	return nil
}
