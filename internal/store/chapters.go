package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ChapterRepo persists the chapter outline of a document.
type ChapterRepo interface {
	// Replace swaps the document's chapters for the given set atomically,
	// so replaying the structuring stage never duplicates rows.
	Replace(ctx context.Context, documentID uuid.UUID, chapters []*Chapter) error
	GetByID(ctx context.Context, id uuid.UUID) (*Chapter, error)
	ListByDocument(ctx context.Context, documentID uuid.UUID) ([]*Chapter, error)
}

type chapterRepo struct {
	db *gorm.DB
}

// NewChapterRepo creates a gorm-backed ChapterRepo.
func NewChapterRepo(db *gorm.DB) ChapterRepo {
	return &chapterRepo{db: db}
}

func (r *chapterRepo) Replace(ctx context.Context, documentID uuid.UUID, chapters []*Chapter) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("document_id = ?", documentID).Delete(&Chapter{}).Error; err != nil {
			return err
		}
		for _, ch := range chapters {
			ch.DocumentID = documentID
		}
		if len(chapters) == 0 {
			return nil
		}
		return tx.Create(chapters).Error
	})
	if err != nil {
		return fmt.Errorf("replace chapters for document %s: %w", documentID, err)
	}
	return nil
}

func (r *chapterRepo) GetByID(ctx context.Context, id uuid.UUID) (*Chapter, error) {
	var ch Chapter
	if err := r.db.WithContext(ctx).First(&ch, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("get chapter %s: %w", id, wrapNotFound(err))
	}
	return &ch, nil
}

func (r *chapterRepo) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]*Chapter, error) {
	var chapters []*Chapter
	err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("number ASC").
		Find(&chapters).Error
	if err != nil {
		return nil, fmt.Errorf("list chapters for document %s: %w", documentID, err)
	}
	return chapters, nil
}
