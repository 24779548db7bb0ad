package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// ExerciseRepo persists exercises.
type ExerciseRepo interface {
	// ReplaceForChapter swaps the chapter's exercises for the given set
	// atomically. Cascades delete any solutions of the removed exercises.
	ReplaceForChapter(ctx context.Context, chapterID uuid.UUID, exercises []*Exercise) error
	GetByID(ctx context.Context, id uuid.UUID) (*Exercise, error)
	ListByDocument(ctx context.Context, documentID uuid.UUID) ([]*Exercise, error)
	ListByChapter(ctx context.Context, chapterID uuid.UUID) ([]*Exercise, error)
}

type exerciseRepo struct {
	db *gorm.DB
}

// NewExerciseRepo creates a gorm-backed ExerciseRepo.
func NewExerciseRepo(db *gorm.DB) ExerciseRepo {
	return &exerciseRepo{db: db}
}

func (r *exerciseRepo) ReplaceForChapter(ctx context.Context, chapterID uuid.UUID, exercises []*Exercise) error {
	for _, ex := range exercises {
		if !ex.Type.Valid() {
			return fmt.Errorf("invalid exercise type %q", ex.Type)
		}
	}
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var old []*Exercise
		if err := tx.Select("id").Where("chapter_id = ?", chapterID).Find(&old).Error; err != nil {
			return err
		}
		if len(old) > 0 {
			ids := make([]uuid.UUID, len(old))
			for i, ex := range old {
				ids[i] = ex.ID
			}
			if err := tx.Where("exercise_id IN ?", ids).Delete(&Solution{}).Error; err != nil {
				return err
			}
			if err := tx.Where("chapter_id = ?", chapterID).Delete(&Exercise{}).Error; err != nil {
				return err
			}
		}
		for _, ex := range exercises {
			ex.ChapterID = chapterID
		}
		if len(exercises) == 0 {
			return nil
		}
		return tx.Create(exercises).Error
	})
	if err != nil {
		return fmt.Errorf("replace exercises for chapter %s: %w", chapterID, err)
	}
	return nil
}

func (r *exerciseRepo) GetByID(ctx context.Context, id uuid.UUID) (*Exercise, error) {
	var ex Exercise
	if err := r.db.WithContext(ctx).First(&ex, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("get exercise %s: %w", id, wrapNotFound(err))
	}
	return &ex, nil
}

func (r *exerciseRepo) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]*Exercise, error) {
	var exercises []*Exercise
	err := r.db.WithContext(ctx).
		Where("document_id = ?", documentID).
		Order("created_at ASC").
		Find(&exercises).Error
	if err != nil {
		return nil, fmt.Errorf("list exercises for document %s: %w", documentID, err)
	}
	return exercises, nil
}

func (r *exerciseRepo) ListByChapter(ctx context.Context, chapterID uuid.UUID) ([]*Exercise, error) {
	var exercises []*Exercise
	err := r.db.WithContext(ctx).
		Where("chapter_id = ?", chapterID).
		Order("created_at ASC").
		Find(&exercises).Error
	if err != nil {
		return nil, fmt.Errorf("list exercises for chapter %s: %w", chapterID, err)
	}
	return exercises, nil
}
