package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// SolutionRepo persists worked solutions, one per exercise.
type SolutionRepo interface {
	// Upsert replaces any existing solution for the exercise. The most
	// recent generation wins.
	Upsert(ctx context.Context, sol *Solution) error
	GetByExercise(ctx context.Context, exerciseID uuid.UUID) (*Solution, error)
	ListByDocument(ctx context.Context, documentID uuid.UUID) ([]*Solution, error)
}

type solutionRepo struct {
	db *gorm.DB
}

// NewSolutionRepo creates a gorm-backed SolutionRepo.
func NewSolutionRepo(db *gorm.DB) SolutionRepo {
	return &solutionRepo{db: db}
}

func (r *solutionRepo) Upsert(ctx context.Context, sol *Solution) error {
	err := r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("exercise_id = ?", sol.ExerciseID).Delete(&Solution{}).Error; err != nil {
			return err
		}
		return tx.Create(sol).Error
	})
	if err != nil {
		return fmt.Errorf("upsert solution for exercise %s: %w", sol.ExerciseID, err)
	}
	return nil
}

func (r *solutionRepo) GetByExercise(ctx context.Context, exerciseID uuid.UUID) (*Solution, error) {
	var sol Solution
	if err := r.db.WithContext(ctx).First(&sol, "exercise_id = ?", exerciseID).Error; err != nil {
		return nil, fmt.Errorf("get solution for exercise %s: %w", exerciseID, wrapNotFound(err))
	}
	return &sol, nil
}

func (r *solutionRepo) ListByDocument(ctx context.Context, documentID uuid.UUID) ([]*Solution, error) {
	var sols []*Solution
	err := r.db.WithContext(ctx).
		Joins("JOIN exercises ON exercises.id = solutions.exercise_id").
		Where("exercises.document_id = ?", documentID).
		Find(&sols).Error
	if err != nil {
		return nil, fmt.Errorf("list solutions for document %s: %w", documentID, err)
	}
	return sols, nil
}
