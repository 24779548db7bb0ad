package store

import (
	"context"
	"fmt"

	"github.com/google/uuid"
	"gorm.io/gorm"
)

// DocumentRepo persists documents and their processing state.
type DocumentRepo interface {
	Create(ctx context.Context, doc *Document) error
	GetByID(ctx context.Context, id uuid.UUID) (*Document, error)
	ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*Document, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status ProcessingStatus) error
	MarkFailed(ctx context.Context, id uuid.UUID, reason string) error
	SetExtraction(ctx context.Context, id uuid.UUID, markdown string, pageCount int) error
	Delete(ctx context.Context, id uuid.UUID) error
}

type documentRepo struct {
	db *gorm.DB
}

// NewDocumentRepo creates a gorm-backed DocumentRepo.
func NewDocumentRepo(db *gorm.DB) DocumentRepo {
	return &documentRepo{db: db}
}

func (r *documentRepo) Create(ctx context.Context, doc *Document) error {
	if doc.ProcessingStatus == "" {
		doc.ProcessingStatus = StatusPending
	}
	if !doc.ProcessingStatus.Valid() {
		return fmt.Errorf("invalid processing status %q", doc.ProcessingStatus)
	}
	if err := r.db.WithContext(ctx).Create(doc).Error; err != nil {
		return fmt.Errorf("create document: %w", err)
	}
	return nil
}

func (r *documentRepo) GetByID(ctx context.Context, id uuid.UUID) (*Document, error) {
	var doc Document
	if err := r.db.WithContext(ctx).First(&doc, "id = ?", id).Error; err != nil {
		return nil, fmt.Errorf("get document %s: %w", id, wrapNotFound(err))
	}
	return &doc, nil
}

func (r *documentRepo) ListByOwner(ctx context.Context, ownerID uuid.UUID) ([]*Document, error) {
	var docs []*Document
	err := r.db.WithContext(ctx).
		Where("owner_id = ?", ownerID).
		Order("created_at DESC").
		Find(&docs).Error
	if err != nil {
		return nil, fmt.Errorf("list documents for owner %s: %w", ownerID, err)
	}
	return docs, nil
}

func (r *documentRepo) UpdateStatus(ctx context.Context, id uuid.UUID, status ProcessingStatus) error {
	if !status.Valid() {
		return fmt.Errorf("invalid processing status %q", status)
	}
	updates := map[string]any{"processing_status": status}
	if status != StatusFailed {
		updates["processing_error"] = ""
	}
	res := r.db.WithContext(ctx).Model(&Document{}).Where("id = ?", id).Updates(updates)
	if res.Error != nil {
		return fmt.Errorf("update document %s status: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("update document %s status: %w", id, ErrNotFound)
	}
	return nil
}

func (r *documentRepo) MarkFailed(ctx context.Context, id uuid.UUID, reason string) error {
	res := r.db.WithContext(ctx).Model(&Document{}).Where("id = ?", id).Updates(map[string]any{
		"processing_status": StatusFailed,
		"processing_error":  reason,
	})
	if res.Error != nil {
		return fmt.Errorf("mark document %s failed: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("mark document %s failed: %w", id, ErrNotFound)
	}
	return nil
}

func (r *documentRepo) SetExtraction(ctx context.Context, id uuid.UUID, markdown string, pageCount int) error {
	res := r.db.WithContext(ctx).Model(&Document{}).Where("id = ?", id).Updates(map[string]any{
		"extracted_markdown": markdown,
		"page_count":         pageCount,
	})
	if res.Error != nil {
		return fmt.Errorf("set document %s extraction: %w", id, res.Error)
	}
	if res.RowsAffected == 0 {
		return fmt.Errorf("set document %s extraction: %w", id, ErrNotFound)
	}
	return nil
}

func (r *documentRepo) Delete(ctx context.Context, id uuid.UUID) error {
	if err := r.db.WithContext(ctx).Delete(&Document{}, "id = ?", id).Error; err != nil {
		return fmt.Errorf("delete document %s: %w", id, err)
	}
	return nil
}
