package layout

import (
	"context"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazaarly/bazaarly-backend/pkg/db/models"
)

// Repository manages persistence for stall layouts.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	ReplaceForEvent(ctx context.Context, eventID uuid.UUID, stalls []models.Stall) error
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Stall, error)
	Find(ctx context.Context, id uuid.UUID) (*models.Stall, error)
	CountByEvent(ctx context.Context, eventID uuid.UUID) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a layout repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// ReplaceForEvent swaps the full stall set for a draft event. Layout edits are
// whole-canvas saves, so partial updates are not supported.
func (r *repository) ReplaceForEvent(ctx context.Context, eventID uuid.UUID, stalls []models.Stall) error {
	db := r.db.WithContext(ctx)
	if err := db.Where("event_id = ?", eventID).Delete(&models.Stall{}).Error; err != nil {
		return err
	}
	if len(stalls) == 0 {
		return nil
	}
	return db.Create(&stalls).Error
}

func (r *repository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.Stall, error) {
	var rows []models.Stall
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Order("stall_number ASC").
		Find(&rows).Error
	return rows, err
}

func (r *repository) Find(ctx context.Context, id uuid.UUID) (*models.Stall, error) {
	var stall models.Stall
	if err := r.db.WithContext(ctx).First(&stall, "id = ?", id).Error; err != nil {
		return nil, err
	}
	return &stall, nil
}

func (r *repository) CountByEvent(ctx context.Context, eventID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.Stall{}).
		Where("event_id = ?", eventID).
		Count(&count).Error
	return count, err
}
