package ledger

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazaarly/bazaarly-backend/pkg/db/models"
	"github.com/bazaarly/bazaarly-backend/pkg/enums"
)

// Transition is one compare-and-swap attempt against a reservation record.
// The update only applies when both FromState and ExpectedVersion still match
// the row; Version always increments on success.
type Transition struct {
	StallID         uuid.UUID
	FromState       enums.ReservationState
	ExpectedVersion int64
	ToState         enums.ReservationState
	HolderID        *uuid.UUID
	HeldAt          *time.Time
	ExpiresAt       *time.Time
	ConfirmedAt     *time.Time
}

// Repository manages persistence for reservation records.
type Repository interface {
	WithTx(tx *gorm.DB) Repository
	SeedForEvent(ctx context.Context, eventID uuid.UUID, stallIDs []uuid.UUID) error
	Find(ctx context.Context, stallID uuid.UUID) (*models.ReservationRecord, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.ReservationRecord, error)
	ListExpiredHolds(ctx context.Context, cutoff time.Time, limit int) ([]models.ReservationRecord, error)
	CountVendorHolds(ctx context.Context, eventID, vendorID uuid.UUID) (int64, error)
	LockVendorScope(ctx context.Context, eventID, vendorID uuid.UUID) error
	ListHeldBy(ctx context.Context, vendorID uuid.UUID) ([]models.ReservationRecord, error)
	ApplyTransition(ctx context.Context, t Transition) (int64, error)
}

type repository struct {
	db *gorm.DB
}

// NewRepository returns a ledger repository bound to the provided database.
func NewRepository(db *gorm.DB) Repository {
	return &repository{db: db}
}

func (r *repository) WithTx(tx *gorm.DB) Repository {
	if tx == nil {
		return r
	}
	return &repository{db: tx}
}

// SeedForEvent creates one available record per stall. Seeding happens exactly
// once, inside the publication transaction.
func (r *repository) SeedForEvent(ctx context.Context, eventID uuid.UUID, stallIDs []uuid.UUID) error {
	if len(stallIDs) == 0 {
		return nil
	}
	rows := make([]models.ReservationRecord, 0, len(stallIDs))
	for _, stallID := range stallIDs {
		rows = append(rows, models.ReservationRecord{
			StallID: stallID,
			EventID: eventID,
			State:   enums.ReservationStateAvailable,
		})
	}
	return r.db.WithContext(ctx).Create(&rows).Error
}

func (r *repository) Find(ctx context.Context, stallID uuid.UUID) (*models.ReservationRecord, error) {
	var record models.ReservationRecord
	if err := r.db.WithContext(ctx).First(&record, "stall_id = ?", stallID).Error; err != nil {
		return nil, err
	}
	return &record, nil
}

func (r *repository) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.ReservationRecord, error) {
	var rows []models.ReservationRecord
	err := r.db.WithContext(ctx).
		Where("event_id = ?", eventID).
		Find(&rows).Error
	return rows, err
}

func (r *repository) ListExpiredHolds(ctx context.Context, cutoff time.Time, limit int) ([]models.ReservationRecord, error) {
	if limit <= 0 {
		limit = 100
	}
	var rows []models.ReservationRecord
	err := r.db.WithContext(ctx).
		Where("state = ? AND expires_at IS NOT NULL AND expires_at <= ?", enums.ReservationStateHeld, cutoff).
		Order("expires_at ASC").
		Limit(limit).
		Find(&rows).Error
	return rows, err
}

func (r *repository) CountVendorHolds(ctx context.Context, eventID, vendorID uuid.UUID) (int64, error) {
	var count int64
	err := r.db.WithContext(ctx).
		Model(&models.ReservationRecord{}).
		Where("event_id = ? AND holder_id = ? AND state = ?", eventID, vendorID, enums.ReservationStateHeld).
		Count(&count).Error
	return count, err
}

// LockVendorScope takes a transaction-scoped advisory lock keyed by
// (event, vendor). Hold-limit checks need it: two transactions counting the
// same vendor's holds on different rows otherwise both pass the limit, since
// neither sees the other's uncommitted write. Dialects without advisory locks
// (sqlite) serialize writers and need no extra lock.
func (r *repository) LockVendorScope(ctx context.Context, eventID, vendorID uuid.UUID) error {
	if r.db.Dialector.Name() != "postgres" {
		return nil
	}
	key := fmt.Sprintf("vendor-holds:%s:%s", eventID, vendorID)
	return r.db.WithContext(ctx).
		Exec("SELECT pg_advisory_xact_lock(hashtextextended(?, 0))", key).Error
}

func (r *repository) ListHeldBy(ctx context.Context, vendorID uuid.UUID) ([]models.ReservationRecord, error) {
	var rows []models.ReservationRecord
	err := r.db.WithContext(ctx).
		Where("holder_id = ? AND state = ?", vendorID, enums.ReservationStateHeld).
		Order("expires_at ASC").
		Find(&rows).Error
	return rows, err
}

// ApplyTransition issues the conditional update and reports rows affected.
// Zero rows means the guard failed; callers classify why.
func (r *repository) ApplyTransition(ctx context.Context, t Transition) (int64, error) {
	result := r.db.WithContext(ctx).
		Model(&models.ReservationRecord{}).
		Where("stall_id = ? AND state = ? AND version = ?", t.StallID, t.FromState, t.ExpectedVersion).
		Updates(map[string]any{
			"state":        t.ToState,
			"holder_id":    t.HolderID,
			"held_at":      t.HeldAt,
			"expires_at":   t.ExpiresAt,
			"confirmed_at": t.ConfirmedAt,
			"version":      gorm.Expr("version + 1"),
			"updated_at":   time.Now().UTC(),
		})
	return result.RowsAffected, result.Error
}
