package ledger

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazaarly/bazaarly-backend/pkg/db/models"
	"github.com/bazaarly/bazaarly-backend/pkg/enums"
	pkgerrors "github.com/bazaarly/bazaarly-backend/pkg/errors"
	"github.com/bazaarly/bazaarly-backend/pkg/logger"
)

// allowedTransitions is the reservation state machine. A released stall is
// bookable again, so it accepts the same transition as an available one.
var allowedTransitions = map[enums.ReservationState][]enums.ReservationState{
	enums.ReservationStateAvailable: {enums.ReservationStateHeld},
	enums.ReservationStateReleased:  {enums.ReservationStateHeld},
	enums.ReservationStateHeld:      {enums.ReservationStateConfirmed, enums.ReservationStateReleased},
	enums.ReservationStateConfirmed: {enums.ReservationStateReleased},
}

// Service is the authoritative reservation state machine. Every state change
// in the system funnels through TryTransition; there is no other write path.
type Service interface {
	Seed(ctx context.Context, tx *gorm.DB, eventID uuid.UUID, stallIDs []uuid.UUID) error
	Get(ctx context.Context, stallID uuid.UUID) (*models.ReservationRecord, error)
	ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.ReservationRecord, error)
	ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]models.ReservationRecord, error)
	CountVendorHolds(ctx context.Context, tx *gorm.DB, eventID, vendorID uuid.UUID) (int64, error)
	LockVendorScope(ctx context.Context, tx *gorm.DB, eventID, vendorID uuid.UUID) error
	ListHeldBy(ctx context.Context, vendorID uuid.UUID) ([]models.ReservationRecord, error)
	TryTransition(ctx context.Context, tx *gorm.DB, t Transition) (*models.ReservationRecord, error)
}

// ServiceParams configure the ledger service.
type ServiceParams struct {
	Repo   Repository
	Logger *logger.Logger
}

type service struct {
	repo Repository
	logg *logger.Logger
}

// NewService wires the ledger service with its repository.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("ledger repository required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{repo: params.Repo, logg: params.Logger}, nil
}

func (s *service) Seed(ctx context.Context, tx *gorm.DB, eventID uuid.UUID, stallIDs []uuid.UUID) error {
	if eventID == uuid.Nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "event id is required")
	}
	return s.repo.WithTx(tx).SeedForEvent(ctx, eventID, stallIDs)
}

func (s *service) Get(ctx context.Context, stallID uuid.UUID) (*models.ReservationRecord, error) {
	if stallID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stall id is required")
	}
	record, err := s.repo.Find(ctx, stallID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "reservation record not found")
		}
		return nil, err
	}
	return record, nil
}

func (s *service) ListByEvent(ctx context.Context, eventID uuid.UUID) ([]models.ReservationRecord, error) {
	if eventID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event id is required")
	}
	return s.repo.ListByEvent(ctx, eventID)
}

func (s *service) ListExpiredHolds(ctx context.Context, now time.Time, limit int) ([]models.ReservationRecord, error) {
	return s.repo.ListExpiredHolds(ctx, now, limit)
}

func (s *service) CountVendorHolds(ctx context.Context, tx *gorm.DB, eventID, vendorID uuid.UUID) (int64, error) {
	return s.repo.WithTx(tx).CountVendorHolds(ctx, eventID, vendorID)
}

// LockVendorScope serializes hold attempts by the same vendor within an event
// for the remainder of the transaction. Callers count holds after taking it.
func (s *service) LockVendorScope(ctx context.Context, tx *gorm.DB, eventID, vendorID uuid.UUID) error {
	if tx == nil {
		return pkgerrors.New(pkgerrors.CodeValidation, "transaction required")
	}
	return s.repo.WithTx(tx).LockVendorScope(ctx, eventID, vendorID)
}

func (s *service) ListHeldBy(ctx context.Context, vendorID uuid.UUID) ([]models.ReservationRecord, error) {
	if vendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "vendor id is required")
	}
	return s.repo.ListHeldBy(ctx, vendorID)
}

// TryTransition applies one compare-and-swap transition. When the guard
// misses, the current row is refetched once to classify the failure: the row
// may be gone, sit in a different state, or carry a newer version.
func (s *service) TryTransition(ctx context.Context, tx *gorm.DB, t Transition) (*models.ReservationRecord, error) {
	if t.StallID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stall id is required")
	}
	if !t.FromState.IsValid() || !t.ToState.IsValid() {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "invalid reservation state")
	}
	if !transitionAllowed(t.FromState, t.ToState) {
		return nil, pkgerrors.New(pkgerrors.CodeValidation,
			fmt.Sprintf("transition %s -> %s is not allowed", t.FromState, t.ToState))
	}

	repo := s.repo.WithTx(tx)
	affected, err := repo.ApplyTransition(ctx, t)
	if err != nil {
		return nil, err
	}
	if affected == 0 {
		return nil, s.classifyMiss(ctx, repo, t)
	}

	record, err := repo.Find(ctx, t.StallID)
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"stall_id":   t.StallID.String(),
		"from_state": t.FromState.String(),
		"to_state":   t.ToState.String(),
		"version":    record.Version,
	})
	s.logg.Debug(logCtx, "reservation transition applied")
	return record, nil
}

func (s *service) classifyMiss(ctx context.Context, repo Repository, t Transition) error {
	current, err := repo.Find(ctx, t.StallID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return pkgerrors.New(pkgerrors.CodeNotFound, "reservation record not found")
		}
		return err
	}
	if current.State != t.FromState {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("stall is %s, expected %s", current.State, t.FromState)).
			WithDetails(map[string]any{"state": current.State, "version": current.Version})
	}
	return pkgerrors.New(pkgerrors.CodeVersionConflict,
		"reservation was modified concurrently").
		WithDetails(map[string]any{"state": current.State, "version": current.Version})
}

func transitionAllowed(from, to enums.ReservationState) bool {
	for _, candidate := range allowedTransitions[from] {
		if candidate == to {
			return true
		}
	}
	return false
}
