package layout

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bazaarly/bazaarly-backend/internal/events"
	"github.com/bazaarly/bazaarly-backend/pkg/db/models"
	"github.com/bazaarly/bazaarly-backend/pkg/enums"
	pkgerrors "github.com/bazaarly/bazaarly-backend/pkg/errors"
	"github.com/bazaarly/bazaarly-backend/pkg/logger"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

// Service defines the stall layout operations available to organizers.
type Service interface {
	DefineStalls(ctx context.Context, input DefineStallsInput) ([]models.Stall, error)
	GetStalls(ctx context.Context, eventID uuid.UUID) ([]models.Stall, error)
}

// StallInput describes one stall on the organizer's canvas.
type StallInput struct {
	StallNumber int
	Category    string
	Price       decimal.Decimal
	X           float64
	Y           float64
	Width       float64
	Height      float64
}

// DefineStallsInput carries a whole-canvas layout save.
type DefineStallsInput struct {
	EventID     uuid.UUID
	OrganizerID uuid.UUID
	Stalls      []StallInput
}

// ServiceParams configure the layout service.
type ServiceParams struct {
	Repo      Repository
	EventRepo events.Repository
	DB        txRunner
	Logger    *logger.Logger
}

type service struct {
	repo      Repository
	eventRepo events.Repository
	db        txRunner
	logg      *logger.Logger
}

// NewService wires the layout service with its dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("layout repository required")
	}
	if params.EventRepo == nil {
		return nil, fmt.Errorf("event repository required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	return &service{
		repo:      params.Repo,
		eventRepo: params.EventRepo,
		db:        params.DB,
		logg:      params.Logger,
	}, nil
}

// DefineStalls replaces the event's stall set. The layout is frozen once the
// event publishes, so only draft events accept saves.
func (s *service) DefineStalls(ctx context.Context, input DefineStallsInput) ([]models.Stall, error) {
	if input.EventID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event id is required")
	}
	if input.OrganizerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "organizer id is required")
	}

	event, err := s.eventRepo.Find(ctx, input.EventID)
	if err != nil {
		return nil, err
	}
	if event.OrganizerID != input.OrganizerID {
		return nil, pkgerrors.New(pkgerrors.CodeForbidden, "caller does not own this event")
	}
	if event.Status != enums.EventStatusDraft {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "layout is frozen once the event is published")
	}

	if err := validateStalls(input.Stalls); err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	stalls := make([]models.Stall, 0, len(input.Stalls))
	for _, in := range input.Stalls {
		stalls = append(stalls, models.Stall{
			ID:          uuid.New(),
			EventID:     input.EventID,
			StallNumber: in.StallNumber,
			Category:    in.Category,
			Price:       in.Price,
			X:           in.X,
			Y:           in.Y,
			Width:       in.Width,
			Height:      in.Height,
			CreatedAt:   now,
			UpdatedAt:   now,
		})
	}

	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		if err := s.repo.WithTx(tx).ReplaceForEvent(ctx, input.EventID, stalls); err != nil {
			return err
		}
		// Guarded on status so a save racing a concurrent publish rolls
		// back instead of mutating a frozen layout.
		affected, err := s.eventRepo.WithTx(tx).UpdateWhereStatus(ctx, input.EventID, enums.EventStatusDraft, map[string]any{
			"configuration_complete": len(stalls) > 0,
		})
		if err != nil {
			return err
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "layout is frozen once the event is published")
		}
		return nil
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithEventID(ctx, input.EventID.String())
	logCtx = s.logg.WithField(logCtx, "stall_count", len(stalls))
	s.logg.Info(logCtx, "layout saved")
	return stalls, nil
}

func (s *service) GetStalls(ctx context.Context, eventID uuid.UUID) ([]models.Stall, error) {
	if eventID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event id is required")
	}
	if _, err := s.eventRepo.Find(ctx, eventID); err != nil {
		return nil, err
	}
	return s.repo.ListByEvent(ctx, eventID)
}

func validateStalls(stalls []StallInput) error {
	if len(stalls) == 0 {
		return pkgerrors.New(pkgerrors.CodeValidation, "at least one stall is required")
	}

	seen := make(map[int]struct{}, len(stalls))
	for i, stall := range stalls {
		if stall.StallNumber <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("stall %d: stall number must be positive", i))
		}
		if _, dup := seen[stall.StallNumber]; dup {
			return pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("duplicate stall number %d", stall.StallNumber))
		}
		seen[stall.StallNumber] = struct{}{}

		if stall.Width <= 0 || stall.Height <= 0 {
			return pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("stall %d: width and height must be positive", stall.StallNumber))
		}
		if !stall.Price.IsPositive() {
			return pkgerrors.New(pkgerrors.CodeValidation,
				fmt.Sprintf("stall %d: price must be positive", stall.StallNumber))
		}
	}

	for i := range stalls {
		for j := i + 1; j < len(stalls); j++ {
			if rectanglesOverlap(stalls[i], stalls[j]) {
				return pkgerrors.New(pkgerrors.CodeValidation,
					fmt.Sprintf("stalls %d and %d overlap", stalls[i].StallNumber, stalls[j].StallNumber))
			}
		}
	}
	return nil
}

// rectanglesOverlap reports whether two stalls share interior area. Touching
// edges do not count as overlap.
func rectanglesOverlap(a, b StallInput) bool {
	if a.X+a.Width <= b.X || b.X+b.Width <= a.X {
		return false
	}
	if a.Y+a.Height <= b.Y || b.Y+b.Height <= a.Y {
		return false
	}
	return true
}
