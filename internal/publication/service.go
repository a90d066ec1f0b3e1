package publication

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazaarly/bazaarly-backend/internal/events"
	"github.com/bazaarly/bazaarly-backend/internal/layout"
	"github.com/bazaarly/bazaarly-backend/internal/ledger"
	"github.com/bazaarly/bazaarly-backend/pkg/db/models"
	"github.com/bazaarly/bazaarly-backend/pkg/enums"
	pkgerrors "github.com/bazaarly/bazaarly-backend/pkg/errors"
	"github.com/bazaarly/bazaarly-backend/pkg/logger"
	"github.com/bazaarly/bazaarly-backend/pkg/outbox"
	"github.com/bazaarly/bazaarly-backend/pkg/outbox/payloads"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service gates the draft -> published transition. Publishing freezes the
// layout and seeds the reservation ledger, so it refuses incomplete drafts.
type Service interface {
	CanPublish(ctx context.Context, eventID uuid.UUID) (bool, []string, error)
	Publish(ctx context.Context, input PublishInput) (*models.Event, error)
}

// PublishInput identifies the event to publish and who asked.
type PublishInput struct {
	EventID uuid.UUID
	ActorID uuid.UUID
	Role    enums.MemberRole
}

// ServiceParams configure the publication service.
type ServiceParams struct {
	EventRepo  events.Repository
	LayoutRepo layout.Repository
	Ledger     ledger.Service
	DB         txRunner
	Outbox     outboxEmitter
	Logger     *logger.Logger
	Now        func() time.Time
}

type service struct {
	eventRepo  events.Repository
	layoutRepo layout.Repository
	ledger     ledger.Service
	db         txRunner
	outbox     outboxEmitter
	logg       *logger.Logger
	now        func() time.Time
}

// NewService wires the publication gate with its dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.EventRepo == nil {
		return nil, fmt.Errorf("event repository required")
	}
	if params.LayoutRepo == nil {
		return nil, fmt.Errorf("layout repository required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &service{
		eventRepo:  params.EventRepo,
		layoutRepo: params.LayoutRepo,
		ledger:     params.Ledger,
		db:         params.DB,
		outbox:     params.Outbox,
		logg:       params.Logger,
		now:        now,
	}, nil
}

// CanPublish reports whether the event passes the gate, with human-readable
// reasons when it does not.
func (s *service) CanPublish(ctx context.Context, eventID uuid.UUID) (bool, []string, error) {
	if eventID == uuid.Nil {
		return false, nil, pkgerrors.New(pkgerrors.CodeValidation, "event id is required")
	}
	event, err := s.eventRepo.Find(ctx, eventID)
	if err != nil {
		return false, nil, err
	}

	var reasons []string
	if event.Status != enums.EventStatusDraft {
		reasons = append(reasons, fmt.Sprintf("event is %s, not draft", event.Status))
	}
	if !event.ConfigurationComplete {
		reasons = append(reasons, "stall layout is not configured")
	}
	count, err := s.layoutRepo.CountByEvent(ctx, eventID)
	if err != nil {
		return false, nil, err
	}
	if count == 0 {
		reasons = append(reasons, "event has no stalls")
	}
	return len(reasons) == 0, reasons, nil
}

// Publish flips the event live and seeds one available reservation record per
// stall in the same transaction. Calling it twice is a no-op.
func (s *service) Publish(ctx context.Context, input PublishInput) (*models.Event, error) {
	if input.EventID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event id is required")
	}

	event, err := s.eventRepo.Find(ctx, input.EventID)
	if err != nil {
		return nil, err
	}
	if err := s.authorize(event, input); err != nil {
		return nil, err
	}
	if event.Status == enums.EventStatusPublished {
		return event, nil
	}
	if event.Status == enums.EventStatusClosed {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "closed events cannot be republished")
	}
	if !event.ConfigurationComplete {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "stall layout must be configured before publishing")
	}

	stalls, err := s.layoutRepo.ListByEvent(ctx, input.EventID)
	if err != nil {
		return nil, err
	}
	if len(stalls) == 0 {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "event has no stalls")
	}

	stallIDs := make([]uuid.UUID, 0, len(stalls))
	for _, stall := range stalls {
		stallIDs = append(stallIDs, stall.ID)
	}

	publishedAt := s.now().UTC()
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		// The status flip is conditioned on draft so a racing publish or
		// close cannot be overwritten.
		affected, err := s.eventRepo.WithTx(tx).UpdateWhereStatus(ctx, event.ID, enums.EventStatusDraft, map[string]any{
			"status":       enums.EventStatusPublished,
			"published_at": publishedAt,
		})
		if err != nil {
			return err
		}
		if affected == 0 {
			return pkgerrors.New(pkgerrors.CodeStateConflict, "event is no longer draft")
		}
		if err := s.ledger.Seed(ctx, tx, event.ID, stallIDs); err != nil {
			return err
		}
		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventEventPublished,
			AggregateType: enums.AggregateEvent,
			AggregateID:   event.ID,
			Version:       1,
			OccurredAt:    publishedAt,
			Actor:         &outbox.ActorRef{UserID: input.ActorID, Role: input.Role.String()},
			Data: payloads.EventPublishedEvent{
				EventID:     event.ID,
				OrganizerID: event.OrganizerID,
				StallCount:  len(stalls),
				PublishedAt: publishedAt,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	event.Status = enums.EventStatusPublished
	event.PublishedAt = &publishedAt

	logCtx := s.logg.WithEventID(ctx, event.ID.String())
	logCtx = s.logg.WithField(logCtx, "stall_count", len(stalls))
	s.logg.Info(logCtx, "event published")
	return event, nil
}

func (s *service) authorize(event *models.Event, input PublishInput) error {
	if input.Role == enums.MemberRoleAdmin {
		return nil
	}
	if input.Role == enums.MemberRoleOrganizer && event.OrganizerID == input.ActorID {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "caller cannot publish this event")
}
