package events

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"github.com/bazaarly/bazaarly-backend/pkg/db/models"
	"github.com/bazaarly/bazaarly-backend/pkg/enums"
	pkgerrors "github.com/bazaarly/bazaarly-backend/pkg/errors"
	"github.com/bazaarly/bazaarly-backend/pkg/logger"
	"github.com/bazaarly/bazaarly-backend/pkg/outbox"
	"github.com/bazaarly/bazaarly-backend/pkg/outbox/payloads"
)

const maxTitleLen = 200

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
	EmitIfNotExists(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service defines the event lifecycle operations short of publication.
type Service interface {
	CreateDraft(ctx context.Context, input CreateDraftInput) (*models.Event, error)
	Get(ctx context.Context, id uuid.UUID) (*models.Event, error)
	ListByOrganizer(ctx context.Context, organizerID uuid.UUID) ([]models.Event, error)
	Close(ctx context.Context, input CloseInput) (*models.Event, error)
}

// CreateDraftInput captures the fields needed to open a draft event.
type CreateDraftInput struct {
	OrganizerID uuid.UUID
	Title       string
}

// CloseInput identifies the event to close and who asked.
type CloseInput struct {
	EventID uuid.UUID
	ActorID uuid.UUID
	Role    enums.MemberRole
}

// ServiceParams configure the event service.
type ServiceParams struct {
	Repo   Repository
	DB     txRunner
	Outbox outboxEmitter
	Logger *logger.Logger
	Now    func() time.Time
}

type service struct {
	repo   Repository
	db     txRunner
	outbox outboxEmitter
	logg   *logger.Logger
	now    func() time.Time
}

// NewService wires the event service with its dependencies.
func NewService(params ServiceParams) (Service, error) {
	if params.Repo == nil {
		return nil, fmt.Errorf("event repository required")
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
		repo:   params.Repo,
		db:     params.DB,
		outbox: params.Outbox,
		logg:   params.Logger,
		now:    now,
	}, nil
}

func (s *service) CreateDraft(ctx context.Context, input CreateDraftInput) (*models.Event, error) {
	if input.OrganizerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "organizer id is required")
	}
	title := strings.TrimSpace(input.Title)
	if title == "" {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title is required")
	}
	if len(title) > maxTitleLen {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "title is too long")
	}

	event := &models.Event{
		ID:          uuid.New(),
		OrganizerID: input.OrganizerID,
		Title:       title,
		Status:      enums.EventStatusDraft,
	}
	if err := s.repo.Create(ctx, event); err != nil {
		return nil, err
	}

	logCtx := s.logg.WithEventID(ctx, event.ID.String())
	s.logg.Info(logCtx, "event draft created")
	return event, nil
}

func (s *service) Get(ctx context.Context, id uuid.UUID) (*models.Event, error) {
	if id == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event id is required")
	}
	return s.repo.Find(ctx, id)
}

func (s *service) ListByOrganizer(ctx context.Context, organizerID uuid.UUID) ([]models.Event, error) {
	if organizerID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "organizer id is required")
	}
	return s.repo.ListByOrganizer(ctx, organizerID)
}

// Close ends booking for a published event. The transition is one-way; closed
// events never reopen.
func (s *service) Close(ctx context.Context, input CloseInput) (*models.Event, error) {
	if input.EventID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event id is required")
	}

	event, err := s.repo.Find(ctx, input.EventID)
	if err != nil {
		return nil, err
	}
	if err := s.authorizeClose(event, input); err != nil {
		return nil, err
	}
	if event.Status == enums.EventStatusClosed {
		return event, nil
	}
	if event.Status != enums.EventStatusPublished {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict, "only published events can be closed")
	}

	closedAt := s.now().UTC()
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		repo := s.repo.WithTx(tx)
		if err := repo.Update(ctx, event.ID, map[string]any{
			"status":    enums.EventStatusClosed,
			"closed_at": closedAt,
		}); err != nil {
			return err
		}
		return s.outbox.EmitIfNotExists(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventEventClosed,
			AggregateType: enums.AggregateEvent,
			AggregateID:   event.ID,
			Version:       1,
			OccurredAt:    closedAt,
			Actor:         &outbox.ActorRef{UserID: input.ActorID, Role: input.Role.String()},
			Data: payloads.EventClosedEvent{
				EventID:  event.ID,
				ClosedAt: closedAt,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	event.Status = enums.EventStatusClosed
	event.ClosedAt = &closedAt

	logCtx := s.logg.WithEventID(ctx, event.ID.String())
	s.logg.Info(logCtx, "event closed")
	return event, nil
}

func (s *service) authorizeClose(event *models.Event, input CloseInput) error {
	if input.Role == enums.MemberRoleAdmin {
		return nil
	}
	if input.Role == enums.MemberRoleOrganizer && event.OrganizerID == input.ActorID {
		return nil
	}
	return pkgerrors.New(pkgerrors.CodeForbidden, "caller cannot close this event")
}
