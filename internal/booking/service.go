package booking

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"gorm.io/gorm"

	"github.com/bazaarly/bazaarly-backend/internal/events"
	"github.com/bazaarly/bazaarly-backend/internal/layout"
	"github.com/bazaarly/bazaarly-backend/internal/ledger"
	"github.com/bazaarly/bazaarly-backend/pkg/config"
	"github.com/bazaarly/bazaarly-backend/pkg/db/models"
	"github.com/bazaarly/bazaarly-backend/pkg/enums"
	pkgerrors "github.com/bazaarly/bazaarly-backend/pkg/errors"
	"github.com/bazaarly/bazaarly-backend/pkg/logger"
	"github.com/bazaarly/bazaarly-backend/pkg/outbox"
	"github.com/bazaarly/bazaarly-backend/pkg/outbox/payloads"
)

const (
	releaseReasonVendorCancel  = "vendor_cancel"
	releaseReasonPaymentFailed = "payment_failed"
	releaseReasonAdmin         = "admin_release"
)

var centsPerUnit = decimal.NewFromInt(100)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

// Service coordinates the vendor-facing booking flow on top of the ledger
// state machine. It owns the business rules (publication gate, hold limit,
// TTL, payment orchestration) but never mutates reservation state directly.
type Service interface {
	RequestHold(ctx context.Context, input RequestHoldInput) (*models.ReservationRecord, error)
	ConfirmHold(ctx context.Context, input ConfirmHoldInput) (*models.ReservationRecord, error)
	CancelHold(ctx context.Context, input CancelHoldInput) (*models.ReservationRecord, error)
	AdminRelease(ctx context.Context, input AdminReleaseInput) (*models.ReservationRecord, error)
	VendorHolds(ctx context.Context, vendorID uuid.UUID) ([]models.ReservationRecord, error)
	Availability(ctx context.Context, eventID uuid.UUID) ([]models.ReservationRecord, error)
}

// RequestHoldInput asks for a time-bounded hold on one stall.
type RequestHoldInput struct {
	EventID  uuid.UUID
	StallID  uuid.UUID
	VendorID uuid.UUID
}

// ConfirmHoldInput converts a live hold into a confirmed booking.
type ConfirmHoldInput struct {
	StallID         uuid.UUID
	VendorID        uuid.UUID
	PaymentSourceID string
}

// CancelHoldInput voluntarily releases a vendor's own hold.
type CancelHoldInput struct {
	StallID  uuid.UUID
	VendorID uuid.UUID
}

// AdminReleaseInput frees a confirmed stall through the exceptional
// administrative path.
type AdminReleaseInput struct {
	StallID uuid.UUID
	AdminID uuid.UUID
	Reason  string
}

// ServiceParams configure the booking coordinator.
type ServiceParams struct {
	EventRepo  events.Repository
	LayoutRepo layout.Repository
	Ledger     ledger.Service
	DB         txRunner
	Outbox     outboxEmitter
	Payment    PaymentCharger
	Logger     *logger.Logger
	Config     config.BookingConfig
	Now        func() time.Time
}

type service struct {
	eventRepo  events.Repository
	layoutRepo layout.Repository
	ledger     ledger.Service
	db         txRunner
	outbox     outboxEmitter
	payment    PaymentCharger
	logg       *logger.Logger
	holdTTL    time.Duration
	holdLimit  int
	now        func() time.Time
}

// NewService wires the booking coordinator with its dependencies.
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
	if params.Payment == nil {
		return nil, fmt.Errorf("payment charger required")
	}
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	holdTTL := params.Config.HoldTTL
	if holdTTL <= 0 {
		holdTTL = 10 * time.Minute
	}
	holdLimit := params.Config.VendorHoldLimit
	if holdLimit <= 0 {
		holdLimit = 1
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
		payment:    params.Payment,
		logg:       params.Logger,
		holdTTL:    holdTTL,
		holdLimit:  holdLimit,
		now:        now,
	}, nil
}

// RequestHold attempts exactly one compare-and-swap. A vendor who loses the
// race sees "stall taken" and never silently lands on a different stall or a
// retried attempt.
func (s *service) RequestHold(ctx context.Context, input RequestHoldInput) (*models.ReservationRecord, error) {
	if input.EventID == uuid.Nil || input.StallID == uuid.Nil || input.VendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event, stall and vendor ids are required")
	}

	event, err := s.eventRepo.Find(ctx, input.EventID)
	if err != nil {
		return nil, err
	}
	if event.Status != enums.EventStatusPublished {
		return nil, pkgerrors.New(pkgerrors.CodeEventNotBookable,
			fmt.Sprintf("event is %s, booking requires published", event.Status))
	}

	stall, err := s.findStall(ctx, input.StallID)
	if err != nil {
		return nil, err
	}
	if stall.EventID != input.EventID {
		return nil, pkgerrors.New(pkgerrors.CodeNotFound, "stall does not belong to this event")
	}

	record, err := s.ledger.Get(ctx, input.StallID)
	if err != nil {
		return nil, err
	}
	if record.State == enums.ReservationStateHeld || record.State == enums.ReservationStateConfirmed {
		return nil, pkgerrors.New(pkgerrors.CodeStallTaken, "stall is already taken")
	}

	now := s.now().UTC()
	expiresAt := now.Add(s.holdTTL)
	var held *models.ReservationRecord
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		// The limit check shares the transaction with the swap and runs
		// under the vendor-scope lock. Counting outside would let two
		// simultaneous holds on different stalls both read under the limit.
		if err := s.ledger.LockVendorScope(ctx, tx, input.EventID, input.VendorID); err != nil {
			return err
		}
		holds, err := s.ledger.CountVendorHolds(ctx, tx, input.EventID, input.VendorID)
		if err != nil {
			return err
		}
		if holds >= int64(s.holdLimit) {
			return pkgerrors.New(pkgerrors.CodeHoldLimit,
				fmt.Sprintf("vendor already has %d active hold(s)", holds))
		}
		vendorID := input.VendorID
		held, err = s.ledger.TryTransition(ctx, tx, ledger.Transition{
			StallID:         input.StallID,
			FromState:       record.State,
			ExpectedVersion: record.Version,
			ToState:         enums.ReservationStateHeld,
			HolderID:        &vendorID,
			HeldAt:          &now,
			ExpiresAt:       &expiresAt,
		})
		if err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventStallHeld,
			AggregateType: enums.AggregateStall,
			AggregateID:   input.StallID,
			Version:       1,
			OccurredAt:    now,
			Actor:         &outbox.ActorRef{UserID: input.VendorID, Role: enums.MemberRoleVendor.String()},
			Data: payloads.StallHeldEvent{
				StallID:   input.StallID,
				EventID:   input.EventID,
				VendorID:  input.VendorID,
				ExpiresAt: expiresAt,
			},
		})
	})
	if err != nil {
		// A losing racer must see "taken", not a concurrency internals code.
		if pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) || pkgerrors.HasCode(err, pkgerrors.CodeVersionConflict) {
			return nil, pkgerrors.Wrap(pkgerrors.CodeStallTaken, err, "stall is already taken")
		}
		return nil, err
	}

	logCtx := s.bookingCtx(ctx, input.VendorID, input.EventID, input.StallID)
	s.logg.Info(logCtx, "stall hold granted")
	return held, nil
}

// ConfirmHold verifies hold ownership and expiry, charges the vendor through
// the external collaborator, then flips the ledger. The charge runs outside
// the transaction; a failed charge releases the stall immediately.
func (s *service) ConfirmHold(ctx context.Context, input ConfirmHoldInput) (*models.ReservationRecord, error) {
	if input.StallID == uuid.Nil || input.VendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stall and vendor ids are required")
	}

	record, err := s.ledger.Get(ctx, input.StallID)
	if err != nil {
		return nil, err
	}
	if err := s.checkOwnedHold(record, input.VendorID); err != nil {
		return nil, err
	}

	now := s.now().UTC()
	if record.ExpiresAt == nil || !record.ExpiresAt.After(now) {
		return nil, pkgerrors.New(pkgerrors.CodeHoldExpired, "hold has expired")
	}

	stall, err := s.findStall(ctx, input.StallID)
	if err != nil {
		return nil, err
	}

	paymentRef, err := s.payment.Charge(ctx, ChargeInput{
		VendorID:    input.VendorID,
		EventID:     record.EventID,
		StallID:     input.StallID,
		AmountCents: stall.Price.Mul(centsPerUnit).IntPart(),
		SourceID:    input.PaymentSourceID,
	})
	if err != nil {
		// No stall sits held on a failed payment beyond the TTL.
		if relErr := s.releaseHold(ctx, record, &input.VendorID, releaseReasonPaymentFailed); relErr != nil {
			logCtx := s.bookingCtx(ctx, input.VendorID, record.EventID, input.StallID)
			s.logg.Error(logCtx, "failed to release hold after payment failure", relErr)
		}
		return nil, pkgerrors.Wrap(pkgerrors.CodePaymentFailed, err, "payment was declined")
	}

	var confirmed *models.ReservationRecord
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		vendorID := input.VendorID
		confirmedAt := s.now().UTC()
		confirmed, err = s.ledger.TryTransition(ctx, tx, ledger.Transition{
			StallID:         input.StallID,
			FromState:       enums.ReservationStateHeld,
			ExpectedVersion: record.Version,
			ToState:         enums.ReservationStateConfirmed,
			HolderID:        &vendorID,
			HeldAt:          record.HeldAt,
			ConfirmedAt:     &confirmedAt,
		})
		if err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventStallConfirmed,
			AggregateType: enums.AggregateStall,
			AggregateID:   input.StallID,
			Version:       1,
			OccurredAt:    confirmedAt,
			Actor:         &outbox.ActorRef{UserID: input.VendorID, Role: enums.MemberRoleVendor.String()},
			Data: payloads.StallConfirmedEvent{
				StallID:     input.StallID,
				EventID:     record.EventID,
				VendorID:    input.VendorID,
				PaymentRef:  paymentRef,
				ConfirmedAt: confirmedAt,
			},
		})
	})
	if err != nil {
		if pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) || pkgerrors.HasCode(err, pkgerrors.CodeVersionConflict) {
			// The sweeper reclaimed the hold between the charge and the
			// ledger write. The payment succeeded, so this needs eyes.
			logCtx := s.bookingCtx(ctx, input.VendorID, record.EventID, input.StallID)
			logCtx = s.logg.WithField(logCtx, "payment_ref", paymentRef)
			s.logg.Error(logCtx, "payment captured but hold was lost; manual refund required", err)
			return nil, pkgerrors.Wrap(pkgerrors.CodeHoldExpired, err, "hold expired during confirmation")
		}
		return nil, err
	}

	logCtx := s.bookingCtx(ctx, input.VendorID, record.EventID, input.StallID)
	s.logg.Info(logCtx, "stall booking confirmed")
	return confirmed, nil
}

// CancelHold voluntarily releases the vendor's own hold. Unlike requestHold,
// the release path may retry once on a version conflict.
func (s *service) CancelHold(ctx context.Context, input CancelHoldInput) (*models.ReservationRecord, error) {
	if input.StallID == uuid.Nil || input.VendorID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stall and vendor ids are required")
	}

	record, err := s.ledger.Get(ctx, input.StallID)
	if err != nil {
		return nil, err
	}
	if err := s.checkOwnedHold(record, input.VendorID); err != nil {
		return nil, err
	}

	released, err := s.releaseHoldOnce(ctx, record, &input.VendorID, releaseReasonVendorCancel)
	if pkgerrors.HasCode(err, pkgerrors.CodeVersionConflict) {
		record, err = s.ledger.Get(ctx, input.StallID)
		if err != nil {
			return nil, err
		}
		if err := s.checkOwnedHold(record, input.VendorID); err != nil {
			return nil, err
		}
		released, err = s.releaseHoldOnce(ctx, record, &input.VendorID, releaseReasonVendorCancel)
	}
	if err != nil {
		return nil, err
	}

	logCtx := s.bookingCtx(ctx, input.VendorID, record.EventID, input.StallID)
	s.logg.Info(logCtx, "stall hold canceled")
	return released, nil
}

// AdminRelease frees a confirmed stall. This is the exceptional path; every
// use is logged with the acting admin and reason.
func (s *service) AdminRelease(ctx context.Context, input AdminReleaseInput) (*models.ReservationRecord, error) {
	if input.StallID == uuid.Nil || input.AdminID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "stall and admin ids are required")
	}

	record, err := s.ledger.Get(ctx, input.StallID)
	if err != nil {
		return nil, err
	}
	if record.State != enums.ReservationStateConfirmed {
		return nil, pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("admin release applies to confirmed stalls, found %s", record.State))
	}

	now := s.now().UTC()
	var released *models.ReservationRecord
	err = s.db.WithTx(ctx, func(tx *gorm.DB) error {
		released, err = s.ledger.TryTransition(ctx, tx, ledger.Transition{
			StallID:         input.StallID,
			FromState:       enums.ReservationStateConfirmed,
			ExpectedVersion: record.Version,
			ToState:         enums.ReservationStateReleased,
		})
		if err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventStallReleased,
			AggregateType: enums.AggregateStall,
			AggregateID:   input.StallID,
			Version:       1,
			OccurredAt:    now,
			Actor:         &outbox.ActorRef{UserID: input.AdminID, Role: enums.MemberRoleAdmin.String()},
			Data: payloads.StallReleasedEvent{
				StallID:    input.StallID,
				EventID:    record.EventID,
				VendorID:   record.HolderID,
				Reason:     releaseReasonAdmin,
				ReleasedAt: now,
			},
		})
	})
	if err != nil {
		return nil, err
	}

	logCtx := s.logg.WithFields(ctx, map[string]any{
		"admin_id": input.AdminID.String(),
		"stall_id": input.StallID.String(),
		"reason":   input.Reason,
	})
	s.logg.Warn(logCtx, "confirmed stall released by admin")
	return released, nil
}

func (s *service) VendorHolds(ctx context.Context, vendorID uuid.UUID) ([]models.ReservationRecord, error) {
	return s.ledger.ListHeldBy(ctx, vendorID)
}

func (s *service) Availability(ctx context.Context, eventID uuid.UUID) ([]models.ReservationRecord, error) {
	if eventID == uuid.Nil {
		return nil, pkgerrors.New(pkgerrors.CodeValidation, "event id is required")
	}
	if _, err := s.eventRepo.Find(ctx, eventID); err != nil {
		return nil, err
	}
	return s.ledger.ListByEvent(ctx, eventID)
}

func (s *service) findStall(ctx context.Context, stallID uuid.UUID) (*models.Stall, error) {
	stall, err := s.layoutRepo.Find(ctx, stallID)
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, pkgerrors.New(pkgerrors.CodeNotFound, "stall not found")
		}
		return nil, err
	}
	return stall, nil
}

func (s *service) checkOwnedHold(record *models.ReservationRecord, vendorID uuid.UUID) error {
	if record.State != enums.ReservationStateHeld {
		return pkgerrors.New(pkgerrors.CodeStateConflict,
			fmt.Sprintf("stall is %s, no active hold", record.State))
	}
	if record.HolderID == nil || *record.HolderID != vendorID {
		return pkgerrors.New(pkgerrors.CodeForbidden, "hold belongs to another vendor")
	}
	return nil
}

func (s *service) releaseHold(ctx context.Context, record *models.ReservationRecord, vendorID *uuid.UUID, reason string) error {
	_, err := s.releaseHoldOnce(ctx, record, vendorID, reason)
	return err
}

func (s *service) releaseHoldOnce(ctx context.Context, record *models.ReservationRecord, vendorID *uuid.UUID, reason string) (*models.ReservationRecord, error) {
	now := s.now().UTC()
	var released *models.ReservationRecord
	err := s.db.WithTx(ctx, func(tx *gorm.DB) error {
		var err error
		released, err = s.ledger.TryTransition(ctx, tx, ledger.Transition{
			StallID:         record.StallID,
			FromState:       enums.ReservationStateHeld,
			ExpectedVersion: record.Version,
			ToState:         enums.ReservationStateReleased,
		})
		if err != nil {
			return err
		}
		return s.outbox.Emit(ctx, tx, outbox.DomainEvent{
			EventType:     enums.EventStallReleased,
			AggregateType: enums.AggregateStall,
			AggregateID:   record.StallID,
			Version:       1,
			OccurredAt:    now,
			Data: payloads.StallReleasedEvent{
				StallID:    record.StallID,
				EventID:    record.EventID,
				VendorID:   vendorID,
				Reason:     reason,
				ReleasedAt: now,
			},
		})
	})
	return released, err
}

func (s *service) bookingCtx(ctx context.Context, vendorID, eventID, stallID uuid.UUID) context.Context {
	ctx = s.logg.WithVendorID(ctx, vendorID.String())
	ctx = s.logg.WithEventID(ctx, eventID.String())
	return s.logg.WithField(ctx, "stall_id", stallID.String())
}
