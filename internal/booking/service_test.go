package booking

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/bazaarly/bazaarly-backend/internal/events"
	"github.com/bazaarly/bazaarly-backend/internal/layout"
	"github.com/bazaarly/bazaarly-backend/internal/ledger"
	"github.com/bazaarly/bazaarly-backend/internal/sweeper"
	"github.com/bazaarly/bazaarly-backend/pkg/config"
	"github.com/bazaarly/bazaarly-backend/pkg/db"
	"github.com/bazaarly/bazaarly-backend/pkg/db/models"
	"github.com/bazaarly/bazaarly-backend/pkg/enums"
	pkgerrors "github.com/bazaarly/bazaarly-backend/pkg/errors"
	"github.com/bazaarly/bazaarly-backend/pkg/logger"
	"github.com/bazaarly/bazaarly-backend/pkg/outbox"
)

type fakeOutbox struct {
	emitted []outbox.DomainEvent
}

func (f *fakeOutbox) Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error {
	f.emitted = append(f.emitted, event)
	return nil
}

func (f *fakeOutbox) lastOfType(eventType enums.OutboxEventType) *outbox.DomainEvent {
	for i := len(f.emitted) - 1; i >= 0; i-- {
		if f.emitted[i].EventType == eventType {
			return &f.emitted[i]
		}
	}
	return nil
}

type fakeCharger struct {
	ref     string
	err     error
	charges []ChargeInput
	// onCharge runs mid-charge, before the result is returned. Tests use it
	// to race the ledger while the payment is in flight.
	onCharge func(ChargeInput)
}

func (f *fakeCharger) Charge(ctx context.Context, input ChargeInput) (string, error) {
	f.charges = append(f.charges, input)
	if f.onCharge != nil {
		f.onCharge(input)
	}
	if f.err != nil {
		return "", f.err
	}
	if f.ref == "" {
		return "pay_test_ref", nil
	}
	return f.ref, nil
}

type fixture struct {
	conn    *gorm.DB
	svc     Service
	ledger  ledger.Service
	outbox  *fakeOutbox
	charger *fakeCharger
	now     time.Time
}

func newFixture(t *testing.T, cfg config.BookingConfig) *fixture {
	t.Helper()
	dsn := "file:booking_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(&models.Event{}, &models.Stall{}, &models.ReservationRecord{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}

	logg := logger.New(logger.Options{Level: zerolog.ErrorLevel})
	ledgerSvc, err := ledger.NewService(ledger.ServiceParams{
		Repo:   ledger.NewRepository(conn),
		Logger: logg,
	})
	if err != nil {
		t.Fatalf("ledger service: %v", err)
	}

	f := &fixture{
		conn:    conn,
		ledger:  ledgerSvc,
		outbox:  &fakeOutbox{},
		charger: &fakeCharger{},
		now:     time.Date(2026, 5, 10, 9, 0, 0, 0, time.UTC),
	}
	svc, err := NewService(ServiceParams{
		EventRepo:  events.NewRepository(conn),
		LayoutRepo: layout.NewRepository(conn),
		Ledger:     ledgerSvc,
		DB:         db.NewFromGorm(conn),
		Outbox:     f.outbox,
		Payment:    f.charger,
		Logger:     logg,
		Config:     cfg,
		Now:        func() time.Time { return f.now },
	})
	if err != nil {
		t.Fatalf("booking service: %v", err)
	}
	f.svc = svc
	return f
}

// seedPublishedEvent creates a published event with stallCount stalls and one
// available ledger row per stall, the state publication leaves behind.
func (f *fixture) seedPublishedEvent(t *testing.T, stallCount int) (*models.Event, []models.Stall) {
	t.Helper()
	publishedAt := f.now.Add(-time.Hour)
	event := &models.Event{
		ID:                    uuid.New(),
		OrganizerID:           uuid.New(),
		Title:                 "Riverside Market",
		Status:                enums.EventStatusPublished,
		ConfigurationComplete: true,
		PublishedAt:           &publishedAt,
	}
	if err := f.conn.Create(event).Error; err != nil {
		t.Fatalf("seed event: %v", err)
	}
	stalls := make([]models.Stall, 0, stallCount)
	for i := 1; i <= stallCount; i++ {
		stall := models.Stall{
			ID:          uuid.New(),
			EventID:     event.ID,
			StallNumber: i,
			Category:    "food",
			Price:       decimal.NewFromFloat(150.50),
			X:           float64(i * 20),
			Y:           0,
			Width:       10,
			Height:      10,
		}
		if err := f.conn.Create(&stall).Error; err != nil {
			t.Fatalf("seed stall: %v", err)
		}
		record := models.ReservationRecord{
			StallID: stall.ID,
			EventID: event.ID,
			State:   enums.ReservationStateAvailable,
		}
		if err := f.conn.Create(&record).Error; err != nil {
			t.Fatalf("seed record: %v", err)
		}
		stalls = append(stalls, stall)
	}
	return event, stalls
}

func TestBookingContention(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.BookingConfig{})
	ctx := context.Background()
	event, stalls := f.seedPublishedEvent(t, 3)
	vendorA := uuid.New()
	vendorB := uuid.New()

	held, err := f.svc.RequestHold(ctx, RequestHoldInput{
		EventID: event.ID, StallID: stalls[0].ID, VendorID: vendorA,
	})
	if err != nil {
		t.Fatalf("vendor A hold: %v", err)
	}
	if held.State != enums.ReservationStateHeld {
		t.Fatalf("expected held, got %s", held.State)
	}

	_, err = f.svc.RequestHold(ctx, RequestHoldInput{
		EventID: event.ID, StallID: stalls[0].ID, VendorID: vendorB,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeStallTaken) {
		t.Fatalf("expected stall taken for vendor B, got %v", err)
	}

	confirmed, err := f.svc.ConfirmHold(ctx, ConfirmHoldInput{
		StallID: stalls[0].ID, VendorID: vendorA, PaymentSourceID: "cnon:ok",
	})
	if err != nil {
		t.Fatalf("vendor A confirm: %v", err)
	}
	if confirmed.State != enums.ReservationStateConfirmed {
		t.Fatalf("expected confirmed, got %s", confirmed.State)
	}
	if confirmed.ConfirmedAt == nil {
		t.Fatal("expected confirmed_at to be set")
	}
	if len(f.charger.charges) != 1 {
		t.Fatalf("expected one charge, got %d", len(f.charger.charges))
	}
	if got := f.charger.charges[0].AmountCents; got != 15050 {
		t.Fatalf("expected 15050 cents, got %d", got)
	}

	// A confirmed stall stays taken.
	_, err = f.svc.RequestHold(ctx, RequestHoldInput{
		EventID: event.ID, StallID: stalls[0].ID, VendorID: vendorB,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeStallTaken) {
		t.Fatalf("expected stall taken post-confirm, got %v", err)
	}

	heldEvent := f.outbox.lastOfType(enums.EventStallHeld)
	if heldEvent == nil {
		t.Fatal("expected stall_held outbox event")
	}
	confirmedEvent := f.outbox.lastOfType(enums.EventStallConfirmed)
	if confirmedEvent == nil {
		t.Fatal("expected stall_confirmed outbox event")
	}
}

func TestRequestHoldRequiresPublishedEvent(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.BookingConfig{})
	ctx := context.Background()
	event, stalls := f.seedPublishedEvent(t, 1)
	if err := f.conn.Model(&models.Event{}).Where("id = ?", event.ID).
		Update("status", enums.EventStatusDraft).Error; err != nil {
		t.Fatalf("demote event: %v", err)
	}

	_, err := f.svc.RequestHold(ctx, RequestHoldInput{
		EventID: event.ID, StallID: stalls[0].ID, VendorID: uuid.New(),
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeEventNotBookable) {
		t.Fatalf("expected event not bookable, got %v", err)
	}
}

func TestRequestHoldEnforcesVendorLimit(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.BookingConfig{VendorHoldLimit: 1})
	ctx := context.Background()
	event, stalls := f.seedPublishedEvent(t, 2)
	vendorID := uuid.New()

	if _, err := f.svc.RequestHold(ctx, RequestHoldInput{
		EventID: event.ID, StallID: stalls[0].ID, VendorID: vendorID,
	}); err != nil {
		t.Fatalf("first hold: %v", err)
	}

	_, err := f.svc.RequestHold(ctx, RequestHoldInput{
		EventID: event.ID, StallID: stalls[1].ID, VendorID: vendorID,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeHoldLimit) {
		t.Fatalf("expected hold limit, got %v", err)
	}

	// Canceling frees the slot.
	if _, err := f.svc.CancelHold(ctx, CancelHoldInput{
		StallID: stalls[0].ID, VendorID: vendorID,
	}); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if _, err := f.svc.RequestHold(ctx, RequestHoldInput{
		EventID: event.ID, StallID: stalls[1].ID, VendorID: vendorID,
	}); err != nil {
		t.Fatalf("hold after cancel: %v", err)
	}
}

// hookedTxRunner fires a hook once, just before the transaction starts, to
// stage a competing write landing between pre-checks and the swap.
type hookedTxRunner struct {
	inner  txRunner
	before func()
}

func (h *hookedTxRunner) WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error {
	if h.before != nil {
		hook := h.before
		h.before = nil
		hook()
	}
	return h.inner.WithTx(ctx, fn)
}

func TestRequestHoldLimitHoldsUnderConcurrentHold(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.BookingConfig{VendorHoldLimit: 1})
	ctx := context.Background()
	event, stalls := f.seedPublishedEvent(t, 2)
	vendorID := uuid.New()

	// The same vendor wins a hold on the other stall after this request's
	// limit pre-read would have happened, but before its transaction. The
	// in-transaction count must still see it and reject.
	runner := &hookedTxRunner{
		inner: db.NewFromGorm(f.conn),
		before: func() {
			if _, err := f.svc.RequestHold(ctx, RequestHoldInput{
				EventID: event.ID, StallID: stalls[1].ID, VendorID: vendorID,
			}); err != nil {
				t.Fatalf("competing hold: %v", err)
			}
		},
	}
	racing, err := NewService(ServiceParams{
		EventRepo:  events.NewRepository(f.conn),
		LayoutRepo: layout.NewRepository(f.conn),
		Ledger:     f.ledger,
		DB:         runner,
		Outbox:     f.outbox,
		Payment:    f.charger,
		Logger:     logger.New(logger.Options{Level: zerolog.ErrorLevel}),
		Config:     config.BookingConfig{VendorHoldLimit: 1},
		Now:        func() time.Time { return f.now },
	})
	if err != nil {
		t.Fatalf("booking service: %v", err)
	}

	_, err = racing.RequestHold(ctx, RequestHoldInput{
		EventID: event.ID, StallID: stalls[0].ID, VendorID: vendorID,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeHoldLimit) {
		t.Fatalf("expected hold limit against concurrent hold, got %v", err)
	}

	holds, err := f.svc.VendorHolds(ctx, vendorID)
	if err != nil {
		t.Fatalf("vendor holds: %v", err)
	}
	if len(holds) != 1 {
		t.Fatalf("expected exactly one live hold, got %d", len(holds))
	}
}

func TestRequestHoldWrongEventStall(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.BookingConfig{})
	ctx := context.Background()
	event, _ := f.seedPublishedEvent(t, 1)
	_, otherStalls := f.seedPublishedEvent(t, 1)

	_, err := f.svc.RequestHold(ctx, RequestHoldInput{
		EventID: event.ID, StallID: otherStalls[0].ID, VendorID: uuid.New(),
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeNotFound) {
		t.Fatalf("expected not found, got %v", err)
	}
}

func TestConfirmHoldExpired(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.BookingConfig{HoldTTL: 10 * time.Minute})
	ctx := context.Background()
	event, stalls := f.seedPublishedEvent(t, 1)
	vendorID := uuid.New()

	if _, err := f.svc.RequestHold(ctx, RequestHoldInput{
		EventID: event.ID, StallID: stalls[0].ID, VendorID: vendorID,
	}); err != nil {
		t.Fatalf("hold: %v", err)
	}

	f.now = f.now.Add(11 * time.Minute)

	_, err := f.svc.ConfirmHold(ctx, ConfirmHoldInput{
		StallID: stalls[0].ID, VendorID: vendorID, PaymentSourceID: "cnon:ok",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeHoldExpired) {
		t.Fatalf("expected hold expired, got %v", err)
	}
	if len(f.charger.charges) != 0 {
		t.Fatalf("expired hold must not be charged, got %d charges", len(f.charger.charges))
	}
}

func TestConfirmHoldPaymentFailureReleases(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.BookingConfig{})
	ctx := context.Background()
	event, stalls := f.seedPublishedEvent(t, 1)
	vendorID := uuid.New()

	if _, err := f.svc.RequestHold(ctx, RequestHoldInput{
		EventID: event.ID, StallID: stalls[0].ID, VendorID: vendorID,
	}); err != nil {
		t.Fatalf("hold: %v", err)
	}

	f.charger.err = fmt.Errorf("card declined")
	_, err := f.svc.ConfirmHold(ctx, ConfirmHoldInput{
		StallID: stalls[0].ID, VendorID: vendorID, PaymentSourceID: "cnon:declined",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodePaymentFailed) {
		t.Fatalf("expected payment failed, got %v", err)
	}

	record, err := f.ledger.Get(ctx, stalls[0].ID)
	if err != nil {
		t.Fatalf("get record: %v", err)
	}
	if record.State != enums.ReservationStateReleased {
		t.Fatalf("expected released after declined payment, got %s", record.State)
	}

	released := f.outbox.lastOfType(enums.EventStallReleased)
	if released == nil {
		t.Fatal("expected stall_released outbox event")
	}

	// The stall goes straight back on the market.
	f.charger.err = nil
	if _, err := f.svc.RequestHold(ctx, RequestHoldInput{
		EventID: event.ID, StallID: stalls[0].ID, VendorID: uuid.New(),
	}); err != nil {
		t.Fatalf("re-hold after declined payment: %v", err)
	}
}

func TestConfirmHoldLostToSweeperAfterCharge(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.BookingConfig{})
	ctx := context.Background()
	event, stalls := f.seedPublishedEvent(t, 1)
	vendorID := uuid.New()

	if _, err := f.svc.RequestHold(ctx, RequestHoldInput{
		EventID: event.ID, StallID: stalls[0].ID, VendorID: vendorID,
	}); err != nil {
		t.Fatalf("hold: %v", err)
	}

	// While the charge is in flight the sweeper reclaims the hold.
	f.charger.onCharge = func(input ChargeInput) {
		record, err := f.ledger.Get(ctx, input.StallID)
		if err != nil {
			t.Fatalf("get during charge: %v", err)
		}
		if _, err := f.ledger.TryTransition(ctx, nil, ledger.Transition{
			StallID:         input.StallID,
			FromState:       enums.ReservationStateHeld,
			ExpectedVersion: record.Version,
			ToState:         enums.ReservationStateReleased,
		}); err != nil {
			t.Fatalf("sweep during charge: %v", err)
		}
	}

	_, err := f.svc.ConfirmHold(ctx, ConfirmHoldInput{
		StallID: stalls[0].ID, VendorID: vendorID, PaymentSourceID: "cnon:ok",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeHoldExpired) {
		t.Fatalf("expected hold expired after lost race, got %v", err)
	}
	if len(f.charger.charges) != 1 {
		t.Fatalf("expected the charge to have happened, got %d", len(f.charger.charges))
	}
}

func TestConfirmHoldForeignHoldForbidden(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.BookingConfig{})
	ctx := context.Background()
	event, stalls := f.seedPublishedEvent(t, 1)

	if _, err := f.svc.RequestHold(ctx, RequestHoldInput{
		EventID: event.ID, StallID: stalls[0].ID, VendorID: uuid.New(),
	}); err != nil {
		t.Fatalf("hold: %v", err)
	}

	_, err := f.svc.ConfirmHold(ctx, ConfirmHoldInput{
		StallID: stalls[0].ID, VendorID: uuid.New(), PaymentSourceID: "cnon:ok",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestCancelHold(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.BookingConfig{})
	ctx := context.Background()
	event, stalls := f.seedPublishedEvent(t, 1)
	vendorID := uuid.New()

	if _, err := f.svc.RequestHold(ctx, RequestHoldInput{
		EventID: event.ID, StallID: stalls[0].ID, VendorID: vendorID,
	}); err != nil {
		t.Fatalf("hold: %v", err)
	}

	released, err := f.svc.CancelHold(ctx, CancelHoldInput{
		StallID: stalls[0].ID, VendorID: vendorID,
	})
	if err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if released.State != enums.ReservationStateReleased {
		t.Fatalf("expected released, got %s", released.State)
	}

	// Canceling again is a state conflict, not a silent no-op.
	_, err = f.svc.CancelHold(ctx, CancelHoldInput{
		StallID: stalls[0].ID, VendorID: vendorID,
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict on double cancel, got %v", err)
	}
}

func TestCancelHoldForeignHoldForbidden(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.BookingConfig{})
	ctx := context.Background()
	event, stalls := f.seedPublishedEvent(t, 1)

	if _, err := f.svc.RequestHold(ctx, RequestHoldInput{
		EventID: event.ID, StallID: stalls[0].ID, VendorID: uuid.New(),
	}); err != nil {
		t.Fatalf("hold: %v", err)
	}

	_, err := f.svc.CancelHold(ctx, CancelHoldInput{
		StallID: stalls[0].ID, VendorID: uuid.New(),
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}

func TestAdminRelease(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.BookingConfig{})
	ctx := context.Background()
	event, stalls := f.seedPublishedEvent(t, 1)
	vendorID := uuid.New()

	if _, err := f.svc.RequestHold(ctx, RequestHoldInput{
		EventID: event.ID, StallID: stalls[0].ID, VendorID: vendorID,
	}); err != nil {
		t.Fatalf("hold: %v", err)
	}

	// Admin release only applies to confirmed stalls.
	_, err := f.svc.AdminRelease(ctx, AdminReleaseInput{
		StallID: stalls[0].ID, AdminID: uuid.New(), Reason: "vendor no-show",
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict on held stall, got %v", err)
	}

	if _, err := f.svc.ConfirmHold(ctx, ConfirmHoldInput{
		StallID: stalls[0].ID, VendorID: vendorID, PaymentSourceID: "cnon:ok",
	}); err != nil {
		t.Fatalf("confirm: %v", err)
	}

	released, err := f.svc.AdminRelease(ctx, AdminReleaseInput{
		StallID: stalls[0].ID, AdminID: uuid.New(), Reason: "vendor no-show",
	})
	if err != nil {
		t.Fatalf("admin release: %v", err)
	}
	if released.State != enums.ReservationStateReleased {
		t.Fatalf("expected released, got %s", released.State)
	}

	// Released stalls re-enter the pool.
	if _, err := f.svc.RequestHold(ctx, RequestHoldInput{
		EventID: event.ID, StallID: stalls[0].ID, VendorID: uuid.New(),
	}); err != nil {
		t.Fatalf("re-hold after admin release: %v", err)
	}
}

// TestBookingLifecycleWithSweep walks a small market end to end: one vendor
// confirms, another lets their hold lapse, and the sweep puts the lapsed
// stall back on the market without touching the confirmed one.
func TestBookingLifecycleWithSweep(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.BookingConfig{HoldTTL: 10 * time.Minute})
	ctx := context.Background()
	event, stalls := f.seedPublishedEvent(t, 3)
	vendorA := uuid.New()
	vendorB := uuid.New()

	if _, err := f.svc.RequestHold(ctx, RequestHoldInput{
		EventID: event.ID, StallID: stalls[0].ID, VendorID: vendorA,
	}); err != nil {
		t.Fatalf("vendor A hold: %v", err)
	}
	if _, err := f.svc.ConfirmHold(ctx, ConfirmHoldInput{
		StallID: stalls[0].ID, VendorID: vendorA, PaymentSourceID: "cnon:ok",
	}); err != nil {
		t.Fatalf("vendor A confirm: %v", err)
	}

	if _, err := f.svc.RequestHold(ctx, RequestHoldInput{
		EventID: event.ID, StallID: stalls[1].ID, VendorID: vendorB,
	}); err != nil {
		t.Fatalf("vendor B hold: %v", err)
	}

	// Vendor B walks away and the TTL lapses.
	f.now = f.now.Add(11 * time.Minute)

	job, err := sweeper.NewHoldExpiryJob(sweeper.HoldExpiryJobParams{
		Logger: logger.New(logger.Options{Level: zerolog.ErrorLevel}),
		DB:     db.NewFromGorm(f.conn),
		Ledger: f.ledger,
		Outbox: f.outbox,
		Now:    func() time.Time { return f.now },
	})
	if err != nil {
		t.Fatalf("hold expiry job: %v", err)
	}
	if err := job.Run(ctx); err != nil {
		t.Fatalf("sweep: %v", err)
	}

	records, err := f.svc.Availability(ctx, event.ID)
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	byStall := map[uuid.UUID]enums.ReservationState{}
	for _, record := range records {
		byStall[record.StallID] = record.State
	}
	if got := byStall[stalls[0].ID]; got != enums.ReservationStateConfirmed {
		t.Fatalf("expected stall 1 confirmed after sweep, got %s", got)
	}
	if got := byStall[stalls[1].ID]; got != enums.ReservationStateReleased {
		t.Fatalf("expected stall 2 released after sweep, got %s", got)
	}
	if got := byStall[stalls[2].ID]; got != enums.ReservationStateAvailable {
		t.Fatalf("expected stall 3 untouched, got %s", got)
	}

	expired := f.outbox.lastOfType(enums.EventStallExpired)
	if expired == nil {
		t.Fatal("expected stall_expired outbox event")
	}
	if expired.AggregateID != stalls[1].ID {
		t.Fatalf("expected expiry for stall %s, got %s", stalls[1].ID, expired.AggregateID)
	}

	// The reclaimed stall goes straight back on the market.
	if _, err := f.svc.RequestHold(ctx, RequestHoldInput{
		EventID: event.ID, StallID: stalls[1].ID, VendorID: vendorA,
	}); err != nil {
		t.Fatalf("re-hold after sweep: %v", err)
	}
}

func TestAvailability(t *testing.T) {
	t.Parallel()

	f := newFixture(t, config.BookingConfig{})
	ctx := context.Background()
	event, stalls := f.seedPublishedEvent(t, 3)
	vendorID := uuid.New()

	if _, err := f.svc.RequestHold(ctx, RequestHoldInput{
		EventID: event.ID, StallID: stalls[1].ID, VendorID: vendorID,
	}); err != nil {
		t.Fatalf("hold: %v", err)
	}

	records, err := f.svc.Availability(ctx, event.ID)
	if err != nil {
		t.Fatalf("availability: %v", err)
	}
	if len(records) != 3 {
		t.Fatalf("expected 3 records, got %d", len(records))
	}
	states := map[enums.ReservationState]int{}
	for _, record := range records {
		states[record.State]++
	}
	if states[enums.ReservationStateAvailable] != 2 || states[enums.ReservationStateHeld] != 1 {
		t.Fatalf("unexpected state mix: %v", states)
	}

	holds, err := f.svc.VendorHolds(ctx, vendorID)
	if err != nil {
		t.Fatalf("vendor holds: %v", err)
	}
	if len(holds) != 1 || holds[0].StallID != stalls[1].ID {
		t.Fatalf("unexpected vendor holds: %+v", holds)
	}
}
