package layout

import (
	"context"
	"testing"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"

	"github.com/bazaarly/bazaarly-backend/internal/events"
	"github.com/bazaarly/bazaarly-backend/pkg/db"
	"github.com/bazaarly/bazaarly-backend/pkg/db/models"
	"github.com/bazaarly/bazaarly-backend/pkg/enums"
	pkgerrors "github.com/bazaarly/bazaarly-backend/pkg/errors"
	"github.com/bazaarly/bazaarly-backend/pkg/logger"
)

func newTestDB(t *testing.T) *gorm.DB {
	t.Helper()
	dsn := "file:layout_" + uuid.NewString() + "?mode=memory&cache=shared"
	conn, err := gorm.Open(sqlite.Open(dsn), &gorm.Config{})
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	if err := conn.AutoMigrate(&models.Event{}, &models.Stall{}); err != nil {
		t.Fatalf("migrate: %v", err)
	}
	return conn
}

func newTestService(t *testing.T, conn *gorm.DB) Service {
	t.Helper()
	svc, err := NewService(ServiceParams{
		Repo:      NewRepository(conn),
		EventRepo: events.NewRepository(conn),
		DB:        db.NewFromGorm(conn),
		Logger:    logger.New(logger.Options{Level: zerolog.ErrorLevel}),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}
	return svc
}

func seedEvent(t *testing.T, conn *gorm.DB, organizerID uuid.UUID, status enums.EventStatus) *models.Event {
	t.Helper()
	event := &models.Event{
		ID:          uuid.New(),
		OrganizerID: organizerID,
		Title:       "Riverside Market",
		Status:      status,
	}
	if err := conn.Create(event).Error; err != nil {
		t.Fatalf("seed event: %v", err)
	}
	return event
}

func stallAt(number int, x, y, w, h float64) StallInput {
	return StallInput{
		StallNumber: number,
		Category:    "food",
		Price:       decimal.NewFromInt(120),
		X:           x,
		Y:           y,
		Width:       w,
		Height:      h,
	}
}

func TestDefineStalls(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	organizerID := uuid.New()
	event := seedEvent(t, conn, organizerID, enums.EventStatusDraft)
	svc := newTestService(t, conn)

	stalls, err := svc.DefineStalls(context.Background(), DefineStallsInput{
		EventID:     event.ID,
		OrganizerID: organizerID,
		Stalls: []StallInput{
			stallAt(2, 10, 0, 10, 10),
			stallAt(1, 0, 0, 10, 10),
		},
	})
	if err != nil {
		t.Fatalf("define stalls: %v", err)
	}
	if len(stalls) != 2 {
		t.Fatalf("expected 2 stalls, got %d", len(stalls))
	}

	listed, err := svc.GetStalls(context.Background(), event.ID)
	if err != nil {
		t.Fatalf("get stalls: %v", err)
	}
	if len(listed) != 2 {
		t.Fatalf("expected 2 listed stalls, got %d", len(listed))
	}
	if listed[0].StallNumber != 1 || listed[1].StallNumber != 2 {
		t.Fatalf("expected stalls ordered by number, got %d then %d", listed[0].StallNumber, listed[1].StallNumber)
	}

	var updated models.Event
	if err := conn.First(&updated, "id = ?", event.ID).Error; err != nil {
		t.Fatalf("load event: %v", err)
	}
	if !updated.ConfigurationComplete {
		t.Fatal("expected configuration_complete to be set")
	}
}

func TestDefineStallsReplacesPreviousLayout(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	organizerID := uuid.New()
	event := seedEvent(t, conn, organizerID, enums.EventStatusDraft)
	svc := newTestService(t, conn)
	ctx := context.Background()

	if _, err := svc.DefineStalls(ctx, DefineStallsInput{
		EventID:     event.ID,
		OrganizerID: organizerID,
		Stalls:      []StallInput{stallAt(1, 0, 0, 10, 10), stallAt(2, 20, 0, 10, 10)},
	}); err != nil {
		t.Fatalf("first save: %v", err)
	}

	stalls, err := svc.DefineStalls(ctx, DefineStallsInput{
		EventID:     event.ID,
		OrganizerID: organizerID,
		Stalls:      []StallInput{stallAt(7, 0, 0, 5, 5)},
	})
	if err != nil {
		t.Fatalf("second save: %v", err)
	}
	if len(stalls) != 1 || stalls[0].StallNumber != 7 {
		t.Fatalf("unexpected stalls after replace: %+v", stalls)
	}

	var count int64
	if err := conn.Model(&models.Stall{}).Where("event_id = ?", event.ID).Count(&count).Error; err != nil {
		t.Fatalf("count stalls: %v", err)
	}
	if count != 1 {
		t.Fatalf("expected 1 stall row, got %d", count)
	}
}

func TestDefineStallsRejectsOverlap(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	organizerID := uuid.New()
	event := seedEvent(t, conn, organizerID, enums.EventStatusDraft)
	svc := newTestService(t, conn)

	_, err := svc.DefineStalls(context.Background(), DefineStallsInput{
		EventID:     event.ID,
		OrganizerID: organizerID,
		Stalls: []StallInput{
			stallAt(1, 0, 0, 10, 10),
			stallAt(2, 5, 5, 10, 10),
		},
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for overlap, got %v", err)
	}
}

func TestDefineStallsAllowsTouchingEdges(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	organizerID := uuid.New()
	event := seedEvent(t, conn, organizerID, enums.EventStatusDraft)
	svc := newTestService(t, conn)

	_, err := svc.DefineStalls(context.Background(), DefineStallsInput{
		EventID:     event.ID,
		OrganizerID: organizerID,
		Stalls: []StallInput{
			stallAt(1, 0, 0, 10, 10),
			stallAt(2, 10, 0, 10, 10),
		},
	})
	if err != nil {
		t.Fatalf("expected touching stalls to be accepted, got %v", err)
	}
}

func TestDefineStallsValidation(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	organizerID := uuid.New()
	event := seedEvent(t, conn, organizerID, enums.EventStatusDraft)
	svc := newTestService(t, conn)

	tests := []struct {
		name   string
		stalls []StallInput
	}{
		{name: "empty layout", stalls: nil},
		{name: "duplicate numbers", stalls: []StallInput{stallAt(1, 0, 0, 10, 10), stallAt(1, 20, 0, 10, 10)}},
		{name: "zero width", stalls: []StallInput{stallAt(1, 0, 0, 0, 10)}},
		{name: "negative price", stalls: []StallInput{{
			StallNumber: 1, Price: decimal.NewFromInt(-5), X: 0, Y: 0, Width: 10, Height: 10,
		}}},
		{name: "zero price", stalls: []StallInput{{
			StallNumber: 1, Price: decimal.Zero, X: 0, Y: 0, Width: 10, Height: 10,
		}}},
		{name: "non-positive number", stalls: []StallInput{stallAt(0, 0, 0, 10, 10)}},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := svc.DefineStalls(context.Background(), DefineStallsInput{
				EventID:     event.ID,
				OrganizerID: organizerID,
				Stalls:      tc.stalls,
			})
			if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
				t.Fatalf("expected validation error, got %v", err)
			}
		})
	}
}

func TestDefineStallsZeroPriceLeavesConfigurationIncomplete(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	organizerID := uuid.New()
	event := seedEvent(t, conn, organizerID, enums.EventStatusDraft)
	svc := newTestService(t, conn)

	_, err := svc.DefineStalls(context.Background(), DefineStallsInput{
		EventID:     event.ID,
		OrganizerID: organizerID,
		Stalls: []StallInput{
			stallAt(1, 0, 0, 10, 10),
			{StallNumber: 2, Category: "food", Price: decimal.Zero, X: 20, Y: 0, Width: 10, Height: 10},
		},
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeValidation) {
		t.Fatalf("expected validation error for zero price, got %v", err)
	}

	var saved models.Event
	if err := conn.First(&saved, "id = ?", event.ID).Error; err != nil {
		t.Fatalf("load event: %v", err)
	}
	if saved.ConfigurationComplete {
		t.Fatal("a free stall must not mark the layout complete")
	}
}

// hookedTxRunner fires a hook once, just before the transaction starts, to
// stage a competing write that lands between a service's pre-checks and its
// transactional work.
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

func TestDefineStallsRacingPublishRollsBack(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	organizerID := uuid.New()
	event := seedEvent(t, conn, organizerID, enums.EventStatusDraft)
	svc := newTestService(t, conn)
	ctx := context.Background()

	if _, err := svc.DefineStalls(ctx, DefineStallsInput{
		EventID:     event.ID,
		OrganizerID: organizerID,
		Stalls:      []StallInput{stallAt(1, 0, 0, 10, 10), stallAt(2, 20, 0, 10, 10)},
	}); err != nil {
		t.Fatalf("first save: %v", err)
	}

	// The event publishes after the draft check but before the save's
	// transaction begins.
	runner := &hookedTxRunner{
		inner: db.NewFromGorm(conn),
		before: func() {
			if err := conn.Model(&models.Event{}).Where("id = ?", event.ID).
				Update("status", enums.EventStatusPublished).Error; err != nil {
				t.Fatalf("flip status: %v", err)
			}
		},
	}
	racing, err := NewService(ServiceParams{
		Repo:      NewRepository(conn),
		EventRepo: events.NewRepository(conn),
		DB:        runner,
		Logger:    logger.New(logger.Options{Level: zerolog.ErrorLevel}),
	})
	if err != nil {
		t.Fatalf("new service: %v", err)
	}

	_, err = racing.DefineStalls(ctx, DefineStallsInput{
		EventID:     event.ID,
		OrganizerID: organizerID,
		Stalls:      []StallInput{stallAt(9, 0, 0, 5, 5)},
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict for late save, got %v", err)
	}

	// The published layout is untouched.
	var count int64
	if err := conn.Model(&models.Stall{}).Where("event_id = ?", event.ID).Count(&count).Error; err != nil {
		t.Fatalf("count stalls: %v", err)
	}
	if count != 2 {
		t.Fatalf("expected the 2 published stalls to survive, got %d", count)
	}
}

func TestDefineStallsFrozenAfterPublish(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	organizerID := uuid.New()
	event := seedEvent(t, conn, organizerID, enums.EventStatusPublished)
	svc := newTestService(t, conn)

	_, err := svc.DefineStalls(context.Background(), DefineStallsInput{
		EventID:     event.ID,
		OrganizerID: organizerID,
		Stalls:      []StallInput{stallAt(1, 0, 0, 10, 10)},
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeStateConflict) {
		t.Fatalf("expected state conflict, got %v", err)
	}
}

func TestDefineStallsForbiddenForNonOwner(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	event := seedEvent(t, conn, uuid.New(), enums.EventStatusDraft)
	svc := newTestService(t, conn)

	_, err := svc.DefineStalls(context.Background(), DefineStallsInput{
		EventID:     event.ID,
		OrganizerID: uuid.New(),
		Stalls:      []StallInput{stallAt(1, 0, 0, 10, 10)},
	})
	if !pkgerrors.HasCode(err, pkgerrors.CodeForbidden) {
		t.Fatalf("expected forbidden, got %v", err)
	}
}
