package ledger

import (
	"context"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/bazaarly/bazaarly-backend/pkg/enums"
)

func TestRepositorySeedForEvent(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	eventID := uuid.New()
	stallIDs := []uuid.UUID{uuid.New(), uuid.New()}

	require.NoError(t, repo.SeedForEvent(ctx, eventID, stallIDs))
	require.NoError(t, repo.SeedForEvent(ctx, eventID, nil))

	rows, err := repo.ListByEvent(ctx, eventID)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	for _, row := range rows {
		assert.Equal(t, enums.ReservationStateAvailable, row.State)
		assert.EqualValues(t, 0, row.Version)
		assert.Nil(t, row.HolderID)
	}
}

func TestRepositoryApplyTransitionGuards(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	record := seedRecord(t, conn, uuid.New())
	vendorID := uuid.New()
	now := time.Now().UTC()
	expiresAt := now.Add(time.Minute)

	affected, err := repo.ApplyTransition(ctx, Transition{
		StallID:         record.StallID,
		FromState:       enums.ReservationStateAvailable,
		ExpectedVersion: 0,
		ToState:         enums.ReservationStateHeld,
		HolderID:        &vendorID,
		HeldAt:          &now,
		ExpiresAt:       &expiresAt,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 1, affected)

	// Same snapshot replayed: the state guard no longer matches.
	affected, err = repo.ApplyTransition(ctx, Transition{
		StallID:         record.StallID,
		FromState:       enums.ReservationStateAvailable,
		ExpectedVersion: 0,
		ToState:         enums.ReservationStateHeld,
		HolderID:        &vendorID,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 0, affected)

	// Right state, stale version.
	affected, err = repo.ApplyTransition(ctx, Transition{
		StallID:         record.StallID,
		FromState:       enums.ReservationStateHeld,
		ExpectedVersion: 5,
		ToState:         enums.ReservationStateReleased,
	})
	require.NoError(t, err)
	assert.EqualValues(t, 0, affected)

	updated, err := repo.Find(ctx, record.StallID)
	require.NoError(t, err)
	assert.Equal(t, enums.ReservationStateHeld, updated.State)
	assert.EqualValues(t, 1, updated.Version)
	require.NotNil(t, updated.HolderID)
	assert.Equal(t, vendorID, *updated.HolderID)
}

func TestRepositoryListExpiredHoldsOrdersByExpiry(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	eventID := uuid.New()
	now := time.Now().UTC()

	oldest := seedRecord(t, conn, eventID)
	newer := seedRecord(t, conn, eventID)
	live := seedRecord(t, conn, eventID)

	for _, tc := range []struct {
		stallID uuid.UUID
		heldAt  time.Time
		ttl     time.Duration
	}{
		{oldest.StallID, now.Add(-30 * time.Minute), 5 * time.Minute},
		{newer.StallID, now.Add(-10 * time.Minute), 5 * time.Minute},
		{live.StallID, now, time.Hour},
	} {
		vendorID := uuid.New()
		expiresAt := tc.heldAt.Add(tc.ttl)
		affected, err := repo.ApplyTransition(ctx, Transition{
			StallID:         tc.stallID,
			FromState:       enums.ReservationStateAvailable,
			ExpectedVersion: 0,
			ToState:         enums.ReservationStateHeld,
			HolderID:        &vendorID,
			HeldAt:          &tc.heldAt,
			ExpiresAt:       &expiresAt,
		})
		require.NoError(t, err)
		require.EqualValues(t, 1, affected)
	}

	rows, err := repo.ListExpiredHolds(ctx, now, 10)
	require.NoError(t, err)
	require.Len(t, rows, 2)
	assert.Equal(t, oldest.StallID, rows[0].StallID)
	assert.Equal(t, newer.StallID, rows[1].StallID)

	limited, err := repo.ListExpiredHolds(ctx, now, 1)
	require.NoError(t, err)
	require.Len(t, limited, 1)
	assert.Equal(t, oldest.StallID, limited[0].StallID)
}

func TestRepositoryWithTxSharesTransaction(t *testing.T) {
	t.Parallel()

	conn := newTestDB(t)
	repo := NewRepository(conn)
	ctx := context.Background()
	eventID := uuid.New()

	tx := conn.Begin()
	require.NoError(t, tx.Error)
	require.NoError(t, repo.WithTx(tx).SeedForEvent(ctx, eventID, []uuid.UUID{uuid.New()}))
	require.NoError(t, tx.Rollback().Error)

	rows, err := repo.ListByEvent(ctx, eventID)
	require.NoError(t, err)
	assert.Empty(t, rows)
}
