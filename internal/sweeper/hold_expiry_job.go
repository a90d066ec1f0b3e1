package sweeper

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/bazaarly/bazaarly-backend/internal/ledger"
	"github.com/bazaarly/bazaarly-backend/pkg/db/models"
	"github.com/bazaarly/bazaarly-backend/pkg/enums"
	pkgerrors "github.com/bazaarly/bazaarly-backend/pkg/errors"
	"github.com/bazaarly/bazaarly-backend/pkg/logger"
	"github.com/bazaarly/bazaarly-backend/pkg/metrics"
	"github.com/bazaarly/bazaarly-backend/pkg/outbox"
	"github.com/bazaarly/bazaarly-backend/pkg/outbox/payloads"
)

const defaultExpiryBatchSize = 100

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type outboxEmitter interface {
	Emit(ctx context.Context, tx *gorm.DB, event outbox.DomainEvent) error
}

type expiredHoldLedger interface {
	ListExpiredHolds(ctx context.Context, cutoff time.Time, limit int) ([]models.ReservationRecord, error)
	TryTransition(ctx context.Context, tx *gorm.DB, transition ledger.Transition) (*models.ReservationRecord, error)
}

// HoldExpiryJobParams configure the hold expiry sweep.
type HoldExpiryJobParams struct {
	Logger    *logger.Logger
	DB        txRunner
	Ledger    expiredHoldLedger
	Outbox    outboxEmitter
	Metrics   *metrics.JobMetrics
	BatchSize int
	Now       func() time.Time
}

// NewHoldExpiryJob builds the job that reclaims lapsed holds. Each record is
// released with the same compare-and-swap the booking path uses, so a vendor
// confirming at the last instant wins over the sweep.
func NewHoldExpiryJob(params HoldExpiryJobParams) (Job, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db runner required")
	}
	if params.Ledger == nil {
		return nil, fmt.Errorf("ledger service required")
	}
	if params.Outbox == nil {
		return nil, fmt.Errorf("outbox service required")
	}
	batchSize := params.BatchSize
	if batchSize <= 0 {
		batchSize = defaultExpiryBatchSize
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &holdExpiryJob{
		logg:      params.Logger,
		db:        params.DB,
		ledger:    params.Ledger,
		outbox:    params.Outbox,
		metrics:   params.Metrics,
		batchSize: batchSize,
		now:       now,
	}, nil
}

type holdExpiryJob struct {
	logg      *logger.Logger
	db        txRunner
	ledger    expiredHoldLedger
	outbox    outboxEmitter
	metrics   *metrics.JobMetrics
	batchSize int
	now       func() time.Time
}

func (j *holdExpiryJob) Name() string { return "hold-expiry" }

func (j *holdExpiryJob) Run(ctx context.Context) error {
	cutoff := j.now().UTC()
	records, err := j.ledger.ListExpiredHolds(ctx, cutoff, j.batchSize)
	if err != nil {
		return fmt.Errorf("query expired holds: %w", err)
	}

	var errs []error
	released := 0
	for _, record := range records {
		switch err := j.expireHold(ctx, record); {
		case err == nil:
			released++
		case pkgerrors.HasCode(err, pkgerrors.CodeStateConflict),
			pkgerrors.HasCode(err, pkgerrors.CodeVersionConflict):
			// The row moved under us: the vendor confirmed or canceled
			// between the scan and the swap. Their write stands.
		default:
			errs = append(errs, fmt.Errorf("expire hold %s: %w", record.StallID, err))
		}
	}

	if released > 0 {
		j.metrics.AddExpiredHolds(j.Name(), released)
		logCtx := j.logg.WithField(ctx, "count", released)
		j.logg.Info(logCtx, "expired holds released")
	}
	return multierr.Combine(errs...)
}

func (j *holdExpiryJob) expireHold(ctx context.Context, record models.ReservationRecord) error {
	now := j.now().UTC()
	return j.db.WithTx(ctx, func(tx *gorm.DB) error {
		if _, err := j.ledger.TryTransition(ctx, tx, ledger.Transition{
			StallID:         record.StallID,
			FromState:       enums.ReservationStateHeld,
			ExpectedVersion: record.Version,
			ToState:         enums.ReservationStateReleased,
		}); err != nil {
			return err
		}
		event := outbox.DomainEvent{
			EventType:     enums.EventStallExpired,
			AggregateType: enums.AggregateStall,
			AggregateID:   record.StallID,
			Version:       1,
			OccurredAt:    now,
			Data: payloads.StallExpiredEvent{
				StallID:   record.StallID,
				EventID:   record.EventID,
				VendorID:  derefHolder(record.HolderID),
				ExpiredAt: now,
			},
		}
		return j.outbox.Emit(ctx, tx, event)
	})
}

func derefHolder(id *uuid.UUID) uuid.UUID {
	if id == nil {
		return uuid.Nil
	}
	return *id
}
