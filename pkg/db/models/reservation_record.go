package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/bazaarly/bazaarly-backend/pkg/enums"
)

// ReservationRecord is the authoritative booking state for one stall. Exactly
// one row exists per stall once the owning event publishes; rows are never
// deleted, only transitioned. Version is the optimistic-concurrency counter:
// every successful transition increments it, and a transition only applies
// when both the expected state and the expected version still match.
type ReservationRecord struct {
	StallID     uuid.UUID              `gorm:"column:stall_id;type:uuid;primaryKey"`
	EventID     uuid.UUID              `gorm:"column:event_id;type:uuid;not null;index"`
	State       enums.ReservationState `gorm:"column:state;type:reservation_state;not null;default:'available'"`
	HolderID    *uuid.UUID             `gorm:"column:holder_id;type:uuid"`
	HeldAt      *time.Time             `gorm:"column:held_at"`
	ExpiresAt   *time.Time             `gorm:"column:expires_at;index"`
	ConfirmedAt *time.Time             `gorm:"column:confirmed_at"`
	Version     int64                  `gorm:"column:version;not null;default:0"`
	CreatedAt   time.Time              `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time              `gorm:"column:updated_at;autoUpdateTime"`
}
