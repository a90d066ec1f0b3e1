package payloads

import (
	"time"

	"github.com/google/uuid"
)

// EventPublishedEvent announces that an event's layout went live and its
// reservation ledger was seeded.
type EventPublishedEvent struct {
	EventID     uuid.UUID `json:"eventId"`
	OrganizerID uuid.UUID `json:"organizerId"`
	StallCount  int       `json:"stallCount"`
	PublishedAt time.Time `json:"publishedAt"`
}

// EventClosedEvent announces that booking has ended for an event.
type EventClosedEvent struct {
	EventID  uuid.UUID `json:"eventId"`
	ClosedAt time.Time `json:"closedAt"`
}

// StallHeldEvent is emitted when a vendor wins a hold on a stall.
type StallHeldEvent struct {
	StallID   uuid.UUID `json:"stallId"`
	EventID   uuid.UUID `json:"eventId"`
	VendorID  uuid.UUID `json:"vendorId"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// StallConfirmedEvent is emitted when a held stall converts into a booking.
type StallConfirmedEvent struct {
	StallID     uuid.UUID `json:"stallId"`
	EventID     uuid.UUID `json:"eventId"`
	VendorID    uuid.UUID `json:"vendorId"`
	PaymentRef  string    `json:"paymentRef,omitempty"`
	ConfirmedAt time.Time `json:"confirmedAt"`
}

// StallReleasedEvent is emitted when a stall returns to the open pool, either
// by vendor cancel, payment failure, or admin action.
type StallReleasedEvent struct {
	StallID    uuid.UUID  `json:"stallId"`
	EventID    uuid.UUID  `json:"eventId"`
	VendorID   *uuid.UUID `json:"vendorId,omitempty"`
	Reason     string     `json:"reason,omitempty"`
	ReleasedAt time.Time  `json:"releasedAt"`
}

// StallExpiredEvent is emitted when the sweeper reclaims a lapsed hold.
type StallExpiredEvent struct {
	StallID   uuid.UUID `json:"stallId"`
	EventID   uuid.UUID `json:"eventId"`
	VendorID  uuid.UUID `json:"vendorId"`
	ExpiredAt time.Time `json:"expiredAt"`
}
