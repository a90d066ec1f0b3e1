package controllers

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/bazaarly/bazaarly-backend/pkg/db/models"
)

type eventResponse struct {
	ID                    uuid.UUID  `json:"id"`
	OrganizerID           uuid.UUID  `json:"organizerId"`
	Title                 string     `json:"title"`
	Status                string     `json:"status"`
	ConfigurationComplete bool       `json:"configurationComplete"`
	PublishedAt           *time.Time `json:"publishedAt,omitempty"`
	ClosedAt              *time.Time `json:"closedAt,omitempty"`
	CreatedAt             time.Time  `json:"createdAt"`
}

func toEventResponse(event *models.Event) eventResponse {
	return eventResponse{
		ID:                    event.ID,
		OrganizerID:           event.OrganizerID,
		Title:                 event.Title,
		Status:                event.Status.String(),
		ConfigurationComplete: event.ConfigurationComplete,
		PublishedAt:           event.PublishedAt,
		ClosedAt:              event.ClosedAt,
		CreatedAt:             event.CreatedAt,
	}
}

func toEventResponses(events []models.Event) []eventResponse {
	out := make([]eventResponse, 0, len(events))
	for i := range events {
		out = append(out, toEventResponse(&events[i]))
	}
	return out
}

type stallResponse struct {
	ID          uuid.UUID       `json:"id"`
	EventID     uuid.UUID       `json:"eventId"`
	StallNumber int             `json:"stallNumber"`
	Category    string          `json:"category,omitempty"`
	Price       decimal.Decimal `json:"price"`
	X           float64         `json:"x"`
	Y           float64         `json:"y"`
	Width       float64         `json:"width"`
	Height      float64         `json:"height"`
}

func toStallResponses(stalls []models.Stall) []stallResponse {
	out := make([]stallResponse, 0, len(stalls))
	for _, stall := range stalls {
		out = append(out, stallResponse{
			ID:          stall.ID,
			EventID:     stall.EventID,
			StallNumber: stall.StallNumber,
			Category:    stall.Category,
			Price:       stall.Price,
			X:           stall.X,
			Y:           stall.Y,
			Width:       stall.Width,
			Height:      stall.Height,
		})
	}
	return out
}

type reservationResponse struct {
	StallID     uuid.UUID  `json:"stallId"`
	EventID     uuid.UUID  `json:"eventId"`
	State       string     `json:"state"`
	HolderID    *uuid.UUID `json:"holderId,omitempty"`
	HeldAt      *time.Time `json:"heldAt,omitempty"`
	ExpiresAt   *time.Time `json:"expiresAt,omitempty"`
	ConfirmedAt *time.Time `json:"confirmedAt,omitempty"`
	Version     int64      `json:"version"`
}

func toReservationResponse(record *models.ReservationRecord) reservationResponse {
	return reservationResponse{
		StallID:     record.StallID,
		EventID:     record.EventID,
		State:       record.State.String(),
		HolderID:    record.HolderID,
		HeldAt:      record.HeldAt,
		ExpiresAt:   record.ExpiresAt,
		ConfirmedAt: record.ConfirmedAt,
		Version:     record.Version,
	}
}

func toReservationResponses(records []models.ReservationRecord) []reservationResponse {
	out := make([]reservationResponse, 0, len(records))
	for i := range records {
		out = append(out, toReservationResponse(&records[i]))
	}
	return out
}
