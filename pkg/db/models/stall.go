package models

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Stall is a single physical pitch inside an event layout. Geometry is an
// axis-aligned rectangle on the organizer's canvas. Rows are frozen once the
// owning event is published.
type Stall struct {
	ID          uuid.UUID       `gorm:"column:id;type:uuid;primaryKey"`
	EventID     uuid.UUID       `gorm:"column:event_id;type:uuid;not null;uniqueIndex:ux_stalls_event_number,priority:1"`
	StallNumber int             `gorm:"column:stall_number;not null;uniqueIndex:ux_stalls_event_number,priority:2"`
	Category    string          `gorm:"column:category;not null;default:''"`
	Price       decimal.Decimal `gorm:"column:price;type:numeric(12,2);not null"`
	X           float64         `gorm:"column:x;not null"`
	Y           float64         `gorm:"column:y;not null"`
	Width       float64         `gorm:"column:width;not null"`
	Height      float64         `gorm:"column:height;not null"`
	CreatedAt   time.Time       `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt   time.Time       `gorm:"column:updated_at;autoUpdateTime"`
}
