package models

import (
	"time"

	"github.com/google/uuid"

	"github.com/bazaarly/bazaarly-backend/pkg/enums"
)

// Event is a published or draft marketplace event owned by an organizer.
//
// Status only moves draft -> published (via the publication gate, and only
// once the layout is complete) and published -> closed. ConfigurationComplete
// is maintained by the layout store whenever stalls are defined.
type Event struct {
	ID                    uuid.UUID         `gorm:"column:id;type:uuid;primaryKey"`
	OrganizerID           uuid.UUID         `gorm:"column:organizer_id;type:uuid;not null;index"`
	Title                 string            `gorm:"column:title;not null"`
	Status                enums.EventStatus `gorm:"column:status;type:event_status;not null;default:'draft'"`
	ConfigurationComplete bool              `gorm:"column:configuration_complete;not null;default:false"`
	PublishedAt           *time.Time        `gorm:"column:published_at"`
	ClosedAt              *time.Time        `gorm:"column:closed_at"`
	Stalls                []Stall           `gorm:"foreignKey:EventID;constraint:OnDelete:CASCADE"`
	CreatedAt             time.Time         `gorm:"column:created_at;autoCreateTime"`
	UpdatedAt             time.Time         `gorm:"column:updated_at;autoUpdateTime"`
}
