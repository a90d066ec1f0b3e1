package enums

import "fmt"

// OutboxAggregateType maps to the aggregate_type enum in Postgres.
type OutboxAggregateType string

const (
	AggregateEvent OutboxAggregateType = "event"
	AggregateStall OutboxAggregateType = "stall"
)

var validAggregateTypes = []OutboxAggregateType{
	AggregateEvent,
	AggregateStall,
}

// IsValid reports whether the value matches the canonical aggregate_type enum.
func (a OutboxAggregateType) IsValid() bool {
	for _, candidate := range validAggregateTypes {
		if candidate == a {
			return true
		}
	}
	return false
}

// ParseOutboxAggregateType converts raw input into OutboxAggregateType.
func ParseOutboxAggregateType(value string) (OutboxAggregateType, error) {
	for _, candidate := range validAggregateTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid aggregate type %q", value)
}

// OutboxEventType maps to the event_type enum in Postgres.
type OutboxEventType string

const (
	EventEventPublished OutboxEventType = "event_published"
	EventEventClosed    OutboxEventType = "event_closed"
	EventStallHeld      OutboxEventType = "stall_held"
	EventStallConfirmed OutboxEventType = "stall_confirmed"
	EventStallReleased  OutboxEventType = "stall_released"
	EventStallExpired   OutboxEventType = "stall_expired"
)

var validOutboxEventTypes = []OutboxEventType{
	EventEventPublished,
	EventEventClosed,
	EventStallHeld,
	EventStallConfirmed,
	EventStallReleased,
	EventStallExpired,
}

// IsValid reports whether the value matches the canonical event_type enum.
func (e OutboxEventType) IsValid() bool {
	for _, candidate := range validOutboxEventTypes {
		if candidate == e {
			return true
		}
	}
	return false
}

// ParseOutboxEventType converts raw input into OutboxEventType.
func ParseOutboxEventType(value string) (OutboxEventType, error) {
	for _, candidate := range validOutboxEventTypes {
		if string(candidate) == value {
			return candidate, nil
		}
	}
	return "", fmt.Errorf("invalid event type %q", value)
}
