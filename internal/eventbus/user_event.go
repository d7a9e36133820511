package eventbus

import (
	"time"

	"github.com/tukio-events/tukio/internal/repository"
)

// EventMetadata contains crucial information about the event itself.
type EventMetadata struct {
	EventType       string    `json:"event_type"`
	Timestamp       time.Time `json:"timestamp"`
	SourceServiceID string    `json:"source_service_id"`
	RequestID       string    `json:"request_id"`
}

// UserEvent defines the payload for account lifecycle events.
type UserEvent struct {
	User     repository.User `json:"user"`
	Metadata EventMetadata   `json:"meta"`
}
