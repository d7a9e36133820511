package eventbus

import (
	"github.com/google/uuid"
	"github.com/tukio-events/tukio/internal/repository"
)

// EventLifecycleEvent defines the payload for event CRUD notifications.
type EventLifecycleEvent struct {
	Event    repository.Event `json:"event"`
	Metadata EventMetadata    `json:"meta"`
}

// AttendanceEvent defines the payload emitted whenever an attendee is
// added to an event. Carries the full post-mutation set so consumers do
// not need a read back.
type AttendanceEvent struct {
	EventID   uuid.UUID     `json:"event_id"`
	SubjectID uuid.UUID     `json:"subject_id"`
	Attendees []uuid.UUID   `json:"attendees"`
	Metadata  EventMetadata `json:"meta"`
}
