package attendance

import (
	"context"
	"errors"
	"log/slog"
	"slices"

	"github.com/google/uuid"
	"github.com/tukio-events/tukio/internal/fanout"
	"github.com/tukio-events/tukio/internal/repository"
)

// ErrAlreadyRegistered is a benign rejection: the caller is on the list
// already and retrying will never change that.
var ErrAlreadyRegistered = errors.New("already registered for this event")

// Store is the slice of the event store the coordinator needs. It is
// satisfied by *repository.Queries.
type Store interface {
	FindEvent(ctx context.Context, id uuid.UUID) (repository.Event, error)
	AddAttendeeIfAbsent(ctx context.Context, eventID, accountID uuid.UUID) ([]uuid.UUID, bool, error)
}

// Publisher is the fan-out seam, satisfied by *fanout.Bus.
type Publisher interface {
	Publish(topic string, msg fanout.Message)
}

// Coordinator owns the join protocol: it enforces the no-duplicate
// invariant and notifies watchers after every successful mutation. It
// never caches attendee state; every mutation is delegated to the store's
// atomic conditional add.
type Coordinator struct {
	publisher Publisher
	logger    *slog.Logger
}

func NewCoordinator(publisher Publisher, logger *slog.Logger) *Coordinator {
	return &Coordinator{
		publisher: publisher,
		logger:    logger,
	}
}

// Join registers subjectID as an attendee of eventID and returns the
// updated attendee set.
//
// The membership precheck catches the common repeat-click case cheaply;
// when two joins race past it, the store's conditional add lets exactly
// one through and the loser is reported added=false, which maps to the
// same ErrAlreadyRegistered. The fan-out publish happens strictly after
// the write has been confirmed, so an indeterminate store outcome is
// never broadcast.
func (c *Coordinator) Join(ctx context.Context, store Store, eventID, subjectID uuid.UUID) ([]uuid.UUID, error) {
	event, err := store.FindEvent(ctx, eventID)
	if err != nil {
		return nil, err
	}

	if slices.Contains(event.Attendees, subjectID) {
		return nil, ErrAlreadyRegistered
	}

	attendees, added, err := store.AddAttendeeIfAbsent(ctx, eventID, subjectID)
	if err != nil {
		return nil, err
	}
	if !added {
		return nil, ErrAlreadyRegistered
	}

	// Fire-and-forget: the response already reflects the persisted state,
	// a watcher that misses this sees the truth on its next full fetch.
	c.publisher.Publish(eventID.String(), fanout.Message{
		EventID:   eventID,
		Attendees: attendees,
	})

	c.logger.Info("Attendee joined event",
		slog.String("event_id", eventID.String()),
		slog.String("subject_id", subjectID.String()),
		slog.Int("attendee_count", len(attendees)),
	)

	return attendees, nil
}
