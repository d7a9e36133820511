package eventbus

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/tukio-events/tukio/internal/config"
	"github.com/tukio-events/tukio/internal/repository"
)

// AttendanceEventBus provides a type-safe API for event lifecycle and
// attendance integration events. This is cross-service plumbing over
// RabbitMQ; the live websocket updates go through the in-process fanout
// hub instead.
type AttendanceEventBus struct {
	bus    EventBus
	logger *slog.Logger
}

// NewAttendanceEventBus creates a new AttendanceEventBus instance.
func NewAttendanceEventBus(cfg *config.Config, logger *slog.Logger) (*AttendanceEventBus, error) {
	rabbitMQConnString := fmt.Sprintf("amqp://%s:%s@%s:%d/",
		cfg.RabbitMQConfig.RabbitMQUser,
		cfg.RabbitMQConfig.RabbitMQPass,
		cfg.RabbitMQConfig.RabbitMQAddress,
		cfg.RabbitMQConfig.RabbitMQPort,
	)

	rabbitMQBus, err := NewRabbitMQEventBus(
		rabbitMQConnString,
		cfg.RabbitMQConfig.Exchange,
	)

	if err != nil {
		logger.Error("Failed to initialize RabbitMQ event bus", "error", err)
		return nil, fmt.Errorf("failed to initialize RabbitMQ event bus: %w", err)
	}

	return &AttendanceEventBus{
		bus:    rabbitMQBus,
		logger: logger,
	}, nil
}

func (b *AttendanceEventBus) publishLifecycle(ctx context.Context, eventType string, event repository.Event, requestID string) error {
	payload := EventLifecycleEvent{
		Event: event,
		Metadata: EventMetadata{
			EventType:       eventType,
			Timestamp:       time.Now(),
			SourceServiceID: sourceServiceID,
			RequestID:       requestID,
		},
	}

	b.logger.Info("Publishing event lifecycle event",
		slog.String("event_type", eventType),
		slog.String("event_id", event.ID.String()),
		slog.String("request_id", requestID),
	)

	return b.bus.Publish(ctx, "", payload)
}

// PublishEventCreated publishes an event created event to the event bus
func (b *AttendanceEventBus) PublishEventCreated(ctx context.Context, event repository.Event, requestID string) error {
	return b.publishLifecycle(ctx, "event.created", event, requestID)
}

// PublishEventUpdated publishes an event updated event to the event bus
func (b *AttendanceEventBus) PublishEventUpdated(ctx context.Context, event repository.Event, requestID string) error {
	return b.publishLifecycle(ctx, "event.updated", event, requestID)
}

// PublishEventDeleted publishes an event deleted event to the event bus
func (b *AttendanceEventBus) PublishEventDeleted(ctx context.Context, event repository.Event, requestID string) error {
	return b.publishLifecycle(ctx, "event.deleted", event, requestID)
}

// PublishAttendeeJoined publishes the post-join attendee set to the event bus
func (b *AttendanceEventBus) PublishAttendeeJoined(ctx context.Context, eventID, subjectID uuid.UUID, attendees []uuid.UUID, requestID string) error {
	payload := AttendanceEvent{
		EventID:   eventID,
		SubjectID: subjectID,
		Attendees: attendees,
		Metadata: EventMetadata{
			EventType:       "attendee.joined",
			Timestamp:       time.Now(),
			SourceServiceID: sourceServiceID,
			RequestID:       requestID,
		},
	}

	b.logger.Info("Publishing attendee joined event",
		slog.String("event_id", eventID.String()),
		slog.String("subject_id", subjectID.String()),
		slog.String("request_id", requestID),
	)

	return b.bus.Publish(ctx, "", payload)
}

// Close tears down the underlying broker connection.
func (b *AttendanceEventBus) Close() {
	b.bus.Close()
}
