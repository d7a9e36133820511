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

const sourceServiceID = "events.tukio.api"

// UserEventBus provides a type-safe API for account lifecycle events.
// Events land on a fanout exchange; every downstream service that bound a
// queue gets its own copy, guests included.
type UserEventBus struct {
	bus    EventBus
	logger *slog.Logger
}

// NewUserEventBus creates a new UserEventBus instance.
func NewUserEventBus(cfg *config.Config, logger *slog.Logger) (*UserEventBus, error) {
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

	return &UserEventBus{
		bus:    rabbitMQBus,
		logger: logger,
	}, nil
}

// PublishUserRegistered publishes a user registered event to the event bus
func (b *UserEventBus) PublishUserRegistered(ctx context.Context, user repository.User, requestID string) error {
	event := UserEvent{
		User: user,
		Metadata: EventMetadata{
			EventType:       "user.registered",
			Timestamp:       time.Now(),
			SourceServiceID: sourceServiceID,
			RequestID:       requestID,
		},
	}

	b.logger.Info("Publishing user registered event",
		slog.String("user_id", user.ID.String()),
		slog.String("role", string(user.Role)),
		slog.String("request_id", requestID),
	)

	return b.bus.Publish(ctx, "", event)
}

// Close tears down the underlying broker connection.
func (b *UserEventBus) Close() {
	b.bus.Close()
}

// GenerateRequestID generates a unique request ID for event tracking
func GenerateRequestID() string {
	return uuid.New().String()
}
