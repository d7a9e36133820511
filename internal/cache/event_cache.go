package cache

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/tukio-events/tukio/internal/config"
	"github.com/tukio-events/tukio/internal/repository"
)

// EventCache is a best-effort read-through cache for single event lookups.
// Every error is treated as a miss: the database stays the source of
// truth and a dead Redis never takes the read path down with it.
type EventCache struct {
	client *redis.Client
	ttl    time.Duration
	logger *slog.Logger
}

func NewEventCache(cfg *config.Config, logger *slog.Logger) *EventCache {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisConfig.RedisAddress,
		Password: cfg.RedisConfig.RedisPassword,
		DB:       cfg.RedisConfig.RedisDB,
	})

	return &EventCache{
		client: client,
		ttl:    time.Second * time.Duration(cfg.RedisConfig.CacheTTLSeconds),
		logger: logger,
	}
}

func eventKey(id uuid.UUID) string {
	return "tukio:event:" + id.String()
}

// Get returns the cached event and whether the lookup hit.
func (c *EventCache) Get(ctx context.Context, id uuid.UUID) (repository.Event, bool) {
	raw, err := c.client.Get(ctx, eventKey(id)).Bytes()
	if err != nil {
		if err != redis.Nil {
			c.logger.Warn("Event cache read failed", slog.Any("error", err))
		}
		return repository.Event{}, false
	}

	var event repository.Event
	if err := json.Unmarshal(raw, &event); err != nil {
		c.logger.Warn("Discarding undecodable cache entry", slog.Any("error", err))
		return repository.Event{}, false
	}
	return event, true
}

// Set stores the event for the configured TTL.
func (c *EventCache) Set(ctx context.Context, event repository.Event) {
	raw, err := json.Marshal(event)
	if err != nil {
		c.logger.Warn("Failed to marshal event for cache", slog.Any("error", err))
		return
	}
	if err := c.client.Set(ctx, eventKey(event.ID), raw, c.ttl).Err(); err != nil {
		c.logger.Warn("Event cache write failed", slog.Any("error", err))
	}
}

// Invalidate drops the cached copy after any mutation (field update,
// delete, or a successful join changing the attendee set).
func (c *EventCache) Invalidate(ctx context.Context, id uuid.UUID) {
	if err := c.client.Del(ctx, eventKey(id)).Err(); err != nil {
		c.logger.Warn("Event cache invalidation failed", slog.Any("error", err))
	}
}

func (c *EventCache) Close() error {
	return c.client.Close()
}
