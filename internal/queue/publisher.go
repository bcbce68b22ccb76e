package queue

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/redis/go-redis/v9"

	"pollpick/internal/logger"
	"pollpick/internal/push"
)

type Publisher interface {
	// Publish appends event to stream and returns the Redis message ID.
	Publish(ctx context.Context, stream string, event Event) (messageID string, err error)
}

type RedisPublisher struct {
	client *redis.Client
	log    *slog.Logger
}

func NewPublisher(client *redis.Client) *RedisPublisher {
	return &RedisPublisher{client: client, log: logger.With("publisher")}
}

func (p *RedisPublisher) Publish(ctx context.Context, stream string, event Event) (string, error) {
	startTime := time.Now()

	values, err := event.ToMap()
	if err != nil {
		return "", fmt.Errorf("serialize event: %w", err)
	}

	messageID, err := p.client.XAdd(ctx, &redis.XAddArgs{
		Stream: stream,
		Values: values,
	}).Result()
	if err != nil {
		p.log.Error("publish failed", "stream", stream, "type", event.Type, "error", err)
		return "", fmt.Errorf("xadd to stream: %w", err)
	}

	p.log.Debug("published",
		"stream", stream,
		"type", event.Type,
		"message_id", messageID,
		"duration", time.Since(startTime))
	return messageID, nil
}

// Dispatch queues n on the push stream for the worker pool, so services can
// use the publisher wherever they would call the dispatcher directly.
func (p *RedisPublisher) Dispatch(ctx context.Context, n push.Notification) error {
	_, err := p.Publish(ctx, StreamPush, NewPushEvent(n))
	return err
}
