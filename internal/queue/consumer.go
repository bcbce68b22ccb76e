package queue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"

	"pollpick/internal/logger"
)

// Message is a parsed stream entry.
type Message struct {
	ID    string
	Event Event
}

type Consumer interface {
	// EnsureGroup creates the consumer group (and stream) if missing.
	EnsureGroup(ctx context.Context, stream, group string) error

	// Read returns new entries for consumer, blocking up to block.
	Read(ctx context.Context, stream, group, consumer string, count int64, block time.Duration) ([]Message, error)

	// ReadPending returns entries delivered to consumer but never acknowledged.
	ReadPending(ctx context.Context, stream, group, consumer string, count int64) ([]Message, error)

	Ack(ctx context.Context, stream, group string, messageIDs ...string) error

	Pending(ctx context.Context, stream, group string) (int64, error)
}

type RedisConsumer struct {
	client *redis.Client
	log    *slog.Logger
}

func NewConsumer(client *redis.Client) *RedisConsumer {
	return &RedisConsumer{client: client, log: logger.With("consumer")}
}

func (c *RedisConsumer) EnsureGroup(ctx context.Context, stream, group string) error {
	err := c.client.XGroupCreateMkStream(ctx, stream, group, "0").Err()
	if err != nil {
		if strings.HasPrefix(err.Error(), "BUSYGROUP") {
			return nil
		}
		return fmt.Errorf("create consumer group: %w", err)
	}
	c.log.Info("consumer group created", "stream", stream, "group", group)
	return nil
}

func (c *RedisConsumer) Read(ctx context.Context, stream, group, consumer string, count int64, block time.Duration) ([]Message, error) {
	// ">" delivers only entries never handed to any consumer of the group.
	return c.read(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, ">"},
		Count:    count,
		Block:    block,
	})
}

func (c *RedisConsumer) ReadPending(ctx context.Context, stream, group, consumer string, count int64) ([]Message, error) {
	return c.read(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, "0"},
		Count:    count,
	})
}

func (c *RedisConsumer) read(ctx context.Context, args *redis.XReadGroupArgs) ([]Message, error) {
	streams, err := c.client.XReadGroup(ctx, args).Result()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("xreadgroup: %w", err)
	}

	var messages []Message
	for _, s := range streams {
		for _, msg := range s.Messages {
			event, err := ParseEvent(msg.Values)
			if err != nil {
				// Malformed entries are acked so they do not block the pending list.
				c.log.Warn("skipping malformed entry", "message_id", msg.ID, "error", err)
				_ = c.client.XAck(ctx, args.Streams[0], args.Group, msg.ID).Err()
				continue
			}
			messages = append(messages, Message{ID: msg.ID, Event: event})
		}
	}
	return messages, nil
}

func (c *RedisConsumer) Ack(ctx context.Context, stream, group string, messageIDs ...string) error {
	if len(messageIDs) == 0 {
		return nil
	}
	if err := c.client.XAck(ctx, stream, group, messageIDs...).Err(); err != nil {
		return fmt.Errorf("xack: %w", err)
	}
	return nil
}

func (c *RedisConsumer) Pending(ctx context.Context, stream, group string) (int64, error) {
	info, err := c.client.XPending(ctx, stream, group).Result()
	if err != nil {
		return 0, fmt.Errorf("xpending: %w", err)
	}
	return info.Count, nil
}
