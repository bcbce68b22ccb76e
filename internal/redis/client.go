package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client is the shared Redis connection used by the push stream publisher and workers.
type Client struct {
	*redis.Client
}

// Connect parses a redis:// URL, opens a pooled client and pings it so startup fails fast.
func Connect(ctx context.Context, redisURL string) (*Client, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis url: %w", err)
	}

	c := &Client{Client: redis.NewClient(opts)}

	pingCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := c.Client.Ping(pingCtx).Err(); err != nil {
		_ = c.Client.Close()
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return c, nil
}
