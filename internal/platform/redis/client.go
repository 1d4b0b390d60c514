package redis

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"preclear/internal/platform/config"
)

// Client wraps the go-redis client backing the preclear token store.
type Client struct {
	*redis.Client
}

// New connects using the configured URL, or returns nil when redis is not
// configured. Token keys are tiny and short-lived, so the go-redis pool
// defaults are left alone; only the dial timeout is tunable.
func New(cfg config.RedisConfig) (*Client, error) {
	if cfg.URL == "" {
		return nil, nil
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}
	opts.DialTimeout = cfg.DialTimeout

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		_ = client.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Client{Client: client}, nil
}

// Health reports whether the connection still answers.
func (c *Client) Health(ctx context.Context) error {
	return c.Ping(ctx).Err()
}

func (c *Client) Close() error {
	return c.Client.Close()
}
