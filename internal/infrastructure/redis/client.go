package redis

import (
	"context"
	"log/slog"
	"time"

	pkgerrors "github.com/honeynil/dreamnity-payments/pkg/errors"
	"github.com/redis/go-redis/v9"
)

// Client is the Redis-backed key/value store the store adapter persists through.
type Client struct {
	client *redis.Client
	ttl    time.Duration
}

// NewClient connects to addr. A zero ttl keeps keys forever.
func NewClient(ctx context.Context, addr string, ttl time.Duration) (*Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr: addr,
	})

	if err := client.Ping(ctx).Err(); err != nil {
		slog.Error("failed to connect to Redis", "addr", addr, "error", err)
		_ = client.Close()
		return nil, err
	}

	slog.Info("connected to Redis", "addr", addr)
	return &Client{client: client, ttl: ttl}, nil
}

func (c *Client) Get(ctx context.Context, key string) (string, error) {
	val, err := c.client.Get(ctx, key).Result()
	if err == redis.Nil {
		return "", pkgerrors.ErrKeyNotFound
	}
	if err != nil {
		return "", err
	}
	return val, nil
}

func (c *Client) Set(ctx context.Context, key string, value string) error {
	return c.client.Set(ctx, key, value, c.ttl).Err()
}

func (c *Client) Del(ctx context.Context, keys ...string) error {
	if len(keys) == 0 {
		return nil
	}
	return c.client.Del(ctx, keys...).Err()
}

func (c *Client) Close() error {
	return c.client.Close()
}
