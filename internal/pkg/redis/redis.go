package redis

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
)

// Client wraps go-redis with the few operations the app needs: rate-limit
// counters, one-shot markers and health pings.
type Client struct {
	rdb *redis.Client
}

// Connect creates a Redis client and verifies connectivity.
func Connect(url string) (*Client, error) {
	opts, err := redis.ParseURL(url)
	if err != nil {
		return nil, fmt.Errorf("invalid redis url: %w", err)
	}

	rdb := redis.NewClient(opts)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redis ping failed: %w", err)
	}
	return &Client{rdb: rdb}, nil
}

func (c *Client) Close() error { return c.rdb.Close() }

// SetOnce stores a marker under key for ttl. It reports false when the key
// was already present.
func (c *Client) SetOnce(ctx context.Context, key string, ttl time.Duration) (bool, error) {
	return c.rdb.SetNX(ctx, key, 1, ttl).Result()
}

// Hit counts one event in the fixed window opened by the first hit. It
// returns the count so far and the time left in the window.
func (c *Client) Hit(ctx context.Context, key string, window time.Duration) (int64, time.Duration, error) {
	count, err := c.rdb.Incr(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}
	if count == 1 {
		if err := c.rdb.PExpire(ctx, key, window).Err(); err != nil {
			return 0, 0, err
		}
		return count, window, nil
	}
	ttl, err := c.rdb.PTTL(ctx, key).Result()
	if err != nil {
		return 0, 0, err
	}
	if ttl < 0 {
		// The expiry was lost; start a new window.
		_ = c.rdb.PExpire(ctx, key, window).Err()
		ttl = window
	}
	return count, ttl, nil
}

// Release removes a marker set by SetOnce.
func (c *Client) Release(ctx context.Context, key string) error {
	return c.rdb.Del(ctx, key).Err()
}

// Ping reports whether the server answers.
func (c *Client) Ping(ctx context.Context) error { return c.rdb.Ping(ctx).Err() }
