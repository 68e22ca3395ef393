package redis

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/google/uuid"
)

var (
	ErrCacheMiss   = errors.New("cache miss")
	ErrLockTimeout = errors.New("lock not acquired before deadline")
)

const lockPollInterval = 25 * time.Millisecond

// releaseScript deletes the lock only if it still holds our token.
var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`)

type Client struct {
	rdb      *redis.Client
	lockTTL  time.Duration
	lockWait time.Duration
}

type Option func(*Client)

// WithLockTTL bounds how long a crashed holder can keep a lock.
func WithLockTTL(ttl time.Duration) Option {
	return func(c *Client) {
		if ttl > 0 {
			c.lockTTL = ttl
		}
	}
}

// WithLockWait bounds how long Acquire polls for a busy lock.
func WithLockWait(wait time.Duration) Option {
	return func(c *Client) {
		if wait > 0 {
			c.lockWait = wait
		}
	}
}

func Initialize(redisURL string, opts ...Option) (*Client, error) {
	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("failed to parse Redis URL: %w", err)
	}

	rdb := redis.NewClient(opt)

	// Test connection
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := rdb.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("failed to connect to Redis: %w", err)
	}

	return NewClient(rdb, opts...), nil
}

func NewClient(rdb *redis.Client, opts ...Option) *Client {
	c := &Client{rdb: rdb, lockTTL: 15 * time.Second, lockWait: 5 * time.Second}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Distributed locks

// Acquire takes every key (in sorted order) and returns a function releasing them all.
// Keys already taken are released if a later key cannot be acquired in time.
func (c *Client) Acquire(ctx context.Context, keys ...string) (func(), error) {
	sorted := uniqueSorted(keys)
	token := uuid.NewString()
	held := make([]string, 0, len(sorted))

	release := func() {
		// release must run even when the request context is already cancelled
		releaseCtx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		for i := len(held) - 1; i >= 0; i-- {
			_ = releaseScript.Run(releaseCtx, c.rdb, []string{lockKey(held[i])}, token).Err()
		}
	}

	deadline := time.Now().Add(c.lockWait)
	for _, key := range sorted {
		if err := c.acquireOne(ctx, key, token, deadline); err != nil {
			release()
			return nil, err
		}
		held = append(held, key)
	}
	return release, nil
}

func (c *Client) acquireOne(ctx context.Context, key, token string, deadline time.Time) error {
	for {
		ok, err := c.rdb.SetNX(ctx, lockKey(key), token, c.lockTTL).Result()
		if err != nil {
			return fmt.Errorf("failed to acquire lock %s: %w", key, err)
		}
		if ok {
			return nil
		}
		if time.Now().After(deadline) {
			return fmt.Errorf("%w: %s", ErrLockTimeout, key)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(lockPollInterval):
		}
	}
}

func lockKey(key string) string {
	return "lock:" + key
}

func uniqueSorted(keys []string) []string {
	seen := make(map[string]struct{}, len(keys))
	out := make([]string, 0, len(keys))
	for _, k := range keys {
		if _, ok := seen[k]; ok {
			continue
		}
		seen[k] = struct{}{}
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Order stage caching
func (c *Client) SetOrderStage(ctx context.Context, orderID uint, stage string, ttl time.Duration) error {
	return c.rdb.Set(ctx, orderStageKey(orderID), stage, ttl).Err()
}

func (c *Client) GetOrderStage(ctx context.Context, orderID uint) (string, error) {
	val, err := c.rdb.Get(ctx, orderStageKey(orderID)).Result()
	if err != nil {
		if err == redis.Nil {
			return "", ErrCacheMiss
		}
		return "", fmt.Errorf("failed to get order stage: %w", err)
	}
	return val, nil
}

func (c *Client) DeleteOrderStage(ctx context.Context, orderID uint) error {
	return c.rdb.Del(ctx, orderStageKey(orderID)).Err()
}

func orderStageKey(orderID uint) string {
	return fmt.Sprintf("order_stage:%d", orderID)
}

// Ping reports whether Redis is reachable.
func (c *Client) Ping(ctx context.Context) error {
	return c.rdb.Ping(ctx).Err()
}

// Close Redis connection
func (c *Client) Close() error {
	return c.rdb.Close()
}
