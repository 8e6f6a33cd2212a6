package cache

import (
	"context"
	"fmt"
	"log"

	"github.com/redis/go-redis/v9"
)

const (
	// CounterPrefix is the key prefix for per-account unread counters,
	// keyed by access token.
	CounterPrefix = "notify:count:"

	// BadgeKey is the persisted slot holding the last computed aggregate
	// badge value.
	BadgeKey = "notify:badge"
)

// CounterStore persists per-account unread counters and the aggregate badge
// slot. Counters are keyed by access token only and survive process restarts.
// Using an interface enables testing with mocks and potential future backends.
type CounterStore interface {
	// Get returns the unread counter for an access token. Missing keys
	// read as zero.
	Get(ctx context.Context, accessToken string) (int, error)

	// Set overwrites the unread counter for an access token.
	Set(ctx context.Context, accessToken string, count int) error

	// Increment adds delta to the counter and returns the new value.
	Increment(ctx context.Context, accessToken string, delta int) (int, error)

	// Delete removes the counter for an access token (sign-out cleanup).
	Delete(ctx context.Context, accessToken string) error

	// SetBadgeTotal persists the aggregate badge slot.
	SetBadgeTotal(ctx context.Context, total int) error

	// BadgeTotal reads the persisted aggregate badge slot.
	BadgeTotal(ctx context.Context) (int, error)
}

// RedisCounterStore implements CounterStore on plain Redis keys.
type RedisCounterStore struct {
	client *redis.Client
}

// NewCounterStore creates a CounterStore backed by Redis.
func NewCounterStore(client *redis.Client) CounterStore {
	return &RedisCounterStore{client: client}
}

func counterKey(accessToken string) string {
	return CounterPrefix + accessToken
}

func (c *RedisCounterStore) Get(ctx context.Context, accessToken string) (int, error) {
	count, err := c.client.Get(ctx, counterKey(accessToken)).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		log.Printf("[CounterStore] Get FAILED: err=%v", err)
		return 0, fmt.Errorf("get counter: %w", err)
	}
	return count, nil
}

func (c *RedisCounterStore) Set(ctx context.Context, accessToken string, count int) error {
	if err := c.client.Set(ctx, counterKey(accessToken), count, 0).Err(); err != nil {
		log.Printf("[CounterStore] Set FAILED: count=%d err=%v", count, err)
		return fmt.Errorf("set counter: %w", err)
	}
	return nil
}

func (c *RedisCounterStore) Increment(ctx context.Context, accessToken string, delta int) (int, error) {
	count, err := c.client.IncrBy(ctx, counterKey(accessToken), int64(delta)).Result()
	if err != nil {
		log.Printf("[CounterStore] Increment FAILED: delta=%d err=%v", delta, err)
		return 0, fmt.Errorf("increment counter: %w", err)
	}
	return int(count), nil
}

func (c *RedisCounterStore) Delete(ctx context.Context, accessToken string) error {
	if err := c.client.Del(ctx, counterKey(accessToken)).Err(); err != nil {
		log.Printf("[CounterStore] Delete FAILED: err=%v", err)
		return fmt.Errorf("delete counter: %w", err)
	}
	return nil
}

func (c *RedisCounterStore) SetBadgeTotal(ctx context.Context, total int) error {
	if err := c.client.Set(ctx, BadgeKey, total, 0).Err(); err != nil {
		log.Printf("[CounterStore] SetBadgeTotal FAILED: total=%d err=%v", total, err)
		return fmt.Errorf("set badge total: %w", err)
	}
	return nil
}

func (c *RedisCounterStore) BadgeTotal(ctx context.Context) (int, error) {
	total, err := c.client.Get(ctx, BadgeKey).Int()
	if err == redis.Nil {
		return 0, nil
	}
	if err != nil {
		log.Printf("[CounterStore] BadgeTotal FAILED: err=%v", err)
		return 0, fmt.Errorf("get badge total: %w", err)
	}
	return total, nil
}
