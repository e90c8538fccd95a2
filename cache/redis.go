package cache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"

	"github.com/guided-traffic/meetup-client/models"
)

const keyPrefix = "meetup:badges:"

// RedisBadgeCache shares badge lists through redis. The list lives at
// meetup:badges:{user} and a separate :stale key marks it invalidated, so
// the list itself survives an invalidation.
type RedisBadgeCache struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisBadgeCache connects to redisURL and checks the connection
func NewRedisBadgeCache(ctx context.Context, redisURL string, ttl time.Duration) (*RedisBadgeCache, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("invalid REDIS_URL: %w", err)
	}
	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("redis connect failed: %w", err)
	}
	return &RedisBadgeCache{rdb: rdb, ttl: ClampTTL(ttl)}, nil
}

// Close releases the connection pool
func (c *RedisBadgeCache) Close() error {
	return c.rdb.Close()
}

func (c *RedisBadgeCache) Get(ctx context.Context, userID string) (*Entry, error) {
	key := keyPrefix + userID
	data, err := c.rdb.Get(ctx, key).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read badge cache: %w", err)
	}

	var e Entry
	if err := json.Unmarshal(data, &e); err != nil {
		// Unreadable entries are treated as a miss
		c.rdb.Del(ctx, key)
		return nil, nil
	}

	stale, err := c.rdb.Exists(ctx, key+":stale").Result()
	if err != nil {
		return nil, fmt.Errorf("failed to read badge cache: %w", err)
	}
	e.Stale = stale > 0 || time.Now().After(e.ExpiresAt)
	return &e, nil
}

func (c *RedisBadgeCache) Set(ctx context.Context, userID string, badges []models.UserBadge) error {
	now := time.Now()
	data, err := json.Marshal(Entry{Badges: badges, FetchedAt: now, ExpiresAt: now.Add(c.ttl)})
	if err != nil {
		return fmt.Errorf("failed to encode badge cache: %w", err)
	}

	key := keyPrefix + userID
	// The list outlives its TTL so it can be served stale while refetching
	_, err = c.rdb.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.Set(ctx, key, data, c.ttl*2)
		pipe.Del(ctx, key+":stale")
		return nil
	})
	if err != nil {
		return fmt.Errorf("failed to write badge cache: %w", err)
	}
	return nil
}

func (c *RedisBadgeCache) Invalidate(ctx context.Context, userID string) error {
	if err := c.rdb.Set(ctx, keyPrefix+userID+":stale", 1, c.ttl*2).Err(); err != nil {
		return fmt.Errorf("failed to invalidate badge cache: %w", err)
	}
	return nil
}
