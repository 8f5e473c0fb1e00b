package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"meetslot/internal/availability"

	"github.com/redis/go-redis/v9"
)

const resultsKeyPrefix = "meetslot:results:"

// ResultCache keeps computed poll results in redis for a short TTL.
// A nil client or non-positive TTL disables it.
type ResultCache struct {
	redis *redis.Client
	ttl   time.Duration
}

func NewResultCache(client *redis.Client, ttl time.Duration) *ResultCache {
	return &ResultCache{redis: client, ttl: ttl}
}

func (c *ResultCache) enabled() bool {
	return c != nil && c.redis != nil && c.ttl > 0
}

func resultsKey(pollID string) string {
	return resultsKeyPrefix + pollID
}

// Get returns the cached result. A miss is (nil, nil).
func (c *ResultCache) Get(ctx context.Context, pollID string) (*availability.Result, error) {
	if !c.enabled() {
		return nil, nil
	}
	val, err := c.redis.Get(ctx, resultsKey(pollID)).Bytes()
	if errors.Is(err, redis.Nil) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read results cache: %w", err)
	}

	var res availability.Result
	if err := json.Unmarshal(val, &res); err != nil {
		// stale layout; treat as a miss
		return nil, nil
	}
	return &res, nil
}

func (c *ResultCache) Set(ctx context.Context, pollID string, res *availability.Result) error {
	if !c.enabled() || res == nil {
		return nil
	}
	data, err := json.Marshal(res)
	if err != nil {
		return fmt.Errorf("encode results: %w", err)
	}
	return c.redis.Set(ctx, resultsKey(pollID), data, c.ttl).Err()
}

func (c *ResultCache) Invalidate(ctx context.Context, pollID string) error {
	if !c.enabled() {
		return nil
	}
	return c.redis.Del(ctx, resultsKey(pollID)).Err()
}

func (c *ResultCache) Ping(ctx context.Context) error {
	if !c.enabled() {
		return nil
	}
	return c.redis.Ping(ctx).Err()
}
