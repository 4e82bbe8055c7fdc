package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "setlist:ratelimit:"

// RedisStore keeps admissions as keys that expire with the window.
type RedisStore struct {
	client *redis.Client
}

// NewRedisStore creates a RedisStore.
func NewRedisStore(client *redis.Client) *RedisStore {
	return &RedisStore{client: client}
}

func (s *RedisStore) TryConsume(
	ctx context.Context,
	key string,
	now time.Time,
	window time.Duration,
) (bool, time.Time, error) {
	redisKey := redisKeyPrefix + key

	err := s.client.SetArgs(ctx, redisKey, now.UnixMilli(), redis.SetArgs{
		Mode: "NX",
		TTL:  window,
	}).Err()
	if err == nil {
		return true, now, nil
	}
	if !errors.Is(err, redis.Nil) {
		return false, time.Time{}, fmt.Errorf("set rate limit: %w", err)
	}

	raw, err := s.client.Get(ctx, redisKey).Result()
	if errors.Is(err, redis.Nil) {
		// Expired between the two calls; try once more.
		return s.TryConsume(ctx, key, now, window)
	}
	if err != nil {
		return false, time.Time{}, fmt.Errorf("read rate limit: %w", err)
	}

	ms, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		return false, time.Time{}, fmt.Errorf("parse rate limit %q: %w", raw, err)
	}

	return false, time.UnixMilli(ms).UTC(), nil
}
