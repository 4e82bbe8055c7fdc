package lock

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	infralogger "github.com/jonesrussell/setlist/infrastructure/logger"
	"github.com/redis/go-redis/v9"
)

// Defaults used when RedisConfig leaves a field zero.
const (
	DefaultTTL        = time.Minute
	DefaultRetryDelay = 50 * time.Millisecond
	DefaultWait       = 2 * time.Minute

	keyPrefix      = "setlist:lock:"
	releaseTimeout = 2 * time.Second
)

// releaseScript deletes the key only if it still holds our token.
var releaseScript = redis.NewScript(`
	if redis.call("get", KEYS[1]) == ARGV[1] then
		return redis.call("del", KEYS[1])
	else
		return 0
	end
`)

// RedisConfig configures a Redis locker. TTL must outlast the longest
// critical section; Wait bounds how long a caller queues behind holders.
type RedisConfig struct {
	TTL        time.Duration
	RetryDelay time.Duration
	Wait       time.Duration
}

// Redis is a Locker backed by SET NX with an owner token.
type Redis struct {
	client *redis.Client
	cfg    RedisConfig
	logger infralogger.Logger
}

// NewRedis creates a Redis locker.
func NewRedis(client *redis.Client, cfg RedisConfig, log infralogger.Logger) *Redis {
	if cfg.TTL <= 0 {
		cfg.TTL = DefaultTTL
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = DefaultRetryDelay
	}
	if cfg.Wait <= 0 {
		cfg.Wait = DefaultWait
	}
	if log == nil {
		log = infralogger.NewNop()
	}
	return &Redis{client: client, cfg: cfg, logger: log}
}

// Lock polls until the key is free, ctx is done or the wait runs out.
func (r *Redis) Lock(ctx context.Context, key string) (Release, error) {
	redisKey := keyPrefix + key
	token := uuid.New().String()
	deadline := time.Now().Add(r.cfg.Wait)

	for {
		ok, err := r.client.SetNX(ctx, redisKey, token, r.cfg.TTL).Result()
		if err != nil {
			return nil, fmt.Errorf("acquire lock %s: %w", key, err)
		}
		if ok {
			return func() { r.release(redisKey, token) }, nil
		}

		if !time.Now().Add(r.cfg.RetryDelay).Before(deadline) {
			return nil, fmt.Errorf("%w: %s", ErrNotAcquired, key)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(r.cfg.RetryDelay):
		}
	}
}

func (r *Redis) release(redisKey, token string) {
	ctx, cancel := context.WithTimeout(context.Background(), releaseTimeout)
	defer cancel()

	released, err := releaseScript.Run(ctx, r.client, []string{redisKey}, token).Int()
	if err != nil {
		r.logger.Warn("Failed to release lock",
			infralogger.String("key", redisKey),
			infralogger.Error(err),
		)
		return
	}
	if released == 0 {
		r.logger.Warn("Lock expired before release", infralogger.String("key", redisKey))
	}
}
