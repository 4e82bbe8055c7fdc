package bootstrap

import (
	"context"

	infralogger "github.com/jonesrussell/setlist/infrastructure/logger"
	infraredis "github.com/jonesrussell/setlist/infrastructure/redis"
	"github.com/jonesrussell/setlist/internal/config"
	"github.com/redis/go-redis/v9"
)

// SetupRedis returns a connected client, or nil when Redis is not configured
// or unreachable. Everything Redis backs has an in-process or PostgreSQL
// fallback.
func SetupRedis(ctx context.Context, cfg *config.Config, log infralogger.Logger) *redis.Client {
	if !cfg.Redis.Enabled() {
		log.Info("Redis not configured, using local locks and disabling queue events")
		return nil
	}

	client, err := infraredis.NewClient(ctx, infraredis.Config{
		Address:  cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	if err != nil {
		log.Warn("Redis not available, falling back",
			infralogger.String("redis_address", cfg.Redis.Address),
			infralogger.Error(err),
		)
		return nil
	}

	log.Info("Redis connected", infralogger.String("redis_address", cfg.Redis.Address))
	return client
}
