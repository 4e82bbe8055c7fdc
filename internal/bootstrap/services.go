package bootstrap

import (
	"database/sql"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/jonesrussell/setlist/infrastructure/circuitbreaker"
	infrahttp "github.com/jonesrussell/setlist/infrastructure/http"
	infralogger "github.com/jonesrussell/setlist/infrastructure/logger"
	"github.com/jonesrussell/setlist/internal/auth"
	"github.com/jonesrussell/setlist/internal/classifier"
	"github.com/jonesrussell/setlist/internal/config"
	"github.com/jonesrussell/setlist/internal/database"
	"github.com/jonesrussell/setlist/internal/events"
	"github.com/jonesrussell/setlist/internal/lock"
	"github.com/jonesrussell/setlist/internal/lyrics"
	"github.com/jonesrussell/setlist/internal/moderation"
	"github.com/jonesrussell/setlist/internal/ratelimit"
	"github.com/jonesrussell/setlist/internal/service"
	"github.com/jonesrussell/setlist/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"
)

const (
	userAgent = "setlist/1.0 (+song-request-moderation)"

	// lockSlack covers the database work done while a track lock is held.
	lockSlack = 10 * time.Second
	// lockQueueDepth is how many full decisions a duplicate may queue behind.
	lockQueueDepth = 4
)

// Components are the long-lived services the HTTP layer depends on.
type Components struct {
	Queue    *service.QueueService
	Auth     *auth.Manager
	Registry *prometheus.Registry
	DB       *sql.DB
	Redis    *redis.Client
}

// SetupServices builds the queue service and its collaborators. A nil redis
// client selects the PostgreSQL rate-limit store and in-process locks.
func SetupServices(cfg *config.Config, db *sql.DB, redisClient *redis.Client, log infralogger.Logger) *Components {
	registry := prometheus.NewRegistry()
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	metrics := telemetry.New(registry)
	moderator, decisionBudget := setupModeration(cfg, metrics, log)

	queue := service.NewQueueService(service.Deps{
		Store:     database.NewEntryRepository(sqlx.NewDb(db, "postgres"), log),
		Limiter:   ratelimit.New(setupRateLimitStore(cfg, db, redisClient, log), cfg.RateLimit.Window, log),
		Moderator: moderator,
		Locker:    setupLocker(redisClient, lockConfig(decisionBudget), log),
		Events:    events.NewPublisher(redisClient, cfg.Events.Stream, log),
		Metrics:   metrics,
		Logger:    log,
	})

	var manager *auth.Manager
	if cfg.AdminEnabled() {
		manager = auth.NewManager(auth.Config{
			Username: cfg.Auth.Username,
			Password: cfg.Auth.Password,
			Secret:   cfg.Auth.JWTSecret,
			TokenTTL: cfg.Auth.TokenTTL,
		})
	} else {
		log.Warn("Admin account not configured, admin endpoints are locked")
	}

	return &Components{
		Queue:    queue,
		Auth:     manager,
		Registry: registry,
		DB:       db,
		Redis:    redisClient,
	}
}

func setupRateLimitStore(cfg *config.Config, db *sql.DB, redisClient *redis.Client, log infralogger.Logger) ratelimit.Store {
	if cfg.RateLimit.Backend == config.RateLimitBackendRedis {
		if redisClient != nil {
			return ratelimit.NewRedisStore(redisClient)
		}
		log.Warn("Redis rate-limit backend unavailable, using PostgreSQL")
	}
	return ratelimit.NewPostgresStore(db)
}

func setupLocker(redisClient *redis.Client, cfg lock.RedisConfig, log infralogger.Logger) lock.Locker {
	if redisClient == nil {
		return lock.NewLocal()
	}
	return lock.NewRedis(redisClient, cfg, log)
}

// lockConfig sizes the track lock from the slowest possible moderation
// decision so an admitted duplicate waits for the holder instead of failing.
func lockConfig(decisionBudget time.Duration) lock.RedisConfig {
	ttl := decisionBudget + lockSlack
	return lock.RedisConfig{
		TTL:  ttl,
		Wait: lockQueueDepth * ttl,
	}
}

// setupModeration builds the engine and reports the longest a single
// decision can take.
func setupModeration(
	cfg *config.Config,
	metrics *telemetry.Metrics,
	log infralogger.Logger,
) (*moderation.Engine, time.Duration) {
	mod := cfg.Moderation
	breaker := circuitbreaker.Config{
		FailureThreshold: mod.Breaker.FailureThreshold,
		SuccessThreshold: mod.Breaker.SuccessThreshold,
		Timeout:          mod.Breaker.Timeout,
	}

	var budget time.Duration

	var finder moderation.LyricsFinder
	if !mod.LyricsDisabled {
		client := infrahttp.NewClient(&infrahttp.ClientConfig{Timeout: mod.LyricsTimeout, UserAgent: userAgent})
		f := lyrics.NewFinder(lyrics.Config{
			Timeout:          mod.LyricsTimeout,
			LyricsOVHBaseURL: mod.LyricsOVHBaseURL,
			LRCLibBaseURL:    mod.LRCLibBaseURL,
			Breaker:          breaker,
		}, client, metrics, log)
		budget += f.Budget()
		finder = f
	}

	var cls moderation.Classifier
	if mod.ClassifierEnabled() {
		client := infrahttp.NewClient(&infrahttp.ClientConfig{Timeout: mod.ClassifierTimeout, UserAgent: userAgent})
		c := classifier.New(classifier.Config{
			APIKey:  mod.ClassifierAPIKey,
			URL:     mod.ClassifierURL,
			Model:   mod.ClassifierModel,
			Timeout: mod.ClassifierTimeout,
			Breaker: breaker,
		}, client, metrics, log)
		budget += c.Budget()
		cls = c
	}

	log.Info("Moderation configured",
		infralogger.Bool("lyrics_enabled", finder != nil),
		infralogger.Bool("classifier_enabled", cls != nil),
		infralogger.Duration("decision_budget", budget),
	)

	return moderation.NewEngine(moderation.Config{LyricsEnabled: finder != nil}, finder, cls, log), budget
}
