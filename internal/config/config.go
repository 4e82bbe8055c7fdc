// Package config loads the setlist service configuration.
package config

import (
	"fmt"
	"time"

	infraconfig "github.com/jonesrussell/setlist/infrastructure/config"
	infraevents "github.com/jonesrussell/setlist/infrastructure/events"
	infralogger "github.com/jonesrussell/setlist/infrastructure/logger"
	"github.com/jonesrussell/setlist/infrastructure/profiling"
	"github.com/jonesrussell/setlist/internal/auth"
	"github.com/jonesrussell/setlist/internal/classifier"
	"github.com/jonesrussell/setlist/internal/lyrics"
	"github.com/jonesrussell/setlist/internal/ratelimit"
)

const (
	defaultServiceName      = "setlist"
	defaultServiceVersion   = "dev"
	defaultServerPort       = 8070
	defaultServerTimeout    = 30 * time.Second
	defaultSubmitRPS        = 20
	defaultSubmitBurst      = 40
	defaultBreakerFailures  = 5
	defaultBreakerSuccesses = 1
	defaultBreakerTimeout   = 30 * time.Second
	minJWTSecretLength      = 32
)

// Rate-limit record backends.
const (
	RateLimitBackendPostgres = "postgres"
	RateLimitBackendRedis    = "redis"
)

// Config is the root configuration.
type Config struct {
	Service    ServiceConfig              `yaml:"service"`
	Database   infraconfig.DatabaseConfig `yaml:"database"`
	Redis      infraconfig.RedisConfig    `yaml:"redis"`
	Auth       AuthConfig                 `yaml:"auth"`
	RateLimit  RateLimitConfig            `yaml:"rate_limit"`
	Moderation ModerationConfig           `yaml:"moderation"`
	Events     EventsConfig               `yaml:"events"`
	Logging    infralogger.Config         `yaml:"logging"`
	Profiling  profiling.Config           `yaml:"profiling"`
}

// ServiceConfig holds HTTP server settings.
type ServiceConfig struct {
	Name        string   `yaml:"name"`
	Version     string   `env:"SETLIST_VERSION" yaml:"version"`
	Port        int      `env:"SETLIST_PORT"    yaml:"port"`
	Debug       bool     `env:"APP_DEBUG"       yaml:"debug"`
	CORSOrigins []string `env:"CORS_ORIGINS"    yaml:"cors_origins"`
	// TrustedProxies may set X-Forwarded-For. Empty trusts none.
	TrustedProxies []string      `env:"TRUSTED_PROXIES" yaml:"trusted_proxies"`
	ReadTimeout    time.Duration `yaml:"read_timeout"`
	WriteTimeout   time.Duration `yaml:"write_timeout"`
}

// AuthConfig holds the single admin account and token signing settings.
type AuthConfig struct {
	Username  string        `env:"ADMIN_USERNAME"  yaml:"username"`
	Password  string        `env:"ADMIN_PASSWORD"  yaml:"password"`
	JWTSecret string        `env:"AUTH_JWT_SECRET" yaml:"jwt_secret"`
	TokenTTL  time.Duration `yaml:"token_ttl"`
}

// RateLimitConfig controls per-requester admission and the global submit throttle.
type RateLimitConfig struct {
	Window      time.Duration `env:"RATE_LIMIT_WINDOW"  yaml:"window"`
	Backend     string        `env:"RATE_LIMIT_BACKEND" yaml:"backend"`
	SubmitRPS   float64       `yaml:"submit_rps"`
	SubmitBurst int           `yaml:"submit_burst"`
}

// ModerationConfig configures lyrics retrieval and the external classifier.
type ModerationConfig struct {
	LyricsDisabled    bool          `env:"DISABLE_LYRICS_MODERATION" yaml:"lyrics_disabled"`
	LyricsTimeout     time.Duration `yaml:"lyrics_timeout"`
	LyricsOVHBaseURL  string        `yaml:"lyrics_ovh_base_url"`
	LRCLibBaseURL     string        `yaml:"lrclib_base_url"`
	ClassifierAPIKey  string        `env:"OPENAI_API_KEY"            yaml:"classifier_api_key"`
	ClassifierURL     string        `env:"CLASSIFIER_URL"            yaml:"classifier_url"`
	ClassifierModel   string        `env:"CLASSIFIER_MODEL"          yaml:"classifier_model"`
	ClassifierTimeout time.Duration `yaml:"classifier_timeout"`
	Breaker           BreakerConfig `yaml:"breaker"`
}

// ClassifierEnabled reports whether an API key is configured.
func (c *ModerationConfig) ClassifierEnabled() bool {
	return c.ClassifierAPIKey != ""
}

// BreakerConfig is shared by every outbound dependency.
type BreakerConfig struct {
	FailureThreshold int           `yaml:"failure_threshold"`
	SuccessThreshold int           `yaml:"success_threshold"`
	Timeout          time.Duration `yaml:"timeout"`
}

// EventsConfig names the Redis stream queue events are published to.
type EventsConfig struct {
	Stream string `env:"EVENTS_STREAM" yaml:"stream"`
}

// Load reads path, fills defaults, applies environment overrides and validates.
func Load(path string) (*Config, error) {
	cfg, err := infraconfig.LoadWithDefaults(path, setDefaults)
	if err != nil {
		return nil, fmt.Errorf("load config: %w", err)
	}

	if err = cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return cfg, nil
}

// Validate reports the first invalid field.
func (c *Config) Validate() error {
	if err := infraconfig.ValidatePort("service.port", c.Service.Port); err != nil {
		return err
	}
	if err := c.Database.Validate(); err != nil {
		return err
	}
	if err := infraconfig.ValidateLogLevel(c.Logging.Level); err != nil {
		return err
	}
	if err := c.Auth.validate(); err != nil {
		return err
	}

	switch c.RateLimit.Backend {
	case RateLimitBackendPostgres:
	case RateLimitBackendRedis:
		if !c.Redis.Enabled() {
			return &infraconfig.ValidationError{Field: "rate_limit.backend", Message: "redis backend requires redis.address"}
		}
	default:
		return &infraconfig.ValidationError{Field: "rate_limit.backend", Message: "must be postgres or redis"}
	}
	if c.RateLimit.SubmitRPS <= 0 || c.RateLimit.SubmitBurst <= 0 {
		return &infraconfig.ValidationError{Field: "rate_limit.submit_rps", Message: "throttle rate and burst must be positive"}
	}

	if c.Moderation.ClassifierEnabled() {
		if err := infraconfig.ValidateURL("moderation.classifier_url", c.Moderation.ClassifierURL); err != nil {
			return err
		}
	}

	return nil
}

func (a *AuthConfig) validate() error {
	// An unset account leaves the admin surface locked.
	if a.Username == "" && a.Password == "" {
		return nil
	}
	if a.Username == "" || a.Password == "" {
		return &infraconfig.ValidationError{Field: "auth.username", Message: "username and password must be set together"}
	}
	if len(a.JWTSecret) < minJWTSecretLength {
		return &infraconfig.ValidationError{
			Field:   "auth.jwt_secret",
			Message: fmt.Sprintf("must be at least %d characters", minJWTSecretLength),
		}
	}
	return nil
}

// AdminEnabled reports whether admin login is possible.
func (c *Config) AdminEnabled() bool {
	return c.Auth.Username != "" && c.Auth.Password != ""
}

func setDefaults(cfg *Config) {
	if cfg.Service.Name == "" {
		cfg.Service.Name = defaultServiceName
	}
	if cfg.Service.Version == "" {
		cfg.Service.Version = defaultServiceVersion
	}
	if cfg.Service.Port == 0 {
		cfg.Service.Port = defaultServerPort
	}
	if cfg.Service.ReadTimeout == 0 {
		cfg.Service.ReadTimeout = defaultServerTimeout
	}
	if cfg.Service.WriteTimeout == 0 {
		cfg.Service.WriteTimeout = defaultServerTimeout
	}
	if len(cfg.Service.CORSOrigins) == 0 {
		cfg.Service.CORSOrigins = []string{"http://localhost:5173"}
	}

	cfg.Database.SetDefaults()
	if cfg.Database.User == "" {
		cfg.Database.User = "setlist"
	}
	if cfg.Database.Database == "" {
		cfg.Database.Database = "setlist"
	}

	if cfg.Auth.TokenTTL == 0 {
		cfg.Auth.TokenTTL = auth.DefaultTokenTTL
	}

	if cfg.RateLimit.Window == 0 {
		cfg.RateLimit.Window = ratelimit.DefaultWindow
	}
	if cfg.RateLimit.Backend == "" {
		cfg.RateLimit.Backend = RateLimitBackendPostgres
	}
	if cfg.RateLimit.SubmitRPS == 0 {
		cfg.RateLimit.SubmitRPS = defaultSubmitRPS
	}
	if cfg.RateLimit.SubmitBurst == 0 {
		cfg.RateLimit.SubmitBurst = defaultSubmitBurst
	}

	setModerationDefaults(&cfg.Moderation)

	if cfg.Events.Stream == "" {
		cfg.Events.Stream = infraevents.StreamName
	}

	cfg.Logging.SetDefaults()
	cfg.Logging.Service = cfg.Service.Name
}

func setModerationDefaults(m *ModerationConfig) {
	if m.LyricsTimeout == 0 {
		m.LyricsTimeout = lyrics.DefaultTimeout
	}
	if m.ClassifierURL == "" {
		m.ClassifierURL = classifier.DefaultURL
	}
	if m.ClassifierModel == "" {
		m.ClassifierModel = classifier.DefaultModel
	}
	if m.ClassifierTimeout == 0 {
		m.ClassifierTimeout = classifier.DefaultTimeout
	}
	if m.Breaker.FailureThreshold == 0 {
		m.Breaker.FailureThreshold = defaultBreakerFailures
	}
	if m.Breaker.SuccessThreshold == 0 {
		m.Breaker.SuccessThreshold = defaultBreakerSuccesses
	}
	if m.Breaker.Timeout == 0 {
		m.Breaker.Timeout = defaultBreakerTimeout
	}
}
