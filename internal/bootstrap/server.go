package bootstrap

import (
	"context"

	"github.com/gin-gonic/gin"
	infragin "github.com/jonesrussell/setlist/infrastructure/gin"
	infralogger "github.com/jonesrussell/setlist/infrastructure/logger"
	"github.com/jonesrussell/setlist/infrastructure/metrics"
	"github.com/jonesrussell/setlist/internal/api"
	"github.com/jonesrussell/setlist/internal/config"
	"github.com/jonesrussell/setlist/internal/telemetry"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// SetupHTTPServer creates and configures the HTTP server.
func SetupHTTPServer(cfg *config.Config, c *Components, log infralogger.Logger) *infragin.Server {
	// A nil *auth.Manager must stay a nil interface.
	var authenticator api.Authenticator
	if c.Auth != nil {
		authenticator = c.Auth
	}
	handler := api.NewHandler(c.Queue, authenticator, log)

	httpMetrics := metrics.NewHTTPMetrics(telemetry.Namespace, c.Registry)

	builder := infragin.NewServerBuilder(cfg.Service.Name, cfg.Service.Port).
		WithLogger(log).
		WithDebug(cfg.Service.Debug).
		WithVersion(cfg.Service.Version).
		WithCORSOrigins(cfg.Service.CORSOrigins).
		WithTrustedProxies(cfg.Service.TrustedProxies).
		WithTimeouts(cfg.Service.ReadTimeout, cfg.Service.WriteTimeout, 0).
		WithMiddleware(httpMetrics.Middleware()).
		WithMetricsHandler(promhttp.HandlerFor(c.Registry, promhttp.HandlerOpts{})).
		WithDatabaseHealthCheck(c.DB.PingContext).
		WithRoutes(func(router *gin.Engine) {
			api.RegisterRoutes(router, handler, api.RouteOptions{
				JWTSecret:   cfg.Auth.JWTSecret,
				SubmitRPS:   cfg.RateLimit.SubmitRPS,
				SubmitBurst: cfg.RateLimit.SubmitBurst,
			})
		})

	if c.Redis != nil {
		client := c.Redis
		builder = builder.WithRedisHealthCheck(func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
	}

	return builder.Build()
}
