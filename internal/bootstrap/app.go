// Package bootstrap wires configuration, storage, moderation and the HTTP
// server together and runs the setlist service.
package bootstrap

import (
	"context"
	"fmt"

	infralogger "github.com/jonesrussell/setlist/infrastructure/logger"
	"github.com/jonesrussell/setlist/infrastructure/profiling"
)

// Start initializes and runs the service until it receives a shutdown signal.
func Start() error {
	ctx := context.Background()

	// Phase 1: Load config and create logger
	cfg, err := LoadConfig()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log, err := CreateLogger(cfg)
	if err != nil {
		return fmt.Errorf("failed to create logger: %w", err)
	}
	defer func() { _ = log.Sync() }()

	// Phase 2: Profiling (env-gated)
	profiling.StartPprofServer(cfg.Profiling, log)
	profiler, err := profiling.StartPyroscope(cfg.Service.Name, cfg.Service.Version, cfg.Profiling, log)
	if err != nil {
		log.Warn("Continuous profiling unavailable", infralogger.Error(err))
	}
	defer func() {
		if stopErr := profiler.Stop(); stopErr != nil {
			log.Warn("Failed to stop profiler", infralogger.Error(stopErr))
		}
	}()

	// Phase 3: Storage
	db, err := SetupDatabase(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("failed to set up database: %w", err)
	}
	defer func() {
		if closeErr := db.Close(); closeErr != nil {
			log.Error("Failed to close database", infralogger.Error(closeErr))
		}
	}()

	redisClient := SetupRedis(ctx, cfg, log)
	if redisClient != nil {
		defer func() {
			if closeErr := redisClient.Close(); closeErr != nil {
				log.Error("Failed to close redis", infralogger.Error(closeErr))
			}
		}()
	}

	// Phase 4: Services and HTTP server
	components := SetupServices(cfg, db, redisClient, log)
	server := SetupHTTPServer(cfg, components, log)

	log.Info("Starting HTTP server",
		infralogger.Int("port", cfg.Service.Port),
		infralogger.String("version", cfg.Service.Version),
		infralogger.Bool("redis", redisClient != nil),
		infralogger.Bool("admin_enabled", cfg.AdminEnabled()),
	)

	if runErr := server.Run(); runErr != nil {
		log.Error("Server error", infralogger.Error(runErr))
		return fmt.Errorf("server error: %w", runErr)
	}

	log.Info("Server exited")
	return nil
}
