// Package database owns the PostgreSQL connection, schema migrations and
// the queue entry repository.
package database

import (
	"context"
	"database/sql"
	"fmt"

	infraconfig "github.com/jonesrussell/setlist/infrastructure/config"
	infracontext "github.com/jonesrussell/setlist/infrastructure/context"
	infralogger "github.com/jonesrussell/setlist/infrastructure/logger"
	"github.com/jonesrussell/setlist/infrastructure/retry"
	_ "github.com/lib/pq" //nolint:blankimports // PostgreSQL driver
)

// Connect opens the pool and pings until the database answers or the retry
// budget runs out.
func Connect(
	ctx context.Context,
	cfg *infraconfig.DatabaseConfig,
	retryCfg retry.Config,
	log infralogger.Logger,
) (*sql.DB, error) {
	db, err := sql.Open("postgres", cfg.DSN())
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(cfg.MaxOpenConns)
	db.SetMaxIdleConns(cfg.MaxIdleConns)
	db.SetConnMaxLifetime(cfg.ConnMaxLifetime)

	attempt := 0
	pingErr := retry.Retry(ctx, retryCfg, func() error {
		attempt++
		pingCtx, cancel := infracontext.WithPingTimeout(ctx)
		defer cancel()

		if err := db.PingContext(pingCtx); err != nil {
			log.Warn("Database not ready",
				infralogger.Int("attempt", attempt),
				infralogger.Error(err),
			)
			return err
		}
		return nil
	})
	if pingErr != nil {
		_ = db.Close()
		return nil, fmt.Errorf("ping database: %w", pingErr)
	}

	log.Info("Database connection established",
		infralogger.String("host", cfg.Host),
		infralogger.Int("port", cfg.Port),
		infralogger.String("dbname", cfg.Database),
	)

	return db, nil
}
