package bootstrap

import (
	"context"
	"database/sql"
	"fmt"

	infralogger "github.com/jonesrussell/setlist/infrastructure/logger"
	"github.com/jonesrussell/setlist/infrastructure/retry"
	"github.com/jonesrussell/setlist/internal/config"
	"github.com/jonesrussell/setlist/internal/database"
)

// SetupDatabase connects to PostgreSQL and applies pending migrations.
func SetupDatabase(ctx context.Context, cfg *config.Config, log infralogger.Logger) (*sql.DB, error) {
	db, err := database.Connect(ctx, &cfg.Database, retry.DefaultConfig(), log)
	if err != nil {
		return nil, fmt.Errorf("database connection: %w", err)
	}

	if migrateErr := database.RunMigrations(db, log); migrateErr != nil {
		_ = db.Close()
		return nil, fmt.Errorf("database migrations: %w", migrateErr)
	}

	return db, nil
}
