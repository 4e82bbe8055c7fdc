package ratelimit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// PostgresStore keeps admissions in the rate_limits table. The conditional
// upsert makes check and write a single statement.
type PostgresStore struct {
	db *sql.DB
}

// NewPostgresStore creates a PostgresStore.
func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) TryConsume(
	ctx context.Context,
	key string,
	now time.Time,
	window time.Duration,
) (bool, time.Time, error) {
	query := `
		INSERT INTO rate_limits (identity, last_request_at)
		VALUES ($1, $2)
		ON CONFLICT (identity) DO UPDATE
			SET last_request_at = EXCLUDED.last_request_at
			WHERE rate_limits.last_request_at <= $3
		RETURNING last_request_at
	`

	var stored time.Time
	err := s.db.QueryRowContext(ctx, query, key, now, now.Add(-window)).Scan(&stored)
	if err == nil {
		return true, stored, nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return false, time.Time{}, fmt.Errorf("upsert rate limit: %w", err)
	}

	var last time.Time
	selectErr := s.db.QueryRowContext(ctx,
		`SELECT last_request_at FROM rate_limits WHERE identity = $1`, key,
	).Scan(&last)
	if selectErr != nil {
		return false, time.Time{}, fmt.Errorf("read rate limit: %w", selectErr)
	}

	return false, last, nil
}
