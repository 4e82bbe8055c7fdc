package ratelimit_test

import (
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jonesrussell/setlist/internal/ratelimit"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPostgresStore_Admits(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2026, 5, 1, 20, 0, 0, 0, time.UTC)
	mock.ExpectQuery("INSERT INTO rate_limits").
		WithArgs("1.2.3.4", now, now.Add(-10*time.Minute)).
		WillReturnRows(sqlmock.NewRows([]string{"last_request_at"}).AddRow(now))

	store := ratelimit.NewPostgresStore(db)
	admitted, last, err := store.TryConsume(t.Context(), "1.2.3.4", now, 10*time.Minute)

	require.NoError(t, err)
	assert.True(t, admitted)
	assert.Equal(t, now, last)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestPostgresStore_RefusesWithinWindow(t *testing.T) {
	t.Parallel()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	defer db.Close()

	now := time.Date(2026, 5, 1, 20, 0, 0, 0, time.UTC)
	earlier := now.Add(-3 * time.Minute)

	mock.ExpectQuery("INSERT INTO rate_limits").
		WithArgs("1.2.3.4", now, now.Add(-10*time.Minute)).
		WillReturnRows(sqlmock.NewRows([]string{"last_request_at"}))
	mock.ExpectQuery("SELECT last_request_at FROM rate_limits").
		WithArgs("1.2.3.4").
		WillReturnRows(sqlmock.NewRows([]string{"last_request_at"}).AddRow(earlier))

	store := ratelimit.NewPostgresStore(db)
	admitted, last, err := store.TryConsume(t.Context(), "1.2.3.4", now, 10*time.Minute)

	require.NoError(t, err)
	assert.False(t, admitted)
	assert.Equal(t, earlier, last)
	assert.NoError(t, mock.ExpectationsWereMet())
}
