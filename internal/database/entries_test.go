package database_test

import (
	"database/sql"
	"database/sql/driver"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	infralogger "github.com/jonesrussell/setlist/infrastructure/logger"
	"github.com/jonesrussell/setlist/internal/database"
	"github.com/jonesrussell/setlist/internal/domain"
	"github.com/lib/pq"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var entryColumnNames = []string{
	"id", "track_id", "track_name", "artists", "album_name", "album_image", "spotify_url",
	"requester_name", "requester_role", "requesters", "custom_message", "dedication_message",
	"event_date", "explicit_flag", "content_confidence", "dance_moment",
	"energy_level", "vibe_tags", "vote_count", "priority_score", "status", "moderation_reason",
	"review_note", "dj_notes", "set_order", "submitted_at", "updated_at",
}

var submittedAt = time.Date(2026, 5, 1, 20, 0, 0, 0, time.UTC)

func entryRow(id int64, trackID, status string, setOrder any) []driver.Value {
	return []driver.Value{
		id, trackID, "Mr. Brightside", "{The Killers}", "Hot Fuss", "", "",
		"Sam", "guest", `[{"name":"Sam","role":"guest","customMessage":"","dedicationMessage":"","submittedAt":"2026-05-01T20:00:00Z"}]`, "", "",
		"2026-06-12", true, "clean", "peak_hour",
		int64(4), "{singalong}", int64(1), int64(61), status, "",
		"", "", setOrder, submittedAt, nil,
	}
}

func newRepo(t *testing.T) (*database.EntryRepository, sqlmock.Sqlmock) {
	t.Helper()

	db, mock, err := sqlmock.New()
	require.NoError(t, err)
	t.Cleanup(func() { _ = db.Close() })

	return database.NewEntryRepository(sqlx.NewDb(db, "postgres"), infralogger.NewNop()), mock
}

func expectOrderLock(mock sqlmock.Sqlmock) {
	mock.ExpectBegin()
	mock.ExpectExec("SELECT pg_advisory_xact_lock").
		WillReturnResult(sqlmock.NewResult(0, 0))
}

func expectRenumber(mock sqlmock.Sqlmock) {
	mock.ExpectExec("UPDATE queue_entries SET set_order = NULL WHERE status = 'rejected'").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("ROW_NUMBER").
		WillReturnResult(sqlmock.NewResult(0, 2))
}

func TestEntryRepository_GetActiveByTrack(t *testing.T) {
	t.Parallel()

	repo, mock := newRepo(t)

	mock.ExpectQuery("FROM queue_entries").
		WithArgs("track-1").
		WillReturnRows(sqlmock.NewRows(entryColumnNames).AddRow(entryRow(7, "track-1", "approved", int64(2))...))

	e, err := repo.GetActiveByTrack(t.Context(), "track-1")
	require.NoError(t, err)

	assert.Equal(t, int64(7), e.ID)
	assert.Equal(t, []string{"The Killers"}, e.Artists)
	assert.Equal(t, []string{"singalong"}, e.VibeTags)
	require.Len(t, e.Requesters, 1)
	assert.Equal(t, domain.RoleGuest, e.Requesters[0].Role)
	require.NotNil(t, e.EventDate)
	assert.Equal(t, "2026-06-12", *e.EventDate)
	require.NotNil(t, e.Explicit)
	assert.True(t, *e.Explicit)
	require.NotNil(t, e.SetOrder)
	assert.Equal(t, 2, *e.SetOrder)
	assert.Nil(t, e.UpdatedAt)
	assert.Equal(t, domain.TierMedium, e.Tier())
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntryRepository_GetActiveByTrack_NotFound(t *testing.T) {
	t.Parallel()

	repo, mock := newRepo(t)

	mock.ExpectQuery("FROM queue_entries").
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := repo.GetActiveByTrack(t.Context(), "missing")
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntryRepository_Create_AppendsAtTail(t *testing.T) {
	t.Parallel()

	repo, mock := newRepo(t)

	expectOrderLock(mock)
	mock.ExpectQuery("SELECT COALESCE").
		WillReturnRows(sqlmock.NewRows([]string{"next"}).AddRow(int64(4)))
	mock.ExpectQuery("INSERT INTO queue_entries").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(11)))
	expectRenumber(mock)
	mock.ExpectQuery("FROM queue_entries WHERE id").
		WithArgs(int64(11)).
		WillReturnRows(sqlmock.NewRows(entryColumnNames).AddRow(entryRow(11, "track-9", "pending", int64(4))...))
	mock.ExpectCommit()

	stored, err := repo.Create(t.Context(), &domain.Entry{
		TrackID:       "track-9",
		TrackName:     "Mr. Brightside",
		RequesterName: "Sam",
		RequesterRole: domain.RoleGuest,
		Status:        domain.StatusPending,
		VoteCount:     1,
	})
	require.NoError(t, err)

	assert.Equal(t, int64(11), stored.ID)
	require.NotNil(t, stored.SetOrder)
	assert.Equal(t, 4, *stored.SetOrder)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntryRepository_Create_RejectedSkipsTailLookup(t *testing.T) {
	t.Parallel()

	repo, mock := newRepo(t)

	expectOrderLock(mock)
	mock.ExpectQuery("INSERT INTO queue_entries").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(12)))
	expectRenumber(mock)
	mock.ExpectQuery("FROM queue_entries WHERE id").
		WithArgs(int64(12)).
		WillReturnRows(sqlmock.NewRows(entryColumnNames).AddRow(entryRow(12, "track-x", "rejected", nil)...))
	mock.ExpectCommit()

	stored, err := repo.Create(t.Context(), &domain.Entry{
		TrackID:   "track-x",
		Status:    domain.StatusRejected,
		SetOrder:  domain.IntPtr(3),
		VoteCount: 1,
	})
	require.NoError(t, err)

	assert.Nil(t, stored.SetOrder)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntryRepository_Save_NotFoundRollsBack(t *testing.T) {
	t.Parallel()

	repo, mock := newRepo(t)

	expectOrderLock(mock)
	mock.ExpectExec("UPDATE queue_entries SET").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectRollback()

	_, err := repo.Save(t.Context(), &domain.Entry{
		ID:       99,
		Status:   domain.StatusApproved,
		SetOrder: domain.IntPtr(1),
	})
	require.ErrorIs(t, err, domain.ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntryRepository_Save_ActiveTrackConflict(t *testing.T) {
	t.Parallel()

	repo, mock := newRepo(t)

	expectOrderLock(mock)
	mock.ExpectExec("UPDATE queue_entries SET").
		WillReturnError(&pq.Error{Code: "23505", Message: "duplicate key value violates unique constraint"})
	mock.ExpectRollback()

	_, err := repo.Save(t.Context(), &domain.Entry{
		ID:       12,
		TrackID:  "track-1",
		Status:   domain.StatusApproved,
		SetOrder: domain.IntPtr(3),
	})

	var conflict *domain.ConflictError
	require.ErrorAs(t, err, &conflict)
	assert.Equal(t, "Track already has an active request", conflict.Message)
	assert.NotErrorIs(t, err, domain.ErrConflictingState)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntryRepository_RenumberActive_RanksByOrderThenID(t *testing.T) {
	t.Parallel()

	repo, mock := newRepo(t)

	expectOrderLock(mock)
	mock.ExpectExec(regexp.QuoteMeta(
		`UPDATE queue_entries SET set_order = NULL WHERE status = 'rejected' AND set_order IS NOT NULL`)).
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec(regexp.QuoteMeta(
		`SELECT id, ROW_NUMBER() OVER (ORDER BY set_order ASC NULLS LAST, id ASC) AS position`) +
		`[\s\S]*` + regexp.QuoteMeta(`WHERE status <> 'rejected'`) +
		`[\s\S]*` + regexp.QuoteMeta(`q.set_order IS DISTINCT FROM ranked.position`)).
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	require.NoError(t, repo.RenumberActive(t.Context()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntryRepository_RenumberActive_SecondRunChangesNothing(t *testing.T) {
	t.Parallel()

	repo, mock := newRepo(t)

	expectOrderLock(mock)
	mock.ExpectExec("UPDATE queue_entries SET set_order = NULL WHERE status = 'rejected'").
		WillReturnResult(sqlmock.NewResult(0, 1))
	mock.ExpectExec("ROW_NUMBER").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	expectOrderLock(mock)
	mock.ExpectExec("UPDATE queue_entries SET set_order = NULL WHERE status = 'rejected'").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectExec("ROW_NUMBER").
		WillReturnResult(sqlmock.NewResult(0, 0))
	mock.ExpectCommit()

	require.NoError(t, repo.RenumberActive(t.Context()))
	require.NoError(t, repo.RenumberActive(t.Context()))
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntryRepository_Reorder(t *testing.T) {
	t.Parallel()

	repo, mock := newRepo(t)

	expectOrderLock(mock)
	mock.ExpectQuery("SELECT id FROM queue_entries WHERE status <> 'rejected'").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)).AddRow(int64(2)).AddRow(int64(3)))
	mock.ExpectExec("UNNEST").
		WithArgs("{3,1,2}", "{1,2,3}").
		WillReturnResult(sqlmock.NewResult(0, 3))
	mock.ExpectCommit()

	var seen []int64
	err := repo.Reorder(t.Context(), func(active []int64) ([]int64, error) {
		seen = active
		return []int64{3, 1, 2}, nil
	})
	require.NoError(t, err)

	assert.Equal(t, []int64{1, 2, 3}, seen)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntryRepository_Reorder_PlanErrorRollsBack(t *testing.T) {
	t.Parallel()

	repo, mock := newRepo(t)
	planErr := errors.New("not in queue")

	expectOrderLock(mock)
	mock.ExpectQuery("SELECT id FROM queue_entries").
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(1)))
	mock.ExpectRollback()

	err := repo.Reorder(t.Context(), func([]int64) ([]int64, error) {
		return nil, planErr
	})
	require.ErrorIs(t, err, planErr)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntryRepository_ApplyBulkUpdate(t *testing.T) {
	t.Parallel()

	repo, mock := newRepo(t)

	expectOrderLock(mock)
	mock.ExpectQuery("WITH picked AS").
		WithArgs("explicit", 0, 8, "rejected", "explicit_lyrics", "bulk", true).
		WillReturnRows(sqlmock.NewRows([]string{"id"}).AddRow(int64(4)).AddRow(int64(9)))
	expectRenumber(mock)
	mock.ExpectCommit()

	ids, err := repo.ApplyBulkUpdate(t.Context(), database.BulkUpdate{
		Confidence: domain.ConfidenceExplicit,
		Limit:      8,
		Status:     domain.StatusRejected,
		Reason:     domain.ReasonExplicitLyrics,
		ReviewNote: "bulk",
	})
	require.NoError(t, err)

	assert.Equal(t, []int64{4, 9}, ids)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntryRepository_DeleteNextApproved_Empty(t *testing.T) {
	t.Parallel()

	repo, mock := newRepo(t)

	expectOrderLock(mock)
	mock.ExpectQuery("DELETE FROM queue_entries").
		WillReturnRows(sqlmock.NewRows([]string{"id"}))
	mock.ExpectCommit()

	_, found, err := repo.DeleteNextApproved(t.Context())
	require.NoError(t, err)

	assert.False(t, found)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntryRepository_DeleteByStatus(t *testing.T) {
	t.Parallel()

	repo, mock := newRepo(t)

	expectOrderLock(mock)
	mock.ExpectExec("DELETE FROM queue_entries WHERE status = ANY").
		WithArgs(`{"rejected"}`).
		WillReturnResult(sqlmock.NewResult(0, 5))
	expectRenumber(mock)
	mock.ExpectCommit()

	deleted, err := repo.DeleteByStatus(t.Context(), domain.StatusRejected)
	require.NoError(t, err)

	assert.Equal(t, int64(5), deleted)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestEntryRepository_ListEscapesQuery(t *testing.T) {
	t.Parallel()

	repo, mock := newRepo(t)

	mock.ExpectQuery("LIKE").
		WithArgs("pending", `%100\%%`).
		WillReturnRows(sqlmock.NewRows(entryColumnNames))

	entries, err := repo.List(t.Context(), database.EntryFilter{
		Status: domain.StatusPending,
		Query:  " 100% ",
	})
	require.NoError(t, err)

	assert.Empty(t, entries)
	assert.NoError(t, mock.ExpectationsWereMet())
}
