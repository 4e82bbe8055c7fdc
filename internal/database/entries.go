package database

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jmoiron/sqlx"
	infralogger "github.com/jonesrussell/setlist/infrastructure/logger"
	"github.com/jonesrussell/setlist/internal/domain"
	"github.com/lib/pq"
)

// queueOrderLockKey serializes every transaction that changes set orders.
const queueOrderLockKey int64 = 735001

const msgTrackAlreadyActive = "Track already has an active request"

const entryColumns = `
	id, track_id, track_name, artists, album_name, album_image, spotify_url,
	requester_name, requester_role, requesters, custom_message, dedication_message,
	TO_CHAR(event_date, 'YYYY-MM-DD') AS event_date, explicit_flag, content_confidence, dance_moment,
	energy_level, vibe_tags, vote_count, priority_score, status, moderation_reason,
	review_note, dj_notes, set_order, submitted_at, updated_at`

const activeOrder = `set_order ASC NULLS LAST, id ASC`

// EntryFilter narrows List. Zero values do not filter.
type EntryFilter struct {
	Status      domain.Status
	Confidence  domain.ContentConfidence
	DanceMoment domain.DanceMoment
	// Query is matched case-insensitively against title, artists and requester.
	Query      string
	ActiveOnly bool
}

// BulkUpdate moves the highest-priority pending entries matching Confidence
// and MinPriority to Status.
type BulkUpdate struct {
	Confidence  domain.ContentConfidence
	MinPriority int
	Limit       int
	Status      domain.Status
	Reason      domain.ModerationReason
	ReviewNote  string
}

// EntryRepository persists queue entries.
type EntryRepository struct {
	db     *sqlx.DB
	logger infralogger.Logger
}

// NewEntryRepository creates an EntryRepository.
func NewEntryRepository(db *sqlx.DB, log infralogger.Logger) *EntryRepository {
	return &EntryRepository{
		db:     db,
		logger: log,
	}
}

// entryRow is the stored shape of a queue entry.
type entryRow struct {
	ID                int64                    `db:"id"`
	TrackID           string                   `db:"track_id"`
	TrackName         string                   `db:"track_name"`
	Artists           pq.StringArray           `db:"artists"`
	AlbumName         string                   `db:"album_name"`
	AlbumImage        string                   `db:"album_image"`
	SpotifyURL        string                   `db:"spotify_url"`
	RequesterName     string                   `db:"requester_name"`
	RequesterRole     domain.Role              `db:"requester_role"`
	Requesters        []byte                   `db:"requesters"`
	CustomMessage     string                   `db:"custom_message"`
	DedicationMessage string                   `db:"dedication_message"`
	EventDate         sql.NullString           `db:"event_date"`
	ExplicitFlag      sql.NullBool             `db:"explicit_flag"`
	ContentConfidence domain.ContentConfidence `db:"content_confidence"`
	DanceMoment       domain.DanceMoment       `db:"dance_moment"`
	EnergyLevel       int                      `db:"energy_level"`
	VibeTags          pq.StringArray           `db:"vibe_tags"`
	VoteCount         int                      `db:"vote_count"`
	PriorityScore     int                      `db:"priority_score"`
	Status            domain.Status            `db:"status"`
	ModerationReason  domain.ModerationReason  `db:"moderation_reason"`
	ReviewNote        string                   `db:"review_note"`
	DJNotes           string                   `db:"dj_notes"`
	SetOrder          sql.NullInt64            `db:"set_order"`
	SubmittedAt       time.Time                `db:"submitted_at"`
	UpdatedAt         sql.NullTime             `db:"updated_at"`
}

func (r *entryRow) entry() (*domain.Entry, error) {
	e := &domain.Entry{
		ID:                r.ID,
		TrackID:           r.TrackID,
		TrackName:         r.TrackName,
		Artists:           []string(r.Artists),
		AlbumName:         r.AlbumName,
		AlbumImage:        r.AlbumImage,
		SpotifyURL:        r.SpotifyURL,
		RequesterName:     r.RequesterName,
		RequesterRole:     r.RequesterRole,
		CustomMessage:     r.CustomMessage,
		DedicationMessage: r.DedicationMessage,
		ContentConfidence: r.ContentConfidence,
		DanceMoment:       r.DanceMoment,
		EnergyLevel:       r.EnergyLevel,
		VibeTags:          []string(r.VibeTags),
		VoteCount:         r.VoteCount,
		PriorityScore:     r.PriorityScore,
		Status:            r.Status,
		ModerationReason:  r.ModerationReason,
		ReviewNote:        r.ReviewNote,
		DJNotes:           r.DJNotes,
		SubmittedAt:       r.SubmittedAt,
	}

	if len(r.Requesters) > 0 {
		if err := json.Unmarshal(r.Requesters, &e.Requesters); err != nil {
			return nil, fmt.Errorf("unmarshal requesters: %w", err)
		}
	}
	if r.EventDate.Valid {
		e.EventDate = &r.EventDate.String
	}
	if r.ExplicitFlag.Valid {
		e.Explicit = &r.ExplicitFlag.Bool
	}
	if r.SetOrder.Valid {
		e.SetOrder = domain.IntPtr(int(r.SetOrder.Int64))
	}
	if r.UpdatedAt.Valid {
		e.UpdatedAt = &r.UpdatedAt.Time
	}

	return e, nil
}

func toEntries(rows []entryRow) ([]*domain.Entry, error) {
	entries := make([]*domain.Entry, 0, len(rows))
	for i := range rows {
		e, err := rows[i].entry()
		if err != nil {
			return nil, fmt.Errorf("entry %d: %w", rows[i].ID, err)
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// getEntry loads one entry with q, which is the repository's pool or an
// open transaction.
func getEntry(ctx context.Context, q sqlx.QueryerContext, query string, args ...any) (*domain.Entry, error) {
	var row entryRow
	if err := sqlx.GetContext(ctx, q, &row, query, args...); err != nil {
		return nil, err
	}
	return row.entry()
}

func (r *EntryRepository) selectEntries(ctx context.Context, query string, args ...any) ([]*domain.Entry, error) {
	var rows []entryRow
	if err := r.db.SelectContext(ctx, &rows, query, args...); err != nil {
		return nil, err
	}
	return toEntries(rows)
}

// GetByID returns the entry or domain.ErrNotFound.
func (r *EntryRepository) GetByID(ctx context.Context, id int64) (*domain.Entry, error) {
	query := `SELECT ` + entryColumns + ` FROM queue_entries WHERE id = $1`

	e, err := getEntry(ctx, r.db, query, id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get entry %d: %w", id, err)
	}
	return e, nil
}

// GetActiveByTrack returns the active entry for trackID or domain.ErrNotFound.
func (r *EntryRepository) GetActiveByTrack(ctx context.Context, trackID string) (*domain.Entry, error) {
	query := `SELECT ` + entryColumns + `
		FROM queue_entries
		WHERE track_id = $1 AND status <> 'rejected'
		ORDER BY id DESC
		LIMIT 1`

	e, err := getEntry(ctx, r.db, query, trackID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get active entry for track %s: %w", trackID, err)
	}
	return e, nil
}

// Create inserts e, gives it the tail position when it is active and has
// none, renumbers the queue and returns the stored entry.
func (r *EntryRepository) Create(ctx context.Context, e *domain.Entry) (*domain.Entry, error) {
	var stored *domain.Entry

	err := r.withOrderTx(ctx, func(tx *sqlx.Tx) error {
		setOrder, err := resolveSetOrder(ctx, tx, e)
		if err != nil {
			return err
		}

		requesters, err := marshalRequesters(e.Requesters)
		if err != nil {
			return fmt.Errorf("marshal requesters: %w", err)
		}

		query := `
			INSERT INTO queue_entries (
				track_id, track_name, artists, album_name, album_image, spotify_url,
				requester_name, requester_role, requesters, custom_message, dedication_message,
				event_date, explicit_flag, content_confidence, dance_moment, energy_level,
				vibe_tags, vote_count, priority_score, status, moderation_reason,
				review_note, dj_notes, set_order
			) VALUES (
				$1, $2, $3, $4, $5, $6, $7, $8, $9::jsonb, $10, $11, $12, $13, $14, $15,
				$16, $17, $18, $19, $20, $21, $22, $23, $24
			)
			RETURNING id`

		var id int64
		insertErr := tx.QueryRowContext(ctx, query,
			e.TrackID, e.TrackName, pq.Array(orEmpty(e.Artists)), e.AlbumName, e.AlbumImage, e.SpotifyURL,
			e.RequesterName, e.RequesterRole, string(requesters), e.CustomMessage, e.DedicationMessage,
			e.EventDate, e.Explicit, e.ContentConfidence, e.DanceMoment, e.EnergyLevel,
			pq.Array(orEmpty(e.VibeTags)), e.VoteCount, e.PriorityScore, e.Status, e.ModerationReason,
			e.ReviewNote, e.DJNotes, setOrder,
		).Scan(&id)
		if isUniqueViolation(insertErr) {
			return fmt.Errorf("insert entry for track %s: %w", e.TrackID, domain.ErrConflictingState)
		}
		if insertErr != nil {
			return fmt.Errorf("insert entry: %w", insertErr)
		}

		if renumberErr := renumberActive(ctx, tx); renumberErr != nil {
			return renumberErr
		}

		stored, err = getByIDTx(ctx, tx, id)
		return err
	})
	if err != nil {
		return nil, err
	}

	r.logger.Debug("Queue entry created",
		infralogger.Int64("entry_id", stored.ID),
		infralogger.String("track_id", stored.TrackID),
		infralogger.String("status", string(stored.Status)),
	)

	return stored, nil
}

// Save writes the mutable fields of e, resolves its set order the same way
// Create does, renumbers the queue and returns the stored entry.
func (r *EntryRepository) Save(ctx context.Context, e *domain.Entry) (*domain.Entry, error) {
	var stored *domain.Entry

	err := r.withOrderTx(ctx, func(tx *sqlx.Tx) error {
		setOrder, err := resolveSetOrder(ctx, tx, e)
		if err != nil {
			return err
		}

		requesters, err := marshalRequesters(e.Requesters)
		if err != nil {
			return fmt.Errorf("marshal requesters: %w", err)
		}

		query := `
			UPDATE queue_entries SET
				requester_role = $2,
				requesters = $3::jsonb,
				dedication_message = $4,
				event_date = $5,
				explicit_flag = $6,
				content_confidence = $7,
				dance_moment = $8,
				energy_level = $9,
				vibe_tags = $10,
				vote_count = $11,
				priority_score = $12,
				status = $13,
				moderation_reason = $14,
				review_note = $15,
				dj_notes = $16,
				set_order = $17,
				updated_at = NOW()
			WHERE id = $1`

		result, execErr := tx.ExecContext(ctx, query,
			e.ID, e.RequesterRole, string(requesters), e.DedicationMessage,
			e.EventDate, e.Explicit, e.ContentConfidence, e.DanceMoment,
			e.EnergyLevel, pq.Array(orEmpty(e.VibeTags)), e.VoteCount, e.PriorityScore,
			e.Status, e.ModerationReason, e.ReviewNote, e.DJNotes, setOrder,
		)
		if isUniqueViolation(execErr) {
			return domain.NewConflictError(msgTrackAlreadyActive)
		}
		if execErr != nil {
			return fmt.Errorf("update entry %d: %w", e.ID, execErr)
		}

		affected, rowsErr := result.RowsAffected()
		if rowsErr != nil {
			return fmt.Errorf("update entry %d rows: %w", e.ID, rowsErr)
		}
		if affected == 0 {
			return domain.ErrNotFound
		}

		if renumberErr := renumberActive(ctx, tx); renumberErr != nil {
			return renumberErr
		}

		stored, err = getByIDTx(ctx, tx, e.ID)
		return err
	})
	if err != nil {
		return nil, err
	}

	return stored, nil
}

// RenumberActive compacts active set orders to 1..N.
func (r *EntryRepository) RenumberActive(ctx context.Context) error {
	return r.withOrderTx(ctx, func(tx *sqlx.Tx) error {
		return renumberActive(ctx, tx)
	})
}

// Reorder locks the active queue, passes its ids in play order to plan and
// stores the order plan returns as positions 1..N.
func (r *EntryRepository) Reorder(ctx context.Context, plan func(active []int64) ([]int64, error)) error {
	return r.withOrderTx(ctx, func(tx *sqlx.Tx) error {
		var active []int64
		err := tx.SelectContext(ctx, &active,
			`SELECT id FROM queue_entries WHERE status <> 'rejected' ORDER BY `+activeOrder+` FOR UPDATE`)
		if err != nil {
			return fmt.Errorf("list active ids: %w", err)
		}

		ordered, err := plan(active)
		if err != nil {
			return err
		}

		positions := make([]int64, len(ordered))
		for i := range ordered {
			positions[i] = int64(i + 1)
		}

		_, err = tx.ExecContext(ctx, `
			UPDATE queue_entries AS q
			SET set_order = v.position, updated_at = NOW()
			FROM UNNEST($1::bigint[], $2::bigint[]) AS v(id, position)
			WHERE q.id = v.id AND q.set_order IS DISTINCT FROM v.position`,
			pq.Array(ordered), pq.Array(positions),
		)
		if err != nil {
			return fmt.Errorf("apply order: %w", err)
		}
		return nil
	})
}

// ApplyBulkUpdate changes the selected entries and renumbers in one
// transaction. It returns the ids it changed.
func (r *EntryRepository) ApplyBulkUpdate(ctx context.Context, u BulkUpdate) ([]int64, error) {
	var ids []int64

	err := r.withOrderTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			WITH picked AS (
				SELECT id FROM queue_entries
				WHERE status = 'pending' AND content_confidence = $1 AND priority_score >= $2
				ORDER BY priority_score DESC, vote_count DESC, id DESC
				LIMIT $3
				FOR UPDATE
			)
			UPDATE queue_entries AS q
			SET status = $4,
				moderation_reason = $5,
				review_note = $6,
				set_order = CASE WHEN $7 THEN NULL ELSE q.set_order END,
				updated_at = NOW()
			FROM picked
			WHERE q.id = picked.id
			RETURNING q.id`

		err := tx.SelectContext(ctx, &ids, query,
			u.Confidence, u.MinPriority, u.Limit, u.Status, u.Reason, u.ReviewNote, !u.Status.Active())
		if err != nil {
			return fmt.Errorf("bulk update: %w", err)
		}

		return renumberActive(ctx, tx)
	})
	if err != nil {
		return nil, err
	}

	return ids, nil
}

// DeleteNextApproved removes the first approved entry in play order. ok is
// false when there is none.
func (r *EntryRepository) DeleteNextApproved(ctx context.Context) (int64, bool, error) {
	var (
		id    int64
		found bool
	)

	err := r.withOrderTx(ctx, func(tx *sqlx.Tx) error {
		query := `
			DELETE FROM queue_entries
			WHERE id = (
				SELECT id FROM queue_entries
				WHERE status = 'approved'
				ORDER BY ` + activeOrder + `
				LIMIT 1
			)
			RETURNING id`

		err := tx.QueryRowContext(ctx, query).Scan(&id)
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("delete next approved: %w", err)
		}
		found = true

		return renumberActive(ctx, tx)
	})
	if err != nil {
		return 0, false, err
	}

	return id, found, nil
}

// DeleteByStatus removes entries in the given statuses, or every entry when
// none are given, and renumbers.
func (r *EntryRepository) DeleteByStatus(ctx context.Context, statuses ...domain.Status) (int64, error) {
	var deleted int64

	err := r.withOrderTx(ctx, func(tx *sqlx.Tx) error {
		var (
			result sql.Result
			err    error
		)
		if len(statuses) == 0 {
			result, err = tx.ExecContext(ctx, `DELETE FROM queue_entries`)
		} else {
			names := make([]string, len(statuses))
			for i, s := range statuses {
				names[i] = string(s)
			}
			result, err = tx.ExecContext(ctx,
				`DELETE FROM queue_entries WHERE status = ANY($1)`, pq.Array(names))
		}
		if err != nil {
			return fmt.Errorf("delete entries: %w", err)
		}

		deleted, err = result.RowsAffected()
		if err != nil {
			return fmt.Errorf("delete entries rows: %w", err)
		}

		return renumberActive(ctx, tx)
	})
	if err != nil {
		return 0, err
	}

	return deleted, nil
}

// List returns entries for the admin view: rejected last, then play order.
func (r *EntryRepository) List(ctx context.Context, f EntryFilter) ([]*domain.Entry, error) {
	var (
		clauses []string
		args    []any
	)
	arg := func(v any) string {
		args = append(args, v)
		return fmt.Sprintf("$%d", len(args))
	}

	if f.ActiveOnly {
		clauses = append(clauses, "status <> 'rejected'")
	}
	if f.Status != "" {
		clauses = append(clauses, "status = "+arg(f.Status))
	}
	if f.Confidence != "" {
		clauses = append(clauses, "content_confidence = "+arg(f.Confidence))
	}
	if f.DanceMoment != "" {
		clauses = append(clauses, "dance_moment = "+arg(f.DanceMoment))
	}
	if q := strings.ToLower(strings.TrimSpace(f.Query)); q != "" {
		p := arg("%" + escapeLike(q) + "%")
		clauses = append(clauses, fmt.Sprintf(
			"(LOWER(track_name) LIKE %[1]s OR LOWER(ARRAY_TO_STRING(artists, ' ')) LIKE %[1]s OR LOWER(requester_name) LIKE %[1]s)",
			p))
	}

	query := `SELECT ` + entryColumns + ` FROM queue_entries`
	if len(clauses) > 0 {
		query += ` WHERE ` + strings.Join(clauses, " AND ")
	}
	query += ` ORDER BY CASE WHEN status = 'rejected' THEN 1 ELSE 0 END, ` + activeOrder

	entries, err := r.selectEntries(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("list entries: %w", err)
	}
	return entries, nil
}

// ListApproved returns up to limit approved entries in play order, ties
// broken by priority.
func (r *EntryRepository) ListApproved(ctx context.Context, limit int) ([]*domain.Entry, error) {
	query := `SELECT ` + entryColumns + `
		FROM queue_entries
		WHERE status = 'approved'
		ORDER BY set_order ASC NULLS LAST, priority_score DESC, vote_count DESC, id DESC
		LIMIT $1`

	entries, err := r.selectEntries(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("list approved entries: %w", err)
	}
	return entries, nil
}

// ListAll returns every entry, oldest first.
func (r *EntryRepository) ListAll(ctx context.Context) ([]*domain.Entry, error) {
	entries, err := r.selectEntries(ctx, `SELECT `+entryColumns+` FROM queue_entries ORDER BY id ASC`)
	if err != nil {
		return nil, fmt.Errorf("list all entries: %w", err)
	}
	return entries, nil
}

// Ping checks the connection.
func (r *EntryRepository) Ping(ctx context.Context) error {
	return r.db.PingContext(ctx)
}

// withOrderTx runs fn in a transaction holding the queue order lock.
func (r *EntryRepository) withOrderTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	start := time.Now()

	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, lockErr := tx.ExecContext(ctx, `SELECT pg_advisory_xact_lock($1)`, queueOrderLockKey); lockErr != nil {
		return fmt.Errorf("lock queue order: %w", lockErr)
	}

	if fnErr := fn(tx); fnErr != nil {
		return fnErr
	}

	if commitErr := tx.Commit(); commitErr != nil {
		return fmt.Errorf("commit transaction: %w", commitErr)
	}

	r.logger.Debug("Queue order transaction committed", infralogger.Duration("duration", time.Since(start)))
	return nil
}

// resolveSetOrder returns nil for rejected entries, the entry's own order
// when it has one, and the tail position otherwise.
func resolveSetOrder(ctx context.Context, tx *sqlx.Tx, e *domain.Entry) (*int, error) {
	if !e.Status.Active() {
		return nil, nil
	}
	if e.SetOrder != nil {
		return e.SetOrder, nil
	}

	var next int
	err := tx.GetContext(ctx, &next,
		`SELECT COALESCE(MAX(set_order), 0) + 1 FROM queue_entries WHERE status <> 'rejected'`)
	if err != nil {
		return nil, fmt.Errorf("next set order: %w", err)
	}
	return &next, nil
}

// renumberActive clears rejected orders and compacts active ones to 1..N,
// preserving the current order with id as tie-break.
func renumberActive(ctx context.Context, tx *sqlx.Tx) error {
	_, err := tx.ExecContext(ctx,
		`UPDATE queue_entries SET set_order = NULL WHERE status = 'rejected' AND set_order IS NOT NULL`)
	if err != nil {
		return fmt.Errorf("clear rejected orders: %w", err)
	}

	_, err = tx.ExecContext(ctx, `
		UPDATE queue_entries AS q
		SET set_order = ranked.position
		FROM (
			SELECT id, ROW_NUMBER() OVER (ORDER BY `+activeOrder+`) AS position
			FROM queue_entries
			WHERE status <> 'rejected'
		) AS ranked
		WHERE q.id = ranked.id AND q.set_order IS DISTINCT FROM ranked.position`)
	if err != nil {
		return fmt.Errorf("renumber active: %w", err)
	}
	return nil
}

func getByIDTx(ctx context.Context, tx *sqlx.Tx, id int64) (*domain.Entry, error) {
	e, err := getEntry(ctx, tx, `SELECT `+entryColumns+` FROM queue_entries WHERE id = $1`, id)
	if err != nil {
		return nil, fmt.Errorf("reload entry %d: %w", id, err)
	}
	return e, nil
}

// uniqueViolation is the SQLSTATE for a unique index conflict.
const uniqueViolation = "23505"

func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == uniqueViolation
}

func escapeLike(s string) string {
	return strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(s)
}

func orEmpty(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

func marshalRequesters(requesters []domain.Requester) ([]byte, error) {
	if requesters == nil {
		requesters = []domain.Requester{}
	}
	return json.Marshal(requesters)
}
