package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/hitoshi/leadbook/internal/model"
)

// PostgresEventRepo はPostgreSQLを使用したイベントミラーリポジトリ。
type PostgresEventRepo struct {
	db *sql.DB
}

// NewPostgresEventRepo はPostgresEventRepoを生成する。
func NewPostgresEventRepo(db *sql.DB) *PostgresEventRepo {
	return &PostgresEventRepo{db: db}
}

// eventColumns はSELECT句で使用するカラムリスト。scanEventと対で管理する。
const eventColumns = `id, google_event_id, summary, description, start_time, end_time, attendees_count, attendees_emails, hangout_link, notes, created_at, updated_at`

// scanEvent は1行を*model.Eventへスキャンする。
func scanEvent(row interface{ Scan(...any) error }) (*model.Event, error) {
	e := &model.Event{}
	var start, end sql.NullTime
	err := row.Scan(
		&e.ID, &e.GoogleEventID, &e.Summary, &e.Description, &start, &end,
		&e.AttendeesCount, pq.Array(&e.AttendeeEmails), &e.HangoutLink, &e.Notes,
		&e.CreatedAt, &e.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if start.Valid {
		e.StartTime = start.Time
	}
	if end.Valid {
		e.EndTime = end.Time
	}
	return e, nil
}

// FindByGoogleEventID はプロバイダーのイベントIDでイベントを検索する。
// 見つからない場合はnilを返す。
func (r *PostgresEventRepo) FindByGoogleEventID(ctx context.Context, googleEventID string) (*model.Event, error) {
	event, err := scanEvent(r.db.QueryRowContext(ctx,
		`SELECT `+eventColumns+` FROM events WHERE google_event_id = $1`,
		googleEventID,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find event: %w", err)
	}
	return event, nil
}

// Upsert はgoogle_event_idをキーにイベントスナップショットをUPSERTする。
// プロバイダー由来のフィールドは常に上書きし、ローカル固有のnotesは
// notesがnilの間は再同期をまたいで保持する。
func (r *PostgresEventRepo) Upsert(ctx context.Context, event *model.Event, notes *string) (*model.Event, error) {
	emails := event.AttendeeEmails
	if emails == nil {
		emails = []string{}
	}

	var notesArg sql.NullString
	if notes != nil {
		notesArg = sql.NullString{String: *notes, Valid: true}
	}

	stored, err := scanEvent(r.db.QueryRowContext(ctx,
		`INSERT INTO events (google_event_id, summary, description, start_time, end_time,
		                     attendees_count, attendees_emails, hangout_link, notes)
		 VALUES ($1, $2, $3, $4, $5, $6, $7, $8, COALESCE($9, ''))
		 ON CONFLICT (google_event_id) DO UPDATE SET
		     summary = EXCLUDED.summary,
		     description = EXCLUDED.description,
		     start_time = EXCLUDED.start_time,
		     end_time = EXCLUDED.end_time,
		     attendees_count = EXCLUDED.attendees_count,
		     attendees_emails = EXCLUDED.attendees_emails,
		     hangout_link = EXCLUDED.hangout_link,
		     notes = COALESCE($9, events.notes),
		     updated_at = now()
		 RETURNING `+eventColumns,
		event.GoogleEventID, event.Summary, event.Description,
		nullableTime(event.StartTime), nullableTime(event.EndTime),
		event.AttendeesCount, pq.Array(emails), event.HangoutLink, notesArg,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert event: %w", err)
	}
	return stored, nil
}

// nullableTime はゼロ値のtime.TimeをNULLとして扱うためのヘルパー。
func nullableTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t
}

// compile-time interface check
var _ EventRepository = (*PostgresEventRepo)(nil)
