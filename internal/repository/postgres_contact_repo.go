package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/lib/pq"

	"github.com/hitoshi/leadbook/internal/model"
)

// PostgresContactRepo はPostgreSQLを使用した連絡先リポジトリ。
type PostgresContactRepo struct {
	db *sql.DB
}

// NewPostgresContactRepo はPostgresContactRepoを生成する。
func NewPostgresContactRepo(db *sql.DB) *PostgresContactRepo {
	return &PostgresContactRepo{db: db}
}

// contactColumns はSELECT句で使用するカラムリスト。scanContactと対で管理する。
const contactColumns = `id, email, name, first_seen, last_seen, meeting_count, tags, notes, created_at, updated_at`

// scanContact は1行を*model.Contactへスキャンする。
func scanContact(row interface{ Scan(...any) error }) (*model.Contact, error) {
	c := &model.Contact{}
	var firstSeen, lastSeen sql.NullTime
	err := row.Scan(
		&c.ID, &c.Email, &c.Name, &firstSeen, &lastSeen,
		&c.MeetingCount, pq.Array(&c.Tags), &c.Notes, &c.CreatedAt, &c.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}
	if firstSeen.Valid {
		t := firstSeen.Time
		c.FirstSeen = &t
	}
	if lastSeen.Valid {
		t := lastSeen.Time
		c.LastSeen = &t
	}
	return c, nil
}

// FindByID は指定IDの連絡先を取得する。見つからない場合はnilを返す。
func (r *PostgresContactRepo) FindByID(ctx context.Context, id string) (*model.Contact, error) {
	contact, err := scanContact(r.db.QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE id = $1`,
		id,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find contact by ID: %w", err)
	}
	return contact, nil
}

// FindByEmail は正規化済みemailで連絡先を検索する。見つからない場合はnilを返す。
func (r *PostgresContactRepo) FindByEmail(ctx context.Context, email string) (*model.Contact, error) {
	contact, err := scanContact(r.db.QueryRowContext(ctx,
		`SELECT `+contactColumns+` FROM contacts WHERE email = $1`,
		email,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find contact by email: %w", err)
	}
	return contact, nil
}

// Create は連絡先を新規作成する。emailが既に存在する場合はErrDuplicateEmailを返す。
func (r *PostgresContactRepo) Create(ctx context.Context, contact *model.Contact) error {
	if contact.ID == "" {
		contact.ID = uuid.New().String()
	}
	if contact.Tags == nil {
		contact.Tags = []string{}
	}

	err := r.db.QueryRowContext(ctx,
		`INSERT INTO contacts (id, email, name, meeting_count, tags, notes)
		 VALUES ($1, $2, $3, 0, $4, $5)
		 RETURNING created_at, updated_at`,
		contact.ID, contact.Email, contact.Name, pq.Array(contact.Tags), contact.Notes,
	).Scan(&contact.CreatedAt, &contact.UpdatedAt)

	if pqErr, ok := err.(*pq.Error); ok && pqErr.Code == "23505" {
		return fmt.Errorf("%w: %s", ErrDuplicateEmail, contact.Email)
	}
	if err != nil {
		return fmt.Errorf("failed to insert contact: %w", err)
	}

	return nil
}

// UpsertFromAttendance はイベント参加実績から連絡先を1文UPSERTする。
// last_seenは時系列に関係なく常にeventDateへ進める。並び順はプロバイダーの
// 返却順に依存するため、単調増加は保証しない仕様。
// 手動作成などでfirst_seenがNULLの既存連絡先は、最初の参加日で埋める。
func (r *PostgresContactRepo) UpsertFromAttendance(ctx context.Context, email, displayName string, eventDate time.Time) (*model.Contact, error) {
	contact, err := scanContact(r.db.QueryRowContext(ctx,
		`INSERT INTO contacts (id, email, name, first_seen, last_seen, meeting_count)
		 VALUES ($1, $2, $3, $4, $4, 1)
		 ON CONFLICT (email) DO UPDATE SET
		     name = CASE WHEN EXCLUDED.name <> '' THEN EXCLUDED.name ELSE contacts.name END,
		     first_seen = COALESCE(contacts.first_seen, EXCLUDED.first_seen),
		     last_seen = EXCLUDED.last_seen,
		     meeting_count = contacts.meeting_count + 1,
		     updated_at = now()
		 RETURNING `+contactColumns,
		uuid.New().String(), email, displayName, eventDate,
	))
	if err != nil {
		return nil, fmt.Errorf("failed to upsert contact from attendance: %w", err)
	}
	return contact, nil
}

// ReplaceTags はタグ集合を全置換し、notesがnilでなければnotesも置き換える。
// 見つからない場合はnilを返す。
func (r *PostgresContactRepo) ReplaceTags(ctx context.Context, id string, tags []string, notes *string) (*model.Contact, error) {
	if tags == nil {
		tags = []string{}
	}

	var notesArg sql.NullString
	if notes != nil {
		notesArg = sql.NullString{String: *notes, Valid: true}
	}

	contact, err := scanContact(r.db.QueryRowContext(ctx,
		`UPDATE contacts
		 SET tags = $2,
		     notes = COALESCE($3, notes),
		     updated_at = now()
		 WHERE id = $1
		 RETURNING `+contactColumns,
		id, pq.Array(tags), notesArg,
	))
	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to replace tags: %w", err)
	}
	return contact, nil
}

// ListAll は全連絡先をlast_seen降順（NULLは末尾）で返す。
func (r *PostgresContactRepo) ListAll(ctx context.Context) ([]*model.Contact, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+contactColumns+` FROM contacts
		 ORDER BY last_seen DESC NULLS LAST, created_at DESC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts: %w", err)
	}
	defer rows.Close()

	return collectContacts(rows)
}

// ListSince は直近days日以内に作成された連絡先をcreated_at降順で返す。
func (r *PostgresContactRepo) ListSince(ctx context.Context, days int) ([]*model.Contact, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+contactColumns+` FROM contacts
		 WHERE created_at >= now() - make_interval(days => $1)
		 ORDER BY created_at DESC`,
		days,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list recent contacts: %w", err)
	}
	defer rows.Close()

	return collectContacts(rows)
}

// ListByTag は指定タグを持つ連絡先を返す。
func (r *PostgresContactRepo) ListByTag(ctx context.Context, tag string) ([]*model.Contact, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+contactColumns+` FROM contacts
		 WHERE $1 = ANY(tags)
		 ORDER BY last_seen DESC NULLS LAST, created_at DESC`,
		tag,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list contacts by tag: %w", err)
	}
	defer rows.Close()

	return collectContacts(rows)
}

// CountAll は連絡先の総数を返す。
func (r *PostgresContactRepo) CountAll(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM contacts`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count contacts: %w", err)
	}
	return count, nil
}

// ListTagCounts は全連絡先のタグを集計し、使用件数の多い順に返す。
func (r *PostgresContactRepo) ListTagCounts(ctx context.Context) ([]model.TagCount, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT tag, COUNT(*) AS cnt
		 FROM contacts, unnest(tags) AS tag
		 GROUP BY tag
		 ORDER BY cnt DESC, tag ASC`,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to count tags: %w", err)
	}
	defer rows.Close()

	var counts []model.TagCount
	for rows.Next() {
		var tc model.TagCount
		if err := rows.Scan(&tc.Tag, &tc.Count); err != nil {
			return nil, fmt.Errorf("failed to scan tag count: %w", err)
		}
		counts = append(counts, tc)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate tag counts: %w", err)
	}

	return counts, nil
}

// collectContacts はrowsから連絡先のスライスを構築する。
func collectContacts(rows *sql.Rows) ([]*model.Contact, error) {
	var contacts []*model.Contact
	for rows.Next() {
		contact, err := scanContact(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan contact: %w", err)
		}
		contacts = append(contacts, contact)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate contacts: %w", err)
	}
	return contacts, nil
}

// compile-time interface check
var _ ContactRepository = (*PostgresContactRepo)(nil)
