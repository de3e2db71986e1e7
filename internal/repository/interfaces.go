// Package repository はデータ永続化のインターフェースを定義する。
package repository

import (
	"context"
	"errors"
	"time"

	"github.com/hitoshi/leadbook/internal/model"
)

// ErrDuplicateEmail はemailのユニーク制約違反を表すセンチネルエラー。
// 呼び出し元は既存レコードの取得に切り替えて処理を継続できる。
var ErrDuplicateEmail = errors.New("duplicate email")

// ContactRepository は連絡先データの永続化インターフェース。
// emailは呼び出し側で小文字に正規化済みであることを前提とする。
type ContactRepository interface {
	// FindByID は指定IDの連絡先を取得する。見つからない場合はnilを返す。
	FindByID(ctx context.Context, id string) (*model.Contact, error)

	// FindByEmail は正規化済みemailで連絡先を検索する。見つからない場合はnilを返す。
	FindByEmail(ctx context.Context, email string) (*model.Contact, error)

	// Create は連絡先を新規作成する。
	// emailが既に存在する場合はErrDuplicateEmailを返す。
	Create(ctx context.Context, contact *model.Contact) error

	// UpsertFromAttendance はイベント参加実績から連絡先を1文UPSERTする。
	// 新規の場合はfirst_seen = last_seen = eventDate、meeting_count = 1で作成する。
	// 既存の場合はlast_seenをeventDateへ無条件に進め、meeting_countを+1する。
	// first_seenがNULLの既存連絡先（手動作成分）はeventDateで埋める。
	// displayNameが空でない場合のみnameを置き換える。
	// 同時実行される同期パスに対してはDBの行単位の原子性のみに依存する。
	UpsertFromAttendance(ctx context.Context, email, displayName string, eventDate time.Time) (*model.Contact, error)

	// ReplaceTags はタグ集合を全置換し、notesがnilでなければnotesも置き換える。
	// 更新後の連絡先を返す。見つからない場合はnilを返す。
	ReplaceTags(ctx context.Context, id string, tags []string, notes *string) (*model.Contact, error)

	// ListAll は全連絡先をlast_seen降順（NULLは末尾）で返す。
	ListAll(ctx context.Context) ([]*model.Contact, error)

	// ListSince は直近days日以内に作成された連絡先をcreated_at降順で返す。
	ListSince(ctx context.Context, days int) ([]*model.Contact, error)

	// ListByTag は指定タグを持つ連絡先を返す。
	ListByTag(ctx context.Context, tag string) ([]*model.Contact, error)

	// CountAll は連絡先の総数を返す。
	CountAll(ctx context.Context) (int, error)

	// ListTagCounts は全連絡先のタグを集計し、タグごとの使用件数を返す。
	ListTagCounts(ctx context.Context) ([]model.TagCount, error)
}

// EventRepository はイベントミラーの永続化インターフェース。
type EventRepository interface {
	// FindByGoogleEventID はプロバイダーのイベントIDでイベントを検索する。
	// 見つからない場合はnilを返す。
	FindByGoogleEventID(ctx context.Context, googleEventID string) (*model.Event, error)

	// Upsert はgoogle_event_idをキーにイベントスナップショットをUPSERTする。
	// プロバイダー由来のフィールドは常に上書きする。notesがnilの場合は
	// ローカルのnotesを保持し、nilでない場合のみ置き換える。
	Upsert(ctx context.Context, event *model.Event, notes *string) (*model.Event, error)
}
