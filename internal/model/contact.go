// Package model はドメインモデルを定義する。
package model

import "time"

// Contact は名刺代わりの連絡先を表す。
// emailを自然キーとし、正規化済み（小文字化済み）のemailごとに必ず1件だけ存在する。
type Contact struct {
	ID           string
	Email        string
	Name         string
	FirstSeen    *time.Time // 初回ミーティング日（日付のみ有効）
	LastSeen     *time.Time // 直近ミーティング日（日付のみ有効）
	MeetingCount int
	Tags         []string
	Notes        string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// ReservedLeadTag は新規リードを示す予約タグ。
// 自社ドメインのアドレスには付与できない。
const ReservedLeadTag = "New Lead"

// PredefinedTags は常に集計結果に含める定義済みタグ。
// 未使用の場合はカウント0として返す。
var PredefinedTags = []string{
	ReservedLeadTag,
	"Client",
	"Prospect",
	"Partner",
	"Vendor",
	"Follow Up",
}

// TagCount はタグとその使用件数を表す。
type TagCount struct {
	Tag   string
	Count int
}
