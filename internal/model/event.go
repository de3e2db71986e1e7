// Package model はドメインモデルを定義する。
package model

import "time"

// Event はプロバイダーのカレンダーイベントのローカルミラーを表す。
// google_event_idを自然キーとする。正とするデータはあくまでプロバイダー側で、
// Notesのみローカル固有の項目として再同期後も保持される。
type Event struct {
	ID             int64
	GoogleEventID  string
	Summary        string
	Description    string
	StartTime      time.Time
	EndTime        time.Time
	AttendeesCount int
	AttendeeEmails []string
	HangoutLink    string
	Notes          string
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

// ProviderAttendee はプロバイダーから取得したイベント参加者を表す。
type ProviderAttendee struct {
	Email       string
	DisplayName string
}

// ProviderEvent はプロバイダーから取得した未保存のイベントを表す。
// 繰り返しイベントは個別の発生に展開済み。
type ProviderEvent struct {
	ID          string
	Summary     string
	Description string
	Start       time.Time
	End         time.Time
	Attendees   []ProviderAttendee
	HangoutLink string
}
