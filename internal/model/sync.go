// Package model はドメインモデルを定義する。
package model

import "time"

// NewContact は同期パスで新規作成された連絡先のサマリーを表す。
type NewContact struct {
	Email     string
	Name      string
	FirstSeen time.Time
}

// SyncResult は1回の同期パスの結果を表す。
// 個別レコードの失敗はErrorsに蓄積され、パス全体は継続する。
type SyncResult struct {
	NewContacts     []NewContact
	TotalContacts   int
	EventsProcessed int
	Errors          []string
}
