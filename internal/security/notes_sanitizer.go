// Package security はアプリケーションのセキュリティ機能を提供する。
//
// NotesSanitizerService は連絡先・イベントの自由記述メモをサニタイズし、
// ダッシュボードでの表示時にXSS攻撃からユーザーを保護する。
// bluemondayライブラリの厳格ポリシーで、HTMLタグをすべて除去する。
package security

import "github.com/microcosm-cc/bluemonday"

// NotesSanitizerService はメモのサニタイズ機能のインターフェースを定義する。
// 連絡先・イベントのnotes保存前に使用される。
type NotesSanitizerService interface {
	// Sanitize はメモからHTMLタグをすべて除去してプレーンテキストを返す。
	// 空文字列の入力には空文字列を返す。
	// 同一入力に対して常に同一出力を返す（冪等）。
	Sanitize(raw string) string
}

// notesSanitizer はNotesSanitizerServiceの実装。
// bluemondayの厳格ポリシーを保持し、スレッドセーフにサニタイズ処理を行う。
type notesSanitizer struct {
	policy *bluemonday.Policy
}

// NewNotesSanitizer はNotesSanitizerServiceの新しいインスタンスを生成する。
// メモは書式なしのプレーンテキストとして扱うため、StrictPolicyで
// タグをすべて除去する。
func NewNotesSanitizer() *notesSanitizer {
	return &notesSanitizer{
		policy: bluemonday.StrictPolicy(),
	}
}

// Sanitize はメモからHTMLタグをすべて除去して返す。
func (s *notesSanitizer) Sanitize(raw string) string {
	return s.policy.Sanitize(raw)
}
