// Package model はドメインモデルを定義する。
package model

import "fmt"

// APIError は統一エラーフォーマットを表す。
// CodeがHTTPステータスへのマッピングを決める。
type APIError struct {
	Code    string // エラーコード
	Message string // 人間可読のエラーメッセージ
}

// Error はerrorインターフェースを実装する。
func (e *APIError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// 定義済みエラーコード
const (
	ErrCodeValidation        = "VALIDATION_ERROR"
	ErrCodeAuthNotConfigured = "AUTH_NOT_CONFIGURED"
	ErrCodeAuthExpired       = "AUTH_EXPIRED"
	ErrCodeUnauthenticated   = "UNAUTHENTICATED"
	ErrCodeNotFound          = "NOT_FOUND"
	ErrCodeDuplicateEmail    = "DUPLICATE_EMAIL"
	ErrCodePolicyViolation   = "POLICY_VIOLATION"
	ErrCodeProvider          = "PROVIDER_ERROR"
	ErrCodeStore             = "STORE_ERROR"
)

// NewValidationError は入力不備のエラーを生成する。
func NewValidationError(reason string) *APIError {
	return &APIError{
		Code:    ErrCodeValidation,
		Message: reason,
	}
}

// NewAuthNotConfiguredError はカレンダー認証情報が未設定の場合のエラーを生成する。
func NewAuthNotConfiguredError() *APIError {
	return &APIError{
		Code:    ErrCodeAuthNotConfigured,
		Message: "Google Calendar credentials are not configured",
	}
}

// NewAuthExpiredError はプロバイダーがトークンを拒否した場合のエラーを生成する。
// このエラーを返す側は保持中の認証情報を破棄していなければならない。
func NewAuthExpiredError() *APIError {
	return &APIError{
		Code:    ErrCodeAuthExpired,
		Message: "calendar authentication expired, please re-authenticate",
	}
}

// NewUnauthenticatedError はカレンダー認証が未完了の場合のエラーを生成する。
func NewUnauthenticatedError() *APIError {
	return &APIError{
		Code:    ErrCodeUnauthenticated,
		Message: "not authenticated with Google Calendar",
	}
}

// NewContactNotFoundError は連絡先未検出のエラーを生成する。
func NewContactNotFoundError(id string) *APIError {
	return &APIError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("contact not found: %s", id),
	}
}

// NewEventNotFoundError はイベント未検出のエラーを生成する。
func NewEventNotFoundError(id string) *APIError {
	return &APIError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf("event not found: %s", id),
	}
}

// NewDuplicateEmailError はemail重複のエラーを生成する。
func NewDuplicateEmailError(email string) *APIError {
	return &APIError{
		Code:    ErrCodeDuplicateEmail,
		Message: fmt.Sprintf("contact already exists: %s", email),
	}
}

// NewPolicyViolationError は予約タグポリシー違反のエラーを生成する。
func NewPolicyViolationError(email string) *APIError {
	return &APIError{
		Code:    ErrCodePolicyViolation,
		Message: fmt.Sprintf("%q cannot be applied to an address on the owned domain: %s", ReservedLeadTag, email),
	}
}

// NewProviderError はカレンダープロバイダー起因のエラーを生成する。
// メッセージはそのままUIに露出する。
func NewProviderError(reason string) *APIError {
	return &APIError{
		Code:    ErrCodeProvider,
		Message: fmt.Sprintf("calendar provider error: %s", reason),
	}
}

// NewStoreError はデータベース起因のエラーを生成する。
func NewStoreError(reason string) *APIError {
	return &APIError{
		Code:    ErrCodeStore,
		Message: fmt.Sprintf("store error: %s", reason),
	}
}
