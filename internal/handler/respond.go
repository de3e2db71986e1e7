// Package handler はHTTPハンドラーを提供する。
package handler

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/hitoshi/leadbook/internal/model"
)

// errorResponse は失敗レスポンスの統一フォーマット。
// successは常にfalse。Detailsは想定外エラーの補足情報で、省略されることがある。
type errorResponse struct {
	Success  bool   `json:"success"`
	Error    string `json:"error"`
	Details  string `json:"details,omitempty"`
	Existing any    `json:"existing,omitempty"`
}

// writeJSON はJSONレスポンスを書き込む。
func writeJSON(w http.ResponseWriter, statusCode int, body any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(body); err != nil {
		slog.Error("failed to encode response", slog.String("error", err.Error()))
	}
}

// writeError は統一フォーマットでエラーレスポンスを書き込む。
func writeError(w http.ResponseWriter, statusCode int, message string) {
	writeJSON(w, statusCode, errorResponse{Success: false, Error: message})
}

// handleServiceError はサービス層から返されたエラーを適切なHTTPステータスコードに変換する。
func handleServiceError(w http.ResponseWriter, err error) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) {
		writeError(w, statusForCode(apiErr.Code), apiErr.Message)
		return
	}

	// APIError以外のエラーは内部サーバーエラーとして扱う
	slog.Error("internal server error", slog.String("error", err.Error()))
	writeJSON(w, http.StatusInternalServerError, errorResponse{
		Success: false,
		Error:   "internal server error",
		Details: err.Error(),
	})
}

// statusForCode はAPIErrorコードからHTTPステータスコードにマッピングする。
func statusForCode(code string) int {
	switch code {
	case model.ErrCodeValidation, model.ErrCodePolicyViolation:
		return http.StatusBadRequest
	case model.ErrCodeAuthExpired, model.ErrCodeUnauthenticated:
		return http.StatusUnauthorized
	case model.ErrCodeNotFound:
		return http.StatusNotFound
	case model.ErrCodeDuplicateEmail:
		return http.StatusConflict
	case model.ErrCodeAuthNotConfigured, model.ErrCodeProvider, model.ErrCodeStore:
		return http.StatusInternalServerError
	default:
		return http.StatusInternalServerError
	}
}

// contactResponse は連絡先のAPIレスポンス表現。
// first_seen/last_seenは日付のみの文字列（YYYY-MM-DD）。
type contactResponse struct {
	ID           string   `json:"id"`
	Email        string   `json:"email"`
	Name         string   `json:"name"`
	FirstSeen    *string  `json:"first_seen"`
	LastSeen     *string  `json:"last_seen"`
	MeetingCount int      `json:"meeting_count"`
	Tags         []string `json:"tags"`
	Notes        string   `json:"notes"`
	CreatedAt    string   `json:"created_at"`
	UpdatedAt    string   `json:"updated_at"`
}

// toContactResponse はmodel.ContactからAPIレスポンスに変換する。
func toContactResponse(c *model.Contact) contactResponse {
	resp := contactResponse{
		ID:           c.ID,
		Email:        c.Email,
		Name:         c.Name,
		MeetingCount: c.MeetingCount,
		Tags:         c.Tags,
		Notes:        c.Notes,
		CreatedAt:    c.CreatedAt.UTC().Format(time.RFC3339),
		UpdatedAt:    c.UpdatedAt.UTC().Format(time.RFC3339),
	}
	if resp.Tags == nil {
		resp.Tags = []string{}
	}
	if c.FirstSeen != nil {
		s := c.FirstSeen.Format("2006-01-02")
		resp.FirstSeen = &s
	}
	if c.LastSeen != nil {
		s := c.LastSeen.Format("2006-01-02")
		resp.LastSeen = &s
	}
	return resp
}

// toContactResponses は連絡先スライスをAPIレスポンスに変換する。
func toContactResponses(contacts []*model.Contact) []contactResponse {
	resp := make([]contactResponse, 0, len(contacts))
	for _, c := range contacts {
		resp = append(resp, toContactResponse(c))
	}
	return resp
}
