package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/leadbook/internal/model"
)

// ContactServiceInterface は連絡先ハンドラーが必要とするサービスインターフェース。
type ContactServiceInterface interface {
	// Create は連絡先を新規作成する。email重複時は既存レコードとエラーの両方を返す。
	Create(ctx context.Context, email, name string, tags []string, notes string) (*model.Contact, error)
	// SetTags はタグ集合を全置換する。notesがnilでなければnotesも置き換える。
	SetTags(ctx context.Context, contactID string, tags []string, notes *string) (*model.Contact, error)
	// ListAll は全連絡先を返す。
	ListAll(ctx context.Context) ([]*model.Contact, error)
	// ListSince は直近days日以内に作成された連絡先を返す。
	ListSince(ctx context.Context, days int) ([]*model.Contact, error)
	// ListByTag は指定タグを持つ連絡先を返す。
	ListByTag(ctx context.Context, tag string) ([]*model.Contact, error)
	// ListTagsWithCounts はタグごとの使用件数を返す。
	ListTagsWithCounts(ctx context.Context) ([]model.TagCount, error)
}

// ContactHandler は連絡先管理のHTTPハンドラー。
// degradeReadsがtrueの場合、読み取り系エンドポイントはストア障害時に
// 500ではなく空の成功レスポンスへ縮退する（部分障害時もダッシュボードを
// 使用可能に保つための明示的なポリシー）。書き込み系は常にエラーを返す。
type ContactHandler struct {
	service      ContactServiceInterface
	degradeReads bool
	defaultDays  int
}

// NewContactHandler はContactHandlerを生成する。
func NewContactHandler(service ContactServiceInterface, degradeReads bool, defaultDays int) *ContactHandler {
	return &ContactHandler{
		service:      service,
		degradeReads: degradeReads,
		defaultDays:  defaultDays,
	}
}

// createContactRequest は連絡先作成リクエストのボディ。
type createContactRequest struct {
	Email string   `json:"email"`
	Name  string   `json:"name"`
	Tags  []string `json:"tags"`
	Notes string   `json:"notes"`
}

// setTagsRequest はタグ置換リクエストのボディ。
// Notesが省略された場合は既存のnotesを維持する。
type setTagsRequest struct {
	Tags  []string `json:"tags"`
	Notes *string  `json:"notes"`
}

// contactListResponse は連絡先一覧のレスポンス。
type contactListResponse struct {
	Success bool              `json:"success"`
	Data    []contactResponse `json:"data"`
	Count   int               `json:"count"`
	Days    int               `json:"days,omitempty"`
	Tag     string            `json:"tag,omitempty"`
}

// contactSingleResponse は連絡先1件のレスポンス。
type contactSingleResponse struct {
	Success bool            `json:"success"`
	Data    contactResponse `json:"data"`
}

// tagListResponse はタグ集計のレスポンス。
type tagListResponse struct {
	Success bool               `json:"success"`
	Data    []tagCountResponse `json:"data"`
}

// tagCountResponse はタグと使用件数のレスポンス表現。
type tagCountResponse struct {
	Tag   string `json:"tag"`
	Count int    `json:"count"`
}

// ListContacts は全連絡先の一覧を返す。
// GET /api/contacts
func (h *ContactHandler) ListContacts(w http.ResponseWriter, r *http.Request) {
	contacts, err := h.service.ListAll(r.Context())
	if err != nil {
		h.degradeOrFail(w, err, contactListResponse{Success: true, Data: []contactResponse{}})
		return
	}

	data := toContactResponses(contacts)
	writeJSON(w, http.StatusOK, contactListResponse{Success: true, Data: data, Count: len(data)})
}

// ListNewContacts は直近days日以内に作成された連絡先を返す。
// GET /api/contacts/new?days=N
func (h *ContactHandler) ListNewContacts(w http.ResponseWriter, r *http.Request) {
	days := h.defaultDays
	if raw := r.URL.Query().Get("days"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed < 1 {
			writeError(w, http.StatusBadRequest, "days must be a positive integer")
			return
		}
		days = parsed
	}

	contacts, err := h.service.ListSince(r.Context(), days)
	if err != nil {
		h.degradeOrFail(w, err, contactListResponse{Success: true, Data: []contactResponse{}, Days: days})
		return
	}

	data := toContactResponses(contacts)
	writeJSON(w, http.StatusOK, contactListResponse{Success: true, Data: data, Count: len(data), Days: days})
}

// CreateContact は連絡先の明示的な作成を処理する。
// POST /api/contacts
func (h *ContactHandler) CreateContact(w http.ResponseWriter, r *http.Request) {
	var req createContactRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Email == "" {
		writeError(w, http.StatusBadRequest, "email is required")
		return
	}

	created, err := h.service.Create(r.Context(), req.Email, req.Name, req.Tags, req.Notes)
	if err != nil {
		// email重複時は既存レコードが取得できていればレスポンスに含める
		var apiErr *model.APIError
		if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeDuplicateEmail {
			resp := errorResponse{Success: false, Error: apiErr.Message}
			if created != nil {
				resp.Existing = toContactResponse(created)
			}
			writeJSON(w, http.StatusConflict, resp)
			return
		}
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusCreated, contactSingleResponse{Success: true, Data: toContactResponse(created)})
}

// SetTags は連絡先のタグ集合を全置換する。
// POST /api/contacts/:id/tags
func (h *ContactHandler) SetTags(w http.ResponseWriter, r *http.Request) {
	contactID := chi.URLParam(r, "id")

	var req setTagsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Tags == nil {
		writeError(w, http.StatusBadRequest, "tags is required")
		return
	}

	updated, err := h.service.SetTags(r.Context(), contactID, req.Tags, req.Notes)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, contactSingleResponse{Success: true, Data: toContactResponse(updated)})
}

// ListByTag は指定タグを持つ連絡先の一覧を返す。
// GET /api/contacts/tag/:tag
func (h *ContactHandler) ListByTag(w http.ResponseWriter, r *http.Request) {
	tag := chi.URLParam(r, "tag")

	contacts, err := h.service.ListByTag(r.Context(), tag)
	if err != nil {
		h.degradeOrFail(w, err, contactListResponse{Success: true, Data: []contactResponse{}, Tag: tag})
		return
	}

	data := toContactResponses(contacts)
	writeJSON(w, http.StatusOK, contactListResponse{Success: true, Data: data, Count: len(data), Tag: tag})
}

// ListTags はタグごとの使用件数を返す。
// GET /api/tags
func (h *ContactHandler) ListTags(w http.ResponseWriter, r *http.Request) {
	counts, err := h.service.ListTagsWithCounts(r.Context())
	if err != nil {
		h.degradeOrFail(w, err, tagListResponse{Success: true, Data: []tagCountResponse{}})
		return
	}

	data := make([]tagCountResponse, 0, len(counts))
	for _, tc := range counts {
		data = append(data, tagCountResponse{Tag: tc.Tag, Count: tc.Count})
	}
	writeJSON(w, http.StatusOK, tagListResponse{Success: true, Data: data})
}

// degradeOrFail は読み取り系エンドポイントのストア障害を処理する。
// degradeReadsが有効、かつバリデーションエラーでない場合は空の成功レスポンスを
// 返してダッシュボードを使用可能に保つ。無効な場合は通常のエラーレスポンスを返す。
func (h *ContactHandler) degradeOrFail(w http.ResponseWriter, err error, empty any) {
	var apiErr *model.APIError
	if errors.As(err, &apiErr) && apiErr.Code == model.ErrCodeValidation {
		handleServiceError(w, err)
		return
	}

	if h.degradeReads {
		slog.Warn("read endpoint degraded to empty result", slog.String("error", err.Error()))
		writeJSON(w, http.StatusOK, empty)
		return
	}

	handleServiceError(w, err)
}
