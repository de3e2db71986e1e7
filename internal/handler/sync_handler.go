package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/hitoshi/leadbook/internal/model"
)

// SyncServiceInterface は同期ハンドラーが必要とするサービスインターフェース。
type SyncServiceInterface interface {
	// Run は指定日数の遡及ウィンドウで1回の同期パスを実行する。
	Run(ctx context.Context, days int) (*model.SyncResult, error)
}

// SyncHandler は同期実行のHTTPハンドラー。
type SyncHandler struct {
	service SyncServiceInterface
	maxDays int
}

// NewSyncHandler はSyncHandlerを生成する。
func NewSyncHandler(service SyncServiceInterface, maxDays int) *SyncHandler {
	return &SyncHandler{service: service, maxDays: maxDays}
}

// syncRequest は同期実行リクエストのボディ。ボディ省略時は既定の日数を使う。
type syncRequest struct {
	Days int `json:"days"`
}

// newContactResponse は同期パスで新規作成された連絡先のレスポンス表現。
type newContactResponse struct {
	Email     string `json:"email"`
	Name      string `json:"name"`
	FirstSeen string `json:"firstSeen"`
}

// syncResultResponse は同期パス結果のレスポンス表現。
type syncResultResponse struct {
	NewContacts     []newContactResponse `json:"newContacts"`
	TotalContacts   int                  `json:"totalContacts"`
	EventsProcessed int                  `json:"eventsProcessed"`
	Errors          []string             `json:"errors"`
}

// syncResponse は同期実行のレスポンス。
type syncResponse struct {
	Success bool               `json:"success"`
	Data    syncResultResponse `json:"data"`
	Message string             `json:"message"`
}

// RunSync は1回の同期パスを実行する。
// POST /api/sync
func (h *SyncHandler) RunSync(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil && err != io.EOF {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Days < 0 || req.Days > h.maxDays {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("days must be between 1 and %d", h.maxDays))
		return
	}

	result, err := h.service.Run(r.Context(), req.Days)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	data := syncResultResponse{
		NewContacts:     make([]newContactResponse, 0, len(result.NewContacts)),
		TotalContacts:   result.TotalContacts,
		EventsProcessed: result.EventsProcessed,
		Errors:          result.Errors,
	}
	if data.Errors == nil {
		data.Errors = []string{}
	}
	for _, nc := range result.NewContacts {
		data.NewContacts = append(data.NewContacts, newContactResponse{
			Email:     nc.Email,
			Name:      nc.Name,
			FirstSeen: nc.FirstSeen.Format("2006-01-02"),
		})
	}

	message := fmt.Sprintf("processed %d events, %d new contacts", data.EventsProcessed, len(data.NewContacts))
	writeJSON(w, http.StatusOK, syncResponse{Success: true, Data: data, Message: message})
}

// healthResponse はヘルスチェックのレスポンス。
type healthResponse struct {
	Status    string `json:"status"`
	Timestamp string `json:"timestamp"`
}

// Health はプロセスの生存確認を返す。
// GET /health
func Health(w http.ResponseWriter, _ *http.Request) {
	writeJSON(w, http.StatusOK, healthResponse{
		Status:    "OK",
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	})
}
