package handler

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/hitoshi/leadbook/internal/model"
	"github.com/hitoshi/leadbook/internal/repository"
	"github.com/hitoshi/leadbook/internal/security"
	"github.com/hitoshi/leadbook/internal/sync"
)

// CalendarClientInterface はカレンダーハンドラーが必要とするプロバイダークライアント。
type CalendarClientInterface interface {
	// ListEvents は[timeMin, timeMax)のイベントを開始時刻順で返す。
	ListEvents(ctx context.Context, timeMin, timeMax time.Time) ([]model.ProviderEvent, error)
	// GetEvent は指定IDのイベントを1件取得する。
	GetEvent(ctx context.Context, eventID string) (*model.ProviderEvent, error)
	// PatchEvent はプロバイダーイベントのフィールドを部分更新する。nilの引数は変更しない。
	PatchEvent(ctx context.Context, eventID string, summary, description *string) (*model.ProviderEvent, error)
}

// CalendarHandler はカレンダープロキシとイベント注釈のHTTPハンドラー。
// プロバイダーのイベントを取得して返し、ローカル固有のnotesをマージする。
type CalendarHandler struct {
	client    CalendarClientInterface
	eventRepo repository.EventRepository
	sanitizer security.NotesSanitizerService
}

// NewCalendarHandler はCalendarHandlerを生成する。
func NewCalendarHandler(client CalendarClientInterface, eventRepo repository.EventRepository, sanitizer security.NotesSanitizerService) *CalendarHandler {
	return &CalendarHandler{
		client:    client,
		eventRepo: eventRepo,
		sanitizer: sanitizer,
	}
}

// providerAttendeeResponse は参加者のレスポンス表現。
type providerAttendeeResponse struct {
	Email       string `json:"email"`
	DisplayName string `json:"displayName,omitempty"`
}

// providerEventResponse はプロバイダーイベントのレスポンス表現。
type providerEventResponse struct {
	ID          string                     `json:"id"`
	Summary     string                     `json:"summary"`
	Description string                     `json:"description"`
	Start       string                     `json:"start"`
	End         string                     `json:"end"`
	Attendees   []providerAttendeeResponse `json:"attendees"`
	HangoutLink string                     `json:"hangoutLink,omitempty"`
	Notes       string                     `json:"notes,omitempty"`
}

// timeRangeResponse は照会ウィンドウのレスポンス表現。
type timeRangeResponse struct {
	Start string `json:"start"`
	End   string `json:"end"`
}

// calendarEventsResponse はカレンダープロキシのレスポンス。
type calendarEventsResponse struct {
	Success   bool                    `json:"success"`
	Data      []providerEventResponse `json:"data"`
	View      string                  `json:"view"`
	TimeRange timeRangeResponse       `json:"timeRange"`
}

// eventResponse はイベント1件のレスポンス。
type eventResponse struct {
	Success bool                  `json:"success"`
	Data    providerEventResponse `json:"data"`
	Message string                `json:"message,omitempty"`
}

// updateEventRequest はイベント更新リクエストのボディ。
// nilのフィールドは変更しない。Notesはローカルのみに保存される。
type updateEventRequest struct {
	Summary     *string `json:"summary"`
	Description *string `json:"description"`
	Notes       *string `json:"notes"`
}

// ListEvents は指定ビューのウィンドウでプロバイダーのイベント一覧を返す。
// GET /api/calendar/events?view=day|week|month&date=YYYY-MM-DD
func (h *CalendarHandler) ListEvents(w http.ResponseWriter, r *http.Request) {
	view := r.URL.Query().Get("view")
	if view == "" {
		view = "week"
	}

	date := time.Now().UTC()
	if raw := r.URL.Query().Get("date"); raw != "" {
		parsed, err := time.Parse("2006-01-02", raw)
		if err != nil {
			writeError(w, http.StatusBadRequest, "date must be in YYYY-MM-DD format")
			return
		}
		date = parsed
	}

	start, end, err := ViewWindow(view, date)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}

	events, err := h.client.ListEvents(r.Context(), start, end)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	data := make([]providerEventResponse, 0, len(events))
	for _, event := range events {
		data = append(data, toProviderEventResponse(&event, ""))
	}

	writeJSON(w, http.StatusOK, calendarEventsResponse{
		Success: true,
		Data:    data,
		View:    view,
		TimeRange: timeRangeResponse{
			Start: start.Format(time.RFC3339),
			End:   end.Format(time.RFC3339),
		},
	})
}

// GetEvent はプロバイダーイベント1件をローカルnotesとマージして返す。
// GET /api/events/:id
func (h *CalendarHandler) GetEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "id")

	event, err := h.client.GetEvent(r.Context(), eventID)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	notes := ""
	if stored, err := h.eventRepo.FindByGoogleEventID(r.Context(), eventID); err == nil && stored != nil {
		notes = stored.Notes
	}

	writeJSON(w, http.StatusOK, eventResponse{Success: true, Data: toProviderEventResponse(event, notes)})
}

// UpdateEvent はプロバイダーイベントのフィールドとローカルnotesを更新する。
// プロバイダー由来のフィールド（summary、description）はプロバイダーへ反映し、
// notesはローカルミラーにのみ保存する。
// POST /api/events/:id
func (h *CalendarHandler) UpdateEvent(w http.ResponseWriter, r *http.Request) {
	eventID := chi.URLParam(r, "id")

	var req updateEventRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if req.Summary == nil && req.Description == nil && req.Notes == nil {
		writeError(w, http.StatusBadRequest, "no fields to update")
		return
	}

	var event *model.ProviderEvent
	var err error
	if req.Summary != nil || req.Description != nil {
		event, err = h.client.PatchEvent(r.Context(), eventID, req.Summary, req.Description)
	} else {
		event, err = h.client.GetEvent(r.Context(), eventID)
	}
	if err != nil {
		handleServiceError(w, err)
		return
	}

	notes := req.Notes
	if notes != nil {
		sanitized := h.sanitizer.Sanitize(*notes)
		notes = &sanitized
	}

	// 同期パスと同じ変換を使い、ミラー行の参加者表現を経路によらず揃える
	stored, err := h.eventRepo.Upsert(r.Context(), sync.ToEventSnapshot(*event), notes)
	if err != nil {
		handleServiceError(w, err)
		return
	}

	writeJSON(w, http.StatusOK, eventResponse{
		Success: true,
		Data:    toProviderEventResponse(event, stored.Notes),
		Message: "event updated",
	})
}

// ViewWindow はビュー種別と基準日から照会ウィンドウ[start, end)を計算する。
// day: 基準日の0時から24時間。week: 基準日を含む日曜始まりの7日間。
// month: 基準日の月初から翌月初まで。いずれもUTC。
func ViewWindow(view string, date time.Time) (time.Time, time.Time, error) {
	d := date.UTC()
	day := time.Date(d.Year(), d.Month(), d.Day(), 0, 0, 0, 0, time.UTC)

	switch view {
	case "day":
		return day, day.AddDate(0, 0, 1), nil
	case "week":
		start := day.AddDate(0, 0, -int(day.Weekday()))
		return start, start.AddDate(0, 0, 7), nil
	case "month":
		start := time.Date(d.Year(), d.Month(), 1, 0, 0, 0, 0, time.UTC)
		return start, start.AddDate(0, 1, 0), nil
	default:
		return time.Time{}, time.Time{}, fmt.Errorf("view must be day, week or month: %q", view)
	}
}

// toProviderEventResponse はプロバイダーイベントをレスポンス表現に変換する。
func toProviderEventResponse(event *model.ProviderEvent, notes string) providerEventResponse {
	resp := providerEventResponse{
		ID:          event.ID,
		Summary:     event.Summary,
		Description: event.Description,
		Attendees:   make([]providerAttendeeResponse, 0, len(event.Attendees)),
		HangoutLink: event.HangoutLink,
		Notes:       notes,
	}
	if !event.Start.IsZero() {
		resp.Start = event.Start.UTC().Format(time.RFC3339)
	}
	if !event.End.IsZero() {
		resp.End = event.End.UTC().Format(time.RFC3339)
	}
	for _, a := range event.Attendees {
		resp.Attendees = append(resp.Attendees, providerAttendeeResponse{
			Email:       a.Email,
			DisplayName: a.DisplayName,
		})
	}
	return resp
}
