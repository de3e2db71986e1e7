package calendar

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"golang.org/x/oauth2"
	calendarapi "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"github.com/hitoshi/leadbook/internal/model"
)

// primaryCalendarID は認可したアカウントのメインカレンダー。
const primaryCalendarID = "primary"

// Client はGoogle Calendar APIのクライアント。
// トークンはCredentialStoreから呼び出しごとに取得し、静的トークンソースとして
// 使用する。リフレッシュは行わず、プロバイダーが401/403を返した時点で
// CredentialStoreをクリアしてAuthExpiredを返す（呼び出し側が再認可へ誘導する）。
type Client struct {
	creds *CredentialStore

	// テスト用にオーバーライド可能なAPIエンドポイント
	endpoint string
}

// NewClient はClientを生成する。
func NewClient(creds *CredentialStore) *Client {
	return &Client{creds: creds}
}

// service は現在のトークンでcalendar.Serviceを構築する。
// トークン未保持の場合はUnauthenticatedを返す。
func (c *Client) service(ctx context.Context) (*calendarapi.Service, error) {
	token, ok := c.creds.Token()
	if !ok {
		return nil, model.NewUnauthenticatedError()
	}

	httpClient := oauth2.NewClient(ctx, oauth2.StaticTokenSource(token))
	opts := []option.ClientOption{option.WithHTTPClient(httpClient)}
	if c.endpoint != "" {
		opts = append(opts, option.WithEndpoint(c.endpoint))
	}

	svc, err := calendarapi.NewService(ctx, opts...)
	if err != nil {
		return nil, model.NewProviderError(fmt.Sprintf("failed to create calendar service: %v", err))
	}
	return svc, nil
}

// ListEvents は[timeMin, timeMax)のイベントを開始時刻順で取得する。
// 繰り返しイベントは個別の発生に展開される。
func (c *Client) ListEvents(ctx context.Context, timeMin, timeMax time.Time) ([]model.ProviderEvent, error) {
	svc, err := c.service(ctx)
	if err != nil {
		return nil, err
	}

	call := svc.Events.List(primaryCalendarID).
		ShowDeleted(false).
		SingleEvents(true).
		TimeMin(timeMin.UTC().Format(time.RFC3339)).
		TimeMax(timeMax.UTC().Format(time.RFC3339)).
		OrderBy("startTime").
		MaxResults(250)

	resp, err := call.Context(ctx).Do()
	if err != nil {
		return nil, c.mapError(err)
	}

	events := make([]model.ProviderEvent, 0, len(resp.Items))
	for _, item := range resp.Items {
		events = append(events, toProviderEvent(item))
	}

	slog.Info("fetched calendar events",
		slog.Int("count", len(events)),
		slog.Time("time_min", timeMin),
		slog.Time("time_max", timeMax),
	)

	return events, nil
}

// GetEvent は指定IDのイベントを1件取得する。
func (c *Client) GetEvent(ctx context.Context, eventID string) (*model.ProviderEvent, error) {
	svc, err := c.service(ctx)
	if err != nil {
		return nil, err
	}

	item, err := svc.Events.Get(primaryCalendarID, eventID).Context(ctx).Do()
	if err != nil {
		if isNotFound(err) {
			return nil, model.NewEventNotFoundError(eventID)
		}
		return nil, c.mapError(err)
	}

	event := toProviderEvent(item)
	return &event, nil
}

// PatchEvent はプロバイダーイベントのフィールドを部分更新する。
// nilの引数は変更しない。
func (c *Client) PatchEvent(ctx context.Context, eventID string, summary, description *string) (*model.ProviderEvent, error) {
	svc, err := c.service(ctx)
	if err != nil {
		return nil, err
	}

	upd := &calendarapi.Event{}
	if summary != nil {
		upd.Summary = *summary
		if *summary == "" {
			upd.ForceSendFields = append(upd.ForceSendFields, "Summary")
		}
	}
	if description != nil {
		upd.Description = *description
		if *description == "" {
			upd.ForceSendFields = append(upd.ForceSendFields, "Description")
		}
	}

	item, err := svc.Events.Patch(primaryCalendarID, eventID, upd).Context(ctx).Do()
	if err != nil {
		if isNotFound(err) {
			return nil, model.NewEventNotFoundError(eventID)
		}
		return nil, c.mapError(err)
	}

	event := toProviderEvent(item)
	return &event, nil
}

// mapError はプロバイダーのエラーをAPIErrorへ変換する。
// 401/403は認証失効として扱い、保持中のトークンを破棄する。
// 失効トークンでの再試行は行わない。
func (c *Client) mapError(err error) error {
	var gapiErr *googleapi.Error
	if errors.As(err, &gapiErr) {
		if gapiErr.Code == http.StatusUnauthorized || gapiErr.Code == http.StatusForbidden {
			c.creds.Clear()
			slog.Warn("calendar token rejected by provider, credentials cleared",
				slog.Int("status", gapiErr.Code),
			)
			return model.NewAuthExpiredError()
		}
		return model.NewProviderError(gapiErr.Message)
	}

	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		c.creds.Clear()
		slog.Warn("calendar token retrieval rejected, credentials cleared")
		return model.NewAuthExpiredError()
	}

	return model.NewProviderError(err.Error())
}

// isNotFound はプロバイダーの404を判定する。
func isNotFound(err error) bool {
	var gapiErr *googleapi.Error
	return errors.As(err, &gapiErr) && gapiErr.Code == http.StatusNotFound
}

// toProviderEvent はcalendar APIのイベントを内部表現へ変換する。
// 終日イベントは日付のみ（00:00 UTC）として扱う。
func toProviderEvent(item *calendarapi.Event) model.ProviderEvent {
	event := model.ProviderEvent{
		ID:          item.Id,
		Summary:     item.Summary,
		Description: item.Description,
		HangoutLink: item.HangoutLink,
	}

	if item.Start != nil {
		event.Start = parseEventTime(item.Start)
	}
	if item.End != nil {
		event.End = parseEventTime(item.End)
	}

	for _, a := range item.Attendees {
		event.Attendees = append(event.Attendees, model.ProviderAttendee{
			Email:       a.Email,
			DisplayName: a.DisplayName,
		})
	}

	return event
}

// parseEventTime はDateTime（時刻付き）またはDate（終日）をtime.Timeへ変換する。
func parseEventTime(t *calendarapi.EventDateTime) time.Time {
	if t.DateTime != "" {
		parsed, err := time.Parse(time.RFC3339, t.DateTime)
		if err == nil {
			return parsed
		}
	}
	if t.Date != "" {
		parsed, err := time.Parse("2006-01-02", t.Date)
		if err == nil {
			return parsed
		}
	}
	return time.Time{}
}
