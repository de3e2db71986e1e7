package calendar

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"golang.org/x/oauth2"
	calendarapi "google.golang.org/api/calendar/v3"
	"google.golang.org/api/googleapi"

	"github.com/hitoshi/leadbook/internal/model"
)

// TestListEvents_Unauthenticated はトークン未保持での呼び出しが
// UNAUTHENTICATEDエラーになることを検証する。
func TestListEvents_Unauthenticated(t *testing.T) {
	client := NewClient(NewCredentialStore(""))

	_, err := client.ListEvents(context.Background(), time.Now().Add(-24*time.Hour), time.Now())
	if err == nil {
		t.Fatal("expected error for unauthenticated client, got nil")
	}

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeUnauthenticated {
		t.Errorf("expected UNAUTHENTICATED, got %v", err)
	}
}

// TestMapError_TokenRejected は401/403でトークンが破棄され、
// AUTH_EXPIREDに変換されることを検証する。
func TestMapError_TokenRejected_ClearsCredentials(t *testing.T) {
	for _, code := range []int{http.StatusUnauthorized, http.StatusForbidden} {
		creds := NewCredentialStore("")
		if err := creds.Replace(&oauth2.Token{AccessToken: "tok"}); err != nil {
			t.Fatalf("Replace returned unexpected error: %v", err)
		}
		client := NewClient(creds)

		err := client.mapError(&googleapi.Error{Code: code, Message: "denied"})

		var apiErr *model.APIError
		if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeAuthExpired {
			t.Errorf("code %d: expected AUTH_EXPIRED, got %v", code, err)
		}
		if creds.Authenticated() {
			t.Errorf("code %d: credentials should be cleared", code)
		}
	}
}

// TestMapError_OtherProviderError は401/403以外のプロバイダーエラーが
// トークンを保持したままPROVIDER_ERRORに変換されることを検証する。
func TestMapError_OtherProviderError_KeepsCredentials(t *testing.T) {
	creds := NewCredentialStore("")
	if err := creds.Replace(&oauth2.Token{AccessToken: "tok"}); err != nil {
		t.Fatalf("Replace returned unexpected error: %v", err)
	}
	client := NewClient(creds)

	err := client.mapError(&googleapi.Error{Code: http.StatusServiceUnavailable, Message: "backend error"})

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeProvider {
		t.Errorf("expected PROVIDER_ERROR, got %v", err)
	}
	if !creds.Authenticated() {
		t.Error("credentials should be kept for non-auth provider errors")
	}
}

// TestMapError_GenericError はネットワークエラー等がPROVIDER_ERRORになることを検証する。
func TestMapError_GenericError(t *testing.T) {
	client := NewClient(NewCredentialStore(""))

	err := client.mapError(errors.New("dial tcp: connection refused"))

	var apiErr *model.APIError
	if !errors.As(err, &apiErr) || apiErr.Code != model.ErrCodeProvider {
		t.Errorf("expected PROVIDER_ERROR, got %v", err)
	}
}

func TestIsNotFound(t *testing.T) {
	if !isNotFound(&googleapi.Error{Code: http.StatusNotFound}) {
		t.Error("404 should be detected as not found")
	}
	if isNotFound(&googleapi.Error{Code: http.StatusInternalServerError}) {
		t.Error("500 should not be detected as not found")
	}
	if isNotFound(errors.New("other")) {
		t.Error("generic error should not be detected as not found")
	}
}

// TestToProviderEvent はAPIレスポンスから内部表現への変換を検証する。
func TestToProviderEvent(t *testing.T) {
	item := &calendarapi.Event{
		Id:          "evt-1",
		Summary:     "Kickoff",
		Description: "project kickoff",
		HangoutLink: "https://meet.example.com/abc",
		Start:       &calendarapi.EventDateTime{DateTime: "2026-08-18T10:00:00Z"},
		End:         &calendarapi.EventDateTime{DateTime: "2026-08-18T11:00:00Z"},
		Attendees: []*calendarapi.EventAttendee{
			{Email: "alice@example.com", DisplayName: "Alice"},
			{Email: "bob@example.com"},
		},
	}

	event := toProviderEvent(item)

	if event.ID != "evt-1" {
		t.Errorf("ID = %q, want %q", event.ID, "evt-1")
	}
	if !event.Start.Equal(time.Date(2026, 8, 18, 10, 0, 0, 0, time.UTC)) {
		t.Errorf("Start = %v", event.Start)
	}
	if !event.End.Equal(time.Date(2026, 8, 18, 11, 0, 0, 0, time.UTC)) {
		t.Errorf("End = %v", event.End)
	}
	if len(event.Attendees) != 2 {
		t.Fatalf("len(Attendees) = %d, want 2", len(event.Attendees))
	}
	if event.Attendees[0].Email != "alice@example.com" || event.Attendees[0].DisplayName != "Alice" {
		t.Errorf("Attendees[0] = %+v", event.Attendees[0])
	}
	if event.HangoutLink != "https://meet.example.com/abc" {
		t.Errorf("HangoutLink = %q", event.HangoutLink)
	}
}

// TestParseEventTime は時刻付きと終日イベントの両形式の解釈を検証する。
func TestParseEventTime(t *testing.T) {
	tests := []struct {
		name  string
		input *calendarapi.EventDateTime
		want  time.Time
	}{
		{
			name:  "DateTime形式",
			input: &calendarapi.EventDateTime{DateTime: "2026-08-18T10:30:00+09:00"},
			want:  time.Date(2026, 8, 18, 1, 30, 0, 0, time.UTC),
		},
		{
			name:  "終日イベントのDate形式",
			input: &calendarapi.EventDateTime{Date: "2026-08-18"},
			want:  time.Date(2026, 8, 18, 0, 0, 0, 0, time.UTC),
		},
		{
			name:  "どちらも空",
			input: &calendarapi.EventDateTime{},
			want:  time.Time{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseEventTime(tt.input)
			if !got.Equal(tt.want) {
				t.Errorf("parseEventTime = %v, want %v", got, tt.want)
			}
		})
	}
}
