// Package sync はカレンダーイベントから連絡先データベースへの同期パスを提供する。
package sync

import (
	"context"
	"fmt"
	"log/slog"
	"net/mail"
	"strings"
	"time"

	"github.com/hitoshi/leadbook/internal/contact"
	"github.com/hitoshi/leadbook/internal/model"
	"github.com/hitoshi/leadbook/internal/repository"
)

// EventLister は同期パスが必要とするカレンダー読み取りインターフェース。
type EventLister interface {
	// ListEvents は[timeMin, timeMax)のイベントを開始時刻順で返す。
	ListEvents(ctx context.Context, timeMin, timeMax time.Time) ([]model.ProviderEvent, error)
}

// MetricsRecorder は同期パスのメトリクス記録インターフェース。
type MetricsRecorder interface {
	RecordSyncPass(success bool)
	RecordSyncDuration(d time.Duration)
	RecordAttendancesUpserted(count int)
	RecordEventsProcessed(count int)
	RecordProviderError()
}

// Options は同期パスの設定。
type Options struct {
	DefaultDays int // 遡及日数の既定値
	MaxDays     int // 遡及日数の上限
}

// Service は1回の同期パスを統括する。
// 個別のイベント・参加者の失敗はエラーとして蓄積してパスを継続し、
// イベント一覧の取得失敗（認証切れを含む）のみパス全体を失敗させる。
type Service struct {
	lister      EventLister
	contactRepo repository.ContactRepository
	eventRepo   repository.EventRepository
	metrics     MetricsRecorder
	opts        Options
}

// NewService はServiceを生成する。
func NewService(
	lister EventLister,
	contactRepo repository.ContactRepository,
	eventRepo repository.EventRepository,
	metrics MetricsRecorder,
	opts Options,
) *Service {
	return &Service{
		lister:      lister,
		contactRepo: contactRepo,
		eventRepo:   eventRepo,
		metrics:     metrics,
		opts:        opts,
	}
}

// Run は指定日数の遡及ウィンドウで1回の同期パスを実行する。
// daysが0以下の場合は既定値を使い、上限を超える場合は上限に丸める。
func (s *Service) Run(ctx context.Context, days int) (*model.SyncResult, error) {
	start := time.Now()

	if days <= 0 {
		days = s.opts.DefaultDays
	}
	if days > s.opts.MaxDays {
		days = s.opts.MaxDays
	}

	timeMax := time.Now().UTC()
	timeMin := timeMax.AddDate(0, 0, -days)

	events, err := s.lister.ListEvents(ctx, timeMin, timeMax)
	if err != nil {
		s.metrics.RecordProviderError()
		s.metrics.RecordSyncPass(false)
		return nil, fmt.Errorf("failed to list calendar events: %w", err)
	}

	result := &model.SyncResult{
		NewContacts: []model.NewContact{},
		Errors:      []string{},
	}
	attendances := 0

	for _, event := range events {
		eventDate := dateOf(event.Start)

		for _, attendee := range event.Attendees {
			email := contact.NormalizeEmail(attendee.Email)
			if !isValidEmail(email) {
				// アドレスなしの参加者（会議室リソース等）は黙ってスキップする
				continue
			}

			upserted, err := s.contactRepo.UpsertFromAttendance(ctx, email, strings.TrimSpace(attendee.DisplayName), eventDate)
			if err != nil {
				result.Errors = append(result.Errors, fmt.Sprintf("contact %s: %v", email, err))
				continue
			}
			attendances++

			// meeting_count==1はこのパスで初めて観測された連絡先
			if upserted.MeetingCount == 1 && upserted.FirstSeen != nil {
				result.NewContacts = append(result.NewContacts, model.NewContact{
					Email:     upserted.Email,
					Name:      upserted.Name,
					FirstSeen: *upserted.FirstSeen,
				})
			}
		}

		if _, err := s.eventRepo.Upsert(ctx, ToEventSnapshot(event), nil); err != nil {
			result.Errors = append(result.Errors, fmt.Sprintf("event %s: %v", event.ID, err))
		}

		result.EventsProcessed++
	}

	total, err := s.contactRepo.CountAll(ctx)
	if err != nil {
		result.Errors = append(result.Errors, fmt.Sprintf("count contacts: %v", err))
	} else {
		result.TotalContacts = total
	}

	s.metrics.RecordSyncPass(true)
	s.metrics.RecordSyncDuration(time.Since(start))
	s.metrics.RecordAttendancesUpserted(attendances)
	s.metrics.RecordEventsProcessed(result.EventsProcessed)

	slog.Info("sync pass completed",
		slog.Int("days", days),
		slog.Int("events_processed", result.EventsProcessed),
		slog.Int("new_contacts", len(result.NewContacts)),
		slog.Int("errors", len(result.Errors)),
	)

	return result, nil
}

// ToEventSnapshot はプロバイダーイベントを保存用スナップショットへ変換する。
// 参加者メールは正規化済みの有効なアドレスのみを含める。
// 同期パスとイベント更新ハンドラーの両方がこの変換を使い、
// ミラー行の表現を書き込み経路によらず揃える。
func ToEventSnapshot(event model.ProviderEvent) *model.Event {
	emails := make([]string, 0, len(event.Attendees))
	for _, a := range event.Attendees {
		email := contact.NormalizeEmail(a.Email)
		if isValidEmail(email) {
			emails = append(emails, email)
		}
	}

	return &model.Event{
		GoogleEventID:  event.ID,
		Summary:        event.Summary,
		Description:    event.Description,
		StartTime:      event.Start,
		EndTime:        event.End,
		AttendeesCount: len(emails),
		AttendeeEmails: emails,
		HangoutLink:    event.HangoutLink,
	}
}

// isValidEmail はアドレスが構文的に有効かを判定する。
func isValidEmail(email string) bool {
	if email == "" || !strings.Contains(email, "@") {
		return false
	}
	addr, err := mail.ParseAddress(email)
	return err == nil && addr.Address == email
}

// dateOf は時刻から日付部分のみを残す（UTC）。
func dateOf(t time.Time) time.Time {
	u := t.UTC()
	return time.Date(u.Year(), u.Month(), u.Day(), 0, 0, 0, 0, time.UTC)
}
