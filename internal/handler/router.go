package handler

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/leadbook/internal/metrics"
	"github.com/hitoshi/leadbook/internal/middleware"
	"github.com/hitoshi/leadbook/internal/repository"
	"github.com/hitoshi/leadbook/internal/security"
)

// RouterDeps はNewRouterに必要な依存関係をまとめた構造体。
type RouterDeps struct {
	// ミドルウェア依存
	Logger            *slog.Logger
	CORSAllowedOrigin string
	RateLimiter       *middleware.RateLimiter
	StatusRecorder    middleware.HTTPStatusRecorder

	// メトリクス公開
	Gatherer prometheus.Gatherer

	// 連絡先
	ContactService ContactServiceInterface
	DegradeReads   bool
	NewDaysDefault int

	// 同期
	SyncService SyncServiceInterface
	SyncMaxDays int

	// カレンダー・認証
	CalendarClient CalendarClientInterface
	EventRepo      repository.EventRepository
	Sanitizer      security.NotesSanitizerService
	OAuthFlow      OAuthFlowInterface
	Credentials    CredentialReplacer
}

// NewRouter は全APIエンドポイントのルーティングとミドルウェアチェーンを構成したchi.Routerを返す。
//
// ミドルウェアスタックの実行順序:
//
//	Recovery → SecurityHeaders → CORS → Logging → RateLimit(General)
//
// /healthと/metricsはレート制限の外に配置する。
func NewRouter(deps *RouterDeps) http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.NewRecoveryMiddleware())
	r.Use(middleware.NewSecurityHeadersMiddleware())
	r.Use(middleware.NewCORSMiddleware(deps.CORSAllowedOrigin))
	r.Use(middleware.NewLoggingMiddleware(deps.Logger, deps.StatusRecorder))

	contactHandler := NewContactHandler(deps.ContactService, deps.DegradeReads, deps.NewDaysDefault)
	syncHandler := NewSyncHandler(deps.SyncService, deps.SyncMaxDays)
	authHandler := NewAuthHandler(deps.OAuthFlow, deps.Credentials)
	calendarHandler := NewCalendarHandler(deps.CalendarClient, deps.EventRepo, deps.Sanitizer)

	// --- レート制限の外のルート ---

	r.Get("/health", Health)
	if deps.Gatherer != nil {
		r.Handle("/metrics", metrics.Handler(deps.Gatherer))
	}

	// --- APIルート ---
	// ミドルウェアスタック: RateLimit(General)、POST /api/syncのみ追加でRateLimit(Sync)
	r.Group(func(r chi.Router) {
		if deps.RateLimiter != nil {
			r.Use(deps.RateLimiter.GeneralMiddleware())
		}

		// 連絡先管理
		r.Route("/api/contacts", func(r chi.Router) {
			r.Get("/", contactHandler.ListContacts)
			r.Get("/new", contactHandler.ListNewContacts)
			r.Post("/", contactHandler.CreateContact)
			r.Post("/{id}/tags", contactHandler.SetTags)
			r.Get("/tag/{tag}", contactHandler.ListByTag)
		})

		// タグ集計
		r.Get("/api/tags", contactHandler.ListTags)

		// 同期実行（プロバイダー呼び出しを伴うため追加のレート制限）
		if deps.RateLimiter != nil {
			r.With(deps.RateLimiter.SyncMiddleware()).Post("/api/sync", syncHandler.RunSync)
		} else {
			r.Post("/api/sync", syncHandler.RunSync)
		}

		// 認証フロー
		r.Route("/api/auth", func(r chi.Router) {
			r.Get("/google", authHandler.AuthURL)
			r.Get("/google/callback", authHandler.Callback)
			r.Get("/status", authHandler.Status)
		})

		// カレンダープロキシとイベント注釈
		r.Get("/api/calendar/events", calendarHandler.ListEvents)
		r.Route("/api/events/{id}", func(r chi.Router) {
			r.Get("/", calendarHandler.GetEvent)
			r.Post("/", calendarHandler.UpdateEvent)
		})
	})

	return r
}
