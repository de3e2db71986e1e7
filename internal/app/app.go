// Package app はアプリケーションの起動と依存関係のワイヤリングを提供する。
package app

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"strconv"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/hitoshi/leadbook/internal/calendar"
	"github.com/hitoshi/leadbook/internal/config"
	"github.com/hitoshi/leadbook/internal/contact"
	"github.com/hitoshi/leadbook/internal/database"
	"github.com/hitoshi/leadbook/internal/handler"
	"github.com/hitoshi/leadbook/internal/logger"
	"github.com/hitoshi/leadbook/internal/metrics"
	"github.com/hitoshi/leadbook/internal/middleware"
	"github.com/hitoshi/leadbook/internal/repository"
	"github.com/hitoshi/leadbook/internal/security"
	syncpkg "github.com/hitoshi/leadbook/internal/sync"
)

// Init はアプリケーションの初期化を行う。
// JSON構造化ログをセットアップし、環境変数からConfigを読み込む。
// writerが指定された場合はログ出力先としてそのwriterを使用する。
func Init(w io.Writer) (*config.Config, error) {
	// 1. ログの初期化（設定読み込み前にログを使えるようにする）
	logger.SetupDefault(w)

	// 2. 環境変数から設定を読み込む
	cfg, err := config.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load config: %w", err)
	}

	return cfg, nil
}

// Run はアプリケーションのメインエントリーポイント。
// コマンドライン引数からサブコマンドを解析し、対応するモードで起動する。
// argsにはos.Args[1:]を渡す。
func Run(w io.Writer, args []string) error {
	cmd := ParseCommand(args)

	// healthcheck は軽量サブコマンドのため、フル初期化をスキップする
	if cmd == CommandHealthcheck {
		port := os.Getenv("SERVER_PORT")
		if port == "" {
			port = "8080"
		}
		return runHealthcheck(port)
	}

	cfg, err := Init(w)
	if err != nil {
		return fmt.Errorf("initialization failed: %w", err)
	}

	slog.Info("starting application",
		slog.String("command", string(cmd)),
		slog.String("port", cfg.ServerPort),
		slog.String("deploy_mode", string(cfg.DeployMode)),
	)

	switch cmd {
	case CommandServe:
		return runServe(cfg)
	case CommandSync:
		return runSync(cfg, args[1:])
	case CommandMigrate:
		return runMigrate(cfg)
	default:
		return runServe(cfg)
	}
}

// deps はワイヤリング済みの依存関係一式。
type deps struct {
	db          *sql.DB
	creds       *calendar.CredentialStore
	client      *calendar.Client
	contactRepo repository.ContactRepository
	eventRepo   repository.EventRepository
	sanitizer   security.NotesSanitizerService
	registry    *prometheus.Registry
	collector   *metrics.Collector
	contactSvc  *contact.Service
	syncSvc     *syncpkg.Service
}

// buildDeps はDB接続を開き、全依存関係をワイヤリングする。
// マイグレーションを起動時に適用する。
func buildDeps(cfg *config.Config) (*deps, error) {
	// 1. スキーマの適用（加算のみ・冪等）
	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return nil, fmt.Errorf("migration failed: %w", err)
	}

	// 2. DB接続
	db, err := database.Open(cfg.DatabaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}

	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	slog.Info("database connection established")

	// 3. 認証情報ストアの初期化
	tokenFile := ""
	if cfg.DeployMode == config.DeployModeLocal {
		tokenFile = cfg.TokenFile
	}
	creds := calendar.NewCredentialStore(tokenFile)

	switch {
	case cfg.DeployMode == config.DeployModeLocal:
		if err := creds.LoadFromFile(); err != nil {
			slog.Warn("failed to load token file, starting unauthenticated", slog.String("error", err.Error()))
		}
	case cfg.GoogleTokenJSON != "":
		if err := creds.LoadFromJSON(cfg.GoogleTokenJSON); err != nil {
			slog.Warn("failed to parse GOOGLE_TOKEN_JSON, starting unauthenticated", slog.String("error", err.Error()))
		}
	}

	// 4. リポジトリとサービスの初期化
	contactRepo := repository.NewPostgresContactRepo(db)
	eventRepo := repository.NewPostgresEventRepo(db)
	sanitizer := security.NewNotesSanitizer()
	client := calendar.NewClient(creds)

	registry := prometheus.NewRegistry()
	collector := metrics.NewCollector(registry)

	contactSvc := contact.NewService(contactRepo, sanitizer, cfg.OwnedDomain)
	syncSvc := syncpkg.NewService(client, contactRepo, eventRepo, collector, syncpkg.Options{
		DefaultDays: cfg.SyncDefaultDays,
		MaxDays:     cfg.SyncMaxDays,
	})

	return &deps{
		db:          db,
		creds:       creds,
		client:      client,
		contactRepo: contactRepo,
		eventRepo:   eventRepo,
		sanitizer:   sanitizer,
		registry:    registry,
		collector:   collector,
		contactSvc:  contactSvc,
		syncSvc:     syncSvc,
	}, nil
}

// runServe はAPIサーバーモードで起動する。
// 全依存関係をワイヤリングし、HTTPサーバーを起動する。
// SIGINTまたはSIGTERMシグナルを受信するとグレースフルシャットダウンを行う。
func runServe(cfg *config.Config) error {
	d, err := buildDeps(cfg)
	if err != nil {
		return err
	}
	defer d.db.Close()

	oauthFlow := calendar.NewOAuthFlow(calendar.OAuthConfig{
		ClientID:     cfg.GoogleClientID,
		ClientSecret: cfg.GoogleClientSecret,
		RedirectURL:  cfg.GoogleRedirectURL,
	})

	rateLimiter := middleware.NewRateLimiter(
		middleware.NewRateLimiterConfig(cfg.RateLimitGeneral, cfg.RateLimitSync),
	)
	defer rateLimiter.Stop()

	router := handler.NewRouter(&handler.RouterDeps{
		Logger:            slog.Default(),
		CORSAllowedOrigin: cfg.CORSAllowedOrigin,
		RateLimiter:       rateLimiter,
		StatusRecorder:    d.collector,
		Gatherer:          d.registry,

		ContactService: d.contactSvc,
		DegradeReads:   true,
		NewDaysDefault: cfg.SyncDefaultDays,

		SyncService: d.syncSvc,
		SyncMaxDays: cfg.SyncMaxDays,

		CalendarClient: d.client,
		EventRepo:      d.eventRepo,
		Sanitizer:      d.sanitizer,
		OAuthFlow:      oauthFlow,
		Credentials:    d.creds,
	})

	server := &http.Server{
		Addr:         ":" + cfg.ServerPort,
		Handler:      router,
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	// グレースフルシャットダウンのためのシグナルハンドリング
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		slog.Info("API server starting",
			slog.String("addr", server.Addr),
		)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server listen error", slog.String("error", err.Error()))
		}
	}()

	<-stop
	slog.Info("shutting down API server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := server.Shutdown(ctx); err != nil {
		return fmt.Errorf("server shutdown failed: %w", err)
	}

	slog.Info("API server stopped gracefully")
	return nil
}

// runSync は1回の同期パスを実行して終了する。
// 遡及日数は最初の数値引数で指定でき、省略時は設定の既定値を使う。
// 結果のSyncResultをJSONで標準出力に書き出す。
func runSync(cfg *config.Config, args []string) error {
	days := 0
	if len(args) > 0 {
		parsed, err := strconv.Atoi(args[0])
		if err != nil || parsed < 1 {
			return fmt.Errorf("invalid days argument: %q", args[0])
		}
		days = parsed
	}

	d, err := buildDeps(cfg)
	if err != nil {
		return err
	}
	defer d.db.Close()

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	result, err := d.syncSvc.Run(ctx, days)
	if err != nil {
		return fmt.Errorf("sync pass failed: %w", err)
	}

	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	if err := enc.Encode(result); err != nil {
		return fmt.Errorf("failed to encode sync result: %w", err)
	}

	return nil
}

// runMigrate はデータベースマイグレーションを実行する。
// すべての未適用マイグレーションを順番に適用する。
func runMigrate(cfg *config.Config) error {
	slog.Info("running database migrations",
		slog.String("database_url", maskDatabaseURL(cfg.DatabaseURL)),
	)

	if err := database.RunMigrations(cfg.DatabaseURL); err != nil {
		return fmt.Errorf("migration failed: %w", err)
	}

	slog.Info("database migrations completed successfully")
	return nil
}

// runHealthcheck はヘルスチェックを実行する。
// distroless環境でのDockerヘルスチェック用サブコマンド。
// /health エンドポイントにHTTPリクエストを送り、結果を返す。
func runHealthcheck(port string) error {
	url := fmt.Sprintf("http://localhost:%s/health", port)
	client := &http.Client{Timeout: 5 * time.Second}

	resp, err := client.Get(url)
	if err != nil {
		return fmt.Errorf("health check failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("health check returned status %d", resp.StatusCode)
	}

	return nil
}

// maskDatabaseURL はデータベースURLの認証情報をマスクする。
func maskDatabaseURL(url string) string {
	if len(url) > 20 {
		return url[:12] + "***@..."
	}
	return "***"
}
