// Package config は環境変数からのアプリケーション設定読み込みを提供する。
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// DeployMode はデプロイ形態を表す。
// トークンの保存先（ローカルファイル or メモリのみ）が変わる。
type DeployMode string

const (
	// DeployModeLocal はローカル開発モード。トークンをファイルに永続化する。
	DeployModeLocal DeployMode = "local"
	// DeployModeHosted はホスティング環境モード。トークンはメモリのみで保持し、
	// 起動時にGOOGLE_TOKEN_JSONから初期値を読み込める。
	DeployModeHosted DeployMode = "hosted"
)

// Config はアプリケーション全体の設定を保持する。
// 環境変数から起動時に1回読み込み、イミュータブルとして扱う。
type Config struct {
	// Database
	DatabaseURL string

	// Google Calendar OAuth
	GoogleClientID     string
	GoogleClientSecret string
	GoogleRedirectURL  string

	// 自社ドメイン。このドメインのアドレスには予約タグ「New Lead」を付けられない。
	OwnedDomain string

	// Deploy
	DeployMode      DeployMode
	TokenFile       string
	GoogleTokenJSON string

	// Sync
	SyncDefaultDays int
	SyncMaxDays     int

	// Rate Limit（req/min単位）
	RateLimitGeneral int
	RateLimitSync    int

	// Server
	ServerPort string

	// CORS
	CORSAllowedOrigin string
}

// Load は環境変数からConfigを読み込む。
// 必須環境変数が未設定の場合はエラーを返す。
func Load() (*Config, error) {
	cfg := &Config{}

	// Required fields
	var missing []string

	cfg.DatabaseURL = os.Getenv("DATABASE_URL")
	if cfg.DatabaseURL == "" {
		missing = append(missing, "DATABASE_URL")
	}

	cfg.GoogleClientID = os.Getenv("GOOGLE_CLIENT_ID")
	if cfg.GoogleClientID == "" {
		missing = append(missing, "GOOGLE_CLIENT_ID")
	}

	cfg.GoogleClientSecret = os.Getenv("GOOGLE_CLIENT_SECRET")
	if cfg.GoogleClientSecret == "" {
		missing = append(missing, "GOOGLE_CLIENT_SECRET")
	}

	cfg.GoogleRedirectURL = os.Getenv("GOOGLE_REDIRECT_URL")
	if cfg.GoogleRedirectURL == "" {
		missing = append(missing, "GOOGLE_REDIRECT_URL")
	}

	cfg.OwnedDomain = strings.ToLower(os.Getenv("OWNED_DOMAIN"))
	if cfg.OwnedDomain == "" {
		missing = append(missing, "OWNED_DOMAIN")
	}

	if len(missing) > 0 {
		return nil, fmt.Errorf("required environment variables are not set: %v", missing)
	}

	// Optional fields with defaults
	mode, err := parseDeployMode(getEnvString("DEPLOY_MODE", string(DeployModeLocal)))
	if err != nil {
		return nil, err
	}
	cfg.DeployMode = mode
	cfg.TokenFile = getEnvString("TOKEN_FILE", "token.json")
	cfg.GoogleTokenJSON = os.Getenv("GOOGLE_TOKEN_JSON")
	cfg.SyncDefaultDays = getEnvInt("SYNC_DEFAULT_DAYS", 7)
	cfg.SyncMaxDays = getEnvInt("SYNC_MAX_DAYS", 30)
	cfg.RateLimitGeneral = getEnvInt("RATE_LIMIT_GENERAL", 120)
	cfg.RateLimitSync = getEnvInt("RATE_LIMIT_SYNC", 6)
	cfg.ServerPort = getEnvString("SERVER_PORT", "8080")
	cfg.CORSAllowedOrigin = getEnvString("CORS_ALLOWED_ORIGIN", "http://localhost:3000")

	if cfg.SyncDefaultDays < 1 || cfg.SyncDefaultDays > cfg.SyncMaxDays {
		return nil, fmt.Errorf("SYNC_DEFAULT_DAYS must be between 1 and SYNC_MAX_DAYS (%d): %d", cfg.SyncMaxDays, cfg.SyncDefaultDays)
	}

	return cfg, nil
}

// parseDeployMode はデプロイモード文字列を検証して返す。
func parseDeployMode(s string) (DeployMode, error) {
	switch DeployMode(strings.ToLower(s)) {
	case DeployModeLocal:
		return DeployModeLocal, nil
	case DeployModeHosted:
		return DeployModeHosted, nil
	default:
		return "", fmt.Errorf("invalid DEPLOY_MODE: %q (must be local or hosted)", s)
	}
}

func getEnvString(key, defaultVal string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return defaultVal
}

func getEnvInt(key string, defaultVal int) int {
	v := os.Getenv(key)
	if v == "" {
		return defaultVal
	}
	i, err := strconv.Atoi(v)
	if err != nil {
		return defaultVal
	}
	return i
}
