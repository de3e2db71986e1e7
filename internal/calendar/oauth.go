package calendar

import (
	"context"
	"fmt"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	calendarapi "google.golang.org/api/calendar/v3"
)

// OAuthConfig はGoogle OAuthクライアントの設定。
type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	RedirectURL  string
}

// OAuthFlow はGoogle OAuth 2.0の認可フローを提供する。
// スコープはカレンダーイベントの読み書きのみ。
type OAuthFlow struct {
	config *oauth2.Config
}

// NewOAuthFlow はOAuthFlowを生成する。
// ClientIDまたはClientSecretが空の場合はConfigured()がfalseを返す。
func NewOAuthFlow(cfg OAuthConfig) *OAuthFlow {
	return &OAuthFlow{
		config: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			RedirectURL:  cfg.RedirectURL,
			Scopes:       []string{calendarapi.CalendarEventsScope},
			Endpoint:     google.Endpoint,
		},
	}
}

// Configured はOAuthクライアント情報が設定済みかを返す。
func (f *OAuthFlow) Configured() bool {
	return f.config.ClientID != "" && f.config.ClientSecret != ""
}

// AuthCodeURL は同意画面のURLを生成する。
// access_type=offlineでリフレッシュトークンも要求する。
func (f *OAuthFlow) AuthCodeURL(state string) string {
	return f.config.AuthCodeURL(state, oauth2.AccessTypeOffline, oauth2.ApprovalForce)
}

// Exchange は認可コードをトークンに交換する。
func (f *OAuthFlow) Exchange(ctx context.Context, code string) (*oauth2.Token, error) {
	token, err := f.config.Exchange(ctx, code)
	if err != nil {
		return nil, fmt.Errorf("failed to exchange authorization code: %w", err)
	}
	return token, nil
}
