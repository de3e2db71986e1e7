package handler

import (
	"context"
	"fmt"
	"html/template"
	"log/slog"
	"net/http"

	"github.com/google/uuid"
	"golang.org/x/oauth2"
)

const oauthStateCookie = "oauth_state"

// OAuthFlowInterface は認可フローのインターフェース。
type OAuthFlowInterface interface {
	// Configured はOAuthクライアント情報が設定済みかを返す。
	Configured() bool
	// AuthCodeURL は同意画面のURLを生成する。
	AuthCodeURL(state string) string
	// Exchange は認可コードをトークンに交換する。
	Exchange(ctx context.Context, code string) (*oauth2.Token, error)
}

// CredentialReplacer は認可コールバックが必要とするトークン保管インターフェース。
type CredentialReplacer interface {
	// Replace は保持中のトークンを置き換える。
	Replace(token *oauth2.Token) error
	// Authenticated はトークンを保持しているかを返す。
	Authenticated() bool
}

// AuthHandler はカレンダー認可フローのHTTPハンドラー。
// 状態遷移は UNAUTHENTICATED → AUTH_PENDING（同意URL発行）→ AUTHENTICATED。
// プロバイダーの401/403でトークンは破棄され、UNAUTHENTICATEDへ戻る。
type AuthHandler struct {
	flow  OAuthFlowInterface
	creds CredentialReplacer
}

// NewAuthHandler はAuthHandlerを生成する。
func NewAuthHandler(flow OAuthFlowInterface, creds CredentialReplacer) *AuthHandler {
	return &AuthHandler{flow: flow, creds: creds}
}

// authURLResponse は同意URL発行のレスポンス。
type authURLResponse struct {
	Success bool   `json:"success"`
	AuthURL string `json:"authUrl"`
}

// authStatusResponse は認証状態のレスポンス。
type authStatusResponse struct {
	Success       bool   `json:"success"`
	Authenticated bool   `json:"authenticated"`
	Message       string `json:"message"`
}

// callbackPage はコールバック完了時にポップアップへ返すHTMLページ。
// openerへ結果をpostMessageしてウィンドウを閉じる。
var callbackPage = template.Must(template.New("callback").Parse(`<!DOCTYPE html>
<html>
<head><title>Google Calendar</title></head>
<body>
<p>{{.Text}}</p>
<script>
if (window.opener) {
  window.opener.postMessage({ type: {{.MessageType}} }, "*");
}
window.close();
</script>
</body>
</html>
`))

// AuthURL はGoogle同意画面のURLを発行する。
// GET /api/auth/google
func (h *AuthHandler) AuthURL(w http.ResponseWriter, r *http.Request) {
	if !h.flow.Configured() {
		writeError(w, http.StatusInternalServerError, "Google Calendar credentials are not configured")
		return
	}

	// CSRF対策として、stateをCookieに保存してコールバックで照合する
	state := uuid.New().String()
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    state,
		Path:     "/",
		MaxAge:   600,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	writeJSON(w, http.StatusOK, authURLResponse{Success: true, AuthURL: h.flow.AuthCodeURL(state)})
}

// Callback はGoogle同意画面からのリダイレクトを処理し、トークンを保管する。
// GET /api/auth/google/callback?code=xxx&state=yyy
func (h *AuthHandler) Callback(w http.ResponseWriter, r *http.Request) {
	state := r.URL.Query().Get("state")
	stateCookie, err := r.Cookie(oauthStateCookie)
	if err != nil || stateCookie.Value == "" || stateCookie.Value != state {
		slog.Warn("oauth state mismatch", slog.String("query_state", state))
		h.renderCallback(w, http.StatusBadRequest, "google-auth-error", "Invalid state parameter. Please try again.")
		return
	}

	// stateクッキーを削除
	http.SetCookie(w, &http.Cookie{
		Name:     oauthStateCookie,
		Value:    "",
		Path:     "/",
		MaxAge:   -1,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	})

	code := r.URL.Query().Get("code")
	if code == "" {
		h.renderCallback(w, http.StatusBadRequest, "google-auth-error", "Missing authorization code.")
		return
	}

	token, err := h.flow.Exchange(r.Context(), code)
	if err != nil {
		slog.Error("oauth code exchange failed", slog.String("error", err.Error()))
		h.renderCallback(w, http.StatusInternalServerError, "google-auth-error", "Authentication failed. Please try again.")
		return
	}

	if err := h.creds.Replace(token); err != nil {
		slog.Error("failed to store token", slog.String("error", err.Error()))
		h.renderCallback(w, http.StatusInternalServerError, "google-auth-error", "Failed to store credentials.")
		return
	}

	slog.Info("calendar authentication completed")
	h.renderCallback(w, http.StatusOK, "google-auth-success", "Authentication complete. You can close this window.")
}

// Status は現在の認証状態を返す。
// GET /api/auth/status
func (h *AuthHandler) Status(w http.ResponseWriter, r *http.Request) {
	authenticated := h.creds.Authenticated()
	message := "authenticated with Google Calendar"
	if !authenticated {
		message = "not authenticated, visit /api/auth/google to connect"
	}
	writeJSON(w, http.StatusOK, authStatusResponse{
		Success:       true,
		Authenticated: authenticated,
		Message:       message,
	})
}

// renderCallback はコールバック用のHTMLページを書き込む。
func (h *AuthHandler) renderCallback(w http.ResponseWriter, statusCode int, messageType, text string) {
	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(statusCode)
	err := callbackPage.Execute(w, struct {
		MessageType string
		Text        string
	}{MessageType: messageType, Text: text})
	if err != nil {
		fmt.Fprint(w, text)
	}
}
