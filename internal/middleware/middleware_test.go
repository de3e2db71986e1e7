package middleware

import (
	"bytes"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
)

func okHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
}

// TestCORSMiddleware はCORSヘッダーの付与とプリフライト応答を検証する。
func TestCORSMiddleware(t *testing.T) {
	mw := NewCORSMiddleware("http://localhost:3000")
	handler := mw(okHandler())

	t.Run("通常リクエストにCORSヘッダーを付与する", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/contacts", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusOK)
		}
		if got := rec.Header().Get("Access-Control-Allow-Origin"); got != "http://localhost:3000" {
			t.Errorf("Allow-Origin = %q, want %q", got, "http://localhost:3000")
		}
		if got := rec.Header().Get("Access-Control-Allow-Credentials"); got != "true" {
			t.Errorf("Allow-Credentials = %q, want %q", got, "true")
		}
	})

	t.Run("OPTIONSプリフライトには204で応答する", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodOptions, "/api/contacts", nil)
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusNoContent {
			t.Fatalf("status = %d, want %d", rec.Code, http.StatusNoContent)
		}
		if rec.Body.Len() != 2 && rec.Body.String() == "ok" {
			t.Error("preflight should not reach the next handler")
		}
	})
}

// TestSecurityHeadersMiddleware はセキュリティヘッダーの付与を検証する。
func TestSecurityHeadersMiddleware(t *testing.T) {
	mw := NewSecurityHeadersMiddleware()
	handler := mw(okHandler())

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	expected := map[string]string{
		"X-Content-Type-Options": "nosniff",
		"X-Frame-Options":        "DENY",
		"Referrer-Policy":        "strict-origin-when-cross-origin",
		"Permissions-Policy":     "camera=(), microphone=(), geolocation=()",
	}
	for header, want := range expected {
		if got := rec.Header().Get(header); got != want {
			t.Errorf("%s = %q, want %q", header, got, want)
		}
	}
}

// TestRecoveryMiddleware はpanicが統一フォーマットの500に変換されることを検証する。
func TestRecoveryMiddleware(t *testing.T) {
	mw := NewRecoveryMiddleware()
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		panic("boom")
	}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusInternalServerError {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusInternalServerError)
	}

	var resp struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Success {
		t.Error("success = true, want false")
	}
	if resp.Error != "internal server error" {
		t.Errorf("error = %q, want %q", resp.Error, "internal server error")
	}
}

// mockStatusRecorder はHTTPStatusRecorderのテスト用モック。
type mockStatusRecorder struct {
	statuses []int
}

func (m *mockStatusRecorder) RecordHTTPStatus(statusCode int) {
	m.statuses = append(m.statuses, statusCode)
}

// TestLoggingMiddleware はリクエストログの出力とステータス記録を検証する。
func TestLoggingMiddleware(t *testing.T) {
	var buf bytes.Buffer
	logger := slog.New(slog.NewJSONHandler(&buf, nil))
	recorder := &mockStatusRecorder{}

	mw := NewLoggingMiddleware(logger, recorder)
	handler := mw(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))

	req := httptest.NewRequest(http.MethodGet, "/api/contacts/missing", nil)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	var entry map[string]interface{}
	if err := json.Unmarshal(buf.Bytes(), &entry); err != nil {
		t.Fatalf("failed to parse log output: %v\nraw: %s", err, buf.String())
	}

	if entry["msg"] != "http_request" {
		t.Errorf("msg = %q, want %q", entry["msg"], "http_request")
	}
	if entry["method"] != "GET" {
		t.Errorf("method = %q, want %q", entry["method"], "GET")
	}
	if entry["status"] != float64(404) {
		t.Errorf("status = %v, want 404", entry["status"])
	}
	// 4xxはWarnレベル
	if entry["level"] != "WARN" {
		t.Errorf("level = %q, want %q", entry["level"], "WARN")
	}

	if len(recorder.statuses) != 1 || recorder.statuses[0] != 404 {
		t.Errorf("recorded statuses = %v, want [404]", recorder.statuses)
	}
}

// TestStatusRecorder_DefaultsTo200 はWriteHeader未呼び出し時に200が記録されることを検証する。
func TestStatusRecorder_DefaultsTo200(t *testing.T) {
	rec := httptest.NewRecorder()
	sr := &StatusRecorder{ResponseWriter: rec, StatusCode: http.StatusOK}

	if _, err := sr.Write([]byte("body")); err != nil {
		t.Fatalf("Write returned unexpected error: %v", err)
	}
	if sr.StatusCode != http.StatusOK {
		t.Errorf("StatusCode = %d, want %d", sr.StatusCode, http.StatusOK)
	}
}

// TestRateLimiter_General は一般APIのレート制限を検証する。
func TestRateLimiter_General(t *testing.T) {
	// burst 2のリミッターを構成する
	config := NewRateLimiterConfig(2, 1)
	rl := NewRateLimiter(config)
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	// バースト内のリクエストは通る
	for i := 0; i < 2; i++ {
		req := httptest.NewRequest(http.MethodGet, "/api/contacts", nil)
		req.RemoteAddr = "192.0.2.1:12345"
		rec := httptest.NewRecorder()
		handler.ServeHTTP(rec, req)

		if rec.Code != http.StatusOK {
			t.Fatalf("request %d: status = %d, want %d", i+1, rec.Code, http.StatusOK)
		}
	}

	// バースト超過は429
	req := httptest.NewRequest(http.MethodGet, "/api/contacts", nil)
	req.RemoteAddr = "192.0.2.1:12345"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusTooManyRequests {
		t.Fatalf("status = %d, want %d", rec.Code, http.StatusTooManyRequests)
	}

	var resp struct {
		Success bool   `json:"success"`
		Error   string `json:"error"`
	}
	if err := json.Unmarshal(rec.Body.Bytes(), &resp); err != nil {
		t.Fatalf("failed to parse response: %v", err)
	}
	if resp.Success || resp.Error == "" {
		t.Errorf("response = %+v", resp)
	}
}

// TestRateLimiter_PerClient はクライアントIPごとに独立した制限になることを検証する。
func TestRateLimiter_PerClient(t *testing.T) {
	config := NewRateLimiterConfig(1, 1)
	rl := NewRateLimiter(config)
	defer rl.Stop()

	handler := rl.GeneralMiddleware()(okHandler())

	// クライアントAがバーストを使い切る
	reqA := httptest.NewRequest(http.MethodGet, "/", nil)
	reqA.RemoteAddr = "192.0.2.1:1000"
	recA := httptest.NewRecorder()
	handler.ServeHTTP(recA, reqA)
	if recA.Code != http.StatusOK {
		t.Fatalf("client A first request: status = %d", recA.Code)
	}

	reqA2 := httptest.NewRequest(http.MethodGet, "/", nil)
	reqA2.RemoteAddr = "192.0.2.1:1000"
	recA2 := httptest.NewRecorder()
	handler.ServeHTTP(recA2, reqA2)
	if recA2.Code != http.StatusTooManyRequests {
		t.Fatalf("client A second request: status = %d, want 429", recA2.Code)
	}

	// クライアントBは影響を受けない
	reqB := httptest.NewRequest(http.MethodGet, "/", nil)
	reqB.RemoteAddr = "192.0.2.2:2000"
	recB := httptest.NewRecorder()
	handler.ServeHTTP(recB, reqB)
	if recB.Code != http.StatusOK {
		t.Fatalf("client B request: status = %d, want 200", recB.Code)
	}
}

// TestRateLimiter_SyncSeparateFromGeneral は同期用と一般用の制限が
// 独立していることを検証する。
func TestRateLimiter_SyncSeparateFromGeneral(t *testing.T) {
	config := NewRateLimiterConfig(10, 1)
	rl := NewRateLimiter(config)
	defer rl.Stop()

	syncHandler := rl.SyncMiddleware()(okHandler())
	generalHandler := rl.GeneralMiddleware()(okHandler())

	// 同期のバーストを使い切る
	req := httptest.NewRequest(http.MethodPost, "/api/sync", nil)
	req.RemoteAddr = "192.0.2.1:1000"
	rec := httptest.NewRecorder()
	syncHandler.ServeHTTP(rec, req)
	if rec.Code != http.StatusOK {
		t.Fatalf("first sync request: status = %d", rec.Code)
	}

	rec2 := httptest.NewRecorder()
	syncHandler.ServeHTTP(rec2, req)
	if rec2.Code != http.StatusTooManyRequests {
		t.Fatalf("second sync request: status = %d, want 429", rec2.Code)
	}

	// 一般APIはまだ通る
	rec3 := httptest.NewRecorder()
	generalHandler.ServeHTTP(rec3, req)
	if rec3.Code != http.StatusOK {
		t.Fatalf("general request: status = %d, want 200", rec3.Code)
	}
}

func TestClientIP(t *testing.T) {
	tests := []struct {
		remoteAddr string
		want       string
	}{
		{"192.0.2.1:12345", "192.0.2.1"},
		{"[2001:db8::1]:443", "2001:db8::1"},
		{"no-port", "no-port"},
	}

	for _, tt := range tests {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.RemoteAddr = tt.remoteAddr
		if got := clientIP(req); got != tt.want {
			t.Errorf("clientIP(%q) = %q, want %q", tt.remoteAddr, got, tt.want)
		}
	}
}
