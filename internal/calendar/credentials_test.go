package calendar

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"golang.org/x/oauth2"
)

// TestCredentialStore_MemoryOnly はファイルなしモードでの基本動作を検証する。
func TestCredentialStore_MemoryOnly(t *testing.T) {
	store := NewCredentialStore("")

	if store.Authenticated() {
		t.Error("new store should not be authenticated")
	}
	if _, ok := store.Token(); ok {
		t.Error("Token() should return false for empty store")
	}

	if err := store.Replace(&oauth2.Token{AccessToken: "tok-1"}); err != nil {
		t.Fatalf("Replace returned unexpected error: %v", err)
	}

	if !store.Authenticated() {
		t.Error("store should be authenticated after Replace")
	}
	token, ok := store.Token()
	if !ok || token.AccessToken != "tok-1" {
		t.Errorf("Token() = %v, %v", token, ok)
	}

	store.Clear()
	if store.Authenticated() {
		t.Error("store should not be authenticated after Clear")
	}
}

// TestCredentialStore_TokenReturnsCopy はToken()が保持中トークンのコピーを
// 返すことを検証する（呼び出し側の変更が内部状態に影響しない）。
func TestCredentialStore_TokenReturnsCopy(t *testing.T) {
	store := NewCredentialStore("")
	if err := store.Replace(&oauth2.Token{AccessToken: "original"}); err != nil {
		t.Fatalf("Replace returned unexpected error: %v", err)
	}

	token, _ := store.Token()
	token.AccessToken = "mutated"

	again, _ := store.Token()
	if again.AccessToken != "original" {
		t.Errorf("AccessToken = %q, want %q", again.AccessToken, "original")
	}
}

// TestCredentialStore_FilePersistence はReplaceでのファイル永続化と
// Clearでのファイル削除を検証する。
func TestCredentialStore_FilePersistence(t *testing.T) {
	tokenFile := filepath.Join(t.TempDir(), "token.json")
	store := NewCredentialStore(tokenFile)

	if err := store.Replace(&oauth2.Token{AccessToken: "persisted"}); err != nil {
		t.Fatalf("Replace returned unexpected error: %v", err)
	}

	// ファイルに書き出されていること
	if _, err := os.Stat(tokenFile); err != nil {
		t.Fatalf("token file should exist after Replace: %v", err)
	}

	// 別のストアがファイルから読み込めること
	restored := NewCredentialStore(tokenFile)
	if err := restored.LoadFromFile(); err != nil {
		t.Fatalf("LoadFromFile returned unexpected error: %v", err)
	}
	token, ok := restored.Token()
	if !ok || token.AccessToken != "persisted" {
		t.Errorf("restored token = %v, %v", token, ok)
	}

	// Clearでファイルも削除される
	store.Clear()
	if _, err := os.Stat(tokenFile); !os.IsNotExist(err) {
		t.Error("token file should be removed after Clear")
	}
}

// TestLoadFromFile_MissingFile はファイルが存在しない場合にエラーなく
// 未認証のまま返ることを検証する。
func TestLoadFromFile_MissingFile(t *testing.T) {
	store := NewCredentialStore(filepath.Join(t.TempDir(), "nonexistent.json"))

	if err := store.LoadFromFile(); err != nil {
		t.Fatalf("LoadFromFile should not fail for missing file: %v", err)
	}
	if store.Authenticated() {
		t.Error("store should remain unauthenticated")
	}
}

// TestLoadFromFile_CorruptFile は壊れたファイルがエラーになることを検証する。
func TestLoadFromFile_CorruptFile(t *testing.T) {
	tokenFile := filepath.Join(t.TempDir(), "token.json")
	if err := os.WriteFile(tokenFile, []byte("{not json"), 0600); err != nil {
		t.Fatalf("failed to write test file: %v", err)
	}

	store := NewCredentialStore(tokenFile)
	if err := store.LoadFromFile(); err == nil {
		t.Error("expected error for corrupt token file, got nil")
	}
}

// TestLoadFromJSON はGOOGLE_TOKEN_JSONによる起動時シードを検証する。
func TestLoadFromJSON(t *testing.T) {
	store := NewCredentialStore("")

	if err := store.LoadFromJSON(`{"access_token":"seeded","token_type":"Bearer"}`); err != nil {
		t.Fatalf("LoadFromJSON returned unexpected error: %v", err)
	}

	token, ok := store.Token()
	if !ok || token.AccessToken != "seeded" {
		t.Errorf("token = %v, %v", token, ok)
	}
}

// TestLoadFromJSON_Invalid は不正JSONがエラーになることを検証する。
func TestLoadFromJSON_Invalid(t *testing.T) {
	store := NewCredentialStore("")

	if err := store.LoadFromJSON("not json"); err == nil {
		t.Error("expected error for invalid JSON, got nil")
	}
	if store.Authenticated() {
		t.Error("store should remain unauthenticated")
	}
}

// TestOAuthFlow_Configured はクライアント情報の有無でConfiguredが変わることを検証する。
func TestOAuthFlow_Configured(t *testing.T) {
	tests := []struct {
		name string
		cfg  OAuthConfig
		want bool
	}{
		{"両方設定済み", OAuthConfig{ClientID: "id", ClientSecret: "secret"}, true},
		{"ClientIDなし", OAuthConfig{ClientSecret: "secret"}, false},
		{"ClientSecretなし", OAuthConfig{ClientID: "id"}, false},
		{"両方なし", OAuthConfig{}, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			flow := NewOAuthFlow(tt.cfg)
			if got := flow.Configured(); got != tt.want {
				t.Errorf("Configured() = %v, want %v", got, tt.want)
			}
		})
	}
}

// TestOAuthFlow_AuthCodeURL は同意URLにstateとoffline accessが含まれることを検証する。
func TestOAuthFlow_AuthCodeURL(t *testing.T) {
	flow := NewOAuthFlow(OAuthConfig{
		ClientID:     "id",
		ClientSecret: "secret",
		RedirectURL:  "http://localhost:8080/api/auth/google/callback",
	})

	url := flow.AuthCodeURL("state-xyz")
	for _, want := range []string{"state=state-xyz", "access_type=offline", "client_id=id"} {
		if !strings.Contains(url, want) {
			t.Errorf("AuthCodeURL missing %q: %s", want, url)
		}
	}
}
