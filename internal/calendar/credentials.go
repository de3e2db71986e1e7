// Package calendar はGoogle Calendarプロバイダーとの連携を提供する。
// OAuthトークンの保管、認可フロー、イベント取得APIの呼び出しを含む。
package calendar

import (
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"golang.org/x/oauth2"
)

// CredentialStore はプロセス内で唯一のOAuthトークン保持者。
// ハンドラーやサービスへ明示的に注入して使う。ReplaceとClearのみが
// 状態を変更し、どちらもミューテックスで保護される。
// tokenFileが空でない場合、Replaceでトークンをファイルへ永続化し、
// Clearでファイルも削除する（再認可を強制するため）。
type CredentialStore struct {
	mu        sync.RWMutex
	token     *oauth2.Token
	tokenFile string
}

// NewCredentialStore はCredentialStoreを生成する。
// tokenFileが空の場合はメモリのみで保持する（ホスティング環境モード）。
func NewCredentialStore(tokenFile string) *CredentialStore {
	return &CredentialStore{tokenFile: tokenFile}
}

// LoadFromFile はtokenFileからトークンを読み込む。
// ファイルが存在しない場合はエラーなしで未認証のまま返る。
func (s *CredentialStore) LoadFromFile() error {
	if s.tokenFile == "" {
		return nil
	}

	data, err := os.ReadFile(s.tokenFile)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to read token file: %w", err)
	}

	token := &oauth2.Token{}
	if err := json.Unmarshal(data, token); err != nil {
		return fmt.Errorf("failed to parse token file: %w", err)
	}

	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return nil
}

// LoadFromJSON はJSON文字列からトークンを読み込む。
// GOOGLE_TOKEN_JSONによる起動時シード用。
func (s *CredentialStore) LoadFromJSON(data string) error {
	token := &oauth2.Token{}
	if err := json.Unmarshal([]byte(data), token); err != nil {
		return fmt.Errorf("failed to parse token JSON: %w", err)
	}

	s.mu.Lock()
	s.token = token
	s.mu.Unlock()
	return nil
}

// Replace は保持中のトークンを置き換える。認可コールバックからのみ呼ばれる。
// tokenFileが設定されている場合はファイルにも書き出す。
func (s *CredentialStore) Replace(token *oauth2.Token) error {
	s.mu.Lock()
	s.token = token
	s.mu.Unlock()

	if s.tokenFile == "" {
		return nil
	}

	data, err := json.Marshal(token)
	if err != nil {
		return fmt.Errorf("failed to marshal token: %w", err)
	}
	if err := os.WriteFile(s.tokenFile, data, 0600); err != nil {
		return fmt.Errorf("failed to write token file: %w", err)
	}
	return nil
}

// Clear は保持中のトークンを完全に破棄する。
// プロバイダーが401/403を返した際に呼ばれ、以後の呼び出しは再認可まで
// 即時に失敗する。リフレッシュによる延命は行わない。
func (s *CredentialStore) Clear() {
	s.mu.Lock()
	s.token = nil
	s.mu.Unlock()

	if s.tokenFile != "" {
		// 失効したトークンのファイルを残さない
		_ = os.Remove(s.tokenFile)
	}
}

// Token は保持中のトークンのコピーを返す。未認証の場合はfalseを返す。
func (s *CredentialStore) Token() (*oauth2.Token, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if s.token == nil {
		return nil, false
	}
	copied := *s.token
	return &copied, true
}

// Authenticated はトークンを保持しているかを返す。
func (s *CredentialStore) Authenticated() bool {
	_, ok := s.Token()
	return ok
}
