// Package contact は連絡先管理のビジネスロジックを提供する。
package contact

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"

	"github.com/hitoshi/leadbook/internal/model"
	"github.com/hitoshi/leadbook/internal/repository"
	"github.com/hitoshi/leadbook/internal/security"
)

// Service は連絡先のCRUDとタグ付けポリシーを提供する。
type Service struct {
	repo        repository.ContactRepository
	sanitizer   security.NotesSanitizerService
	ownedDomain string
}

// NewService はServiceを生成する。
// ownedDomainは自社ドメイン（小文字）。このドメインのアドレスには
// 予約タグ「New Lead」を付けられない。
func NewService(repo repository.ContactRepository, sanitizer security.NotesSanitizerService, ownedDomain string) *Service {
	return &Service{
		repo:        repo,
		sanitizer:   sanitizer,
		ownedDomain: strings.ToLower(ownedDomain),
	}
}

// NormalizeEmail はemailを保存用に正規化する（前後空白除去＋小文字化）。
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// Create は連絡先を明示的に新規作成する。
// emailが既に存在する場合は既存の連絡先とDuplicateEmailエラーの両方を返す
// （呼び出し元は既存レコードを409レスポンスに含められる）。
func (s *Service) Create(ctx context.Context, email, name string, tags []string, notes string) (*model.Contact, error) {
	normalized := NormalizeEmail(email)
	if normalized == "" {
		return nil, model.NewValidationError("email is required")
	}

	if err := s.checkLeadTagPolicy(normalized, tags); err != nil {
		return nil, err
	}

	contact := &model.Contact{
		Email: normalized,
		Name:  strings.TrimSpace(name),
		Tags:  tags,
		Notes: s.sanitizer.Sanitize(notes),
	}

	err := s.repo.Create(ctx, contact)
	if errors.Is(err, repository.ErrDuplicateEmail) {
		// 既存レコードが取得できればレスポンスに含める。取得失敗時はnilのまま。
		existing, findErr := s.repo.FindByEmail(ctx, normalized)
		if findErr != nil {
			existing = nil
		}
		return existing, model.NewDuplicateEmailError(normalized)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to create contact: %w", err)
	}

	return contact, nil
}

// SetTags は連絡先のタグ集合を全置換する（マージではない）。
// notesがnilでない場合はnotesも置き換える。同じタグ配列の再適用は冪等。
// UUIDとして不正なIDは、UUIDカラムへのキャストエラーにする前に未検出として扱う。
func (s *Service) SetTags(ctx context.Context, contactID string, tags []string, notes *string) (*model.Contact, error) {
	if _, err := uuid.Parse(contactID); err != nil {
		return nil, model.NewContactNotFoundError(contactID)
	}

	existing, err := s.repo.FindByID(ctx, contactID)
	if err != nil {
		return nil, fmt.Errorf("failed to find contact: %w", err)
	}
	if existing == nil {
		return nil, model.NewContactNotFoundError(contactID)
	}

	if err := s.checkLeadTagPolicy(existing.Email, tags); err != nil {
		return nil, err
	}

	if notes != nil {
		sanitized := s.sanitizer.Sanitize(*notes)
		notes = &sanitized
	}

	updated, err := s.repo.ReplaceTags(ctx, contactID, tags, notes)
	if err != nil {
		return nil, fmt.Errorf("failed to replace tags: %w", err)
	}
	if updated == nil {
		return nil, model.NewContactNotFoundError(contactID)
	}

	return updated, nil
}

// checkLeadTagPolicy は予約タグ「New Lead」が自社ドメインのアドレスに
// 付与されようとしていないかを検証する。変更前に検出して拒否する。
func (s *Service) checkLeadTagPolicy(email string, tags []string) error {
	if s.ownedDomain == "" || !strings.HasSuffix(email, "@"+s.ownedDomain) {
		return nil
	}
	for _, tag := range tags {
		if tag == model.ReservedLeadTag {
			return model.NewPolicyViolationError(email)
		}
	}
	return nil
}

// ListAll は全連絡先を返す。
func (s *Service) ListAll(ctx context.Context) ([]*model.Contact, error) {
	return s.repo.ListAll(ctx)
}

// ListSince は直近days日以内に作成された連絡先を返す。
func (s *Service) ListSince(ctx context.Context, days int) ([]*model.Contact, error) {
	if days < 1 {
		return nil, model.NewValidationError(fmt.Sprintf("days must be a positive integer: %d", days))
	}
	return s.repo.ListSince(ctx, days)
}

// ListByTag は指定タグを持つ連絡先を返す。
func (s *Service) ListByTag(ctx context.Context, tag string) ([]*model.Contact, error) {
	if strings.TrimSpace(tag) == "" {
		return nil, model.NewValidationError("tag is required")
	}
	return s.repo.ListByTag(ctx, tag)
}

// ListTagsWithCounts はタグごとの使用件数を返す。
// 定義済みタグは未使用でもカウント0で常に含める。結果は件数降順、
// 同数の場合はタグ名昇順。
func (s *Service) ListTagsWithCounts(ctx context.Context) ([]model.TagCount, error) {
	counts, err := s.repo.ListTagCounts(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to list tag counts: %w", err)
	}

	seen := make(map[string]bool, len(counts))
	for _, tc := range counts {
		seen[tc.Tag] = true
	}
	for _, tag := range model.PredefinedTags {
		if !seen[tag] {
			counts = append(counts, model.TagCount{Tag: tag, Count: 0})
		}
	}

	sort.SliceStable(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Tag < counts[j].Tag
	})

	return counts, nil
}
