package service

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	"pollpick/internal/config"
	"pollpick/internal/model"
)

type memRefreshTokens struct {
	tokens map[string]*model.RefreshToken
	nextID int
}

func newMemRefreshTokens() *memRefreshTokens {
	return &memRefreshTokens{tokens: map[string]*model.RefreshToken{}}
}

func (m *memRefreshTokens) Create(ctx context.Context, token *model.RefreshToken) error {
	m.nextID++
	token.ID = fmt.Sprintf("rt-%d", m.nextID)
	token.CreatedAt = time.Now()
	c := *token
	m.tokens[token.ID] = &c
	return nil
}

func (m *memRefreshTokens) FindByTokenHash(ctx context.Context, hash string) (*model.RefreshToken, error) {
	for _, tok := range m.tokens {
		if tok.TokenHash == hash {
			c := *tok
			return &c, nil
		}
	}
	return nil, model.ErrRefreshTokenNotFound
}

func (m *memRefreshTokens) Rotate(ctx context.Context, oldID string, next *model.RefreshToken) error {
	if old, ok := m.tokens[oldID]; !ok || old.RevokedAt != nil {
		return model.ErrRefreshTokenReused
	}
	m.Create(ctx, next)
	return m.Revoke(ctx, oldID, &next.ID)
}

func (m *memRefreshTokens) Revoke(ctx context.Context, id string, replacedBy *string) error {
	tok, ok := m.tokens[id]
	if !ok || tok.RevokedAt != nil {
		return nil
	}
	now := time.Now()
	tok.RevokedAt = &now
	tok.ReplacedBy = replacedBy
	return nil
}

func (m *memRefreshTokens) RevokeAllForUser(ctx context.Context, userID int64) error {
	for _, tok := range m.tokens {
		if tok.UserID == userID {
			m.Revoke(ctx, tok.ID, nil)
		}
	}
	return nil
}

func (m *memRefreshTokens) DeleteExpired(ctx context.Context, olderThan time.Duration) (int64, error) {
	cutoff := time.Now().Add(-olderThan)
	var n int64
	for id, tok := range m.tokens {
		if tok.ExpiresAt.Before(cutoff) {
			delete(m.tokens, id)
			n++
		}
	}
	return n, nil
}

func newTestAuthService() (*AuthService, *memRefreshTokens) {
	repo := newMemRefreshTokens()
	cfg := &config.Config{JWTSecret: "test-secret", AccessTokenMaxAge: 900, RefreshTokenMaxAge: 3600}
	return NewAuthService(repo, cfg), repo
}

// =============================================================================
// ACCESS TOKENS
// =============================================================================

func TestAuthService_AccessTokenRoundTrip(t *testing.T) {
	svc, _ := newTestAuthService()

	pair, err := svc.GenerateTokenPair(context.Background(), 42, "iPhone", "10.0.0.1")
	if err != nil {
		t.Fatalf("GenerateTokenPair: %v", err)
	}
	if pair.ExpiresIn != 900 {
		t.Errorf("expires_in = %d, want 900", pair.ExpiresIn)
	}

	userID, err := svc.ParseAccessToken(pair.AccessToken)
	if err != nil {
		t.Fatalf("ParseAccessToken: %v", err)
	}
	if userID != 42 {
		t.Errorf("user id = %d, want 42", userID)
	}

	if _, err := ParseAccessToken(pair.AccessToken, "other-secret"); err == nil {
		t.Error("token signed with another secret should be rejected")
	}
	if _, err := ParseAccessToken("not.a.jwt", "test-secret"); err == nil {
		t.Error("garbage should be rejected")
	}
}

// =============================================================================
// REFRESH ROTATION
// =============================================================================

func TestAuthService_RefreshRotates(t *testing.T) {
	svc, repo := newTestAuthService()
	ctx := context.Background()

	first, _ := svc.GenerateTokenPair(ctx, 7, "", "")
	second, userID, err := svc.RefreshTokens(ctx, first.RefreshToken, "", "")
	if err != nil {
		t.Fatalf("RefreshTokens: %v", err)
	}
	if userID != 7 {
		t.Errorf("user id = %d, want 7", userID)
	}
	if second.RefreshToken == first.RefreshToken {
		t.Error("refresh token should rotate")
	}

	old, _ := repo.FindByTokenHash(ctx, hashToken(first.RefreshToken))
	if !old.IsRevoked() || old.ReplacedBy == nil {
		t.Errorf("old token = %+v, want revoked and linked", old)
	}
}

func TestAuthService_RefreshReuseRevokesFamily(t *testing.T) {
	svc, repo := newTestAuthService()
	ctx := context.Background()

	first, _ := svc.GenerateTokenPair(ctx, 7, "", "")
	second, _, err := svc.RefreshTokens(ctx, first.RefreshToken, "", "")
	if err != nil {
		t.Fatalf("RefreshTokens: %v", err)
	}

	_, _, err = svc.RefreshTokens(ctx, first.RefreshToken, "", "")
	if !errors.Is(err, model.ErrRefreshTokenReused) {
		t.Fatalf("expected ErrRefreshTokenReused, got %v", err)
	}

	current, _ := repo.FindByTokenHash(ctx, hashToken(second.RefreshToken))
	if !current.IsRevoked() {
		t.Error("every token of the user should be revoked after reuse")
	}
}

// racingTokens rotates the token away between lookup and rotation, as a
// concurrent refresh with the same token would.
type racingTokens struct {
	*memRefreshTokens
}

func (r racingTokens) Rotate(ctx context.Context, oldID string, next *model.RefreshToken) error {
	r.Revoke(ctx, oldID, nil)
	return r.memRefreshTokens.Rotate(ctx, oldID, next)
}

func TestAuthService_ConcurrentRefreshLoses(t *testing.T) {
	repo := newMemRefreshTokens()
	cfg := &config.Config{JWTSecret: "test-secret", AccessTokenMaxAge: 900, RefreshTokenMaxAge: 3600}
	svc := NewAuthService(racingTokens{repo}, cfg)
	ctx := context.Background()

	pair, _ := svc.GenerateTokenPair(ctx, 7, "", "")
	if _, _, err := svc.RefreshTokens(ctx, pair.RefreshToken, "", ""); !errors.Is(err, model.ErrRefreshTokenReused) {
		t.Fatalf("expected ErrRefreshTokenReused, got %v", err)
	}
	if len(repo.tokens) != 1 {
		t.Errorf("tokens = %d, the losing rotation must not store a new one", len(repo.tokens))
	}
}

func TestAuthService_RefreshFailures(t *testing.T) {
	svc, repo := newTestAuthService()
	ctx := context.Background()

	pair, _ := svc.GenerateTokenPair(ctx, 9, "", "")
	for _, tok := range repo.tokens {
		tok.ExpiresAt = time.Now().Add(-time.Minute)
	}

	if _, _, err := svc.RefreshTokens(ctx, pair.RefreshToken, "", ""); !errors.Is(err, model.ErrRefreshTokenExpired) {
		t.Errorf("expected ErrRefreshTokenExpired, got %v", err)
	}
	if _, _, err := svc.RefreshTokens(ctx, "unknown", "", ""); !errors.Is(err, model.ErrRefreshTokenNotFound) {
		t.Errorf("expected ErrRefreshTokenNotFound, got %v", err)
	}
}

func TestAuthService_CleanupExpired(t *testing.T) {
	svc, repo := newTestAuthService()
	ctx := context.Background()

	svc.GenerateTokenPair(ctx, 1, "", "")
	svc.GenerateTokenPair(ctx, 2, "", "")
	for _, tok := range repo.tokens {
		if tok.UserID == 1 {
			tok.ExpiresAt = time.Now().Add(-48 * time.Hour)
		}
	}

	n, err := svc.CleanupExpired(ctx, 24*time.Hour)
	if err != nil {
		t.Fatalf("CleanupExpired: %v", err)
	}
	if n != 1 || len(repo.tokens) != 1 {
		t.Errorf("deleted %d, remaining %d; want 1, 1", n, len(repo.tokens))
	}
}
