package service

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"pollpick/internal/config"
	"pollpick/internal/logger"
	"pollpick/internal/model"
	"pollpick/internal/repository"
)

// AuthService issues access tokens and rotates refresh tokens with reuse detection.
type AuthService struct {
	refreshTokenRepo repository.RefreshTokenRepository
	config           *config.Config
	log              *slog.Logger
}

func NewAuthService(refreshTokenRepo repository.RefreshTokenRepository, cfg *config.Config) *AuthService {
	return &AuthService{
		refreshTokenRepo: refreshTokenRepo,
		config:           cfg,
		log:              logger.With("auth_service"),
	}
}

// GenerateTokenPair issues a new access token and persists a refresh token.
func (s *AuthService) GenerateTokenPair(ctx context.Context, userID int64, deviceInfo, ipAddress string) (*model.TokenPair, error) {
	pair, token, err := s.newPair(userID, deviceInfo, ipAddress)
	if err != nil {
		return nil, err
	}
	if err := s.refreshTokenRepo.Create(ctx, token); err != nil {
		return nil, storeErr("store refresh token", err)
	}
	return pair, nil
}

// newPair signs an access token and builds the unsaved refresh token that
// goes with it. Only the hash of the raw refresh token is ever stored.
func (s *AuthService) newPair(userID int64, deviceInfo, ipAddress string) (*model.TokenPair, *model.RefreshToken, error) {
	accessToken, err := s.generateAccessToken(userID)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to generate access token: %w", err)
	}

	raw := uuid.New().String()
	refreshToken := &model.RefreshToken{
		UserID:    userID,
		TokenHash: hashToken(raw),
		ExpiresAt: time.Now().Add(time.Duration(s.config.RefreshTokenMaxAge) * time.Second),
	}
	if deviceInfo != "" {
		refreshToken.DeviceInfo = &deviceInfo
	}
	if ipAddress != "" {
		refreshToken.IPAddress = &ipAddress
	}

	return &model.TokenPair{
		AccessToken:  accessToken,
		RefreshToken: raw,
		ExpiresIn:    s.config.AccessTokenMaxAge,
	}, refreshToken, nil
}

// RefreshTokens validates the refresh token and rotates a new pair.
// Presenting a revoked token revokes every token of its user.
func (s *AuthService) RefreshTokens(ctx context.Context, refreshTokenRaw, deviceInfo, ipAddress string) (*model.TokenPair, int64, error) {
	token, err := s.refreshTokenRepo.FindByTokenHash(ctx, hashToken(refreshTokenRaw))
	if err != nil {
		if errors.Is(err, model.ErrRefreshTokenNotFound) {
			return nil, 0, err
		}
		return nil, 0, storeErr("find refresh token", err)
	}
	if token.IsRevoked() {
		return nil, 0, s.reused(ctx, token)
	}
	if token.IsExpired() {
		return nil, 0, model.ErrRefreshTokenExpired
	}

	pair, next, err := s.newPair(token.UserID, deviceInfo, ipAddress)
	if err != nil {
		return nil, 0, err
	}
	if err := s.refreshTokenRepo.Rotate(ctx, token.ID, next); err != nil {
		if errors.Is(err, model.ErrRefreshTokenReused) {
			// lost a race with another refresh of the same token
			return nil, 0, s.reused(ctx, token)
		}
		return nil, 0, storeErr("rotate refresh token", err)
	}

	return pair, token.UserID, nil
}

func (s *AuthService) reused(ctx context.Context, token *model.RefreshToken) error {
	s.log.Warn("refresh token reuse detected", "user_id", token.UserID, "token_id", token.ID)
	if err := s.refreshTokenRepo.RevokeAllForUser(ctx, token.UserID); err != nil {
		s.log.Error("failed to revoke token family", "user_id", token.UserID, "error", err)
	}
	return model.ErrRefreshTokenReused
}

func (s *AuthService) RevokeRefreshToken(ctx context.Context, refreshTokenRaw string) error {
	token, err := s.refreshTokenRepo.FindByTokenHash(ctx, hashToken(refreshTokenRaw))
	if err != nil {
		return err
	}
	return s.refreshTokenRepo.Revoke(ctx, token.ID, nil)
}

func (s *AuthService) RevokeAllUserTokens(ctx context.Context, userID int64) error {
	return s.refreshTokenRepo.RevokeAllForUser(ctx, userID)
}

// ParseAccessToken verifies signature and expiry and returns the user id claim.
func (s *AuthService) ParseAccessToken(tokenString string) (int64, error) {
	return ParseAccessToken(tokenString, s.config.JWTSecret)
}

// ParseAccessToken is the stateless check used by the HTTP middleware.
func ParseAccessToken(tokenString, secret string) (int64, error) {
	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return []byte(secret), nil
	})
	if err != nil {
		return 0, err
	}
	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok || !token.Valid {
		return 0, jwt.ErrTokenInvalidClaims
	}
	userID, ok := claims["user_id"].(float64)
	if !ok || userID <= 0 {
		return 0, jwt.ErrTokenInvalidClaims
	}
	return int64(userID), nil
}

// CleanupExpired deletes refresh tokens that expired more than retention ago.
func (s *AuthService) CleanupExpired(ctx context.Context, retention time.Duration) (int64, error) {
	n, err := s.refreshTokenRepo.DeleteExpired(ctx, retention)
	if err != nil {
		return 0, storeErr("delete expired tokens", err)
	}
	return n, nil
}

func (s *AuthService) generateAccessToken(userID int64) (string, error) {
	now := time.Now()
	claims := jwt.MapClaims{
		"user_id": userID,
		"exp":     now.Add(time.Duration(s.config.AccessTokenMaxAge) * time.Second).Unix(),
		"iat":     now.Unix(),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.JWTSecret))
}

func hashToken(token string) string {
	hash := sha256.Sum256([]byte(token))
	return hex.EncodeToString(hash[:])
}
