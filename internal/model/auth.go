package model

import (
	"time"
)

// RefreshToken represents a refresh token stored in the database
type RefreshToken struct {
	ID         string     `db:"id" json:"id"`
	UserID     int64      `db:"user_id" json:"user_id"`
	TokenHash  string     `db:"token_hash" json:"-"`
	ExpiresAt  time.Time  `db:"expires_at" json:"expires_at"`
	CreatedAt  time.Time  `db:"created_at" json:"created_at"`
	RevokedAt  *time.Time `db:"revoked_at" json:"revoked_at,omitempty"`
	ReplacedBy *string    `db:"replaced_by" json:"replaced_by,omitempty"`
	DeviceInfo *string    `db:"device_info" json:"device_info,omitempty"`
	IPAddress  *string    `db:"ip_address" json:"ip_address,omitempty"`
}

// IsRevoked returns true if the token has been revoked
func (t *RefreshToken) IsRevoked() bool {
	return t.RevokedAt != nil
}

// IsExpired returns true if the token has expired
func (t *RefreshToken) IsExpired() bool {
	return time.Now().After(t.ExpiresAt)
}

// Refresh token errors
var (
	ErrRefreshTokenNotFound = newError(ErrUnauthenticated, "refresh token not found")
	ErrRefreshTokenExpired  = newError(ErrUnauthenticated, "refresh token expired")
	ErrRefreshTokenReused   = newError(ErrUnauthenticated, "refresh token reuse detected")
	ErrFacebookTokenInvalid = newError(ErrUnauthenticated, "facebook access token is invalid")
)

// Token API error codes (used in HTTP responses)
const (
	CodeTokenExpired = "TOKEN_EXPIRED"
	CodeTokenInvalid = "TOKEN_INVALID"
	CodeTokenReused  = "TOKEN_REUSED"
)

// TokenPair represents both tokens returned after login/refresh
type TokenPair struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int    `json:"expires_in"`
}

// LoginResponse is returned by every sign-in flow.
type LoginResponse struct {
	User *User `json:"user"`
	TokenPair
}

// RefreshRequest is the body for POST /auth/refresh and POST /auth/logout.
type RefreshRequest struct {
	RefreshToken string `json:"refresh_token" validate:"required"`
}

// FacebookLoginRequest is the body for POST /auth/facebook.
type FacebookLoginRequest struct {
	AccessToken string `json:"access_token" validate:"required"`
}
