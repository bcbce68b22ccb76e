package model

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"
)

// User is the identity record. Search, DisplayName and FacebookID are derived
// by the profile normalizer on every write and never set by callers.
type User struct {
	ID               int64     `db:"id" json:"id"`
	Username         string    `db:"username" json:"username"`
	PasswordHashed   *string   `db:"password_hashed" json:"-"`
	Email            *string   `db:"email" json:"email,omitempty"`
	EmailVerified    bool      `db:"email_verified" json:"emailVerified"`
	EmailVerifyToken *string   `db:"email_verify_token" json:"-"`
	Name             *string   `db:"name" json:"name,omitempty"`
	Location         *string   `db:"location" json:"location,omitempty"`
	Gender           *string   `db:"gender" json:"gender,omitempty"`
	AuthData         AuthData  `db:"auth_data" json:"-"`
	FacebookID       *string   `db:"facebook_id" json:"facebookId,omitempty"`
	Search           *string   `db:"search" json:"-"`
	DisplayName      *string   `db:"display_name" json:"displayName,omitempty"`
	Admin            bool      `db:"admin" json:"-"`
	FinishedVoting   bool      `db:"finished_voting" json:"finishedVoting"`
	FollowingCount   int       `db:"following_count" json:"following"`
	FollowerCount    int       `db:"follower_count" json:"followers"`
	FriendCount      int       `db:"friend_count" json:"friends"`
	CreatedAt        time.Time `db:"created_at" json:"createdAt"`
	UpdatedAt        time.Time `db:"updated_at" json:"updatedAt"`
}

// IsAnonymous reports whether the account was created without durable credentials.
func (u *User) IsAnonymous() bool {
	return u.AuthData.Anonymous != nil
}

// HasPassword reports whether the account has a password credential.
func (u *User) HasPassword() bool {
	return u.PasswordHashed != nil && *u.PasswordHashed != ""
}

// Public returns a copy safe to show to other users.
func (u *User) Public() *User {
	c := *u
	c.Email = nil
	c.EmailVerified = false
	c.FinishedVoting = false
	return &c
}

// AuthData holds linked third-party identities, stored as JSONB.
type AuthData struct {
	Facebook  *FacebookAuth  `json:"facebook,omitempty"`
	Anonymous *AnonymousAuth `json:"anonymous,omitempty"`
}

type FacebookAuth struct {
	ID          string `json:"id"`
	AccessToken string `json:"access_token,omitempty"`
}

type AnonymousAuth struct {
	ID string `json:"id"`
}

// Value implements driver.Valuer. The JSON is sent as text because lib/pq
// encodes []byte parameters as bytea.
func (a AuthData) Value() (driver.Value, error) {
	b, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal auth data: %w", err)
	}
	return string(b), nil
}

// Scan implements sql.Scanner.
func (a *AuthData) Scan(src any) error {
	var b []byte
	switch v := src.(type) {
	case nil:
		*a = AuthData{}
		return nil
	case []byte:
		b = v
	case string:
		b = []byte(v)
	default:
		return fmt.Errorf("scan auth data: unsupported type %T", src)
	}
	*a = AuthData{}
	return json.Unmarshal(b, a)
}

// CounterDelta is applied atomically to a user's follow counters.
type CounterDelta struct {
	Following int
	Followers int
	Friends   int
}

// RegisterRequest represents the data needed to register a new user
type RegisterRequest struct {
	Username string  `json:"username" validate:"required,min=3,max=30"`
	Password string  `json:"password" validate:"required,min=6,max=72"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Name     *string `json:"name" validate:"omitempty,max=100"`
}

// LoginRequest represents the data needed to log in
type LoginRequest struct {
	Username string `json:"username" validate:"required"`
	Password string `json:"password" validate:"required"`
}

// UpdateProfileRequest carries a partial profile edit. Nil fields are left unchanged.
type UpdateProfileRequest struct {
	Username *string `json:"username" validate:"omitempty,min=3,max=30"`
	Name     *string `json:"name" validate:"omitempty,max=100"`
	Email    *string `json:"email" validate:"omitempty,email"`
	Location *string `json:"location" validate:"omitempty,max=200"`
	Gender   *string `json:"gender" validate:"omitempty,max=20"`
}

// SearchUsersRequest is the body of the searchUsers function.
type SearchUsersRequest struct {
	Query string `json:"query" validate:"required"`
}

// BlockUserRequest is the body of the blockUser function.
type BlockUserRequest struct {
	UserID int64 `json:"userId" validate:"required"`
}

const (
	// UserListLimit caps searchUsers and trendingUsers results.
	UserListLimit = 50
)

var (
	ErrUserNotFound       = newError(ErrNotFound, "user not found")
	ErrUsernameExists     = newError(ErrDuplicate, "username already exists")
	ErrInvalidCredentials = newError(ErrUnauthenticated, "invalid credentials")
	ErrAnonymousRequester = newError(ErrPermissionDenied, "the user making the request cannot be anonymous")
	ErrNotAdmin           = newError(ErrPermissionDenied, "the user making the request is not an admin")
	ErrNoEmail            = newError(ErrInvalidArgument, "user has no email")
	ErrVerifyTokenInvalid = newError(ErrNotFound, "verification token is invalid or already used")
)
