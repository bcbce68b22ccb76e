package model

import "time"

// Follow is a directed edge: FollowerID follows UserID.
// Mutual is true on both edges of a 2-cycle.
type Follow struct {
	ID         int64     `db:"id" json:"id"`
	FollowerID int64     `db:"follower_id" json:"follower"`
	UserID     int64     `db:"user_id" json:"user"`
	Mutual     bool      `db:"mutual" json:"mutual"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}

// FollowRequest is the body of followUser, unfollowUser and isFollowing.
type FollowRequest struct {
	UserID int64 `json:"userId" validate:"required"`
}

// FollowResult carries both users after a follow graph mutation.
type FollowResult struct {
	User   *User `json:"user"`
	Target *User `json:"target"`
}

var (
	ErrAlreadyFollowing   = newError(ErrDuplicate, "you are already following this user")
	ErrNotFollowing       = newError(ErrNotFound, "you are not following this user")
	ErrCannotFollowSelf   = newError(ErrInvalidArgument, "you cannot follow yourself")
	ErrAnonymousFollowee  = newError(ErrInvalidArgument, "the user to follow cannot be anonymous")
	ErrTargetUserRequired = newError(ErrInvalidArgument, "userId is required")
)
