package repository

import (
	"context"
	"time"

	"github.com/jmoiron/sqlx"

	"pollpick/internal/model"
)

// UserRepository persists users. Create and Update run the profile normalizer
// before writing, so callers never set derived fields themselves.
type UserRepository interface {
	Create(ctx context.Context, user *model.User) error
	Update(ctx context.Context, user *model.User) error
	// Modify runs fn on the locked current row and saves it if fn returns true.
	Modify(ctx context.Context, id int64, fn func(user *model.User) bool) error
	// RefreshDerived recomputes search, display_name and facebook_id only.
	RefreshDerived(ctx context.Context, id int64) error
	GetByID(ctx context.Context, id int64) (*model.User, error)
	GetByUsername(ctx context.Context, username string) (*model.User, error)
	GetByFacebookID(ctx context.Context, facebookID string) (*model.User, error)
	GetByVerifyToken(ctx context.Context, token string) (*model.User, error)
	ExistsByUsername(ctx context.Context, username string) (bool, error)
	LockPair(ctx context.Context, tx *sqlx.Tx, a, b int64) error
	// AdjustCounters adds delta to the follow counters, clamped at zero.
	AdjustCounters(ctx context.Context, tx *sqlx.Tx, userID int64, delta model.CounterDelta) error
	Search(ctx context.Context, foldedQuery string, excludeID int64, limit int) ([]model.User, error)
	Trending(ctx context.Context, excludeID int64, limit int) ([]model.User, error)
	// Keyset-paged scans used by maintenance jobs.
	ListWithoutSearch(ctx context.Context, afterID int64, limit int) ([]model.User, error)
	ListWithIncompleteFacebookProfile(ctx context.Context, afterID int64, limit int) ([]model.User, error)
}

type FollowRepository interface {
	Create(ctx context.Context, tx *sqlx.Tx, follow *model.Follow) (bool, error)
	// GetForUpdate locks and returns the edge, or nil when it does not exist.
	GetForUpdate(ctx context.Context, tx *sqlx.Tx, followerID, userID int64) (*model.Follow, error)
	SetMutual(ctx context.Context, tx *sqlx.Tx, followerID, userID int64, mutual bool) error
	Delete(ctx context.Context, tx *sqlx.Tx, followID int64) error
	Exists(ctx context.Context, followerID, userID int64) (bool, error)
	GetFollowerIDs(ctx context.Context, userID int64) ([]int64, error)
}

type PollRepository interface {
	Create(ctx context.Context, tx *sqlx.Tx, poll *model.Poll) error
	GetByID(ctx context.Context, id int64) (*model.Poll, error)
	// ApplyVote bumps the tally for vote and returns the updated poll.
	ApplyVote(ctx context.Context, tx *sqlx.Tx, pollID int64, vote int) (*model.Poll, error)
	SetHidden(ctx context.Context, tx *sqlx.Tx, pollID int64) error
	Feed(ctx context.Context, viewerID int64, limit int) ([]model.Poll, error)
}

type VoteRepository interface {
	Create(ctx context.Context, tx *sqlx.Tx, vote *model.Vote) (bool, error)
}

type ReportRepository interface {
	Create(ctx context.Context, tx *sqlx.Tx, report *model.Report) error
}

type BlockRepository interface {
	Create(ctx context.Context, block *model.Block) error
}

type PhotoRepository interface {
	Create(ctx context.Context, photo *model.Photo) error
	MarkPublic(ctx context.Context, tx *sqlx.Tx, photoIDs []int64) error
	// ListPrivateInPublicPolls returns photos still private although a public poll uses them.
	ListPrivateInPublicPolls(ctx context.Context, afterID int64, limit int) ([]model.Photo, error)
}

type InstallationRepository interface {
	Upsert(ctx context.Context, inst *model.Installation) error
	Delete(ctx context.Context, installationID string) error
	FindByUsers(ctx context.Context, userIDs []int64, minPushVersion int) ([]model.Installation, error)
	FindByChannel(ctx context.Context, channel string, minPushVersion int) ([]model.Installation, error)
	// IncrementBadges bumps the badge of each installation and returns the new values by row id.
	IncrementBadges(ctx context.Context, ids []int64) (map[int64]int, error)
	ListLocations(ctx context.Context, limit int) ([]model.InstallationLocation, error)
}

type RefreshTokenRepository interface {
	Create(ctx context.Context, token *model.RefreshToken) error
	FindByTokenHash(ctx context.Context, tokenHash string) (*model.RefreshToken, error)
	Rotate(ctx context.Context, oldID string, next *model.RefreshToken) error
	Revoke(ctx context.Context, id string, replacedBy *string) error
	RevokeAllForUser(ctx context.Context, userID int64) error
	DeleteExpired(ctx context.Context, olderThan time.Duration) (int64, error)
}
