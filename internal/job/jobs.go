package job

import (
	"context"
	"errors"
	"fmt"
	"time"

	"pollpick/internal/facebook"
	"pollpick/internal/model"
	"pollpick/internal/repository"
	"pollpick/internal/service"
)

const (
	NameSearchBackfill   = "search-backfill"
	NameFacebookProfiles = "facebook-profiles"
	NamePhotoVisibility  = "photo-visibility"
	NameTokenCleanup     = "token-cleanup"
)

// =============================================================================
// SEARCH BACKFILL
// =============================================================================

// SearchBackfillJob recomputes the derived profile fields of users that
// have no search key. Only the derived columns are written.
type SearchBackfillJob struct {
	users repository.UserRepository
	opts  Options
}

func NewSearchBackfillJob(users repository.UserRepository, opts Options) *SearchBackfillJob {
	return &SearchBackfillJob{users: users, opts: opts}
}

func (j *SearchBackfillJob) Name() string { return NameSearchBackfill }

func (j *SearchBackfillJob) Execute(ctx context.Context) (Summary, error) {
	return walk(ctx, j.Name(), j.opts, j.users.ListWithoutSearch, userID,
		func(ctx context.Context, u model.User) error {
			return j.users.RefreshDerived(ctx, u.ID)
		})
}

// =============================================================================
// FACEBOOK PROFILES
// =============================================================================

// GraphClient reads Facebook profiles with either the user's token or the app token.
type GraphClient interface {
	Me(ctx context.Context, userToken string) (*facebook.Profile, error)
	User(ctx context.Context, facebookID, appToken string) (*facebook.Profile, error)
}

// FacebookProfilesJob fills missing name, gender and email of Facebook-linked users.
type FacebookProfilesJob struct {
	users    repository.UserRepository
	graph    GraphClient
	appToken string
	opts     Options
}

func NewFacebookProfilesJob(users repository.UserRepository, graph GraphClient, appToken string, opts Options) *FacebookProfilesJob {
	return &FacebookProfilesJob{users: users, graph: graph, appToken: appToken, opts: opts}
}

func (j *FacebookProfilesJob) Name() string { return NameFacebookProfiles }

func (j *FacebookProfilesJob) Execute(ctx context.Context) (Summary, error) {
	return walk(ctx, j.Name(), j.opts, j.users.ListWithIncompleteFacebookProfile, userID, j.fix)
}

func (j *FacebookProfilesJob) fix(ctx context.Context, u model.User) error {
	fbAuth := u.AuthData.Facebook
	if fbAuth == nil || fbAuth.ID == "" {
		return nil
	}

	profile, err := j.lookup(ctx, fbAuth)
	if err != nil {
		return err
	}
	// The Graph call can take a while; merge into the row as it is now.
	return j.users.Modify(ctx, u.ID, func(current *model.User) bool {
		return service.ApplyFacebookProfile(current, profile)
	})
}

// lookup prefers the stored user token and falls back to the app token
// once the user token has expired.
func (j *FacebookProfilesJob) lookup(ctx context.Context, fbAuth *model.FacebookAuth) (*facebook.Profile, error) {
	if fbAuth.AccessToken != "" {
		profile, err := j.graph.Me(ctx, fbAuth.AccessToken)
		if err == nil {
			return profile, nil
		}
		if !errors.Is(err, facebook.ErrInvalidToken) || j.appToken == "" {
			return nil, err
		}
	}
	if j.appToken == "" {
		return nil, fmt.Errorf("no usable token for facebook user %s", fbAuth.ID)
	}
	return j.graph.User(ctx, fbAuth.ID, j.appToken)
}

// =============================================================================
// PHOTO VISIBILITY
// =============================================================================

// PhotoVisibilityJob publishes photos that public polls use but that are still private.
type PhotoVisibilityJob struct {
	photos repository.PhotoRepository
	opts   Options
}

func NewPhotoVisibilityJob(photos repository.PhotoRepository, opts Options) *PhotoVisibilityJob {
	return &PhotoVisibilityJob{photos: photos, opts: opts}
}

func (j *PhotoVisibilityJob) Name() string { return NamePhotoVisibility }

func (j *PhotoVisibilityJob) Execute(ctx context.Context) (Summary, error) {
	return walk(ctx, j.Name(), j.opts, j.photos.ListPrivateInPublicPolls,
		func(p model.Photo) int64 { return p.ID },
		func(ctx context.Context, p model.Photo) error {
			return j.photos.MarkPublic(ctx, nil, []int64{p.ID})
		})
}

// =============================================================================
// TOKEN CLEANUP
// =============================================================================

type tokenCleaner interface {
	CleanupExpired(ctx context.Context, retention time.Duration) (int64, error)
}

// TokenCleanupJob deletes refresh tokens that expired more than retention ago.
type TokenCleanupJob struct {
	auth      tokenCleaner
	retention time.Duration
}

func NewTokenCleanupJob(auth tokenCleaner, retention time.Duration) *TokenCleanupJob {
	return &TokenCleanupJob{auth: auth, retention: retention}
}

func (j *TokenCleanupJob) Name() string { return NameTokenCleanup }

func (j *TokenCleanupJob) Execute(ctx context.Context) (Summary, error) {
	summary := Summary{Job: j.Name()}
	start := time.Now()
	n, err := j.auth.CleanupExpired(ctx, j.retention)
	summary.Duration = time.Since(start)
	if err != nil {
		return summary, err
	}
	summary.Attempted, summary.Succeeded = int(n), int(n)
	return summary, nil
}

func userID(u model.User) int64 { return u.ID }
