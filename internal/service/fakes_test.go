package service

import (
	"context"
	"errors"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/jmoiron/sqlx"

	"pollpick/internal/model"
	"pollpick/internal/profile"
	"pollpick/internal/push"
)

// =============================================================================
// IN-MEMORY REPOSITORIES
// =============================================================================
//
// Stateful fakes so tests can assert on what ends up stored, not only on
// which calls were made.

type fakeTx struct {
	calls int
	err   error
}

func (f *fakeTx) WithTx(ctx context.Context, fn func(tx *sqlx.Tx) error) error {
	f.calls++
	if f.err != nil {
		return f.err
	}
	return fn(nil)
}

type memUsers struct {
	mu     sync.Mutex
	users  map[int64]*model.User
	nextID int64
	getErr error
}

func newMemUsers() *memUsers {
	return &memUsers{users: map[int64]*model.User{}, nextID: 1}
}

func (m *memUsers) add(u *model.User) *model.User {
	if err := m.Create(context.Background(), u); err != nil {
		panic(err)
	}
	return u
}

func (m *memUsers) Create(ctx context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, existing := range m.users {
		if existing.Username == u.Username {
			return model.ErrUsernameExists
		}
	}
	profile.Normalize(u)
	u.ID = m.nextID
	m.nextID++
	u.CreatedAt = time.Now()
	c := *u
	m.users[u.ID] = &c
	return nil
}

func (m *memUsers) Update(ctx context.Context, u *model.User) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	stored, ok := m.users[u.ID]
	if !ok {
		return model.ErrUserNotFound
	}
	profile.Normalize(u)
	c := *u
	c.FollowingCount, c.FollowerCount, c.FriendCount = stored.FollowingCount, stored.FollowerCount, stored.FriendCount
	c.Admin = stored.Admin
	m.users[u.ID] = &c
	return nil
}

func (m *memUsers) Modify(ctx context.Context, id int64, fn func(u *model.User) bool) error {
	m.mu.Lock()
	stored, ok := m.users[id]
	if !ok {
		m.mu.Unlock()
		return model.ErrUserNotFound
	}
	c := *stored
	m.mu.Unlock()
	if !fn(&c) {
		return nil
	}
	return m.Update(ctx, &c)
}

func (m *memUsers) RefreshDerived(ctx context.Context, id int64) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[id]
	if !ok {
		return model.ErrUserNotFound
	}
	profile.Normalize(u)
	return nil
}

func (m *memUsers) GetByID(ctx context.Context, id int64) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.getErr != nil {
		return nil, m.getErr
	}
	u, ok := m.users[id]
	if !ok {
		return nil, model.ErrUserNotFound
	}
	c := *u
	return &c, nil
}

func (m *memUsers) find(match func(*model.User) bool) (*model.User, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, u := range m.users {
		if match(u) {
			c := *u
			return &c, nil
		}
	}
	return nil, model.ErrUserNotFound
}

func (m *memUsers) GetByUsername(ctx context.Context, username string) (*model.User, error) {
	return m.find(func(u *model.User) bool { return u.Username == username })
}

func (m *memUsers) GetByFacebookID(ctx context.Context, facebookID string) (*model.User, error) {
	return m.find(func(u *model.User) bool { return u.FacebookID != nil && *u.FacebookID == facebookID })
}

func (m *memUsers) GetByVerifyToken(ctx context.Context, token string) (*model.User, error) {
	return m.find(func(u *model.User) bool { return u.EmailVerifyToken != nil && *u.EmailVerifyToken == token })
}

func (m *memUsers) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	_, err := m.GetByUsername(ctx, username)
	return err == nil, nil
}

func (m *memUsers) LockPair(ctx context.Context, tx *sqlx.Tx, a, b int64) error { return nil }

func (m *memUsers) AdjustCounters(ctx context.Context, tx *sqlx.Tx, userID int64, d model.CounterDelta) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	u, ok := m.users[userID]
	if !ok {
		return model.ErrUserNotFound
	}
	u.FollowingCount = max(u.FollowingCount+d.Following, 0)
	u.FollowerCount = max(u.FollowerCount+d.Followers, 0)
	u.FriendCount = max(u.FriendCount+d.Friends, 0)
	return nil
}

func (m *memUsers) list(match func(*model.User) bool) []model.User {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []model.User
	for _, u := range m.users {
		if match(u) {
			out = append(out, *u)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].FollowerCount != out[j].FollowerCount {
			return out[i].FollowerCount > out[j].FollowerCount
		}
		return out[i].ID < out[j].ID
	})
	return out
}

func (m *memUsers) Search(ctx context.Context, q string, excludeID int64, limit int) ([]model.User, error) {
	out := m.list(func(u *model.User) bool {
		return u.ID != excludeID && u.Search != nil && strings.Contains(*u.Search, q)
	})
	return out[:min(len(out), limit)], nil
}

func (m *memUsers) Trending(ctx context.Context, excludeID int64, limit int) ([]model.User, error) {
	out := m.list(func(u *model.User) bool { return u.ID != excludeID && u.Search != nil })
	return out[:min(len(out), limit)], nil
}

func (m *memUsers) ListWithoutSearch(ctx context.Context, afterID int64, limit int) ([]model.User, error) {
	return nil, nil
}

func (m *memUsers) ListWithIncompleteFacebookProfile(ctx context.Context, afterID int64, limit int) ([]model.User, error) {
	return nil, nil
}

type memFollows struct {
	edges     []*model.Follow
	nextID    int64
	followErr error
}

func (m *memFollows) get(followerID, userID int64) *model.Follow {
	for _, f := range m.edges {
		if f.FollowerID == followerID && f.UserID == userID {
			return f
		}
	}
	return nil
}

func (m *memFollows) Create(ctx context.Context, tx *sqlx.Tx, f *model.Follow) (bool, error) {
	if m.get(f.FollowerID, f.UserID) != nil {
		return false, nil
	}
	m.nextID++
	f.ID = m.nextID
	c := *f
	m.edges = append(m.edges, &c)
	return true, nil
}

func (m *memFollows) GetForUpdate(ctx context.Context, tx *sqlx.Tx, followerID, userID int64) (*model.Follow, error) {
	f := m.get(followerID, userID)
	if f == nil {
		return nil, nil
	}
	c := *f
	return &c, nil
}

func (m *memFollows) SetMutual(ctx context.Context, tx *sqlx.Tx, followerID, userID int64, mutual bool) error {
	if f := m.get(followerID, userID); f != nil {
		f.Mutual = mutual
	}
	return nil
}

func (m *memFollows) Delete(ctx context.Context, tx *sqlx.Tx, followID int64) error {
	for i, f := range m.edges {
		if f.ID == followID {
			m.edges = append(m.edges[:i], m.edges[i+1:]...)
			return nil
		}
	}
	return model.ErrNotFollowing
}

func (m *memFollows) Exists(ctx context.Context, followerID, userID int64) (bool, error) {
	return m.get(followerID, userID) != nil, nil
}

func (m *memFollows) GetFollowerIDs(ctx context.Context, userID int64) ([]int64, error) {
	if m.followErr != nil {
		return nil, m.followErr
	}
	var ids []int64
	for _, f := range m.edges {
		if f.UserID == userID {
			ids = append(ids, f.FollowerID)
		}
	}
	return ids, nil
}

type memPolls struct {
	polls  map[int64]*model.Poll
	nextID int64
}

func newMemPolls() *memPolls { return &memPolls{polls: map[int64]*model.Poll{}} }

func (m *memPolls) Create(ctx context.Context, tx *sqlx.Tx, p *model.Poll) error {
	m.nextID++
	p.ID = m.nextID
	p.CreatedAt = time.Now()
	c := *p
	m.polls[p.ID] = &c
	return nil
}

func (m *memPolls) GetByID(ctx context.Context, id int64) (*model.Poll, error) {
	p, ok := m.polls[id]
	if !ok {
		return nil, model.ErrPollNotFound
	}
	c := *p
	return &c, nil
}

func (m *memPolls) ApplyVote(ctx context.Context, tx *sqlx.Tx, pollID int64, vote int) (*model.Poll, error) {
	p, ok := m.polls[pollID]
	if !ok {
		return nil, model.ErrPollNotFound
	}
	p.VoteTotalCount++
	switch vote {
	case 1:
		p.Vote1Count++
	case 2:
		p.Vote2Count++
	}
	c := *p
	return &c, nil
}

func (m *memPolls) SetHidden(ctx context.Context, tx *sqlx.Tx, pollID int64) error {
	p, ok := m.polls[pollID]
	if !ok {
		return model.ErrPollNotFound
	}
	p.Hidden = true
	return nil
}

func (m *memPolls) Feed(ctx context.Context, viewerID int64, limit int) ([]model.Poll, error) {
	var out []model.Poll
	for _, p := range m.polls {
		if !p.Hidden && p.CreatedBy != viewerID && p.VisibleTo(viewerID) {
			out = append(out, *p)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out[:min(len(out), limit)], nil
}

type memVotes struct {
	votes []model.Vote
}

func (m *memVotes) Create(ctx context.Context, tx *sqlx.Tx, v *model.Vote) (bool, error) {
	for _, existing := range m.votes {
		if existing.VoteBy == v.VoteBy && existing.PollID == v.PollID {
			return false, nil
		}
	}
	v.ID = int64(len(m.votes) + 1)
	m.votes = append(m.votes, *v)
	return true, nil
}

type memReports struct{ reports []model.Report }

func (m *memReports) Create(ctx context.Context, tx *sqlx.Tx, r *model.Report) error {
	r.ID = int64(len(m.reports) + 1)
	m.reports = append(m.reports, *r)
	return nil
}

type memBlocks struct{ blocks []model.Block }

func (m *memBlocks) Create(ctx context.Context, b *model.Block) error {
	b.ID = int64(len(m.blocks) + 1)
	m.blocks = append(m.blocks, *b)
	return nil
}

type memPhotos struct {
	photos    map[int64]*model.Photo
	createErr error
}

func newMemPhotos() *memPhotos { return &memPhotos{photos: map[int64]*model.Photo{}} }

func (m *memPhotos) Create(ctx context.Context, p *model.Photo) error {
	if m.createErr != nil {
		return m.createErr
	}
	p.ID = int64(len(m.photos) + 1)
	c := *p
	m.photos[p.ID] = &c
	return nil
}

func (m *memPhotos) MarkPublic(ctx context.Context, tx *sqlx.Tx, ids []int64) error {
	for _, id := range ids {
		if p, ok := m.photos[id]; ok {
			p.Public = true
		}
	}
	return nil
}

func (m *memPhotos) ListPrivateInPublicPolls(ctx context.Context, afterID int64, limit int) ([]model.Photo, error) {
	return nil, nil
}

type memInstallations struct {
	installs []model.Installation
}

func (m *memInstallations) Upsert(ctx context.Context, inst *model.Installation) error {
	for i := range m.installs {
		if m.installs[i].InstallationID == inst.InstallationID {
			inst.ID = m.installs[i].ID
			inst.Badge = m.installs[i].Badge
			m.installs[i] = *inst
			return nil
		}
	}
	inst.ID = int64(len(m.installs) + 1)
	m.installs = append(m.installs, *inst)
	return nil
}

func (m *memInstallations) Delete(ctx context.Context, installationID string) error {
	for i := range m.installs {
		if m.installs[i].InstallationID == installationID {
			m.installs = append(m.installs[:i], m.installs[i+1:]...)
			return nil
		}
	}
	return model.ErrInstallationNotFound
}

func (m *memInstallations) FindByUsers(ctx context.Context, userIDs []int64, minVersion int) ([]model.Installation, error) {
	var out []model.Installation
	for _, inst := range m.installs {
		if inst.UserID == nil || inst.PushVersion < minVersion {
			continue
		}
		for _, id := range userIDs {
			if *inst.UserID == id {
				out = append(out, inst)
			}
		}
	}
	return out, nil
}

func (m *memInstallations) FindByChannel(ctx context.Context, channel string, minVersion int) ([]model.Installation, error) {
	var out []model.Installation
	for _, inst := range m.installs {
		for _, c := range inst.Channels {
			if c == channel && inst.PushVersion >= minVersion {
				out = append(out, inst)
			}
		}
	}
	return out, nil
}

func (m *memInstallations) IncrementBadges(ctx context.Context, ids []int64) (map[int64]int, error) {
	out := map[int64]int{}
	for i := range m.installs {
		for _, id := range ids {
			if m.installs[i].ID == id {
				m.installs[i].Badge++
				out[id] = m.installs[i].Badge
			}
		}
	}
	return out, nil
}

func (m *memInstallations) ListLocations(ctx context.Context, limit int) ([]model.InstallationLocation, error) {
	var out []model.InstallationLocation
	for _, inst := range m.installs {
		if inst.Latitude != nil && inst.Longitude != nil {
			out = append(out, model.InstallationLocation{Latitude: *inst.Latitude, Longitude: *inst.Longitude})
		}
	}
	return out[:min(len(out), limit)], nil
}

// =============================================================================
// COLLABORATORS
// =============================================================================

type recordingNotifier struct {
	sent []push.Notification
	err  error
}

func (r *recordingNotifier) Dispatch(ctx context.Context, n push.Notification) error {
	r.sent = append(r.sent, n)
	return r.err
}

type recordingSender struct {
	deliveries []push.Delivery
	msgs       []push.Message
}

func (r *recordingSender) Send(ctx context.Context, d []push.Delivery, msg push.Message) error {
	r.deliveries = append(r.deliveries, d...)
	r.msgs = append(r.msgs, msg)
	return nil
}

type recordingMailer struct {
	to    []string
	links []string
	err   error
}

func (r *recordingMailer) SendVerification(ctx context.Context, to, link string) error {
	r.to = append(r.to, to)
	r.links = append(r.links, link)
	return r.err
}

var errStoreDown = errors.New("connection refused")

func strPtr(s string) *string { return &s }
func intPtr(i int) *int       { return &i }
