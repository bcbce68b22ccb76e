package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"

	"pollpick/internal/facebook"
	"pollpick/internal/logger"
	"pollpick/internal/mail"
	"pollpick/internal/model"
	"pollpick/internal/profile"
	"pollpick/internal/repository"
)

// FacebookProfiles resolves a user access token to a Graph profile.
type FacebookProfiles interface {
	Me(ctx context.Context, userToken string) (*facebook.Profile, error)
}

// UserService handles accounts, profiles and user lookups.
type UserService struct {
	repo          repository.UserRepository
	blockRepo     repository.BlockRepository
	instRepo      repository.InstallationRepository
	facebook      FacebookProfiles
	mailer        mail.Mailer
	publicBaseURL string
	log           *slog.Logger
}

func NewUserService(
	repo repository.UserRepository,
	blockRepo repository.BlockRepository,
	instRepo repository.InstallationRepository,
	fb FacebookProfiles,
	mailer mail.Mailer,
	publicBaseURL string,
) *UserService {
	return &UserService{
		repo:          repo,
		blockRepo:     blockRepo,
		instRepo:      instRepo,
		facebook:      fb,
		mailer:        mailer,
		publicBaseURL: strings.TrimRight(publicBaseURL, "/"),
		log:           logger.With("user_service"),
	}
}

// Register creates a password account. An email, when given, starts unverified
// and a verification link is mailed.
func (s *UserService) Register(ctx context.Context, req *model.RegisterRequest) (*model.User, error) {
	username := strings.TrimSpace(req.Username)
	if username == "" {
		return nil, model.InvalidArgument("username is required")
	}
	if strings.TrimSpace(req.Password) == "" {
		return nil, model.InvalidArgument("password is required")
	}

	exists, err := s.repo.ExistsByUsername(ctx, username)
	if err != nil {
		return nil, storeErr("check username", err)
	}
	if exists {
		return nil, model.ErrUsernameExists
	}

	hashed, err := bcrypt.GenerateFromPassword([]byte(req.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, fmt.Errorf("failed to hash password: %w", err)
	}
	hash := string(hashed)

	user := &model.User{
		Username:       username,
		PasswordHashed: &hash,
		Name:           trimmedOrNil(req.Name),
	}
	if email := trimmedOrNil(req.Email); email != nil {
		user.Email = email
		token := newVerifyToken()
		user.EmailVerifyToken = &token
	}

	if err := s.repo.Create(ctx, user); err != nil {
		return nil, storeErr("create user", err)
	}
	s.sendVerification(ctx, user)
	return user, nil
}

// Login checks username and password. Accounts without a password never match.
func (s *UserService) Login(ctx context.Context, req *model.LoginRequest) (*model.User, error) {
	user, err := s.repo.GetByUsername(ctx, req.Username)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return nil, model.ErrInvalidCredentials
		}
		return nil, storeErr("load user", err)
	}
	if !user.HasPassword() {
		return nil, model.ErrInvalidCredentials
	}
	if err := bcrypt.CompareHashAndPassword([]byte(*user.PasswordHashed), []byte(req.Password)); err != nil {
		return nil, model.ErrInvalidCredentials
	}
	return user, nil
}

// CreateAnonymous signs up a throwaway account. It is never searchable.
func (s *UserService) CreateAnonymous(ctx context.Context) (*model.User, error) {
	id := uuid.NewString()
	user := &model.User{
		Username: "anon_" + strings.ReplaceAll(id, "-", "")[:16],
		AuthData: model.AuthData{Anonymous: &model.AnonymousAuth{ID: id}},
	}
	if err := s.repo.Create(ctx, user); err != nil {
		return nil, storeErr("create anonymous user", err)
	}
	return user, nil
}

// LoginWithFacebook finds or creates the user linked to the token's Facebook
// account and fills profile fields that are still empty.
func (s *UserService) LoginWithFacebook(ctx context.Context, accessToken string) (*model.User, error) {
	if s.facebook == nil {
		return nil, model.ErrFacebookTokenInvalid
	}
	fb, err := s.facebook.Me(ctx, accessToken)
	if err != nil {
		if errors.Is(err, facebook.ErrInvalidToken) {
			return nil, model.ErrFacebookTokenInvalid
		}
		return nil, fmt.Errorf("facebook lookup: %w", err)
	}

	user, err := s.repo.GetByFacebookID(ctx, fb.ID)
	switch {
	case errors.Is(err, model.ErrUserNotFound):
		user = &model.User{Username: "fb_" + fb.ID}
		user.AuthData.Facebook = &model.FacebookAuth{ID: fb.ID, AccessToken: accessToken}
		ApplyFacebookProfile(user, fb)
		if err := s.repo.Create(ctx, user); err != nil {
			return nil, storeErr("create facebook user", err)
		}
		return user, nil
	case err != nil:
		return nil, storeErr("load facebook user", err)
	}

	user.AuthData.Facebook = &model.FacebookAuth{ID: fb.ID, AccessToken: accessToken}
	ApplyFacebookProfile(user, fb)
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, storeErr("update facebook user", err)
	}
	return user, nil
}

// ApplyFacebookProfile copies name, gender and email from fb into fields
// that are empty. It reports whether anything changed.
func ApplyFacebookProfile(u *model.User, fb *facebook.Profile) bool {
	changed := false
	name := fb.FirstName
	if name == "" {
		name = fb.Name
	}
	if isBlank(u.Name) && name != "" {
		u.Name = &name
		changed = true
	}
	if isBlank(u.Gender) && fb.Gender != "" {
		gender := fb.Gender
		u.Gender = &gender
		changed = true
	}
	if isBlank(u.Email) && fb.Email != "" {
		email := fb.Email
		u.Email = &email
		// Facebook only returns confirmed addresses.
		u.EmailVerified = true
		changed = true
	}
	return changed
}

func (s *UserService) GetMe(ctx context.Context, userID int64) (*model.User, error) {
	if userID == 0 {
		return nil, model.ErrUnauthenticated
	}
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, storeErr("load user", err)
	}
	return user, nil
}

// GetProfile returns another user's public view. Viewing yourself returns everything.
func (s *UserService) GetProfile(ctx context.Context, viewerID, userID int64) (*model.User, error) {
	user, err := s.repo.GetByID(ctx, userID)
	if err != nil {
		return nil, storeErr("load user", err)
	}
	if viewerID == userID {
		return user, nil
	}
	return user.Public(), nil
}

// UpdateProfile applies a partial edit. Changing the email resets verification.
func (s *UserService) UpdateProfile(ctx context.Context, userID int64, req *model.UpdateProfileRequest) (*model.User, error) {
	user, err := s.GetMe(ctx, userID)
	if err != nil {
		return nil, err
	}

	if req.Username != nil {
		username := strings.TrimSpace(*req.Username)
		if username == "" {
			return nil, model.InvalidArgument("username cannot be empty")
		}
		if username != user.Username {
			exists, err := s.repo.ExistsByUsername(ctx, username)
			if err != nil {
				return nil, storeErr("check username", err)
			}
			if exists {
				return nil, model.ErrUsernameExists
			}
			user.Username = username
		}
	}
	if req.Name != nil {
		user.Name = trimmedOrNil(req.Name)
	}
	if req.Location != nil {
		user.Location = trimmedOrNil(req.Location)
	}
	if req.Gender != nil {
		user.Gender = trimmedOrNil(req.Gender)
	}

	emailChanged := false
	if req.Email != nil {
		email := trimmedOrNil(req.Email)
		if deref(email) != deref(user.Email) {
			user.Email = email
			user.EmailVerified = false
			user.EmailVerifyToken = nil
			if email != nil {
				token := newVerifyToken()
				user.EmailVerifyToken = &token
			}
			emailChanged = true
		}
	}

	if err := s.repo.Update(ctx, user); err != nil {
		return nil, storeErr("update user", err)
	}
	if emailChanged {
		s.sendVerification(ctx, user)
	}
	return user, nil
}

// Search matches the folded query against search keys, most followed first.
func (s *UserService) Search(ctx context.Context, requesterID int64, query string) ([]*model.User, error) {
	folded := profile.Fold(strings.TrimSpace(query))
	if folded == "" {
		return nil, model.InvalidArgument("query is required")
	}
	users, err := s.repo.Search(ctx, folded, requesterID, model.UserListLimit)
	if err != nil {
		return nil, storeErr("search users", err)
	}
	return publicUsers(users), nil
}

// Trending lists searchable users by follower count.
func (s *UserService) Trending(ctx context.Context, requesterID int64) ([]*model.User, error) {
	users, err := s.repo.Trending(ctx, requesterID, model.UserListLimit)
	if err != nil {
		return nil, storeErr("trending users", err)
	}
	return publicUsers(users), nil
}

// Block records the block as given; blockedID is not looked up.
func (s *UserService) Block(ctx context.Context, requesterID, blockedID int64) error {
	if requesterID == 0 {
		return model.ErrUnauthenticated
	}
	if blockedID == 0 {
		return model.ErrTargetUserRequired
	}
	if err := s.blockRepo.Create(ctx, &model.Block{UserID: requesterID, BlockedID: blockedID}); err != nil {
		return storeErr("block user", err)
	}
	return nil
}

// ResendVerification issues a fresh token for the caller's email and mails it.
func (s *UserService) ResendVerification(ctx context.Context, requesterID int64) error {
	user, err := s.GetMe(ctx, requesterID)
	if err != nil {
		return err
	}
	if isBlank(user.Email) {
		return model.ErrNoEmail
	}

	token := newVerifyToken()
	user.EmailVerifyToken = &token
	if err := s.repo.Update(ctx, user); err != nil {
		return storeErr("store verify token", err)
	}
	if err := s.mailer.SendVerification(ctx, *user.Email, s.verifyLink(token)); err != nil {
		return fmt.Errorf("send verification: %w", err)
	}
	return nil
}

// VerifyEmail consumes a verification token.
func (s *UserService) VerifyEmail(ctx context.Context, token string) (*model.User, error) {
	if strings.TrimSpace(token) == "" {
		return nil, model.ErrVerifyTokenInvalid
	}
	user, err := s.repo.GetByVerifyToken(ctx, token)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return nil, model.ErrVerifyTokenInvalid
		}
		return nil, storeErr("load user by token", err)
	}
	user.EmailVerified = true
	user.EmailVerifyToken = nil
	if err := s.repo.Update(ctx, user); err != nil {
		return nil, storeErr("verify email", err)
	}
	return user, nil
}

func (s *UserService) FinishedVoting(ctx context.Context, requesterID int64) error {
	user, err := s.GetMe(ctx, requesterID)
	if err != nil {
		return err
	}
	if user.FinishedVoting {
		return nil
	}
	user.FinishedVoting = true
	if err := s.repo.Update(ctx, user); err != nil {
		return storeErr("finish voting", err)
	}
	return nil
}

// DeviceLocations lists installation coordinates for admins.
func (s *UserService) DeviceLocations(ctx context.Context, requesterID int64) ([]model.InstallationLocation, error) {
	user, err := s.GetMe(ctx, requesterID)
	if err != nil {
		return nil, err
	}
	if !user.Admin {
		return nil, model.ErrNotAdmin
	}
	locations, err := s.instRepo.ListLocations(ctx, model.DeviceLocationsLimit)
	if err != nil {
		return nil, storeErr("list device locations", err)
	}
	if locations == nil {
		locations = []model.InstallationLocation{}
	}
	return locations, nil
}

func (s *UserService) sendVerification(ctx context.Context, u *model.User) {
	if s.mailer == nil || isBlank(u.Email) || u.EmailVerifyToken == nil {
		return
	}
	if err := s.mailer.SendVerification(ctx, *u.Email, s.verifyLink(*u.EmailVerifyToken)); err != nil {
		s.log.Warn("verification mail failed", "user_id", u.ID, "error", err)
	}
}

func (s *UserService) verifyLink(token string) string {
	return s.publicBaseURL + "/auth/verify-email?token=" + url.QueryEscape(token)
}

func newVerifyToken() string {
	return strings.ReplaceAll(uuid.NewString(), "-", "")
}

func publicUsers(users []model.User) []*model.User {
	out := make([]*model.User, len(users))
	for i := range users {
		out[i] = users[i].Public()
	}
	return out
}

func trimmedOrNil(s *string) *string {
	if s == nil {
		return nil
	}
	t := strings.TrimSpace(*s)
	if t == "" {
		return nil
	}
	return &t
}

func isBlank(s *string) bool {
	return s == nil || strings.TrimSpace(*s) == ""
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}
