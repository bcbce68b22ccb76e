package service

import (
	"context"
	"log/slog"
	"strings"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"pollpick/internal/database"
	"pollpick/internal/logger"
	"pollpick/internal/model"
	"pollpick/internal/push"
	"pollpick/internal/repository"
)

// PollService creates polls and keeps their vote tallies.
type PollService struct {
	pollRepo   repository.PollRepository
	voteRepo   repository.VoteRepository
	reportRepo repository.ReportRepository
	photoRepo  repository.PhotoRepository
	followRepo repository.FollowRepository
	userRepo   repository.UserRepository
	tx         database.TxRunner
	notifier   Notifier
	log        *slog.Logger
}

func NewPollService(
	pollRepo repository.PollRepository,
	voteRepo repository.VoteRepository,
	reportRepo repository.ReportRepository,
	photoRepo repository.PhotoRepository,
	followRepo repository.FollowRepository,
	userRepo repository.UserRepository,
	tx database.TxRunner,
	notifier Notifier,
) *PollService {
	return &PollService{
		pollRepo:   pollRepo,
		voteRepo:   voteRepo,
		reportRepo: reportRepo,
		photoRepo:  photoRepo,
		followRepo: followRepo,
		userRepo:   userRepo,
		tx:         tx,
		notifier:   notifier,
		log:        logger.With("poll_service"),
	}
}

// Post creates a poll from two uploaded photos. A non-empty To list makes
// the poll private to the creator and those users.
func (s *PollService) Post(ctx context.Context, requesterID int64, req *model.PostPollRequest) (*model.Poll, error) {
	creator, err := requireActor(ctx, s.userRepo, requesterID)
	if err != nil {
		return nil, err
	}
	if !creator.EmailVerified && creator.FacebookID == nil {
		return nil, model.ErrUnverifiedAccount
	}
	if req.LeftID == 0 {
		return nil, model.ErrLeftPhotoRequired
	}
	if req.RightID == 0 {
		return nil, model.ErrRightPhotoRequired
	}

	var caption *string
	if req.Caption != nil {
		c := strings.TrimSpace(*req.Caption)
		if len([]rune(c)) > model.MaxCaptionLength {
			return nil, model.InvalidArgument("caption must be at most %d characters", model.MaxCaptionLength)
		}
		if c != "" {
			caption = &c
		}
	}

	to := uniqueIDs(req.To, 0)
	poll := &model.Poll{
		CreatedBy:    requesterID,
		LeftPhotoID:  req.LeftID,
		RightPhotoID: req.RightID,
		Caption:      caption,
		Version:      model.PollVersion,
	}
	if len(to) > 0 {
		poll.UserIDs = pq.Int64Array(to)
	}

	err = s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.pollRepo.Create(ctx, tx, poll); err != nil {
			return err
		}
		return s.photoRepo.MarkPublic(ctx, tx, []int64{req.LeftID, req.RightID})
	})
	if err != nil {
		return nil, storeErr("post poll", err)
	}

	recipients := to
	if poll.IsPublic() {
		followers, err := s.followRepo.GetFollowerIDs(ctx, requesterID)
		if err != nil {
			s.log.Warn("follower lookup failed, notifying direct recipients only", "poll_id", poll.ID, "error", err)
		}
		recipients = append(recipients, followers...)
	}
	recipients = uniqueIDs(recipients, requesterID)
	if len(recipients) > 0 {
		s.notify(ctx, push.PollNotification(recipients, poll.ID, pushName(creator), poll.Caption))
	}

	return poll, nil
}

// Vote records the requester's answer and returns the poll with its new tally.
func (s *PollService) Vote(ctx context.Context, requesterID int64, req *model.VotePollRequest) (*model.Poll, error) {
	if requesterID == 0 {
		return nil, model.ErrUnauthenticated
	}
	if req.PollID == 0 {
		return nil, model.ErrPollIDRequired
	}
	if req.Vote == nil {
		return nil, model.ErrMissingVote
	}
	vote := *req.Vote
	if vote < 0 || vote > 2 {
		return nil, model.ErrInvalidVote
	}

	if _, err := s.visiblePoll(ctx, requesterID, req.PollID); err != nil {
		return nil, err
	}

	var updated *model.Poll
	err := s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		created, err := s.voteRepo.Create(ctx, tx, &model.Vote{
			VoteBy:  requesterID,
			PollID:  req.PollID,
			Vote:    vote,
			Version: model.VoteVersion,
		})
		if err != nil {
			return err
		}
		if !created {
			return model.ErrAlreadyVoted
		}
		updated, err = s.pollRepo.ApplyVote(ctx, tx, req.PollID, vote)
		return err
	})
	if err != nil {
		return nil, storeErr("vote poll", err)
	}
	return updated, nil
}

// Report stores a report and hides the poll from feeds, then alerts moderators.
func (s *PollService) Report(ctx context.Context, requesterID int64, req *model.ReportPollRequest) error {
	if requesterID == 0 {
		return model.ErrUnauthenticated
	}
	if req.PollID == 0 {
		return model.ErrPollIDRequired
	}
	if _, err := s.visiblePoll(ctx, requesterID, req.PollID); err != nil {
		return err
	}

	err := s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.reportRepo.Create(ctx, tx, &model.Report{
			UserID:  requesterID,
			PollID:  req.PollID,
			Comment: req.Comment,
		}); err != nil {
			return err
		}
		return s.pollRepo.SetHidden(ctx, tx, req.PollID)
	})
	if err != nil {
		return storeErr("report poll", err)
	}

	s.notify(ctx, push.ReportNotification(model.ChannelReport, req.PollID))
	return nil
}

func (s *PollService) Get(ctx context.Context, requesterID, pollID int64) (*model.Poll, error) {
	if requesterID == 0 {
		return nil, model.ErrUnauthenticated
	}
	if pollID == 0 {
		return nil, model.ErrPollIDRequired
	}
	return s.visiblePoll(ctx, requesterID, pollID)
}

// Feed lists polls waiting for the requester's vote, newest first.
func (s *PollService) Feed(ctx context.Context, requesterID int64, limit int) ([]model.Poll, error) {
	if requesterID == 0 {
		return nil, model.ErrUnauthenticated
	}
	if limit <= 0 {
		limit = model.DefaultFeedLimit
	}
	if limit > model.MaxFeedLimit {
		limit = model.MaxFeedLimit
	}
	polls, err := s.pollRepo.Feed(ctx, requesterID, limit)
	if err != nil {
		return nil, storeErr("poll feed", err)
	}
	if polls == nil {
		polls = []model.Poll{}
	}
	return polls, nil
}

// visiblePoll hides polls the requester may not read behind ErrPollNotFound.
func (s *PollService) visiblePoll(ctx context.Context, requesterID, pollID int64) (*model.Poll, error) {
	poll, err := s.pollRepo.GetByID(ctx, pollID)
	if err != nil {
		return nil, storeErr("load poll", err)
	}
	if !poll.VisibleTo(requesterID) {
		return nil, model.ErrPollNotFound
	}
	return poll, nil
}

func (s *PollService) notify(ctx context.Context, n push.Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Dispatch(ctx, n); err != nil {
		s.log.Warn("poll push failed", "body_key", n.Message.BodyLocKey, "error", err)
	}
}

// uniqueIDs drops duplicates, zero and exclude while keeping order.
func uniqueIDs(ids []int64, exclude int64) []int64 {
	seen := make(map[int64]struct{}, len(ids))
	out := make([]int64, 0, len(ids))
	for _, id := range ids {
		if id == 0 || id == exclude {
			continue
		}
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}
