package service

import (
	"context"
	"log/slog"

	"github.com/jmoiron/sqlx"

	"pollpick/internal/database"
	"pollpick/internal/logger"
	"pollpick/internal/model"
	"pollpick/internal/push"
	"pollpick/internal/repository"
)

// FollowService maintains follow edges, the mutual flag and the follow counters.
type FollowService struct {
	followRepo repository.FollowRepository
	userRepo   repository.UserRepository
	tx         database.TxRunner
	notifier   Notifier
	log        *slog.Logger
}

func NewFollowService(
	followRepo repository.FollowRepository,
	userRepo repository.UserRepository,
	tx database.TxRunner,
	notifier Notifier,
) *FollowService {
	return &FollowService{
		followRepo: followRepo,
		userRepo:   userRepo,
		tx:         tx,
		notifier:   notifier,
		log:        logger.With("follow_service"),
	}
}

func validateTarget(requesterID, targetID int64) error {
	if targetID == 0 {
		return model.ErrTargetUserRequired
	}
	if targetID == requesterID {
		return model.ErrCannotFollowSelf
	}
	return nil
}

// Follow creates the edge requester -> target. If target already follows
// requester both edges become mutual and both users gain a friend.
func (s *FollowService) Follow(ctx context.Context, requesterID, targetID int64) (*model.FollowResult, error) {
	if requesterID == 0 {
		return nil, model.ErrUnauthenticated
	}
	if err := validateTarget(requesterID, targetID); err != nil {
		return nil, err
	}
	requester, err := requireActor(ctx, s.userRepo, requesterID)
	if err != nil {
		return nil, err
	}
	target, err := s.userRepo.GetByID(ctx, targetID)
	if err != nil {
		return nil, storeErr("load target", err)
	}
	if target.IsAnonymous() {
		return nil, model.ErrAnonymousFollowee
	}

	var mutual bool
	err = s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.userRepo.LockPair(ctx, tx, requesterID, targetID); err != nil {
			return err
		}
		reverse, err := s.followRepo.GetForUpdate(ctx, tx, targetID, requesterID)
		if err != nil {
			return err
		}
		mutual = reverse != nil

		created, err := s.followRepo.Create(ctx, tx, &model.Follow{
			FollowerID: requesterID,
			UserID:     targetID,
			Mutual:     mutual,
		})
		if err != nil {
			return err
		}
		if !created {
			return model.ErrAlreadyFollowing
		}

		friends := 0
		if mutual {
			friends = 1
			if err := s.followRepo.SetMutual(ctx, tx, targetID, requesterID, true); err != nil {
				return err
			}
		}
		if err := s.userRepo.AdjustCounters(ctx, tx, requesterID, model.CounterDelta{Following: 1, Friends: friends}); err != nil {
			return err
		}
		return s.userRepo.AdjustCounters(ctx, tx, targetID, model.CounterDelta{Followers: 1, Friends: friends})
	})
	if err != nil {
		return nil, storeErr("follow user", err)
	}

	result, err := s.reload(ctx, requesterID, targetID)
	if err != nil {
		return nil, err
	}

	s.notify(ctx, push.FollowNotification(targetID, requesterID, pushName(requester), mutual))
	return result, nil
}

// Unfollow removes the edge requester -> target, undoing exactly what Follow did.
func (s *FollowService) Unfollow(ctx context.Context, requesterID, targetID int64) (*model.FollowResult, error) {
	if requesterID == 0 {
		return nil, model.ErrUnauthenticated
	}
	if err := validateTarget(requesterID, targetID); err != nil {
		return nil, err
	}
	if _, err := s.userRepo.GetByID(ctx, targetID); err != nil {
		return nil, storeErr("load target", err)
	}

	err := s.tx.WithTx(ctx, func(tx *sqlx.Tx) error {
		if err := s.userRepo.LockPair(ctx, tx, requesterID, targetID); err != nil {
			return err
		}
		edge, err := s.followRepo.GetForUpdate(ctx, tx, requesterID, targetID)
		if err != nil {
			return err
		}
		if edge == nil {
			return model.ErrNotFollowing
		}
		reverse, err := s.followRepo.GetForUpdate(ctx, tx, targetID, requesterID)
		if err != nil {
			return err
		}

		friends := 0
		if reverse != nil {
			if reverse.Mutual || edge.Mutual {
				friends = -1
			}
			if err := s.followRepo.SetMutual(ctx, tx, targetID, requesterID, false); err != nil {
				return err
			}
		}
		if err := s.userRepo.AdjustCounters(ctx, tx, requesterID, model.CounterDelta{Following: -1, Friends: friends}); err != nil {
			return err
		}
		if err := s.userRepo.AdjustCounters(ctx, tx, targetID, model.CounterDelta{Followers: -1, Friends: friends}); err != nil {
			return err
		}
		return s.followRepo.Delete(ctx, tx, edge.ID)
	})
	if err != nil {
		return nil, storeErr("unfollow user", err)
	}

	return s.reload(ctx, requesterID, targetID)
}

func (s *FollowService) IsFollowing(ctx context.Context, requesterID, targetID int64) (bool, error) {
	if requesterID == 0 {
		return false, model.ErrUnauthenticated
	}
	if err := validateTarget(requesterID, targetID); err != nil {
		return false, err
	}
	if _, err := s.userRepo.GetByID(ctx, targetID); err != nil {
		return false, storeErr("load target", err)
	}
	ok, err := s.followRepo.Exists(ctx, requesterID, targetID)
	if err != nil {
		return false, storeErr("check follow", err)
	}
	return ok, nil
}

func (s *FollowService) reload(ctx context.Context, requesterID, targetID int64) (*model.FollowResult, error) {
	user, err := s.userRepo.GetByID(ctx, requesterID)
	if err != nil {
		return nil, storeErr("reload requester", err)
	}
	target, err := s.userRepo.GetByID(ctx, targetID)
	if err != nil {
		return nil, storeErr("reload target", err)
	}
	return &model.FollowResult{User: user, Target: target.Public()}, nil
}

func (s *FollowService) notify(ctx context.Context, n push.Notification) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Dispatch(ctx, n); err != nil {
		s.log.Warn("follow push failed", "body_key", n.Message.BodyLocKey, "error", err)
	}
}
