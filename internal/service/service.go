package service

import (
	"context"
	"errors"

	"pollpick/internal/model"
	"pollpick/internal/push"
	"pollpick/internal/repository"
)

// Notifier delivers or queues a push. *push.Dispatcher sends inline,
// *queue.RedisPublisher hands off to the worker pool.
type Notifier interface {
	Dispatch(ctx context.Context, n push.Notification) error
}

// storeErr passes categorized domain errors through and wraps anything else
// as a persistence failure.
func storeErr(op string, err error) error {
	var domain *model.Error
	if errors.As(err, &domain) || errors.Is(err, model.ErrPersistence) {
		return err
	}
	return model.Persistence(op, err)
}

// requireActor loads the caller and rejects anonymous accounts.
func requireActor(ctx context.Context, users repository.UserRepository, id int64) (*model.User, error) {
	if id == 0 {
		return nil, model.ErrUnauthenticated
	}
	u, err := users.GetByID(ctx, id)
	if err != nil {
		if errors.Is(err, model.ErrUserNotFound) {
			return nil, model.ErrUnauthenticated
		}
		return nil, storeErr("load requester", err)
	}
	if u.IsAnonymous() {
		return nil, model.ErrAnonymousRequester
	}
	return u, nil
}

// pushName is how a user is named in push text.
func pushName(u *model.User) string {
	if u.DisplayName != nil && *u.DisplayName != "" {
		return *u.DisplayName
	}
	return u.Username
}
