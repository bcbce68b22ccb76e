package handler

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"pollpick/internal/httputil"
	"pollpick/internal/model"
	"pollpick/internal/transport/http/middleware"
)

// FollowGraph is the follow side of the function API.
type FollowGraph interface {
	Follow(ctx context.Context, requesterID, targetID int64) (*model.FollowResult, error)
	Unfollow(ctx context.Context, requesterID, targetID int64) (*model.FollowResult, error)
	IsFollowing(ctx context.Context, requesterID, targetID int64) (bool, error)
}

type Polls interface {
	Post(ctx context.Context, requesterID int64, req *model.PostPollRequest) (*model.Poll, error)
	Vote(ctx context.Context, requesterID int64, req *model.VotePollRequest) (*model.Poll, error)
	Report(ctx context.Context, requesterID int64, req *model.ReportPollRequest) error
	Get(ctx context.Context, requesterID, pollID int64) (*model.Poll, error)
	Feed(ctx context.Context, requesterID int64, limit int) ([]model.Poll, error)
}

type Users interface {
	Search(ctx context.Context, requesterID int64, query string) ([]*model.User, error)
	Trending(ctx context.Context, requesterID int64) ([]*model.User, error)
	Block(ctx context.Context, requesterID, blockedID int64) error
	ResendVerification(ctx context.Context, requesterID int64) error
	DeviceLocations(ctx context.Context, requesterID int64) ([]model.InstallationLocation, error)
	FinishedVoting(ctx context.Context, requesterID int64) error
}

// function runs one named call. userID is 0 for anonymous callers.
type function struct {
	authRequired bool
	call         func(w http.ResponseWriter, r *http.Request, userID int64) (any, error)
}

// FunctionsHandler serves POST /functions/{name}. Every call takes a JSON
// body and answers {"result": ...}.
type FunctionsHandler struct {
	functions map[string]function
}

func NewFunctionsHandler(follows FollowGraph, polls Polls, users Users) *FunctionsHandler {
	return &FunctionsHandler{functions: map[string]function{
		"followUser": {true, func(w http.ResponseWriter, r *http.Request, userID int64) (any, error) {
			req, err := decode[model.FollowRequest](w, r)
			if err != nil {
				return nil, err
			}
			return follows.Follow(r.Context(), userID, req.UserID)
		}},
		"unfollowUser": {true, func(w http.ResponseWriter, r *http.Request, userID int64) (any, error) {
			req, err := decode[model.FollowRequest](w, r)
			if err != nil {
				return nil, err
			}
			return follows.Unfollow(r.Context(), userID, req.UserID)
		}},
		"isFollowing": {true, func(w http.ResponseWriter, r *http.Request, userID int64) (any, error) {
			req, err := decode[model.FollowRequest](w, r)
			if err != nil {
				return nil, err
			}
			return follows.IsFollowing(r.Context(), userID, req.UserID)
		}},
		"votePoll": {true, func(w http.ResponseWriter, r *http.Request, userID int64) (any, error) {
			req, err := decode[model.VotePollRequest](w, r)
			if err != nil {
				return nil, err
			}
			return polls.Vote(r.Context(), userID, req)
		}},
		"postPoll": {true, func(w http.ResponseWriter, r *http.Request, userID int64) (any, error) {
			req, err := decode[model.PostPollRequest](w, r)
			if err != nil {
				return nil, err
			}
			return polls.Post(r.Context(), userID, req)
		}},
		"reportPoll": {true, func(w http.ResponseWriter, r *http.Request, userID int64) (any, error) {
			req, err := decode[model.ReportPollRequest](w, r)
			if err != nil {
				return nil, err
			}
			return ok(polls.Report(r.Context(), userID, req))
		}},
		"getPoll": {true, func(w http.ResponseWriter, r *http.Request, userID int64) (any, error) {
			req, err := decode[model.GetPollRequest](w, r)
			if err != nil {
				return nil, err
			}
			return polls.Get(r.Context(), userID, req.PollID)
		}},
		"pollFeed": {true, func(w http.ResponseWriter, r *http.Request, userID int64) (any, error) {
			req, err := decode[model.PollFeedRequest](w, r)
			if err != nil {
				return nil, err
			}
			return polls.Feed(r.Context(), userID, req.Limit)
		}},
		"searchUsers": {false, func(w http.ResponseWriter, r *http.Request, userID int64) (any, error) {
			req, err := decode[model.SearchUsersRequest](w, r)
			if err != nil {
				return nil, err
			}
			return users.Search(r.Context(), userID, req.Query)
		}},
		"trendingUsers": {false, func(w http.ResponseWriter, r *http.Request, userID int64) (any, error) {
			return users.Trending(r.Context(), userID)
		}},
		"blockUser": {true, func(w http.ResponseWriter, r *http.Request, userID int64) (any, error) {
			req, err := decode[model.BlockUserRequest](w, r)
			if err != nil {
				return nil, err
			}
			return ok(users.Block(r.Context(), userID, req.UserID))
		}},
		"resendVerification": {true, func(w http.ResponseWriter, r *http.Request, userID int64) (any, error) {
			return ok(users.ResendVerification(r.Context(), userID))
		}},
		"deviceLocations": {true, func(w http.ResponseWriter, r *http.Request, userID int64) (any, error) {
			return users.DeviceLocations(r.Context(), userID)
		}},
		"finishedVoting": {true, func(w http.ResponseWriter, r *http.Request, userID int64) (any, error) {
			return ok(users.FinishedVoting(r.Context(), userID))
		}},
	}}
}

// Call handles POST /functions/{name}
func (h *FunctionsHandler) Call(w http.ResponseWriter, r *http.Request) {
	name := chi.URLParam(r, "name")
	fn, found := h.functions[name]
	if !found {
		httputil.WriteNotFound(w, "Unknown function "+name)
		return
	}

	userID, _ := middleware.GetUserIDFromContext(r.Context())
	if fn.authRequired && userID == 0 {
		httputil.WriteServiceError(w, r, model.ErrUnauthenticated)
		return
	}

	result, err := fn.call(w, r, userID)
	if err != nil {
		httputil.WriteServiceError(w, r, err)
		return
	}
	httputil.WriteResult(w, result)
}

// decode reads and validates the body as T, reporting failures as invalid arguments.
func decode[T any](w http.ResponseWriter, r *http.Request) (*T, error) {
	var req T
	if err := httputil.DecodeAndValidate(w, r, &req); err != nil {
		return nil, model.InvalidArgument("%s", err.Error())
	}
	return &req, nil
}

// ok turns an error-only call into a boolean result.
func ok(err error) (any, error) {
	if err != nil {
		return nil, err
	}
	return true, nil
}
