package model

import (
	"time"

	"github.com/lib/pq"
)

const (
	PollVersion = 2
	VoteVersion = 3

	MaxCaptionLength = 500
	DefaultFeedLimit = 20
	MaxFeedLimit     = 100
)

// Poll asks voters to pick between two photos. A nil or empty UserIDs list
// makes the poll public; otherwise only the creator and the listed users see it.
type Poll struct {
	ID             int64         `db:"id" json:"id"`
	CreatedBy      int64         `db:"created_by" json:"createdBy"`
	LeftPhotoID    int64         `db:"left_photo_id" json:"leftId"`
	RightPhotoID   int64         `db:"right_photo_id" json:"rightId"`
	Caption        *string       `db:"caption" json:"caption,omitempty"`
	UserIDs        pq.Int64Array `db:"user_ids" json:"userIds,omitempty"`
	Hidden         bool          `db:"hidden" json:"hidden"`
	VoteTotalCount int           `db:"vote_total_count" json:"voteTotalCount"`
	Vote1Count     int           `db:"vote1_count" json:"vote1Count"`
	Vote2Count     int           `db:"vote2_count" json:"vote2Count"`
	Version        int           `db:"version" json:"version"`
	CreatedAt      time.Time     `db:"created_at" json:"createdAt"`
	UpdatedAt      time.Time     `db:"updated_at" json:"updatedAt"`
}

// IsPublic reports whether every user may see the poll.
func (p *Poll) IsPublic() bool {
	return len(p.UserIDs) == 0
}

// VisibleTo reports whether userID may read the poll.
func (p *Poll) VisibleTo(userID int64) bool {
	if p.IsPublic() || p.CreatedBy == userID {
		return true
	}
	for _, id := range p.UserIDs {
		if id == userID {
			return true
		}
	}
	return false
}

// Vote is one user's answer to a poll: 0 skips, 1 picks left, 2 picks right.
// It is readable by the voter and the poll's creator.
type Vote struct {
	ID        int64     `db:"id" json:"id"`
	VoteBy    int64     `db:"vote_by" json:"voteBy"`
	PollID    int64     `db:"poll_id" json:"pollId"`
	Vote      int       `db:"vote" json:"vote"`
	Version   int       `db:"version" json:"version"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Report flags a poll. Only the reporter can read it back.
type Report struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user"`
	PollID    int64     `db:"poll_id" json:"poll"`
	Comment   *string   `db:"comment" json:"comment,omitempty"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// Block records that UserID blocked BlockedID. BlockedID is not checked.
type Block struct {
	ID        int64     `db:"id" json:"id"`
	UserID    int64     `db:"user_id" json:"user"`
	BlockedID int64     `db:"blocked_id" json:"blocked"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

type PostPollRequest struct {
	LeftID  int64   `json:"leftId" validate:"required"`
	RightID int64   `json:"rightId" validate:"required"`
	To      []int64 `json:"to" validate:"omitempty,dive,gt=0"`
	Caption *string `json:"caption" validate:"omitempty,max=500"`
}

type VotePollRequest struct {
	PollID int64 `json:"pollId" validate:"required"`
	Vote   *int  `json:"vote" validate:"required,min=0,max=2"`
}

type ReportPollRequest struct {
	PollID  int64   `json:"pollId" validate:"required"`
	Comment *string `json:"comment" validate:"omitempty,max=1000"`
}

type GetPollRequest struct {
	PollID int64 `json:"pollId" validate:"required"`
}

type PollFeedRequest struct {
	Limit int `json:"limit" validate:"omitempty,min=1,max=100"`
}

var (
	ErrPollNotFound       = newError(ErrNotFound, "poll not found")
	ErrAlreadyVoted       = newError(ErrDuplicate, "you already voted on this poll")
	ErrInvalidVote        = newError(ErrInvalidArgument, "vote must be 0, 1 or 2")
	ErrMissingVote        = newError(ErrInvalidArgument, "vote is required")
	ErrPollIDRequired     = newError(ErrInvalidArgument, "pollId is required")
	ErrLeftPhotoRequired  = newError(ErrInvalidArgument, "leftId is required")
	ErrRightPhotoRequired = newError(ErrInvalidArgument, "rightId is required")
	ErrUnverifiedAccount  = newError(ErrPermissionDenied, "verify your email or link Facebook before posting")
)
