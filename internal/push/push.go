// Package push fans localized notifications out to registered installations.
package push

import (
	"strconv"
	"strings"

	"pollpick/internal/model"
)

// Localization keys understood by the mobile clients.
const (
	KeyNewPoll            = "P001"
	KeyPollNeedsHelp      = "P002"
	KeyPollNeedsHelpQuote = "P003"
	KeyNewFollower        = "P004"
	KeyFollowingYou       = "P005"
	KeyNewFriend          = "P006"
	KeyBecameFriends      = "P007"
	KeyNewReport          = "P008"
	KeyPollReported       = "P009"
)

// fallbacks render a key for senders that cannot localize on device.
// {0}, {1} are replaced by the positional loc args.
var fallbacks = map[string]string{
	KeyNewPoll:            "New Poll",
	KeyPollNeedsHelp:      "{0} needs help",
	KeyPollNeedsHelpQuote: `{0} needs help: "{1}"`,
	KeyNewFollower:        "New Follower",
	KeyFollowingYou:       "{0} is now following you",
	KeyNewFriend:          "New Friend",
	KeyBecameFriends:      "Congratulations! You and {0} became friends.",
	KeyNewReport:          "New Poll Report",
	KeyPollReported:       "A poll was reported",
}

// Render returns the English text for key with args substituted.
// Unknown keys render as the key itself.
func Render(key string, args []string) string {
	tmpl, ok := fallbacks[key]
	if !ok {
		return key
	}
	if len(args) == 0 {
		return tmpl
	}
	pairs := make([]string, 0, len(args)*2)
	for i, a := range args {
		pairs = append(pairs, "{"+strconv.Itoa(i)+"}", a)
	}
	return strings.NewReplacer(pairs...).Replace(tmpl)
}

// Audience selects installations either by owner or by channel.
type Audience struct {
	UserIDs        []int64 `json:"userIds,omitempty"`
	Channel        string  `json:"channel,omitempty"`
	MinPushVersion int     `json:"minPushVersion"`
}

func (a Audience) empty() bool {
	return len(a.UserIDs) == 0 && a.Channel == ""
}

// Message is the payload every selected installation receives.
type Message struct {
	TitleLocKey    string            `json:"titleLocKey"`
	BodyLocKey     string            `json:"bodyLocKey"`
	LocArgs        []string          `json:"locArgs,omitempty"`
	IncrementBadge bool              `json:"incrementBadge"`
	Data           map[string]string `json:"data,omitempty"`
}

func (m Message) Title() string { return Render(m.TitleLocKey, nil) }
func (m Message) Body() string  { return Render(m.BodyLocKey, m.LocArgs) }

type Notification struct {
	Audience Audience `json:"audience"`
	Message  Message  `json:"message"`
}

// FollowNotification tells targetID that requester followed them.
// A mutual follow is announced as a new friendship instead.
func FollowNotification(targetID, requesterID int64, requesterName string, mutual bool) Notification {
	title, body := KeyNewFollower, KeyFollowingYou
	if mutual {
		title, body = KeyNewFriend, KeyBecameFriends
	}
	return Notification{
		Audience: Audience{UserIDs: []int64{targetID}, MinPushVersion: model.PushVersionFollow},
		Message: Message{
			TitleLocKey:    title,
			BodyLocKey:     body,
			LocArgs:        []string{requesterName},
			IncrementBadge: true,
			Data:           map[string]string{"userId": strconv.FormatInt(requesterID, 10)},
		},
	}
}

// PollNotification asks recipients to vote on a freshly posted poll.
func PollNotification(recipients []int64, pollID int64, creatorName string, caption *string) Notification {
	body, args := KeyPollNeedsHelp, []string{creatorName}
	if caption != nil && *caption != "" {
		body, args = KeyPollNeedsHelpQuote, []string{creatorName, *caption}
	}
	return Notification{
		Audience: Audience{UserIDs: recipients, MinPushVersion: model.PushVersionPoll},
		Message: Message{
			TitleLocKey:    KeyNewPoll,
			BodyLocKey:     body,
			LocArgs:        args,
			IncrementBadge: true,
			Data:           map[string]string{"poll": strconv.FormatInt(pollID, 10)},
		},
	}
}

// ReportNotification alerts moderators subscribed to channel. Every
// subscribed installation is reached regardless of its push version.
func ReportNotification(channel string, pollID int64) Notification {
	return Notification{
		Audience: Audience{Channel: channel},
		Message: Message{
			TitleLocKey:    KeyNewReport,
			BodyLocKey:     KeyPollReported,
			IncrementBadge: true,
			Data:           map[string]string{"pollId": strconv.FormatInt(pollID, 10)},
		},
	}
}
