package push

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"pollpick/internal/logger"
	"pollpick/internal/model"
)

// InstallationStore is the slice of the installation repository the dispatcher reads.
type InstallationStore interface {
	FindByUsers(ctx context.Context, userIDs []int64, minPushVersion int) ([]model.Installation, error)
	FindByChannel(ctx context.Context, channel string, minPushVersion int) ([]model.Installation, error)
	IncrementBadges(ctx context.Context, ids []int64) (map[int64]int, error)
}

// Delivery is one installation paired with the badge it should display.
type Delivery struct {
	Installation model.Installation
	Badge        int
}

// Sender delivers a message to installations of a single push type.
type Sender interface {
	Send(ctx context.Context, deliveries []Delivery, msg Message) error
}

type Dispatcher struct {
	store   InstallationStore
	senders map[string]Sender
	log     *slog.Logger
}

// NewDispatcher routes installations to senders keyed by push type
// (model.PushTypeFCM, model.PushTypeExpo). Nil senders are skipped.
func NewDispatcher(store InstallationStore, senders map[string]Sender) *Dispatcher {
	active := make(map[string]Sender, len(senders))
	for pushType, s := range senders {
		if s != nil {
			active[pushType] = s
		}
	}
	return &Dispatcher{store: store, senders: active, log: logger.With("push")}
}

// Dispatch sends n to every matching installation. It returns an error
// wrapping model.ErrNotification when lookup or any sender fails.
func (d *Dispatcher) Dispatch(ctx context.Context, n Notification) error {
	if n.Audience.empty() {
		return nil
	}

	installations, err := d.find(ctx, n.Audience)
	if err != nil {
		return fmt.Errorf("%w: find installations: %w", model.ErrNotification, err)
	}
	if len(installations) == 0 {
		return nil
	}

	badges := map[int64]int{}
	if n.Message.IncrementBadge {
		ids := make([]int64, len(installations))
		for i, inst := range installations {
			ids[i] = inst.ID
		}
		badges, err = d.store.IncrementBadges(ctx, ids)
		if err != nil {
			d.log.Warn("badge increment failed", "error", err)
			badges = map[int64]int{}
		}
	}

	groups := make(map[string][]Delivery)
	for _, inst := range installations {
		badge, ok := badges[inst.ID]
		if !ok {
			badge = inst.Badge
			if n.Message.IncrementBadge {
				badge++
			}
		}
		groups[inst.PushType] = append(groups[inst.PushType], Delivery{Installation: inst, Badge: badge})
	}

	var errs []error
	for pushType, deliveries := range groups {
		sender, ok := d.senders[pushType]
		if !ok {
			d.log.Debug("no sender for push type", "push_type", pushType, "installations", len(deliveries))
			continue
		}
		if err := sender.Send(ctx, deliveries, n.Message); err != nil {
			errs = append(errs, fmt.Errorf("%s: %w", pushType, err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("%w: %w", model.ErrNotification, errors.Join(errs...))
	}

	d.log.Info("push dispatched",
		"title_key", n.Message.TitleLocKey,
		"body_key", n.Message.BodyLocKey,
		"installations", len(installations))
	return nil
}

func (d *Dispatcher) find(ctx context.Context, a Audience) ([]model.Installation, error) {
	if a.Channel != "" {
		return d.store.FindByChannel(ctx, a.Channel, a.MinPushVersion)
	}
	return d.store.FindByUsers(ctx, a.UserIDs, a.MinPushVersion)
}
