package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"pollpick/internal/logger"
	"pollpick/internal/push"
	"pollpick/internal/queue"
)

// Dispatcher delivers a notification to devices.
type Dispatcher interface {
	Dispatch(ctx context.Context, n push.Notification) error
}

// Handler processes events read from the push stream.
type Handler struct {
	dispatcher Dispatcher
	log        *slog.Logger
}

func NewHandler(dispatcher Dispatcher) *Handler {
	return &Handler{dispatcher: dispatcher, log: logger.With("worker")}
}

// HandleEvent routes an event by type. Delivery failures are returned so the
// manager can log them; the entry is acknowledged either way.
func (h *Handler) HandleEvent(ctx context.Context, event queue.Event) error {
	startTime := time.Now()

	var err error
	switch event.Type {
	case queue.EventPush:
		err = h.handlePush(ctx, event)
	default:
		return fmt.Errorf("unknown event type: %s", event.Type)
	}
	if err != nil {
		return err
	}

	h.log.Debug("event handled", "type", event.Type, "duration", time.Since(startTime))
	return nil
}

func (h *Handler) handlePush(ctx context.Context, event queue.Event) error {
	if event.Notification == nil {
		return fmt.Errorf("push event without notification")
	}
	// Stale pushes are worse than none; a queue backlog older than this is dropped.
	if age := time.Since(time.Unix(event.Timestamp, 0)); age > maxPushAge {
		h.log.Warn("dropping stale push", "age", age, "title_key", event.Notification.Message.TitleLocKey)
		return nil
	}
	return h.dispatcher.Dispatch(ctx, *event.Notification)
}

const maxPushAge = time.Hour
