package queue

import (
	"encoding/json"
	"fmt"
	"time"

	"pollpick/internal/push"
)

const (
	EventPush = "push"
)

const (
	StreamPush = "stream:push"
)

const (
	ConsumerGroupPush = "push_workers"
)

// Event is the envelope stored in a stream entry.
type Event struct {
	Type         string             `json:"type"`
	Timestamp    int64              `json:"timestamp"`
	Notification *push.Notification `json:"notification,omitempty"`
}

// NewPushEvent wraps a notification for asynchronous dispatch.
func NewPushEvent(n push.Notification) Event {
	return Event{
		Type:         EventPush,
		Timestamp:    time.Now().Unix(),
		Notification: &n,
	}
}

// ToMap converts the event to XADD field values; the body is JSON in "data".
func (e Event) ToMap() (map[string]interface{}, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshal event: %w", err)
	}
	return map[string]interface{}{
		"type": e.Type,
		"data": string(data),
	}, nil
}

func ParseEvent(values map[string]interface{}) (Event, error) {
	data, ok := values["data"].(string)
	if !ok {
		return Event{}, fmt.Errorf("missing or invalid 'data' field")
	}

	var event Event
	if err := json.Unmarshal([]byte(data), &event); err != nil {
		return Event{}, fmt.Errorf("unmarshal event: %w", err)
	}
	return event, nil
}
