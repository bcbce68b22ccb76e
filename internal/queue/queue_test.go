package queue

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"pollpick/internal/push"
)

// =============================================================================
// EVENT ENCODING
// =============================================================================

func TestPushEvent_SurvivesStreamEncoding(t *testing.T) {
	n := push.FollowNotification(7, 3, "Zoë", true)

	values, err := NewPushEvent(n).ToMap()
	if err != nil {
		t.Fatalf("ToMap: %v", err)
	}
	if values["type"] != EventPush {
		t.Errorf("type = %v", values["type"])
	}

	event, err := ParseEvent(values)
	if err != nil {
		t.Fatalf("ParseEvent: %v", err)
	}
	if event.Notification == nil {
		t.Fatal("notification missing")
	}
	got := *event.Notification
	if got.Audience.UserIDs[0] != 7 || got.Message.BodyLocKey != push.KeyBecameFriends {
		t.Errorf("notification = %+v", got)
	}
	if got.Message.Data["userId"] != "3" || got.Message.LocArgs[0] != "Zoë" {
		t.Errorf("message = %+v", got.Message)
	}
}

func TestParseEvent_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		values map[string]interface{}
	}{
		{"missing data", map[string]interface{}{"type": EventPush}},
		{"data not a string", map[string]interface{}{"data": 12}},
		{"broken json", map[string]interface{}{"data": "{"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := ParseEvent(tt.values); err == nil {
				t.Error("expected error")
			}
		})
	}
}

// =============================================================================
// REDIS ROUND TRIP
// =============================================================================

func setupTestRedis(t *testing.T) *redis.Client {
	redisURL := os.Getenv("TEST_REDIS_URL")
	if redisURL == "" {
		redisURL = "redis://localhost:6379"
	}
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		t.Fatalf("Failed to parse Redis URL: %v", err)
	}
	opts.DB = 2

	client := redis.NewClient(opts)
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available, skipping test: %v", err)
	}
	client.FlushDB(ctx)
	t.Cleanup(func() {
		client.FlushDB(context.Background())
		client.Close()
	})
	return client
}

func TestPublisherConsumer_RoundTrip(t *testing.T) {
	client := setupTestRedis(t)
	ctx := context.Background()
	pub, con := NewPublisher(client), NewConsumer(client)

	if err := con.EnsureGroup(ctx, StreamPush, ConsumerGroupPush); err != nil {
		t.Fatalf("EnsureGroup: %v", err)
	}
	// second call hits BUSYGROUP
	if err := con.EnsureGroup(ctx, StreamPush, ConsumerGroupPush); err != nil {
		t.Fatalf("EnsureGroup again: %v", err)
	}

	caption := "red or blue?"
	if err := pub.Dispatch(ctx, push.PollNotification([]int64{4, 5}, 11, "Ann", &caption)); err != nil {
		t.Fatalf("Dispatch: %v", err)
	}
	// malformed entries are acked and dropped by the reader
	client.XAdd(ctx, &redis.XAddArgs{Stream: StreamPush, Values: map[string]interface{}{"type": "junk"}})

	msgs, err := con.Read(ctx, StreamPush, ConsumerGroupPush, "c1", 10, time.Second)
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if len(msgs) != 1 {
		t.Fatalf("got %d messages, want 1", len(msgs))
	}
	n := msgs[0].Event.Notification
	if n == nil || n.Message.BodyLocKey != push.KeyPollNeedsHelpQuote || len(n.Audience.UserIDs) != 2 {
		t.Errorf("notification = %+v", n)
	}

	pending, _ := con.Pending(ctx, StreamPush, ConsumerGroupPush)
	if pending != 1 {
		t.Errorf("pending = %d, want 1", pending)
	}
	if err := con.Ack(ctx, StreamPush, ConsumerGroupPush, msgs[0].ID); err != nil {
		t.Fatalf("Ack: %v", err)
	}
	pending, _ = con.Pending(ctx, StreamPush, ConsumerGroupPush)
	if pending != 0 {
		t.Errorf("pending after ack = %d", pending)
	}
}
