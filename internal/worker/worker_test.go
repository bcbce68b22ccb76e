package worker_test

import (
	"context"
	"errors"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/redis/go-redis/v9"

	"pollpick/internal/push"
	"pollpick/internal/queue"
	"pollpick/internal/worker"
)

// =============================================================================
// Mock Implementations
// =============================================================================

// MockDispatcher records every notification it is asked to deliver.
type MockDispatcher struct {
	mu   sync.Mutex
	got  []push.Notification
	err  error
	done chan struct{}
}

func NewMockDispatcher(expect int) *MockDispatcher {
	return &MockDispatcher{done: make(chan struct{}, expect)}
}

func (m *MockDispatcher) Dispatch(ctx context.Context, n push.Notification) error {
	m.mu.Lock()
	m.got = append(m.got, n)
	m.mu.Unlock()
	m.done <- struct{}{}
	return m.err
}

func (m *MockDispatcher) Received() []push.Notification {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]push.Notification(nil), m.got...)
}

// =============================================================================
// Test Helpers
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
	// DB 1 keeps tests away from dev data
	opts.DB = 1

	client := redis.NewClient(opts)
	ctx := context.Background()
	if err := client.Ping(ctx).Err(); err != nil {
		t.Skipf("Redis not available, skipping test: %v", err)
	}
	client.FlushDB(ctx)
	return client
}

func cleanupTestRedis(client *redis.Client) {
	client.FlushDB(context.Background())
	client.Close()
}

func waitFor(t *testing.T, ch <-chan struct{}, n int) {
	t.Helper()
	timeout := time.After(5 * time.Second)
	for i := 0; i < n; i++ {
		select {
		case <-ch:
		case <-timeout:
			t.Fatalf("timed out after %d of %d deliveries", i, n)
		}
	}
}

// =============================================================================
// Handler Tests
// =============================================================================

func TestHandleEvent_Push(t *testing.T) {
	d := NewMockDispatcher(1)
	h := worker.NewHandler(d)

	n := push.FollowNotification(2, 1, "Ann", false)
	if err := h.HandleEvent(context.Background(), queue.NewPushEvent(n)); err != nil {
		t.Fatalf("HandleEvent failed: %v", err)
	}
	got := d.Received()
	if len(got) != 1 || got[0].Message.BodyLocKey != push.KeyFollowingYou {
		t.Errorf("dispatched %+v", got)
	}
}

func TestHandleEvent_UnknownType(t *testing.T) {
	h := worker.NewHandler(NewMockDispatcher(1))
	if err := h.HandleEvent(context.Background(), queue.Event{Type: "nope"}); err == nil {
		t.Error("expected error for unknown event type")
	}
}

func TestHandleEvent_StalePushDropped(t *testing.T) {
	d := NewMockDispatcher(1)
	h := worker.NewHandler(d)

	event := queue.NewPushEvent(push.ReportNotification("report", 1))
	event.Timestamp = time.Now().Add(-2 * time.Hour).Unix()
	if err := h.HandleEvent(context.Background(), event); err != nil {
		t.Fatalf("HandleEvent failed: %v", err)
	}
	if len(d.Received()) != 0 {
		t.Error("stale push should not be dispatched")
	}
}

func TestHandleEvent_DispatchErrorReturned(t *testing.T) {
	d := NewMockDispatcher(1)
	d.err = errors.New("fcm down")
	h := worker.NewHandler(d)

	err := h.HandleEvent(context.Background(), queue.NewPushEvent(push.ReportNotification("report", 1)))
	if err == nil {
		t.Error("expected dispatch error to surface")
	}
}

// =============================================================================
// Integration Tests
// =============================================================================

// TestPushStreamRoundTrip publishes through Redis and checks the workers deliver and ack.
func TestPushStreamRoundTrip(t *testing.T) {
	client := setupTestRedis(t)
	defer cleanupTestRedis(client)

	ctx := context.Background()
	d := NewMockDispatcher(2)
	consumer := queue.NewConsumer(client)
	manager := worker.NewManager(consumer, worker.NewHandler(d), worker.ManagerConfig{
		WorkerCount:  2,
		BlockTimeout: 200 * time.Millisecond,
	})
	if err := manager.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer manager.Stop()

	publisher := queue.NewPublisher(client)
	caption := "left or right?"
	if err := publisher.Dispatch(ctx, push.PollNotification([]int64{3, 4}, 77, "Ann", &caption)); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}
	if err := publisher.Dispatch(ctx, push.FollowNotification(5, 6, "Bo", true)); err != nil {
		t.Fatalf("Dispatch failed: %v", err)
	}

	waitFor(t, d.done, 2)

	got := d.Received()
	var sawPoll, sawFriend bool
	for _, n := range got {
		switch n.Message.BodyLocKey {
		case push.KeyPollNeedsHelpQuote:
			sawPoll = n.Message.Data["poll"] == "77" && len(n.Audience.UserIDs) == 2
		case push.KeyBecameFriends:
			sawFriend = n.Message.LocArgs[0] == "Bo"
		}
	}
	if !sawPoll || !sawFriend {
		t.Errorf("notifications did not survive the round trip: %+v", got)
	}

	// Acks land right after dispatch; allow the worker a moment.
	deadline := time.Now().Add(2 * time.Second)
	for {
		pending, err := consumer.Pending(ctx, queue.StreamPush, queue.ConsumerGroupPush)
		if err != nil {
			t.Fatalf("Pending failed: %v", err)
		}
		if pending == 0 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatalf("pending = %d, want 0", pending)
		}
		time.Sleep(50 * time.Millisecond)
	}
}

// TestPendingRecovery checks entries left unacked by a crashed consumer are retried on start.
func TestPendingRecovery(t *testing.T) {
	client := setupTestRedis(t)
	defer cleanupTestRedis(client)

	ctx := context.Background()
	consumer := queue.NewConsumer(client)
	if err := consumer.EnsureGroup(ctx, queue.StreamPush, queue.ConsumerGroupPush); err != nil {
		t.Fatalf("EnsureGroup failed: %v", err)
	}

	publisher := queue.NewPublisher(client)
	if _, err := publisher.Publish(ctx, queue.StreamPush, queue.NewPushEvent(push.ReportNotification("report", 9))); err != nil {
		t.Fatalf("Publish failed: %v", err)
	}

	// Deliver to worker-1 without acking, as if it died mid-batch.
	msgs, err := consumer.Read(ctx, queue.StreamPush, queue.ConsumerGroupPush, "worker-1", 10, 100*time.Millisecond)
	if err != nil || len(msgs) != 1 {
		t.Fatalf("Read = %v, %v", msgs, err)
	}

	d := NewMockDispatcher(1)
	manager := worker.NewManager(consumer, worker.NewHandler(d), worker.ManagerConfig{
		WorkerCount:  1,
		BlockTimeout: 100 * time.Millisecond,
	})
	if err := manager.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}
	defer manager.Stop()

	waitFor(t, d.done, 1)
	if got := d.Received(); got[0].Message.Data["pollId"] != "9" {
		t.Errorf("recovered %+v", got[0])
	}
}
