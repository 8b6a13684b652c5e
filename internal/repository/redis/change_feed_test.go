package redis

import (
	"context"
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/abelngansop-dot/studio-sub000/internal/core/domain"
)

func TestChangeFeed_PublishSubscribe(t *testing.T) {
	client, _ := newTestRedis(t)
	feed := NewChangeFeed(client, "chg", zaptest.NewLogger(t))
	ctx := context.Background()

	events, closeFn, err := feed.Subscribe(ctx, "bookings")
	if err != nil {
		t.Fatalf("Subscribe returned error: %v", err)
	}
	defer closeFn()

	at := time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)
	if err := feed.Publish(ctx, domain.ChangeEvent{Collection: "services", ID: "s1", Operation: domain.OperationCreate, At: at}); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}
	if err := feed.Publish(ctx, domain.ChangeEvent{Collection: "bookings", ID: "b1", Operation: domain.OperationCreate, At: at}); err != nil {
		t.Fatalf("Publish returned error: %v", err)
	}

	select {
	case ev := <-events:
		if ev.Collection != "bookings" || ev.ID != "b1" || ev.Operation != domain.OperationCreate || !ev.At.Equal(at) {
			t.Fatalf("unexpected event: %+v", ev)
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for change event")
	}
}

func TestChangeFeed_CloseEndsStream(t *testing.T) {
	client, _ := newTestRedis(t)
	feed := NewChangeFeed(client, "", nil)

	events, closeFn, err := feed.Subscribe(context.Background(), "gallery")
	if err != nil {
		t.Fatalf("Subscribe returned error: %v", err)
	}
	if err := closeFn(); err != nil {
		t.Fatalf("close returned error: %v", err)
	}
	_ = closeFn()

	select {
	case _, ok := <-events:
		if ok {
			t.Fatalf("expected closed stream")
		}
	case <-time.After(2 * time.Second):
		t.Fatalf("stream was not closed")
	}
}

func TestChangeFeed_RejectsEmptyCollection(t *testing.T) {
	client, _ := newTestRedis(t)
	feed := NewChangeFeed(client, "chg", nil)

	if _, _, err := feed.Subscribe(context.Background(), " "); err == nil {
		t.Fatalf("expected error for empty collection")
	}
	if err := feed.Publish(context.Background(), domain.ChangeEvent{}); err == nil {
		t.Fatalf("expected error for empty collection")
	}
}
