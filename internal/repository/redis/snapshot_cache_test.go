package redis

import (
	"context"
	"testing"
	"time"

	"github.com/abelngansop-dot/studio-sub000/internal/core/domain"
)

func TestSnapshotCache_SetAndGet(t *testing.T) {
	client, server := newTestRedis(t)
	cache := NewSnapshotCache(client, "snap")

	ctx := context.Background()
	ttl := time.Minute
	record := domain.NewRecord("site", map[string]any{"title": "Studio", "open": true})

	if err := cache.SetDocument(ctx, "settings/site", record, ttl); err != nil {
		t.Fatalf("SetDocument returned error: %v", err)
	}

	got, err := cache.GetDocument(ctx, "settings/site")
	if err != nil {
		t.Fatalf("GetDocument returned error: %v", err)
	}
	if got == nil || got.ID != "site" || got.Fields["title"] != "Studio" || got.Fields["open"] != true {
		t.Fatalf("unexpected cached record: %+v", got)
	}

	remaining := server.TTL("snap:settings/site")
	if remaining <= 0 || remaining > ttl {
		t.Fatalf("expected ttl within (0, %v], got %v", ttl, remaining)
	}
}

func TestSnapshotCache_MissAndDelete(t *testing.T) {
	client, _ := newTestRedis(t)
	cache := NewSnapshotCache(client, "")
	ctx := context.Background()

	got, err := cache.GetDocument(ctx, "users/u1")
	if err != nil {
		t.Fatalf("GetDocument returned error: %v", err)
	}
	if got != nil {
		t.Fatalf("expected cache miss, got %+v", got)
	}

	if err := cache.SetDocument(ctx, "users/u1", domain.NewRecord("u1", nil), time.Minute); err != nil {
		t.Fatalf("SetDocument returned error: %v", err)
	}
	if err := cache.DeleteDocument(ctx, "users/u1"); err != nil {
		t.Fatalf("DeleteDocument returned error: %v", err)
	}
	if got, _ := cache.GetDocument(ctx, "users/u1"); got != nil {
		t.Fatalf("expected eviction, got %+v", got)
	}
}

func TestSnapshotCache_RejectsInvalidInput(t *testing.T) {
	client, _ := newTestRedis(t)
	cache := NewSnapshotCache(client, "snap")
	ctx := context.Background()

	if err := cache.SetDocument(ctx, "users/u1", domain.NewRecord("u1", nil), 0); err == nil {
		t.Fatalf("expected error for non-positive ttl")
	}
	if _, err := cache.GetDocument(ctx, "  "); err == nil {
		t.Fatalf("expected error for empty path")
	}
}
