package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"

	red "github.com/redis/go-redis/v9"

	"github.com/abelngansop-dot/studio-sub000/internal/core/domain"
	"github.com/abelngansop-dot/studio-sub000/internal/core/port"
)

const defaultSnapshotPrefix = "snapshot"

// SnapshotCache keeps JSON copies of recently read documents keyed by document path.
type SnapshotCache struct {
	client *red.Client
	prefix string
}

// NewSnapshotCache wires a Redis client into a snapshot cache.
func NewSnapshotCache(client *red.Client, keyPrefix string) *SnapshotCache {
	prefix := strings.TrimSpace(keyPrefix)
	if prefix == "" {
		prefix = defaultSnapshotPrefix
	}

	return &SnapshotCache{client: client, prefix: prefix}
}

type cachedDocument struct {
	ID     string         `json:"id"`
	Fields map[string]any `json:"fields"`
}

// GetDocument returns the cached record for path, or nil on a miss.
func (c *SnapshotCache) GetDocument(ctx context.Context, path string) (*domain.Record, error) {
	key := c.key(path)
	if key == "" {
		return nil, errors.New("path must not be empty")
	}

	raw, err := c.client.Get(ctx, key).Bytes()
	if err != nil {
		if errors.Is(err, red.Nil) {
			return nil, nil
		}
		return nil, fmt.Errorf("redis get snapshot: %w", err)
	}

	var doc cachedDocument
	if err := json.Unmarshal(raw, &doc); err != nil {
		return nil, fmt.Errorf("decode snapshot: %w", err)
	}
	record := domain.NewRecord(doc.ID, doc.Fields)
	return &record, nil
}

// SetDocument caches record under path for ttl.
func (c *SnapshotCache) SetDocument(ctx context.Context, path string, record domain.Record, ttl time.Duration) error {
	if ttl <= 0 {
		return errors.New("ttl must be positive")
	}
	key := c.key(path)
	if key == "" {
		return errors.New("path must not be empty")
	}

	raw, err := json.Marshal(cachedDocument{ID: record.ID, Fields: record.Fields})
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := c.client.Set(ctx, key, raw, ttl).Err(); err != nil {
		return fmt.Errorf("redis set snapshot: %w", err)
	}

	return nil
}

// DeleteDocument evicts path from the cache.
func (c *SnapshotCache) DeleteDocument(ctx context.Context, path string) error {
	key := c.key(path)
	if key == "" {
		return errors.New("path must not be empty")
	}
	if err := c.client.Del(ctx, key).Err(); err != nil {
		return fmt.Errorf("redis delete snapshot: %w", err)
	}
	return nil
}

func (c *SnapshotCache) key(path string) string {
	trimmed := strings.Trim(strings.TrimSpace(path), "/")
	if trimmed == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", c.prefix, trimmed)
}

var _ port.SnapshotCache = (*SnapshotCache)(nil)
