package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"sync"

	red "github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/abelngansop-dot/studio-sub000/internal/core/domain"
	"github.com/abelngansop-dot/studio-sub000/internal/core/port"
)

const (
	defaultChannelPrefix = "changes"
	feedBufferSize       = 64
)

// ChangeFeed fans write notifications out to every process watching a collection using Redis
// Pub/Sub. Delivery is best effort: subscribers that are not connected miss events.
type ChangeFeed struct {
	client *red.Client
	prefix string
	logger *zap.Logger
}

// NewChangeFeed wires a Redis client into a change feed.
func NewChangeFeed(client *red.Client, channelPrefix string, logger *zap.Logger) *ChangeFeed {
	prefix := strings.TrimSpace(channelPrefix)
	if prefix == "" {
		prefix = defaultChannelPrefix
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	return &ChangeFeed{client: client, prefix: prefix, logger: logger}
}

// Publish announces a write on the collection channel.
func (f *ChangeFeed) Publish(ctx context.Context, event domain.ChangeEvent) error {
	channel := f.channel(event.Collection)
	if channel == "" {
		return errors.New("collection must not be empty")
	}

	payload, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("encode change event: %w", err)
	}
	if err := f.client.Publish(ctx, channel, payload).Err(); err != nil {
		return fmt.Errorf("redis publish change: %w", err)
	}
	return nil
}

// Subscribe returns a stream of change events for collection. The subscription is confirmed
// before Subscribe returns; the returned close function ends the stream.
func (f *ChangeFeed) Subscribe(ctx context.Context, collection string) (<-chan domain.ChangeEvent, func() error, error) {
	channel := f.channel(collection)
	if channel == "" {
		return nil, nil, errors.New("collection must not be empty")
	}

	pubsub := f.client.Subscribe(ctx, channel)
	if _, err := pubsub.Receive(ctx); err != nil {
		_ = pubsub.Close()
		return nil, nil, fmt.Errorf("redis subscribe %s: %w", channel, err)
	}

	out := make(chan domain.ChangeEvent, feedBufferSize)
	done := make(chan struct{})
	messages := pubsub.Channel()

	go func() {
		defer close(out)
		for {
			select {
			case <-done:
				return
			case msg, ok := <-messages:
				if !ok {
					return
				}
				var event domain.ChangeEvent
				if err := json.Unmarshal([]byte(msg.Payload), &event); err != nil {
					f.logger.Warn("discarding malformed change event",
						zap.String("channel", msg.Channel),
						zap.Error(err),
					)
					continue
				}
				select {
				case out <- event:
				case <-done:
					return
				}
			}
		}
	}()

	var once sync.Once
	closeFn := func() error {
		var err error
		once.Do(func() {
			close(done)
			err = pubsub.Close()
		})
		return err
	}

	return out, closeFn, nil
}

func (f *ChangeFeed) channel(collection string) string {
	trimmed := strings.TrimSpace(collection)
	if trimmed == "" {
		return ""
	}
	return fmt.Sprintf("%s:%s", f.prefix, trimmed)
}

var _ port.ChangeFeed = (*ChangeFeed)(nil)
