package port

import (
	"context"
	"time"

	"github.com/abelngansop-dot/studio-sub000/internal/core/domain"
)

// SnapshotCache keeps recently read documents close to the application.
type SnapshotCache interface {
	GetDocument(ctx context.Context, path string) (*domain.Record, error)
	SetDocument(ctx context.Context, path string, record domain.Record, ttl time.Duration) error
	DeleteDocument(ctx context.Context, path string) error
}

// ChangeFeed carries write notifications between store instances.
type ChangeFeed interface {
	Publish(ctx context.Context, event domain.ChangeEvent) error
	Subscribe(ctx context.Context, collection string) (<-chan domain.ChangeEvent, func() error, error)
}

// DocumentRepository is the durable backend behind the remote store.
type DocumentRepository interface {
	Get(ctx context.Context, collection, id string) (*domain.Record, error)
	List(ctx context.Context, collection string, equals map[string]any) ([]domain.Record, error)
	Insert(ctx context.Context, collection string, record domain.Record) error
	Upsert(ctx context.Context, collection string, record domain.Record) error
	Delete(ctx context.Context, collection, id string) error
	// Mutate passes the current document (nil when missing) to fn while holding a lock on
	// (collection, id) and stores the record fn returns. A nil record leaves the row untouched;
	// an error from fn aborts without writing and is returned as is.
	Mutate(ctx context.Context, collection, id string, fn func(current *domain.Record) (*domain.Record, error)) error
}
