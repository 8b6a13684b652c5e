package usecase

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abelngansop-dot/studio-sub000/internal/core/domain"
	"github.com/abelngansop-dot/studio-sub000/internal/core/port"
)

const auditPublishTimeout = 5 * time.Second

// AuditForwarder copies every permission error from the error channel to the audit publisher.
// Publishing happens off the emitting goroutine so a slow broker never delays the emitter.
type AuditForwarder struct {
	bus       port.ErrorChannel
	publisher port.AuditPublisher
	identity  port.IdentitySource
	logger    *zap.Logger
	now       func() time.Time

	mu          sync.Mutex
	unsubscribe func()
	wg          sync.WaitGroup
}

// NewAuditForwarder constructs a stopped forwarder. identity may be nil.
func NewAuditForwarder(bus port.ErrorChannel, publisher port.AuditPublisher, identity port.IdentitySource, log *zap.Logger) *AuditForwarder {
	if log == nil {
		log = zap.NewNop()
	}
	return &AuditForwarder{
		bus:       bus,
		publisher: publisher,
		identity:  identity,
		logger:    log,
		now:       func() time.Time { return time.Now().UTC() },
	}
}

// Start subscribes to the error channel.
func (f *AuditForwarder) Start() {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.unsubscribe != nil {
		return
	}
	f.unsubscribe = f.bus.Subscribe(f.forward)
}

// Stop unsubscribes and waits for pending publishes.
func (f *AuditForwarder) Stop() {
	f.mu.Lock()
	unsubscribe := f.unsubscribe
	f.unsubscribe = nil
	f.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
	f.wg.Wait()
}

func (f *AuditForwarder) forward(err *domain.PermissionError) {
	event := domain.PermissionDeniedEvent{
		EventID:        uuid.NewString(),
		Path:           err.Path,
		Operation:      err.Operation,
		RequestPayload: err.RequestPayload(),
		OccurredAt:     f.now(),
	}
	if f.identity != nil {
		if identity := f.identity.CurrentIdentity(); identity != nil {
			event.SubjectID = identity.UID
		}
	}

	f.wg.Add(1)
	go func() {
		defer f.wg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), auditPublishTimeout)
		defer cancel()
		if perr := f.publisher.PublishPermissionDenied(ctx, event); perr != nil {
			f.logger.Warn("failed to publish permission denied audit event",
				zap.String("event_id", event.EventID),
				zap.String("path", event.Path),
				zap.Error(perr),
			)
		}
	}()
}
