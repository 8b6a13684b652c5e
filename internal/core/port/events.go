package port

import (
	"context"

	"github.com/abelngansop-dot/studio-sub000/internal/core/domain"
)

// AuditPublisher ships denied-operation records to the message bus.
type AuditPublisher interface {
	PublishPermissionDenied(ctx context.Context, event domain.PermissionDeniedEvent) error
}
