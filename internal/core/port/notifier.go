package port

import "github.com/abelngansop-dot/studio-sub000/internal/core/domain"

// Notifier displays transient notifications to the operator.
type Notifier interface {
	Notify(toast domain.Toast)
}
