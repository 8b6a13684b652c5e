package port

import "github.com/abelngansop-dot/studio-sub000/internal/core/domain"

// PermissionErrorHandler consumes permission errors published on an ErrorChannel.
type PermissionErrorHandler func(err *domain.PermissionError)

// ErrorChannel routes permission errors from reads and writes to whoever reports them.
type ErrorChannel interface {
	Emit(err *domain.PermissionError)
	Subscribe(handler PermissionErrorHandler) func()
}
