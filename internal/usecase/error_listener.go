package usecase

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/abelngansop-dot/studio-sub000/internal/core/domain"
	"github.com/abelngansop-dot/studio-sub000/internal/core/port"
	"github.com/abelngansop-dot/studio-sub000/internal/infra/logger"
)

const (
	deniedToastTitle       = "Permission denied"
	deniedToastDescription = "You do not have permission to perform this action."
	deniedToastVariant     = "destructive"
)

// ErrorListener turns permission errors into generic notifications. Every mounted listener
// notifies once per event; mounting two listeners yields two notifications.
type ErrorListener struct {
	bus      port.ErrorChannel
	notifier port.Notifier
	logger   *zap.Logger
	now      func() time.Time

	mu          sync.Mutex
	unsubscribe func()
}

// NewErrorListener constructs an unmounted listener.
func NewErrorListener(bus port.ErrorChannel, notifier port.Notifier, log *zap.Logger) *ErrorListener {
	if log == nil {
		log = zap.NewNop()
	}
	return &ErrorListener{
		bus:      bus,
		notifier: notifier,
		logger:   log,
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// Mount registers the handler. A mounted listener stays registered exactly once.
func (l *ErrorListener) Mount() {
	l.mu.Lock()
	defer l.mu.Unlock()
	if l.unsubscribe != nil {
		return
	}
	l.unsubscribe = l.bus.Subscribe(l.handle)
}

// Unmount removes the handler.
func (l *ErrorListener) Unmount() {
	l.mu.Lock()
	unsubscribe := l.unsubscribe
	l.unsubscribe = nil
	l.mu.Unlock()
	if unsubscribe != nil {
		unsubscribe()
	}
}

// Mounted reports whether the handler is registered.
func (l *ErrorListener) Mounted() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.unsubscribe != nil
}

func (l *ErrorListener) handle(err *domain.PermissionError) {
	l.logger.Error("permission denied",
		zap.String("path", err.Path),
		zap.String("operation", string(err.Operation)),
		zap.Strings("payload_keys", logger.PayloadKeys(err.RequestPayload())),
		zap.String("request", err.Context()),
	)

	if l.notifier == nil {
		return
	}
	l.notifier.Notify(domain.Toast{
		Title:       deniedToastTitle,
		Description: deniedToastDescription,
		Variant:     deniedToastVariant,
		CreatedAt:   l.now(),
	})
}
