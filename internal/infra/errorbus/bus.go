package errorbus

import (
	"sync"

	"go.uber.org/zap"

	"github.com/abelngansop-dot/studio-sub000/internal/core/domain"
	"github.com/abelngansop-dot/studio-sub000/internal/core/port"
)

// Handler receives permission errors published on the bus.
type Handler = port.PermissionErrorHandler

// ListenerID identifies a registration so it can be removed with Off.
type ListenerID uint64

type registration struct {
	id      ListenerID
	handler Handler
}

// Bus is the in-process channel for permission errors. It carries a single event kind,
// domain.EventPermissionError. Emission is synchronous and reaches every listener registered
// at the time of the call; nothing is buffered or replayed.
type Bus struct {
	mu        sync.RWMutex
	listeners []registration
	nextID    ListenerID
	logger    *zap.Logger
}

// New constructs an empty bus.
func New(logger *zap.Logger) *Bus {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Bus{logger: logger}
}

// On registers handler and returns the id needed to remove it.
func (b *Bus) On(handler Handler) ListenerID {
	if handler == nil {
		return 0
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	b.nextID++
	b.listeners = append(b.listeners, registration{id: b.nextID, handler: handler})
	return b.nextID
}

// Off removes a registration. Unknown ids are ignored.
func (b *Bus) Off(id ListenerID) {
	if id == 0 {
		return
	}
	b.mu.Lock()
	defer b.mu.Unlock()
	for i, reg := range b.listeners {
		if reg.id == id {
			b.listeners = append(b.listeners[:i:i], b.listeners[i+1:]...)
			return
		}
	}
}

// Subscribe registers handler and returns the matching Off call.
func (b *Bus) Subscribe(handler Handler) func() {
	id := b.On(handler)
	var once sync.Once
	return func() {
		once.Do(func() { b.Off(id) })
	}
}

// Emit delivers err to all current listeners in registration order. A panicking listener is
// logged and does not prevent delivery to the rest.
func (b *Bus) Emit(err *domain.PermissionError) {
	if err == nil {
		return
	}
	b.mu.RLock()
	snapshot := make([]registration, len(b.listeners))
	copy(snapshot, b.listeners)
	b.mu.RUnlock()

	for _, reg := range snapshot {
		b.deliver(reg, err)
	}
}

func (b *Bus) deliver(reg registration, err *domain.PermissionError) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("permission error listener panicked",
				zap.String("event", domain.EventPermissionError),
				zap.Uint64("listener_id", uint64(reg.id)),
				zap.Any("panic", r),
			)
		}
	}()
	reg.handler(err)
}

// Len reports the number of registered listeners.
func (b *Bus) Len() int {
	b.mu.RLock()
	defer b.mu.RUnlock()
	return len(b.listeners)
}

var _ port.ErrorChannel = (*Bus)(nil)
