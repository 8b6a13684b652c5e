package usecase

import (
	"sync"

	"github.com/abelngansop-dot/studio-sub000/internal/core/domain"
)

const defaultToastHistory = 50

// ToastFeed keeps the most recent notifications for the admin UI.
type ToastFeed struct {
	mu      sync.RWMutex
	limit   int
	entries []domain.Toast
}

// NewToastFeed keeps up to limit toasts; limit <= 0 uses the default.
func NewToastFeed(limit int) *ToastFeed {
	if limit <= 0 {
		limit = defaultToastHistory
	}
	return &ToastFeed{limit: limit}
}

// Notify records toast, dropping the oldest entry when full.
func (f *ToastFeed) Notify(toast domain.Toast) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = append(f.entries, toast)
	if over := len(f.entries) - f.limit; over > 0 {
		f.entries = append([]domain.Toast(nil), f.entries[over:]...)
	}
}

// Recent returns the stored toasts, newest first.
func (f *ToastFeed) Recent() []domain.Toast {
	f.mu.RLock()
	defer f.mu.RUnlock()
	out := make([]domain.Toast, len(f.entries))
	for i, t := range f.entries {
		out[len(f.entries)-1-i] = t
	}
	return out
}

// Clear drops every stored toast.
func (f *ToastFeed) Clear() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.entries = nil
}
