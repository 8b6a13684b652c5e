package usecase

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/abelngansop-dot/studio-sub000/internal/core/domain"
	"github.com/abelngansop-dot/studio-sub000/internal/core/port"
)

type stubSubscription struct {
	ref     domain.Ref
	onDoc   func(port.DocumentSnapshot)
	onQuery func([]domain.Record)
	onError func(error)
	closed  atomic.Bool
}

// stubStore records subscriptions so tests can drive emissions by hand.
type stubStore struct {
	mu        sync.Mutex
	subs      []*stubSubscription
	addRef    *domain.DocumentRef
	addErr    error
	setErr    error
	updateErr error
	deleteErr error
	writes    []string
	block     chan struct{}
}

func (s *stubStore) record(sub *stubSubscription) port.Unsubscribe {
	s.mu.Lock()
	s.subs = append(s.subs, sub)
	s.mu.Unlock()
	return func() { sub.closed.Store(true) }
}

func (s *stubStore) subscriptions() []*stubSubscription {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]*stubSubscription(nil), s.subs...)
}

func (s *stubStore) last(t *testing.T) *stubSubscription {
	t.Helper()
	subs := s.subscriptions()
	if len(subs) == 0 {
		t.Fatalf("expected at least one subscription")
	}
	return subs[len(subs)-1]
}

func (s *stubStore) SubscribeDocument(ref *domain.DocumentRef, onNext func(port.DocumentSnapshot), onError func(error)) port.Unsubscribe {
	return s.record(&stubSubscription{ref: ref, onDoc: onNext, onError: onError})
}

func (s *stubStore) SubscribeQuery(query *domain.Query, onNext func([]domain.Record), onError func(error)) port.Unsubscribe {
	return s.record(&stubSubscription{ref: query, onQuery: onNext, onError: onError})
}

func (s *stubStore) Get(context.Context, *domain.DocumentRef) (*domain.Record, error) {
	return nil, nil
}

func (s *stubStore) List(context.Context, *domain.Query) ([]domain.Record, error) {
	return []domain.Record{}, nil
}

func (s *stubStore) wait(ctx context.Context) error {
	if s.block == nil {
		return nil
	}
	select {
	case <-s.block:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *stubStore) note(entry string) {
	s.mu.Lock()
	s.writes = append(s.writes, entry)
	s.mu.Unlock()
}

func (s *stubStore) Add(ctx context.Context, collection *domain.Query, _ map[string]any) (*domain.DocumentRef, error) {
	if err := s.wait(ctx); err != nil {
		return nil, err
	}
	s.note("add " + collection.Path())
	if s.addErr != nil {
		return nil, s.addErr
	}
	return s.addRef, nil
}

func (s *stubStore) Set(ctx context.Context, ref *domain.DocumentRef, _ map[string]any, merge bool) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	s.note(fmt.Sprintf("set %s merge=%t", ref.Path(), merge))
	return s.setErr
}

func (s *stubStore) Update(ctx context.Context, ref *domain.DocumentRef, _ map[string]any) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	s.note("update " + ref.Path())
	return s.updateErr
}

func (s *stubStore) Delete(ctx context.Context, ref *domain.DocumentRef) error {
	if err := s.wait(ctx); err != nil {
		return err
	}
	s.note("delete " + ref.Path())
	return s.deleteErr
}

func deniedErr(op domain.Operation, path string) error {
	return fmt.Errorf("%w: %s on %s", domain.ErrPermissionDenied, op, path)
}

// recordingBus is an ErrorChannel that keeps every emitted error.
type recordingBus struct {
	mu       sync.Mutex
	emitted  []*domain.PermissionError
	handlers map[int]port.PermissionErrorHandler
	next     int
}

func newRecordingBus() *recordingBus {
	return &recordingBus{handlers: make(map[int]port.PermissionErrorHandler)}
}

func (b *recordingBus) Emit(err *domain.PermissionError) {
	b.mu.Lock()
	b.emitted = append(b.emitted, err)
	handlers := make([]port.PermissionErrorHandler, 0, len(b.handlers))
	for _, h := range b.handlers {
		handlers = append(handlers, h)
	}
	b.mu.Unlock()
	for _, h := range handlers {
		h(err)
	}
}

func (b *recordingBus) Subscribe(handler port.PermissionErrorHandler) func() {
	b.mu.Lock()
	b.next++
	id := b.next
	b.handlers[id] = handler
	b.mu.Unlock()
	return func() {
		b.mu.Lock()
		delete(b.handlers, id)
		b.mu.Unlock()
	}
}

func (b *recordingBus) events() []*domain.PermissionError {
	b.mu.Lock()
	defer b.mu.Unlock()
	return append([]*domain.PermissionError(nil), b.emitted...)
}

type recordingNotifier struct {
	mu     sync.Mutex
	toasts []domain.Toast
}

func (n *recordingNotifier) Notify(toast domain.Toast) {
	n.mu.Lock()
	n.toasts = append(n.toasts, toast)
	n.mu.Unlock()
}

func (n *recordingNotifier) count() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.toasts)
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatalf("timed out waiting for %s", what)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

// ownerOnly lets an identity touch only users/<uid>; everything else is open.
type ownerOnly struct{}

func (ownerOnly) Authorize(identity *domain.Identity, op domain.Operation, path string, _ map[string]any) error {
	if !strings.HasPrefix(path, "users/") {
		return nil
	}
	if identity == nil || path != "users/"+identity.UID {
		return fmt.Errorf("%w: %s on %s", domain.ErrPermissionDenied, op, path)
	}
	return nil
}
