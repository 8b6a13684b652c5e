package usecase

import (
	"reflect"
	"sync"

	"go.uber.org/zap"

	"github.com/abelngansop-dot/studio-sub000/internal/core/domain"
	"github.com/abelngansop-dot/studio-sub000/internal/core/port"
)

const (
	kindDocument   = "document"
	kindCollection = "collection"
)

type opener[V any] func(ref domain.Ref, onNext func(V), onError func(error)) port.Unsubscribe

// binding owns at most one live store subscription and the state derived from it. Each
// (re)subscription gets a new generation; callbacks carrying an older generation are dropped,
// so nothing from a torn-down subscription reaches the state.
type binding[V any] struct {
	kind   string
	op     domain.Operation
	deps   Deps
	open   opener[V]
	notify func()

	mu          sync.Mutex
	bound       bool
	closed      bool
	ref         domain.Ref
	generation  uint64
	unsubscribe port.Unsubscribe
	data        V
	loading     bool
	err         error
}

func newBinding[V any](kind string, op domain.Operation, deps Deps, open opener[V], notify func()) *binding[V] {
	return &binding[V]{
		kind:   kind,
		op:     op,
		deps:   deps.withDefaults(),
		open:   open,
		notify: notify,
	}
}

func isNilRef(ref domain.Ref) bool {
	if ref == nil {
		return true
	}
	v := reflect.ValueOf(ref)
	return v.Kind() == reflect.Pointer && v.IsNil()
}

func (b *binding[V]) snapshot() (V, bool, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.data, b.loading, b.err
}

// detachLocked invalidates the current generation and returns its unsubscribe function.
func (b *binding[V]) detachLocked() port.Unsubscribe {
	b.generation++
	prev := b.unsubscribe
	b.unsubscribe = nil
	if prev != nil {
		b.deps.Metrics.SubscriptionClosed(b.kind)
	}
	return prev
}

func (b *binding[V]) bind(ref domain.Ref) {
	b.mu.Lock()
	if b.closed || (b.bound && b.ref == ref) {
		b.mu.Unlock()
		return
	}

	prev := b.detachLocked()
	b.bound = true
	b.ref = ref
	var zero V
	b.data = zero
	b.err = nil
	b.loading = !isNilRef(ref)
	gen := b.generation
	b.mu.Unlock()

	if prev != nil {
		prev()
	}
	b.changed()

	if isNilRef(ref) {
		return
	}
	if !ref.Memoized() {
		b.deps.Logger.Debug("subscribing to a reference that was not memoized",
			zap.String("kind", b.kind),
			zap.String("path", ref.Path()),
		)
	}

	unsubscribe := b.open(ref,
		func(v V) { b.apply(gen, v) },
		func(err error) { b.fail(gen, ref, err) },
	)

	b.mu.Lock()
	if b.closed || b.generation != gen {
		b.mu.Unlock()
		if unsubscribe != nil {
			unsubscribe()
		}
		return
	}
	b.unsubscribe = unsubscribe
	b.deps.Metrics.SubscriptionOpened(b.kind)
	b.mu.Unlock()
}

func (b *binding[V]) apply(gen uint64, v V) {
	b.mu.Lock()
	if b.closed || b.generation != gen {
		b.mu.Unlock()
		return
	}
	b.data = v
	b.loading = false
	b.err = nil
	b.mu.Unlock()

	b.deps.Metrics.SnapshotDelivered(b.kind)
	b.changed()
}

func (b *binding[V]) fail(gen uint64, ref domain.Ref, err error) {
	b.mu.Lock()
	if b.closed || b.generation != gen {
		b.mu.Unlock()
		return
	}
	b.loading = false

	var denied *domain.PermissionError
	if domain.IsPermissionDenied(err) {
		denied = domain.NewPermissionError(ref.Path(), b.op, nil)
		b.err = denied
	} else {
		b.err = err
	}
	b.mu.Unlock()

	if denied != nil {
		b.deps.Metrics.PermissionDenied(string(b.op))
		if b.deps.Bus != nil {
			b.deps.Bus.Emit(denied)
		}
	} else {
		b.deps.Logger.Warn("subscription failed",
			zap.String("kind", b.kind),
			zap.String("path", ref.Path()),
			zap.Error(err),
		)
	}
	b.changed()
}

func (b *binding[V]) close() {
	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return
	}
	b.closed = true
	prev := b.detachLocked()
	b.mu.Unlock()

	if prev != nil {
		prev()
	}
}

func (b *binding[V]) changed() {
	if b.notify != nil {
		b.notify()
	}
}
