package usecase

import (
	"reflect"
	"sync"

	"github.com/abelngansop-dot/studio-sub000/internal/core/domain"
)

// Memo returns the same reference for as long as its dependency list is unchanged, so
// subscriptions bound to the result are not torn down and reopened on every call.
//
// Dependencies are a caller-supplied cache key compared shallowly: comparable values with ==,
// slices, maps, pointers and channels by identity. Functions never compare equal. State the
// factory reads but does not list as a dependency is not tracked.
type Memo[T domain.Ref] struct {
	mu     sync.Mutex
	deps   []any
	value  T
	primed bool
}

// Get returns the cached value or recomputes it with factory when deps changed.
func (m *Memo[T]) Get(factory func() T, deps ...any) T {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.primed && sameDeps(m.deps, deps) {
		return m.value
	}

	value := factory()
	if any(value) != nil {
		value.MarkMemoized()
	}
	m.value = value
	m.deps = append([]any(nil), deps...)
	m.primed = true
	return value
}

func sameDeps(prev, next []any) bool {
	if len(prev) != len(next) {
		return false
	}
	for i := range prev {
		if !sameValue(prev[i], next[i]) {
			return false
		}
	}
	return true
}

func sameValue(a, b any) (same bool) {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	va, vb := reflect.ValueOf(a), reflect.ValueOf(b)
	if va.Type() != vb.Type() {
		return false
	}

	switch va.Kind() {
	case reflect.Func:
		return false
	case reflect.Slice:
		return va.Pointer() == vb.Pointer() && va.Len() == vb.Len()
	case reflect.Map, reflect.Pointer, reflect.Chan, reflect.UnsafePointer:
		return va.Pointer() == vb.Pointer()
	}

	if !va.Type().Comparable() {
		return false
	}
	// Interface fields holding non-comparable values panic on ==.
	defer func() {
		if recover() != nil {
			same = false
		}
	}()
	return a == b
}
