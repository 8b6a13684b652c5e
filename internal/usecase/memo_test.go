package usecase

import (
	"testing"

	"github.com/abelngansop-dot/studio-sub000/internal/core/domain"
)

func TestMemoReturnsSameReferenceForUnchangedDeps(t *testing.T) {
	var memo Memo[*domain.Query]
	calls := 0
	factory := func() *domain.Query {
		calls++
		return domain.Collection("bookings").OrderBy("createdAt", domain.Desc)
	}

	first := memo.Get(factory, "admin", 10)
	second := memo.Get(factory, "admin", 10)
	if first != second {
		t.Fatalf("expected identical reference for unchanged deps")
	}
	if calls != 1 {
		t.Fatalf("expected factory to run once, ran %d times", calls)
	}
	if !domain.IsMemoized(first) {
		t.Fatalf("expected memoized tag on result")
	}

	third := memo.Get(factory, "admin", 20)
	if third == first {
		t.Fatalf("expected new reference after dependency change")
	}
	if calls != 2 {
		t.Fatalf("expected factory to rerun, ran %d times", calls)
	}
}

func TestMemoComparesNonComparableDepsByIdentity(t *testing.T) {
	var memo Memo[*domain.DocumentRef]
	factory := func() *domain.DocumentRef { return domain.Doc("users", "42") }

	filter := []string{"a"}
	first := memo.Get(factory, filter)
	if memo.Get(factory, filter) != first {
		t.Fatalf("same slice should keep the cached reference")
	}
	if memo.Get(factory, []string{"a"}) == first {
		t.Fatalf("a different slice with equal contents should recompute")
	}
}

func TestMemoDependencyCountChange(t *testing.T) {
	var memo Memo[*domain.DocumentRef]
	factory := func() *domain.DocumentRef { return domain.Doc("users", "42") }

	first := memo.Get(factory, "x")
	if memo.Get(factory, "x", nil) == first {
		t.Fatalf("changing dependency count should recompute")
	}
}

func TestMemoNilResult(t *testing.T) {
	var memo Memo[*domain.DocumentRef]
	got := memo.Get(func() *domain.DocumentRef { return nil }, false)
	if got != nil {
		t.Fatalf("expected nil reference, got %v", got)
	}
	if domain.IsMemoized(got) {
		t.Fatalf("nil reference must not report memoized")
	}
}

func TestUnmemoizedReferenceIsNotTagged(t *testing.T) {
	if domain.IsMemoized(domain.Doc("users", "1")) {
		t.Fatalf("ad-hoc references must not be tagged")
	}
}
