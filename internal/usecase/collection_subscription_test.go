package usecase

import (
	"context"
	"fmt"
	"testing"

	"github.com/abelngansop-dot/studio-sub000/internal/core/domain"
	"github.com/abelngansop-dot/studio-sub000/internal/repository/memory"
)

type denyOperations map[domain.Operation]bool

func (d denyOperations) Authorize(_ *domain.Identity, op domain.Operation, path string, _ map[string]any) error {
	if d[op] {
		return fmt.Errorf("%w: %s on %s", domain.ErrPermissionDenied, op, path)
	}
	return nil
}

func TestCollectionSubscriptionEmptyResultIsNotNil(t *testing.T) {
	store := &stubStore{}
	sub := NewCollectionSubscription(Deps{Store: store}, nil)
	defer sub.Close()

	sub.Bind(domain.Collection("gallery"))
	store.last(t).onQuery(nil)

	state := sub.State()
	if state.Data == nil || len(state.Data) != 0 {
		t.Fatalf("expected empty non-nil slice, got %#v", state.Data)
	}
	if state.IsLoading {
		t.Fatalf("expected loading to finish")
	}
}

func TestCollectionSubscriptionOrdersByQuery(t *testing.T) {
	ctx := context.Background()
	store := memory.NewStore()
	for _, rec := range []struct {
		id        string
		createdAt int
	}{{"a", 1}, {"b", 2}} {
		if err := store.Set(ctx, domain.Doc("bookings", rec.id), map[string]any{"createdAt": rec.createdAt}, false); err != nil {
			t.Fatalf("seed %s: %v", rec.id, err)
		}
	}

	sub := NewCollectionSubscription(Deps{Store: store}, nil)
	defer sub.Close()

	var memo Memo[*domain.Query]
	sub.Bind(memo.Get(func() *domain.Query {
		return domain.Collection("bookings").OrderBy("createdAt", domain.Desc)
	}))

	waitFor(t, "ordered snapshot", func() bool { return len(sub.State().Data) == 2 })
	data := sub.State().Data
	if data[0].ID != "b" || data[1].ID != "a" {
		t.Fatalf("expected [b a], got [%s %s]", data[0].ID, data[1].ID)
	}
}

func TestCollectionSubscriptionDeniedPublishesList(t *testing.T) {
	store := memory.NewStore(memory.WithAccessPolicy(denyOperations{domain.OperationList: true}))
	bus := newRecordingBus()
	sub := NewCollectionSubscription(Deps{Store: store, Bus: bus}, nil)
	defer sub.Close()

	sub.Bind(domain.Collection("bookings"))

	waitFor(t, "permission error", func() bool { return len(bus.events()) == 1 })
	event := bus.events()[0]
	if event.Path != "bookings" || event.Operation != domain.OperationList {
		t.Fatalf("unexpected permission error %+v", event)
	}
	if event.HasPayload() {
		t.Fatalf("read denials carry no payload")
	}
	if state := sub.State(); state.IsLoading || state.Err == nil || state.Data != nil {
		t.Fatalf("unexpected state after denial: %+v", state)
	}
}

func TestCollectionSubscriptionRebindResets(t *testing.T) {
	store := &stubStore{}
	sub := NewCollectionSubscription(Deps{Store: store}, nil)
	defer sub.Close()

	sub.Bind(domain.Collection("services"))
	store.last(t).onQuery([]domain.Record{domain.NewRecord("s1", nil)})
	if len(sub.State().Data) != 1 {
		t.Fatalf("expected first result")
	}

	sub.Bind(domain.Collection("services").Where("active", domain.OpEqual, true))
	state := sub.State()
	if !state.IsLoading || state.Data != nil {
		t.Fatalf("expected loading state after rebinding, got %+v", state)
	}

	sub.Bind(nil)
	if state := sub.State(); state.IsLoading || state.Data != nil {
		t.Fatalf("expected idle state for nil query, got %+v", state)
	}
	subs := store.subscriptions()
	for i, s := range subs {
		if !s.closed.Load() {
			t.Fatalf("subscription %d still open after binding nil", i)
		}
	}
}
