package usecase

import (
	"github.com/abelngansop-dot/studio-sub000/internal/core/domain"
	"github.com/abelngansop-dot/studio-sub000/internal/core/port"
)

// CollectionState is the observable state of a CollectionSubscription. After the first emission
// Data is never nil; an empty result is an empty slice.
type CollectionState struct {
	Data      []domain.Record
	IsLoading bool
	Err       error
}

// CollectionSubscription keeps a live view of a query result. A denied read is published on the
// error channel as a "list" PermissionError.
type CollectionSubscription struct {
	b *binding[[]domain.Record]
}

// NewCollectionSubscription creates an unbound subscription.
func NewCollectionSubscription(deps Deps, onChange func(CollectionState)) *CollectionSubscription {
	s := &CollectionSubscription{}
	store := deps.Store
	open := func(ref domain.Ref, onNext func([]domain.Record), onError func(error)) port.Unsubscribe {
		return store.SubscribeQuery(ref.(*domain.Query), func(records []domain.Record) {
			if records == nil {
				records = []domain.Record{}
			}
			onNext(records)
		}, onError)
	}
	var notify func()
	if onChange != nil {
		notify = func() { onChange(s.State()) }
	}
	s.b = newBinding[[]domain.Record](kindCollection, domain.OperationList, deps, open, notify)
	return s
}

// Bind points the subscription at query.
func (s *CollectionSubscription) Bind(query *domain.Query) {
	s.b.bind(query)
}

// State returns the current state. The slice is shared with later readers and must not be
// modified.
func (s *CollectionSubscription) State() CollectionState {
	data, loading, err := s.b.snapshot()
	return CollectionState{Data: data, IsLoading: loading, Err: err}
}

// Close tears the subscription down.
func (s *CollectionSubscription) Close() {
	s.b.close()
}
