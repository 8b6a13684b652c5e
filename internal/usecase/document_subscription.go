package usecase

import (
	"github.com/abelngansop-dot/studio-sub000/internal/core/domain"
	"github.com/abelngansop-dot/studio-sub000/internal/core/port"
)

// DocumentState is the observable state of a DocumentSubscription. Data is nil while loading,
// when the document does not exist and when no reference is bound.
type DocumentState struct {
	Data      *domain.Record
	IsLoading bool
	Err       error
}

// DocumentSubscription keeps a live view of a single document. A denied read is published on the
// error channel as a "get" PermissionError and surfaces locally only through Err.
type DocumentSubscription struct {
	b *binding[*domain.Record]
}

// NewDocumentSubscription creates an unbound subscription. onChange, if set, is called with the
// new state after every transition, possibly from a store goroutine.
func NewDocumentSubscription(deps Deps, onChange func(DocumentState)) *DocumentSubscription {
	s := &DocumentSubscription{}
	store := deps.Store
	open := func(ref domain.Ref, onNext func(*domain.Record), onError func(error)) port.Unsubscribe {
		return store.SubscribeDocument(ref.(*domain.DocumentRef), func(snap port.DocumentSnapshot) {
			onNext(snap.Record)
		}, onError)
	}
	var notify func()
	if onChange != nil {
		notify = func() { onChange(s.State()) }
	}
	s.b = newBinding[*domain.Record](kindDocument, domain.OperationGet, deps, open, notify)
	return s
}

// Bind points the subscription at ref. Binding the same pointer again is a no-op; any other
// reference tears the current subscription down first. A nil ref holds no subscription.
func (s *DocumentSubscription) Bind(ref *domain.DocumentRef) {
	s.b.bind(ref)
}

// State returns the current state.
func (s *DocumentSubscription) State() DocumentState {
	data, loading, err := s.b.snapshot()
	return DocumentState{Data: data, IsLoading: loading, Err: err}
}

// Close tears the subscription down. Later emissions are ignored and Bind becomes a no-op.
func (s *DocumentSubscription) Close() {
	s.b.close()
}
