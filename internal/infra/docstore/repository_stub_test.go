package docstore

import (
	"context"
	"sync"

	"github.com/abelngansop-dot/studio-sub000/internal/core/domain"
	"github.com/abelngansop-dot/studio-sub000/internal/repository"
)

type stubRepository struct {
	mu       sync.Mutex
	order    map[string][]string
	docs     map[string]map[string]domain.Record
	gets     int
	lastList map[string]any
	// afterGet runs once, outside the lock, after the next Get has read its row.
	afterGet func()
}

func newStubRepository() *stubRepository {
	return &stubRepository{
		order: make(map[string][]string),
		docs:  make(map[string]map[string]domain.Record),
	}
}

func (r *stubRepository) Get(_ context.Context, collection, id string) (*domain.Record, error) {
	r.mu.Lock()
	r.gets++
	var out *domain.Record
	if rec, ok := r.docs[collection][id]; ok {
		cp := rec.Clone()
		out = &cp
	}
	hook := r.afterGet
	r.afterGet = nil
	r.mu.Unlock()

	if hook != nil {
		hook()
	}
	return out, nil
}

func (r *stubRepository) List(_ context.Context, collection string, equals map[string]any) ([]domain.Record, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.lastList = equals
	out := make([]domain.Record, 0)
	for _, id := range r.order[collection] {
		out = append(out, r.docs[collection][id].Clone())
	}
	return out, nil
}

func (r *stubRepository) Insert(_ context.Context, collection string, record domain.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.docs[collection][record.ID]; exists {
		return repository.ErrAlreadyExists
	}
	r.putLocked(collection, record)
	return nil
}

func (r *stubRepository) Upsert(_ context.Context, collection string, record domain.Record) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.putLocked(collection, record)
	return nil
}

func (r *stubRepository) Delete(_ context.Context, collection, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.docs[collection][id]; !exists {
		return nil
	}
	delete(r.docs[collection], id)
	ids := r.order[collection]
	for i, existing := range ids {
		if existing == id {
			r.order[collection] = append(ids[:i:i], ids[i+1:]...)
			break
		}
	}
	return nil
}

func (r *stubRepository) Mutate(_ context.Context, collection, id string, fn func(*domain.Record) (*domain.Record, error)) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	var current *domain.Record
	if rec, ok := r.docs[collection][id]; ok {
		cp := rec.Clone()
		current = &cp
	}
	next, err := fn(current)
	if err != nil {
		return err
	}
	if next != nil {
		r.putLocked(collection, *next)
	}
	return nil
}

func (r *stubRepository) putLocked(collection string, record domain.Record) {
	if r.docs[collection] == nil {
		r.docs[collection] = make(map[string]domain.Record)
	}
	if _, exists := r.docs[collection][record.ID]; !exists {
		r.order[collection] = append(r.order[collection], record.ID)
	}
	r.docs[collection][record.ID] = record.Clone()
}

func (r *stubRepository) getCount() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.gets
}

type failingFeed struct{ err error }

func (f failingFeed) Publish(context.Context, domain.ChangeEvent) error { return f.err }

func (f failingFeed) Subscribe(context.Context, string) (<-chan domain.ChangeEvent, func() error, error) {
	return nil, nil, f.err
}
