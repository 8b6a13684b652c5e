package memory

import (
	"context"
	"fmt"
	"reflect"
	"sync"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abelngansop-dot/studio-sub000/internal/core/domain"
	"github.com/abelngansop-dot/studio-sub000/internal/core/port"
	"github.com/abelngansop-dot/studio-sub000/internal/repository"
)

type collectionState struct {
	order []string
	docs  map[string]domain.Record
}

func newCollectionState() *collectionState {
	return &collectionState{docs: make(map[string]domain.Record)}
}

func (c *collectionState) records() []domain.Record {
	out := make([]domain.Record, 0, len(c.order))
	for _, id := range c.order {
		out = append(out, c.docs[id].Clone())
	}
	return out
}

func (c *collectionState) put(record domain.Record) {
	if _, exists := c.docs[record.ID]; !exists {
		c.order = append(c.order, record.ID)
	}
	c.docs[record.ID] = record
}

func (c *collectionState) remove(id string) bool {
	if _, exists := c.docs[id]; !exists {
		return false
	}
	delete(c.docs, id)
	for i, existing := range c.order {
		if existing == id {
			c.order = append(c.order[:i:i], c.order[i+1:]...)
			break
		}
	}
	return true
}

type listener struct {
	id         uint64
	collection string
	docID      string
	query      *domain.Query
	onNext     func(any)
	onError    func(error)
	box        *mailbox
	last       any
	primed     bool
}

// Store is an in-process document store with live listeners. Every operation is checked against
// the access policy using the identity reported by the identity source.
type Store struct {
	*storeState
	identity port.IdentitySource
}

type storeState struct {
	mu          sync.RWMutex
	collections map[string]*collectionState
	listeners   map[uint64]*listener
	nextID      uint64

	policy port.AccessPolicy
	logger *zap.Logger
	newID  func() string
}

// Option customises a Store.
type Option func(*Store)

// WithAccessPolicy enforces policy on every operation. Without it all operations are allowed.
func WithAccessPolicy(policy port.AccessPolicy) Option {
	return func(s *Store) { s.policy = policy }
}

// WithIdentitySource evaluates operations as the identity reported by source.
func WithIdentitySource(source port.IdentitySource) Option {
	return func(s *Store) { s.identity = source }
}

// WithLogger sets the store logger.
func WithLogger(logger *zap.Logger) Option {
	return func(s *Store) {
		if logger != nil {
			s.logger = logger
		}
	}
}

// WithIDGenerator overrides generation of ids for Add.
func WithIDGenerator(fn func() string) Option {
	return func(s *Store) {
		if fn != nil {
			s.newID = fn
		}
	}
}

// NewStore constructs an empty store.
func NewStore(opts ...Option) *Store {
	s := &Store{storeState: &storeState{
		collections: make(map[string]*collectionState),
		listeners:   make(map[uint64]*listener),
		logger:      zap.NewNop(),
		newID:       uuid.NewString,
	}}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// As returns a view of the store that evaluates every operation as identity. A nil identity is
// a signed-out visitor.
func (s *Store) As(identity *domain.Identity) port.DocumentStore {
	return &Store{storeState: s.storeState, identity: port.FixedIdentity{Identity: identity.Clone()}}
}

func (s *Store) authorize(op domain.Operation, path string, payload map[string]any) error {
	if s.policy == nil {
		return nil
	}
	var identity *domain.Identity
	if s.identity != nil {
		identity = s.identity.CurrentIdentity()
	}
	return s.policy.Authorize(identity, op, path, payload)
}

func (s *Store) collectionLocked(name string) *collectionState {
	c, ok := s.collections[name]
	if !ok {
		c = newCollectionState()
		s.collections[name] = c
	}
	return c
}

// SubscribeDocument streams snapshots of ref. A denied or invalid subscription reports a single
// error and is not registered.
func (s *Store) SubscribeDocument(ref *domain.DocumentRef, onNext func(port.DocumentSnapshot), onError func(error)) port.Unsubscribe {
	if err := ref.Validate(); err != nil {
		return s.failAsync(onError, err)
	}
	if err := s.authorize(domain.OperationGet, ref.Path(), nil); err != nil {
		return s.failAsync(onError, err)
	}

	snapshotRef := domain.Doc(ref.Collection(), ref.ID())
	l := &listener{
		collection: ref.Collection(),
		docID:      ref.ID(),
		onNext: func(v any) {
			onNext(port.DocumentSnapshot{Ref: snapshotRef, Record: v.(*domain.Record)})
		},
		onError: onError,
	}
	return s.register(l)
}

// SubscribeQuery streams the ordered result set of query.
func (s *Store) SubscribeQuery(query *domain.Query, onNext func([]domain.Record), onError func(error)) port.Unsubscribe {
	if err := query.Validate(); err != nil {
		return s.failAsync(onError, err)
	}
	if err := s.authorize(domain.OperationList, query.Path(), nil); err != nil {
		return s.failAsync(onError, err)
	}

	l := &listener{
		collection: query.CollectionName(),
		query:      query,
		onNext:     func(v any) { onNext(v.([]domain.Record)) },
		onError:    onError,
	}
	return s.register(l)
}

func (s *Store) failAsync(onError func(error), err error) port.Unsubscribe {
	box := newMailbox()
	box.post(func() {
		defer box.close()
		if onError != nil {
			onError(err)
		}
	})
	return func() { box.close() }
}

func (s *Store) register(l *listener) port.Unsubscribe {
	l.box = newMailbox()

	s.mu.Lock()
	s.nextID++
	l.id = s.nextID
	s.listeners[l.id] = l
	s.emitLocked(l)
	s.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			s.mu.Lock()
			delete(s.listeners, l.id)
			s.mu.Unlock()
			l.box.close()
		})
	}
}

// emitLocked posts the listener's current view when it differs from the last one delivered.
func (s *Store) emitLocked(l *listener) {
	var value any
	c := s.collectionLocked(l.collection)
	if l.query != nil {
		value = l.query.Apply(c.records())
	} else {
		var rec *domain.Record
		if existing, ok := c.docs[l.docID]; ok {
			cp := existing.Clone()
			rec = &cp
		}
		value = rec
	}

	if l.primed && reflect.DeepEqual(l.last, value) {
		return
	}
	l.primed = true
	l.last = value

	onNext := l.onNext
	l.box.post(func() { onNext(value) })
}

func (s *Store) notifyLocked(collection, docID string) {
	for _, l := range s.listeners {
		if l.collection != collection {
			continue
		}
		if l.query == nil && l.docID != docID {
			continue
		}
		s.emitLocked(l)
	}
}

// InjectError delivers err to every listener on collection, simulating a transport failure.
func (s *Store) InjectError(collection string, err error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	for _, l := range s.listeners {
		if l.collection != collection || l.onError == nil {
			continue
		}
		onError := l.onError
		l.box.post(func() { onError(err) })
	}
}

// ListenerCount reports the number of registered listeners.
func (s *Store) ListenerCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.listeners)
}

// Get returns the document at ref, or nil when it does not exist.
func (s *Store) Get(_ context.Context, ref *domain.DocumentRef) (*domain.Record, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	if err := s.authorize(domain.OperationGet, ref.Path(), nil); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[ref.Collection()]
	if !ok {
		return nil, nil
	}
	rec, ok := c.docs[ref.ID()]
	if !ok {
		return nil, nil
	}
	cp := rec.Clone()
	return &cp, nil
}

// List evaluates query once.
func (s *Store) List(_ context.Context, query *domain.Query) ([]domain.Record, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	if err := s.authorize(domain.OperationList, query.Path(), nil); err != nil {
		return nil, err
	}

	s.mu.RLock()
	defer s.mu.RUnlock()
	c, ok := s.collections[query.CollectionName()]
	if !ok {
		return []domain.Record{}, nil
	}
	return query.Apply(c.records()), nil
}

// Add inserts fields under a generated id.
func (s *Store) Add(ctx context.Context, collection *domain.Query, fields map[string]any) (*domain.DocumentRef, error) {
	if err := collection.Validate(); err != nil {
		return nil, err
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.authorize(domain.OperationCreate, collection.Path(), fields); err != nil {
		return nil, err
	}

	ref := collection.Doc(s.newID())

	s.mu.Lock()
	defer s.mu.Unlock()
	c := s.collectionLocked(ref.Collection())
	if _, exists := c.docs[ref.ID()]; exists {
		return nil, fmt.Errorf("%w: %s", repository.ErrAlreadyExists, ref.Path())
	}
	c.put(domain.NewRecord(ref.ID(), fields))
	s.notifyLocked(ref.Collection(), ref.ID())
	return ref, nil
}

// Set writes fields to ref, merging into the existing document when merge is set.
func (s *Store) Set(ctx context.Context, ref *domain.DocumentRef, fields map[string]any, merge bool) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	existing, exists := s.lookupLocked(ref)
	op := domain.OperationUpdate
	if !exists {
		op = domain.OperationCreate
	}
	if err := s.authorize(op, ref.Path(), fields); err != nil {
		return err
	}

	next := domain.CloneFields(fields)
	if merge && exists {
		next = domain.MergeFields(existing.Fields, fields)
	}
	s.collectionLocked(ref.Collection()).put(domain.Record{ID: ref.ID(), Fields: next})
	s.notifyLocked(ref.Collection(), ref.ID())
	return nil
}

// Update merges fields into an existing document.
func (s *Store) Update(ctx context.Context, ref *domain.DocumentRef, fields map[string]any) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.authorize(domain.OperationUpdate, ref.Path(), fields); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	existing, exists := s.lookupLocked(ref)
	if !exists {
		return fmt.Errorf("%w: %s", repository.ErrNotFound, ref.Path())
	}
	s.collectionLocked(ref.Collection()).put(domain.Record{ID: ref.ID(), Fields: domain.MergeFields(existing.Fields, fields)})
	s.notifyLocked(ref.Collection(), ref.ID())
	return nil
}

// Delete removes ref. Deleting a missing document succeeds.
func (s *Store) Delete(ctx context.Context, ref *domain.DocumentRef) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	if err := s.authorize(domain.OperationDelete, ref.Path(), nil); err != nil {
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.collectionLocked(ref.Collection()).remove(ref.ID()) {
		s.notifyLocked(ref.Collection(), ref.ID())
	}
	return nil
}

func (s *Store) lookupLocked(ref *domain.DocumentRef) (domain.Record, bool) {
	c, ok := s.collections[ref.Collection()]
	if !ok {
		return domain.Record{}, false
	}
	rec, ok := c.docs[ref.ID()]
	return rec, ok
}

var _ port.ScopedStore = (*Store)(nil)
