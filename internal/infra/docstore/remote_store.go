package docstore

import (
	"context"
	"errors"
	"fmt"
	"reflect"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/abelngansop-dot/studio-sub000/internal/core/domain"
	"github.com/abelngansop-dot/studio-sub000/internal/core/port"
	"github.com/abelngansop-dot/studio-sub000/internal/repository"
)

const defaultSnapshotTTL = 5 * time.Minute

// ErrStoreClosed is returned by operations started after Close.
var ErrStoreClosed = errors.New("docstore: closed")

// Config wires the collaborators of a RemoteStore. Feed and Cache are optional.
type Config struct {
	Repository  port.DocumentRepository
	Feed        port.ChangeFeed
	Cache       port.SnapshotCache
	Policy      port.AccessPolicy
	Identity    port.IdentitySource
	SnapshotTTL time.Duration
	Logger      *zap.Logger
}

// RemoteStore implements port.DocumentStore over a durable repository. Live listeners refetch
// whenever the change feed (or a local write) reports activity on their collection and emit only
// when the visible result changed.
type RemoteStore struct {
	*remoteState
	ident port.IdentitySource
}

type remoteState struct {
	repo   port.DocumentRepository
	feed   port.ChangeFeed
	cache  port.SnapshotCache
	policy port.AccessPolicy
	ttl    time.Duration
	logger *zap.Logger
	newID  func() string
	now    func() time.Time

	ctx    context.Context
	cancel context.CancelFunc

	// writeSeq advances on every local write; a cache fill started before a write is dropped.
	writeSeq atomic.Uint64

	mu       sync.Mutex
	watchers map[string]map[uint64]chan struct{}
	nextID   uint64
	wg       sync.WaitGroup
}

// NewRemoteStore constructs a store. Repository is required.
func NewRemoteStore(cfg Config) (*RemoteStore, error) {
	if cfg.Repository == nil {
		return nil, errors.New("docstore: repository is required")
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	ttl := cfg.SnapshotTTL
	if ttl <= 0 {
		ttl = defaultSnapshotTTL
	}

	ctx, cancel := context.WithCancel(context.Background())
	return &RemoteStore{
		remoteState: &remoteState{
			repo:     cfg.Repository,
			feed:     cfg.Feed,
			cache:    cfg.Cache,
			policy:   cfg.Policy,
			ttl:      ttl,
			logger:   logger,
			newID:    uuid.NewString,
			now:      func() time.Time { return time.Now().UTC() },
			ctx:      ctx,
			cancel:   cancel,
			watchers: make(map[string]map[uint64]chan struct{}),
		},
		ident: cfg.Identity,
	}, nil
}

// As returns a view of the store that evaluates every operation as identity. Views share the
// repository, listeners and lifetime of s.
func (s *RemoteStore) As(identity *domain.Identity) port.DocumentStore {
	return &RemoteStore{remoteState: s.remoteState, ident: port.FixedIdentity{Identity: identity.Clone()}}
}

// Close stops every live listener and waits for their goroutines to exit.
func (s *RemoteStore) Close() {
	s.cancel()
	s.wg.Wait()
}

func (s *RemoteStore) authorize(op domain.Operation, path string, payload map[string]any) error {
	if s.ctx.Err() != nil {
		return ErrStoreClosed
	}
	if s.policy == nil {
		return nil
	}
	var identity *domain.Identity
	if s.ident != nil {
		identity = s.ident.CurrentIdentity()
	}
	return s.policy.Authorize(identity, op, path, payload)
}

// SubscribeDocument streams snapshots of ref.
func (s *RemoteStore) SubscribeDocument(ref *domain.DocumentRef, onNext func(port.DocumentSnapshot), onError func(error)) port.Unsubscribe {
	var (
		collection string
		validErr   = ref.Validate()
	)
	if validErr == nil {
		collection = ref.Collection()
		validErr = s.authorize(domain.OperationGet, ref.Path(), nil)
	}
	snapshotRef := domain.Doc(ref.Collection(), ref.ID())

	fetch := func(ctx context.Context) (any, error) {
		return s.readDocument(ctx, snapshotRef, false)
	}
	deliver := func(v any) {
		onNext(port.DocumentSnapshot{Ref: snapshotRef, Record: v.(*domain.Record)})
	}
	return s.watch(collection, validErr, fetch, deliver, onError)
}

// SubscribeQuery streams the result set of query.
func (s *RemoteStore) SubscribeQuery(query *domain.Query, onNext func([]domain.Record), onError func(error)) port.Unsubscribe {
	var (
		collection string
		validErr   = query.Validate()
	)
	if validErr == nil {
		collection = query.CollectionName()
		validErr = s.authorize(domain.OperationList, query.Path(), nil)
	}

	fetch := func(ctx context.Context) (any, error) {
		return s.runQuery(ctx, query)
	}
	deliver := func(v any) { onNext(v.([]domain.Record)) }
	return s.watch(collection, validErr, fetch, deliver, onError)
}

func (s *RemoteStore) watch(collection string, setupErr error, fetch func(context.Context) (any, error), deliver func(any), onError func(error)) port.Unsubscribe {
	ctx, cancel := context.WithCancel(s.ctx)
	report := func(err error) {
		if ctx.Err() == nil && onError != nil {
			onError(err)
		}
	}

	if setupErr != nil {
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			report(setupErr)
		}()
		return port.Unsubscribe(cancel)
	}

	local, localID := s.addWatcher(collection)

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer s.removeWatcher(collection, localID)

		var remote <-chan domain.ChangeEvent
		if s.feed != nil {
			events, closeFeed, err := s.feed.Subscribe(ctx, collection)
			if err != nil {
				s.logger.Warn("change feed unavailable, falling back to local notifications",
					zap.String("collection", collection),
					zap.Error(err),
				)
			} else {
				defer func() { _ = closeFeed() }()
				remote = events
			}
		}

		var (
			last   any
			primed bool
		)
		refresh := func() {
			value, err := fetch(ctx)
			if err != nil {
				if ctx.Err() == nil {
					report(err)
				}
				return
			}
			if primed && reflect.DeepEqual(last, value) {
				return
			}
			if ctx.Err() != nil {
				return
			}
			primed = true
			last = value
			deliver(value)
		}

		refresh()
		for {
			select {
			case <-ctx.Done():
				return
			case <-local:
				refresh()
			case _, ok := <-remote:
				if !ok {
					remote = nil
					if ctx.Err() == nil {
						s.logger.Warn("change feed closed, falling back to local notifications",
							zap.String("collection", collection))
					}
					continue
				}
				refresh()
			}
		}
	}()

	var once sync.Once
	return func() { once.Do(cancel) }
}

func (s *RemoteStore) addWatcher(collection string) (chan struct{}, uint64) {
	ch := make(chan struct{}, 1)
	s.mu.Lock()
	defer s.mu.Unlock()
	s.nextID++
	if s.watchers[collection] == nil {
		s.watchers[collection] = make(map[uint64]chan struct{})
	}
	s.watchers[collection][s.nextID] = ch
	return ch, s.nextID
}

func (s *RemoteStore) removeWatcher(collection string, id uint64) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.watchers[collection], id)
	if len(s.watchers[collection]) == 0 {
		delete(s.watchers, collection)
	}
}

// ListenerCount reports the number of live listeners.
func (s *RemoteStore) ListenerCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, set := range s.watchers {
		n += len(set)
	}
	return n
}

func (s *RemoteStore) announce(ctx context.Context, collection, id string, op domain.Operation) {
	s.mu.Lock()
	for _, ch := range s.watchers[collection] {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	s.mu.Unlock()

	if s.feed == nil {
		return
	}
	event := domain.ChangeEvent{Collection: collection, ID: id, Operation: op, At: s.now()}
	if err := s.feed.Publish(ctx, event); err != nil {
		s.logger.Warn("failed to publish change event",
			zap.String("collection", collection),
			zap.String("id", id),
			zap.Error(err),
		)
	}
}

// readDocument loads ref from the repository. With useCache the snapshot cache is consulted
// first and filled afterwards, unless a local write happened while the row was being read.
func (s *RemoteStore) readDocument(ctx context.Context, ref *domain.DocumentRef, useCache bool) (*domain.Record, error) {
	if !useCache || s.cache == nil {
		return s.repo.Get(ctx, ref.Collection(), ref.ID())
	}

	cached, err := s.cache.GetDocument(ctx, ref.Path())
	if err != nil {
		s.logger.Debug("snapshot cache read failed", zap.String("path", ref.Path()), zap.Error(err))
	} else if cached != nil {
		return cached, nil
	}

	seq := s.writeSeq.Load()
	record, err := s.repo.Get(ctx, ref.Collection(), ref.ID())
	if err != nil {
		return nil, err
	}
	if record == nil || s.writeSeq.Load() != seq {
		return record, nil
	}
	if err := s.cache.SetDocument(ctx, ref.Path(), *record, s.ttl); err != nil {
		s.logger.Debug("snapshot cache write failed", zap.String("path", ref.Path()), zap.Error(err))
		return record, nil
	}
	// A write that landed between the check and the fill has already evicted; drop the fill.
	if s.writeSeq.Load() != seq {
		s.evict(ctx, ref)
	}
	return record, nil
}

// written publishes a completed write: pending cache fills are invalidated, the cached snapshot
// is evicted and listeners are told. The second eviction covers a peer instance that filled the
// cache from the old row while the change event was in flight.
func (s *RemoteStore) written(ctx context.Context, ref *domain.DocumentRef, op domain.Operation) {
	s.writeSeq.Add(1)
	s.evict(ctx, ref)
	s.announce(ctx, ref.Collection(), ref.ID(), op)
	s.evict(ctx, ref)
}

func (s *RemoteStore) evict(ctx context.Context, ref *domain.DocumentRef) {
	if s.cache == nil {
		return
	}
	if err := s.cache.DeleteDocument(ctx, ref.Path()); err != nil {
		s.logger.Debug("snapshot cache eviction failed", zap.String("path", ref.Path()), zap.Error(err))
	}
}

func (s *RemoteStore) runQuery(ctx context.Context, query *domain.Query) ([]domain.Record, error) {
	records, err := s.repo.List(ctx, query.CollectionName(), pushdownFilters(query))
	if err != nil {
		return nil, err
	}
	return query.Apply(records), nil
}

// pushdownFilters extracts equality constraints on scalar values that the repository can
// evaluate with jsonb containment.
func pushdownFilters(query *domain.Query) map[string]any {
	var equals map[string]any
	for _, f := range query.Filters() {
		if f.Op != domain.OpEqual || f.Field == "id" {
			continue
		}
		switch f.Value.(type) {
		case string, bool, int, int32, int64, float32, float64:
		default:
			continue
		}
		if equals == nil {
			equals = make(map[string]any)
		}
		equals[f.Field] = f.Value
	}
	return equals
}

// Get returns the document at ref, served from the snapshot cache when possible.
func (s *RemoteStore) Get(ctx context.Context, ref *domain.DocumentRef) (*domain.Record, error) {
	if err := ref.Validate(); err != nil {
		return nil, err
	}
	if err := s.authorize(domain.OperationGet, ref.Path(), nil); err != nil {
		return nil, err
	}
	return s.readDocument(ctx, ref, true)
}

// List evaluates query once.
func (s *RemoteStore) List(ctx context.Context, query *domain.Query) ([]domain.Record, error) {
	if err := query.Validate(); err != nil {
		return nil, err
	}
	if err := s.authorize(domain.OperationList, query.Path(), nil); err != nil {
		return nil, err
	}
	return s.runQuery(ctx, query)
}

// Add inserts fields under a generated id.
func (s *RemoteStore) Add(ctx context.Context, collection *domain.Query, fields map[string]any) (*domain.DocumentRef, error) {
	if err := collection.Validate(); err != nil {
		return nil, err
	}
	if err := s.authorize(domain.OperationCreate, collection.Path(), fields); err != nil {
		return nil, err
	}

	ref := collection.Doc(s.newID())
	if err := s.repo.Insert(ctx, ref.Collection(), domain.NewRecord(ref.ID(), fields)); err != nil {
		return nil, err
	}
	s.announce(ctx, ref.Collection(), ref.ID(), domain.OperationCreate)
	return ref, nil
}

// Set writes fields to ref, merging into the existing document when merge is set. The read of
// the current row, the access check and the write happen under the repository's document lock.
func (s *RemoteStore) Set(ctx context.Context, ref *domain.DocumentRef, fields map[string]any, merge bool) error {
	if err := ref.Validate(); err != nil {
		return err
	}

	op := domain.OperationUpdate
	err := s.repo.Mutate(ctx, ref.Collection(), ref.ID(), func(current *domain.Record) (*domain.Record, error) {
		op = domain.OperationUpdate
		if current == nil {
			op = domain.OperationCreate
		}
		if err := s.authorize(op, ref.Path(), fields); err != nil {
			return nil, err
		}

		next := domain.CloneFields(fields)
		if merge && current != nil {
			next = domain.MergeFields(current.Fields, fields)
		}
		return &domain.Record{ID: ref.ID(), Fields: next}, nil
	})
	if err != nil {
		return err
	}
	s.written(ctx, ref, op)
	return nil
}

// Update merges fields into an existing document.
func (s *RemoteStore) Update(ctx context.Context, ref *domain.DocumentRef, fields map[string]any) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	if err := s.authorize(domain.OperationUpdate, ref.Path(), fields); err != nil {
		return err
	}

	err := s.repo.Mutate(ctx, ref.Collection(), ref.ID(), func(current *domain.Record) (*domain.Record, error) {
		if current == nil {
			return nil, fmt.Errorf("%w: %s", repository.ErrNotFound, ref.Path())
		}
		return &domain.Record{ID: ref.ID(), Fields: domain.MergeFields(current.Fields, fields)}, nil
	})
	if err != nil {
		return err
	}
	s.written(ctx, ref, domain.OperationUpdate)
	return nil
}

// Delete removes ref. Deleting a missing document succeeds.
func (s *RemoteStore) Delete(ctx context.Context, ref *domain.DocumentRef) error {
	if err := ref.Validate(); err != nil {
		return err
	}
	if err := s.authorize(domain.OperationDelete, ref.Path(), nil); err != nil {
		return err
	}
	if err := s.repo.Delete(ctx, ref.Collection(), ref.ID()); err != nil {
		return err
	}
	s.written(ctx, ref, domain.OperationDelete)
	return nil
}

var _ port.ScopedStore = (*RemoteStore)(nil)
