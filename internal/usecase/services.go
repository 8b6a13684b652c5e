package usecase

import (
	"context"
	"errors"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/abelngansop-dot/studio-sub000/internal/core/domain"
	"github.com/abelngansop-dot/studio-sub000/internal/core/port"
)

var (
	// ErrProviderNotMounted is raised when store handles are requested outside Start..Close.
	ErrProviderNotMounted = errors.New("service provider is not mounted")
	// ErrMissingDependency is returned when a required collaborator is nil.
	ErrMissingDependency = errors.New("service provider dependency is missing")
	// ErrStoreNotScoped is returned when per-identity access is requested from a store that
	// cannot evaluate rules as another identity.
	ErrStoreNotScoped = errors.New("document store cannot evaluate per-identity access")
)

// ProviderConfig lists the collaborators of a ServiceProvider.
type ProviderConfig struct {
	Store        port.DocumentStore
	Identity     port.IdentityProvider
	Bus          port.ErrorChannel
	Logger       *zap.Logger
	Metrics      Metrics
	WriteTimeout time.Duration
}

// ServiceProvider is built once at startup and handed to every component that needs the store,
// the writer, the error channel or the identity state.
type ServiceProvider struct {
	cfg    ProviderConfig
	logger *zap.Logger

	mu          sync.RWMutex
	started     bool
	closed      bool
	state       domain.IdentityState
	unsubscribe port.Unsubscribe
	writer      *Writer
	watchers    map[uint64]func(domain.IdentityState)
	nextWatcher uint64
}

// NewServiceProvider validates the collaborators. Nothing is started until Start.
func NewServiceProvider(cfg ProviderConfig) (*ServiceProvider, error) {
	switch {
	case cfg.Store == nil:
		return nil, errors.Join(ErrMissingDependency, errors.New("store"))
	case cfg.Identity == nil:
		return nil, errors.Join(ErrMissingDependency, errors.New("identity provider"))
	case cfg.Bus == nil:
		return nil, errors.Join(ErrMissingDependency, errors.New("error channel"))
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = noopMetrics{}
	}

	return &ServiceProvider{
		cfg:      cfg,
		logger:   cfg.Logger,
		state:    domain.IdentityState{IsLoading: true},
		watchers: make(map[uint64]func(domain.IdentityState)),
	}, nil
}

// Start registers the identity listener and creates the writer. Calling it again is a no-op.
func (p *ServiceProvider) Start() {
	p.mu.Lock()
	if p.started || p.closed {
		p.mu.Unlock()
		return
	}
	p.started = true
	p.writer = NewWriter(p.deps(), p.cfg.WriteTimeout)
	p.mu.Unlock()

	unsubscribe := p.cfg.Identity.OnAuthStateChanged(p.handleAuthState)

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		unsubscribe()
		return
	}
	p.unsubscribe = unsubscribe
	p.mu.Unlock()

	p.logger.Info("service provider started")
}

func (p *ServiceProvider) handleAuthState(identity *domain.Identity, err error) {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.state = domain.IdentityState{Identity: identity.Clone(), IsLoading: false, Err: err}
	state := p.state
	watchers := make([]func(domain.IdentityState), 0, len(p.watchers))
	for _, fn := range p.watchers {
		watchers = append(watchers, fn)
	}
	p.mu.Unlock()

	if err != nil {
		p.logger.Warn("identity provider reported an error", zap.Error(err))
	}
	for _, fn := range watchers {
		fn(state)
	}
}

// IdentityState returns the current identity state. Until the first auth event it reports
// IsLoading with no identity.
func (p *ServiceProvider) IdentityState() domain.IdentityState {
	p.mu.RLock()
	defer p.mu.RUnlock()
	state := p.state
	state.Identity = state.Identity.Clone()
	return state
}

// CurrentIdentity implements port.IdentitySource.
func (p *ServiceProvider) CurrentIdentity() *domain.Identity {
	return p.IdentityState().Identity
}

// WatchIdentity calls fn after every auth transition until the returned function is called.
func (p *ServiceProvider) WatchIdentity(fn func(domain.IdentityState)) func() {
	if fn == nil {
		return func() {}
	}
	p.mu.Lock()
	p.nextWatcher++
	id := p.nextWatcher
	p.watchers[id] = fn
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.watchers, id)
			p.mu.Unlock()
		})
	}
}

func (p *ServiceProvider) deps() Deps {
	return Deps{
		Store:   p.cfg.Store,
		Bus:     p.cfg.Bus,
		Logger:  p.logger,
		Metrics: p.cfg.Metrics,
	}
}

func (p *ServiceProvider) mounted() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.started && !p.closed
}

func (p *ServiceProvider) mustBeMounted() {
	if !p.mounted() {
		panic(ErrProviderNotMounted)
	}
}

// LookupStore returns the store, or ErrProviderNotMounted outside the mounted lifetime.
func (p *ServiceProvider) LookupStore() (port.DocumentStore, error) {
	if !p.mounted() {
		return nil, ErrProviderNotMounted
	}
	return p.cfg.Store, nil
}

// Store returns the document store. It panics outside Start..Close.
func (p *ServiceProvider) Store() port.DocumentStore {
	p.mustBeMounted()
	return p.cfg.Store
}

// Bus returns the error channel. It panics outside Start..Close.
func (p *ServiceProvider) Bus() port.ErrorChannel {
	p.mustBeMounted()
	return p.cfg.Bus
}

// Writer returns the non-blocking writer. It panics outside Start..Close.
func (p *ServiceProvider) Writer() *Writer {
	p.mustBeMounted()
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.writer
}

// Deps returns the collaborators for subscriptions. It panics outside Start..Close.
func (p *ServiceProvider) Deps() Deps {
	p.mustBeMounted()
	return p.deps()
}

// DepsFor returns collaborators whose store evaluates access rules as identity rather than the
// process-wide signed-in identity. A nil identity is a signed-out visitor.
func (p *ServiceProvider) DepsFor(identity *domain.Identity) (Deps, error) {
	store, err := p.LookupStore()
	if err != nil {
		return Deps{}, err
	}
	scoped, ok := store.(port.ScopedStore)
	if !ok {
		return Deps{}, ErrStoreNotScoped
	}
	deps := p.deps()
	deps.Store = scoped.As(identity)
	return deps, nil
}

// WriterFor returns a writer whose writes are evaluated as identity. They are drained by Close
// along with the provider's own writes.
func (p *ServiceProvider) WriterFor(identity *domain.Identity) (*Writer, error) {
	deps, err := p.DepsFor(identity)
	if err != nil {
		return nil, err
	}
	p.mu.RLock()
	writer := p.writer
	p.mu.RUnlock()
	return writer.WithStore(deps.Store), nil
}

// Close unregisters the identity listener and waits for in-flight writes until ctx is done.
func (p *ServiceProvider) Close(ctx context.Context) error {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return nil
	}
	p.closed = true
	unsubscribe := p.unsubscribe
	p.unsubscribe = nil
	writer := p.writer
	p.mu.Unlock()

	if unsubscribe != nil {
		unsubscribe()
	}
	if writer == nil {
		return nil
	}
	err := writer.Drain(ctx)
	writer.Close()
	return err
}
