package security

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/abelngansop-dot/studio-sub000/internal/core/domain"
	"github.com/abelngansop-dot/studio-sub000/internal/core/port"
	"github.com/abelngansop-dot/studio-sub000/internal/infra/logger"
)

// ErrProviderClosed is returned by sign-in calls after Close.
var ErrProviderClosed = errors.New("identity provider closed")

// TokenIdentityProvider tracks the signed-in identity established from verified tokens and
// notifies listeners once per actual transition. Notifications are delivered in order on a
// single dispatch goroutine, so listeners may call back into the provider.
type TokenIdentityProvider struct {
	tokens *JWTManager
	logger *zap.Logger

	mu        sync.Mutex
	current   *domain.Identity
	listeners map[uint64]port.AuthStateListener
	nextID    uint64
	closed    bool

	qmu   sync.Mutex
	queue []func()
	wake  chan struct{}
	stop  chan struct{}
	done  chan struct{}
}

// NewTokenIdentityProvider starts a provider in the signed-out state.
func NewTokenIdentityProvider(tokens *JWTManager, log *zap.Logger) *TokenIdentityProvider {
	if log == nil {
		log = zap.NewNop()
	}
	p := &TokenIdentityProvider{
		tokens:    tokens,
		logger:    log,
		listeners: make(map[uint64]port.AuthStateListener),
		wake:      make(chan struct{}, 1),
		stop:      make(chan struct{}),
		done:      make(chan struct{}),
	}
	go p.run()
	return p
}

func (p *TokenIdentityProvider) run() {
	defer close(p.done)
	for {
		select {
		case <-p.wake:
			p.drain()
		case <-p.stop:
			p.drain()
			return
		}
	}
}

func (p *TokenIdentityProvider) drain() {
	for {
		p.qmu.Lock()
		batch := p.queue
		p.queue = nil
		p.qmu.Unlock()
		if len(batch) == 0 {
			return
		}
		for _, fn := range batch {
			fn()
		}
	}
}

func (p *TokenIdentityProvider) enqueue(fn func()) {
	p.qmu.Lock()
	p.queue = append(p.queue, fn)
	p.qmu.Unlock()
	select {
	case p.wake <- struct{}{}:
	default:
	}
}

// OnAuthStateChanged registers listener and schedules delivery of the current state to it.
func (p *TokenIdentityProvider) OnAuthStateChanged(listener port.AuthStateListener) port.Unsubscribe {
	if listener == nil {
		return func() {}
	}

	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return func() {}
	}
	p.nextID++
	id := p.nextID
	p.listeners[id] = listener
	current := p.current.Clone()
	p.enqueue(func() {
		if p.isRegistered(id) {
			listener(current, nil)
		}
	})
	p.mu.Unlock()

	var once sync.Once
	return func() {
		once.Do(func() {
			p.mu.Lock()
			delete(p.listeners, id)
			p.mu.Unlock()
		})
	}
}

func (p *TokenIdentityProvider) isRegistered(id uint64) bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	_, ok := p.listeners[id]
	return ok
}

// CurrentIdentity returns a copy of the signed-in identity, nil when signed out.
func (p *TokenIdentityProvider) CurrentIdentity() *domain.Identity {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.current.Clone()
}

// SignIn verifies token and switches to its identity. Signing in again as the same uid is not a
// transition and produces no notification.
func (p *TokenIdentityProvider) SignIn(token string) (*domain.Identity, error) {
	identity, err := p.tokens.ParseIdentityToken(token)
	if err != nil {
		return nil, err
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return nil, ErrProviderClosed
	}
	if p.current != nil && p.current.UID == identity.UID {
		p.current = identity
		return identity.Clone(), nil
	}
	p.current = identity
	p.broadcastLocked(identity.Clone())

	p.logger.Info("identity signed in",
		zap.String("uid", identity.UID),
		zap.String("email", logger.MaskEmail(identity.Email)),
		zap.Strings("roles", identity.Roles),
	)
	return identity.Clone(), nil
}

// SignInNonBlocking verifies and applies token in the background. Failures are logged; the
// outcome is observable through OnAuthStateChanged.
func (p *TokenIdentityProvider) SignInNonBlocking(token string) {
	go func() {
		if _, err := p.SignIn(token); err != nil {
			p.logger.Warn("background sign-in failed", zap.Error(err))
		}
	}()
}

// SignOut clears the identity. Signing out while signed out is a no-op.
func (p *TokenIdentityProvider) SignOut() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed || p.current == nil {
		return
	}
	uid := p.current.UID
	p.current = nil
	p.broadcastLocked(nil)
	p.logger.Info("identity signed out", zap.String("uid", uid))
}

func (p *TokenIdentityProvider) broadcastLocked(identity *domain.Identity) {
	ids := make([]uint64, 0, len(p.listeners))
	for id := range p.listeners {
		ids = append(ids, id)
	}
	p.enqueue(func() {
		for _, id := range ids {
			p.mu.Lock()
			listener, ok := p.listeners[id]
			p.mu.Unlock()
			if ok {
				listener(identity.Clone(), nil)
			}
		}
	})
}

// Close stops delivery. Pending notifications are flushed first.
func (p *TokenIdentityProvider) Close() {
	p.mu.Lock()
	if p.closed {
		p.mu.Unlock()
		return
	}
	p.closed = true
	p.mu.Unlock()
	close(p.stop)
	<-p.done
}

var (
	_ port.IdentityProvider = (*TokenIdentityProvider)(nil)
	_ port.IdentitySource   = (*TokenIdentityProvider)(nil)
)
