package port

import "github.com/abelngansop-dot/studio-sub000/internal/core/domain"

// AuthStateListener receives the identity after each auth transition; identity is nil when
// signed out. err is non-nil when the provider failed to resolve the auth state.
type AuthStateListener func(identity *domain.Identity, err error)

// IdentityProvider emits exactly one notification per actual auth state transition.
// Implementations deliver the current state to new listeners once the initial state is known.
type IdentityProvider interface {
	OnAuthStateChanged(listener AuthStateListener) Unsubscribe
}
