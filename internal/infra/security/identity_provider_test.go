package security

import (
	"testing"
	"time"

	"go.uber.org/zap/zaptest"

	"github.com/abelngansop-dot/studio-sub000/internal/core/domain"
)

type authEvent struct {
	identity *domain.Identity
	err      error
}

func collectAuthEvents(p *TokenIdentityProvider) (<-chan authEvent, func()) {
	events := make(chan authEvent, 16)
	unsubscribe := p.OnAuthStateChanged(func(identity *domain.Identity, err error) {
		events <- authEvent{identity: identity, err: err}
	})
	return events, unsubscribe
}

func nextAuthEvent(t *testing.T, events <-chan authEvent) authEvent {
	t.Helper()
	select {
	case ev := <-events:
		return ev
	case <-time.After(2 * time.Second):
		t.Fatalf("timed out waiting for auth event")
		return authEvent{}
	}
}

func expectNoAuthEvent(t *testing.T, events <-chan authEvent) {
	t.Helper()
	select {
	case ev := <-events:
		t.Fatalf("unexpected auth event: %+v", ev)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestTokenIdentityProviderTransitions(t *testing.T) {
	mgr, kid := newTestManager(t)
	provider := NewTokenIdentityProvider(mgr, zaptest.NewLogger(t))
	defer provider.Close()

	events, unsubscribe := collectAuthEvents(provider)
	defer unsubscribe()

	if initial := nextAuthEvent(t, events); initial.identity != nil {
		t.Fatalf("expected signed-out initial state, got %+v", initial.identity)
	}

	token := signToken(t, mgr, kid, IdentityTokenOptions{UID: "user-7"})
	if _, err := provider.SignIn(token); err != nil {
		t.Fatalf("SignIn returned error: %v", err)
	}
	if ev := nextAuthEvent(t, events); ev.identity == nil || ev.identity.UID != "user-7" {
		t.Fatalf("expected user-7, got %+v", ev.identity)
	}

	if _, err := provider.SignIn(token); err != nil {
		t.Fatalf("repeated SignIn returned error: %v", err)
	}
	expectNoAuthEvent(t, events)

	provider.SignOut()
	provider.SignOut()
	if ev := nextAuthEvent(t, events); ev.identity != nil {
		t.Fatalf("expected sign-out event, got %+v", ev.identity)
	}
	expectNoAuthEvent(t, events)

	if provider.CurrentIdentity() != nil {
		t.Fatalf("expected no current identity after sign-out")
	}
}

func TestTokenIdentityProviderRejectsInvalidToken(t *testing.T) {
	mgr, _ := newTestManager(t)
	provider := NewTokenIdentityProvider(mgr, zaptest.NewLogger(t))
	defer provider.Close()

	events, unsubscribe := collectAuthEvents(provider)
	defer unsubscribe()
	nextAuthEvent(t, events)

	if _, err := provider.SignIn("not-a-token"); err == nil {
		t.Fatalf("expected error for malformed token")
	}
	expectNoAuthEvent(t, events)
}

func TestTokenIdentityProviderUnsubscribeStopsDelivery(t *testing.T) {
	mgr, kid := newTestManager(t)
	provider := NewTokenIdentityProvider(mgr, zaptest.NewLogger(t))
	defer provider.Close()

	events, unsubscribe := collectAuthEvents(provider)
	nextAuthEvent(t, events)
	unsubscribe()

	token := signToken(t, mgr, kid, IdentityTokenOptions{UID: "user-8"})
	if _, err := provider.SignIn(token); err != nil {
		t.Fatalf("SignIn returned error: %v", err)
	}
	expectNoAuthEvent(t, events)
}
