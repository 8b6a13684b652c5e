package handlers

import (
	"net/http"
	"testing"
)

func TestIdentityReportsTheCaller(t *testing.T) {
	env := newTestEnv(t, true)

	rr := env.do(t, http.MethodGet, "/api/v1/identity", nil)
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200, got %d", rr.Code)
	}
	if state := decode[IdentityStateResponse](t, rr); state.Identity != nil || state.IsLoading {
		t.Fatalf("expected visitor state, got %+v", state)
	}

	rr = env.doAs(t, env.token(t, "staff-7", "staff"), http.MethodGet, "/api/v1/identity", nil)
	if state := decode[IdentityStateResponse](t, rr); state.Identity == nil || state.Identity.UID != "staff-7" {
		t.Fatalf("expected caller staff-7, got %+v", state)
	}
	if env.identity.CurrentIdentity() != nil {
		t.Fatalf("expected reading the caller identity to leave the service identity signed out")
	}

	if rr := env.doAs(t, "forged", http.MethodGet, "/api/v1/identity", nil); rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401 for an unverifiable token, got %d", rr.Code)
	}
}

func TestServiceRoutesRequireAdmin(t *testing.T) {
	env := newTestEnv(t, true)
	staff := env.token(t, "staff-7", "staff")

	cases := []struct {
		method string
		target string
		body   any
	}{
		{method: http.MethodGet, target: "/api/v1/service/identity"},
		{method: http.MethodPost, target: "/api/v1/service/session", body: SignInRequest{Token: staff}},
		{method: http.MethodDelete, target: "/api/v1/service/session"},
	}
	for _, tc := range cases {
		if rr := env.do(t, tc.method, tc.target, tc.body); rr.Code != http.StatusUnauthorized {
			t.Fatalf("%s %s as visitor: expected 401, got %d", tc.method, tc.target, rr.Code)
		}
		if rr := env.doAs(t, staff, tc.method, tc.target, tc.body); rr.Code != http.StatusForbidden {
			t.Fatalf("%s %s as staff: expected 403, got %d", tc.method, tc.target, rr.Code)
		}
	}
	if env.identity.CurrentIdentity() != nil {
		t.Fatalf("expected service identity untouched by rejected calls")
	}
}

func TestServiceIdentitySignInThenOut(t *testing.T) {
	env := newTestEnv(t, true)
	admin := env.adminToken(t)

	waitFor(t, "initial auth state", func() bool {
		return !env.services.IdentityState().IsLoading
	})

	rr := env.doAs(t, admin, http.MethodGet, "/api/v1/service/identity", nil)
	if state := decode[IdentityStateResponse](t, rr); state.Identity != nil || state.IsLoading {
		t.Fatalf("expected signed-out settled state, got %+v", state)
	}

	rr = env.doAs(t, admin, http.MethodPost, "/api/v1/service/session", SignInRequest{Token: env.token(t, "svc-1", "staff")})
	if rr.Code != http.StatusOK {
		t.Fatalf("expected 200 from sign-in, got %d: %s", rr.Code, rr.Body.String())
	}
	if summary := decode[IdentitySummary](t, rr); summary.UID != "svc-1" {
		t.Fatalf("expected uid svc-1, got %+v", summary)
	}

	waitFor(t, "service identity state to follow sign-in", func() bool {
		state := decode[IdentityStateResponse](t, env.doAs(t, admin, http.MethodGet, "/api/v1/service/identity", nil))
		return state.Identity != nil && state.Identity.UID == "svc-1"
	})

	if rr := env.doAs(t, admin, http.MethodDelete, "/api/v1/service/session", nil); rr.Code != http.StatusNoContent {
		t.Fatalf("expected 204 from sign-out, got %d", rr.Code)
	}
	if env.identity.CurrentIdentity() != nil {
		t.Fatalf("expected identity cleared after sign-out")
	}
}

func TestServiceIdentityBackgroundSignIn(t *testing.T) {
	env := newTestEnv(t, true)

	rr := env.doAs(t, env.adminToken(t), http.MethodPost, "/api/v1/service/session",
		SignInRequest{Token: env.token(t, "svc-2"), Background: true})
	if rr.Code != http.StatusAccepted {
		t.Fatalf("expected 202 from background sign-in, got %d: %s", rr.Code, rr.Body.String())
	}

	waitFor(t, "background sign-in", func() bool {
		current := env.identity.CurrentIdentity()
		return current != nil && current.UID == "svc-2"
	})
}

func TestSignInRejectsInvalidToken(t *testing.T) {
	env := newTestEnv(t, true)
	admin := env.adminToken(t)

	rr := env.doAs(t, admin, http.MethodPost, "/api/v1/service/session", SignInRequest{Token: "not-a-token"})
	if rr.Code != http.StatusUnauthorized {
		t.Fatalf("expected 401, got %d", rr.Code)
	}

	rr = env.doAs(t, admin, http.MethodPost, "/api/v1/service/session", map[string]string{})
	if rr.Code != http.StatusBadRequest {
		t.Fatalf("expected 400 for missing token, got %d", rr.Code)
	}
}
