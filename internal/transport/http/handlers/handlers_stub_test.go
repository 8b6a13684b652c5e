package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap/zaptest"

	"github.com/abelngansop-dot/studio-sub000/internal/core/domain"
	"github.com/abelngansop-dot/studio-sub000/internal/core/port"
	"github.com/abelngansop-dot/studio-sub000/internal/infra/errorbus"
	"github.com/abelngansop-dot/studio-sub000/internal/infra/security"
	"github.com/abelngansop-dot/studio-sub000/internal/repository/memory"
	"github.com/abelngansop-dot/studio-sub000/internal/transport/http/middleware"
	"github.com/abelngansop-dot/studio-sub000/internal/usecase"
)

var testAdmin = &domain.Identity{UID: "admin-1", Roles: []string{security.AdminRole}}

type testEnv struct {
	router   *gin.Engine
	services *usecase.ServiceProvider
	identity *security.TokenIdentityProvider
	tokens   *security.JWTManager
	kid      string
	store    *memory.Store
	feed     *usecase.ToastFeed
}

func newTestEnv(t *testing.T, start bool) *testEnv {
	t.Helper()
	gin.SetMode(gin.TestMode)
	log := zaptest.NewLogger(t)

	keys, err := security.NewStaticKeyProvider("handlers-test")
	if err != nil {
		t.Fatalf("NewStaticKeyProvider: %v", err)
	}
	tokens := security.NewJWTManager(keys, "studio", "studio-admin")
	identity := security.NewTokenIdentityProvider(tokens, log)
	t.Cleanup(identity.Close)

	store := memory.NewStore(
		memory.WithAccessPolicy(security.DefaultAccessPolicy()),
		memory.WithIdentitySource(identity),
		memory.WithLogger(log),
	)
	bus := errorbus.New(log)
	feed := usecase.NewToastFeed(10)
	listener := usecase.NewErrorListener(bus, feed, log)
	listener.Mount()
	t.Cleanup(listener.Unmount)

	services, err := usecase.NewServiceProvider(usecase.ProviderConfig{
		Store:        store,
		Identity:     identity,
		Bus:          bus,
		Logger:       log,
		WriteTimeout: time.Second,
	})
	if err != nil {
		t.Fatalf("NewServiceProvider: %v", err)
	}
	if start {
		services.Start()
	}
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), time.Second)
		defer cancel()
		_ = services.Close(ctx)
	})

	router := gin.New()
	router.Use(middleware.EnrichContext())
	api := router.Group("/api/v1")
	api.Use(middleware.Authenticate(tokens))

	sessionHandler := NewSessionHandler(identity, services)
	sessionHandler.RegisterRoutes(api)
	serviceGroup := api.Group("/service")
	serviceGroup.Use(middleware.RequireIdentity(false), middleware.RequireRole(security.AdminRole))
	sessionHandler.RegisterServiceRoutes(serviceGroup)

	notificationGroup := api.Group("/notifications")
	notificationGroup.Use(middleware.RequireIdentity(false))
	NewNotificationHandler(feed).RegisterRoutes(notificationGroup, middleware.RequireRole(security.AdminRole))

	NewDocumentHandler(services).RegisterRoutes(api.Group("/collections"))
	NewWatchHandler(services).RegisterRoutes(api.Group("/watch"))

	return &testEnv{
		router:   router,
		services: services,
		identity: identity,
		tokens:   tokens,
		kid:      keys.SigningKeyID(),
		store:    store,
		feed:     feed,
	}
}

func (e *testEnv) token(t *testing.T, uid string, roles ...string) string {
	t.Helper()
	claims, err := e.tokens.NewIdentityClaims(security.IdentityTokenOptions{UID: uid, Roles: roles})
	if err != nil {
		t.Fatalf("NewIdentityClaims: %v", err)
	}
	token, err := e.tokens.SignIdentityToken(e.kid, claims)
	if err != nil {
		t.Fatalf("SignIdentityToken: %v", err)
	}
	return token
}

func (e *testEnv) adminToken(t *testing.T) string {
	t.Helper()
	return e.token(t, testAdmin.UID, testAdmin.Roles...)
}

// seed writes through the store as the test administrator.
func (e *testEnv) seed(t *testing.T, ref *domain.DocumentRef, fields map[string]any) {
	t.Helper()
	if err := e.asAdmin().Set(context.Background(), ref, fields, false); err != nil {
		t.Fatalf("seed %s: %v", ref.Path(), err)
	}
}

func (e *testEnv) asAdmin() port.DocumentStore {
	return e.store.As(testAdmin)
}

// do sends a request without credentials.
func (e *testEnv) do(t *testing.T, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	return e.doAs(t, "", method, target, body)
}

// doAs sends a request carrying token as its bearer credential.
func (e *testEnv) doAs(t *testing.T, token, method, target string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		raw, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(raw)
	} else {
		reader = bytes.NewReader(nil)
	}

	req := httptest.NewRequest(method, target, reader)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	rr := httptest.NewRecorder()
	e.router.ServeHTTP(rr, req)
	return rr
}

func decode[T any](t *testing.T, rr *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	if err := json.Unmarshal(rr.Body.Bytes(), &out); err != nil {
		t.Fatalf("decode response %q: %v", rr.Body.String(), err)
	}
	return out
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func drainWrites(t *testing.T, services *usecase.ServiceProvider) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := services.Writer().Drain(ctx); err != nil {
		t.Fatalf("Drain: %v", err)
	}
}
