package security

import (
	"errors"
	"testing"

	"github.com/abelngansop-dot/studio-sub000/internal/core/domain"
)

func TestDefaultAccessPolicy(t *testing.T) {
	policy := DefaultAccessPolicy()

	admin := &domain.Identity{UID: "admin-1", Roles: []string{AdminRole}}
	owner := &domain.Identity{UID: "42"}

	cases := []struct {
		name     string
		identity *domain.Identity
		op       domain.Operation
		path     string
		allowed  bool
	}{
		{"visitor reads services", nil, domain.OperationList, "services", true},
		{"visitor creates booking", nil, domain.OperationCreate, "bookings", true},
		{"visitor lists bookings", nil, domain.OperationList, "bookings", false},
		{"visitor uploads gallery", nil, domain.OperationCreate, "gallery", false},
		{"admin deletes booking", admin, domain.OperationDelete, "bookings/b1", true},
		{"owner reads own profile", owner, domain.OperationGet, "users/42", true},
		{"owner reads other profile", owner, domain.OperationGet, "users/43", false},
		{"owner lists users", owner, domain.OperationList, "users", false},
		{"unknown collection defaults to admin", owner, domain.OperationGet, "audit/1", false},
		{"admin on unknown collection", admin, domain.OperationGet, "audit/1", true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := policy.Authorize(tc.identity, tc.op, tc.path, nil)
			if tc.allowed && err != nil {
				t.Fatalf("expected access, got %v", err)
			}
			if !tc.allowed && !errors.Is(err, domain.ErrPermissionDenied) {
				t.Fatalf("expected ErrPermissionDenied, got %v", err)
			}
		})
	}
}

func TestAccessPolicyConditions(t *testing.T) {
	policy := DefaultAccessPolicy()
	if err := policy.Validate(); err != nil {
		t.Fatalf("default policy should compile: %v", err)
	}

	admin := &domain.Identity{UID: "admin-1", Roles: []string{AdminRole}}
	owner := &domain.Identity{UID: "42"}

	cases := []struct {
		name     string
		identity *domain.Identity
		op       domain.Operation
		path     string
		payload  map[string]any
		allowed  bool
	}{
		{"visitor submits pending booking", nil, domain.OperationCreate, "bookings", map[string]any{"status": "pending"}, true},
		{"visitor submits booking without status", nil, domain.OperationCreate, "bookings", map[string]any{"name": "Ada"}, true},
		{"visitor submits confirmed booking", nil, domain.OperationCreate, "bookings", map[string]any{"status": "confirmed"}, false},
		{"admin confirms booking", admin, domain.OperationUpdate, "bookings/b1", map[string]any{"status": "confirmed"}, true},
		{"owner renames profile", owner, domain.OperationUpdate, "users/42", map[string]any{"name": "Ada"}, true},
		{"owner grants own roles", owner, domain.OperationUpdate, "users/42", map[string]any{"roles": []any{"admin"}}, false},
		{"owner deletes profile still denied by level", owner, domain.OperationDelete, "users/42", nil, false},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			err := policy.Authorize(tc.identity, tc.op, tc.path, tc.payload)
			if tc.allowed && err != nil {
				t.Fatalf("expected access, got %v", err)
			}
			if !tc.allowed && !errors.Is(err, domain.ErrPermissionDenied) {
				t.Fatalf("expected ErrPermissionDenied, got %v", err)
			}
		})
	}
}

func TestAccessPolicyInvalidConditionDeniesWrites(t *testing.T) {
	policy := NewAccessPolicy(CollectionRule{
		Collection: "notes",
		Read:       AccessPublic,
		Create:     AccessPublic,
		Update:     AccessPublic,
		Delete:     AccessPublic,
		Condition:  `data.title +`,
	})

	if err := policy.Validate(); err == nil {
		t.Fatal("expected compile error from Validate")
	}
	if err := policy.Authorize(nil, domain.OperationCreate, "notes", map[string]any{"title": "x"}); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
	if err := policy.Authorize(nil, domain.OperationGet, "notes/n1", nil); err != nil {
		t.Fatalf("reads should not evaluate the condition, got %v", err)
	}
}

func TestAccessPolicyConditionSeesIdentity(t *testing.T) {
	policy := NewAccessPolicy(CollectionRule{
		Collection: "messages",
		Read:       AccessSignedIn,
		Create:     AccessSignedIn,
		Update:     AccessNobody,
		Delete:     AccessNobody,
		Condition:  `auth != null && data.author == auth.uid`,
	})
	user := &domain.Identity{UID: "u1"}

	if err := policy.Authorize(user, domain.OperationCreate, "messages", map[string]any{"author": "u1"}); err != nil {
		t.Fatalf("expected access, got %v", err)
	}
	if err := policy.Authorize(user, domain.OperationCreate, "messages", map[string]any{"author": "u2"}); !errors.Is(err, domain.ErrPermissionDenied) {
		t.Fatalf("expected ErrPermissionDenied, got %v", err)
	}
}
