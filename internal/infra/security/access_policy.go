package security

import (
	"errors"
	"fmt"
	"strings"

	"github.com/google/cel-go/cel"

	"github.com/abelngansop-dot/studio-sub000/internal/core/domain"
	"github.com/abelngansop-dot/studio-sub000/internal/core/port"
)

// Access is the audience allowed to perform an operation.
type Access string

const (
	AccessPublic   Access = "public"
	AccessSignedIn Access = "signed_in"
	AccessOwner    Access = "owner"
	AccessAdmin    Access = "admin"
	AccessNobody   Access = "nobody"
)

// AdminRole grants every Access level short of AccessNobody.
const AdminRole = "admin"

// CollectionRule lists the access level per operation for one collection. Read covers both get
// and list, except that AccessOwner never permits list.
type CollectionRule struct {
	Collection string
	Read       Access
	Create     Access
	Update     Access
	Delete     Access
	// Condition is an optional CEL expression that must also hold for non-admin creates and
	// updates. It sees auth (null for visitors), id and data (the written fields only).
	Condition string
}

func (r CollectionRule) accessFor(op domain.Operation) Access {
	switch op {
	case domain.OperationGet, domain.OperationList:
		return r.Read
	case domain.OperationCreate:
		return r.Create
	case domain.OperationUpdate:
		return r.Update
	case domain.OperationDelete:
		return r.Delete
	default:
		return AccessNobody
	}
}

// AccessPolicy evaluates store operations against per-collection rules. Collections without a
// rule fall back to admin-only access.
type AccessPolicy struct {
	rules      map[string]CollectionRule
	conditions map[string]cel.Program
	invalid    map[string]error
}

// NewAccessPolicy builds a policy from rules. Later rules for the same collection win. A rule
// whose condition fails to compile denies every non-admin write; Validate reports it.
func NewAccessPolicy(rules ...CollectionRule) *AccessPolicy {
	p := &AccessPolicy{
		rules:      make(map[string]CollectionRule, len(rules)),
		conditions: make(map[string]cel.Program),
		invalid:    make(map[string]error),
	}
	for _, rule := range rules {
		name := strings.TrimSpace(rule.Collection)
		p.rules[name] = rule
		delete(p.conditions, name)
		delete(p.invalid, name)
		if strings.TrimSpace(rule.Condition) == "" {
			continue
		}
		program, err := compileCondition(rule.Condition)
		if err != nil {
			p.invalid[name] = fmt.Errorf("rule %q: %w", name, err)
			continue
		}
		p.conditions[name] = program
	}
	return p
}

// Validate returns the compile errors of every rule condition.
func (p *AccessPolicy) Validate() error {
	errs := make([]error, 0, len(p.invalid))
	for _, err := range p.invalid {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// DefaultAccessPolicy mirrors the booking site: visitors read the catalogue and submit
// bookings, signed-in users manage their own profile, admins manage everything else.
func DefaultAccessPolicy() *AccessPolicy {
	catalogue := func(name string) CollectionRule {
		return CollectionRule{Collection: name, Read: AccessPublic, Create: AccessAdmin, Update: AccessAdmin, Delete: AccessAdmin}
	}
	return NewAccessPolicy(
		CollectionRule{
			Collection: "bookings",
			Read:       AccessAdmin,
			Create:     AccessPublic,
			Update:     AccessAdmin,
			Delete:     AccessAdmin,
			Condition:  `!has(data.status) || data.status == "pending"`,
		},
		CollectionRule{
			Collection: "users",
			Read:       AccessOwner,
			Create:     AccessOwner,
			Update:     AccessOwner,
			Delete:     AccessAdmin,
			Condition:  `!has(data.roles)`,
		},
		catalogue("services"),
		catalogue("gallery"),
		catalogue("testimonials"),
		catalogue("settings"),
	)
}

// Authorize returns an error matching domain.ErrPermissionDenied when identity may not perform
// op on path.
func (p *AccessPolicy) Authorize(identity *domain.Identity, op domain.Operation, path string, payload map[string]any) error {
	collection, docID := splitPath(path)

	rule, ok := p.rules[collection]
	if !ok {
		rule = CollectionRule{Collection: collection, Read: AccessAdmin, Create: AccessAdmin, Update: AccessAdmin, Delete: AccessAdmin}
	}

	if !allowed(rule.accessFor(op), identity, op, docID) {
		return fmt.Errorf("%w: %s on %s", domain.ErrPermissionDenied, op, path)
	}
	if identity.HasRole(AdminRole) || (op != domain.OperationCreate && op != domain.OperationUpdate) {
		return nil
	}
	if err, ok := p.invalid[collection]; ok {
		return fmt.Errorf("%w: %s on %s: %v", domain.ErrPermissionDenied, op, path, err)
	}
	program, ok := p.conditions[collection]
	if !ok {
		return nil
	}
	out, _, err := program.Eval(map[string]any{
		"auth": authVariable(identity),
		"id":   docID,
		"data": payload,
	})
	if err != nil {
		return fmt.Errorf("%w: %s on %s: condition: %v", domain.ErrPermissionDenied, op, path, err)
	}
	if pass, _ := out.Value().(bool); !pass {
		return fmt.Errorf("%w: %s on %s: condition not met", domain.ErrPermissionDenied, op, path)
	}
	return nil
}

func compileCondition(expression string) (cel.Program, error) {
	env, err := cel.NewEnv(
		cel.Variable("auth", cel.DynType),
		cel.Variable("id", cel.StringType),
		cel.Variable("data", cel.MapType(cel.StringType, cel.DynType)),
	)
	if err != nil {
		return nil, err
	}
	ast, issues := env.Compile(expression)
	if issues != nil && issues.Err() != nil {
		return nil, issues.Err()
	}
	if !ast.OutputType().IsExactType(cel.BoolType) {
		return nil, fmt.Errorf("condition must evaluate to bool, got %s", ast.OutputType())
	}
	return env.Program(ast)
}

func authVariable(identity *domain.Identity) any {
	if identity == nil {
		return nil
	}
	roles := identity.Roles
	if roles == nil {
		roles = []string{}
	}
	return map[string]any{
		"uid":       identity.UID,
		"email":     identity.Email,
		"anonymous": identity.Anonymous,
		"roles":     roles,
	}
}

func allowed(access Access, identity *domain.Identity, op domain.Operation, docID string) bool {
	if access == AccessNobody {
		return false
	}
	if identity.HasRole(AdminRole) {
		return true
	}
	switch access {
	case AccessPublic:
		return true
	case AccessSignedIn:
		return identity != nil && !identity.Anonymous
	case AccessOwner:
		return identity != nil && op != domain.OperationList && docID != "" && docID == identity.UID
	default:
		return false
	}
}

func splitPath(path string) (string, string) {
	path = strings.Trim(path, "/")
	if idx := strings.Index(path, "/"); idx >= 0 {
		return path[:idx], path[idx+1:]
	}
	return path, ""
}

var _ port.AccessPolicy = (*AccessPolicy)(nil)
