package port

import (
	"context"

	"github.com/abelngansop-dot/studio-sub000/internal/core/domain"
)

// Unsubscribe detaches a live listener. It is safe to call more than once.
type Unsubscribe func()

// DocumentSnapshot is the state of one document at emission time. Record is nil when the
// document does not exist.
type DocumentSnapshot struct {
	Ref    *domain.DocumentRef
	Record *domain.Record
}

// Exists reports whether the document was present.
func (s DocumentSnapshot) Exists() bool {
	return s.Record != nil
}

// DocumentStore is the remote document database the synchronization layer is built on.
// Listener callbacks run on store-owned goroutines; for a single listener they are invoked
// sequentially in the order the store produces them. Access-rule rejections are reported with
// errors matching domain.ErrPermissionDenied.
type DocumentStore interface {
	SubscribeDocument(ref *domain.DocumentRef, onNext func(DocumentSnapshot), onError func(error)) Unsubscribe
	SubscribeQuery(query *domain.Query, onNext func([]domain.Record), onError func(error)) Unsubscribe

	Get(ctx context.Context, ref *domain.DocumentRef) (*domain.Record, error)
	List(ctx context.Context, query *domain.Query) ([]domain.Record, error)
	Add(ctx context.Context, collection *domain.Query, fields map[string]any) (*domain.DocumentRef, error)
	Set(ctx context.Context, ref *domain.DocumentRef, fields map[string]any, merge bool) error
	Update(ctx context.Context, ref *domain.DocumentRef, fields map[string]any) error
	Delete(ctx context.Context, ref *domain.DocumentRef) error
}

// ScopedStore is a DocumentStore that can evaluate access rules as a given identity instead of
// the process-wide one. Views returned by As share data and listeners with the parent store.
type ScopedStore interface {
	DocumentStore
	As(identity *domain.Identity) DocumentStore
}

// AccessPolicy decides whether the identity may perform op on path.
type AccessPolicy interface {
	Authorize(identity *domain.Identity, op domain.Operation, path string, payload map[string]any) error
}

// IdentitySource exposes the identity that store operations are evaluated against.
type IdentitySource interface {
	CurrentIdentity() *domain.Identity
}

// FixedIdentity is an IdentitySource that always reports the same identity. A nil identity is a
// signed-out visitor.
type FixedIdentity struct {
	Identity *domain.Identity
}

// CurrentIdentity returns a copy of the fixed identity.
func (f FixedIdentity) CurrentIdentity() *domain.Identity {
	return f.Identity.Clone()
}
