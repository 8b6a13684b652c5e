package domain

import (
	"errors"
	"fmt"
	"strings"
	"sync/atomic"
)

// ErrInvalidReference indicates a reference was built from an empty or malformed path.
var ErrInvalidReference = errors.New("domain: invalid reference")

// Ref is implemented by every addressable target in the document store.
type Ref interface {
	Path() string
	MarkMemoized()
	Memoized() bool
}

// IsMemoized reports whether ref was produced through a memoizer. A nil ref is never memoized.
func IsMemoized(ref Ref) bool {
	if ref == nil {
		return false
	}
	return ref.Memoized()
}

// DocumentRef addresses a single document. It is immutable once constructed.
type DocumentRef struct {
	collection string
	id         string
	memoized   atomic.Bool
}

// Doc builds a reference to the document id inside collection.
func Doc(collection, id string) *DocumentRef {
	return &DocumentRef{
		collection: strings.Trim(strings.TrimSpace(collection), "/"),
		id:         strings.TrimSpace(id),
	}
}

// ParseDocPath builds a document reference from a "collection/id" path.
func ParseDocPath(path string) (*DocumentRef, error) {
	path = strings.Trim(strings.TrimSpace(path), "/")
	idx := strings.LastIndex(path, "/")
	if idx <= 0 || idx == len(path)-1 {
		return nil, fmt.Errorf("%w: %q", ErrInvalidReference, path)
	}
	return Doc(path[:idx], path[idx+1:]), nil
}

// Collection returns the owning collection name.
func (r *DocumentRef) Collection() string {
	if r == nil {
		return ""
	}
	return r.collection
}

// ID returns the document identifier.
func (r *DocumentRef) ID() string {
	if r == nil {
		return ""
	}
	return r.id
}

// Path returns "collection/id".
func (r *DocumentRef) Path() string {
	if r == nil {
		return ""
	}
	return r.collection + "/" + r.id
}

// Validate reports ErrInvalidReference for references missing a collection or id.
func (r *DocumentRef) Validate() error {
	if r == nil || r.collection == "" || r.id == "" {
		return fmt.Errorf("%w: %q", ErrInvalidReference, r.Path())
	}
	return nil
}

// MarkMemoized tags the reference as produced by a memoizer.
func (r *DocumentRef) MarkMemoized() {
	if r == nil {
		return
	}
	r.memoized.Store(true)
}

// Memoized reports whether MarkMemoized was called.
func (r *DocumentRef) Memoized() bool {
	return r != nil && r.memoized.Load()
}

func (r *DocumentRef) String() string { return r.Path() }
