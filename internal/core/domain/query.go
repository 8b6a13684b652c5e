package domain

import (
	"fmt"
	"strings"
	"sync/atomic"
)

// FilterOp enumerates the supported comparison operators.
type FilterOp string

const (
	OpEqual          FilterOp = "=="
	OpNotEqual       FilterOp = "!="
	OpLess           FilterOp = "<"
	OpLessOrEqual    FilterOp = "<="
	OpGreater        FilterOp = ">"
	OpGreaterOrEqual FilterOp = ">="
	OpIn             FilterOp = "in"
	OpArrayContains  FilterOp = "array-contains"
)

// Direction controls sort order of an OrderBy clause.
type Direction string

const (
	Asc  Direction = "asc"
	Desc Direction = "desc"
)

// Filter restricts query results to records whose Field satisfies Op against Value.
type Filter struct {
	Field string
	Op    FilterOp
	Value any
}

// Order sorts query results by Field.
type Order struct {
	Field     string
	Direction Direction
}

// Query addresses a collection, optionally narrowed by filters, ordering and a limit.
// Builder methods return a new Query; the receiver is never modified.
type Query struct {
	collection string
	filters    []Filter
	orders     []Order
	limit      int
	memoized   atomic.Bool
}

// Collection builds an unfiltered query over the named collection. It also serves as the
// collection reference for inserts.
func Collection(name string) *Query {
	return &Query{collection: strings.Trim(strings.TrimSpace(name), "/")}
}

func (q *Query) derive() *Query {
	return &Query{
		collection: q.collection,
		filters:    append([]Filter(nil), q.filters...),
		orders:     append([]Order(nil), q.orders...),
		limit:      q.limit,
	}
}

// Where appends a filter clause.
func (q *Query) Where(field string, op FilterOp, value any) *Query {
	next := q.derive()
	next.filters = append(next.filters, Filter{Field: field, Op: op, Value: value})
	return next
}

// OrderBy appends a sort clause. An empty direction sorts ascending.
func (q *Query) OrderBy(field string, dir Direction) *Query {
	if dir == "" {
		dir = Asc
	}
	next := q.derive()
	next.orders = append(next.orders, Order{Field: field, Direction: dir})
	return next
}

// Limit caps the number of results; n <= 0 removes the cap.
func (q *Query) Limit(n int) *Query {
	next := q.derive()
	if n < 0 {
		n = 0
	}
	next.limit = n
	return next
}

// CollectionName returns the queried collection.
func (q *Query) CollectionName() string {
	if q == nil {
		return ""
	}
	return q.collection
}

// Filters returns a copy of the filter clauses.
func (q *Query) Filters() []Filter {
	if q == nil {
		return nil
	}
	return append([]Filter(nil), q.filters...)
}

// Orders returns a copy of the sort clauses.
func (q *Query) Orders() []Order {
	if q == nil {
		return nil
	}
	return append([]Order(nil), q.orders...)
}

// LimitValue returns the configured limit, 0 meaning unlimited.
func (q *Query) LimitValue() int {
	if q == nil {
		return 0
	}
	return q.limit
}

// Path returns the collection path. Clauses are not part of the path.
func (q *Query) Path() string {
	if q == nil {
		return ""
	}
	return q.collection
}

// Doc returns a reference to the document id inside the queried collection.
func (q *Query) Doc(id string) *DocumentRef {
	return Doc(q.CollectionName(), id)
}

// Validate reports ErrInvalidReference when the collection name is empty or nested.
func (q *Query) Validate() error {
	if q == nil || q.collection == "" {
		return fmt.Errorf("%w: empty collection", ErrInvalidReference)
	}
	for _, f := range q.filters {
		if strings.TrimSpace(f.Field) == "" {
			return fmt.Errorf("%w: filter without field on %s", ErrInvalidReference, q.collection)
		}
	}
	return nil
}

// MarkMemoized tags the query as produced by a memoizer.
func (q *Query) MarkMemoized() {
	if q == nil {
		return
	}
	q.memoized.Store(true)
}

// Memoized reports whether MarkMemoized was called.
func (q *Query) Memoized() bool {
	return q != nil && q.memoized.Load()
}

func (q *Query) String() string {
	if q == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString(q.collection)
	for _, f := range q.filters {
		fmt.Fprintf(&b, " where %s %s %v", f.Field, f.Op, f.Value)
	}
	for _, o := range q.orders {
		fmt.Fprintf(&b, " order by %s %s", o.Field, o.Direction)
	}
	if q.limit > 0 {
		fmt.Fprintf(&b, " limit %d", q.limit)
	}
	return b.String()
}
