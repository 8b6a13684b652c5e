package domain

import (
	"encoding/json"
	"fmt"
	"reflect"
	"sort"
	"strings"
	"time"
)

// Apply filters, sorts and limits records according to the query. Records missing a field the
// query orders by are excluded. Input order is preserved among records that compare equal, so
// unsorted queries keep insertion order.
func (q *Query) Apply(records []Record) []Record {
	orders := q.Orders()
	out := make([]Record, 0, len(records))
	for _, r := range records {
		if q.Matches(r) && hasOrderFields(r, orders) {
			out = append(out, r.Clone())
		}
	}

	if len(orders) > 0 {
		sort.SliceStable(out, func(i, j int) bool {
			for _, o := range orders {
				a, _ := out[i].Get(o.Field)
				b, _ := out[j].Get(o.Field)
				c := compareValues(a, b)
				if c == 0 {
					continue
				}
				if o.Direction == Desc {
					return c > 0
				}
				return c < 0
			}
			return false
		})
	}

	if limit := q.LimitValue(); limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out
}

// Matches reports whether record satisfies every filter clause.
func (q *Query) Matches(record Record) bool {
	for _, f := range q.Filters() {
		value, present := record.Get(f.Field)
		if !matchFilter(f, value, present) {
			return false
		}
	}
	return true
}

func hasOrderFields(record Record, orders []Order) bool {
	for _, o := range orders {
		if _, present := record.Get(o.Field); !present {
			return false
		}
	}
	return true
}

func matchFilter(f Filter, value any, present bool) bool {
	switch f.Op {
	case OpEqual:
		return present && compareValues(value, f.Value) == 0
	case OpNotEqual:
		return present && compareValues(value, f.Value) != 0
	case OpLess:
		return present && orderable(value, f.Value) && compareValues(value, f.Value) < 0
	case OpLessOrEqual:
		return present && orderable(value, f.Value) && compareValues(value, f.Value) <= 0
	case OpGreater:
		return present && orderable(value, f.Value) && compareValues(value, f.Value) > 0
	case OpGreaterOrEqual:
		return present && orderable(value, f.Value) && compareValues(value, f.Value) >= 0
	case OpIn:
		if !present {
			return false
		}
		for _, candidate := range toSlice(f.Value) {
			if compareValues(value, candidate) == 0 {
				return true
			}
		}
		return false
	case OpArrayContains:
		if !present {
			return false
		}
		for _, element := range toSlice(value) {
			if compareValues(element, f.Value) == 0 {
				return true
			}
		}
		return false
	default:
		return false
	}
}

// value classes order mixed types the same way regardless of input order
const (
	classNull = iota
	classBool
	classNumber
	classTime
	classString
	classOther
)

func classify(v any) (int, any) {
	switch t := v.(type) {
	case nil:
		return classNull, nil
	case bool:
		return classBool, t
	case string:
		return classString, t
	case time.Time:
		return classTime, t
	case *time.Time:
		if t == nil {
			return classNull, nil
		}
		return classTime, *t
	}
	if n, ok := toFloat(v); ok {
		return classNumber, n
	}
	return classOther, v
}

func orderable(a, b any) bool {
	ca, _ := classify(a)
	cb, _ := classify(b)
	return ca == cb && ca != classOther
}

func compareValues(a, b any) int {
	ca, va := classify(a)
	cb, vb := classify(b)
	if ca != cb {
		if ca < cb {
			return -1
		}
		return 1
	}

	switch ca {
	case classNull:
		return 0
	case classBool:
		x, y := va.(bool), vb.(bool)
		switch {
		case x == y:
			return 0
		case !x:
			return -1
		default:
			return 1
		}
	case classNumber:
		x, y := va.(float64), vb.(float64)
		switch {
		case x < y:
			return -1
		case x > y:
			return 1
		default:
			return 0
		}
	case classTime:
		return va.(time.Time).Compare(vb.(time.Time))
	case classString:
		return strings.Compare(va.(string), vb.(string))
	default:
		return compareOther(va, vb)
	}
}

// compareOther orders maps, slices and other composite values by their JSON encoding, then by
// type name, so the order is total and does not depend on argument order.
func compareOther(a, b any) int {
	if reflect.DeepEqual(a, b) {
		return 0
	}
	if c := strings.Compare(encodeForOrder(a), encodeForOrder(b)); c != 0 {
		return c
	}
	return strings.Compare(reflect.TypeOf(a).String(), reflect.TypeOf(b).String())
}

func encodeForOrder(v any) string {
	raw, err := json.Marshal(v)
	if err != nil {
		return fmt.Sprintf("%#v", v)
	}
	return string(raw)
}

func toFloat(v any) (float64, bool) {
	switch n := v.(type) {
	case int:
		return float64(n), true
	case int8:
		return float64(n), true
	case int16:
		return float64(n), true
	case int32:
		return float64(n), true
	case int64:
		return float64(n), true
	case uint:
		return float64(n), true
	case uint8:
		return float64(n), true
	case uint16:
		return float64(n), true
	case uint32:
		return float64(n), true
	case uint64:
		return float64(n), true
	case float32:
		return float64(n), true
	case float64:
		return n, true
	case json.Number:
		f, err := n.Float64()
		return f, err == nil
	default:
		return 0, false
	}
}

func toSlice(v any) []any {
	switch t := v.(type) {
	case []any:
		return t
	case nil:
		return nil
	}
	rv := reflect.ValueOf(v)
	if rv.Kind() != reflect.Slice && rv.Kind() != reflect.Array {
		return nil
	}
	out := make([]any, rv.Len())
	for i := 0; i < rv.Len(); i++ {
		out[i] = rv.Index(i).Interface()
	}
	return out
}
