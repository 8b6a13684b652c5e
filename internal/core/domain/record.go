package domain

import "time"

// Record is a single stored document: its identity plus arbitrary structured fields.
type Record struct {
	ID     string
	Fields map[string]any
}

// NewRecord copies fields into a new record.
func NewRecord(id string, fields map[string]any) Record {
	return Record{ID: id, Fields: CloneFields(fields)}
}

// Data returns the record's fields with the id merged in under "id".
func (r Record) Data() map[string]any {
	out := make(map[string]any, len(r.Fields)+1)
	for k, v := range r.Fields {
		out[k] = v
	}
	out["id"] = r.ID
	return out
}

// Get returns a field value.
func (r Record) Get(field string) (any, bool) {
	if field == "id" {
		return r.ID, true
	}
	v, ok := r.Fields[field]
	return v, ok
}

// Clone returns a deep copy of the record.
func (r Record) Clone() Record {
	return Record{ID: r.ID, Fields: CloneFields(r.Fields)}
}

// CloneFields deep-copies nested maps and slices so callers cannot mutate stored state.
func CloneFields(fields map[string]any) map[string]any {
	if fields == nil {
		return nil
	}
	out := make(map[string]any, len(fields))
	for k, v := range fields {
		out[k] = cloneValue(v)
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return CloneFields(t)
	case []any:
		cp := make([]any, len(t))
		for i := range t {
			cp[i] = cloneValue(t[i])
		}
		return cp
	case []string:
		return append([]string(nil), t...)
	case time.Time:
		return t
	default:
		return v
	}
}

// MergeFields overlays patch onto base, recursing into nested maps. Neither input is modified.
func MergeFields(base, patch map[string]any) map[string]any {
	out := CloneFields(base)
	if out == nil {
		out = make(map[string]any, len(patch))
	}
	for k, v := range patch {
		if nested, ok := v.(map[string]any); ok {
			if existing, ok := out[k].(map[string]any); ok {
				out[k] = MergeFields(existing, nested)
				continue
			}
		}
		out[k] = cloneValue(v)
	}
	return out
}
