package handlers

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/abelngansop-dot/studio-sub000/internal/core/domain"
)

var knownOps = map[domain.FilterOp]bool{
	domain.OpEqual:          true,
	domain.OpNotEqual:       true,
	domain.OpLess:           true,
	domain.OpLessOrEqual:    true,
	domain.OpGreater:        true,
	domain.OpGreaterOrEqual: true,
	domain.OpIn:             true,
	domain.OpArrayContains:  true,
}

// parseQuery builds a query over collection from URL parameters:
//
//	where=field:op:value   (repeatable; value is JSON when it parses, a plain string otherwise)
//	order=field[:desc]     (repeatable)
//	limit=n
func parseQuery(collection string, where, order []string, limit string) (*domain.Query, error) {
	query := domain.Collection(collection)

	for _, clause := range where {
		parts := strings.SplitN(clause, ":", 3)
		if len(parts) != 3 {
			return nil, fmt.Errorf("%w: where clause %q must be field:op:value", domain.ErrInvalidReference, clause)
		}
		op := domain.FilterOp(parts[1])
		if !knownOps[op] {
			return nil, fmt.Errorf("%w: unknown operator %q", domain.ErrInvalidReference, parts[1])
		}
		value := parseValue(parts[2])
		if op == domain.OpIn {
			if _, ok := value.([]any); !ok {
				return nil, fmt.Errorf("%w: %q needs a JSON array", domain.ErrInvalidReference, op)
			}
		}
		query = query.Where(parts[0], op, value)
	}

	for _, clause := range order {
		field, dir, _ := strings.Cut(clause, ":")
		switch domain.Direction(strings.ToLower(dir)) {
		case "", domain.Asc:
			query = query.OrderBy(field, domain.Asc)
		case domain.Desc:
			query = query.OrderBy(field, domain.Desc)
		default:
			return nil, fmt.Errorf("%w: unknown direction %q", domain.ErrInvalidReference, dir)
		}
	}

	if limit != "" {
		n, err := strconv.Atoi(limit)
		if err != nil || n < 0 {
			return nil, fmt.Errorf("%w: invalid limit %q", domain.ErrInvalidReference, limit)
		}
		query = query.Limit(n)
	}

	if err := query.Validate(); err != nil {
		return nil, err
	}
	return query, nil
}

func parseValue(raw string) any {
	var value any
	if err := json.Unmarshal([]byte(raw), &value); err == nil {
		return value
	}
	return raw
}
