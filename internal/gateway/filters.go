// internal/gateway/filters.go
package gateway

import (
	"fmt"
	"strings"

	"github.com/siftmail/sift-backend/internal/core"
)

// Operation is the closed set of verbs the gateway executes.
type Operation string

const (
	OpSelect Operation = "select"
	OpInsert Operation = "insert"
	OpUpdate Operation = "update"
	OpDelete Operation = "delete"
)

// ParseOperation validates a client-supplied verb.
func ParseOperation(s string) (Operation, error) {
	switch Operation(s) {
	case OpSelect, OpInsert, OpUpdate, OpDelete:
		return Operation(s), nil
	default:
		return "", fmt.Errorf("%w: %q", ErrUnsupportedOperation, s)
	}
}

// FilterType is the closed set of predicate tags the gateway understands.
type FilterType string

const (
	FilterEq  FilterType = "eq"
	FilterNeq FilterType = "neq"
	FilterGt  FilterType = "gt"
	FilterGte FilterType = "gte"
	FilterLt  FilterType = "lt"
	FilterLte FilterType = "lte"
	FilterIs  FilterType = "is"
	FilterNot FilterType = "not"
	FilterIn  FilterType = "in"
)

// comparisonOps maps the plain comparison filter types to their SQL operator.
var comparisonOps = map[FilterType]string{
	FilterEq:  "=",
	FilterNeq: "!=",
	FilterGt:  ">",
	FilterGte: ">=",
	FilterLt:  "<",
	FilterLte: "<=",
}

// ParseFilterType reports whether a client-supplied tag names a known filter.
// Unknown tags are not an error at this level: the pipeline skips them with
// a warning to stay compatible with older clients.
func ParseFilterType(s string) (FilterType, bool) {
	switch FilterType(s) {
	case FilterEq, FilterNeq, FilterGt, FilterGte, FilterLt, FilterLte,
		FilterIs, FilterNot, FilterIn:
		return FilterType(s), true
	default:
		return "", false
	}
}

// Filter is a single client-supplied predicate. Type is kept as the raw
// request tag so unknown values can be logged verbatim. Operator is only
// meaningful for "not", where it names the negated comparison.
type Filter struct {
	Type     string `json:"type"`
	Column   string `json:"column"`
	Operator string `json:"operator,omitempty"`
	Value    any    `json:"value"`
}

// predicate translates a known filter into a parameterized SQL fragment.
// The column must already be validated as an identifier by the caller.
func predicate(ft FilterType, f Filter) (string, []any, error) {
	if op, ok := comparisonOps[ft]; ok {
		return fmt.Sprintf("%s %s ?", f.Column, op), []any{f.Value}, nil
	}

	switch ft {
	case FilterIs:
		// IS is the NULL-safe comparison in SQLite.
		return fmt.Sprintf("%s IS ?", f.Column), []any{f.Value}, nil

	case FilterIn:
		values, ok := f.Value.([]any)
		if !ok {
			return "", nil, fmt.Errorf("%w: 'in' filter on %q requires an array value", ErrInvalidFilterValue, f.Column)
		}
		if len(values) == 0 {
			// An empty list matches nothing.
			return "1 = 0", nil, nil
		}
		placeholders := strings.Repeat("?, ", len(values)-1) + "?"
		return fmt.Sprintf("%s IN (%s)", f.Column, placeholders), values, nil

	case FilterNot:
		inner, ok := ParseFilterType(f.Operator)
		if !ok || inner == FilterNot {
			return "", nil, fmt.Errorf("%w: 'not' filter on %q has unsupported operator %q", ErrInvalidFilterValue, f.Column, f.Operator)
		}
		clause, args, err := predicate(inner, Filter{Column: f.Column, Value: f.Value})
		if err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("NOT (%s)", clause), args, nil
	}

	// Unreachable for parsed filter types.
	return "", nil, fmt.Errorf("%w: %q", ErrInvalidFilterValue, ft)
}

// validateColumns checks a client-supplied projection list.
func validateColumns(columns []string) error {
	for _, col := range columns {
		if !core.IsValidIdentifier(col) {
			return fmt.Errorf("%w: %q", ErrInvalidColumn, col)
		}
	}
	return nil
}
