package db

import (
	"fmt"
	"strings"
)

// Filter accumulates optional WHERE predicates with positional arguments.
// Every value is bound as a parameter; only column names and operators are
// spliced into the SQL text, and those come from code, never from requests.
type Filter struct {
	conditions []string
	args       []any
}

// NewFilter returns a filter whose placeholders continue after existing args.
func NewFilter(args ...any) *Filter {
	return &Filter{args: append([]any(nil), args...)}
}

// Where appends "expr $n" and binds value. expr is a column plus operator,
// e.g. "r.route_date =".
func (f *Filter) Where(expr string, value any) *Filter {
	f.args = append(f.args, value)
	f.conditions = append(f.conditions, fmt.Sprintf("%s $%d", expr, len(f.args)))
	return f
}

// WhereIf appends the predicate only when ok is true.
func (f *Filter) WhereIf(ok bool, expr string, value any) *Filter {
	if !ok {
		return f
	}
	return f.Where(expr, value)
}

// WhereOptional appends the predicate when ptr is non-nil.
func WhereOptional[T any](f *Filter, expr string, ptr *T) *Filter {
	if ptr == nil {
		return f
	}
	return f.Where(expr, *ptr)
}

// Raw appends a predicate that binds no values.
func (f *Filter) Raw(condition string) *Filter {
	f.conditions = append(f.conditions, condition)
	return f
}

// Clause renders " WHERE a AND b" or an empty string.
func (f *Filter) Clause() string {
	if len(f.conditions) == 0 {
		return ""
	}
	return " WHERE " + strings.Join(f.conditions, " AND ")
}

// Args returns the bound values in placeholder order.
func (f *Filter) Args() []any {
	return f.args
}

// Next returns the next free placeholder, e.g. "$4", and binds value to it.
// Used for LIMIT/OFFSET after the WHERE clause.
func (f *Filter) Next(value any) string {
	f.args = append(f.args, value)
	return fmt.Sprintf("$%d", len(f.args))
}
