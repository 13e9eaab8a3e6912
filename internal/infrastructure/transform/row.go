package transform

import (
	"strings"

	"github.com/spf13/cast"
)

// concatFields joins the named source fields' stringified, trimmed,
// non-empty values with the configured separator. The chained value is
// ignored; concat always reads from the row.
func concatFields(_ any, row map[string]string, params Params) any {
	fields := params.StringSlice("fields")
	separator := params.String("separator")

	parts := make([]string, 0, len(fields))
	for _, field := range fields {
		v := strings.TrimSpace(row[field])
		if v != "" {
			parts = append(parts, v)
		}
	}
	return strings.Join(parts, separator)
}

// conditional evaluates one comparison against another field in the row and
// returns the configured then/else value. Unknown operators fall through to
// the else branch.
func conditional(value any, row map[string]string, params Params) any {
	field := params.String("field")
	operator := params.String("condition")
	operand := params.String("value")

	subject := stringify(value)
	if field != "" {
		subject = row[field]
	}

	matched := false
	switch operator {
	case "equals":
		matched = subject == operand
	case "not_equals":
		matched = subject != operand
	case "contains":
		matched = strings.Contains(subject, operand)
	case "greater_than":
		a, errA := cast.ToFloat64E(strings.TrimSpace(subject))
		b, errB := cast.ToFloat64E(strings.TrimSpace(operand))
		matched = errA == nil && errB == nil && a > b
	case "less_than":
		a, errA := cast.ToFloat64E(strings.TrimSpace(subject))
		b, errB := cast.ToFloat64E(strings.TrimSpace(operand))
		matched = errA == nil && errB == nil && a < b
	case "empty":
		matched = strings.TrimSpace(subject) == ""
	case "not_empty":
		matched = strings.TrimSpace(subject) != ""
	}

	if matched {
		return params["then"]
	}
	return params["else"]
}

// lookupTable substitutes the value through a configured dictionary with a
// fallback default. When no default is configured the original value is
// passed through.
func lookupTable(value any, _ map[string]string, params Params) any {
	table := params.StringMap("table")
	key := stringify(value)

	if mapped, ok := table[key]; ok {
		return mapped
	}
	if def, ok := params["default"]; ok {
		return def
	}
	return value
}
