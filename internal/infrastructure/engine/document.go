package engine

import (
	"fmt"

	"github.com/spf13/cast"
)

// validateDocument checks the structured item lines of a record, such as
// the line items of a sales document. Item findings use a dotted path like
// "items[2].qty" so clients can point at the offending line.
func (v *Validator) validateDocument(lineNumber int, record MappedRecord, rules *DocumentRules) []Issue {
	items := documentItems(record[rules.ItemsField])

	var issues []Issue
	if len(items) < rules.MinItems {
		issues = append(issues, Issue{
			Row:      lineNumber,
			Field:    rules.ItemsField,
			Rule:     "min_items",
			Message:  fmt.Sprintf("%s must have at least %d items", rules.ItemsField, rules.MinItems),
			Severity: SeverityError,
		})
	}

	if len(rules.ItemRules) == 0 {
		return issues
	}

	// uniqueness scoped to this document's item list
	tracker := make(UniqueTracker)
	for index, item := range items {
		for _, field := range sortedKeys(rules.ItemRules) {
			path := fmt.Sprintf("%s[%d].%s", rules.ItemsField, index, field)
			value := item[field]
			issues = append(issues, v.validateField(lineNumber, path, value, rules.ItemRules[field], nil)...)
			if _, hasUnique := rules.ItemRules[field]["unique"]; hasUnique {
				seen := tracker.seen(field)
				str := cast.ToString(value)
				if seen[str] {
					issues = append(issues, Issue{
						Row:      lineNumber,
						Field:    path,
						Rule:     "unique",
						Message:  fmt.Sprintf("%s is duplicated", path),
						Severity: SeverityError,
					})
				}
				tracker.record(field, str)
			}
		}
	}

	return issues
}

// documentItems normalizes the supported item-list shapes into maps.
// Anything else yields no items and falls to the min_items check.
func documentItems(value any) []map[string]any {
	switch items := value.(type) {
	case []map[string]any:
		return items
	case []MappedRecord:
		converted := make([]map[string]any, len(items))
		for i, item := range items {
			converted[i] = item
		}
		return converted
	case []any:
		converted := make([]map[string]any, 0, len(items))
		for _, raw := range items {
			if m, ok := raw.(map[string]any); ok {
				converted = append(converted, m)
			}
		}
		return converted
	default:
		return nil
	}
}
