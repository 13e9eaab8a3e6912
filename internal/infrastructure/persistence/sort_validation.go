package persistence

import (
	"strings"
)

// ValidateSortOrder validates and normalizes the sort order to ASC or DESC.
// Returns "DESC" as the default if the input is invalid or empty.
func ValidateSortOrder(orderDir string) string {
	normalized := strings.ToUpper(strings.TrimSpace(orderDir))
	if normalized == "ASC" {
		return "ASC"
	}
	return "DESC"
}

// ValidateSortField validates the sort field against a whitelist of allowed fields.
// Returns the defaultField if the input is invalid, empty, or not in the whitelist.
func ValidateSortField(sortField string, allowedFields map[string]bool, defaultField string) string {
	trimmed := strings.TrimSpace(sortField)
	if trimmed == "" {
		return defaultField
	}
	if allowedFields[trimmed] {
		return trimmed
	}
	return defaultField
}

// ImportJobSortFields contains allowed sort fields for import jobs
var ImportJobSortFields = map[string]bool{
	"id":             true,
	"created_at":     true,
	"updated_at":     true,
	"file_name":      true,
	"file_size":      true,
	"status":         true,
	"total_rows":     true,
	"processed_rows": true,
	"success_rows":   true,
	"error_rows":     true,
	"started_at":     true,
	"completed_at":   true,
}

// MappingSortFields contains allowed sort fields for column mappings
var MappingSortFields = map[string]bool{
	"id":           true,
	"created_at":   true,
	"updated_at":   true,
	"name":         true,
	"source_type":  true,
	"erp_endpoint": true,
}
