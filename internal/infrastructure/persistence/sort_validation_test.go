package persistence

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestValidateSortOrder(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{"", "DESC"},
		{"ASC", "ASC"},
		{"asc", "ASC"},
		{"  asc  ", "ASC"},
		{"DESC", "DESC"},
		{"desc", "DESC"},
		{"   ", "DESC"},
		{"sideways", "DESC"},
		{"ASC; DROP TABLE import_jobs;--", "DESC"},
	}
	for _, tc := range tests {
		assert.Equal(t, tc.want, ValidateSortOrder(tc.input), "input %q", tc.input)
	}
}

func TestValidateSortField(t *testing.T) {
	allowed := map[string]bool{
		"id":         true,
		"created_at": true,
		"file_name":  true,
	}

	tests := []struct {
		name         string
		input        string
		defaultField string
		want         string
	}{
		{"empty falls back to default", "", "created_at", "created_at"},
		{"whitelisted field passes", "file_name", "created_at", "file_name"},
		{"whitespace is trimmed", "  id  ", "created_at", "id"},
		{"unknown field falls back", "priority", "created_at", "created_at"},
		{"case sensitive", "FILE_NAME", "created_at", "created_at"},
		{"empty default with unknown field", "priority", "", ""},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, ValidateSortField(tc.input, allowed, tc.defaultField))
		})
	}
}

func TestSortFieldWhitelists(t *testing.T) {
	// Sort parameters come straight from query strings and end up in ORDER BY,
	// so every repository whitelist must cover its listing columns and nothing else.
	for _, field := range []string{"status", "file_name", "total_rows", "started_at", "completed_at"} {
		assert.True(t, ImportJobSortFields[field], "import jobs should sort by %s", field)
	}
	for _, field := range []string{"name", "source_type", "erp_endpoint"} {
		assert.True(t, MappingSortFields[field], "mappings should sort by %s", field)
	}
	for name, whitelist := range map[string]map[string]bool{
		"ImportJobSortFields": ImportJobSortFields,
		"MappingSortFields":   MappingSortFields,
	} {
		assert.True(t, whitelist["id"], "%s should allow id", name)
		assert.True(t, whitelist["created_at"], "%s should allow created_at", name)
		assert.True(t, whitelist["updated_at"], "%s should allow updated_at", name)
	}
}

func TestSortValidationRejectsInjection(t *testing.T) {
	payloads := []string{
		"id; DROP TABLE import_jobs;--",
		"id' OR '1'='1",
		"id UNION SELECT token FROM erp_connections",
		"id, (SELECT password_hash FROM users)",
		"id/**/;DROP TABLE users",
		"id\n; DROP TABLE users",
		"CASE WHEN 1=1 THEN id ELSE file_name END",
		"' OR ''='",
	}
	for _, payload := range payloads {
		assert.Equal(t, "created_at", ValidateSortField(payload, ImportJobSortFields, "created_at"),
			"field payload should fall back to default: %s", payload)
		assert.Equal(t, "DESC", ValidateSortOrder(payload),
			"order payload should fall back to DESC: %s", payload)
	}
}
