package engine

import (
	"fmt"

	"github.com/erpbridge/backend/internal/infrastructure/spreadsheet"
	"github.com/erpbridge/backend/internal/infrastructure/transform"
	"github.com/spf13/cast"
	"go.uber.org/zap"
)

// Resolver computes target-field values for each row of a loaded table
// according to a mapping configuration.
type Resolver struct {
	registry *transform.Registry
	logger   *zap.Logger
}

// NewResolver creates a Resolver backed by the given transformation registry
func NewResolver(registry *transform.Registry, logger *zap.Logger) *Resolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Resolver{registry: registry, logger: logger}
}

// ResolvedRow is one successfully mapped row. Warnings carries non-fatal
// transformation findings so they survive into the final report.
type ResolvedRow struct {
	LineNumber int
	Record     MappedRecord
	Warnings   []Issue
}

// Resolve maps every table row. Rows whose required fields resolve to empty
// are excluded from the mapped output entirely and reported as rejected;
// the two result sets partition the input exactly.
func (r *Resolver) Resolve(table *spreadsheet.Table, cfg *MappingConfig) ([]ResolvedRow, []RejectedRow) {
	fields := cfg.TargetFieldNames()
	mapped := make([]ResolvedRow, 0, len(table.Rows))
	var rejected []RejectedRow

	for _, row := range table.Rows {
		record, issues := r.resolveRow(&row, table, cfg, fields)

		if HasErrors(issues) {
			rejected = append(rejected, RejectedRow{
				LineNumber: row.LineNumber,
				Record:     record,
				Issues:     issues,
			})
			continue
		}
		mapped = append(mapped, ResolvedRow{
			LineNumber: row.LineNumber,
			Record:     record,
			Warnings:   issues,
		})
	}

	return mapped, rejected
}

// resolveRow computes all target fields for one row. Fields past a failed
// required field are still computed so the rejection record is complete.
func (r *Resolver) resolveRow(row *spreadsheet.Row, table *spreadsheet.Table, cfg *MappingConfig, fields []string) (MappedRecord, []Issue) {
	record := make(MappedRecord, len(fields))
	var issues []Issue

	for _, field := range fields {
		target := cfg.TargetColumns[field]

		// absent source column is treated like an empty cell so spreadsheets
		// with optional columns keep importing
		var value any
		cell := ""
		if target.SourceColumn != "" && table.HasColumn(target.SourceColumn) {
			cell = row.Get(target.SourceColumn)
		}
		if cell != "" {
			value = cell
		} else if target.DefaultValue != nil {
			value = target.DefaultValue
		}

		value, transformIssues := r.applyChain(row, target, field, value)
		issues = append(issues, transformIssues...)

		if target.Required && isEmptyValue(value) {
			issues = append(issues, Issue{
				Row:      row.LineNumber,
				Field:    field,
				Rule:     CodeRequiredFieldEmpty,
				Message:  fmt.Sprintf("required field %q is empty", field),
				Severity: SeverityError,
			})
		}

		record[field] = value
	}

	return record, issues
}

// applyChain runs the field's transformations in configuration order. A
// step that fails keeps the pre-transformation value and surfaces a
// warning-severity issue; unknown names are skipped with a log warning.
func (r *Resolver) applyChain(row *spreadsheet.Row, target TargetField, field string, value any) (any, []Issue) {
	var issues []Issue

	for _, step := range target.Transformations {
		next, ok, err := r.registry.Apply(step.Name, value, row.Cells, step.Parameters)
		if err != nil {
			issues = append(issues, Issue{
				Row:      row.LineNumber,
				Field:    field,
				Rule:     CodeTransformationError,
				Message:  err.Error(),
				Severity: SeverityWarning,
			})
			continue
		}
		if !ok {
			r.logger.Warn("skipping unknown transformation",
				zap.String("field", field),
				zap.String("transformation", step.Name),
			)
			continue
		}
		value = next
	}

	return value, issues
}

// isEmptyValue reports whether a resolved value counts as empty for the
// required-field check. Zero numbers and false booleans are values, not
// absences.
func isEmptyValue(value any) bool {
	if value == nil {
		return true
	}
	if s, ok := value.(string); ok {
		return s == ""
	}
	if _, ok := value.(bool); ok {
		return false
	}
	switch value.(type) {
	case int, int32, int64, float32, float64:
		return false
	}
	return cast.ToString(value) == ""
}
