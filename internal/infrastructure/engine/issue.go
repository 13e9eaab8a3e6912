package engine

import (
	"errors"
	"fmt"
)

// Severity grades a validation finding. Only error-severity findings
// reject a record.
type Severity string

const (
	SeverityError   Severity = "error"
	SeverityWarning Severity = "warning"
	SeverityInfo    Severity = "info"
)

// Issue codes attached to rejected rows and validation findings
const (
	CodeRequiredFieldEmpty  = "RequiredFieldEmpty"
	CodeTransformationError = "TransformationError"
	CodeValidationFailed    = "ValidationFailed"
)

// Issue is one finding against a row or document. Field is empty for
// document-level findings without a field path.
type Issue struct {
	Row      int      `json:"row"`
	Field    string   `json:"field,omitempty"`
	Rule     string   `json:"rule"`
	Message  string   `json:"message"`
	Severity Severity `json:"severity"`
}

// Error implements the error interface
func (i Issue) Error() string {
	if i.Field != "" {
		return fmt.Sprintf("row %d, field %q: %s", i.Row, i.Field, i.Message)
	}
	return fmt.Sprintf("row %d: %s", i.Row, i.Message)
}

// MappedRecord is one transformed output row keyed by target field name
type MappedRecord map[string]any

// RejectedRow is a row excluded from the mapped output. Record still holds
// every computed field for diagnostic completeness.
type RejectedRow struct {
	LineNumber int          `json:"row"`
	Record     MappedRecord `json:"record"`
	Issues     []Issue      `json:"issues"`
}

// ConfigError reports a mapping configuration that is structurally unusable.
// It aborts the pipeline before any row is processed.
type ConfigError struct {
	Message string
}

// Error implements the error interface
func (e *ConfigError) Error() string {
	return e.Message
}

// NewConfigError creates a ConfigError
func NewConfigError(message string) *ConfigError {
	return &ConfigError{Message: message}
}

// IsConfigError reports whether err is a ConfigError
func IsConfigError(err error) bool {
	var ce *ConfigError
	return errors.As(err, &ce)
}
