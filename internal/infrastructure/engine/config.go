// Package engine implements the mapping/transformation/validation pipeline:
// given a loaded table and a declarative mapping configuration it produces
// ERP-ready records plus a structured error report.
package engine

import (
	"encoding/json"
	"fmt"
	"sort"

	"github.com/erpbridge/backend/internal/infrastructure/transform"
)

// SourceColumn declares an expected column of the uploaded spreadsheet
type SourceColumn struct {
	Name     string `json:"name"`
	DataType string `json:"data_type,omitempty"`
	Required bool   `json:"required,omitempty"`
}

// TransformationStep is one named transformation with its parameters,
// applied in configuration order
type TransformationStep struct {
	Name       string           `json:"name"`
	Parameters transform.Params `json:"parameters,omitempty"`
}

// TargetField maps one ERP field to a source column, a transformation chain
// and an optional default used when the source cell is empty or absent
type TargetField struct {
	SourceColumn    string               `json:"source_column"`
	Transformations []TransformationStep `json:"transformations,omitempty"`
	Required        bool                 `json:"required,omitempty"`
	DefaultValue    any                  `json:"default_value,omitempty"`
}

// RuleSet holds the validation rules of one target field, keyed by rule name
type RuleSet map[string]any

// DocumentRules validates structured sub-objects of a record, such as the
// item lines of a sales document
type DocumentRules struct {
	ItemsField string             `json:"items_field"`
	MinItems   int                `json:"min_items,omitempty"`
	ItemRules  map[string]RuleSet `json:"item_rules,omitempty"`
}

// MappingConfig is the declarative source->target mapping a user defines
// through the API. It is parsed from JSON once and treated as read-only
// during processing.
type MappingConfig struct {
	MappingName     string                 `json:"mapping_name"`
	SourceColumns   []SourceColumn         `json:"source_columns,omitempty"`
	TargetColumns   map[string]TargetField `json:"target_columns"`
	ValidationRules map[string]RuleSet     `json:"validation_rules,omitempty"`
	DocumentRules   *DocumentRules         `json:"document_rules,omitempty"`
	ERPEndpoint     string                 `json:"erp_endpoint,omitempty"`
}

// ParseConfig decodes a mapping configuration from JSON
func ParseConfig(data []byte) (*MappingConfig, error) {
	var cfg MappingConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, NewConfigError(fmt.Sprintf("invalid mapping configuration: %v", err))
	}
	return &cfg, nil
}

// TargetFieldNames returns the target field names in deterministic order.
// Within a record the field set is unordered, but processing and error
// reporting must be stable run to run.
func (c *MappingConfig) TargetFieldNames() []string {
	names := make([]string, 0, len(c.TargetColumns))
	for name := range c.TargetColumns {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Validate checks structural integrity and returns non-fatal warnings.
// Unknown transformation or rule names warn instead of failing so older
// configurations keep working across partial rollouts.
func (c *MappingConfig) Validate(registry *transform.Registry) ([]string, error) {
	if c.MappingName == "" {
		return nil, NewConfigError("mapping_name is required")
	}
	if len(c.TargetColumns) == 0 {
		return nil, NewConfigError("target_columns configuration is required")
	}

	var warnings []string
	for _, field := range c.TargetFieldNames() {
		target := c.TargetColumns[field]
		if target.Required && target.SourceColumn == "" && target.DefaultValue == nil {
			return nil, NewConfigError(fmt.Sprintf(
				"required field %q must have a source column or a default value", field))
		}
		for _, step := range target.Transformations {
			if step.Name == "" {
				return nil, NewConfigError(fmt.Sprintf(
					"field %q has a transformation without a name", field))
			}
			if !registry.Has(step.Name) {
				warnings = append(warnings, fmt.Sprintf(
					"field %q references unknown transformation %q; it will be skipped", field, step.Name))
			}
		}
	}

	for field, rules := range c.ValidationRules {
		for rule := range rules {
			if !knownRule(rule) {
				warnings = append(warnings, fmt.Sprintf(
					"field %q references unknown validation rule %q; it will be skipped", field, rule))
			}
		}
	}

	if c.DocumentRules != nil && c.DocumentRules.ItemsField == "" {
		return nil, NewConfigError("document_rules requires items_field")
	}

	return warnings, nil
}
