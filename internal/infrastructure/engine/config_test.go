package engine

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erpbridge/backend/internal/infrastructure/transform"
)

func TestParseConfig(t *testing.T) {
	t.Run("Valid configuration", func(t *testing.T) {
		cfg, err := ParseConfig([]byte(`{
			"mapping_name": "customer_import",
			"target_columns": {
				"customer_name": {
					"source_column": "full_name",
					"transformations": [{"name": "trim"}, {"name": "title_case"}],
					"required": true
				},
				"email": {
					"source_column": "email",
					"transformations": [{"name": "email_normalize"}]
				}
			},
			"validation_rules": {
				"email": {"email": true}
			},
			"erp_endpoint": "customers"
		}`))

		require.NoError(t, err)
		assert.Equal(t, "customer_import", cfg.MappingName)
		assert.Len(t, cfg.TargetColumns, 2)
		assert.Equal(t, "full_name", cfg.TargetColumns["customer_name"].SourceColumn)
		assert.Equal(t, "customers", cfg.ERPEndpoint)
	})

	t.Run("Invalid JSON", func(t *testing.T) {
		cfg, err := ParseConfig([]byte(`{"mapping_name": `))

		assert.Nil(t, cfg)
		require.Error(t, err)
		assert.True(t, IsConfigError(err))
	})

	t.Run("Transformation parameters decode", func(t *testing.T) {
		cfg, err := ParseConfig([]byte(`{
			"mapping_name": "m",
			"target_columns": {
				"price": {
					"source_column": "price",
					"transformations": [{"name": "to_decimal", "parameters": {"precision": 3}}]
				}
			}
		}`))

		require.NoError(t, err)
		steps := cfg.TargetColumns["price"].Transformations
		require.Len(t, steps, 1)
		assert.Equal(t, 3, steps[0].Parameters.Int("precision", 0))
	})
}

func TestConfigValidate(t *testing.T) {
	registry := transform.NewRegistry()

	valid := func() *MappingConfig {
		return &MappingConfig{
			MappingName: "m",
			TargetColumns: map[string]TargetField{
				"code": {SourceColumn: "code", Required: true},
			},
		}
	}

	t.Run("Valid configuration has no warnings", func(t *testing.T) {
		warnings, err := valid().Validate(registry)

		require.NoError(t, err)
		assert.Empty(t, warnings)
	})

	t.Run("Missing mapping name", func(t *testing.T) {
		cfg := valid()
		cfg.MappingName = ""

		_, err := cfg.Validate(registry)
		require.Error(t, err)
		assert.True(t, IsConfigError(err))
	})

	t.Run("No target columns", func(t *testing.T) {
		cfg := valid()
		cfg.TargetColumns = nil

		_, err := cfg.Validate(registry)
		assert.Error(t, err)
	})

	t.Run("Required field without source or default", func(t *testing.T) {
		cfg := valid()
		cfg.TargetColumns["code"] = TargetField{Required: true}

		_, err := cfg.Validate(registry)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "source column or a default value")
	})

	t.Run("Required field with only a default is fine", func(t *testing.T) {
		cfg := valid()
		cfg.TargetColumns["code"] = TargetField{Required: true, DefaultValue: "UNKNOWN"}

		_, err := cfg.Validate(registry)
		assert.NoError(t, err)
	})

	t.Run("Unknown transformation warns instead of failing", func(t *testing.T) {
		cfg := valid()
		cfg.TargetColumns["code"] = TargetField{
			SourceColumn:    "code",
			Transformations: []TransformationStep{{Name: "reverse_polish"}},
		}

		warnings, err := cfg.Validate(registry)
		require.NoError(t, err)
		require.Len(t, warnings, 1)
		assert.Contains(t, warnings[0], "reverse_polish")
	})

	t.Run("Unknown validation rule warns", func(t *testing.T) {
		cfg := valid()
		cfg.ValidationRules = map[string]RuleSet{
			"code": {"shouts_loudly": true},
		}

		warnings, err := cfg.Validate(registry)
		require.NoError(t, err)
		require.Len(t, warnings, 1)
		assert.Contains(t, warnings[0], "shouts_loudly")
	})

	t.Run("Document rules need an items field", func(t *testing.T) {
		cfg := valid()
		cfg.DocumentRules = &DocumentRules{MinItems: 1}

		_, err := cfg.Validate(registry)
		require.Error(t, err)
		assert.Contains(t, err.Error(), "items_field")
	})

	t.Run("Target field order is deterministic", func(t *testing.T) {
		cfg := valid()
		cfg.TargetColumns["alpha"] = TargetField{SourceColumn: "a"}
		cfg.TargetColumns["zulu"] = TargetField{SourceColumn: "z"}

		assert.Equal(t, []string{"alpha", "code", "zulu"}, cfg.TargetFieldNames())
	})
}
