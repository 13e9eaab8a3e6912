package engine

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/erpbridge/backend/internal/infrastructure/spreadsheet"
	"github.com/erpbridge/backend/internal/infrastructure/transform"
)

func loadCSV(t *testing.T, content string) *spreadsheet.Table {
	t.Helper()
	loader := spreadsheet.NewLoader()
	table, _, err := loader.Load([]byte(content), "upload.csv")
	require.NoError(t, err)
	return table
}

func customerConfig() *MappingConfig {
	return &MappingConfig{
		MappingName: "customer_import",
		TargetColumns: map[string]TargetField{
			"customer_code": {SourceColumn: "customer_id", Required: true},
			"customer_name": {
				SourceColumn:    "full_name",
				Transformations: []TransformationStep{{Name: "trim"}, {Name: "title_case"}},
				Required:        true,
			},
			"email": {
				SourceColumn:    "email",
				Transformations: []TransformationStep{{Name: "email_normalize"}},
			},
		},
		ValidationRules: map[string]RuleSet{
			"customer_code": {"unique": true},
			"email":         {"email": map[string]any{"value": true, "severity": "warning"}},
		},
		ERPEndpoint: "customers",
	}
}

func TestPipelineRun(t *testing.T) {
	pipeline := NewPipeline(transform.NewRegistry())

	t.Run("Maps and transforms a clean file", func(t *testing.T) {
		table := loadCSV(t, "Customer_ID,Full_Name,Email\nC1,  john doe  ,JOHN@X.COM")

		result, err := pipeline.Run(context.Background(), table, customerConfig())

		require.NoError(t, err)
		require.Len(t, result.MappedData, 1)
		assert.Equal(t, MappedRecord{
			"customer_code": "C1",
			"customer_name": "John Doe",
			"email":         "john@x.com",
		}, result.MappedData[0])
		assert.Equal(t, 1, result.Summary.TotalRecords)
		assert.Equal(t, 1, result.Summary.SuccessfulRecords)
		assert.Equal(t, 0, result.Summary.FailedRecords)
		assert.Equal(t, 100.0, result.Summary.SuccessRate)
	})

	t.Run("Rejects the row with a missing required field", func(t *testing.T) {
		table := loadCSV(t, strings.Join([]string{
			"Customer_ID,Full_Name,Email",
			"C1,John Doe,john@x.com",
			"C2,,jane@x.com",
		}, "\n"))

		result, err := pipeline.Run(context.Background(), table, customerConfig())

		require.NoError(t, err)
		assert.Len(t, result.MappedData, 1)
		require.Len(t, result.ProcessingErrors, 1)

		rejected := result.ProcessingErrors[0]
		assert.Equal(t, 3, rejected.LineNumber)
		require.Len(t, rejected.Issues, 1)
		assert.Equal(t, CodeRequiredFieldEmpty, rejected.Issues[0].Rule)
		assert.Equal(t, "customer_name", rejected.Issues[0].Field)
		// the rejected record still carries every computed field
		assert.Equal(t, "C2", rejected.Record["customer_code"])
		assert.Equal(t, "jane@x.com", rejected.Record["email"])
	})

	t.Run("Validation failures land in validation errors", func(t *testing.T) {
		cfg := customerConfig()
		cfg.ValidationRules["customer_code"] = RuleSet{"min_length": 5}
		table := loadCSV(t, "Customer_ID,Full_Name,Email\nC1,John Doe,john@x.com")

		result, err := pipeline.Run(context.Background(), table, cfg)

		require.NoError(t, err)
		assert.Empty(t, result.MappedData)
		assert.Empty(t, result.ProcessingErrors)
		require.Len(t, result.ValidationErrors, 1)
		assert.Equal(t, 2, result.ValidationErrors[0].LineNumber)
	})

	t.Run("Duplicate codes within the upload are rejected", func(t *testing.T) {
		table := loadCSV(t, strings.Join([]string{
			"Customer_ID,Full_Name,Email",
			"C1,John Doe,john@x.com",
			"C1,Jane Roe,jane@x.com",
		}, "\n"))

		result, err := pipeline.Run(context.Background(), table, customerConfig())

		require.NoError(t, err)
		assert.Len(t, result.MappedData, 1)
		require.Len(t, result.ValidationErrors, 1)
		assert.Equal(t, 3, result.ValidationErrors[0].LineNumber)
		assert.Equal(t, "unique", result.ValidationErrors[0].Issues[0].Rule)
	})

	t.Run("Warning findings keep the record in the output", func(t *testing.T) {
		table := loadCSV(t, "Customer_ID,Full_Name,Email\nC1,John Doe,broken-email")

		result, err := pipeline.Run(context.Background(), table, customerConfig())

		require.NoError(t, err)
		require.Len(t, result.MappedData, 1)
		// email_normalize blanks the invalid address; the warning rule then
		// skips the empty value, so the record sails through
		assert.Equal(t, "", result.MappedData[0]["email"])
	})

	t.Run("Broken configuration aborts before any row", func(t *testing.T) {
		cfg := customerConfig()
		cfg.MappingName = ""
		table := loadCSV(t, "Customer_ID,Full_Name,Email\nC1,John Doe,john@x.com")

		result, err := pipeline.Run(context.Background(), table, cfg)

		assert.Nil(t, result)
		require.Error(t, err)
		assert.True(t, IsConfigError(err))
	})

	t.Run("Default value fills absent source columns", func(t *testing.T) {
		cfg := customerConfig()
		cfg.TargetColumns["country"] = TargetField{
			SourceColumn: "country",
			DefaultValue: "DE",
		}
		table := loadCSV(t, "Customer_ID,Full_Name,Email\nC1,John Doe,john@x.com")

		result, err := pipeline.Run(context.Background(), table, cfg)

		require.NoError(t, err)
		require.Len(t, result.MappedData, 1)
		assert.Equal(t, "DE", result.MappedData[0]["country"])
	})
}

func TestPipelineSummary(t *testing.T) {
	pipeline := NewPipeline(transform.NewRegistry())

	t.Run("Mixed batch counts and rate", func(t *testing.T) {
		lines := []string{"Customer_ID,Full_Name,Email"}
		for i := 1; i <= 8; i++ {
			lines = append(lines, fmt.Sprintf("C%d,Customer %d,c%d@x.com", i, i, i))
		}
		lines = append(lines, ",No Code,x@x.com")   // missing required code
		lines = append(lines, "C9,,another@x.com")  // missing required name
		table := loadCSV(t, strings.Join(lines, "\n"))

		result, err := pipeline.Run(context.Background(), table, customerConfig())

		require.NoError(t, err)
		assert.Equal(t, 10, result.Summary.TotalRecords)
		assert.Equal(t, 8, result.Summary.SuccessfulRecords)
		assert.Equal(t, 2, result.Summary.FailedRecords)
		assert.Equal(t, 80.0, result.Summary.SuccessRate)
		assert.GreaterOrEqual(t, result.Summary.ProcessingTimeSeconds, 0.0)
	})

	t.Run("Rate keeps two decimals", func(t *testing.T) {
		assert.Equal(t, 99.98, successRate(9998, 10000))
		assert.Equal(t, 33.33, successRate(1, 3))
		assert.Equal(t, 0.0, successRate(0, 0))
	})

	t.Run("Empty table yields empty result", func(t *testing.T) {
		table := &spreadsheet.Table{Columns: []string{"customer_id", "full_name", "email"}}

		result, err := pipeline.Run(context.Background(), table, customerConfig())

		require.NoError(t, err)
		assert.Empty(t, result.MappedData)
		assert.Equal(t, 0, result.Summary.TotalRecords)
	})
}

func TestResolverChains(t *testing.T) {
	registry := transform.NewRegistry()
	resolver := NewResolver(registry, nil)

	t.Run("Transformations apply in configured order", func(t *testing.T) {
		cfg := &MappingConfig{
			MappingName: "m",
			TargetColumns: map[string]TargetField{
				"name": {
					SourceColumn: "name",
					Transformations: []TransformationStep{
						{Name: "trim"},
						{Name: "uppercase"},
					},
				},
			},
		}
		table := loadCSV(t, "Name\n  widget  ")

		mapped, rejected := resolver.Resolve(table, cfg)

		require.Empty(t, rejected)
		require.Len(t, mapped, 1)
		assert.Equal(t, "WIDGET", mapped[0].Record["name"])
	})

	t.Run("Unknown transformation is skipped, value is kept", func(t *testing.T) {
		cfg := &MappingConfig{
			MappingName: "m",
			TargetColumns: map[string]TargetField{
				"name": {
					SourceColumn:    "name",
					Transformations: []TransformationStep{{Name: "does_not_exist"}},
				},
			},
		}
		table := loadCSV(t, "Name\nwidget")

		mapped, rejected := resolver.Resolve(table, cfg)

		require.Empty(t, rejected)
		require.Len(t, mapped, 1)
		assert.Equal(t, "widget", mapped[0].Record["name"])
	})

	t.Run("Empty cell falls back to the default before transformations", func(t *testing.T) {
		cfg := &MappingConfig{
			MappingName: "m",
			TargetColumns: map[string]TargetField{
				"status": {
					SourceColumn:    "status",
					DefaultValue:    "active",
					Transformations: []TransformationStep{{Name: "uppercase"}},
				},
			},
		}
		table := loadCSV(t, "Status,Code\n,1")

		mapped, _ := resolver.Resolve(table, cfg)

		require.Len(t, mapped, 1)
		assert.Equal(t, "ACTIVE", mapped[0].Record["status"])
	})

	t.Run("Result sets partition the input", func(t *testing.T) {
		cfg := &MappingConfig{
			MappingName: "m",
			TargetColumns: map[string]TargetField{
				"code": {SourceColumn: "code", Required: true},
			},
		}
		table := loadCSV(t, "Code\nA\n\nB")

		mapped, rejected := resolver.Resolve(table, cfg)
		assert.Equal(t, table.RowCount(), len(mapped)+len(rejected))
	})
}
