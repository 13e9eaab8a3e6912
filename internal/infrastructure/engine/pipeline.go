package engine

import (
	"context"
	"math"
	"time"

	"go.uber.org/zap"

	"github.com/erpbridge/backend/internal/infrastructure/spreadsheet"
	"github.com/erpbridge/backend/internal/infrastructure/telemetry"
	"github.com/erpbridge/backend/internal/infrastructure/transform"
)

// Summary aggregates the outcome of one pipeline run. SuccessRate is a
// percentage rounded to two decimals.
type Summary struct {
	TotalRecords          int     `json:"total_records"`
	SuccessfulRecords     int     `json:"successful_records"`
	FailedRecords         int     `json:"failed_records"`
	SuccessRate           float64 `json:"success_rate"`
	ProcessingTimeSeconds float64 `json:"processing_time_seconds"`
}

// Result is the full report of one pipeline run. MappedData holds only the
// records that passed both mapping and validation; ProcessingErrors holds
// rows rejected during mapping, ValidationErrors rows rejected by rules.
type Result struct {
	MappedData       []MappedRecord `json:"mapped_data"`
	ProcessingErrors []RejectedRow  `json:"processing_errors,omitempty"`
	ValidationErrors []RejectedRow  `json:"validation_errors,omitempty"`
	Warnings         []Issue        `json:"warnings,omitempty"`
	Summary          Summary        `json:"summary"`
}

// Issues flattens every finding of the run, rejections first
func (r *Result) Issues() []Issue {
	var issues []Issue
	for _, row := range r.ProcessingErrors {
		issues = append(issues, row.Issues...)
	}
	for _, row := range r.ValidationErrors {
		issues = append(issues, row.Issues...)
	}
	issues = append(issues, r.Warnings...)
	return issues
}

// Pipeline chains mapping resolution and validation over a loaded table.
// It is stateless across runs and safe for concurrent use.
type Pipeline struct {
	registry  *transform.Registry
	resolver  *Resolver
	validator *Validator
	logger    *zap.Logger
}

// PipelineOption configures a Pipeline
type PipelineOption func(*Pipeline)

// WithPipelineLogger sets the logger used by the pipeline and its stages
func WithPipelineLogger(logger *zap.Logger) PipelineOption {
	return func(p *Pipeline) {
		if logger != nil {
			p.logger = logger
		}
	}
}

// NewPipeline creates a Pipeline backed by the given transformation registry
func NewPipeline(registry *transform.Registry, opts ...PipelineOption) *Pipeline {
	p := &Pipeline{
		registry: registry,
		logger:   zap.NewNop(),
	}
	for _, opt := range opts {
		opt(p)
	}
	p.resolver = NewResolver(registry, p.logger)
	p.validator = NewValidator(WithValidatorLogger(p.logger))
	return p
}

// Registry exposes the transformation registry the pipeline runs on
func (p *Pipeline) Registry() *transform.Registry {
	return p.registry
}

// Run processes a loaded table against a mapping configuration. A broken
// configuration aborts before any row is touched; row-level problems never
// abort the run, they accumulate in the result instead.
func (p *Pipeline) Run(ctx context.Context, table *spreadsheet.Table, cfg *MappingConfig) (*Result, error) {
	ctx, span := telemetry.StartSpan(ctx, "pipeline.run",
		telemetry.WithAttribute(telemetry.SpanAttrMappingName, cfg.MappingName),
		telemetry.WithAttribute("row_count", table.RowCount()),
	)
	defer span.End()

	start := time.Now()

	warnings, err := cfg.Validate(p.registry)
	if err != nil {
		telemetry.RecordError(span, err)
		return nil, err
	}
	for _, w := range warnings {
		p.logger.Warn("mapping configuration warning",
			zap.String("mapping", cfg.MappingName),
			zap.String("warning", w),
		)
	}

	resolved, processingErrors := p.resolver.Resolve(table, cfg)

	result := &Result{
		MappedData:       make([]MappedRecord, 0, len(resolved)),
		ProcessingErrors: processingErrors,
	}

	tracker := make(UniqueTracker)
	for _, row := range resolved {
		issues := append(row.Warnings, p.validator.ValidateRecord(row.LineNumber, row.Record, cfg, tracker)...)

		if HasErrors(issues) {
			result.ValidationErrors = append(result.ValidationErrors, RejectedRow{
				LineNumber: row.LineNumber,
				Record:     row.Record,
				Issues:     issues,
			})
			continue
		}
		result.MappedData = append(result.MappedData, row.Record)
		result.Warnings = append(result.Warnings, issues...)
	}

	total := len(table.Rows)
	failed := len(result.ProcessingErrors) + len(result.ValidationErrors)
	result.Summary = Summary{
		TotalRecords:          total,
		SuccessfulRecords:     len(result.MappedData),
		FailedRecords:         failed,
		SuccessRate:           successRate(len(result.MappedData), total),
		ProcessingTimeSeconds: time.Since(start).Seconds(),
	}

	telemetry.SetAttributes(span,
		"successful_records", result.Summary.SuccessfulRecords,
		"failed_records", result.Summary.FailedRecords,
	)
	p.logger.Info("pipeline run completed",
		zap.String("mapping", cfg.MappingName),
		zap.Int("total", total),
		zap.Int("successful", result.Summary.SuccessfulRecords),
		zap.Int("failed", failed),
		zap.Float64("success_rate", result.Summary.SuccessRate),
	)

	return result, nil
}

// successRate returns successes as a percentage of total with two-decimal
// precision, so 9998 of 10000 reports 99.98
func successRate(successful, total int) float64 {
	if total == 0 {
		return 0
	}
	return math.Round(float64(successful)/float64(total)*10000) / 100
}
