package telemetry

import (
	"context"
	"time"

	"github.com/uptrace/opentelemetry-go-extra/otelgorm"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// DBTracingConfig controls per-query span enrichment on top of otelgorm.
type DBTracingConfig struct {
	Enabled         bool
	LogFullSQL      bool          // include query variables in spans, dev only
	SlowQueryThresh time.Duration // queries above this get a slow_query event
	DBSystem        string
}

// DefaultDBTracingConfig returns the secure defaults: disabled, variables
// stripped, 200ms slow-query threshold.
func DefaultDBTracingConfig() DBTracingConfig {
	return DBTracingConfig{
		Enabled:         false,
		LogFullSQL:      false,
		SlowQueryThresh: 200 * time.Millisecond,
		DBSystem:        "postgresql",
	}
}

// DBTracingPlugin attaches otelgorm spans to every query and annotates them
// with row counts, table names, errors and slow-query events.
type DBTracingPlugin struct {
	config DBTracingConfig
	logger *zap.Logger
}

// NewDBTracingPlugin creates a tracing plugin; call RegisterOtelGorm to
// attach it to a gorm.DB.
func NewDBTracingPlugin(cfg DBTracingConfig, logger *zap.Logger) *DBTracingPlugin {
	return &DBTracingPlugin{config: cfg, logger: logger}
}

// callbackRegistrar matches gorm's per-operation callback processor.
type callbackRegistrar interface {
	Register(name string, fn func(*gorm.DB)) error
}

// RegisterOtelGorm installs the otelgorm plugin plus timing callbacks on db.
// A no-op when tracing is disabled.
func (p *DBTracingPlugin) RegisterOtelGorm(db *gorm.DB) error {
	if !p.config.Enabled {
		p.logger.Debug("Database tracing disabled")
		return nil
	}

	opts := []otelgorm.Option{otelgorm.WithDBName(p.config.DBSystem)}
	if !p.config.LogFullSQL {
		opts = append(opts, otelgorm.WithoutQueryVariables())
	}
	plugin := otelgorm.NewPlugin(opts...)
	if _, registered := db.Config.Plugins[plugin.Name()]; !registered {
		if err := db.Use(plugin); err != nil {
			return err
		}
	}

	// Start times are stamped before each operation so the after callback
	// can measure elapsed wall time inside the otelgorm span.
	steps := []struct {
		name string
		proc callbackRegistrar
		fn   func(*gorm.DB)
	}{
		{"dbtrace:start_create", db.Callback().Create().Before("gorm:create"), p.stampStart},
		{"dbtrace:start_query", db.Callback().Query().Before("gorm:query"), p.stampStart},
		{"dbtrace:start_update", db.Callback().Update().Before("gorm:update"), p.stampStart},
		{"dbtrace:start_delete", db.Callback().Delete().Before("gorm:delete"), p.stampStart},
		{"dbtrace:start_row", db.Callback().Row().Before("gorm:row"), p.stampStart},
		{"dbtrace:start_raw", db.Callback().Raw().Before("gorm:raw"), p.stampStart},
		{"dbtrace:finish_create", db.Callback().Create().After("gorm:create"), p.annotateSpan},
		{"dbtrace:finish_query", db.Callback().Query().After("gorm:query"), p.annotateSpan},
		{"dbtrace:finish_update", db.Callback().Update().After("gorm:update"), p.annotateSpan},
		{"dbtrace:finish_delete", db.Callback().Delete().After("gorm:delete"), p.annotateSpan},
		{"dbtrace:finish_row", db.Callback().Row().After("gorm:row"), p.annotateSpan},
		{"dbtrace:finish_raw", db.Callback().Raw().After("gorm:raw"), p.annotateSpan},
	}
	for _, s := range steps {
		if err := s.proc.Register(s.name, s.fn); err != nil {
			return err
		}
	}

	p.logger.Info("Database tracing enabled",
		zap.Bool("log_full_sql", p.config.LogFullSQL),
		zap.Duration("slow_query_threshold", p.config.SlowQueryThresh),
		zap.String("db_system", p.config.DBSystem),
	)
	return nil
}

func (p *DBTracingPlugin) stampStart(db *gorm.DB) {
	if db.Statement.Context != nil {
		db.Statement.Context = WithQueryStartTime(db.Statement.Context)
	}
}

func (p *DBTracingPlugin) annotateSpan(db *gorm.DB) {
	ctx := db.Statement.Context
	if ctx == nil {
		return
	}

	span := trace.SpanFromContext(ctx)
	if span == nil || !span.IsRecording() {
		return
	}

	if db.Statement.RowsAffected >= 0 {
		span.SetAttributes(attribute.Int64("db.rows_affected", db.Statement.RowsAffected))
	}
	if db.Statement.Table != "" {
		span.SetAttributes(attribute.String("db.sql.table", db.Statement.Table))
	}

	// Missing rows are an expected outcome, not a query failure.
	if db.Error != nil && db.Error != gorm.ErrRecordNotFound {
		span.SetStatus(codes.Error, db.Error.Error())
		span.RecordError(db.Error)
	}

	if startTime, ok := ctx.Value(queryStartTimeKey).(time.Time); ok {
		elapsed := time.Since(startTime)
		if elapsed > p.config.SlowQueryThresh {
			span.SetAttributes(
				attribute.Bool("db.slow_query", true),
				attribute.Int64("db.query_duration_ms", elapsed.Milliseconds()),
			)
			span.AddEvent("slow_query_warning", trace.WithAttributes(
				attribute.Int64("duration_ms", elapsed.Milliseconds()),
				attribute.Int64("threshold_ms", p.config.SlowQueryThresh.Milliseconds()),
			))
		}
	}
}

type contextKey string

const queryStartTimeKey contextKey = "db_query_start_time"

// WithQueryStartTime stamps the query start time used for slow-query
// measurement.
func WithQueryStartTime(ctx context.Context) context.Context {
	return context.WithValue(ctx, queryStartTimeKey, time.Now())
}
