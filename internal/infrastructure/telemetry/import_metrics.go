// Package telemetry provides OpenTelemetry integration for metrics collection.
package telemetry

import (
	"context"
	"sync"
	"time"

	"github.com/erpbridge/backend/internal/domain/importjob"
	"github.com/google/uuid"
	"go.opentelemetry.io/otel/metric"
	"go.uber.org/zap"
)

// ImportMetrics provides import pipeline metrics. It tracks job outcomes,
// row throughput and the current job backlog.
type ImportMetrics struct {
	meter  metric.Meter
	logger *zap.Logger

	// Counter metrics (monotonically increasing)
	jobsFinishedTotal  *Counter
	rowsProcessedTotal *Counter
	rowsFailedTotal    *Counter
	rowsDeliveredTotal *Counter

	// Histogram metrics
	jobDuration *Histogram

	// Gauge metrics (point-in-time values)
	jobsByStatus *Gauge

	// Terminal updates arrive via JobFailed and a following JobUpdate,
	// so finished jobs are recorded at most once
	mu       sync.Mutex
	recorded map[uuid.UUID]struct{}

	// Periodic collector
	stopChan    chan struct{}
	stopOnce    sync.Once
	collectOnce sync.Once

	statsProvider JobStatsProvider
}

// JobStatsProvider provides job backlog data for periodic metrics collection.
// The interface keeps the telemetry layer off the persistence details.
type JobStatsProvider interface {
	// CountByStatus returns the number of import jobs per status
	CountByStatus(ctx context.Context) (map[importjob.Status]int64, error)
}

// ImportMetricsConfig holds configuration for import metrics.
type ImportMetricsConfig struct {
	Meter           metric.Meter
	Logger          *zap.Logger
	CollectInterval time.Duration // Default: 1 minute
	StatsProvider   JobStatsProvider
}

// NewImportMetrics creates a new ImportMetrics instance.
func NewImportMetrics(cfg ImportMetricsConfig) (*ImportMetrics, error) {
	if cfg.Meter == nil {
		return nil, ErrMeterNil
	}

	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}

	im := &ImportMetrics{
		meter:         cfg.Meter,
		logger:        logger,
		recorded:      make(map[uuid.UUID]struct{}),
		stopChan:      make(chan struct{}),
		statsProvider: cfg.StatsProvider,
	}

	var err error

	im.jobsFinishedTotal, err = NewCounter(
		cfg.Meter,
		"import_jobs_finished_total",
		"Total number of import jobs reaching a terminal state",
		"{jobs}",
	)
	if err != nil {
		return nil, err
	}

	im.rowsProcessedTotal, err = NewCounter(
		cfg.Meter,
		"import_rows_processed_total",
		"Total number of spreadsheet rows processed",
		"{rows}",
	)
	if err != nil {
		return nil, err
	}

	im.rowsFailedTotal, err = NewCounter(
		cfg.Meter,
		"import_rows_failed_total",
		"Total number of rows rejected by validation or delivery",
		"{rows}",
	)
	if err != nil {
		return nil, err
	}

	im.rowsDeliveredTotal, err = NewCounter(
		cfg.Meter,
		"import_rows_delivered_total",
		"Total number of rows delivered to the ERP",
		"{rows}",
	)
	if err != nil {
		return nil, err
	}

	im.jobDuration, err = NewHistogram(cfg.Meter, HistogramOpts{
		Name:        "import_job_duration_seconds",
		Description: "Wall time from job start to terminal state",
		Unit:        "s",
		Boundaries:  []float64{0.1, 0.5, 1, 5, 15, 30, 60, 120, 300, 600},
	})
	if err != nil {
		return nil, err
	}

	im.jobsByStatus, err = NewGauge(
		cfg.Meter,
		"import_jobs_by_status",
		"Current number of import jobs per status",
		"{jobs}",
	)
	if err != nil {
		return nil, err
	}

	return im, nil
}

// JobUpdate implements the import notifier contract. Non-terminal updates
// are ignored, terminal ones are recorded once per job.
func (im *ImportMetrics) JobUpdate(job *importjob.ImportJob) {
	if job == nil || !job.Status.IsTerminal() {
		return
	}

	im.mu.Lock()
	if _, done := im.recorded[job.ID]; done {
		im.mu.Unlock()
		return
	}
	im.recorded[job.ID] = struct{}{}
	// The set only grows as jobs finish, reset it before it gets large
	if len(im.recorded) > 16384 {
		im.recorded = map[uuid.UUID]struct{}{job.ID: {}}
	}
	im.mu.Unlock()

	ctx := context.Background()
	statusAttr := AttrJobStatus.String(string(job.Status))

	im.jobsFinishedTotal.Inc(ctx, statusAttr)
	im.rowsProcessedTotal.Add(ctx, int64(job.ProcessedRows))
	im.rowsFailedTotal.Add(ctx, int64(job.ErrorRows))
	im.rowsDeliveredTotal.Add(ctx, int64(job.DeliveredRows))

	if job.StartedAt != nil && job.CompletedAt != nil {
		im.jobDuration.RecordDuration(ctx, job.CompletedAt.Sub(*job.StartedAt), statusAttr)
	}
}

// JobFailed implements the import notifier contract. The terminal counters
// are recorded by the JobUpdate that follows every failure.
func (im *ImportMetrics) JobFailed(job *importjob.ImportJob, message string) {
	if job != nil {
		im.logger.Debug("Import job failed",
			zap.String("job_id", job.ID.String()),
			zap.String("reason", message),
		)
	}
}

// StartPeriodicCollection starts periodic collection of the backlog gauge.
// This is non-blocking - use Stop() to stop collection.
func (im *ImportMetrics) StartPeriodicCollection(ctx context.Context, interval time.Duration) {
	im.collectOnce.Do(func() {
		if interval <= 0 {
			interval = time.Minute
		}

		go im.runPeriodicCollection(ctx, interval)
	})
}

func (im *ImportMetrics) runPeriodicCollection(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	// Collect immediately on start
	im.collectBacklog(ctx)

	for {
		select {
		case <-im.stopChan:
			im.logger.Info("Stopping periodic import metrics collection")
			return
		case <-ctx.Done():
			im.logger.Info("Context cancelled, stopping periodic import metrics collection")
			return
		case <-ticker.C:
			im.collectBacklog(ctx)
		}
	}
}

func (im *ImportMetrics) collectBacklog(ctx context.Context) {
	if im.statsProvider == nil {
		im.logger.Debug("No stats provider configured, skipping backlog collection")
		return
	}

	counts, err := im.statsProvider.CountByStatus(ctx)
	if err != nil {
		im.logger.Error("Failed to collect job backlog", zap.Error(err))
		return
	}

	// Statuses missing from the result are reported as zero so a drained
	// backlog does not keep showing the last non-zero value
	for _, status := range []importjob.Status{
		importjob.StatusPending,
		importjob.StatusProcessing,
		importjob.StatusCompleted,
		importjob.StatusFailed,
		importjob.StatusCancelled,
	} {
		im.jobsByStatus.Record(ctx, counts[status], AttrJobStatus.String(string(status)))
	}
}

// Stop stops the periodic collection.
func (im *ImportMetrics) Stop() {
	im.stopOnce.Do(func() {
		close(im.stopChan)
	})
}

// ErrMeterNil is returned when meter is nil.
var ErrMeterNil = &MetricsError{Op: "NewImportMetrics", Err: "meter cannot be nil"}

// MetricsError represents a metrics-related error.
type MetricsError struct {
	Op  string
	Err string
}

func (e *MetricsError) Error() string {
	return e.Op + ": " + e.Err
}
