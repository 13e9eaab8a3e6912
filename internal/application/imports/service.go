// Package imports implements the import job use cases: upload, background
// processing through the mapping pipeline, ERP delivery and job tracking.
package imports

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erpbridge/backend/internal/domain/importjob"
	"github.com/erpbridge/backend/internal/domain/mapping"
	"github.com/erpbridge/backend/internal/domain/shared"
	"github.com/erpbridge/backend/internal/infrastructure/config"
	"github.com/erpbridge/backend/internal/infrastructure/engine"
	"github.com/erpbridge/backend/internal/infrastructure/erp"
	"github.com/erpbridge/backend/internal/infrastructure/logger"
	"github.com/erpbridge/backend/internal/infrastructure/spreadsheet"
	"github.com/erpbridge/backend/internal/infrastructure/storage"
	"github.com/erpbridge/backend/internal/infrastructure/telemetry"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// errCancelled distinguishes a user cancellation from a timeout
var errCancelled = errors.New("cancelled by user")

// DelivererProvider yields a deliverer bound to the current default
// ERP connection
type DelivererProvider interface {
	DelivererFor(ctx context.Context) (erp.BatchDeliverer, error)
}

// Notifier pushes job lifecycle events to connected dashboards
type Notifier interface {
	JobUpdate(job *importjob.ImportJob)
	JobFailed(job *importjob.ImportJob, message string)
}

// NopNotifier discards all events
type NopNotifier struct{}

func (NopNotifier) JobUpdate(*importjob.ImportJob)         {}
func (NopNotifier) JobFailed(*importjob.ImportJob, string) {}

// MultiNotifier fans out every event to each wrapped notifier in order.
type MultiNotifier []Notifier

func (m MultiNotifier) JobUpdate(job *importjob.ImportJob) {
	for _, n := range m {
		n.JobUpdate(job)
	}
}

func (m MultiNotifier) JobFailed(job *importjob.ImportJob, message string) {
	for _, n := range m {
		n.JobFailed(job, message)
	}
}

// Service runs imports end to end. Uploads return immediately with a
// pending job; processing happens on background goroutines capped by a
// counting semaphore, each under its own timeout.
type Service struct {
	jobs        importjob.Repository
	mappings    mapping.Repository
	loader      *spreadsheet.Loader
	pipeline    *engine.Pipeline
	deliverers  DelivererProvider
	archive     storage.Archive
	idempotency shared.IdempotencyStore
	notifier    Notifier
	cfg         config.ImportConfig
	idemTTL     time.Duration
	logger      *zap.Logger

	sem     chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	cancels map[uuid.UUID]context.CancelCauseFunc
}

// ServiceOption configures the import service
type ServiceOption func(*Service)

// WithNotifier sets the dashboard notifier
func WithNotifier(n Notifier) ServiceOption {
	return func(s *Service) {
		if n != nil {
			s.notifier = n
		}
	}
}

// WithArchive sets the upload archive
func WithArchive(a storage.Archive) ServiceOption {
	return func(s *Service) {
		s.archive = a
	}
}

// WithIdempotencyStore sets the store backing Idempotency-Key handling
func WithIdempotencyStore(store shared.IdempotencyStore, ttl time.Duration) ServiceOption {
	return func(s *Service) {
		s.idempotency = store
		if ttl > 0 {
			s.idemTTL = ttl
		}
	}
}

// WithServiceLogger sets the logger
func WithServiceLogger(l *zap.Logger) ServiceOption {
	return func(s *Service) {
		if l != nil {
			s.logger = l
		}
	}
}

// NewService creates an import service
func NewService(
	jobs importjob.Repository,
	mappings mapping.Repository,
	loader *spreadsheet.Loader,
	pipeline *engine.Pipeline,
	deliverers DelivererProvider,
	cfg config.ImportConfig,
	opts ...ServiceOption,
) *Service {
	if cfg.MaxConcurrentJobs < 1 {
		cfg.MaxConcurrentJobs = 1
	}
	if cfg.ProgressInterval < 1 {
		cfg.ProgressInterval = 100
	}
	if cfg.JobTimeout <= 0 {
		cfg.JobTimeout = 10 * time.Minute
	}

	s := &Service{
		jobs:       jobs,
		mappings:   mappings,
		loader:     loader,
		pipeline:   pipeline,
		deliverers: deliverers,
		notifier:   NopNotifier{},
		cfg:        cfg,
		idemTTL:    24 * time.Hour,
		logger:     zap.NewNop(),
		sem:        make(chan struct{}, cfg.MaxConcurrentJobs),
		cancels:    make(map[uuid.UUID]context.CancelCauseFunc),
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Upload accepts a file, creates a pending job and schedules processing.
// A repeated Idempotency-Key returns the job created for the first request.
func (s *Service) Upload(ctx context.Context, input UploadInput) (*JobResult, error) {
	if s.cfg.MaxFileSize > 0 && int64(len(input.Data)) > s.cfg.MaxFileSize {
		return nil, shared.NewDomainError("FILE_TOO_LARGE",
			fmt.Sprintf("File exceeds the %d byte upload limit", s.cfg.MaxFileSize))
	}
	if len(input.Data) == 0 {
		return nil, shared.NewDomainError("EMPTY_FILE", "Uploaded file is empty")
	}

	m, err := s.mappings.FindByID(ctx, input.MappingID)
	if err != nil {
		return nil, shared.NewDomainError("MAPPING_NOT_FOUND", "Mapping not found")
	}
	if !m.IsActive {
		return nil, shared.NewDomainError("MAPPING_INACTIVE", "Mapping has been deactivated")
	}
	ext := strings.ToLower(filepath.Ext(input.FileName))
	if !m.AcceptsFile(ext) {
		return nil, shared.NewDomainError("UNSUPPORTED_FILE_TYPE",
			fmt.Sprintf("Mapping %q does not accept %s files", m.Name, ext))
	}

	telemetry.SetAttributes(telemetry.SpanFromContext(ctx),
		telemetry.SpanAttrMappingID, m.ID,
		telemetry.SpanAttrSourceType, string(m.SourceType),
		telemetry.SpanAttrFileName, input.FileName,
	)

	if input.IdempotencyKey != "" && s.idempotency != nil {
		fresh, err := s.idempotency.MarkProcessed(ctx, input.IdempotencyKey, s.idemTTL)
		if err != nil {
			s.logger.Warn("Idempotency check failed, proceeding without it", zap.Error(err))
		} else if !fresh {
			existing, err := s.jobs.FindByIdempotencyKey(ctx, input.IdempotencyKey)
			if err == nil {
				result := toJobResult(existing, true)
				return &result, nil
			}
			// Key marked but no job found; fall through and create one
			s.logger.Warn("Idempotency key seen but job missing",
				zap.String("key", input.IdempotencyKey))
		}
	}

	job, err := importjob.NewImportJob(m.ID, input.FileName, int64(len(input.Data)), input.UploadedBy)
	if err != nil {
		return nil, err
	}
	job.IdempotencyKey = input.IdempotencyKey

	if s.archive != nil {
		key := storage.BuildKey(job.ID, input.FileName, time.Now())
		if err := s.archive.Store(ctx, key, input.Data); err != nil {
			// The import can still run from memory
			s.logger.Warn("Failed to archive upload", zap.String("key", key), zap.Error(err))
		} else {
			job.FileRef = key
		}
	}

	if err := s.jobs.Save(ctx, job); err != nil {
		s.logger.Error("Failed to save import job", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to create import job")
	}

	s.logger.Info("Import job created",
		zap.String("job_id", job.ID.String()),
		zap.String("mapping", m.Name),
		zap.String("file", input.FileName),
		zap.Int("size", len(input.Data)))

	s.wg.Add(1)
	go s.process(job, m, input.Data)

	result := toJobResult(job, false)
	return &result, nil
}

// GetJob returns one job
func (s *Service) GetJob(ctx context.Context, id uuid.UUID) (*JobResult, error) {
	job, err := s.jobs.FindByID(ctx, id)
	if err != nil {
		return nil, shared.NewDomainError("JOB_NOT_FOUND", "Import job not found")
	}
	result := toJobResult(job, false)
	return &result, nil
}

// GetJobErrors returns the rejected-row report of one job
func (s *Service) GetJobErrors(ctx context.Context, id uuid.UUID) (*JobErrorsResult, error) {
	job, err := s.jobs.FindByID(ctx, id)
	if err != nil {
		return nil, shared.NewDomainError("JOB_NOT_FOUND", "Import job not found")
	}
	return &JobErrorsResult{
		JobID:  job.ID,
		Status: job.Status,
		Errors: job.ErrorDetails,
	}, nil
}

// ListJobs returns a page of jobs, newest first
func (s *Service) ListJobs(ctx context.Context, input ListJobsInput) (*ListJobsResult, error) {
	page := input.Page
	if page < 1 {
		page = 1
	}
	pageSize := input.PageSize
	if pageSize < 1 {
		pageSize = defaultPageSize
	}
	if pageSize > maxPageSize {
		pageSize = maxPageSize
	}

	listed, err := s.jobs.FindAll(ctx, importjob.Filter{
		MappingID:   input.MappingID,
		Status:      input.Status,
		CreatedBy:   input.CreatedBy,
		CreatedFrom: input.CreatedFrom,
		CreatedTo:   input.CreatedTo,
		SortBy:      input.SortBy,
		SortOrder:   input.SortOrder,
	}, page, pageSize)
	if err != nil {
		s.logger.Error("Failed to list import jobs", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to list import jobs")
	}

	items := make([]JobResult, 0, len(listed.Items))
	for _, job := range listed.Items {
		items = append(items, toJobResult(job, false))
	}
	return &ListJobsResult{
		Items:      items,
		TotalCount: listed.TotalCount,
		Page:       listed.Page,
		PageSize:   listed.PageSize,
	}, nil
}

// Cancel stops a not-yet-finished job. A running worker observes the
// cancellation at its next context check; a job without a worker, such as
// one orphaned by a restart, is cancelled directly.
func (s *Service) Cancel(ctx context.Context, id uuid.UUID) (*JobResult, error) {
	job, err := s.jobs.FindByID(ctx, id)
	if err != nil {
		return nil, shared.NewDomainError("JOB_NOT_FOUND", "Import job not found")
	}
	if job.IsFinished() {
		return nil, shared.NewDomainError("JOB_FINISHED", "Import job already finished")
	}

	s.mu.Lock()
	cancel, running := s.cancels[id]
	s.mu.Unlock()

	if running {
		cancel(errCancelled)
		result := toJobResult(job, false)
		return &result, nil
	}

	if err := job.Cancel(); err != nil {
		return nil, err
	}
	if err := s.jobs.Update(ctx, job); err != nil {
		s.logger.Error("Failed to cancel job", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to cancel job")
	}
	s.notifier.JobUpdate(job)

	result := toJobResult(job, false)
	return &result, nil
}

// RecoverOrphans fails jobs left pending or processing by an earlier run.
// Called once during startup, before the server accepts uploads.
func (s *Service) RecoverOrphans(ctx context.Context) (int, error) {
	orphans, err := s.jobs.FindUnfinished(ctx)
	if err != nil {
		return 0, err
	}

	recovered := 0
	for _, job := range orphans {
		if err := job.Fail("Interrupted by server restart", nil); err != nil {
			continue
		}
		if err := s.jobs.Update(ctx, job); err != nil {
			s.logger.Error("Failed to mark orphaned job",
				zap.String("job_id", job.ID.String()), zap.Error(err))
			continue
		}
		recovered++
	}

	if recovered > 0 {
		s.logger.Warn("Orphaned import jobs marked failed", zap.Int("count", recovered))
	}
	return recovered, nil
}

// Wait blocks until every background job has finished. Used during
// graceful shutdown.
func (s *Service) Wait() {
	s.wg.Wait()
}

// process runs one job to completion on a background goroutine
func (s *Service) process(job *importjob.ImportJob, m *mapping.ColumnMapping, data []byte) {
	defer s.wg.Done()

	s.sem <- struct{}{}
	defer func() { <-s.sem }()

	runCtx, cancel := context.WithCancelCause(context.Background())
	defer cancel(nil)
	ctx, timeoutCancel := context.WithTimeout(runCtx, s.cfg.JobTimeout)
	defer timeoutCancel()

	s.mu.Lock()
	s.cancels[job.ID] = cancel
	s.mu.Unlock()
	defer func() {
		s.mu.Lock()
		delete(s.cancels, job.ID)
		s.mu.Unlock()
	}()

	ctx, log := logger.WithJobID(ctx, s.logger, job.ID.String())

	ctx, span := telemetry.StartServiceSpan(ctx, "imports", "process",
		telemetry.WithAttribute(telemetry.SpanAttrJobID, job.ID),
		telemetry.WithAttribute(telemetry.SpanAttrFileName, job.FileName),
	)
	defer span.End()

	cfg, err := engine.ParseConfig(m.Config)
	if err != nil {
		telemetry.RecordError(span, err)
		s.failJob(job, fmt.Sprintf("Mapping configuration is unusable: %v", err), nil, log)
		return
	}

	var (
		table *spreadsheet.Table
		meta  *spreadsheet.Metadata
	)
	telemetry.WithProfilingLabels(ctx, telemetry.OperationLabels("load_file", nil), func(context.Context) {
		table, meta, err = s.loader.Load(data, job.FileName)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		s.failJob(job, fmt.Sprintf("Could not read file: %v", err), nil, log)
		return
	}
	telemetry.SetAttribute(span, telemetry.SpanAttrTotalRows, table.RowCount())
	log.Info("File loaded",
		zap.Int("rows", table.RowCount()),
		zap.Int("columns", meta.ColumnCount))

	if err := job.Start(table.RowCount()); err != nil {
		log.Error("Failed to start job", zap.Error(err))
		return
	}
	s.updateAndNotify(ctx, job, log)

	var result *engine.Result
	telemetry.WithProfilingLabels(ctx, telemetry.RegionLabels("transform", nil), func(c context.Context) {
		result, err = s.pipeline.Run(c, table, cfg)
	})
	if err != nil {
		telemetry.RecordError(span, err)
		if s.finishInterrupted(ctx, job, log) {
			return
		}
		s.failJob(job, fmt.Sprintf("Processing failed: %v", err), nil, log)
		return
	}

	details := collectRowErrors(result)
	success := result.Summary.SuccessfulRecords
	failed := result.Summary.FailedRecords

	if err := job.RecordProgress(job.TotalRows, success, failed, 0); err == nil {
		s.updateAndNotify(ctx, job, log)
	}

	if len(result.MappedData) > 0 {
		report, err := s.deliver(ctx, job, m.ERPEndpoint, result.MappedData, log)
		if err != nil {
			telemetry.RecordError(span, err)
			if s.finishInterrupted(ctx, job, log) {
				return
			}
			s.failJob(job, fmt.Sprintf("ERP delivery failed: %v", err), details, log)
			return
		}
		for _, batchErr := range report.Errors {
			details = append(details, importjob.RowError{
				Code:     "DELIVERY_FAILED",
				Message:  fmt.Sprintf("Batch %d (%d records): %s", batchErr.Batch, batchErr.Records, batchErr.Message),
				Severity: "error",
			})
		}
	}

	if s.finishInterrupted(ctx, job, log) {
		return
	}

	if err := job.Complete(success, failed, result.Summary.SuccessRate, details); err != nil {
		log.Error("Failed to complete job", zap.Error(err))
		return
	}
	telemetry.SetAttributes(span,
		telemetry.SpanAttrJobStatus, string(job.Status),
		"success_rows", success,
		"error_rows", failed,
	)
	telemetry.SetOK(span)
	// The run context may already be done; keep the span lineage so the
	// final update still traces under this job.
	s.updateAndNotify(telemetry.ContextWithSpan(context.Background(), span), job, log)

	log.Info("Import finished",
		zap.String("status", string(job.Status)),
		zap.Int("success", success),
		zap.Int("errors", failed),
		zap.Int("delivered", job.DeliveredRows))
}

// deliver pushes mapped records to the ERP, updating job progress every
// ProgressInterval delivered rows
func (s *Service) deliver(ctx context.Context, job *importjob.ImportJob, endpoint string, records []engine.MappedRecord, log *zap.Logger) (*erp.Report, error) {
	deliverer, err := s.deliverers.DelivererFor(ctx)
	if err != nil {
		return nil, err
	}

	lastReported := 0
	progress := func(delivered, failed int) {
		if delivered-lastReported < s.cfg.ProgressInterval {
			return
		}
		lastReported = delivered
		if err := job.RecordProgress(job.ProcessedRows, job.SuccessRows, job.ErrorRows, delivered); err != nil {
			return
		}
		s.updateAndNotify(ctx, job, log)
	}

	var report *erp.Report
	telemetry.WithProfilingLabels(ctx, telemetry.RegionLabels("erp_delivery", nil), func(c context.Context) {
		report, err = deliverer.Deliver(c, endpoint, records, progress)
	})
	if err != nil {
		return nil, err
	}

	if err := job.RecordProgress(job.ProcessedRows, job.SuccessRows, job.ErrorRows, report.Delivered); err == nil {
		s.updateAndNotify(ctx, job, log)
	}
	return report, nil
}

// finishInterrupted resolves a cancelled or timed-out run. Returns true
// when the job was finalized here.
func (s *Service) finishInterrupted(ctx context.Context, job *importjob.ImportJob, log *zap.Logger) bool {
	cause := context.Cause(ctx)
	if cause == nil {
		return false
	}

	if errors.Is(cause, errCancelled) {
		if err := job.Cancel(); err != nil {
			return true
		}
		if err := s.jobs.Update(context.Background(), job); err != nil {
			log.Error("Failed to persist cancelled job", zap.Error(err))
		}
		s.notifier.JobUpdate(job)
		log.Info("Import cancelled")
		return true
	}

	reason := "Processing aborted"
	if errors.Is(cause, context.DeadlineExceeded) {
		reason = fmt.Sprintf("Processing timed out after %s", s.cfg.JobTimeout)
	}
	s.failJob(job, reason, nil, log)
	return true
}

func (s *Service) failJob(job *importjob.ImportJob, reason string, details []importjob.RowError, log *zap.Logger) {
	if err := job.Fail(reason, details); err != nil {
		log.Error("Failed to mark job failed", zap.Error(err))
		return
	}
	if err := s.jobs.Update(context.Background(), job); err != nil {
		log.Error("Failed to persist failed job", zap.Error(err))
	}
	s.notifier.JobFailed(job, reason)
	s.notifier.JobUpdate(job)
	log.Warn("Import failed", zap.String("reason", reason))
}

func (s *Service) updateAndNotify(ctx context.Context, job *importjob.ImportJob, log *zap.Logger) {
	if err := s.jobs.Update(ctx, job); err != nil {
		log.Error("Failed to persist job progress", zap.Error(err))
	}
	s.notifier.JobUpdate(job)
}

// collectRowErrors flattens pipeline rejections into the job error log
func collectRowErrors(result *engine.Result) []importjob.RowError {
	var details []importjob.RowError
	appendRows := func(rows []engine.RejectedRow) {
		for _, row := range rows {
			for _, issue := range row.Issues {
				details = append(details, importjob.RowError{
					Row:      issue.Row,
					Field:    issue.Field,
					Code:     issue.Rule,
					Message:  issue.Message,
					Severity: string(issue.Severity),
				})
			}
		}
	}
	appendRows(result.ProcessingErrors)
	appendRows(result.ValidationErrors)
	return details
}
