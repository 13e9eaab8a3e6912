package imports

import (
	"time"

	"github.com/google/uuid"

	"github.com/erpbridge/backend/internal/domain/importjob"
)

// UploadInput contains the input for starting an import
type UploadInput struct {
	MappingID      uuid.UUID
	FileName       string
	Data           []byte
	IdempotencyKey string
	UploadedBy     *uuid.UUID
}

// JobResult is the API view of an import job. Reused marks a job returned
// for a repeated idempotency key instead of a fresh one.
type JobResult struct {
	ID            uuid.UUID        `json:"id"`
	MappingID     uuid.UUID        `json:"mapping_id"`
	FileName      string           `json:"file_name"`
	FileSize      int64            `json:"file_size"`
	Status        importjob.Status `json:"status"`
	TotalRows     int              `json:"total_rows"`
	ProcessedRows int              `json:"processed_rows"`
	SuccessRows   int              `json:"success_rows"`
	ErrorRows     int              `json:"error_rows"`
	DeliveredRows int              `json:"delivered_rows"`
	SuccessRate   float64          `json:"success_rate"`
	Progress      int              `json:"progress"`
	FailureReason string           `json:"failure_reason,omitempty"`
	CreatedBy     *uuid.UUID       `json:"created_by,omitempty"`
	CreatedAt     time.Time        `json:"created_at"`
	StartedAt     *time.Time       `json:"started_at,omitempty"`
	CompletedAt   *time.Time       `json:"completed_at,omitempty"`
	Reused        bool             `json:"reused,omitempty"`
}

// JobErrorsResult is the rejected-row report of one job
type JobErrorsResult struct {
	JobID  uuid.UUID            `json:"job_id"`
	Status importjob.Status     `json:"status"`
	Errors []importjob.RowError `json:"errors"`
}

// ListJobsInput contains filters and paging for listing jobs
type ListJobsInput struct {
	MappingID   *uuid.UUID
	Status      *importjob.Status
	CreatedBy   *uuid.UUID
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	SortBy      string
	SortOrder   string
	Page        int
	PageSize    int
}

// ListJobsResult is a page of import jobs
type ListJobsResult struct {
	Items      []JobResult `json:"items"`
	TotalCount int64       `json:"total_count"`
	Page       int         `json:"page"`
	PageSize   int         `json:"page_size"`
}

func toJobResult(job *importjob.ImportJob, reused bool) JobResult {
	return JobResult{
		ID:            job.ID,
		MappingID:     job.MappingID,
		FileName:      job.FileName,
		FileSize:      job.FileSize,
		Status:        job.Status,
		TotalRows:     job.TotalRows,
		ProcessedRows: job.ProcessedRows,
		SuccessRows:   job.SuccessRows,
		ErrorRows:     job.ErrorRows,
		DeliveredRows: job.DeliveredRows,
		SuccessRate:   job.SuccessRate,
		Progress:      job.Progress(),
		FailureReason: job.FailureReason,
		CreatedBy:     job.CreatedBy,
		CreatedAt:     job.CreatedAt,
		StartedAt:     job.StartedAt,
		CompletedAt:   job.CompletedAt,
		Reused:        reused,
	}
}
