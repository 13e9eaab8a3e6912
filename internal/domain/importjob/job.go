// Package importjob holds the import job aggregate: one uploaded file
// processed against one column mapping, tracked from upload through ERP
// delivery.
package importjob

import (
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/erpbridge/backend/internal/domain/shared"
)

// Status represents the lifecycle state of an import job
type Status string

const (
	StatusPending    Status = "pending"
	StatusProcessing Status = "processing"
	StatusCompleted  Status = "completed"
	StatusFailed     Status = "failed"
	StatusCancelled  Status = "cancelled"
)

// IsValid checks if the status is valid
func (s Status) IsValid() bool {
	switch s {
	case StatusPending, StatusProcessing, StatusCompleted, StatusFailed, StatusCancelled:
		return true
	}
	return false
}

// IsTerminal returns true if this is a terminal state
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusCancelled
}

// RowError is one recorded finding against an input row
type RowError struct {
	Row      int    `json:"row"`
	Field    string `json:"field,omitempty"`
	Code     string `json:"code"`
	Message  string `json:"message"`
	Severity string `json:"severity,omitempty"`
}

// ImportJob tracks one file import end to end. Counts refer to data rows
// of the uploaded file; Row in error details is the spreadsheet line
// number including the header.
type ImportJob struct {
	shared.BaseAggregateRoot
	MappingID      uuid.UUID  `json:"mapping_id"`
	FileName       string     `json:"file_name"`
	FileSize       int64      `json:"file_size"`
	FileRef        string     `json:"file_ref,omitempty"`
	Status         Status     `json:"status"`
	TotalRows      int        `json:"total_rows"`
	ProcessedRows  int        `json:"processed_rows"`
	SuccessRows    int        `json:"success_rows"`
	ErrorRows      int        `json:"error_rows"`
	DeliveredRows  int        `json:"delivered_rows"`
	SuccessRate    float64    `json:"success_rate"`
	ErrorDetails   []RowError `json:"error_details,omitempty"`
	FailureReason  string     `json:"failure_reason,omitempty"`
	CreatedBy      *uuid.UUID `json:"created_by,omitempty"`
	StartedAt      *time.Time `json:"started_at,omitempty"`
	CompletedAt    *time.Time `json:"completed_at,omitempty"`
	IdempotencyKey string     `json:"idempotency_key,omitempty"`
}

// NewImportJob creates a pending import job
func NewImportJob(mappingID uuid.UUID, fileName string, fileSize int64, createdBy *uuid.UUID) (*ImportJob, error) {
	if mappingID == uuid.Nil {
		return nil, shared.NewDomainError("INVALID_MAPPING_ID", "Mapping ID cannot be empty")
	}
	if fileName == "" {
		return nil, shared.NewDomainError("INVALID_FILE_NAME", "File name cannot be empty")
	}
	if fileSize < 0 {
		return nil, shared.NewDomainError("INVALID_FILE_SIZE", "File size cannot be negative")
	}

	return &ImportJob{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		MappingID:         mappingID,
		FileName:          fileName,
		FileSize:          fileSize,
		Status:            StatusPending,
		ErrorDetails:      make([]RowError, 0),
		CreatedBy:         createdBy,
	}, nil
}

// Start marks the job as processing
func (j *ImportJob) Start(totalRows int) error {
	if j.Status != StatusPending {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot start processing from state: %s", j.Status))
	}
	if totalRows < 0 {
		return shared.NewDomainError("INVALID_TOTAL_ROWS", "Total rows cannot be negative")
	}

	j.Status = StatusProcessing
	j.TotalRows = totalRows
	now := time.Now()
	j.StartedAt = &now
	j.Touch()
	return nil
}

// RecordProgress updates the running counters while the job is processing
func (j *ImportJob) RecordProgress(processed, success, errors, delivered int) error {
	if j.Status != StatusProcessing {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot record progress in state: %s", j.Status))
	}

	j.ProcessedRows = processed
	j.SuccessRows = success
	j.ErrorRows = errors
	j.DeliveredRows = delivered
	j.UpdatedAt = time.Now()
	return nil
}

// Progress returns the completion percentage, rounded down
func (j *ImportJob) Progress() int {
	if j.TotalRows == 0 {
		if j.Status.IsTerminal() {
			return 100
		}
		return 0
	}
	return j.ProcessedRows * 100 / j.TotalRows
}

// Complete marks the job as finished. A job where every row failed
// completes as failed.
func (j *ImportJob) Complete(success, errors int, successRate float64, details []RowError) error {
	if j.Status != StatusProcessing {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot complete from state: %s", j.Status))
	}

	status := StatusCompleted
	if errors > 0 && success == 0 {
		status = StatusFailed
	}

	j.Status = status
	j.ProcessedRows = j.TotalRows
	j.SuccessRows = success
	j.ErrorRows = errors
	j.SuccessRate = successRate
	j.ErrorDetails = details
	now := time.Now()
	j.CompletedAt = &now
	j.Touch()
	return nil
}

// Fail marks the job as failed with a terminal reason, such as an
// unreadable file or an unreachable ERP system
func (j *ImportJob) Fail(reason string, details []RowError) error {
	if j.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot fail from terminal state: %s", j.Status))
	}

	j.Status = StatusFailed
	j.FailureReason = reason
	if len(details) > 0 {
		j.ErrorDetails = details
	}
	now := time.Now()
	j.CompletedAt = &now
	j.Touch()
	return nil
}

// Cancel marks a not-yet-finished job as cancelled
func (j *ImportJob) Cancel() error {
	if j.Status.IsTerminal() {
		return shared.NewDomainError("INVALID_STATE", fmt.Sprintf("Cannot cancel from terminal state: %s", j.Status))
	}

	j.Status = StatusCancelled
	now := time.Now()
	j.CompletedAt = &now
	j.Touch()
	return nil
}

// IsFinished returns true once the job reached a terminal state
func (j *ImportJob) IsFinished() bool {
	return j.Status.IsTerminal()
}

// HasErrors returns true if any row-level findings were recorded
func (j *ImportJob) HasErrors() bool {
	return len(j.ErrorDetails) > 0
}
