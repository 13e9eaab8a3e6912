package models

import (
	"encoding/json"
	"time"

	"github.com/erpbridge/backend/internal/domain/importjob"
	"github.com/google/uuid"
)

// ImportJobModel is the persistence model for the ImportJob aggregate.
type ImportJobModel struct {
	AggregateModel
	MappingID      uuid.UUID        `gorm:"type:uuid;not null;index"`
	FileName       string           `gorm:"type:varchar(255);not null"`
	FileSize       int64            `gorm:"not null;default:0"`
	FileRef        string           `gorm:"type:varchar(500)"`
	Status         importjob.Status `gorm:"type:varchar(20);not null;default:'pending';index"`
	TotalRows      int              `gorm:"not null;default:0"`
	ProcessedRows  int              `gorm:"not null;default:0"`
	SuccessRows    int              `gorm:"not null;default:0"`
	ErrorRows      int              `gorm:"not null;default:0"`
	DeliveredRows  int              `gorm:"not null;default:0"`
	SuccessRate    float64          `gorm:"not null;default:0"`
	ErrorDetails   string           `gorm:"type:jsonb;default:'[]'"`
	FailureReason  string           `gorm:"type:text"`
	CreatedBy      *uuid.UUID       `gorm:"type:uuid;index"`
	StartedAt      *time.Time       `gorm:"type:timestamptz"`
	CompletedAt    *time.Time       `gorm:"type:timestamptz"`
	IdempotencyKey string           `gorm:"type:varchar(255);index"`
}

// TableName returns the table name for GORM
func (ImportJobModel) TableName() string {
	return "import_jobs"
}

// ToDomain converts the persistence model to a domain ImportJob aggregate.
func (m *ImportJobModel) ToDomain() *importjob.ImportJob {
	job := &importjob.ImportJob{
		MappingID:      m.MappingID,
		FileName:       m.FileName,
		FileSize:       m.FileSize,
		FileRef:        m.FileRef,
		Status:         m.Status,
		TotalRows:      m.TotalRows,
		ProcessedRows:  m.ProcessedRows,
		SuccessRows:    m.SuccessRows,
		ErrorRows:      m.ErrorRows,
		DeliveredRows:  m.DeliveredRows,
		SuccessRate:    m.SuccessRate,
		FailureReason:  m.FailureReason,
		CreatedBy:      m.CreatedBy,
		StartedAt:      m.StartedAt,
		CompletedAt:    m.CompletedAt,
		IdempotencyKey: m.IdempotencyKey,
	}
	m.PopulateAggregateRoot(&job.BaseAggregateRoot)

	if m.ErrorDetails != "" {
		_ = json.Unmarshal([]byte(m.ErrorDetails), &job.ErrorDetails)
	}
	return job
}

// FromDomain populates the persistence model from a domain ImportJob.
func (m *ImportJobModel) FromDomain(job *importjob.ImportJob) {
	m.FromDomainAggregateRoot(job.BaseAggregateRoot)
	m.MappingID = job.MappingID
	m.FileName = job.FileName
	m.FileSize = job.FileSize
	m.FileRef = job.FileRef
	m.Status = job.Status
	m.TotalRows = job.TotalRows
	m.ProcessedRows = job.ProcessedRows
	m.SuccessRows = job.SuccessRows
	m.ErrorRows = job.ErrorRows
	m.DeliveredRows = job.DeliveredRows
	m.SuccessRate = job.SuccessRate
	m.FailureReason = job.FailureReason
	m.CreatedBy = job.CreatedBy
	m.StartedAt = job.StartedAt
	m.CompletedAt = job.CompletedAt
	m.IdempotencyKey = job.IdempotencyKey

	if details, err := json.Marshal(job.ErrorDetails); err == nil && job.ErrorDetails != nil {
		m.ErrorDetails = string(details)
	} else {
		m.ErrorDetails = "[]"
	}
}

// ImportJobModelFromDomain creates a new persistence model from a domain ImportJob.
func ImportJobModelFromDomain(job *importjob.ImportJob) *ImportJobModel {
	m := &ImportJobModel{}
	m.FromDomain(job)
	return m
}
