package importjob

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Filter defines the filters for querying import jobs
type Filter struct {
	MappingID   *uuid.UUID
	Status      *Status
	CreatedBy   *uuid.UUID
	CreatedFrom *time.Time
	CreatedTo   *time.Time
	SortBy      string // column name, validated against a whitelist by the repository
	SortOrder   string // "ASC" or "DESC"
}

// ListResult represents a paginated list of import jobs
type ListResult struct {
	Items      []*ImportJob
	TotalCount int64
	Page       int
	PageSize   int
}

// Repository defines the interface for import job persistence
type Repository interface {
	// Save persists a new import job
	Save(ctx context.Context, job *ImportJob) error

	// Update persists changes to an existing import job
	Update(ctx context.Context, job *ImportJob) error

	// FindByID finds an import job by ID
	FindByID(ctx context.Context, id uuid.UUID) (*ImportJob, error)

	// FindAll returns jobs with pagination and filtering, newest first
	FindAll(ctx context.Context, filter Filter, page, pageSize int) (*ListResult, error)

	// FindUnfinished returns jobs still pending or processing, used to mark
	// orphans failed after a restart
	FindUnfinished(ctx context.Context) ([]*ImportJob, error)

	// FindByIdempotencyKey finds a job previously created with the key
	FindByIdempotencyKey(ctx context.Context, key string) (*ImportJob, error)
}
