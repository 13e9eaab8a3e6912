package persistence

import (
	"context"
	"errors"

	"github.com/erpbridge/backend/internal/domain/importjob"
	"github.com/erpbridge/backend/internal/domain/shared"
	"github.com/erpbridge/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormImportJobRepository implements importjob.Repository using GORM
type GormImportJobRepository struct {
	db *gorm.DB
}

// NewGormImportJobRepository creates a new GormImportJobRepository
func NewGormImportJobRepository(db *gorm.DB) *GormImportJobRepository {
	return &GormImportJobRepository{db: db}
}

// Save creates an import job
func (r *GormImportJobRepository) Save(ctx context.Context, job *importjob.ImportJob) error {
	model := models.ImportJobModelFromDomain(job)
	return r.db.WithContext(ctx).Create(model).Error
}

// Update persists job changes. Progress updates do not bump the version,
// so the write is keyed on ID alone.
func (r *GormImportJobRepository) Update(ctx context.Context, job *importjob.ImportJob) error {
	model := models.ImportJobModelFromDomain(job)
	result := r.db.WithContext(ctx).
		Model(model).
		Where("id = ?", job.ID).
		Select("*").
		Updates(model)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrNotFound
	}
	return nil
}

// FindByID finds an import job by ID
func (r *GormImportJobRepository) FindByID(ctx context.Context, id uuid.UUID) (*importjob.ImportJob, error) {
	var model models.ImportJobModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll returns jobs with pagination and filtering, newest first
func (r *GormImportJobRepository) FindAll(ctx context.Context, filter importjob.Filter, page, pageSize int) (*importjob.ListResult, error) {
	query := r.db.WithContext(ctx).Model(&models.ImportJobModel{})
	query = r.applyFilters(query, filter)

	var totalCount int64
	if err := query.Count(&totalCount).Error; err != nil {
		return nil, err
	}

	if page > 0 && pageSize > 0 {
		offset := (page - 1) * pageSize
		query = query.Offset(offset).Limit(pageSize)
	}

	sortField := ValidateSortField(filter.SortBy, ImportJobSortFields, "created_at")
	sortOrder := ValidateSortOrder(filter.SortOrder)
	query = query.Order(sortField + " " + sortOrder)

	var jobModels []models.ImportJobModel
	if err := query.Find(&jobModels).Error; err != nil {
		return nil, err
	}

	jobs := make([]*importjob.ImportJob, len(jobModels))
	for i, model := range jobModels {
		jobs[i] = model.ToDomain()
	}

	return &importjob.ListResult{
		Items:      jobs,
		TotalCount: totalCount,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

// FindUnfinished returns jobs still pending or processing, oldest first
func (r *GormImportJobRepository) FindUnfinished(ctx context.Context) ([]*importjob.ImportJob, error) {
	var jobModels []models.ImportJobModel
	if err := r.db.WithContext(ctx).
		Where("status IN ?", []importjob.Status{importjob.StatusPending, importjob.StatusProcessing}).
		Order("created_at ASC").
		Find(&jobModels).Error; err != nil {
		return nil, err
	}

	jobs := make([]*importjob.ImportJob, len(jobModels))
	for i, model := range jobModels {
		jobs[i] = model.ToDomain()
	}
	return jobs, nil
}

// FindByIdempotencyKey finds a job previously created with the key
func (r *GormImportJobRepository) FindByIdempotencyKey(ctx context.Context, key string) (*importjob.ImportJob, error) {
	if key == "" {
		return nil, shared.ErrNotFound
	}
	var model models.ImportJobModel
	if err := r.db.WithContext(ctx).
		Where("idempotency_key = ?", key).
		Order("created_at DESC").
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// applyFilters applies filter options to the query
func (r *GormImportJobRepository) applyFilters(query *gorm.DB, filter importjob.Filter) *gorm.DB {
	if filter.MappingID != nil {
		query = query.Where("mapping_id = ?", *filter.MappingID)
	}
	if filter.Status != nil {
		query = query.Where("status = ?", *filter.Status)
	}
	if filter.CreatedBy != nil {
		query = query.Where("created_by = ?", *filter.CreatedBy)
	}
	if filter.CreatedFrom != nil {
		query = query.Where("created_at >= ?", *filter.CreatedFrom)
	}
	if filter.CreatedTo != nil {
		query = query.Where("created_at <= ?", *filter.CreatedTo)
	}
	return query
}

// Compile-time interface compliance check
var _ importjob.Repository = (*GormImportJobRepository)(nil)
