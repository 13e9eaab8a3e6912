package persistence

import (
	"context"
	"errors"

	"github.com/erpbridge/backend/internal/domain/mapping"
	"github.com/erpbridge/backend/internal/domain/shared"
	"github.com/erpbridge/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormMappingRepository implements mapping.Repository using GORM
type GormMappingRepository struct {
	db *gorm.DB
}

// NewGormMappingRepository creates a new GormMappingRepository
func NewGormMappingRepository(db *gorm.DB) *GormMappingRepository {
	return &GormMappingRepository{db: db}
}

// Save creates a column mapping
func (r *GormMappingRepository) Save(ctx context.Context, m *mapping.ColumnMapping) error {
	model := models.ColumnMappingModelFromDomain(m)
	return r.db.WithContext(ctx).Create(model).Error
}

// Update updates a column mapping with optimistic locking (version check)
func (r *GormMappingRepository) Update(ctx context.Context, m *mapping.ColumnMapping) error {
	model := models.ColumnMappingModelFromDomain(m)
	result := r.db.WithContext(ctx).
		Model(model).
		Where("id = ? AND version = ?", m.ID, m.Version-1).
		Select("*").
		Updates(model)

	if result.Error != nil {
		return result.Error
	}
	if result.RowsAffected == 0 {
		return shared.ErrConcurrencyConflict
	}
	return nil
}

// FindByID finds a column mapping by ID
func (r *GormMappingRepository) FindByID(ctx context.Context, id uuid.UUID) (*mapping.ColumnMapping, error) {
	var model models.ColumnMappingModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindByName finds a column mapping by its unique name
func (r *GormMappingRepository) FindByName(ctx context.Context, name string) (*mapping.ColumnMapping, error) {
	var model models.ColumnMappingModel
	if err := r.db.WithContext(ctx).
		Where("name = ?", name).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll returns mappings with pagination and filtering
func (r *GormMappingRepository) FindAll(ctx context.Context, filter mapping.Filter, page, pageSize int) (*mapping.ListResult, error) {
	query := r.db.WithContext(ctx).Model(&models.ColumnMappingModel{})
	query = r.applyFilters(query, filter)

	var totalCount int64
	if err := query.Count(&totalCount).Error; err != nil {
		return nil, err
	}

	if page > 0 && pageSize > 0 {
		offset := (page - 1) * pageSize
		query = query.Offset(offset).Limit(pageSize)
	}

	sortField := ValidateSortField(filter.SortBy, MappingSortFields, "created_at")
	sortOrder := ValidateSortOrder(filter.SortOrder)
	query = query.Order(sortField + " " + sortOrder)

	var mappingModels []models.ColumnMappingModel
	if err := query.Find(&mappingModels).Error; err != nil {
		return nil, err
	}

	mappings := make([]*mapping.ColumnMapping, len(mappingModels))
	for i, model := range mappingModels {
		mappings[i] = model.ToDomain()
	}

	return &mapping.ListResult{
		Items:      mappings,
		TotalCount: totalCount,
		Page:       page,
		PageSize:   pageSize,
	}, nil
}

// ExistsByName checks whether an active mapping with the name exists
func (r *GormMappingRepository) ExistsByName(ctx context.Context, name string) (bool, error) {
	var count int64
	if err := r.db.WithContext(ctx).
		Model(&models.ColumnMappingModel{}).
		Where("name = ? AND is_active = ?", name, true).
		Count(&count).Error; err != nil {
		return false, err
	}
	return count > 0, nil
}

// applyFilters applies filter options to the query
func (r *GormMappingRepository) applyFilters(query *gorm.DB, filter mapping.Filter) *gorm.DB {
	if filter.SourceType != nil {
		query = query.Where("source_type = ?", *filter.SourceType)
	}
	if filter.ERPEndpoint != nil {
		query = query.Where("erp_endpoint = ?", *filter.ERPEndpoint)
	}
	if filter.ActiveOnly {
		query = query.Where("is_active = ?", true)
	}
	return query
}

// Compile-time interface compliance check
var _ mapping.Repository = (*GormMappingRepository)(nil)
