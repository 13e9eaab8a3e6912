package persistence

import (
	"context"
	"errors"

	"github.com/erpbridge/backend/internal/domain/erp"
	"github.com/erpbridge/backend/internal/domain/shared"
	"github.com/erpbridge/backend/internal/infrastructure/persistence/models"
	"github.com/google/uuid"
	"gorm.io/gorm"
)

// GormERPConnectionRepository implements erp.ConnectionRepository using GORM
type GormERPConnectionRepository struct {
	db *gorm.DB
}

// NewGormERPConnectionRepository creates a new GormERPConnectionRepository
func NewGormERPConnectionRepository(db *gorm.DB) *GormERPConnectionRepository {
	return &GormERPConnectionRepository{db: db}
}

// Save creates a connection. Marking a connection default clears the flag
// on every other row in the same transaction.
func (r *GormERPConnectionRepository) Save(ctx context.Context, c *erp.Connection) error {
	model := models.ERPConnectionModelFromDomain(c)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if c.IsDefault {
			if err := r.clearDefault(tx, c.ID); err != nil {
				return err
			}
		}
		return tx.Create(model).Error
	})
}

// Update updates a connection with optimistic locking (version check)
func (r *GormERPConnectionRepository) Update(ctx context.Context, c *erp.Connection) error {
	model := models.ERPConnectionModelFromDomain(c)
	return r.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if c.IsDefault {
			if err := r.clearDefault(tx, c.ID); err != nil {
				return err
			}
		}
		result := tx.Model(model).
			Where("id = ? AND version = ?", c.ID, c.Version-1).
			Select("*").
			Updates(model)
		if result.Error != nil {
			return result.Error
		}
		if result.RowsAffected == 0 {
			return shared.ErrConcurrencyConflict
		}
		return nil
	})
}

// FindByID finds a connection by ID
func (r *GormERPConnectionRepository) FindByID(ctx context.Context, id uuid.UUID) (*erp.Connection, error) {
	var model models.ERPConnectionModel
	if err := r.db.WithContext(ctx).First(&model, "id = ?", id).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindDefault returns the active connection flagged as default
func (r *GormERPConnectionRepository) FindDefault(ctx context.Context) (*erp.Connection, error) {
	var model models.ERPConnectionModel
	if err := r.db.WithContext(ctx).
		Where("is_default = ? AND is_active = ?", true, true).
		First(&model).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, shared.ErrNotFound
		}
		return nil, err
	}
	return model.ToDomain(), nil
}

// FindAll returns every configured connection
func (r *GormERPConnectionRepository) FindAll(ctx context.Context) ([]*erp.Connection, error) {
	var connModels []models.ERPConnectionModel
	if err := r.db.WithContext(ctx).
		Order("created_at ASC").
		Find(&connModels).Error; err != nil {
		return nil, err
	}

	conns := make([]*erp.Connection, len(connModels))
	for i, model := range connModels {
		conns[i] = model.ToDomain()
	}
	return conns, nil
}

// clearDefault unsets the default flag on all other connections
func (r *GormERPConnectionRepository) clearDefault(tx *gorm.DB, except uuid.UUID) error {
	return tx.Model(&models.ERPConnectionModel{}).
		Where("id <> ? AND is_default = ?", except, true).
		Update("is_default", false).Error
}

// Compile-time interface compliance check
var _ erp.ConnectionRepository = (*GormERPConnectionRepository)(nil)
