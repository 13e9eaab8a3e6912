// Package mappings implements the column-mapping management use cases.
package mappings

import (
	"context"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/erpbridge/backend/internal/domain/mapping"
	"github.com/erpbridge/backend/internal/domain/shared"
	"github.com/erpbridge/backend/internal/infrastructure/engine"
	"github.com/erpbridge/backend/internal/infrastructure/transform"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

// Service manages column mapping configurations. Every create and update
// runs the configuration through the pipeline's structural validation so a
// broken mapping is rejected before it can reach an import.
type Service struct {
	repo     mapping.Repository
	registry *transform.Registry
	logger   *zap.Logger
}

// NewService creates a mapping service
func NewService(repo mapping.Repository, registry *transform.Registry, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		repo:     repo,
		registry: registry,
		logger:   logger,
	}
}

// Create validates and persists a new column mapping
func (s *Service) Create(ctx context.Context, input CreateMappingInput) (*MappingResult, error) {
	warnings, err := s.checkConfig(input.Config)
	if err != nil {
		return nil, err
	}

	exists, err := s.repo.ExistsByName(ctx, input.Name)
	if err != nil {
		s.logger.Error("Failed to check mapping name", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to check mapping name")
	}
	if exists {
		return nil, shared.NewDomainError("MAPPING_NAME_TAKEN", "An active mapping with this name already exists")
	}

	m, err := mapping.NewColumnMapping(input.Name, input.SourceType, input.ERPEndpoint, input.Config)
	if err != nil {
		return nil, err
	}
	m.Description = input.Description

	if err := s.repo.Save(ctx, m); err != nil {
		s.logger.Error("Failed to save mapping", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to save mapping")
	}

	s.logger.Info("Mapping created",
		zap.String("mapping_id", m.ID.String()),
		zap.String("name", m.Name),
		zap.Strings("warnings", warnings))

	result := toResult(m, warnings)
	return &result, nil
}

// Update validates and persists changes to an existing mapping
func (s *Service) Update(ctx context.Context, input UpdateMappingInput) (*MappingResult, error) {
	warnings, err := s.checkConfig(input.Config)
	if err != nil {
		return nil, err
	}

	m, err := s.repo.FindByID(ctx, input.ID)
	if err != nil {
		return nil, shared.NewDomainError("MAPPING_NOT_FOUND", "Mapping not found")
	}

	if input.Name != m.Name {
		exists, err := s.repo.ExistsByName(ctx, input.Name)
		if err != nil {
			s.logger.Error("Failed to check mapping name", zap.Error(err))
			return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to check mapping name")
		}
		if exists {
			return nil, shared.NewDomainError("MAPPING_NAME_TAKEN", "An active mapping with this name already exists")
		}
	}

	if err := m.Update(input.Name, input.Description, input.SourceType, input.ERPEndpoint, input.Config); err != nil {
		return nil, err
	}

	if err := s.repo.Update(ctx, m); err != nil {
		if err == shared.ErrConcurrencyConflict {
			return nil, shared.NewDomainError("CONCURRENCY_CONFLICT", "Mapping was modified by another request")
		}
		s.logger.Error("Failed to update mapping", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to update mapping")
	}

	result := toResult(m, warnings)
	return &result, nil
}

// Get returns one mapping by ID
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*MappingResult, error) {
	m, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, shared.NewDomainError("MAPPING_NOT_FOUND", "Mapping not found")
	}
	result := toResult(m, nil)
	return &result, nil
}

// List returns a page of mappings
func (s *Service) List(ctx context.Context, input ListMappingsInput) (*ListMappingsResult, error) {
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

	listed, err := s.repo.FindAll(ctx, mapping.Filter{
		SourceType:  input.SourceType,
		ERPEndpoint: input.ERPEndpoint,
		ActiveOnly:  input.ActiveOnly,
		SortBy:      input.SortBy,
		SortOrder:   input.SortOrder,
	}, page, pageSize)
	if err != nil {
		s.logger.Error("Failed to list mappings", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to list mappings")
	}

	items := make([]MappingResult, 0, len(listed.Items))
	for _, m := range listed.Items {
		items = append(items, toResult(m, nil))
	}

	return &ListMappingsResult{
		Items:      items,
		TotalCount: listed.TotalCount,
		Page:       listed.Page,
		PageSize:   listed.PageSize,
	}, nil
}

// Delete soft-deletes a mapping. Finished jobs keep referencing it.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	m, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return shared.NewDomainError("MAPPING_NOT_FOUND", "Mapping not found")
	}
	if err := m.Deactivate(); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, m); err != nil {
		s.logger.Error("Failed to deactivate mapping", zap.Error(err))
		return shared.NewDomainError("INTERNAL_ERROR", "Failed to delete mapping")
	}

	s.logger.Info("Mapping deactivated", zap.String("mapping_id", id.String()))
	return nil
}

// Restore re-activates a soft-deleted mapping
func (s *Service) Restore(ctx context.Context, id uuid.UUID) (*MappingResult, error) {
	m, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, shared.NewDomainError("MAPPING_NOT_FOUND", "Mapping not found")
	}

	exists, err := s.repo.ExistsByName(ctx, m.Name)
	if err != nil {
		s.logger.Error("Failed to check mapping name", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to check mapping name")
	}
	if exists {
		return nil, shared.NewDomainError("MAPPING_NAME_TAKEN", "An active mapping with this name already exists")
	}

	if err := m.Activate(); err != nil {
		return nil, err
	}
	if err := s.repo.Update(ctx, m); err != nil {
		s.logger.Error("Failed to restore mapping", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to restore mapping")
	}

	result := toResult(m, nil)
	return &result, nil
}

// checkConfig parses and structurally validates a mapping configuration,
// returning non-fatal warnings such as unknown transformation names
func (s *Service) checkConfig(raw []byte) ([]string, error) {
	cfg, err := engine.ParseConfig(raw)
	if err != nil {
		return nil, shared.NewDomainError("INVALID_MAPPING_CONFIG", err.Error())
	}
	warnings, err := cfg.Validate(s.registry)
	if err != nil {
		return nil, shared.NewDomainError("INVALID_MAPPING_CONFIG", err.Error())
	}
	return warnings, nil
}
