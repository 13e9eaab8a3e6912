package mapping

import (
	"context"

	"github.com/google/uuid"
)

// Filter defines the filters for querying column mappings
type Filter struct {
	SourceType  *SourceType
	ERPEndpoint *string
	ActiveOnly  bool
	SortBy      string // column name, validated against a whitelist by the repository
	SortOrder   string // "ASC" or "DESC"
}

// ListResult represents a paginated list of column mappings
type ListResult struct {
	Items      []*ColumnMapping
	TotalCount int64
	Page       int
	PageSize   int
}

// Repository defines the interface for column mapping persistence
type Repository interface {
	// Save persists a new column mapping
	Save(ctx context.Context, m *ColumnMapping) error

	// Update persists changes to an existing column mapping
	Update(ctx context.Context, m *ColumnMapping) error

	// FindByID finds a column mapping by ID
	FindByID(ctx context.Context, id uuid.UUID) (*ColumnMapping, error)

	// FindByName finds a column mapping by its unique name
	FindByName(ctx context.Context, name string) (*ColumnMapping, error)

	// FindAll returns mappings with pagination and filtering
	FindAll(ctx context.Context, filter Filter, page, pageSize int) (*ListResult, error)

	// ExistsByName checks whether an active mapping with the name exists
	ExistsByName(ctx context.Context, name string) (bool, error)
}
