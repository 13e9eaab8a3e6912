package mappings

import (
	"encoding/json"
	"time"

	"github.com/google/uuid"

	"github.com/erpbridge/backend/internal/domain/mapping"
)

// CreateMappingInput contains the input for creating a column mapping
type CreateMappingInput struct {
	Name        string
	Description string
	SourceType  mapping.SourceType
	ERPEndpoint string
	Config      json.RawMessage
}

// UpdateMappingInput contains the input for updating a column mapping
type UpdateMappingInput struct {
	ID          uuid.UUID
	Name        string
	Description string
	SourceType  mapping.SourceType
	ERPEndpoint string
	Config      json.RawMessage
}

// ListMappingsInput contains filters and paging for listing mappings
type ListMappingsInput struct {
	SourceType  *mapping.SourceType
	ERPEndpoint *string
	ActiveOnly  bool
	SortBy      string
	SortOrder   string
	Page        int
	PageSize    int
}

// MappingResult is the API view of a column mapping. Warnings carries
// non-fatal configuration findings from the save that produced it.
type MappingResult struct {
	ID          uuid.UUID          `json:"id"`
	Name        string             `json:"name"`
	Description string             `json:"description,omitempty"`
	SourceType  mapping.SourceType `json:"source_type"`
	ERPEndpoint string             `json:"erp_endpoint"`
	Config      json.RawMessage    `json:"config"`
	IsActive    bool               `json:"is_active"`
	Version     int                `json:"version"`
	CreatedAt   time.Time          `json:"created_at"`
	UpdatedAt   time.Time          `json:"updated_at"`
	Warnings    []string           `json:"warnings,omitempty"`
}

// ListMappingsResult is a page of mappings
type ListMappingsResult struct {
	Items      []MappingResult `json:"items"`
	TotalCount int64           `json:"total_count"`
	Page       int             `json:"page"`
	PageSize   int             `json:"page_size"`
}

func toResult(m *mapping.ColumnMapping, warnings []string) MappingResult {
	return MappingResult{
		ID:          m.ID,
		Name:        m.Name,
		Description: m.Description,
		SourceType:  m.SourceType,
		ERPEndpoint: m.ERPEndpoint,
		Config:      json.RawMessage(m.Config),
		IsActive:    m.IsActive,
		Version:     m.Version,
		CreatedAt:   m.CreatedAt,
		UpdatedAt:   m.UpdatedAt,
		Warnings:    warnings,
	}
}
