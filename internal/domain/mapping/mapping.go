// Package mapping holds the column-mapping aggregate: a named, versioned
// configuration describing how one kind of spreadsheet maps onto one ERP
// document type.
package mapping

import (
	"fmt"

	"github.com/erpbridge/backend/internal/domain/shared"
)

// SourceType identifies the spreadsheet format a mapping expects
type SourceType string

const (
	SourceTypeCSV   SourceType = "csv"
	SourceTypeExcel SourceType = "excel"
	SourceTypeAny   SourceType = "any"
)

// IsValid checks if the source type is valid
func (s SourceType) IsValid() bool {
	switch s {
	case SourceTypeCSV, SourceTypeExcel, SourceTypeAny:
		return true
	}
	return false
}

// ERP endpoints a mapping may deliver to
const (
	EndpointCustomers = "customers"
	EndpointProducts  = "products"
	EndpointSales     = "sales"
	EndpointInventory = "inventory"
)

// ValidEndpoint checks if the endpoint is one the delivery layer knows
func ValidEndpoint(endpoint string) bool {
	switch endpoint {
	case EndpointCustomers, EndpointProducts, EndpointSales, EndpointInventory:
		return true
	}
	return false
}

// ColumnMapping is a reusable import configuration. Config holds the raw
// JSON mapping document; its structure is validated by the pipeline layer
// before the aggregate is saved.
type ColumnMapping struct {
	shared.BaseAggregateRoot
	Name        string     `json:"name"`
	Description string     `json:"description,omitempty"`
	SourceType  SourceType `json:"source_type"`
	ERPEndpoint string     `json:"erp_endpoint"`
	Config      []byte     `json:"config"`
	IsActive    bool       `json:"is_active"`
}

// NewColumnMapping creates an active column mapping
func NewColumnMapping(name string, sourceType SourceType, erpEndpoint string, config []byte) (*ColumnMapping, error) {
	if name == "" {
		return nil, shared.NewDomainError("INVALID_MAPPING_NAME", "Mapping name cannot be empty")
	}
	if !sourceType.IsValid() {
		return nil, shared.NewDomainError("INVALID_SOURCE_TYPE", fmt.Sprintf("Invalid source type: %s", sourceType))
	}
	if !ValidEndpoint(erpEndpoint) {
		return nil, shared.NewDomainError("INVALID_ERP_ENDPOINT", fmt.Sprintf("Unknown ERP endpoint: %s", erpEndpoint))
	}
	if len(config) == 0 {
		return nil, shared.NewDomainError("INVALID_MAPPING_CONFIG", "Mapping configuration cannot be empty")
	}

	return &ColumnMapping{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              name,
		SourceType:        sourceType,
		ERPEndpoint:       erpEndpoint,
		Config:            config,
		IsActive:          true,
	}, nil
}

// Update replaces the mutable attributes of an active mapping
func (m *ColumnMapping) Update(name, description string, sourceType SourceType, erpEndpoint string, config []byte) error {
	if !m.IsActive {
		return shared.NewDomainError("MAPPING_INACTIVE", "Cannot update a deactivated mapping")
	}
	if name == "" {
		return shared.NewDomainError("INVALID_MAPPING_NAME", "Mapping name cannot be empty")
	}
	if !sourceType.IsValid() {
		return shared.NewDomainError("INVALID_SOURCE_TYPE", fmt.Sprintf("Invalid source type: %s", sourceType))
	}
	if !ValidEndpoint(erpEndpoint) {
		return shared.NewDomainError("INVALID_ERP_ENDPOINT", fmt.Sprintf("Unknown ERP endpoint: %s", erpEndpoint))
	}
	if len(config) == 0 {
		return shared.NewDomainError("INVALID_MAPPING_CONFIG", "Mapping configuration cannot be empty")
	}

	m.Name = name
	m.Description = description
	m.SourceType = sourceType
	m.ERPEndpoint = erpEndpoint
	m.Config = config
	m.Touch()
	return nil
}

// Deactivate soft-deletes the mapping. Historical import jobs keep
// referencing it; new imports cannot use it.
func (m *ColumnMapping) Deactivate() error {
	if !m.IsActive {
		return shared.NewDomainError("MAPPING_INACTIVE", "Mapping is already deactivated")
	}
	m.IsActive = false
	m.Touch()
	return nil
}

// Activate restores a deactivated mapping
func (m *ColumnMapping) Activate() error {
	if m.IsActive {
		return shared.NewDomainError("MAPPING_ACTIVE", "Mapping is already active")
	}
	m.IsActive = true
	m.Touch()
	return nil
}

// AcceptsFile reports whether the mapping can process the given filename
// extension
func (m *ColumnMapping) AcceptsFile(ext string) bool {
	switch m.SourceType {
	case SourceTypeCSV:
		return ext == ".csv"
	case SourceTypeExcel:
		return ext == ".xlsx" || ext == ".xls"
	default:
		return ext == ".csv" || ext == ".xlsx" || ext == ".xls"
	}
}
