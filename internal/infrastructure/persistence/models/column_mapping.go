package models

import (
	"github.com/erpbridge/backend/internal/domain/mapping"
)

// ColumnMappingModel is the persistence model for the ColumnMapping aggregate.
type ColumnMappingModel struct {
	AggregateModel
	Name        string             `gorm:"type:varchar(200);not null;uniqueIndex"`
	Description string             `gorm:"type:text"`
	SourceType  mapping.SourceType `gorm:"type:varchar(20);not null;default:'any'"`
	ERPEndpoint string             `gorm:"type:varchar(50);not null;index"`
	Config      string             `gorm:"type:jsonb;not null"`
	IsActive    bool               `gorm:"not null;default:true;index"`
}

// TableName returns the table name for GORM
func (ColumnMappingModel) TableName() string {
	return "column_mappings"
}

// ToDomain converts the persistence model to a domain ColumnMapping aggregate.
func (m *ColumnMappingModel) ToDomain() *mapping.ColumnMapping {
	cm := &mapping.ColumnMapping{
		Name:        m.Name,
		Description: m.Description,
		SourceType:  m.SourceType,
		ERPEndpoint: m.ERPEndpoint,
		Config:      []byte(m.Config),
		IsActive:    m.IsActive,
	}
	m.PopulateAggregateRoot(&cm.BaseAggregateRoot)
	return cm
}

// FromDomain populates the persistence model from a domain ColumnMapping.
func (m *ColumnMappingModel) FromDomain(cm *mapping.ColumnMapping) {
	m.FromDomainAggregateRoot(cm.BaseAggregateRoot)
	m.Name = cm.Name
	m.Description = cm.Description
	m.SourceType = cm.SourceType
	m.ERPEndpoint = cm.ERPEndpoint
	m.Config = string(cm.Config)
	m.IsActive = cm.IsActive
}

// ColumnMappingModelFromDomain creates a new persistence model from a domain ColumnMapping.
func ColumnMappingModelFromDomain(cm *mapping.ColumnMapping) *ColumnMappingModel {
	m := &ColumnMappingModel{}
	m.FromDomain(cm)
	return m
}
