package models

import (
	"github.com/erpbridge/backend/internal/domain/erp"
)

// ERPConnectionModel is the persistence model for the ERP Connection aggregate.
type ERPConnectionModel struct {
	AggregateModel
	Name      string `gorm:"type:varchar(200);not null;uniqueIndex"`
	BaseURL   string `gorm:"type:varchar(500);not null"`
	APIKey    string `gorm:"type:varchar(500);not null"`
	APISecret string `gorm:"type:varchar(500)"`
	IsDefault bool   `gorm:"not null;default:false;index"`
	IsActive  bool   `gorm:"not null;default:true"`
}

// TableName returns the table name for GORM
func (ERPConnectionModel) TableName() string {
	return "erp_connections"
}

// ToDomain converts the persistence model to a domain Connection aggregate.
func (m *ERPConnectionModel) ToDomain() *erp.Connection {
	conn := &erp.Connection{
		Name:      m.Name,
		BaseURL:   m.BaseURL,
		APIKey:    m.APIKey,
		APISecret: m.APISecret,
		IsDefault: m.IsDefault,
		IsActive:  m.IsActive,
	}
	m.PopulateAggregateRoot(&conn.BaseAggregateRoot)
	return conn
}

// FromDomain populates the persistence model from a domain Connection.
func (m *ERPConnectionModel) FromDomain(conn *erp.Connection) {
	m.FromDomainAggregateRoot(conn.BaseAggregateRoot)
	m.Name = conn.Name
	m.BaseURL = conn.BaseURL
	m.APIKey = conn.APIKey
	m.APISecret = conn.APISecret
	m.IsDefault = conn.IsDefault
	m.IsActive = conn.IsActive
}

// ERPConnectionModelFromDomain creates a new persistence model from a domain Connection.
func ERPConnectionModelFromDomain(conn *erp.Connection) *ERPConnectionModel {
	m := &ERPConnectionModel{}
	m.FromDomain(conn)
	return m
}
