// Package erp holds the ERP connection aggregate: credentials and routing
// for one downstream ERPNext instance.
package erp

import (
	"net/url"

	"github.com/erpbridge/backend/internal/domain/shared"
)

// Connection is a configured downstream ERP system. APISecret is stored
// encrypted at rest by the persistence layer.
type Connection struct {
	shared.BaseAggregateRoot
	Name      string `json:"name"`
	BaseURL   string `json:"base_url"`
	APIKey    string `json:"api_key"`
	APISecret string `json:"-"`
	IsDefault bool   `json:"is_default"`
	IsActive  bool   `json:"is_active"`
}

// NewConnection creates an active ERP connection
func NewConnection(name, baseURL, apiKey, apiSecret string) (*Connection, error) {
	if name == "" {
		return nil, shared.NewDomainError("INVALID_CONNECTION_NAME", "Connection name cannot be empty")
	}
	if err := validateBaseURL(baseURL); err != nil {
		return nil, err
	}
	if apiKey == "" || apiSecret == "" {
		return nil, shared.NewDomainError("INVALID_API_CREDENTIALS", "API key and secret are required")
	}

	return &Connection{
		BaseAggregateRoot: shared.NewBaseAggregateRoot(),
		Name:              name,
		BaseURL:           baseURL,
		APIKey:            apiKey,
		APISecret:         apiSecret,
		IsActive:          true,
	}, nil
}

// UpdateCredentials rotates the API credentials
func (c *Connection) UpdateCredentials(apiKey, apiSecret string) error {
	if apiKey == "" || apiSecret == "" {
		return shared.NewDomainError("INVALID_API_CREDENTIALS", "API key and secret are required")
	}
	c.APIKey = apiKey
	c.APISecret = apiSecret
	c.Touch()
	return nil
}

// UpdateBaseURL changes the downstream endpoint
func (c *Connection) UpdateBaseURL(baseURL string) error {
	if err := validateBaseURL(baseURL); err != nil {
		return err
	}
	c.BaseURL = baseURL
	c.Touch()
	return nil
}

// MarkDefault flags this connection as the one new imports deliver to.
// The application layer clears the flag on the previous default.
func (c *Connection) MarkDefault() {
	c.IsDefault = true
	c.Touch()
}

// ClearDefault removes the default flag
func (c *Connection) ClearDefault() {
	c.IsDefault = false
	c.Touch()
}

// Deactivate disables the connection for new imports
func (c *Connection) Deactivate() error {
	if !c.IsActive {
		return shared.NewDomainError("CONNECTION_INACTIVE", "Connection is already deactivated")
	}
	c.IsActive = false
	c.Touch()
	return nil
}

func validateBaseURL(raw string) error {
	u, err := url.Parse(raw)
	if err != nil || u.Scheme == "" || u.Host == "" {
		return shared.NewDomainError("INVALID_BASE_URL", "Base URL must be an absolute http(s) URL")
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return shared.NewDomainError("INVALID_BASE_URL", "Base URL must be an absolute http(s) URL")
	}
	return nil
}
