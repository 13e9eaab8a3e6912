package connections

import (
	"time"

	"github.com/google/uuid"

	erpdomain "github.com/erpbridge/backend/internal/domain/erp"
)

// CreateConnectionInput contains the input for registering a connection
type CreateConnectionInput struct {
	Name        string
	BaseURL     string
	APIKey      string
	APISecret   string
	MakeDefault bool
}

// UpdateConnectionInput contains the mutable attributes of a connection.
// Blank credential fields leave the stored credentials unchanged.
type UpdateConnectionInput struct {
	ID        uuid.UUID
	BaseURL   string
	APIKey    string
	APISecret string
}

// TestCredentialsInput contains credentials to probe before saving
type TestCredentialsInput struct {
	BaseURL   string
	APIKey    string
	APISecret string
}

// ConnectionResult is the API view of a connection. Credentials are never
// echoed back.
type ConnectionResult struct {
	ID        uuid.UUID `json:"id"`
	Name      string    `json:"name"`
	BaseURL   string    `json:"base_url"`
	IsDefault bool      `json:"is_default"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
	UpdatedAt time.Time `json:"updated_at"`
}

// TestResult reports the outcome of a connection probe
type TestResult struct {
	Reachable bool   `json:"reachable"`
	LatencyMS int64  `json:"latency_ms"`
	Message   string `json:"message,omitempty"`
}

func toResult(c *erpdomain.Connection) ConnectionResult {
	return ConnectionResult{
		ID:        c.ID,
		Name:      c.Name,
		BaseURL:   c.BaseURL,
		IsDefault: c.IsDefault,
		IsActive:  c.IsActive,
		CreatedAt: c.CreatedAt,
		UpdatedAt: c.UpdatedAt,
	}
}
