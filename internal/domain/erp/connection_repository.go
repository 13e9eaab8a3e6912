package erp

import (
	"context"

	"github.com/google/uuid"
)

// ConnectionRepository defines the interface for ERP connection persistence
type ConnectionRepository interface {
	// Save persists a new connection
	Save(ctx context.Context, c *Connection) error

	// Update persists changes to an existing connection
	Update(ctx context.Context, c *Connection) error

	// FindByID finds a connection by ID
	FindByID(ctx context.Context, id uuid.UUID) (*Connection, error)

	// FindDefault returns the connection flagged as default
	FindDefault(ctx context.Context) (*Connection, error)

	// FindAll returns every configured connection
	FindAll(ctx context.Context) ([]*Connection, error)
}
