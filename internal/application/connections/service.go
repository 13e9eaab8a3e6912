// Package connections implements management of downstream ERP connections.
package connections

import (
	"context"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	erpdomain "github.com/erpbridge/backend/internal/domain/erp"
	"github.com/erpbridge/backend/internal/domain/shared"
	"github.com/erpbridge/backend/internal/infrastructure/erp"
)

const defaultTestTimeout = 10 * time.Second

// Tester probes an ERP endpoint with the given credentials
type Tester func(ctx context.Context, creds erp.Credentials, timeout time.Duration) error

func defaultTester(ctx context.Context, creds erp.Credentials, timeout time.Duration) error {
	return erp.NewClientWithCredentials(creds, timeout).TestConnection(ctx)
}

// Service manages ERP connection records
type Service struct {
	repo   erpdomain.ConnectionRepository
	tester Tester
	logger *zap.Logger
}

// ServiceOption configures the connection service
type ServiceOption func(*Service)

// WithTester overrides the connection probe, used in tests
func WithTester(t Tester) ServiceOption {
	return func(s *Service) {
		if t != nil {
			s.tester = t
		}
	}
}

// NewService creates a connection service
func NewService(repo erpdomain.ConnectionRepository, logger *zap.Logger, opts ...ServiceOption) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &Service{
		repo:   repo,
		tester: defaultTester,
		logger: logger,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Create registers a new connection. The first connection automatically
// becomes the default.
func (s *Service) Create(ctx context.Context, input CreateConnectionInput) (*ConnectionResult, error) {
	conn, err := erpdomain.NewConnection(input.Name, input.BaseURL, input.APIKey, input.APISecret)
	if err != nil {
		return nil, err
	}

	existing, err := s.repo.FindAll(ctx)
	if err != nil {
		s.logger.Error("Failed to list connections", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to create connection")
	}
	if len(existing) == 0 || input.MakeDefault {
		conn.MarkDefault()
	}

	if err := s.repo.Save(ctx, conn); err != nil {
		s.logger.Error("Failed to save connection", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to create connection")
	}

	s.logger.Info("ERP connection created",
		zap.String("connection_id", conn.ID.String()),
		zap.String("name", conn.Name),
		zap.Bool("default", conn.IsDefault))

	result := toResult(conn)
	return &result, nil
}

// Update changes a connection's endpoint or credentials. Blank credentials
// keep the stored ones.
func (s *Service) Update(ctx context.Context, input UpdateConnectionInput) (*ConnectionResult, error) {
	conn, err := s.repo.FindByID(ctx, input.ID)
	if err != nil {
		return nil, shared.NewDomainError("CONNECTION_NOT_FOUND", "Connection not found")
	}

	if input.BaseURL != "" && input.BaseURL != conn.BaseURL {
		if err := conn.UpdateBaseURL(input.BaseURL); err != nil {
			return nil, err
		}
	}
	if input.APIKey != "" || input.APISecret != "" {
		if err := conn.UpdateCredentials(input.APIKey, input.APISecret); err != nil {
			return nil, err
		}
	}

	if err := s.repo.Update(ctx, conn); err != nil {
		if err == shared.ErrConcurrencyConflict {
			return nil, shared.NewDomainError("CONCURRENCY_CONFLICT", "Connection was modified by another request")
		}
		s.logger.Error("Failed to update connection", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to update connection")
	}

	result := toResult(conn)
	return &result, nil
}

// Get returns one connection
func (s *Service) Get(ctx context.Context, id uuid.UUID) (*ConnectionResult, error) {
	conn, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, shared.NewDomainError("CONNECTION_NOT_FOUND", "Connection not found")
	}
	result := toResult(conn)
	return &result, nil
}

// List returns every configured connection
func (s *Service) List(ctx context.Context) ([]ConnectionResult, error) {
	conns, err := s.repo.FindAll(ctx)
	if err != nil {
		s.logger.Error("Failed to list connections", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to list connections")
	}

	results := make([]ConnectionResult, 0, len(conns))
	for _, conn := range conns {
		results = append(results, toResult(conn))
	}
	return results, nil
}

// SetDefault flags a connection as the one new imports deliver to. The
// repository clears the flag on the previous default in the same
// transaction.
func (s *Service) SetDefault(ctx context.Context, id uuid.UUID) (*ConnectionResult, error) {
	conn, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, shared.NewDomainError("CONNECTION_NOT_FOUND", "Connection not found")
	}
	if !conn.IsActive {
		return nil, shared.NewDomainError("CONNECTION_INACTIVE", "Cannot make a deactivated connection the default")
	}

	conn.MarkDefault()
	if err := s.repo.Update(ctx, conn); err != nil {
		s.logger.Error("Failed to set default connection", zap.Error(err))
		return nil, shared.NewDomainError("INTERNAL_ERROR", "Failed to set default connection")
	}

	s.logger.Info("Default ERP connection changed", zap.String("connection_id", id.String()))

	result := toResult(conn)
	return &result, nil
}

// Delete deactivates a connection. The default connection cannot be
// deleted while it is the default.
func (s *Service) Delete(ctx context.Context, id uuid.UUID) error {
	conn, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return shared.NewDomainError("CONNECTION_NOT_FOUND", "Connection not found")
	}
	if conn.IsDefault {
		return shared.NewDomainError("CONNECTION_IS_DEFAULT", "Choose another default connection first")
	}
	if err := conn.Deactivate(); err != nil {
		return err
	}
	if err := s.repo.Update(ctx, conn); err != nil {
		s.logger.Error("Failed to deactivate connection", zap.Error(err))
		return shared.NewDomainError("INTERNAL_ERROR", "Failed to delete connection")
	}
	return nil
}

// Test probes a stored connection's health endpoint
func (s *Service) Test(ctx context.Context, id uuid.UUID) (*TestResult, error) {
	conn, err := s.repo.FindByID(ctx, id)
	if err != nil {
		return nil, shared.NewDomainError("CONNECTION_NOT_FOUND", "Connection not found")
	}
	return s.probe(ctx, erp.Credentials{
		BaseURL:   conn.BaseURL,
		APIKey:    conn.APIKey,
		APISecret: conn.APISecret,
	})
}

// TestCredentials probes arbitrary credentials before they are saved
func (s *Service) TestCredentials(ctx context.Context, input TestCredentialsInput) (*TestResult, error) {
	if input.BaseURL == "" {
		return nil, shared.NewDomainError("INVALID_BASE_URL", "Base URL is required")
	}
	return s.probe(ctx, erp.Credentials{
		BaseURL:   input.BaseURL,
		APIKey:    input.APIKey,
		APISecret: input.APISecret,
	})
}

func (s *Service) probe(ctx context.Context, creds erp.Credentials) (*TestResult, error) {
	start := time.Now()
	err := s.tester(ctx, creds, defaultTestTimeout)
	elapsed := time.Since(start)

	if err != nil {
		s.logger.Warn("ERP connection test failed",
			zap.String("base_url", creds.BaseURL),
			zap.Error(err))
		return &TestResult{
			Reachable: false,
			LatencyMS: elapsed.Milliseconds(),
			Message:   err.Error(),
		}, nil
	}

	return &TestResult{
		Reachable: true,
		LatencyMS: elapsed.Milliseconds(),
	}, nil
}
