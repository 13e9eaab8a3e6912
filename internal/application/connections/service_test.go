package connections

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	erpdomain "github.com/erpbridge/backend/internal/domain/erp"
	"github.com/erpbridge/backend/internal/domain/shared"
	"github.com/erpbridge/backend/internal/infrastructure/erp"
)

// MockConnectionRepository is a mock implementation of erp.ConnectionRepository
type MockConnectionRepository struct {
	mock.Mock
}

func (m *MockConnectionRepository) Save(ctx context.Context, c *erpdomain.Connection) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockConnectionRepository) Update(ctx context.Context, c *erpdomain.Connection) error {
	args := m.Called(ctx, c)
	return args.Error(0)
}

func (m *MockConnectionRepository) FindByID(ctx context.Context, id uuid.UUID) (*erpdomain.Connection, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*erpdomain.Connection), args.Error(1)
}

func (m *MockConnectionRepository) FindDefault(ctx context.Context) (*erpdomain.Connection, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*erpdomain.Connection), args.Error(1)
}

func (m *MockConnectionRepository) FindAll(ctx context.Context) ([]*erpdomain.Connection, error) {
	args := m.Called(ctx)
	return args.Get(0).([]*erpdomain.Connection), args.Error(1)
}

func newConnection(t *testing.T) *erpdomain.Connection {
	t.Helper()
	conn, err := erpdomain.NewConnection("production", "https://erp.example.com", "key", "secret")
	require.NoError(t, err)
	return conn
}

func TestService_Create_FirstConnectionBecomesDefault(t *testing.T) {
	ctx := context.Background()
	repo := new(MockConnectionRepository)

	repo.On("FindAll", ctx).Return([]*erpdomain.Connection{}, nil)
	repo.On("Save", ctx, mock.AnythingOfType("*erp.Connection")).Return(nil)

	svc := NewService(repo, zap.NewNop())

	result, err := svc.Create(ctx, CreateConnectionInput{
		Name:      "production",
		BaseURL:   "https://erp.example.com",
		APIKey:    "key",
		APISecret: "secret",
	})

	require.NoError(t, err)
	assert.True(t, result.IsDefault)
	repo.AssertExpectations(t)
}

func TestService_Create_SecondConnectionNotDefault(t *testing.T) {
	ctx := context.Background()
	repo := new(MockConnectionRepository)
	existing := newConnection(t)

	repo.On("FindAll", ctx).Return([]*erpdomain.Connection{existing}, nil)
	repo.On("Save", ctx, mock.AnythingOfType("*erp.Connection")).Return(nil)

	svc := NewService(repo, zap.NewNop())

	result, err := svc.Create(ctx, CreateConnectionInput{
		Name:      "staging",
		BaseURL:   "https://staging.example.com",
		APIKey:    "key",
		APISecret: "secret",
	})

	require.NoError(t, err)
	assert.False(t, result.IsDefault)
}

func TestService_Create_InvalidURL(t *testing.T) {
	svc := NewService(new(MockConnectionRepository), zap.NewNop())

	_, err := svc.Create(context.Background(), CreateConnectionInput{
		Name:      "bad",
		BaseURL:   "not a url",
		APIKey:    "key",
		APISecret: "secret",
	})

	require.Error(t, err)
	domainErr, ok := err.(*shared.DomainError)
	require.True(t, ok)
	assert.Equal(t, "INVALID_BASE_URL", domainErr.Code)
}

func TestService_Delete_DefaultRejected(t *testing.T) {
	ctx := context.Background()
	repo := new(MockConnectionRepository)
	conn := newConnection(t)
	conn.MarkDefault()

	repo.On("FindByID", ctx, conn.ID).Return(conn, nil)

	svc := NewService(repo, zap.NewNop())

	err := svc.Delete(ctx, conn.ID)

	require.Error(t, err)
	domainErr, ok := err.(*shared.DomainError)
	require.True(t, ok)
	assert.Equal(t, "CONNECTION_IS_DEFAULT", domainErr.Code)
}

func TestService_SetDefault(t *testing.T) {
	ctx := context.Background()
	repo := new(MockConnectionRepository)
	conn := newConnection(t)

	repo.On("FindByID", ctx, conn.ID).Return(conn, nil)
	repo.On("Update", ctx, conn).Return(nil)

	svc := NewService(repo, zap.NewNop())

	result, err := svc.SetDefault(ctx, conn.ID)

	require.NoError(t, err)
	assert.True(t, result.IsDefault)
}

func TestService_Update_KeepsCredentialsWhenBlank(t *testing.T) {
	ctx := context.Background()
	repo := new(MockConnectionRepository)
	conn := newConnection(t)

	repo.On("FindByID", ctx, conn.ID).Return(conn, nil)
	repo.On("Update", ctx, conn).Return(nil)

	svc := NewService(repo, zap.NewNop())

	_, err := svc.Update(ctx, UpdateConnectionInput{
		ID:      conn.ID,
		BaseURL: "https://erp2.example.com",
	})

	require.NoError(t, err)
	assert.Equal(t, "https://erp2.example.com", conn.BaseURL)
	assert.Equal(t, "key", conn.APIKey)
	assert.Equal(t, "secret", conn.APISecret)
}

func TestService_Test_ReportsProbeOutcome(t *testing.T) {
	ctx := context.Background()
	repo := new(MockConnectionRepository)
	conn := newConnection(t)
	repo.On("FindByID", ctx, conn.ID).Return(conn, nil)

	t.Run("reachable", func(t *testing.T) {
		var probed erp.Credentials
		svc := NewService(repo, zap.NewNop(), WithTester(
			func(_ context.Context, creds erp.Credentials, _ time.Duration) error {
				probed = creds
				return nil
			}))

		result, err := svc.Test(ctx, conn.ID)
		require.NoError(t, err)
		assert.True(t, result.Reachable)
		assert.Equal(t, "https://erp.example.com", probed.BaseURL)
	})

	t.Run("unreachable", func(t *testing.T) {
		svc := NewService(repo, zap.NewNop(), WithTester(
			func(context.Context, erp.Credentials, time.Duration) error {
				return errors.New("connection refused")
			}))

		result, err := svc.Test(ctx, conn.ID)
		require.NoError(t, err)
		assert.False(t, result.Reachable)
		assert.Contains(t, result.Message, "connection refused")
	})
}

func TestService_TestCredentials_RequiresBaseURL(t *testing.T) {
	svc := NewService(new(MockConnectionRepository), zap.NewNop())

	_, err := svc.TestCredentials(context.Background(), TestCredentialsInput{})
	require.Error(t, err)
}
