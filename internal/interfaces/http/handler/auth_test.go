package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	appidentity "github.com/erpbridge/backend/internal/application/identity"
	"github.com/erpbridge/backend/internal/domain/identity"
	"github.com/erpbridge/backend/internal/infrastructure/auth"
	"github.com/erpbridge/backend/internal/infrastructure/config"
	"github.com/erpbridge/backend/internal/interfaces/http/middleware"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// testJWTConfig returns a default JWT config for tests
func testJWTConfig() config.JWTConfig {
	return config.JWTConfig{
		Secret:                 "test-secret-key-32-characters-long",
		AccessTokenExpiration:  15 * time.Minute,
		RefreshTokenExpiration: 7 * 24 * time.Hour,
		Issuer:                 "test-issuer",
	}
}

// MockUserRepository is a mock implementation of identity.UserRepository
type MockUserRepository struct {
	mock.Mock
}

func (m *MockUserRepository) Save(ctx context.Context, user *identity.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) Update(ctx context.Context, user *identity.User) error {
	args := m.Called(ctx, user)
	return args.Error(0)
}

func (m *MockUserRepository) FindByID(ctx context.Context, id uuid.UUID) (*identity.User, error) {
	args := m.Called(ctx, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.User), args.Error(1)
}

func (m *MockUserRepository) FindByUsername(ctx context.Context, username string) (*identity.User, error) {
	args := m.Called(ctx, username)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*identity.User), args.Error(1)
}

func (m *MockUserRepository) FindAll(ctx context.Context) ([]*identity.User, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]*identity.User), args.Error(1)
}

func (m *MockUserRepository) ExistsByUsername(ctx context.Context, username string) (bool, error) {
	args := m.Called(ctx, username)
	return args.Bool(0), args.Error(1)
}

func (m *MockUserRepository) Count(ctx context.Context) (int64, error) {
	args := m.Called(ctx)
	return args.Get(0).(int64), args.Error(1)
}

func newAuthTestServer(t *testing.T, repo *MockUserRepository) (*gin.Engine, *auth.JWTService) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	jwtService := auth.NewJWTService(testJWTConfig())
	blacklist := auth.NewInMemoryTokenBlacklist()
	authService := appidentity.NewAuthService(repo, jwtService, blacklist, appidentity.DefaultAuthServiceConfig(), nil)
	h := NewAuthHandler(authService)

	engine := gin.New()
	engine.POST("/api/v1/auth/login", h.Login)
	engine.POST("/api/v1/auth/refresh", h.RefreshToken)

	protected := engine.Group("/api/v1", middleware.JWTAuthMiddlewareWithConfig(middleware.JWTMiddlewareConfig{
		JWTService:     jwtService,
		TokenBlacklist: blacklist,
	}))
	protected.POST("/auth/logout", h.Logout)
	protected.GET("/auth/me", h.GetCurrentUser)
	protected.PUT("/auth/password", h.ChangePassword)

	return engine, jwtService
}

func performJSON(engine *gin.Engine, method, path, token string, body any) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	w := httptest.NewRecorder()
	engine.ServeHTTP(w, req)
	return w
}

func newActiveUser(t *testing.T) *identity.User {
	t.Helper()
	user, err := identity.NewUser("operator1", "Password123", identity.RoleOperator)
	require.NoError(t, err)
	return user
}

func TestAuthHandler_Login(t *testing.T) {
	repo := new(MockUserRepository)
	user := newActiveUser(t)
	repo.On("FindByUsername", mock.Anything, "operator1").Return(user, nil)
	repo.On("Update", mock.Anything, mock.Anything).Return(nil)

	engine, _ := newAuthTestServer(t, repo)

	w := performJSON(engine, http.MethodPost, "/api/v1/auth/login", "", LoginRequest{
		Username: "operator1",
		Password: "Password123",
	})

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Success bool          `json:"success"`
		Data    LoginResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.True(t, resp.Success)
	assert.NotEmpty(t, resp.Data.Token.AccessToken)
	assert.NotEmpty(t, resp.Data.Token.RefreshToken)
	assert.Equal(t, "Bearer", resp.Data.Token.TokenType)
	assert.Equal(t, "operator1", resp.Data.User.Username)
	assert.Equal(t, "operator", resp.Data.User.Role)
}

func TestAuthHandler_Login_WrongPassword(t *testing.T) {
	repo := new(MockUserRepository)
	user := newActiveUser(t)
	repo.On("FindByUsername", mock.Anything, "operator1").Return(user, nil)
	repo.On("Update", mock.Anything, mock.Anything).Return(nil)

	engine, _ := newAuthTestServer(t, repo)

	w := performJSON(engine, http.MethodPost, "/api/v1/auth/login", "", LoginRequest{
		Username: "operator1",
		Password: "WrongPassword1",
	})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandler_Login_RejectsShortPassword(t *testing.T) {
	repo := new(MockUserRepository)
	engine, _ := newAuthTestServer(t, repo)

	w := performJSON(engine, http.MethodPost, "/api/v1/auth/login", "", LoginRequest{
		Username: "operator1",
		Password: "short",
	})

	assert.Equal(t, http.StatusBadRequest, w.Code)
	repo.AssertNotCalled(t, "FindByUsername", mock.Anything, mock.Anything)
}

func TestAuthHandler_GetCurrentUser(t *testing.T) {
	repo := new(MockUserRepository)
	user := newActiveUser(t)
	repo.On("FindByID", mock.Anything, user.ID).Return(user, nil)

	engine, jwtService := newAuthTestServer(t, repo)

	pair, err := jwtService.GenerateTokenPair(auth.GenerateTokenInput{
		UserID:   user.ID,
		Username: user.Username,
		Role:     string(user.Role),
	})
	require.NoError(t, err)

	w := performJSON(engine, http.MethodGet, "/api/v1/auth/me", pair.AccessToken, nil)

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data CurrentUserResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.Equal(t, user.ID, resp.Data.User.ID)
	assert.Equal(t, "operator1", resp.Data.User.Username)
}

func TestAuthHandler_GetCurrentUser_RequiresToken(t *testing.T) {
	repo := new(MockUserRepository)
	engine, _ := newAuthTestServer(t, repo)

	w := performJSON(engine, http.MethodGet, "/api/v1/auth/me", "", nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandler_Logout_RevokesToken(t *testing.T) {
	repo := new(MockUserRepository)
	user := newActiveUser(t)
	engine, jwtService := newAuthTestServer(t, repo)

	pair, err := jwtService.GenerateTokenPair(auth.GenerateTokenInput{
		UserID:   user.ID,
		Username: user.Username,
		Role:     string(user.Role),
	})
	require.NoError(t, err)

	w := performJSON(engine, http.MethodPost, "/api/v1/auth/logout", pair.AccessToken, nil)
	require.Equal(t, http.StatusOK, w.Code)

	// The revoked token no longer passes the middleware
	w = performJSON(engine, http.MethodGet, "/api/v1/auth/me", pair.AccessToken, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestAuthHandler_RefreshToken(t *testing.T) {
	repo := new(MockUserRepository)
	user := newActiveUser(t)
	repo.On("FindByID", mock.Anything, user.ID).Return(user, nil)

	engine, jwtService := newAuthTestServer(t, repo)

	pair, err := jwtService.GenerateTokenPair(auth.GenerateTokenInput{
		UserID:   user.ID,
		Username: user.Username,
		Role:     string(user.Role),
	})
	require.NoError(t, err)

	w := performJSON(engine, http.MethodPost, "/api/v1/auth/refresh", "", RefreshTokenRequest{
		RefreshToken: pair.RefreshToken,
	})

	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Data RefreshTokenResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.Data.Token.AccessToken)
}

func TestAuthHandler_RefreshToken_Garbage(t *testing.T) {
	repo := new(MockUserRepository)
	engine, _ := newAuthTestServer(t, repo)

	w := performJSON(engine, http.MethodPost, "/api/v1/auth/refresh", "", RefreshTokenRequest{
		RefreshToken: "not-a-token",
	})

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
