package ws

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/erpbridge/backend/internal/infrastructure/auth"
	"github.com/erpbridge/backend/internal/infrastructure/config"
)

func testJWTService() *auth.JWTService {
	return auth.NewJWTService(config.JWTConfig{
		Secret:                 "test-secret",
		AccessTokenExpiration:  time.Minute,
		RefreshTokenExpiration: time.Hour,
		Issuer:                 "erpbridge-test",
	})
}

func serveWS(t *testing.T, h *Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/ws", h.Serve)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, target, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestHandlerServe_RejectsBadTokens(t *testing.T) {
	jwtService := testJWTService()
	h := NewHandler(NewHub(), jwtService, nil, zap.NewNop())

	t.Run("missing token", func(t *testing.T) {
		w := serveWS(t, h, "/ws")

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "UNAUTHORIZED")
	})

	t.Run("garbage token", func(t *testing.T) {
		w := serveWS(t, h, "/ws?token=not-a-jwt")

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "INVALID_TOKEN")
	})

	t.Run("refresh token is not an access token", func(t *testing.T) {
		pair, err := jwtService.GenerateTokenPair(auth.GenerateTokenInput{
			UserID:   uuid.New(),
			Username: "operator",
			Role:     auth.RoleOperator,
		})
		require.NoError(t, err)

		w := serveWS(t, h, "/ws?token="+pair.RefreshToken)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Contains(t, w.Body.String(), "INVALID_TOKEN")
	})
}

func TestHandlerServe_ValidTokenAttemptsUpgrade(t *testing.T) {
	jwtService := testJWTService()
	h := NewHandler(NewHub(), jwtService, nil, zap.NewNop())

	pair, err := jwtService.GenerateTokenPair(auth.GenerateTokenInput{
		UserID:   uuid.New(),
		Username: "operator",
		Role:     auth.RoleOperator,
	})
	require.NoError(t, err)

	// A plain GET passes auth but fails the websocket upgrade.
	w := serveWS(t, h, "/ws?token="+pair.AccessToken)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestOriginChecker(t *testing.T) {
	tests := []struct {
		name    string
		allowed []string
		origin  string
		want    bool
	}{
		{"no origin header", []string{"https://app.example.com"}, "", true},
		{"allowed origin", []string{"https://app.example.com"}, "https://app.example.com", true},
		{"unknown origin", []string{"https://app.example.com"}, "https://evil.example.com", false},
		{"wildcard", []string{"*"}, "https://anywhere.example.com", true},
		{"empty allowlist", nil, "https://app.example.com", false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/ws", nil)
			if tt.origin != "" {
				req.Header.Set("Origin", tt.origin)
			}
			assert.Equal(t, tt.want, originChecker(tt.allowed)(req))
		})
	}
}
