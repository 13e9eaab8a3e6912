package handler

import (
	"github.com/erpbridge/backend/internal/application/connections"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// ConnectionHandler handles ERP connection HTTP requests.
// All routes require the admin role.
type ConnectionHandler struct {
	BaseHandler
	connectionService *connections.Service
}

// NewConnectionHandler creates a new connection handler
func NewConnectionHandler(connectionService *connections.Service) *ConnectionHandler {
	return &ConnectionHandler{
		connectionService: connectionService,
	}
}

// CreateConnectionRequest represents the request body for registering a connection
type CreateConnectionRequest struct {
	Name        string `json:"name" binding:"required,min=1,max=200"`
	BaseURL     string `json:"base_url" binding:"required,url"`
	APIKey      string `json:"api_key" binding:"required"`
	APISecret   string `json:"api_secret" binding:"required"`
	MakeDefault bool   `json:"make_default"`
}

// UpdateConnectionRequest represents the request body for updating a connection.
// Blank credential fields keep the stored credentials.
type UpdateConnectionRequest struct {
	BaseURL   string `json:"base_url" binding:"omitempty,url"`
	APIKey    string `json:"api_key"`
	APISecret string `json:"api_secret"`
}

// TestCredentialsRequest represents credentials to probe without saving them
type TestCredentialsRequest struct {
	BaseURL   string `json:"base_url" binding:"required,url"`
	APIKey    string `json:"api_key" binding:"required"`
	APISecret string `json:"api_secret" binding:"required"`
}

// CreateConnection registers a new ERPNext connection. The first connection becomes the default.
func (h *ConnectionHandler) CreateConnection(c *gin.Context) {
	var req CreateConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	result, err := h.connectionService.Create(c.Request.Context(), connections.CreateConnectionInput{
		Name:        req.Name,
		BaseURL:     req.BaseURL,
		APIKey:      req.APIKey,
		APISecret:   req.APISecret,
		MakeDefault: req.MakeDefault,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, result)
}

// ListConnections lists all registered ERPNext connections. Credentials are never returned.
func (h *ConnectionHandler) ListConnections(c *gin.Context) {
	results, err := h.connectionService.List(c.Request.Context())
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, results)
}

// GetConnection returns a single ERPNext connection by ID.
func (h *ConnectionHandler) GetConnection(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid connection ID")
		return
	}

	result, err := h.connectionService.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// UpdateConnection updates a connection's base URL or credentials.
func (h *ConnectionHandler) UpdateConnection(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid connection ID")
		return
	}

	var req UpdateConnectionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	result, err := h.connectionService.Update(c.Request.Context(), connections.UpdateConnectionInput{
		ID:        id,
		BaseURL:   req.BaseURL,
		APIKey:    req.APIKey,
		APISecret: req.APISecret,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// DeleteConnection deactivates a connection. The current default cannot be deleted.
func (h *ConnectionHandler) DeleteConnection(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid connection ID")
		return
	}

	if err := h.connectionService.Delete(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// SetDefaultConnection marks a connection as the delivery target for new import jobs.
func (h *ConnectionHandler) SetDefaultConnection(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid connection ID")
		return
	}

	result, err := h.connectionService.SetDefault(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// TestConnection probes a stored connection and report reachability and latency.
func (h *ConnectionHandler) TestConnection(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid connection ID")
		return
	}

	result, err := h.connectionService.Test(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// TestCredentials probes arbitrary ERPNext credentials before saving them.
func (h *ConnectionHandler) TestCredentials(c *gin.Context) {
	var req TestCredentialsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	result, err := h.connectionService.TestCredentials(c.Request.Context(), connections.TestCredentialsInput{
		BaseURL:   req.BaseURL,
		APIKey:    req.APIKey,
		APISecret: req.APISecret,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}
