package handler

import (
	"net/http"
	"runtime"
	"time"

	"github.com/erpbridge/backend/internal/infrastructure/erp"
	"github.com/erpbridge/backend/internal/infrastructure/persistence"
	"github.com/erpbridge/backend/internal/interfaces/http/dto"
	"github.com/gin-gonic/gin"
)

// SystemHandler handles system and health API endpoints
type SystemHandler struct {
	BaseHandler
	startTime time.Time
	db        *persistence.Database
	erp       *erp.Provider
}

// NewSystemHandler creates a new SystemHandler. db and erpProvider are
// optional; absent dependencies are skipped by the probes.
func NewSystemHandler(db *persistence.Database, erpProvider *erp.Provider) *SystemHandler {
	return &SystemHandler{
		startTime: time.Now(),
		db:        db,
		erp:       erpProvider,
	}
}

// SystemInfoResponse represents the system information response
type SystemInfoResponse struct {
	Name      string `json:"name" example:"ERPBridge Import API"`
	Version   string `json:"version" example:"1.0.0"`
	GoVersion string `json:"go_version" example:"go1.25.5"`
	Uptime    string `json:"uptime" example:"1h30m45s"`
}

// GetSystemInfo returns basic system information including version and uptime.
func (h *SystemHandler) GetSystemInfo(c *gin.Context) {
	info := SystemInfoResponse{
		Name:      "ERPBridge Import API",
		Version:   "1.0.0",
		GoVersion: runtime.Version(),
		Uptime:    time.Since(h.startTime).Round(time.Second).String(),
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(info))
}

// PingResponse represents the ping response
type PingResponse struct {
	Message   string `json:"message" example:"pong"`
	Timestamp string `json:"timestamp" example:"2026-01-23T12:00:00Z"`
}

// Ping reports that the API is responsive.
func (h *SystemHandler) Ping(c *gin.Context) {
	response := PingResponse{
		Message:   "pong",
		Timestamp: time.Now().Format(time.RFC3339),
	}

	c.JSON(http.StatusOK, dto.NewSuccessResponse(response))
}

// Health reports process liveness without touching any dependency.
func (h *SystemHandler) Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status": "healthy",
		"time":   time.Now().Format(time.RFC3339),
	})
}

// Ready reports whether the service can accept work. Fails when the database is unreachable; the ERP target is reported but never fails readiness.
func (h *SystemHandler) Ready(c *gin.Context) {
	status := gin.H{
		"status": "ready",
		"time":   time.Now().Format(time.RFC3339),
	}
	httpStatus := http.StatusOK

	if h.db != nil {
		if err := h.db.Ping(); err != nil {
			status["status"] = "not_ready"
			status["database"] = "error"
			httpStatus = http.StatusServiceUnavailable
		} else {
			status["database"] = "ok"
		}
	}

	// ERP reachability is informational: imports queue fine while the
	// downstream is away, delivery retries handle the rest
	if h.erp != nil {
		if _, err := h.erp.ClientFor(c.Request.Context()); err != nil {
			status["erp"] = "unconfigured"
		} else {
			status["erp"] = "configured"
		}
		status["erp_breakers"] = h.erp.BreakerStates()
	}

	c.JSON(httpStatus, status)
}
