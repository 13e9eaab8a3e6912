package handler

import (
	"github.com/erpbridge/backend/internal/infrastructure/transform"
	"github.com/gin-gonic/gin"
)

// TransformationHandler exposes the built-in transformation catalogue
type TransformationHandler struct {
	BaseHandler
	registry *transform.Registry
}

// NewTransformationHandler creates a new transformation handler
func NewTransformationHandler(registry *transform.Registry) *TransformationHandler {
	return &TransformationHandler{
		registry: registry,
	}
}

// TransformationCatalogueResponse lists the transformation names a mapping
// configuration may reference
type TransformationCatalogueResponse struct {
	Transformations []string `json:"transformations"`
}

// ListTransformations lists the names of all built-in transformations available to mapping configurations.
func (h *TransformationHandler) ListTransformations(c *gin.Context) {
	h.Success(c, TransformationCatalogueResponse{
		Transformations: h.registry.Names(),
	})
}
