package handler

import (
	"encoding/json"

	"github.com/erpbridge/backend/internal/application/mappings"
	"github.com/erpbridge/backend/internal/domain/mapping"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/spf13/cast"
)

// MappingHandler handles column mapping HTTP requests
type MappingHandler struct {
	BaseHandler
	mappingService *mappings.Service
}

// NewMappingHandler creates a new mapping handler
func NewMappingHandler(mappingService *mappings.Service) *MappingHandler {
	return &MappingHandler{
		mappingService: mappingService,
	}
}

// CreateMappingRequest represents the request body for creating a mapping
type CreateMappingRequest struct {
	Name        string          `json:"name" binding:"required,min=1,max=200"`
	Description string          `json:"description" binding:"max=1000"`
	SourceType  string          `json:"source_type" binding:"required,oneof=csv excel any"`
	ERPEndpoint string          `json:"erp_endpoint" binding:"required"`
	Config      json.RawMessage `json:"config" binding:"required"`
}

// UpdateMappingRequest represents the request body for updating a mapping
type UpdateMappingRequest struct {
	Name        string          `json:"name" binding:"required,min=1,max=200"`
	Description string          `json:"description" binding:"max=1000"`
	SourceType  string          `json:"source_type" binding:"required,oneof=csv excel any"`
	ERPEndpoint string          `json:"erp_endpoint" binding:"required"`
	Config      json.RawMessage `json:"config" binding:"required"`
}

// CreateMapping registers a new column mapping configuration.
func (h *MappingHandler) CreateMapping(c *gin.Context) {
	var req CreateMappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	result, err := h.mappingService.Create(c.Request.Context(), mappings.CreateMappingInput{
		Name:        req.Name,
		Description: req.Description,
		SourceType:  mapping.SourceType(req.SourceType),
		ERPEndpoint: req.ERPEndpoint,
		Config:      req.Config,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Created(c, result)
}

// ListMappings lists column mappings with optional filters.
func (h *MappingHandler) ListMappings(c *gin.Context) {
	input := mappings.ListMappingsInput{
		ActiveOnly: cast.ToBool(c.Query("active_only")),
		SortBy:     c.Query("sort_by"),
		SortOrder:  c.Query("sort_order"),
		Page:       cast.ToInt(c.DefaultQuery("page", "1")),
		PageSize:   cast.ToInt(c.DefaultQuery("page_size", "20")),
	}

	if st := c.Query("source_type"); st != "" {
		sourceType := mapping.SourceType(st)
		if !sourceType.IsValid() {
			h.BadRequest(c, "Invalid source type filter")
			return
		}
		input.SourceType = &sourceType
	}
	if ep := c.Query("erp_endpoint"); ep != "" {
		input.ERPEndpoint = &ep
	}

	result, err := h.mappingService.List(c.Request.Context(), input)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, result.Items, result.TotalCount, result.Page, result.PageSize)
}

// GetMapping returns a single column mapping by ID.
func (h *MappingHandler) GetMapping(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid mapping ID")
		return
	}

	result, err := h.mappingService.Get(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// UpdateMapping updates a column mapping's attributes and configuration.
func (h *MappingHandler) UpdateMapping(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid mapping ID")
		return
	}

	var req UpdateMappingRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		h.BindingError(c, err)
		return
	}

	result, err := h.mappingService.Update(c.Request.Context(), mappings.UpdateMappingInput{
		ID:          id,
		Name:        req.Name,
		Description: req.Description,
		SourceType:  mapping.SourceType(req.SourceType),
		ERPEndpoint: req.ERPEndpoint,
		Config:      req.Config,
	})
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// DeleteMapping deactivates a column mapping. Historic jobs keep referencing it.
func (h *MappingHandler) DeleteMapping(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid mapping ID")
		return
	}

	if err := h.mappingService.Delete(c.Request.Context(), id); err != nil {
		h.HandleError(c, err)
		return
	}

	h.NoContent(c)
}

// RestoreMapping reactivates a previously deactivated column mapping.
func (h *MappingHandler) RestoreMapping(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid mapping ID")
		return
	}

	result, err := h.mappingService.Restore(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}
