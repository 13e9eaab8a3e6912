package handler

import (
	"io"
	"time"

	"github.com/erpbridge/backend/internal/application/imports"
	"github.com/erpbridge/backend/internal/domain/importjob"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/spf13/cast"
)

// IdempotencyKeyHeader carries the client-chosen retry deduplication key
const IdempotencyKeyHeader = "Idempotency-Key"

// ImportHandler handles import job HTTP requests
type ImportHandler struct {
	BaseHandler
	importService *imports.Service
}

// NewImportHandler creates a new import handler
func NewImportHandler(importService *imports.Service) *ImportHandler {
	return &ImportHandler{
		importService: importService,
	}
}

// Upload accepts a CSV or Excel file, starts a background import job and returns it immediately.
func (h *ImportHandler) Upload(c *gin.Context) {
	mappingID, err := uuid.Parse(c.PostForm("mapping_id"))
	if err != nil {
		h.BadRequest(c, "mapping_id is required")
		return
	}

	file, header, err := c.Request.FormFile("file")
	if err != nil {
		h.BadRequest(c, "file is required")
		return
	}
	defer file.Close()

	data, err := io.ReadAll(file)
	if err != nil {
		h.BadRequest(c, "Could not read uploaded file")
		return
	}

	input := imports.UploadInput{
		MappingID:      mappingID,
		FileName:       header.Filename,
		Data:           data,
		IdempotencyKey: c.GetHeader(IdempotencyKeyHeader),
	}
	if userID, err := getUserID(c); err == nil {
		input.UploadedBy = &userID
	}

	result, err := h.importService.Upload(c.Request.Context(), input)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	// A reused idempotent job reports its current state, not a fresh accept
	if result.Reused {
		h.Success(c, result)
		return
	}

	h.Accepted(c, result)
}

// GetJob returns the current state and progress of an import job.
func (h *ImportHandler) GetJob(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid job ID")
		return
	}

	result, err := h.importService.GetJob(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	if !h.canAccessJob(c, result.CreatedBy) {
		h.Forbidden(c, "Job belongs to another user")
		return
	}

	h.Success(c, result)
}

// GetJobErrors returns the per-row rejection report of an import job.
func (h *ImportHandler) GetJobErrors(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid job ID")
		return
	}

	job, err := h.importService.GetJob(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if !h.canAccessJob(c, job.CreatedBy) {
		h.Forbidden(c, "Job belongs to another user")
		return
	}

	result, err := h.importService.GetJobErrors(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// ListJobs lists import jobs with optional filters. Operators only see their own jobs.
func (h *ImportHandler) ListJobs(c *gin.Context) {
	input := imports.ListJobsInput{
		SortBy:    c.Query("sort_by"),
		SortOrder: c.Query("sort_order"),
		Page:      cast.ToInt(c.DefaultQuery("page", "1")),
		PageSize:  cast.ToInt(c.DefaultQuery("page_size", "20")),
	}

	if raw := c.Query("mapping_id"); raw != "" {
		mappingID, err := uuid.Parse(raw)
		if err != nil {
			h.BadRequest(c, "Invalid mapping ID filter")
			return
		}
		input.MappingID = &mappingID
	}
	if raw := c.Query("status"); raw != "" {
		status := importjob.Status(raw)
		if !status.IsValid() {
			h.BadRequest(c, "Invalid status filter")
			return
		}
		input.Status = &status
	}
	if raw := c.Query("from"); raw != "" {
		from, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.BadRequest(c, "Invalid from timestamp, expected RFC 3339")
			return
		}
		input.CreatedFrom = &from
	}
	if raw := c.Query("to"); raw != "" {
		to, err := time.Parse(time.RFC3339, raw)
		if err != nil {
			h.BadRequest(c, "Invalid to timestamp, expected RFC 3339")
			return
		}
		input.CreatedTo = &to
	}

	// Operators are scoped to their own jobs
	if !isAdmin(c) {
		userID, err := getUserID(c)
		if err != nil {
			h.Unauthorized(c, "Authentication required")
			return
		}
		input.CreatedBy = &userID
	}

	result, err := h.importService.ListJobs(c.Request.Context(), input)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.SuccessWithMeta(c, result.Items, result.TotalCount, result.Page, result.PageSize)
}

// CancelJob cancels a pending or running import job.
func (h *ImportHandler) CancelJob(c *gin.Context) {
	id, err := uuid.Parse(c.Param("id"))
	if err != nil {
		h.BadRequest(c, "Invalid job ID")
		return
	}

	job, err := h.importService.GetJob(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}
	if !h.canAccessJob(c, job.CreatedBy) {
		h.Forbidden(c, "Job belongs to another user")
		return
	}

	result, err := h.importService.Cancel(c.Request.Context(), id)
	if err != nil {
		h.HandleError(c, err)
		return
	}

	h.Success(c, result)
}

// canAccessJob reports whether the caller may see the given job.
// Admins see everything, operators only what they uploaded.
func (h *ImportHandler) canAccessJob(c *gin.Context, createdBy *uuid.UUID) bool {
	if isAdmin(c) {
		return true
	}
	if createdBy == nil {
		return false
	}
	userID, err := getUserID(c)
	if err != nil {
		return false
	}
	return *createdBy == userID
}
