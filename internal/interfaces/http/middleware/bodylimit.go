package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/erpbridge/backend/internal/interfaces/http/dto"
)

// BodyLimit caps the request body at maxBytes. Oversized declared
// lengths are rejected up front; chunked uploads are cut off by a
// MaxBytesReader while the handler reads.
func BodyLimit(maxBytes int64) gin.HandlerFunc {
	return func(c *gin.Context) {
		if c.Request.ContentLength > maxBytes {
			c.AbortWithStatusJSON(http.StatusRequestEntityTooLarge, dto.NewErrorResponseWithRequestID(
				dto.ErrCodeFileTooLarge,
				"Request body exceeds maximum allowed size",
				requestIDFromGin(c),
			))
			return
		}

		c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxBytes)
		c.Next()
	}
}
