package dto

import (
	"encoding/json"
	"net/http"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGetHTTPStatus(t *testing.T) {
	tests := []struct {
		code string
		want int
	}{
		{ErrCodeValidation, http.StatusBadRequest},
		{ErrCodeValidationRequired, http.StatusBadRequest},
		{ErrCodeValidationFormat, http.StatusBadRequest},
		{ErrCodeBadRequest, http.StatusBadRequest},
		{ErrCodeInvalidInput, http.StatusBadRequest},
		{ErrCodeInvalidJSON, http.StatusBadRequest},
		{ErrCodeUnauthorized, http.StatusUnauthorized},
		{ErrCodeTokenExpired, http.StatusUnauthorized},
		{ErrCodeTokenInvalid, http.StatusUnauthorized},
		{ErrCodeForbidden, http.StatusForbidden},
		{ErrCodeAccountLocked, http.StatusForbidden},
		{ErrCodeNotFound, http.StatusNotFound},
		{ErrCodeAlreadyExists, http.StatusConflict},
		{ErrCodeConflict, http.StatusConflict},
		{ErrCodeConcurrencyConflict, http.StatusConflict},
		{ErrCodeInvalidState, http.StatusUnprocessableEntity},
		{ErrCodeFileTooLarge, http.StatusRequestEntityTooLarge},
		{ErrCodeUnsupportedFile, http.StatusUnsupportedMediaType},
		{ErrCodeEmptyFile, http.StatusBadRequest},
		{ErrCodeBusinessRule, http.StatusUnprocessableEntity},
		{ErrCodeMappingConfig, http.StatusUnprocessableEntity},
		{ErrCodeRateLimited, http.StatusTooManyRequests},
		{ErrCodeTooManyRequests, http.StatusTooManyRequests},
		{ErrCodeInternal, http.StatusInternalServerError},
		{ErrCodeUnknown, http.StatusInternalServerError},
		{"SOMETHING_NOBODY_MAPPED", http.StatusInternalServerError},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.want, GetHTTPStatus(tt.code))
		})
	}
}

func TestNormalizeErrorCode(t *testing.T) {
	tests := []struct {
		name string
		code string
		want string
	}{
		{"legacy not found", "NOT_FOUND", ErrCodeNotFound},
		{"legacy unauthorized", "UNAUTHORIZED", ErrCodeUnauthorized},
		{"legacy file too large", "FILE_TOO_LARGE", ErrCodeFileTooLarge},
		{"canonical passes through", ErrCodeConcurrencyConflict, ErrCodeConcurrencyConflict},
		{"unknown passes through", "CUSTOM_CODE", "CUSTOM_CODE"},
		{"empty passes through", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, NormalizeErrorCode(tt.code))
		})
	}
}

func TestErrorCodeConstants(t *testing.T) {
	codes := []string{
		ErrCodeUnknown,
		ErrCodeInternal,
		ErrCodeValidation,
		ErrCodeValidationRequired,
		ErrCodeValidationFormat,
		ErrCodeUnauthorized,
		ErrCodeForbidden,
		ErrCodeTokenExpired,
		ErrCodeTokenInvalid,
		ErrCodeAccountLocked,
		ErrCodeNotFound,
		ErrCodeAlreadyExists,
		ErrCodeConflict,
		ErrCodeConcurrencyConflict,
		ErrCodeInvalidState,
		ErrCodeBusinessRule,
		ErrCodeMappingConfig,
		ErrCodeFileTooLarge,
		ErrCodeUnsupportedFile,
		ErrCodeEmptyFile,
		ErrCodeBadRequest,
		ErrCodeInvalidInput,
		ErrCodeInvalidJSON,
		ErrCodeRateLimited,
		ErrCodeTooManyRequests,
	}

	for _, code := range codes {
		_, ok := ErrorCodeHTTPStatus[code]
		assert.True(t, ok, "code %s has no HTTP status mapping", code)
	}
}

func TestDomainErrorCodeMappingTargets(t *testing.T) {
	// Every legacy code must map to a code with a known HTTP status,
	// otherwise normalization would just trade one blind spot for another.
	for legacy, canonical := range DomainErrorCodeMapping {
		_, ok := ErrorCodeHTTPStatus[canonical]
		assert.True(t, ok, "legacy code %s maps to unmapped code %s", legacy, canonical)
	}
}

func TestNewErrorResponse(t *testing.T) {
	resp := NewErrorResponse(ErrCodeNotFound, "import job not found")

	assert.False(t, resp.Success)
	assert.Nil(t, resp.Data)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
	assert.Equal(t, "import job not found", resp.Error.Message)
	assert.Empty(t, resp.Error.RequestID)
	assert.WithinDuration(t, time.Now(), resp.Error.Timestamp, time.Second)
}

func TestNewErrorResponseNormalizesLegacyCodes(t *testing.T) {
	resp := NewErrorResponse("NOT_FOUND", "gone")

	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeNotFound, resp.Error.Code)
}

func TestNewErrorResponseWithRequestID(t *testing.T) {
	resp := NewErrorResponseWithRequestID(ErrCodeConflict, "duplicate connection name", "req-42")

	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeConflict, resp.Error.Code)
	assert.Equal(t, "req-42", resp.Error.RequestID)
}

func TestNewValidationErrorResponse(t *testing.T) {
	details := []ValidationDetail{
		{Field: "name", Message: "name is required"},
		{Field: "base_url", Message: "must be a valid URL"},
	}
	resp := NewValidationErrorResponse("validation failed", "req-7", details)

	assert.False(t, resp.Success)
	require.NotNil(t, resp.Error)
	assert.Equal(t, ErrCodeValidation, resp.Error.Code)
	assert.Equal(t, "validation failed", resp.Error.Message)
	assert.Equal(t, "req-7", resp.Error.RequestID)
	assert.Equal(t, details, resp.Error.Details)
}

func TestNewSuccessResponse(t *testing.T) {
	resp := NewSuccessResponse(map[string]string{"id": "job-1"})

	assert.True(t, resp.Success)
	assert.Nil(t, resp.Error)
	assert.Nil(t, resp.Meta)
	assert.Equal(t, map[string]string{"id": "job-1"}, resp.Data)
}

func TestNewSuccessResponseWithMeta(t *testing.T) {
	tests := []struct {
		name           string
		total          int64
		page           int
		pageSize       int
		wantPageSize   int
		wantTotalPages int
	}{
		{"exact pages", 100, 1, 20, 20, 5},
		{"partial last page", 101, 2, 20, 20, 6},
		{"single page", 5, 1, 20, 20, 1},
		{"empty result", 0, 1, 20, 20, 0},
		{"zero page size defaults", 100, 1, 0, 20, 5},
		{"negative page size defaults", 100, 1, -1, 20, 5},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := NewSuccessResponseWithMeta([]string{"row"}, tt.total, tt.page, tt.pageSize)

			assert.True(t, resp.Success)
			require.NotNil(t, resp.Meta)
			assert.Equal(t, tt.total, resp.Meta.Total)
			assert.Equal(t, tt.page, resp.Meta.Page)
			assert.Equal(t, tt.wantPageSize, resp.Meta.PageSize)
			assert.Equal(t, tt.wantTotalPages, resp.Meta.TotalPages)
		})
	}
}

func TestErrorResponseJSON(t *testing.T) {
	resp := NewErrorResponseWithRequestID(ErrCodeTokenExpired, "Token has expired", "req-9")

	raw, err := json.Marshal(resp)
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(raw, &decoded))

	assert.Equal(t, false, decoded["success"])
	assert.NotContains(t, decoded, "data")
	assert.NotContains(t, decoded, "meta")

	errObj, ok := decoded["error"].(map[string]any)
	require.True(t, ok)
	assert.Equal(t, ErrCodeTokenExpired, errObj["code"])
	assert.Equal(t, "Token has expired", errObj["message"])
	assert.Equal(t, "req-9", errObj["request_id"])
	assert.NotContains(t, errObj, "details")
}

func TestErrorCodeFormat(t *testing.T) {
	for code := range ErrorCodeHTTPStatus {
		assert.Regexp(t, `^ERR_[A-Z_]+$`, code)
	}
}
