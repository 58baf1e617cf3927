// internal/api/response.go
package api

import (
	"net/http"
	"time"

	apperrors "github.com/Halcyon-Ink/StoryLoom/internal/errors"
	"github.com/gin-gonic/gin"
)

// APIResponse is the uniform envelope for every JSON endpoint.
type APIResponse struct {
	Success   bool      `json:"success"`
	Data      any       `json:"data,omitempty"`
	Message   string    `json:"message,omitempty"`
	Error     *APIError `json:"error,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

// APIError carries a machine-readable code alongside the human message.
type APIError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
	Details string `json:"details,omitempty"`
}

// ResponseHelper centralizes response formatting so handlers stay short.
type ResponseHelper struct{}

// NewResponseHelper creates the helper.
func NewResponseHelper() *ResponseHelper {
	return &ResponseHelper{}
}

// Success writes a 200 envelope.
func (rh *ResponseHelper) Success(c *gin.Context, data any, message ...string) {
	response := &APIResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
	}
	if len(message) > 0 {
		response.Message = message[0]
	}
	c.JSON(http.StatusOK, response)
}

// Created writes a 201 envelope.
func (rh *ResponseHelper) Created(c *gin.Context, data any, message ...string) {
	response := &APIResponse{
		Success:   true,
		Data:      data,
		Timestamp: time.Now(),
	}
	if len(message) > 0 {
		response.Message = message[0]
	}
	c.JSON(http.StatusCreated, response)
}

// Error writes an error envelope with an explicit status.
func (rh *ResponseHelper) Error(c *gin.Context, statusCode int, errorCode, message string, details ...string) {
	apiError := &APIError{Code: errorCode, Message: message}
	if len(details) > 0 {
		apiError.Details = details[0]
	}
	c.JSON(statusCode, &APIResponse{
		Success:   false,
		Error:     apiError,
		Timestamp: time.Now(),
	})
}

// BadRequest writes a 400 error.
func (rh *ResponseHelper) BadRequest(c *gin.Context, message string, details ...string) {
	rh.Error(c, http.StatusBadRequest, "BAD_REQUEST", message, details...)
}

// NotFound writes a 404 error.
func (rh *ResponseHelper) NotFound(c *gin.Context, message string, details ...string) {
	rh.Error(c, http.StatusNotFound, "NOT_FOUND", message, details...)
}

// InternalError writes a 500 error.
func (rh *ResponseHelper) InternalError(c *gin.Context, message string, details ...string) {
	rh.Error(c, http.StatusInternalServerError, "INTERNAL_ERROR", message, details...)
}

// FromError maps an application error onto the right HTTP status.
func (rh *ResponseHelper) FromError(c *gin.Context, err error) {
	switch {
	case apperrors.IsValidationError(err):
		rh.Error(c, http.StatusBadRequest, "VALIDATION_ERROR", err.Error())
	case apperrors.IsNotFoundError(err):
		rh.Error(c, http.StatusNotFound, "NOT_FOUND", err.Error())
	case apperrors.IsPreconditionError(err):
		rh.Error(c, http.StatusServiceUnavailable, "PRECONDITION_FAILED", err.Error())
	case apperrors.IsConflictError(err):
		rh.Error(c, http.StatusConflict, "CONFLICT", err.Error())
	default:
		rh.InternalError(c, err.Error())
	}
}
