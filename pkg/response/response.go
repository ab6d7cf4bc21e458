package response

import (
	"errors"
	"net/http"
	"time"

	"marketplace-ledger/pkg/apperror"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
)

// CtxRetryable is set on the gin context when the written error may succeed on a resend.
const CtxRetryable = "response_retryable"

// SuccessResponse is the standard success envelope.
type SuccessResponse struct {
	Success   bool        `json:"success"`
	Data      interface{} `json:"data"`
	RequestID string      `json:"request_id"`
	Timestamp string      `json:"timestamp"`
}

// ErrorResponse is the standard failure envelope. Domain failures are
// delivered with HTTP 200 and Success=false.
type ErrorResponse struct {
	Success   bool   `json:"success"`
	Error     string `json:"error"`
	ErrorCode string `json:"error_code"`
	RequestID string `json:"request_id"`
	Timestamp string `json:"timestamp"`
}

// OK sends a 200 response with data.
func OK(c *gin.Context, data interface{}) {
	c.JSON(http.StatusOK, success(c, data))
}

// Created sends a 201 response with data.
func Created(c *gin.Context, data interface{}) {
	c.JSON(http.StatusCreated, success(c, data))
}

// Error sends an error response. It checks if err is an *apperror.AppError
// and maps it accordingly, otherwise returns 500.
func Error(c *gin.Context, err error) {
	status, body := failure(c, err)
	c.JSON(status, body)
}

// Abort writes the error response and stops the handler chain.
func Abort(c *gin.Context, err error) {
	status, body := failure(c, err)
	c.AbortWithStatusJSON(status, body)
}

func success(c *gin.Context, data interface{}) SuccessResponse {
	return SuccessResponse{
		Success:   true,
		Data:      data,
		RequestID: getRequestID(c),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

func failure(c *gin.Context, err error) (int, ErrorResponse) {
	var appErr *apperror.AppError
	if errors.As(err, &appErr) {
		if appErr.Retryable {
			c.Set(CtxRetryable, true)
		}
		return appErr.HTTPStatus, ErrorResponse{
			Error:     appErr.Message,
			ErrorCode: appErr.Code,
			RequestID: getRequestID(c),
			Timestamp: time.Now().UTC().Format(time.RFC3339),
		}
	}

	// Unknown error -> 500
	return http.StatusInternalServerError, ErrorResponse{
		Error:     "Internal server error",
		ErrorCode: "SYS_000",
		RequestID: getRequestID(c),
		Timestamp: time.Now().UTC().Format(time.RFC3339),
	}
}

// getRequestID retrieves request ID from context, or generates one.
func getRequestID(c *gin.Context) string {
	if id, exists := c.Get("request_id"); exists {
		if s, ok := id.(string); ok {
			return s
		}
	}
	return uuid.New().String()
}
