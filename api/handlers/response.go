// Package handlers provides HTTP API request handlers.
package handlers

import (
	"time"

	"github.com/gin-gonic/gin"
)

// ErrorResponse represents an error response.
type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

// ErrorDetail contains error details.
type ErrorDetail struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
}

// sendError sends an error response with the appropriate status code.
func sendError(c *gin.Context, statusCode int, code, message string) {
	c.JSON(statusCode, ErrorResponse{
		Error: ErrorDetail{
			Code:    code,
			Message: message,
		},
	})
}

// unixNow returns the current time as floating-point Unix seconds, matching
// the timestamp convention of the WebSocket events.
func unixNow() float64 {
	return float64(time.Now().UnixNano()) / float64(time.Second)
}
