package respond

import (
	"github.com/gin-gonic/gin"

	"polisense-backend/internal/shared/telemetry"
)

// ErrorResponse is the body of every failed request.
type ErrorResponse struct {
	Error   string      `json:"error"`
	Message string      `json:"message"`
	Details interface{} `json:"details,omitempty"`
}

// Error logs and sends a standardized error response.
func Error(c *gin.Context, status int, errTitle, message string, details interface{}) {
	logError(c, status, errTitle, message)
	c.AbortWithStatusJSON(status, ErrorResponse{
		Error:   errTitle,
		Message: message,
		Details: details,
	})
}

// ErrorWithBody logs like Error but writes a caller-built body. Used when a
// failure still carries a usable payload.
func ErrorWithBody(c *gin.Context, status int, errTitle, message string, body interface{}) {
	logError(c, status, errTitle, message)
	c.AbortWithStatusJSON(status, body)
}

func logError(c *gin.Context, status int, errTitle, message string) {
	fields := map[string]any{
		"status":     status,
		"error":      errTitle,
		"message":    message,
		"path":       c.Request.URL.Path,
		"method":     c.Request.Method,
		"request_id": c.GetString("requestId"),
	}
	if userID := c.GetString("userId"); userID != "" {
		fields["user_id"] = userID
	}
	telemetry.Error("http.error", fields)
}
