package middleware

import (
	"crypto/subtle"
	"errors"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"polisense-backend/internal/shared/server/respond"
)

const (
	userIDKey     = "userId"
	userIDHeader  = "X-User-Id"
	maxUserIDSize = 128
)

// ErrUserIDTooLong is returned by ResolveUserID for owner ids over 128 bytes.
var ErrUserIDTooLong = errors.New("userId is too long")

// Identity records the caller's owner id from the X-User-Id header. Handlers
// may still override it with an explicit userId field.
func Identity() gin.HandlerFunc {
	return func(c *gin.Context) {
		if id := strings.TrimSpace(c.GetHeader(userIDHeader)); id != "" && len(id) <= maxUserIDSize {
			c.Set(userIDKey, id)
		}
		c.Next()
	}
}

// UserIDFromContext returns the owner id stored by Identity or SetUserID.
func UserIDFromContext(c *gin.Context) string {
	if c == nil {
		return ""
	}
	val, _ := c.Get(userIDKey)
	if id, ok := val.(string); ok {
		return id
	}
	return ""
}

// SetUserID stores the resolved owner id so request logs carry it.
func SetUserID(c *gin.Context, id string) {
	if id != "" {
		c.Set(userIDKey, id)
	}
}

// ResolveUserID prefers an explicit value from the request payload and falls
// back to the X-User-Id header. Both sources share the same length bound.
func ResolveUserID(c *gin.Context, explicit string) (string, error) {
	id := strings.TrimSpace(explicit)
	if id == "" {
		id = strings.TrimSpace(c.GetHeader(userIDHeader))
	}
	if len(id) > maxUserIDSize {
		return "", ErrUserIDTooLong
	}
	SetUserID(c, id)
	return id, nil
}

// AdminAuth requires Authorization: Bearer <token>.
func AdminAuth(token string) gin.HandlerFunc {
	expected := []byte(token)
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		got := strings.TrimSpace(strings.TrimPrefix(header, "Bearer "))
		if token == "" || !strings.HasPrefix(header, "Bearer ") || subtle.ConstantTimeCompare([]byte(got), expected) != 1 {
			respond.Error(c, http.StatusUnauthorized, "Unauthorized", "admin token required", nil)
			return
		}
		c.Next()
	}
}
