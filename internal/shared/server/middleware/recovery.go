package middleware

import (
	"fmt"
	"net/http"
	"runtime/debug"

	"github.com/gin-gonic/gin"

	"polisense-backend/internal/shared/server/respond"
	"polisense-backend/internal/shared/telemetry"
)

// Recovery turns a handler panic into a 500 error body. If the handler had
// already started writing, the connection is only aborted.
func Recovery() gin.HandlerFunc {
	return func(c *gin.Context) {
		defer func() {
			rec := recover()
			if rec == nil {
				return
			}
			msg := fmt.Sprint(rec)
			telemetry.Error("http.panic", map[string]any{
				"request_id": RequestIDFromContext(c),
				"user_id":    UserIDFromContext(c),
				"method":     c.Request.Method,
				"path":       c.Request.URL.Path,
				"panic":      msg,
				"stack":      string(debug.Stack()),
			})
			if c.Writer.Written() {
				c.Abort()
				return
			}
			respond.Error(c, http.StatusInternalServerError, "Internal server error", msg, nil)
		}()
		c.Next()
	}
}
