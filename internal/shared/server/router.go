package server

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"polisense-backend/internal/documents"
	"polisense-backend/internal/queries"
	"polisense-backend/internal/services/health"
	"polisense-backend/internal/shared/config"
	"polisense-backend/internal/shared/metrics"
	"polisense-backend/internal/shared/server/middleware"
	"polisense-backend/internal/shared/server/respond"
)

// RouterDeps carries the handlers the router mounts.
type RouterDeps struct {
	Config          config.Config
	DocumentHandler *documents.Handler
	QueryHandler    *queries.Handler
	Health          *health.Service
}

// NewRouter constructs the Gin engine with middleware and routes registered.
func NewRouter(deps RouterDeps) *gin.Engine {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()

	r.Use(
		middleware.RequestID(),
		middleware.Logging(),
		middleware.Recovery(),
		middleware.CORS(deps.Config.CORSAllowOrigin),
		middleware.Identity(),
	)

	healthSvc := deps.Health
	if healthSvc == nil {
		healthSvc = health.NewService(nil, nil)
	}
	r.GET("/api/health", func(c *gin.Context) {
		if deep := c.Query("deep"); deep != "1" && deep != "true" {
			respond.OK(c, healthSvc.Status())
			return
		}
		report := healthSvc.Check(c.Request.Context())
		status := http.StatusOK
		if !report.OK {
			status = http.StatusServiceUnavailable
		}
		respond.JSON(c, status, report)
	})
	r.GET("/metrics", metrics.Handler())

	user := r.Group("/user")
	if deps.DocumentHandler != nil {
		deps.DocumentHandler.RegisterRoutes(user)
	}
	if deps.QueryHandler != nil {
		deps.QueryHandler.RegisterRoutes(user)
	}

	if token := strings.TrimSpace(deps.Config.AdminToken); token != "" && deps.DocumentHandler != nil {
		admin := r.Group("/admin", middleware.AdminAuth(token))
		deps.DocumentHandler.RegisterAdminRoutes(admin)
	}

	r.NoRoute(func(c *gin.Context) {
		respond.Error(c, http.StatusNotFound, "Not found", "route not found", nil)
	})

	return r
}

// Addr normalizes the listen address.
func Addr(port string) string {
	if port == "" {
		return ":8080"
	}
	if port[0] == ':' {
		return port
	}
	return ":" + port
}
