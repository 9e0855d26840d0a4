package organization

import (
	"sportflow-license/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("organization.module",
	fx.Provide(NewService),
)

var ServerModule = fx.Module("organization.server",
	Module,
	fx.Invoke(registerRoutes),
)

func registerRoutes(r *gin.Engine, s *Service, guard middleware.AdminGuard) {
	// public endpoints called by customer installations
	r.POST("/api/license/validate", s.Validate)
	r.GET("/api/license/pricing", s.Pricing)

	admin := r.Group("/api/license", gin.HandlerFunc(guard))
	admin.POST("/create", s.Create)
	admin.POST("/update", s.Update)
	admin.GET("/list", s.List)
	admin.GET("/:slug", s.Get)
	admin.DELETE("/:slug", s.Delete)
	admin.POST("/:slug/modules", s.SetModule)
}
