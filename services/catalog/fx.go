package catalog

import (
	"sportflow-license/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var ServerModule = fx.Module("catalog.server",
	fx.Provide(NewService),
	fx.Invoke(registerRoutes),
)

func registerRoutes(r *gin.Engine, s *Service, guard middleware.AdminGuard) {
	admin := r.Group("/api/modules", gin.HandlerFunc(guard))
	admin.GET("/list", s.List)
	admin.POST("", s.Create)
	admin.POST("/:id/price", s.SetPrice)
}
