package licensing

import (
	"sportflow-license/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("licensing.module",
	fx.Provide(NewService),
)

var ServerModule = fx.Module("licensing.server",
	Module,
	fx.Invoke(registerRoutes),
)

func registerRoutes(r *gin.Engine, s *Service, guard middleware.AdminGuard) {
	admin := r.Group("/api/license-types", gin.HandlerFunc(guard))
	admin.GET("/prices", s.ListPrices)
	admin.GET("/:type/price", s.GetPrice)
	admin.POST("/:type/price", s.SetPrice)
}
