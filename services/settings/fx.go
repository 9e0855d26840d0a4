package settings

import (
	"sportflow-license/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var ServerModule = fx.Module("settings.server",
	fx.Provide(NewService),
	fx.Invoke(registerRoutes),
)

func registerRoutes(r *gin.Engine, s *Service, guard middleware.AdminGuard) {
	admin := r.Group("/api/settings", gin.HandlerFunc(guard))
	admin.GET("", s.Get)
	admin.POST("", s.Update)
	admin.POST("/logo", s.UploadLogo)
	admin.DELETE("/logo", s.DeleteLogo)
}
