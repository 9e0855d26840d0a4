package admin

import (
	"sportflow-license/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var Module = fx.Module("admin.module",
	fx.Provide(
		NewRedisSessionStore,
		func(s *RedisSessionStore) SessionStore { return s },
		func(s *RedisSessionStore) middleware.SessionValidator { return s },
		NewService,
	),
)

var ServerModule = fx.Module("admin.server",
	Module,
	fx.Invoke(registerRoutes),
)

func registerRoutes(r *gin.Engine, s *Service) {
	auth := r.Group("/api/admin")
	auth.POST("/login", s.Login)
	auth.GET("/2fa/setup", s.Setup2FA)
	auth.POST("/2fa/verify", s.Verify2FA)
	auth.POST("/2fa/validate", s.Validate2FA)
	auth.POST("/logout", s.Logout)
}
