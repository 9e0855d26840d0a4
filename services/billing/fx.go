package billing

import (
	"sportflow-license/pkg/middleware"

	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"go.uber.org/fx"
)

var Module = fx.Module("billing.module",
	fx.Provide(NewService),
)

var ServerModule = fx.Module("billing.server",
	Module,
	fx.Provide(NewScheduler),
	fx.Invoke(
		registerRoutes,
		registerTaskHandlers,
		registerScheduler,
	),
)

func registerRoutes(r *gin.Engine, s *Service, guard middleware.AdminGuard) {
	admin := r.Group("/api/invoices", gin.HandlerFunc(guard))
	admin.POST("/create", s.Create)
	admin.GET("/list", s.List)
	admin.POST("/generate", s.Generate)
	admin.GET("/:id", s.Get)
	admin.POST("/:id", s.Update)
	admin.DELETE("/:id", s.Delete)
}

func registerTaskHandlers(mux *asynq.ServeMux, s *Service) {
	mux.HandleFunc(TypeGenerateMonthly, s.HandleGenerateMonthly)
}
