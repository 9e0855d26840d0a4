package server

import (
	"sportflow-license/pkg/config"
	"sportflow-license/pkg/health"
	"sportflow-license/pkg/middleware"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
)

var RouterModule = fx.Module("http.router",
	fx.Provide(NewEngine),
	fx.Invoke(registerHealthRoutes),
)

func NewEngine(cfg *config.Config) *gin.Engine {
	if cfg.AppEnv == "production" {
		gin.SetMode(gin.ReleaseMode)
	}

	r := gin.New()
	r.Use(
		gin.Recovery(),
		middleware.RequestLogger(),
		middleware.Error(),
	)

	return r
}

func registerHealthRoutes(r *gin.Engine, h health.HealthService) {
	r.GET("/healthz", h.Liveness)
	r.GET("/readyz", h.Readiness)
}
