package main

import (
	"log"

	"go.uber.org/fx"
	"go.uber.org/fx/fxevent"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"sportflow-license/pkg/config"
	"sportflow-license/pkg/db"
	"sportflow-license/pkg/gen"
	"sportflow-license/pkg/health"
	"sportflow-license/pkg/logger"
	"sportflow-license/pkg/middleware"
	"sportflow-license/pkg/minio"
	"sportflow-license/pkg/redis"
	"sportflow-license/pkg/sequence"
	"sportflow-license/pkg/server"
	"sportflow-license/pkg/task"
	"sportflow-license/services/admin"
	"sportflow-license/services/billing"
	"sportflow-license/services/catalog"
	"sportflow-license/services/licensing"
	"sportflow-license/services/organization"
	"sportflow-license/services/settings"
)

func main() {
	opts := []fx.Option{
		fx.Provide(config.ProvideVault),
		config.Module,
		logger.Module,
		db.Module,
		redis.Module,
		gen.Module,
		sequence.Module,
		task.Client,
		task.Server,
		minio.Client,
		health.Module,
		middleware.Module,
		server.RouterModule,

		admin.ServerModule,
		licensing.ServerModule,
		catalog.ServerModule,
		organization.ServerModule,
		billing.ServerModule,
		settings.ServerModule,

		fx.Invoke(migrate),
		server.Module,
		fxLogger,
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

func migrate(db *gorm.DB) error {
	return db.AutoMigrate(
		&admin.User{},
		&licensing.TypePrice{},
		&catalog.Module{},
		&organization.Organization{},
		&organization.OrganizationModule{},
		&organization.Validation{},
		&billing.Invoice{},
		&settings.CompanySettings{},
	)
}

var fxLogger = fx.WithLogger(func(cfg *config.Config, logger *zap.Logger) fxevent.Logger {
	return fxevent.NopLogger
})
