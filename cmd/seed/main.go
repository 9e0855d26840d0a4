package main

import (
	"fmt"
	"log"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/google/uuid"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"sportflow-license/pkg/config"
	"sportflow-license/pkg/db"
	"sportflow-license/pkg/gen"
	"sportflow-license/pkg/logger"
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
		gen.Module,
		fx.Invoke(run),
	}

	if err := fx.ValidateApp(opts...); err != nil {
		log.Fatalf("fx validation failed: %v", err)
	}

	app := fx.New(opts...)

	app.Run()
}

func run(db *gorm.DB, node *snowflake.Node, shutdowner fx.Shutdowner) error {
	defer shutdowner.Shutdown()

	err := db.AutoMigrate(
		&admin.User{},
		&licensing.TypePrice{},
		&catalog.Module{},
		&organization.Organization{},
		&organization.OrganizationModule{},
		&organization.Validation{},
		&billing.Invoice{},
		&settings.CompanySettings{},
	)
	if err != nil {
		return err
	}

	if err := seedModules(db, node); err != nil {
		return err
	}
	if err := seedOrganizations(db, node); err != nil {
		return err
	}

	zap.L().Info("seeding completed")
	return nil
}

func seedModules(db *gorm.DB, node *snowflake.Node) error {
	price99 := 99
	price149 := 149

	modules := []catalog.Module{
		{Key: "booking", Name: "Booking", Description: "Kjerneproduktet", IsStandard: true, IsActive: true},
		{Key: "members", Name: "Medlemmer", Description: "Medlemsregister og kontingent", IsStandard: true, IsActive: true},
		{Key: "payments", Name: "Betaling", Description: "Online betaling", IsActive: true, Price: &price99},
		{Key: "reports", Name: "Rapporter", Description: "Utvidede rapporter og eksport", IsActive: true, Price: &price149},
	}

	for _, m := range modules {
		var count int64
		if err := db.Model(&catalog.Module{}).Where("key = ?", m.Key).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		m.ID = node.Generate().String()
		m.CreatedAt = time.Now()
		m.UpdatedAt = time.Now()
		if err := db.Create(&m).Error; err != nil {
			return err
		}
		zap.L().Info("seeded module", zap.String("key", m.Key))
	}
	return nil
}

func seedOrganizations(db *gorm.DB, node *snowflake.Node) error {
	orgs := []organization.Organization{
		{
			Name:         "Oslo Tennisklubb",
			Slug:         "oslo-tennisklubb",
			LicenseType:  string(licensing.TypeStandard),
			ContactName:  "Kari Nordmann",
			ContactEmail: "post@oslotennis.no",
			IsActive:     true,
			ExpiresAt:    time.Now().Add(365 * 24 * time.Hour),
		},
		{
			Name:         "Bergen Padel",
			Slug:         "bergen-padel",
			LicenseType:  string(licensing.TypePilot),
			ContactName:  "Ola Nordmann",
			ContactEmail: "post@bergenpadel.no",
			IsActive:     true,
			ExpiresAt:    time.Now().Add(90 * 24 * time.Hour),
		},
	}

	for _, org := range orgs {
		var count int64
		if err := db.Model(&organization.Organization{}).Where("slug = ?", org.Slug).Count(&count).Error; err != nil {
			return err
		}
		if count > 0 {
			continue
		}
		org.ID = node.Generate().String()
		org.CreatedAt = time.Now()
		org.UpdatedAt = time.Now()
		org.LicenseKey = fmt.Sprintf("SFL-%s", uuid.NewString())
		if err := db.Create(&org).Error; err != nil {
			return err
		}
		zap.L().Info("seeded organization",
			zap.String("slug", org.Slug),
			zap.String("license_key", org.LicenseKey),
		)
	}
	return nil
}
