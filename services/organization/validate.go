package organization

import (
	"errors"
	"net/http"
	"strings"
	"time"

	"sportflow-license/pkg/errutil"
	"sportflow-license/services/licensing"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type validateStats struct {
	UserCount    *int `json:"userCount"`
	BookingCount *int `json:"bookingCount"`
}

type validateRequest struct {
	LicenseKey string         `json:"licenseKey" binding:"required"`
	AppVersion string         `json:"appVersion"`
	Stats      *validateStats `json:"stats"`
}

type restrictions struct {
	ReadOnly          bool `json:"readOnly"`
	ShowWarning       bool `json:"showWarning"`
	CanCreateBookings bool `json:"canCreateBookings"`
	CanCreateUsers    bool `json:"canCreateUsers"`
}

type pricingBreakdown struct {
	BasePrice         int `json:"basePrice"`
	ModulePrice       int `json:"modulePrice"`
	TotalMonthlyPrice int `json:"totalMonthlyPrice"`
	ModuleCount       int `json:"moduleCount"`
}

// Validate is the public heartbeat endpoint called by customer installations.
// Every call with a known key updates heartbeat stats and appends an audit
// row in one transaction, whatever the outcome of the license check.
func (s *Service) Validate(c *gin.Context) {
	var req validateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("licenseKey is required"))
		return
	}

	ctx := c.Request.Context()

	var org Organization
	err := s.db.WithContext(ctx).
		Preload("Modules", "is_active = ?", true).
		Preload("Modules.Module").
		Where("license_key = ?", req.LicenseKey).
		First(&org).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		// No organization to attach an audit row to.
		c.JSON(http.StatusOK, gin.H{"valid": false, "status": string(licensing.StatusInvalid)})
		return
	}
	if err != nil {
		zap.L().Error("failed to load organization for validation", zap.Error(err))
		c.Error(errutil.Internal("failed to validate license"))
		return
	}

	now := time.Now()
	res := licensing.Resolve(licensing.Snapshot{
		IsActive:      org.IsActive,
		IsSuspended:   org.IsSuspended,
		SuspendReason: org.SuspendReason,
		LicenseType:   licensing.Type(org.LicenseType),
		ExpiresAt:     org.ExpiresAt,
		GraceEndsAt:   org.GraceEndsAt,
	}, now)

	if err := s.recordHeartbeat(c, &org, req, res, now); err != nil {
		zap.L().Error("failed to record license heartbeat",
			zap.String("organization_id", org.ID),
			zap.Error(err),
		)
		c.Error(errutil.Internal("failed to validate license"))
		return
	}

	switch res.Status {
	case licensing.StatusSuspended, licensing.StatusExpired:
		c.JSON(http.StatusOK, gin.H{
			"valid":   false,
			"status":  string(res.Status),
			"message": res.Message,
		})
	case licensing.StatusGrace:
		pricing, err := s.pricingFor(c, &org)
		if err != nil {
			zap.L().Error("failed to compute pricing", zap.Error(err))
			c.Error(errutil.Internal("failed to validate license"))
			return
		}
		c.JSON(http.StatusOK, gin.H{
			"valid":        true,
			"status":       string(res.Status),
			"message":      res.Message,
			"organization": org.Name,
			"licenseType":      org.LicenseType,
			"licenseTypeName":  licensing.TypeName(licensing.Type(org.LicenseType)),
			"graceMode":        true,
			"daysLeft":         res.DaysLeft,
			"graceEndsAt":      res.GraceEndsAt,
			"modules":          moduleMap(org.Modules),
			"pricing":          pricing,
			"restrictions": restrictions{
				ShowWarning:       true,
				CanCreateBookings: true,
			},
		})
	default:
		pricing, err := s.pricingFor(c, &org)
		if err != nil {
			zap.L().Error("failed to compute pricing", zap.Error(err))
			c.Error(errutil.Internal("failed to validate license"))
			return
		}
		t := licensing.Type(org.LicenseType)
		c.JSON(http.StatusOK, gin.H{
			"valid":              true,
			"status":             string(res.Status),
			"organization":       org.Name,
			"licenseType":        org.LicenseType,
			"licenseTypeName":    licensing.TypeName(t),
			"expiresAt":          org.ExpiresAt,
			"daysUntilExpiry":    res.DaysUntilExpiry,
			"limits":             licensing.LimitsFor(t, org.MaxUsers, org.MaxResources),
			"features":           licensing.FeaturesFor(t),
			"modules":            moduleMap(org.Modules),
			"pricing":            pricing,
			"showRenewalWarning": res.DaysUntilExpiry <= 30,
		})
	}
}

// recordHeartbeat updates the heartbeat columns and appends the audit row in
// a single transaction so every heartbeat has a matching audit entry.
func (s *Service) recordHeartbeat(c *gin.Context, org *Organization, req validateRequest, res licensing.Resolution, now time.Time) error {
	updates := map[string]any{
		"last_heartbeat": now,
		"updated_at":     now,
	}
	if req.AppVersion != "" {
		updates["app_version"] = req.AppVersion
	}
	if req.Stats != nil {
		if req.Stats.UserCount != nil {
			updates["total_users"] = *req.Stats.UserCount
		}
		if req.Stats.BookingCount != nil {
			updates["total_bookings"] = *req.Stats.BookingCount
		}
	}
	if org.ActivatedAt == nil {
		updates["activated_at"] = now
	}

	audit := Validation{
		ID:             s.node.Generate().String(),
		CreatedAt:      now,
		OrganizationID: org.ID,
		LicenseKey:     org.LicenseKey,
		Status:         string(res.Status),
		Valid:          res.Valid,
		IPAddress:      clientIP(c),
		UserAgent:      c.Request.UserAgent(),
		AppVersion:     req.AppVersion,
	}
	if req.Stats != nil {
		audit.UserCount = req.Stats.UserCount
		audit.BookingCount = req.Stats.BookingCount
	}

	return s.db.WithContext(c.Request.Context()).Transaction(func(tx *gorm.DB) error {
		if err := tx.Model(&Organization{}).Where("id = ?", org.ID).Updates(updates).Error; err != nil {
			return err
		}
		return tx.Create(&audit).Error
	})
}

func clientIP(c *gin.Context) string {
	if fwd := c.GetHeader("x-forwarded-for"); fwd != "" {
		if ip := strings.TrimSpace(strings.Split(fwd, ",")[0]); ip != "" {
			return ip
		}
	}
	if ip := c.GetHeader("x-real-ip"); ip != "" {
		return ip
	}
	return "unknown"
}

func moduleMap(entitlements []OrganizationModule) map[string]bool {
	out := make(map[string]bool, len(entitlements))
	for _, e := range entitlements {
		if e.IsActive && e.Module.Key != "" {
			out[e.Module.Key] = true
		}
	}
	return out
}

// pricingFor computes the monthly price breakdown for an organization from
// the tier base price (override-aware) and its active paid modules.
func (s *Service) pricingFor(c *gin.Context, org *Organization) (pricingBreakdown, error) {
	override, err := licensing.PriceOverride(c.Request.Context(), s.db, licensing.Type(org.LicenseType))
	if err != nil {
		return pricingBreakdown{}, err
	}

	base := licensing.BasePrice(licensing.Type(org.LicenseType), override)
	modulePrice := 0
	moduleCount := 0
	for _, e := range org.Modules {
		if !e.IsActive {
			continue
		}
		moduleCount++
		if e.Module.Price != nil {
			modulePrice += *e.Module.Price
		}
	}

	return pricingBreakdown{
		BasePrice:         base,
		ModulePrice:       modulePrice,
		TotalMonthlyPrice: base + modulePrice,
		ModuleCount:       moduleCount,
	}, nil
}

type moduleLine struct {
	Key   string `json:"key"`
	Name  string `json:"name"`
	Price *int   `json:"price"`
}

// Pricing is the public pricing lookup by license key.
func (s *Service) Pricing(c *gin.Context) {
	key := c.Query("licenseKey")
	if key == "" {
		c.Error(errutil.BadRequest("licenseKey is required"))
		return
	}

	var org Organization
	err := s.db.WithContext(c.Request.Context()).
		Preload("Modules", "is_active = ?", true).
		Preload("Modules.Module").
		Where("license_key = ?", key).
		First(&org).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.Error(errutil.NotFound("license not found"))
		return
	}
	if err != nil {
		zap.L().Error("failed to load organization for pricing", zap.Error(err))
		c.Error(errutil.Internal("failed to load pricing"))
		return
	}

	pricing, err := s.pricingFor(c, &org)
	if err != nil {
		zap.L().Error("failed to compute pricing", zap.Error(err))
		c.Error(errutil.Internal("failed to load pricing"))
		return
	}

	lines := make([]moduleLine, 0, len(org.Modules))
	for _, e := range org.Modules {
		if !e.IsActive {
			continue
		}
		lines = append(lines, moduleLine{
			Key:   e.Module.Key,
			Name:  e.Module.Name,
			Price: e.Module.Price,
		})
	}

	c.JSON(http.StatusOK, gin.H{
		"licenseType":       org.LicenseType,
		"licenseTypeName":   licensing.TypeName(licensing.Type(org.LicenseType)),
		"basePrice":         pricing.BasePrice,
		"modules":           lines,
		"moduleCount":       pricing.ModuleCount,
		"modulePrice":       pricing.ModulePrice,
		"totalMonthlyPrice": pricing.TotalMonthlyPrice,
	})
}
