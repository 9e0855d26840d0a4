package organization

import (
	"errors"
	"fmt"
	"net/http"
	"time"

	"sportflow-license/pkg/errutil"
	"sportflow-license/services/catalog"
	"sportflow-license/services/licensing"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/gosimple/slug"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db   *gorm.DB
	node *snowflake.Node
}

type ServiceParams struct {
	fx.In
	DB   *gorm.DB
	Node *snowflake.Node
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:   p.DB,
		node: p.Node,
	}
}

func parseTimestamp(raw string) (time.Time, error) {
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts, nil
	}
	return time.Parse("2006-01-02", raw)
}

type createRequest struct {
	Name         string `json:"name" binding:"required"`
	Slug         string `json:"slug"`
	LicenseType  string `json:"licenseType"`
	ContactName  string `json:"contactName"`
	ContactEmail string `json:"contactEmail"`
	ContactPhone string `json:"contactPhone"`
	ExpiresAt    string `json:"expiresAt"`
	MaxUsers     *int   `json:"maxUsers"`
	MaxResources *int   `json:"maxResources"`
	Notes        string `json:"notes"`
}

// Create registers a new organization and issues its license key.
func (s *Service) Create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("name is required"))
		return
	}

	licenseType := req.LicenseType
	if licenseType == "" {
		licenseType = string(licensing.TypeFree)
	}
	if !licensing.Valid(licensing.Type(licenseType)) {
		c.Error(errutil.BadRequest("unknown license type"))
		return
	}

	slugName := req.Slug
	if slugName == "" {
		slugName = slug.Make(req.Name)
	}

	expiresAt := time.Now().Add(365 * 24 * time.Hour)
	if req.ExpiresAt != "" {
		ts, err := parseTimestamp(req.ExpiresAt)
		if err != nil {
			c.Error(errutil.BadRequest("invalid expiresAt"))
			return
		}
		expiresAt = ts
	}

	ctx := c.Request.Context()

	var count int64
	if err := s.db.WithContext(ctx).Model(&Organization{}).Where("slug = ?", slugName).Count(&count).Error; err != nil {
		zap.L().Error("failed to check organization slug", zap.Error(err))
		c.Error(errutil.Internal("failed to create organization"))
		return
	}
	if count > 0 {
		c.Error(errutil.Conflict("organization already exists"))
		return
	}

	org := Organization{
		ID:           s.node.Generate().String(),
		CreatedAt:    time.Now(),
		UpdatedAt:    time.Now(),
		Name:         req.Name,
		Slug:         slugName,
		LicenseKey:   fmt.Sprintf("SFL-%s", uuid.NewString()),
		LicenseType:  licenseType,
		ContactName:  req.ContactName,
		ContactEmail: req.ContactEmail,
		ContactPhone: req.ContactPhone,
		IsActive:     true,
		ExpiresAt:    expiresAt,
		MaxUsers:     req.MaxUsers,
		MaxResources: req.MaxResources,
		Notes:        req.Notes,
	}

	if err := s.db.WithContext(ctx).Create(&org).Error; err != nil {
		zap.L().Error("failed to create organization", zap.Error(err))
		c.Error(errutil.Internal("failed to create organization"))
		return
	}

	zap.L().Info("organization created",
		zap.String("organization_id", org.ID),
		zap.String("slug", org.Slug),
		zap.String("license_type", org.LicenseType),
	)

	c.JSON(http.StatusCreated, org)
}

type updateRequest struct {
	Slug          string  `json:"slug" binding:"required"`
	Name          *string `json:"name"`
	LicenseType   *string `json:"licenseType"`
	ContactName   *string `json:"contactName"`
	ContactEmail  *string `json:"contactEmail"`
	ContactPhone  *string `json:"contactPhone"`
	IsActive      *bool   `json:"isActive"`
	IsSuspended   *bool   `json:"isSuspended"`
	SuspendReason *string `json:"suspendReason"`
	ExpiresAt     *string `json:"expiresAt"`
	GraceEndsAt   *string `json:"graceEndsAt"`
	MaxUsers      *int    `json:"maxUsers"`
	MaxResources  *int    `json:"maxResources"`
	Notes         *string `json:"notes"`
}

// Update applies a partial update addressed by slug. An empty patch is
// rejected.
func (s *Service) Update(c *gin.Context) {
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("slug is required"))
		return
	}

	updates := map[string]any{}
	if req.Name != nil {
		updates["name"] = *req.Name
	}
	if req.LicenseType != nil {
		if !licensing.Valid(licensing.Type(*req.LicenseType)) {
			c.Error(errutil.BadRequest("unknown license type"))
			return
		}
		updates["license_type"] = *req.LicenseType
	}
	if req.ContactName != nil {
		updates["contact_name"] = *req.ContactName
	}
	if req.ContactEmail != nil {
		updates["contact_email"] = *req.ContactEmail
	}
	if req.ContactPhone != nil {
		updates["contact_phone"] = *req.ContactPhone
	}
	if req.IsActive != nil {
		updates["is_active"] = *req.IsActive
	}
	if req.IsSuspended != nil {
		updates["is_suspended"] = *req.IsSuspended
		if !*req.IsSuspended {
			updates["suspend_reason"] = ""
		}
	}
	if req.SuspendReason != nil {
		updates["suspend_reason"] = *req.SuspendReason
	}
	if req.ExpiresAt != nil {
		ts, err := parseTimestamp(*req.ExpiresAt)
		if err != nil {
			c.Error(errutil.BadRequest("invalid expiresAt"))
			return
		}
		updates["expires_at"] = ts
		// a fresh expiry voids any stored grace deadline
		updates["grace_ends_at"] = nil
	}
	if req.GraceEndsAt != nil {
		if *req.GraceEndsAt == "" {
			updates["grace_ends_at"] = nil
		} else {
			ts, err := parseTimestamp(*req.GraceEndsAt)
			if err != nil {
				c.Error(errutil.BadRequest("invalid graceEndsAt"))
				return
			}
			updates["grace_ends_at"] = ts
		}
	}
	if req.MaxUsers != nil {
		updates["max_users"] = *req.MaxUsers
	}
	if req.MaxResources != nil {
		updates["max_resources"] = *req.MaxResources
	}
	if req.Notes != nil {
		updates["notes"] = *req.Notes
	}

	if len(updates) == 0 {
		c.Error(errutil.BadRequest("nothing to update"))
		return
	}
	updates["updated_at"] = time.Now()

	ctx := c.Request.Context()

	var org Organization
	if err := s.db.WithContext(ctx).Where("slug = ?", req.Slug).First(&org).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.Error(errutil.NotFound("organization not found"))
			return
		}
		zap.L().Error("failed to load organization", zap.Error(err))
		c.Error(errutil.Internal("failed to update organization"))
		return
	}

	if err := s.db.WithContext(ctx).Model(&org).Updates(updates).Error; err != nil {
		zap.L().Error("failed to update organization", zap.Error(err))
		c.Error(errutil.Internal("failed to update organization"))
		return
	}

	if err := s.db.WithContext(ctx).Where("id = ?", org.ID).First(&org).Error; err != nil {
		zap.L().Error("failed to reload organization", zap.Error(err))
		c.Error(errutil.Internal("failed to update organization"))
		return
	}

	zap.L().Info("organization updated",
		zap.String("organization_id", org.ID),
		zap.String("slug", org.Slug),
	)

	c.JSON(http.StatusOK, org)
}

type listItem struct {
	Organization
	ValidationCount int64 `json:"validationCount"`
}

// List returns every organization with its validation call count.
func (s *Service) List(c *gin.Context) {
	ctx := c.Request.Context()

	var orgs []Organization
	if err := s.db.WithContext(ctx).Order("name asc").Find(&orgs).Error; err != nil {
		zap.L().Error("failed to list organizations", zap.Error(err))
		c.Error(errutil.Internal("failed to list organizations"))
		return
	}

	counts := map[string]int64{}
	rows := []struct {
		OrganizationID string
		Count          int64
	}{}
	err := s.db.WithContext(ctx).Model(&Validation{}).
		Select("organization_id, count(*) as count").
		Group("organization_id").
		Scan(&rows).Error
	if err != nil {
		zap.L().Error("failed to count validations", zap.Error(err))
		c.Error(errutil.Internal("failed to list organizations"))
		return
	}
	for _, row := range rows {
		counts[row.OrganizationID] = row.Count
	}

	out := make([]listItem, 0, len(orgs))
	for _, org := range orgs {
		out = append(out, listItem{Organization: org, ValidationCount: counts[org.ID]})
	}

	c.JSON(http.StatusOK, gin.H{"organizations": out})
}

// Get returns one organization with entitlements and its 50 latest
// validation audit rows.
func (s *Service) Get(c *gin.Context) {
	ctx := c.Request.Context()

	var org Organization
	err := s.db.WithContext(ctx).
		Preload("Modules").
		Preload("Modules.Module").
		Where("slug = ?", c.Param("slug")).
		First(&org).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.Error(errutil.NotFound("organization not found"))
		return
	}
	if err != nil {
		zap.L().Error("failed to load organization", zap.Error(err))
		c.Error(errutil.Internal("failed to load organization"))
		return
	}

	var validations []Validation
	err = s.db.WithContext(ctx).
		Where("organization_id = ?", org.ID).
		Order("created_at desc").
		Limit(50).
		Find(&validations).Error
	if err != nil {
		zap.L().Error("failed to load validations", zap.Error(err))
		c.Error(errutil.Internal("failed to load organization"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"organization": org,
		"validations":  validations,
	})
}

// Delete removes an organization together with its entitlements and audit
// trail.
func (s *Service) Delete(c *gin.Context) {
	ctx := c.Request.Context()

	var org Organization
	err := s.db.WithContext(ctx).Where("slug = ?", c.Param("slug")).First(&org).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.Error(errutil.NotFound("organization not found"))
		return
	}
	if err != nil {
		zap.L().Error("failed to load organization", zap.Error(err))
		c.Error(errutil.Internal("failed to delete organization"))
		return
	}

	err = s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("organization_id = ?", org.ID).Delete(&OrganizationModule{}).Error; err != nil {
			return err
		}
		if err := tx.Where("organization_id = ?", org.ID).Delete(&Validation{}).Error; err != nil {
			return err
		}
		return tx.Delete(&org).Error
	})
	if err != nil {
		zap.L().Error("failed to delete organization", zap.Error(err))
		c.Error(errutil.Internal("failed to delete organization"))
		return
	}

	zap.L().Info("organization deleted",
		zap.String("organization_id", org.ID),
		zap.String("slug", org.Slug),
	)

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

type setModuleRequest struct {
	ModuleID string `json:"moduleId" binding:"required"`
	IsActive *bool  `json:"isActive" binding:"required"`
}

// SetModule upserts a module entitlement for an organization.
func (s *Service) SetModule(c *gin.Context) {
	var req setModuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("moduleId and isActive are required"))
		return
	}

	ctx := c.Request.Context()

	var org Organization
	err := s.db.WithContext(ctx).Where("slug = ?", c.Param("slug")).First(&org).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.Error(errutil.NotFound("organization not found"))
		return
	}
	if err != nil {
		zap.L().Error("failed to load organization", zap.Error(err))
		c.Error(errutil.Internal("failed to update module entitlement"))
		return
	}

	var module catalog.Module
	err = s.db.WithContext(ctx).Where("id = ?", req.ModuleID).First(&module).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.Error(errutil.NotFound("module not found"))
		return
	}
	if err != nil {
		zap.L().Error("failed to load module", zap.Error(err))
		c.Error(errutil.Internal("failed to update module entitlement"))
		return
	}

	var entitlement OrganizationModule
	err = s.db.WithContext(ctx).
		Where("organization_id = ? AND module_id = ?", org.ID, module.ID).
		First(&entitlement).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		entitlement = OrganizationModule{
			ID:             s.node.Generate().String(),
			CreatedAt:      time.Now(),
			UpdatedAt:      time.Now(),
			OrganizationID: org.ID,
			ModuleID:       module.ID,
			IsActive:       *req.IsActive,
		}
		if err := s.db.WithContext(ctx).Create(&entitlement).Error; err != nil {
			zap.L().Error("failed to create module entitlement", zap.Error(err))
			c.Error(errutil.Internal("failed to update module entitlement"))
			return
		}
	case err != nil:
		zap.L().Error("failed to load module entitlement", zap.Error(err))
		c.Error(errutil.Internal("failed to update module entitlement"))
		return
	default:
		entitlement.IsActive = *req.IsActive
		entitlement.UpdatedAt = time.Now()
		if err := s.db.WithContext(ctx).Save(&entitlement).Error; err != nil {
			zap.L().Error("failed to update module entitlement", zap.Error(err))
			c.Error(errutil.Internal("failed to update module entitlement"))
			return
		}
	}

	zap.L().Info("module entitlement updated",
		zap.String("organization_id", org.ID),
		zap.String("module_key", module.Key),
		zap.Bool("is_active", entitlement.IsActive),
	)

	entitlement.Module = module
	c.JSON(http.StatusOK, entitlement)
}
