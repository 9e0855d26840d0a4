package organization

import (
	"time"

	"sportflow-license/services/catalog"
)

// Organization is a licensed tenant. The license itself is embedded here:
// tier, key, expiry and the per-tenant limit overrides.
type Organization struct {
	ID        string    `gorm:"column:id;primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updatedAt"`

	Name string `gorm:"column:name" json:"name"`
	Slug string `gorm:"column:slug;uniqueIndex" json:"slug"`

	LicenseKey  string `gorm:"column:license_key;uniqueIndex" json:"licenseKey"`
	LicenseType string `gorm:"column:license_type" json:"licenseType"`

	ContactName  string `gorm:"column:contact_name" json:"contactName"`
	ContactEmail string `gorm:"column:contact_email" json:"contactEmail"`
	ContactPhone string `gorm:"column:contact_phone" json:"contactPhone"`

	IsActive      bool   `gorm:"column:is_active" json:"isActive"`
	IsSuspended   bool   `gorm:"column:is_suspended" json:"isSuspended"`
	SuspendReason string `gorm:"column:suspend_reason" json:"suspendReason"`

	ExpiresAt   time.Time  `gorm:"column:expires_at" json:"expiresAt"`
	GraceEndsAt *time.Time `gorm:"column:grace_ends_at" json:"graceEndsAt"`
	ActivatedAt *time.Time `gorm:"column:activated_at" json:"activatedAt"`

	// Nil means the tier default applies.
	MaxUsers     *int `gorm:"column:max_users" json:"maxUsers"`
	MaxResources *int `gorm:"column:max_resources" json:"maxResources"`

	LastHeartbeat *time.Time `gorm:"column:last_heartbeat" json:"lastHeartbeat"`
	AppVersion    string     `gorm:"column:app_version" json:"appVersion"`
	TotalUsers    int        `gorm:"column:total_users" json:"totalUsers"`
	TotalBookings int        `gorm:"column:total_bookings" json:"totalBookings"`

	Notes string `gorm:"column:notes" json:"notes"`

	Modules []OrganizationModule `gorm:"foreignKey:OrganizationID" json:"modules,omitempty"`
}

func (Organization) TableName() string {
	return "organizations"
}

// OrganizationModule is a tenant's entitlement to a catalog module.
type OrganizationModule struct {
	ID             string         `gorm:"column:id;primaryKey" json:"id"`
	CreatedAt      time.Time      `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt      time.Time      `gorm:"column:updated_at" json:"updatedAt"`
	OrganizationID string         `gorm:"column:organization_id;uniqueIndex:idx_org_module" json:"organizationId"`
	ModuleID       string         `gorm:"column:module_id;uniqueIndex:idx_org_module" json:"moduleId"`
	IsActive       bool           `gorm:"column:is_active" json:"isActive"`
	Module         catalog.Module `gorm:"foreignKey:ModuleID" json:"module"`
}

func (OrganizationModule) TableName() string {
	return "organization_modules"
}

// Validation is one audit row per license validation call.
type Validation struct {
	ID             string    `gorm:"column:id;primaryKey" json:"id"`
	CreatedAt      time.Time `gorm:"column:created_at" json:"createdAt"`
	OrganizationID string    `gorm:"column:organization_id;index" json:"organizationId"`
	LicenseKey     string    `gorm:"column:license_key" json:"licenseKey"`
	Status         string    `gorm:"column:status" json:"status"`
	Valid          bool      `gorm:"column:valid" json:"valid"`
	IPAddress      string    `gorm:"column:ip_address" json:"ipAddress"`
	UserAgent      string    `gorm:"column:user_agent" json:"userAgent"`
	AppVersion     string    `gorm:"column:app_version" json:"appVersion"`

	// Usage reported by the caller on this validation, nil when omitted.
	UserCount    *int `gorm:"column:user_count" json:"userCount"`
	BookingCount *int `gorm:"column:booking_count" json:"bookingCount"`
}

func (Validation) TableName() string {
	return "license_validations"
}
