package admin

import "time"

// User is an admin account. The deployment has a single super admin,
// created on first login from the configured email.
type User struct {
	ID        string    `gorm:"column:id;primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updatedAt"`

	Email string `gorm:"column:email;uniqueIndex" json:"email"`

	TOTPSecret   string `gorm:"column:totp_secret" json:"-"`
	TOTPEnabled  bool   `gorm:"column:totp_enabled" json:"totpEnabled"`
	TOTPVerified bool   `gorm:"column:totp_verified" json:"totpVerified"`

	LastLoginAt *time.Time `gorm:"column:last_login_at" json:"lastLoginAt"`
}

func (User) TableName() string {
	return "admin_users"
}
