package licensing

import "time"

// TypePrice overrides the built-in monthly price of a license tier.
type TypePrice struct {
	ID          string    `gorm:"column:id;primaryKey"`
	CreatedAt   time.Time `gorm:"column:created_at"`
	UpdatedAt   time.Time `gorm:"column:updated_at"`
	LicenseType string    `gorm:"column:license_type;uniqueIndex"`
	Price       int       `gorm:"column:price"`
}
