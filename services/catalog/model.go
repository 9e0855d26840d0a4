package catalog

import "time"

// Module is a catalog entry for an optional feature unit. A nil Price means
// the module is bundled and billed at zero.
type Module struct {
	ID          string    `gorm:"column:id;primaryKey" json:"id"`
	CreatedAt   time.Time `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt   time.Time `gorm:"column:updated_at" json:"updatedAt"`
	Key         string    `gorm:"column:key;uniqueIndex" json:"key"`
	Name        string    `gorm:"column:name" json:"name"`
	Description string    `gorm:"column:description" json:"description"`
	IsStandard  bool      `gorm:"column:is_standard" json:"isStandard"`
	IsActive    bool      `gorm:"column:is_active" json:"isActive"`
	Price       *int      `gorm:"column:price" json:"price"`
}

func (Module) TableName() string {
	return "modules"
}
