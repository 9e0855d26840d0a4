package settings

import "time"

// settingsID pins the company settings to a single row.
const settingsID = "company"

// CompanySettings holds the vendor details printed on invoices plus the
// uploaded logo. Exactly one row exists.
type CompanySettings struct {
	ID        string    `gorm:"column:id;primaryKey" json:"-"`
	CreatedAt time.Time `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updatedAt"`

	CompanyName string `gorm:"column:company_name" json:"companyName"`
	OrgNumber   string `gorm:"column:org_number" json:"orgNumber"`
	Address     string `gorm:"column:address" json:"address"`
	PostalCode  string `gorm:"column:postal_code" json:"postalCode"`
	City        string `gorm:"column:city" json:"city"`
	Email       string `gorm:"column:email" json:"email"`
	Phone       string `gorm:"column:phone" json:"phone"`
	BankAccount string `gorm:"column:bank_account" json:"bankAccount"`

	// VatRate in percent. Nil falls back to the configured default.
	VatRate *int `gorm:"column:vat_rate" json:"vatRate"`

	InvoiceNotes string `gorm:"column:invoice_notes" json:"invoiceNotes"`

	// LogoURL is either an object-store URL or a data URL when no object
	// store is configured.
	LogoURL string `gorm:"column:logo_url" json:"logoUrl"`
}

func (CompanySettings) TableName() string {
	return "company_settings"
}
