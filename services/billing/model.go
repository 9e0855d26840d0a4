package billing

import (
	"time"

	"gorm.io/datatypes"
)

const (
	StatusDraft     = "draft"
	StatusSent      = "sent"
	StatusPaid      = "paid"
	StatusOverdue   = "overdue"
	StatusCancelled = "cancelled"
)

// allowedStatuses is the full allow-list accepted on update. Overdue is
// normally computed at read time but remains assignable.
var allowedStatuses = map[string]bool{
	StatusDraft:     true,
	StatusSent:      true,
	StatusPaid:      true,
	StatusOverdue:   true,
	StatusCancelled: true,
}

// Invoice is one monthly invoice for an organization. Prices and the module
// list are snapshotted at creation time so later catalog changes do not
// rewrite history.
type Invoice struct {
	ID        string    `gorm:"column:id;primaryKey" json:"id"`
	CreatedAt time.Time `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updatedAt"`

	InvoiceNumber  string `gorm:"column:invoice_number;uniqueIndex" json:"invoiceNumber"`
	OrganizationID string `gorm:"column:organization_id;uniqueIndex:idx_invoice_period" json:"organizationId"`
	PeriodYear     int    `gorm:"column:period_year;uniqueIndex:idx_invoice_period" json:"periodYear"`
	PeriodMonth    int    `gorm:"column:period_month;uniqueIndex:idx_invoice_period" json:"periodMonth"`

	LicenseType     string `gorm:"column:license_type" json:"licenseType"`
	LicenseTypeName string `gorm:"column:license_type_name" json:"licenseTypeName"`

	// Amounts in whole kroner. Amount = BasePrice + ModulePrice + VatAmount.
	BasePrice   int `gorm:"column:base_price" json:"basePrice"`
	ModulePrice int `gorm:"column:module_price" json:"modulePrice"`
	VatAmount   int `gorm:"column:vat_amount" json:"vatAmount"`
	Amount      int `gorm:"column:amount" json:"amount"`

	Status      string     `gorm:"column:status" json:"status"`
	InvoiceDate time.Time  `gorm:"column:invoice_date" json:"invoiceDate"`
	DueDate     time.Time  `gorm:"column:due_date" json:"dueDate"`
	PaidDate    *time.Time `gorm:"column:paid_date" json:"paidDate"`

	Modules datatypes.JSON `gorm:"column:modules" json:"modules"`
	Notes   string         `gorm:"column:notes" json:"notes"`
}

func (Invoice) TableName() string {
	return "invoices"
}

// moduleSnapshot is one line in the Modules JSON blob.
type moduleSnapshot struct {
	Key   string `json:"key"`
	Name  string `json:"name"`
	Price *int   `json:"price"`
}

// effectiveStatus computes the read-time status: a sent invoice past its due
// date reads as overdue without being rewritten.
func effectiveStatus(inv Invoice, now time.Time) string {
	if inv.Status == StatusSent && inv.DueDate.Before(now) {
		return StatusOverdue
	}
	return inv.Status
}

// view is the API shape of an invoice with the computed status applied.
type view struct {
	Invoice
	Status string `json:"status"`
}

func viewOf(inv Invoice, now time.Time) view {
	return view{Invoice: inv, Status: effectiveStatus(inv, now)}
}
