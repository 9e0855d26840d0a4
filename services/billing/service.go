package billing

import (
	"context"
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"time"

	"sportflow-license/pkg/config"
	"sportflow-license/pkg/errutil"
	"sportflow-license/pkg/sequence"
	"sportflow-license/services/licensing"
	"sportflow-license/services/organization"
	"sportflow-license/services/settings"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

type Service struct {
	db     *gorm.DB
	node   *snowflake.Node
	seq    sequence.Generator
	config *config.Config
}

type ServiceParams struct {
	fx.In
	DB     *gorm.DB
	Node   *snowflake.Node
	Seq    sequence.Generator
	Config *config.Config
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:     p.DB,
		node:   p.Node,
		seq:    p.Seq,
		config: p.Config,
	}
}

var errDuplicatePeriod = errors.New("invoice already exists for period")

// createForOrganization builds and stores one invoice, snapshotting the
// organization's tier pricing and active paid modules.
func (s *Service) createForOrganization(ctx context.Context, org organization.Organization, year, month int, notes string) (Invoice, error) {
	var count int64
	err := s.db.WithContext(ctx).Model(&Invoice{}).
		Where("organization_id = ? AND period_year = ? AND period_month = ?", org.ID, year, month).
		Count(&count).Error
	if err != nil {
		return Invoice{}, err
	}
	if count > 0 {
		return Invoice{}, errDuplicatePeriod
	}

	t := licensing.Type(org.LicenseType)
	override, err := licensing.PriceOverride(ctx, s.db, t)
	if err != nil {
		return Invoice{}, err
	}
	basePrice := licensing.BasePrice(t, override)

	var entitlements []organization.OrganizationModule
	err = s.db.WithContext(ctx).
		Preload("Module").
		Where("organization_id = ? AND is_active = ?", org.ID, true).
		Find(&entitlements).Error
	if err != nil {
		return Invoice{}, err
	}

	modulePrice := 0
	snapshots := make([]moduleSnapshot, 0, len(entitlements))
	for _, e := range entitlements {
		snapshots = append(snapshots, moduleSnapshot{
			Key:   e.Module.Key,
			Name:  e.Module.Name,
			Price: e.Module.Price,
		})
		if e.Module.Price != nil {
			modulePrice += *e.Module.Price
		}
	}
	modulesJSON, err := json.Marshal(snapshots)
	if err != nil {
		return Invoice{}, err
	}

	vatRate := settings.EffectiveVatRate(s.db.WithContext(ctx), s.config)
	subtotal := basePrice + modulePrice
	vatAmount := int(math.Round(float64(subtotal) * float64(vatRate) / 100))

	number, err := s.seq.NextInvoiceNumber(ctx, s.config.Invoice.Prefix, year)
	if err != nil {
		return Invoice{}, err
	}

	now := time.Now()
	inv := Invoice{
		ID:              s.node.Generate().String(),
		CreatedAt:       now,
		UpdatedAt:       now,
		InvoiceNumber:   number,
		OrganizationID:  org.ID,
		PeriodYear:      year,
		PeriodMonth:     month,
		LicenseType:     org.LicenseType,
		LicenseTypeName: licensing.TypeName(t),
		BasePrice:       basePrice,
		ModulePrice:     modulePrice,
		VatAmount:       vatAmount,
		Amount:          subtotal + vatAmount,
		Status:          StatusDraft,
		InvoiceDate:     now,
		DueDate:         now.Add(time.Duration(s.config.Invoice.DueDays) * 24 * time.Hour),
		Modules:         modulesJSON,
		Notes:           notes,
	}

	if err := s.db.WithContext(ctx).Create(&inv).Error; err != nil {
		return Invoice{}, err
	}
	return inv, nil
}

type createRequest struct {
	OrganizationID string `json:"organizationId" binding:"required"`
	PeriodYear     int    `json:"periodYear" binding:"required"`
	PeriodMonth    int    `json:"periodMonth" binding:"required"`
	Notes          string `json:"notes"`
}

// Create issues a single invoice for one organization and period.
func (s *Service) Create(c *gin.Context) {
	var req createRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("organizationId, periodYear and periodMonth are required"))
		return
	}
	if req.PeriodMonth < 1 || req.PeriodMonth > 12 {
		c.Error(errutil.BadRequest("periodMonth must be between 1 and 12"))
		return
	}

	ctx := c.Request.Context()

	var org organization.Organization
	err := s.db.WithContext(ctx).Where("id = ?", req.OrganizationID).First(&org).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.Error(errutil.NotFound("organization not found"))
		return
	}
	if err != nil {
		zap.L().Error("failed to load organization", zap.Error(err))
		c.Error(errutil.Internal("failed to create invoice"))
		return
	}

	inv, err := s.createForOrganization(ctx, org, req.PeriodYear, req.PeriodMonth, req.Notes)
	if errors.Is(err, errDuplicatePeriod) {
		c.Error(errutil.Conflict("invoice already exists for this period"))
		return
	}
	if err != nil {
		zap.L().Error("failed to create invoice", zap.Error(err))
		c.Error(errutil.Internal("failed to create invoice"))
		return
	}

	zap.L().Info("invoice created",
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.String("organization_id", org.ID),
		zap.Int("amount", inv.Amount),
	)

	c.JSON(http.StatusCreated, viewOf(inv, time.Now()))
}

// List returns all invoices, newest first, with overdue computed at read
// time.
func (s *Service) List(c *gin.Context) {
	var invoices []Invoice
	err := s.db.WithContext(c.Request.Context()).
		Order("invoice_date desc").
		Find(&invoices).Error
	if err != nil {
		zap.L().Error("failed to list invoices", zap.Error(err))
		c.Error(errutil.Internal("failed to list invoices"))
		return
	}

	now := time.Now()
	out := make([]view, 0, len(invoices))
	for _, inv := range invoices {
		out = append(out, viewOf(inv, now))
	}

	c.JSON(http.StatusOK, gin.H{"invoices": out})
}

// Get returns a single invoice.
func (s *Service) Get(c *gin.Context) {
	var inv Invoice
	err := s.db.WithContext(c.Request.Context()).Where("id = ?", c.Param("id")).First(&inv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.Error(errutil.NotFound("invoice not found"))
		return
	}
	if err != nil {
		zap.L().Error("failed to load invoice", zap.Error(err))
		c.Error(errutil.Internal("failed to load invoice"))
		return
	}

	c.JSON(http.StatusOK, viewOf(inv, time.Now()))
}

type updateRequest struct {
	Status   *string `json:"status"`
	PaidDate *string `json:"paidDate"`
	DueDate  *string `json:"dueDate"`
	Notes    *string `json:"notes"`
}

// Update applies a partial update. Status values outside the allow-list are
// rejected; marking an invoice paid stamps PaidDate once and re-applying
// paid keeps the original date.
func (s *Service) Update(c *gin.Context) {
	var req updateRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("invalid request body"))
		return
	}
	if req.Status == nil && req.PaidDate == nil && req.DueDate == nil && req.Notes == nil {
		c.Error(errutil.BadRequest("nothing to update"))
		return
	}

	ctx := c.Request.Context()

	var inv Invoice
	err := s.db.WithContext(ctx).Where("id = ?", c.Param("id")).First(&inv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.Error(errutil.NotFound("invoice not found"))
		return
	}
	if err != nil {
		zap.L().Error("failed to load invoice", zap.Error(err))
		c.Error(errutil.Internal("failed to update invoice"))
		return
	}

	if req.Status != nil {
		if !allowedStatuses[*req.Status] {
			c.Error(errutil.BadRequest("invalid status"))
			return
		}
		inv.Status = *req.Status
		switch *req.Status {
		case StatusPaid:
			if inv.PaidDate == nil {
				now := time.Now()
				inv.PaidDate = &now
			}
		default:
			inv.PaidDate = nil
		}
	}
	if req.PaidDate != nil {
		ts, err := time.Parse(time.RFC3339, *req.PaidDate)
		if err != nil {
			c.Error(errutil.BadRequest("invalid paidDate"))
			return
		}
		inv.PaidDate = &ts
	}
	if req.DueDate != nil {
		ts, err := time.Parse(time.RFC3339, *req.DueDate)
		if err != nil {
			c.Error(errutil.BadRequest("invalid dueDate"))
			return
		}
		inv.DueDate = ts
	}
	if req.Notes != nil {
		inv.Notes = *req.Notes
	}
	inv.UpdatedAt = time.Now()

	if err := s.db.WithContext(ctx).Save(&inv).Error; err != nil {
		zap.L().Error("failed to update invoice", zap.Error(err))
		c.Error(errutil.Internal("failed to update invoice"))
		return
	}

	zap.L().Info("invoice updated",
		zap.String("invoice_number", inv.InvoiceNumber),
		zap.String("status", inv.Status),
	)

	c.JSON(http.StatusOK, viewOf(inv, time.Now()))
}

// Delete removes a draft invoice. Issued invoices must be cancelled instead.
func (s *Service) Delete(c *gin.Context) {
	ctx := c.Request.Context()

	var inv Invoice
	err := s.db.WithContext(ctx).Where("id = ?", c.Param("id")).First(&inv).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		c.Error(errutil.NotFound("invoice not found"))
		return
	}
	if err != nil {
		zap.L().Error("failed to load invoice", zap.Error(err))
		c.Error(errutil.Internal("failed to delete invoice"))
		return
	}

	if inv.Status != StatusDraft {
		c.Error(errutil.BadRequest("only draft invoices can be deleted"))
		return
	}

	if err := s.db.WithContext(ctx).Delete(&inv).Error; err != nil {
		zap.L().Error("failed to delete invoice", zap.Error(err))
		c.Error(errutil.Internal("failed to delete invoice"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

// generateForPeriod creates draft invoices for every billable organization
// that does not yet have one for the period. Suspended, inactive and
// zero-price organizations are skipped.
func (s *Service) generateForPeriod(ctx context.Context, year, month int) (int, error) {
	var orgs []organization.Organization
	err := s.db.WithContext(ctx).
		Where("is_active = ? AND is_suspended = ?", true, false).
		Find(&orgs).Error
	if err != nil {
		return 0, err
	}

	created := 0
	for _, org := range orgs {
		t := licensing.Type(org.LicenseType)
		override, err := licensing.PriceOverride(ctx, s.db, t)
		if err != nil {
			return created, err
		}
		if licensing.BasePrice(t, override) == 0 {
			continue
		}

		_, err = s.createForOrganization(ctx, org, year, month, "")
		if errors.Is(err, errDuplicatePeriod) {
			continue
		}
		if err != nil {
			zap.L().Error("failed to generate invoice",
				zap.String("organization_id", org.ID),
				zap.Error(err),
			)
			return created, err
		}
		created++
	}
	return created, nil
}

type generateRequest struct {
	PeriodYear  int `json:"periodYear"`
	PeriodMonth int `json:"periodMonth"`
}

// Generate runs monthly invoice generation on demand. The period defaults to
// the current month.
func (s *Service) Generate(c *gin.Context) {
	// body is optional; a missing body means the current period
	var req generateRequest
	_ = c.ShouldBindJSON(&req)

	now := time.Now()
	year, month := req.PeriodYear, req.PeriodMonth
	if year == 0 {
		year = now.Year()
	}
	if month == 0 {
		month = int(now.Month())
	}
	if month < 1 || month > 12 {
		c.Error(errutil.BadRequest("periodMonth must be between 1 and 12"))
		return
	}

	created, err := s.generateForPeriod(c.Request.Context(), year, month)
	if err != nil {
		zap.L().Error("failed to generate invoices", zap.Error(err))
		c.Error(errutil.Internal("failed to generate invoices"))
		return
	}

	zap.L().Info("invoice generation finished",
		zap.Int("year", year),
		zap.Int("month", month),
		zap.Int("created", created),
	)

	c.JSON(http.StatusOK, gin.H{
		"periodYear":  year,
		"periodMonth": month,
		"created":     created,
	})
}
