package licensing

import (
	"context"
	"errors"
	"math"
	"net/http"
	"time"

	"sportflow-license/pkg/errutil"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
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

// PriceOverride returns the stored price override for a tier, or nil when the
// built-in default applies.
func PriceOverride(ctx context.Context, db *gorm.DB, t Type) (*int, error) {
	var row TypePrice
	err := db.WithContext(ctx).Where("license_type = ?", string(t)).First(&row).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return &row.Price, nil
}

// PriceOverrides loads every override row keyed by tier.
func PriceOverrides(ctx context.Context, db *gorm.DB) (map[Type]int, error) {
	var rows []TypePrice
	if err := db.WithContext(ctx).Find(&rows).Error; err != nil {
		return nil, err
	}
	out := make(map[Type]int, len(rows))
	for _, row := range rows {
		out[Type(row.LicenseType)] = row.Price
	}
	return out, nil
}

type priceView struct {
	Type         Type   `json:"type"`
	Name         string `json:"name"`
	Price        int    `json:"price"`
	DefaultPrice int    `json:"defaultPrice"`
	IsOverride   bool   `json:"isOverride"`
}

func priceViewFor(t Type, overrides map[Type]int) priceView {
	def := Types[t]
	view := priceView{
		Type:         t,
		Name:         def.Name,
		Price:        def.Price,
		DefaultPrice: def.Price,
	}
	if price, ok := overrides[t]; ok {
		view.Price = price
		view.IsOverride = true
	}
	return view
}

// ListPrices returns the effective monthly price of every tier.
func (s *Service) ListPrices(c *gin.Context) {
	overrides, err := PriceOverrides(c.Request.Context(), s.db)
	if err != nil {
		zap.L().Error("failed to list license type prices", zap.Error(err))
		c.Error(errutil.Internal("failed to list license type prices"))
		return
	}

	out := make([]priceView, 0, len(TypeOrder))
	for _, t := range TypeOrder {
		out = append(out, priceViewFor(t, overrides))
	}

	c.JSON(http.StatusOK, gin.H{"prices": out})
}

// GetPrice returns the effective price of a single tier.
func (s *Service) GetPrice(c *gin.Context) {
	t := Type(c.Param("type"))
	if !Valid(t) {
		c.Error(errutil.BadRequest("unknown license type"))
		return
	}

	overrides, err := PriceOverrides(c.Request.Context(), s.db)
	if err != nil {
		zap.L().Error("failed to get license type price", zap.Error(err))
		c.Error(errutil.Internal("failed to get license type price"))
		return
	}

	c.JSON(http.StatusOK, priceViewFor(t, overrides))
}

type setPriceRequest struct {
	Price *float64 `json:"price" binding:"required"`
}

// SetPrice stores a per-tier price override. The posted amount is rounded to
// whole kroner.
func (s *Service) SetPrice(c *gin.Context) {
	t := Type(c.Param("type"))
	if !Valid(t) {
		c.Error(errutil.BadRequest("unknown license type"))
		return
	}

	var req setPriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("price is required"))
		return
	}
	if *req.Price < 0 {
		c.Error(errutil.BadRequest("price cannot be negative"))
		return
	}

	price := int(math.Round(*req.Price))
	ctx := c.Request.Context()

	var row TypePrice
	err := s.db.WithContext(ctx).Where("license_type = ?", string(t)).First(&row).Error
	switch {
	case errors.Is(err, gorm.ErrRecordNotFound):
		row = TypePrice{
			ID:          s.node.Generate().String(),
			CreatedAt:   time.Now(),
			UpdatedAt:   time.Now(),
			LicenseType: string(t),
			Price:       price,
		}
		if err := s.db.WithContext(ctx).Create(&row).Error; err != nil {
			zap.L().Error("failed to create license type price", zap.Error(err))
			c.Error(errutil.Internal("failed to save license type price"))
			return
		}
	case err != nil:
		zap.L().Error("failed to load license type price", zap.Error(err))
		c.Error(errutil.Internal("failed to save license type price"))
		return
	default:
		row.Price = price
		row.UpdatedAt = time.Now()
		if err := s.db.WithContext(ctx).Save(&row).Error; err != nil {
			zap.L().Error("failed to update license type price", zap.Error(err))
			c.Error(errutil.Internal("failed to save license type price"))
			return
		}
	}

	zap.L().Info("license type price updated",
		zap.String("license_type", string(t)),
		zap.Int("price", price),
	)

	c.JSON(http.StatusOK, priceView{
		Type:         t,
		Name:         TypeName(t),
		Price:        price,
		DefaultPrice: Types[t].Price,
		IsOverride:   true,
	})
}
