package catalog

import (
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

// bookingKey is the core product itself. It lives in the modules table for
// entitlement bookkeeping but is never offered as an add-on.
const bookingKey = "booking"

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

// List returns the sellable module catalog: standard modules first, then
// alphabetically, with the core product excluded.
func (s *Service) List(c *gin.Context) {
	var modules []Module
	err := s.db.WithContext(c.Request.Context()).
		Where("key <> ?", bookingKey).
		Order("is_standard desc").
		Order("name asc").
		Find(&modules).Error
	if err != nil {
		zap.L().Error("failed to list modules", zap.Error(err))
		c.Error(errutil.Internal("failed to list modules"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"modules": modules})
}

type createModuleRequest struct {
	Key         string   `json:"key" binding:"required"`
	Name        string   `json:"name" binding:"required"`
	Description string   `json:"description"`
	IsStandard  bool     `json:"isStandard"`
	Price       *float64 `json:"price"`
}

// Create adds a module to the catalog.
func (s *Service) Create(c *gin.Context) {
	var req createModuleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("key and name are required"))
		return
	}

	ctx := c.Request.Context()

	var count int64
	if err := s.db.WithContext(ctx).Model(&Module{}).Where("key = ?", req.Key).Count(&count).Error; err != nil {
		zap.L().Error("failed to check module key", zap.Error(err))
		c.Error(errutil.Internal("failed to create module"))
		return
	}
	if count > 0 {
		c.Error(errutil.Conflict("module key already exists"))
		return
	}

	module := Module{
		ID:          s.node.Generate().String(),
		CreatedAt:   time.Now(),
		UpdatedAt:   time.Now(),
		Key:         req.Key,
		Name:        req.Name,
		Description: req.Description,
		IsStandard:  req.IsStandard,
		IsActive:    true,
	}
	if req.Price != nil {
		price := int(math.Round(*req.Price))
		if price < 0 {
			c.Error(errutil.BadRequest("price cannot be negative"))
			return
		}
		module.Price = &price
	}

	if err := s.db.WithContext(ctx).Create(&module).Error; err != nil {
		zap.L().Error("failed to create module", zap.Error(err))
		c.Error(errutil.Internal("failed to create module"))
		return
	}

	zap.L().Info("module created",
		zap.String("module_id", module.ID),
		zap.String("key", module.Key),
	)

	c.JSON(http.StatusCreated, module)
}

type setModulePriceRequest struct {
	// Price is the monthly price in kroner. Explicit null clears the price
	// and makes the module bundled.
	Price *float64 `json:"price"`
}

// SetPrice updates a module's monthly price.
func (s *Service) SetPrice(c *gin.Context) {
	id := c.Param("id")

	var req setModulePriceRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("invalid request body"))
		return
	}

	ctx := c.Request.Context()

	var module Module
	if err := s.db.WithContext(ctx).Where("id = ?", id).First(&module).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			c.Error(errutil.NotFound("module not found"))
			return
		}
		zap.L().Error("failed to load module", zap.Error(err))
		c.Error(errutil.Internal("failed to update module price"))
		return
	}

	if req.Price == nil {
		module.Price = nil
	} else {
		price := int(math.Round(*req.Price))
		if price < 0 {
			c.Error(errutil.BadRequest("price cannot be negative"))
			return
		}
		module.Price = &price
	}
	module.UpdatedAt = time.Now()

	if err := s.db.WithContext(ctx).Save(&module).Error; err != nil {
		zap.L().Error("failed to update module price", zap.Error(err))
		c.Error(errutil.Internal("failed to update module price"))
		return
	}

	zap.L().Info("module price updated",
		zap.String("module_id", module.ID),
		zap.Any("price", module.Price),
	)

	c.JSON(http.StatusOK, module)
}
