package settings

import (
	"bytes"
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"sportflow-license/pkg/config"
	"sportflow-license/pkg/errutil"

	"github.com/gin-gonic/gin"
	"github.com/minio/minio-go/v7"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

// maxLogoBytes caps the decoded logo size at 2 MB.
const maxLogoBytes = 2 * 1024 * 1024

var allowedLogoTypes = map[string]string{
	"image/png":     ".png",
	"image/jpeg":    ".jpg",
	"image/svg+xml": ".svg",
	"image/webp":    ".webp",
}

type Service struct {
	db     *gorm.DB
	config *config.Config
	minio  *minio.Client
}

type ServiceParams struct {
	fx.In
	DB     *gorm.DB
	Config *config.Config
	Minio  *minio.Client `optional:"true"`
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:     p.DB,
		config: p.Config,
		minio:  p.Minio,
	}
}

// Load returns the settings row, creating an empty one on first access.
func Load(db *gorm.DB) (CompanySettings, error) {
	var s CompanySettings
	err := db.Where("id = ?", settingsID).First(&s).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		s = CompanySettings{ID: settingsID, CreatedAt: time.Now(), UpdatedAt: time.Now()}
		if err := db.Create(&s).Error; err != nil {
			return CompanySettings{}, err
		}
		return s, nil
	}
	return s, err
}

// EffectiveVatRate resolves the VAT rate used on invoices: the stored
// settings value when set, the configured default otherwise.
func EffectiveVatRate(db *gorm.DB, cfg *config.Config) int {
	s, err := Load(db)
	if err == nil && s.VatRate != nil {
		return *s.VatRate
	}
	return cfg.Invoice.VatRate
}

// Get returns the company settings.
func (s *Service) Get(c *gin.Context) {
	settings, err := Load(s.db.WithContext(c.Request.Context()))
	if err != nil {
		zap.L().Error("failed to load settings", zap.Error(err))
		c.Error(errutil.Internal("failed to load settings"))
		return
	}
	c.JSON(http.StatusOK, settings)
}

type updateSettingsRequest struct {
	CompanyName  *string `json:"companyName"`
	OrgNumber    *string `json:"orgNumber"`
	Address      *string `json:"address"`
	PostalCode   *string `json:"postalCode"`
	City         *string `json:"city"`
	Email        *string `json:"email"`
	Phone        *string `json:"phone"`
	BankAccount  *string `json:"bankAccount"`
	VatRate      *int    `json:"vatRate"`
	InvoiceNotes *string `json:"invoiceNotes"`
}

// Update applies a partial update to the settings row.
func (s *Service) Update(c *gin.Context) {
	var req updateSettingsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("invalid request body"))
		return
	}

	if req.VatRate != nil && (*req.VatRate < 0 || *req.VatRate > 100) {
		c.Error(errutil.BadRequest("vatRate must be between 0 and 100"))
		return
	}

	db := s.db.WithContext(c.Request.Context())
	settings, err := Load(db)
	if err != nil {
		zap.L().Error("failed to load settings", zap.Error(err))
		c.Error(errutil.Internal("failed to update settings"))
		return
	}

	if req.CompanyName != nil {
		settings.CompanyName = *req.CompanyName
	}
	if req.OrgNumber != nil {
		settings.OrgNumber = *req.OrgNumber
	}
	if req.Address != nil {
		settings.Address = *req.Address
	}
	if req.PostalCode != nil {
		settings.PostalCode = *req.PostalCode
	}
	if req.City != nil {
		settings.City = *req.City
	}
	if req.Email != nil {
		settings.Email = *req.Email
	}
	if req.Phone != nil {
		settings.Phone = *req.Phone
	}
	if req.BankAccount != nil {
		settings.BankAccount = *req.BankAccount
	}
	if req.VatRate != nil {
		settings.VatRate = req.VatRate
	}
	if req.InvoiceNotes != nil {
		settings.InvoiceNotes = *req.InvoiceNotes
	}
	settings.UpdatedAt = time.Now()

	if err := db.Save(&settings).Error; err != nil {
		zap.L().Error("failed to save settings", zap.Error(err))
		c.Error(errutil.Internal("failed to update settings"))
		return
	}

	c.JSON(http.StatusOK, settings)
}

type uploadLogoRequest struct {
	FileName string `json:"fileName"`
	// Data is a data URL ("data:image/png;base64,...") or raw base64 with
	// ContentType set.
	Data        string `json:"data" binding:"required"`
	ContentType string `json:"contentType"`
}

// UploadLogo stores a new company logo. The image lands in the object store
// when one is configured, otherwise it is kept inline as a data URL.
func (s *Service) UploadLogo(c *gin.Context) {
	var req uploadLogoRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("data is required"))
		return
	}

	contentType, raw, err := decodeLogo(req)
	if err != nil {
		c.Error(err)
		return
	}

	ext, ok := allowedLogoTypes[contentType]
	if !ok {
		c.Error(errutil.BadRequest("unsupported image type"))
		return
	}
	if len(raw) > maxLogoBytes {
		c.Error(errutil.BadRequest("logo must be 2MB or smaller"))
		return
	}

	db := s.db.WithContext(c.Request.Context())
	settings, err := Load(db)
	if err != nil {
		zap.L().Error("failed to load settings", zap.Error(err))
		c.Error(errutil.Internal("failed to upload logo"))
		return
	}

	logoURL := fmt.Sprintf("data:%s;base64,%s", contentType, base64.StdEncoding.EncodeToString(raw))
	if s.minio != nil {
		objectName := fmt.Sprintf("logo/company-logo%s", ext)
		_, err := s.minio.PutObject(c.Request.Context(), s.config.Minio.BucketName, objectName,
			bytes.NewReader(raw), int64(len(raw)), minio.PutObjectOptions{ContentType: contentType})
		if err != nil {
			zap.L().Error("failed to store logo", zap.Error(err))
			c.Error(errutil.Internal("failed to upload logo"))
			return
		}
		scheme := "http"
		if s.config.Minio.Secure {
			scheme = "https"
		}
		logoURL = fmt.Sprintf("%s://%s/%s/%s", scheme, s.config.Minio.Endpoint, s.config.Minio.BucketName, objectName)
	}

	settings.LogoURL = logoURL
	settings.UpdatedAt = time.Now()
	if err := db.Save(&settings).Error; err != nil {
		zap.L().Error("failed to save logo", zap.Error(err))
		c.Error(errutil.Internal("failed to upload logo"))
		return
	}

	zap.L().Info("company logo updated",
		zap.String("content_type", contentType),
		zap.Int("size_bytes", len(raw)),
	)

	c.JSON(http.StatusOK, gin.H{"logoUrl": settings.LogoURL})
}

// DeleteLogo removes the stored logo reference.
func (s *Service) DeleteLogo(c *gin.Context) {
	db := s.db.WithContext(c.Request.Context())
	settings, err := Load(db)
	if err != nil {
		zap.L().Error("failed to load settings", zap.Error(err))
		c.Error(errutil.Internal("failed to delete logo"))
		return
	}

	settings.LogoURL = ""
	settings.UpdatedAt = time.Now()
	if err := db.Save(&settings).Error; err != nil {
		zap.L().Error("failed to delete logo", zap.Error(err))
		c.Error(errutil.Internal("failed to delete logo"))
		return
	}

	c.JSON(http.StatusOK, gin.H{"deleted": true})
}

func decodeLogo(req uploadLogoRequest) (string, []byte, error) {
	data := req.Data
	contentType := req.ContentType

	if strings.HasPrefix(data, "data:") {
		rest := strings.TrimPrefix(data, "data:")
		sep := strings.Index(rest, ";base64,")
		if sep < 0 {
			return "", nil, errutil.BadRequest("invalid data URL")
		}
		contentType = rest[:sep]
		data = rest[sep+len(";base64,"):]
	}

	if contentType == "" {
		return "", nil, errutil.BadRequest("contentType is required")
	}

	raw, err := base64.StdEncoding.DecodeString(data)
	if err != nil {
		return "", nil, errutil.BadRequest("invalid base64 data")
	}

	// sniff binary formats; svg is text and has no magic bytes
	if contentType != "image/svg+xml" {
		if detected := http.DetectContentType(raw); detected != contentType {
			return "", nil, errutil.BadRequest("image data does not match declared type")
		}
	}

	return contentType, raw, nil
}
