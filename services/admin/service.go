package admin

import (
	"encoding/base64"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"time"

	"sportflow-license/pkg/config"
	"sportflow-license/pkg/errutil"
	"sportflow-license/pkg/middleware"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/pquerna/otp/totp"
	qrcode "github.com/skip2/go-qrcode"
	"go.uber.org/fx"
	"go.uber.org/zap"
	"gorm.io/gorm"
)

const (
	// PendingSetupCookie marks a passed password check awaiting 2FA
	// enrollment.
	PendingSetupCookie = "pending-2fa-setup"
	// PendingLoginCookie marks a passed password check awaiting the TOTP
	// code.
	PendingLoginCookie = "pending-2fa-login"

	totpIssuer = "SportFlow License"
)

var codePattern = regexp.MustCompile(`^\d{6}$`)

type Service struct {
	db       *gorm.DB
	node     *snowflake.Node
	config   *config.Config
	sessions SessionStore
}

type ServiceParams struct {
	fx.In
	DB       *gorm.DB
	Node     *snowflake.Node
	Config   *config.Config
	Sessions SessionStore
}

func NewService(p ServiceParams) *Service {
	return &Service{
		db:       p.DB,
		node:     p.Node,
		config:   p.Config,
		sessions: p.Sessions,
	}
}

func (s *Service) secureCookies() bool {
	return s.config.AppEnv == "production"
}

func (s *Service) setCookie(c *gin.Context, name, value string, ttl time.Duration) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, value, int(ttl.Seconds()), "/", "", s.secureCookies(), true)
}

func (s *Service) clearCookie(c *gin.Context, name string) {
	c.SetSameSite(http.SameSiteLaxMode)
	c.SetCookie(name, "", -1, "/", "", s.secureCookies(), true)
}

// findOrCreateAdmin returns the super admin row, creating it on first login.
func (s *Service) findOrCreateAdmin(c *gin.Context) (User, error) {
	ctx := c.Request.Context()

	var user User
	err := s.db.WithContext(ctx).Where("email = ?", s.config.Admin.Email).First(&user).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		user = User{
			ID:        s.node.Generate().String(),
			CreatedAt: time.Now(),
			UpdatedAt: time.Now(),
			Email:     s.config.Admin.Email,
		}
		if err := s.db.WithContext(ctx).Create(&user).Error; err != nil {
			return User{}, err
		}
		return user, nil
	}
	return user, err
}

type loginRequest struct {
	Password string `json:"password" binding:"required"`
}

// Login is the password step of the 2FA flow. A correct password never
// yields a session directly; it only opens a short-lived pending state.
func (s *Service) Login(c *gin.Context) {
	var req loginRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.Error(errutil.BadRequest("password is required"))
		return
	}

	if s.config.Admin.Password == "" && s.config.Admin.PasswordHash == "" {
		zap.L().Error("admin login attempted without a configured password")
		c.Error(errutil.Internal("admin password is not configured"))
		return
	}

	if !middleware.SecretMatches(s.config, req.Password) {
		c.Error(errutil.Unauthorized("Feil passord"))
		return
	}

	user, err := s.findOrCreateAdmin(c)
	if err != nil {
		zap.L().Error("failed to load admin user", zap.Error(err))
		c.Error(errutil.Internal("failed to log in"))
		return
	}

	now := time.Now()
	if err := s.db.WithContext(c.Request.Context()).Model(&user).
		Updates(map[string]any{"last_login_at": now, "updated_at": now}).Error; err != nil {
		zap.L().Error("failed to update last login", zap.Error(err))
		c.Error(errutil.Internal("failed to log in"))
		return
	}

	ctx := c.Request.Context()
	if user.TOTPEnabled && user.TOTPVerified {
		token, err := s.sessions.CreatePending(ctx, pendingLogin, user.ID, PendingLoginTTL)
		if err != nil {
			zap.L().Error("failed to create pending login", zap.Error(err))
			c.Error(errutil.Internal("failed to log in"))
			return
		}
		s.setCookie(c, PendingLoginCookie, token, PendingLoginTTL)
		c.JSON(http.StatusOK, gin.H{
			"requiresTwoFactor": true,
			"setupRequired":     false,
			"message":           "Skriv inn kode fra Google Authenticator",
		})
		return
	}

	token, err := s.sessions.CreatePending(ctx, pendingSetup, user.ID, PendingSetupTTL)
	if err != nil {
		zap.L().Error("failed to create pending setup", zap.Error(err))
		c.Error(errutil.Internal("failed to log in"))
		return
	}
	s.setCookie(c, PendingSetupCookie, token, PendingSetupTTL)
	c.JSON(http.StatusOK, gin.H{
		"requiresTwoFactor": true,
		"setupRequired":     true,
		"message":           "2FA må aktiveres for å sikre kontoen",
	})
}

// pendingUser resolves the admin behind a pending cookie. An expired or
// missing pending state forces a restart from the password step.
func (s *Service) pendingUser(c *gin.Context, kind, cookieName string) (User, string, error) {
	token, err := c.Cookie(cookieName)
	if err != nil || token == "" {
		return User{}, "", errutil.Unauthorized("Økten har utløpt. Logg inn på nytt.")
	}

	adminID, err := s.sessions.GetPending(c.Request.Context(), kind, token)
	if err != nil {
		return User{}, "", errutil.Unauthorized("Økten har utløpt. Logg inn på nytt.")
	}

	var user User
	if err := s.db.WithContext(c.Request.Context()).Where("id = ?", adminID).First(&user).Error; err != nil {
		return User{}, "", errutil.Unauthorized("Økten har utløpt. Logg inn på nytt.")
	}
	return user, token, nil
}

// Setup2FA starts or resumes TOTP enrollment. An unverified secret is
// reused so a page reload does not invalidate an authenticator entry the
// admin already scanned.
func (s *Service) Setup2FA(c *gin.Context) {
	user, _, err := s.pendingUser(c, pendingSetup, PendingSetupCookie)
	if err != nil {
		c.Error(err)
		return
	}

	otpauthURL := ""
	if user.TOTPSecret != "" && !user.TOTPVerified {
		otpauthURL = fmt.Sprintf("otpauth://totp/%s:%s?secret=%s&issuer=%s",
			totpIssuer, user.Email, user.TOTPSecret, totpIssuer)
	} else {
		key, err := totp.Generate(totp.GenerateOpts{
			Issuer:      totpIssuer,
			AccountName: user.Email,
		})
		if err != nil {
			zap.L().Error("failed to generate totp secret", zap.Error(err))
			c.Error(errutil.Internal("failed to set up 2FA"))
			return
		}

		user.TOTPSecret = key.Secret()
		user.TOTPEnabled = false
		user.TOTPVerified = false
		user.UpdatedAt = time.Now()
		if err := s.db.WithContext(c.Request.Context()).Save(&user).Error; err != nil {
			zap.L().Error("failed to store totp secret", zap.Error(err))
			c.Error(errutil.Internal("failed to set up 2FA"))
			return
		}
		otpauthURL = key.URL()
	}

	png, err := qrcode.Encode(otpauthURL, qrcode.Medium, 256)
	if err != nil {
		zap.L().Error("failed to render qr code", zap.Error(err))
		c.Error(errutil.Internal("failed to set up 2FA"))
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"secret":     user.TOTPSecret,
		"otpauthUrl": otpauthURL,
		"qrCode":     "data:image/png;base64," + base64.StdEncoding.EncodeToString(png),
	})
}

type codeRequest struct {
	Code string `json:"code" binding:"required"`
}

// Verify2FA confirms enrollment with the first TOTP code and issues the full
// session.
func (s *Service) Verify2FA(c *gin.Context) {
	var req codeRequest
	if err := c.ShouldBindJSON(&req); err != nil || !codePattern.MatchString(req.Code) {
		c.Error(errutil.BadRequest("Kode må være 6 siffer"))
		return
	}

	user, pendingToken, err := s.pendingUser(c, pendingSetup, PendingSetupCookie)
	if err != nil {
		c.Error(err)
		return
	}
	if user.TOTPSecret == "" {
		c.Error(errutil.BadRequest("2FA må aktiveres for å sikre kontoen"))
		return
	}

	if !totp.Validate(req.Code, user.TOTPSecret) {
		c.Error(errutil.Unauthorized("Ugyldig kode"))
		return
	}

	ctx := c.Request.Context()
	now := time.Now()
	err = s.db.WithContext(ctx).Model(&user).Updates(map[string]any{
		"totp_enabled":  true,
		"totp_verified": true,
		"updated_at":    now,
	}).Error
	if err != nil {
		zap.L().Error("failed to enable 2fa", zap.Error(err))
		c.Error(errutil.Internal("failed to verify 2FA"))
		return
	}

	if err := s.issueSession(c, user.ID); err != nil {
		c.Error(errutil.Internal("failed to verify 2FA"))
		return
	}
	_ = s.sessions.DeletePending(ctx, pendingSetup, pendingToken)
	s.clearCookie(c, PendingSetupCookie)

	zap.L().Info("2fa enrollment completed", zap.String("admin_id", user.ID))

	c.JSON(http.StatusOK, gin.H{
		"success": true,
		"message": "2FA er nå aktivert!",
	})
}

// Validate2FA checks the TOTP code during a normal login and issues the full
// session.
func (s *Service) Validate2FA(c *gin.Context) {
	var req codeRequest
	if err := c.ShouldBindJSON(&req); err != nil || !codePattern.MatchString(req.Code) {
		c.Error(errutil.BadRequest("Kode må være 6 siffer"))
		return
	}

	user, pendingToken, err := s.pendingUser(c, pendingLogin, PendingLoginCookie)
	if err != nil {
		c.Error(err)
		return
	}

	if !totp.Validate(req.Code, user.TOTPSecret) {
		c.Error(errutil.Unauthorized("Ugyldig kode"))
		return
	}

	if err := s.issueSession(c, user.ID); err != nil {
		c.Error(errutil.Internal("failed to log in"))
		return
	}
	_ = s.sessions.DeletePending(c.Request.Context(), pendingLogin, pendingToken)
	s.clearCookie(c, PendingLoginCookie)

	zap.L().Info("admin logged in", zap.String("admin_id", user.ID))

	c.JSON(http.StatusOK, gin.H{"success": true})
}

// Logout drops the session.
func (s *Service) Logout(c *gin.Context) {
	if token, err := c.Cookie(middleware.SessionCookie); err == nil && token != "" {
		_ = s.sessions.Delete(c.Request.Context(), token)
	}
	s.clearCookie(c, middleware.SessionCookie)
	c.JSON(http.StatusOK, gin.H{"success": true})
}

func (s *Service) issueSession(c *gin.Context, adminID string) error {
	token, err := s.sessions.Create(c.Request.Context(), adminID)
	if err != nil {
		zap.L().Error("failed to create session", zap.Error(err))
		return err
	}
	s.setCookie(c, middleware.SessionCookie, token, SessionTTL)
	return nil
}
