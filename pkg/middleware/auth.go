package middleware

import (
	"context"
	"crypto/subtle"
	"net/http"

	"sportflow-license/pkg/config"

	"github.com/gin-gonic/gin"
	"go.uber.org/fx"
	"golang.org/x/crypto/bcrypt"
)

var Module = fx.Module("middleware",
	fx.Provide(ProvideAdminGuard),
)

const (
	// SessionCookie is the full admin session issued after TOTP verification.
	SessionCookie = "admin-auth"
	// AdminSecretHeader carries the shared admin secret for API callers.
	AdminSecretHeader = "x-admin-secret"
)

// SessionValidator reports whether a session token is live.
type SessionValidator interface {
	ValidateSession(ctx context.Context, token string) bool
}

// AdminAuth gates admin endpoints. A request passes when it carries either
// the configured shared secret in the x-admin-secret header or a valid
// admin-auth session cookie. An empty configured secret never matches.
func AdminAuth(cfg *config.Config, sessions SessionValidator) gin.HandlerFunc {
	return func(c *gin.Context) {
		if secretMatches(cfg, c.GetHeader(AdminSecretHeader)) {
			c.Next()
			return
		}

		if token, err := c.Cookie(SessionCookie); err == nil && token != "" {
			if sessions != nil && sessions.ValidateSession(c.Request.Context(), token) {
				c.Next()
				return
			}
		}

		c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Unauthorized"})
	}
}

func secretMatches(cfg *config.Config, candidate string) bool {
	if candidate == "" {
		return false
	}
	if cfg.Admin.PasswordHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(cfg.Admin.PasswordHash), []byte(candidate)) == nil
	}
	if cfg.Admin.Password == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(cfg.Admin.Password), []byte(candidate)) == 1
}

// SecretMatches exposes the shared-secret comparison for the login flow.
func SecretMatches(cfg *config.Config, candidate string) bool {
	return secretMatches(cfg, candidate)
}

// AdminGuard is the shared admin gate handler, distinct from gin.HandlerFunc
// so fx can inject it unambiguously.
type AdminGuard gin.HandlerFunc

type GuardParams struct {
	fx.In
	Config   *config.Config
	Sessions SessionValidator `optional:"true"`
}

func ProvideAdminGuard(p GuardParams) AdminGuard {
	return AdminGuard(AdminAuth(p.Config, p.Sessions))
}
