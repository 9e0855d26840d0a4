package admin

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/pquerna/otp/totp"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"sportflow-license/pkg/config"
	"sportflow-license/pkg/middleware"
	"sportflow-license/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
	gin.SetMode(gin.TestMode)
}

// fakeSessionStore keeps sessions and pending states in memory.
type fakeSessionStore struct {
	sessions map[string]string
	pending  map[string]string
	n        int
}

func newFakeSessionStore() *fakeSessionStore {
	return &fakeSessionStore{
		sessions: map[string]string{},
		pending:  map[string]string{},
	}
}

func (f *fakeSessionStore) next() string {
	f.n++
	return fmt.Sprintf("token-%d", f.n)
}

func (f *fakeSessionStore) Create(_ context.Context, adminID string) (string, error) {
	token := f.next()
	f.sessions[token] = adminID
	return token, nil
}

func (f *fakeSessionStore) ValidateSession(_ context.Context, token string) bool {
	_, ok := f.sessions[token]
	return ok
}

func (f *fakeSessionStore) Delete(_ context.Context, token string) error {
	delete(f.sessions, token)
	return nil
}

func (f *fakeSessionStore) CreatePending(_ context.Context, kind, adminID string, _ time.Duration) (string, error) {
	token := f.next()
	f.pending[kind+":"+token] = adminID
	return token, nil
}

func (f *fakeSessionStore) GetPending(_ context.Context, kind, token string) (string, error) {
	adminID, ok := f.pending[kind+":"+token]
	if !ok {
		return "", gorm.ErrRecordNotFound
	}
	return adminID, nil
}

func (f *fakeSessionStore) DeletePending(_ context.Context, kind, token string) error {
	delete(f.pending, kind+":"+token)
	return nil
}

func newTestService(t *testing.T) (*Service, *gorm.DB, *fakeSessionStore) {
	t.Helper()
	db := testutil.NewTestDB(t, &User{})
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Admin.Password = "super-secret"
	cfg.Admin.Email = "admin@sportflow-license.local"

	sessions := newFakeSessionStore()
	return &Service{db: db, node: node, config: cfg, sessions: sessions}, db, sessions
}

func newTestRouter(s *Service) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Error())
	r.POST("/api/admin/login", s.Login)
	r.GET("/api/admin/2fa/setup", s.Setup2FA)
	r.POST("/api/admin/2fa/verify", s.Verify2FA)
	r.POST("/api/admin/2fa/validate", s.Validate2FA)
	r.POST("/api/admin/logout", s.Logout)
	return r
}

func postJSON(t *testing.T, r http.Handler, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	for _, ck := range cookies {
		req.AddCookie(ck)
	}
	r.ServeHTTP(w, req)
	return w
}

func cookieByName(t *testing.T, w *httptest.ResponseRecorder, name string) *http.Cookie {
	t.Helper()
	for _, ck := range w.Result().Cookies() {
		if ck.Name == name {
			return ck
		}
	}
	t.Fatalf("cookie %q not set", name)
	return nil
}

func decode(t *testing.T, w *httptest.ResponseRecorder) map[string]any {
	t.Helper()
	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	return resp
}

func TestLoginWrongPassword(t *testing.T) {
	s, _, _ := newTestService(t)
	r := newTestRouter(s)

	w := postJSON(t, r, "/api/admin/login", `{"password":"wrong"}`)
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Equal(t, "Feil passord", decode(t, w)["error"])
}

func TestLoginWithoutConfiguredPassword(t *testing.T) {
	s, _, _ := newTestService(t)
	s.config.Admin.Password = ""
	r := newTestRouter(s)

	w := postJSON(t, r, "/api/admin/login", `{"password":"anything"}`)
	require.Equal(t, http.StatusInternalServerError, w.Code)
}

func TestLoginFirstTimeRequiresSetup(t *testing.T) {
	s, db, _ := newTestService(t)
	r := newTestRouter(s)

	w := postJSON(t, r, "/api/admin/login", `{"password":"super-secret"}`)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode(t, w)
	require.Equal(t, true, resp["requiresTwoFactor"])
	require.Equal(t, true, resp["setupRequired"])
	require.Equal(t, "2FA må aktiveres for å sikre kontoen", resp["message"])

	ck := cookieByName(t, w, PendingSetupCookie)
	require.True(t, ck.HttpOnly)
	require.NotEmpty(t, ck.Value)

	// no session cookie before TOTP verification
	for _, c := range w.Result().Cookies() {
		require.NotEqual(t, middleware.SessionCookie, c.Name)
	}

	// super admin created on first login
	var user User
	require.NoError(t, db.Where("email = ?", "admin@sportflow-license.local").First(&user).Error)
	require.NotNil(t, user.LastLoginAt)
}

func TestLoginWithVerified2FARequiresCode(t *testing.T) {
	s, db, _ := newTestService(t)
	r := newTestRouter(s)

	require.NoError(t, db.Create(&User{
		ID: "admin-1", Email: "admin@sportflow-license.local",
		TOTPSecret: "SECRET", TOTPEnabled: true, TOTPVerified: true,
	}).Error)

	w := postJSON(t, r, "/api/admin/login", `{"password":"super-secret"}`)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode(t, w)
	require.Equal(t, true, resp["requiresTwoFactor"])
	require.Equal(t, false, resp["setupRequired"])
	require.Equal(t, "Skriv inn kode fra Google Authenticator", resp["message"])

	cookieByName(t, w, PendingLoginCookie)
}

func TestSetupVerifyFullEnrollment(t *testing.T) {
	s, db, _ := newTestService(t)
	r := newTestRouter(s)

	login := postJSON(t, r, "/api/admin/login", `{"password":"super-secret"}`)
	pending := cookieByName(t, login, PendingSetupCookie)

	// fetch enrollment QR
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/admin/2fa/setup", nil)
	req.AddCookie(pending)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	resp := decode(t, w)
	secret := resp["secret"].(string)
	require.NotEmpty(t, secret)
	require.True(t, strings.HasPrefix(resp["qrCode"].(string), "data:image/png;base64,"))
	require.Contains(t, resp["otpauthUrl"].(string), "otpauth://totp/")

	// a second setup call reuses the unverified secret
	w = httptest.NewRecorder()
	req = httptest.NewRequest(http.MethodGet, "/api/admin/2fa/setup", nil)
	req.AddCookie(pending)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)
	require.Equal(t, secret, decode(t, w)["secret"])

	code, err := totp.GenerateCode(secret, time.Now())
	require.NoError(t, err)

	verify := postJSON(t, r, "/api/admin/2fa/verify", fmt.Sprintf(`{"code":%q}`, code), pending)
	require.Equal(t, http.StatusOK, verify.Code)
	require.Equal(t, "2FA er nå aktivert!", decode(t, verify)["message"])

	session := cookieByName(t, verify, middleware.SessionCookie)
	require.True(t, session.HttpOnly)
	require.NotEmpty(t, session.Value)

	var user User
	require.NoError(t, db.Where("email = ?", "admin@sportflow-license.local").First(&user).Error)
	require.True(t, user.TOTPEnabled)
	require.True(t, user.TOTPVerified)
}

func TestVerifyRejectsWrongCode(t *testing.T) {
	s, _, _ := newTestService(t)
	r := newTestRouter(s)

	login := postJSON(t, r, "/api/admin/login", `{"password":"super-secret"}`)
	pending := cookieByName(t, login, PendingSetupCookie)

	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodGet, "/api/admin/2fa/setup", nil)
	req.AddCookie(pending)
	r.ServeHTTP(w, req)
	require.Equal(t, http.StatusOK, w.Code)

	verify := postJSON(t, r, "/api/admin/2fa/verify", `{"code":"000000"}`, pending)
	require.Equal(t, http.StatusUnauthorized, verify.Code)

	for _, c := range verify.Result().Cookies() {
		require.NotEqual(t, middleware.SessionCookie, c.Name)
	}
}

func TestVerifyRejectsMalformedCode(t *testing.T) {
	s, _, _ := newTestService(t)
	r := newTestRouter(s)

	w := postJSON(t, r, "/api/admin/2fa/verify", `{"code":"12345"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Equal(t, "Kode må være 6 siffer", decode(t, w)["error"])
}

func TestValidateFullLogin(t *testing.T) {
	s, db, sessions := newTestService(t)
	r := newTestRouter(s)

	key, err := totp.Generate(totp.GenerateOpts{Issuer: "SportFlow License", AccountName: "admin@sportflow-license.local"})
	require.NoError(t, err)
	require.NoError(t, db.Create(&User{
		ID: "admin-1", Email: "admin@sportflow-license.local",
		TOTPSecret: key.Secret(), TOTPEnabled: true, TOTPVerified: true,
	}).Error)

	login := postJSON(t, r, "/api/admin/login", `{"password":"super-secret"}`)
	pending := cookieByName(t, login, PendingLoginCookie)

	code, err := totp.GenerateCode(key.Secret(), time.Now())
	require.NoError(t, err)

	validate := postJSON(t, r, "/api/admin/2fa/validate", fmt.Sprintf(`{"code":%q}`, code), pending)
	require.Equal(t, http.StatusOK, validate.Code)

	session := cookieByName(t, validate, middleware.SessionCookie)
	require.True(t, sessions.ValidateSession(t.Context(), session.Value))

	// pending state is consumed
	_, err = sessions.GetPending(t.Context(), pendingLogin, pending.Value)
	require.Error(t, err)
}

func TestValidateWithoutPendingCookie(t *testing.T) {
	s, _, _ := newTestService(t)
	r := newTestRouter(s)

	w := postJSON(t, r, "/api/admin/2fa/validate", `{"code":"123456"}`)
	require.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestLogoutDropsSession(t *testing.T) {
	s, _, sessions := newTestService(t)
	r := newTestRouter(s)

	token, err := sessions.Create(t.Context(), "admin-1")
	require.NoError(t, err)

	w := postJSON(t, r, "/api/admin/logout", `{}`, &http.Cookie{Name: middleware.SessionCookie, Value: token})
	require.Equal(t, http.StatusOK, w.Code)
	require.False(t, sessions.ValidateSession(t.Context(), token))
}
