package settings

import (
	"bytes"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
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

var pngHeader = []byte{0x89, 'P', 'N', 'G', '\r', '\n', 0x1a, '\n', 0, 0, 0, 13, 'I', 'H', 'D', 'R'}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := testutil.NewTestDB(t, &CompanySettings{})
	cfg := &config.Config{}
	cfg.Invoice.VatRate = 25
	return &Service{db: db, config: cfg}, db
}

func newTestRouter(s *Service) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Error())
	r.GET("/api/settings", s.Get)
	r.POST("/api/settings", s.Update)
	r.POST("/api/settings/logo", s.UploadLogo)
	r.DELETE("/api/settings/logo", s.DeleteLogo)
	return r
}

func postJSON(t *testing.T, r http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestGetCreatesSingletonRow(t *testing.T) {
	s, db := newTestService(t)
	r := newTestRouter(s)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/settings", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var count int64
	require.NoError(t, db.Model(&CompanySettings{}).Count(&count).Error)
	require.Equal(t, int64(1), count)

	// a second read reuses the same row
	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/settings", nil))
	require.Equal(t, http.StatusOK, w.Code)
	require.NoError(t, db.Model(&CompanySettings{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestUpdateSettingsPartial(t *testing.T) {
	s, db := newTestService(t)
	r := newTestRouter(s)

	w := postJSON(t, r, "/api/settings", `{"companyName":"SportFlow AS","orgNumber":"987654321","vatRate":15}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = postJSON(t, r, "/api/settings", `{"city":"Oslo"}`)
	require.Equal(t, http.StatusOK, w.Code)

	stored, err := Load(db)
	require.NoError(t, err)
	require.Equal(t, "SportFlow AS", stored.CompanyName)
	require.Equal(t, "Oslo", stored.City)
	require.NotNil(t, stored.VatRate)
	require.Equal(t, 15, *stored.VatRate)
}

func TestUpdateSettingsRejectsBadVatRate(t *testing.T) {
	s, _ := newTestService(t)
	r := newTestRouter(s)

	w := postJSON(t, r, "/api/settings", `{"vatRate":101}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestEffectiveVatRateFallsBackToConfig(t *testing.T) {
	s, db := newTestService(t)

	require.Equal(t, 25, EffectiveVatRate(db, s.config))

	rate := 15
	stored, err := Load(db)
	require.NoError(t, err)
	stored.VatRate = &rate
	require.NoError(t, db.Save(&stored).Error)

	require.Equal(t, 15, EffectiveVatRate(db, s.config))
}

func TestUploadLogoDataURL(t *testing.T) {
	s, db := newTestService(t)
	r := newTestRouter(s)

	encoded := base64.StdEncoding.EncodeToString(pngHeader)
	body := fmt.Sprintf(`{"fileName":"logo.png","data":"data:image/png;base64,%s"}`, encoded)

	w := postJSON(t, r, "/api/settings/logo", body)
	require.Equal(t, http.StatusOK, w.Code)

	stored, err := Load(db)
	require.NoError(t, err)
	require.True(t, strings.HasPrefix(stored.LogoURL, "data:image/png;base64,"))
}

func TestUploadLogoSVG(t *testing.T) {
	s, _ := newTestService(t)
	r := newTestRouter(s)

	svg := base64.StdEncoding.EncodeToString([]byte(`<svg xmlns="http://www.w3.org/2000/svg"></svg>`))
	body := fmt.Sprintf(`{"fileName":"logo.svg","data":"%s","contentType":"image/svg+xml"}`, svg)

	w := postJSON(t, r, "/api/settings/logo", body)
	require.Equal(t, http.StatusOK, w.Code)
}

func TestUploadLogoRejectsUnsupportedType(t *testing.T) {
	s, _ := newTestService(t)
	r := newTestRouter(s)

	gif := base64.StdEncoding.EncodeToString([]byte("GIF89a...."))
	body := fmt.Sprintf(`{"fileName":"logo.gif","data":"%s","contentType":"image/gif"}`, gif)

	w := postJSON(t, r, "/api/settings/logo", body)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadLogoRejectsMismatchedType(t *testing.T) {
	s, _ := newTestService(t)
	r := newTestRouter(s)

	// declared png, actually plain text
	text := base64.StdEncoding.EncodeToString([]byte("not an image at all"))
	body := fmt.Sprintf(`{"fileName":"logo.png","data":"%s","contentType":"image/png"}`, text)

	w := postJSON(t, r, "/api/settings/logo", body)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUploadLogoRejectsOversized(t *testing.T) {
	s, _ := newTestService(t)
	r := newTestRouter(s)

	big := make([]byte, maxLogoBytes+1)
	copy(big, pngHeader)
	body := fmt.Sprintf(`{"fileName":"logo.png","data":"%s","contentType":"image/png"}`, base64.StdEncoding.EncodeToString(big))

	w := postJSON(t, r, "/api/settings/logo", body)
	require.Equal(t, http.StatusBadRequest, w.Code)

	var resp map[string]any
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Equal(t, "logo must be 2MB or smaller", resp["error"])
}

func TestDeleteLogo(t *testing.T) {
	s, db := newTestService(t)
	r := newTestRouter(s)

	stored, err := Load(db)
	require.NoError(t, err)
	stored.LogoURL = "data:image/png;base64,xxx"
	require.NoError(t, db.Save(&stored).Error)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/settings/logo", nil))
	require.Equal(t, http.StatusOK, w.Code)

	stored, err = Load(db)
	require.NoError(t, err)
	require.Empty(t, stored.LogoURL)
}
