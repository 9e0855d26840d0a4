package billing

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/bwmarrin/snowflake"
	"github.com/gin-gonic/gin"
	"github.com/hibiken/asynq"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"gorm.io/gorm"

	"sportflow-license/pkg/config"
	"sportflow-license/pkg/middleware"
	"sportflow-license/services/catalog"
	"sportflow-license/services/licensing"
	"sportflow-license/services/organization"
	"sportflow-license/services/settings"
	"sportflow-license/services/testutil"
)

func init() {
	zap.ReplaceGlobals(zap.NewNop())
	gin.SetMode(gin.TestMode)
}

type stubGenerator struct {
	n int
}

func (g *stubGenerator) NextInvoiceNumber(_ context.Context, prefix string, year int) (string, error) {
	g.n++
	return fmt.Sprintf("%s-%d-%04d", prefix, year, g.n), nil
}

func newTestService(t *testing.T) (*Service, *gorm.DB) {
	t.Helper()
	db := testutil.NewTestDB(t,
		&Invoice{},
		&organization.Organization{},
		&organization.OrganizationModule{},
		&catalog.Module{},
		&licensing.TypePrice{},
		&settings.CompanySettings{},
	)
	node, err := snowflake.NewNode(1)
	require.NoError(t, err)

	cfg := &config.Config{}
	cfg.Invoice.Prefix = "SF"
	cfg.Invoice.DueDays = 14
	cfg.Invoice.VatRate = 25

	return &Service{db: db, node: node, seq: &stubGenerator{}, config: cfg}, db
}

func newTestRouter(s *Service) *gin.Engine {
	r := gin.New()
	r.Use(middleware.Error())
	r.POST("/api/invoices/create", s.Create)
	r.GET("/api/invoices/list", s.List)
	r.POST("/api/invoices/generate", s.Generate)
	r.GET("/api/invoices/:id", s.Get)
	r.POST("/api/invoices/:id", s.Update)
	r.DELETE("/api/invoices/:id", s.Delete)
	return r
}

func seedOrg(t *testing.T, db *gorm.DB, org organization.Organization) organization.Organization {
	t.Helper()
	require.NoError(t, db.Create(&org).Error)
	return org
}

func standardOrg(id string) organization.Organization {
	return organization.Organization{
		ID:          id,
		Name:        "Oslo Tennisklubb",
		Slug:        "oslo-tennisklubb-" + id,
		LicenseKey:  "SFL-" + id,
		LicenseType: "standard",
		IsActive:    true,
		ExpiresAt:   time.Now().Add(365 * 24 * time.Hour),
	}
}

func postJSON(t *testing.T, r http.Handler, path, body string) *httptest.ResponseRecorder {
	t.Helper()
	w := httptest.NewRecorder()
	req := httptest.NewRequest(http.MethodPost, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	r.ServeHTTP(w, req)
	return w
}

func TestCreateInvoiceSnapshotsPricing(t *testing.T) {
	s, db := newTestService(t)
	r := newTestRouter(s)

	org := seedOrg(t, db, standardOrg("org-1"))
	price := 99
	require.NoError(t, db.Create(&catalog.Module{ID: "mod-1", Key: "payments", Name: "Betaling", IsActive: true, Price: &price}).Error)
	require.NoError(t, db.Create(&organization.OrganizationModule{ID: "ent-1", OrganizationID: org.ID, ModuleID: "mod-1", IsActive: true}).Error)

	w := postJSON(t, r, "/api/invoices/create", `{"organizationId":"org-1","periodYear":2026,"periodMonth":8}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var inv Invoice
	require.NoError(t, db.Where("organization_id = ?", org.ID).First(&inv).Error)
	require.Equal(t, "SF-2026-0001", inv.InvoiceNumber)
	require.Equal(t, 299, inv.BasePrice)
	require.Equal(t, 99, inv.ModulePrice)
	// 25% of 398, rounded
	require.Equal(t, 100, inv.VatAmount)
	require.Equal(t, 498, inv.Amount)
	require.Equal(t, StatusDraft, inv.Status)
	require.Equal(t, "Standard", inv.LicenseTypeName)
	require.WithinDuration(t, time.Now().Add(14*24*time.Hour), inv.DueDate, time.Minute)

	var snapshots []moduleSnapshot
	require.NoError(t, json.Unmarshal(inv.Modules, &snapshots))
	require.Len(t, snapshots, 1)
	require.Equal(t, "payments", snapshots[0].Key)
}

func TestCreateInvoiceUsesSettingsVatRate(t *testing.T) {
	s, db := newTestService(t)
	r := newTestRouter(s)

	seedOrg(t, db, standardOrg("org-1"))
	rate := 15
	require.NoError(t, db.Create(&settings.CompanySettings{ID: "company", VatRate: &rate}).Error)

	w := postJSON(t, r, "/api/invoices/create", `{"organizationId":"org-1","periodYear":2026,"periodMonth":8}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var inv Invoice
	require.NoError(t, db.First(&inv).Error)
	// 15% of 299, rounded
	require.Equal(t, 45, inv.VatAmount)
	require.Equal(t, 344, inv.Amount)
}

func TestCreateInvoiceUsesPriceOverride(t *testing.T) {
	s, db := newTestService(t)
	r := newTestRouter(s)

	seedOrg(t, db, standardOrg("org-1"))
	require.NoError(t, db.Create(&licensing.TypePrice{ID: "tp-1", LicenseType: "standard", Price: 400}).Error)

	w := postJSON(t, r, "/api/invoices/create", `{"organizationId":"org-1","periodYear":2026,"periodMonth":8}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var inv Invoice
	require.NoError(t, db.First(&inv).Error)
	require.Equal(t, 400, inv.BasePrice)
	require.Equal(t, 100, inv.VatAmount)
	require.Equal(t, 500, inv.Amount)
}

func TestCreateInvoiceDuplicatePeriod(t *testing.T) {
	s, db := newTestService(t)
	r := newTestRouter(s)

	seedOrg(t, db, standardOrg("org-1"))

	w := postJSON(t, r, "/api/invoices/create", `{"organizationId":"org-1","periodYear":2026,"periodMonth":8}`)
	require.Equal(t, http.StatusCreated, w.Code)

	w = postJSON(t, r, "/api/invoices/create", `{"organizationId":"org-1","periodYear":2026,"periodMonth":8}`)
	require.Equal(t, http.StatusConflict, w.Code)
}

func TestCreateInvoiceUnknownOrganization(t *testing.T) {
	s, _ := newTestService(t)
	r := newTestRouter(s)

	w := postJSON(t, r, "/api/invoices/create", `{"organizationId":"nope","periodYear":2026,"periodMonth":8}`)
	require.Equal(t, http.StatusNotFound, w.Code)
}

func TestListComputesOverdueAtRead(t *testing.T) {
	s, db := newTestService(t)
	r := newTestRouter(s)

	require.NoError(t, db.Create(&Invoice{
		ID: "inv-1", InvoiceNumber: "SF-2026-0001", OrganizationID: "org-1",
		PeriodYear: 2026, PeriodMonth: 6, Status: StatusSent,
		InvoiceDate: time.Now().Add(-30 * 24 * time.Hour),
		DueDate:     time.Now().Add(-10 * 24 * time.Hour),
	}).Error)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/api/invoices/list", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var resp struct {
		Invoices []struct {
			Status string `json:"status"`
		} `json:"invoices"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Invoices, 1)
	require.Equal(t, StatusOverdue, resp.Invoices[0].Status)

	// stored status is untouched
	var stored Invoice
	require.NoError(t, db.First(&stored).Error)
	require.Equal(t, StatusSent, stored.Status)
}

func TestUpdateStatusLifecycle(t *testing.T) {
	s, db := newTestService(t)
	r := newTestRouter(s)

	require.NoError(t, db.Create(&Invoice{
		ID: "inv-1", InvoiceNumber: "SF-2026-0001", OrganizationID: "org-1",
		PeriodYear: 2026, PeriodMonth: 8, Status: StatusDraft,
		InvoiceDate: time.Now(), DueDate: time.Now().Add(14 * 24 * time.Hour),
	}).Error)

	w := postJSON(t, r, "/api/invoices/inv-1", `{"status":"sent"}`)
	require.Equal(t, http.StatusOK, w.Code)

	w = postJSON(t, r, "/api/invoices/inv-1", `{"status":"paid"}`)
	require.Equal(t, http.StatusOK, w.Code)

	var inv Invoice
	require.NoError(t, db.First(&inv).Error)
	require.Equal(t, StatusPaid, inv.Status)
	require.NotNil(t, inv.PaidDate)
	firstPaid := *inv.PaidDate

	// re-applying paid keeps the original date
	w = postJSON(t, r, "/api/invoices/inv-1", `{"status":"paid"}`)
	require.Equal(t, http.StatusOK, w.Code)

	require.NoError(t, db.First(&inv).Error)
	require.WithinDuration(t, firstPaid, *inv.PaidDate, time.Second)
}

func TestUpdateRejectsUnknownStatus(t *testing.T) {
	s, db := newTestService(t)
	r := newTestRouter(s)

	require.NoError(t, db.Create(&Invoice{
		ID: "inv-1", InvoiceNumber: "SF-2026-0001", OrganizationID: "org-1",
		PeriodYear: 2026, PeriodMonth: 8, Status: StatusDraft,
		InvoiceDate: time.Now(), DueDate: time.Now(),
	}).Error)

	w := postJSON(t, r, "/api/invoices/inv-1", `{"status":"refunded"}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestUpdateEmptyPatch(t *testing.T) {
	s, db := newTestService(t)
	r := newTestRouter(s)

	require.NoError(t, db.Create(&Invoice{
		ID: "inv-1", InvoiceNumber: "SF-2026-0001", OrganizationID: "org-1",
		PeriodYear: 2026, PeriodMonth: 8, Status: StatusDraft,
		InvoiceDate: time.Now(), DueDate: time.Now(),
	}).Error)

	w := postJSON(t, r, "/api/invoices/inv-1", `{}`)
	require.Equal(t, http.StatusBadRequest, w.Code)
}

func TestDeleteOnlyDrafts(t *testing.T) {
	s, db := newTestService(t)
	r := newTestRouter(s)

	require.NoError(t, db.Create(&Invoice{
		ID: "inv-1", InvoiceNumber: "SF-2026-0001", OrganizationID: "org-1",
		PeriodYear: 2026, PeriodMonth: 8, Status: StatusSent,
		InvoiceDate: time.Now(), DueDate: time.Now(),
	}).Error)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/invoices/inv-1", nil))
	require.Equal(t, http.StatusBadRequest, w.Code)

	require.NoError(t, db.Model(&Invoice{}).Where("id = ?", "inv-1").Update("status", StatusDraft).Error)

	w = httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodDelete, "/api/invoices/inv-1", nil))
	require.Equal(t, http.StatusOK, w.Code)

	var count int64
	require.NoError(t, db.Model(&Invoice{}).Count(&count).Error)
	require.Zero(t, count)
}

func TestGenerateForPeriodSkipsNonBillable(t *testing.T) {
	s, db := newTestService(t)

	seedOrg(t, db, standardOrg("org-1"))

	free := standardOrg("org-2")
	free.LicenseType = "free"
	seedOrg(t, db, free)

	suspended := standardOrg("org-3")
	suspended.IsSuspended = true
	seedOrg(t, db, suspended)

	inactive := standardOrg("org-4")
	inactive.IsActive = false
	seedOrg(t, db, inactive)

	created, err := s.generateForPeriod(t.Context(), 2026, 8)
	require.NoError(t, err)
	require.Equal(t, 1, created)

	var invoices []Invoice
	require.NoError(t, db.Find(&invoices).Error)
	require.Len(t, invoices, 1)
	require.Equal(t, "org-1", invoices[0].OrganizationID)
}

func TestGenerateForPeriodIdempotent(t *testing.T) {
	s, db := newTestService(t)

	seedOrg(t, db, standardOrg("org-1"))

	created, err := s.generateForPeriod(t.Context(), 2026, 8)
	require.NoError(t, err)
	require.Equal(t, 1, created)

	created, err = s.generateForPeriod(t.Context(), 2026, 8)
	require.NoError(t, err)
	require.Zero(t, created)

	var count int64
	require.NoError(t, db.Model(&Invoice{}).Count(&count).Error)
	require.Equal(t, int64(1), count)
}

func TestHandleGenerateMonthly(t *testing.T) {
	s, db := newTestService(t)

	seedOrg(t, db, standardOrg("org-1"))

	task, err := NewGenerateMonthlyTask(2026, 8)
	require.NoError(t, err)
	require.NoError(t, s.HandleGenerateMonthly(t.Context(), task))

	var inv Invoice
	require.NoError(t, db.First(&inv).Error)
	require.Equal(t, 2026, inv.PeriodYear)
	require.Equal(t, 8, inv.PeriodMonth)
}

func TestNextRun(t *testing.T) {
	loc := time.UTC

	now := time.Date(2026, 8, 15, 10, 0, 0, 0, loc)
	require.Equal(t, time.Date(2026, 9, 1, 2, 0, 0, 0, loc), nextRun(now))

	// before 02:00 on the first, run the same day
	now = time.Date(2026, 8, 1, 1, 0, 0, 0, loc)
	require.Equal(t, time.Date(2026, 8, 1, 2, 0, 0, 0, loc), nextRun(now))

	// december rolls over to january
	now = time.Date(2026, 12, 20, 0, 0, 0, 0, loc)
	require.Equal(t, time.Date(2027, 1, 1, 2, 0, 0, 0, loc), nextRun(now))
}

type fakeEnqueuer struct {
	tasks []*asynq.Task
}

func (f *fakeEnqueuer) Enqueue(_ context.Context, task *asynq.Task, _ ...asynq.Option) (*asynq.TaskInfo, error) {
	f.tasks = append(f.tasks, task)
	return &asynq.TaskInfo{}, nil
}

func TestSchedulerEnqueuesCurrentPeriod(t *testing.T) {
	enq := &fakeEnqueuer{}
	s := NewScheduler(enq)

	now := time.Date(2026, 9, 1, 2, 0, 0, 0, time.UTC)
	require.NoError(t, s.enqueueCurrentPeriod(t.Context(), now))
	require.Len(t, enq.tasks, 1)
	require.Equal(t, TypeGenerateMonthly, enq.tasks[0].Type())

	var p generateMonthlyPayload
	require.NoError(t, json.Unmarshal(enq.tasks[0].Payload(), &p))
	require.Equal(t, 2026, p.PeriodYear)
	require.Equal(t, 9, p.PeriodMonth)
}
