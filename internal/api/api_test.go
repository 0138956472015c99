package api_test

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"mime/multipart"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xuri/excelize/v2"

	"github.com/UninstallAll/AIDAscraper/internal/api"
	"github.com/UninstallAll/AIDAscraper/internal/auth"
	"github.com/UninstallAll/AIDAscraper/internal/jobs"
	"github.com/UninstallAll/AIDAscraper/internal/models"
	"github.com/UninstallAll/AIDAscraper/internal/repository"
	"github.com/UninstallAll/AIDAscraper/internal/retry"
	"github.com/UninstallAll/AIDAscraper/internal/sites"
)

const executorToken = "exec-token"

func init() {
	gin.SetMode(gin.TestMode)
}

type stubDispatcher struct {
	err error
}

func (s *stubDispatcher) Dispatch(context.Context, *models.ScrapeJob, *models.SiteConfiguration) error {
	return s.err
}

func (s *stubDispatcher) Stop(context.Context, string) error { return nil }

type testAPI struct {
	siteRepo   *repository.MemorySiteRepository
	jobRepo    *repository.MemoryJobRepository
	dispatcher *stubDispatcher
}

func newTestAPI() *testAPI {
	return &testAPI{
		siteRepo:   repository.NewMemorySiteRepository(),
		jobRepo:    repository.NewMemoryJobRepository(),
		dispatcher: &stubDispatcher{},
	}
}

// router builds a router whose static session belongs to tenant.
func (a *testAPI) router(tenant string) *gin.Engine {
	siteService := sites.NewService(a.siteRepo, nil, nil, nil)
	manager := jobs.NewManager(a.jobRepo, siteService, jobs.Options{
		Dispatcher:    a.dispatcher,
		DispatchRetry: retry.Config{MaxAttempts: 1},
	})

	r := gin.New()
	api.RegisterRoutes(r, api.Deps{
		Sites:        siteService,
		Manager:      manager,
		Query:        jobs.NewQueryService(a.jobRepo, siteService, nil),
		Session:      auth.StaticSession(tenant),
		ExecutorAuth: auth.ExecutorToken(executorToken),
	})
	return r
}

func do(t *testing.T, r http.Handler, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()

	var reader *bytes.Reader
	switch b := body.(type) {
	case nil:
		reader = bytes.NewReader(nil)
	case string:
		reader = bytes.NewReader([]byte(b))
	default:
		raw, err := json.Marshal(b)
		require.NoError(t, err)
		reader = bytes.NewReader(raw)
	}

	req := httptest.NewRequest(method, path, reader)
	req.Header.Set("Content-Type", "application/json")
	if strings.HasPrefix(path, "/api/v1/executor") {
		req.Header.Set(auth.ExecutorTokenHeader, executorToken)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func decode[T any](t *testing.T, w *httptest.ResponseRecorder) T {
	t.Helper()
	var out T
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out), w.Body.String())
	return out
}

type errorResponse struct {
	Error struct {
		Kind    string   `json:"kind"`
		Message string   `json:"message"`
		Details []string `json:"details"`
	} `json:"error"`
	Job *models.ScrapeJob `json:"job"`
}

func validSiteBody() map[string]any {
	return map[string]any{
		"name":       "Example",
		"url":        "https://example.com",
		"start_urls": []string{"https://example.com/list"},
	}
}

func createSite(t *testing.T, r http.Handler) models.SiteConfiguration {
	t.Helper()
	w := do(t, r, http.MethodPost, "/api/v1/sites", validSiteBody())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[models.SiteConfiguration](t, w)
}

func createJob(t *testing.T, r http.Handler, siteID string) models.ScrapeJob {
	t.Helper()
	w := do(t, r, http.MethodPost, "/api/v1/jobs", map[string]string{"site_configuration_id": siteID})
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	return decode[models.ScrapeJob](t, w)
}

func TestSites_Create(t *testing.T) {
	r := newTestAPI().router("tenant-a")

	site := createSite(t, r)

	assert.NotEmpty(t, site.ID)
	assert.Equal(t, "tenant-a", site.TenantID)
	assert.True(t, site.IsActive)
}

func TestSites_CreateInvalid(t *testing.T) {
	r := newTestAPI().router("tenant-a")

	body := validSiteBody()
	body["requires_login"] = true
	body["login_url"] = "https://example.com/login"
	w := do(t, r, http.MethodPost, "/api/v1/sites", body)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	resp := decode[errorResponse](t, w)
	assert.Equal(t, "validation_error", resp.Error.Kind)
	assert.Equal(t, []string{
		"login username field name is required when requires_login is set",
		"login password field name is required when requires_login is set",
		"login username is required when requires_login is set",
		"login password is required when requires_login is set",
	}, resp.Error.Details)
}

func TestSites_CreateMalformed(t *testing.T) {
	r := newTestAPI().router("tenant-a")

	tests := []struct {
		name string
		body string
		want string
	}{
		{"array", `[1,2]`, "configuration must be a JSON object"},
		{"empty", ``, "configuration is missing"},
		{"wrong type", `{"name": 5}`, "configuration is malformed"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			w := do(t, r, http.MethodPost, "/api/v1/sites", tt.body)

			assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
			resp := decode[errorResponse](t, w)
			require.Len(t, resp.Error.Details, 1)
			assert.Contains(t, resp.Error.Details[0], tt.want)
		})
	}
}

func TestSites_TenantIsolation(t *testing.T) {
	a := newTestAPI()
	site := createSite(t, a.router("tenant-a"))
	other := a.router("tenant-b")

	w := do(t, other, http.MethodGet, "/api/v1/sites/"+site.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)

	w = do(t, other, http.MethodGet, "/api/v1/sites", nil)
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(0), decode[map[string]any](t, w)["total"])
}

func TestSites_ListGetUpdateDelete(t *testing.T) {
	r := newTestAPI().router("tenant-a")
	site := createSite(t, r)
	createSite(t, r)

	w := do(t, r, http.MethodGet, "/api/v1/sites?limit=1", nil)
	require.Equal(t, http.StatusOK, w.Code)
	list := decode[map[string]any](t, w)
	assert.Equal(t, float64(2), list["total"])
	assert.Len(t, list["items"], 1)

	w = do(t, r, http.MethodGet, "/api/v1/sites?active=maybe", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPut, "/api/v1/sites/"+site.ID, map[string]any{"description": "news"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, "news", decode[models.SiteConfiguration](t, w).Description)

	w = do(t, r, http.MethodPut, "/api/v1/sites/"+site.ID, map[string]any{"start_urls": []string{}})
	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)

	w = do(t, r, http.MethodGet, "/api/v1/sites/"+site.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Len(t, decode[models.SiteConfiguration](t, w).StartURLs, 1)

	w = do(t, r, http.MethodDelete, "/api/v1/sites/"+site.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, r, http.MethodGet, "/api/v1/sites/"+site.ID, nil)
	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestSites_ValidateAndSchema(t *testing.T) {
	r := newTestAPI().router("tenant-a")

	w := do(t, r, http.MethodPost, "/api/v1/sites/validate", `{"name":"x"}`)
	require.Equal(t, http.StatusOK, w.Code)
	result := decode[map[string]any](t, w)
	assert.Equal(t, false, result["valid"])
	assert.Equal(t, []any{"url is required", "start_urls must contain at least one URL"}, result["errors"])

	w = do(t, r, http.MethodGet, "/api/v1/sites/schema", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), `"required":["name","url","start_urls"]`)
}

func TestSites_ExportImport(t *testing.T) {
	r := newTestAPI().router("tenant-a")
	site := createSite(t, r)

	w := do(t, r, http.MethodGet, "/api/v1/sites/"+site.ID+"/export?format=yaml", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "application/yaml", w.Header().Get("Content-Type"))
	assert.Contains(t, w.Body.String(), "name: Example")
	assert.NotContains(t, w.Body.String(), site.ID)

	w = do(t, r, http.MethodPost, "/api/v1/sites/import?format=yaml", w.Body.String())
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	imported := decode[models.SiteConfiguration](t, w)
	assert.NotEqual(t, site.ID, imported.ID)
	assert.Equal(t, site.StartURLs, imported.StartURLs)

	w = do(t, r, http.MethodGet, "/api/v1/sites/"+site.ID+"/export?format=xml", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSites_ImportExcel(t *testing.T) {
	r := newTestAPI().router("tenant-a")

	f := excelize.NewFile()
	rows := [][]any{
		{"name", "url", "start_urls", "requires_login"},
		{"Good", "https://a.example", "https://a.example/list", "false"},
		{"No start", "https://b.example", "", "false"},
		{"Bad bool", "https://c.example", "https://c.example/list", "maybe"},
	}
	for i, row := range rows {
		cell, err := excelize.CoordinatesToCellName(1, i+1)
		require.NoError(t, err)
		require.NoError(t, f.SetSheetRow("Sheet1", cell, &row))
	}
	var workbook bytes.Buffer
	require.NoError(t, f.Write(&workbook))

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", "sites.xlsx")
	require.NoError(t, err)
	_, err = part.Write(workbook.Bytes())
	require.NoError(t, err)
	require.NoError(t, mw.Close())

	req := httptest.NewRequest(http.MethodPost, "/api/v1/sites/import/excel", &body)
	req.Header.Set("Content-Type", mw.FormDataContentType())
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	resp := decode[struct {
		Created int                `json:"created"`
		Failed  int                `json:"failed"`
		Results []sites.RowResult `json:"results"`
	}](t, w)
	assert.Equal(t, 1, resp.Created)
	assert.Equal(t, 2, resp.Failed)
	require.Len(t, resp.Results, 3)
	assert.Equal(t, 2, resp.Results[0].Row)
	assert.NotNil(t, resp.Results[0].Site)
	assert.Equal(t, []string{"start_urls must contain at least one URL"}, resp.Results[1].Errors)
	assert.Contains(t, resp.Results[2].Errors[0], "requires_login")
}

func TestSites_ImportExcelWithoutFile(t *testing.T) {
	r := newTestAPI().router("tenant-a")

	w := do(t, r, http.MethodPost, "/api/v1/sites/import/excel", nil)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestJobs_Lifecycle(t *testing.T) {
	r := newTestAPI().router("tenant-a")
	site := createSite(t, r)
	job := createJob(t, r, site.ID)
	assert.Equal(t, models.JobPending, job.Status)

	w := do(t, r, http.MethodPost, "/api/v1/jobs/"+job.ID+"/start", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	assert.Equal(t, models.JobRunning, decode[models.ScrapeJob](t, w).Status)

	w = do(t, r, http.MethodPost, "/api/v1/jobs/"+job.ID+"/start", nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "invalid_transition", decode[errorResponse](t, w).Error.Kind)

	w = do(t, r, http.MethodPost, "/api/v1/executor/jobs/"+job.ID+"/progress", map[string]any{
		"stats": map[string]int{"items_scraped": 3, "pages_visited": 1},
		"log":   map[string]string{"level": "info", "message": "page 1"},
	})
	assert.Equal(t, http.StatusAccepted, w.Code, w.Body.String())

	w = do(t, r, http.MethodDelete, "/api/v1/jobs/"+job.ID, nil)
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "job_still_active", decode[errorResponse](t, w).Error.Kind)

	w = do(t, r, http.MethodPost, "/api/v1/executor/jobs/"+job.ID+"/complete", nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	completed := decode[models.ScrapeJob](t, w)
	assert.Equal(t, models.JobCompleted, completed.Status)
	assert.Equal(t, int64(3), completed.ResultStats.ItemsScraped)

	w = do(t, r, http.MethodGet, "/api/v1/jobs/"+job.ID+"/logs?limit=10", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode[map[string]any](t, w)["count"])

	w = do(t, r, http.MethodGet, "/api/v1/jobs/"+job.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	view := decode[map[string]any](t, w)
	assert.Equal(t, "Example", view["site_name"])
	assert.Equal(t, false, view["configuration_missing"])

	w = do(t, r, http.MethodGet, "/api/v1/jobs/stats", nil)
	require.Equal(t, http.StatusOK, w.Code)
	stats := decode[models.JobStats](t, w)
	assert.Equal(t, 1, stats.Total)
	assert.Equal(t, 1, stats.ByStatus[models.JobCompleted])

	w = do(t, r, http.MethodDelete, "/api/v1/jobs/"+job.ID, nil)
	assert.Equal(t, http.StatusNoContent, w.Code)
}

func TestJobs_CancelAndFail(t *testing.T) {
	r := newTestAPI().router("tenant-a")
	site := createSite(t, r)

	pending := createJob(t, r, site.ID)
	w := do(t, r, http.MethodPost, "/api/v1/jobs/"+pending.ID+"/cancel", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.JobCancelled, decode[models.ScrapeJob](t, w).Status)

	running := createJob(t, r, site.ID)
	w = do(t, r, http.MethodPost, "/api/v1/jobs/"+running.ID+"/start", nil)
	require.Equal(t, http.StatusOK, w.Code)

	w = do(t, r, http.MethodPost, "/api/v1/executor/jobs/"+running.ID+"/fail", map[string]string{"error_message": "blocked"})
	require.Equal(t, http.StatusOK, w.Code)
	failed := decode[models.ScrapeJob](t, w)
	assert.Equal(t, models.JobFailed, failed.Status)
	require.NotNil(t, failed.ErrorMessage)
	assert.Equal(t, "blocked", *failed.ErrorMessage)

	w = do(t, r, http.MethodGet, "/api/v1/jobs?status=failed", nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, float64(1), decode[map[string]any](t, w)["total"])

	w = do(t, r, http.MethodGet, "/api/v1/jobs?status=paused", nil)
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestJobs_CreateRejections(t *testing.T) {
	r := newTestAPI().router("tenant-a")

	w := do(t, r, http.MethodPost, "/api/v1/jobs", map[string]string{})
	assert.Equal(t, http.StatusBadRequest, w.Code)

	w = do(t, r, http.MethodPost, "/api/v1/jobs", map[string]string{"site_configuration_id": "missing"})
	assert.Equal(t, http.StatusNotFound, w.Code)

	body := validSiteBody()
	body["is_active"] = false
	w = do(t, r, http.MethodPost, "/api/v1/sites", body)
	require.Equal(t, http.StatusCreated, w.Code)
	inactive := decode[models.SiteConfiguration](t, w)

	w = do(t, r, http.MethodPost, "/api/v1/jobs", map[string]string{"site_configuration_id": inactive.ID})
	assert.Equal(t, http.StatusConflict, w.Code)
	assert.Equal(t, "configuration_inactive", decode[errorResponse](t, w).Error.Kind)
}

func TestJobs_StartDispatchFailure(t *testing.T) {
	a := newTestAPI()
	a.dispatcher.err = errors.New("executor rejected job")
	r := a.router("tenant-a")
	site := createSite(t, r)
	job := createJob(t, r, site.ID)

	w := do(t, r, http.MethodPost, "/api/v1/jobs/"+job.ID+"/start", nil)

	assert.Equal(t, http.StatusBadGateway, w.Code)
	resp := decode[errorResponse](t, w)
	assert.Equal(t, "executor_dispatch_failure", resp.Error.Kind)
	require.NotNil(t, resp.Job)
	assert.Equal(t, models.JobFailed, resp.Job.Status)
}

func TestJobs_GetAfterSiteDeleted(t *testing.T) {
	r := newTestAPI().router("tenant-a")
	site := createSite(t, r)
	job := createJob(t, r, site.ID)

	w := do(t, r, http.MethodDelete, "/api/v1/sites/"+site.ID, nil)
	require.Equal(t, http.StatusNoContent, w.Code)

	w = do(t, r, http.MethodGet, "/api/v1/jobs/"+job.ID, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, true, decode[map[string]any](t, w)["configuration_missing"])
}

func TestExecutor_RequiresToken(t *testing.T) {
	r := newTestAPI().router("tenant-a")

	req := httptest.NewRequest(http.MethodPost, "/api/v1/executor/jobs/job-1/complete", nil)
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}

func TestExecutor_ProgressForUnknownJob(t *testing.T) {
	r := newTestAPI().router("tenant-a")

	w := do(t, r, http.MethodPost, "/api/v1/executor/jobs/missing/progress", map[string]any{
		"stats": map[string]int{"items_scraped": 1},
	})

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestNoSession(t *testing.T) {
	a := newTestAPI()
	r := gin.New()
	api.RegisterRoutes(r, api.Deps{
		Sites: sites.NewService(a.siteRepo, nil, nil, nil),
	})

	w := do(t, r, http.MethodGet, "/api/v1/sites", nil)

	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
