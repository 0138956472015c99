package sites_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UninstallAll/AIDAscraper/internal/apperr"
	"github.com/UninstallAll/AIDAscraper/internal/logger"
	"github.com/UninstallAll/AIDAscraper/internal/models"
	"github.com/UninstallAll/AIDAscraper/internal/repository"
	"github.com/UninstallAll/AIDAscraper/internal/sites"
)

const tenant = "tenant-a"

// recordingSiteRepo counts writes so tests can prove invalid configs never reach the store.
type recordingSiteRepo struct {
	*repository.MemorySiteRepository
	writes int
}

func (r *recordingSiteRepo) Create(ctx context.Context, cfg *models.SiteConfiguration) error {
	r.writes++
	return r.MemorySiteRepository.Create(ctx, cfg)
}

func (r *recordingSiteRepo) Update(ctx context.Context, cfg *models.SiteConfiguration) error {
	r.writes++
	return r.MemorySiteRepository.Update(ctx, cfg)
}

func newService() (*sites.Service, *recordingSiteRepo) {
	repo := &recordingSiteRepo{MemorySiteRepository: repository.NewMemorySiteRepository()}
	return sites.NewService(repo, nil, nil, logger.NewNop()), repo
}

func validSite() *models.SiteConfiguration {
	return &models.SiteConfiguration{
		Name:      "ok",
		URL:       "https://a.example",
		StartURLs: models.StringArray{"https://a.example/list"},
		IsActive:  true,
	}
}

func details(t *testing.T, err error) []string {
	t.Helper()
	var appErr *apperr.Error
	require.True(t, errors.As(err, &appErr), "expected *apperr.Error, got %v", err)
	return appErr.Details
}

func TestService_Create(t *testing.T) {
	svc, repo := newService()
	ctx := context.Background()

	input := validSite()
	input.ID = "client-chosen"
	created, err := svc.Create(ctx, tenant, input)
	require.NoError(t, err)

	assert.NotEmpty(t, created.ID)
	assert.NotEqual(t, "client-chosen", created.ID)
	assert.Equal(t, tenant, created.TenantID)
	assert.Equal(t, 1, repo.writes)
}

func TestService_Create_InvalidNeverWrites(t *testing.T) {
	svc, repo := newService()

	cfg := validSite()
	cfg.RequiresLogin = true

	_, err := svc.Create(context.Background(), tenant, cfg)

	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Len(t, details(t, err), 5)
	assert.Zero(t, repo.writes)
}

func TestService_Get_TenantIsolation(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	created, err := svc.Create(ctx, tenant, validSite())
	require.NoError(t, err)

	_, err = svc.Get(ctx, "tenant-b", created.ID)
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))

	got, err := svc.Get(ctx, tenant, created.ID)
	require.NoError(t, err)
	assert.Equal(t, created.ID, got.ID)

	_, err = svc.Get(ctx, tenant, "missing")
	assert.True(t, apperr.IsKind(err, apperr.KindNotFound))
}

func TestService_Update_RevalidatesMergedResult(t *testing.T) {
	svc, repo := newService()
	ctx := context.Background()

	created, err := svc.Create(ctx, tenant, validSite())
	require.NoError(t, err)
	writesBefore := repo.writes

	requiresLogin := true
	_, err = svc.Update(ctx, tenant, created.ID, sites.Patch{RequiresLogin: &requiresLogin})
	require.Error(t, err)
	assert.Equal(t, apperr.KindValidation, apperr.KindOf(err))
	assert.Equal(t, writesBefore, repo.writes)

	name := "renamed"
	updated, err := svc.Update(ctx, tenant, created.ID, sites.Patch{Name: &name})
	require.NoError(t, err)
	assert.Equal(t, "renamed", updated.Name)
	assert.Equal(t, created.URL, updated.URL)

	stored, err := svc.Get(ctx, tenant, created.ID)
	require.NoError(t, err)
	assert.Equal(t, "renamed", stored.Name)
}

func TestService_Delete(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	created, err := svc.Create(ctx, tenant, validSite())
	require.NoError(t, err)

	assert.True(t, apperr.IsKind(svc.Delete(ctx, "tenant-b", created.ID), apperr.KindNotFound))
	require.NoError(t, svc.Delete(ctx, tenant, created.ID))
	assert.True(t, apperr.IsKind(svc.Delete(ctx, tenant, created.ID), apperr.KindNotFound))
}

func TestService_List_ClampsPaging(t *testing.T) {
	svc, _ := newService()
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		cfg := validSite()
		cfg.Name = strings.Repeat("x", i+1)
		_, err := svc.Create(ctx, tenant, cfg)
		require.NoError(t, err)
	}

	items, total, err := svc.List(ctx, models.SiteFilter{TenantID: tenant, Limit: 2, Skip: -4})
	require.NoError(t, err)
	assert.Len(t, items, 2)
	assert.Equal(t, 3, total)

	items, _, err = svc.List(ctx, models.SiteFilter{TenantID: tenant})
	require.NoError(t, err)
	assert.Len(t, items, 3)
}

func TestService_ExportImportRoundTrip(t *testing.T) {
	for _, format := range []sites.Format{sites.FormatJSON, sites.FormatYAML} {
		t.Run(string(format), func(t *testing.T) {
			svc, _ := newService()
			ctx := context.Background()

			cfg := validSite()
			cfg.FieldMappings = models.StringMap{"title": "//h1"}
			cfg.ExtraConfig = models.JSONMap{"depth": 2}
			created, err := svc.Create(ctx, tenant, cfg)
			require.NoError(t, err)

			data, err := svc.Export(ctx, tenant, created.ID, format)
			require.NoError(t, err)
			assert.NotContains(t, string(data), created.ID)
			assert.NotContains(t, string(data), tenant)

			imported, err := svc.Import(ctx, "tenant-b", data, format)
			require.NoError(t, err)
			assert.NotEqual(t, created.ID, imported.ID)
			assert.Equal(t, "tenant-b", imported.TenantID)
			assert.Equal(t, created.Name, imported.Name)
			assert.Equal(t, created.StartURLs, imported.StartURLs)
			assert.Equal(t, "//h1", imported.FieldMappings["title"])
		})
	}
}

func TestService_Import_Rejects(t *testing.T) {
	tests := []struct {
		name   string
		data   string
		format sites.Format
		want   string
	}{
		{"not an object", `["x"]`, sites.FormatJSON, "malformed"},
		{"empty", ``, sites.FormatJSON, "malformed"},
		{"unknown field", `{"name":"a","bogus":1}`, sites.FormatJSON, "malformed"},
		{"bad yaml", "name: [unterminated", sites.FormatYAML, "malformed"},
		{"fails rules", `{"name":"a","url":"https://a.example","start_urls":[]}`, sites.FormatJSON, "start_urls"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			svc, repo := newService()

			_, err := svc.Import(context.Background(), tenant, []byte(tt.data), tt.format)

			require.Error(t, err)
			msgs := details(t, err)
			require.Len(t, msgs, 1)
			assert.Contains(t, msgs[0], tt.want)
			assert.Zero(t, repo.writes)
		})
	}
}

func TestService_ImportBatch(t *testing.T) {
	svc, _ := newService()

	bad := validSite()
	bad.URL = ""

	created, results, err := svc.ImportBatch(context.Background(), tenant, []sites.BatchRow{
		{Row: 2, Config: validSite()},
		{Row: 3, Config: bad},
		{Row: 5, Config: validSite()},
	})
	require.NoError(t, err)

	assert.Equal(t, 2, created)
	require.Len(t, results, 3)
	assert.NotNil(t, results[0].Site)
	assert.Equal(t, 3, results[1].Row)
	assert.Nil(t, results[1].Site)
	assert.Equal(t, []string{"url is required"}, results[1].Errors)
	assert.Equal(t, 5, results[2].Row)
}

func TestParseFormat(t *testing.T) {
	f, err := sites.ParseFormat("")
	require.NoError(t, err)
	assert.Equal(t, sites.FormatJSON, f)

	f, err = sites.ParseFormat("YML")
	require.NoError(t, err)
	assert.Equal(t, sites.FormatYAML, f)
	assert.Equal(t, "application/yaml", f.ContentType())

	_, err = sites.ParseFormat("xml")
	assert.Error(t, err)
}
