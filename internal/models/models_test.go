package models_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UninstallAll/AIDAscraper/internal/models"
)

func TestJobStatus(t *testing.T) {
	for _, s := range models.AllJobStatuses {
		assert.True(t, s.Valid(), s)
	}
	assert.False(t, models.JobStatus("paused").Valid())

	assert.False(t, models.JobPending.IsTerminal())
	assert.False(t, models.JobRunning.IsTerminal())
	assert.True(t, models.JobCompleted.IsTerminal())
	assert.True(t, models.JobFailed.IsTerminal())
	assert.True(t, models.JobCancelled.IsTerminal())
}

func TestScrapeJob_CloneAndDuration(t *testing.T) {
	started := time.Date(2024, 1, 1, 10, 0, 0, 0, time.UTC)
	finished := started.Add(90 * time.Second)
	msg := "boom"
	job := &models.ScrapeJob{ID: "j", StartedAt: &started, FinishedAt: &finished, ErrorMessage: &msg}

	c := job.Clone()
	*c.StartedAt = started.Add(time.Hour)
	*c.ErrorMessage = "changed"

	assert.Equal(t, started, *job.StartedAt)
	assert.Equal(t, "boom", *job.ErrorMessage)

	d, ok := job.Duration()
	require.True(t, ok)
	assert.Equal(t, 90*time.Second, d)

	_, ok = (&models.ScrapeJob{StartedAt: &started}).Duration()
	assert.False(t, ok)
	assert.Nil(t, (*models.ScrapeJob)(nil).Clone())
}

func TestSiteConfiguration_CloneIsDeep(t *testing.T) {
	cfg := &models.SiteConfiguration{
		StartURLs:     models.StringArray{"https://a.example/list"},
		FieldMappings: models.StringMap{"title": "//h1"},
		ExtraConfig:   models.JSONMap{"depth": 2},
	}

	c := cfg.Clone()
	c.StartURLs[0] = "https://b.example"
	c.FieldMappings["title"] = "//h2"
	c.ExtraConfig["depth"] = 3

	assert.Equal(t, "https://a.example/list", cfg.StartURLs[0])
	assert.Equal(t, "//h1", cfg.FieldMappings["title"])
	assert.Equal(t, 2, cfg.ExtraConfig["depth"])
}

func TestJSONColumns(t *testing.T) {
	v, err := models.StringArray(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("[]"), v)

	v, err = models.StringMap(nil).Value()
	require.NoError(t, err)
	assert.Equal(t, []byte("{}"), v)

	var urls models.StringArray
	require.NoError(t, urls.Scan([]byte(`["https://a.example"]`)))
	assert.Equal(t, models.StringArray{"https://a.example"}, urls)

	var extra models.JSONMap
	require.NoError(t, extra.Scan(`{"render":true}`))
	assert.Equal(t, true, extra["render"])

	var stats models.ResultStats
	require.NoError(t, stats.Scan([]byte(`{"items_scraped":7}`)))
	assert.Equal(t, int64(7), stats.ItemsScraped)

	assert.Error(t, urls.Scan(42))
}
