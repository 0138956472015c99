package bootstrap_test

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UninstallAll/AIDAscraper/internal/bootstrap"
	"github.com/UninstallAll/AIDAscraper/internal/config"
)

const memoryConfig = `
storage:
  driver: memory
auth:
  mode: disabled
  default_tenant: acme
  executor_token: secret
executor:
  transport: none
supervisor:
  enabled: true
  schedule: "@every 1h"
`

func loadConfig(t *testing.T, body string) *config.Config {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yml")
	require.NoError(t, os.WriteFile(path, []byte(body), 0o600))

	cfg, err := config.Load(path)
	require.NoError(t, err)
	return cfg
}

func request(t *testing.T, h http.Handler, method, path string, body any, headers map[string]string) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		require.NoError(t, json.NewEncoder(&buf).Encode(body))
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range headers {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	h.ServeHTTP(w, req)
	return w
}

func TestBuild_MemoryStackServesJobLifecycle(t *testing.T) {
	cfg := loadConfig(t, memoryConfig)

	app, err := bootstrap.Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, app.Close()) })

	require.NotNil(t, app.Supervisor)
	router := app.Router()

	w := request(t, router, http.MethodGet, "/health", nil, nil)
	assert.Equal(t, http.StatusOK, w.Code)

	w = request(t, router, http.MethodPost, "/api/v1/sites", map[string]any{
		"name":       "Example",
		"url":        "https://example.com",
		"start_urls": []string{"https://example.com/list"},
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var site struct {
		ID       string `json:"id"`
		TenantID string `json:"tenant_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &site))
	assert.Equal(t, "acme", site.TenantID)

	w = request(t, router, http.MethodPost, "/api/v1/jobs", map[string]string{"site_configuration_id": site.ID}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var job struct {
		ID     string `json:"id"`
		Status string `json:"status"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
	assert.Equal(t, "pending", job.Status)

	w = request(t, router, http.MethodPost, "/api/v1/jobs/"+job.ID+"/start", nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	w = request(t, router, http.MethodPost, "/api/v1/executor/jobs/"+job.ID+"/complete", nil, nil)
	assert.Equal(t, http.StatusUnauthorized, w.Code)

	w = request(t, router, http.MethodPost, "/api/v1/executor/jobs/"+job.ID+"/complete", nil,
		map[string]string{"X-Executor-Token": "secret"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))
	assert.Equal(t, "completed", job.Status)

	w = request(t, router, http.MethodGet, "/metrics", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.True(t, strings.Contains(w.Body.String(), "scraper_"))
}

func TestBuild_KafkaTransportClosesWriter(t *testing.T) {
	cfg := loadConfig(t, memoryConfig)
	cfg.Executor.Transport = config.ExecutorKafka
	cfg.Executor.KafkaBrokers = []string{"localhost:9092"}

	app, err := bootstrap.Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.NoError(t, app.Close())
}

func TestBuild_RedisTransportRequiresServer(t *testing.T) {
	cfg := loadConfig(t, memoryConfig)
	cfg.Executor.Transport = config.ExecutorRedis
	cfg.Redis.Address = "127.0.0.1:1"

	_, err := bootstrap.Build(context.Background(), cfg, nil)

	require.Error(t, err)
	assert.Contains(t, err.Error(), "redis")
}

func TestBuild_RedisTransportDispatchesToStream(t *testing.T) {
	mr := miniredis.RunT(t)

	cfg := loadConfig(t, memoryConfig)
	cfg.Executor.Transport = config.ExecutorRedis
	cfg.Redis.Address = mr.Addr()
	cfg.Redis.Enabled = true

	app, err := bootstrap.Build(context.Background(), cfg, nil)
	require.NoError(t, err)
	t.Cleanup(func() { assert.NoError(t, app.Close()) })
	router := app.Router()

	w := request(t, router, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "redis")

	w = request(t, router, http.MethodPost, "/api/v1/sites", map[string]any{
		"name":       "Example",
		"url":        "https://example.com",
		"start_urls": []string{"https://example.com/list"},
	}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var site struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &site))

	w = request(t, router, http.MethodPost, "/api/v1/jobs", map[string]string{"site_configuration_id": site.ID}, nil)
	require.Equal(t, http.StatusCreated, w.Code, w.Body.String())
	var job struct {
		ID string `json:"id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &job))

	w = request(t, router, http.MethodPost, "/api/v1/jobs/"+job.ID+"/start", nil, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	entries, err := mr.Stream(cfg.Executor.DispatchStream)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Contains(t, entries[0].Values, job.ID)

	assert.Eventually(t, func() bool { return mr.Exists(cfg.Redis.EventsStream) },
		2*time.Second, 10*time.Millisecond)
}
