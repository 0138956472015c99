package logger_test

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UninstallAll/AIDAscraper/internal/logger"
)

func readEntries(t *testing.T, path string) []map[string]any {
	t.Helper()
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var entries []map[string]any
	for _, line := range strings.Split(strings.TrimSpace(string(data)), "\n") {
		if line == "" {
			continue
		}
		var entry map[string]any
		require.NoError(t, json.Unmarshal([]byte(line), &entry))
		entries = append(entries, entry)
	}
	return entries
}

func TestNew_WritesJSONAtLevel(t *testing.T) {
	path := filepath.Join(t.TempDir(), "app.log")
	log, err := logger.New(logger.Config{Level: "warn", OutputPaths: []string{path}})
	require.NoError(t, err)

	scoped := log.With(logger.String("service", "scraper"))
	scoped.Info("dropped")
	scoped.Warn("kept", logger.String("job_id", "job-1"), logger.Int("attempt", 2))
	require.NoError(t, log.Sync())

	entries := readEntries(t, path)
	require.Len(t, entries, 1)
	assert.Equal(t, "kept", entries[0]["msg"])
	assert.Equal(t, "warn", entries[0]["level"])
	assert.Equal(t, "scraper", entries[0]["service"])
	assert.Equal(t, "job-1", entries[0]["job_id"])
	assert.InDelta(t, 2, entries[0]["attempt"], 0)
}

func TestConfig_SetDefaults(t *testing.T) {
	var cfg logger.Config
	cfg.SetDefaults()

	assert.Equal(t, "info", cfg.Level)
	assert.Equal(t, []string{"stdout"}, cfg.OutputPaths)
}

func TestFromContext(t *testing.T) {
	nop := logger.NewNop()

	assert.NotNil(t, logger.FromContext(context.Background(), nil))
	assert.Same(t, nop, logger.FromContext(context.Background(), nop))

	stored := logger.NewNop().With(logger.String("request_id", "abc"))
	ctx := logger.WithContext(context.Background(), stored)
	assert.Same(t, stored, logger.FromContext(ctx, nop))
}
