package database_test

import (
	"context"
	"errors"
	"io"
	"os"
	"testing"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/UninstallAll/AIDAscraper/internal/database"
)

func readUp(t *testing.T, version uint) (string, string) {
	t.Helper()
	src, err := database.MigrationSource()
	require.NoError(t, err)
	defer src.Close()

	r, identifier, err := src.ReadUp(version)
	require.NoError(t, err)
	defer r.Close()

	body, err := io.ReadAll(r)
	require.NoError(t, err)
	return identifier, string(body)
}

func TestMigrationSource_Ordered(t *testing.T) {
	src, err := database.MigrationSource()
	require.NoError(t, err)
	defer src.Close()

	first, err := src.First()
	require.NoError(t, err)
	assert.Equal(t, uint(1), first)

	second, err := src.Next(first)
	require.NoError(t, err)
	assert.Equal(t, uint(2), second)

	third, err := src.Next(second)
	require.NoError(t, err)
	assert.Equal(t, uint(3), third)

	_, err = src.Next(third)
	assert.ErrorIs(t, err, os.ErrNotExist)
}

func TestMigrationSource_Contents(t *testing.T) {
	identifier, body := readUp(t, 1)
	assert.Equal(t, "create_site_configurations", identifier)
	for _, column := range []string{"start_urls", "field_mappings", "extra_config", "is_active", "tenant_id"} {
		assert.Contains(t, body, column)
	}

	_, body = readUp(t, 2)
	assert.Contains(t, body, "scrape_jobs_status_check")
	assert.Contains(t, body, "result_stats")

	_, body = readUp(t, 3)
	assert.Contains(t, body, "ON DELETE CASCADE")
	assert.Contains(t, body, "BIGSERIAL")
}

func TestPing(t *testing.T) {
	raw, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	require.NoError(t, err)
	defer raw.Close()
	db := sqlx.NewDb(raw, "postgres")

	mock.ExpectPing()
	require.NoError(t, database.Ping(context.Background(), db))

	mock.ExpectPing().WillReturnError(errors.New("connection refused"))
	err = database.Ping(context.Background(), db)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ping database")
	assert.NoError(t, mock.ExpectationsWereMet())
}
