// Package repository persists site configurations, scrape jobs and job logs.
package repository

import (
	"context"
	"errors"

	"github.com/UninstallAll/AIDAscraper/internal/models"
)

var (
	// ErrNotFound is returned when a record does not exist.
	ErrNotFound = errors.New("record not found")
	// ErrStaleState is returned when a job was not in the expected status at write time.
	ErrStaleState = errors.New("job status changed concurrently")
)

// SiteRepository stores site configurations. Callers validate before writing.
type SiteRepository interface {
	Create(ctx context.Context, cfg *models.SiteConfiguration) error
	GetByID(ctx context.Context, id string) (*models.SiteConfiguration, error)
	List(ctx context.Context, filter models.SiteFilter) ([]*models.SiteConfiguration, error)
	Count(ctx context.Context, filter models.SiteFilter) (int, error)
	Update(ctx context.Context, cfg *models.SiteConfiguration) error
	Delete(ctx context.Context, id string) error
}

// JobRepository stores scrape jobs and their logs.
type JobRepository interface {
	Create(ctx context.Context, job *models.ScrapeJob) error
	GetByID(ctx context.Context, id string) (*models.ScrapeJob, error)
	// UpdateState writes job only if its stored status still equals expected.
	UpdateState(ctx context.Context, job *models.ScrapeJob, expected models.JobStatus) error
	// AppendProgress replaces the job's counters with stats, when non-nil, and
	// appends line atomically, only while the job is running. It reports
	// whether anything was applied.
	AppendProgress(ctx context.Context, jobID string, stats *models.ResultStats, line *models.LogLine) (bool, error)
	Delete(ctx context.Context, id string) error
	RecentLogs(ctx context.Context, jobID string, limit int) ([]models.LogLine, error)
	List(ctx context.Context, filter models.JobFilter) ([]*models.ScrapeJob, error)
	Count(ctx context.Context, filter models.JobFilter) (int, error)
	Stats(ctx context.Context, filter models.JobFilter) (*models.JobStats, error)
}
