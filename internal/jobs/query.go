package jobs

import (
	"context"
	"errors"
	"fmt"

	"github.com/UninstallAll/AIDAscraper/internal/apperr"
	"github.com/UninstallAll/AIDAscraper/internal/logger"
	"github.com/UninstallAll/AIDAscraper/internal/models"
	"github.com/UninstallAll/AIDAscraper/internal/repository"
)

const (
	DefaultListLimit = 50
	MaxListLimit     = 500

	DefaultLogLimit = 100
	MaxLogLimit     = 1000
)

// JobView is a job together with what is known about its configuration.
type JobView struct {
	*models.ScrapeJob
	SiteName string `json:"site_name,omitempty"`
	// ConfigurationMissing is set when the referenced configuration was deleted.
	ConfigurationMissing bool `json:"configuration_missing"`
}

// QueryService answers read-only questions about jobs.
type QueryService struct {
	jobs  repository.JobRepository
	sites SiteReader
	log   logger.Logger
}

// NewQueryService creates a job query service.
func NewQueryService(jobRepo repository.JobRepository, sites SiteReader, log logger.Logger) *QueryService {
	if log == nil {
		log = logger.NewNop()
	}
	return &QueryService{jobs: jobRepo, sites: sites, log: log}
}

// Get returns a job visible to tenantID.
func (q *QueryService) Get(ctx context.Context, tenantID, jobID string) (*JobView, error) {
	job, err := q.get(ctx, tenantID, jobID)
	if err != nil {
		return nil, err
	}

	view := &JobView{ScrapeJob: job}
	cfg, err := q.sites.Get(ctx, "", job.SiteConfigurationID)
	switch {
	case err == nil:
		view.SiteName = cfg.Name
	case apperr.IsKind(err, apperr.KindNotFound):
		view.ConfigurationMissing = true
	default:
		return nil, err
	}

	return view, nil
}

// List returns one page of jobs, newest first, and the total matching the filter.
func (q *QueryService) List(ctx context.Context, filter models.JobFilter) ([]*models.ScrapeJob, int, error) {
	if filter.Status != "" && !filter.Status.Valid() {
		return nil, 0, apperr.New(apperr.KindBadRequest, "unknown job status %q", filter.Status)
	}
	filter.Limit = clamp(filter.Limit, DefaultListLimit, MaxListLimit)
	if filter.Skip < 0 {
		filter.Skip = 0
	}

	items, err := q.jobs.List(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("list scrape jobs: %w", err)
	}

	total, err := q.jobs.Count(ctx, filter)
	if err != nil {
		return nil, 0, fmt.Errorf("count scrape jobs: %w", err)
	}

	return items, total, nil
}

// GetLogs returns the most recent limit log lines of a job, oldest first.
func (q *QueryService) GetLogs(ctx context.Context, tenantID, jobID string, limit int) ([]models.LogLine, error) {
	if _, err := q.get(ctx, tenantID, jobID); err != nil {
		return nil, err
	}

	lines, err := q.jobs.RecentLogs(ctx, jobID, clamp(limit, DefaultLogLimit, MaxLogLimit))
	if err != nil {
		return nil, fmt.Errorf("read logs for job %s: %w", jobID, err)
	}
	return lines, nil
}

// GetStats aggregates jobs matching filter. Paging fields are ignored.
func (q *QueryService) GetStats(ctx context.Context, filter models.JobFilter) (*models.JobStats, error) {
	filter.Skip, filter.Limit = 0, 0

	stats, err := q.jobs.Stats(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("job stats: %w", err)
	}
	return stats, nil
}

func (q *QueryService) get(ctx context.Context, tenantID, jobID string) (*models.ScrapeJob, error) {
	job, err := q.jobs.GetByID(ctx, jobID)
	if errors.Is(err, repository.ErrNotFound) {
		return nil, apperr.NotFound(resourceName, jobID)
	}
	if err != nil {
		return nil, fmt.Errorf("get scrape job: %w", err)
	}
	if tenantID != "" && job.TenantID != tenantID {
		return nil, apperr.NotFound(resourceName, jobID)
	}
	return job, nil
}

func clamp(v, def, maxValue int) int {
	if v <= 0 {
		return def
	}
	if v > maxValue {
		return maxValue
	}
	return v
}
