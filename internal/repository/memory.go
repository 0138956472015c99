package repository

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/UninstallAll/AIDAscraper/internal/models"
)

// MemorySiteRepository keeps site configurations in process memory.
type MemorySiteRepository struct {
	mu    sync.RWMutex
	sites map[string]*models.SiteConfiguration
}

func NewMemorySiteRepository() *MemorySiteRepository {
	return &MemorySiteRepository{sites: make(map[string]*models.SiteConfiguration)}
}

func (r *MemorySiteRepository) Create(_ context.Context, cfg *models.SiteConfiguration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if cfg.ID == "" {
		cfg.ID = uuid.New().String()
	}
	now := time.Now().UTC()
	cfg.CreatedAt = now
	cfg.UpdatedAt = now
	r.sites[cfg.ID] = cfg.Clone()
	return nil
}

func (r *MemorySiteRepository) GetByID(_ context.Context, id string) (*models.SiteConfiguration, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	cfg, ok := r.sites[id]
	if !ok {
		return nil, ErrNotFound
	}
	return cfg.Clone(), nil
}

func (r *MemorySiteRepository) List(_ context.Context, filter models.SiteFilter) ([]*models.SiteConfiguration, error) {
	r.mu.RLock()
	matched := r.match(filter)
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if matched[i].Name != matched[j].Name {
			return matched[i].Name < matched[j].Name
		}
		return matched[i].ID < matched[j].ID
	})

	return page(matched, filter.Skip, filter.Limit), nil
}

func (r *MemorySiteRepository) Count(_ context.Context, filter models.SiteFilter) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.match(filter)), nil
}

func (r *MemorySiteRepository) Update(_ context.Context, cfg *models.SiteConfiguration) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	existing, ok := r.sites[cfg.ID]
	if !ok {
		return ErrNotFound
	}
	cfg.CreatedAt = existing.CreatedAt
	cfg.TenantID = existing.TenantID
	cfg.UpdatedAt = time.Now().UTC()
	r.sites[cfg.ID] = cfg.Clone()
	return nil
}

func (r *MemorySiteRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.sites[id]; !ok {
		return ErrNotFound
	}
	delete(r.sites, id)
	return nil
}

func (r *MemorySiteRepository) match(filter models.SiteFilter) []*models.SiteConfiguration {
	search := strings.ToLower(filter.Search)
	matched := make([]*models.SiteConfiguration, 0, len(r.sites))
	for _, cfg := range r.sites {
		if filter.TenantID != "" && cfg.TenantID != filter.TenantID {
			continue
		}
		if filter.Active != nil && cfg.IsActive != *filter.Active {
			continue
		}
		if search != "" &&
			!strings.Contains(strings.ToLower(cfg.Name), search) &&
			!strings.Contains(strings.ToLower(cfg.URL), search) {
			continue
		}
		matched = append(matched, cfg.Clone())
	}
	return matched
}

// MemoryJobRepository keeps jobs and logs in process memory. A single mutex
// makes every write atomic with respect to readers.
type MemoryJobRepository struct {
	mu      sync.RWMutex
	jobs    map[string]*models.ScrapeJob
	logs    map[string][]models.LogLine
	nextSeq int64
}

func NewMemoryJobRepository() *MemoryJobRepository {
	return &MemoryJobRepository{
		jobs: make(map[string]*models.ScrapeJob),
		logs: make(map[string][]models.LogLine),
	}
}

func (r *MemoryJobRepository) Create(_ context.Context, job *models.ScrapeJob) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if job.ID == "" {
		job.ID = uuid.New().String()
	}
	if job.CreatedAt.IsZero() {
		job.CreatedAt = time.Now().UTC()
	}
	job.UpdatedAt = job.CreatedAt
	r.jobs[job.ID] = job.Clone()
	return nil
}

func (r *MemoryJobRepository) GetByID(_ context.Context, id string) (*models.ScrapeJob, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	job, ok := r.jobs[id]
	if !ok {
		return nil, ErrNotFound
	}
	return job.Clone(), nil
}

func (r *MemoryJobRepository) UpdateState(_ context.Context, job *models.ScrapeJob, expected models.JobStatus) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.jobs[job.ID]
	if !ok || stored.Status != expected {
		return ErrStaleState
	}
	job.UpdatedAt = time.Now().UTC()
	r.jobs[job.ID] = job.Clone()
	return nil
}

func (r *MemoryJobRepository) AppendProgress(
	_ context.Context, jobID string, stats *models.ResultStats, line *models.LogLine,
) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	stored, ok := r.jobs[jobID]
	if !ok {
		return false, ErrNotFound
	}
	if stored.Status != models.JobRunning {
		return false, nil
	}

	now := time.Now().UTC()
	if stats != nil {
		stored.ResultStats = *stats
	}
	stored.UpdatedAt = now

	if line != nil {
		r.nextSeq++
		line.Seq = r.nextSeq
		line.JobID = jobID
		if line.Timestamp.IsZero() {
			line.Timestamp = now
		}
		r.logs[jobID] = append(r.logs[jobID], *line)
	}
	return true, nil
}

func (r *MemoryJobRepository) Delete(_ context.Context, id string) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.jobs[id]; !ok {
		return ErrNotFound
	}
	delete(r.jobs, id)
	delete(r.logs, id)
	return nil
}

func (r *MemoryJobRepository) RecentLogs(_ context.Context, jobID string, limit int) ([]models.LogLine, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	all := r.logs[jobID]
	start := 0
	if limit > 0 && len(all) > limit {
		start = len(all) - limit
	}
	out := make([]models.LogLine, len(all)-start)
	copy(out, all[start:])
	return out, nil
}

func (r *MemoryJobRepository) List(_ context.Context, filter models.JobFilter) ([]*models.ScrapeJob, error) {
	r.mu.RLock()
	matched := r.match(filter)
	r.mu.RUnlock()

	sort.Slice(matched, func(i, j int) bool {
		if !matched[i].CreatedAt.Equal(matched[j].CreatedAt) {
			return matched[i].CreatedAt.After(matched[j].CreatedAt)
		}
		return matched[i].ID > matched[j].ID
	})

	return page(matched, filter.Skip, filter.Limit), nil
}

func (r *MemoryJobRepository) Count(_ context.Context, filter models.JobFilter) (int, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.match(filter)), nil
}

func (r *MemoryJobRepository) Stats(_ context.Context, filter models.JobFilter) (*models.JobStats, error) {
	r.mu.RLock()
	matched := r.match(filter)
	r.mu.RUnlock()

	stats := &models.JobStats{ByStatus: emptyStatusCounts(), Total: len(matched)}
	var total time.Duration
	for _, job := range matched {
		stats.ByStatus[job.Status]++
		if !job.Status.IsTerminal() {
			continue
		}
		if d, ok := job.Duration(); ok {
			total += d
			stats.TimedJobs++
		}
	}
	if stats.TimedJobs > 0 {
		stats.AverageDurationSeconds = total.Seconds() / float64(stats.TimedJobs)
	}
	return stats, nil
}

func (r *MemoryJobRepository) match(filter models.JobFilter) []*models.ScrapeJob {
	matched := make([]*models.ScrapeJob, 0, len(r.jobs))
	for _, job := range r.jobs {
		if filter.TenantID != "" && job.TenantID != filter.TenantID {
			continue
		}
		if filter.Status != "" && job.Status != filter.Status {
			continue
		}
		if filter.SiteConfigurationID != "" && job.SiteConfigurationID != filter.SiteConfigurationID {
			continue
		}
		if filter.StartedBefore != nil && (job.StartedAt == nil || !job.StartedAt.Before(*filter.StartedBefore)) {
			continue
		}
		matched = append(matched, job.Clone())
	}
	return matched
}

func page[T any](items []T, skip, limit int) []T {
	if skip >= len(items) {
		return []T{}
	}
	if skip > 0 {
		items = items[skip:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
