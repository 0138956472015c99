// Package supervisor periodically fails jobs that have been running longer
// than the configured maximum run time.
package supervisor

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/robfig/cron/v3"

	"github.com/UninstallAll/AIDAscraper/internal/apperr"
	"github.com/UninstallAll/AIDAscraper/internal/config"
	"github.com/UninstallAll/AIDAscraper/internal/logger"
	"github.com/UninstallAll/AIDAscraper/internal/metrics"
	"github.com/UninstallAll/AIDAscraper/internal/models"
	"github.com/UninstallAll/AIDAscraper/internal/repository"
)

const sweepBatchSize = 500

// JobFailer fails a running job. *jobs.Manager implements it.
type JobFailer interface {
	Fail(ctx context.Context, jobID, message string) (*models.ScrapeJob, error)
}

// Supervisor runs the stalled-job sweep on a cron schedule.
type Supervisor struct {
	jobs       repository.JobRepository
	failer     JobFailer
	schedule   string
	maxRunTime time.Duration
	metrics    *metrics.Metrics
	logger     logger.Logger
	now        func() time.Time

	mu   sync.Mutex
	cron *cron.Cron
}

// New creates a supervisor. It does nothing until Start is called.
func New(
	jobRepo repository.JobRepository,
	failer JobFailer,
	cfg config.SupervisorConfig,
	m *metrics.Metrics,
	log logger.Logger,
) *Supervisor {
	if log == nil {
		log = logger.NewNop()
	}
	return &Supervisor{
		jobs:       jobRepo,
		failer:     failer,
		schedule:   cfg.Schedule,
		maxRunTime: cfg.MaxRunTime,
		metrics:    m,
		logger:     log,
		now:        func() time.Time { return time.Now().UTC() },
	}
}

// Start schedules the sweep. Sweeps stop when ctx is cancelled or Stop is called.
func (s *Supervisor) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.cron != nil {
		return nil
	}

	c := cron.New()
	if _, err := c.AddFunc(s.schedule, func() {
		if ctx.Err() != nil {
			return
		}
		if _, err := s.Sweep(ctx); err != nil {
			s.logger.Error("Stalled job sweep failed", logger.Error(err))
		}
	}); err != nil {
		return fmt.Errorf("parse supervisor schedule %q: %w", s.schedule, err)
	}

	c.Start()
	s.cron = c
	s.logger.Info("Job supervisor started",
		logger.String("schedule", s.schedule),
		logger.Duration("max_run_time", s.maxRunTime),
	)
	return nil
}

// Stop halts scheduling and waits for a running sweep to finish.
func (s *Supervisor) Stop() {
	s.mu.Lock()
	c := s.cron
	s.cron = nil
	s.mu.Unlock()

	if c == nil {
		return
	}
	<-c.Stop().Done()
	s.logger.Info("Job supervisor stopped")
}

// Sweep fails every job that started before now minus the maximum run time
// and is still running. It returns how many jobs it failed.
func (s *Supervisor) Sweep(ctx context.Context) (int, error) {
	cutoff := s.now().Add(-s.maxRunTime)
	stalled, err := s.jobs.List(ctx, models.JobFilter{
		Status:        models.JobRunning,
		StartedBefore: &cutoff,
		Limit:         sweepBatchSize,
	})
	if err != nil {
		return 0, fmt.Errorf("list stalled jobs: %w", err)
	}

	message := fmt.Sprintf("job exceeded maximum run time of %s", s.maxRunTime)
	failed := 0
	for _, job := range stalled {
		_, failErr := s.failer.Fail(ctx, job.ID, message)
		switch {
		case failErr == nil:
			failed++
			s.metrics.RecordStalledJobFailed()
			s.logger.Warn("Failed stalled job",
				logger.String("job_id", job.ID),
				logger.Time("started_at", *job.StartedAt),
			)
		case apperr.IsKind(failErr, apperr.KindInvalidTransition), apperr.IsKind(failErr, apperr.KindNotFound):
			// Finished or deleted since it was listed.
		default:
			return failed, fmt.Errorf("fail stalled job %s: %w", job.ID, failErr)
		}
	}

	return failed, nil
}
