// Package jobs owns the scrape job lifecycle and the job query service.
//
// Every mutation of one job runs under a per-job lock, and the repository
// write is a compare-and-set on the prior status, so two racing terminal
// transitions can never both succeed.
package jobs

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/UninstallAll/AIDAscraper/internal/apperr"
	"github.com/UninstallAll/AIDAscraper/internal/events"
	"github.com/UninstallAll/AIDAscraper/internal/logger"
	"github.com/UninstallAll/AIDAscraper/internal/metrics"
	"github.com/UninstallAll/AIDAscraper/internal/models"
	"github.com/UninstallAll/AIDAscraper/internal/repository"
	"github.com/UninstallAll/AIDAscraper/internal/retry"
	"github.com/UninstallAll/AIDAscraper/internal/validation"
)

const (
	resourceName = "scrape job"

	defaultDispatchTimeout = 10 * time.Second
	stopTimeout            = 5 * time.Second
	defaultFailureMessage  = "job failed"
)

// Dispatcher hands a started job to the external executor.
type Dispatcher interface {
	Dispatch(ctx context.Context, job *models.ScrapeJob, cfg *models.SiteConfiguration) error
	// Stop asks the executor to abandon a job. It is best-effort.
	Stop(ctx context.Context, jobID string) error
}

// SiteReader resolves site configurations. An empty tenantID is unscoped.
type SiteReader interface {
	Get(ctx context.Context, tenantID, id string) (*models.SiteConfiguration, error)
}

// Options carries the optional collaborators of a Manager.
type Options struct {
	Dispatcher      Dispatcher
	Publisher       *events.Publisher
	Metrics         *metrics.Metrics
	Logger          logger.Logger
	DispatchRetry   retry.Config
	DispatchTimeout time.Duration
	// Now overrides the clock in tests.
	Now func() time.Time
}

// Manager performs job state transitions.
type Manager struct {
	jobs            repository.JobRepository
	sites           SiteReader
	dispatcher      Dispatcher
	publisher       *events.Publisher
	metrics         *metrics.Metrics
	log             logger.Logger
	retry           retry.Config
	dispatchTimeout time.Duration
	now             func() time.Time
	locks           *keyedMutex
}

// NewManager creates a job lifecycle manager.
func NewManager(jobRepo repository.JobRepository, sites SiteReader, opts Options) *Manager {
	m := &Manager{
		jobs:            jobRepo,
		sites:           sites,
		dispatcher:      opts.Dispatcher,
		publisher:       opts.Publisher,
		metrics:         opts.Metrics,
		log:             opts.Logger,
		retry:           opts.DispatchRetry,
		dispatchTimeout: opts.DispatchTimeout,
		now:             opts.Now,
		locks:           newKeyedMutex(),
	}
	if m.log == nil {
		m.log = logger.NewNop()
	}
	if m.dispatchTimeout <= 0 {
		m.dispatchTimeout = defaultDispatchTimeout
	}
	if m.now == nil {
		m.now = func() time.Time { return time.Now().UTC() }
	}
	return m
}

// Create records a pending job for an active, valid configuration.
func (m *Manager) Create(ctx context.Context, tenantID, configID string) (*models.ScrapeJob, error) {
	cfg, err := m.sites.Get(ctx, tenantID, configID)
	if err != nil {
		return nil, err
	}

	if !cfg.IsActive {
		return nil, apperr.New(apperr.KindConfigurationInactive, "site configuration %s is inactive", configID)
	}

	if result := validation.Validate(cfg); !result.Valid {
		return nil, &apperr.Error{
			Kind:    apperr.KindConfigurationInvalid,
			Message: fmt.Sprintf("site configuration %s is invalid", configID),
			Details: result.Errors,
		}
	}

	job := &models.ScrapeJob{
		SiteConfigurationID: cfg.ID,
		TenantID:            cfg.TenantID,
		Status:              models.JobPending,
		CreatedAt:           m.now(),
	}
	if err = m.jobs.Create(ctx, job); err != nil {
		return nil, fmt.Errorf("create scrape job: %w", err)
	}

	m.metrics.RecordJobCreated()
	m.log.Info("Scrape job created",
		logger.String("job_id", job.ID),
		logger.String("site_configuration_id", cfg.ID),
		logger.String("tenant_id", job.TenantID),
	)
	m.publish(events.JobCreated, job)

	return job, nil
}

// Start moves a pending job to running and dispatches it. If the executor
// cannot be reached the job is failed and returned with the dispatch error.
func (m *Manager) Start(ctx context.Context, tenantID, jobID string) (*models.ScrapeJob, error) {
	unlock := m.locks.Lock(jobID)
	defer unlock()

	job, err := m.load(ctx, tenantID, jobID)
	if err != nil {
		return nil, err
	}
	if job.Status != models.JobPending {
		return nil, apperr.InvalidTransition(jobID, string(job.Status), string(models.JobRunning))
	}

	cfg, err := m.sites.Get(ctx, "", job.SiteConfigurationID)
	if err != nil {
		return nil, err
	}
	if !cfg.IsActive {
		return nil, apperr.New(apperr.KindConfigurationInactive, "site configuration %s is inactive", cfg.ID)
	}

	running, err := m.transition(ctx, job, models.JobRunning, nil)
	if err != nil {
		return nil, err
	}

	// The job is already running; a client disconnect must not strand it there.
	detached := context.WithoutCancel(ctx)
	dispatchErr := m.dispatch(detached, running, cfg)
	if dispatchErr == nil {
		return running, nil
	}

	m.metrics.RecordDispatchFailure()
	m.log.Error("Executor dispatch failed",
		logger.String("job_id", jobID),
		logger.Error(dispatchErr),
	)

	msg := "executor dispatch failed: " + dispatchErr.Error()
	failed, err := m.transition(detached, running, models.JobFailed, withErrorMessage(msg))
	if err != nil {
		m.log.Error("Failed to mark undispatched job as failed",
			logger.String("job_id", jobID),
			logger.Error(err),
		)
		failed = running
	}

	return failed, apperr.Wrap(apperr.KindExecutorDispatchFailure, dispatchErr, "dispatch job %s", jobID)
}

// ReportProgress replaces a running job's counters with the executor's running
// totals, when given, and appends an optional log line. Reports for jobs that
// are not running are logged and dropped.
func (m *Manager) ReportProgress(
	ctx context.Context, jobID string, stats *models.ResultStats, line *models.LogLine,
) error {
	if stats != nil && (stats.ItemsScraped < 0 || stats.PagesVisited < 0 || stats.ErrorsEncountered < 0) {
		return apperr.New(apperr.KindBadRequest, "progress counters must not be negative")
	}
	line = normalizeLogLine(line)

	unlock := m.locks.Lock(jobID)
	defer unlock()

	applied, err := m.jobs.AppendProgress(ctx, jobID, stats, line)
	if errors.Is(err, repository.ErrNotFound) {
		return apperr.NotFound(resourceName, jobID)
	}
	if err != nil {
		return fmt.Errorf("append progress for job %s: %w", jobID, err)
	}

	if !applied {
		status := "unknown"
		if job, getErr := m.jobs.GetByID(ctx, jobID); getErr == nil {
			status = string(job.Status)
		}
		m.metrics.RecordProgressAnomaly()
		m.log.Warn("Ignoring progress for job that is not running",
			logger.String("job_id", jobID),
			logger.String("status", status),
		)
	}

	return nil
}

// Complete marks a running job completed. finalStats, when given, replaces
// the last reported counters.
func (m *Manager) Complete(ctx context.Context, jobID string, finalStats *models.ResultStats) (*models.ScrapeJob, error) {
	unlock := m.locks.Lock(jobID)
	defer unlock()

	job, err := m.load(ctx, "", jobID)
	if err != nil {
		return nil, err
	}

	return m.transition(ctx, job, models.JobCompleted, func(j *models.ScrapeJob) {
		if finalStats != nil {
			j.ResultStats = *finalStats
		}
	})
}

// Fail marks a running job failed with message.
func (m *Manager) Fail(ctx context.Context, jobID, message string) (*models.ScrapeJob, error) {
	unlock := m.locks.Lock(jobID)
	defer unlock()

	job, err := m.load(ctx, "", jobID)
	if err != nil {
		return nil, err
	}

	return m.transition(ctx, job, models.JobFailed, withErrorMessage(message))
}

// Cancel stops a pending or running job. A running job's executor is asked
// to stop; that request never fails the cancellation.
func (m *Manager) Cancel(ctx context.Context, tenantID, jobID string) (*models.ScrapeJob, error) {
	cancelled, wasRunning, err := m.cancelLocked(ctx, tenantID, jobID)
	if err != nil {
		return nil, err
	}

	if wasRunning && m.dispatcher != nil {
		stopCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), stopTimeout)
		defer cancel()
		if stopErr := m.dispatcher.Stop(stopCtx, jobID); stopErr != nil {
			m.log.Warn("Executor stop request failed",
				logger.String("job_id", jobID),
				logger.Error(stopErr),
			)
		}
	}

	return cancelled, nil
}

func (m *Manager) cancelLocked(ctx context.Context, tenantID, jobID string) (*models.ScrapeJob, bool, error) {
	unlock := m.locks.Lock(jobID)
	defer unlock()

	job, err := m.load(ctx, tenantID, jobID)
	if err != nil {
		return nil, false, err
	}

	cancelled, err := m.transition(ctx, job, models.JobCancelled, nil)
	if err != nil {
		return nil, false, err
	}
	return cancelled, job.Status == models.JobRunning, nil
}

// Delete removes a terminal job and its logs.
func (m *Manager) Delete(ctx context.Context, tenantID, jobID string) error {
	unlock := m.locks.Lock(jobID)
	defer unlock()

	job, err := m.load(ctx, tenantID, jobID)
	if err != nil {
		return err
	}
	if !job.Status.IsTerminal() {
		return apperr.New(apperr.KindJobStillActive, "job %s is %s", jobID, job.Status)
	}

	if err = m.jobs.Delete(ctx, jobID); err != nil {
		if errors.Is(err, repository.ErrNotFound) {
			return apperr.NotFound(resourceName, jobID)
		}
		return fmt.Errorf("delete scrape job: %w", err)
	}

	m.log.Info("Scrape job deleted", logger.String("job_id", jobID))
	m.publish(events.JobDeleted, job)
	return nil
}

// load fetches a job visible to tenantID. An empty tenantID is unscoped.
func (m *Manager) load(ctx context.Context, tenantID, jobID string) (*models.ScrapeJob, error) {
	job, err := m.jobs.GetByID(ctx, jobID)
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

// transition writes job in status to. The caller holds the job's lock.
func (m *Manager) transition(
	ctx context.Context, job *models.ScrapeJob, to models.JobStatus, mutate func(*models.ScrapeJob),
) (*models.ScrapeJob, error) {
	from := job.Status
	if err := ValidateStateTransition(from, to); err != nil {
		return nil, apperr.InvalidTransition(job.ID, string(from), string(to))
	}

	now := m.now()
	next := job.Clone()
	next.Status = to
	if to == models.JobRunning {
		next.StartedAt = &now
	}
	if to.IsTerminal() {
		next.FinishedAt = &now
	}
	if mutate != nil {
		mutate(next)
	}

	if err := m.jobs.UpdateState(ctx, next, from); err != nil {
		if errors.Is(err, repository.ErrStaleState) {
			return nil, apperr.InvalidTransition(job.ID, string(from), string(to))
		}
		return nil, fmt.Errorf("update scrape job %s: %w", job.ID, err)
	}

	duration, timed := next.Duration()
	m.metrics.RecordTransition(string(from), string(to), duration.Seconds(), timed)
	m.log.Info("Scrape job transitioned",
		logger.String("job_id", job.ID),
		logger.String("from", string(from)),
		logger.String("to", string(to)),
	)
	m.publish(eventTypeFor(to), next)

	return next, nil
}

func (m *Manager) dispatch(ctx context.Context, job *models.ScrapeJob, cfg *models.SiteConfiguration) error {
	if m.dispatcher == nil {
		return nil
	}

	ctx, cancel := context.WithTimeout(ctx, m.dispatchTimeout)
	defer cancel()

	return retry.Do(ctx, m.retry, func(ctx context.Context) error {
		return m.dispatcher.Dispatch(ctx, job, cfg)
	})
}

func (m *Manager) publish(eventType events.EventType, job *models.ScrapeJob) {
	payload := events.JobPayload{
		SiteConfigurationID: job.SiteConfigurationID,
		Status:              string(job.Status),
	}
	if job.ErrorMessage != nil {
		payload.ErrorMessage = *job.ErrorMessage
	}
	m.publisher.PublishAsync(events.Event{
		EventType:  eventType,
		ResourceID: job.ID,
		TenantID:   job.TenantID,
		Payload:    payload,
	})
}

func eventTypeFor(status models.JobStatus) events.EventType {
	switch status {
	case models.JobRunning:
		return events.JobStarted
	case models.JobCompleted:
		return events.JobCompleted
	case models.JobFailed:
		return events.JobFailed
	case models.JobCancelled:
		return events.JobCancelled
	default:
		return events.JobCreated
	}
}

func withErrorMessage(message string) func(*models.ScrapeJob) {
	if strings.TrimSpace(message) == "" {
		message = defaultFailureMessage
	}
	return func(j *models.ScrapeJob) {
		j.ErrorMessage = &message
	}
}

// normalizeLogLine drops empty lines and maps unknown levels to info.
func normalizeLogLine(line *models.LogLine) *models.LogLine {
	if line == nil || strings.TrimSpace(line.Message) == "" {
		return nil
	}
	out := *line
	switch strings.ToLower(out.Level) {
	case models.LogLevelDebug, models.LogLevelInfo, models.LogLevelWarn, models.LogLevelError:
		out.Level = strings.ToLower(out.Level)
	default:
		out.Level = models.LogLevelInfo
	}
	return &out
}
