package repository

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/UninstallAll/AIDAscraper/internal/models"
)

const jobColumns = `id, site_configuration_id, tenant_id, status, created_at, started_at,
	finished_at, error_message, result_stats, updated_at`

// PostgresJobRepository stores scrape jobs and logs in PostgreSQL.
type PostgresJobRepository struct {
	db *sqlx.DB
}

// NewPostgresJobRepository creates a new job repository.
func NewPostgresJobRepository(db *sqlx.DB) *PostgresJobRepository {
	return &PostgresJobRepository{db: db}
}

// Create inserts a new job.
func (r *PostgresJobRepository) Create(ctx context.Context, job *models.ScrapeJob) error {
	if job.ID == "" {
		job.ID = uuid.New().String()
	}

	query := `
		INSERT INTO scrape_jobs (id, site_configuration_id, tenant_id, status, result_stats, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $6)
		RETURNING created_at, updated_at
	`

	err := r.db.QueryRowContext(ctx, query,
		job.ID,
		job.SiteConfigurationID,
		job.TenantID,
		job.Status,
		job.ResultStats,
		job.CreatedAt,
	).Scan(&job.CreatedAt, &job.UpdatedAt)
	if err != nil {
		return fmt.Errorf("failed to create job: %w", err)
	}

	return nil
}

// GetByID retrieves a job by its ID.
func (r *PostgresJobRepository) GetByID(ctx context.Context, id string) (*models.ScrapeJob, error) {
	var job models.ScrapeJob
	query := `SELECT ` + jobColumns + ` FROM scrape_jobs WHERE id = $1`

	if err := r.db.GetContext(ctx, &job, query, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("failed to get job: %w", err)
	}

	return &job, nil
}

// UpdateState persists a transition guarded by the expected prior status.
func (r *PostgresJobRepository) UpdateState(ctx context.Context, job *models.ScrapeJob, expected models.JobStatus) error {
	job.UpdatedAt = time.Now().UTC()

	query := `
		UPDATE scrape_jobs
		SET status = $1, started_at = $2, finished_at = $3, error_message = $4,
		    result_stats = $5, updated_at = $6
		WHERE id = $7 AND status = $8
	`

	result, err := r.db.ExecContext(ctx, query,
		job.Status,
		job.StartedAt,
		job.FinishedAt,
		job.ErrorMessage,
		job.ResultStats,
		job.UpdatedAt,
		job.ID,
		expected,
	)
	if err != nil {
		return fmt.Errorf("failed to update job: %w", err)
	}

	rowsAffected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get rows affected: %w", err)
	}
	if rowsAffected == 0 {
		return ErrStaleState
	}

	return nil
}

// AppendProgress locks the job row, and replaces its stats and appends the log
// line only when the job is still running.
func (r *PostgresJobRepository) AppendProgress(
	ctx context.Context, jobID string, stats *models.ResultStats, line *models.LogLine,
) (applied bool, err error) {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return false, fmt.Errorf("begin transaction: %w", err)
	}
	defer func() {
		if !applied {
			_ = tx.Rollback()
		}
	}()

	var job models.ScrapeJob
	lockQuery := `SELECT ` + jobColumns + ` FROM scrape_jobs WHERE id = $1 FOR UPDATE`
	if err = tx.GetContext(ctx, &job, lockQuery, jobID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return false, ErrNotFound
		}
		return false, fmt.Errorf("lock job: %w", err)
	}

	if job.Status != models.JobRunning {
		return false, nil
	}

	if stats != nil {
		job.ResultStats = *stats
	}

	now := time.Now().UTC()
	if _, err = tx.ExecContext(ctx,
		`UPDATE scrape_jobs SET result_stats = $1, updated_at = $2 WHERE id = $3`,
		job.ResultStats, now, jobID,
	); err != nil {
		return false, fmt.Errorf("update job stats: %w", err)
	}

	if line != nil {
		line.JobID = jobID
		if line.Timestamp.IsZero() {
			line.Timestamp = now
		}
		err = tx.QueryRowContext(ctx,
			`INSERT INTO scrape_job_logs (job_id, timestamp, level, message) VALUES ($1, $2, $3, $4) RETURNING seq`,
			jobID, line.Timestamp, line.Level, line.Message,
		).Scan(&line.Seq)
		if err != nil {
			return false, fmt.Errorf("insert job log: %w", err)
		}
	}

	if err = tx.Commit(); err != nil {
		return false, fmt.Errorf("commit progress: %w", err)
	}

	return true, nil
}

// Delete removes a job; its logs are removed by cascade.
func (r *PostgresJobRepository) Delete(ctx context.Context, id string) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM scrape_jobs WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete job: %w", err)
	}

	return requireAffected(result)
}

// RecentLogs returns the last limit log lines of a job, oldest first.
func (r *PostgresJobRepository) RecentLogs(ctx context.Context, jobID string, limit int) ([]models.LogLine, error) {
	query := `
		SELECT seq, job_id, timestamp, level, message FROM (
			SELECT seq, job_id, timestamp, level, message
			FROM scrape_job_logs
			WHERE job_id = $1
			ORDER BY seq DESC
			LIMIT $2
		) recent
		ORDER BY seq ASC
	`

	lines := []models.LogLine{}
	if err := r.db.SelectContext(ctx, &lines, query, jobID, limit); err != nil {
		return nil, fmt.Errorf("failed to list job logs: %w", err)
	}

	return lines, nil
}

// List returns jobs newest first. Ties on created_at break by id.
func (r *PostgresJobRepository) List(ctx context.Context, filter models.JobFilter) ([]*models.ScrapeJob, error) {
	whereClause, args := buildJobWhere(filter)
	// #nosec G202 -- where clause holds placeholders only
	query := `SELECT ` + jobColumns + ` FROM scrape_jobs WHERE 1=1` + whereClause +
		` ORDER BY created_at DESC, id DESC`
	query, args = appendPaging(query, args, filter.Limit, filter.Skip)

	var jobs []*models.ScrapeJob
	if err := r.db.SelectContext(ctx, &jobs, query, args...); err != nil {
		return nil, fmt.Errorf("failed to list jobs: %w", err)
	}

	if jobs == nil {
		jobs = []*models.ScrapeJob{}
	}

	return jobs, nil
}

// Count returns the number of jobs matching filter.
func (r *PostgresJobRepository) Count(ctx context.Context, filter models.JobFilter) (int, error) {
	whereClause, args := buildJobWhere(filter)

	var count int
	if err := r.db.GetContext(ctx, &count, `SELECT COUNT(*) FROM scrape_jobs WHERE 1=1`+whereClause, args...); err != nil {
		return 0, fmt.Errorf("failed to count jobs: %w", err)
	}

	return count, nil
}

type statusCount struct {
	Status models.JobStatus `db:"status"`
	Count  int              `db:"count"`
}

type durationAggregate struct {
	AvgSeconds float64 `db:"avg_seconds"`
	Timed      int     `db:"timed"`
}

// Stats aggregates counts per status and the average run time of finished jobs.
func (r *PostgresJobRepository) Stats(ctx context.Context, filter models.JobFilter) (*models.JobStats, error) {
	whereClause, args := buildJobWhere(filter)

	var counts []statusCount
	countQuery := `SELECT status, COUNT(*) AS count FROM scrape_jobs WHERE 1=1` + whereClause + ` GROUP BY status`
	if err := r.db.SelectContext(ctx, &counts, countQuery, args...); err != nil {
		return nil, fmt.Errorf("failed to count jobs by status: %w", err)
	}

	stats := &models.JobStats{ByStatus: emptyStatusCounts()}
	for _, c := range counts {
		stats.ByStatus[c.Status] = c.Count
		stats.Total += c.Count
	}

	var agg durationAggregate
	durationQuery := `
		SELECT COALESCE(AVG(EXTRACT(EPOCH FROM (finished_at - started_at))), 0) AS avg_seconds,
		       COUNT(*) AS timed
		FROM scrape_jobs
		WHERE status IN ('completed', 'failed', 'cancelled')
		  AND started_at IS NOT NULL AND finished_at IS NOT NULL` + whereClause
	if err := r.db.GetContext(ctx, &agg, durationQuery, args...); err != nil {
		return nil, fmt.Errorf("failed to average job duration: %w", err)
	}
	stats.AverageDurationSeconds = agg.AvgSeconds
	stats.TimedJobs = agg.Timed

	return stats, nil
}

func buildJobWhere(filter models.JobFilter) (whereClause string, args []any) {
	var clauses []string
	args = make([]any, 0)

	add := func(clause string, value any) {
		args = append(args, value)
		clauses = append(clauses, fmt.Sprintf(clause, len(args)))
	}

	if filter.TenantID != "" {
		add("tenant_id = $%d", filter.TenantID)
	}
	if filter.Status != "" {
		add("status = $%d", filter.Status)
	}
	if filter.SiteConfigurationID != "" {
		add("site_configuration_id = $%d", filter.SiteConfigurationID)
	}
	if filter.StartedBefore != nil {
		add("started_at < $%d", *filter.StartedBefore)
	}

	if len(clauses) == 0 {
		return "", args
	}
	return " AND " + strings.Join(clauses, " AND "), args
}

func emptyStatusCounts() map[models.JobStatus]int {
	counts := make(map[models.JobStatus]int, len(models.AllJobStatuses))
	for _, s := range models.AllJobStatuses {
		counts[s] = 0
	}
	return counts
}
