// Package models contains the site configuration and scrape job records.
package models

import (
	"database/sql/driver"
	"encoding/json"
	"time"
)

// JobStatus is a scrape job state.
type JobStatus string

const (
	JobPending   JobStatus = "pending"
	JobRunning   JobStatus = "running"
	JobCompleted JobStatus = "completed"
	JobFailed    JobStatus = "failed"
	JobCancelled JobStatus = "cancelled"
)

// AllJobStatuses lists every status in lifecycle order.
var AllJobStatuses = []JobStatus{JobPending, JobRunning, JobCompleted, JobFailed, JobCancelled}

// IsTerminal reports whether no further transitions are permitted from s.
func (s JobStatus) IsTerminal() bool {
	return s == JobCompleted || s == JobFailed || s == JobCancelled
}

// Valid reports whether s is a known status.
func (s JobStatus) Valid() bool {
	for _, known := range AllJobStatuses {
		if s == known {
			return true
		}
	}
	return false
}

// ResultStats are the counters reported by the executor.
type ResultStats struct {
	ItemsScraped      int64 `json:"items_scraped"`
	PagesVisited      int64 `json:"pages_visited"`
	ErrorsEncountered int64 `json:"errors_encountered"`
}

// Value implements driver.Valuer for database storage.
func (s ResultStats) Value() (driver.Value, error) {
	return json.Marshal(s)
}

// Scan implements sql.Scanner for database retrieval.
func (s *ResultStats) Scan(value any) error {
	return scanJSON(value, s)
}

// ScrapeJob is one execution instance against a site configuration.
type ScrapeJob struct {
	ID                  string      `db:"id"                    json:"id"`
	SiteConfigurationID string      `db:"site_configuration_id" json:"site_configuration_id"`
	TenantID            string      `db:"tenant_id"             json:"tenant_id"`
	Status              JobStatus   `db:"status"                json:"status"`
	CreatedAt           time.Time   `db:"created_at"            json:"created_at"`
	StartedAt           *time.Time  `db:"started_at"            json:"started_at"`
	FinishedAt          *time.Time  `db:"finished_at"           json:"finished_at"`
	ErrorMessage        *string     `db:"error_message"         json:"error_message,omitempty"`
	ResultStats         ResultStats `db:"result_stats"          json:"result_stats"`
	UpdatedAt           time.Time   `db:"updated_at"            json:"updated_at"`
}

// Clone returns a copy that shares no pointers with j.
func (j *ScrapeJob) Clone() *ScrapeJob {
	if j == nil {
		return nil
	}
	c := *j
	if j.StartedAt != nil {
		t := *j.StartedAt
		c.StartedAt = &t
	}
	if j.FinishedAt != nil {
		t := *j.FinishedAt
		c.FinishedAt = &t
	}
	if j.ErrorMessage != nil {
		m := *j.ErrorMessage
		c.ErrorMessage = &m
	}
	return &c
}

// Duration returns the run time of a job that has both started and finished.
func (j *ScrapeJob) Duration() (time.Duration, bool) {
	if j.StartedAt == nil || j.FinishedAt == nil {
		return 0, false
	}
	return j.FinishedAt.Sub(*j.StartedAt), true
}

// Log levels accepted from the executor.
const (
	LogLevelDebug = "debug"
	LogLevelInfo  = "info"
	LogLevelWarn  = "warn"
	LogLevelError = "error"
)

// LogLine is one timestamped, append-only job log entry.
type LogLine struct {
	Seq       int64     `db:"seq"       json:"seq"`
	JobID     string    `db:"job_id"    json:"job_id"`
	Timestamp time.Time `db:"timestamp" json:"timestamp"`
	Level     string    `db:"level"     json:"level"`
	Message   string    `db:"message"   json:"message"`
}

// JobFilter selects jobs for listing and statistics.
type JobFilter struct {
	Status              JobStatus
	SiteConfigurationID string
	TenantID            string
	StartedBefore       *time.Time
	Skip                int
	Limit               int
}

// JobStats aggregates jobs matching a filter.
type JobStats struct {
	Total                  int               `json:"total"`
	ByStatus               map[JobStatus]int `json:"by_status"`
	AverageDurationSeconds float64           `json:"average_duration_seconds"`
	TimedJobs              int               `json:"timed_jobs"`
}
