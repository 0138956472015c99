// Package executor hands started jobs to the external scraping executor over
// a Redis stream or a Kafka topic.
package executor

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/UninstallAll/AIDAscraper/internal/models"
)

// CommandType is the instruction sent to the executor.
type CommandType string

const (
	CommandStart CommandType = "start"
	CommandStop  CommandType = "stop"
)

// Command is the message consumed by the executor. Start commands carry a
// snapshot of the configuration so later edits do not affect a running job.
type Command struct {
	Type              CommandType               `json:"type"`
	JobID             string                    `json:"job_id"`
	TenantID          string                    `json:"tenant_id,omitempty"`
	SiteConfiguration *models.SiteConfiguration `json:"site_configuration,omitempty"`
	IssuedAt          time.Time                 `json:"issued_at"`
}

// StartCommand builds the command that launches job against cfg.
func StartCommand(job *models.ScrapeJob, cfg *models.SiteConfiguration) Command {
	return Command{
		Type:              CommandStart,
		JobID:             job.ID,
		TenantID:          job.TenantID,
		SiteConfiguration: cfg.Clone(),
		IssuedAt:          time.Now().UTC(),
	}
}

// StopCommand builds the command that abandons jobID.
func StopCommand(jobID string) Command {
	return Command{
		Type:     CommandStop,
		JobID:    jobID,
		IssuedAt: time.Now().UTC(),
	}
}

func (c Command) encode() ([]byte, error) {
	payload, err := json.Marshal(c)
	if err != nil {
		return nil, fmt.Errorf("serialize %s command for job %s: %w", c.Type, c.JobID, err)
	}
	return payload, nil
}
