package executor

import (
	"context"

	"github.com/UninstallAll/AIDAscraper/internal/logger"
	"github.com/UninstallAll/AIDAscraper/internal/models"
)

// LogDispatcher only logs commands. It backs the "none" transport, where an
// executor is driven by hand through the callback API.
type LogDispatcher struct {
	log logger.Logger
}

func NewLogDispatcher(log logger.Logger) *LogDispatcher {
	if log == nil {
		log = logger.NewNop()
	}
	return &LogDispatcher{log: log}
}

func (d *LogDispatcher) Dispatch(_ context.Context, job *models.ScrapeJob, cfg *models.SiteConfiguration) error {
	d.log.Info("Job ready for executor",
		logger.String("job_id", job.ID),
		logger.String("site_configuration_id", cfg.ID),
		logger.Int("start_urls", len(cfg.StartURLs)),
	)
	return nil
}

func (d *LogDispatcher) Stop(_ context.Context, jobID string) error {
	d.log.Info("Executor stop requested", logger.String("job_id", jobID))
	return nil
}
