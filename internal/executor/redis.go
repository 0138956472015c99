package executor

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/UninstallAll/AIDAscraper/internal/logger"
	"github.com/UninstallAll/AIDAscraper/internal/models"
)

const (
	// CommandField holds the command type in stream messages.
	CommandField = "command"
	// JobIDField holds the job id in stream messages.
	JobIDField = "job_id"
	// PayloadField holds the serialized Command.
	PayloadField = "payload"

	// Default max stream length to prevent unbounded growth.
	defaultMaxStreamLen = 10000
)

type streamAdder interface {
	XAdd(ctx context.Context, a *redis.XAddArgs) *redis.StringCmd
}

// RedisDispatcher appends executor commands to a Redis stream.
type RedisDispatcher struct {
	client       streamAdder
	stream       string
	maxStreamLen int64
	log          logger.Logger
}

// NewRedisDispatcher creates a dispatcher writing to stream.
func NewRedisDispatcher(client streamAdder, stream string, log logger.Logger) *RedisDispatcher {
	if log == nil {
		log = logger.NewNop()
	}
	return &RedisDispatcher{
		client:       client,
		stream:       stream,
		maxStreamLen: defaultMaxStreamLen,
		log:          log,
	}
}

// Dispatch enqueues a start command for job.
func (d *RedisDispatcher) Dispatch(ctx context.Context, job *models.ScrapeJob, cfg *models.SiteConfiguration) error {
	return d.send(ctx, StartCommand(job, cfg))
}

// Stop enqueues a stop command for jobID.
func (d *RedisDispatcher) Stop(ctx context.Context, jobID string) error {
	return d.send(ctx, StopCommand(jobID))
}

func (d *RedisDispatcher) send(ctx context.Context, cmd Command) error {
	payload, err := cmd.encode()
	if err != nil {
		return err
	}

	result := d.client.XAdd(ctx, &redis.XAddArgs{
		Stream: d.stream,
		MaxLen: d.maxStreamLen,
		Approx: true,
		Values: map[string]any{
			CommandField: string(cmd.Type),
			JobIDField:   cmd.JobID,
			PayloadField: string(payload),
		},
	})
	if addErr := result.Err(); addErr != nil {
		return fmt.Errorf("enqueue %s command to stream %s: %w", cmd.Type, d.stream, addErr)
	}

	d.log.Debug("Executor command enqueued",
		logger.String("command", string(cmd.Type)),
		logger.String("job_id", cmd.JobID),
		logger.String("stream_id", result.Val()),
	)
	return nil
}
