package bootstrap

import (
	"context"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/UninstallAll/AIDAscraper/internal/config"
	"github.com/UninstallAll/AIDAscraper/internal/database"
	"github.com/UninstallAll/AIDAscraper/internal/events"
	"github.com/UninstallAll/AIDAscraper/internal/executor"
	"github.com/UninstallAll/AIDAscraper/internal/jobs"
	"github.com/UninstallAll/AIDAscraper/internal/logger"
)

// SetupRedis connects to Redis when events or the redis executor transport
// need it. An unreachable server only disables events; the redis transport
// fails startup.
func SetupRedis(ctx context.Context, cfg *config.Config, log logger.Logger) (*redis.Client, error) {
	needDispatch := cfg.Executor.Transport == config.ExecutorRedis
	if !cfg.Redis.Enabled && !needDispatch {
		return nil, nil
	}

	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Address,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})

	pingCtx, cancel := context.WithTimeout(ctx, database.DefaultPingTimeout)
	defer cancel()

	if err := client.Ping(pingCtx).Err(); err != nil {
		_ = client.Close()
		if needDispatch {
			return nil, fmt.Errorf("connect to redis at %s: %w", cfg.Redis.Address, err)
		}
		log.Warn("Redis not available, events disabled",
			logger.String("redis_address", cfg.Redis.Address),
			logger.Error(err),
		)
		return nil, nil
	}

	log.Info("Redis connected", logger.String("redis_address", cfg.Redis.Address))
	return client, nil
}

// SetupEventPublisher returns nil when events are disabled or Redis is down.
func SetupEventPublisher(cfg *config.Config, client *redis.Client, log logger.Logger) *events.Publisher {
	if !cfg.Redis.Enabled || client == nil {
		return nil
	}

	log.Info("Event publisher initialized", logger.String("stream", cfg.Redis.EventsStream))
	return events.NewPublisher(client, cfg.Redis.EventsStream, log)
}

// SetupDispatcher builds the executor transport. The returned closer may be nil.
func SetupDispatcher(cfg *config.Config, client *redis.Client, log logger.Logger) (jobs.Dispatcher, func() error, error) {
	switch cfg.Executor.Transport {
	case config.ExecutorRedis:
		if client == nil {
			return nil, nil, fmt.Errorf("executor transport %q requires redis", config.ExecutorRedis)
		}
		log.Info("Executor dispatch via redis stream", logger.String("stream", cfg.Executor.DispatchStream))
		return executor.NewRedisDispatcher(client, cfg.Executor.DispatchStream, log), nil, nil
	case config.ExecutorKafka:
		log.Info("Executor dispatch via kafka",
			logger.Strings("brokers", cfg.Executor.KafkaBrokers),
			logger.String("topic", cfg.Executor.KafkaTopic),
		)
		d := executor.NewKafkaDispatcher(cfg.Executor.KafkaBrokers, cfg.Executor.KafkaTopic)
		return d, d.Close, nil
	case config.ExecutorNone, "":
		return executor.NewLogDispatcher(log), nil, nil
	default:
		return nil, nil, fmt.Errorf("unknown executor transport %q", cfg.Executor.Transport)
	}
}
