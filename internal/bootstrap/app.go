// Package bootstrap wires configuration, storage, transports and the HTTP
// server into a runnable scraper control plane.
package bootstrap

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/jmoiron/sqlx"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/redis/go-redis/v9"

	"github.com/UninstallAll/AIDAscraper/internal/config"
	"github.com/UninstallAll/AIDAscraper/internal/jobs"
	"github.com/UninstallAll/AIDAscraper/internal/logger"
	"github.com/UninstallAll/AIDAscraper/internal/metrics"
	"github.com/UninstallAll/AIDAscraper/internal/retry"
	"github.com/UninstallAll/AIDAscraper/internal/server"
	"github.com/UninstallAll/AIDAscraper/internal/sites"
	"github.com/UninstallAll/AIDAscraper/internal/supervisor"
)

const serviceName = "scraper-control-plane"

// Version is overridden at build time.
var Version = "dev"

// App holds every long-lived component of the service.
type App struct {
	Config     *config.Config
	Logger     logger.Logger
	Registry   *prometheus.Registry
	Sites      *sites.Service
	Manager    *jobs.Manager
	Query      *jobs.QueryService
	Supervisor *supervisor.Supervisor
	Server     *server.Server

	db      *sqlx.DB
	redis   *redis.Client
	closers []func() error
}

// CreateLogger builds the service logger from configuration.
func CreateLogger(cfg *config.Config) (logger.Logger, error) {
	log, err := logger.New(cfg.Logging)
	if err != nil {
		return nil, fmt.Errorf("create logger: %w", err)
	}
	return log.With(
		logger.String("service", serviceName),
		logger.String("version", Version),
	), nil
}

// Build assembles the application. The caller must Close the result.
func Build(ctx context.Context, cfg *config.Config, log logger.Logger) (*App, error) {
	if log == nil {
		log = logger.NewNop()
	}

	app := &App{Config: cfg, Logger: log}

	// Phase 1: metrics
	app.Registry = prometheus.NewRegistry()
	app.Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(app.Registry)

	// Phase 2: storage
	store, err := SetupStorage(ctx, cfg, log)
	if err != nil {
		return nil, err
	}
	app.db = store.DB
	if store.DB != nil {
		app.closers = append(app.closers, store.DB.Close)
	}

	// Phase 3: redis, events and executor transport
	app.redis, err = SetupRedis(ctx, cfg, log)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	if app.redis != nil {
		app.closers = append(app.closers, app.redis.Close)
	}
	publisher := SetupEventPublisher(cfg, app.redis, log)

	dispatcher, closeDispatcher, err := SetupDispatcher(cfg, app.redis, log)
	if err != nil {
		_ = app.Close()
		return nil, err
	}
	if closeDispatcher != nil {
		app.closers = append(app.closers, closeDispatcher)
	}

	// Phase 4: domain services
	app.Sites = sites.NewService(store.Sites, publisher, m, log)
	app.Manager = jobs.NewManager(store.Jobs, app.Sites, jobs.Options{
		Dispatcher: dispatcher,
		Publisher:  publisher,
		Metrics:    m,
		Logger:     log,
		DispatchRetry: retry.Config{
			MaxAttempts: cfg.Executor.DispatchRetries,
		},
		DispatchTimeout: cfg.Executor.DispatchTimeout,
	})
	app.Query = jobs.NewQueryService(store.Jobs, app.Sites, log)

	if cfg.Supervisor.Enabled {
		app.Supervisor = supervisor.New(store.Jobs, app.Manager, cfg.Supervisor, m, log)
	}

	// Phase 5: HTTP
	router := SetupRouter(cfg, app, log)
	app.Server = server.New(cfg.Server, router, log)

	return app, nil
}

// Router returns the HTTP handler.
func (a *App) Router() *gin.Engine {
	return a.Server.Router()
}

// Run starts background work and serves HTTP until ctx is cancelled or a
// termination signal arrives.
func (a *App) Run(ctx context.Context) error {
	if a.Supervisor != nil {
		if err := a.Supervisor.Start(ctx); err != nil {
			return fmt.Errorf("start supervisor: %w", err)
		}
		defer a.Supervisor.Stop()
	}

	if err := a.Server.RunWithGracefulShutdown(ctx); err != nil {
		return fmt.Errorf("server error: %w", err)
	}
	return nil
}

// Close releases connections in reverse order of acquisition.
func (a *App) Close() error {
	var errs []error
	for i := len(a.closers) - 1; i >= 0; i-- {
		if err := a.closers[i](); err != nil {
			errs = append(errs, err)
		}
	}
	a.closers = nil
	return errors.Join(errs...)
}

// Start loads configuration from configPath and runs the service.
func Start(ctx context.Context, configPath string, debug bool) error {
	cfg, err := config.Load(configPath)
	if err != nil {
		return err
	}
	if debug {
		cfg.Debug = true
		cfg.Logging.Level = "debug"
		cfg.Logging.Development = true
	}

	log, err := CreateLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	app, err := Build(ctx, cfg, log)
	if err != nil {
		return fmt.Errorf("build application: %w", err)
	}
	defer func() {
		if closeErr := app.Close(); closeErr != nil {
			log.Error("Failed to release resources", logger.Error(closeErr))
		}
	}()

	started := time.Now()
	log.Info("Scraper control plane starting",
		logger.String("storage", cfg.Storage.Driver),
		logger.String("executor_transport", cfg.Executor.Transport),
		logger.String("auth_mode", cfg.Auth.Mode),
	)

	if runErr := app.Run(ctx); runErr != nil {
		log.Error("Server error", logger.Error(runErr))
		return runErr
	}

	log.Info("Server exited", logger.Duration("uptime", time.Since(started)))
	return nil
}
