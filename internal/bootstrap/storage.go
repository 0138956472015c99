package bootstrap

import (
	"context"
	"fmt"

	"github.com/jmoiron/sqlx"

	"github.com/UninstallAll/AIDAscraper/internal/config"
	"github.com/UninstallAll/AIDAscraper/internal/database"
	"github.com/UninstallAll/AIDAscraper/internal/logger"
	"github.com/UninstallAll/AIDAscraper/internal/repository"
)

// Storage bundles the repositories for the configured driver. DB is nil for
// in-memory storage.
type Storage struct {
	Sites repository.SiteRepository
	Jobs  repository.JobRepository
	DB    *sqlx.DB
}

// SetupStorage connects to PostgreSQL, or builds in-memory repositories.
func SetupStorage(ctx context.Context, cfg *config.Config, log logger.Logger) (*Storage, error) {
	if cfg.Storage.Driver == config.StorageMemory {
		log.Warn("Using in-memory storage; data is lost on restart")
		return &Storage{
			Sites: repository.NewMemorySiteRepository(),
			Jobs:  repository.NewMemoryJobRepository(),
		}, nil
	}

	db, err := database.Connect(ctx, cfg.Database, log)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}

	if cfg.Database.AutoMigrate {
		if migrateErr := database.Migrate(cfg.Database, log); migrateErr != nil {
			_ = db.Close()
			return nil, fmt.Errorf("failed to migrate database: %w", migrateErr)
		}
	}

	return &Storage{
		Sites: repository.NewPostgresSiteRepository(db.DB),
		Jobs:  repository.NewPostgresJobRepository(db),
		DB:    db,
	}, nil
}
