package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/UninstallAll/AIDAscraper/internal/bootstrap"
	"github.com/UninstallAll/AIDAscraper/internal/config"
	"github.com/UninstallAll/AIDAscraper/internal/database"
	"github.com/UninstallAll/AIDAscraper/internal/logger"
)

func newServeCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the HTTP API and job supervisor",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return bootstrap.Start(cmd.Context(), cfgFile, debug)
		},
	}
}

func newMigrateCommand() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "migrate",
		Short: "Manage the database schema",
	}

	var steps int
	down := &cobra.Command{
		Use:   "down",
		Short: "Roll back migrations",
		RunE: func(cmd *cobra.Command, _ []string) error {
			return withDatabaseConfig(func(cfg config.DatabaseConfig, log logger.Logger) error {
				return database.MigrateDown(cfg, steps, log)
			})
		},
	}
	down.Flags().IntVar(&steps, "steps", 1, "number of migrations to roll back")

	cmd.AddCommand(
		&cobra.Command{
			Use:   "up",
			Short: "Apply pending migrations",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDatabaseConfig(func(cfg config.DatabaseConfig, log logger.Logger) error {
					return database.Migrate(cfg, log)
				})
			},
		},
		down,
		&cobra.Command{
			Use:   "version",
			Short: "Print the applied schema version",
			RunE: func(cmd *cobra.Command, _ []string) error {
				return withDatabaseConfig(func(cfg config.DatabaseConfig, _ logger.Logger) error {
					version, dirty, err := database.MigrationVersion(cfg)
					if err != nil {
						return err
					}
					fmt.Fprintf(cmd.OutOrStdout(), "version %d (dirty: %t)\n", version, dirty)
					return nil
				})
			},
		},
	)

	return cmd
}

func withDatabaseConfig(fn func(cfg config.DatabaseConfig, log logger.Logger) error) error {
	cfg, err := config.Load(cfgFile)
	if err != nil {
		return err
	}
	if cfg.Storage.Driver != config.StoragePostgres {
		return fmt.Errorf("migrations require the %q storage driver", config.StoragePostgres)
	}

	log, err := bootstrap.CreateLogger(cfg)
	if err != nil {
		return err
	}
	defer func() { _ = log.Sync() }()

	return fn(cfg.Database, log)
}
