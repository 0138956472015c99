package bootstrap

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/UninstallAll/AIDAscraper/internal/api"
	"github.com/UninstallAll/AIDAscraper/internal/auth"
	"github.com/UninstallAll/AIDAscraper/internal/config"
	"github.com/UninstallAll/AIDAscraper/internal/database"
	"github.com/UninstallAll/AIDAscraper/internal/logger"
	"github.com/UninstallAll/AIDAscraper/internal/server"
)

// sessionTokenTTL only matters for tokens issued by this process.
const sessionTokenTTL = 24 * time.Hour

// SetupRouter creates the gin engine with health, metrics and API routes.
func SetupRouter(cfg *config.Config, app *App, log logger.Logger) *gin.Engine {
	router := server.NewEngine(cfg.Server, cfg.Debug, log)

	checks := map[string]server.Pinger{}
	if app.db != nil {
		db := app.db
		checks["database"] = func(ctx context.Context) error { return database.Ping(ctx, db) }
	}
	if app.redis != nil {
		client := app.redis
		checks["redis"] = func(ctx context.Context) error { return client.Ping(ctx).Err() }
	}

	server.RegisterHealthRoutes(router, server.HealthOptions{
		ServiceName:    serviceName,
		ServiceVersion: Version,
		StartTime:      time.Now(),
		Checks:         checks,
	})
	server.RegisterMetricsRoute(router, app.Registry)

	api.RegisterRoutes(router, api.Deps{
		Sites:        app.Sites,
		Manager:      app.Manager,
		Query:        app.Query,
		Session:      sessionMiddleware(cfg.Auth),
		ExecutorAuth: auth.ExecutorToken(cfg.Auth.ExecutorToken),
		Logger:       log,
	})

	return router
}

func sessionMiddleware(cfg config.AuthConfig) gin.HandlerFunc {
	if cfg.Mode == config.AuthModeJWT {
		return auth.JWT(auth.NewTokenManager(cfg.JWTSecret, sessionTokenTTL))
	}
	return auth.StaticSession(cfg.DefaultTenant)
}
