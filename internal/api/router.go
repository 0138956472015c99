package api

import (
	"github.com/gin-gonic/gin"

	"github.com/UninstallAll/AIDAscraper/internal/auth"
	"github.com/UninstallAll/AIDAscraper/internal/jobs"
	"github.com/UninstallAll/AIDAscraper/internal/logger"
	"github.com/UninstallAll/AIDAscraper/internal/sites"
)

// Deps are the collaborators the routes need.
type Deps struct {
	Sites   *sites.Service
	Manager *jobs.Manager
	Query   *jobs.QueryService
	// Session resolves the caller; exactly one session middleware is installed.
	Session gin.HandlerFunc
	// ExecutorAuth guards the executor callback routes.
	ExecutorAuth gin.HandlerFunc
	Logger       logger.Logger
}

// RegisterRoutes mounts the /api/v1 routes on router.
func RegisterRoutes(router gin.IRouter, d Deps) {
	log := d.Logger
	if log == nil {
		log = logger.NewNop()
	}
	if d.Session == nil {
		// Handlers reject requests that carry no session.
		d.Session = func(c *gin.Context) { c.Next() }
	}
	if d.ExecutorAuth == nil {
		d.ExecutorAuth = auth.ExecutorToken("")
	}

	siteHandler := NewSiteHandler(d.Sites, log)
	jobHandler := NewJobHandler(d.Manager, d.Query, log)
	executorHandler := NewExecutorHandler(d.Manager, log)

	v1 := router.Group("/api/v1")

	siteRoutes := v1.Group("/sites", d.Session)
	siteRoutes.GET("", siteHandler.List)
	siteRoutes.POST("", siteHandler.Create)
	siteRoutes.GET("/schema", siteHandler.Schema)
	siteRoutes.POST("/validate", siteHandler.Validate)
	siteRoutes.POST("/import", siteHandler.Import)
	siteRoutes.POST("/import/excel", siteHandler.ImportExcel)
	siteRoutes.GET("/:id", siteHandler.GetByID)
	siteRoutes.PUT("/:id", siteHandler.Update)
	siteRoutes.DELETE("/:id", siteHandler.Delete)
	siteRoutes.GET("/:id/export", siteHandler.Export)

	jobRoutes := v1.Group("/jobs", d.Session)
	jobRoutes.GET("", jobHandler.List)
	jobRoutes.POST("", jobHandler.Create)
	jobRoutes.GET("/stats", jobHandler.Stats)
	jobRoutes.GET("/:id", jobHandler.GetByID)
	jobRoutes.DELETE("/:id", jobHandler.Delete)
	jobRoutes.POST("/:id/start", jobHandler.Start)
	jobRoutes.POST("/:id/cancel", jobHandler.Cancel)
	jobRoutes.GET("/:id/logs", jobHandler.Logs)

	executorRoutes := v1.Group("/executor/jobs", d.ExecutorAuth)
	executorRoutes.POST("/:id/progress", executorHandler.Progress)
	executorRoutes.POST("/:id/complete", executorHandler.Complete)
	executorRoutes.POST("/:id/fail", executorHandler.Fail)
}
