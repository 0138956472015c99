package api

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/UninstallAll/AIDAscraper/internal/apperr"
	"github.com/UninstallAll/AIDAscraper/internal/jobs"
	"github.com/UninstallAll/AIDAscraper/internal/logger"
	"github.com/UninstallAll/AIDAscraper/internal/models"
)

// JobHandler serves /api/v1/jobs.
type JobHandler struct {
	manager *jobs.Manager
	query   *jobs.QueryService
	logger  logger.Logger
}

func NewJobHandler(manager *jobs.Manager, query *jobs.QueryService, log logger.Logger) *JobHandler {
	return &JobHandler{manager: manager, query: query, logger: log}
}

type createJobRequest struct {
	SiteConfigurationID string `binding:"required" json:"site_configuration_id"`
}

func (h *JobHandler) List(c *gin.Context) {
	tenantID, ok := tenantOf(c)
	if !ok {
		return
	}

	filter := models.JobFilter{
		TenantID:            tenantID,
		Status:              models.JobStatus(c.Query("status")),
		SiteConfigurationID: c.Query("site_configuration_id"),
	}
	filter.Skip, filter.Limit = parseSkipLimit(c)

	items, total, err := h.query.List(c.Request.Context(), filter)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items": items,
		"total": total,
		"skip":  filter.Skip,
		"limit": filter.Limit,
	})
}

func (h *JobHandler) Create(c *gin.Context) {
	tenantID, ok := tenantOf(c)
	if !ok {
		return
	}

	var req createJobRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "site_configuration_id is required")
		return
	}

	job, err := h.manager.Create(c.Request.Context(), tenantID, req.SiteConfigurationID)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, job)
}

func (h *JobHandler) Stats(c *gin.Context) {
	tenantID, ok := tenantOf(c)
	if !ok {
		return
	}

	stats, err := h.query.GetStats(c.Request.Context(), models.JobFilter{
		TenantID:            tenantID,
		SiteConfigurationID: c.Query("site_configuration_id"),
	})
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, stats)
}

func (h *JobHandler) GetByID(c *gin.Context) {
	tenantID, ok := tenantOf(c)
	if !ok {
		return
	}

	view, err := h.query.Get(c.Request.Context(), tenantID, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, view)
}

func (h *JobHandler) Delete(c *gin.Context) {
	tenantID, ok := tenantOf(c)
	if !ok {
		return
	}

	if err := h.manager.Delete(c.Request.Context(), tenantID, c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Start returns the failed job together with the error when dispatch fails.
func (h *JobHandler) Start(c *gin.Context) {
	tenantID, ok := tenantOf(c)
	if !ok {
		return
	}

	job, err := h.manager.Start(c.Request.Context(), tenantID, c.Param("id"))
	if err != nil {
		if job != nil && apperr.IsKind(err, apperr.KindExecutorDispatchFailure) {
			status, body := toErrorBody(err)
			c.JSON(status, gin.H{"error": body, "job": job})
			return
		}
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, job)
}

func (h *JobHandler) Cancel(c *gin.Context) {
	tenantID, ok := tenantOf(c)
	if !ok {
		return
	}

	job, err := h.manager.Cancel(c.Request.Context(), tenantID, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, job)
}

func (h *JobHandler) Logs(c *gin.Context) {
	tenantID, ok := tenantOf(c)
	if !ok {
		return
	}

	limit, _ := strconv.Atoi(c.Query("limit"))
	lines, err := h.query.GetLogs(c.Request.Context(), tenantID, c.Param("id"), limit)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"items": lines,
		"count": len(lines),
	})
}
