package api

import (
	"net/http"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/UninstallAll/AIDAscraper/internal/jobs"
	"github.com/UninstallAll/AIDAscraper/internal/logger"
	"github.com/UninstallAll/AIDAscraper/internal/models"
)

// ExecutorHandler receives callbacks from the scraping executor. Callbacks
// are not tenant scoped; the executor token guards them.
type ExecutorHandler struct {
	manager *jobs.Manager
	logger  logger.Logger
}

func NewExecutorHandler(manager *jobs.Manager, log logger.Logger) *ExecutorHandler {
	return &ExecutorHandler{manager: manager, logger: log}
}

type progressRequest struct {
	Stats *models.ResultStats `json:"stats"`
	Log   *progressLogLine   `json:"log"`
}

type progressLogLine struct {
	Level     string    `json:"level"`
	Message   string    `json:"message"`
	Timestamp time.Time `json:"timestamp"`
}

type completeRequest struct {
	ResultStats *models.ResultStats `json:"result_stats"`
}

type failRequest struct {
	ErrorMessage string `json:"error_message"`
}

// Progress accepts running totals and an optional log line. Reports for jobs that
// are no longer running are accepted and dropped.
func (h *ExecutorHandler) Progress(c *gin.Context) {
	var req progressRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	var line *models.LogLine
	if req.Log != nil {
		line = &models.LogLine{Level: req.Log.Level, Message: req.Log.Message, Timestamp: req.Log.Timestamp}
	}

	if err := h.manager.ReportProgress(c.Request.Context(), c.Param("id"), req.Stats, line); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.Status(http.StatusAccepted)
}

func (h *ExecutorHandler) Complete(c *gin.Context) {
	var req completeRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "invalid request body: "+err.Error())
			return
		}
	}

	job, err := h.manager.Complete(c.Request.Context(), c.Param("id"), req.ResultStats)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, job)
}

func (h *ExecutorHandler) Fail(c *gin.Context) {
	var req failRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			respondBadRequest(c, "invalid request body: "+err.Error())
			return
		}
	}

	job, err := h.manager.Fail(c.Request.Context(), c.Param("id"), req.ErrorMessage)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, job)
}
