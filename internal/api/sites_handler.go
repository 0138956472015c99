package api

import (
	"fmt"
	"net/http"
	"sort"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/UninstallAll/AIDAscraper/internal/apperr"
	"github.com/UninstallAll/AIDAscraper/internal/importer"
	"github.com/UninstallAll/AIDAscraper/internal/logger"
	"github.com/UninstallAll/AIDAscraper/internal/models"
	"github.com/UninstallAll/AIDAscraper/internal/sites"
	"github.com/UninstallAll/AIDAscraper/internal/validation"
)

// maxUploadSize caps Excel uploads.
const maxUploadSize = 10 << 20

// SiteHandler serves /api/v1/sites.
type SiteHandler struct {
	service *sites.Service
	logger  logger.Logger
}

func NewSiteHandler(service *sites.Service, log logger.Logger) *SiteHandler {
	return &SiteHandler{service: service, logger: log}
}

func (h *SiteHandler) List(c *gin.Context) {
	tenantID, ok := tenantOf(c)
	if !ok {
		return
	}

	filter := models.SiteFilter{TenantID: tenantID, Search: c.Query("search")}
	filter.Skip, filter.Limit = parseSkipLimit(c)
	if raw := c.Query("active"); raw != "" {
		active, err := strconv.ParseBool(raw)
		if err != nil {
			respondBadRequest(c, "active must be true or false")
			return
		}
		filter.Active = &active
	}

	items, total, err := h.service.List(c.Request.Context(), filter)
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

func (h *SiteHandler) Create(c *gin.Context) {
	tenantID, ok := tenantOf(c)
	if !ok {
		return
	}

	raw, err := c.GetRawData()
	if err != nil {
		respondBadRequest(c, "could not read request body")
		return
	}
	cfg, decodeErrs := validation.Decode(raw)
	if decodeErrs != nil {
		respondError(c, h.logger, apperr.Validation(decodeErrs))
		return
	}

	created, err := h.service.Create(c.Request.Context(), tenantID, cfg)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, created)
}

func (h *SiteHandler) GetByID(c *gin.Context) {
	tenantID, ok := tenantOf(c)
	if !ok {
		return
	}

	cfg, err := h.service.Get(c.Request.Context(), tenantID, c.Param("id"))
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, cfg)
}

func (h *SiteHandler) Update(c *gin.Context) {
	tenantID, ok := tenantOf(c)
	if !ok {
		return
	}

	var patch sites.Patch
	if err := c.ShouldBindJSON(&patch); err != nil {
		respondBadRequest(c, "invalid request body: "+err.Error())
		return
	}

	updated, err := h.service.Update(c.Request.Context(), tenantID, c.Param("id"), patch)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusOK, updated)
}

func (h *SiteHandler) Delete(c *gin.Context) {
	tenantID, ok := tenantOf(c)
	if !ok {
		return
	}

	if err := h.service.Delete(c.Request.Context(), tenantID, c.Param("id")); err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.Status(http.StatusNoContent)
}

// Validate checks a configuration body without storing it.
func (h *SiteHandler) Validate(c *gin.Context) {
	raw, err := c.GetRawData()
	if err != nil {
		respondBadRequest(c, "could not read request body")
		return
	}

	c.JSON(http.StatusOK, validation.ValidateJSON(raw))
}

func (h *SiteHandler) Schema(c *gin.Context) {
	c.JSON(http.StatusOK, h.service.Schema())
}

func (h *SiteHandler) Export(c *gin.Context) {
	tenantID, ok := tenantOf(c)
	if !ok {
		return
	}

	format, err := sites.ParseFormat(c.Query("format"))
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	id := c.Param("id")
	data, err := h.service.Export(c.Request.Context(), tenantID, id, format)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.Header("Content-Disposition", fmt.Sprintf(`attachment; filename="site-%s.%s"`, id, format))
	c.Data(http.StatusOK, format.ContentType(), data)
}

func (h *SiteHandler) Import(c *gin.Context) {
	tenantID, ok := tenantOf(c)
	if !ok {
		return
	}

	format, err := sites.ParseFormat(c.Query("format"))
	if err != nil {
		respondBadRequest(c, err.Error())
		return
	}

	raw, err := c.GetRawData()
	if err != nil {
		respondBadRequest(c, "could not read request body")
		return
	}

	created, err := h.service.Import(c.Request.Context(), tenantID, raw, format)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	c.JSON(http.StatusCreated, created)
}

// ImportExcel creates every valid row of an uploaded workbook and reports
// the rows that could not be decoded or validated.
func (h *SiteHandler) ImportExcel(c *gin.Context) {
	tenantID, ok := tenantOf(c)
	if !ok {
		return
	}

	c.Request.Body = http.MaxBytesReader(c.Writer, c.Request.Body, maxUploadSize)
	fileHeader, err := c.FormFile("file")
	if err != nil {
		respondBadRequest(c, "multipart field \"file\" is required")
		return
	}
	file, err := fileHeader.Open()
	if err != nil {
		respondBadRequest(c, "could not read uploaded file")
		return
	}
	defer func() { _ = file.Close() }()

	rows, decodeErrs := importer.ParseExcelFile(file)
	for _, e := range decodeErrs {
		if e.Row <= 1 {
			respondBadRequest(c, e.Error)
			return
		}
	}

	batch := make([]sites.BatchRow, 0, len(rows))
	for _, row := range rows {
		batch = append(batch, sites.BatchRow{Row: row.Row, Config: row.Config})
	}

	created, results, err := h.service.ImportBatch(c.Request.Context(), tenantID, batch)
	if err != nil {
		respondError(c, h.logger, err)
		return
	}

	for _, e := range decodeErrs {
		results = append(results, sites.RowResult{Row: e.Row, Errors: []string{e.Error}})
	}
	sort.Slice(results, func(i, j int) bool { return results[i].Row < results[j].Row })

	h.logger.Info("Excel import finished",
		logger.String("tenant_id", tenantID),
		logger.Int("created", created),
		logger.Int("failed", len(results)-created),
	)

	c.JSON(http.StatusOK, gin.H{
		"created": created,
		"failed":  len(results) - created,
		"results": results,
	})
}
