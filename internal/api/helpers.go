// Package api implements the HTTP API for site configurations, scrape jobs
// and executor callbacks.
package api

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/UninstallAll/AIDAscraper/internal/apperr"
	"github.com/UninstallAll/AIDAscraper/internal/auth"
	"github.com/UninstallAll/AIDAscraper/internal/logger"
)

// errorBody is the JSON shape of every error response.
type errorBody struct {
	Kind    apperr.Kind `json:"kind"`
	Message string      `json:"message"`
	Details []string    `json:"details,omitempty"`
}

// parseSkipLimit parses skip and limit query params. Invalid values fall
// back to zero, which the services replace with their defaults.
func parseSkipLimit(c *gin.Context) (skip, limit int) {
	skip, _ = strconv.Atoi(c.Query("skip"))
	limit, _ = strconv.Atoi(c.Query("limit"))
	if skip < 0 {
		skip = 0
	}
	return skip, limit
}

// toErrorBody translates err into its response status and body.
func toErrorBody(err error) (int, errorBody) {
	var e *apperr.Error
	if !errors.As(err, &e) || e.Kind == apperr.KindInternal {
		return http.StatusInternalServerError, errorBody{Kind: apperr.KindInternal, Message: "internal server error"}
	}
	return apperr.HTTPStatus(e.Kind), errorBody{Kind: e.Kind, Message: e.Message, Details: e.Details}
}

// respondError writes err as a JSON error. Untyped errors are logged and
// reported as internal without leaking their text.
func respondError(c *gin.Context, log logger.Logger, err error) {
	status, body := toErrorBody(err)
	if body.Kind == apperr.KindInternal {
		logger.FromContext(c.Request.Context(), log).Error("Request failed",
			logger.String("path", c.FullPath()),
			logger.Error(err),
		)
		_ = c.Error(err)
	}
	c.JSON(status, gin.H{"error": body})
}

func respondBadRequest(c *gin.Context, message string) {
	c.JSON(http.StatusBadRequest, gin.H{"error": errorBody{Kind: apperr.KindBadRequest, Message: message}})
}

// tenantOf returns the session tenant. The session middleware always runs
// first, so a missing session is an authentication failure.
func tenantOf(c *gin.Context) (string, bool) {
	session, ok := auth.GetSession(c)
	if !ok || session.TenantID == "" {
		c.JSON(http.StatusUnauthorized, gin.H{
			"error": errorBody{Kind: apperr.KindUnauthorized, Message: "no session"},
		})
		return "", false
	}
	return session.TenantID, true
}
