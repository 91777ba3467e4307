package api

import (
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"investorradar/domain/catalog"
	"investorradar/domain/core"
	"investorradar/ports"
)

const (
	defaultPageSize = 20
	maxPageSize     = 100
)

type datasetPage struct {
	Items  []*catalog.DatasetRecord `json:"items"`
	Total  int                      `json:"total"`
	Limit  int                      `json:"limit"`
	Offset int                      `json:"offset"`
}

func (s *Server) handleListDatasets(c *gin.Context) {
	filter := ports.DatasetFilter{
		Category: c.Query("category"),
		Search:   c.Query("search"),
	}
	if raw := c.Query("status"); raw != "" {
		status := catalog.SyncStatus(strings.ToUpper(raw))
		if status != catalog.SyncPending && status != catalog.SyncSynced && status != catalog.SyncFailed {
			s.badRequest(c, "status must be PENDING, SYNCED or FAILED")
			return
		}
		filter.Status = status
	}
	if raw := c.Query("active"); raw == "true" || raw == "1" {
		filter.ActiveOnly = true
	}

	limit := clampPage(intQuery(c, "limit", defaultPageSize))
	offset := intQuery(c, "offset", 0)
	if offset < 0 {
		offset = 0
	}

	ctx := c.Request.Context()
	items, err := s.datasets.List(ctx, filter, limit, offset)
	if err != nil {
		s.respondError(c, err)
		return
	}
	total, err := s.datasets.Count(ctx, filter)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, datasetPage{Items: items, Total: total, Limit: limit, Offset: offset})
}

func (s *Server) handleGetDataset(c *gin.Context) {
	id, err := core.ParseDatasetID(c.Param("id"))
	if err != nil {
		s.badRequest(c, err.Error())
		return
	}
	record, err := s.datasets.GetByID(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, record)
}

func (s *Server) handleDatasetSignals(c *gin.Context) {
	id, err := core.ParseDatasetID(c.Param("id"))
	if err != nil {
		s.badRequest(c, err.Error())
		return
	}
	ctx := c.Request.Context()
	if _, err := s.datasets.GetByID(ctx, id); err != nil {
		s.respondError(c, err)
		return
	}
	items, err := s.signals.ForDataset(ctx, id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items})
}

func clampPage(limit int) int {
	if limit <= 0 {
		return defaultPageSize
	}
	if limit > maxPageSize {
		return maxPageSize
	}
	return limit
}
