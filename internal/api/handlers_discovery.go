package api

import (
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"

	"investorradar/app"
	"investorradar/domain/core"
)

func (s *Server) handleDiscoveryStats(c *gin.Context) {
	stats, err := s.workflow.Stats(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, stats)
}

func (s *Server) handleCategories(c *gin.Context) {
	categories, err := s.workflow.Categories(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"categories": categories})
}

// handleDiscoverAndSync runs one workflow pass and returns its report.
// The run holds the single-run gate, so a live background job turns this
// into a 409. An absent body means a quick run over the default scope.
func (s *Server) handleDiscoverAndSync(c *gin.Context) {
	var req app.DiscoverAndSyncRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		s.badRequest(c, "malformed request body")
		return
	}

	result, err := s.runner.Run(c.Request.Context(), "discover-and-sync", func(ctx context.Context, setPhase func(string)) (interface{}, error) {
		req.Observe = setPhase
		return s.workflow.DiscoverAndSync(ctx, req)
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.dashboard.Invalidate()
	c.JSON(http.StatusOK, result)
}

// handleFullDiscoverAndSync starts the full pass as a background job and
// returns immediately; progress is on the jobs API and the SSE stream.
func (s *Server) handleFullDiscoverAndSync(c *gin.Context) {
	job, err := s.runner.Start("full-discover-and-sync", func(ctx context.Context, setPhase func(string)) (interface{}, error) {
		runCtx, cancel := context.WithTimeout(ctx, s.cfg.Scheduler.RunTimeout)
		defer cancel()
		report, err := s.workflow.DiscoverAndSync(runCtx, app.DiscoverAndSyncRequest{Full: true, Observe: setPhase})
		s.dashboard.Invalidate()
		return report, err
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, job)
}

type addDatasetsRequest struct {
	DatasetIDs []string `json:"datasetIds"`
}

func (s *Server) handleAddDatasets(c *gin.Context) {
	var req addDatasetsRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "body must carry datasetIds")
		return
	}
	if len(req.DatasetIDs) == 0 {
		s.badRequest(c, "datasetIds must not be empty")
		return
	}
	report, err := s.workflow.AddDatasets(c.Request.Context(), req.DatasetIDs)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.dashboard.Invalidate()
	c.JSON(http.StatusOK, report)
}

func (s *Server) handleSyncAll(c *gin.Context) {
	job, err := s.runner.Start("sync-all", func(ctx context.Context, setPhase func(string)) (interface{}, error) {
		runCtx, cancel := context.WithTimeout(ctx, s.cfg.Scheduler.RunTimeout)
		defer cancel()
		setPhase(app.PhaseSyncing)
		result, err := s.syncer.SyncAll(runCtx)
		if err == nil {
			setPhase(app.PhaseDone)
		}
		s.dashboard.Invalidate()
		return result, err
	})
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusAccepted, job)
}

func (s *Server) handleSyncOne(c *gin.Context) {
	id, err := core.ParseDatasetID(c.Param("datasetId"))
	if err != nil {
		s.badRequest(c, err.Error())
		return
	}
	record, err := s.syncer.SyncOne(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.dashboard.Invalidate()
	c.JSON(http.StatusOK, record)
}
