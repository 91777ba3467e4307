package api

import (
	"bytes"
	"net/http"

	"github.com/gin-gonic/gin"

	"investorradar/domain/core"
)

const xlsxContentType = "application/vnd.openxmlformats-officedocument.spreadsheetml.sheet"

func (s *Server) handleDashboardSummary(c *gin.Context) {
	summary, err := s.dashboard.Summary(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, summary)
}

// handleExport builds the workbook in memory before writing so a failed
// build still gets a clean JSON error instead of a truncated stream.
func (s *Server) handleExport(c *gin.Context) {
	var buf bytes.Buffer
	if err := s.exporter.Write(c.Request.Context(), &buf); err != nil {
		s.respondError(c, err)
		return
	}
	c.Header("Content-Disposition", `attachment; filename="datasets.xlsx"`)
	c.Data(http.StatusOK, xlsxContentType, buf.Bytes())
}

func (s *Server) handleListJobs(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"jobs": s.runner.List(), "running": s.runner.Running()})
}

func (s *Server) handleGetJob(c *gin.Context) {
	id, err := core.ParseJobID(c.Param("id"))
	if err != nil {
		s.badRequest(c, err.Error())
		return
	}
	job, err := s.runner.Get(id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, job)
}
