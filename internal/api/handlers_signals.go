package api

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"investorradar/app"
)

func (s *Server) handleListSignals(c *gin.Context) {
	req := app.SignalListRequest{
		Kind:   c.Query("kind"),
		Limit:  clampPage(intQuery(c, "limit", defaultPageSize)),
		Offset: intQuery(c, "offset", 0),
	}
	if req.Offset < 0 {
		req.Offset = 0
	}
	items, err := s.signals.List(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, gin.H{"items": items, "limit": req.Limit, "offset": req.Offset})
}

func (s *Server) handleRefreshSignals(c *gin.Context) {
	result, err := s.signals.Refresh(c.Request.Context())
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.dashboard.Invalidate()
	c.JSON(http.StatusOK, result)
}
