package api

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/gomarkdown/markdown"
	"github.com/gomarkdown/markdown/html"
	"github.com/gomarkdown/markdown/parser"

	"investorradar/app"
	"investorradar/domain/core"
	"investorradar/domain/feed"
)

// feedItemView is a published item with its body rendered to HTML.
// Markdown stays in storage; rendering happens here at the edge.
type feedItemView struct {
	*feed.Item
	BodyHTML string `json:"body_html"`
}

type feedPage struct {
	Items  []feedItemView `json:"items"`
	Total  int            `json:"total"`
	Limit  int            `json:"limit"`
	Offset int            `json:"offset"`
}

// renderMarkdown converts a markdown body to HTML. Parser instances are
// single-use, so one is built per call.
func renderMarkdown(source string) string {
	p := parser.NewWithExtensions(parser.CommonExtensions | parser.AutoHeadingIDs)
	renderer := html.NewRenderer(html.RendererOptions{Flags: html.CommonFlags})
	return string(markdown.Render(p.Parse([]byte(source)), renderer))
}

func (s *Server) handleFeed(c *gin.Context) {
	page, err := s.content.List(c.Request.Context(), app.ContentListRequest{
		Limit:  intQuery(c, "limit", 0),
		Offset: intQuery(c, "offset", 0),
	})
	if err != nil {
		s.respondError(c, err)
		return
	}

	views := make([]feedItemView, 0, len(page.Items))
	for _, item := range page.Items {
		views = append(views, feedItemView{Item: item, BodyHTML: renderMarkdown(item.Body)})
	}
	c.JSON(http.StatusOK, feedPage{Items: views, Total: page.Total, Limit: page.Limit, Offset: page.Offset})
}

func (s *Server) handleCreateFeedItem(c *gin.Context) {
	var req app.CreateContentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		s.badRequest(c, "malformed feed item")
		return
	}
	// The author is always the caller, never client-supplied.
	req.AuthorID = core.UserID(currentUser(c).ID.String())

	item, err := s.content.Create(c.Request.Context(), req)
	if err != nil {
		s.respondError(c, err)
		return
	}
	if item.PublishedAt != nil {
		s.hub.Broadcast(Event{Topic: TopicFeed, Name: "content.published", Data: item})
		s.dashboard.Invalidate()
	}
	c.JSON(http.StatusCreated, item)
}

func (s *Server) handleGetContentItem(c *gin.Context) {
	id, err := core.ParseContentID(c.Param("id"))
	if err != nil {
		s.badRequest(c, err.Error())
		return
	}
	item, err := s.content.Get(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	c.JSON(http.StatusOK, feedItemView{Item: item, BodyHTML: renderMarkdown(item.Body)})
}

func (s *Server) handlePublishContentItem(c *gin.Context) {
	id, err := core.ParseContentID(c.Param("id"))
	if err != nil {
		s.badRequest(c, err.Error())
		return
	}
	item, err := s.content.Publish(c.Request.Context(), id)
	if err != nil {
		s.respondError(c, err)
		return
	}
	s.hub.Broadcast(Event{Topic: TopicFeed, Name: "content.published", Data: item})
	s.dashboard.Invalidate()
	c.JSON(http.StatusOK, item)
}

func (s *Server) handleDeleteContentItem(c *gin.Context) {
	id, err := core.ParseContentID(c.Param("id"))
	if err != nil {
		s.badRequest(c, err.Error())
		return
	}
	if err := s.content.Delete(c.Request.Context(), id); err != nil {
		s.respondError(c, err)
		return
	}
	s.dashboard.Invalidate()
	c.Status(http.StatusNoContent)
}
