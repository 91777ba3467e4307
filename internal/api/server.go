// Package api serves the REST surface and the SSE event stream.
package api

import (
	"strconv"

	"github.com/gin-gonic/gin"

	"investorradar/adapters/excel"
	"investorradar/app"
	"investorradar/internal"
	"investorradar/internal/config"
	"investorradar/internal/jobs"
	"investorradar/internal/metrics"
	"investorradar/ports"
)

// Server owns the gin engine and the services behind the REST routes.
type Server struct {
	router    *gin.Engine
	auth      *app.AuthService
	workflow  *app.WorkflowService
	syncer    *app.SyncService
	signals   *app.SignalService
	content   *app.ContentService
	dashboard *app.DashboardService
	datasets  ports.DatasetRepository
	exporter  *excel.Exporter
	runner    *jobs.Runner
	hub       *Hub
	metrics   *metrics.Metrics
	cfg       *config.Config
	log       *internal.Logger
}

// Deps bundles everything the server needs. All fields are required
// except Metrics, which may be nil in tests.
type Deps struct {
	Auth      *app.AuthService
	Workflow  *app.WorkflowService
	Sync      *app.SyncService
	Signals   *app.SignalService
	Content   *app.ContentService
	Dashboard *app.DashboardService
	Datasets  ports.DatasetRepository
	Exporter  *excel.Exporter
	Runner    *jobs.Runner
	Hub       *Hub
	Metrics   *metrics.Metrics
}

// NewServer wires the route table. Gin mode comes from configuration so
// deployments run in release mode while tests stay quiet.
func NewServer(deps Deps, cfg *config.Config, logger *internal.Logger) *Server {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	if cfg.Server.GinMode != "" {
		gin.SetMode(cfg.Server.GinMode)
	}

	s := &Server{
		router:    gin.Default(),
		auth:      deps.Auth,
		workflow:  deps.Workflow,
		syncer:    deps.Sync,
		signals:   deps.Signals,
		content:   deps.Content,
		dashboard: deps.Dashboard,
		datasets:  deps.Datasets,
		exporter:  deps.Exporter,
		runner:    deps.Runner,
		hub:       deps.Hub,
		metrics:   deps.Metrics,
		cfg:       cfg,
		log:       logger.Named("api"),
	}
	s.router.Use(s.observeRequests())
	s.setupRoutes()
	return s
}

func (s *Server) setupRoutes() {
	root := s.router.Group("/api")

	root.POST("/auth/login", s.handleLogin)

	authed := root.Group("", s.requireAuth())
	authed.GET("/auth/me", s.handleMe)
	authed.POST("/auth/logout", s.handleLogout)

	// Open reads: the radar is public data, browsing needs no account.
	root.GET("/datasets", s.handleListDatasets)
	root.GET("/datasets/:id", s.handleGetDataset)
	root.GET("/datasets/:id/signals", s.handleDatasetSignals)
	root.GET("/signals", s.handleListSignals)
	root.GET("/feed", s.handleFeed)
	root.GET("/feed/stream", s.hub.HandleStream)
	root.GET("/dashboard/summary", s.handleDashboardSummary)

	admin := root.Group("", s.requireAuth(), s.requireAdmin())
	admin.GET("/discovery/stats", s.handleDiscoveryStats)
	admin.GET("/discovery/categories", s.handleCategories)
	admin.POST("/discovery/discover-and-sync", s.handleDiscoverAndSync)
	admin.POST("/discovery/full-discover-and-sync", s.handleFullDiscoverAndSync)
	admin.POST("/discovery/add", s.handleAddDatasets)
	admin.POST("/discovery/sync-all", s.handleSyncAll)
	admin.POST("/discovery/sync/:datasetId", s.handleSyncOne)
	admin.POST("/signals/refresh", s.handleRefreshSignals)
	admin.POST("/feed", s.handleCreateFeedItem)
	// Authoring lives under /content so the param route never collides
	// with the static /feed/stream.
	admin.GET("/content/:id", s.handleGetContentItem)
	admin.POST("/content/:id/publish", s.handlePublishContentItem)
	admin.DELETE("/content/:id", s.handleDeleteContentItem)
	admin.GET("/admin/jobs", s.handleListJobs)
	admin.GET("/admin/jobs/:id", s.handleGetJob)
	admin.GET("/admin/export/datasets.xlsx", s.handleExport)
	admin.DELETE("/admin/tokens/expired", s.handleCleanupTokens)
}

// Router exposes the engine for serving and for httptest.
func (s *Server) Router() *gin.Engine {
	return s.router
}

// Run blocks serving the API on addr.
func (s *Server) Run(addr string) error {
	s.log.Info("api listening on %s", addr)
	return s.router.Run(addr)
}

// intQuery parses an integer query parameter, falling back on absent or
// malformed values.
func intQuery(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	n, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return n
}
