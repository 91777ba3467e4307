// Package container wires configuration, storage, adapters and services
// into the dependency graph shared by the API server and the CLI.
package container

import (
	"context"
	"net/http"
	"time"

	"github.com/jmoiron/sqlx"

	"investorradar/adapters/excel"
	"investorradar/adapters/opendata"
	"investorradar/adapters/postgres"
	"investorradar/adapters/rabbitmq"
	"investorradar/app"
	"investorradar/domain/signal"
	"investorradar/internal"
	"investorradar/internal/api"
	"investorradar/internal/config"
	"investorradar/internal/errors"
	"investorradar/internal/jobs"
	"investorradar/internal/metrics"
	"investorradar/internal/scheduler"
	"investorradar/ports"
)

// Container holds every wired component. Build one with New, then call
// InitWithDatabase once a connection pool exists.
type Container struct {
	Config *config.Config
	DB     *sqlx.DB

	// Repositories
	DatasetRepo  ports.DatasetRepository
	SnapshotRepo ports.SnapshotRepository
	SignalRepo   ports.SignalRepository
	UserRepo     ports.UserRepository
	TokenRepo    ports.TokenRepository
	ContentRepo  ports.ContentRepository

	// Adapters
	Catalog   *opendata.Client
	Publisher ports.EventPublisher
	Exporter  *excel.Exporter

	// Services
	Auth      *app.AuthService
	Discovery *app.DiscoveryService
	Sync      *app.SyncService
	Signals   *app.SignalService
	Content   *app.ContentService
	Dashboard *app.DashboardService
	Backfill  *app.BackfillService
	Workflow  *app.WorkflowService

	// Infrastructure
	Metrics   *metrics.Metrics
	Hub       *api.Hub
	Runner    *jobs.Runner
	Scheduler *scheduler.Scheduler
	Server    *api.Server

	log *internal.Logger
}

// New validates the configuration and returns an unwired container.
func New(cfg *config.Config, logger *internal.Logger) (*Container, error) {
	if cfg == nil {
		return nil, errors.ConfigInvalid("configuration is required")
	}
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Container{
		Config: cfg,
		log:    logger,
	}, nil
}

// InitWithDatabase verifies the connection and builds the full graph. The
// broker connection is the only step that can fail after the ping: a
// configured but unreachable broker aborts startup rather than dropping
// events silently.
func (c *Container) InitWithDatabase(ctx context.Context, db *sqlx.DB) error {
	if db == nil {
		return errors.ConfigInvalid("database connection is required")
	}
	if err := db.PingContext(ctx); err != nil {
		return errors.Wrap(err, "database ping failed")
	}
	c.DB = db

	c.initRepositories()
	if err := c.initAdapters(); err != nil {
		return err
	}
	c.initServices()
	c.initHTTP()
	return nil
}

func (c *Container) initRepositories() {
	c.DatasetRepo = postgres.NewDatasetRepository(c.DB)
	c.SnapshotRepo = postgres.NewSnapshotRepository(c.DB)
	c.SignalRepo = postgres.NewSignalRepository(c.DB)
	c.UserRepo = postgres.NewUserRepository(c.DB)
	c.TokenRepo = postgres.NewTokenRepository(c.DB)
	c.ContentRepo = postgres.NewContentRepository(c.DB)
}

// initAdapters builds the portal client, the event fan-out and the
// exporter. Events always reach the SSE hub and the metrics counters; the
// broker joins the fan-out only when configured.
func (c *Container) initAdapters() error {
	c.Metrics = metrics.New()
	c.Hub = api.NewHub(c.log)

	c.Catalog = opendata.NewClient(c.Config.Catalog, c.log)
	crawlSurfaces := map[string]bool{"search": true, "browse": true, "loadmore": true}
	c.Catalog.SetObserver(func(operation string, elapsed time.Duration) {
		c.Metrics.ObserveCatalogFetch(operation, elapsed)
		if crawlSurfaces[operation] {
			c.Metrics.AddDiscoverySteps(operation, 1)
		}
	})

	fan := api.Fanout{api.NewEventBridge(c.Hub), &metricsPublisher{metrics: c.Metrics}}
	if c.Config.Broker.URL != "" {
		broker, err := rabbitmq.New(c.Config.Broker, c.log)
		if err != nil {
			return errors.Wrap(err, "failed to connect message broker")
		}
		fan = append(api.Fanout{broker}, fan...)
	}
	c.Publisher = fan

	c.Exporter = excel.NewExporter(c.DatasetRepo, c.SignalRepo, c.Config.Export, c.log)
	return nil
}

func (c *Container) initServices() {
	c.Auth = app.NewAuthService(c.UserRepo, c.TokenRepo, c.Config.Auth, c.log)
	c.Discovery = app.NewDiscoveryService(c.Catalog, c.DatasetRepo, c.Config.Discovery, c.log)
	c.Sync = app.NewSyncService(c.Catalog, c.DatasetRepo, c.SnapshotRepo, c.Publisher, c.Config.Sync, c.log)
	c.Signals = app.NewSignalService(c.DatasetRepo, c.SnapshotRepo, c.SignalRepo, c.Publisher, c.Config.Sync, c.log)
	c.Content = app.NewContentService(c.ContentRepo, c.DatasetRepo, c.log)
	c.Dashboard = app.NewDashboardService(c.DatasetRepo, c.SignalRepo, c.ContentRepo, c.Config.Cache, c.log)
	c.Backfill = app.NewBackfillService(c.Catalog, c.DatasetRepo, c.Config.Sync, c.log)
	c.Workflow = app.NewWorkflowService(c.Discovery, c.Sync, c.Signals, c.DatasetRepo, c.Catalog, c.Config, c.log)
}

// initHTTP builds the runner, the scheduler and the gin server. Job
// snapshots fan out to the SSE hub; finished discovery runs also feed the
// new-dataset counter, which has no event of its own.
func (c *Container) initHTTP() {
	c.Runner = jobs.NewRunner(c.log)
	hubListener := api.JobListener(c.Hub)
	c.Runner.SetListener(func(job jobs.Job) {
		hubListener(job)
		if job.Done() && job.Error == "" {
			if report, ok := job.Result.(*app.WorkflowReport); ok {
				c.Metrics.AddDiscoveryNew(report.Discovery.NewFound)
			}
		}
	})

	c.Scheduler = scheduler.New(c.Workflow, c.Sync, c.Runner, c.Config.Scheduler, c.log)

	c.Server = api.NewServer(api.Deps{
		Auth:      c.Auth,
		Workflow:  c.Workflow,
		Sync:      c.Sync,
		Signals:   c.Signals,
		Content:   c.Content,
		Dashboard: c.Dashboard,
		Datasets:  c.DatasetRepo,
		Exporter:  c.Exporter,
		Runner:    c.Runner,
		Hub:       c.Hub,
		Metrics:   c.Metrics,
	}, c.Config, c.log)
}

// OpsHandler serves health, readiness and metrics on the ops port.
func (c *Container) OpsHandler() http.Handler {
	return api.NewOpsRouter(c.DB, c.Metrics)
}

// Shutdown stops background work and releases connections. Every step
// runs; the first failure is the one reported.
func (c *Container) Shutdown() error {
	if c.Scheduler != nil {
		c.Scheduler.Stop()
	}

	var firstErr error
	if c.Publisher != nil {
		if err := c.Publisher.Close(); err != nil {
			c.log.Error("publisher close failed: %v", err)
			firstErr = err
		}
	}
	if c.DB != nil {
		if err := c.DB.Close(); err != nil {
			c.log.Error("database close failed: %v", err)
			if firstErr == nil {
				firstErr = err
			}
		}
	}
	return firstErr
}

// metricsPublisher mirrors domain events into the Prometheus counters, so
// reconcile outcomes and emitted signals are counted wherever they happen.
type metricsPublisher struct {
	metrics *metrics.Metrics
}

func (p *metricsPublisher) Publish(_ context.Context, routingKey string, payload interface{}) error {
	switch routingKey {
	case ports.EventDatasetCreated:
		p.metrics.AddSyncOutcome("created", 1)
	case ports.EventDatasetUpdated:
		p.metrics.AddSyncOutcome("updated", 1)
	case ports.EventSyncCompleted:
		if result, ok := payload.(*app.ContentSyncResult); ok {
			p.metrics.AddSyncOutcome("synced", result.Synced)
			p.metrics.AddSyncOutcome("failed", result.Failed)
		}
	case ports.EventSignalCreated:
		if sig, ok := payload.(*signal.Signal); ok {
			p.metrics.IncSignal(string(sig.Kind))
		}
	}
	return nil
}

func (p *metricsPublisher) Close() error { return nil }
