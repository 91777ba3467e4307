package app

import (
	"context"
	"time"

	"investorradar/domain/catalog"
	"investorradar/domain/signal"
	"investorradar/internal"
	"investorradar/internal/cache"
	"investorradar/internal/config"
	"investorradar/ports"
)

const (
	summaryCacheKey = "dashboard-summary"
	topSignalCount  = 5
)

// DashboardService assembles the aggregate behind the landing view. The
// summary is expensive to compute and read often, so it is served through
// a TTL cache with request collapsing.
type DashboardService struct {
	datasets ports.DatasetRepository
	signals  ports.SignalRepository
	content  ports.ContentRepository
	cache    *cache.TTL[*DashboardSummary]
	log      *internal.Logger
}

// DashboardSummary is the cached dashboard aggregate.
type DashboardSummary struct {
	TotalDatasets  int                        `json:"totalDatasets"`
	ActiveDatasets int                        `json:"activeDatasets"`
	ByCategory     map[string]int             `json:"byCategory"`
	BySyncStatus   map[catalog.SyncStatus]int `json:"bySyncStatus"`
	SignalsByKind  map[signal.Kind]int        `json:"signalsByKind"`
	TopSignals     []*signal.Signal           `json:"topSignals"`
	PublishedItems int                        `json:"publishedItems"`
	GeneratedAt    time.Time                  `json:"generatedAt"`
}

// NewDashboardService creates the summary service
func NewDashboardService(datasets ports.DatasetRepository, signals ports.SignalRepository, content ports.ContentRepository, cfg config.CacheConfig, logger *internal.Logger) *DashboardService {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &DashboardService{
		datasets: datasets,
		signals:  signals,
		content:  content,
		cache:    cache.NewTTL[*DashboardSummary](cfg.Size, cfg.SummaryTTL),
		log:      logger.Named("dashboard"),
	}
}

// Summary returns the dashboard aggregate, cached for the configured TTL.
func (s *DashboardService) Summary(ctx context.Context) (*DashboardSummary, error) {
	return s.cache.GetOrLoad(ctx, summaryCacheKey, s.build)
}

// Invalidate drops the cached summary so the next read recomputes it.
// Called after workflow runs change the registry.
func (s *DashboardService) Invalidate() {
	s.cache.Invalidate(summaryCacheKey)
}

func (s *DashboardService) build(ctx context.Context) (*DashboardSummary, error) {
	total, err := s.datasets.Count(ctx, ports.DatasetFilter{})
	if err != nil {
		return nil, err
	}
	active, err := s.datasets.Count(ctx, ports.DatasetFilter{ActiveOnly: true})
	if err != nil {
		return nil, err
	}
	byCategory, err := s.datasets.CountByCategory(ctx)
	if err != nil {
		return nil, err
	}
	byStatus, err := s.datasets.CountBySyncStatus(ctx)
	if err != nil {
		return nil, err
	}
	byKind, err := s.signals.CountByKind(ctx)
	if err != nil {
		return nil, err
	}
	top, err := s.signals.List(ctx, "", topSignalCount, 0)
	if err != nil {
		return nil, err
	}
	published, err := s.content.CountPublished(ctx)
	if err != nil {
		return nil, err
	}

	s.log.Debug("summary rebuilt: datasets=%d signals=%d", total, len(top))
	return &DashboardSummary{
		TotalDatasets:  total,
		ActiveDatasets: active,
		ByCategory:     byCategory,
		BySyncStatus:   byStatus,
		SignalsByKind:  byKind,
		TopSignals:     top,
		PublishedItems: published,
		GeneratedAt:    time.Now().UTC(),
	}, nil
}
