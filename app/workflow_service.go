package app

import (
	"context"
	"fmt"
	"net/url"

	"investorradar/domain/catalog"
	"investorradar/internal"
	"investorradar/internal/config"
	"investorradar/internal/errors"
	"investorradar/ports"
)

// Workflow phases for one discover-and-sync run.
const (
	PhaseIdle        = "IDLE"
	PhaseDiscovering = "DISCOVERING"
	PhaseAdding      = "ADDING"
	PhaseSyncing     = "SYNCING"
	PhaseDone        = "DONE"
	PhaseFailed      = "FAILED"
)

// PhaseFunc observes phase transitions during a workflow run. The job
// runner injects one so progress shows up on the jobs API and the event
// stream; synchronous callers leave it nil.
type PhaseFunc func(phase string)

// WorkflowService drives the admin entrypoints: discovery followed by
// reconciliation and the data-content pass, manual seeding, and the
// stats read. No run state is persisted; a crash mid-run is recovered by
// re-invoking, which is safe because every phase is idempotent.
type WorkflowService struct {
	discovery *DiscoveryService
	sync      *SyncService
	signals   *SignalService
	datasets  ports.DatasetRepository
	client    ports.CatalogClient
	cfg       *config.Config
	log       *internal.Logger
}

// DiscoverAndSyncRequest selects the scope of one run
type DiscoverAndSyncRequest struct {
	Full     bool      `json:"fullDiscovery"`
	Category string    `json:"category,omitempty"`
	Observe  PhaseFunc `json:"-"`
}

// WorkflowReport is the aggregate envelope returned to admin callers
type WorkflowReport struct {
	Discovery DiscoveryReport `json:"discovery"`
	Sync      SyncReport      `json:"sync"`
}

// DiscoveryReport summarizes the discovery phase
type DiscoveryReport struct {
	Mode     string `json:"mode"`
	Total    int    `json:"total"`
	NewFound int    `json:"newFound"`
}

// SyncReport merges the reconciliation tallies with the content pass.
// Failed counts both reconcile items and content fetches that failed.
type SyncReport struct {
	Total   int `json:"total"`
	Success int `json:"success"`
	Failed  int `json:"failed"`
	Created int `json:"created"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
}

// AddReport is the manual seeding envelope
type AddReport struct {
	Added     int `json:"added"`
	Requested int `json:"requested"`
}

// WorkflowStats is the discovery stats envelope
type WorkflowStats struct {
	TotalKnown          int          `json:"totalKnown"`
	AvailableCategories []string     `json:"availableCategories"`
	Platform            PlatformInfo `json:"platformInfo"`
}

// PlatformInfo describes the upstream portal this instance tracks
type PlatformInfo struct {
	Name       string `json:"name"`
	BaseURL    string `json:"baseUrl"`
	Configured bool   `json:"configured"`
}

// NewWorkflowService creates the admin workflow orchestrator. The signal
// service is optional; when present, full runs end with a signal refresh.
func NewWorkflowService(discovery *DiscoveryService, syncSvc *SyncService, signalSvc *SignalService, datasets ports.DatasetRepository, client ports.CatalogClient, cfg *config.Config, logger *internal.Logger) *WorkflowService {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &WorkflowService{
		discovery: discovery,
		sync:      syncSvc,
		signals:   signalSvc,
		datasets:  datasets,
		client:    client,
		cfg:       cfg,
		log:       logger.Named("workflow"),
	}
}

// DiscoverAndSync runs one pass of the admin workflow:
//
//	IDLE -> DISCOVERING -> (new ids? ADDING) -> SYNCING -> DONE
//
// ADDING reconciles every crawled tuple, not just the new ones, so
// category drift is corrected on the same pass that spotted it. SYNCING
// is the content pass over all active records. A completely
// unconfigured catalog is the one hard failure surfaced to the caller.
func (s *WorkflowService) DiscoverAndSync(ctx context.Context, req DiscoverAndSyncRequest) (*WorkflowReport, error) {
	notify(req.Observe, PhaseIdle)
	if !s.client.Ready() {
		notify(req.Observe, PhaseFailed)
		return nil, errors.CatalogUnavailable(nil)
	}

	mode := catalog.DiscoveryQuick
	if req.Full {
		mode = catalog.DiscoveryFull
	}

	notify(req.Observe, PhaseDiscovering)
	outcome, err := s.discovery.Discover(ctx, DiscoveryRequest{Category: req.Category, Mode: mode})
	if err != nil {
		notify(req.Observe, PhaseFailed)
		return nil, fmt.Errorf("discovery phase: %w", err)
	}

	report := &WorkflowReport{
		Discovery: DiscoveryReport{
			Mode:     string(outcome.Result.Mode),
			Total:    outcome.Result.Total,
			NewFound: outcome.Result.NewFound(),
		},
	}

	if outcome.Result.NewFound() > 0 {
		notify(req.Observe, PhaseAdding)
		before := s.countKnown(ctx, req.Category)
		reconciled := s.sync.Reconcile(ctx, ReconcileRequest{
			Entries:  outcome.Entries,
			Category: req.Category,
			Source:   "discovery",
		})
		report.Sync.Created = reconciled.Created
		report.Sync.Updated = reconciled.Updated
		report.Sync.Skipped = reconciled.Skipped
		report.Sync.Failed = reconciled.Failed
		after := s.countKnown(ctx, req.Category)
		s.log.Info("adding phase done: category=%q before=%d after=%d net=%d",
			req.Category, before, after, after-before)
	}

	notify(req.Observe, PhaseSyncing)
	content, err := s.sync.SyncAll(ctx)
	if err != nil {
		notify(req.Observe, PhaseFailed)
		return nil, fmt.Errorf("sync phase: %w", err)
	}
	report.Sync.Total = content.Total
	report.Sync.Success = content.Synced
	report.Sync.Failed += content.Failed

	// Full passes feed fresh snapshots into the signal engine, so the
	// derived signals are recomputed before the run settles.
	if req.Full && s.signals != nil {
		if _, err := s.signals.Refresh(ctx); err != nil {
			s.log.Warn("signal refresh after full run failed: %v", err)
		}
	}

	notify(req.Observe, PhaseDone)
	s.log.Info("workflow run done: mode=%s new=%d created=%d synced=%d failed=%d",
		mode, report.Discovery.NewFound, report.Sync.Created, report.Sync.Success, report.Sync.Failed)
	return report, nil
}

// AddDatasets seeds records for manually supplied externalIds, bypassing
// discovery. Known ids are left alone; only fresh creates count as added.
func (s *WorkflowService) AddDatasets(ctx context.Context, ids []string) (*AddReport, error) {
	entries := make([]catalog.CatalogEntry, 0, len(ids))
	for _, id := range ids {
		entries = append(entries, catalog.CatalogEntry{ExternalID: id})
	}

	result := s.sync.Reconcile(ctx, ReconcileRequest{Entries: entries, Source: "manual"})
	report := &AddReport{Added: result.Created, Requested: len(ids)}
	s.log.Info("manual add: requested=%d added=%d skipped=%d failed=%d",
		report.Requested, report.Added, result.Skipped, result.Failed)
	return report, nil
}

// Stats reports the registry size, the category labels this instance
// knows about, and the portal the catalog client points at.
func (s *WorkflowService) Stats(ctx context.Context) (*WorkflowStats, error) {
	total, err := s.datasets.Count(ctx, ports.DatasetFilter{})
	if err != nil {
		return nil, err
	}
	categories, err := s.Categories(ctx)
	if err != nil {
		return nil, err
	}
	return &WorkflowStats{
		TotalKnown:          total,
		AvailableCategories: categories,
		Platform:            s.platformInfo(),
	}, nil
}

// Categories unions the configured category labels with the ones already
// present in the registry, configured order first.
func (s *WorkflowService) Categories(ctx context.Context) ([]string, error) {
	stored, err := s.datasets.Categories(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	out := make([]string, 0, len(s.cfg.Discovery.Categories)+len(stored))
	for _, category := range append(append([]string{}, s.cfg.Discovery.Categories...), stored...) {
		if category == "" || seen[category] {
			continue
		}
		seen[category] = true
		out = append(out, category)
	}
	return out, nil
}

func (s *WorkflowService) platformInfo() PlatformInfo {
	info := PlatformInfo{
		Name:       "open-data-portal",
		BaseURL:    s.cfg.Catalog.BaseURL,
		Configured: s.client.Ready(),
	}
	if parsed, err := url.Parse(s.cfg.Catalog.BaseURL); err == nil && parsed.Host != "" {
		info.Name = parsed.Host
	}
	return info
}

// countKnown is best-effort bookkeeping for the net-change log line.
func (s *WorkflowService) countKnown(ctx context.Context, category string) int {
	count, err := s.datasets.Count(ctx, ports.DatasetFilter{Category: category})
	if err != nil {
		s.log.Debug("count for net-change report failed: %v", err)
		return -1
	}
	return count
}

func notify(fn PhaseFunc, phase string) {
	if fn != nil {
		fn(phase)
	}
}
