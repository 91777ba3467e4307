// Package scheduler triggers periodic discovery and content-sync runs.
package scheduler

import (
	"context"
	"errors"
	"sync"
	"time"

	"investorradar/app"
	"investorradar/domain/core"
	"investorradar/internal"
	"investorradar/internal/config"
	"investorradar/internal/jobs"
)

// Scheduler fires quick discover-and-sync passes and standalone content
// syncs on their configured intervals. Runs go through the job runner, so
// a tick that lands while another run is live is skipped, not queued.
type Scheduler struct {
	workflow *app.WorkflowService
	sync     *app.SyncService
	runner   *jobs.Runner
	cfg      config.SchedulerConfig
	log      *internal.Logger

	mu      sync.Mutex
	ticks   int
	skipped int
	cancel  context.CancelFunc
	done    chan struct{}
}

// New creates the scheduler
func New(workflow *app.WorkflowService, syncSvc *app.SyncService, runner *jobs.Runner, cfg config.SchedulerConfig, logger *internal.Logger) *Scheduler {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Scheduler{
		workflow: workflow,
		sync:     syncSvc,
		runner:   runner,
		cfg:      cfg,
		log:      logger.Named("scheduler"),
	}
}

// Start launches the ticker loop. A disabled scheduler is a no-op.
func (s *Scheduler) Start() {
	if !s.cfg.Enabled {
		s.log.Info("scheduler disabled")
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	s.cancel = cancel
	s.done = make(chan struct{})
	s.log.Info("scheduler started: discovery every %s, sync every %s", s.cfg.DiscoveryInterval, s.cfg.SyncInterval)

	go s.loop(ctx)
}

// Stop halts the loop and waits for it to exit. Safe to call on a
// scheduler that never started.
func (s *Scheduler) Stop() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
}

// Stats reports how many ticks fired and how many were skipped because a
// run was already live.
func (s *Scheduler) Stats() (ticks, skipped int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.ticks, s.skipped
}

func (s *Scheduler) loop(ctx context.Context) {
	defer close(s.done)

	discovery := time.NewTicker(s.cfg.DiscoveryInterval)
	defer discovery.Stop()
	contentSync := time.NewTicker(s.cfg.SyncInterval)
	defer contentSync.Stop()

	for {
		select {
		case <-ctx.Done():
			s.log.Info("scheduler stopped")
			return
		case <-discovery.C:
			s.fire("scheduled-discover-and-sync", s.runDiscovery)
		case <-contentSync.C:
			s.fire("scheduled-sync-all", s.runSync)
		}
	}
}

// fire hands one tick to the job runner.
func (s *Scheduler) fire(kind string, run jobs.RunFunc) {
	s.mu.Lock()
	s.ticks++
	s.mu.Unlock()

	if _, err := s.runner.Start(kind, run); err != nil {
		if errors.Is(err, core.ErrRunInProgress) {
			s.mu.Lock()
			s.skipped++
			s.mu.Unlock()
			s.log.Debug("%s skipped: a run is already live", kind)
			return
		}
		s.log.Error("%s failed to start: %v", kind, err)
	}
}

func (s *Scheduler) runDiscovery(ctx context.Context, setPhase func(string)) (interface{}, error) {
	runCtx, cancel := context.WithTimeout(ctx, s.cfg.RunTimeout)
	defer cancel()

	report, err := s.workflow.DiscoverAndSync(runCtx, app.DiscoverAndSyncRequest{Observe: setPhase})
	if err != nil {
		return nil, err
	}
	s.log.Info("scheduled discovery done: total=%d new=%d synced=%d", report.Discovery.Total, report.Discovery.NewFound, report.Sync.Success)
	return report, nil
}

func (s *Scheduler) runSync(ctx context.Context, setPhase func(string)) (interface{}, error) {
	runCtx, cancel := context.WithTimeout(ctx, s.cfg.RunTimeout)
	defer cancel()

	setPhase(app.PhaseSyncing)
	result, err := s.sync.SyncAll(runCtx)
	if err != nil {
		return nil, err
	}
	setPhase(app.PhaseDone)
	s.log.Info("scheduled sync done: total=%d synced=%d failed=%d", result.Total, result.Synced, result.Failed)
	return result, nil
}
