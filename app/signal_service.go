package app

import (
	"context"
	"fmt"
	"time"

	"investorradar/domain/core"
	"investorradar/domain/signal"
	"investorradar/internal"
	"investorradar/internal/config"
	"investorradar/internal/errors"
	"investorradar/internal/signals"
	"investorradar/ports"
)

const (
	defaultSignalPageSize = 50
	maxSignalPageSize     = 200
)

// SignalService recomputes and serves derived signals. A refresh walks
// every active dataset, evaluates its snapshot history, and swaps the
// stored signal set per dataset; stale rows are pruned afterwards.
type SignalService struct {
	datasets  ports.DatasetRepository
	snapshots ports.SnapshotRepository
	signals   ports.SignalRepository
	publisher ports.EventPublisher
	engine    *signals.Engine
	cfg       config.SyncConfig
	log       *internal.Logger
}

// SignalListRequest filters the signal listing
type SignalListRequest struct {
	Kind   string `json:"kind,omitempty"`
	Limit  int    `json:"limit,omitempty"`
	Offset int    `json:"offset,omitempty"`
}

// RefreshResult summarizes one signal sweep
type RefreshResult struct {
	Datasets int   `json:"datasets"`
	Signals  int   `json:"signals"`
	Failed   int   `json:"failed"`
	Pruned   int64 `json:"pruned"`
}

// NewSignalService creates the signal engine orchestrator
func NewSignalService(datasets ports.DatasetRepository, snapshots ports.SnapshotRepository, signalRepo ports.SignalRepository, publisher ports.EventPublisher, cfg config.SyncConfig, logger *internal.Logger) *SignalService {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	engine := signals.NewEngine(signals.Config{
		SpikeThreshold:  cfg.SpikeThreshold,
		TrendMinSlope:   cfg.TrendMinSlope,
		MinObservations: cfg.MinObservations,
		WindowDays:      cfg.SignalWindow,
	})
	return &SignalService{
		datasets:  datasets,
		snapshots: snapshots,
		signals:   signalRepo,
		publisher: publisher,
		engine:    engine,
		cfg:       cfg,
		log:       logger.Named("signals"),
	}
}

// Refresh recomputes signals for every active dataset. Per-dataset
// failures are counted and skipped; the sweep never aborts on one bad
// history.
func (s *SignalService) Refresh(ctx context.Context) (*RefreshResult, error) {
	records, err := s.datasets.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	since := time.Now().UTC().AddDate(0, 0, -s.cfg.SignalWindow)
	result := &RefreshResult{}
	for _, record := range records {
		if ctx.Err() != nil {
			s.log.Warn("signal refresh interrupted after %d datasets: %v", result.Datasets, ctx.Err())
			break
		}

		snaps, err := s.snapshots.ListForDataset(ctx, record.ID, since)
		if err != nil {
			s.log.Error("snapshot history read failed for %s: %v", record.ID, err)
			result.Failed++
			continue
		}

		sigs := s.engine.Evaluate(signals.Series{
			Record:    record,
			Snapshots: snaps,
			Window:    s.cfg.SignalWindow,
		})
		if err := s.signals.ReplaceForDataset(ctx, record.ID, sigs); err != nil {
			s.log.Error("signal replace failed for %s: %v", record.ID, err)
			result.Failed++
			continue
		}

		result.Datasets++
		result.Signals += len(sigs)
		for _, sig := range sigs {
			s.publishSignal(ctx, sig)
		}
	}

	cutoff := time.Now().UTC().AddDate(0, 0, -s.cfg.SignalWindow)
	pruned, err := s.signals.DeleteOlderThan(ctx, cutoff)
	if err != nil {
		s.log.Warn("stale signal prune failed: %v", err)
	} else {
		result.Pruned = pruned
	}

	s.log.Info("signal refresh done: datasets=%d signals=%d failed=%d pruned=%d",
		result.Datasets, result.Signals, result.Failed, result.Pruned)
	return result, nil
}

// List returns a page of signals, strongest first.
func (s *SignalService) List(ctx context.Context, req SignalListRequest) ([]*signal.Signal, error) {
	kind := signal.Kind(req.Kind)
	if req.Kind != "" && !kind.Valid() {
		return nil, errors.InvalidInput(fmt.Sprintf("unknown signal kind %q", req.Kind))
	}

	limit := req.Limit
	if limit <= 0 {
		limit = defaultSignalPageSize
	}
	if limit > maxSignalPageSize {
		limit = maxSignalPageSize
	}
	offset := req.Offset
	if offset < 0 {
		offset = 0
	}
	return s.signals.List(ctx, kind, limit, offset)
}

// ForDataset returns the stored signals of one dataset.
func (s *SignalService) ForDataset(ctx context.Context, datasetID core.DatasetID) ([]*signal.Signal, error) {
	return s.signals.ListForDataset(ctx, datasetID)
}

// CountByKind aggregates stored signal counts per kind.
func (s *SignalService) CountByKind(ctx context.Context) (map[signal.Kind]int, error) {
	return s.signals.CountByKind(ctx)
}

func (s *SignalService) publishSignal(ctx context.Context, sig *signal.Signal) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, ports.EventSignalCreated, sig); err != nil {
		s.log.Warn("event publish failed for %s: %v", ports.EventSignalCreated, err)
	}
}
