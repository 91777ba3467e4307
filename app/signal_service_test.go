package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"investorradar/domain/catalog"
	"investorradar/domain/core"
	"investorradar/domain/signal"
	"investorradar/internal/config"
	apperrors "investorradar/internal/errors"
	"investorradar/internal/testkit"
	"investorradar/ports"
)

type signalFixture struct {
	svc       *SignalService
	datasets  *testkit.MemoryDatasetRepository
	snapshots *testkit.MemorySnapshotRepository
	signals   *testkit.MemorySignalRepository
	publisher *testkit.CapturingPublisher
}

func newSignalFixture() *signalFixture {
	f := &signalFixture{
		datasets:  testkit.NewMemoryDatasetRepository(),
		snapshots: testkit.NewMemorySnapshotRepository(),
		signals:   testkit.NewMemorySignalRepository(),
		publisher: testkit.NewCapturingPublisher(),
	}
	cfg := config.SyncConfig{
		SignalWindow:    30,
		SpikeThreshold:  2.0,
		TrendMinSlope:   0.5,
		MinObservations: 3,
	}
	f.svc = NewSignalService(f.datasets, f.snapshots, f.signals, f.publisher, cfg, nil)
	return f
}

func (f *signalFixture) seedHistory(t *testing.T, datasetID core.DatasetID, counts ...int64) {
	t.Helper()
	base := time.Now().UTC().AddDate(0, 0, -len(counts))
	for i, count := range counts {
		snap := &catalog.Snapshot{
			ID:          core.NewID(),
			DatasetID:   datasetID,
			RecordCount: count,
			TakenAt:     base.AddDate(0, 0, i+1),
		}
		if err := f.snapshots.Save(context.Background(), snap); err != nil {
			t.Fatalf("seed snapshot: %v", err)
		}
	}
}

func TestSignalRefresh(t *testing.T) {
	f := newSignalFixture()
	record := catalog.NewFromDiscovery(idAlpha, "Building Permits", "", "economy", "portal", "")
	f.datasets.Seed(record)
	f.seedHistory(t, record.ID, 100, 102, 103, 105, 106, 150)

	result, err := f.svc.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}

	// A fresh record with an outlier jump carries the novelty and spike
	// signals; the single jump is not enough fit for a trend.
	if result.Datasets != 1 || result.Signals != 2 || result.Failed != 0 {
		t.Fatalf("result = %+v, want 1 dataset / 2 signals", result)
	}

	stored, _ := f.signals.ListForDataset(context.Background(), record.ID)
	kinds := make(map[signal.Kind]bool)
	for _, sig := range stored {
		kinds[sig.Kind] = true
	}
	if !kinds[signal.KindGrowthSpike] || !kinds[signal.KindNewDataset] {
		t.Errorf("stored kinds = %v", kinds)
	}
	if got := f.publisher.ByKey(ports.EventSignalCreated); len(got) != 2 {
		t.Errorf("expected 2 signal events, got %d", len(got))
	}

	// A second sweep replaces rather than accumulates.
	if _, err := f.svc.Refresh(context.Background()); err != nil {
		t.Fatalf("second Refresh: %v", err)
	}
	stored, _ = f.signals.ListForDataset(context.Background(), record.ID)
	if len(stored) != 2 {
		t.Errorf("refresh should swap the signal set, found %d rows", len(stored))
	}
}

func TestSignalRefreshIsolatesFailures(t *testing.T) {
	f := newSignalFixture()
	f.datasets.Seed(
		catalog.NewFromDiscovery(idAlpha, "", "", "economy", "portal", ""),
		catalog.NewFromDiscovery(idBravo, "", "", "health", "portal", ""),
	)
	f.snapshots.FailNext = errors.New("history unavailable")

	result, err := f.svc.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if result.Failed != 1 || result.Datasets != 1 {
		t.Errorf("result = %+v, want one failed and one processed", result)
	}
}

func TestSignalRefreshPrunesStaleRows(t *testing.T) {
	f := newSignalFixture()
	orphan := signal.New(core.DatasetID(core.NewID()), signal.KindGrowthSpike, "old", "", 0.5, 0.5, 30)
	orphan.CreatedAt = time.Now().UTC().AddDate(0, 0, -60)
	if err := f.signals.Create(context.Background(), orphan); err != nil {
		t.Fatalf("seed signal: %v", err)
	}

	result, err := f.svc.Refresh(context.Background())
	if err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if result.Pruned != 1 {
		t.Errorf("Pruned = %d, want 1", result.Pruned)
	}
	if _, err := f.signals.GetByID(context.Background(), orphan.ID); !errors.Is(err, core.ErrSignalNotFound) {
		t.Errorf("stale signal should be gone, got %v", err)
	}
}

func TestSignalListFiltersByKind(t *testing.T) {
	f := newSignalFixture()
	datasetID := core.DatasetID(core.NewID())
	spike := signal.New(datasetID, signal.KindGrowthSpike, "spike", "", 0.9, 0.8, 30)
	trend := signal.New(datasetID, signal.KindSustainedTrend, "trend", "", 0.4, 0.7, 30)
	for _, sig := range []*signal.Signal{spike, trend} {
		if err := f.signals.Create(context.Background(), sig); err != nil {
			t.Fatalf("seed: %v", err)
		}
	}

	all, err := f.svc.List(context.Background(), SignalListRequest{})
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(all) != 2 || all[0].Kind != signal.KindGrowthSpike {
		t.Errorf("expected both signals strongest first, got %+v", all)
	}

	spikes, err := f.svc.List(context.Background(), SignalListRequest{Kind: "growth_spike"})
	if err != nil {
		t.Fatalf("List filtered: %v", err)
	}
	if len(spikes) != 1 || spikes[0].ID != spike.ID {
		t.Errorf("kind filter failed: %+v", spikes)
	}
}

func TestSignalListRejectsUnknownKind(t *testing.T) {
	f := newSignalFixture()
	_, err := f.svc.List(context.Background(), SignalListRequest{Kind: "sideways_drift"})
	if err == nil {
		t.Fatal("expected a validation error")
	}
	if apperrors.GetCode(err) != apperrors.CodeInvalidInput {
		t.Errorf("code = %s", apperrors.GetCode(err))
	}
}
