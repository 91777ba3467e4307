package app

import (
	"context"
	"testing"
	"time"

	"investorradar/domain/catalog"
	"investorradar/domain/feed"
	"investorradar/domain/signal"
	"investorradar/internal/config"
	"investorradar/internal/testkit"
)

type dashboardFixture struct {
	svc      *DashboardService
	datasets *testkit.MemoryDatasetRepository
	signals  *testkit.MemorySignalRepository
	content  *testkit.MemoryContentRepository
}

func newDashboardFixture() *dashboardFixture {
	f := &dashboardFixture{
		datasets: testkit.NewMemoryDatasetRepository(),
		signals:  testkit.NewMemorySignalRepository(),
		content:  testkit.NewMemoryContentRepository(),
	}
	cfg := config.CacheConfig{SummaryTTL: time.Minute, Size: 16}
	f.svc = NewDashboardService(f.datasets, f.signals, f.content, cfg, nil)
	return f
}

func (f *dashboardFixture) seedRegistry(t *testing.T) {
	t.Helper()
	ctx := context.Background()

	economy := catalog.NewFromDiscovery("11111111-1111-1111-1111-111111111111", "GDP Quarterly", "", "economy", "discovery", "")
	health := catalog.NewFromDiscovery("22222222-2222-2222-2222-222222222222", "Hospital Beds", "", "health", "discovery", "")
	parked := catalog.NewFromDiscovery("33333333-3333-3333-3333-333333333333", "Old Census", "", "economy", "manual", "")
	parked.IsActive = false
	f.datasets.Seed(economy, health, parked)

	if err := f.datasets.MarkSynced(ctx, economy.ID, 500, time.Now().UTC()); err != nil {
		t.Fatalf("MarkSynced: %v", err)
	}

	strong := signal.New(economy.ID, signal.KindGrowthSpike, "Growth spike in GDP Quarterly", "", 0.9, 0.8, 30)
	weak := signal.New(health.ID, signal.KindNewDataset, "New dataset: Hospital Beds", "", 0.3, 1, 30)
	for _, sig := range []*signal.Signal{strong, weak} {
		if err := f.signals.Create(ctx, sig); err != nil {
			t.Fatalf("seed signal: %v", err)
		}
	}

	item := feed.New("author-1", "Weekly radar", "body", nil)
	item.Publish()
	if err := f.content.Create(ctx, item); err != nil {
		t.Fatalf("seed content: %v", err)
	}
}

func TestDashboardSummaryAggregates(t *testing.T) {
	f := newDashboardFixture()
	f.seedRegistry(t)

	summary, err := f.svc.Summary(context.Background())
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}

	if summary.TotalDatasets != 3 {
		t.Fatalf("TotalDatasets = %d, want 3", summary.TotalDatasets)
	}
	if summary.ActiveDatasets != 2 {
		t.Fatalf("ActiveDatasets = %d, want 2", summary.ActiveDatasets)
	}
	if summary.BySyncStatus[catalog.SyncSynced] != 1 {
		t.Fatalf("synced count = %d, want 1", summary.BySyncStatus[catalog.SyncSynced])
	}
	if summary.SignalsByKind[signal.KindGrowthSpike] != 1 || summary.SignalsByKind[signal.KindNewDataset] != 1 {
		t.Fatalf("unexpected kind breakdown %+v", summary.SignalsByKind)
	}
	if len(summary.TopSignals) != 2 || summary.TopSignals[0].Strength < summary.TopSignals[1].Strength {
		t.Fatalf("expected strongest-first signals, got %+v", summary.TopSignals)
	}
	if summary.PublishedItems != 1 {
		t.Fatalf("PublishedItems = %d, want 1", summary.PublishedItems)
	}
	if summary.GeneratedAt.IsZero() {
		t.Fatal("GeneratedAt not stamped")
	}
}

func TestDashboardSummaryIsCached(t *testing.T) {
	f := newDashboardFixture()
	f.seedRegistry(t)
	ctx := context.Background()

	first, err := f.svc.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}

	extra := catalog.NewFromDiscovery("44444444-4444-4444-4444-444444444444", "Port Traffic", "", "transport", "discovery", "")
	f.datasets.Seed(extra)

	cached, err := f.svc.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary cached: %v", err)
	}
	if cached.TotalDatasets != first.TotalDatasets {
		t.Fatalf("cached summary recomputed: %d vs %d", cached.TotalDatasets, first.TotalDatasets)
	}

	f.svc.Invalidate()
	fresh, err := f.svc.Summary(ctx)
	if err != nil {
		t.Fatalf("Summary fresh: %v", err)
	}
	if fresh.TotalDatasets != 4 {
		t.Fatalf("expected recomputed total 4, got %d", fresh.TotalDatasets)
	}
}

func TestDashboardSummaryEmptyRegistry(t *testing.T) {
	f := newDashboardFixture()

	summary, err := f.svc.Summary(context.Background())
	if err != nil {
		t.Fatalf("Summary: %v", err)
	}
	if summary.TotalDatasets != 0 || summary.PublishedItems != 0 {
		t.Fatalf("expected empty summary, got %+v", summary)
	}
	if len(summary.TopSignals) != 0 {
		t.Fatalf("expected no signals, got %d", len(summary.TopSignals))
	}
}
