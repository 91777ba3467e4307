package app

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"investorradar/domain/catalog"
	"investorradar/domain/core"
	"investorradar/internal/config"
	"investorradar/internal/testkit"
	"investorradar/ports"
)

type syncFixture struct {
	svc       *SyncService
	client    *testkit.ScriptedCatalogClient
	datasets  *testkit.MemoryDatasetRepository
	snapshots *testkit.MemorySnapshotRepository
	publisher *testkit.CapturingPublisher
}

func newSyncFixture() *syncFixture {
	f := &syncFixture{
		client:    testkit.NewScriptedCatalogClient(),
		datasets:  testkit.NewMemoryDatasetRepository(),
		snapshots: testkit.NewMemorySnapshotRepository(),
		publisher: testkit.NewCapturingPublisher(),
	}
	cfg := config.SyncConfig{Workers: 2, DetailTimeout: time.Second}
	f.svc = NewSyncService(f.client, f.datasets, f.snapshots, f.publisher, cfg, nil)
	return f
}

func entries(ids ...string) []catalog.CatalogEntry {
	out := make([]catalog.CatalogEntry, 0, len(ids))
	for _, id := range ids {
		out = append(out, catalog.CatalogEntry{ExternalID: id})
	}
	return out
}

func TestReconcileCreatesFreshBatch(t *testing.T) {
	f := newSyncFixture()
	batch := entries(strings.ToUpper(idAlpha), idBravo, idCoral)

	result := f.svc.Reconcile(context.Background(), ReconcileRequest{
		Entries: batch, Category: "economy", Source: "open-data-portal",
	})

	if result.Created != 3 || result.Updated != 0 || result.Skipped != 0 || result.Failed != 0 {
		t.Fatalf("unexpected tallies: %+v", result)
	}
	record, err := f.datasets.FindByExternalID(context.Background(), idAlpha)
	if err != nil || record == nil {
		t.Fatalf("uppercase id was not normalized before create: %v", err)
	}
	if record.SyncStatus != catalog.SyncPending || !record.IsActive {
		t.Errorf("fresh record should be active and PENDING, got %+v", record)
	}
	if record.Category != "economy" || record.Source != "open-data-portal" {
		t.Errorf("provenance lost: %+v", record)
	}
	if got := f.publisher.ByKey(ports.EventDatasetCreated); len(got) != 3 {
		t.Errorf("expected 3 created events, got %d", len(got))
	}
}

func TestReconcileIsIdempotent(t *testing.T) {
	f := newSyncFixture()
	req := ReconcileRequest{Entries: entries(idAlpha, idBravo, idCoral), Category: "economy"}

	first := f.svc.Reconcile(context.Background(), req)
	second := f.svc.Reconcile(context.Background(), req)

	if first.Created != 3 {
		t.Fatalf("first run created %d, want 3", first.Created)
	}
	if second.Created != 0 || second.Skipped != 3 {
		t.Errorf("second run: created=%d skipped=%d, want 0/3", second.Created, second.Skipped)
	}
}

func TestReconcileOverwritesCategoryDrift(t *testing.T) {
	f := newSyncFixture()
	f.datasets.Seed(catalog.NewFromDiscovery(idAlpha, "Permits", "", "A", "portal", ""))

	result := f.svc.Reconcile(context.Background(), ReconcileRequest{
		Entries: entries(idAlpha), Category: "B",
	})

	if result.Updated != 1 || result.Created != 0 {
		t.Fatalf("drift should update in place: %+v", result)
	}
	record, _ := f.datasets.FindByExternalID(context.Background(), idAlpha)
	if record.Category != "B" {
		t.Errorf("category = %q, want B (last pass wins)", record.Category)
	}
	if got := f.publisher.ByKey(ports.EventDatasetUpdated); len(got) != 1 {
		t.Errorf("expected 1 updated event, got %d", len(got))
	}
}

func TestReconcilePartialOverlap(t *testing.T) {
	f := newSyncFixture()
	f.datasets.Seed(catalog.NewFromDiscovery(idAlpha, "", "", "X", "portal", ""))

	result := f.svc.Reconcile(context.Background(), ReconcileRequest{
		Entries: entries(idAlpha, idBravo), Category: "Y",
	})

	if result.Created != 1 || result.Updated != 1 || result.Skipped != 0 {
		t.Errorf("tallies = created:%d updated:%d skipped:%d, want 1/1/0",
			result.Created, result.Updated, result.Skipped)
	}
}

func TestReconcileFullOverlapNoDrift(t *testing.T) {
	f := newSyncFixture()
	f.datasets.Seed(catalog.NewFromDiscovery(idAlpha, "", "", "Y", "portal", ""))

	result := f.svc.Reconcile(context.Background(), ReconcileRequest{
		Entries: entries(idAlpha), Category: "Y",
	})

	if result.Created != 0 || result.Updated != 0 || result.Skipped != 1 {
		t.Errorf("tallies = %+v, want skipped=1 only", result)
	}
}

func TestReconcileEmptyCategoryNeverOverwrites(t *testing.T) {
	f := newSyncFixture()
	f.datasets.Seed(catalog.NewFromDiscovery(idAlpha, "", "", "X", "portal", ""))

	result := f.svc.Reconcile(context.Background(), ReconcileRequest{Entries: entries(idAlpha)})

	if result.Skipped != 1 || result.Updated != 0 {
		t.Errorf("uncategorized batch should skip known ids: %+v", result)
	}
	record, _ := f.datasets.FindByExternalID(context.Background(), idAlpha)
	if record.Category != "X" {
		t.Errorf("category clobbered to %q", record.Category)
	}
}

func TestReconcileSynthesizesPlaceholderNames(t *testing.T) {
	f := newSyncFixture()
	const id = "abcd1234-5678-90ab-cdef-1234567890ab"

	f.svc.Reconcile(context.Background(), ReconcileRequest{Entries: entries(id), Category: "economy"})

	record, _ := f.datasets.FindByExternalID(context.Background(), id)
	if record == nil {
		t.Fatal("record was not created")
	}
	if !strings.Contains(record.Name, "abcd1234") {
		t.Errorf("placeholder name %q should contain the id prefix", record.Name)
	}
	if record.NameAr == "" {
		t.Error("expected an Arabic placeholder name")
	}
}

func TestReconcileKeepsDiscoveredTitles(t *testing.T) {
	f := newSyncFixture()
	batch := []catalog.CatalogEntry{{ExternalID: idAlpha, Title: "Hotel Occupancy", TitleAr: "إشغال الفنادق"}}

	f.svc.Reconcile(context.Background(), ReconcileRequest{Entries: batch, Category: "tourism"})

	record, _ := f.datasets.FindByExternalID(context.Background(), idAlpha)
	if record.Name != "Hotel Occupancy" || record.NameAr != "إشغال الفنادق" {
		t.Errorf("discovered titles lost: %+v", record)
	}
}

func TestReconcileRecordsInvalidItems(t *testing.T) {
	f := newSyncFixture()
	batch := []catalog.CatalogEntry{
		{ExternalID: ""},
		{ExternalID: "00000000-0000-0000-0000-000000000000"},
		{ExternalID: idAlpha},
	}

	result := f.svc.Reconcile(context.Background(), ReconcileRequest{Entries: batch, Category: "economy"})

	if result.Failed != 2 || result.Created != 1 {
		t.Fatalf("tallies = %+v, want failed=2 created=1", result)
	}
	for _, failure := range result.Failures() {
		if failure.Kind != catalog.FailureInvalid {
			t.Errorf("failure kind = %s, want invalid", failure.Kind)
		}
	}
}

func TestReconcileResolvesCreateRace(t *testing.T) {
	f := newSyncFixture()
	winner := catalog.NewFromDiscovery(idAlpha, "Winner", "", "economy", "portal", "")
	f.datasets.ConflictOn[idAlpha] = winner

	result := f.svc.Reconcile(context.Background(), ReconcileRequest{
		Entries: entries(idAlpha), Category: "economy",
	})

	if result.Skipped != 1 || result.Failed != 0 {
		t.Errorf("lost race should count as skipped after re-read: %+v", result)
	}
}

func TestReconcileCountsStorageFailures(t *testing.T) {
	f := newSyncFixture()
	f.datasets.FailNext = errors.New("connection reset")

	result := f.svc.Reconcile(context.Background(), ReconcileRequest{
		Entries: entries(idAlpha, idBravo), Category: "economy",
	})

	if result.Failed != 1 {
		t.Fatalf("Failed = %d, want 1", result.Failed)
	}
	if result.Created != 1 {
		t.Errorf("batch should continue past a storage failure, created = %d", result.Created)
	}
	failures := result.Failures()
	if len(failures) != 1 || failures[0].Kind != catalog.FailureStorage {
		t.Errorf("unexpected failures: %v", failures)
	}
}

func TestSyncAllRefreshesActiveRecords(t *testing.T) {
	f := newSyncFixture()
	f.datasets.Seed(
		catalog.NewFromDiscovery(idAlpha, "", "", "economy", "portal", ""),
		catalog.NewFromDiscovery(idBravo, "", "", "health", "portal", ""),
	)
	f.client.DetailFunc = func(externalID string) (*ports.DatasetDetail, error) {
		return &ports.DatasetDetail{
			ExternalID:  externalID,
			Title:       "Refreshed " + externalID[:8],
			Description: "refreshed by content pass",
			SourceURL:   "https://portal.example/datasets/view/" + externalID,
			RecordCount: 4200,
		}, nil
	}

	result, err := f.svc.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("SyncAll: %v", err)
	}
	if result.Total != 2 || result.Synced != 2 || result.Failed != 0 {
		t.Fatalf("result = %+v, want 2/2/0", result)
	}

	record, _ := f.datasets.FindByExternalID(context.Background(), idAlpha)
	if record.SyncStatus != catalog.SyncSynced {
		t.Errorf("status = %s, want SYNCED", record.SyncStatus)
	}
	if record.RecordCount != 4200 || record.LastSyncAt == nil {
		t.Errorf("sync bookkeeping missing: %+v", record)
	}
	if record.Name != "Refreshed "+idAlpha[:8] {
		t.Errorf("detail title not applied: %q", record.Name)
	}
	if record.SourceURL == "" {
		t.Error("source url not backfilled from the detail fetch")
	}

	if snaps := f.snapshots.All(); len(snaps) != 2 {
		t.Errorf("expected one snapshot per synced record, got %d", len(snaps))
	}
	if got := f.publisher.ByKey(ports.EventSyncCompleted); len(got) != 1 {
		t.Errorf("expected one sync.completed event, got %d", len(got))
	}
}

func TestSyncAllMarksFetchFailures(t *testing.T) {
	f := newSyncFixture()
	f.datasets.Seed(
		catalog.NewFromDiscovery(idAlpha, "", "", "economy", "portal", ""),
		catalog.NewFromDiscovery(idBravo, "", "", "health", "portal", ""),
	)
	f.client.DetailFunc = func(externalID string) (*ports.DatasetDetail, error) {
		if externalID == idBravo {
			return nil, errors.New("portal returned 500")
		}
		return &ports.DatasetDetail{ExternalID: externalID, RecordCount: 7}, nil
	}

	result, err := f.svc.SyncAll(context.Background())
	if err != nil {
		t.Fatalf("SyncAll: %v", err)
	}
	if result.Synced != 1 || result.Failed != 1 {
		t.Fatalf("result = %+v, want 1 synced / 1 failed", result)
	}
	record, _ := f.datasets.FindByExternalID(context.Background(), idBravo)
	if record.SyncStatus != catalog.SyncFailed {
		t.Errorf("failed fetch should mark the record FAILED, got %s", record.SyncStatus)
	}
}

func TestSyncOne(t *testing.T) {
	f := newSyncFixture()
	seeded := catalog.NewFromDiscovery(idAlpha, "", "", "economy", "portal", "")
	f.datasets.Seed(seeded)
	f.client.DetailFunc = func(externalID string) (*ports.DatasetDetail, error) {
		return &ports.DatasetDetail{ExternalID: externalID, Title: "Licensed Vehicles", RecordCount: 99}, nil
	}

	record, err := f.svc.SyncOne(context.Background(), seeded.ID)
	if err != nil {
		t.Fatalf("SyncOne: %v", err)
	}
	if record.SyncStatus != catalog.SyncSynced || record.RecordCount != 99 {
		t.Errorf("refreshed record = %+v", record)
	}
	if record.Name != "Licensed Vehicles" {
		t.Errorf("Name = %q, want detail title", record.Name)
	}
}

func TestSyncOneUnknownDataset(t *testing.T) {
	f := newSyncFixture()
	_, err := f.svc.SyncOne(context.Background(), core.DatasetID("no-such-id"))
	if !errors.Is(err, core.ErrDatasetNotFound) {
		t.Fatalf("expected ErrDatasetNotFound, got %v", err)
	}
}
