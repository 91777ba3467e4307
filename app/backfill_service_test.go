package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"investorradar/domain/catalog"
	"investorradar/internal/config"
	"investorradar/internal/testkit"
	"investorradar/ports"
)

func newBackfillFixture() (*BackfillService, *testkit.ScriptedCatalogClient, *testkit.MemoryDatasetRepository) {
	client := testkit.NewScriptedCatalogClient()
	datasets := testkit.NewMemoryDatasetRepository()
	cfg := config.SyncConfig{BackfillBatch: 10, DetailTimeout: time.Second}
	return NewBackfillService(client, datasets, cfg, nil), client, datasets
}

func TestBackfillFromDetailPayload(t *testing.T) {
	svc, client, datasets := newBackfillFixture()
	datasets.Seed(catalog.NewFromDiscovery(idAlpha, "", "", "economy", "portal", ""))
	client.DetailFunc = func(externalID string) (*ports.DatasetDetail, error) {
		return &ports.DatasetDetail{
			ExternalID:  externalID,
			Title:       "Commercial Registrations",
			TitleAr:     "السجلات التجارية",
			Description: "Registered companies by month.",
			SourceURL:   "https://data.example.gov/datasets/view/" + externalID,
		}, nil
	}

	result, err := svc.Run(context.Background(), 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Scanned != 1 || result.Updated != 1 {
		t.Fatalf("result = %+v", result)
	}

	record, _ := datasets.FindByExternalID(context.Background(), idAlpha)
	if record.Name != "Commercial Registrations" || record.NameAr != "السجلات التجارية" {
		t.Errorf("names not backfilled: %+v", record)
	}
	if record.HasPlaceholderName() {
		t.Error("record should no longer carry a placeholder name")
	}
}

func TestBackfillScrapesDatasetPage(t *testing.T) {
	svc, client, datasets := newBackfillFixture()
	seeded := catalog.NewFromDiscovery(idAlpha, "", "", "economy", "portal",
		"https://data.example.gov/datasets/view/"+idAlpha)
	datasets.Seed(seeded)
	client.PageFunc = func(url string) (string, error) {
		return `<html><head><meta name="description" content="Issued building permits."></head>
			<body><h1>Building Permits</h1></body></html>`, nil
	}

	result, err := svc.Run(context.Background(), 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Updated != 1 {
		t.Fatalf("result = %+v", result)
	}

	record, _ := datasets.FindByExternalID(context.Background(), idAlpha)
	if record.Name != "Building Permits" || record.Description != "Issued building permits." {
		t.Errorf("page metadata not applied: %+v", record)
	}
	if record.NameAr == "" {
		t.Error("page scrape should keep the stored Arabic placeholder")
	}
}

func TestBackfillSkipsUnresolvablePages(t *testing.T) {
	svc, client, datasets := newBackfillFixture()
	datasets.Seed(catalog.NewFromDiscovery(idAlpha, "", "", "economy", "portal",
		"https://data.example.gov/datasets/view/"+idAlpha))
	client.PageFunc = func(url string) (string, error) {
		return "<html><body></body></html>", nil
	}

	result, err := svc.Run(context.Background(), 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Skipped != 1 || result.Updated != 0 {
		t.Errorf("result = %+v, want the bare page skipped", result)
	}
	record, _ := datasets.FindByExternalID(context.Background(), idAlpha)
	if !record.HasPlaceholderName() {
		t.Error("placeholder should survive an empty page")
	}
}

func TestBackfillCountsFetchFailures(t *testing.T) {
	svc, client, datasets := newBackfillFixture()
	datasets.Seed(catalog.NewFromDiscovery(idAlpha, "", "", "economy", "portal", ""))
	client.DetailFunc = func(externalID string) (*ports.DatasetDetail, error) {
		return nil, errors.New("portal 500")
	}

	result, err := svc.Run(context.Background(), 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Failed != 1 {
		t.Errorf("result = %+v", result)
	}
}

func TestBackfillIgnoresNamedRecords(t *testing.T) {
	svc, _, datasets := newBackfillFixture()
	datasets.Seed(catalog.NewFromDiscovery(idAlpha, "Hotel Occupancy", "", "tourism", "portal", ""))

	result, err := svc.Run(context.Background(), 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Scanned != 0 {
		t.Errorf("named records should not be scanned, got %+v", result)
	}
}

func TestBackfillUnconfiguredClient(t *testing.T) {
	svc, client, datasets := newBackfillFixture()
	client.NotReady = true
	datasets.Seed(catalog.NewFromDiscovery(idAlpha, "", "", "economy", "portal", ""))

	result, err := svc.Run(context.Background(), 0)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Scanned != 0 {
		t.Errorf("unconfigured client should short-circuit, got %+v", result)
	}
}
