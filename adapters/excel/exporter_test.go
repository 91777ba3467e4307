package excel

import (
	"bytes"
	"context"
	"strings"
	"testing"
	"time"

	"github.com/xuri/excelize/v2"

	"investorradar/domain/catalog"
	"investorradar/domain/signal"
	"investorradar/internal/config"
	"investorradar/internal/testkit"
)

func seededExporter(t *testing.T, dir string) (*Exporter, *catalog.DatasetRecord) {
	t.Helper()
	datasets := testkit.NewMemoryDatasetRepository()
	signals := testkit.NewMemorySignalRepository()

	record := catalog.NewFromDiscovery("11111111-2222-3333-4444-555555555555", "Building Permits", "تصاريح البناء", "construction", "discovery", "https://portal/dataset/111")
	record.RecordCount = 1250
	at := time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
	record.LastSyncAt = &at
	record.SyncStatus = catalog.SyncSynced
	datasets.Seed(record)
	datasets.Seed(catalog.NewFromDiscovery("66666666-7777-8888-9999-000000000000", "", "", "economy", "discovery", ""))

	sig := signal.New(record.ID, signal.KindGrowthSpike, "Growth spike in Building Permits", "summary", 0.8, 0.7, 30)
	if err := signals.Create(context.Background(), sig); err != nil {
		t.Fatalf("seed signal: %v", err)
	}

	return NewExporter(datasets, signals, config.ExportConfig{Dir: dir}, nil), record
}

func TestWriteWorkbook(t *testing.T) {
	exporter, record := seededExporter(t, t.TempDir())

	var buf bytes.Buffer
	if err := exporter.Write(context.Background(), &buf); err != nil {
		t.Fatalf("Write: %v", err)
	}

	file, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer file.Close()

	rows, err := file.GetRows(datasetSheet)
	if err != nil {
		t.Fatalf("GetRows(%s): %v", datasetSheet, err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected header plus 2 dataset rows, got %d", len(rows))
	}
	if rows[0][0] != "External ID" || rows[0][1] != "Name" {
		t.Fatalf("unexpected headers %v", rows[0])
	}

	var permits []string
	for _, row := range rows[1:] {
		if row[1] == "Building Permits" {
			permits = row
		}
	}
	if permits == nil {
		t.Fatalf("Building Permits row missing: %v", rows)
	}
	if permits[0] != record.ExternalID {
		t.Fatalf("external id %q", permits[0])
	}
	if permits[5] != "SYNCED" {
		t.Fatalf("status %q, want SYNCED", permits[5])
	}
	if permits[6] != "1250" {
		t.Fatalf("record count %q, want 1250", permits[6])
	}

	sigRows, err := file.GetRows(signalSheet)
	if err != nil {
		t.Fatalf("GetRows(%s): %v", signalSheet, err)
	}
	if len(sigRows) != 2 {
		t.Fatalf("expected header plus 1 signal row, got %d", len(sigRows))
	}
	if sigRows[1][1] != "growth_spike" {
		t.Fatalf("signal kind %q", sigRows[1][1])
	}
	if sigRows[1][0] != record.ID.String() {
		t.Fatalf("signal dataset id %q", sigRows[1][0])
	}
}

func TestSaveToDir(t *testing.T) {
	dir := t.TempDir()
	exporter, _ := seededExporter(t, dir)

	path, err := exporter.SaveToDir(context.Background())
	if err != nil {
		t.Fatalf("SaveToDir: %v", err)
	}
	if !strings.HasPrefix(path, dir) || !strings.HasSuffix(path, ".xlsx") {
		t.Fatalf("unexpected path %q", path)
	}

	file, err := excelize.OpenFile(path)
	if err != nil {
		t.Fatalf("OpenFile: %v", err)
	}
	defer file.Close()

	rows, err := file.GetRows(datasetSheet)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 3 {
		t.Fatalf("expected 3 rows, got %d", len(rows))
	}
}

func TestWriteEmptyRegistry(t *testing.T) {
	exporter := NewExporter(testkit.NewMemoryDatasetRepository(), testkit.NewMemorySignalRepository(), config.ExportConfig{Dir: t.TempDir()}, nil)

	var buf bytes.Buffer
	if err := exporter.Write(context.Background(), &buf); err != nil {
		t.Fatalf("Write: %v", err)
	}

	file, err := excelize.OpenReader(&buf)
	if err != nil {
		t.Fatalf("OpenReader: %v", err)
	}
	defer file.Close()

	rows, err := file.GetRows(datasetSheet)
	if err != nil {
		t.Fatalf("GetRows: %v", err)
	}
	if len(rows) != 1 {
		t.Fatalf("expected headers only, got %d rows", len(rows))
	}
}
