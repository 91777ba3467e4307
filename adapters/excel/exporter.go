// Package excel builds the admin export workbook from repository listings.
package excel

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/xuri/excelize/v2"

	"investorradar/domain/catalog"
	"investorradar/domain/signal"
	"investorradar/internal"
	"investorradar/internal/config"
	"investorradar/ports"
)

const (
	datasetSheet = "Datasets"
	signalSheet  = "Signals"

	// exportPageSize is how many rows each repository page pulls while
	// walking the full listing.
	exportPageSize = 500
)

var datasetHeaders = []string{
	"External ID", "Name", "Name (ar)", "Category", "Source", "Status",
	"Records", "Last Sync", "Active", "Source URL", "Created",
}

var signalHeaders = []string{
	"Dataset ID", "Kind", "Title", "Strength", "Confidence", "Window (days)", "Created",
}

// Exporter renders the dataset registry and its signals into an xlsx
// workbook.
type Exporter struct {
	datasets ports.DatasetRepository
	signals  ports.SignalRepository
	cfg      config.ExportConfig
	log      *internal.Logger
}

// NewExporter creates the export adapter
func NewExporter(datasets ports.DatasetRepository, signals ports.SignalRepository, cfg config.ExportConfig, logger *internal.Logger) *Exporter {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Exporter{
		datasets: datasets,
		signals:  signals,
		cfg:      cfg,
		log:      logger.Named("export"),
	}
}

// Write streams a fresh workbook to w.
func (e *Exporter) Write(ctx context.Context, w io.Writer) error {
	file, err := e.build(ctx)
	if err != nil {
		return err
	}
	defer file.Close()
	return file.Write(w)
}

// SaveToDir writes a timestamped workbook under the configured export
// directory and returns its path.
func (e *Exporter) SaveToDir(ctx context.Context) (string, error) {
	file, err := e.build(ctx)
	if err != nil {
		return "", err
	}
	defer file.Close()

	if err := os.MkdirAll(e.cfg.Dir, 0o755); err != nil {
		return "", fmt.Errorf("create export dir: %w", err)
	}
	path := filepath.Join(e.cfg.Dir, fmt.Sprintf("radar-export-%s.xlsx", time.Now().UTC().Format("20060102-150405")))
	if err := file.SaveAs(path); err != nil {
		return "", fmt.Errorf("save workbook: %w", err)
	}
	e.log.Info("export written: %s", path)
	return path, nil
}

func (e *Exporter) build(ctx context.Context) (*excelize.File, error) {
	records, err := e.allDatasets(ctx)
	if err != nil {
		return nil, fmt.Errorf("list datasets: %w", err)
	}
	sigs, err := e.allSignals(ctx)
	if err != nil {
		return nil, fmt.Errorf("list signals: %w", err)
	}

	file := excelize.NewFile()
	if err := file.SetSheetName("Sheet1", datasetSheet); err != nil {
		file.Close()
		return nil, err
	}
	if _, err := file.NewSheet(signalSheet); err != nil {
		file.Close()
		return nil, err
	}

	if err := e.fillDatasets(file, records); err != nil {
		file.Close()
		return nil, err
	}
	if err := e.fillSignals(file, sigs); err != nil {
		file.Close()
		return nil, err
	}

	e.log.Debug("workbook built: %d datasets, %d signals", len(records), len(sigs))
	return file, nil
}

func (e *Exporter) fillDatasets(file *excelize.File, records []*catalog.DatasetRecord) error {
	if err := writeRow(file, datasetSheet, 1, toCells(datasetHeaders)); err != nil {
		return err
	}
	for i, record := range records {
		lastSync := ""
		if record.LastSyncAt != nil {
			lastSync = record.LastSyncAt.UTC().Format(time.RFC3339)
		}
		row := []interface{}{
			record.ExternalID,
			record.Name,
			record.NameAr,
			record.Category,
			record.Source,
			string(record.SyncStatus),
			record.RecordCount,
			lastSync,
			record.IsActive,
			record.SourceURL,
			record.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := writeRow(file, datasetSheet, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

func (e *Exporter) fillSignals(file *excelize.File, sigs []*signal.Signal) error {
	if err := writeRow(file, signalSheet, 1, toCells(signalHeaders)); err != nil {
		return err
	}
	for i, sig := range sigs {
		row := []interface{}{
			sig.DatasetID.String(),
			string(sig.Kind),
			sig.Title,
			sig.Strength,
			sig.Confidence,
			sig.WindowDays,
			sig.CreatedAt.UTC().Format(time.RFC3339),
		}
		if err := writeRow(file, signalSheet, i+2, row); err != nil {
			return err
		}
	}
	return nil
}

// allDatasets walks the full listing page by page.
func (e *Exporter) allDatasets(ctx context.Context) ([]*catalog.DatasetRecord, error) {
	var out []*catalog.DatasetRecord
	for offset := 0; ; offset += exportPageSize {
		page, err := e.datasets.List(ctx, ports.DatasetFilter{}, exportPageSize, offset)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < exportPageSize {
			return out, nil
		}
	}
}

func (e *Exporter) allSignals(ctx context.Context) ([]*signal.Signal, error) {
	var out []*signal.Signal
	for offset := 0; ; offset += exportPageSize {
		page, err := e.signals.List(ctx, "", exportPageSize, offset)
		if err != nil {
			return nil, err
		}
		out = append(out, page...)
		if len(page) < exportPageSize {
			return out, nil
		}
	}
}

func writeRow(file *excelize.File, sheet string, row int, values []interface{}) error {
	cell, err := excelize.CoordinatesToCellName(1, row)
	if err != nil {
		return err
	}
	return file.SetSheetRow(sheet, cell, &values)
}

func toCells(headers []string) []interface{} {
	out := make([]interface{}, len(headers))
	for i, h := range headers {
		out[i] = h
	}
	return out
}
