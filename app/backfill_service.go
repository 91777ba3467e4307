package app

import (
	"context"
	"fmt"

	"investorradar/domain/catalog"
	"investorradar/internal"
	"investorradar/internal/config"
	"investorradar/internal/extract"
	"investorradar/ports"
)

// BackfillService resolves placeholder-named records to real titles.
// Content syncs fill most names from the detail API; what remains are
// records whose detail payload carried none, so the backfill scrapes the
// dataset page itself and reads the markup.
type BackfillService struct {
	client   ports.CatalogClient
	datasets ports.DatasetRepository
	cfg      config.SyncConfig
	log      *internal.Logger
}

// BackfillResult reports one backfill pass
type BackfillResult struct {
	Scanned int `json:"scanned"`
	Updated int `json:"updated"`
	Skipped int `json:"skipped"`
	Failed  int `json:"failed"`
}

// NewBackfillService creates the metadata backfill pass
func NewBackfillService(client ports.CatalogClient, datasets ports.DatasetRepository, cfg config.SyncConfig, logger *internal.Logger) *BackfillService {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &BackfillService{
		client:   client,
		datasets: datasets,
		cfg:      cfg,
		log:      logger.Named("backfill"),
	}
}

// Run processes up to limit placeholder-named records, oldest first. A
// non-positive limit uses the configured batch size. Records whose pages
// yield nothing usable are counted skipped and retried on a later pass.
func (s *BackfillService) Run(ctx context.Context, limit int) (*BackfillResult, error) {
	if limit <= 0 {
		limit = s.cfg.BackfillBatch
	}

	result := &BackfillResult{}
	if !s.client.Ready() {
		s.log.Warn("catalog client not configured, skipping backfill")
		return result, nil
	}

	records, err := s.datasets.ListPlaceholderNamed(ctx, limit)
	if err != nil {
		return nil, err
	}
	result.Scanned = len(records)

	for _, record := range records {
		if ctx.Err() != nil {
			s.log.Warn("backfill interrupted after %d records: %v", result.Updated+result.Skipped+result.Failed, ctx.Err())
			break
		}
		updated, err := s.backfillOne(ctx, record)
		switch {
		case err != nil:
			s.log.Debug("backfill failed for %s: %v", record.ExternalID, err)
			result.Failed++
		case updated:
			result.Updated++
		default:
			result.Skipped++
		}
	}

	s.log.Info("backfill pass done: scanned=%d updated=%d skipped=%d failed=%d",
		result.Scanned, result.Updated, result.Skipped, result.Failed)
	return result, nil
}

// backfillOne tries the detail API first, then the dataset page. Returns
// (false, nil) when neither source had a usable title.
func (s *BackfillService) backfillOne(ctx context.Context, record *catalog.DatasetRecord) (bool, error) {
	fetchCtx, cancel := context.WithTimeout(ctx, s.cfg.DetailTimeout)
	defer cancel()

	pageURL := record.SourceURL
	if pageURL == "" {
		detail, err := s.client.FetchDataset(fetchCtx, record.ExternalID)
		if err != nil {
			return false, fmt.Errorf("detail fetch: %w", err)
		}
		if detail.Title != "" {
			if err := s.datasets.UpdateDetails(ctx, record.ID, detail.Title, detail.TitleAr, detail.Description, detail.SourceURL); err != nil {
				return false, err
			}
			return true, nil
		}
		pageURL = detail.SourceURL
	}
	if pageURL == "" {
		return false, nil
	}

	html, err := s.client.FetchPage(fetchCtx, pageURL)
	if err != nil {
		return false, fmt.Errorf("page fetch: %w", err)
	}

	meta := extract.DatasetPage(html, pageURL)
	if meta.Title == "" {
		return false, nil
	}
	if err := s.datasets.UpdateDetails(ctx, record.ID, meta.Title, "", meta.Description, pageURL); err != nil {
		return false, err
	}
	return true, nil
}
