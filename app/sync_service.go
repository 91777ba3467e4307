package app

import (
	"context"
	"strings"
	"sync"
	"time"

	"investorradar/domain/catalog"
	"investorradar/domain/core"
	"investorradar/internal"
	"investorradar/internal/config"
	"investorradar/internal/extract"
	"investorradar/ports"
)

// SyncService reconciles discovered catalog tuples against the dataset
// registry and runs the data-content sync pass. Reconciliation is
// best-effort: a malformed item never aborts the batch, it is recorded as
// a typed failure and the loop moves on.
type SyncService struct {
	client    ports.CatalogClient
	datasets  ports.DatasetRepository
	snapshots ports.SnapshotRepository
	publisher ports.EventPublisher
	cfg       config.SyncConfig
	log       *internal.Logger
}

// ReconcileRequest is one reconciliation batch. Category is the fallback
// for entries that do not carry their own crawl category.
type ReconcileRequest struct {
	Entries  []catalog.CatalogEntry `json:"entries"`
	Category string                 `json:"category,omitempty"`
	Source   string                 `json:"source,omitempty"`
}

// ContentSyncResult aggregates a data-content pass over active records
type ContentSyncResult struct {
	Total  int `json:"total"`
	Synced int `json:"synced"`
	Failed int `json:"failed"`
}

// NewSyncService creates a sync orchestrator
func NewSyncService(client ports.CatalogClient, datasets ports.DatasetRepository, snapshots ports.SnapshotRepository, publisher ports.EventPublisher, cfg config.SyncConfig, logger *internal.Logger) *SyncService {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &SyncService{
		client:    client,
		datasets:  datasets,
		snapshots: snapshots,
		publisher: publisher,
		cfg:       cfg,
		log:       logger.Named("sync"),
	}
}

// Reconcile processes the batch sequentially. Writes are issued one at a
// time, so the end state of an externalId reflects the last tuple that
// referenced it in iteration order.
func (s *SyncService) Reconcile(ctx context.Context, req ReconcileRequest) *catalog.SyncResult {
	result := &catalog.SyncResult{}
	for _, entry := range req.Entries {
		if ctx.Err() != nil {
			s.log.Warn("reconcile batch interrupted after %d of %d items: %v", result.Total, len(req.Entries), ctx.Err())
			break
		}
		category := entry.Category
		if category == "" {
			category = req.Category
		}
		result.Record(s.reconcileOne(ctx, entry, category, req.Source))
	}

	for _, failure := range result.Failures() {
		s.log.Error("reconcile item failed: %v", failure)
	}
	s.log.Info("reconcile batch done: total=%d created=%d updated=%d skipped=%d failed=%d",
		result.Total, result.Created, result.Updated, result.Skipped, result.Failed)
	return result
}

// reconcileOne applies one discovered tuple to the registry.
func (s *SyncService) reconcileOne(ctx context.Context, entry catalog.CatalogEntry, category, source string) catalog.ItemResult {
	externalID := strings.ToLower(strings.TrimSpace(entry.ExternalID))
	if externalID == "" || extract.Sentinel(externalID) {
		return failedItem(externalID, catalog.FailureInvalid, core.ErrMissingExternalID)
	}

	existing, err := s.datasets.FindByExternalID(ctx, externalID)
	if err != nil {
		return failedItem(externalID, catalog.FailureStorage, err)
	}

	if existing != nil {
		// Category reflects the last discovery pass that claimed the
		// record: overwrite on drift, otherwise leave the row untouched.
		if category == "" || existing.Category == category {
			return catalog.ItemResult{ExternalID: externalID, Outcome: catalog.OutcomeSkipped}
		}
		if err := s.datasets.UpdateCategory(ctx, existing.ID, category); err != nil {
			return failedItem(externalID, catalog.FailureStorage, err)
		}
		s.publish(ctx, ports.EventDatasetUpdated, map[string]interface{}{
			"id": existing.ID, "external_id": externalID, "category": category,
		})
		return catalog.ItemResult{ExternalID: externalID, Outcome: catalog.OutcomeUpdated}
	}

	record := catalog.NewFromDiscovery(externalID, entry.Title, entry.TitleAr, category, source, "")
	if err := record.Validate(); err != nil {
		return failedItem(externalID, catalog.FailureInvalid, err)
	}

	if err := s.datasets.Create(ctx, record); err != nil {
		if core.IsConflictError(err) {
			// A concurrent run won the create race. The row exists now,
			// which is all this batch needed.
			if winner, rerr := s.datasets.FindByExternalID(ctx, externalID); rerr == nil && winner != nil {
				return catalog.ItemResult{ExternalID: externalID, Outcome: catalog.OutcomeSkipped}
			}
			return failedItem(externalID, catalog.FailureConflict, err)
		}
		return failedItem(externalID, catalog.FailureStorage, err)
	}

	s.publish(ctx, ports.EventDatasetCreated, record)
	return catalog.ItemResult{ExternalID: externalID, Outcome: catalog.OutcomeCreated}
}

// SyncAll runs the data-content pass over every active record: refresh the
// detail fields from the catalog, flip syncStatus, and append a snapshot
// point per synced record. Fetches run on a small worker pool; each record
// is written by exactly one goroutine.
func (s *SyncService) SyncAll(ctx context.Context) (*ContentSyncResult, error) {
	records, err := s.datasets.ListActive(ctx)
	if err != nil {
		return nil, err
	}

	result := &ContentSyncResult{Total: len(records)}
	if len(records) == 0 {
		return result, nil
	}

	workers := s.cfg.Workers
	if workers < 1 {
		workers = 1
	}
	if workers > len(records) {
		workers = len(records)
	}

	jobs := make(chan *catalog.DatasetRecord)
	var mu sync.Mutex
	var wg sync.WaitGroup
	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for record := range jobs {
				err := s.syncRecord(ctx, record)
				mu.Lock()
				if err != nil {
					result.Failed++
				} else {
					result.Synced++
				}
				mu.Unlock()
			}
		}()
	}

	for _, record := range records {
		if ctx.Err() != nil {
			break
		}
		jobs <- record
	}
	close(jobs)
	wg.Wait()

	s.publish(ctx, ports.EventSyncCompleted, result)
	s.log.Info("content sync done: total=%d synced=%d failed=%d", result.Total, result.Synced, result.Failed)
	return result, nil
}

// SyncOne refreshes a single dataset by internal id.
func (s *SyncService) SyncOne(ctx context.Context, id core.DatasetID) (*catalog.DatasetRecord, error) {
	record, err := s.datasets.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.syncRecord(ctx, record); err != nil {
		return nil, err
	}
	return s.datasets.GetByID(ctx, id)
}

// syncRecord fetches the catalog detail for one record and persists the
// outcome. Any failure marks the record FAILED so operators can find and
// requeue it; the original status is never silently kept.
func (s *SyncService) syncRecord(ctx context.Context, record *catalog.DatasetRecord) error {
	detailCtx, cancel := context.WithTimeout(ctx, s.cfg.DetailTimeout)
	defer cancel()

	detail, err := s.client.FetchDataset(detailCtx, record.ExternalID)
	if err != nil {
		s.log.Debug("detail fetch failed for %s: %v", record.ExternalID, err)
		if serr := s.datasets.UpdateSyncStatus(ctx, record.ID, catalog.SyncFailed); serr != nil {
			s.log.Error("could not mark dataset %s failed: %v", record.ID, serr)
		}
		return err
	}

	if err := s.datasets.UpdateDetails(ctx, record.ID, detail.Title, detail.TitleAr, detail.Description, detail.SourceURL); err != nil {
		return err
	}
	if err := s.datasets.MarkSynced(ctx, record.ID, detail.RecordCount, time.Now().UTC()); err != nil {
		return err
	}

	snapshot := catalog.NewSnapshot(record.ID, detail.RecordCount)
	if err := s.snapshots.Save(ctx, snapshot); err != nil {
		// The sync itself succeeded; a lost snapshot point only thins the
		// signal history.
		s.log.Warn("snapshot save failed for %s: %v", record.ID, err)
	}

	s.publish(ctx, ports.EventDatasetUpdated, map[string]interface{}{
		"id": record.ID, "external_id": record.ExternalID, "record_count": detail.RecordCount,
	})
	return nil
}

func (s *SyncService) publish(ctx context.Context, routingKey string, payload interface{}) {
	if s.publisher == nil {
		return
	}
	if err := s.publisher.Publish(ctx, routingKey, payload); err != nil {
		s.log.Warn("event publish failed for %s: %v", routingKey, err)
	}
}

func failedItem(externalID string, kind catalog.FailureKind, err error) catalog.ItemResult {
	return catalog.ItemResult{
		ExternalID: externalID,
		Outcome:    catalog.OutcomeFailed,
		Err:        &catalog.ReconcileError{ExternalID: externalID, Kind: kind, Err: err},
	}
}
