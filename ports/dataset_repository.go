package ports

import (
	"context"
	"time"

	"investorradar/domain/catalog"
	"investorradar/domain/core"
)

// DatasetFilter narrows dataset listings and counts.
// Zero values mean "no constraint".
type DatasetFilter struct {
	Category   string
	Status     catalog.SyncStatus
	Search     string
	ActiveOnly bool
}

// DatasetRepository persists the dataset registry keyed by externalId.
type DatasetRepository interface {
	// FindByExternalID looks up a dataset by its portal identifier.
	// Returns (nil, nil) when no row exists.
	FindByExternalID(ctx context.Context, externalID string) (*catalog.DatasetRecord, error)

	// GetByID fetches a dataset by internal id, core.ErrDatasetNotFound when missing.
	GetByID(ctx context.Context, id core.DatasetID) (*catalog.DatasetRecord, error)

	// Create inserts a new dataset row. Returns core.ErrDuplicateExternalID
	// when another row already holds the same externalId.
	Create(ctx context.Context, record *catalog.DatasetRecord) error

	// UpdateCategory overwrites the stored category of an existing dataset.
	UpdateCategory(ctx context.Context, id core.DatasetID, category string) error

	// UpdateSyncStatus transitions the sync state of a dataset.
	UpdateSyncStatus(ctx context.Context, id core.DatasetID, status catalog.SyncStatus) error

	// MarkSynced records a successful content pass: status SYNCED,
	// refreshed record count and sync timestamp.
	MarkSynced(ctx context.Context, id core.DatasetID, recordCount int64, at time.Time) error

	// UpdateDetails replaces the display fields filled in by detail fetches
	// and backfills. Empty arguments keep the stored value.
	UpdateDetails(ctx context.Context, id core.DatasetID, name, nameAr, description, sourceURL string) error

	// SetActive toggles the active flag without touching other columns.
	SetActive(ctx context.Context, id core.DatasetID, active bool) error

	// List returns a page of datasets matching the filter, newest first.
	List(ctx context.Context, filter DatasetFilter, limit, offset int) ([]*catalog.DatasetRecord, error)

	// ListActive returns every active dataset. Used by sync-all and export.
	ListActive(ctx context.Context) ([]*catalog.DatasetRecord, error)

	// ListPlaceholderNamed returns active datasets still carrying generated
	// placeholder titles, oldest first, capped at limit.
	ListPlaceholderNamed(ctx context.Context, limit int) ([]*catalog.DatasetRecord, error)

	// Count returns the number of datasets matching the filter.
	Count(ctx context.Context, filter DatasetFilter) (int, error)

	// ExternalIDs returns the set of known portal identifiers, optionally
	// restricted to one category. Used to diff discovery output.
	ExternalIDs(ctx context.Context, category string) (map[string]bool, error)

	// Categories returns the distinct categories present in the registry.
	Categories(ctx context.Context) ([]string, error)

	// CountByCategory aggregates active dataset counts per category.
	CountByCategory(ctx context.Context) (map[string]int, error)

	// CountBySyncStatus aggregates dataset counts per sync state.
	CountBySyncStatus(ctx context.Context) (map[catalog.SyncStatus]int, error)
}
