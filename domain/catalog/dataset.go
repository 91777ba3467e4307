// Package catalog holds the dataset catalog domain: persisted dataset
// records, discovery results, and sync reconciliation outcomes.
package catalog

import (
	"strings"
	"time"

	"investorradar/domain/core"
)

// SyncStatus tracks whether downstream data-content sync has completed for a record
type SyncStatus string

const (
	SyncPending SyncStatus = "PENDING"
	SyncSynced  SyncStatus = "SYNCED"
	SyncFailed  SyncStatus = "FAILED"
)

// Valid reports whether the status is one of the known lifecycle values
func (s SyncStatus) Valid() bool {
	switch s {
	case SyncPending, SyncSynced, SyncFailed:
		return true
	}
	return false
}

// DatasetRecord is the persisted catalog entity. ExternalID is the natural
// key for reconciliation: when non-empty it is unique across the table.
type DatasetRecord struct {
	ID          core.DatasetID `json:"id" db:"id"`
	ExternalID  string         `json:"external_id" db:"external_id"`
	Name        string         `json:"name" db:"name"`
	NameAr      string         `json:"name_ar" db:"name_ar"`
	Category    string         `json:"category" db:"category"`
	Source      string         `json:"source" db:"source"`
	SourceURL   string         `json:"source_url" db:"source_url"`
	Description string         `json:"description" db:"description"`
	Tags        []string       `json:"tags" db:"-"`
	Columns     []string       `json:"columns" db:"-"`
	Resources   []string       `json:"resources" db:"-"`
	IsActive    bool           `json:"is_active" db:"is_active"`
	SyncStatus  SyncStatus     `json:"sync_status" db:"sync_status"`
	RecordCount int64          `json:"record_count" db:"record_count"`
	LastSyncAt  *time.Time     `json:"last_sync_at,omitempty" db:"last_sync_at"`
	CreatedAt   time.Time      `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at" db:"updated_at"`
}

// placeholderPrefixLen is how many leading externalId characters feed a placeholder name
const placeholderPrefixLen = 8

const (
	placeholderNamePrefix   = "Dataset "
	placeholderNameArPrefix = "مجموعة بيانات "
)

func placeholderPrefix(externalID string) string {
	if len(externalID) <= placeholderPrefixLen {
		return externalID
	}
	return externalID[:placeholderPrefixLen]
}

// PlaceholderName synthesizes a display name from an externalId prefix
func PlaceholderName(externalID string) string {
	return placeholderNamePrefix + placeholderPrefix(externalID)
}

// PlaceholderNameAr synthesizes the Arabic display name from an externalId prefix
func PlaceholderNameAr(externalID string) string {
	return placeholderNameArPrefix + placeholderPrefix(externalID)
}

// NewFromDiscovery builds a minimal pending record for a freshly discovered
// externalId. Missing titles get placeholder names derived from the id prefix;
// metadata columns start empty and are filled by later backfill passes.
func NewFromDiscovery(externalID, name, nameAr, category, source, sourceURL string) *DatasetRecord {
	if name == "" {
		name = PlaceholderName(externalID)
	}
	if nameAr == "" {
		nameAr = PlaceholderNameAr(externalID)
	}
	now := time.Now().UTC()
	return &DatasetRecord{
		ID:          core.DatasetID(core.NewID()),
		ExternalID:  externalID,
		Name:        name,
		NameAr:      nameAr,
		Category:    category,
		Source:      source,
		SourceURL:   sourceURL,
		Tags:        []string{},
		Columns:     []string{},
		Resources:   []string{},
		IsActive:    true,
		SyncStatus:  SyncPending,
		CreatedAt:   now,
		UpdatedAt:   now,
	}
}

// HasPlaceholderName reports whether the record still carries a synthesized name
func (d *DatasetRecord) HasPlaceholderName() bool {
	return strings.HasPrefix(d.Name, placeholderNamePrefix) &&
		strings.TrimPrefix(d.Name, placeholderNamePrefix) == placeholderPrefix(d.ExternalID)
}

// CleanupCandidate reports whether the record is a candidate for manual
// deletion: still placeholder-named and carrying no descriptive metadata.
func (d *DatasetRecord) CleanupCandidate() bool {
	return d.HasPlaceholderName() && d.Description == "" && len(d.Tags) == 0 && len(d.Resources) == 0
}

// Validate checks the invariants required before a record can be persisted
func (d *DatasetRecord) Validate() error {
	if strings.TrimSpace(d.ExternalID) == "" {
		return core.ErrMissingExternalID
	}
	if !d.SyncStatus.Valid() {
		return core.NewValidationError("sync_status", string(d.SyncStatus))
	}
	return nil
}
