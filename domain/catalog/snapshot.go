package catalog

import (
	"time"

	"investorradar/domain/core"
)

// Snapshot is one point of a dataset's record-count history, written by the
// data-content sync pass and consumed by the signal engine.
type Snapshot struct {
	ID          core.ID        `json:"id" db:"id"`
	DatasetID   core.DatasetID `json:"dataset_id" db:"dataset_id"`
	RecordCount int64          `json:"record_count" db:"record_count"`
	TakenAt     time.Time      `json:"taken_at" db:"taken_at"`
}

// NewSnapshot captures the current record count for a dataset
func NewSnapshot(datasetID core.DatasetID, recordCount int64) *Snapshot {
	return &Snapshot{
		ID:          core.NewID(),
		DatasetID:   datasetID,
		RecordCount: recordCount,
		TakenAt:     time.Now().UTC(),
	}
}
