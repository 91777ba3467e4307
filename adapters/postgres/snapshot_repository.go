package postgres

import (
	"context"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"investorradar/domain/catalog"
	"investorradar/domain/core"
	"investorradar/ports"
)

// snapshotRepository implements the SnapshotRepository interface
type snapshotRepository struct {
	db *sqlx.DB
}

// NewSnapshotRepository creates a new snapshot repository
func NewSnapshotRepository(db *sqlx.DB) ports.SnapshotRepository {
	return &snapshotRepository{db: db}
}

// Save appends one record-count observation
func (r *snapshotRepository) Save(ctx context.Context, snap *catalog.Snapshot) error {
	query := `INSERT INTO dataset_snapshots (id, dataset_id, record_count, taken_at)
		VALUES ($1, $2, $3, $4)`

	_, err := r.db.ExecContext(ctx, query, snap.ID, snap.DatasetID, snap.RecordCount, snap.TakenAt)
	if err != nil {
		return fmt.Errorf("failed to save snapshot: %w", err)
	}
	return nil
}

// ListForDataset returns a dataset's observations since the cutoff, oldest first
func (r *snapshotRepository) ListForDataset(ctx context.Context, datasetID core.DatasetID, since time.Time) ([]*catalog.Snapshot, error) {
	query := `SELECT id, dataset_id, record_count, taken_at
		FROM dataset_snapshots
		WHERE dataset_id = $1 AND taken_at >= $2
		ORDER BY taken_at ASC`

	rows, err := r.db.QueryContext(ctx, query, datasetID, since)
	if err != nil {
		return nil, fmt.Errorf("failed to query snapshots: %w", err)
	}
	defer rows.Close()

	var snaps []*catalog.Snapshot
	for rows.Next() {
		var snap catalog.Snapshot
		if err := rows.Scan(&snap.ID, &snap.DatasetID, &snap.RecordCount, &snap.TakenAt); err != nil {
			return nil, fmt.Errorf("failed to scan snapshot: %w", err)
		}
		snaps = append(snaps, &snap)
	}
	return snaps, rows.Err()
}
