package ports

import (
	"context"
	"time"

	"investorradar/domain/catalog"
	"investorradar/domain/core"
	"investorradar/domain/signal"
)

// SignalRepository persists derived investment signals.
type SignalRepository interface {
	// Create inserts a single signal.
	Create(ctx context.Context, sig *signal.Signal) error

	// ReplaceForDataset swaps the stored signals of one dataset for the
	// given set in a single transaction. Used by signal refreshes.
	ReplaceForDataset(ctx context.Context, datasetID core.DatasetID, sigs []*signal.Signal) error

	// GetByID fetches one signal, core.ErrSignalNotFound when missing.
	GetByID(ctx context.Context, id core.SignalID) (*signal.Signal, error)

	// List returns a page of signals, strongest first. Kind "" lists all kinds.
	List(ctx context.Context, kind signal.Kind, limit, offset int) ([]*signal.Signal, error)

	// ListForDataset returns every stored signal of one dataset.
	ListForDataset(ctx context.Context, datasetID core.DatasetID) ([]*signal.Signal, error)

	// CountByKind aggregates stored signal counts per kind.
	CountByKind(ctx context.Context) (map[signal.Kind]int, error)

	// DeleteOlderThan prunes signals created before the cutoff,
	// returning the number of rows removed.
	DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error)
}

// SnapshotRepository stores per-dataset record-count observations taken
// by content sync passes. Snapshots feed the signal engine.
type SnapshotRepository interface {
	// Save appends one observation.
	Save(ctx context.Context, snap *catalog.Snapshot) error

	// ListForDataset returns the observations of one dataset taken at or
	// after since, oldest first.
	ListForDataset(ctx context.Context, datasetID core.DatasetID, since time.Time) ([]*catalog.Snapshot, error)
}
