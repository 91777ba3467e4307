package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"

	"investorradar/domain/core"
	"investorradar/domain/signal"
	"investorradar/ports"
)

// signalRepository implements the SignalRepository interface
type signalRepository struct {
	db *sqlx.DB
}

// NewSignalRepository creates a new signal repository
func NewSignalRepository(db *sqlx.DB) ports.SignalRepository {
	return &signalRepository{db: db}
}

const signalColumns = `id, dataset_id, kind, title, COALESCE(summary, '') as summary,
	strength, confidence, window_days, created_at`

const insertSignalQuery = `INSERT INTO signals (
	id, dataset_id, kind, title, summary, strength, confidence, window_days, created_at
) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

// Create inserts a single signal
func (r *signalRepository) Create(ctx context.Context, sig *signal.Signal) error {
	_, err := r.db.ExecContext(ctx, insertSignalQuery,
		sig.ID, sig.DatasetID, sig.Kind, sig.Title, sig.Summary,
		sig.Strength, sig.Confidence, sig.WindowDays, sig.CreatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create signal: %w", err)
	}
	return nil
}

// ReplaceForDataset swaps a dataset's stored signals in one transaction
func (r *signalRepository) ReplaceForDataset(ctx context.Context, datasetID core.DatasetID, sigs []*signal.Signal) error {
	tx, err := r.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM signals WHERE dataset_id = $1`, datasetID); err != nil {
		return fmt.Errorf("failed to clear signals: %w", err)
	}

	for _, sig := range sigs {
		_, err := tx.ExecContext(ctx, insertSignalQuery,
			sig.ID, sig.DatasetID, sig.Kind, sig.Title, sig.Summary,
			sig.Strength, sig.Confidence, sig.WindowDays, sig.CreatedAt,
		)
		if err != nil {
			return fmt.Errorf("failed to insert signal: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit signal replacement: %w", err)
	}
	return nil
}

// GetByID fetches one signal
func (r *signalRepository) GetByID(ctx context.Context, id core.SignalID) (*signal.Signal, error) {
	query := `SELECT ` + signalColumns + ` FROM signals WHERE id = $1`

	sig, err := scanSignal(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", id, core.ErrSignalNotFound)
		}
		return nil, fmt.Errorf("failed to get signal: %w", err)
	}
	return sig, nil
}

// List returns a page of signals, strongest first
func (r *signalRepository) List(ctx context.Context, kind signal.Kind, limit, offset int) ([]*signal.Signal, error) {
	query := `SELECT ` + signalColumns + ` FROM signals`
	var args []interface{}

	if kind != "" {
		args = append(args, kind)
		query += fmt.Sprintf(" WHERE kind = $%d", len(args))
	}

	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY strength DESC, created_at DESC LIMIT $%d", len(args))
	args = append(args, offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query signals: %w", err)
	}
	defer rows.Close()

	return scanSignals(rows)
}

// ListForDataset returns every stored signal of one dataset
func (r *signalRepository) ListForDataset(ctx context.Context, datasetID core.DatasetID) ([]*signal.Signal, error) {
	query := `SELECT ` + signalColumns + ` FROM signals WHERE dataset_id = $1 ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query, datasetID)
	if err != nil {
		return nil, fmt.Errorf("failed to query dataset signals: %w", err)
	}
	defer rows.Close()

	return scanSignals(rows)
}

// CountByKind aggregates stored signal counts per kind
func (r *signalRepository) CountByKind(ctx context.Context) (map[signal.Kind]int, error) {
	query := `SELECT kind, COUNT(*) FROM signals GROUP BY kind`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count signals: %w", err)
	}
	defer rows.Close()

	counts := make(map[signal.Kind]int)
	for rows.Next() {
		var kind signal.Kind
		var count int
		if err := rows.Scan(&kind, &count); err != nil {
			return nil, fmt.Errorf("failed to scan signal count: %w", err)
		}
		counts[kind] = count
	}
	return counts, rows.Err()
}

// DeleteOlderThan prunes signals created before the cutoff
func (r *signalRepository) DeleteOlderThan(ctx context.Context, cutoff time.Time) (int64, error) {
	result, err := r.db.ExecContext(ctx, `DELETE FROM signals WHERE created_at < $1`, cutoff)
	if err != nil {
		return 0, fmt.Errorf("failed to prune signals: %w", err)
	}
	return result.RowsAffected()
}

func scanSignal(row rowScanner) (*signal.Signal, error) {
	var sig signal.Signal
	err := row.Scan(
		&sig.ID, &sig.DatasetID, &sig.Kind, &sig.Title, &sig.Summary,
		&sig.Strength, &sig.Confidence, &sig.WindowDays, &sig.CreatedAt,
	)
	if err != nil {
		return nil, err
	}
	return &sig, nil
}

func scanSignals(rows *sql.Rows) ([]*signal.Signal, error) {
	var sigs []*signal.Signal
	for rows.Next() {
		sig, err := scanSignal(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan signal: %w", err)
		}
		sigs = append(sigs, sig)
	}
	return sigs, rows.Err()
}
