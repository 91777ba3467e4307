package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"investorradar/domain/catalog"
	"investorradar/domain/core"
	"investorradar/ports"
)

// datasetRepository implements the DatasetRepository interface
type datasetRepository struct {
	db *sqlx.DB
}

// NewDatasetRepository creates a new dataset repository
func NewDatasetRepository(db *sqlx.DB) ports.DatasetRepository {
	return &datasetRepository{db: db}
}

const datasetColumns = `
	id, COALESCE(external_id, '') as external_id, name, COALESCE(name_ar, '') as name_ar,
	COALESCE(category, '') as category, COALESCE(source, '') as source, COALESCE(source_url, '') as source_url,
	COALESCE(description, '') as description, tags, columns, resources,
	is_active, sync_status, COALESCE(record_count, 0) as record_count, last_sync_at, created_at, updated_at`

// isUniqueViolation reports whether err is a Postgres unique constraint
// violation (SQLSTATE 23505). Concurrent discovery runs can both attempt
// the same create; the constraint decides the loser.
func isUniqueViolation(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == "23505"
}

// Create inserts a new dataset into the database
func (r *datasetRepository) Create(ctx context.Context, record *catalog.DatasetRecord) error {
	tagsJSON, columnsJSON, resourcesJSON, err := marshalDatasetMetadata(record)
	if err != nil {
		return err
	}

	query := `INSERT INTO datasets (
		id, external_id, name, name_ar, category, source, source_url, description,
		tags, columns, resources, is_active, sync_status, record_count, last_sync_at,
		created_at, updated_at
	) VALUES (
		$1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12, $13, $14, $15, $16, $17
	)`

	_, err = r.db.ExecContext(ctx, query,
		record.ID, record.ExternalID, record.Name, record.NameAr, record.Category,
		record.Source, record.SourceURL, record.Description,
		tagsJSON, columnsJSON, resourcesJSON,
		record.IsActive, record.SyncStatus, record.RecordCount, record.LastSyncAt,
		record.CreatedAt, record.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("dataset %s: %w", record.ExternalID, core.ErrDuplicateExternalID)
		}
		return fmt.Errorf("failed to create dataset: %w", err)
	}

	return nil
}

// FindByExternalID looks up a dataset by its portal identifier
func (r *datasetRepository) FindByExternalID(ctx context.Context, externalID string) (*catalog.DatasetRecord, error) {
	query := `SELECT` + datasetColumns + ` FROM datasets WHERE external_id = $1`

	record, err := scanDataset(r.db.QueryRowContext(ctx, query, externalID))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to find dataset by external id: %w", err)
	}
	return record, nil
}

// GetByID retrieves a dataset by its internal ID
func (r *datasetRepository) GetByID(ctx context.Context, id core.DatasetID) (*catalog.DatasetRecord, error) {
	query := `SELECT` + datasetColumns + ` FROM datasets WHERE id = $1`

	record, err := scanDataset(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", id, core.ErrDatasetNotFound)
		}
		return nil, fmt.Errorf("failed to get dataset: %w", err)
	}
	return record, nil
}

// UpdateCategory overwrites the stored category of a dataset
func (r *datasetRepository) UpdateCategory(ctx context.Context, id core.DatasetID, category string) error {
	query := `UPDATE datasets SET category = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, category)
	if err != nil {
		return fmt.Errorf("failed to update dataset category: %w", err)
	}
	return requireRow(result, id)
}

// UpdateSyncStatus transitions the sync state of a dataset
func (r *datasetRepository) UpdateSyncStatus(ctx context.Context, id core.DatasetID, status catalog.SyncStatus) error {
	query := `UPDATE datasets SET sync_status = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, status)
	if err != nil {
		return fmt.Errorf("failed to update sync status: %w", err)
	}
	return requireRow(result, id)
}

// MarkSynced records a completed content pass for a dataset
func (r *datasetRepository) MarkSynced(ctx context.Context, id core.DatasetID, recordCount int64, at time.Time) error {
	query := `UPDATE datasets
		SET sync_status = $2, record_count = $3, last_sync_at = $4, updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, catalog.SyncSynced, recordCount, at)
	if err != nil {
		return fmt.Errorf("failed to mark dataset synced: %w", err)
	}
	return requireRow(result, id)
}

// UpdateDetails replaces display fields, keeping stored values for empty arguments
func (r *datasetRepository) UpdateDetails(ctx context.Context, id core.DatasetID, name, nameAr, description, sourceURL string) error {
	query := `UPDATE datasets SET
		name = COALESCE(NULLIF($2, ''), name),
		name_ar = COALESCE(NULLIF($3, ''), name_ar),
		description = COALESCE(NULLIF($4, ''), description),
		source_url = COALESCE(NULLIF($5, ''), source_url),
		updated_at = NOW()
	WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, name, nameAr, description, sourceURL)
	if err != nil {
		return fmt.Errorf("failed to update dataset details: %w", err)
	}
	return requireRow(result, id)
}

// SetActive toggles the soft-delete flag
func (r *datasetRepository) SetActive(ctx context.Context, id core.DatasetID, active bool) error {
	query := `UPDATE datasets SET is_active = $2, updated_at = NOW() WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, id, active)
	if err != nil {
		return fmt.Errorf("failed to update active flag: %w", err)
	}
	return requireRow(result, id)
}

// List returns a page of datasets matching the filter, newest first
func (r *datasetRepository) List(ctx context.Context, filter ports.DatasetFilter, limit, offset int) ([]*catalog.DatasetRecord, error) {
	query := `SELECT` + datasetColumns + ` FROM datasets`
	where, args := filterClauses(filter)
	query += where

	args = append(args, limit)
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT $%d", len(args))
	args = append(args, offset)
	query += fmt.Sprintf(" OFFSET $%d", len(args))

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query datasets: %w", err)
	}
	defer rows.Close()

	return scanDatasets(rows)
}

// ListActive returns every active dataset
func (r *datasetRepository) ListActive(ctx context.Context) ([]*catalog.DatasetRecord, error) {
	query := `SELECT` + datasetColumns + ` FROM datasets WHERE is_active = true ORDER BY created_at DESC`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query active datasets: %w", err)
	}
	defer rows.Close()

	return scanDatasets(rows)
}

// ListPlaceholderNamed returns active datasets whose display name is still
// the generated placeholder, oldest first
func (r *datasetRepository) ListPlaceholderNamed(ctx context.Context, limit int) ([]*catalog.DatasetRecord, error) {
	query := `SELECT` + datasetColumns + ` FROM datasets
		WHERE is_active = true
		  AND external_id <> ''
		  AND name = 'Dataset ' || left(external_id, 8)
		ORDER BY created_at ASC
		LIMIT $1`

	rows, err := r.db.QueryContext(ctx, query, limit)
	if err != nil {
		return nil, fmt.Errorf("failed to query placeholder datasets: %w", err)
	}
	defer rows.Close()

	return scanDatasets(rows)
}

// Count returns the number of datasets matching the filter
func (r *datasetRepository) Count(ctx context.Context, filter ports.DatasetFilter) (int, error) {
	query := `SELECT COUNT(*) FROM datasets`
	where, args := filterClauses(filter)
	query += where

	var count int
	if err := r.db.QueryRowContext(ctx, query, args...).Scan(&count); err != nil {
		return 0, fmt.Errorf("failed to count datasets: %w", err)
	}
	return count, nil
}

// ExternalIDs returns the set of known portal identifiers
func (r *datasetRepository) ExternalIDs(ctx context.Context, category string) (map[string]bool, error) {
	query := `SELECT external_id FROM datasets WHERE external_id IS NOT NULL AND external_id <> ''`
	var args []interface{}
	if category != "" {
		args = append(args, category)
		query += fmt.Sprintf(" AND category = $%d", len(args))
	}

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to query external ids: %w", err)
	}
	defer rows.Close()

	known := make(map[string]bool)
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("failed to scan external id: %w", err)
		}
		known[id] = true
	}
	return known, rows.Err()
}

// Categories returns the distinct categories present in the registry
func (r *datasetRepository) Categories(ctx context.Context) ([]string, error) {
	query := `SELECT DISTINCT category FROM datasets WHERE category IS NOT NULL AND category <> '' ORDER BY category`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to query categories: %w", err)
	}
	defer rows.Close()

	var categories []string
	for rows.Next() {
		var category string
		if err := rows.Scan(&category); err != nil {
			return nil, fmt.Errorf("failed to scan category: %w", err)
		}
		categories = append(categories, category)
	}
	return categories, rows.Err()
}

// CountByCategory aggregates active dataset counts per category
func (r *datasetRepository) CountByCategory(ctx context.Context) (map[string]int, error) {
	query := `SELECT COALESCE(category, ''), COUNT(*) FROM datasets WHERE is_active = true GROUP BY category`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count by category: %w", err)
	}
	defer rows.Close()

	counts := make(map[string]int)
	for rows.Next() {
		var category string
		var count int
		if err := rows.Scan(&category, &count); err != nil {
			return nil, fmt.Errorf("failed to scan category count: %w", err)
		}
		counts[category] = count
	}
	return counts, rows.Err()
}

// CountBySyncStatus aggregates dataset counts per sync state
func (r *datasetRepository) CountBySyncStatus(ctx context.Context) (map[catalog.SyncStatus]int, error) {
	query := `SELECT sync_status, COUNT(*) FROM datasets GROUP BY sync_status`

	rows, err := r.db.QueryContext(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to count by sync status: %w", err)
	}
	defer rows.Close()

	counts := make(map[catalog.SyncStatus]int)
	for rows.Next() {
		var status catalog.SyncStatus
		var count int
		if err := rows.Scan(&status, &count); err != nil {
			return nil, fmt.Errorf("failed to scan status count: %w", err)
		}
		counts[status] = count
	}
	return counts, rows.Err()
}

// filterClauses builds the WHERE clause for a dataset filter.
func filterClauses(filter ports.DatasetFilter) (string, []interface{}) {
	query := " WHERE 1=1"
	var args []interface{}

	if filter.ActiveOnly {
		query += " AND is_active = true"
	}
	if filter.Category != "" {
		args = append(args, filter.Category)
		query += fmt.Sprintf(" AND category = $%d", len(args))
	}
	if filter.Status != "" {
		args = append(args, filter.Status)
		query += fmt.Sprintf(" AND sync_status = $%d", len(args))
	}
	if filter.Search != "" {
		args = append(args, "%"+filter.Search+"%")
		query += fmt.Sprintf(" AND (name ILIKE $%d OR name_ar ILIKE $%d OR description ILIKE $%d)", len(args), len(args), len(args))
	}
	return query, args
}

type rowScanner interface {
	Scan(dest ...interface{}) error
}

// scanDataset reads one dataset row including its JSONB metadata arrays.
func scanDataset(row rowScanner) (*catalog.DatasetRecord, error) {
	var record catalog.DatasetRecord
	var tagsJSON, columnsJSON, resourcesJSON []byte

	err := row.Scan(
		&record.ID, &record.ExternalID, &record.Name, &record.NameAr,
		&record.Category, &record.Source, &record.SourceURL, &record.Description,
		&tagsJSON, &columnsJSON, &resourcesJSON,
		&record.IsActive, &record.SyncStatus, &record.RecordCount, &record.LastSyncAt,
		&record.CreatedAt, &record.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if err := unmarshalDatasetMetadata(&record, tagsJSON, columnsJSON, resourcesJSON); err != nil {
		return nil, err
	}
	return &record, nil
}

func scanDatasets(rows *sql.Rows) ([]*catalog.DatasetRecord, error) {
	var records []*catalog.DatasetRecord
	for rows.Next() {
		record, err := scanDataset(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan dataset: %w", err)
		}
		records = append(records, record)
	}
	return records, rows.Err()
}

func marshalDatasetMetadata(record *catalog.DatasetRecord) ([]byte, []byte, []byte, error) {
	tagsJSON, err := json.Marshal(emptyIfNil(record.Tags))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal tags: %w", err)
	}
	columnsJSON, err := json.Marshal(emptyIfNil(record.Columns))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal columns: %w", err)
	}
	resourcesJSON, err := json.Marshal(emptyIfNil(record.Resources))
	if err != nil {
		return nil, nil, nil, fmt.Errorf("failed to marshal resources: %w", err)
	}
	return tagsJSON, columnsJSON, resourcesJSON, nil
}

func unmarshalDatasetMetadata(record *catalog.DatasetRecord, tagsJSON, columnsJSON, resourcesJSON []byte) error {
	if len(tagsJSON) > 0 {
		if err := json.Unmarshal(tagsJSON, &record.Tags); err != nil {
			return fmt.Errorf("failed to unmarshal tags: %w", err)
		}
	}
	if len(columnsJSON) > 0 {
		if err := json.Unmarshal(columnsJSON, &record.Columns); err != nil {
			return fmt.Errorf("failed to unmarshal columns: %w", err)
		}
	}
	if len(resourcesJSON) > 0 {
		if err := json.Unmarshal(resourcesJSON, &record.Resources); err != nil {
			return fmt.Errorf("failed to unmarshal resources: %w", err)
		}
	}
	return nil
}

func emptyIfNil(values []string) []string {
	if values == nil {
		return []string{}
	}
	return values
}

// requireRow converts a zero-row update into a not-found error.
func requireRow(result sql.Result, id core.DatasetID) error {
	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", id, core.ErrDatasetNotFound)
	}
	return nil
}
