package postgres

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/jmoiron/sqlx"

	"investorradar/domain/core"
	"investorradar/domain/feed"
	"investorradar/ports"
)

// contentRepository implements the ContentRepository interface
type contentRepository struct {
	db *sqlx.DB
}

// NewContentRepository creates a new content repository
func NewContentRepository(db *sqlx.DB) ports.ContentRepository {
	return &contentRepository{db: db}
}

const contentColumns = `id, author_id, dataset_id, title, body, tags, published_at, created_at, updated_at`

// Create inserts a new feed item
func (r *contentRepository) Create(ctx context.Context, item *feed.Item) error {
	tagsJSON, err := json.Marshal(emptyIfNil(item.Tags))
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	query := `INSERT INTO content_items (
		id, author_id, dataset_id, title, body, tags, published_at, created_at, updated_at
	) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9)`

	_, err = r.db.ExecContext(ctx, query,
		item.ID, item.AuthorID, item.DatasetID, item.Title, item.Body,
		tagsJSON, item.PublishedAt, item.CreatedAt, item.UpdatedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to create content item: %w", err)
	}
	return nil
}

// Update rewrites the mutable fields of an existing item
func (r *contentRepository) Update(ctx context.Context, item *feed.Item) error {
	tagsJSON, err := json.Marshal(emptyIfNil(item.Tags))
	if err != nil {
		return fmt.Errorf("failed to marshal tags: %w", err)
	}

	query := `UPDATE content_items
		SET title = $2, body = $3, tags = $4, published_at = $5, updated_at = NOW()
		WHERE id = $1`

	result, err := r.db.ExecContext(ctx, query, item.ID, item.Title, item.Body, tagsJSON, item.PublishedAt)
	if err != nil {
		return fmt.Errorf("failed to update content item: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", item.ID, core.ErrContentNotFound)
	}
	return nil
}

// GetByID fetches one item
func (r *contentRepository) GetByID(ctx context.Context, id core.ContentID) (*feed.Item, error) {
	query := `SELECT ` + contentColumns + ` FROM content_items WHERE id = $1`

	item, err := scanContentItem(r.db.QueryRowContext(ctx, query, id))
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, fmt.Errorf("%s: %w", id, core.ErrContentNotFound)
		}
		return nil, fmt.Errorf("failed to get content item: %w", err)
	}
	return item, nil
}

// ListPublished returns a page of published items, newest first
func (r *contentRepository) ListPublished(ctx context.Context, limit, offset int) ([]*feed.Item, error) {
	query := `SELECT ` + contentColumns + ` FROM content_items
		WHERE published_at IS NOT NULL
		ORDER BY published_at DESC
		LIMIT $1 OFFSET $2`

	rows, err := r.db.QueryContext(ctx, query, limit, offset)
	if err != nil {
		return nil, fmt.Errorf("failed to query content items: %w", err)
	}
	defer rows.Close()

	var items []*feed.Item
	for rows.Next() {
		item, err := scanContentItem(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan content item: %w", err)
		}
		items = append(items, item)
	}
	return items, rows.Err()
}

// CountPublished returns the number of published items
func (r *contentRepository) CountPublished(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(*) FROM content_items WHERE published_at IS NOT NULL`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("failed to count content items: %w", err)
	}
	return count, nil
}

// Delete removes an item
func (r *contentRepository) Delete(ctx context.Context, id core.ContentID) error {
	result, err := r.db.ExecContext(ctx, `DELETE FROM content_items WHERE id = $1`, id)
	if err != nil {
		return fmt.Errorf("failed to delete content item: %w", err)
	}

	affected, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to read affected rows: %w", err)
	}
	if affected == 0 {
		return fmt.Errorf("%s: %w", id, core.ErrContentNotFound)
	}
	return nil
}

func scanContentItem(row rowScanner) (*feed.Item, error) {
	var item feed.Item
	var tagsJSON []byte

	err := row.Scan(
		&item.ID, &item.AuthorID, &item.DatasetID, &item.Title, &item.Body,
		&tagsJSON, &item.PublishedAt, &item.CreatedAt, &item.UpdatedAt,
	)
	if err != nil {
		return nil, err
	}

	if len(tagsJSON) > 0 {
		if err := json.Unmarshal(tagsJSON, &item.Tags); err != nil {
			return nil, fmt.Errorf("failed to unmarshal tags: %w", err)
		}
	}
	return &item, nil
}
