package ports

import (
	"context"

	"investorradar/domain/core"
	"investorradar/domain/feed"
)

// ContentRepository persists editorial feed items.
type ContentRepository interface {
	// Create inserts a new item.
	Create(ctx context.Context, item *feed.Item) error

	// Update rewrites the mutable fields of an existing item.
	Update(ctx context.Context, item *feed.Item) error

	// GetByID fetches one item, core.ErrContentNotFound when missing.
	GetByID(ctx context.Context, id core.ContentID) (*feed.Item, error)

	// ListPublished returns a page of published items, newest first.
	ListPublished(ctx context.Context, limit, offset int) ([]*feed.Item, error)

	// CountPublished returns the number of published items.
	CountPublished(ctx context.Context) (int, error)

	// Delete removes an item.
	Delete(ctx context.Context, id core.ContentID) error
}
