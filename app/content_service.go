package app

import (
	"context"

	"investorradar/domain/core"
	"investorradar/domain/feed"
	"investorradar/internal"
	"investorradar/ports"
)

const (
	defaultFeedPageSize = 20
	maxFeedPageSize     = 100
)

// ContentService manages authored feed items.
type ContentService struct {
	content  ports.ContentRepository
	datasets ports.DatasetRepository
	log      *internal.Logger
}

// CreateContentRequest carries a new feed item. Publish makes the item
// visible immediately; otherwise it stays a draft.
type CreateContentRequest struct {
	AuthorID  core.UserID     `json:"author_id"`
	DatasetID *core.DatasetID `json:"dataset_id,omitempty"`
	Title     string          `json:"title"`
	Body      string          `json:"body"`
	Tags      []string        `json:"tags"`
	Publish   bool            `json:"publish"`
}

// ContentListRequest pages through published items, newest first.
type ContentListRequest struct {
	Limit  int `json:"limit"`
	Offset int `json:"offset"`
}

// ContentPage is one page of published items plus the published total.
type ContentPage struct {
	Items  []*feed.Item `json:"items"`
	Total  int          `json:"total"`
	Limit  int          `json:"limit"`
	Offset int          `json:"offset"`
}

// NewContentService creates the feed content service
func NewContentService(content ports.ContentRepository, datasets ports.DatasetRepository, logger *internal.Logger) *ContentService {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &ContentService{
		content:  content,
		datasets: datasets,
		log:      logger.Named("content"),
	}
}

// Create validates and stores a new item. A dataset link has to point at
// a known record.
func (s *ContentService) Create(ctx context.Context, req CreateContentRequest) (*feed.Item, error) {
	item := feed.New(req.AuthorID, req.Title, req.Body, req.Tags)
	if req.DatasetID != nil {
		if _, err := s.datasets.GetByID(ctx, *req.DatasetID); err != nil {
			return nil, err
		}
		item.DatasetID = req.DatasetID
	}
	if err := item.Validate(); err != nil {
		return nil, err
	}
	if req.Publish {
		item.Publish()
	}
	if err := s.content.Create(ctx, item); err != nil {
		return nil, err
	}
	s.log.Info("content item created: id=%s published=%t", item.ID, item.Published())
	return item, nil
}

// Publish makes a draft visible. Already published items pass through
// unchanged.
func (s *ContentService) Publish(ctx context.Context, id core.ContentID) (*feed.Item, error) {
	item, err := s.content.GetByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if item.Published() {
		return item, nil
	}
	item.Publish()
	if err := s.content.Update(ctx, item); err != nil {
		return nil, err
	}
	return item, nil
}

// Get fetches one item by id.
func (s *ContentService) Get(ctx context.Context, id core.ContentID) (*feed.Item, error) {
	return s.content.GetByID(ctx, id)
}

// List returns one page of published items, newest first.
func (s *ContentService) List(ctx context.Context, req ContentListRequest) (*ContentPage, error) {
	limit := req.Limit
	if limit <= 0 {
		limit = defaultFeedPageSize
	}
	if limit > maxFeedPageSize {
		limit = maxFeedPageSize
	}
	offset := req.Offset
	if offset < 0 {
		offset = 0
	}

	items, err := s.content.ListPublished(ctx, limit, offset)
	if err != nil {
		return nil, err
	}
	total, err := s.content.CountPublished(ctx)
	if err != nil {
		return nil, err
	}
	return &ContentPage{Items: items, Total: total, Limit: limit, Offset: offset}, nil
}

// Delete removes an item.
func (s *ContentService) Delete(ctx context.Context, id core.ContentID) error {
	return s.content.Delete(ctx, id)
}
