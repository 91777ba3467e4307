// Package feed holds authored content items surfaced to radar users.
package feed

import (
	"strings"
	"time"

	"investorradar/domain/core"
)

// Item is one authored feed entry. Body is markdown; rendering to HTML
// happens at the API edge.
type Item struct {
	ID          core.ContentID  `json:"id" db:"id"`
	AuthorID    core.UserID     `json:"author_id" db:"author_id"`
	DatasetID   *core.DatasetID `json:"dataset_id,omitempty" db:"dataset_id"`
	Title       string          `json:"title" db:"title"`
	Body        string          `json:"body" db:"body"`
	Tags        []string        `json:"tags" db:"-"`
	PublishedAt *time.Time      `json:"published_at,omitempty" db:"published_at"`
	CreatedAt   time.Time       `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time       `json:"updated_at" db:"updated_at"`
}

// New builds an unpublished item
func New(authorID core.UserID, title, body string, tags []string) *Item {
	if tags == nil {
		tags = []string{}
	}
	now := time.Now().UTC()
	return &Item{
		ID:        core.ContentID(core.NewID()),
		AuthorID:  authorID,
		Title:     title,
		Body:      body,
		Tags:      tags,
		CreatedAt: now,
		UpdatedAt: now,
	}
}

// Publish stamps the item as published now if it is not already
func (i *Item) Publish() {
	if i.PublishedAt == nil {
		now := time.Now().UTC()
		i.PublishedAt = &now
		i.UpdatedAt = now
	}
}

// Published reports whether the item is visible in the feed
func (i *Item) Published() bool {
	return i.PublishedAt != nil && !i.PublishedAt.After(time.Now())
}

// Validate checks the fields required before persisting
func (i *Item) Validate() error {
	if strings.TrimSpace(i.Title) == "" {
		return core.NewValidationError("title", "cannot be empty")
	}
	if strings.TrimSpace(i.Body) == "" {
		return core.NewValidationError("body", "cannot be empty")
	}
	return nil
}
