package ports

import (
	"context"

	"investorradar/domain/catalog"
)

// CatalogPage is one page of search results from the portal API.
type CatalogPage struct {
	Entries []catalog.CatalogEntry
	// Raw holds the response body as received. Identifier extraction
	// runs over the raw text so ids buried outside the entry list
	// are still picked up.
	Raw     string
	Total   int
	HasMore bool
}

// DatasetDetail is the portal's detail payload for a single dataset.
type DatasetDetail struct {
	ExternalID  string
	Title       string
	TitleAr     string
	Description string
	Category    string
	SourceURL   string
	Tags        []string
	Columns     []string
	Resources   []string
	RecordCount int64
}

// CatalogClient talks to the public open-data portal.
// Implementations must be safe for concurrent use.
type CatalogClient interface {
	// Ready reports whether the client has a usable base URL. Orchestrators
	// short-circuit to an empty result when the client is not ready.
	Ready() bool

	// SearchDatasets queries the portal search API for one page of results.
	SearchDatasets(ctx context.Context, term string, offset, limit int) (*CatalogPage, error)

	// BrowseCategory fetches one page of the HTML category listing.
	BrowseCategory(ctx context.Context, category string, page int) (string, error)

	// LoadMore calls the portal's incremental listing endpoint with the
	// given offset, returning the raw response body.
	LoadMore(ctx context.Context, category string, offset int) (string, error)

	// FetchDataset fetches the detail payload for one portal identifier.
	FetchDataset(ctx context.Context, externalID string) (*DatasetDetail, error)

	// FetchPage fetches an arbitrary portal page by URL. Used by the
	// metadata backfill to resolve placeholder titles.
	FetchPage(ctx context.Context, url string) (string, error)
}
