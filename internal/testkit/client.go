package testkit

import (
	"context"
	"fmt"
	"sync"

	"investorradar/ports"
)

// ScriptedCatalogClient is a ports.CatalogClient driven by per-surface
// callbacks. Unset callbacks return empty results, which a discovery pass
// reads as zero-new steps, so every test terminates through the policy.
type ScriptedCatalogClient struct {
	NotReady bool

	SearchFunc func(term string, offset, limit int) (*ports.CatalogPage, error)
	BrowseFunc func(category string, page int) (string, error)
	LoadFunc   func(category string, offset int) (string, error)
	DetailFunc func(externalID string) (*ports.DatasetDetail, error)
	PageFunc   func(url string) (string, error)

	mu    sync.Mutex
	calls []string
}

func NewScriptedCatalogClient() *ScriptedCatalogClient {
	return &ScriptedCatalogClient{}
}

func (c *ScriptedCatalogClient) record(format string, args ...interface{}) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.calls = append(c.calls, fmt.Sprintf(format, args...))
}

// Calls returns a human-readable trace of every client invocation.
func (c *ScriptedCatalogClient) Calls() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]string, len(c.calls))
	copy(out, c.calls)
	return out
}

func (c *ScriptedCatalogClient) Ready() bool {
	return !c.NotReady
}

func (c *ScriptedCatalogClient) SearchDatasets(ctx context.Context, term string, offset, limit int) (*ports.CatalogPage, error) {
	c.record("search %q offset=%d", term, offset)
	if c.SearchFunc == nil {
		return &ports.CatalogPage{}, nil
	}
	return c.SearchFunc(term, offset, limit)
}

func (c *ScriptedCatalogClient) BrowseCategory(ctx context.Context, category string, page int) (string, error) {
	c.record("browse %q page=%d", category, page)
	if c.BrowseFunc == nil {
		return "", nil
	}
	return c.BrowseFunc(category, page)
}

func (c *ScriptedCatalogClient) LoadMore(ctx context.Context, category string, offset int) (string, error) {
	c.record("loadmore %q offset=%d", category, offset)
	if c.LoadFunc == nil {
		return "", nil
	}
	return c.LoadFunc(category, offset)
}

func (c *ScriptedCatalogClient) FetchDataset(ctx context.Context, externalID string) (*ports.DatasetDetail, error) {
	c.record("detail %s", externalID)
	if c.DetailFunc == nil {
		return nil, fmt.Errorf("no detail scripted for %s", externalID)
	}
	return c.DetailFunc(externalID)
}

func (c *ScriptedCatalogClient) FetchPage(ctx context.Context, url string) (string, error) {
	c.record("page %s", url)
	if c.PageFunc == nil {
		return "", nil
	}
	return c.PageFunc(url)
}

var _ ports.CatalogClient = (*ScriptedCatalogClient)(nil)
