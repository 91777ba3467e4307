// Package opendata implements the catalog client against the public
// open-data portal. The client fetches and returns raw payloads; it never
// retries on its own, leaving skip and retry decisions to the
// orchestrators above it.
package opendata

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/tidwall/gjson"

	"investorradar/internal"
	"investorradar/internal/config"
	"investorradar/internal/extract"
	"investorradar/ports"
)

// Client talks to the portal's JSON API. HTML browse pages go through the
// embedded Browser so robots rules and debug snapshots apply to them.
type Client struct {
	config     config.CatalogConfig
	httpClient *http.Client
	limiter    *RateLimiter
	browser    *Browser
	robots     *robotsGate
	observe    func(operation string, elapsed time.Duration)
	log        *internal.Logger
}

// NewClient creates a portal client from catalog configuration.
func NewClient(cfg config.CatalogConfig, logger *internal.Logger) *Client {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	httpClient := &http.Client{Timeout: cfg.RequestTimeout}
	return &Client{
		config:     cfg,
		httpClient: httpClient,
		limiter:    NewRateLimiter(cfg.RatePerMinute),
		browser:    NewBrowser(cfg, logger),
		robots:     newRobotsGate(cfg.UserAgent, httpClient),
		log:        logger.Named("opendata"),
	}
}

// SetObserver installs a callback that receives the duration of every
// portal call, keyed by operation. Keeps the adapter free of a direct
// metrics dependency.
func (c *Client) SetObserver(fn func(operation string, elapsed time.Duration)) {
	c.observe = fn
}

func (c *Client) observeOp(operation string, started time.Time) {
	if c.observe != nil {
		c.observe(operation, time.Since(started))
	}
}

// Ready reports whether a portal base URL is configured.
func (c *Client) Ready() bool {
	return c.config.BaseURL != ""
}

// SearchDatasets queries the portal search API for one page of results.
func (c *Client) SearchDatasets(ctx context.Context, term string, offset, limit int) (*ports.CatalogPage, error) {
	defer c.observeOp("search", time.Now())

	params := url.Values{}
	params.Set("q", term)
	params.Set("offset", strconv.Itoa(offset))
	params.Set("limit", strconv.Itoa(limit))

	body, err := c.get(ctx, c.config.SearchPath, params)
	if err != nil {
		return nil, err
	}

	return c.parseSearchPage(body, offset, limit), nil
}

// LoadMore calls the portal's incremental listing endpoint. The response
// body is returned raw so identifier extraction can run over all of it.
func (c *Client) LoadMore(ctx context.Context, category string, offset int) (string, error) {
	defer c.observeOp("loadmore", time.Now())

	params := url.Values{}
	if category != "" {
		params.Set("category", category)
	}
	params.Set("offset", strconv.Itoa(offset))

	body, err := c.get(ctx, c.config.LoadMorePath, params)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

// BrowseCategory fetches one page of the HTML category listing.
func (c *Client) BrowseCategory(ctx context.Context, category string, page int) (string, error) {
	defer c.observeOp("browse", time.Now())

	target, err := c.buildURL(c.config.BrowsePath, nil)
	if err != nil {
		return "", err
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("rate limit exceeded: %w", err)
	}
	return c.browser.FetchListing(ctx, target, category, page)
}

// FetchDataset fetches and parses the detail payload for one identifier.
func (c *Client) FetchDataset(ctx context.Context, externalID string) (*ports.DatasetDetail, error) {
	defer c.observeOp("detail", time.Now())

	path := fmt.Sprintf(c.config.DatasetPath, url.PathEscape(externalID))

	body, err := c.get(ctx, path, nil)
	if err != nil {
		return nil, err
	}

	detail := parseDetail(body)
	if detail.ExternalID == "" {
		detail.ExternalID = strings.ToLower(externalID)
	}
	return detail, nil
}

// FetchPage fetches an arbitrary portal page. Relative paths are resolved
// against the configured base URL. Unlike the API paths this may hit
// rendered pages, so robots rules apply when enabled.
func (c *Client) FetchPage(ctx context.Context, pageURL string) (string, error) {
	defer c.observeOp("page", time.Now())

	target := pageURL
	if !strings.HasPrefix(pageURL, "http") {
		resolved, err := c.buildURL(pageURL, nil)
		if err != nil {
			return "", err
		}
		target = resolved
	}

	if c.config.RespectRobots && !c.robots.Allowed(ctx, target) {
		return "", fmt.Errorf("robots.txt disallows %s", target)
	}

	body, err := c.fetch(ctx, target)
	if err != nil {
		return "", err
	}
	return string(body), nil
}

func (c *Client) get(ctx context.Context, path string, params url.Values) ([]byte, error) {
	target, err := c.buildURL(path, params)
	if err != nil {
		return nil, err
	}
	return c.fetch(ctx, target)
}

func (c *Client) fetch(ctx context.Context, target string) ([]byte, error) {
	if !c.Ready() {
		return nil, fmt.Errorf("catalog base URL not configured")
	}

	if err := c.limiter.Wait(ctx); err != nil {
		return nil, fmt.Errorf("rate limit exceeded: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("User-Agent", c.config.UserAgent)
	req.Header.Set("Accept", "application/json, text/html;q=0.9, */*;q=0.8")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("HTTP request failed: %w", err)
	}

	body, err := io.ReadAll(resp.Body)
	resp.Body.Close()
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("portal returned status %d for %s", resp.StatusCode, target)
	}

	c.log.Trace("fetched %s (%d bytes)", target, len(body))
	return body, nil
}

func (c *Client) buildURL(path string, params url.Values) (string, error) {
	base, err := url.Parse(c.config.BaseURL)
	if err != nil {
		return "", fmt.Errorf("invalid catalog base URL: %w", err)
	}

	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("invalid catalog path %q: %w", path, err)
	}

	target := base.ResolveReference(ref)
	if params != nil {
		query := target.Query()
		for key, values := range params {
			for _, value := range values {
				query.Set(key, value)
			}
		}
		target.RawQuery = query.Encode()
	}
	return target.String(), nil
}

// parseSearchPage builds a CatalogPage from a search API response.
func (c *Client) parseSearchPage(body []byte, offset, limit int) *ports.CatalogPage {
	raw := string(body)
	page := &ports.CatalogPage{
		Entries: extract.Entries(raw),
		Raw:     raw,
	}

	for _, path := range []string{"result.count", "count", "total", "meta.total"} {
		if v := gjson.GetBytes(body, path); v.Exists() {
			page.Total = int(v.Int())
			break
		}
	}

	if page.Total > 0 {
		page.HasMore = offset+len(page.Entries) < page.Total
	} else {
		page.HasMore = limit > 0 && len(page.Entries) >= limit
	}
	return page
}

// parseDetail maps the portal's dataset detail payload onto DatasetDetail.
// The portal has shipped several envelope shapes over time, so every field
// is probed across its known aliases.
func parseDetail(body []byte) *ports.DatasetDetail {
	root := gjson.ParseBytes(body)
	if inner := root.Get("result"); inner.IsObject() {
		root = inner
	} else if inner := root.Get("data"); inner.IsObject() {
		root = inner
	}

	detail := &ports.DatasetDetail{}

	if v := firstString(root, "id", "uuid", "dataset_id", "identifier"); v != "" {
		detail.ExternalID = strings.ToLower(v)
	}
	detail.Title = firstString(root, "title", "name", "title_en", "name_en")
	detail.TitleAr = firstString(root, "title_ar", "name_ar", "arabic_title")
	detail.Description = firstString(root, "description", "notes", "summary")
	detail.Category = firstString(root, "category", "group", "theme", "organization.category")
	detail.SourceURL = firstString(root, "url", "source_url", "landing_page")

	for _, path := range []string{"records_count", "record_count", "total_records", "num_records"} {
		if v := root.Get(path); v.Exists() {
			detail.RecordCount = v.Int()
			break
		}
	}

	root.Get("tags").ForEach(func(_, tag gjson.Result) bool {
		if name := firstString(tag, "name", "display_name"); name != "" {
			detail.Tags = append(detail.Tags, name)
		} else if tag.Type == gjson.String {
			detail.Tags = append(detail.Tags, tag.String())
		}
		return true
	})

	root.Get("resources").ForEach(func(_, res gjson.Result) bool {
		if u := firstString(res, "url", "download_url", "path"); u != "" {
			detail.Resources = append(detail.Resources, u)
		}
		return true
	})

	for _, path := range []string{"columns", "fields", "schema.fields"} {
		node := root.Get(path)
		if !node.IsArray() {
			continue
		}
		node.ForEach(func(_, col gjson.Result) bool {
			if name := firstString(col, "name", "id", "label"); name != "" {
				detail.Columns = append(detail.Columns, name)
			} else if col.Type == gjson.String {
				detail.Columns = append(detail.Columns, col.String())
			}
			return true
		})
		break
	}

	return detail
}

func firstString(node gjson.Result, paths ...string) string {
	for _, path := range paths {
		if v := node.Get(path); v.Exists() {
			if s := strings.TrimSpace(v.String()); s != "" {
				return s
			}
		}
	}
	return ""
}
