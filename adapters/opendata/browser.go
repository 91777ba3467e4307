package opendata

import (
	"context"
	"fmt"
	"net"
	"net/http"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/gocolly/colly/v2"

	"investorradar/internal"
	"investorradar/internal/config"
)

// Browser fetches HTML listing pages through a colly collector. Category
// browsing is the one crawl path that hits rendered pages rather than the
// JSON API, so it carries the crawl etiquette: robots rules, transport
// limits, and optional page snapshots for debugging long runs.
type Browser struct {
	config config.CatalogConfig
	log    *internal.Logger
}

// NewBrowser creates a listing fetcher from catalog configuration.
func NewBrowser(cfg config.CatalogConfig, logger *internal.Logger) *Browser {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &Browser{
		config: cfg,
		log:    logger.Named("browser"),
	}
}

// FetchListing fetches one page of the category listing and returns its
// HTML. A fresh collector per call keeps listing fetches independent; the
// portal paginates with plain query parameters, so page N is one request.
func (b *Browser) FetchListing(ctx context.Context, target, category string, page int) (string, error) {
	u, err := url.Parse(target)
	if err != nil {
		return "", fmt.Errorf("invalid browse URL %q: %w", target, err)
	}
	query := u.Query()
	if category != "" {
		query.Set("category", category)
	}
	if page > 0 {
		query.Set("page", strconv.Itoa(page))
	}
	u.RawQuery = query.Encode()

	collector, err := b.newCollector(u.Host)
	if err != nil {
		return "", err
	}

	var (
		body     string
		fetchErr error
	)
	collector.OnResponse(func(resp *colly.Response) {
		body = string(resp.Body)
	})
	collector.OnError(func(_ *colly.Response, err error) {
		fetchErr = err
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		if err := collector.Visit(u.String()); err != nil && fetchErr == nil {
			fetchErr = err
		}
		collector.Wait()
	}()

	select {
	case <-done:
	case <-ctx.Done():
		return "", ctx.Err()
	}

	if fetchErr != nil {
		return "", fmt.Errorf("browse %s: %w", u.String(), fetchErr)
	}

	b.snapshot(category, page, body)
	return body, nil
}

func (b *Browser) newCollector(host string) (*colly.Collector, error) {
	collector := colly.NewCollector(
		colly.AllowedDomains(host),
		colly.UserAgent(b.config.UserAgent),
		colly.Async(true),
	)
	collector.SetRequestTimeout(b.config.RequestTimeout)
	collector.IgnoreRobotsTxt = !b.config.RespectRobots
	collector.WithTransport(&http.Transport{
		Proxy: http.ProxyFromEnvironment,
		DialContext: (&net.Dialer{
			Timeout:   b.config.RequestTimeout,
			KeepAlive: 30 * time.Second,
		}).DialContext,
		MaxIdleConns:    16,
		IdleConnTimeout: 90 * time.Second,
	})

	if err := collector.Limit(&colly.LimitRule{
		DomainGlob:  "*",
		Parallelism: 1,
		Delay:       500 * time.Millisecond,
	}); err != nil {
		return nil, fmt.Errorf("configure rate limits: %w", err)
	}
	return collector, nil
}

// snapshot writes the fetched page to the debug directory when configured.
func (b *Browser) snapshot(category string, page int, body string) {
	if b.config.DebugDir == "" || body == "" {
		return
	}

	name := fmt.Sprintf("browse-%s-p%d-%d.html", sanitizeName(category), page, time.Now().Unix())
	path := filepath.Join(b.config.DebugDir, name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		b.log.Warn("failed to write page snapshot %s: %v", path, err)
		return
	}
	b.log.Debug("saved page snapshot %s", path)
}

func sanitizeName(s string) string {
	if s == "" {
		return "all"
	}
	out := make([]rune, 0, len(s))
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			out = append(out, r)
		default:
			out = append(out, '-')
		}
	}
	return string(out)
}
