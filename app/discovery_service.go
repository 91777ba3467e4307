package app

import (
	"context"

	"investorradar/domain/catalog"
	"investorradar/internal"
	"investorradar/internal/config"
	"investorradar/internal/extract"
	"investorradar/ports"
)

// DiscoveryService crawls the portal for dataset identifiers. One pass
// walks up to four surfaces per category: the search API, the HTML browse
// listing, the incremental load-more endpoint, and a fixed set of
// single-character search probes. The injected termination policy bounds
// each surface loop; individual fetch failures are absorbed as zero-new
// steps.
type DiscoveryService struct {
	client   ports.CatalogClient
	datasets ports.DatasetRepository
	cfg      config.DiscoveryConfig
	log      *internal.Logger
}

// DiscoveryRequest defines one discovery pass
type DiscoveryRequest struct {
	Category string                `json:"category,omitempty"`
	Mode     catalog.DiscoveryMode `json:"mode,omitempty"`
}

// DiscoveryOutcome pairs the result counts with the crawled entries so the
// caller can hand name-bearing tuples straight to reconciliation.
type DiscoveryOutcome struct {
	Result  *catalog.DiscoveryResult `json:"result"`
	Entries []catalog.CatalogEntry   `json:"entries"`
}

// NewDiscoveryService creates a discovery orchestrator
func NewDiscoveryService(client ports.CatalogClient, datasets ports.DatasetRepository, cfg config.DiscoveryConfig, logger *internal.Logger) *DiscoveryService {
	if logger == nil {
		logger = internal.DefaultLogger
	}
	return &DiscoveryService{
		client:   client,
		datasets: datasets,
		cfg:      cfg,
		log:      logger.Named("discovery"),
	}
}

// Discover runs one discovery pass and diffs the crawled identifiers
// against the repository. An unconfigured catalog client short-circuits to
// an empty result instead of failing the caller.
func (s *DiscoveryService) Discover(ctx context.Context, req DiscoveryRequest) (*DiscoveryOutcome, error) {
	mode := req.Mode
	if mode == "" {
		mode = catalog.DiscoveryQuick
	}
	result := &catalog.DiscoveryResult{Mode: mode, Category: req.Category}

	if !s.client.Ready() {
		s.log.Warn("catalog client not configured, returning empty discovery result")
		return &DiscoveryOutcome{Result: result}, nil
	}

	categories := []string{req.Category}
	if mode == catalog.DiscoveryFull {
		var err error
		categories, err = s.fullScope(ctx, req.Category)
		if err != nil {
			return nil, err
		}
	}

	crawl := newCrawlState(s.cfg.Policy.Normalize())
	for _, category := range categories {
		s.crawlCategory(ctx, crawl, category)
		if ctx.Err() != nil {
			break
		}
	}

	known, err := s.datasets.ExternalIDs(ctx, "")
	if err != nil {
		return nil, err
	}

	result.Total = len(crawl.ids)
	result.Steps = crawl.steps
	result.FailedSteps = crawl.failed
	for _, id := range crawl.ids {
		if !known[id] {
			result.NewIDs = append(result.NewIDs, id)
		}
	}

	s.log.Info("discovery pass done: mode=%s category=%q total=%d new=%d steps=%d failed=%d",
		mode, req.Category, result.Total, result.NewFound(), result.Steps, result.FailedSteps)

	return &DiscoveryOutcome{Result: result, Entries: crawl.entries()}, nil
}

// crawlCategory walks the portal surfaces for one category. Every surface
// loop gets a fresh policy budget: the probes are a fallback and must run
// even when the browse pages went dry.
func (s *DiscoveryService) crawlCategory(ctx context.Context, crawl *crawlState, category string) {
	crawl.category = category

	// Surface 1: search API pagination
	crawl.startLoop()
	offset := 0
	for !crawl.done() && ctx.Err() == nil {
		page, err := s.client.SearchDatasets(ctx, category, offset, s.cfg.PageSize)
		if err != nil {
			s.log.Debug("search step failed for %q at offset %d: %v", category, offset, err)
			crawl.fail()
			offset += s.cfg.PageSize
			continue
		}
		crawl.absorbPage(page)
		if !page.HasMore {
			break
		}
		offset += s.cfg.PageSize
	}

	// Surface 2: HTML browse pages
	crawl.startLoop()
	for page := 1; !crawl.done() && ctx.Err() == nil; page++ {
		html, err := s.client.BrowseCategory(ctx, category, page)
		if err != nil {
			s.log.Debug("browse step failed for %q page %d: %v", category, page, err)
			crawl.fail()
			continue
		}
		crawl.absorb(extract.Identifiers(html))
	}

	// Surface 3: incremental load-more loop
	crawl.startLoop()
	for offset := 0; !crawl.done() && ctx.Err() == nil; offset += s.cfg.PageSize {
		body, err := s.client.LoadMore(ctx, category, offset)
		if err != nil {
			s.log.Debug("load-more step failed for %q at offset %d: %v", category, offset, err)
			crawl.fail()
			continue
		}
		crawl.absorbRaw(body)
	}

	// Surface 4: single-character probe searches, one page each
	for _, term := range s.cfg.ProbeTerms {
		if ctx.Err() != nil {
			return
		}
		page, err := s.client.SearchDatasets(ctx, term, 0, s.cfg.PageSize)
		if err != nil {
			s.log.Debug("probe %q failed: %v", term, err)
			crawl.fail()
			continue
		}
		crawl.absorbPage(page)
	}
}

// fullScope unions the configured categories with the ones already present
// in the registry. A requested category goes first so its pages are crawled
// before the step budget runs down.
func (s *DiscoveryService) fullScope(ctx context.Context, requested string) ([]string, error) {
	stored, err := s.datasets.Categories(ctx)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]bool)
	var scope []string
	add := func(category string) {
		if category == "" || seen[category] {
			return
		}
		seen[category] = true
		scope = append(scope, category)
	}

	add(requested)
	for _, category := range s.cfg.Categories {
		add(category)
	}
	for _, category := range stored {
		add(category)
	}

	if len(scope) == 0 {
		// Nothing configured and nothing stored: crawl the home listing.
		scope = []string{""}
	}
	return scope, nil
}

// crawlState tracks one pass: the deduplicated identifiers in first-seen
// order, the best entry per identifier, and the policy counters. The
// dedup set spans the whole pass; the loop counters reset per surface so
// one dried-up loop cannot starve the next of its crawl budget.
type crawlState struct {
	policy   catalog.TerminationPolicy
	category string

	seen   map[string]bool
	ids    []string
	cats   map[string]string
	titles map[string]catalog.CatalogEntry
	steps  int
	failed int

	loopSteps int
	streak    int
}

func newCrawlState(policy catalog.TerminationPolicy) *crawlState {
	return &crawlState{
		policy: policy,
		seen:   make(map[string]bool),
		cats:   make(map[string]string),
		titles: make(map[string]catalog.CatalogEntry),
	}
}

func (c *crawlState) startLoop() {
	c.loopSteps = 0
	c.streak = 0
}

// absorb merges one step's identifiers and updates the policy counters.
func (c *crawlState) absorb(found []string) int {
	c.steps++
	c.loopSteps++
	fresh := 0
	for _, id := range found {
		if c.seen[id] {
			continue
		}
		c.seen[id] = true
		c.ids = append(c.ids, id)
		if c.category != "" {
			c.cats[id] = c.category
		}
		fresh++
	}
	if fresh == 0 {
		c.streak++
	} else {
		c.streak = 0
	}
	return fresh
}

// absorbRaw extracts identifiers from a raw payload and merges them.
func (c *crawlState) absorbRaw(raw string) int {
	return c.absorb(extract.Identifiers(raw))
}

// absorbPage merges a parsed search page, keeping titles for entries that
// carry them. The raw body is scanned too: ids sometimes appear outside
// the entry list.
func (c *crawlState) absorbPage(page *ports.CatalogPage) int {
	found := make([]string, 0, len(page.Entries))
	for _, entry := range page.Entries {
		found = append(found, entry.ExternalID)
		existing, ok := c.titles[entry.ExternalID]
		if !ok || (existing.Title == "" && entry.Title != "") {
			c.titles[entry.ExternalID] = entry
		}
	}
	found = append(found, extract.Identifiers(page.Raw)...)
	return c.absorb(found)
}

func (c *crawlState) fail() {
	c.steps++
	c.loopSteps++
	c.streak++
	c.failed++
}

func (c *crawlState) done() bool {
	return c.policy.ShouldStop(c.loopSteps, c.streak)
}

// entries returns one tuple per crawled identifier in first-seen order,
// with titles where any surface recovered them and the category each id
// was first seen under.
func (c *crawlState) entries() []catalog.CatalogEntry {
	out := make([]catalog.CatalogEntry, 0, len(c.ids))
	for _, id := range c.ids {
		entry, ok := c.titles[id]
		if !ok {
			entry = catalog.CatalogEntry{ExternalID: id}
		}
		if entry.Category == "" {
			entry.Category = c.cats[id]
		}
		out = append(out, entry)
	}
	return out
}
