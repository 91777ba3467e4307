package catalog

// CatalogEntry is one raw candidate recovered from the external portal:
// an opaque identifier plus whatever titles the payload happened to carry.
// Category records which crawl scope surfaced the id; a later pass under a
// different category corrects it through reconciliation.
type CatalogEntry struct {
	ExternalID string `json:"external_id"`
	Title      string `json:"title,omitempty"`
	TitleAr    string `json:"title_ar,omitempty"`
	Category   string `json:"category,omitempty"`
}

// DiscoveryMode selects the crawl scope
type DiscoveryMode string

const (
	DiscoveryQuick DiscoveryMode = "quick"
	DiscoveryFull  DiscoveryMode = "full"
)

// DiscoveryResult is the ephemeral output of one discovery pass.
// NewIDs holds externalIds that were not in the repository at crawl time;
// Total counts every distinct id observed, known or not.
type DiscoveryResult struct {
	Mode        DiscoveryMode `json:"mode"`
	Category    string        `json:"category,omitempty"`
	NewIDs      []string      `json:"new_ids"`
	Total       int           `json:"total"`
	Steps       int           `json:"steps"`
	FailedSteps int           `json:"failed_steps"`
}

// NewFound returns the number of previously unknown ids
func (r DiscoveryResult) NewFound() int {
	return len(r.NewIDs)
}

// Merge folds another pass into this result, deduplicating NewIDs
func (r *DiscoveryResult) Merge(other DiscoveryResult) {
	seen := make(map[string]bool, len(r.NewIDs))
	for _, id := range r.NewIDs {
		seen[id] = true
	}
	for _, id := range other.NewIDs {
		if !seen[id] {
			r.NewIDs = append(r.NewIDs, id)
			seen[id] = true
		}
	}
	r.Total += other.Total
	r.Steps += other.Steps
	r.FailedSteps += other.FailedSteps
}

// TerminationPolicy bounds a crawl: stop at MaxSteps, or once
// NoNewResultStreak consecutive steps produced zero new identifiers.
// This is a heuristic stopping rule; the portal's true page count is
// unknown to the client.
type TerminationPolicy struct {
	MaxSteps          int `json:"max_steps" yaml:"max_steps"`
	NoNewResultStreak int `json:"no_new_result_streak" yaml:"no_new_result_streak"`
}

// DefaultTerminationPolicy returns the tuning used when none is configured
func DefaultTerminationPolicy() TerminationPolicy {
	return TerminationPolicy{MaxSteps: 40, NoNewResultStreak: 5}
}

// Normalize replaces non-positive fields with their defaults
func (p TerminationPolicy) Normalize() TerminationPolicy {
	def := DefaultTerminationPolicy()
	if p.MaxSteps <= 0 {
		p.MaxSteps = def.MaxSteps
	}
	if p.NoNewResultStreak <= 0 {
		p.NoNewResultStreak = def.NoNewResultStreak
	}
	return p
}

// ShouldStop reports whether a crawl at the given step count and
// zero-new streak has hit the policy's bounds
func (p TerminationPolicy) ShouldStop(steps, streak int) bool {
	if steps >= p.MaxSteps {
		return true
	}
	return streak >= p.NoNewResultStreak
}
