// Package signals derives investment signals from dataset record-count
// history. Each detector inspects one dataset's snapshot series and
// reports at most one signal of its kind; the engine runs every detector
// and collects whatever fired.
package signals

import (
	"investorradar/domain/catalog"
	"investorradar/domain/signal"
)

// Config tunes the detectors. Zero values fall back to usable defaults
// so a partially configured engine still behaves.
type Config struct {
	SpikeThreshold  float64
	TrendMinSlope   float64
	MinObservations int
	WindowDays      int
}

func (c Config) normalized() Config {
	if c.SpikeThreshold <= 0 {
		c.SpikeThreshold = 2.0
	}
	if c.TrendMinSlope <= 0 {
		c.TrendMinSlope = 0.5
	}
	if c.MinObservations < 3 {
		c.MinObservations = 3
	}
	if c.WindowDays <= 0 {
		c.WindowDays = 30
	}
	return c
}

// Series is the per-dataset detector input: the record plus its snapshot
// history inside the observation window, oldest first.
type Series struct {
	Record    *catalog.DatasetRecord
	Snapshots []*catalog.Snapshot
	Window    int
}

// Counts returns the record-count observations in series order.
func (s Series) Counts() []float64 {
	out := make([]float64, len(s.Snapshots))
	for i, snap := range s.Snapshots {
		out[i] = float64(snap.RecordCount)
	}
	return out
}

// Deltas returns the observation-to-observation changes.
func (s Series) Deltas() []float64 {
	counts := s.Counts()
	if len(counts) < 2 {
		return nil
	}
	out := make([]float64, len(counts)-1)
	for i := 1; i < len(counts); i++ {
		out[i-1] = counts[i] - counts[i-1]
	}
	return out
}

// Detector inspects one series for a single signal kind.
type Detector interface {
	Kind() signal.Kind
	Detect(series Series) (*signal.Signal, bool)
}

// Engine runs the full detector set over a series.
type Engine struct {
	detectors []Detector
}

// NewEngine builds the engine with the standard three detectors.
func NewEngine(cfg Config) *Engine {
	cfg = cfg.normalized()
	return &Engine{
		detectors: []Detector{
			NewSpikeDetector(cfg.SpikeThreshold, cfg.MinObservations, cfg.WindowDays),
			NewTrendDetector(cfg.TrendMinSlope, cfg.MinObservations, cfg.WindowDays),
			NewNoveltyDetector(cfg.WindowDays),
		},
	}
}

// Evaluate returns every signal the detectors found for one dataset.
func (e *Engine) Evaluate(series Series) []*signal.Signal {
	var out []*signal.Signal
	for _, detector := range e.detectors {
		if sig, ok := detector.Detect(series); ok {
			out = append(out, sig)
		}
	}
	return out
}
