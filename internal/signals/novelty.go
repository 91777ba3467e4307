package signals

import (
	"fmt"
	"time"

	"investorradar/domain/signal"
)

// NoveltyDetector fires for datasets first discovered inside the
// observation window. Strength decays linearly as the record ages out.
type NoveltyDetector struct {
	window int
}

// NewNoveltyDetector creates a new-dataset detector
func NewNoveltyDetector(window int) *NoveltyDetector {
	return &NoveltyDetector{window: window}
}

func (d *NoveltyDetector) Kind() signal.Kind {
	return signal.KindNewDataset
}

func (d *NoveltyDetector) Detect(series Series) (*signal.Signal, bool) {
	if series.Record == nil {
		return nil, false
	}

	age := time.Since(series.Record.CreatedAt)
	windowDur := time.Duration(d.window) * 24 * time.Hour
	if age < 0 || age >= windowDur {
		return nil, false
	}

	strength := 1 - age.Hours()/windowDur.Hours()
	days := int(age.Hours() / 24)
	title := fmt.Sprintf("New dataset: %s", series.Record.Name)
	summary := fmt.Sprintf("First discovered %d days ago under %q.", days, series.Record.Category)
	return signal.New(series.Record.ID, signal.KindNewDataset, title, summary, strength, 1, d.window), true
}
