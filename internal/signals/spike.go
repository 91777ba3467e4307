package signals

import (
	"fmt"
	"math"

	"github.com/montanaflynn/stats"

	"investorradar/domain/signal"
)

// SpikeDetector fires when the latest record-count delta is a statistical
// outlier against the dataset's own delta history.
type SpikeDetector struct {
	threshold float64
	minObs    int
	window    int
}

// NewSpikeDetector creates a z-score spike detector
func NewSpikeDetector(threshold float64, minObs, window int) *SpikeDetector {
	return &SpikeDetector{threshold: threshold, minObs: minObs, window: window}
}

func (d *SpikeDetector) Kind() signal.Kind {
	return signal.KindGrowthSpike
}

// Detect compares the newest delta to the mean and spread of the earlier
// ones. The latest observation is excluded from its own baseline.
func (d *SpikeDetector) Detect(series Series) (*signal.Signal, bool) {
	deltas := series.Deltas()
	if len(series.Snapshots) < d.minObs || len(deltas) < 3 {
		return nil, false
	}

	latest := deltas[len(deltas)-1]
	history := deltas[:len(deltas)-1]

	mean, _ := stats.Mean(history)
	stdDev, _ := stats.StandardDeviation(history)
	if stdDev == 0 {
		// A flat history cannot be normalized; any positive jump counts.
		if latest <= mean {
			return nil, false
		}
		return d.build(series, latest, d.threshold+1), true
	}

	z := (latest - mean) / stdDev
	if z < d.threshold {
		return nil, false
	}
	return d.build(series, latest, z), true
}

func (d *SpikeDetector) build(series Series, latest, z float64) *signal.Signal {
	strength := z / (2 * d.threshold)
	confidence := math.Min(1, float64(len(series.Snapshots))/10)
	title := fmt.Sprintf("Growth spike in %s", series.Record.Name)
	summary := fmt.Sprintf("Latest change of %+.0f records sits %.1f standard deviations above this dataset's history.", latest, z)
	return signal.New(series.Record.ID, signal.KindGrowthSpike, title, summary, strength, confidence, d.window)
}
