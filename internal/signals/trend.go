package signals

import (
	"fmt"

	"gonum.org/v1/gonum/stat"

	"investorradar/domain/signal"
)

// minTrendFit is the lowest R-squared accepted as a real trend; below it
// a positive slope is more likely noise than direction.
const minTrendFit = 0.6

// TrendDetector fires when record counts grow at a consistent rate across
// the observation window.
type TrendDetector struct {
	minSlope float64
	minObs   int
	window   int
}

// NewTrendDetector creates a linear-regression trend detector
func NewTrendDetector(minSlope float64, minObs, window int) *TrendDetector {
	return &TrendDetector{minSlope: minSlope, minObs: minObs, window: window}
}

func (d *TrendDetector) Kind() signal.Kind {
	return signal.KindSustainedTrend
}

// Detect regresses record count on elapsed days. The slope must clear the
// configured minimum and the fit must explain most of the variance.
func (d *TrendDetector) Detect(series Series) (*signal.Signal, bool) {
	if len(series.Snapshots) < d.minObs {
		return nil, false
	}

	first := series.Snapshots[0].TakenAt
	xs := make([]float64, len(series.Snapshots))
	for i, snap := range series.Snapshots {
		xs[i] = snap.TakenAt.Sub(first).Hours() / 24
	}
	ys := series.Counts()

	alpha, beta := stat.LinearRegression(xs, ys, nil, false)
	if beta < d.minSlope {
		return nil, false
	}
	r2 := stat.RSquared(xs, ys, nil, alpha, beta)
	if r2 < minTrendFit {
		return nil, false
	}

	// Strength is the projected growth over one window relative to the
	// dataset's current size: doubling inside the window saturates it.
	base := ys[len(ys)-1]
	if base <= 0 {
		base = 1
	}
	strength := beta * float64(d.window) / base

	title := fmt.Sprintf("Sustained growth in %s", series.Record.Name)
	summary := fmt.Sprintf("Adds about %.1f records per day across %d observations (fit %.2f).", beta, len(xs), r2)
	return signal.New(series.Record.ID, signal.KindSustainedTrend, title, summary, strength, r2, d.window), true
}
