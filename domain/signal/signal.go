// Package signal holds derived trend/opportunity detections computed from
// dataset record-count history.
package signal

import (
	"time"

	"investorradar/domain/core"
)

// Kind classifies how a signal was detected
type Kind string

const (
	// KindGrowthSpike fires when the latest record-count delta is a
	// statistical outlier against the dataset's own history
	KindGrowthSpike Kind = "growth_spike"
	// KindSustainedTrend fires on a consistent directional slope across
	// the observation window
	KindSustainedTrend Kind = "sustained_trend"
	// KindNewDataset fires for datasets first discovered inside the window
	KindNewDataset Kind = "new_dataset"
)

// Valid reports whether the kind is known
func (k Kind) Valid() bool {
	switch k {
	case KindGrowthSpike, KindSustainedTrend, KindNewDataset:
		return true
	}
	return false
}

// Signal is one persisted detection tied to a dataset
type Signal struct {
	ID         core.SignalID  `json:"id" db:"id"`
	DatasetID  core.DatasetID `json:"dataset_id" db:"dataset_id"`
	Kind       Kind           `json:"kind" db:"kind"`
	Title      string         `json:"title" db:"title"`
	Summary    string         `json:"summary" db:"summary"`
	Strength   float64        `json:"strength" db:"strength"`
	Confidence float64        `json:"confidence" db:"confidence"`
	WindowDays int            `json:"window_days" db:"window_days"`
	CreatedAt  time.Time      `json:"created_at" db:"created_at"`
}

// New builds a signal with a fresh id and creation time
func New(datasetID core.DatasetID, kind Kind, title, summary string, strength, confidence float64, windowDays int) *Signal {
	return &Signal{
		ID:         core.SignalID(core.NewID()),
		DatasetID:  datasetID,
		Kind:       kind,
		Title:      title,
		Summary:    summary,
		Strength:   clamp01(strength),
		Confidence: clamp01(confidence),
		WindowDays: windowDays,
		CreatedAt:  time.Now().UTC(),
	}
}

func clamp01(v float64) float64 {
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}
