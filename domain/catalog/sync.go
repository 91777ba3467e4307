package catalog

import "fmt"

// SyncOutcome classifies what reconciliation did with a single item
type SyncOutcome string

const (
	OutcomeCreated SyncOutcome = "created"
	OutcomeUpdated SyncOutcome = "updated"
	OutcomeSkipped SyncOutcome = "skipped"
	OutcomeFailed  SyncOutcome = "failed"
)

// FailureKind narrows why a single item's reconciliation failed
type FailureKind string

const (
	// FailureConflict marks a unique-constraint loss against a concurrent writer
	FailureConflict FailureKind = "conflict"
	// FailureStorage marks any other store-level error
	FailureStorage FailureKind = "storage"
	// FailureInvalid marks an item that failed validation before any write
	FailureInvalid FailureKind = "invalid"
)

// ReconcileError is the typed per-item failure surfaced by the sync
// orchestrator instead of a silent drop
type ReconcileError struct {
	ExternalID string
	Kind       FailureKind
	Err        error
}

func (e *ReconcileError) Error() string {
	return fmt.Sprintf("reconcile %s (%s): %v", e.ExternalID, e.Kind, e.Err)
}

func (e *ReconcileError) Unwrap() error {
	return e.Err
}

// ItemResult is the outcome of reconciling one discovered tuple
type ItemResult struct {
	ExternalID string          `json:"external_id"`
	Outcome    SyncOutcome     `json:"outcome"`
	Err        *ReconcileError `json:"-"`
}

// SyncResult aggregates per-item outcomes for one reconciliation batch
type SyncResult struct {
	Total   int          `json:"total"`
	Created int          `json:"created"`
	Updated int          `json:"updated"`
	Skipped int          `json:"skipped"`
	Failed  int          `json:"failed"`
	Items   []ItemResult `json:"-"`
}

// Record tallies a single item outcome into the aggregate
func (r *SyncResult) Record(item ItemResult) {
	r.Total++
	r.Items = append(r.Items, item)
	switch item.Outcome {
	case OutcomeCreated:
		r.Created++
	case OutcomeUpdated:
		r.Updated++
	case OutcomeSkipped:
		r.Skipped++
	case OutcomeFailed:
		r.Failed++
	}
}

// Success counts the items that completed without error
func (r SyncResult) Success() int {
	return r.Created + r.Updated + r.Skipped
}

// Failures returns the typed errors collected during the batch
func (r SyncResult) Failures() []*ReconcileError {
	var errs []*ReconcileError
	for _, item := range r.Items {
		if item.Err != nil {
			errs = append(errs, item.Err)
		}
	}
	return errs
}
