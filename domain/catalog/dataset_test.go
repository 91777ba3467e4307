package catalog

import (
	"errors"
	"testing"

	"investorradar/domain/core"
)

func TestPlaceholderName(t *testing.T) {
	tests := []struct {
		externalID string
		expected   string
	}{
		{"abcd1234-5678-90ab-cdef-1234567890ab", "Dataset abcd1234"},
		{"short", "Dataset short"},
		{"12345678", "Dataset 12345678"},
	}

	for _, tt := range tests {
		if got := PlaceholderName(tt.externalID); got != tt.expected {
			t.Errorf("PlaceholderName(%q) = %q, want %q", tt.externalID, got, tt.expected)
		}
	}
}

func TestNewFromDiscovery(t *testing.T) {
	rec := NewFromDiscovery("abcd1234-5678-90ab-cdef-1234567890ab", "", "", "economy", "opendata", "https://portal.example/datasets")

	if rec.ID.String() == "" {
		t.Error("expected generated ID")
	}
	if rec.Name != "Dataset abcd1234" {
		t.Errorf("expected placeholder name, got %q", rec.Name)
	}
	if rec.NameAr == "" {
		t.Error("expected Arabic placeholder name")
	}
	if rec.SyncStatus != SyncPending {
		t.Errorf("expected PENDING status, got %s", rec.SyncStatus)
	}
	if !rec.IsActive {
		t.Error("expected new record to be active")
	}
	if rec.Tags == nil || rec.Columns == nil || rec.Resources == nil {
		t.Error("expected empty metadata slices, not nil")
	}
	if !rec.HasPlaceholderName() {
		t.Error("expected HasPlaceholderName to report true")
	}
	if !rec.CleanupCandidate() {
		t.Error("record with placeholder name and no metadata should be a cleanup candidate")
	}
}

func TestNewFromDiscoveryKeepsRealTitle(t *testing.T) {
	rec := NewFromDiscovery("abcd1234-5678-90ab-cdef-1234567890ab", "Building Permits 2024", "تراخيص البناء", "real-estate", "opendata", "")

	if rec.Name != "Building Permits 2024" {
		t.Errorf("expected discovered title to be kept, got %q", rec.Name)
	}
	if rec.HasPlaceholderName() {
		t.Error("record with a real title should not report a placeholder name")
	}
	if rec.CleanupCandidate() {
		t.Error("record with a real title should not be a cleanup candidate")
	}
}

func TestDatasetRecordValidate(t *testing.T) {
	rec := NewFromDiscovery("abcd1234-5678-90ab-cdef-1234567890ab", "", "", "economy", "opendata", "")
	if err := rec.Validate(); err != nil {
		t.Errorf("valid record failed validation: %v", err)
	}

	rec.ExternalID = "  "
	if err := rec.Validate(); !errors.Is(err, core.ErrMissingExternalID) {
		t.Errorf("expected ErrMissingExternalID, got %v", err)
	}

	rec.ExternalID = "abcd1234"
	rec.SyncStatus = "BOGUS"
	if err := rec.Validate(); err == nil {
		t.Error("expected validation error for bogus sync status")
	}
}

func TestSyncResultRecord(t *testing.T) {
	var res SyncResult

	res.Record(ItemResult{ExternalID: "u1", Outcome: OutcomeCreated})
	res.Record(ItemResult{ExternalID: "u2", Outcome: OutcomeUpdated})
	res.Record(ItemResult{ExternalID: "u3", Outcome: OutcomeSkipped})
	res.Record(ItemResult{
		ExternalID: "u4",
		Outcome:    OutcomeFailed,
		Err:        &ReconcileError{ExternalID: "u4", Kind: FailureStorage, Err: errors.New("boom")},
	})

	if res.Total != 4 {
		t.Errorf("Total = %d, want 4", res.Total)
	}
	if res.Created != 1 || res.Updated != 1 || res.Skipped != 1 || res.Failed != 1 {
		t.Errorf("unexpected tallies: %+v", res)
	}
	if res.Success() != 3 {
		t.Errorf("Success() = %d, want 3", res.Success())
	}
	if got := res.Failures(); len(got) != 1 || got[0].Kind != FailureStorage {
		t.Errorf("unexpected failures: %v", got)
	}
}

func TestTerminationPolicy(t *testing.T) {
	tests := []struct {
		name   string
		policy TerminationPolicy
		steps  int
		streak int
		stop   bool
	}{
		{"under both bounds", TerminationPolicy{MaxSteps: 10, NoNewResultStreak: 3}, 5, 1, false},
		{"max steps reached", TerminationPolicy{MaxSteps: 10, NoNewResultStreak: 3}, 10, 0, true},
		{"streak reached", TerminationPolicy{MaxSteps: 10, NoNewResultStreak: 3}, 2, 3, true},
		{"streak just under", TerminationPolicy{MaxSteps: 10, NoNewResultStreak: 3}, 2, 2, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.policy.ShouldStop(tt.steps, tt.streak); got != tt.stop {
				t.Errorf("ShouldStop(%d, %d) = %v, want %v", tt.steps, tt.streak, got, tt.stop)
			}
		})
	}
}

func TestTerminationPolicyNormalize(t *testing.T) {
	p := TerminationPolicy{}.Normalize()
	def := DefaultTerminationPolicy()
	if p != def {
		t.Errorf("Normalize() on zero policy = %+v, want defaults %+v", p, def)
	}

	p = TerminationPolicy{MaxSteps: 7, NoNewResultStreak: 2}.Normalize()
	if p.MaxSteps != 7 || p.NoNewResultStreak != 2 {
		t.Errorf("Normalize() clobbered configured values: %+v", p)
	}
}

func TestDiscoveryResultMerge(t *testing.T) {
	a := DiscoveryResult{NewIDs: []string{"u1", "u2"}, Total: 4, Steps: 2}
	b := DiscoveryResult{NewIDs: []string{"u2", "u3"}, Total: 3, Steps: 1, FailedSteps: 1}

	a.Merge(b)

	if len(a.NewIDs) != 3 {
		t.Errorf("merged NewIDs = %v, want 3 distinct ids", a.NewIDs)
	}
	if a.Total != 7 || a.Steps != 3 || a.FailedSteps != 1 {
		t.Errorf("merged counters wrong: %+v", a)
	}
	if a.NewFound() != 3 {
		t.Errorf("NewFound() = %d, want 3", a.NewFound())
	}
}
