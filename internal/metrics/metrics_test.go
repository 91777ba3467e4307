package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestCountersAccumulate(t *testing.T) {
	m := New()

	m.AddDiscoverySteps("search", 12)
	m.AddDiscoverySteps("browse", 3)
	m.AddDiscoveryNew(5)
	m.AddSyncOutcome("created", 5)
	m.AddSyncOutcome("created", 2)
	m.IncSignal("growth_spike")
	m.ObserveHTTP("GET", "/api/datasets", 200, 15*time.Millisecond)

	if got := testutil.ToFloat64(m.DiscoverySteps.WithLabelValues("search")); got != 12 {
		t.Fatalf("search steps = %v, want 12", got)
	}
	if got := testutil.ToFloat64(m.DiscoveryNewIDs); got != 5 {
		t.Fatalf("new ids = %v, want 5", got)
	}
	if got := testutil.ToFloat64(m.SyncOutcomes.WithLabelValues("created")); got != 7 {
		t.Fatalf("created outcomes = %v, want 7", got)
	}
	if got := testutil.ToFloat64(m.SignalsEmitted.WithLabelValues("growth_spike")); got != 1 {
		t.Fatalf("signals = %v, want 1", got)
	}
}

func TestNegativeAndZeroAddsIgnored(t *testing.T) {
	m := New()
	m.AddDiscoveryNew(0)
	m.AddDiscoveryNew(-3)
	m.AddSyncOutcome("failed", 0)

	if got := testutil.ToFloat64(m.DiscoveryNewIDs); got != 0 {
		t.Fatalf("new ids = %v, want 0", got)
	}
}

func TestNilReceiverIsSafe(t *testing.T) {
	var m *Metrics
	m.AddDiscoverySteps("search", 1)
	m.AddDiscoveryNew(1)
	m.AddSyncOutcome("created", 1)
	m.IncSignal("new_dataset")
	m.ObserveCatalogFetch("detail", time.Second)
	m.ObserveHTTP("GET", "/api/feed", 200, time.Millisecond)
}
